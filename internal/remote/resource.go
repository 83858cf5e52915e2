package remote

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
)

// Resource is the REST collection of one entity type, e.g. /animais.
// E is the entity returned by the server, R the create/update body.
type Resource[E any, R any] struct {
	client     *Client
	path       string
	scopeParam string
}

// NewResource binds a collection path. scopeParam is the query parameter used
// to list one scope (tutorId, animalId, ...); empty for unscoped collections.
func NewResource[E any, R any](client *Client, path, scopeParam string) *Resource[E, R] {
	return &Resource[E, R]{client: client, path: path, scopeParam: scopeParam}
}

// FetchScope returns the authoritative list of one scope.
func (r *Resource[E, R]) FetchScope(ctx context.Context, scope uint) ([]E, error) {
	var query url.Values
	if r.scopeParam != "" {
		query = url.Values{r.scopeParam: {strconv.FormatUint(uint64(scope), 10)}}
	}
	var rows []E
	if err := r.client.Do(ctx, http.MethodGet, r.path, query, nil, &rows); err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []E{}
	}
	return rows, nil
}

// FetchOne returns nil when the server reports the item gone.
func (r *Resource[E, R]) FetchOne(ctx context.Context, id uint) (*E, error) {
	var row E
	err := r.client.Do(ctx, http.MethodGet, r.itemPath(id), nil, nil, &row)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *Resource[E, R]) Create(ctx context.Context, req R) (*E, error) {
	var row E
	if err := r.client.Do(ctx, http.MethodPost, r.path, nil, req, &row); err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *Resource[E, R]) Update(ctx context.Context, id uint, req R) (*E, error) {
	var row E
	if err := r.client.Do(ctx, http.MethodPut, r.itemPath(id), nil, req, &row); err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *Resource[E, R]) Delete(ctx context.Context, id uint) error {
	return r.client.Do(ctx, http.MethodDelete, r.itemPath(id), nil, nil, nil)
}

func (r *Resource[E, R]) itemPath(id uint) string {
	return r.path + "/" + strconv.FormatUint(uint64(id), 10)
}
