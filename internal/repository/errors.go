package repository

import (
	"errors"
	"fmt"
)

var (
	// ErrSuperseded means local mutations kept landing while a refresh was
	// fetching, so its result was discarded.
	ErrSuperseded = errors.New("refresh superseded by local writes")

	// ErrScopeMismatch means a scope list contained a row of another scope.
	ErrScopeMismatch = errors.New("row does not belong to the refreshed scope")

	// ErrIncompleteResponse means the server accepted a mutation but returned
	// no row to store.
	ErrIncompleteResponse = errors.New("server returned no row")
)

// RemoteError is a failed call to the remote API. Local state was not touched.
type RemoteError struct {
	Entity string
	Op     string
	Err    error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s %s: remote: %v", e.Entity, e.Op, e.Err)
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

// StoreError is a failed local store operation after a successful remote call.
type StoreError struct {
	Entity string
	Op     string
	Err    error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s %s: local store: %v", e.Entity, e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}
