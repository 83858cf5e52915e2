// Package catalog builds one sync repository per cached entity type.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/vetrecords/vetsync/internal/database"
	"github.com/vetrecords/vetsync/internal/database/syncstate"
	"github.com/vetrecords/vetsync/internal/entities"
	"github.com/vetrecords/vetsync/internal/refresh"
	"github.com/vetrecords/vetsync/internal/remote"
	"github.com/vetrecords/vetsync/internal/repository"
)

// ErrUnknownEntity is returned for an entity name the catalog does not serve.
var ErrUnknownEntity = errors.New("unknown entity")

// Spec describes how one entity type is stored locally and served remotely.
type Spec struct {
	// Name is the local table name and the key used everywhere else.
	Name string
	// Path is the remote collection.
	Path string
	// ScopeParam is the remote query parameter selecting a scope.
	ScopeParam string
	// ScopeColumn is the local partition column.
	ScopeColumn string
}

// Scoped reports whether the entity is partitioned.
func (s Spec) Scoped() bool {
	return s.ScopeColumn != ""
}

var (
	AnimalSpec       = Spec{Name: "animals", Path: "/animais", ScopeParam: "tutorId", ScopeColumn: entities.AnimalScopeColumn}
	ExamSpec         = Spec{Name: "exams", Path: "/exames", ScopeParam: "animalId", ScopeColumn: entities.ExamScopeColumn}
	VaccineSpec      = Spec{Name: "vaccines", Path: "/vacinas", ScopeParam: "animalId", ScopeColumn: entities.VaccineScopeColumn}
	ConsultationSpec = Spec{Name: "consultations", Path: "/consultas", ScopeParam: "userId", ScopeColumn: entities.ConsultationScopeColumn}
	ClinicSpec       = Spec{Name: "clinics", Path: "/clinicas"}
	VeterinarianSpec = Spec{Name: "veterinarians", Path: "/veterinarios", ScopeParam: "clinicaId", ScopeColumn: entities.VeterinarianScopeColumn}
	UserSpec         = Spec{Name: "users", Path: "/usuarios"}
)

// Specs lists every entity served by the catalog.
var Specs = []Spec{AnimalSpec, ExamSpec, VaccineSpec, ConsultationSpec, ClinicSpec, VeterinarianSpec, UserSpec}

// Refresher is the untyped part of a repository, used by the scheduler,
// the task queue and the CLI.
type Refresher interface {
	Entity() string
	RefreshScope(ctx context.Context, scope uint) error
}

type Catalog struct {
	Animals       *repository.Repository[entities.Animal, entities.AnimalRequest]
	Exams         *repository.Repository[entities.Exam, entities.ExamRequest]
	Vaccines      *repository.Repository[entities.Vaccine, entities.VaccineRequest]
	Consultations *repository.Repository[entities.Consultation, entities.ConsultationRequest]
	Clinics       *repository.Repository[entities.Clinic, entities.ClinicRequest]
	Veterinarians *repository.Repository[entities.Veterinarian, entities.VeterinarianRequest]
	Users         *repository.Repository[entities.User, entities.UserRequest]

	Ledger *syncstate.Repository

	refreshers map[string]Refresher
	closers    []func()
}

// New wires every repository to the shared store, client and coordinator.
func New(db *database.Database, client *remote.Client, coord *refresh.Coordinator) (*Catalog, error) {
	c := &Catalog{
		Ledger:     syncstate.NewRepository(db.DB),
		refreshers: make(map[string]Refresher),
	}

	var err error
	if c.Animals, err = build[entities.Animal, entities.AnimalRequest](c, db, client, coord, AnimalSpec); err != nil {
		return nil, err
	}
	if c.Exams, err = build[entities.Exam, entities.ExamRequest](c, db, client, coord, ExamSpec); err != nil {
		return nil, err
	}
	if c.Vaccines, err = build[entities.Vaccine, entities.VaccineRequest](c, db, client, coord, VaccineSpec); err != nil {
		return nil, err
	}
	if c.Consultations, err = build[entities.Consultation, entities.ConsultationRequest](c, db, client, coord, ConsultationSpec); err != nil {
		return nil, err
	}
	if c.Clinics, err = build[entities.Clinic, entities.ClinicRequest](c, db, client, coord, ClinicSpec); err != nil {
		return nil, err
	}
	if c.Veterinarians, err = build[entities.Veterinarian, entities.VeterinarianRequest](c, db, client, coord, VeterinarianSpec); err != nil {
		return nil, err
	}
	if c.Users, err = build[entities.User, entities.UserRequest](c, db, client, coord, UserSpec); err != nil {
		return nil, err
	}
	return c, nil
}

func build[E database.Record, R any](c *Catalog, db *database.Database, client *remote.Client, coord *refresh.Coordinator, spec Spec) (*repository.Repository[E, R], error) {
	table, err := database.NewTable[E](db, database.TableConfig{ScopeColumn: spec.ScopeColumn})
	if err != nil {
		return nil, fmt.Errorf("failed to create %s table: %w", spec.Name, err)
	}
	repo := repository.New(repository.Config[E, R]{
		Entity:    spec.Name,
		Store:     table,
		Source:    remote.NewResource[E, R](client, spec.Path, spec.ScopeParam),
		Scheduler: coord,
		Ledger:    c.Ledger,
	})
	c.refreshers[spec.Name] = repo
	c.closers = append(c.closers, repo.Close)
	return repo, nil
}

// Refresher returns the repository of entity.
func (c *Catalog) Refresher(entity string) (Refresher, error) {
	r, ok := c.refreshers[entity]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEntity, entity)
	}
	return r, nil
}

// RefreshScope refreshes one scope of the named entity.
func (c *Catalog) RefreshScope(ctx context.Context, entity string, scope uint) error {
	r, err := c.Refresher(entity)
	if err != nil {
		return err
	}
	return r.RefreshScope(ctx, scope)
}

// Entities returns the served entity names, sorted.
func (c *Catalog) Entities() []string {
	names := make([]string, 0, len(c.refreshers))
	for name := range c.refreshers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SpecFor returns the spec of a served entity.
func SpecFor(entity string) (Spec, bool) {
	for _, s := range Specs {
		if s.Name == entity {
			return s, true
		}
	}
	return Spec{}, false
}

// Close ends every open stream of every repository.
func (c *Catalog) Close() {
	for _, closeFn := range c.closers {
		closeFn()
	}
}
