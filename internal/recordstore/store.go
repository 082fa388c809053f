// Package recordstore is the upsert-capable record store behind the reference
// remote service. Rows are schemaless JSON objects keyed per collection by id
// (by code for languages); deletes only flag rows.
package recordstore

import (
	"context"
	"errors"
	"fmt"

	"arksync/pkg/domain"
)

// Row is one remote record in snake_case column naming.
type Row = map[string]any

// DeletedColumn is the soft-delete flag carried by every row.
const DeletedColumn = "is_deleted"

var (
	// ErrUnknownCollection rejects a collection the service does not serve.
	ErrUnknownCollection = errors.New("unknown collection")
	// ErrMissingKey rejects a row without its key column.
	ErrMissingKey = errors.New("row is missing its key")
	// ErrNotFound reports a delete of a key that was never written.
	ErrNotFound = errors.New("record not found")
	// ErrNotProvisioned reports a store whose table or grants are missing.
	ErrNotProvisioned = errors.New("schema not provisioned")
)

// Collections lists every remote collection in a stable order.
var Collections = []string{
	domain.RemoteOrganizations,
	string(domain.CollectionUsers),
	string(domain.CollectionProjects),
	string(domain.CollectionSpecies),
	string(domain.CollectionIndividuals),
	string(domain.CollectionBreedingEvents),
	string(domain.CollectionLoans),
	string(domain.CollectionPartnerships),
	string(domain.CollectionLanguages),
	string(domain.CollectionSettings),
}

// KeyField returns the key column of collection, or ErrUnknownCollection.
func KeyField(collection string) (string, error) {
	for _, c := range Collections {
		if c == collection {
			return domain.Collection(c).KeyField(), nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownCollection, collection)
}

// Store is the remote record store contract.
type Store interface {
	// Upsert inserts rows or merges their columns into existing rows with the
	// same key. It returns the number of rows written.
	Upsert(ctx context.Context, collection string, rows []Row) (int, error)
	// SoftDelete flags the row with the given key as deleted.
	SoftDelete(ctx context.Context, collection, key string) error
	// List returns every row of collection, deleted ones included.
	List(ctx context.Context, collection string) ([]Row, error)
	// Snapshot returns every collection, deleted rows included.
	Snapshot(ctx context.Context) (map[string][]Row, error)
	// Provision creates whatever schema the store needs.
	Provision(ctx context.Context) error
	Close() error
}

// Driver identifies a Store implementation.
type Driver string

const (
	DriverMemory   Driver = "memory"
	DriverPostgres Driver = "postgres"
)

// Open returns a Store for driver. dsn is only used by postgres.
func Open(driver, dsn string) (Store, error) {
	switch Driver(driver) {
	case "", DriverMemory:
		return NewMemoryStore(), nil
	case DriverPostgres:
		return NewPostgresStore(dsn)
	default:
		return nil, fmt.Errorf("unknown record store driver %s", driver)
	}
}

func keyOf(row Row, field string) (string, error) {
	v, ok := row[field].(string)
	if !ok || v == "" {
		return "", fmt.Errorf("%w: %s", ErrMissingKey, field)
	}
	return v, nil
}

func deletedFlag(row Row) (bool, bool) {
	v, ok := row[DeletedColumn].(bool)
	return v, ok
}
