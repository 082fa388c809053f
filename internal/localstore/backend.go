package localstore

import (
	"fmt"

	"go.uber.org/zap"
)

// Driver identifies a Backend implementation.
type Driver string

const (
	DriverSQLite Driver = "sqlite" // embedded sqlite file (default)
	DriverMemory Driver = "memory" // process memory (tests, ephemeral)
)

// Backend is the raw string-keyed storage beneath Store.
type Backend interface {
	// Read returns the value under key and whether it exists.
	Read(key string) (string, bool, error)
	// Write replaces the value under key.
	Write(key, value string) error
	// Keys lists stored keys in ascending order.
	Keys() ([]string, error)
	Close() error
}

// Open builds a Store for the named driver. path is only used by sqlite and
// falls back to ./arksync.db when empty.
func Open(driver, path string, logger *zap.Logger) (*Store, error) {
	if driver == "" {
		driver = string(DriverSQLite)
	}
	switch Driver(driver) {
	case DriverMemory:
		return New(NewMemoryBackend(), logger), nil
	case DriverSQLite:
		b, err := NewSQLiteBackend(path)
		if err != nil {
			return nil, err
		}
		return New(b, logger), nil
	default:
		return nil, fmt.Errorf("unknown store driver %s", driver)
	}
}
