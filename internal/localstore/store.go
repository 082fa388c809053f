// Package localstore is the durable key-value cache holding one JSON document
// per synchronized collection. Reads never fail: a missing or undecodable
// entry yields the caller's default.
package localstore

import (
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"arksync/internal/logging"
)

// Store wraps a Backend with typed, parse-or-default access.
type Store struct {
	backend Backend
	logger  *zap.Logger
}

// New returns a Store over backend.
func New(backend Backend, logger *zap.Logger) *Store {
	return &Store{backend: backend, logger: logging.OrNop(logger)}
}

// Get decodes the entry under key into a T. Missing keys, backend read errors
// and corrupt or incompatible JSON all return def.
func Get[T any](s *Store, key string, def T) T {
	raw, ok, err := s.backend.Read(key)
	if err != nil {
		s.logger.Warn("local read failed, using default", zap.String("key", key), zap.Error(err))
		return def
	}
	if !ok || raw == "" {
		return def
	}
	var out T
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		s.logger.Debug("local entry undecodable, using default", zap.String("key", key), zap.Error(err))
		return def
	}
	return out
}

// Set encodes value and overwrites the entry under key.
func Set[T any](s *Store, key string, value T) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := s.backend.Write(key, string(data)); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

// Raw returns the stored string under key without decoding.
func (s *Store) Raw(key string) (string, bool) {
	raw, ok, err := s.backend.Read(key)
	if err != nil {
		return "", false
	}
	return raw, ok
}

// PutRaw stores value verbatim under key.
func (s *Store) PutRaw(key, value string) error {
	if err := s.backend.Write(key, value); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

// Keys lists every stored key.
func (s *Store) Keys() ([]string, error) {
	return s.backend.Keys()
}

// Close releases the backend.
func (s *Store) Close() error {
	return s.backend.Close()
}
