// Package keystore loads the deployment's note encryption key, generating and
// persisting it exactly once on first start.
package keystore

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/and161185/notekeeper/internal/errs"
	"github.com/and161185/notekeeper/internal/metrics"
)

// Backend is durable storage for a single key.
type Backend interface {
	// Load returns the persisted key or errs.ErrNotFound.
	Load(ctx context.Context) ([]byte, error)
	// CreateExclusive persists key unless one already exists, in which case it
	// returns errs.ErrAlreadyExists and leaves the stored key untouched.
	CreateExclusive(ctx context.Context, key []byte) error
	// String names the location for logs.
	String() string
}

// Store hands out the one active key of a deployment.
type Store struct {
	backend Backend
	size    int
	log     *zap.Logger

	mu  sync.Mutex
	key []byte
}

// New constructs a Store that expects keys of size bytes.
func New(backend Backend, size int, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{backend: backend, size: size, log: log}
}

// Key loads the persisted key, creating it on first use. Errors wrap errs.ErrKeyUnavailable.
func (s *Store) Key(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.key == nil {
		key, err := s.loadOrCreate(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", errs.ErrKeyUnavailable, s.backend, err)
		}
		s.key = key
	}
	return append([]byte(nil), s.key...), nil
}

func (s *Store) loadOrCreate(ctx context.Context) ([]byte, error) {
	key, err := s.backend.Load(ctx)
	switch {
	case err == nil:
		return s.checked(key)
	case !errors.Is(err, errs.ErrNotFound):
		return nil, err
	}

	fresh := make([]byte, s.size)
	if _, err := rand.Read(fresh); err != nil {
		return nil, fmt.Errorf("generate: %w", err)
	}
	err = s.backend.CreateExclusive(ctx, fresh)
	switch {
	case err == nil:
		metrics.KeysGenerated.Inc()
		s.log.Warn("generated a new encryption key; back it up, notes cannot be read without it",
			zap.String("location", s.backend.String()))
		return fresh, nil
	case errors.Is(err, errs.ErrAlreadyExists):
		// lost the race: the winner's key is authoritative
		clear(fresh)
		s.log.Info("encryption key created concurrently, using persisted one",
			zap.String("location", s.backend.String()))
		key, err := s.backend.Load(ctx)
		if err != nil {
			return nil, err
		}
		return s.checked(key)
	default:
		clear(fresh)
		return nil, err
	}
}

func (s *Store) checked(key []byte) ([]byte, error) {
	if len(key) != s.size {
		return nil, fmt.Errorf("stored key is %d bytes, want %d", len(key), s.size)
	}
	return key, nil
}

// LoadOrCreateFile returns the key kept at path, creating it when missing.
func LoadOrCreateFile(ctx context.Context, path string, size int, log *zap.Logger) ([]byte, error) {
	return New(&FileBackend{Path: path}, size, log).Key(ctx)
}
