package kvstore

import (
	"context"
	"sync"
)

// MemoryStore keeps values in a map. It is used for tests and for the
// "memory" backend, which does not survive a restart.
type MemoryStore struct {
	mu     sync.RWMutex
	data   map[string]string
	closed bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]string)}
}

// Get returns the value stored under key.
func (s *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return "", false, ErrClosed
	}
	v, ok := s.data[key]
	return v, ok, nil
}

// Set stores value under key, replacing any previous value.
func (s *MemoryStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	s.data[key] = value
	return nil
}

// Remove deletes key. Removing a missing key is not an error.
func (s *MemoryStore) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	delete(s.data, key)
	return nil
}

// Close marks the store closed.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// FailingStore wraps a Store and fails selected operations on demand.
// Tests use it to exercise the fail-open paths.
type FailingStore struct {
	Store

	mu      sync.Mutex
	getErr  error
	setErr  error
	sets    int
	removes int
}

// NewFailingStore wraps inner.
func NewFailingStore(inner Store) *FailingStore {
	return &FailingStore{Store: inner}
}

// FailGet makes every Get return err until it is called with nil.
func (f *FailingStore) FailGet(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getErr = err
}

// FailWrites makes every Set and Remove return err until it is called
// with nil.
func (f *FailingStore) FailWrites(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setErr = err
}

// Writes returns the number of Set and Remove calls attempted so far.
func (f *FailingStore) Writes() (sets, removes int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sets, f.removes
}

// Get fails with the configured error or delegates.
func (f *FailingStore) Get(ctx context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	err := f.getErr
	f.mu.Unlock()
	if err != nil {
		return "", false, err
	}
	return f.Store.Get(ctx, key)
}

// Set fails with the configured error or delegates.
func (f *FailingStore) Set(ctx context.Context, key, value string) error {
	f.mu.Lock()
	f.sets++
	err := f.setErr
	f.mu.Unlock()
	if err != nil {
		return err
	}
	return f.Store.Set(ctx, key, value)
}

// Remove fails with the configured error or delegates.
func (f *FailingStore) Remove(ctx context.Context, key string) error {
	f.mu.Lock()
	f.removes++
	err := f.setErr
	f.mu.Unlock()
	if err != nil {
		return err
	}
	return f.Store.Remove(ctx, key)
}
