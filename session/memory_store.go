package session

import (
	"context"
	"crypto/subtle"
	"fmt"
	"sync"
	"time"

	brokererrors "github.com/idbroker/broker/internal/errors"
)

type entry struct {
	record  Record
	expires time.Time
}

// MemoryStore is an in-process Store for tests and single-instance runs
// without Redis. A single mutex makes VerifyAndConsume trivially atomic.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

// Ping always succeeds: there is no remote connection to check.
func (s *MemoryStore) Ping(_ context.Context) error {
	return nil
}

func (s *MemoryStore) Put(_ context.Context, id string, record Record, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[id]; ok && s.now().Before(e.expires) {
		return fmt.Errorf("session id collision: %s", id)
	}

	s.entries[id] = entry{record: record, expires: s.now().Add(ttl)}
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok || !s.now().Before(e.expires) {
		delete(s.entries, id)
		return Record{}, brokererrors.ErrNotFound
	}
	return e.record, nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, id)
	return nil
}

func (s *MemoryStore) VerifyAndConsume(_ context.Context, id, code string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok || !s.now().Before(e.expires) {
		delete(s.entries, id)
		return Record{}, brokererrors.ErrNotFound
	}

	if subtle.ConstantTimeCompare([]byte(e.record.Code), []byte(code)) != 1 {
		return Record{}, brokererrors.ErrMismatch
	}

	delete(s.entries, id)
	return e.record, nil
}
