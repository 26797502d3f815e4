package orders

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is the journal used when no database is configured.
// Dedupe then only holds for the lifetime of the process.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]Order
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]Order)}
}

func (s *MemoryStore) Reserve(_ context.Context, idemKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[idemKey]; ok {
		return ErrDuplicate
	}
	now := time.Now().UTC()
	s.entries[idemKey] = Order{IdemKey: idemKey, Status: StatusCreated, CreatedAt: now, UpdatedAt: now}
	return nil
}

func (s *MemoryStore) Record(_ context.Context, o Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.entries[o.IdemKey]
	if ok {
		o.CreatedAt = existing.CreatedAt
	} else if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
	}
	if o.Status == "" {
		o.Status = StatusCreated
	}
	o.UpdatedAt = time.Now().UTC()
	s.entries[o.IdemKey] = o
	return nil
}

func (s *MemoryStore) RecordStatus(_ context.Context, trxID string, status Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, o := range s.entries {
		if o.TrxID == trxID {
			o.Status = status
			o.UpdatedAt = time.Now().UTC()
			s.entries[key] = o
			return nil
		}
	}
	// Unknown references are recorded so webhook history survives
	// journal entries created by other bot instances.
	now := time.Now().UTC()
	s.entries["trx:"+trxID] = Order{IdemKey: "trx:" + trxID, TrxID: trxID, Status: status, CreatedAt: now, UpdatedAt: now}
	return nil
}

func (s *MemoryStore) Count(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries), nil
}
