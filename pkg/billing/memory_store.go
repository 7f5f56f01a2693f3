package billing

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store for tests and local development.
// A single mutex stands in for the document store's per-document atomicity.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[uuid.UUID]*Record
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[uuid.UUID]*Record)}
}

// Put seeds a record, overwriting any existing one for the user.
func (s *MemoryStore) Put(rec *Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *rec
	s.records[rec.UserID] = &cp
}

func (s *MemoryStore) Get(ctx context.Context, userID uuid.UUID) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[userID]
	if !ok {
		return nil, ErrRecordNotFound
	}
	cp := *rec
	return &cp, nil
}

func (s *MemoryStore) FindBySubscriptionID(ctx context.Context, subscriptionID string) (*Record, error) {
	if subscriptionID == "" {
		return nil, ErrRecordNotFound
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, rec := range s.records {
		if rec.SubscriptionID == subscriptionID {
			cp := *rec
			return &cp, nil
		}
	}
	return nil, ErrRecordNotFound
}

func (s *MemoryStore) SetCustomerID(ctx context.Context, userID uuid.UUID, customerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[userID]
	if !ok {
		return ErrRecordNotFound
	}
	// First persisted reference wins; repeats are no-ops.
	if rec.CustomerID != "" {
		return nil
	}
	rec.CustomerID = customerID
	rec.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryStore) ApplyCheckout(ctx context.Context, userID uuid.UUID, attach CheckoutAttach) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[userID]
	if !ok {
		return ErrRecordNotFound
	}

	rec.SubscriptionID = attach.SubscriptionID
	if rec.CustomerID == "" {
		rec.CustomerID = attach.CustomerID
	}
	rec.PlanID = attach.PlanID
	rec.PlanKind = attach.PlanKind
	rec.Status = attach.Status
	rec.ExpiresAt = attach.ExpiresAt
	if attach.PlanKind == PlanTrial {
		rec.TrialAvailable = false
		rec.TrialUsed = true
	}
	rec.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryStore) ApplyRenewal(ctx context.Context, subscriptionID string, status Status, expiresAt *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.bySubLocked(subscriptionID)
	if rec == nil {
		return ErrRecordNotFound
	}
	rec.Status = status
	rec.ExpiresAt = expiresAt
	rec.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryStore) ApplyPlanChange(ctx context.Context, subscriptionID string, status Status, expiresAt *time.Time, planID string, kind PlanKind) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.bySubLocked(subscriptionID)
	if rec == nil {
		return ErrRecordNotFound
	}
	rec.Status = status
	rec.ExpiresAt = expiresAt
	rec.PlanID = planID
	rec.PlanKind = kind
	rec.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryStore) ApplyCancellation(ctx context.Context, subscriptionID string, endedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.bySubLocked(subscriptionID)
	if rec == nil {
		return ErrRecordNotFound
	}
	rec.SubscriptionID = ""
	rec.PlanID = ""
	rec.PlanKind = ""
	rec.Status = StatusCanceled
	rec.ExpiresAt = &endedAt
	rec.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryStore) bySubLocked(subscriptionID string) *Record {
	if subscriptionID == "" {
		return nil
	}
	for _, rec := range s.records {
		if rec.SubscriptionID == subscriptionID {
			return rec
		}
	}
	return nil
}
