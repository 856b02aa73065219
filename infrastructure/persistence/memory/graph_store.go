// Package memory provides an in-memory GraphStore for tests and local
// development. It honors the same conditional-write contract as the
// DynamoDB store.
package memory

import (
	"context"
	"sync"

	"nffg-orchestrator/application/ports"
	"nffg-orchestrator/domain/nffg"
	"nffg-orchestrator/pkg/errors"
)

// GraphStore keeps graph records in a mutex-guarded map
type GraphStore struct {
	mu      sync.RWMutex
	records map[string]*ports.GraphRecord // keyed by graph identity
}

// NewGraphStore creates an empty in-memory store
func NewGraphStore() *GraphStore {
	return &GraphStore{records: make(map[string]*ports.GraphRecord)}
}

// CreateIfAbsent stores a new record unless the identity is taken
func (s *GraphStore) CreateIfAbsent(_ context.Context, record *ports.GraphRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[record.GraphID]; exists {
		return errors.NewAlreadyExistsError(record.GraphID)
	}
	s.records[record.GraphID] = snapshot(record)
	return nil
}

// Read returns the tenant's record or NotFound
func (s *GraphStore) Read(_ context.Context, tenantID, graphID string) (*ports.GraphRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, exists := s.records[graphID]
	if !exists || record.TenantID != tenantID {
		return nil, errors.NewNotFoundError("graph " + graphID)
	}
	return snapshot(record), nil
}

// ReadByGraphID returns the record regardless of owner, for the
// cross-tenant ownership check on Put
func (s *GraphStore) ReadByGraphID(_ context.Context, graphID string) (*ports.GraphRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, exists := s.records[graphID]
	if !exists {
		return nil, errors.NewNotFoundError("graph " + graphID)
	}
	return snapshot(record), nil
}

// CompareAndSwapStatus replaces the record only if the stored status
// still matches the expected one
func (s *GraphStore) CompareAndSwapStatus(_ context.Context, expected nffg.Status, record *ports.GraphRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.records[record.GraphID]
	if !exists || current.TenantID != record.TenantID {
		return errors.NewNotFoundError("graph " + record.GraphID)
	}
	if current.Status != expected {
		return ports.ErrStatusConflict
	}
	s.records[record.GraphID] = snapshot(record)
	return nil
}

// Delete physically removes the record
func (s *GraphStore) Delete(_ context.Context, tenantID, graphID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, exists := s.records[graphID]
	if !exists || record.TenantID != tenantID {
		return errors.NewNotFoundError("graph " + graphID)
	}
	delete(s.records, graphID)
	return nil
}

// snapshot copies a record so callers never share mutable state with
// the store
func snapshot(record *ports.GraphRecord) *ports.GraphRecord {
	copied := *record
	copied.ControllerRefs = append([]string(nil), record.ControllerRefs...)
	return &copied
}
