package ports

import (
	"context"
	"errors"
	"time"

	"nffg-orchestrator/domain/nffg"
)

// ErrStatusConflict is returned by CompareAndSwapStatus when the stored
// status no longer matches the expected one, i.e. another operation won
// the race. The engine translates it into a caller-visible kind.
var ErrStatusConflict = errors.New("graph status changed concurrently")

// GraphRecord is the durable state for one graph identity. The store
// exclusively owns persisted records; the engine holds a working copy
// for the duration of one operation and writes back atomically.
type GraphRecord struct {
	TenantID       string
	GraphID        string
	Definition     *nffg.GraphDocument
	Status         nffg.Status
	ControllerRefs []string
	LastError      string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// GraphStore persists graph records keyed by (tenant, graph identity).
//
// Implementations must provide conditional-write semantics: the engine
// relies on CreateIfAbsent and CompareAndSwapStatus to keep at most one
// mutation in flight per identity without a separate lock manager.
type GraphStore interface {
	// CreateIfAbsent stores a new record, failing with KindAlreadyExists
	// if any record for the graph identity exists.
	CreateIfAbsent(ctx context.Context, record *GraphRecord) error

	// Read returns the record owned by the tenant, or KindNotFound.
	Read(ctx context.Context, tenantID, graphID string) (*GraphRecord, error)

	// ReadByGraphID looks a record up regardless of tenant. It exists
	// only for the cross-tenant ownership check on Put and must never
	// leak into read paths exposed to callers.
	ReadByGraphID(ctx context.Context, graphID string) (*GraphRecord, error)

	// CompareAndSwapStatus atomically replaces the record if its stored
	// status equals expected, failing with ErrStatusConflict otherwise.
	CompareAndSwapStatus(ctx context.Context, expected nffg.Status, record *GraphRecord) error

	// Delete physically removes the record. Only called by the
	// retention policy; lifecycle deletion is a status transition.
	Delete(ctx context.Context, tenantID, graphID string) error
}
