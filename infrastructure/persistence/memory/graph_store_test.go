package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nffg-orchestrator/application/ports"
	"nffg-orchestrator/domain/nffg"
	"nffg-orchestrator/pkg/errors"
)

func testRecord(tenantID, graphID string, status nffg.Status) *ports.GraphRecord {
	now := time.Now().UTC()
	return &ports.GraphRecord{
		TenantID:  tenantID,
		GraphID:   graphID,
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestGraphStore_CreateIfAbsent(t *testing.T) {
	ctx := context.Background()
	store := NewGraphStore()

	require.NoError(t, store.CreateIfAbsent(ctx, testRecord("tenant-a", "g1", nffg.StatusPending)))

	err := store.CreateIfAbsent(ctx, testRecord("tenant-a", "g1", nffg.StatusPending))
	assert.True(t, errors.IsKind(err, errors.KindAlreadyExists))
}

func TestGraphStore_CreateIfAbsent_IdentityIsGlobal(t *testing.T) {
	ctx := context.Background()
	store := NewGraphStore()

	require.NoError(t, store.CreateIfAbsent(ctx, testRecord("tenant-a", "g1", nffg.StatusPending)))

	// A different tenant cannot claim an identity that is already taken.
	err := store.CreateIfAbsent(ctx, testRecord("tenant-b", "g1", nffg.StatusPending))
	assert.True(t, errors.IsKind(err, errors.KindAlreadyExists))

	record, readErr := store.ReadByGraphID(ctx, "g1")
	require.NoError(t, readErr)
	assert.Equal(t, "tenant-a", record.TenantID)
}

func TestGraphStore_Read(t *testing.T) {
	ctx := context.Background()
	store := NewGraphStore()
	require.NoError(t, store.CreateIfAbsent(ctx, testRecord("tenant-a", "g1", nffg.StatusActive)))

	record, err := store.Read(ctx, "tenant-a", "g1")
	require.NoError(t, err)
	assert.Equal(t, nffg.StatusActive, record.Status)

	// Unknown graph and foreign tenant both read as NotFound
	_, err = store.Read(ctx, "tenant-a", "g2")
	assert.True(t, errors.IsNotFound(err))
	_, err = store.Read(ctx, "tenant-b", "g1")
	assert.True(t, errors.IsNotFound(err))
}

func TestGraphStore_ReadByGraphID(t *testing.T) {
	ctx := context.Background()
	store := NewGraphStore()
	require.NoError(t, store.CreateIfAbsent(ctx, testRecord("tenant-a", "g1", nffg.StatusActive)))

	record, err := store.ReadByGraphID(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, "tenant-a", record.TenantID)

	_, err = store.ReadByGraphID(ctx, "g2")
	assert.True(t, errors.IsNotFound(err))
}

func TestGraphStore_CompareAndSwapStatus(t *testing.T) {
	ctx := context.Background()
	store := NewGraphStore()
	require.NoError(t, store.CreateIfAbsent(ctx, testRecord("tenant-a", "g1", nffg.StatusPending)))

	updated := testRecord("tenant-a", "g1", nffg.StatusActive)
	updated.ControllerRefs = []string{"f1"}
	require.NoError(t, store.CompareAndSwapStatus(ctx, nffg.StatusPending, updated))

	record, err := store.Read(ctx, "tenant-a", "g1")
	require.NoError(t, err)
	assert.Equal(t, nffg.StatusActive, record.Status)
	assert.Equal(t, []string{"f1"}, record.ControllerRefs)

	// The fence: a swap against a stale expectation fails
	stale := testRecord("tenant-a", "g1", nffg.StatusDeleting)
	err = store.CompareAndSwapStatus(ctx, nffg.StatusPending, stale)
	assert.ErrorIs(t, err, ports.ErrStatusConflict)

	err = store.CompareAndSwapStatus(ctx, nffg.StatusActive, testRecord("tenant-a", "g2", nffg.StatusDeleting))
	assert.True(t, errors.IsNotFound(err))
}

func TestGraphStore_Delete(t *testing.T) {
	ctx := context.Background()
	store := NewGraphStore()
	require.NoError(t, store.CreateIfAbsent(ctx, testRecord("tenant-a", "g1", nffg.StatusDeleted)))

	require.NoError(t, store.Delete(ctx, "tenant-a", "g1"))

	_, err := store.Read(ctx, "tenant-a", "g1")
	assert.True(t, errors.IsNotFound(err))

	assert.True(t, errors.IsNotFound(store.Delete(ctx, "tenant-a", "g1")))
}

// Returned records are snapshots; mutating them must not leak back into
// the store.
func TestGraphStore_SnapshotIsolation(t *testing.T) {
	ctx := context.Background()
	store := NewGraphStore()
	seed := testRecord("tenant-a", "g1", nffg.StatusActive)
	seed.ControllerRefs = []string{"f1"}
	require.NoError(t, store.CreateIfAbsent(ctx, seed))

	record, err := store.Read(ctx, "tenant-a", "g1")
	require.NoError(t, err)
	record.Status = nffg.StatusDeleted
	record.ControllerRefs[0] = "mutated"

	fresh, err := store.Read(ctx, "tenant-a", "g1")
	require.NoError(t, err)
	assert.Equal(t, nffg.StatusActive, fresh.Status)
	assert.Equal(t, []string{"f1"}, fresh.ControllerRefs)
}
