package orchestrator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"nffg-orchestrator/application/ports"
	"nffg-orchestrator/domain/nffg"
	"nffg-orchestrator/domain/validation"
	"nffg-orchestrator/infrastructure/persistence/memory"
	"nffg-orchestrator/pkg/auth"
	"nffg-orchestrator/pkg/errors"
)

// MockControllerAdapter is a testify mock over the controller port
type MockControllerAdapter struct {
	mock.Mock
}

func (m *MockControllerAdapter) Deploy(ctx context.Context, tenantID string, graph *nffg.Graph) ([]string, error) {
	args := m.Called(ctx, tenantID, graph)
	if refs := args.Get(0); refs != nil {
		return refs.([]string), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockControllerAdapter) Undeploy(ctx context.Context, tenantID, graphID string, refs []string) error {
	args := m.Called(ctx, tenantID, graphID, refs)
	return args.Error(0)
}

func (m *MockControllerAdapter) Probe(ctx context.Context, tenantID, graphID string) (*ports.DeploymentState, error) {
	args := m.Called(ctx, tenantID, graphID)
	if state := args.Get(0); state != nil {
		return state.(*ports.DeploymentState), args.Error(1)
	}
	return nil, args.Error(1)
}

func testTenant(id string) *auth.TenantContext {
	return &auth.TenantContext{TenantID: id, Username: id + "-user"}
}

func testGraph(t *testing.T, id string) *nffg.Graph {
	t.Helper()
	g, err := nffg.NewGraph(id, "test graph",
		[]nffg.Node{
			{ID: "fw", Type: nffg.NodeTypeVNF, Ports: []nffg.Port{{ID: "in"}, {ID: "out"}}},
			{ID: "wan", Type: nffg.NodeTypeEndpoint, Ports: []nffg.Port{{ID: "p0"}}, Interface: "eth0"},
		},
		[]nffg.Edge{
			{ID: "r1", From: nffg.PortRef{NodeID: "fw", PortID: "out"}, To: nffg.PortRef{NodeID: "wan", PortID: "p0"}},
		})
	require.NoError(t, err)
	return g
}

func danglingGraph(t *testing.T, id string) *nffg.Graph {
	t.Helper()
	g, err := nffg.NewGraph(id, "broken graph",
		[]nffg.Node{
			{ID: "fw", Type: nffg.NodeTypeVNF, Ports: []nffg.Port{{ID: "in"}}},
		},
		[]nffg.Edge{
			{ID: "r1", From: nffg.PortRef{NodeID: "fw", PortID: "in"}, To: nffg.PortRef{NodeID: "nat", PortID: "p0"}},
		})
	require.NoError(t, err)
	return g
}

func newTestEngine(store ports.GraphStore, adapter ports.ControllerAdapter, cfg Config) *Engine {
	if cfg.AdapterTimeout == 0 {
		cfg.AdapterTimeout = time.Second
	}
	if cfg.StaleAfter == 0 {
		cfg.StaleAfter = time.Minute
	}
	return NewEngine(store, adapter, validation.NewValidator(), cfg, zap.NewNop(), nil, nil)
}

// seedRecord plants a record with the given status directly in the store
func seedRecord(t *testing.T, store ports.GraphStore, tenantID string, graph *nffg.Graph, status nffg.Status, refs []string, age time.Duration) {
	t.Helper()
	now := time.Now().UTC().Add(-age)
	record := &ports.GraphRecord{
		TenantID:       tenantID,
		GraphID:        graph.ID(),
		Definition:     nffg.FromModel(graph),
		Status:         status,
		ControllerRefs: refs,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	require.NoError(t, store.CreateIfAbsent(context.Background(), record))
}

func TestEngine_Put_Success(t *testing.T) {
	// Arrange
	ctx := context.Background()
	store := memory.NewGraphStore()
	adapter := new(MockControllerAdapter)
	engine := newTestEngine(store, adapter, Config{})
	tenant := testTenant("tenant-a")
	graph := testGraph(t, "g1")

	adapter.On("Deploy", mock.Anything, "tenant-a", graph).Return([]string{"f1"}, nil)

	// Act
	record, err := engine.Put(ctx, tenant, graph)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, nffg.StatusActive, record.Status)
	assert.Equal(t, []string{"f1"}, record.ControllerRefs)

	stored, err := engine.Get(ctx, tenant, "g1")
	require.NoError(t, err)
	assert.Equal(t, nffg.StatusActive, stored.Status)
	assert.Equal(t, "g1", stored.Definition.ForwardingGraph.ID)
	adapter.AssertExpectations(t)
}

func TestEngine_Put_InvalidGraphLeavesNoRecord(t *testing.T) {
	// Arrange
	ctx := context.Background()
	store := memory.NewGraphStore()
	adapter := new(MockControllerAdapter)
	engine := newTestEngine(store, adapter, Config{})
	tenant := testTenant("tenant-a")

	// Act
	_, err := engine.Put(ctx, tenant, danglingGraph(t, "g1"))

	// Assert
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindDanglingEdge))

	_, getErr := engine.Get(ctx, tenant, "g1")
	assert.True(t, errors.IsNotFound(getErr))
	adapter.AssertNotCalled(t, "Deploy", mock.Anything, mock.Anything, mock.Anything)
}

func TestEngine_Put_DuplicateIdentity(t *testing.T) {
	// Arrange
	ctx := context.Background()
	store := memory.NewGraphStore()
	adapter := new(MockControllerAdapter)
	engine := newTestEngine(store, adapter, Config{})
	tenant := testTenant("tenant-a")
	graph := testGraph(t, "g1")
	seedRecord(t, store, "tenant-a", graph, nffg.StatusActive, []string{"f1"}, 0)

	// Act
	_, err := engine.Put(ctx, tenant, graph)

	// Assert
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindAlreadyExists))
	adapter.AssertNotCalled(t, "Deploy", mock.Anything, mock.Anything, mock.Anything)
}

func TestEngine_Put_IdentityOwnedByOtherTenant(t *testing.T) {
	// Arrange
	ctx := context.Background()
	store := memory.NewGraphStore()
	adapter := new(MockControllerAdapter)
	engine := newTestEngine(store, adapter, Config{})
	graph := testGraph(t, "g1")
	seedRecord(t, store, "tenant-a", graph, nffg.StatusActive, nil, 0)

	// Act
	_, err := engine.Put(ctx, testTenant("tenant-b"), graph)

	// Assert
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindScopeViolation))
}

func TestEngine_Put_ScopeCheckPrecedesValidation(t *testing.T) {
	// Arrange
	ctx := context.Background()
	store := memory.NewGraphStore()
	adapter := new(MockControllerAdapter)
	engine := newTestEngine(store, adapter, Config{})
	seedRecord(t, store, "tenant-a", testGraph(t, "g1"), nffg.StatusActive, nil, 0)

	// Act: an invalid graph submitted against another tenant's identity
	_, err := engine.Put(ctx, testTenant("tenant-b"), danglingGraph(t, "g1"))

	// Assert: the ownership problem wins over the structural one
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindScopeViolation))
}

func TestEngine_Put_FatalDeployMarksFailed(t *testing.T) {
	// Arrange
	ctx := context.Background()
	store := memory.NewGraphStore()
	adapter := new(MockControllerAdapter)
	engine := newTestEngine(store, adapter, Config{})
	tenant := testTenant("tenant-a")
	graph := testGraph(t, "g1")

	adapter.On("Deploy", mock.Anything, "tenant-a", graph).
		Return(nil, errors.NewAdapterFatalError("controller rejected request with 400", nil))

	// Act
	_, err := engine.Put(ctx, tenant, graph)

	// Assert
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindAdapterFatal))

	stored, getErr := engine.Get(ctx, tenant, "g1")
	require.NoError(t, getErr)
	assert.Equal(t, nffg.StatusFailed, stored.Status)
	assert.Contains(t, stored.LastError, "rejected")
}

func TestEngine_Put_TransientDeployLeavesPending(t *testing.T) {
	// Arrange
	ctx := context.Background()
	store := memory.NewGraphStore()
	adapter := new(MockControllerAdapter)
	engine := newTestEngine(store, adapter, Config{AdapterRetries: 1})
	tenant := testTenant("tenant-a")
	graph := testGraph(t, "g1")

	adapter.On("Deploy", mock.Anything, "tenant-a", graph).
		Return(nil, errors.NewAdapterTransientError("controller unreachable", nil)).
		Times(2) // initial attempt plus one retry

	// Act
	_, err := engine.Put(ctx, tenant, graph)

	// Assert
	require.Error(t, err)
	assert.True(t, errors.IsRetryable(err))

	stored, getErr := engine.Get(ctx, tenant, "g1")
	require.NoError(t, getErr)
	assert.Equal(t, nffg.StatusPending, stored.Status)
	adapter.AssertExpectations(t)
}

func TestEngine_Put_ResubmitAfterFailure(t *testing.T) {
	// Arrange
	ctx := context.Background()
	store := memory.NewGraphStore()
	adapter := new(MockControllerAdapter)
	engine := newTestEngine(store, adapter, Config{AllowFailedResubmit: true})
	tenant := testTenant("tenant-a")
	graph := testGraph(t, "g1")
	seedRecord(t, store, "tenant-a", graph, nffg.StatusFailed, nil, 0)

	adapter.On("Deploy", mock.Anything, "tenant-a", graph).Return([]string{"f1"}, nil)

	// Act
	record, err := engine.Put(ctx, tenant, graph)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, nffg.StatusActive, record.Status)
	adapter.AssertExpectations(t)
}

func TestEngine_Put_ResubmitDisabledReturnsAlreadyExists(t *testing.T) {
	// Arrange
	ctx := context.Background()
	store := memory.NewGraphStore()
	adapter := new(MockControllerAdapter)
	engine := newTestEngine(store, adapter, Config{})
	tenant := testTenant("tenant-a")
	graph := testGraph(t, "g1")
	seedRecord(t, store, "tenant-a", graph, nffg.StatusFailed, nil, 0)

	// Act
	_, err := engine.Put(ctx, tenant, graph)

	// Assert
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindAlreadyExists))
}

func TestEngine_Put_ReusesDeletedIdentity(t *testing.T) {
	// Arrange
	ctx := context.Background()
	store := memory.NewGraphStore()
	adapter := new(MockControllerAdapter)
	engine := newTestEngine(store, adapter, Config{})
	tenant := testTenant("tenant-a")
	graph := testGraph(t, "g1")
	seedRecord(t, store, "tenant-a", graph, nffg.StatusDeleted, nil, 0)

	adapter.On("Deploy", mock.Anything, "tenant-a", graph).Return([]string{"f2"}, nil)

	// Act
	record, err := engine.Put(ctx, tenant, graph)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, nffg.StatusActive, record.Status)
	assert.Equal(t, []string{"f2"}, record.ControllerRefs)
}

// A record resolved out from under a running deploy must not leak flow
// state: the engine tears its fresh deployment down again.
func TestEngine_Put_ConflictAfterDeployTearsDown(t *testing.T) {
	// Arrange
	ctx := context.Background()
	store := memory.NewGraphStore()
	adapter := new(MockControllerAdapter)
	engine := newTestEngine(store, adapter, Config{})
	tenant := testTenant("tenant-a")
	graph := testGraph(t, "g1")

	adapter.On("Deploy", mock.Anything, "tenant-a", graph).
		Run(func(args mock.Arguments) {
			// Another actor resolves the record while the deploy runs
			record, err := store.Read(context.Background(), "tenant-a", "g1")
			require.NoError(t, err)
			record.Status = nffg.StatusFailed
			require.NoError(t, store.CompareAndSwapStatus(context.Background(), nffg.StatusPending, record))
		}).
		Return([]string{"f1"}, nil)
	adapter.On("Undeploy", mock.Anything, "tenant-a", "g1", []string{"f1"}).Return(nil)

	// Act
	_, err := engine.Put(ctx, tenant, graph)

	// Assert
	require.Error(t, err)
	assert.True(t, errors.IsRetryable(err))
	adapter.AssertExpectations(t)
}

func TestEngine_Get_UnknownGraph(t *testing.T) {
	// Arrange
	store := memory.NewGraphStore()
	engine := newTestEngine(store, new(MockControllerAdapter), Config{})

	// Act
	_, err := engine.Get(context.Background(), testTenant("tenant-a"), "nope")

	// Assert
	assert.True(t, errors.IsNotFound(err))
}

// Another tenant's graph must be indistinguishable from a missing one
func TestEngine_Get_OtherTenantLooksLikeNotFound(t *testing.T) {
	// Arrange
	store := memory.NewGraphStore()
	engine := newTestEngine(store, new(MockControllerAdapter), Config{})
	graph := testGraph(t, "g1")
	seedRecord(t, store, "tenant-a", graph, nffg.StatusActive, nil, 0)

	// Act
	_, err := engine.Get(context.Background(), testTenant("tenant-b"), "g1")

	// Assert
	assert.True(t, errors.IsNotFound(err))
}

func TestEngine_Status_ReportsCurrentStatus(t *testing.T) {
	// Arrange
	store := memory.NewGraphStore()
	engine := newTestEngine(store, new(MockControllerAdapter), Config{})
	tenant := testTenant("tenant-a")
	graph := testGraph(t, "g1")
	seedRecord(t, store, "tenant-a", graph, nffg.StatusActive, []string{"f1"}, 0)

	// Act
	result, err := engine.Status(context.Background(), tenant, "g1")

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "g1", result.GraphID)
	assert.Equal(t, nffg.StatusActive, result.Status)
}

func TestEngine_Status_ResolvesStalePendingToActive(t *testing.T) {
	// Arrange
	store := memory.NewGraphStore()
	adapter := new(MockControllerAdapter)
	engine := newTestEngine(store, adapter, Config{StaleAfter: time.Minute})
	tenant := testTenant("tenant-a")
	graph := testGraph(t, "g1")
	seedRecord(t, store, "tenant-a", graph, nffg.StatusPending, nil, 5*time.Minute)

	adapter.On("Probe", mock.Anything, "tenant-a", "g1").
		Return(&ports.DeploymentState{Realized: true, Refs: []string{"f1"}}, nil)

	// Act
	result, err := engine.Status(context.Background(), tenant, "g1")

	// Assert
	require.NoError(t, err)
	assert.Equal(t, nffg.StatusActive, result.Status)

	stored, getErr := engine.Get(context.Background(), tenant, "g1")
	require.NoError(t, getErr)
	assert.Equal(t, nffg.StatusActive, stored.Status)
	assert.Equal(t, []string{"f1"}, stored.ControllerRefs)
}

func TestEngine_Status_ResolvesStalePendingToFailed(t *testing.T) {
	// Arrange
	store := memory.NewGraphStore()
	adapter := new(MockControllerAdapter)
	engine := newTestEngine(store, adapter, Config{StaleAfter: time.Minute})
	tenant := testTenant("tenant-a")
	graph := testGraph(t, "g1")
	seedRecord(t, store, "tenant-a", graph, nffg.StatusPending, nil, 5*time.Minute)

	adapter.On("Probe", mock.Anything, "tenant-a", "g1").
		Return(&ports.DeploymentState{Realized: false, Detail: "0 flows installed"}, nil)

	// Act
	result, err := engine.Status(context.Background(), tenant, "g1")

	// Assert
	require.NoError(t, err)
	assert.Equal(t, nffg.StatusFailed, result.Status)
	assert.Contains(t, result.Detail, "did not complete")
}

func TestEngine_Status_FreshPendingIsNotProbed(t *testing.T) {
	// Arrange
	store := memory.NewGraphStore()
	adapter := new(MockControllerAdapter)
	engine := newTestEngine(store, adapter, Config{StaleAfter: time.Minute})
	tenant := testTenant("tenant-a")
	graph := testGraph(t, "g1")
	seedRecord(t, store, "tenant-a", graph, nffg.StatusPending, nil, 0)

	// Act
	result, err := engine.Status(context.Background(), tenant, "g1")

	// Assert
	require.NoError(t, err)
	assert.Equal(t, nffg.StatusPending, result.Status)
	adapter.AssertNotCalled(t, "Probe", mock.Anything, mock.Anything, mock.Anything)
}

func TestEngine_Delete_ActiveGraph(t *testing.T) {
	// Arrange
	ctx := context.Background()
	store := memory.NewGraphStore()
	adapter := new(MockControllerAdapter)
	engine := newTestEngine(store, adapter, Config{})
	tenant := testTenant("tenant-a")
	graph := testGraph(t, "g1")
	seedRecord(t, store, "tenant-a", graph, nffg.StatusActive, []string{"f1"}, 0)

	adapter.On("Undeploy", mock.Anything, "tenant-a", "g1", []string{"f1"}).Return(nil)

	// Act
	err := engine.Delete(ctx, tenant, "g1")

	// Assert
	require.NoError(t, err)

	result, statusErr := engine.Status(ctx, tenant, "g1")
	require.NoError(t, statusErr)
	assert.Equal(t, nffg.StatusDeleted, result.Status)

	// A second delete sees a terminal record
	assert.True(t, errors.IsNotFound(engine.Delete(ctx, tenant, "g1")))
	adapter.AssertExpectations(t)
}

func TestEngine_Delete_UnknownGraph(t *testing.T) {
	// Arrange
	store := memory.NewGraphStore()
	engine := newTestEngine(store, new(MockControllerAdapter), Config{})

	// Act
	err := engine.Delete(context.Background(), testTenant("tenant-a"), "nope")

	// Assert
	assert.True(t, errors.IsNotFound(err))
}

func TestEngine_Delete_FreshPendingIsRefused(t *testing.T) {
	// Arrange
	store := memory.NewGraphStore()
	engine := newTestEngine(store, new(MockControllerAdapter), Config{StaleAfter: time.Minute})
	tenant := testTenant("tenant-a")
	graph := testGraph(t, "g1")
	seedRecord(t, store, "tenant-a", graph, nffg.StatusPending, nil, 0)

	// Act
	err := engine.Delete(context.Background(), tenant, "g1")

	// Assert
	require.Error(t, err)
	assert.True(t, errors.IsRetryable(err))
}

func TestEngine_Delete_TeardownFailureKeepsDeleting(t *testing.T) {
	// Arrange
	ctx := context.Background()
	store := memory.NewGraphStore()
	adapter := new(MockControllerAdapter)
	engine := newTestEngine(store, adapter, Config{})
	tenant := testTenant("tenant-a")
	graph := testGraph(t, "g1")
	seedRecord(t, store, "tenant-a", graph, nffg.StatusActive, []string{"f1"}, 0)

	adapter.On("Undeploy", mock.Anything, "tenant-a", "g1", []string{"f1"}).
		Return(errors.NewAdapterFatalError("controller rejected request with 400", nil)).Once()

	// Act
	err := engine.Delete(ctx, tenant, "g1")

	// Assert
	require.Error(t, err)
	result, statusErr := engine.Status(ctx, tenant, "g1")
	require.NoError(t, statusErr)
	assert.Equal(t, nffg.StatusDeleting, result.Status)

	// A retried delete re-attempts the teardown and completes
	adapter.On("Undeploy", mock.Anything, "tenant-a", "g1", []string{"f1"}).Return(nil).Once()
	require.NoError(t, engine.Delete(ctx, tenant, "g1"))

	result, statusErr = engine.Status(ctx, tenant, "g1")
	require.NoError(t, statusErr)
	assert.Equal(t, nffg.StatusDeleted, result.Status)
}

// Concurrent submissions of the same identity must produce exactly one
// stored graph; the loser sees AlreadyExists.
func TestEngine_Put_ConcurrentSameIdentity(t *testing.T) {
	// Arrange
	ctx := context.Background()
	store := memory.NewGraphStore()
	adapter := new(MockControllerAdapter)
	engine := newTestEngine(store, adapter, Config{})
	tenant := testTenant("tenant-a")
	graph := testGraph(t, "g1")

	adapter.On("Deploy", mock.Anything, "tenant-a", graph).
		Run(func(mock.Arguments) { time.Sleep(20 * time.Millisecond) }).
		Return([]string{"f1"}, nil)

	// Act
	var wg sync.WaitGroup
	results := make([]error, 2)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = engine.Put(ctx, tenant, graph)
		}(i)
	}
	wg.Wait()

	// Assert
	var successes, duplicates int
	for _, err := range results {
		switch {
		case err == nil:
			successes++
		case errors.IsKind(err, errors.KindAlreadyExists):
			duplicates++
		default:
			t.Fatalf("unexpected outcome: %v", err)
		}
	}
	assert.Equal(t, 1, successes)
	assert.Equal(t, 1, duplicates)

	stored, err := engine.Get(ctx, tenant, "g1")
	require.NoError(t, err)
	assert.Equal(t, nffg.StatusActive, stored.Status)
}
