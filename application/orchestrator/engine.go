// Package orchestrator owns the put/get/delete/status lifecycle of
// forwarding graphs. It coordinates the domain validator, the graph
// store and the controller adapter, and guarantees at most one in-flight
// mutation per graph identity.
package orchestrator

import (
	"context"
	stderrors "errors"
	"time"

	"go.uber.org/zap"

	"nffg-orchestrator/application/ports"
	"nffg-orchestrator/domain/nffg"
	"nffg-orchestrator/domain/validation"
	"nffg-orchestrator/pkg/auth"
	"nffg-orchestrator/pkg/errors"
	"nffg-orchestrator/pkg/observability"
)

// Config tunes the engine's lifecycle behavior
type Config struct {
	// AdapterTimeout bounds every single controller call
	AdapterTimeout time.Duration

	// AdapterRetries is the number of additional in-call attempts after
	// a transient controller failure
	AdapterRetries int

	// AllowFailedResubmit lets a Put on a Failed record retry the
	// realization instead of failing with AlreadyExists
	AllowFailedResubmit bool

	// StaleAfter is how long a record may sit in Pending or Deleting
	// before Status starts probing the controller to resolve it
	StaleAfter time.Duration

	// PurgeDeleted physically removes records after teardown instead of
	// retaining the terminal Deleted record
	PurgeDeleted bool
}

// DefaultConfig returns the engine defaults
func DefaultConfig() Config {
	return Config{
		AdapterTimeout:      10 * time.Second,
		AdapterRetries:      2,
		AllowFailedResubmit: false,
		StaleAfter:          30 * time.Second,
		PurgeDeleted:        false,
	}
}

// StatusResult is what the Status operation reports
type StatusResult struct {
	GraphID string      `json:"graph-id"`
	Status  nffg.Status `json:"status"`
	Detail  string      `json:"detail,omitempty"`
}

// Engine drives the graph lifecycle state machine. Mutating operations
// on the same identity are serialized through an identity-keyed mutex;
// the mutex is released during controller calls, with the Pending and
// Deleting intermediate states fencing concurrent mutations instead.
type Engine struct {
	store     ports.GraphStore
	adapter   ports.ControllerAdapter
	validator *validation.Validator
	config    Config
	locks     *keyedMutex
	logger    *zap.Logger
	metrics   *observability.Metrics
	tracer    *observability.Tracer
}

// NewEngine creates the orchestration engine
func NewEngine(
	store ports.GraphStore,
	adapter ports.ControllerAdapter,
	validator *validation.Validator,
	config Config,
	logger *zap.Logger,
	metrics *observability.Metrics,
	tracer *observability.Tracer,
) *Engine {
	if config.AdapterTimeout <= 0 {
		config.AdapterTimeout = DefaultConfig().AdapterTimeout
	}
	if config.StaleAfter <= 0 {
		config.StaleAfter = DefaultConfig().StaleAfter
	}
	return &Engine{
		store:     store,
		adapter:   adapter,
		validator: validator,
		config:    config,
		locks:     newKeyedMutex(),
		logger:    logger,
		metrics:   metrics,
		tracer:    tracer,
	}
}

// Put validates and realizes a structurally valid graph for the tenant.
// On success the stored record is Pending or Active; on validation
// failure nothing is stored.
func (e *Engine) Put(ctx context.Context, tenant *auth.TenantContext, graph *nffg.Graph) (rec *ports.GraphRecord, err error) {
	start := time.Now()
	defer func() { e.observe("put", err, start) }()

	unlock := e.locks.Lock(graph.ID())
	record, err := e.admitPut(ctx, tenant, graph)
	unlock()
	if err != nil {
		return nil, err
	}

	refs, err := e.deploy(ctx, tenant.TenantID, graph)
	if err != nil {
		if errors.IsRetryable(err) {
			// The controller may still be working on it; the record
			// stays Pending so a Status probe or a retry can resolve it.
			return nil, err
		}
		record.Status = nffg.StatusFailed
		record.LastError = err.Error()
		record.UpdatedAt = time.Now().UTC()
		if casErr := e.store.CompareAndSwapStatus(ctx, nffg.StatusPending, record); casErr != nil {
			e.logger.Error("Failed to record realization failure",
				zap.String("graph_id", graph.ID()),
				zap.Error(casErr),
			)
		}
		return nil, err
	}

	record.Status = nffg.StatusActive
	record.ControllerRefs = refs
	record.LastError = ""
	record.UpdatedAt = time.Now().UTC()
	if casErr := e.store.CompareAndSwapStatus(ctx, nffg.StatusPending, record); casErr != nil {
		// Someone resolved the record while the controller call ran
		// (e.g. a stale-record probe marked it Failed). Tear the fresh
		// flow state down again rather than leaking it.
		e.logger.Warn("Record changed during realization, undeploying",
			zap.String("graph_id", graph.ID()),
			zap.Error(casErr),
		)
		if undoErr := e.undeploy(ctx, tenant.TenantID, graph.ID(), refs); undoErr != nil {
			e.logger.Error("Failed to undo realization after status conflict",
				zap.String("graph_id", graph.ID()),
				zap.Error(undoErr),
			)
		}
		return nil, errors.NewAdapterTransientError(
			"graph state changed during realization, retry", casErr)
	}

	e.metrics.GraphActivated()
	e.logger.Info("Graph realized",
		zap.String("tenant_id", tenant.TenantID),
		zap.String("graph_id", graph.ID()),
		zap.Int("flow_refs", len(refs)),
	)
	return record, nil
}

// admitPut performs the scope, duplicate and validation checks under
// the identity lock and writes the Pending record.
func (e *Engine) admitPut(ctx context.Context, tenant *auth.TenantContext, graph *nffg.Graph) (*ports.GraphRecord, error) {
	existing, err := e.store.ReadByGraphID(ctx, graph.ID())
	switch {
	case err == nil:
		if existing.TenantID != tenant.TenantID {
			return nil, errors.NewScopeViolationError(
				"graph identity " + graph.ID() + " is owned by another tenant")
		}
		resubmittable := existing.Status == nffg.StatusFailed && e.config.AllowFailedResubmit
		if existing.Status != nffg.StatusDeleted && !resubmittable {
			return nil, errors.NewAlreadyExistsError(graph.ID())
		}
	case !errors.IsNotFound(err):
		return nil, errors.Internalize(err, "reading graph record")
	}

	// Identity admission comes first so a submission against someone
	// else's identity reports the scope problem rather than its own
	// structural ones. Validation still precedes every store write, so
	// an invalid submission can never leave a record behind.
	if verr := e.validator.Validate(graph, tenant).Err(); verr != nil {
		return nil, verr
	}

	if existing != nil && existing.Status == nffg.StatusFailed {
		return e.resubmit(ctx, existing, graph)
	}

	now := time.Now().UTC()
	record := &ports.GraphRecord{
		TenantID:   tenant.TenantID,
		GraphID:    graph.ID(),
		Definition: nffg.FromModel(graph),
		Status:     nffg.StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if existing != nil && existing.Status == nffg.StatusDeleted {
		record.CreatedAt = existing.CreatedAt
		if err := e.store.CompareAndSwapStatus(ctx, nffg.StatusDeleted, record); err != nil {
			if stderrors.Is(err, ports.ErrStatusConflict) {
				return nil, errors.NewAlreadyExistsError(graph.ID())
			}
			return nil, errors.Internalize(err, "reusing deleted graph record")
		}
		return record, nil
	}

	if err := e.store.CreateIfAbsent(ctx, record); err != nil {
		return nil, errors.Internalize(err, "creating graph record")
	}
	return record, nil
}

// resubmit swings a Failed record back to Pending with the newly
// submitted definition.
func (e *Engine) resubmit(ctx context.Context, existing *ports.GraphRecord, graph *nffg.Graph) (*ports.GraphRecord, error) {
	record := &ports.GraphRecord{
		TenantID:   existing.TenantID,
		GraphID:    existing.GraphID,
		Definition: nffg.FromModel(graph),
		Status:     nffg.StatusPending,
		CreatedAt:  existing.CreatedAt,
		UpdatedAt:  time.Now().UTC(),
	}
	if err := e.store.CompareAndSwapStatus(ctx, nffg.StatusFailed, record); err != nil {
		if stderrors.Is(err, ports.ErrStatusConflict) {
			return nil, errors.NewAlreadyExistsError(existing.GraphID)
		}
		return nil, errors.Internalize(err, "resubmitting failed graph")
	}
	e.logger.Info("Failed graph resubmitted",
		zap.String("tenant_id", existing.TenantID),
		zap.String("graph_id", existing.GraphID),
	)
	return record, nil
}

// Get returns a snapshot of the tenant's graph record. Records owned by
// other tenants are reported as not found.
func (e *Engine) Get(ctx context.Context, tenant *auth.TenantContext, graphID string) (rec *ports.GraphRecord, err error) {
	start := time.Now()
	defer func() { e.observe("get", err, start) }()

	record, err := e.readScoped(ctx, tenant, graphID)
	if err != nil {
		return nil, err
	}
	return record, nil
}

// Status reports the lifecycle status plus the last controller detail.
// Records stuck in an intermediate state past the staleness window are
// probed against the controller and resolved.
func (e *Engine) Status(ctx context.Context, tenant *auth.TenantContext, graphID string) (res *StatusResult, err error) {
	start := time.Now()
	defer func() { e.observe("status", err, start) }()

	record, err := e.readScoped(ctx, tenant, graphID)
	if err != nil {
		return nil, err
	}

	if record.Status.IsMutating() && time.Since(record.UpdatedAt) > e.config.StaleAfter {
		record = e.resolveStale(ctx, tenant, record)
	}

	return &StatusResult{
		GraphID: record.GraphID,
		Status:  record.Status,
		Detail:  record.LastError,
	}, nil
}

// Delete tears down the graph's controller state and marks the record
// Deleted. Retrying after a teardown failure is safe: the record stays
// Deleting and the teardown is re-attempted.
func (e *Engine) Delete(ctx context.Context, tenant *auth.TenantContext, graphID string) (err error) {
	start := time.Now()
	defer func() { e.observe("delete", err, start) }()

	unlock := e.locks.Lock(graphID)
	record, err := e.readScoped(ctx, tenant, graphID)
	if err != nil {
		unlock()
		return err
	}

	switch record.Status {
	case nffg.StatusDeleted:
		// Terminal; indistinguishable from never having existed.
		unlock()
		return errors.NewNotFoundError("graph " + graphID)
	case nffg.StatusPending:
		if time.Since(record.UpdatedAt) <= e.config.StaleAfter {
			unlock()
			return errors.NewAdapterTransientError(
				"realization of graph "+graphID+" is still in progress, retry", nil)
		}
		// Stale Pending: resolve against the controller first so the
		// teardown sees the real refs.
		record = e.resolveStale(ctx, tenant, record)
		if record.Status == nffg.StatusPending {
			unlock()
			return errors.NewAdapterTransientError(
				"realization state of graph "+graphID+" is unknown, retry", nil)
		}
	}

	wasActive := record.Status == nffg.StatusActive

	if record.Status != nffg.StatusDeleting {
		previous := record.Status
		record.Status = nffg.StatusDeleting
		record.UpdatedAt = time.Now().UTC()
		if casErr := e.store.CompareAndSwapStatus(ctx, previous, record); casErr != nil {
			unlock()
			if stderrors.Is(casErr, ports.ErrStatusConflict) {
				return errors.NewAdapterTransientError(
					"graph "+graphID+" changed concurrently, retry", casErr)
			}
			return errors.Internalize(casErr, "marking graph for deletion")
		}
	}
	unlock()

	if err := e.undeploy(ctx, tenant.TenantID, graphID, record.ControllerRefs); err != nil {
		// Record stays Deleting; a retried Delete re-attempts teardown.
		e.logger.Warn("Teardown failed, record remains in Deleting",
			zap.String("tenant_id", tenant.TenantID),
			zap.String("graph_id", graphID),
			zap.Error(err),
		)
		record.LastError = err.Error()
		record.UpdatedAt = time.Now().UTC()
		if casErr := e.store.CompareAndSwapStatus(ctx, nffg.StatusDeleting, record); casErr != nil {
			e.logger.Error("Failed to record teardown failure", zap.Error(casErr))
		}
		return err
	}

	record.Status = nffg.StatusDeleted
	record.ControllerRefs = nil
	record.LastError = ""
	record.UpdatedAt = time.Now().UTC()
	if casErr := e.store.CompareAndSwapStatus(ctx, nffg.StatusDeleting, record); casErr != nil {
		return errors.Internalize(casErr, "finalizing graph deletion")
	}

	if e.config.PurgeDeleted {
		if purgeErr := e.store.Delete(ctx, tenant.TenantID, graphID); purgeErr != nil {
			e.logger.Error("Failed to purge deleted record",
				zap.String("graph_id", graphID),
				zap.Error(purgeErr),
			)
		}
	}

	if wasActive {
		e.metrics.GraphDeactivated()
	}
	e.logger.Info("Graph deleted",
		zap.String("tenant_id", tenant.TenantID),
		zap.String("graph_id", graphID),
	)
	return nil
}

// readScoped reads the record and hides other tenants' graphs behind
// NotFound so existence never leaks across tenants.
func (e *Engine) readScoped(ctx context.Context, tenant *auth.TenantContext, graphID string) (*ports.GraphRecord, error) {
	record, err := e.store.Read(ctx, tenant.TenantID, graphID)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, errors.NewNotFoundError("graph " + graphID)
		}
		return nil, errors.Internalize(err, "reading graph record")
	}
	return record, nil
}

// resolveStale asks the controller what actually happened to a record
// stuck in Pending or Deleting and advances it accordingly. Returns the
// freshest record it can.
func (e *Engine) resolveStale(ctx context.Context, tenant *auth.TenantContext, record *ports.GraphRecord) *ports.GraphRecord {
	probeCtx, cancel := context.WithTimeout(ctx, e.config.AdapterTimeout)
	defer cancel()

	var state *ports.DeploymentState
	err := e.tracer.Capture(probeCtx, "controller.probe", func(ctx context.Context) error {
		var probeErr error
		state, probeErr = e.adapter.Probe(ctx, tenant.TenantID, record.GraphID)
		return probeErr
	})
	if err != nil {
		e.logger.Warn("Controller probe failed",
			zap.String("graph_id", record.GraphID),
			zap.Error(err),
		)
		return record
	}

	resolved := *record
	switch {
	case record.Status == nffg.StatusPending && state.Realized:
		resolved.Status = nffg.StatusActive
		resolved.ControllerRefs = state.Refs
		resolved.LastError = ""
	case record.Status == nffg.StatusPending && !state.Realized:
		resolved.Status = nffg.StatusFailed
		resolved.LastError = "realization did not complete: " + state.Detail
	case record.Status == nffg.StatusDeleting && !state.Realized:
		resolved.Status = nffg.StatusDeleted
		resolved.ControllerRefs = nil
		resolved.LastError = ""
	default:
		// Deleting but still realized: teardown really is pending.
		return record
	}

	resolved.UpdatedAt = time.Now().UTC()
	if err := e.store.CompareAndSwapStatus(ctx, record.Status, &resolved); err != nil {
		// Lost a race against the in-flight operation; report what the
		// store says now.
		if fresh, readErr := e.store.Read(ctx, record.TenantID, record.GraphID); readErr == nil {
			return fresh
		}
		return record
	}

	e.logger.Info("Stale record resolved against controller",
		zap.String("graph_id", record.GraphID),
		zap.String("from", string(record.Status)),
		zap.String("to", string(resolved.Status)),
	)
	return &resolved
}

// deploy calls the controller under the configured timeout, retrying
// transient failures a bounded number of times within this call.
func (e *Engine) deploy(ctx context.Context, tenantID string, graph *nffg.Graph) ([]string, error) {
	var lastErr error
	for attempt := 0; attempt <= e.config.AdapterRetries; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, e.config.AdapterTimeout)
		var refs []string
		err := e.tracer.Capture(callCtx, "controller.deploy", func(ctx context.Context) error {
			var deployErr error
			refs, deployErr = e.adapter.Deploy(ctx, tenantID, graph)
			return deployErr
		})
		cancel()
		if err == nil {
			return refs, nil
		}
		lastErr = errors.Internalize(err, "controller deploy")
		if !errors.IsRetryable(lastErr) || ctx.Err() != nil {
			break
		}
	}
	return nil, lastErr
}

// undeploy calls the controller teardown under the configured timeout
// with the same bounded retry.
func (e *Engine) undeploy(ctx context.Context, tenantID, graphID string, refs []string) error {
	var lastErr error
	for attempt := 0; attempt <= e.config.AdapterRetries; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, e.config.AdapterTimeout)
		err := e.tracer.Capture(callCtx, "controller.undeploy", func(ctx context.Context) error {
			return e.adapter.Undeploy(ctx, tenantID, graphID, refs)
		})
		cancel()
		if err == nil {
			return nil
		}
		lastErr = errors.Internalize(err, "controller teardown")
		if !errors.IsRetryable(lastErr) || ctx.Err() != nil {
			break
		}
	}
	return lastErr
}

func (e *Engine) observe(operation string, err error, start time.Time) {
	outcome := "success"
	if err != nil {
		if appErr := errors.GetAppError(err); appErr != nil {
			outcome = string(appErr.Kind)
		} else {
			outcome = string(errors.KindInternal)
		}
	}
	e.metrics.ObserveOperation(operation, outcome, time.Since(start))
}
