package ports

import (
	"context"

	"nffg-orchestrator/domain/nffg"
)

// DeploymentState is what the controller reports about a previously
// submitted graph.
type DeploymentState struct {
	Realized bool
	Detail   string

	// Refs are the controller-side references recovered from the
	// controller; used to resolve records stuck in an intermediate
	// status after a timed-out call.
	Refs []string
}

// ControllerAdapter translates validated graphs into operations against
// the underlying network controller. The adapter never owns graph
// identity; it returns opaque references the engine stores alongside
// the record.
//
// Implementations must classify failures as KindAdapterTransient
// (retryable) or KindAdapterFatal and must respect context deadlines.
type ControllerAdapter interface {
	// Deploy realizes the graph and returns the controller references
	// for the created flow state.
	Deploy(ctx context.Context, tenantID string, graph *nffg.Graph) ([]string, error)

	// Undeploy tears down the flow state behind the given references.
	// Tearing down already-removed state is not an error.
	Undeploy(ctx context.Context, tenantID, graphID string, refs []string) error

	// Probe reports the actual realization state of a graph, letting
	// the engine discover the outcome of a call that timed out.
	Probe(ctx context.Context, tenantID, graphID string) (*DeploymentState, error)
}
