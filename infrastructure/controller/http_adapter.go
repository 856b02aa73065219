// Package controller adapts validated forwarding graphs to the REST API
// of the underlying network controller. Each edge becomes one flow
// entry; the opaque flow identifiers returned by the controller are the
// references the engine stores with the record.
package controller

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"nffg-orchestrator/application/ports"
	"nffg-orchestrator/domain/nffg"
	"nffg-orchestrator/pkg/errors"
)

// Config holds the controller connection settings
type Config struct {
	Endpoint string
	Username string
	Password string
}

// HTTPAdapter talks to the controller over its flow-programming REST
// API, behind a circuit breaker so a misbehaving controller sheds load
// fast instead of queueing timeouts.
type HTTPAdapter struct {
	config  Config
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

// NewHTTPAdapter creates a controller adapter
func NewHTTPAdapter(config Config, client *http.Client, logger *zap.Logger) *HTTPAdapter {
	if client == nil {
		client = http.DefaultClient
	}
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "controller",
		MaxRequests: 3,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 5 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Controller breaker state changed",
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
		IsSuccessful: func(err error) bool {
			// A missing flow is a normal teardown outcome, not a
			// controller failure
			return err == nil || errors.IsNotFound(err)
		},
	})
	return &HTTPAdapter{
		config:  config,
		client:  client,
		breaker: breaker,
		logger:  logger,
	}
}

// flowEntry is the controller's wire representation of one flow rule
type flowEntry struct {
	ID       string `json:"id"`
	TenantID string `json:"tenant-id"`
	GraphID  string `json:"graph-id"`
	EdgeID   string `json:"edge-id"`
	InNode   string `json:"in-node"`
	InPort   string `json:"in-port"`
	OutNode  string `json:"out-node"`
	OutPort  string `json:"out-port"`

	EtherType     string `json:"ether-type,omitempty"`
	VLANID        int    `json:"vlan-id,omitempty"`
	SourceIP      string `json:"source-ip,omitempty"`
	DestinationIP string `json:"destination-ip,omitempty"`
	Protocol      string `json:"protocol,omitempty"`
	TCPDstPort    int    `json:"tcp-dst-port,omitempty"`
}

// Deploy pushes one flow entry per edge and returns the flow ids
func (a *HTTPAdapter) Deploy(ctx context.Context, tenantID string, graph *nffg.Graph) ([]string, error) {
	refs := make([]string, 0, len(graph.Edges()))

	for _, edge := range graph.Edges() {
		entry := flowEntry{
			ID:       uuid.New().String(),
			TenantID: tenantID,
			GraphID:  graph.ID(),
			EdgeID:   edge.ID,
			InNode:   edge.From.NodeID,
			InPort:   edge.From.PortID,
			OutNode:  edge.To.NodeID,
			OutPort:  edge.To.PortID,
		}
		if edge.Match != nil {
			entry.EtherType = edge.Match.EtherType
			entry.VLANID = edge.Match.VLANID
			entry.SourceIP = edge.Match.SourceIP
			entry.DestinationIP = edge.Match.DestinationIP
			entry.Protocol = edge.Match.Protocol
			entry.TCPDstPort = edge.Match.TCPDstPort
		}

		if err := a.putFlow(ctx, entry); err != nil {
			// Leave already-created flows in place: the engine keeps
			// the record in Pending and either retries or tears down
			// by graph identity.
			return nil, err
		}
		refs = append(refs, entry.ID)
	}

	a.logger.Debug("Graph deployed to controller",
		zap.String("graph_id", graph.ID()),
		zap.Int("flows", len(refs)),
	)
	return refs, nil
}

// Undeploy removes the flow state behind the refs; flows the controller
// no longer knows are treated as already gone.
func (a *HTTPAdapter) Undeploy(ctx context.Context, tenantID, graphID string, refs []string) error {
	if len(refs) == 0 {
		// Nothing recorded; remove whatever is tagged with the graph
		// identity (covers refs lost to a timed-out Deploy).
		state, err := a.Probe(ctx, tenantID, graphID)
		if err != nil {
			return err
		}
		refs = state.Refs
	}

	for _, ref := range refs {
		if err := a.deleteFlow(ctx, ref); err != nil {
			return err
		}
	}

	a.logger.Debug("Graph flows removed from controller",
		zap.String("graph_id", graphID),
		zap.Int("flows", len(refs)),
	)
	return nil
}

// Probe lists the flows tagged with the graph identity
func (a *HTTPAdapter) Probe(ctx context.Context, tenantID, graphID string) (*ports.DeploymentState, error) {
	query := url.Values{}
	query.Set("tenant-id", tenantID)
	query.Set("graph-id", graphID)

	body, err := a.do(ctx, http.MethodGet, "/flows?"+query.Encode(), nil)
	if err != nil {
		return nil, err
	}

	var flows []flowEntry
	if err := json.Unmarshal(body, &flows); err != nil {
		return nil, errors.NewAdapterFatalError("controller returned malformed flow list", err)
	}

	state := &ports.DeploymentState{
		Realized: len(flows) > 0,
		Detail:   fmt.Sprintf("%d flows installed", len(flows)),
	}
	for _, f := range flows {
		state.Refs = append(state.Refs, f.ID)
	}
	return state, nil
}

func (a *HTTPAdapter) putFlow(ctx context.Context, entry flowEntry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return errors.NewInternalError("marshaling flow entry", err)
	}
	_, err = a.do(ctx, http.MethodPut, "/flows/"+entry.ID, payload)
	return err
}

func (a *HTTPAdapter) deleteFlow(ctx context.Context, ref string) error {
	_, err := a.do(ctx, http.MethodDelete, "/flows/"+ref, nil)
	if errors.IsNotFound(err) {
		// Already gone; teardown stays idempotent
		return nil
	}
	return err
}

// do executes one controller request through the circuit breaker and
// classifies the outcome into the adapter failure kinds.
func (a *HTTPAdapter) do(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	result, err := a.breaker.Execute(func() (interface{}, error) {
		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, a.config.Endpoint+path, reader)
		if err != nil {
			return nil, errors.NewInternalError("building controller request", err)
		}
		req.SetBasicAuth(a.config.Username, a.config.Password)
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := a.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, errors.NewAdapterTransientError("controller call timed out", err)
			}
			return nil, errors.NewAdapterTransientError("controller unreachable", err)
		}
		defer resp.Body.Close()

		body, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return nil, errors.NewAdapterTransientError("reading controller response", readErr)
		}

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return body, nil
		case resp.StatusCode == http.StatusNotFound:
			return nil, errors.NewNotFoundError("controller resource")
		case resp.StatusCode >= 500:
			return nil, errors.NewAdapterTransientError(
				fmt.Sprintf("controller returned %d", resp.StatusCode), nil)
		default:
			return nil, errors.NewAdapterFatalError(
				fmt.Sprintf("controller rejected request with %d: %s", resp.StatusCode, string(body)), nil)
		}
	})

	if err != nil {
		if stderrors.Is(err, gobreaker.ErrOpenState) || stderrors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, errors.NewAdapterTransientError("controller circuit open", err)
		}
		return nil, err
	}
	body, _ := result.([]byte)
	return body, nil
}
