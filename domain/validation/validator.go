// Package validation checks a structurally valid graph against the
// domain rules of the deployment target: identifier uniqueness, edge
// resolvability, semantic fit with what the controller can express, and
// tenant ownership of referenced resources.
package validation

import (
	"fmt"

	"nffg-orchestrator/domain/nffg"
	"nffg-orchestrator/pkg/auth"
	"nffg-orchestrator/pkg/errors"
)

// Violation is one concrete rule breach found in a submitted graph
type Violation struct {
	Kind    errors.Kind `json:"kind"`
	Element string      `json:"element"`
	Message string      `json:"message"`
}

// Result is the outcome of validating one graph. All violations share
// the same kind: checks run in order and stop at the first class that
// fails, after collecting every violation of that class.
type Result struct {
	Violations []Violation
}

// Valid reports whether the graph passed every check
func (r Result) Valid() bool {
	return len(r.Violations) == 0
}

// Err converts an invalid result into the typed failure the engine
// returns to its caller. Returns nil for a valid result.
func (r Result) Err() error {
	if r.Valid() {
		return nil
	}
	first := r.Violations[0]
	appErr := errors.NewValidationError(first.Kind, first.Message)
	if len(r.Violations) > 1 {
		details := make([]string, 0, len(r.Violations))
		for _, v := range r.Violations {
			details = append(details, v.Message)
		}
		appErr.WithDetail("violations", details)
	}
	return appErr
}

// Validator applies the domain checks in order
type Validator struct{}

// NewValidator creates a graph validator
func NewValidator() *Validator {
	return &Validator{}
}

// Validate runs the check classes in order, short-circuiting on the
// first class that produces violations.
func (v *Validator) Validate(g *nffg.Graph, tenant *auth.TenantContext) Result {
	for _, check := range []func(*nffg.Graph, *auth.TenantContext) []Violation{
		v.checkDuplicateIdentifiers,
		v.checkDanglingEdges,
		v.checkUselessInformation,
		v.checkScope,
	} {
		if violations := check(g, tenant); len(violations) > 0 {
			return Result{Violations: violations}
		}
	}
	return Result{}
}

func (v *Validator) checkDuplicateIdentifiers(g *nffg.Graph, _ *auth.TenantContext) []Violation {
	var out []Violation

	seenNodes := make(map[string]bool)
	for _, n := range g.Nodes() {
		if seenNodes[n.ID] {
			out = append(out, duplicate(n.ID, fmt.Sprintf("duplicate node identifier %q", n.ID)))
		}
		seenNodes[n.ID] = true

		seenPorts := make(map[string]bool)
		for _, p := range n.Ports {
			if seenPorts[p.ID] {
				out = append(out, duplicate(n.ID+":"+p.ID,
					fmt.Sprintf("duplicate port identifier %q on node %q", p.ID, n.ID)))
			}
			seenPorts[p.ID] = true
		}
	}

	seenEdges := make(map[string]bool)
	for _, e := range g.Edges() {
		if seenEdges[e.ID] {
			out = append(out, duplicate(e.ID, fmt.Sprintf("duplicate edge identifier %q", e.ID)))
		}
		seenEdges[e.ID] = true
	}

	return out
}

func (v *Validator) checkDanglingEdges(g *nffg.Graph, _ *auth.TenantContext) []Violation {
	var out []Violation
	for _, e := range g.Edges() {
		for _, ref := range []nffg.PortRef{e.From, e.To} {
			if !g.HasPort(ref) {
				out = append(out, Violation{
					Kind:    errors.KindDanglingEdge,
					Element: e.ID,
					Message: fmt.Sprintf("edge %q references non-existent port %s", e.ID, ref),
				})
			}
		}
	}
	return out
}

// checkUselessInformation rejects attributes the realization target
// cannot act on. The upstream schema validator only checks shape, so a
// graph can be well-formed yet carry information that would be silently
// dropped at the controller; such graphs are refused instead.
func (v *Validator) checkUselessInformation(g *nffg.Graph, _ *auth.TenantContext) []Violation {
	var out []Violation
	for _, n := range g.Nodes() {
		switch n.Type {
		case nffg.NodeTypeVNF:
			if n.Interface != "" {
				out = append(out, useless(n.ID,
					fmt.Sprintf("VNF %q declares a physical interface; interfaces only apply to endpoints", n.ID)))
			}
			if n.VLAN != 0 {
				out = append(out, useless(n.ID,
					fmt.Sprintf("VNF %q declares a VLAN; VLANs only apply to endpoints", n.ID)))
			}
		case nffg.NodeTypeEndpoint:
			if n.Resources.CPUCores != 0 || n.Resources.MemoryMB != 0 {
				out = append(out, useless(n.ID,
					fmt.Sprintf("endpoint %q declares resource requirements; endpoints are not instantiated", n.ID)))
			}
		}
	}
	for _, e := range g.Edges() {
		if e.Match != nil && e.Match.TCPDstPort != 0 && e.Match.Protocol != "tcp" {
			out = append(out, useless(e.ID,
				fmt.Sprintf("edge %q matches on a TCP port without protocol tcp", e.ID)))
		}
	}
	return out
}

func (v *Validator) checkScope(g *nffg.Graph, tenant *auth.TenantContext) []Violation {
	var out []Violation
	for _, n := range g.Nodes() {
		if n.ResourceID == "" {
			continue
		}
		if !tenant.OwnsResource(n.ResourceID) {
			out = append(out, Violation{
				Kind:    errors.KindScopeViolation,
				Element: n.ID,
				Message: fmt.Sprintf("endpoint %q references resource %q outside the tenant scope", n.ID, n.ResourceID),
			})
		}
	}
	return out
}

func duplicate(element, message string) Violation {
	return Violation{Kind: errors.KindDuplicateIdentifier, Element: element, Message: message}
}

func useless(element, message string) Violation {
	return Violation{Kind: errors.KindUselessInformation, Element: element, Message: message}
}
