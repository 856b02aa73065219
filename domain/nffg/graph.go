package nffg

import (
	"fmt"

	"nffg-orchestrator/pkg/errors"
)

// NodeType distinguishes the two kinds of graph nodes
type NodeType string

const (
	// NodeTypeVNF is a virtual network function to be instantiated
	NodeTypeVNF NodeType = "vnf"
	// NodeTypeEndpoint is an attachment point to the outside network
	NodeTypeEndpoint NodeType = "endpoint"
)

// Port is a named attachment point on a node
type Port struct {
	ID string
}

// Resources describes what a VNF node needs from the infrastructure
type Resources struct {
	CPUCores int
	MemoryMB int
}

// Node is a network function or an endpoint inside a forwarding graph
type Node struct {
	ID    string
	Name  string
	Type  NodeType
	Ports []Port

	// Resources is only meaningful for VNF nodes
	Resources Resources

	// Interface and VLAN attach an endpoint to the physical network;
	// only meaningful for endpoint nodes
	Interface string
	VLAN      int

	// ResourceID references a pre-existing tenant-scoped endpoint
	// resource; empty for graph-local endpoints
	ResourceID string
}

// PortRef identifies one side of an edge
type PortRef struct {
	NodeID string
	PortID string
}

// String returns the node:port form used in messages
func (r PortRef) String() string {
	return r.NodeID + ":" + r.PortID
}

// TrafficMatch narrows which traffic an edge carries
type TrafficMatch struct {
	EtherType     string
	VLANID        int
	SourceIP      string
	DestinationIP string
	Protocol      string
	TCPDstPort    int
}

// Edge is a flow rule between two node ports
type Edge struct {
	ID    string
	From  PortRef
	To    PortRef
	Match *TrafficMatch
}

// Graph is the in-memory representation of a forwarding graph. It is
// built once through NewGraph and only traversed afterwards; all
// lifecycle state lives in the store record, not here.
type Graph struct {
	id    string
	name  string
	nodes []Node
	edges []Edge

	byNode map[string]int
}

// NewGraph builds a graph model and checks the structural invariants:
// non-empty identifiers, at least one port per node, edge endpoints
// fully specified and source != destination port. Identifier uniqueness
// and endpoint resolvability are domain validation concerns and are
// checked by the validator, not here.
func NewGraph(id, name string, nodes []Node, edges []Edge) (*Graph, error) {
	if id == "" {
		return nil, errors.NewMalformedGraphError("graph identifier is required")
	}

	for _, n := range nodes {
		if n.ID == "" {
			return nil, errors.NewMalformedGraphError("node identifier is required")
		}
		if n.Type != NodeTypeVNF && n.Type != NodeTypeEndpoint {
			return nil, errors.NewMalformedGraphError(
				fmt.Sprintf("node %s has unknown type %q", n.ID, n.Type))
		}
		if len(n.Ports) == 0 {
			return nil, errors.NewMalformedGraphError(
				fmt.Sprintf("node %s has no ports", n.ID))
		}
		for _, p := range n.Ports {
			if p.ID == "" {
				return nil, errors.NewMalformedGraphError(
					fmt.Sprintf("node %s has a port without identifier", n.ID))
			}
		}
	}

	for _, e := range edges {
		if e.ID == "" {
			return nil, errors.NewMalformedGraphError("edge identifier is required")
		}
		if e.From.NodeID == "" || e.From.PortID == "" || e.To.NodeID == "" || e.To.PortID == "" {
			return nil, errors.NewMalformedGraphError(
				fmt.Sprintf("edge %s does not specify both endpoints", e.ID))
		}
		if e.From == e.To {
			return nil, errors.NewMalformedGraphError(
				fmt.Sprintf("edge %s connects port %s to itself", e.ID, e.From))
		}
	}

	g := &Graph{
		id:     id,
		name:   name,
		nodes:  append([]Node(nil), nodes...),
		edges:  append([]Edge(nil), edges...),
		byNode: make(map[string]int, len(nodes)),
	}
	for i, n := range g.nodes {
		// Last occurrence wins here; duplicates are reported by the
		// validator with their own violation kind.
		g.byNode[n.ID] = i
	}
	return g, nil
}

// ID returns the graph identity
func (g *Graph) ID() string {
	return g.id
}

// Name returns the human-readable graph name
func (g *Graph) Name() string {
	return g.name
}

// Nodes returns the graph's nodes in submission order
func (g *Graph) Nodes() []Node {
	return append([]Node(nil), g.nodes...)
}

// Edges returns the graph's edges in submission order
func (g *Graph) Edges() []Edge {
	return append([]Edge(nil), g.edges...)
}

// Node resolves a node by identifier
func (g *Graph) Node(id string) (Node, bool) {
	i, ok := g.byNode[id]
	if !ok {
		return Node{}, false
	}
	return g.nodes[i], true
}

// HasPort reports whether a node+port pair exists in the graph
func (g *Graph) HasPort(ref PortRef) bool {
	node, ok := g.Node(ref.NodeID)
	if !ok {
		return false
	}
	for _, p := range node.Ports {
		if p.ID == ref.PortID {
			return true
		}
	}
	return false
}

// EdgesFrom returns all edges whose source is the given node
func (g *Graph) EdgesFrom(nodeID string) []Edge {
	var out []Edge
	for _, e := range g.edges {
		if e.From.NodeID == nodeID {
			out = append(out, e)
		}
	}
	return out
}
