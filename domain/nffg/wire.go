package nffg

// Wire DTOs for the NF-FG JSON format. The transport layer decodes the
// body into these structs, runs struct-tag validation, and hands the
// result to ToModel; everything beyond shape checking happens in the
// model constructor and the domain validator.

// GraphDocument is the top-level request/response body
type GraphDocument struct {
	ForwardingGraph GraphSpec `json:"forwarding-graph" validate:"required"`
}

// GraphSpec is the declarative description of a forwarding graph
type GraphSpec struct {
	ID        string         `json:"id" validate:"required,max=255"`
	Name      string         `json:"name,omitempty" validate:"max=255"`
	VNFs      []VNFSpec      `json:"VNFs,omitempty" validate:"dive"`
	EndPoints []EndpointSpec `json:"end-points,omitempty" validate:"dive"`
	FlowRules []FlowRuleSpec `json:"flow-rules,omitempty" validate:"dive"`
}

// VNFSpec declares a virtual network function node
type VNFSpec struct {
	ID       string     `json:"id" validate:"required"`
	Name     string     `json:"name,omitempty"`
	Ports    []PortSpec `json:"ports" validate:"required,min=1,dive"`
	CPUCores int        `json:"cpu-cores,omitempty" validate:"min=0"`
	MemoryMB int        `json:"memory-mb,omitempty" validate:"min=0"`

	// These only make sense on endpoints; the domain validator rejects
	// them here as useless information
	Interface string `json:"interface,omitempty"`
	VLAN      int    `json:"vlan,omitempty"`
}

// EndpointSpec declares an attachment point to the outside network
type EndpointSpec struct {
	ID        string     `json:"id" validate:"required"`
	Name      string     `json:"name,omitempty"`
	Ports     []PortSpec `json:"ports" validate:"required,min=1,dive"`
	Interface string     `json:"interface,omitempty"`
	VLAN      int        `json:"vlan,omitempty" validate:"min=0,max=4094"`

	// ResourceID references a pre-existing endpoint owned by the tenant
	ResourceID string `json:"resource-id,omitempty"`

	// Resource requirements only make sense on VNFs
	CPUCores int `json:"cpu-cores,omitempty"`
	MemoryMB int `json:"memory-mb,omitempty"`
}

// PortSpec declares a port on a node
type PortSpec struct {
	ID string `json:"id" validate:"required"`
}

// FlowRuleSpec declares one directed edge between two node ports
type FlowRuleSpec struct {
	ID       string     `json:"id" validate:"required"`
	FromNode string     `json:"from-node" validate:"required"`
	FromPort string     `json:"from-port" validate:"required"`
	ToNode   string     `json:"to-node" validate:"required"`
	ToPort   string     `json:"to-port" validate:"required"`
	Match    *MatchSpec `json:"match,omitempty"`
}

// MatchSpec narrows the traffic an edge carries
type MatchSpec struct {
	EtherType     string `json:"ether-type,omitempty"`
	VLANID        int    `json:"vlan-id,omitempty" validate:"min=0,max=4094"`
	SourceIP      string `json:"source-ip,omitempty" validate:"omitempty,ip"`
	DestinationIP string `json:"destination-ip,omitempty" validate:"omitempty,ip"`
	Protocol      string `json:"protocol,omitempty" validate:"omitempty,oneof=tcp udp icmp"`
	TCPDstPort    int    `json:"tcp-dst-port,omitempty" validate:"min=0,max=65535"`
}

// ToModel builds the graph model from the wire representation
func (d *GraphDocument) ToModel() (*Graph, error) {
	spec := d.ForwardingGraph

	nodes := make([]Node, 0, len(spec.VNFs)+len(spec.EndPoints))
	for _, v := range spec.VNFs {
		nodes = append(nodes, Node{
			ID:        v.ID,
			Name:      v.Name,
			Type:      NodeTypeVNF,
			Ports:     toPorts(v.Ports),
			Resources: Resources{CPUCores: v.CPUCores, MemoryMB: v.MemoryMB},
			Interface: v.Interface,
			VLAN:      v.VLAN,
		})
	}
	for _, ep := range spec.EndPoints {
		nodes = append(nodes, Node{
			ID:         ep.ID,
			Name:       ep.Name,
			Type:       NodeTypeEndpoint,
			Ports:      toPorts(ep.Ports),
			Resources:  Resources{CPUCores: ep.CPUCores, MemoryMB: ep.MemoryMB},
			Interface:  ep.Interface,
			VLAN:       ep.VLAN,
			ResourceID: ep.ResourceID,
		})
	}

	edges := make([]Edge, 0, len(spec.FlowRules))
	for _, fr := range spec.FlowRules {
		var match *TrafficMatch
		if fr.Match != nil {
			match = &TrafficMatch{
				EtherType:     fr.Match.EtherType,
				VLANID:        fr.Match.VLANID,
				SourceIP:      fr.Match.SourceIP,
				DestinationIP: fr.Match.DestinationIP,
				Protocol:      fr.Match.Protocol,
				TCPDstPort:    fr.Match.TCPDstPort,
			}
		}
		edges = append(edges, Edge{
			ID:    fr.ID,
			From:  PortRef{NodeID: fr.FromNode, PortID: fr.FromPort},
			To:    PortRef{NodeID: fr.ToNode, PortID: fr.ToPort},
			Match: match,
		})
	}

	return NewGraph(spec.ID, spec.Name, nodes, edges)
}

// FromModel rebuilds the wire representation of a graph for responses
func FromModel(g *Graph) *GraphDocument {
	spec := GraphSpec{ID: g.ID(), Name: g.Name()}

	for _, n := range g.Nodes() {
		switch n.Type {
		case NodeTypeVNF:
			spec.VNFs = append(spec.VNFs, VNFSpec{
				ID:       n.ID,
				Name:     n.Name,
				Ports:    fromPorts(n.Ports),
				CPUCores: n.Resources.CPUCores,
				MemoryMB: n.Resources.MemoryMB,
			})
		case NodeTypeEndpoint:
			spec.EndPoints = append(spec.EndPoints, EndpointSpec{
				ID:         n.ID,
				Name:       n.Name,
				Ports:      fromPorts(n.Ports),
				Interface:  n.Interface,
				VLAN:       n.VLAN,
				ResourceID: n.ResourceID,
			})
		}
	}

	for _, e := range g.Edges() {
		var match *MatchSpec
		if e.Match != nil {
			match = &MatchSpec{
				EtherType:     e.Match.EtherType,
				VLANID:        e.Match.VLANID,
				SourceIP:      e.Match.SourceIP,
				DestinationIP: e.Match.DestinationIP,
				Protocol:      e.Match.Protocol,
				TCPDstPort:    e.Match.TCPDstPort,
			}
		}
		spec.FlowRules = append(spec.FlowRules, FlowRuleSpec{
			ID:       e.ID,
			FromNode: e.From.NodeID,
			FromPort: e.From.PortID,
			ToNode:   e.To.NodeID,
			ToPort:   e.To.PortID,
			Match:    match,
		})
	}

	return &GraphDocument{ForwardingGraph: spec}
}

func toPorts(specs []PortSpec) []Port {
	ports := make([]Port, 0, len(specs))
	for _, p := range specs {
		ports = append(ports, Port{ID: p.ID})
	}
	return ports
}

func fromPorts(ports []Port) []PortSpec {
	specs := make([]PortSpec, 0, len(ports))
	for _, p := range ports {
		specs = append(specs, PortSpec{ID: p.ID})
	}
	return specs
}
