package simcore

import "fmt"

// TopologyEdgeInput is one resolved directed edge as accepted at Build time:
// (u, v, line_rate_bps, propagation_delay_seconds).
type TopologyEdgeInput struct {
	U                       string
	V                       string
	LineRateBPS             float64
	PropagationDelaySeconds float64
}

// Topology is the resolved, already-validated set of directed edges the
// engine consumes. Graph construction itself is out of scope — by the time
// it reaches Build the topology is just this adjacency.
type Topology struct {
	edges map[string]map[string]TopologyEdgeInput // u -> v -> edge
	nodes map[string]struct{}
}

func newTopology(edges []TopologyEdgeInput) (*Topology, error) {
	t := &Topology{
		edges: make(map[string]map[string]TopologyEdgeInput),
		nodes: make(map[string]struct{}),
	}
	for _, e := range edges {
		if e.U == "" || e.V == "" {
			return nil, fmt.Errorf("edge with empty endpoint: %w", ErrInvalidConfig)
		}
		if e.LineRateBPS <= 0 {
			return nil, fmt.Errorf("edge %s->%s line_rate_bps %.0f: %w", e.U, e.V, e.LineRateBPS, ErrInvalidConfig)
		}
		if e.PropagationDelaySeconds < 0 {
			return nil, fmt.Errorf("edge %s->%s propagation_delay_seconds %.9f: %w", e.U, e.V, e.PropagationDelaySeconds, ErrInvalidConfig)
		}
		if t.edges[e.U] == nil {
			t.edges[e.U] = make(map[string]TopologyEdgeInput)
		}
		if _, dup := t.edges[e.U][e.V]; dup {
			return nil, fmt.Errorf("duplicate edge %s->%s: %w", e.U, e.V, ErrInvalidConfig)
		}
		t.edges[e.U][e.V] = e
		t.nodes[e.U] = struct{}{}
		t.nodes[e.V] = struct{}{}
	}
	return t, nil
}

// Edge returns the edge (u, v) if it exists in the topology.
func (t *Topology) Edge(u, v string) (TopologyEdgeInput, bool) {
	peers, ok := t.edges[u]
	if !ok {
		return TopologyEdgeInput{}, false
	}
	e, ok := peers[v]
	return e, ok
}

// HasNode reports whether id appears as an endpoint of any edge.
func (t *Topology) HasNode(id string) bool {
	_, ok := t.nodes[id]
	return ok
}

// NodeIDs returns all node ids referenced by the topology, in no particular
// order.
func (t *Topology) NodeIDs() []string {
	ids := make([]string, 0, len(t.nodes))
	for id := range t.nodes {
		ids = append(ids, id)
	}
	return ids
}
