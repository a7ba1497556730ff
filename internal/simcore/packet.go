package simcore

// RateMax is the sentinel the policy input uses in place of a numeric rate
// to mean "use the source-egress link's line rate".
const RateMax = -1

// Packet is an immutable descriptor of one fragment of a chunk in flight.
// Only PathIdx is mutated, and only by Simulation.onArrival, once per hop
// the packet reaches.
type Packet struct {
	ChunkID      string
	Seq          int
	Total        int
	SizeBytes    int64
	SrcNode      string
	DstNode      string
	Path         []string
	PathIdx      int
	QPIDAtSource int
	RateBPS      float64 // resolved numeric rate, never RateMax after PolicyEngine.fire
}

// AtDestination reports whether the packet has reached the last hop of
// its path.
func (p *Packet) AtDestination() bool {
	return p.Path[len(p.Path)-1] == p.Path[p.PathIdx]
}

// NextHop returns the node id the packet should be forwarded to after
// PathIdx is advanced, and whether such a hop exists.
func (p *Packet) NextHop() (string, bool) {
	if p.PathIdx+1 >= len(p.Path) {
		return "", false
	}
	return p.Path[p.PathIdx+1], true
}
