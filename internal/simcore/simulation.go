package simcore

import "fmt"

// Params are the simulator-wide global parameters (spec.md §6).
type Params struct {
	PacketPayloadBytes int64
	DefaultQuantum     int
	TraceEnabled       bool
	// TimeHorizonSeconds bounds Run; <= 0 means run until the event queue
	// is idle (until_idle).
	TimeHorizonSeconds float64
}

// ProducedChunkInput bootstraps a chunk as already fully owned at its
// producing node at t=0, per spec.md §4.6: "the simulator bootstraps by
// installing a synthetic ChunkArrived(chunk_id, src) at t=0 for every chunk
// declared as produced at src."
type ProducedChunkInput struct {
	ChunkID string
	Node    string
}

// chunkArrivedPayload is the Event payload for a synthetic (non-packet)
// ChunkArrived signal: bootstrap production and zero-size chunk firing.
type chunkArrivedPayload struct {
	chunkID string
	node    string
}

// PortUtilizationSummary reports busy_time/elapsed_time for a single port,
// keyed by the directed edge it serves.
type PortUtilizationSummary struct {
	Owner       string
	Peer        string
	Utilization float64
}

// Simulation is the top-level orchestrator: wires the topology, installs
// policies, runs the engine until quiescence or a deadline, and exposes
// results.
type Simulation struct {
	Topology *Topology
	Nodes    map[string]*Node
	Scheduler *EventScheduler
	Policies *PolicyEngine
	Dependency *DependencyTracker
	Params   Params

	completions map[string]map[string]float64 // chunk_id -> dst_node -> time
	trace       []TraceRecord

	logger  SimLogger
	metrics SimMetrics
}

// SimLogger is the narrow logging surface Simulation calls into; nil-safe
// via NopLogger. Concrete implementations live in internal/observability.
type SimLogger interface {
	PolicyFired(chunkID, src string, numPackets int)
	ChunkArrived(chunkID, node string)
	PacketForwarded(chunkID string, seq int, node, next string)
	EngineError(err error)
}

// SimMetrics is the narrow metrics surface Simulation calls into; nil-safe
// via NopMetrics. Concrete implementation lives in internal/observability.
type SimMetrics interface {
	PacketsForwarded(count int)
	ChunkCompleted(node string)
	PortUtilization(owner, peer string, utilization float64)
}

// Build validates params, constructs the topology/nodes/ports, installs
// policies, and bootstraps produced chunks. Returns InvalidConfig for bad
// global params and InvalidPolicy for any rejected policy entry.
func Build(edges []TopologyEdgeInput, produced []ProducedChunkInput, policies []PolicyInput, params Params) (*Simulation, error) {
	if params.PacketPayloadBytes <= 0 {
		return nil, fmt.Errorf("packet_payload_bytes %d: %w", params.PacketPayloadBytes, ErrInvalidConfig)
	}
	if params.DefaultQuantum < 1 {
		return nil, fmt.Errorf("default_quantum %d: %w", params.DefaultQuantum, ErrInvalidConfig)
	}

	topo, err := newTopology(edges)
	if err != nil {
		return nil, err
	}

	sim := &Simulation{
		Topology:    topo,
		Nodes:       make(map[string]*Node),
		Scheduler:   NewEventScheduler(),
		Policies:    newPolicyEngine(),
		Params:      params,
		completions: make(map[string]map[string]float64),
		logger:      NopLogger{},
		metrics:     NopMetrics{},
	}
	sim.Dependency = newDependencyTracker(sim.Policies)

	for _, id := range topo.NodeIDs() {
		sim.Nodes[id] = newNode(id)
	}
	for u, peers := range topo.edges {
		for v, e := range peers {
			port, err := newPort(u, v, e.LineRateBPS, e.PropagationDelaySeconds, params.DefaultQuantum)
			if err != nil {
				return nil, err
			}
			sim.Nodes[u].Ports[v] = port
		}
	}

	for _, pin := range policies {
		if _, err := sim.Policies.install(pin, topo); err != nil {
			return nil, err
		}
	}

	for _, pc := range produced {
		if !topo.HasNode(pc.Node) {
			return nil, fmt.Errorf("produced chunk %q at unknown node %q: %w", pc.ChunkID, pc.Node, ErrInvalidPolicy)
		}
		sim.Nodes[pc.Node].Store.markFullyOwned(pc.ChunkID, 0, 0)
		if err := sim.Scheduler.Schedule(0, EventPolicyFire, chunkArrivedPayload{chunkID: pc.ChunkID, node: pc.Node}); err != nil {
			return nil, err
		}
	}

	return sim, nil
}

// SetLogger installs a non-nil SimLogger; ambient, optional.
func (sim *Simulation) SetLogger(l SimLogger) {
	if l != nil {
		sim.logger = l
	}
}

// SetMetrics installs a non-nil SimMetrics; ambient, optional.
func (sim *Simulation) SetMetrics(m SimMetrics) {
	if m != nil {
		sim.metrics = m
	}
}

func (sim *Simulation) getPort(owner, peer string) (*Port, bool) {
	node, ok := sim.Nodes[owner]
	if !ok {
		return nil, false
	}
	p, ok := node.Ports[peer]
	return p, ok
}

func (sim *Simulation) recordTrace(now float64, kind, node string, p *Packet) {
	if !sim.Params.TraceEnabled {
		return
	}
	sim.trace = append(sim.trace, newTraceRecord(now, kind, node, p))
}

// signalChunkArrived marks chunkID fully owned at node (idempotent) and
// fires any pending policy entries keyed at (chunkID, node). Used both for
// the t=0 production bootstrap and for the zero-size-chunk fire() edge
// case.
func (sim *Simulation) signalChunkArrived(chunkID, node string, now float64) error {
	sim.Nodes[node].Store.markFullyOwned(chunkID, 0, 0)
	sim.logger.ChunkArrived(chunkID, node)
	return sim.Dependency.onChunkArrived(chunkID, node, sim)
}

// onArrival implements spec.md §4.4's Node.Arrival rule: terminal delivery
// to ChunkStore, or forwarding to the next hop's Port.
func (sim *Simulation) onArrival(p *Packet, n string, now float64) error {
	p.PathIdx++
	sim.recordTrace(now, "Arrival", n, p)

	node, ok := sim.Nodes[n]
	if !ok {
		return newEngineError(now, n, p, fmt.Errorf("unknown node %q: %w", n, ErrRoute))
	}

	if n == p.Path[len(p.Path)-1] {
		newlyOwned, err := node.Store.Deposit(p)
		if err != nil {
			return newEngineError(now, n, p, err)
		}
		if newlyOwned {
			sim.metrics.ChunkCompleted(n)
			if sim.completions[p.ChunkID] == nil {
				sim.completions[p.ChunkID] = make(map[string]float64)
			}
			sim.completions[p.ChunkID][n] = now
			if err := sim.signalChunkArrived(p.ChunkID, n, now); err != nil {
				return err
			}
		}
		return nil
	}

	next := p.Path[p.PathIdx+1]
	port, ok := node.Ports[next]
	if !ok {
		return newEngineError(now, n, p, fmt.Errorf("no egress port %s->%s: %w", n, next, ErrRoute))
	}
	sim.logger.PacketForwarded(p.ChunkID, p.Seq, n, next)
	sim.metrics.PacketsForwarded(1)
	if err := port.Enqueue(p, sim.Scheduler); err != nil {
		return newEngineError(now, n, p, err)
	}
	return nil
}

// dispatch is the scheduler's event handler, routing each Event kind to its
// handler.
func (sim *Simulation) dispatch(e *Event) error {
	switch e.Kind {
	case EventTxComplete:
		pay := e.Payload.(txCompletePayload)
		return pay.port.onTxComplete(sim.Scheduler)
	case EventArrival:
		pay := e.Payload.(arrivalPayload)
		return sim.onArrival(pay.packet, pay.node, sim.Scheduler.Now())
	case EventPolicyFire:
		pay := e.Payload.(chunkArrivedPayload)
		return sim.signalChunkArrived(pay.chunkID, pay.node, sim.Scheduler.Now())
	default:
		return nil
	}
}

// Run drives the EventScheduler until the queue is idle or
// Params.TimeHorizonSeconds is reached, whichever comes first. It returns
// an *EngineError if the run aborts on a RouteError or DuplicatePacket.
func (sim *Simulation) Run() error {
	tEnd := -1.0
	if sim.Params.TimeHorizonSeconds > 0 {
		tEnd = sim.Params.TimeHorizonSeconds
	}
	if err := sim.Scheduler.RunUntil(tEnd, sim.dispatch); err != nil {
		sim.logger.EngineError(err)
		return err
	}
	return nil
}

// CompletionTimes returns chunk_id -> dst_node -> time_seconds for every
// chunk whose last packet was delivered at a node during the run. Chunks
// marked fully owned without packets (produced chunks, zero-size sends)
// have no entry.
func (sim *Simulation) CompletionTimes() map[string]map[string]float64 {
	out := make(map[string]map[string]float64, len(sim.completions))
	for chunkID, byNode := range sim.completions {
		cp := make(map[string]float64, len(byNode))
		for node, t := range byNode {
			cp[node] = t
		}
		out[chunkID] = cp
	}
	return out
}

// Trace returns the recorded per-packet trace, empty unless
// Params.TraceEnabled was set at Build time.
func (sim *Simulation) Trace() []TraceRecord {
	return append([]TraceRecord(nil), sim.trace...)
}

// Summary returns per-port utilization (busy_time / elapsed_time) across
// every port in the topology, elapsed being the final simulated time.
func (sim *Simulation) Summary() []PortUtilizationSummary {
	elapsed := sim.Scheduler.Now()
	var out []PortUtilizationSummary
	for _, node := range sim.Nodes {
		for peer, port := range node.Ports {
			u := port.Utilization(elapsed)
			sim.metrics.PortUtilization(node.ID, peer, u)
			out = append(out, PortUtilizationSummary{Owner: node.ID, Peer: peer, Utilization: u})
		}
	}
	return out
}

// NopLogger is a SimLogger that discards everything; the Simulation default.
type NopLogger struct{}

func (NopLogger) PolicyFired(string, string, int)          {}
func (NopLogger) ChunkArrived(string, string)               {}
func (NopLogger) PacketForwarded(string, int, string, string) {}
func (NopLogger) EngineError(error)                          {}

// NopMetrics is a SimMetrics that discards everything; the Simulation default.
type NopMetrics struct{}

func (NopMetrics) PacketsForwarded(int)                    {}
func (NopMetrics) ChunkCompleted(string)                    {}
func (NopMetrics) PortUtilization(string, string, float64) {}
