package simcore

import (
	"math"
	"testing"
)

const floatTol = 1e-12

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) < floatTol
}

func TestSimulation_S1_SingleHopSingleChunk(t *testing.T) {
	sim, err := Build(
		[]TopologyEdgeInput{{U: "A", V: "B", LineRateBPS: 10e9, PropagationDelaySeconds: 1e-6}},
		[]ProducedChunkInput{{ChunkID: "c0", Node: "A"}},
		[]PolicyInput{{ChunkID: "c0", Src: "A", Dst: "B", QPID: 0, RateBPS: RateMax, ChunkSizeBytes: 3000, Path: []string{"A", "B"}}},
		Params{PacketPayloadBytes: 1000, DefaultQuantum: 1},
	)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if err := sim.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}

	completions := sim.CompletionTimes()
	got, ok := completions["c0"]["B"]
	if !ok {
		t.Fatal("c0 never completed at B")
	}
	want := 3.4e-6
	if !approxEqual(got, want) {
		t.Fatalf("completion time = %.12g, want %.12g", got, want)
	}

	received, total, ok := sim.Nodes["B"].Store.CompletionSeqs("c0")
	if !ok || received != 3 || total != 3 {
		t.Fatalf("got received=%d total=%d ok=%v", received, total, ok)
	}
}

func TestSimulation_S4_MultiHopSerialization(t *testing.T) {
	sim, err := Build(
		[]TopologyEdgeInput{
			{U: "A", V: "B", LineRateBPS: 10e9, PropagationDelaySeconds: 1e-6},
			{U: "B", V: "C", LineRateBPS: 10e9, PropagationDelaySeconds: 1e-6},
		},
		[]ProducedChunkInput{{ChunkID: "c0", Node: "A"}},
		[]PolicyInput{{ChunkID: "c0", Src: "A", Dst: "C", QPID: 0, RateBPS: RateMax, ChunkSizeBytes: 4000, Path: []string{"A", "B", "C"}}},
		Params{PacketPayloadBytes: 1000, DefaultQuantum: 1},
	)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if err := sim.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}

	// Last packet serializes on A->B starting at 2400ns (after the first
	// three 800ns transmissions), arrives at B at 4200ns; B->C stays
	// exactly saturated (800ns packet spacing equals its own tx_time), so
	// the last packet starts serializing at B the instant it arrives and
	// completes at 4200 + 800 (tx_B) + 1000 (prop) = 6000ns.
	got := sim.CompletionTimes()["c0"]["C"]
	want := 6.0e-6
	if !approxEqual(got, want) {
		t.Fatalf("completion time at C = %.12g, want %.12g", got, want)
	}
}

func TestSimulation_S5_FanOutDependency(t *testing.T) {
	sim, err := Build(
		[]TopologyEdgeInput{
			{U: "A", V: "B", LineRateBPS: 10e9, PropagationDelaySeconds: 1e-6},
			{U: "B", V: "C", LineRateBPS: 10e9, PropagationDelaySeconds: 1e-6},
			{U: "B", V: "D", LineRateBPS: 10e9, PropagationDelaySeconds: 1e-6},
		},
		[]ProducedChunkInput{{ChunkID: "c0", Node: "A"}},
		[]PolicyInput{
			{ChunkID: "c0", Src: "A", Dst: "B", QPID: 0, RateBPS: RateMax, ChunkSizeBytes: 1000, Path: []string{"A", "B"}},
			{ChunkID: "c0", Src: "B", Dst: "C", QPID: 0, RateBPS: RateMax, ChunkSizeBytes: 1000, Path: []string{"B", "C"}},
			{ChunkID: "c0", Src: "B", Dst: "D", QPID: 1, RateBPS: RateMax, ChunkSizeBytes: 1000, Path: []string{"B", "D"}},
		},
		Params{PacketPayloadBytes: 1000, DefaultQuantum: 1, TraceEnabled: true},
	)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if err := sim.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}

	completions := sim.CompletionTimes()
	atB := completions["c0"]["B"]
	atC := completions["c0"]["C"]
	atD := completions["c0"]["D"]

	wantLeg := atB + 800e-9 + 1e-6
	if !approxEqual(atC, wantLeg) {
		t.Errorf("completion at C = %.12g, want %.12g", atC, wantLeg)
	}
	if !approxEqual(atD, wantLeg) {
		t.Errorf("completion at D = %.12g, want %.12g", atD, wantLeg)
	}

	// Both fan-out policies enqueue at the same simulated time (atB), in
	// install order: C's packet before D's.
	var firedAtB []string
	for _, rec := range sim.Trace() {
		if rec.Kind == "PolicyFire" && rec.Node == "B" {
			firedAtB = append(firedAtB, rec.DstNode)
		}
	}
	if len(firedAtB) != 2 || firedAtB[0] != "C" || firedAtB[1] != "D" {
		t.Fatalf("fan-out fire order = %v, want [C D]", firedAtB)
	}
}

func TestSimulation_S6_MaxResolvesToEgressLineRate(t *testing.T) {
	sim, err := Build(
		[]TopologyEdgeInput{
			{U: "A", V: "B", LineRateBPS: 25e9, PropagationDelaySeconds: 1e-6},
			{U: "B", V: "C", LineRateBPS: 1e9, PropagationDelaySeconds: 1e-6},
		},
		[]ProducedChunkInput{{ChunkID: "c0", Node: "A"}},
		[]PolicyInput{{ChunkID: "c0", Src: "A", Dst: "C", QPID: 0, RateBPS: RateMax, ChunkSizeBytes: 1000, Path: []string{"A", "B", "C"}}},
		Params{PacketPayloadBytes: 1000, DefaultQuantum: 1, TraceEnabled: true},
	)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if err := sim.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}

	for _, rec := range sim.Trace() {
		if rec.Kind == "PolicyFire" {
			// The resolved rate is carried on the packet, not the trace
			// record; verify indirectly via A->B's observed serialization
			// time instead.
			_ = rec
		}
	}

	// tx_time on A->B at 25Gbps for a 1000B packet = 1000*8/25e9 = 320ns.
	// If "Max" had incorrectly picked up B->C's 1Gbps, tx_time would be 8us.
	summary := sim.Summary()
	var abUtil float64
	elapsed := sim.Scheduler.Now()
	for _, s := range summary {
		if s.Owner == "A" && s.Peer == "B" {
			abUtil = s.Utilization
		}
	}
	wantBusy := 320e-9
	gotBusy := abUtil * elapsed
	if !approxEqual(gotBusy, wantBusy) {
		t.Fatalf("A->B busy time = %.12g, want %.12g", gotBusy, wantBusy)
	}
}

func TestSimulation_ZeroSizeChunkFiresSyntheticArrival(t *testing.T) {
	sim, err := Build(
		[]TopologyEdgeInput{{U: "A", V: "B", LineRateBPS: 10e9, PropagationDelaySeconds: 1e-6}},
		[]ProducedChunkInput{{ChunkID: "c0", Node: "A"}},
		[]PolicyInput{{ChunkID: "c0", Src: "A", Dst: "B", QPID: 0, RateBPS: RateMax, ChunkSizeBytes: 0, Path: []string{"A", "B"}}},
		Params{PacketPayloadBytes: 1000, DefaultQuantum: 1},
	)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if err := sim.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !sim.Nodes["B"].Store.IsFullyOwned("c0") {
		t.Fatal("expected synthetic ChunkArrived to mark c0 fully owned at B")
	}
}

func TestSimulation_RouteErrorOnBrokenPath(t *testing.T) {
	// Build bypasses path-edge validation only if we hand-craft an entry
	// past install(); exercise the runtime RouteError path by installing a
	// valid entry whose destination port is later removed.
	sim, err := Build(
		[]TopologyEdgeInput{
			{U: "A", V: "B", LineRateBPS: 10e9, PropagationDelaySeconds: 1e-6},
			{U: "B", V: "C", LineRateBPS: 10e9, PropagationDelaySeconds: 1e-6},
		},
		[]ProducedChunkInput{{ChunkID: "c0", Node: "A"}},
		[]PolicyInput{{ChunkID: "c0", Src: "A", Dst: "C", QPID: 0, RateBPS: RateMax, ChunkSizeBytes: 1000, Path: []string{"A", "B", "C"}}},
		Params{PacketPayloadBytes: 1000, DefaultQuantum: 1},
	)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	delete(sim.Nodes["B"].Ports, "C")

	err = sim.Run()
	if err == nil {
		t.Fatal("expected RouteError once B's egress to C is gone")
	}
}

func TestSimulation_InvalidConfigRejected(t *testing.T) {
	edges := []TopologyEdgeInput{{U: "A", V: "B", LineRateBPS: 10e9, PropagationDelaySeconds: 1e-6}}
	if _, err := Build(edges, nil, nil, Params{PacketPayloadBytes: 0, DefaultQuantum: 1}); err == nil {
		t.Fatal("expected InvalidConfig for payload_bytes=0")
	}
	if _, err := Build(edges, nil, nil, Params{PacketPayloadBytes: 1000, DefaultQuantum: 0}); err == nil {
		t.Fatal("expected InvalidConfig for default_quantum=0")
	}
}
