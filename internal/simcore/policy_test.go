package simcore

import "testing"

func mustTopo(t *testing.T, edges []TopologyEdgeInput) *Topology {
	t.Helper()
	topo, err := newTopology(edges)
	if err != nil {
		t.Fatalf("newTopology: %v", err)
	}
	return topo
}

func TestPolicyEngine_InstallRejectsPathMismatch(t *testing.T) {
	topo := mustTopo(t, []TopologyEdgeInput{{U: "A", V: "B", LineRateBPS: 1e9, PropagationDelaySeconds: 1e-6}})
	pe := newPolicyEngine()

	_, err := pe.install(PolicyInput{
		ChunkID: "c0", Src: "A", Dst: "B", QPID: 0, RateBPS: RateMax,
		ChunkSizeBytes: 100, Path: []string{"X", "B"},
	}, topo)
	if err == nil {
		t.Fatal("expected InvalidPolicy when path[0] != src")
	}
}

func TestPolicyEngine_InstallRejectsUnknownNode(t *testing.T) {
	topo := mustTopo(t, []TopologyEdgeInput{{U: "A", V: "B", LineRateBPS: 1e9, PropagationDelaySeconds: 1e-6}})
	pe := newPolicyEngine()
	_, err := pe.install(PolicyInput{
		ChunkID: "c0", Src: "A", Dst: "Z", QPID: 0, RateBPS: RateMax,
		ChunkSizeBytes: 100, Path: []string{"A", "Z"},
	}, topo)
	if err == nil {
		t.Fatal("expected InvalidPolicy for unknown dst node")
	}
}

func TestPolicyEngine_InstallRejectsNonEdgePath(t *testing.T) {
	topo := mustTopo(t, []TopologyEdgeInput{
		{U: "A", V: "B", LineRateBPS: 1e9, PropagationDelaySeconds: 1e-6},
		{U: "C", V: "D", LineRateBPS: 1e9, PropagationDelaySeconds: 1e-6},
	})
	pe := newPolicyEngine()
	_, err := pe.install(PolicyInput{
		ChunkID: "c0", Src: "A", Dst: "D", QPID: 0, RateBPS: RateMax,
		ChunkSizeBytes: 100, Path: []string{"A", "D"},
	}, topo)
	if err == nil {
		t.Fatal("expected InvalidPolicy for a path with no matching edge")
	}
}

func TestPolicyEngine_EntriesForPreservesInstallOrder(t *testing.T) {
	topo := mustTopo(t, []TopologyEdgeInput{
		{U: "B", V: "C", LineRateBPS: 1e9, PropagationDelaySeconds: 1e-6},
		{U: "B", V: "D", LineRateBPS: 1e9, PropagationDelaySeconds: 1e-6},
	})
	pe := newPolicyEngine()
	_, _ = pe.install(PolicyInput{ChunkID: "c0", Src: "B", Dst: "C", QPID: 0, RateBPS: RateMax, ChunkSizeBytes: 10, Path: []string{"B", "C"}}, topo)
	_, _ = pe.install(PolicyInput{ChunkID: "c0", Src: "B", Dst: "D", QPID: 1, RateBPS: RateMax, ChunkSizeBytes: 10, Path: []string{"B", "D"}}, topo)

	entries := pe.entriesFor("c0", "B")
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].Dst != "C" || entries[1].Dst != "D" {
		t.Fatalf("order not preserved: %s, %s", entries[0].Dst, entries[1].Dst)
	}
}
