package scenario

import (
	"encoding/json"
	"testing"

	"github.com/quantarax/cclsim/internal/simcore"
)

func sampleScenario() *Scenario {
	return &Scenario{
		Topology: []Edge{
			{U: "A", V: "B", LineRateBPS: 25e9, PropagationDelaySeconds: 1e-6},
		},
		Produced: []ProducedChunk{{ChunkID: "c0", Node: "A"}},
		Policies: []Policy{
			{ChunkID: "c0", Src: "A", Dst: "B", QPID: 0, Rate: "Max", ChunkSizeBytes: 4096, Path: []string{"A", "B"}},
		},
		Params: Params{PacketPayloadBytes: 4096, DefaultQuantum: 1},
	}
}

func TestScenario_ParseRoundTrip(t *testing.T) {
	data, err := json.Marshal(sampleScenario())
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	sc, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	edges, produced, policies, params, err := sc.ToBuildInputs()
	if err != nil {
		t.Fatalf("ToBuildInputs failed: %v", err)
	}
	if len(edges) != 1 || len(produced) != 1 || len(policies) != 1 {
		t.Fatalf("unexpected counts: edges=%d produced=%d policies=%d", len(edges), len(produced), len(policies))
	}
	if policies[0].RateBPS != simcore.RateMax {
		t.Errorf("expected Max to resolve to simcore.RateMax, got %v", policies[0].RateBPS)
	}
	if params.PacketPayloadBytes != 4096 {
		t.Errorf("expected payload 4096, got %d", params.PacketPayloadBytes)
	}
}

func TestScenario_NumericRateResolves(t *testing.T) {
	sc := sampleScenario()
	sc.Policies[0].Rate = "1e9"
	_, _, policies, _, err := sc.ToBuildInputs()
	if err != nil {
		t.Fatalf("ToBuildInputs failed: %v", err)
	}
	if policies[0].RateBPS != 1e9 {
		t.Errorf("expected rate 1e9, got %v", policies[0].RateBPS)
	}
}

func TestScenario_FingerprintStableUnderReordering(t *testing.T) {
	sc1 := sampleScenario()
	sc1.Topology = append(sc1.Topology, Edge{U: "B", V: "C", LineRateBPS: 1e9, PropagationDelaySeconds: 1e-6})

	sc2 := sampleScenario()
	sc2.Topology = []Edge{
		{U: "B", V: "C", LineRateBPS: 1e9, PropagationDelaySeconds: 1e-6},
		{U: "A", V: "B", LineRateBPS: 25e9, PropagationDelaySeconds: 1e-6},
	}

	fp1, err := sc1.Fingerprint()
	if err != nil {
		t.Fatalf("Fingerprint failed: %v", err)
	}
	fp2, err := sc2.Fingerprint()
	if err != nil {
		t.Fatalf("Fingerprint failed: %v", err)
	}
	if fp1 != fp2 {
		t.Errorf("expected reordered topology to fingerprint identically, got %s != %s", fp1, fp2)
	}
}

func TestScenario_FingerprintDiffersOnSemanticChange(t *testing.T) {
	sc1 := sampleScenario()
	sc2 := sampleScenario()
	sc2.Policies[0].ChunkSizeBytes = 8192

	fp1, _ := sc1.Fingerprint()
	fp2, _ := sc2.Fingerprint()
	if fp1 == fp2 {
		t.Error("expected differing chunk size to change the fingerprint")
	}
}

func TestScenario_ParseRejectsInvalidJSON(t *testing.T) {
	if _, err := Parse([]byte("not json")); err == nil {
		t.Error("expected error parsing invalid JSON")
	}
}
