// Package scenario defines the JSON envelope submitted to the daemon (and
// read from disk by the simcli tool): a topology, a set of produced chunks,
// a set of policy entries, and global engine params. It converts that
// envelope into the internal/simcore Build inputs and computes a stable
// fingerprint used as the result-cache key.
package scenario

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/zeebo/blake3"

	"github.com/quantarax/cclsim/internal/simcore"
	"github.com/quantarax/cclsim/internal/validation"
)

// Edge is one directed link in the topology.
type Edge struct {
	U                       string  `json:"u"`
	V                       string  `json:"v"`
	LineRateBPS             float64 `json:"line_rate_bps"`
	PropagationDelaySeconds float64 `json:"propagation_delay_seconds"`
}

// ProducedChunk declares a chunk as already fully owned at Node at t=0.
type ProducedChunk struct {
	ChunkID string `json:"chunk_id"`
	Node    string `json:"node"`
}

// Policy is one policy entry: when Src becomes fully owning of ChunkID, it
// fires a send of ChunkID along Path at Rate bits/s (or "Max").
type Policy struct {
	ChunkID        string   `json:"chunk_id"`
	Src            string   `json:"src"`
	Dst            string   `json:"dst"`
	QPID           int      `json:"qpid"`
	Rate           string   `json:"rate"` // numeric string, or the literal "Max"
	ChunkSizeBytes int64    `json:"chunk_size_bytes"`
	Path           []string `json:"path"`
}

// Params mirrors simcore.Params at the JSON boundary.
type Params struct {
	PacketPayloadBytes int64   `json:"packet_payload_bytes"`
	DefaultQuantum     int     `json:"default_quantum"`
	TraceEnabled       bool    `json:"trace_enabled"`
	TimeHorizonSeconds float64 `json:"time_horizon_seconds"`
}

// Scenario is the full submission envelope.
type Scenario struct {
	Topology []Edge          `json:"topology"`
	Produced []ProducedChunk `json:"produced"`
	Policies []Policy        `json:"policies"`
	Params   Params          `json:"params"`
}

// Parse decodes and validates a scenario from JSON bytes.
func Parse(data []byte) (*Scenario, error) {
	var s Scenario
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("invalid scenario json: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate rejects field-level mistakes (empty IDs, non-positive line
// rates, out-of-range QP ids, chunk sizes, payload and quantum) before the
// envelope ever reaches Build, where the same problems would surface as
// harder-to-attribute ErrInvalidConfig/ErrInvalidPolicy errors deep in
// engine construction. Propagation delays and policy rates are not checked
// here; Build rejects invalid ones.
func (s *Scenario) Validate() error {
	for _, e := range s.Topology {
		if err := validation.ValidateStringNonEmpty(e.U); err != nil {
			return fmt.Errorf("topology edge missing u: %w", err)
		}
		if err := validation.ValidateStringNonEmpty(e.V); err != nil {
			return fmt.Errorf("topology edge missing v: %w", err)
		}
		if err := validation.ValidatePositiveFloat("line_rate_bps", e.LineRateBPS); err != nil {
			return err
		}
	}
	for _, p := range s.Produced {
		if err := validation.ValidateStringNonEmpty(p.ChunkID); err != nil {
			return fmt.Errorf("produced chunk missing chunk_id: %w", err)
		}
		if err := validation.ValidateStringNonEmpty(p.Node); err != nil {
			return fmt.Errorf("produced chunk missing node: %w", err)
		}
	}
	for _, p := range s.Policies {
		if err := validation.ValidateStringNonEmpty(p.ChunkID); err != nil {
			return fmt.Errorf("policy missing chunk_id: %w", err)
		}
		if err := validation.ValidateRangeInt(p.QPID, 0, 1<<20); err != nil {
			return fmt.Errorf("policy %s: qpid: %w", p.ChunkID, err)
		}
		if err := validation.ValidateRangeInt64(p.ChunkSizeBytes, 0, 1<<48); err != nil {
			return fmt.Errorf("policy %s: chunk_size_bytes: %w", p.ChunkID, err)
		}
	}
	if err := validation.ValidateRangeInt64(s.Params.PacketPayloadBytes, 1, 1<<30); err != nil {
		return fmt.Errorf("params.packet_payload_bytes: %w", err)
	}
	if err := validation.ValidateRangeInt(s.Params.DefaultQuantum, 1, 1<<20); err != nil {
		return fmt.Errorf("params.default_quantum: %w", err)
	}
	return nil
}

// ToBuildInputs converts the envelope to internal/simcore's Build arguments.
// Rate resolution ("Max" vs numeric) happens here since PolicyInput.RateBPS
// is a plain float64 using simcore.RateMax as its sentinel.
func (s *Scenario) ToBuildInputs() ([]simcore.TopologyEdgeInput, []simcore.ProducedChunkInput, []simcore.PolicyInput, simcore.Params, error) {
	edges := make([]simcore.TopologyEdgeInput, 0, len(s.Topology))
	for _, e := range s.Topology {
		edges = append(edges, simcore.TopologyEdgeInput{
			U:                       e.U,
			V:                       e.V,
			LineRateBPS:             e.LineRateBPS,
			PropagationDelaySeconds: e.PropagationDelaySeconds,
		})
	}

	produced := make([]simcore.ProducedChunkInput, 0, len(s.Produced))
	for _, p := range s.Produced {
		produced = append(produced, simcore.ProducedChunkInput{ChunkID: p.ChunkID, Node: p.Node})
	}

	policies := make([]simcore.PolicyInput, 0, len(s.Policies))
	for _, p := range s.Policies {
		rate, err := resolveRate(p.Rate)
		if err != nil {
			return nil, nil, nil, simcore.Params{}, fmt.Errorf("policy %s/%s: %w", p.ChunkID, p.Src, err)
		}
		policies = append(policies, simcore.PolicyInput{
			ChunkID:        p.ChunkID,
			Src:            p.Src,
			Dst:            p.Dst,
			QPID:           p.QPID,
			RateBPS:        rate,
			ChunkSizeBytes: p.ChunkSizeBytes,
			Path:           p.Path,
		})
	}

	params := simcore.Params{
		PacketPayloadBytes: s.Params.PacketPayloadBytes,
		DefaultQuantum:     s.Params.DefaultQuantum,
		TraceEnabled:       s.Params.TraceEnabled,
		TimeHorizonSeconds: s.Params.TimeHorizonSeconds,
	}

	return edges, produced, policies, params, nil
}

func resolveRate(rate string) (float64, error) {
	if rate == "Max" || rate == "max" {
		return simcore.RateMax, nil
	}
	var f float64
	if _, err := fmt.Sscanf(rate, "%g", &f); err != nil {
		return 0, fmt.Errorf("invalid rate %q: %w", rate, err)
	}
	return f, nil
}

// Fingerprint computes a stable BLAKE3 hash of the scenario's normalized
// JSON so that two submissions differing only in the order of their
// topology edges, produced chunks, or policies with distinct
// (chunk_id, src) keys still hit the result cache. The slices are sorted
// here before marshaling.
func (s *Scenario) Fingerprint() (string, error) {
	normalized := *s
	normalized.Topology = append([]Edge(nil), s.Topology...)
	normalized.Produced = append([]ProducedChunk(nil), s.Produced...)
	normalized.Policies = append([]Policy(nil), s.Policies...)

	// SliceStable: equal-key siblings (e.g. a fan-out's multiple dst
	// entries sharing ChunkID+Src) must keep their original install
	// order, per the policy firing-order invariant.
	sort.SliceStable(normalized.Topology, func(i, j int) bool {
		if normalized.Topology[i].U != normalized.Topology[j].U {
			return normalized.Topology[i].U < normalized.Topology[j].U
		}
		return normalized.Topology[i].V < normalized.Topology[j].V
	})
	sort.SliceStable(normalized.Produced, func(i, j int) bool {
		if normalized.Produced[i].ChunkID != normalized.Produced[j].ChunkID {
			return normalized.Produced[i].ChunkID < normalized.Produced[j].ChunkID
		}
		return normalized.Produced[i].Node < normalized.Produced[j].Node
	})
	sort.SliceStable(normalized.Policies, func(i, j int) bool {
		if normalized.Policies[i].ChunkID != normalized.Policies[j].ChunkID {
			return normalized.Policies[i].ChunkID < normalized.Policies[j].ChunkID
		}
		return normalized.Policies[i].Src < normalized.Policies[j].Src
	})

	buf, err := json.Marshal(normalized)
	if err != nil {
		return "", fmt.Errorf("failed to normalize scenario: %w", err)
	}

	h := blake3.New()
	_, _ = h.Write(buf)
	sum := h.Sum(nil)
	return hex.EncodeToString(sum), nil
}
