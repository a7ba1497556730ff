package simcore

import (
	"fmt"
	"math"
)

// PolicyInput is the external, field-order-contractual shape of one policy
// entry: (chunk_id, src, dst, qpid, rate, chunk_size_bytes, path). RateBPS
// uses RateMax to mean the literal sentinel "Max".
type PolicyInput struct {
	ChunkID       string
	Src           string
	Dst           string
	QPID          int
	RateBPS       float64
	ChunkSizeBytes int64
	Path          []string
}

// PolicyEntry is an installed, validated policy. It fires at most once, the
// instant its Src becomes fully owning of ChunkID (spec's one-shot safe
// default — see DESIGN.md Open Question decisions).
type PolicyEntry struct {
	ChunkID        string
	Src            string
	Dst            string
	QPID           int
	RateBPS        float64
	ChunkSizeBytes int64
	Path           []string

	fired bool
}

type policyKey struct {
	chunkID string
	src     string
}

// PolicyEngine is the registry of installed policy entries, keyed by
// (chunk_id, src). No deduplication: installer order is preserved, which is
// also firing order among siblings.
type PolicyEngine struct {
	byKey map[policyKey][]*PolicyEntry
}

func newPolicyEngine() *PolicyEngine {
	return &PolicyEngine{byKey: make(map[policyKey][]*PolicyEntry)}
}

// install validates and appends one entry. Validation failures are
// InvalidPolicy, raised before the simulation starts.
func (pe *PolicyEngine) install(in PolicyInput, topo *Topology) (*PolicyEntry, error) {
	if in.ChunkID == "" {
		return nil, fmt.Errorf("empty chunk_id: %w", ErrInvalidPolicy)
	}
	if !topo.HasNode(in.Src) {
		return nil, fmt.Errorf("unknown src node %q: %w", in.Src, ErrInvalidPolicy)
	}
	if !topo.HasNode(in.Dst) {
		return nil, fmt.Errorf("unknown dst node %q: %w", in.Dst, ErrInvalidPolicy)
	}
	if in.QPID < 0 {
		return nil, fmt.Errorf("negative qpid %d: %w", in.QPID, ErrInvalidPolicy)
	}
	if in.RateBPS != RateMax && in.RateBPS <= 0 {
		return nil, fmt.Errorf("non-positive rate %.0f: %w", in.RateBPS, ErrInvalidPolicy)
	}
	if in.ChunkSizeBytes < 0 {
		return nil, fmt.Errorf("negative chunk_size_bytes %d: %w", in.ChunkSizeBytes, ErrInvalidPolicy)
	}
	if len(in.Path) < 2 {
		return nil, fmt.Errorf("path length %d < 2: %w", len(in.Path), ErrInvalidPolicy)
	}
	if in.Path[0] != in.Src {
		return nil, fmt.Errorf("path[0]=%q != src=%q: %w", in.Path[0], in.Src, ErrInvalidPolicy)
	}
	if in.Path[len(in.Path)-1] != in.Dst {
		return nil, fmt.Errorf("path[-1]=%q != dst=%q: %w", in.Path[len(in.Path)-1], in.Dst, ErrInvalidPolicy)
	}
	for i := 0; i < len(in.Path)-1; i++ {
		if _, ok := topo.Edge(in.Path[i], in.Path[i+1]); !ok {
			return nil, fmt.Errorf("path edge %s->%s not in topology: %w", in.Path[i], in.Path[i+1], ErrInvalidPolicy)
		}
	}

	entry := &PolicyEntry{
		ChunkID:        in.ChunkID,
		Src:            in.Src,
		Dst:            in.Dst,
		QPID:           in.QPID,
		RateBPS:        in.RateBPS,
		ChunkSizeBytes: in.ChunkSizeBytes,
		Path:           append([]string(nil), in.Path...),
	}
	k := policyKey{entry.ChunkID, entry.Src}
	pe.byKey[k] = append(pe.byKey[k], entry)
	return entry, nil
}

// entriesFor returns the not-yet-fired entries keyed by (chunkID, node), in
// installation order.
func (pe *PolicyEngine) entriesFor(chunkID, node string) []*PolicyEntry {
	all := pe.byKey[policyKey{chunkID, node}]
	pending := make([]*PolicyEntry, 0, len(all))
	for _, e := range all {
		if !e.fired {
			pending = append(pending, e)
		}
	}
	return pending
}

// fire packetizes entry's chunk and enqueues the resulting packets into the
// source-egress Port's QP. It resolves a "Max" rate against that hop's line
// rate, and handles the zero-size edge case (no packets, but a synthetic
// ChunkArrived still propagates at dst so dependents can resolve).
func (pe *PolicyEngine) fire(entry *PolicyEntry, sim *Simulation) error {
	if entry.fired {
		return nil
	}
	entry.fired = true
	now := sim.Scheduler.Now()

	port, ok := sim.getPort(entry.Src, entry.Path[1])
	if !ok {
		return fmt.Errorf("no egress port %s->%s: %w", entry.Src, entry.Path[1], ErrRoute)
	}

	rate := entry.RateBPS
	if rate == RateMax {
		rate = port.LineRateBPS
	}

	if entry.ChunkSizeBytes == 0 {
		return sim.signalChunkArrived(entry.ChunkID, entry.Dst, now)
	}

	payload := sim.Params.PacketPayloadBytes
	n := int(math.Ceil(float64(entry.ChunkSizeBytes) / float64(payload)))
	sim.logger.PolicyFired(entry.ChunkID, entry.Src, n)
	remaining := entry.ChunkSizeBytes
	for seq := 0; seq < n; seq++ {
		size := int64(payload)
		if remaining < size {
			size = remaining
		}
		remaining -= size
		p := &Packet{
			ChunkID:      entry.ChunkID,
			Seq:          seq,
			Total:        n,
			SizeBytes:    size,
			SrcNode:      entry.Src,
			DstNode:      entry.Dst,
			Path:         entry.Path,
			PathIdx:      0,
			QPIDAtSource: entry.QPID,
			RateBPS:      rate,
		}
		if err := port.Enqueue(p, sim.Scheduler); err != nil {
			return err
		}
		sim.recordTrace(now, "PolicyFire", entry.Src, p)
	}
	return nil
}
