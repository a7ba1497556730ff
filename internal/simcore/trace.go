package simcore

import (
	"encoding/hex"
	"fmt"

	"github.com/zeebo/blake3"
)

// TraceRecord is one entry of the optional per-packet trace: (time, kind,
// node, chunk_id, seq, src, dst). Each record also carries a short BLAKE3
// fingerprint of (chunk_id, seq, src_node) so traces from independent runs
// of the same deterministic scenario can be compared or deduplicated
// without reconstructing full packet identity.
type TraceRecord struct {
	Time        float64
	Kind        string
	Node        string
	ChunkID     string
	Seq         int
	SrcNode     string
	DstNode     string
	Fingerprint string
}

func fingerprint(chunkID string, seq int, srcNode string) string {
	h := blake3.New()
	_, _ = h.Write([]byte(fmt.Sprintf("%s|%d|%s", chunkID, seq, srcNode)))
	sum := h.Sum(nil)
	return hex.EncodeToString(sum[:8])
}

func newTraceRecord(now float64, kind, node string, p *Packet) TraceRecord {
	return TraceRecord{
		Time:        now,
		Kind:        kind,
		Node:        node,
		ChunkID:     p.ChunkID,
		Seq:         p.Seq,
		SrcNode:     p.SrcNode,
		DstNode:     p.DstNode,
		Fingerprint: fingerprint(p.ChunkID, p.Seq, p.SrcNode),
	}
}
