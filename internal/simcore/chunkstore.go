package simcore

import "fmt"

// chunkRecord tracks arrival progress for one chunk at one node: a
// per-(chunk, node) received-sequence set.
type chunkRecord struct {
	receivedSeqs map[int]struct{}
	total        int
	sizeBytes    int64
	fullyOwned   bool
}

// ChunkStore is the per-node mapping chunk_id -> arrival progress. Entries
// are created on first arrival and never evicted.
type ChunkStore struct {
	records map[string]*chunkRecord
}

func newChunkStore() *ChunkStore {
	return &ChunkStore{records: make(map[string]*chunkRecord)}
}

// Deposit records a packet's arrival at this node's ChunkStore. It returns
// newlyFullyOwned=true exactly once per chunk, the instant the received set
// reaches total. A repeat (chunk_id, seq) is a DuplicatePacket error — the
// model has no loss or retransmission, so it can never legitimately occur.
func (cs *ChunkStore) Deposit(p *Packet) (newlyFullyOwned bool, err error) {
	rec, ok := cs.records[p.ChunkID]
	if !ok {
		rec = &chunkRecord{
			receivedSeqs: make(map[int]struct{}),
			total:        p.Total,
			sizeBytes:    p.SizeBytes,
		}
		cs.records[p.ChunkID] = rec
	}
	if _, dup := rec.receivedSeqs[p.Seq]; dup {
		return false, fmt.Errorf("chunk %s seq %d: %w", p.ChunkID, p.Seq, ErrDuplicatePacket)
	}
	rec.receivedSeqs[p.Seq] = struct{}{}
	if !rec.fullyOwned && len(rec.receivedSeqs) == rec.total {
		rec.fullyOwned = true
		return true, nil
	}
	return false, nil
}

// markFullyOwned bootstraps a chunk as already fully owned at this node
// without going through Deposit — used for the synthetic ChunkArrived at
// t=0 for chunks declared "produced at src" (spec.md §4.6).
func (cs *ChunkStore) markFullyOwned(chunkID string, total int, sizeBytes int64) bool {
	rec, ok := cs.records[chunkID]
	if !ok {
		rec = &chunkRecord{receivedSeqs: make(map[int]struct{}), total: total, sizeBytes: sizeBytes}
		cs.records[chunkID] = rec
	}
	if rec.fullyOwned {
		return false
	}
	rec.fullyOwned = true
	return true
}

// IsFullyOwned reports whether this node has already received every
// sequence number of chunkID.
func (cs *ChunkStore) IsFullyOwned(chunkID string) bool {
	rec, ok := cs.records[chunkID]
	return ok && rec.fullyOwned
}

// CompletionSeqs returns the received sequence count and total for
// chunkID, used by tests asserting invariant 2 (full {0,...,N-1} receipt).
func (cs *ChunkStore) CompletionSeqs(chunkID string) (received int, total int, ok bool) {
	rec, exists := cs.records[chunkID]
	if !exists {
		return 0, 0, false
	}
	return len(rec.receivedSeqs), rec.total, true
}
