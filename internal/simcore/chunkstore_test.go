package simcore

import "testing"

func TestChunkStore_DepositAndFullyOwned(t *testing.T) {
	cs := newChunkStore()
	path := []string{"A", "B"}

	newlyOwned, err := cs.Deposit(mkPacket("c0", 0, 2, 500, "A", "B", path, 0, 1))
	if err != nil {
		t.Fatalf("Deposit: %v", err)
	}
	if newlyOwned {
		t.Fatal("should not be fully owned after 1 of 2 packets")
	}

	newlyOwned, err = cs.Deposit(mkPacket("c0", 1, 2, 500, "A", "B", path, 0, 1))
	if err != nil {
		t.Fatalf("Deposit: %v", err)
	}
	if !newlyOwned {
		t.Fatal("expected fully-owned transition after 2nd of 2 packets")
	}

	received, total, ok := cs.CompletionSeqs("c0")
	if !ok || received != 2 || total != 2 {
		t.Fatalf("got received=%d total=%d ok=%v", received, total, ok)
	}

	// Re-depositing the same seq is a duplicate-packet protocol error.
	if _, err := cs.Deposit(mkPacket("c0", 0, 2, 500, "A", "B", path, 0, 1)); err == nil {
		t.Fatal("expected DuplicatePacket error")
	}
}

func TestChunkStore_FullyOwnedFiresOnlyOnce(t *testing.T) {
	cs := newChunkStore()
	path := []string{"A", "B"}
	newlyOwned, err := cs.Deposit(mkPacket("c0", 0, 1, 500, "A", "B", path, 0, 1))
	if err != nil {
		t.Fatalf("Deposit: %v", err)
	}
	if !newlyOwned {
		t.Fatal("expected fully-owned transition on the single packet")
	}

	if !cs.IsFullyOwned("c0") {
		t.Fatal("expected c0 fully owned after its single packet")
	}
	if cs.markFullyOwned("c0", 1, 500) {
		t.Fatal("a chunk already fully owned must not report a second transition")
	}
}

func TestChunkStore_MarkFullyOwnedIdempotent(t *testing.T) {
	cs := newChunkStore()
	if !cs.markFullyOwned("c0", 0, 0) {
		t.Fatal("first markFullyOwned should report a transition")
	}
	if cs.markFullyOwned("c0", 0, 0) {
		t.Fatal("second markFullyOwned should be a no-op")
	}
}
