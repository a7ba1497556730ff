package simcore

import "testing"

func mkPacket(chunkID string, seq, total int, size int64, src, dst string, path []string, qpid int, rate float64) *Packet {
	return &Packet{
		ChunkID: chunkID, Seq: seq, Total: total, SizeBytes: size,
		SrcNode: src, DstNode: dst, Path: path, PathIdx: 0,
		QPIDAtSource: qpid, RateBPS: rate,
	}
}

func TestPort_InvalidQuantumRejected(t *testing.T) {
	if _, err := newPort("A", "B", 10e9, 1e-6, 0); err == nil {
		t.Fatal("expected InvalidConfig for quantum=0")
	}
}

func TestPort_RoundRobinQuantumOne(t *testing.T) {
	// spec.md S2: two QPs, quantum=1, two packets each enqueued
	// simultaneously in install order -> c0#0, c1#0, c0#1, c1#1.
	port, err := newPort("A", "B", 10e9, 1e-6, 1)
	if err != nil {
		t.Fatalf("newPort: %v", err)
	}
	sched := NewEventScheduler()

	path := []string{"A", "B"}
	c0 := []*Packet{
		mkPacket("c0", 0, 2, 1000, "A", "B", path, 0, 10e9),
		mkPacket("c0", 1, 2, 1000, "A", "B", path, 0, 10e9),
	}
	c1 := []*Packet{
		mkPacket("c1", 0, 2, 1000, "A", "B", path, 1, 10e9),
		mkPacket("c1", 1, 2, 1000, "A", "B", path, 1, 10e9),
	}

	if err := port.Enqueue(c0[0], sched); err != nil {
		t.Fatal(err)
	}
	if err := port.Enqueue(c1[0], sched); err != nil {
		t.Fatal(err)
	}
	if err := port.Enqueue(c0[1], sched); err != nil {
		t.Fatal(err)
	}
	if err := port.Enqueue(c1[1], sched); err != nil {
		t.Fatal(err)
	}

	var order []string
	_ = sched.RunUntil(-1, func(e *Event) error {
		switch e.Kind {
		case EventTxComplete:
			return e.Payload.(txCompletePayload).port.onTxComplete(sched)
		case EventArrival:
			p := e.Payload.(arrivalPayload).packet
			order = append(order, p.ChunkID)
			return nil
		}
		return nil
	})

	want := []string{"c0", "c1", "c0", "c1"}
	if len(order) != len(want) {
		t.Fatalf("got %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("position %d: got %s, want %s", i, order[i], want[i])
		}
	}
}

func TestPort_RoundRobinQuantumTwo(t *testing.T) {
	// spec.md S3: same as S2 but quantum=2 -> c0#0, c0#1, c1#0, c1#1.
	port, err := newPort("A", "B", 10e9, 1e-6, 2)
	if err != nil {
		t.Fatalf("newPort: %v", err)
	}
	sched := NewEventScheduler()
	path := []string{"A", "B"}

	_ = port.Enqueue(mkPacket("c0", 0, 2, 1000, "A", "B", path, 0, 10e9), sched)
	_ = port.Enqueue(mkPacket("c1", 0, 2, 1000, "A", "B", path, 1, 10e9), sched)
	_ = port.Enqueue(mkPacket("c0", 1, 2, 1000, "A", "B", path, 0, 10e9), sched)
	_ = port.Enqueue(mkPacket("c1", 1, 2, 1000, "A", "B", path, 1, 10e9), sched)

	var order []string
	_ = sched.RunUntil(-1, func(e *Event) error {
		switch e.Kind {
		case EventTxComplete:
			return e.Payload.(txCompletePayload).port.onTxComplete(sched)
		case EventArrival:
			order = append(order, e.Payload.(arrivalPayload).packet.ChunkID)
		}
		return nil
	})

	want := []string{"c0", "c0", "c1", "c1"}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("got %v, want %v", order, want)
		}
	}
}

func TestPort_SerializationIsNonOverlapping(t *testing.T) {
	port, err := newPort("A", "B", 10e9, 1e-6, 4)
	if err != nil {
		t.Fatalf("newPort: %v", err)
	}
	sched := NewEventScheduler()
	path := []string{"A", "B"}
	for i := 0; i < 3; i++ {
		_ = port.Enqueue(mkPacket("c0", i, 3, 1000, "A", "B", path, 0, 10e9), sched)
	}

	var txCompleteTimes []float64
	_ = sched.RunUntil(-1, func(e *Event) error {
		if e.Kind == EventTxComplete {
			txCompleteTimes = append(txCompleteTimes, e.Time)
			return e.Payload.(txCompletePayload).port.onTxComplete(sched)
		}
		return nil
	})

	// tx_time = 1000*8/10e9 = 800ns per packet; three packets serialize
	// back to back with no overlap.
	wantTx := 800e-9
	for i, tc := range txCompleteTimes {
		expect := wantTx * float64(i+1)
		if diff := tc - expect; diff > 1e-12 || diff < -1e-12 {
			t.Errorf("TxComplete[%d] = %.12f, want %.12f", i, tc, expect)
		}
	}
}
