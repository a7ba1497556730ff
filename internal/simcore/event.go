package simcore

import (
	"container/heap"
	"fmt"
)

// EventKind identifies what an Event represents.
type EventKind int

const (
	EventTxStart EventKind = iota
	EventTxComplete
	EventArrival
	EventPolicyFire
)

func (k EventKind) String() string {
	switch k {
	case EventTxStart:
		return "TxStart"
	case EventTxComplete:
		return "TxComplete"
	case EventArrival:
		return "Arrival"
	case EventPolicyFire:
		return "PolicyFire"
	default:
		return "Unknown"
	}
}

// Event is a single timed entry in the scheduler. Payload is handler-defined
// (e.g. txCompletePayload, arrivalPayload or chunkArrivedPayload).
type Event struct {
	Time    float64
	Seq     uint64
	Kind    EventKind
	Payload interface{}

	index int // heap.Interface bookkeeping
}

// eventHeap implements container/heap.Interface, ordered by (Time, Seq).
type eventHeap []*Event

func (h eventHeap) Len() int { return len(h) }

func (h eventHeap) Less(i, j int) bool {
	if h[i].Time != h[j].Time {
		return h[i].Time < h[j].Time
	}
	return h[i].Seq < h[j].Seq
}

func (h eventHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *eventHeap) Push(x interface{}) {
	e := x.(*Event)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *eventHeap) Pop() interface{} {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

// EventScheduler is a monotonic-time min-heap priority queue of timed
// events. It drives all simulation progress; nothing in this package
// advances time outside of Pop, which RunUntil calls.
type EventScheduler struct {
	heap    eventHeap
	now     float64
	nextSeq uint64
}

// NewEventScheduler returns an empty scheduler with simulated time at 0.
func NewEventScheduler() *EventScheduler {
	s := &EventScheduler{}
	heap.Init(&s.heap)
	return s
}

// Now returns the current simulated time in seconds.
func (s *EventScheduler) Now() float64 { return s.now }

// Schedule inserts an event at now+delay. delay must be >= 0.
func (s *EventScheduler) Schedule(delay float64, kind EventKind, payload interface{}) error {
	if delay < 0 {
		return fmt.Errorf("schedule delay %.9f: %w", delay, ErrInvalidDelay)
	}
	e := &Event{Time: s.now + delay, Seq: s.nextSeq, Kind: kind, Payload: payload}
	s.nextSeq++
	heap.Push(&s.heap, e)
	return nil
}

// Empty reports whether there are no pending events.
func (s *EventScheduler) Empty() bool { return s.heap.Len() == 0 }

// Peek returns the next event without removing it, or nil if empty.
func (s *EventScheduler) Peek() *Event {
	if s.heap.Len() == 0 {
		return nil
	}
	return s.heap[0]
}

// Pop removes and returns the earliest event, advancing now to its time.
// Returns nil if the queue is empty.
func (s *EventScheduler) Pop() *Event {
	if s.heap.Len() == 0 {
		return nil
	}
	e := heap.Pop(&s.heap).(*Event)
	if e.Time > s.now {
		s.now = e.Time
	}
	return e
}

// RunUntil repeatedly pops the earliest event and dispatches it via handle,
// stopping when the queue is empty or the next event's time exceeds tEnd.
// A negative tEnd means "run until the queue is empty" (until_idle).
func (s *EventScheduler) RunUntil(tEnd float64, handle func(*Event) error) error {
	for {
		next := s.Peek()
		if next == nil {
			return nil
		}
		if tEnd >= 0 && next.Time > tEnd {
			return nil
		}
		e := s.Pop()
		if err := handle(e); err != nil {
			return err
		}
	}
}
