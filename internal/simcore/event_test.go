package simcore

import "testing"

func TestEventScheduler_OrdersByTimeThenSeq(t *testing.T) {
	s := NewEventScheduler()
	_ = s.Schedule(5, EventArrival, "late")
	_ = s.Schedule(1, EventArrival, "early")
	_ = s.Schedule(1, EventArrival, "early-second")

	var order []string
	err := s.RunUntil(-1, func(e *Event) error {
		order = append(order, e.Payload.(string))
		return nil
	})
	if err != nil {
		t.Fatalf("RunUntil: %v", err)
	}

	want := []string{"early", "early-second", "late"}
	if len(order) != len(want) {
		t.Fatalf("got %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("position %d: got %q, want %q", i, order[i], want[i])
		}
	}
}

func TestEventScheduler_NegativeDelayIsInvalid(t *testing.T) {
	s := NewEventScheduler()
	if err := s.Schedule(-1, EventArrival, nil); err == nil {
		t.Fatal("expected error for negative delay")
	}
}

func TestEventScheduler_NowMonotonic(t *testing.T) {
	s := NewEventScheduler()
	_ = s.Schedule(3, EventArrival, nil)
	_ = s.Schedule(1, EventArrival, nil)

	var times []float64
	_ = s.RunUntil(-1, func(e *Event) error {
		times = append(times, s.Now())
		return nil
	})
	if times[0] != 1 || times[1] != 3 {
		t.Fatalf("got %v", times)
	}
}

func TestEventScheduler_RunUntilHorizon(t *testing.T) {
	s := NewEventScheduler()
	_ = s.Schedule(1, EventArrival, "in")
	_ = s.Schedule(10, EventArrival, "out")

	var seen []string
	_ = s.RunUntil(5, func(e *Event) error {
		seen = append(seen, e.Payload.(string))
		return nil
	})
	if len(seen) != 1 || seen[0] != "in" {
		t.Fatalf("got %v, want only [in]", seen)
	}
	if s.Empty() {
		t.Fatal("expected the horizon-exceeding event to remain queued")
	}
}
