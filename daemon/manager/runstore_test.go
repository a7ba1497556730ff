package manager

import "testing"

func TestRunStore_AddAndGet(t *testing.T) {
	store := NewRunStore()
	run := NewSimRun("fp-1")

	if err := store.Add(run); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	got, err := store.Get(run.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.ID != run.ID {
		t.Errorf("expected run %s, got %s", run.ID, got.ID)
	}
}

func TestRunStore_AddDuplicateRejected(t *testing.T) {
	store := NewRunStore()
	run := NewSimRun("fp-1")

	if err := store.Add(run); err != nil {
		t.Fatalf("first Add failed: %v", err)
	}
	if err := store.Add(run); err != ErrRunAlreadyExists {
		t.Errorf("expected ErrRunAlreadyExists, got %v", err)
	}
}

func TestRunStore_GetMissing(t *testing.T) {
	store := NewRunStore()
	if _, err := store.Get("does-not-exist"); err != ErrRunNotFound {
		t.Errorf("expected ErrRunNotFound, got %v", err)
	}
}

func TestSimRun_TransitionLifecycle(t *testing.T) {
	run := NewSimRun("fp-1")
	if run.GetState() != RunPending {
		t.Fatalf("expected initial state PENDING, got %s", run.GetState())
	}

	if err := run.TransitionTo(RunRunning, ""); err != nil {
		t.Fatalf("Pending->Running failed: %v", err)
	}
	if err := run.TransitionTo(RunCompleted, ""); err != nil {
		t.Fatalf("Running->Completed failed: %v", err)
	}
	if run.GetState() != RunCompleted {
		t.Errorf("expected COMPLETED, got %s", run.GetState())
	}
}

func TestSimRun_InvalidTransitionRejected(t *testing.T) {
	run := NewSimRun("fp-1")
	if err := run.TransitionTo(RunCompleted, ""); err != ErrInvalidStateTransition {
		t.Errorf("expected ErrInvalidStateTransition, got %v", err)
	}
}

func TestSimRun_TerminalStatesAreFinal(t *testing.T) {
	run := NewSimRun("fp-1")
	_ = run.TransitionTo(RunRunning, "")
	_ = run.TransitionTo(RunFailed, "boom")

	if err := run.TransitionTo(RunRunning, ""); err != ErrInvalidStateTransition {
		t.Errorf("expected failed run to reject further transitions, got %v", err)
	}
	if run.ErrorMessage != "boom" {
		t.Errorf("expected error message to be recorded, got %q", run.ErrorMessage)
	}
}

func TestRunStore_ListFiltersByState(t *testing.T) {
	store := NewRunStore()

	pending := NewSimRun("fp-1")
	running := NewSimRun("fp-2")
	_ = running.TransitionTo(RunRunning, "")

	_ = store.Add(pending)
	_ = store.Add(running)

	filter := RunRunning
	got, total := store.List(&filter, 10, 0)
	if total != 1 || len(got) != 1 || got[0].ID != running.ID {
		t.Errorf("expected only the running run, got %d results (total=%d)", len(got), total)
	}
}

func TestRunStore_Count(t *testing.T) {
	store := NewRunStore()
	_ = store.Add(NewSimRun("fp-1"))
	_ = store.Add(NewSimRun("fp-2"))

	if store.Count() != 2 {
		t.Errorf("expected count 2, got %d", store.Count())
	}
}
