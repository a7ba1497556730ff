package manager

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// RunState represents the state of a submitted simulation run.
type RunState int

const (
	RunPending RunState = iota + 1
	RunRunning
	RunCompleted
	RunFailed
)

func (s RunState) String() string {
	switch s {
	case RunPending:
		return "PENDING"
	case RunRunning:
		return "RUNNING"
	case RunCompleted:
		return "COMPLETED"
	case RunFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

var (
	ErrRunNotFound            = errors.New("run not found")
	ErrRunAlreadyExists       = errors.New("run already exists")
	ErrInvalidStateTransition = errors.New("invalid state transition")
)

// SimRun is a submitted scenario's lifecycle record: the fingerprint of
// the scenario it was built from, its current state, and (once completed)
// its results.
type SimRun struct {
	ID                  string
	ScenarioFingerprint string
	State               RunState
	StartTime           time.Time
	UpdateTime          time.Time
	ErrorMessage        string
	Metadata            map[string]string

	CompletionTimes map[string]map[string]float64
	PortSummary     []PortUtilization
	TraceLen        int

	mu sync.RWMutex
}

// PortUtilization mirrors simcore.PortUtilizationSummary without importing
// the engine package into the persistence-facing manager layer.
type PortUtilization struct {
	Owner       string
	Peer        string
	Utilization float64
}

// NewSimRun creates a new run record with a fresh uuid and PENDING state.
func NewSimRun(scenarioFingerprint string) *SimRun {
	return &SimRun{
		ID:                  uuid.NewString(),
		ScenarioFingerprint: scenarioFingerprint,
		State:               RunPending,
		StartTime:           time.Now(),
		UpdateTime:          time.Now(),
		Metadata:            make(map[string]string),
	}
}

// TransitionTo moves the run to a new state, rejecting transitions outside
// the pending->running->{completed,failed} lifecycle.
func (r *SimRun) TransitionTo(newState RunState, errorMsg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	validTransitions := map[RunState][]RunState{
		RunPending:   {RunRunning, RunFailed},
		RunRunning:   {RunCompleted, RunFailed},
		RunCompleted: {},
		RunFailed:    {},
	}

	allowed := validTransitions[r.State]
	isValid := false
	for _, s := range allowed {
		if s == newState {
			isValid = true
			break
		}
	}
	if !isValid {
		return ErrInvalidStateTransition
	}

	r.State = newState
	r.UpdateTime = time.Now()
	if errorMsg != "" {
		r.ErrorMessage = errorMsg
	}
	return nil
}

// GetState returns the current state (thread-safe).
func (r *SimRun) GetState() RunState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.State
}

// SetResults records a completed run's observables.
func (r *SimRun) SetResults(completion map[string]map[string]float64, ports []PortUtilization, traceLen int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.CompletionTimes = completion
	r.PortSummary = ports
	r.TraceLen = traceLen
}

// RunStore manages the in-memory run registry.
type RunStore struct {
	runs map[string]*SimRun
	mu   sync.RWMutex
}

// NewRunStore creates a new run store.
func NewRunStore() *RunStore {
	return &RunStore{runs: make(map[string]*SimRun)}
}

// Add adds a new run to the store.
func (s *RunStore) Add(run *SimRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.runs[run.ID]; exists {
		return ErrRunAlreadyExists
	}
	s.runs[run.ID] = run
	return nil
}

// Get retrieves a run by ID.
func (s *RunStore) Get(runID string) (*SimRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, exists := s.runs[runID]
	if !exists {
		return nil, ErrRunNotFound
	}
	return run, nil
}

// List returns all runs matching an optional state filter.
func (s *RunStore) List(filterState *RunState, limit, offset int) ([]*SimRun, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var filtered []*SimRun
	for _, run := range s.runs {
		if filterState != nil && run.GetState() != *filterState {
			continue
		}
		filtered = append(filtered, run)
	}

	total := len(filtered)
	if offset >= len(filtered) {
		return []*SimRun{}, total
	}
	end := offset + limit
	if end > len(filtered) || limit == 0 {
		end = len(filtered)
	}
	return filtered[offset:end], total
}

// CleanupOldRuns removes completed/failed runs older than maxAge.
func (s *RunStore) CleanupOldRuns(maxAge time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for id, run := range s.runs {
		state := run.GetState()
		if (state == RunCompleted || state == RunFailed) && run.UpdateTime.Before(cutoff) {
			delete(s.runs, id)
			removed++
		}
	}
	return removed
}

// Count returns the total number of tracked runs.
func (s *RunStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.runs)
}
