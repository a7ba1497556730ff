package service

import (
	"context"
	"fmt"
	"time"

	"github.com/quantarax/cclsim/daemon/manager"
	"github.com/quantarax/cclsim/internal/observability"
	"github.com/quantarax/cclsim/internal/ratelimit"
	"github.com/quantarax/cclsim/internal/scenario"
	"github.com/quantarax/cclsim/internal/simcore"
)

// SimRunner submits scenarios to the engine, one goroutine per accepted
// run, gated by a token-bucket admission control and a fixed-size
// concurrency slot pool.
type SimRunner struct {
	runs    *manager.RunStore
	persist *manager.PersistentStore
	cache   *manager.ResultCache
	events  *EventPublisher
	logger  *observability.Logger
	metrics *observability.Metrics

	admission *ratelimit.TokenBucket
	slots     chan struct{}
}

// NewSimRunner wires a runner with maxConcurrent slots for in-flight runs.
func NewSimRunner(
	runs *manager.RunStore,
	persist *manager.PersistentStore,
	cache *manager.ResultCache,
	events *EventPublisher,
	logger *observability.Logger,
	metrics *observability.Metrics,
	admission *ratelimit.TokenBucket,
	maxConcurrent int,
) *SimRunner {
	return &SimRunner{
		runs:      runs,
		persist:   persist,
		cache:     cache,
		events:    events,
		logger:    logger,
		metrics:   metrics,
		admission: admission,
		slots:     make(chan struct{}, maxConcurrent),
	}
}

// ErrAdmissionRejected is returned by Submit when the admission-control
// token bucket has no capacity for a new run.
var ErrAdmissionRejected = fmt.Errorf("submission rejected: admission control at capacity")

// Submit checks admission control (every submission, cached or not, takes a
// token), fingerprints the scenario, and then either serves it from the
// result cache on an exact match or launches a run in the background. It
// returns the SimRun record immediately; callers poll or subscribe to watch
// it progress.
func (r *SimRunner) Submit(ctx context.Context, sc *scenario.Scenario) (*manager.SimRun, error) {
	if !r.admission.Allow(1) {
		r.metrics.RecordAdmissionRejected()
		return nil, ErrAdmissionRejected
	}

	fingerprint, err := sc.Fingerprint()
	if err != nil {
		return nil, fmt.Errorf("failed to fingerprint scenario: %w", err)
	}

	run := manager.NewSimRun(fingerprint)
	if err := r.runs.Add(run); err != nil {
		return nil, err
	}
	if err := r.persist.SaveRun(run); err != nil {
		r.logger.WithRun(run.ID).Error(err, "failed to persist new run")
	}

	if cached, hit := r.cache.Lookup(fingerprint); hit {
		r.metrics.RecordCacheLookup(true)
		_ = run.TransitionTo(manager.RunRunning, "")
		run.SetResults(cached.CompletionTimes, cached.PortSummary, cached.TraceLen)
		_ = run.TransitionTo(manager.RunCompleted, "")
		_ = r.persist.SaveRun(run)
		r.events.PublishCompleted(run.ID, 0)
		return run, nil
	}
	r.metrics.RecordCacheLookup(false)

	go r.execute(ctx, run, sc, fingerprint)

	return run, nil
}

func (r *SimRunner) execute(ctx context.Context, run *manager.SimRun, sc *scenario.Scenario, fingerprint string) {
	r.slots <- struct{}{}
	defer func() { <-r.slots }()

	ctx, endSpan := observability.StartRunSpan(ctx, run.ID)
	defer endSpan()

	if err := run.TransitionTo(manager.RunRunning, ""); err != nil {
		r.fail(run, err)
		return
	}
	_ = r.persist.SaveRun(run)

	r.metrics.RecordSimulationStart()
	r.logger.SimulationStarted(run.ID)

	edges, produced, policies, params, err := sc.ToBuildInputs()
	if err != nil {
		r.finishFailed(run, fmt.Errorf("invalid scenario: %w", err))
		return
	}
	r.events.PublishStarted(run.ID, len(produced))

	sim, err := simcore.Build(edges, produced, policies, params)
	if err != nil {
		r.finishFailed(run, fmt.Errorf("failed to build simulation: %w", err))
		return
	}
	sim.SetLogger(r.logger)
	sim.SetMetrics(r.metrics)

	start := time.Now()
	runErr := sim.Run()
	elapsed := time.Since(start)

	if runErr != nil {
		r.finishFailed(run, runErr)
		return
	}

	var ports []manager.PortUtilization
	for _, p := range sim.Summary() {
		ports = append(ports, manager.PortUtilization{Owner: p.Owner, Peer: p.Peer, Utilization: p.Utilization})
	}
	completion := sim.CompletionTimes()
	run.SetResults(completion, ports, len(sim.Trace()))

	if err := run.TransitionTo(manager.RunCompleted, ""); err != nil {
		r.logger.WithRun(run.ID).Error(err, "completed run failed state transition")
	}
	_ = r.persist.SaveRun(run)
	_ = r.cache.Store(fingerprint, manager.CachedResult{
		CompletionTimes: completion,
		PortSummary:     ports,
		TraceLen:        len(sim.Trace()),
	})

	r.metrics.RecordSimulationComplete(true, elapsed.Seconds())
	r.logger.SimulationCompleted(run.ID, elapsed)
	r.events.PublishCompleted(run.ID, elapsed)
}

func (r *SimRunner) finishFailed(run *manager.SimRun, err error) {
	r.metrics.RecordSimulationComplete(false, 0)
	r.fail(run, err)
}

func (r *SimRunner) fail(run *manager.SimRun, err error) {
	_ = run.TransitionTo(manager.RunFailed, err.Error())
	_ = r.persist.SaveRun(run)
	r.logger.SimulationFailed(run.ID, err)
	r.events.PublishFailed(run.ID, err.Error())
}

// InFlight reports current and capacity in-flight run counts, for the
// runner-backlog health check.
func (r *SimRunner) InFlight() (current, capacity int) {
	return len(r.slots), cap(r.slots)
}
