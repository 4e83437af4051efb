// Package runner schedules scenarios over a bounded worker pool.
//
// A Runner drains the scenarios of all features in declaration order. Concurrent scenarios
// share up to MaxConcurrentScenarios slots; a Serial scenario waits for every slot so that
// nothing else is in flight while it runs. Failed attempts are retried per the scenario's
// retry policy, and the events of every scenario are handed to the reporter in declaration
// order regardless of completion order.
package runner

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/ariel-frischer/stepflow/pkg/event"
	"github.com/ariel-frischer/stepflow/pkg/feature"
	"github.com/ariel-frischer/stepflow/pkg/hook"
	"github.com/ariel-frischer/stepflow/pkg/metrics"
	"github.com/ariel-frischer/stepflow/pkg/sequencer"
	"github.com/ariel-frischer/stepflow/pkg/step"
)

// WorldFunc creates the fresh per-attempt state handed to steps and hooks.
type WorldFunc[W any] func(ctx context.Context) (W, error)

// Runner executes one run. It is single-use: a second Run returns ErrAlreadyRun.
type Runner[W any] struct {
	steps    step.Registry[W]
	newWorld WorldFunc[W]
	cfg      Config
	hooks    *hook.Executor[W]
	reporter event.Reporter
	logger   *zap.Logger
	metrics  *metrics.Collector
	planner  planner
	now      func() time.Time

	used atomic.Bool

	// mu linearizes admission with fail-fast.
	mu       sync.Mutex
	stopping bool
}

// New creates a Runner over a finished registry. newWorld is called once per attempt.
// It panics if WithHooks was given an executor for a different world type.
func New[W any](steps step.Registry[W], newWorld WorldFunc[W], opts ...Option) *Runner[W] {
	s := settings{
		cfg:      DefaultConfig(),
		reporter: event.Discard,
		logger:   zap.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(&s)
	}

	var hooks *hook.Executor[W]
	if s.hooks != nil {
		h, ok := s.hooks.(*hook.Executor[W])
		if !ok {
			panic(fmt.Sprintf("runner: hook executor %T does not match world type %T", s.hooks, *new(W)))
		}
		hooks = h
	}

	return &Runner[W]{
		steps:    steps,
		newWorld: newWorld,
		cfg:      s.cfg,
		hooks:    hooks,
		reporter: s.reporter,
		logger:   s.logger,
		metrics:  s.metrics,
		planner:  planner{cfg: s.cfg, typeFn: s.typeFn, retryFn: s.retryFn},
		now:      s.now,
	}
}

// Run executes every scenario of features and returns once all admitted scenarios have
// finished and their events have been reported.
//
// Scenario failures are reported through the Result, not the error. The error is non-nil
// only when the run could not start: invalid configuration, a malformed @retry tag, or a
// second call. Cancelling ctx stops admission, lets in-flight scenarios stop at their next
// step boundary, and yields an Incomplete result.
func (r *Runner[W]) Run(ctx context.Context, features []feature.Feature) (*Result, error) {
	if !r.used.CompareAndSwap(false, true) {
		return nil, ErrAlreadyRun
	}
	if err := r.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid run configuration: %w", err)
	}
	backlog, err := r.planner.plan(features)
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	start := r.now()
	log := r.logger.With(zap.String("run_id", runID))
	log.Info("run started",
		zap.Int("features", len(features)),
		zap.Int("scenarios", len(backlog)),
		zap.Int("max_concurrent", r.cfg.MaxConcurrentScenarios),
		zap.Bool("fail_fast", r.cfg.FailFast))

	progress := NewProgressTracker(len(backlog))
	rel := newReleaser(runID, features, backlog, r.reporter, r.now)
	rel.runStarted(start)

	buf := sequencer.New(1, r.cfg.ReorderWatermark, rel.release)
	limit := int64(r.cfg.MaxConcurrentScenarios)
	sem := semaphore.NewWeighted(limit)
	results := make([]ScenarioResult, len(backlog))

	var (
		g         errgroup.Group
		admitted  int
		truncated bool
	)

admission:
	for i := range backlog {
		ps := &backlog[i]

		if ctx.Err() != nil {
			truncated = true
			break
		}
		if buf.Saturated() {
			r.metrics.Backpressure()
			log.Debug("admission paused by reorder watermark",
				zap.Int("pending", buf.Pending()), zap.Uint64("waiting_for", buf.Next()))
		}
		if err := buf.Wait(ctx); err != nil {
			truncated = true
			break
		}

		weight := int64(1)
		if ps.Type == Serial {
			weight = limit
			log.Debug("serial scenario waiting for exclusive slot", zap.Uint64("position", uint64(ps.Position)))
		}
		if err := sem.Acquire(ctx, weight); err != nil {
			truncated = true
			break
		}

		r.mu.Lock()
		if r.stopping {
			r.mu.Unlock()
			sem.Release(weight)
			break admission
		}
		admitted++
		r.mu.Unlock()

		progress.MarkRunning()
		r.metrics.ScenarioStarted(ps.Type.String())
		log.Debug("scenario admitted",
			zap.Uint64("position", uint64(ps.Position)),
			zap.String("scenario", ps.Scenario.Name),
			zap.Stringer("type", ps.Type))

		g.Go(func() error {
			defer sem.Release(weight)

			res, events := r.runScenario(ctx, runID, ps, log)
			results[ps.Position-1] = res
			progress.MarkRetries(res.Attempts - 1)

			switch res.Outcome {
			case event.OutcomePassed:
				progress.MarkPassed()
			case event.OutcomeCancelled:
				progress.MarkCancelled()
			default:
				progress.MarkFailed()
				log.Warn("scenario failed",
					zap.Uint64("position", uint64(ps.Position)),
					zap.String("scenario", ps.Scenario.Name),
					zap.Int("attempts", res.Attempts),
					zap.Error(res.Err))
				if r.cfg.FailFast {
					r.stop(log, ps)
				}
			}
			r.metrics.ScenarioFinished(ps.Type.String(), res.Outcome.String(), res.Duration)

			if err := buf.Push(uint64(ps.Position), events); err != nil {
				return err
			}
			r.metrics.Buffered(buf.Pending())
			return nil
		})
	}

	// Pushes never collide: every admitted position is pushed exactly once.
	if err := g.Wait(); err != nil {
		log.Error("reorder buffer rejected a batch", zap.Error(err))
	}

	if truncated {
		log.Info("run cancelled; admission stopped", zap.Int("admitted", admitted), zap.Int("total", len(backlog)))
	}

	res := &Result{
		RunID:        runID,
		Scenarios:    results[:admitted],
		Stats:        progress.Stats(),
		StoppedEarly: r.stopped() && admitted < len(backlog),
		Duration:     r.now().Sub(start),
	}
	res.Outcome = runOutcome(res.Scenarios, truncated)

	rel.runFinished(res, admitted == len(backlog))
	log.Info("run finished",
		zap.Stringer("outcome", res.Outcome),
		zap.String("progress", progress.RenderDetailed()),
		zap.Duration("duration", res.Duration))
	return res, nil
}

// stop trips fail-fast. Admission checks the flag under the same lock, so no scenario
// is admitted after a terminal failure has been recorded.
func (r *Runner[W]) stop(log *zap.Logger, ps *PlannedScenario) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.stopping {
		log.Info("fail-fast: stopping admission", zap.String("failed_scenario", ps.Scenario.Name))
	}
	r.stopping = true
}

func (r *Runner[W]) stopped() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stopping
}
