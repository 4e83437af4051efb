package runner

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"regexp"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariel-frischer/stepflow/pkg/event"
	"github.com/ariel-frischer/stepflow/pkg/feature"
	"github.com/ariel-frischer/stepflow/pkg/hook"
	"github.com/ariel-frischer/stepflow/pkg/metrics"
	"github.com/ariel-frischer/stepflow/pkg/step"
	"github.com/ariel-frischer/stepflow/pkg/tags"
)

func TestRun_VaultHealthEndToEnd(t *testing.T) {
	t.Parallel()

	reg := step.New[*testWorld]().
		Given(nil, regexp.MustCompile(`the vault service is running`), func(_ context.Context, w *testWorld, _ step.Context) error {
			w.log = append(w.log, "running")
			return nil
		}).
		When(nil, regexp.MustCompile(`checking the health endpoint`), noop).
		Then(nil, regexp.MustCompile(`the service should respond with healthy status`), noop)

	features := single(scenario("vault health", nil,
		gv("the vault service is running"),
		wh("checking the health endpoint"),
		th("the service should respond with healthy status"),
	))

	rec := &event.Recorder{}
	res, err := New(reg, newTestWorld, WithConfig(config(1)), WithReporter(rec)).Run(context.Background(), features)
	require.NoError(t, err)

	assert.Equal(t, event.OutcomePassed, res.Outcome)
	require.Len(t, res.Scenarios, 1)
	assert.Equal(t, event.OutcomePassed, res.Scenarios[0].Outcome)
	assert.Equal(t, 1, res.Scenarios[0].Attempts)
	assert.NotEmpty(t, res.RunID)

	finished := rec.Filter(event.StepFinished)
	require.Len(t, finished, 3)
	for i, e := range finished {
		assert.Equal(t, i, e.Step.Index)
		assert.Equal(t, event.StatusPassed, e.Step.Status)
		assert.Equal(t, res.RunID, e.RunID)
	}
	assert.Equal(t, "the vault service is running", finished[0].Step.Matches[0].Value)

	assert.Equal(t, []event.Type{
		event.RunStarted,
		event.FeatureStarted,
		event.ScenarioStarted,
		event.StepStarted, event.StepFinished,
		event.StepStarted, event.StepFinished,
		event.StepStarted, event.StepFinished,
		event.ScenarioFinished,
		event.FeatureFinished,
		event.RunFinished,
	}, rec.Types())
}

func TestRun_ConcurrencyBound(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		scenarios int
		limit     int
	}{
		"limit 1":          {scenarios: 8, limit: 1},
		"limit 3":          {scenarios: 20, limit: 3},
		"limit above load": {scenarios: 4, limit: 10},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			occ := &occupancy{}
			reg := step.New[*testWorld]().Given(nil, regexp.MustCompile(`work`), occ.handler(5*time.Millisecond))

			var scenarios []feature.Scenario
			for i := range tt.scenarios {
				scenarios = append(scenarios, scenario(fmt.Sprintf("s%d", i), nil, gv("work")))
			}

			res, err := New(reg, newTestWorld, WithConfig(config(tt.limit)), WithHooks(markSerial())).
				Run(context.Background(), single(scenarios...))
			require.NoError(t, err)

			assert.Equal(t, event.OutcomePassed, res.Outcome)
			assert.LessOrEqual(t, occ.maxTotal.Load(), int64(tt.limit))
			assert.Equal(t, tt.scenarios, res.Stats.Passed)
		})
	}
}

func TestRun_SerialExclusivity(t *testing.T) {
	t.Parallel()

	occ := &occupancy{}
	reg := step.New[*testWorld]().Given(nil, regexp.MustCompile(`work`), occ.handler(3*time.Millisecond))

	var scenarios []feature.Scenario
	for i := range 30 {
		var tagSet []string
		if i%4 == 1 {
			tagSet = []string{"@serial"}
		}
		scenarios = append(scenarios, scenario(fmt.Sprintf("s%d", i), tagSet, gv("work"), gv("work")))
	}

	res, err := New(reg, newTestWorld, WithConfig(config(4)), WithHooks(markSerial())).
		Run(context.Background(), single(scenarios...))
	require.NoError(t, err)

	assert.Equal(t, event.OutcomePassed, res.Outcome)
	assert.Zero(t, occ.violations.Load(), "serial and concurrent scenarios overlapped")
	assert.LessOrEqual(t, occ.maxTotal.Load(), int64(4))

	for _, s := range res.Scenarios {
		want := Concurrent
		if (s.ID-1)%4 == 1 {
			want = Serial
		}
		assert.Equal(t, want, s.Type, s.Scenario)
	}
}

func TestRun_EventsFollowDeclarationOrder(t *testing.T) {
	t.Parallel()

	reg := step.New[*testWorld]().
		Given(nil, regexp.MustCompile(`a delay of (\d+)us`), func(_ context.Context, _ *testWorld, sc step.Context) error {
			var us int
			_, err := fmt.Sscan(sc.Arg(1), &us)
			if err != nil {
				return err
			}
			time.Sleep(time.Duration(us) * time.Microsecond)
			return nil
		})

	var (
		features []feature.Feature
		want     []string
	)
	for fi := range 3 {
		f := feature.Feature{Name: fmt.Sprintf("f%d", fi)}
		for si := range 10 {
			name := fmt.Sprintf("f%d/s%d", fi, si)
			want = append(want, name)
			f.Scenarios = append(f.Scenarios, scenario(name, nil, gv(fmt.Sprintf("a delay of %dus", rand.IntN(3000)))))
		}
		features = append(features, f)
	}

	rec := &event.Recorder{}
	res, err := New(reg, newTestWorld, WithConfig(config(8)), WithReporter(rec)).Run(context.Background(), features)
	require.NoError(t, err)
	assert.Equal(t, event.OutcomePassed, res.Outcome)

	finished := rec.Filter(event.ScenarioFinished)
	assert.Equal(t, want, scenarioNames(finished))
	for i, e := range finished {
		assert.Equal(t, uint64(i+1), e.Position)
	}

	var featureOrder []string
	for _, e := range rec.Events() {
		if e.Type == event.FeatureStarted || e.Type == event.FeatureFinished {
			featureOrder = append(featureOrder, e.Type.String()+":"+e.Feature)
		}
	}
	assert.Equal(t, []string{
		"feature_started:f0", "feature_finished:f0",
		"feature_started:f1", "feature_finished:f1",
		"feature_started:f2", "feature_finished:f2",
	}, featureOrder)
}

func TestRun_ReorderWatermarkPausesAdmission(t *testing.T) {
	t.Parallel()

	const (
		limit     = 4
		watermark = 2
	)

	var fastDone, fastDoneWhileSlow atomic.Int64
	reg := step.New[*testWorld]().
		Given(nil, regexp.MustCompile(`slow`), func(context.Context, *testWorld, step.Context) error {
			time.Sleep(50 * time.Millisecond)
			fastDoneWhileSlow.Store(fastDone.Load())
			return nil
		}).
		Given(nil, regexp.MustCompile(`fast`), func(context.Context, *testWorld, step.Context) error {
			fastDone.Add(1)
			return nil
		})

	scenarios := []feature.Scenario{scenario("slow", nil, gv("slow"))}
	for i := range 10 {
		scenarios = append(scenarios, scenario(fmt.Sprintf("fast%d", i), nil, gv("fast")))
	}

	cfg := config(limit)
	cfg.ReorderWatermark = watermark

	promReg := prometheus.NewRegistry()
	rec := &event.Recorder{}
	res, err := New(reg, newTestWorld,
		WithConfig(cfg),
		WithReporter(rec),
		WithMetrics(metrics.New(promReg)),
	).Run(context.Background(), single(scenarios...))
	require.NoError(t, err)

	assert.Equal(t, event.OutcomePassed, res.Outcome)
	assert.Len(t, res.Scenarios, 11)
	finished := rec.Filter(event.ScenarioFinished)
	require.Len(t, finished, 11)
	assert.Equal(t, "slow", finished[0].Scenario)

	// Nothing is released while the first scenario runs, so admission stops once
	// the watermark is reached and only the slots already in flight can finish.
	assert.LessOrEqual(t, fastDoneWhileSlow.Load(), int64(watermark+limit-1))
	assert.Equal(t, int64(10), fastDone.Load())

	assert.Positive(t, counterValue(t, promReg, "stepflow_scheduler_admission_backpressure_total"))
}

func counterValue(t *testing.T, g prometheus.Gatherer, name string) float64 {
	t.Helper()

	families, err := g.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() == name {
			require.Len(t, mf.GetMetric(), 1)
			return mf.GetMetric()[0].GetCounter().GetValue()
		}
	}
	t.Fatalf("metric %s not gathered", name)
	return 0
}

func TestRun_EmptyFeaturesAreReported(t *testing.T) {
	t.Parallel()

	reg := step.New[*testWorld]().Given(nil, regexp.MustCompile(`ok`), noop)
	features := []feature.Feature{
		{Name: "empty-leading"},
		{Name: "with-scenario", Scenarios: []feature.Scenario{scenario("s", nil, gv("ok"))}},
		{Name: "empty-middle"},
		{Name: "second", Scenarios: []feature.Scenario{scenario("t", nil, gv("ok"))}},
		{Name: "empty-trailing"},
	}

	rec := &event.Recorder{}
	_, err := New(reg, newTestWorld, WithReporter(rec)).Run(context.Background(), features)
	require.NoError(t, err)

	var got []string
	for _, e := range rec.Events() {
		if e.Type == event.FeatureStarted {
			got = append(got, e.Feature)
		}
	}
	assert.Equal(t, []string{"empty-leading", "with-scenario", "empty-middle", "second", "empty-trailing"}, got)
	assert.Len(t, rec.Filter(event.FeatureFinished), 5)
}

func TestRun_RetryExhaustion(t *testing.T) {
	t.Parallel()

	cnt := &counter{}
	reg := step.New[*testWorld]().
		Given(nil, regexp.MustCompile(`a flaky dependency`), func(context.Context, *testWorld, step.Context) error {
			cnt.inc("flaky")
			return errors.New("connection refused")
		})

	cfg := config(1)
	cfg.Retry = RetryOptions{Count: 2}

	rec := &event.Recorder{}
	res, err := New(reg, newTestWorld, WithConfig(cfg), WithReporter(rec)).
		Run(context.Background(), single(scenario("flaky", nil, gv("a flaky dependency"))))
	require.NoError(t, err)

	assert.Equal(t, event.OutcomeFailed, res.Outcome)
	require.Len(t, res.Scenarios, 1)
	assert.Equal(t, 3, res.Scenarios[0].Attempts)
	assert.Equal(t, 3, cnt.n["flaky"])
	assert.Equal(t, 2, res.Stats.Retries)

	var herr *HandlerError
	require.ErrorAs(t, res.Scenarios[0].Err, &herr)
	assert.Equal(t, SourceStep, herr.Source)

	retries := rec.Filter(event.RetryAttempted)
	require.Len(t, retries, 2)
	assert.Equal(t, 2, retries[0].Attempt)
	assert.Equal(t, 3, retries[1].Attempt)

	last := rec.Filter(event.ScenarioFinished)
	require.Len(t, last, 1)
	assert.Equal(t, 3, last[0].Attempt)
}

func TestRun_RetryUntilPass(t *testing.T) {
	t.Parallel()

	cnt := &counter{}
	reg := step.New[*testWorld]().
		Given(nil, regexp.MustCompile(`eventually consistent`), func(context.Context, *testWorld, step.Context) error {
			if cnt.inc("ec") < 2 {
				return errors.New("not yet")
			}
			return nil
		})

	features := single(scenario("ec", []string{"@retry(3)"}, gv("eventually consistent")))
	res, err := New(reg, newTestWorld, WithConfig(config(2))).Run(context.Background(), features)
	require.NoError(t, err)

	assert.Equal(t, event.OutcomePassed, res.Outcome)
	assert.Equal(t, 2, res.Scenarios[0].Attempts)
	assert.NoError(t, res.Scenarios[0].Err)
}

func TestRun_SpecificationDefectsAreNotRetried(t *testing.T) {
	t.Parallel()

	reg := step.New[*testWorld]().
		Given(&step.Location{Path: "a.go", Line: 1}, regexp.MustCompile(`dup`), noop).
		Given(&step.Location{Path: "b.go", Line: 1}, regexp.MustCompile(`d.p`), noop).
		Given(nil, regexp.MustCompile(`defined`), noop)

	tests := map[string]struct {
		steps        []feature.Step
		wantErr      any
		wantStatuses []event.Status
	}{
		"undefined": {
			steps:        []feature.Step{gv("defined"), gv("nope"), gv("defined")},
			wantErr:      new(*UndefinedStepError),
			wantStatuses: []event.Status{event.StatusPassed, event.StatusUndefined, event.StatusSkipped},
		},
		"ambiguous": {
			steps:        []feature.Step{gv("dup"), gv("defined")},
			wantErr:      new(*AmbiguousStepError),
			wantStatuses: []event.Status{event.StatusAmbiguous, event.StatusSkipped},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			cfg := config(1)
			cfg.Retry = RetryOptions{Count: 5}

			rec := &event.Recorder{}
			res, err := New(reg, newTestWorld, WithConfig(cfg), WithReporter(rec)).
				Run(context.Background(), single(scenario(name, nil, tt.steps...)))
			require.NoError(t, err)

			assert.Equal(t, event.OutcomeFailed, res.Outcome)
			assert.Equal(t, 1, res.Scenarios[0].Attempts)
			assert.ErrorAs(t, res.Scenarios[0].Err, tt.wantErr)
			assert.False(t, IsRetryable(res.Scenarios[0].Err))
			assert.Empty(t, rec.Filter(event.RetryAttempted))
			assert.Equal(t, tt.wantStatuses, stepStatuses(rec.Events()))
		})
	}
}

func TestRun_FailFastStopsAdmission(t *testing.T) {
	t.Parallel()

	cnt := &counter{}
	reg := step.New[*testWorld]().
		Given(nil, regexp.MustCompile(`slow pass`), func(context.Context, *testWorld, step.Context) error {
			time.Sleep(50 * time.Millisecond)
			cnt.inc("slow")
			return nil
		}).
		Given(nil, regexp.MustCompile(`fail`), failing).
		Given(nil, regexp.MustCompile(`later`), func(context.Context, *testWorld, step.Context) error {
			cnt.inc("later")
			return nil
		})

	cfg := config(2)
	cfg.FailFast = true

	res, err := New(reg, newTestWorld, WithConfig(cfg)).Run(context.Background(), single(
		scenario("in flight", nil, gv("slow pass")),
		scenario("fails", nil, gv("fail")),
		scenario("never admitted 1", nil, gv("later")),
		scenario("never admitted 2", nil, gv("later")),
	))
	require.NoError(t, err)

	assert.Equal(t, event.OutcomeFailed, res.Outcome)
	assert.True(t, res.StoppedEarly)
	require.Len(t, res.Scenarios, 2)
	assert.Equal(t, event.OutcomePassed, res.Scenarios[0].Outcome, "in-flight scenario runs to completion")
	assert.Equal(t, event.OutcomeFailed, res.Scenarios[1].Outcome)
	assert.Equal(t, 1, cnt.n["slow"])
	assert.Zero(t, cnt.n["later"])
	assert.Equal(t, 2, res.Stats.NotRun)
}

func TestRun_FailFastDisabledRunsEverything(t *testing.T) {
	t.Parallel()

	reg := step.New[*testWorld]().
		Given(nil, regexp.MustCompile(`fail`), failing).
		Given(nil, regexp.MustCompile(`pass`), noop)

	res, err := New(reg, newTestWorld, WithConfig(config(1))).Run(context.Background(), single(
		scenario("a", nil, gv("fail")),
		scenario("b", nil, gv("pass")),
	))
	require.NoError(t, err)

	assert.Equal(t, event.OutcomeFailed, res.Outcome)
	assert.False(t, res.StoppedEarly)
	assert.Len(t, res.Scenarios, 2)
	assert.Len(t, res.Failed(), 1)
}

func TestRun_BeforeHookFailureSkipsStepsButRunsAfterHooks(t *testing.T) {
	t.Parallel()

	cnt := &counter{}
	reg := step.New[*testWorld]().Given(nil, regexp.MustCompile(`step`), func(context.Context, *testWorld, step.Context) error {
		cnt.inc("step")
		return nil
	})

	var afterErr error
	hooks := hook.NewExecutor[*testWorld]().
		Before(tags.MustParse("@db"), func(context.Context, *testWorld, hook.Scope) error {
			return errors.New("database unavailable")
		}).
		After(nil, func(_ context.Context, _ *testWorld, s hook.Scope) error {
			cnt.inc("after")
			afterErr = s.Err
			return nil
		})

	rec := &event.Recorder{}
	res, err := New(reg, newTestWorld, WithConfig(config(1)), WithHooks(hooks), WithReporter(rec)).
		Run(context.Background(), single(scenario("needs db", []string{"@db"}, gv("step"), gv("step"))))
	require.NoError(t, err)

	assert.Equal(t, event.OutcomeFailed, res.Outcome)
	assert.Zero(t, cnt.n["step"])
	assert.Equal(t, 1, cnt.n["after"])

	var herr *HandlerError
	require.ErrorAs(t, res.Scenarios[0].Err, &herr)
	assert.Equal(t, SourceBeforeHook, herr.Source)
	assert.ErrorAs(t, afterErr, &herr)

	assert.Len(t, rec.Filter(event.HookFailed), 1)
	assert.Equal(t, []event.Status{event.StatusSkipped, event.StatusSkipped}, stepStatuses(rec.Events()))
}

func TestRun_AfterHookFailureFailsPassingAttempt(t *testing.T) {
	t.Parallel()

	reg := step.New[*testWorld]().Given(nil, regexp.MustCompile(`ok`), noop)
	hooks := hook.NewExecutor[*testWorld]().After(nil, func(context.Context, *testWorld, hook.Scope) error {
		return errors.New("cleanup failed")
	})

	res, err := New(reg, newTestWorld, WithHooks(hooks)).Run(context.Background(), single(scenario("s", nil, gv("ok"))))
	require.NoError(t, err)

	var herr *HandlerError
	require.ErrorAs(t, res.Scenarios[0].Err, &herr)
	assert.Equal(t, SourceAfterHook, herr.Source)
	assert.Equal(t, event.OutcomeFailed, res.Outcome)
}

func TestRun_PanicsBecomeHandlerErrors(t *testing.T) {
	t.Parallel()

	reg := step.New[*testWorld]().Given(nil, regexp.MustCompile(`panics`), func(context.Context, *testWorld, step.Context) error {
		panic("nil map write")
	})

	res, err := New(reg, newTestWorld).Run(context.Background(), single(scenario("s", nil, gv("panics"))))
	require.NoError(t, err)

	var herr *HandlerError
	require.ErrorAs(t, res.Scenarios[0].Err, &herr)
	assert.True(t, herr.Panicked)
	require.NotNil(t, herr.Step)
	assert.Equal(t, "panics", herr.Step.Text)
	assert.Contains(t, herr.Error(), "nil map write")
}

func TestRun_CancellationIsIncomplete(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cnt := &counter{}
	reg := step.New[*testWorld]().
		Given(nil, regexp.MustCompile(`cancel the run`), func(context.Context, *testWorld, step.Context) error {
			cancel()
			return nil
		}).
		Given(nil, regexp.MustCompile(`after cancel`), func(context.Context, *testWorld, step.Context) error {
			cnt.inc("after")
			return nil
		})

	var afterHooks int
	hooks := hook.NewExecutor[*testWorld]().After(nil, func(ctx context.Context, _ *testWorld, _ hook.Scope) error {
		afterHooks++
		return ctx.Err()
	})

	rec := &event.Recorder{}
	res, err := New(reg, newTestWorld, WithConfig(config(1)), WithHooks(hooks), WithReporter(rec)).Run(ctx, single(
		scenario("first", nil, gv("cancel the run"), gv("after cancel")),
		scenario("second", nil, gv("after cancel")),
	))
	require.NoError(t, err)

	assert.Equal(t, event.OutcomeIncomplete, res.Outcome)
	require.Len(t, res.Scenarios, 1)
	assert.Equal(t, event.OutcomeCancelled, res.Scenarios[0].Outcome)
	assert.ErrorIs(t, res.Scenarios[0].Err, ErrCancelled)
	assert.Zero(t, cnt.n["after"])
	assert.Equal(t, 1, afterHooks, "after hooks run with cancellation detached")
	assert.Equal(t, []event.Status{event.StatusPassed, event.StatusSkipped}, stepStatuses(rec.Events()))

	runFinished := rec.Filter(event.RunFinished)
	require.Len(t, runFinished, 1)
	assert.Equal(t, event.OutcomeIncomplete, runFinished[0].Outcome)
}

func TestRun_CancelledBeforeStart(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	reg := step.New[*testWorld]().Given(nil, regexp.MustCompile(`ok`), noop)
	res, err := New(reg, newTestWorld).Run(ctx, single(scenario("s", nil, gv("ok"))))
	require.NoError(t, err)

	assert.Equal(t, event.OutcomeIncomplete, res.Outcome)
	assert.Empty(t, res.Scenarios)
	assert.Equal(t, 1, res.Stats.NotRun)
}

func TestRun_DeadlineSuppressesRetries(t *testing.T) {
	t.Parallel()

	cnt := &counter{}
	reg := step.New[*testWorld]().Given(nil, regexp.MustCompile(`fails`), func(context.Context, *testWorld, step.Context) error {
		cnt.inc("fails")
		return errors.New("still down")
	})

	cfg := config(1)
	cfg.Retry = RetryOptions{Count: 5, Deadline: time.Now().Add(-time.Second)}

	res, err := New(reg, newTestWorld, WithConfig(cfg)).Run(context.Background(), single(scenario("s", nil, gv("fails"))))
	require.NoError(t, err)

	assert.Equal(t, 1, cnt.n["fails"])
	var deadline *DeadlineExceededError
	require.ErrorAs(t, res.Scenarios[0].Err, &deadline)
	assert.Equal(t, 1, deadline.Attempts)
	assert.Equal(t, event.OutcomeFailed, res.Outcome)
}

func TestRun_DeadlinePassingDuringDelay(t *testing.T) {
	t.Parallel()

	cnt := &counter{}
	reg := step.New[*testWorld]().Given(nil, regexp.MustCompile(`fails`), func(context.Context, *testWorld, step.Context) error {
		cnt.inc("fails")
		return errors.New("still down")
	})

	cfg := config(1)
	cfg.Retry = RetryOptions{Count: 5, After: 40 * time.Millisecond, Deadline: time.Now().Add(20 * time.Millisecond)}

	res, err := New(reg, newTestWorld, WithConfig(cfg)).Run(context.Background(), single(scenario("s", nil, gv("fails"))))
	require.NoError(t, err)

	assert.Equal(t, 1, cnt.n["fails"])
	var deadline *DeadlineExceededError
	assert.ErrorAs(t, res.Scenarios[0].Err, &deadline)
}

func TestRun_StepTimeoutIsRetryable(t *testing.T) {
	t.Parallel()

	cnt := &counter{}
	reg := step.New[*testWorld]().Given(nil, regexp.MustCompile(`hangs`), func(ctx context.Context, _ *testWorld, _ step.Context) error {
		cnt.inc("hangs")
		<-ctx.Done()
		return ctx.Err()
	})

	cfg := config(1)
	cfg.StepTimeout = 10 * time.Millisecond
	cfg.Retry = RetryOptions{Count: 1}

	res, err := New(reg, newTestWorld, WithConfig(cfg)).Run(context.Background(), single(scenario("s", nil, gv("hangs"))))
	require.NoError(t, err)

	assert.Equal(t, 2, cnt.n["hangs"])
	assert.Equal(t, 2, res.Scenarios[0].Attempts)
	var timeout *TimeoutError
	require.ErrorAs(t, res.Scenarios[0].Err, &timeout)
	assert.Equal(t, 10*time.Millisecond, timeout.Timeout)
	assert.True(t, IsRetryable(timeout))
}

func TestRun_RetryTagsRestrictEligibility(t *testing.T) {
	t.Parallel()

	cnt := &counter{}
	reg := step.New[*testWorld]().Given(nil, regexp.MustCompile(`fails in (\w+)`), func(_ context.Context, _ *testWorld, sc step.Context) error {
		cnt.inc(sc.Arg(1))
		return errors.New("nope")
	})

	cfg := config(2)
	cfg.Retry = RetryOptions{Count: 2}
	cfg.RetryTags = tags.MustParse("@flaky")

	_, err := New(reg, newTestWorld, WithConfig(cfg)).Run(context.Background(), single(
		scenario("flaky", []string{"@flaky"}, gv("fails in flaky")),
		scenario("stable", nil, gv("fails in stable")),
	))
	require.NoError(t, err)

	assert.Equal(t, 3, cnt.n["flaky"])
	assert.Equal(t, 1, cnt.n["stable"])
}

func TestRun_OptionOverrides(t *testing.T) {
	t.Parallel()

	cnt := &counter{}
	reg := step.New[*testWorld]().Given(nil, regexp.MustCompile(`fails`), func(context.Context, *testWorld, step.Context) error {
		cnt.inc("fails")
		return errors.New("nope")
	})

	r := New(reg, newTestWorld,
		WithScenarioType(func(*feature.Feature, *feature.Scenario) ScenarioType { return Serial }),
		WithRetryOptions(func(_ *feature.Feature, sc *feature.Scenario) (RetryOptions, bool) {
			return RetryOptions{Count: 1}, sc.Name == "override"
		}),
	)
	res, err := r.Run(context.Background(), single(
		scenario("override", nil, gv("fails")),
		scenario("default", nil, gv("fails")),
	))
	require.NoError(t, err)

	assert.Equal(t, 2, res.Scenarios[0].Attempts)
	assert.Equal(t, 1, res.Scenarios[1].Attempts)
	assert.Equal(t, Serial, res.Scenarios[0].Type)
	assert.Equal(t, 3, cnt.n["fails"])
}

func TestRun_WorldConstructorFailure(t *testing.T) {
	t.Parallel()

	reg := step.New[*testWorld]().Given(nil, regexp.MustCompile(`ok`), noop)
	newWorld := func(context.Context) (*testWorld, error) { return nil, errors.New("no fixtures") }

	rec := &event.Recorder{}
	res, err := New(reg, newWorld, WithReporter(rec)).Run(context.Background(), single(scenario("s", nil, gv("ok"))))
	require.NoError(t, err)

	var herr *HandlerError
	require.ErrorAs(t, res.Scenarios[0].Err, &herr)
	assert.Equal(t, SourceWorld, herr.Source)
	assert.Equal(t, []event.Status{event.StatusSkipped}, stepStatuses(rec.Events()))
}

func TestRun_SingleUse(t *testing.T) {
	t.Parallel()

	r := New(step.New[*testWorld](), newTestWorld)
	_, err := r.Run(context.Background(), nil)
	require.NoError(t, err)

	_, err = r.Run(context.Background(), nil)
	assert.ErrorIs(t, err, ErrAlreadyRun)
}

func TestRun_RejectsInvalidInput(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		cfg      Config
		features []feature.Feature
		wantErr  string
	}{
		"zero concurrency": {
			cfg:     Config{},
			wantErr: "max concurrent scenarios",
		},
		"malformed retry tag": {
			cfg:      DefaultConfig(),
			features: single(scenario("s", []string{"@retry(2).after(soon)"}, gv("ok"))),
			wantErr:  "@retry(2).after(soon)",
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			_, err := New(step.New[*testWorld](), newTestWorld, WithConfig(tt.cfg)).Run(context.Background(), tt.features)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNew_PanicsOnHookWorldMismatch(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() {
		New(step.New[*testWorld](), newTestWorld, WithHooks(hook.NewExecutor[string]()))
	})
}
