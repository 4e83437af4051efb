package runner

import (
	"context"
	"errors"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ariel-frischer/stepflow/pkg/event"
	"github.com/ariel-frischer/stepflow/pkg/feature"
	"github.com/ariel-frischer/stepflow/pkg/hook"
	"github.com/ariel-frischer/stepflow/pkg/step"
)

type testWorld struct {
	serial bool
	log    []string
}

func newTestWorld(context.Context) (*testWorld, error) {
	return &testWorld{}, nil
}

func gv(text string) feature.Step {
	return feature.Step{Keyword: "Given", Kind: feature.Given, Text: text}
}

func wh(text string) feature.Step {
	return feature.Step{Keyword: "When", Kind: feature.When, Text: text}
}

func th(text string) feature.Step {
	return feature.Step{Keyword: "Then", Kind: feature.Then, Text: text}
}

func scenario(name string, tagSet []string, steps ...feature.Step) feature.Scenario {
	return feature.Scenario{Name: name, Tags: tagSet, Steps: steps}
}

func single(scenarios ...feature.Scenario) []feature.Feature {
	return []feature.Feature{{Name: "suite", Path: "suite.yml", Scenarios: scenarios}}
}

func config(k int) Config {
	cfg := DefaultConfig()
	cfg.MaxConcurrentScenarios = k
	return cfg
}

func noop(context.Context, *testWorld, step.Context) error { return nil }

func failing(context.Context, *testWorld, step.Context) error { return errors.New("boom") }

// occupancy tracks how many serial and concurrent scenarios are inside a step at once.
type occupancy struct {
	serial, concurrent atomic.Int64
	maxTotal           atomic.Int64
	violations         atomic.Int64
}

func (o *occupancy) handler(d time.Duration) step.Handler[*testWorld] {
	return func(_ context.Context, w *testWorld, _ step.Context) error {
		if w.serial {
			s := o.serial.Add(1)
			if s > 1 || o.concurrent.Load() > 0 {
				o.violations.Add(1)
			}
			o.observe(s + o.concurrent.Load())
			time.Sleep(d)
			o.serial.Add(-1)
			return nil
		}
		c := o.concurrent.Add(1)
		if o.serial.Load() > 0 {
			o.violations.Add(1)
		}
		o.observe(c)
		time.Sleep(d)
		o.concurrent.Add(-1)
		return nil
	}
}

func (o *occupancy) observe(n int64) {
	for {
		cur := o.maxTotal.Load()
		if n <= cur || o.maxTotal.CompareAndSwap(cur, n) {
			return
		}
	}
}

// markSerial flags the world of @serial scenarios so step handlers know their type.
func markSerial() *hook.Executor[*testWorld] {
	return hook.NewExecutor[*testWorld]().Before(nil, func(_ context.Context, w *testWorld, s hook.Scope) error {
		w.serial = slices.Contains(s.Tags, "@serial")
		return nil
	})
}

// counter counts handler invocations per key.
type counter struct {
	mu sync.Mutex
	n  map[string]int
}

func (c *counter) inc(key string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.n == nil {
		c.n = make(map[string]int)
	}
	c.n[key]++
	return c.n[key]
}

func scenarioNames(events []event.Event) []string {
	var out []string
	for _, e := range events {
		out = append(out, e.Scenario)
	}
	return out
}

func stepStatuses(events []event.Event) []event.Status {
	var out []event.Status
	for _, e := range events {
		if e.Type == event.StepFinished {
			out = append(out, e.Step.Status)
		}
	}
	return out
}
