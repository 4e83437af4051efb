package runner

import (
	"errors"
	"fmt"
	"time"

	"github.com/ariel-frischer/stepflow/pkg/tags"
)

// ScenarioType decides how a scenario shares the worker pool.
type ScenarioType int

const (
	// Concurrent scenarios take one slot of the pool.
	Concurrent ScenarioType = iota
	// Serial scenarios run alone: nothing else is in flight while one runs.
	Serial
)

// String returns "concurrent" or "serial".
func (t ScenarioType) String() string {
	if t == Serial {
		return "serial"
	}
	return "concurrent"
}

// ScenarioID is a scenario's declaration position within one run, starting at 1.
type ScenarioID uint64

// RetryOptions is the retry policy of a scenario.
type RetryOptions struct {
	// Count is the number of retries left after the first attempt.
	Count int
	// After is the delay between attempts.
	After time.Duration
	// Deadline, when set, suppresses further retries once passed, even if Count remains.
	Deadline time.Time
}

// Config is the run configuration. It is read once when Run starts.
type Config struct {
	// MaxConcurrentScenarios bounds the number of scenarios in flight. Must be >= 1.
	MaxConcurrentScenarios int
	// FailFast stops admitting scenarios once one has failed for good.
	FailFast bool
	// Retry is the default retry policy.
	Retry RetryOptions
	// SerialTags classifies scenarios as Serial. An empty expression classifies none.
	SerialTags *tags.Expr
	// RetryTags restricts retries to matching scenarios. An empty expression allows all.
	RetryTags *tags.Expr
	// ReorderWatermark pauses admission while this many finished scenarios wait for an
	// earlier one to be reported. 0 disables the pause.
	ReorderWatermark int
	// StepTimeout bounds each step through its context. 0 disables it.
	StepTimeout time.Duration
}

// DefaultSerialTag is the tag that marks a scenario Serial by default.
const DefaultSerialTag = "@serial"

// DefaultConfig returns a configuration with 64 concurrent scenarios, no retries
// and @serial scenarios run exclusively.
func DefaultConfig() Config {
	return Config{
		MaxConcurrentScenarios: 64,
		SerialTags:             tags.MustParse(DefaultSerialTag),
	}
}

// Validate checks the configuration for values the scheduler cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.MaxConcurrentScenarios < 1 {
		errs = append(errs, fmt.Errorf("max concurrent scenarios must be at least 1, got %d", c.MaxConcurrentScenarios))
	}
	if c.Retry.Count < 0 {
		errs = append(errs, fmt.Errorf("retry count must not be negative, got %d", c.Retry.Count))
	}
	if c.Retry.After < 0 {
		errs = append(errs, fmt.Errorf("retry delay must not be negative, got %s", c.Retry.After))
	}
	if c.ReorderWatermark < 0 {
		errs = append(errs, fmt.Errorf("reorder watermark must not be negative, got %d", c.ReorderWatermark))
	}
	if c.StepTimeout < 0 {
		errs = append(errs, fmt.Errorf("step timeout must not be negative, got %s", c.StepTimeout))
	}
	return errors.Join(errs...)
}

func (c Config) scenarioType(tagSet []string) ScenarioType {
	if c.SerialTags.IsEmpty() {
		return Concurrent
	}
	if c.SerialTags.Match(tagSet) {
		return Serial
	}
	return Concurrent
}
