package runner

import (
	"time"

	"go.uber.org/zap"

	"github.com/ariel-frischer/stepflow/pkg/event"
	"github.com/ariel-frischer/stepflow/pkg/hook"
	"github.com/ariel-frischer/stepflow/pkg/metrics"
)

type settings struct {
	cfg      Config
	hooks    any
	reporter event.Reporter
	logger   *zap.Logger
	metrics  *metrics.Collector
	typeFn   TypeFunc
	retryFn  RetryFunc
	now      func() time.Time
}

// Option configures a Runner.
type Option func(*settings)

// WithConfig sets the run configuration. The default is DefaultConfig().
func WithConfig(cfg Config) Option {
	return func(s *settings) {
		s.cfg = cfg
	}
}

// WithHooks sets the Before/After hooks. The executor's world type must match the runner's.
func WithHooks[W any](h *hook.Executor[W]) Option {
	return func(s *settings) {
		s.hooks = h
	}
}

// WithReporter sets the reporter receiving the ordered event stream.
func WithReporter(r event.Reporter) Option {
	return func(s *settings) {
		if r != nil {
			s.reporter = r
		}
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics records scheduler activity on the collector.
func WithMetrics(m *metrics.Collector) Option {
	return func(s *settings) {
		s.metrics = m
	}
}

// WithScenarioType replaces tag-based Serial/Concurrent classification.
func WithScenarioType(fn TypeFunc) Option {
	return func(s *settings) {
		s.typeFn = fn
	}
}

// WithRetryOptions overrides the retry policy of the scenarios for which fn returns true.
// Retry eligibility by RetryTags still applies.
func WithRetryOptions(fn RetryFunc) Option {
	return func(s *settings) {
		s.retryFn = fn
	}
}
