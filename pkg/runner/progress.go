package runner

import (
	"fmt"
	"sync"
)

// ProgressTracker counts scenarios through a run.
// It provides thread-safe updates and rendering of progress information.
type ProgressTracker struct {
	// total is the number of scenarios in the backlog.
	total int
	// running is the count of admitted, unfinished scenarios.
	running int
	passed  int
	failed  int
	// cancelled counts scenarios stopped by cancellation.
	cancelled int
	// retries counts attempts after the first, across all scenarios.
	retries int
	// mu protects all counter fields.
	mu sync.RWMutex
}

// NewProgressTracker creates a new ProgressTracker for the given total scenarios.
func NewProgressTracker(total int) *ProgressTracker {
	return &ProgressTracker{
		total: total,
	}
}

// MarkRunning increments the running count.
func (pt *ProgressTracker) MarkRunning() {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	pt.running++
}

// MarkRetries adds n retry attempts.
func (pt *ProgressTracker) MarkRetries(n int) {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	pt.retries += n
}

// MarkPassed decrements running and increments passed.
func (pt *ProgressTracker) MarkPassed() {
	pt.finish(&pt.passed)
}

// MarkFailed decrements running and increments failed.
func (pt *ProgressTracker) MarkFailed() {
	pt.finish(&pt.failed)
}

// MarkCancelled decrements running and increments cancelled.
func (pt *ProgressTracker) MarkCancelled() {
	pt.finish(&pt.cancelled)
}

func (pt *ProgressTracker) finish(counter *int) {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	if pt.running > 0 {
		pt.running--
	}
	*counter++
}

// Render returns a formatted progress string (e.g., "2/5 scenarios passed").
func (pt *ProgressTracker) Render() string {
	pt.mu.RLock()
	defer pt.mu.RUnlock()
	return fmt.Sprintf("%d/%d scenarios passed", pt.passed, pt.total)
}

// RenderDetailed returns detailed progress with all states.
func (pt *ProgressTracker) RenderDetailed() string {
	pt.mu.RLock()
	defer pt.mu.RUnlock()

	return fmt.Sprintf(
		"%d/%d scenarios passed (%d running, %d failed, %d cancelled, %d retries)",
		pt.passed, pt.total, pt.running, pt.failed, pt.cancelled, pt.retries,
	)
}

// Stats returns current progress statistics.
func (pt *ProgressTracker) Stats() ProgressStats {
	pt.mu.RLock()
	defer pt.mu.RUnlock()
	return ProgressStats{
		Total:     pt.total,
		Running:   pt.running,
		Passed:    pt.passed,
		Failed:    pt.failed,
		Cancelled: pt.cancelled,
		Retries:   pt.retries,
		NotRun:    pt.total - pt.running - pt.passed - pt.failed - pt.cancelled,
	}
}

// ProgressStats holds a snapshot of progress statistics.
type ProgressStats struct {
	Total     int
	Running   int
	Passed    int
	Failed    int
	Cancelled int
	Retries   int
	// NotRun counts scenarios never admitted, e.g. after fail-fast or cancellation.
	NotRun int
}

// IsComplete returns true if every scenario reached a terminal outcome.
func (ps ProgressStats) IsComplete() bool {
	return ps.Passed+ps.Failed+ps.Cancelled >= ps.Total
}

// SuccessRate returns the pass rate as a percentage (0-100).
func (ps ProgressStats) SuccessRate() float64 {
	if ps.Total == 0 {
		return 100.0
	}
	return float64(ps.Passed) / float64(ps.Total) * 100.0
}
