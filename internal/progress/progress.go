// Package progress defines the port through which long-running operations
// report how far along they are.
package progress

import (
	"sync"
	"time"
)

// Reporter is passed to components that report progress. Implementations must
// be safe for concurrent use.
type Reporter interface {
	// ReportProgress reports progress (0.0 to 1.0) with an optional message.
	ReportProgress(progress float64, message string)

	// ReportItemProgress reports item-level progress with counts.
	ReportItemProgress(current, total int, itemName string)
}

// NilReporter is a no-op Reporter for when progress tracking is disabled.
type NilReporter struct{}

// ReportProgress is a no-op for NilReporter.
func (NilReporter) ReportProgress(float64, string) {}

// ReportItemProgress is a no-op for NilReporter.
func (NilReporter) ReportItemProgress(int, int, string) {}

// Func adapts a plain function to a Reporter. ReportProgress calls are
// dropped.
type Func func(current, total int, itemName string)

// ReportProgress is a no-op for Func.
func (Func) ReportProgress(float64, string) {}

// ReportItemProgress calls f.
func (f Func) ReportItemProgress(current, total int, itemName string) {
	f(current, total, itemName)
}

// Throttled forwards to an inner Reporter at most once per interval. The
// final item update (current == total) and completion (progress >= 1) are
// always forwarded.
type Throttled struct {
	inner    Reporter
	interval time.Duration
	now      func() time.Time

	mu   sync.Mutex
	last time.Time
}

// NewThrottled wraps inner. A non-positive interval forwards every update.
func NewThrottled(inner Reporter, interval time.Duration) *Throttled {
	if inner == nil {
		inner = NilReporter{}
	}
	return &Throttled{inner: inner, interval: interval, now: time.Now}
}

// ReportProgress forwards when the interval elapsed or progress is complete.
func (t *Throttled) ReportProgress(progress float64, message string) {
	if t.allow(progress >= 1) {
		t.inner.ReportProgress(progress, message)
	}
}

// ReportItemProgress forwards when the interval elapsed or the last item is reached.
func (t *Throttled) ReportItemProgress(current, total int, itemName string) {
	if t.allow(current >= total) {
		t.inner.ReportItemProgress(current, total, itemName)
	}
}

func (t *Throttled) allow(force bool) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	if !force && t.interval > 0 && !t.last.IsZero() && now.Sub(t.last) < t.interval {
		return false
	}
	t.last = now
	return true
}

// Verify interface compliance at compile time.
var (
	_ Reporter = NilReporter{}
	_ Reporter = Func(nil)
	_ Reporter = (*Throttled)(nil)
)
