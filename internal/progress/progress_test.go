package progress

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type recorder struct {
	mu    sync.Mutex
	items []int
	fracs []float64
}

func (r *recorder) ReportProgress(p float64, _ string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fracs = append(r.fracs, p)
}

func (r *recorder) ReportItemProgress(current, _ int, _ string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, current)
}

func TestThrottled_DropsWithinInterval(t *testing.T) {
	rec := &recorder{}
	th := NewThrottled(rec, time.Second)

	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	th.now = func() time.Time { return clock }

	th.ReportItemProgress(1, 10, "a")
	th.ReportItemProgress(2, 10, "b")
	clock = clock.Add(500 * time.Millisecond)
	th.ReportItemProgress(3, 10, "c")
	clock = clock.Add(600 * time.Millisecond)
	th.ReportItemProgress(4, 10, "d")
	th.ReportItemProgress(10, 10, "last")

	assert.Equal(t, []int{1, 4, 10}, rec.items)
}

func TestThrottled_ForwardsCompletion(t *testing.T) {
	rec := &recorder{}
	th := NewThrottled(rec, time.Hour)

	th.ReportProgress(0.1, "")
	th.ReportProgress(0.5, "")
	th.ReportProgress(1, "done")

	assert.Equal(t, []float64{0.1, 1}, rec.fracs)
}

func TestThrottled_ZeroIntervalForwardsAll(t *testing.T) {
	rec := &recorder{}
	th := NewThrottled(rec, 0)
	for i := 1; i <= 5; i++ {
		th.ReportItemProgress(i, 5, "")
	}
	assert.Equal(t, []int{1, 2, 3, 4, 5}, rec.items)
}

func TestThrottled_NilInner(t *testing.T) {
	th := NewThrottled(nil, time.Second)
	assert.NotPanics(t, func() {
		th.ReportItemProgress(1, 2, "")
		th.ReportProgress(0.5, "")
	})
}

func TestFunc(t *testing.T) {
	var got []int
	f := Func(func(current, _ int, _ string) { got = append(got, current) })
	f.ReportItemProgress(3, 4, "x")
	f.ReportProgress(0.2, "ignored")
	assert.Equal(t, []int{3}, got)
}
