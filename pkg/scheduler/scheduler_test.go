package scheduler

import (
	"sync"
	"testing"
	"time"

	"github.com/Ap3pp3rs94/chartly-apex/pkg/chart"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	batches  []Batch
	rebuilds []chart.Attr
}

func newTestScheduler(t *testing.T, clock *ManualClock) (*Scheduler, *recorder) {
	t.Helper()
	rec := &recorder{}
	s := New(Options{
		Delay:   100 * time.Millisecond,
		Clock:   clock,
		Flush:   func(b Batch) { rec.batches = append(rec.batches, b) },
		Rebuild: func(a chart.Attr, _ chart.Mutation) { rec.rebuilds = append(rec.rebuilds, a) },
	})
	return s, rec
}

func TestDebounceCoalescesToLatestValue(t *testing.T) {
	clock := NewManualClock(time.Unix(0, 0))
	s, rec := newTestScheduler(t, clock)

	for _, title := range []string{"one", "two", "three"} {
		s.Record(chart.AttrTitle, chart.SetTo(title))
		clock.Advance(50 * time.Millisecond)
	}
	require.Empty(t, rec.batches)
	require.Equal(t, Pending, s.State())

	clock.Advance(50 * time.Millisecond)
	require.Len(t, rec.batches, 1)
	require.Equal(t, chart.SetTo("three"), rec.batches[0][chart.AttrTitle])
	require.Equal(t, Idle, s.State())
	require.Equal(t, 0, clock.Pending())
}

func TestTypeBypassesBatch(t *testing.T) {
	clock := NewManualClock(time.Unix(0, 0))
	s, rec := newTestScheduler(t, clock)

	s.Record(chart.AttrTitle, chart.SetTo("x"))
	s.Record(chart.AttrType, chart.SetTo("pie"))
	require.Equal(t, []chart.Attr{chart.AttrType}, rec.rebuilds)
	require.Empty(t, rec.batches)
	require.Equal(t, Pending, s.State())

	clock.Advance(time.Second)
	require.Len(t, rec.batches, 1)
	require.False(t, rec.batches[0].Has(chart.AttrType))
}

func TestForceNowSkipsWindowAndCancelsTimer(t *testing.T) {
	clock := NewManualClock(time.Unix(0, 0))
	s, rec := newTestScheduler(t, clock)

	s.Record(chart.AttrHeight, chart.SetTo("500"))
	s.ForceNow()
	require.Len(t, rec.batches, 1)

	clock.Advance(time.Second)
	require.Len(t, rec.batches, 1)

	s.ForceNow()
	require.Len(t, rec.batches, 1, "empty batches are not flushed")
}

func TestDetachedTargetDiscardsBatch(t *testing.T) {
	clock := NewManualClock(time.Unix(0, 0))
	flushed := 0
	s := New(Options{
		Clock: clock,
		Flush: func(Batch) { flushed++ },
		Valid: func() bool { return false },
	})
	s.Record(chart.AttrTitle, chart.SetTo("x"))
	clock.Advance(DefaultDelay)

	require.Equal(t, 0, flushed)
	require.Equal(t, 1, s.Flushes())
	require.Empty(t, s.PendingBatch())
}

func TestStopCancelsPending(t *testing.T) {
	clock := NewManualClock(time.Unix(0, 0))
	s, rec := newTestScheduler(t, clock)

	s.Record(chart.AttrTitle, chart.SetTo("x"))
	s.Stop()
	clock.Advance(time.Second)
	s.Record(chart.AttrTitle, chart.SetTo("y"))
	clock.Advance(time.Second)

	require.Empty(t, rec.batches)
	require.Equal(t, Idle, s.State())
}

func TestSetDelay(t *testing.T) {
	clock := NewManualClock(time.Unix(0, 0))
	s, rec := newTestScheduler(t, clock)

	require.Error(t, s.SetDelay(-time.Millisecond))
	require.NoError(t, s.SetDelay(0))
	s.Record(chart.AttrTitle, chart.SetTo("x"))
	clock.Advance(0)
	require.Len(t, rec.batches, 1)
}

func TestLockerHeldDuringTimerFlush(t *testing.T) {
	var mu sync.Mutex
	clock := NewManualClock(time.Unix(0, 0))
	held := false
	s := New(Options{
		Clock:  clock,
		Locker: &mu,
		Flush: func(Batch) {
			held = !mu.TryLock()
			if !held {
				mu.Unlock()
			}
		},
	})

	mu.Lock()
	s.Record(chart.AttrTitle, chart.SetTo("x"))
	mu.Unlock()

	clock.Advance(DefaultDelay)
	require.True(t, held)
}

func TestRealClockFlushes(t *testing.T) {
	done := make(chan Batch, 1)
	s := New(Options{Delay: 5 * time.Millisecond, Flush: func(b Batch) { done <- b }})
	s.Record(chart.AttrTitle, chart.SetTo("x"))

	select {
	case b := <-done:
		require.True(t, b.Has(chart.AttrTitle))
	case <-time.After(2 * time.Second):
		t.Fatal("flush did not happen")
	}
}
