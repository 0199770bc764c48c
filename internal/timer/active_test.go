package timer

import (
	"testing"
	"time"
)

type fakeClock struct {
	t time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) now() time.Time          { return f.t }
func (f *fakeClock) advance(d time.Duration) { f.t = f.t.Add(d) }

func TestElapsedWhileRunning(t *testing.T) {
	t.Parallel()

	clk := newFakeClock()
	s := NewRun("s1", clk.now(), 100, 600)
	s.now = clk.now

	if got := s.Elapsed(); got != 100 {
		t.Errorf("Elapsed() at start = %v, want 100 (prior)", got)
	}

	clk.advance(30 * time.Second)
	if got := s.Elapsed(); got != 130 {
		t.Errorf("Elapsed() after 30s = %v, want 130", got)
	}
	if got := s.RunElapsed(); got != 30 {
		t.Errorf("RunElapsed() = %v, want 30", got)
	}
}

func TestElapsedMonotonicWhileRunning(t *testing.T) {
	t.Parallel()

	clk := newFakeClock()
	s := NewRun("s1", clk.now(), 0, 0)
	s.now = clk.now

	prev := s.Elapsed()
	for i := 0; i < 10; i++ {
		clk.advance(time.Second)
		got := s.Elapsed()
		if got < prev {
			t.Fatalf("Elapsed() decreased: %v -> %v", prev, got)
		}
		prev = got
	}
}

func TestPauseFreezesElapsed(t *testing.T) {
	t.Parallel()

	clk := newFakeClock()
	s := NewRun("s1", clk.now(), 0, 0)
	s.now = clk.now

	clk.advance(100 * time.Second)
	s.Pause()

	clk.advance(50 * time.Second) // the gap must not count
	if got := s.Elapsed(); got != 100 {
		t.Errorf("Elapsed() while paused = %v, want 100", got)
	}

	s.Resume(clk.now())
	clk.advance(200 * time.Second)
	if got := s.Elapsed(); got != 300 {
		t.Errorf("Elapsed() after resume = %v, want 300 (pause gap excluded)", got)
	}
	if got := s.RunElapsed(); got != 300 {
		t.Errorf("RunElapsed() = %v, want 300", got)
	}
}

func TestPauseResumeAreIdempotent(t *testing.T) {
	t.Parallel()

	clk := newFakeClock()
	s := NewRun("s1", clk.now(), 0, 0)
	s.now = clk.now

	s.Resume(clk.now()) // not paused: no-op
	clk.advance(10 * time.Second)
	s.Pause()
	s.Pause() // second pause: no-op
	if got := s.Elapsed(); got != 10 {
		t.Errorf("Elapsed() = %v, want 10", got)
	}
}

func TestTargetReachedFiresOncePerRun(t *testing.T) {
	t.Parallel()

	clk := newFakeClock()
	s := NewRun("s1", clk.now(), 0, 600)
	s.now = clk.now

	fired := 0
	s.OnTargetReached = func() { fired++ }

	// Tick every 100s; the target crosses at 600 and must fire exactly once
	// even though elapsed keeps being recomputed past it.
	for i := 0; i < 10; i++ {
		clk.advance(100 * time.Second)
		s.Tick()
	}
	if fired != 1 {
		t.Errorf("OnTargetReached fired %d times, want 1", fired)
	}
	if !s.TargetReached() {
		t.Error("TargetReached() = false after crossing")
	}
}

func TestTickWhilePausedDoesNothing(t *testing.T) {
	t.Parallel()

	clk := newFakeClock()
	s := NewRun("s1", clk.now(), 0, 10)
	s.now = clk.now

	ticks := 0
	s.OnTick = func(elapsed float64) { ticks++ }

	clk.advance(time.Minute)
	s.Pause()
	s.Tick()
	if ticks != 0 {
		t.Errorf("OnTick fired %d times while paused, want 0", ticks)
	}
	if s.TargetReached() {
		t.Error("target fired from a paused tick")
	}
}

func TestNoTargetWithZeroTarget(t *testing.T) {
	t.Parallel()

	clk := newFakeClock()
	s := NewRun("s1", clk.now(), 0, 0)
	s.now = clk.now

	s.OnTargetReached = func() { t.Error("OnTargetReached fired with zero target") }
	clk.advance(time.Hour)
	s.Tick()
}

func TestAdoptReconstructsElapsed(t *testing.T) {
	t.Parallel()

	clk := newFakeClock()
	start := clk.now().Add(-10 * time.Second)

	s := Adopt("s1", start, 500, 25, 600, false)
	s.now = clk.now

	// prior 500 + run 25 + 10s since the persisted start.
	if got := s.Elapsed(); got != 535 {
		t.Errorf("Elapsed() = %v, want 535", got)
	}
	if got := s.RunElapsed(); got != 35 {
		t.Errorf("RunElapsed() = %v, want 35", got)
	}
}

func TestAdoptPaused(t *testing.T) {
	t.Parallel()

	clk := newFakeClock()
	s := Adopt("s1", clk.now(), 100, 40, 600, true)
	s.now = clk.now

	clk.advance(time.Hour)
	if got := s.Elapsed(); got != 140 {
		t.Errorf("Elapsed() for adopted paused run = %v, want 140", got)
	}
}

func TestUITimerStartStop(t *testing.T) {
	t.Parallel()

	clk := newFakeClock()
	s := NewRun("s1", clk.now(), 0, 0)
	s.now = clk.now

	ticked := make(chan struct{}, 16)
	s.StartUITimer(10*time.Millisecond, func() {
		s.Tick()
		select {
		case ticked <- struct{}{}:
		default:
		}
	})
	select {
	case <-ticked:
	case <-time.After(2 * time.Second):
		t.Fatal("UI timer never ticked")
	}
	s.StopUITimer()
	s.StopUITimer() // double stop is safe
}
