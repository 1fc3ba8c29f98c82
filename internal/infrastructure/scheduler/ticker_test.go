package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestTickerSchedulerRunsImmediatelyAndStops(t *testing.T) {
	t.Parallel()

	s := NewTickerScheduler(10 * time.Millisecond)
	var ticks atomic.Int64

	done := make(chan struct{})
	err := s.Start(context.Background(), func(time.Time) {
		if ticks.Add(1) == 1 {
			close(done)
		}
	})
	if err != nil {
		t.Fatalf("Start error: %v", err)
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("job never ran")
	}

	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("Stop error: %v", err)
	}

	stopped := ticks.Load()
	time.Sleep(50 * time.Millisecond)
	if after := ticks.Load(); after > stopped+1 {
		t.Fatalf("scheduler kept ticking after Stop: %d -> %d", stopped, after)
	}
}

func TestTickerSchedulerNilJob(t *testing.T) {
	t.Parallel()

	s := NewTickerScheduler(time.Millisecond)
	if err := s.Start(context.Background(), nil); err != nil {
		t.Fatalf("nil job must be a no-op, got %v", err)
	}
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("Stop error: %v", err)
	}
}

func TestTickerSchedulerContextCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	s := NewTickerScheduler(5 * time.Millisecond)

	var ticks atomic.Int64
	if err := s.Start(ctx, func(time.Time) { ticks.Add(1) }); err != nil {
		t.Fatalf("Start error: %v", err)
	}

	cancel()
	time.Sleep(20 * time.Millisecond)
	stopped := ticks.Load()
	time.Sleep(50 * time.Millisecond)
	if after := ticks.Load(); after > stopped {
		t.Fatalf("scheduler kept ticking after cancel: %d -> %d", stopped, after)
	}
}
