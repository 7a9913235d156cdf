package match_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/cory-johannsen/pong/internal/game/match"
)

func TestTimer_Fires(t *testing.T) {
	var called atomic.Int32
	tm := match.NewTimer(20*time.Millisecond, func() {
		called.Add(1)
	})
	_ = tm
	time.Sleep(50 * time.Millisecond)
	if called.Load() != 1 {
		t.Fatalf("expected callback called once, got %d", called.Load())
	}
}

func TestTimer_Stop_PreventsCallback(t *testing.T) {
	var called atomic.Int32
	tm := match.NewTimer(50*time.Millisecond, func() {
		called.Add(1)
	})
	tm.Stop()
	time.Sleep(80 * time.Millisecond)
	if called.Load() != 0 {
		t.Fatalf("expected callback not called, got %d", called.Load())
	}
}

func TestTimer_StopIdempotent(t *testing.T) {
	tm := match.NewTimer(50*time.Millisecond, func() {})
	// Multiple Stop() calls must not panic
	tm.Stop()
	tm.Stop()
	tm.Stop()
}
