package session

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestStopTimerFiresAfterLimit(t *testing.T) {
	timer := NewStopTimer(30 * time.Millisecond)

	done := make(chan struct{}, 1)
	timer.OnExpire(func() {
		done <- struct{}{}
	})

	timer.Arm()

	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("expected expiry callback to fire")
	}
}

func TestStopTimerDisarm(t *testing.T) {
	timer := NewStopTimer(40 * time.Millisecond)

	var fired atomic.Int32
	timer.OnExpire(func() {
		fired.Add(1)
	})

	timer.Arm()
	time.Sleep(10 * time.Millisecond)
	timer.Disarm()

	time.Sleep(80 * time.Millisecond)
	if fired.Load() != 0 {
		t.Fatalf("expected 0 callbacks after disarm, got %d", fired.Load())
	}
}

func TestStopTimerZeroLimitNeverFires(t *testing.T) {
	timer := NewStopTimer(0)

	var fired atomic.Int32
	timer.OnExpire(func() { fired.Add(1) })
	timer.Arm()

	time.Sleep(20 * time.Millisecond)
	if fired.Load() != 0 {
		t.Fatalf("expected no callback for unlimited recordings, got %d", fired.Load())
	}
}

func TestStopTimerRearmRestartsCountdown(t *testing.T) {
	timer := NewStopTimer(60 * time.Millisecond)

	var fired atomic.Int32
	timer.OnExpire(func() { fired.Add(1) })

	timer.Arm()
	time.Sleep(40 * time.Millisecond)
	timer.Arm()
	time.Sleep(40 * time.Millisecond)
	if fired.Load() != 0 {
		t.Fatalf("expected rearm to restart countdown, got %d callbacks", fired.Load())
	}

	time.Sleep(100 * time.Millisecond)
	if fired.Load() != 1 {
		t.Fatalf("expected exactly one callback, got %d", fired.Load())
	}
}
