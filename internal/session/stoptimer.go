package session

import (
	"sync"
	"time"
)

// StopTimer fires a callback once a recording has run for its limit. A zero
// limit never fires.
type StopTimer struct {
	limit    time.Duration
	mu       sync.Mutex
	timer    *time.Timer
	onExpire func()
}

func NewStopTimer(limit time.Duration) *StopTimer {
	if limit < 0 {
		limit = 0
	}
	return &StopTimer{limit: limit}
}

func (d *StopTimer) Limit() time.Duration { return d.limit }

func (d *StopTimer) OnExpire(callback func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onExpire = callback
}

// Arm (re)starts the countdown.
func (d *StopTimer) Arm() {
	if d.limit == 0 {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}

	d.timer = time.AfterFunc(d.limit, func() {
		d.mu.Lock()
		callback := d.onExpire
		d.timer = nil
		d.mu.Unlock()

		if callback != nil {
			callback()
		}
	})
}

func (d *StopTimer) Disarm() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
