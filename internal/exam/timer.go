package exam

import (
	"fmt"
	"sync"
	"time"
)

// Scheduler runs fn every interval until the returned stop function is called.
// Stop must be idempotent and must not wait for an in-flight fn.
type Scheduler interface {
	Every(interval time.Duration, fn func()) (stop func())
}

// TickerScheduler schedules callbacks on a time.Ticker.
type TickerScheduler struct{}

// Every implements Scheduler.
func (TickerScheduler) Every(interval time.Duration, fn func()) func() {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-ticker.C:
				fn()
			case <-done:
				return
			}
		}
	}()
	var once sync.Once
	return func() {
		once.Do(func() {
			ticker.Stop()
			close(done)
		})
	}
}

// Timer counts down whole seconds. Each tick comes from a Scheduler; when the
// count reaches zero the expiry callback runs once and ticking stops.
//
// Timer does no locking of its own. A Session routes scheduled ticks through
// its mutex via guard, so all fields are only touched under that lock.
type Timer struct {
	sched    Scheduler
	guard    func(func())
	onExpire func()

	remaining int
	running   bool
	fired     bool
	gen       uint64
	stop      func()
}

// NewTimer creates a stopped timer.
func NewTimer(sched Scheduler, onExpire func()) *Timer {
	if sched == nil {
		sched = TickerScheduler{}
	}
	return &Timer{sched: sched, onExpire: onExpire}
}

// Start cancels any running countdown and starts a new one.
func (t *Timer) Start(seconds int) {
	t.Cancel()
	t.gen++
	gen := t.gen
	t.remaining = max(seconds, 0)
	t.running = true
	t.fired = false
	if t.remaining == 0 {
		t.expire()
		return
	}
	t.stop = t.sched.Every(time.Second, func() {
		t.run(func() {
			// Ticks of a cancelled schedule may still be queued behind the lock.
			if t.gen == gen {
				t.Tick()
			}
		})
	})
}

func (t *Timer) run(fn func()) {
	if t.guard != nil {
		t.guard(fn)
		return
	}
	fn()
}

// Tick advances the countdown by one second and returns the remaining time.
// Ticks after expiry or cancellation are no-ops.
func (t *Timer) Tick() int {
	if !t.running {
		return t.remaining
	}
	t.remaining--
	if t.remaining <= 0 {
		t.remaining = 0
		t.expire()
	}
	return t.remaining
}

func (t *Timer) expire() {
	t.Cancel()
	if t.fired {
		return
	}
	t.fired = true
	if t.onExpire != nil {
		t.onExpire()
	}
}

// Remaining returns the seconds left.
func (t *Timer) Remaining() int {
	return t.remaining
}

// Active reports whether the countdown is still ticking.
func (t *Timer) Active() bool {
	return t.running
}

// Expired reports whether the expiry callback has fired for the current countdown.
func (t *Timer) Expired() bool {
	return t.fired
}

// Cancel stops ticking. It is safe to call repeatedly.
func (t *Timer) Cancel() {
	if t.stop != nil {
		t.stop()
		t.stop = nil
	}
	t.running = false
}

// FormatRemaining renders seconds as hh:mm:ss.
func FormatRemaining(seconds int) string {
	seconds = max(seconds, 0)
	return fmt.Sprintf("%02d:%02d:%02d", seconds/3600, (seconds%3600)/60, seconds%60)
}
