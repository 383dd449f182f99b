package hostsync

import (
	"sync"
	"time"
)

// debouncer coalesces a burst of trigger() calls into one action, firing
// after a quiet window of no new triggers, or unconditionally once maxWindow
// has elapsed since the first trigger of the burst — the same two-speed
// protection as the original updater's per-event timer plus max-debounce
// guard, reimplemented with time.Timer instead of threading.Timer.
type debouncer struct {
	window    time.Duration
	maxWindow time.Duration

	mu        sync.Mutex
	timer     *time.Timer
	firstSeen time.Time
	stopped   bool
}

func newDebouncer(window, maxWindow time.Duration) *debouncer {
	return &debouncer{window: window, maxWindow: maxWindow}
}

// trigger schedules action to run after the quiet window, resetting the
// window on every call, unless the burst has already run past maxWindow
// since its first trigger, in which case action runs immediately.
func (d *debouncer) trigger(action func()) {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}

	now := time.Now()
	if d.firstSeen.IsZero() {
		d.firstSeen = now
	}

	if now.Sub(d.firstSeen) >= d.maxWindow {
		if d.timer != nil {
			d.timer.Stop()
			d.timer = nil
		}
		d.firstSeen = time.Time{}
		d.mu.Unlock()
		action()
		return
	}

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, func() {
		d.mu.Lock()
		d.firstSeen = time.Time{}
		d.timer = nil
		d.mu.Unlock()
		action()
	})
	d.mu.Unlock()
}

// stop cancels any pending timer and prevents future triggers from
// scheduling new ones.
func (d *debouncer) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
