package watchdog

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// State describes the activity level the watchdog has observed.
type State string

const (
	Active     State = "active"
	Idle       State = "idle"
	Terminated State = "terminated"
)

// Options configure the watchdog. Clock and CheckInterval have working
// defaults; the two thresholds must be positive.
type Options struct {
	IdleAfter         time.Duration // quiet period before reporting Idle
	InactivityTimeout time.Duration // quiet period before Terminated
	CheckInterval     time.Duration // how often the timeout is evaluated
	Clock             func() time.Time
}

// DefaultOptions returns the standard thresholds: idle after 5 minutes,
// terminated after 45 minutes, checked once a second.
func DefaultOptions() Options {
	return Options{
		IdleAfter:         5 * time.Minute,
		InactivityTimeout: 2700 * time.Second,
		CheckInterval:     time.Second,
	}
}

// Watchdog tracks the time of the last user activity and terminates the
// recording after prolonged silence. The timestamp is a single atomic
// word so Touch can be called from any goroutine on every event without
// contention. Idle is derived from the timestamp and is informational;
// Terminated is absorbing and announced by closing Expired exactly once.
type Watchdog struct {
	opts Options

	last    atomic.Int64 // unix nanoseconds of the last activity
	expired chan struct{}
	once    sync.Once

	started  atomic.Bool
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// New validates the options and returns a watchdog with the last
// activity seeded to the current time. Start launches the checker.
func New(opts Options) (*Watchdog, error) {
	if opts.IdleAfter <= 0 {
		return nil, fmt.Errorf("idle threshold must be positive, got %v", opts.IdleAfter)
	}
	if opts.InactivityTimeout <= 0 {
		return nil, fmt.Errorf("inactivity timeout must be positive, got %v", opts.InactivityTimeout)
	}
	if opts.CheckInterval <= 0 {
		opts.CheckInterval = time.Second
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	w := &Watchdog{
		opts:    opts,
		expired: make(chan struct{}),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	w.last.Store(opts.Clock().UnixNano())
	return w, nil
}

// Touch records user activity now. Safe from any goroutine.
func (w *Watchdog) Touch() {
	w.last.Store(w.opts.Clock().UnixNano())
}

// LastActivity returns the time of the most recent Touch.
func (w *Watchdog) LastActivity() time.Time {
	return time.Unix(0, w.last.Load())
}

// State derives the current state. Once Expired has fired the state
// stays Terminated regardless of later touches.
func (w *Watchdog) State() State {
	select {
	case <-w.expired:
		return Terminated
	default:
	}
	if w.opts.Clock().Sub(w.LastActivity()) >= w.opts.IdleAfter {
		return Idle
	}
	return Active
}

// Expired is closed when the inactivity timeout elapses.
func (w *Watchdog) Expired() <-chan struct{} {
	return w.expired
}

// Start launches the periodic check. The last activity is re-seeded so
// a watchdog constructed early does not start with stale silence.
func (w *Watchdog) Start() {
	if !w.started.CompareAndSwap(false, true) {
		return
	}
	w.Touch()
	go w.run()
}

// Stop halts the checker without expiring. Safe to call more than once.
func (w *Watchdog) Stop() {
	w.stopOnce.Do(func() { close(w.stop) })
	if w.started.Load() {
		<-w.done
	}
}

func (w *Watchdog) run() {
	defer close(w.done)
	ticker := time.NewTicker(w.opts.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stop:
			return
		case <-ticker.C:
			if w.check(w.opts.Clock()) {
				return
			}
		}
	}
}

// check evaluates the timeout at the given instant and closes Expired
// when it has elapsed. Returns true once terminated.
func (w *Watchdog) check(now time.Time) bool {
	if now.Sub(w.LastActivity()) < w.opts.InactivityTimeout {
		return false
	}
	w.once.Do(func() { close(w.expired) })
	return true
}
