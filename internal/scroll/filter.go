package scroll

import (
	"fmt"
	"math"
	"sort"
	"time"

	"deskrec/pkg/platform"
)

// Session is one coalesced burst of scrolling on a single window. End is
// the time of the last accepted sample, so the span covers accepted
// activity only. TotalDelta sums every raw sample observed while the
// session was open, including samples the filter dropped.
type Session struct {
	Window     platform.Window
	Start      time.Time
	End        time.Time
	TotalDelta float64
	EventCount int
}

// Options tune the filter. The zero value is invalid; start from
// DefaultOptions.
type Options struct {
	Debounce       time.Duration // minimum gap between accepted samples
	MinDistance    float64       // minimum |delta| accumulated since the last accept
	MaxFrequency   int           // maximum accepted samples per trailing second
	SessionTimeout time.Duration // quiet period after which a session closes
}

// DefaultOptions returns the standard thresholds.
func DefaultOptions() Options {
	return Options{
		Debounce:       500 * time.Millisecond,
		MinDistance:    5.0,
		MaxFrequency:   10,
		SessionTimeout: 2 * time.Second,
	}
}

func (o Options) validate() error {
	if o.Debounce < 0 {
		return fmt.Errorf("scroll debounce cannot be negative, got %v", o.Debounce)
	}
	if o.MinDistance < 0 {
		return fmt.Errorf("scroll min distance cannot be negative, got %v", o.MinDistance)
	}
	if o.MaxFrequency < 1 {
		return fmt.Errorf("scroll max frequency must be at least 1, got %d", o.MaxFrequency)
	}
	if o.SessionTimeout <= 0 {
		return fmt.Errorf("scroll session timeout must be positive, got %v", o.SessionTimeout)
	}
	return nil
}

// state tracks one window's open session.
type state struct {
	window     platform.Window
	start      time.Time
	lastAccept time.Time
	total      float64 // every observed delta
	pending    float64 // observed since the last accept
	count      int
	accepted   []time.Time // accept times within the trailing second
}

func (s *state) session() Session {
	return Session{
		Window:     s.window,
		Start:      s.start,
		End:        s.lastAccept,
		TotalDelta: s.total,
		EventCount: s.count,
	}
}

// pruneAccepted drops accept times that fell out of the trailing second.
func (s *state) pruneAccepted(now time.Time) {
	cutoff := now.Add(-time.Second)
	i := 0
	for i < len(s.accepted) && !s.accepted[i].After(cutoff) {
		i++
	}
	if i > 0 {
		s.accepted = append(s.accepted[:0], s.accepted[i:]...)
	}
}

// Filter coalesces raw wheel samples into scroll sessions. It holds one
// open session per window and emits only on Sweep, CloseWindow and
// CloseAll. Not safe for concurrent use; the capture loop consumer is
// its single owner.
type Filter struct {
	opts   Options
	states map[string]*state
}

// New validates the options and returns a filter.
func New(opts Options) (*Filter, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	return &Filter{
		opts:   opts,
		states: make(map[string]*state),
	}, nil
}

// Observe feeds one raw scroll sample for a window. Samples that fail
// the debounce, frequency or distance gates are not counted as events,
// but their delta still folds into the session totals.
func (f *Filter) Observe(w platform.Window, t time.Time, delta float64) {
	st, ok := f.states[w.ID]
	if !ok {
		// The first sample opens the session and counts as accepted.
		f.states[w.ID] = &state{
			window:     w,
			start:      t,
			lastAccept: t,
			total:      delta,
			count:      1,
			accepted:   []time.Time{t},
		}
		return
	}

	st.total += delta
	st.pending += delta

	if t.Sub(st.lastAccept) < f.opts.Debounce {
		return
	}
	st.pruneAccepted(t)
	if len(st.accepted) >= f.opts.MaxFrequency {
		return
	}
	if math.Abs(st.pending) < f.opts.MinDistance {
		return
	}

	st.count++
	st.lastAccept = t
	st.pending = 0
	st.accepted = append(st.accepted, t)
}

// Sweep closes every session that has been quiet for at least the
// session timeout and returns the emitted sessions ordered by start
// time. Each session is emitted exactly once.
func (f *Filter) Sweep(now time.Time) []Session {
	var out []Session
	for id, st := range f.states {
		if now.Sub(st.lastAccept) >= f.opts.SessionTimeout {
			out = append(out, st.session())
			delete(f.states, id)
		}
	}
	sortSessions(out)
	return out
}

// CloseWindow force-closes the open session for a window, typically
// because it lost focus. Returns nil when the window has none.
func (f *Filter) CloseWindow(id string) *Session {
	st, ok := f.states[id]
	if !ok {
		return nil
	}
	delete(f.states, id)
	s := st.session()
	return &s
}

// CloseAll force-closes every open session, ordered by start time.
// Called when recording stops so no scroll activity is lost.
func (f *Filter) CloseAll() []Session {
	var out []Session
	for id, st := range f.states {
		out = append(out, st.session())
		delete(f.states, id)
	}
	sortSessions(out)
	return out
}

// Open returns the number of windows with an open session.
func (f *Filter) Open() int {
	return len(f.states)
}

func sortSessions(s []Session) {
	sort.Slice(s, func(i, j int) bool {
		if s[i].Start.Equal(s[j].Start) {
			return s[i].Window.ID < s[j].Window.ID
		}
		return s[i].Start.Before(s[j].Start)
	})
}
