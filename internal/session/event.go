package session

import (
	"time"

	"deskrec/pkg/platform"
)

// Kind classifies a log record.
type Kind string

const (
	KindFocus      Kind = "focus"
	KindKey        Kind = "key"
	KindMouse      Kind = "mouse"
	KindScroll     Kind = "scroll"
	KindScreenshot Kind = "screenshot"
)

// Finalize reasons.
const (
	ReasonUserStopped       = "user-stopped"
	ReasonInactivityTimeout = "inactivity-timeout"
)

// Screenshot trigger reasons, part of the frame file names.
const (
	TriggerFocus    = "focus-change"
	TriggerPeriodic = "periodic"
)

// WindowRef is the window identity persisted with each record.
type WindowRef struct {
	ID    string `json:"id"`
	App   string `json:"app"`
	Title string `json:"title,omitempty"`
	PID   int    `json:"pid,omitempty"`
}

// Ref converts a focus snapshot for persistence. Nil in, nil out.
func Ref(w *platform.Window) *WindowRef {
	if w == nil {
		return nil
	}
	return &WindowRef{ID: w.ID, App: w.App, Title: w.Title, PID: w.PID}
}

// Event is one line of the session log. Every record carries TS, Kind
// and the owning window; the remaining fields depend on the kind and
// stay empty otherwise. Window is null on a focus record when focus
// moved to a window outside the recorded set.
type Event struct {
	TS     time.Time  `json:"ts"`
	Kind   Kind       `json:"kind"`
	Window *WindowRef `json:"window"`
	Prev   *WindowRef `json:"previous,omitempty"`

	// key and mouse button records
	Action string `json:"action,omitempty"` // "down" or "up"
	Code   uint16 `json:"code,omitempty"`
	Button uint16 `json:"button,omitempty"`
	X      int    `json:"x,omitempty"`
	Y      int    `json:"y,omitempty"`

	// scroll session records
	Start      *time.Time `json:"start,omitempty"`
	End        *time.Time `json:"end,omitempty"`
	TotalDelta float64    `json:"total_delta,omitempty"`
	EventCount int        `json:"event_count,omitempty"`

	// screenshot records
	File   string `json:"file,omitempty"`   // path relative to the session dir
	Reason string `json:"reason,omitempty"` // "focus-change" or "periodic"
}

// FocusEvent records focus moving to a window (nil when it left the
// recorded set) away from the previous one.
func FocusEvent(ts time.Time, to, from *platform.Window) Event {
	return Event{TS: ts, Kind: KindFocus, Window: Ref(to), Prev: Ref(from)}
}

// KeyEvent records one key press or release on a window.
func KeyEvent(ts time.Time, w platform.Window, action string, code uint16) Event {
	return Event{TS: ts, Kind: KindKey, Window: Ref(&w), Action: action, Code: code}
}

// MouseEvent records one button press or release on a window.
func MouseEvent(ts time.Time, w platform.Window, action string, button uint16, x, y int) Event {
	return Event{TS: ts, Kind: KindMouse, Window: Ref(&w), Action: action, Button: button, X: x, Y: y}
}

// ScrollEvent records one coalesced scroll session on a window.
func ScrollEvent(ts time.Time, w platform.Window, start, end time.Time, totalDelta float64, count int) Event {
	return Event{
		TS:         ts,
		Kind:       KindScroll,
		Window:     Ref(&w),
		Start:      &start,
		End:        &end,
		TotalDelta: totalDelta,
		EventCount: count,
	}
}

// ScreenshotEvent records a frame written for a window.
func ScreenshotEvent(ts time.Time, w platform.Window, file, reason string) Event {
	return Event{TS: ts, Kind: KindScreenshot, Window: Ref(&w), File: file, Reason: reason}
}
