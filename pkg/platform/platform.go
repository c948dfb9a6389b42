package platform

import (
	"context"
	"errors"
	"image"
	"time"
)

// Sentinel errors shared by all backends. Callers match them with errors.Is.
var (
	// ErrCaptureUnavailable reports a recoverable screenshot failure for a
	// window that cannot currently be imaged (unmapped, zero-sized, gone).
	ErrCaptureUnavailable = errors.New("screenshot capture unavailable")

	// ErrInputSource reports that a raw input source died and cannot be
	// restarted within the running process.
	ErrInputSource = errors.New("input source failure")
)

// Window is an immutable snapshot of a focused window. ID is the opaque
// platform identity (an X11 window id, a compositor node id, "pid:N" for
// the process fallback). Windows are compared by ID, never by Title.
type Window struct {
	ID    string
	App   string
	Title string
	PID   int
}

// Same reports whether two focus snapshots refer to the same window.
// A nil snapshot means no window (or none the caller may see).
func Same(a, b *Window) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.ID == b.ID
}

// EventKind classifies a raw input event.
type EventKind string

const (
	KeyDown    EventKind = "key-down"
	KeyUp      EventKind = "key-up"
	ButtonDown EventKind = "button-down"
	ButtonUp   EventKind = "button-up"
	Scroll     EventKind = "scroll"
)

// InputEvent is one raw input sample as delivered by an InputSource.
// Code carries the keyboard keycode for key events, Button the mouse
// button number for button events. Delta is the scroll step for Scroll
// events, one wheel notch being ±1.0. X and Y hold the pointer position
// when the backend knows it, zero otherwise.
type InputEvent struct {
	Time   time.Time
	Kind   EventKind
	Code   uint16
	Button uint16
	X      int
	Y      int
	Delta  float64
}

// WindowProvider reports the currently focused window.
type WindowProvider interface {
	// ActiveWindow returns the focused window, or nil when no window is
	// focused or the focused window is withheld by a privacy wrapper.
	ActiveWindow() (*Window, error)

	// IsAvailable checks if this provider can run on the current system.
	IsAvailable() bool

	// DisplayServer returns the display server type ("x11", "wayland" or
	// "none" for degraded providers).
	DisplayServer() string

	// Close cleans up any resources used by the provider.
	Close() error
}

// ScreenshotProvider captures images of a set of windows.
type ScreenshotProvider interface {
	// Capture images the given windows and returns frames keyed by
	// Window.ID. A window that cannot be imaged is omitted from the map;
	// when no window could be imaged the returned error wraps
	// ErrCaptureUnavailable.
	Capture(windows []Window) (map[string]image.Image, error)

	// IsAvailable checks if this provider can run on the current system.
	IsAvailable() bool

	// Close cleans up any resources used by the provider.
	Close() error
}

// InputSource streams raw input events. Stream blocks delivering events
// through emit until ctx is cancelled, returning nil, or the backend dies,
// returning an error wrapping ErrInputSource. A non-nil error from emit
// stops the stream and is returned as is.
type InputSource interface {
	Stream(ctx context.Context, emit func(InputEvent) error) error
}

// Capabilities bundles the three capabilities selected for this process.
// Selection happens once at startup; nothing downstream inspects backend
// types at runtime.
type Capabilities struct {
	Windows       WindowProvider
	Screens       ScreenshotProvider
	Input         InputSource
	DisplayServer string
}

// Close releases every capability that holds resources.
func (c *Capabilities) Close() error {
	var first error
	if c.Windows != nil {
		if err := c.Windows.Close(); err != nil && first == nil {
			first = err
		}
	}
	if c.Screens != nil {
		if err := c.Screens.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
