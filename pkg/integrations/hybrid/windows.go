// Package hybrid chains two window providers: a display-server primary
// and a degraded fallback. After repeated primary failures it switches
// to the fallback and keeps probing the primary so a recovered display
// connection wins back.
package hybrid

import (
	"errors"
	"log"

	"deskrec/pkg/platform"
)

// failureThreshold is how many consecutive primary failures switch the
// chain over to the fallback.
const failureThreshold = 3

var errNoProvider = errors.New("no window provider available")

// Windows is the chaining window provider.
type Windows struct {
	primary  platform.WindowProvider
	fallback platform.WindowProvider

	failures  int
	usingFall bool
}

// NewWindows chains primary and fallback. Either may be nil; at least
// one must be usable.
func NewWindows(primary, fallback platform.WindowProvider) *Windows {
	return &Windows{primary: primary, fallback: fallback}
}

// ActiveWindow consults the current side of the chain. Primary errors
// count toward the switch-over; any primary success resets the count
// and switches back.
func (w *Windows) ActiveWindow() (*platform.Window, error) {
	if w.primary == nil {
		return w.fromFallback()
	}

	if !w.usingFall {
		win, err := w.primary.ActiveWindow()
		if err == nil {
			w.failures = 0
			return win, nil
		}

		w.failures++
		if w.failures < failureThreshold || w.fallback == nil {
			return nil, err
		}
		log.Printf("Window provider failed %d times (%v), falling back to %s detection",
			w.failures, err, w.fallback.DisplayServer())
		w.usingFall = true
		return w.fromFallback()
	}

	// probe the primary for recovery before consulting the fallback
	if win, err := w.primary.ActiveWindow(); err == nil {
		log.Printf("Primary window provider recovered")
		w.usingFall = false
		w.failures = 0
		return win, nil
	}
	return w.fromFallback()
}

func (w *Windows) fromFallback() (*platform.Window, error) {
	if w.fallback == nil {
		return nil, errNoProvider
	}
	return w.fallback.ActiveWindow()
}

// IsAvailable reports whether either side of the chain can run.
func (w *Windows) IsAvailable() bool {
	if w.primary != nil && w.primary.IsAvailable() {
		return true
	}
	return w.fallback != nil && w.fallback.IsAvailable()
}

// DisplayServer reports the primary's display server while it works.
func (w *Windows) DisplayServer() string {
	if w.primary != nil && !w.usingFall {
		return w.primary.DisplayServer()
	}
	if w.fallback != nil {
		return w.fallback.DisplayServer()
	}
	return "none"
}

// Close closes both sides of the chain.
func (w *Windows) Close() error {
	var first error
	if w.primary != nil {
		if err := w.primary.Close(); err != nil {
			first = err
		}
	}
	if w.fallback != nil {
		if err := w.fallback.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
