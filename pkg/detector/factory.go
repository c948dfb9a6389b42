// Package detector selects the platform backends once at startup and
// assembles them into the capability bundle the recorder runs on.
package detector

import (
	"fmt"
	"image"
	"log"
	"os"

	"deskrec/internal/config"
	"deskrec/pkg/integrations/evdev"
	"deskrec/pkg/integrations/hybrid"
	"deskrec/pkg/integrations/process"
	"deskrec/pkg/integrations/wayland"
	"deskrec/pkg/integrations/x11"
	"deskrec/pkg/platform"
)

// DetectDisplayServer reports the session's display server from the
// environment: "x11", "wayland" or "unknown".
func DetectDisplayServer() string {
	sessionType := os.Getenv("XDG_SESSION_TYPE")
	waylandDisplay := os.Getenv("WAYLAND_DISPLAY")
	x11Display := os.Getenv("DISPLAY")

	if sessionType == "wayland" || waylandDisplay != "" {
		return "wayland"
	}

	if sessionType == "x11" || x11Display != "" {
		return "x11"
	}

	return "unknown"
}

// New assembles the capabilities for the detected display server. The
// window provider is chained with the process fallback and wrapped by
// the allow filter before anything downstream sees it; the screenshot
// provider is wrapped the same way so no backend can image an
// unselected window.
func New(cfg *config.Config, allow func(platform.Window) bool) (platform.Capabilities, error) {
	ds := DetectDisplayServer()

	var (
		windows platform.WindowProvider
		screens platform.ScreenshotProvider
	)

	switch ds {
	case "x11":
		w, err := x11.NewWindows()
		if err != nil {
			log.Printf("X11 window backend unavailable: %v", err)
		} else {
			windows = w
		}

		s, err := x11.NewScreens()
		if err != nil {
			log.Printf("X11 screenshot backend unavailable: %v", err)
		} else {
			screens = s
		}

	case "wayland":
		if w := wayland.NewWindows(); w.IsAvailable() {
			windows = w
		} else {
			log.Printf("No focus detection for this wayland compositor")
		}

		s, err := wayland.NewScreens()
		if err != nil {
			log.Printf("Wayland screenshot backend unavailable: %v", err)
		} else {
			screens = s
		}
	}

	if screens == nil {
		screens = unavailableScreens{}
	}

	chain := hybrid.NewWindows(windows, process.NewWindows())
	if !chain.IsAvailable() {
		return platform.Capabilities{}, fmt.Errorf("no window detection available on this system")
	}

	return platform.Capabilities{
		Windows:       platform.Restrict(chain, allow),
		Screens:       platform.RestrictScreens(screens, allow),
		Input:         selectInput(cfg.Capture.InputBackend, ds),
		DisplayServer: ds,
	}, nil
}

// selectInput picks the raw input source. X11 sessions default to the
// RECORD event tap; everything else reads evdev.
func selectInput(backend, displayServer string) platform.InputSource {
	switch backend {
	case "x11":
		return x11.NewInput()
	case "evdev":
		return evdev.NewSource()
	default:
		if displayServer == "x11" {
			return x11.NewInput()
		}
		return evdev.NewSource()
	}
}

// unavailableScreens keeps the capture loop running, skipping every
// frame, when no screenshot backend exists.
type unavailableScreens struct{}

func (unavailableScreens) Capture(windows []platform.Window) (map[string]image.Image, error) {
	return nil, platform.ErrCaptureUnavailable
}

func (unavailableScreens) IsAvailable() bool { return false }
func (unavailableScreens) Close() error      { return nil }
