package x11

import (
	"errors"
	"fmt"
	"os"

	"github.com/jezek/xgb/xproto"

	"deskrec/pkg/platform"
)

// Windows reports the focused window straight from the X server.
type Windows struct {
	client *Client
}

// NewWindows connects a window provider. Fails when no X server is
// reachable.
func NewWindows() (*Windows, error) {
	client, err := NewClient()
	if err != nil {
		return nil, err
	}
	return &Windows{client: client}, nil
}

// ActiveWindow resolves the focused window. No focused window (desktop,
// empty workspace) is reported as nil, not as an error.
func (w *Windows) ActiveWindow() (*platform.Window, error) {
	id, err := w.client.ActiveWindowID()
	if err != nil {
		if errors.Is(err, ErrNoActiveWindow) {
			return nil, nil
		}
		return nil, err
	}

	instance, class := w.client.WindowClass(id)
	app := instance
	if app == "" {
		app = class
	}

	return &platform.Window{
		ID:    fmt.Sprintf("0x%x", uint32(id)),
		App:   app,
		Title: w.client.WindowName(id),
		PID:   int(w.client.WindowPID(id)),
	}, nil
}

// IsAvailable checks that an X display is configured.
func (w *Windows) IsAvailable() bool {
	return os.Getenv("DISPLAY") != ""
}

// DisplayServer returns "x11"
func (w *Windows) DisplayServer() string {
	return "x11"
}

// Close disconnects from the X server.
func (w *Windows) Close() error {
	w.client.Close()
	return nil
}

// parseWindowID turns the provider's "0x..." identity back into an X
// window id for the screenshot path.
func parseWindowID(id string) (xproto.Window, error) {
	var v uint32
	if _, err := fmt.Sscanf(id, "0x%x", &v); err != nil {
		return 0, fmt.Errorf("not an X11 window id: %s", id)
	}
	return xproto.Window(v), nil
}
