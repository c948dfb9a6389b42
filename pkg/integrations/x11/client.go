// Package x11 provides the X11 window, screenshot and raw input
// backends over one shared X connection.
package x11

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jezek/xgb"
	"github.com/jezek/xgb/xproto"
)

// ErrNoActiveWindow means the server reported no usable focused window
// after retries.
var ErrNoActiveWindow = errors.New("no active window found")

// Client wraps an X connection with the interned atoms the backends
// need. One client is shared by the window and screenshot providers;
// the input source opens its own connection because WaitForEvent
// occupies it.
type Client struct {
	conn  *xgb.Conn
	root  xproto.Window
	atoms map[string]xproto.Atom
}

var atomNames = []string{
	"_NET_ACTIVE_WINDOW",
	"_NET_WM_NAME",
	"_NET_WM_PID",
	"WM_NAME",
	"WM_CLASS",
	"UTF8_STRING",
}

// NewClient connects to the X server and interns the atoms used by the
// providers.
func NewClient() (*Client, error) {
	conn, err := xgb.NewConn()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to X server: %w", err)
	}

	setup := xproto.Setup(conn)
	root := setup.DefaultScreen(conn).Root

	c := &Client{
		conn:  conn,
		root:  root,
		atoms: make(map[string]xproto.Atom, len(atomNames)),
	}

	for _, name := range atomNames {
		reply, err := xproto.InternAtom(conn, false, uint16(len(name)), name).Reply()
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to intern atom %s: %w", name, err)
		}
		c.atoms[name] = reply.Atom
	}

	return c, nil
}

func (c *Client) Close() {
	c.conn.Close()
}

func (c *Client) getProperty(window xproto.Window, atom, atomType xproto.Atom, length uint32) ([]byte, error) {
	reply, err := xproto.GetProperty(c.conn, false, window, atom, atomType, 0, length).Reply()
	if err != nil {
		return nil, err
	}
	return reply.Value, nil
}

func (c *Client) activeWindowFromProperty() xproto.Window {
	data, err := c.getProperty(c.root, c.atoms["_NET_ACTIVE_WINDOW"], xproto.AtomWindow, 1)
	if err != nil || len(data) < 4 {
		return 0
	}
	return xproto.Window(binary.LittleEndian.Uint32(data))
}

func (c *Client) activeWindowFromInputFocus() xproto.Window {
	reply, err := xproto.GetInputFocus(c.conn).Reply()
	if err != nil {
		return 0
	}
	return reply.Focus
}

func (c *Client) topLevelParent(window xproto.Window) xproto.Window {
	for {
		reply, err := xproto.QueryTree(c.conn, window).Reply()
		if err != nil || reply.Parent == c.root || reply.Parent == 0 {
			return window
		}
		window = reply.Parent
	}
}

func (c *Client) hasValidName(window xproto.Window) bool {
	data, _ := c.getProperty(window, c.atoms["_NET_WM_NAME"], c.atoms["UTF8_STRING"], 1)
	if len(data) > 0 {
		return true
	}
	data, _ = c.getProperty(window, c.atoms["WM_NAME"], xproto.AtomString, 1)
	return len(data) > 0
}

// ActiveWindowID resolves the focused top-level window. The EWMH
// property can lag a focus change, so it retries a few times before
// falling back to the input focus and walking up to a named top-level.
func (c *Client) ActiveWindowID() (xproto.Window, error) {
	for i := 0; i < 5; i++ {
		windowID := c.activeWindowFromProperty()
		if windowID != 0 && c.hasValidName(windowID) {
			return windowID, nil
		}

		windowID = c.activeWindowFromInputFocus()
		if windowID != 0 && windowID != c.root {
			topLevel := c.topLevelParent(windowID)
			if topLevel != 0 && c.hasValidName(topLevel) {
				return topLevel, nil
			}
		}

		time.Sleep(20 * time.Millisecond)
	}

	return 0, ErrNoActiveWindow
}

// WindowName returns the window title, trying _NET_WM_NAME before the
// legacy WM_NAME.
func (c *Client) WindowName(window xproto.Window) string {
	data, err := c.getProperty(window, c.atoms["_NET_WM_NAME"], c.atoms["UTF8_STRING"], 256)
	if err == nil && len(data) > 0 {
		return strings.TrimRight(string(data), "\x00")
	}

	data, err = c.getProperty(window, c.atoms["WM_NAME"], xproto.AtomString, 256)
	if err == nil && len(data) > 0 {
		return strings.TrimRight(string(data), "\x00")
	}

	return ""
}

// WindowClass returns the WM_CLASS instance and class strings.
func (c *Client) WindowClass(window xproto.Window) (instance, class string) {
	data, err := c.getProperty(window, c.atoms["WM_CLASS"], xproto.AtomString, 256)
	if err != nil || len(data) == 0 {
		return "", ""
	}
	return splitWMClass(string(data))
}

// splitWMClass splits the NUL-separated WM_CLASS property value
func splitWMClass(raw string) (instance, class string) {
	parts := strings.Split(strings.TrimRight(raw, "\x00"), "\x00")
	if len(parts) >= 1 {
		instance = parts[0]
	}
	if len(parts) >= 2 {
		class = parts[1]
	}
	return instance, class
}

// WindowPID returns _NET_WM_PID, zero if unset.
func (c *Client) WindowPID(window xproto.Window) uint32 {
	data, err := c.getProperty(window, c.atoms["_NET_WM_PID"], xproto.AtomCardinal, 1)
	if err != nil || len(data) < 4 {
		return 0
	}
	return binary.LittleEndian.Uint32(data)
}
