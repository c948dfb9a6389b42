// Package wayland provides the Wayland window and screenshot backends.
// Compositors expose no common focus or capture protocol, so both work
// through per-compositor tools. Raw input on Wayland always comes from
// the evdev backend.
package wayland

import (
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"deskrec/pkg/integrations/common"
	"deskrec/pkg/platform"
)

// Windows reports the focused window via the running compositor.
type Windows struct {
	compositor string
	hasSwaymsg bool
	hasHyprctl bool
	hasGdbus   bool
	hasQdbus   bool
	hasXprop   bool
}

// NewWindows creates a Wayland window provider, probing the compositor
// and its tools once.
func NewWindows() *Windows {
	w := &Windows{
		hasSwaymsg: common.CommandExists("swaymsg"),
		hasHyprctl: common.CommandExists("hyprctl"),
		hasGdbus:   common.CommandExists("gdbus"),
		hasQdbus:   common.CommandExists("qdbus"),
		hasXprop:   common.CommandExists("xprop"),
	}
	w.detectCompositor()
	return w
}

// detectCompositor attempts to detect the Wayland compositor
func (w *Windows) detectCompositor() {
	compositors := map[string]string{
		"sway":         "sway",
		"Hyprland":     "hyprland",
		"wayfire":      "wayfire",
		"river":        "river",
		"gnome-shell":  "gnome",
		"kwin_wayland": "kde",
	}

	for process, name := range compositors {
		if common.ProcessRunning(process) {
			w.compositor = name
			return
		}
	}

	w.compositor = "unknown"
}

// IsAvailable checks if focus detection works for this compositor
func (w *Windows) IsAvailable() bool {
	switch w.compositor {
	case "sway":
		return w.hasSwaymsg
	case "hyprland":
		return w.hasHyprctl
	case "gnome":
		return w.hasGdbus || w.hasXprop
	case "kde":
		return w.hasQdbus
	default:
		return false
	}
}

// DisplayServer returns "wayland"
func (w *Windows) DisplayServer() string {
	return "wayland"
}

// Close cleans up resources
func (w *Windows) Close() error {
	return nil
}

// ActiveWindow returns the currently focused window
func (w *Windows) ActiveWindow() (*platform.Window, error) {
	switch w.compositor {
	case "sway":
		return w.activeSway()
	case "hyprland":
		return w.activeHyprland()
	case "gnome":
		return w.activeGnome()
	case "kde":
		return w.activeKDE()
	default:
		return nil, fmt.Errorf("unsupported wayland compositor: %s", w.compositor)
	}
}

// activeSway gets the focused window from Sway's tree
func (w *Windows) activeSway() (*platform.Window, error) {
	out, err := common.Output("swaymsg", "-t", "get_tree")
	if err != nil {
		return nil, fmt.Errorf("failed to execute swaymsg: %w", err)
	}
	return parseSwayTree(out), nil
}

// parseSwayTree scrapes the focused node out of sway tree JSON. Proper
// JSON parsing of the whole tree is overkill for three fields.
func parseSwayTree(jsonOutput string) *platform.Window {
	var app, title, pid string
	inFocusedNode := false

	for _, line := range strings.Split(jsonOutput, "\n") {
		line = strings.TrimSpace(line)

		if strings.Contains(line, `"focused": true`) {
			inFocusedNode = true
		}
		if !inFocusedNode {
			continue
		}

		if strings.HasPrefix(line, `"app_id":`) || strings.HasPrefix(line, `"class":`) {
			app = jsonLineValue(line)
		}
		if strings.HasPrefix(line, `"name":`) {
			title = jsonLineValue(line)
		}
		if strings.HasPrefix(line, `"pid":`) {
			pid = jsonLineValue(line)
		}

		if app != "" && title != "" && pid != "" {
			break
		}
	}

	if app == "" && title == "" {
		return nil
	}
	return makeWindow(app, title, pid)
}

// activeHyprland gets the focused window from Hyprland
func (w *Windows) activeHyprland() (*platform.Window, error) {
	out, err := common.Output("hyprctl", "activewindow", "-j")
	if err != nil {
		return nil, fmt.Errorf("failed to execute hyprctl: %w", err)
	}
	return parseHyprlandWindow(out), nil
}

// parseHyprlandWindow scrapes hyprctl activewindow JSON
func parseHyprlandWindow(jsonOutput string) *platform.Window {
	var app, title, pid string

	for _, line := range strings.Split(jsonOutput, "\n") {
		line = strings.TrimSpace(line)

		if strings.HasPrefix(line, `"class":`) {
			app = jsonLineValue(line)
		}
		if strings.HasPrefix(line, `"title":`) {
			title = jsonLineValue(line)
		}
		if strings.HasPrefix(line, `"pid":`) {
			pid = jsonLineValue(line)
		}
	}

	if app == "" && title == "" {
		return nil
	}
	return makeWindow(app, title, pid)
}

// jsonLineValue extracts the value part of a `"key": value,` line
func jsonLineValue(line string) string {
	parts := strings.SplitN(line, ":", 2)
	if len(parts) != 2 {
		return ""
	}
	return strings.Trim(strings.TrimRight(parts[1], ","), `" `)
}

// activeGnome gets the focused window from GNOME Shell via D-Bus,
// falling back to the XWayland bridge when Shell.Eval is blocked.
func (w *Windows) activeGnome() (*platform.Window, error) {
	script := `
	try {
		let win = global.get_window_actors().find(a => a.meta_window && a.meta_window.has_focus());
		if (win && win.meta_window) {
			let wm_class = win.meta_window.get_wm_class() || '';
			let title = win.meta_window.get_title() || '';
			let pid = win.meta_window.get_pid() || 0;
			wm_class + '|||' + title + '|||' + pid;
		} else {
			'';
		}
	} catch(e) {
		'';
	}
	`

	out, err := common.Output("gdbus", "call", "--session",
		"--dest", "org.gnome.Shell",
		"--object-path", "/org/gnome/Shell",
		"--method", "org.gnome.Shell.Eval",
		script)

	if err == nil {
		if win := parseGnomeEval(out); win != nil {
			return win, nil
		}
	}

	// Shell.Eval is blocked on recent GNOME unless unsafe mode is on
	if w.hasXprop {
		win, xErr := w.activeXWayland()
		if xErr == nil {
			return win, nil
		}
		return nil, fmt.Errorf("GNOME window detection failed: gdbus Shell.Eval blocked, xprop failed: %v", xErr)
	}

	return nil, fmt.Errorf("GNOME window detection failed: gdbus Shell.Eval blocked and xprop unavailable")
}

// parseGnomeEval parses the Shell.Eval reply: (true, '"app|||title|||pid"')
func parseGnomeEval(result string) *platform.Window {
	result = strings.TrimSpace(result)
	if !strings.HasPrefix(result, "(true,") {
		return nil
	}
	result = strings.TrimPrefix(result, "(true, '")
	result = strings.TrimSuffix(result, "')")
	result = strings.Trim(result, `'"`)

	parts := strings.Split(result, "|||")
	if len(parts) < 2 || parts[0] == "" {
		return nil
	}

	pid := ""
	if len(parts) >= 3 {
		pid = parts[2]
	}
	return makeWindow(parts[0], parts[1], pid)
}

// activeXWayland resolves focus through the XWayland bridge with xprop
func (w *Windows) activeXWayland() (*platform.Window, error) {
	if os.Getenv("DISPLAY") == "" {
		return nil, fmt.Errorf("DISPLAY not set (XWayland not available)")
	}

	rootOut, err := exec.Command("xprop", "-root", "_NET_ACTIVE_WINDOW").CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("failed to get active window from root: %w (output: %s)", err, string(rootOut))
	}

	// _NET_ACTIVE_WINDOW(WINDOW): window id # 0x80032b
	windowID := ""
	if strings.Contains(string(rootOut), "# 0x") {
		parts := strings.Split(string(rootOut), "# ")
		if len(parts) >= 2 {
			windowID = strings.TrimSpace(parts[1])
		}
	}
	if windowID == "" || windowID == "0x0" {
		return nil, fmt.Errorf("no active window found (focused window may be native Wayland)")
	}

	nameOut, _ := common.Output("xprop", "-id", windowID, "WM_NAME")
	title := parseXPropString(nameOut)

	classOut, _ := common.Output("xprop", "-id", windowID, "WM_CLASS")
	app := parseWMClass(classOut)

	if app == "" && title == "" {
		return nil, nil
	}
	return &platform.Window{ID: windowID, App: app, Title: title}, nil
}

// parseXPropString parses xprop string output like: WM_NAME(STRING) = "title"
func parseXPropString(output string) string {
	parts := strings.SplitN(output, "=", 2)
	if len(parts) != 2 {
		return ""
	}
	return strings.Trim(strings.TrimSpace(parts[1]), `"`)
}

// parseWMClass extracts the class from WM_CLASS output
func parseWMClass(output string) string {
	parts := strings.Split(output, "=")
	if len(parts) < 2 {
		return ""
	}
	classInfo := strings.Trim(strings.TrimSpace(parts[1]), `"`)
	classes := strings.Split(classInfo, ",")
	if len(classes) == 0 {
		return ""
	}
	return strings.Trim(classes[len(classes)-1], `" `)
}

// activeKDE gets the focused window from KWin scripting
func (w *Windows) activeKDE() (*platform.Window, error) {
	script := `
	var clients = workspace.clientList();
	for (var i = 0; i < clients.length; i++) {
		if (clients[i].active) {
			print(clients[i].resourceClass + "|" + clients[i].caption + "|" + clients[i].pid);
		}
	}
	`

	out, err := common.Output("qdbus", "org.kde.KWin", "/Scripting", "org.kde.kwin.Scripting.loadScript", script)
	if err != nil {
		return nil, fmt.Errorf("failed to query KDE window: %w", err)
	}

	parts := strings.Split(out, "|")
	if len(parts) < 2 || parts[0] == "" {
		return nil, nil
	}
	pid := ""
	if len(parts) >= 3 {
		pid = parts[2]
	}
	return makeWindow(parts[0], parts[1], pid), nil
}

// makeWindow builds the focus snapshot. Compositor scraping yields no
// stable surface id, so identity is the pid when known and the app name
// otherwise.
func makeWindow(app, title, pid string) *platform.Window {
	win := &platform.Window{App: app, Title: title}

	if n, err := strconv.Atoi(strings.TrimSpace(pid)); err == nil && n > 0 {
		win.PID = n
		win.ID = "pid:" + strconv.Itoa(n)
		if name := common.ProcessName(n); name != "" && win.App == "" {
			win.App = name
		}
	} else {
		win.ID = "app:" + strings.ToLower(app)
	}

	return win
}
