package wayland

import (
	"testing"
)

func TestNewWindows(t *testing.T) {
	w := NewWindows()
	if w == nil {
		t.Fatal("NewWindows() returned nil")
	}

	t.Logf("Detected compositor: %s", w.compositor)
	t.Logf("Has swaymsg: %v", w.hasSwaymsg)
	t.Logf("Has hyprctl: %v", w.hasHyprctl)
	t.Logf("Has gdbus: %v", w.hasGdbus)
}

func TestDisplayServer(t *testing.T) {
	w := NewWindows()
	if got := w.DisplayServer(); got != "wayland" {
		t.Errorf("DisplayServer() = %s, want wayland", got)
	}
}

func TestDetectCompositor(t *testing.T) {
	w := NewWindows()

	validCompositors := []string{"sway", "hyprland", "wayfire", "river", "gnome", "kde", "unknown"}
	found := false
	for _, valid := range validCompositors {
		if w.compositor == valid {
			found = true
			break
		}
	}
	if !found {
		t.Errorf("Unknown compositor detected: %s", w.compositor)
	}
}

func TestActiveWindow(t *testing.T) {
	w := NewWindows()
	if !w.IsAvailable() {
		t.Skip("Wayland detection not available on this system")
	}

	win, err := w.ActiveWindow()
	if err != nil {
		t.Logf("ActiveWindow() error (may be expected): %v", err)
	} else if win != nil {
		t.Logf("Active window: %s - %s (%s)", win.App, win.Title, win.ID)
	}
}

func TestParseSwayTree(t *testing.T) {
	tree := `{
  "nodes": [
    {
      "id": 6,
      "name": "workspace 1",
      "focused": false,
      "nodes": [
        {
          "id": 12,
          "focused": true,
          "name": "Mozilla Firefox",
          "app_id": "firefox",
          "pid": 4242
        }
      ]
    }
  ]
}`

	win := parseSwayTree(tree)
	if win == nil {
		t.Fatal("parseSwayTree() returned nil")
	}
	if win.App != "firefox" {
		t.Errorf("App = %s, want firefox", win.App)
	}
	if win.Title != "Mozilla Firefox" {
		t.Errorf("Title = %s, want Mozilla Firefox", win.Title)
	}
	if win.PID != 4242 {
		t.Errorf("PID = %d, want 4242", win.PID)
	}
	if win.ID != "pid:4242" {
		t.Errorf("ID = %s, want pid:4242", win.ID)
	}
}

func TestParseSwayTreeNoFocus(t *testing.T) {
	tree := `{"nodes": [{"id": 6, "name": "ws", "focused": false}]}`
	if win := parseSwayTree(tree); win != nil {
		t.Errorf("parseSwayTree() = %+v, want nil for unfocused tree", win)
	}
}

func TestParseHyprlandWindow(t *testing.T) {
	output := `{
  "address": "0x55b1b2",
  "class": "kitty",
  "title": "vim session.go",
  "pid": 999
}`

	win := parseHyprlandWindow(output)
	if win == nil {
		t.Fatal("parseHyprlandWindow() returned nil")
	}
	if win.App != "kitty" {
		t.Errorf("App = %s, want kitty", win.App)
	}
	if win.Title != "vim session.go" {
		t.Errorf("Title = %s, want vim session.go", win.Title)
	}
	if win.ID != "pid:999" {
		t.Errorf("ID = %s, want pid:999", win.ID)
	}
}

func TestParseGnomeEval(t *testing.T) {
	tests := []struct {
		name    string
		result  string
		wantApp string
		wantNil bool
	}{
		{
			name:    "focused window",
			result:  `(true, '"Firefox|||Mozilla Firefox|||4242"')`,
			wantApp: "Firefox",
		},
		{
			name:    "eval blocked",
			result:  `(false, '')`,
			wantNil: true,
		},
		{
			name:    "no focused window",
			result:  `(true, '""')`,
			wantNil: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			win := parseGnomeEval(tt.result)
			if tt.wantNil {
				if win != nil {
					t.Errorf("parseGnomeEval() = %+v, want nil", win)
				}
				return
			}
			if win == nil {
				t.Fatal("parseGnomeEval() returned nil")
			}
			if win.App != tt.wantApp {
				t.Errorf("App = %s, want %s", win.App, tt.wantApp)
			}
		})
	}
}

func TestParseXPropString(t *testing.T) {
	tests := []struct {
		name   string
		output string
		want   string
	}{
		{"normal title", `WM_NAME(STRING) = "Terminal"`, "Terminal"},
		{"no value", `WM_NAME: not found`, ""},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseXPropString(tt.output); got != tt.want {
				t.Errorf("parseXPropString(%q) = %q, want %q", tt.output, got, tt.want)
			}
		})
	}
}

func TestParseWMClass(t *testing.T) {
	tests := []struct {
		name   string
		output string
		want   string
	}{
		{"instance and class", `WM_CLASS(STRING) = "navigator", "Firefox"`, "Firefox"},
		{"single value", `WM_CLASS(STRING) = "xterm"`, "xterm"},
		{"no value", `WM_CLASS: not found`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseWMClass(tt.output); got != tt.want {
				t.Errorf("parseWMClass(%q) = %q, want %q", tt.output, got, tt.want)
			}
		})
	}
}

func TestMakeWindowIdentity(t *testing.T) {
	win := makeWindow("firefox", "Mozilla Firefox", "4242")
	if win.ID != "pid:4242" {
		t.Errorf("ID = %s, want pid:4242", win.ID)
	}

	win = makeWindow("Firefox", "Mozilla Firefox", "")
	if win.ID != "app:firefox" {
		t.Errorf("ID without pid = %s, want app:firefox", win.ID)
	}
}

func TestScreensUnavailable(t *testing.T) {
	s, err := NewScreens()
	if err != nil {
		t.Logf("No screenshot tool available: %v", err)
		return
	}
	defer s.Close()

	t.Logf("Screenshot tool: %s", s.tool)
	if !s.IsAvailable() {
		t.Error("IsAvailable() = false for a constructed provider")
	}
}
