package config

import (
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default() config failed validation: %v", err)
	}
}

func TestDefaultValues(t *testing.T) {
	cfg := Default()

	if got, want := cfg.Scroll.Debounce, 500*time.Millisecond; got != want {
		t.Errorf("Scroll.Debounce = %v, want %v", got, want)
	}
	if got, want := cfg.Scroll.MinDistance, 5.0; got != want {
		t.Errorf("Scroll.MinDistance = %v, want %v", got, want)
	}
	if got, want := cfg.Scroll.MaxFrequency, 10; got != want {
		t.Errorf("Scroll.MaxFrequency = %d, want %d", got, want)
	}
	if got, want := cfg.Scroll.SessionTimeout, 2*time.Second; got != want {
		t.Errorf("Scroll.SessionTimeout = %v, want %v", got, want)
	}
	if got, want := cfg.Watchdog.InactivityTimeout, 2700*time.Second; got != want {
		t.Errorf("Watchdog.InactivityTimeout = %v, want %v", got, want)
	}
	if got, want := cfg.Capture.InputBackend, "auto"; got != want {
		t.Errorf("Capture.InputBackend = %q, want %q", got, want)
	}
	if cfg.Capture.AllWindows {
		t.Error("Capture.AllWindows should default to false")
	}
	if got, want := cfg.Storage.SelectionFile, filepath.Join(cfg.Storage.DataDir, "selection.json"); got != want {
		t.Errorf("Storage.SelectionFile = %q, want %q", got, want)
	}
}

func TestSetDataDir(t *testing.T) {
	cfg := Default()
	cfg.SetDataDir("/srv/rec")
	if got, want := cfg.Storage.DataDir, "/srv/rec"; got != want {
		t.Errorf("Storage.DataDir = %q, want %q", got, want)
	}
	if got, want := cfg.Storage.SelectionFile, filepath.Join("/srv/rec", "selection.json"); got != want {
		t.Errorf("Storage.SelectionFile = %q, want %q", got, want)
	}
}

func TestSetDataDirKeepsExplicitSelectionFile(t *testing.T) {
	cfg := Default()
	cfg.Storage.SelectionFile = "/etc/deskrec/selection.json"
	cfg.SetDataDir("/srv/rec")
	if got, want := cfg.Storage.SelectionFile, "/etc/deskrec/selection.json"; got != want {
		t.Errorf("Storage.SelectionFile = %q, want %q", got, want)
	}
}

func TestDefaultDataDirFollowsXDG(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/custom/share")

	cfg := Default()
	if got, want := cfg.Storage.DataDir, "/custom/share/deskrec"; got != want {
		t.Errorf("Storage.DataDir = %q, want %q", got, want)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "default config",
			mutate: func(c *Config) {},
		},
		{
			name:    "negative debounce",
			mutate:  func(c *Config) { c.Scroll.Debounce = -time.Second },
			wantErr: "debounce",
		},
		{
			name:    "negative min distance",
			mutate:  func(c *Config) { c.Scroll.MinDistance = -1 },
			wantErr: "min distance",
		},
		{
			name:    "zero max frequency",
			mutate:  func(c *Config) { c.Scroll.MaxFrequency = 0 },
			wantErr: "max frequency",
		},
		{
			name:    "zero session timeout",
			mutate:  func(c *Config) { c.Scroll.SessionTimeout = 0 },
			wantErr: "session timeout",
		},
		{
			name:    "zero idle threshold",
			mutate:  func(c *Config) { c.Watchdog.IdleAfter = 0 },
			wantErr: "idle threshold",
		},
		{
			name: "inactivity timeout below idle threshold",
			mutate: func(c *Config) {
				c.Watchdog.IdleAfter = 10 * time.Minute
				c.Watchdog.InactivityTimeout = 5 * time.Minute
			},
			wantErr: "inactivity timeout",
		},
		{
			name:    "zero screenshot interval",
			mutate:  func(c *Config) { c.Capture.ScreenshotInterval = 0 },
			wantErr: "screenshot interval",
		},
		{
			name:    "unknown input backend",
			mutate:  func(c *Config) { c.Capture.InputBackend = "wayland" },
			wantErr: "input backend",
		},
		{
			name:    "negative dedupe distance",
			mutate:  func(c *Config) { c.Capture.DedupeDistance = -1 },
			wantErr: "dedupe distance",
		},
		{
			name:    "empty data dir",
			mutate:  func(c *Config) { c.Storage.DataDir = "" },
			wantErr: "data directory",
		},
		{
			name:    "port too high",
			mutate:  func(c *Config) { c.Web.Port = 70000 },
			wantErr: "web port",
		},
		{
			name:    "empty host",
			mutate:  func(c *Config) { c.Web.Host = "" },
			wantErr: "web host",
		},
		{
			name:    "empty pid file",
			mutate:  func(c *Config) { c.Daemon.PIDFile = "" },
			wantErr: "PID file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() = nil, want error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %q, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("DESKREC_SCROLL_DEBOUNCE", "0.25")
	t.Setenv("DESKREC_SCROLL_MIN_DISTANCE", "2.5")
	t.Setenv("DESKREC_SCROLL_MAX_FREQUENCY", "4")
	t.Setenv("DESKREC_SCROLL_SESSION_TIMEOUT", "1.5")
	t.Setenv("DESKREC_IDLE_AFTER", "60")
	t.Setenv("DESKREC_INACTIVITY_TIMEOUT", "600")
	t.Setenv("DESKREC_SCREENSHOT_INTERVAL", "15")
	t.Setenv("DESKREC_FOCUS_POLL_INTERVAL", "250")
	t.Setenv("DESKREC_WINDOWS", "firefox, Code")
	t.Setenv("DESKREC_ALL_WINDOWS", "true")
	t.Setenv("DESKREC_INPUT_BACKEND", "evdev")
	t.Setenv("DESKREC_MAX_IMAGE_WIDTH", "800")
	t.Setenv("DESKREC_DEDUPE_DISTANCE", "0")
	t.Setenv("DESKREC_WEB_HOST", "0.0.0.0")
	t.Setenv("DESKREC_WEB_PORT", "9999")

	cfg := Default()
	LoadFromEnv(cfg)

	if got, want := cfg.Scroll.Debounce, 250*time.Millisecond; got != want {
		t.Errorf("Scroll.Debounce = %v, want %v", got, want)
	}
	if got, want := cfg.Scroll.MinDistance, 2.5; got != want {
		t.Errorf("Scroll.MinDistance = %v, want %v", got, want)
	}
	if got, want := cfg.Scroll.MaxFrequency, 4; got != want {
		t.Errorf("Scroll.MaxFrequency = %d, want %d", got, want)
	}
	if got, want := cfg.Scroll.SessionTimeout, 1500*time.Millisecond; got != want {
		t.Errorf("Scroll.SessionTimeout = %v, want %v", got, want)
	}
	if got, want := cfg.Watchdog.IdleAfter, time.Minute; got != want {
		t.Errorf("Watchdog.IdleAfter = %v, want %v", got, want)
	}
	if got, want := cfg.Watchdog.InactivityTimeout, 10*time.Minute; got != want {
		t.Errorf("Watchdog.InactivityTimeout = %v, want %v", got, want)
	}
	if got, want := cfg.Capture.ScreenshotInterval, 15*time.Second; got != want {
		t.Errorf("Capture.ScreenshotInterval = %v, want %v", got, want)
	}
	if got, want := cfg.Capture.FocusPollInterval, 250*time.Millisecond; got != want {
		t.Errorf("Capture.FocusPollInterval = %v, want %v", got, want)
	}
	if got, want := cfg.Capture.Windows, []string{"firefox", "Code"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Capture.Windows = %v, want %v", got, want)
	}
	if !cfg.Capture.AllWindows {
		t.Error("Capture.AllWindows should be true")
	}
	if got, want := cfg.Capture.InputBackend, "evdev"; got != want {
		t.Errorf("Capture.InputBackend = %q, want %q", got, want)
	}
	if got, want := cfg.Capture.MaxImageWidth, 800; got != want {
		t.Errorf("Capture.MaxImageWidth = %d, want %d", got, want)
	}
	if got, want := cfg.Capture.DedupeDistance, 0; got != want {
		t.Errorf("Capture.DedupeDistance = %d, want %d", got, want)
	}
	if got, want := cfg.Web.Host, "0.0.0.0"; got != want {
		t.Errorf("Web.Host = %q, want %q", got, want)
	}
	if got, want := cfg.Web.Port, 9999; got != want {
		t.Errorf("Web.Port = %d, want %d", got, want)
	}
}

func TestLoadFromEnvIgnoresInvalidValues(t *testing.T) {
	t.Setenv("DESKREC_SCROLL_DEBOUNCE", "fast")
	t.Setenv("DESKREC_SCROLL_MAX_FREQUENCY", "0")
	t.Setenv("DESKREC_INACTIVITY_TIMEOUT", "-30")
	t.Setenv("DESKREC_INPUT_BACKEND", "telepathy")
	t.Setenv("DESKREC_WEB_PORT", "99999")

	cfg := Default()
	LoadFromEnv(cfg)

	want := Default()
	if cfg.Scroll.Debounce != want.Scroll.Debounce {
		t.Errorf("Scroll.Debounce = %v, want default %v", cfg.Scroll.Debounce, want.Scroll.Debounce)
	}
	if cfg.Scroll.MaxFrequency != want.Scroll.MaxFrequency {
		t.Errorf("Scroll.MaxFrequency = %d, want default %d", cfg.Scroll.MaxFrequency, want.Scroll.MaxFrequency)
	}
	if cfg.Watchdog.InactivityTimeout != want.Watchdog.InactivityTimeout {
		t.Errorf("Watchdog.InactivityTimeout = %v, want default %v", cfg.Watchdog.InactivityTimeout, want.Watchdog.InactivityTimeout)
	}
	if cfg.Capture.InputBackend != want.Capture.InputBackend {
		t.Errorf("Capture.InputBackend = %q, want default %q", cfg.Capture.InputBackend, want.Capture.InputBackend)
	}
	if cfg.Web.Port != want.Web.Port {
		t.Errorf("Web.Port = %d, want default %d", cfg.Web.Port, want.Web.Port)
	}
}

func TestLoadFromEnvDataDirMovesSelectionFile(t *testing.T) {
	t.Setenv("DESKREC_DATA_DIR", "/var/lib/deskrec")

	cfg := Default()
	LoadFromEnv(cfg)

	if got, want := cfg.Storage.DataDir, "/var/lib/deskrec"; got != want {
		t.Errorf("Storage.DataDir = %q, want %q", got, want)
	}
	if got, want := cfg.Storage.SelectionFile, "/var/lib/deskrec/selection.json"; got != want {
		t.Errorf("Storage.SelectionFile = %q, want %q", got, want)
	}
}

func TestLoadFromEnvExplicitSelectionFileWins(t *testing.T) {
	t.Setenv("DESKREC_DATA_DIR", "/var/lib/deskrec")
	t.Setenv("DESKREC_SELECTION_FILE", "/etc/deskrec/selection.json")

	cfg := Default()
	LoadFromEnv(cfg)

	if got, want := cfg.Storage.SelectionFile, "/etc/deskrec/selection.json"; got != want {
		t.Errorf("Storage.SelectionFile = %q, want %q", got, want)
	}
}

func TestSplitList(t *testing.T) {
	tests := []struct {
		raw  string
		want []string
	}{
		{"firefox", []string{"firefox"}},
		{"firefox,Code", []string{"firefox", "Code"}},
		{" firefox , Code ,, ", []string{"firefox", "Code"}},
		{",", nil},
		{"", nil},
	}

	for _, tt := range tests {
		if got := splitList(tt.raw); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("splitList(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}

func TestStringMentionsKeySettings(t *testing.T) {
	cfg := Default()
	cfg.Capture.Windows = []string{"firefox"}

	out := cfg.String()
	for _, want := range []string{"500ms", "45m0s", "firefox", "selection.json"} {
		if !strings.Contains(out, want) {
			t.Errorf("String() missing %q:\n%s", want, out)
		}
	}

	cfg.Capture.AllWindows = true
	if !strings.Contains(cfg.String(), "(all)") {
		t.Error("String() should show (all) when every window is recorded")
	}
}
