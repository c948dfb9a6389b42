package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	// Scroll session filter configuration
	Scroll ScrollConfig

	// Activity watchdog configuration
	Watchdog WatchdogConfig

	// Capture loop configuration
	Capture CaptureConfig

	// Storage configuration
	Storage StorageConfig

	// Daemon configuration
	Daemon DaemonConfig

	// Web server configuration
	Web WebConfig
}

// ScrollConfig holds the scroll coalescing thresholds
type ScrollConfig struct {
	Debounce       time.Duration // Minimum gap between recorded scroll samples
	MinDistance    float64       // Minimum accumulated distance before a sample is recorded
	MaxFrequency   int           // Maximum recorded samples per second per window
	SessionTimeout time.Duration // Quiet period after which a scroll session closes
}

// WatchdogConfig holds the inactivity thresholds
type WatchdogConfig struct {
	IdleAfter         time.Duration // Time without activity before the session counts as idle
	InactivityTimeout time.Duration // Time without activity before recording terminates
}

// CaptureConfig holds capture loop behavior configuration
type CaptureConfig struct {
	ScreenshotInterval time.Duration // How often to take periodic screenshots
	FocusPollInterval  time.Duration // How often to poll the focused window
	Windows            []string      // Application names to record (empty means use selection file)
	AllWindows         bool          // Record every window regardless of selection
	InputBackend       string        // Input source backend: auto, x11 or evdev
	MaxImageWidth      int           // Screenshots wider than this are scaled down (0 disables)
	DedupeDistance     int           // Max perceptual hash distance treated as a duplicate (0 disables)
}

// StorageConfig holds session storage configuration
type StorageConfig struct {
	DataDir       string // Root directory for session data and the index database
	SelectionFile string // Path to the recorded-application selection file
}

// DaemonConfig holds daemon process configuration
type DaemonConfig struct {
	PIDFile string // Path to PID file for daemon management
	LogFile string // Path the daemonized process logs to
}

// WebConfig holds web server configuration
type WebConfig struct {
	Host string // Host to bind web server to
	Port int    // Port for web server
}

// Default returns a Config with sensible default values
func Default() *Config {
	dataDir := defaultDataDir()
	return &Config{
		Scroll: ScrollConfig{
			Debounce:       500 * time.Millisecond,
			MinDistance:    5.0,
			MaxFrequency:   10,
			SessionTimeout: 2 * time.Second,
		},
		Watchdog: WatchdogConfig{
			IdleAfter:         300 * time.Second, // 5 minutes idle threshold
			InactivityTimeout: 2700 * time.Second,
		},
		Capture: CaptureConfig{
			ScreenshotInterval: 30 * time.Second,
			FocusPollInterval:  500 * time.Millisecond,
			InputBackend:       "auto",
			MaxImageWidth:      1600,
			DedupeDistance:     5,
		},
		Storage: StorageConfig{
			DataDir:       dataDir,
			SelectionFile: filepath.Join(dataDir, "selection.json"),
		},
		Daemon: DaemonConfig{
			PIDFile: fmt.Sprintf("/tmp/deskrec-%d.pid", os.Getuid()),
			LogFile: "/tmp/deskrec.log",
		},
		Web: WebConfig{
			Host: "localhost",
			Port: 10000 + os.Getuid(), // Default port based on user ID
		},
	}
}

// defaultDataDir follows the XDG base directory convention
func defaultDataDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "deskrec")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "deskrec")
	}
	return filepath.Join(home, ".local", "share", "deskrec")
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate scroll thresholds
	if c.Scroll.Debounce < 0 {
		return fmt.Errorf("scroll debounce cannot be negative")
	}

	if c.Scroll.MinDistance < 0 {
		return fmt.Errorf("scroll min distance cannot be negative")
	}

	if c.Scroll.MaxFrequency < 1 {
		return fmt.Errorf("scroll max frequency must be at least 1, got %d", c.Scroll.MaxFrequency)
	}

	if c.Scroll.SessionTimeout <= 0 {
		return fmt.Errorf("scroll session timeout must be positive")
	}

	// Validate watchdog thresholds
	if c.Watchdog.IdleAfter <= 0 {
		return fmt.Errorf("idle threshold must be positive")
	}

	if c.Watchdog.InactivityTimeout <= 0 {
		return fmt.Errorf("inactivity timeout must be positive")
	}

	if c.Watchdog.InactivityTimeout <= c.Watchdog.IdleAfter {
		return fmt.Errorf("inactivity timeout (%v) must be greater than idle threshold (%v)",
			c.Watchdog.InactivityTimeout, c.Watchdog.IdleAfter)
	}

	// Validate capture intervals
	if c.Capture.ScreenshotInterval <= 0 {
		return fmt.Errorf("screenshot interval must be positive")
	}

	if c.Capture.FocusPollInterval <= 0 {
		return fmt.Errorf("focus poll interval must be positive")
	}

	switch c.Capture.InputBackend {
	case "auto", "x11", "evdev":
	default:
		return fmt.Errorf("input backend must be auto, x11 or evdev, got %q", c.Capture.InputBackend)
	}

	if c.Capture.MaxImageWidth < 0 {
		return fmt.Errorf("max image width cannot be negative")
	}

	if c.Capture.DedupeDistance < 0 {
		return fmt.Errorf("dedupe distance cannot be negative")
	}

	// Validate storage config
	if c.Storage.DataDir == "" {
		return fmt.Errorf("data directory cannot be empty")
	}

	if c.Storage.SelectionFile == "" {
		return fmt.Errorf("selection file path cannot be empty")
	}

	// Validate web config
	if c.Web.Port < 1 || c.Web.Port > 65535 {
		return fmt.Errorf("web port must be between 1 and 65535, got %d", c.Web.Port)
	}

	if c.Web.Host == "" {
		return fmt.Errorf("web host cannot be empty")
	}

	// Validate daemon config
	if c.Daemon.PIDFile == "" {
		return fmt.Errorf("PID file path cannot be empty")
	}

	return nil
}

// SetWebPort sets the web server port with validation
func (c *Config) SetWebPort(port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", port)
	}
	c.Web.Port = port
	return nil
}

// SetDataDir moves the data directory. The selection file follows the
// data dir unless it was pointed elsewhere explicitly.
func (c *Config) SetDataDir(dir string) {
	if c.Storage.SelectionFile == filepath.Join(c.Storage.DataDir, "selection.json") {
		c.Storage.SelectionFile = filepath.Join(dir, "selection.json")
	}
	c.Storage.DataDir = dir
}

// SetWindows replaces the recorded-application list, dropping empty entries
func (c *Config) SetWindows(raw string) {
	c.Capture.Windows = splitList(raw)
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// String returns a string representation of the config
func (c *Config) String() string {
	windows := strings.Join(c.Capture.Windows, ", ")
	if c.Capture.AllWindows {
		windows = "(all)"
	}
	return fmt.Sprintf(`Configuration:
  Scroll:
    Debounce: %v
    Min Distance: %.1f
    Max Frequency: %d/s
    Session Timeout: %v
  Watchdog:
    Idle After: %v
    Inactivity Timeout: %v
  Capture:
    Screenshot Interval: %v
    Focus Poll Interval: %v
    Windows: %s
    Input Backend: %s
    Max Image Width: %d
    Dedupe Distance: %d
  Storage:
    Data Dir: %s
    Selection File: %s
  Daemon:
    PID File: %s
    Log File: %s
  Web:
    Host: %s
    Port: %d`,
		c.Scroll.Debounce,
		c.Scroll.MinDistance,
		c.Scroll.MaxFrequency,
		c.Scroll.SessionTimeout,
		c.Watchdog.IdleAfter,
		c.Watchdog.InactivityTimeout,
		c.Capture.ScreenshotInterval,
		c.Capture.FocusPollInterval,
		windows,
		c.Capture.InputBackend,
		c.Capture.MaxImageWidth,
		c.Capture.DedupeDistance,
		c.Storage.DataDir,
		c.Storage.SelectionFile,
		c.Daemon.PIDFile,
		c.Daemon.LogFile,
		c.Web.Host,
		c.Web.Port,
	)
}
