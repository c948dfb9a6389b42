package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// LoadFromEnv loads configuration from environment variables
// Environment variables override default values
func LoadFromEnv(cfg *Config) {
	// Scroll configuration
	if debounce := os.Getenv("DESKREC_SCROLL_DEBOUNCE"); debounce != "" {
		if secs, err := strconv.ParseFloat(debounce, 64); err == nil && secs >= 0 {
			cfg.Scroll.Debounce = time.Duration(secs * float64(time.Second))
		}
	}

	if minDistance := os.Getenv("DESKREC_SCROLL_MIN_DISTANCE"); minDistance != "" {
		if dist, err := strconv.ParseFloat(minDistance, 64); err == nil && dist >= 0 {
			cfg.Scroll.MinDistance = dist
		}
	}

	if maxFrequency := os.Getenv("DESKREC_SCROLL_MAX_FREQUENCY"); maxFrequency != "" {
		if freq, err := strconv.Atoi(maxFrequency); err == nil && freq >= 1 {
			cfg.Scroll.MaxFrequency = freq
		}
	}

	if sessionTimeout := os.Getenv("DESKREC_SCROLL_SESSION_TIMEOUT"); sessionTimeout != "" {
		if secs, err := strconv.ParseFloat(sessionTimeout, 64); err == nil && secs > 0 {
			cfg.Scroll.SessionTimeout = time.Duration(secs * float64(time.Second))
		}
	}

	// Watchdog configuration
	if idleAfter := os.Getenv("DESKREC_IDLE_AFTER"); idleAfter != "" {
		if seconds, err := strconv.Atoi(idleAfter); err == nil && seconds > 0 {
			cfg.Watchdog.IdleAfter = time.Duration(seconds) * time.Second
		}
	}

	if inactivityTimeout := os.Getenv("DESKREC_INACTIVITY_TIMEOUT"); inactivityTimeout != "" {
		if seconds, err := strconv.Atoi(inactivityTimeout); err == nil && seconds > 0 {
			cfg.Watchdog.InactivityTimeout = time.Duration(seconds) * time.Second
		}
	}

	// Capture configuration
	if screenshotInterval := os.Getenv("DESKREC_SCREENSHOT_INTERVAL"); screenshotInterval != "" {
		if seconds, err := strconv.Atoi(screenshotInterval); err == nil && seconds > 0 {
			cfg.Capture.ScreenshotInterval = time.Duration(seconds) * time.Second
		}
	}

	if focusPoll := os.Getenv("DESKREC_FOCUS_POLL_INTERVAL"); focusPoll != "" {
		if millis, err := strconv.Atoi(focusPoll); err == nil && millis > 0 {
			cfg.Capture.FocusPollInterval = time.Duration(millis) * time.Millisecond
		}
	}

	if windows := os.Getenv("DESKREC_WINDOWS"); windows != "" {
		cfg.Capture.Windows = splitList(windows)
	}

	if allWindows := os.Getenv("DESKREC_ALL_WINDOWS"); allWindows != "" {
		if val, err := strconv.ParseBool(allWindows); err == nil {
			cfg.Capture.AllWindows = val
		}
	}

	if backend := os.Getenv("DESKREC_INPUT_BACKEND"); backend != "" {
		switch backend {
		case "auto", "x11", "evdev":
			cfg.Capture.InputBackend = backend
		}
	}

	if maxWidth := os.Getenv("DESKREC_MAX_IMAGE_WIDTH"); maxWidth != "" {
		if width, err := strconv.Atoi(maxWidth); err == nil && width >= 0 {
			cfg.Capture.MaxImageWidth = width
		}
	}

	if dedupe := os.Getenv("DESKREC_DEDUPE_DISTANCE"); dedupe != "" {
		if dist, err := strconv.Atoi(dedupe); err == nil && dist >= 0 {
			cfg.Capture.DedupeDistance = dist
		}
	}

	// Storage configuration
	// The selection file follows the data dir unless set explicitly below
	if dataDir := os.Getenv("DESKREC_DATA_DIR"); dataDir != "" {
		cfg.Storage.DataDir = dataDir
		cfg.Storage.SelectionFile = filepath.Join(dataDir, "selection.json")
	}

	if selectionFile := os.Getenv("DESKREC_SELECTION_FILE"); selectionFile != "" {
		cfg.Storage.SelectionFile = selectionFile
	}

	// Daemon configuration
	if pidFile := os.Getenv("DESKREC_PID_FILE"); pidFile != "" {
		cfg.Daemon.PIDFile = pidFile
	}

	if logFile := os.Getenv("DESKREC_LOG_FILE"); logFile != "" {
		cfg.Daemon.LogFile = logFile
	}

	// Web configuration
	if webHost := os.Getenv("DESKREC_WEB_HOST"); webHost != "" {
		cfg.Web.Host = webHost
	}

	if webPort := os.Getenv("DESKREC_WEB_PORT"); webPort != "" {
		if port, err := strconv.Atoi(webPort); err == nil && port > 0 && port <= 65535 {
			cfg.Web.Port = port
		}
	}
}

// New creates a new Config with default values and loads from environment
func New() *Config {
	cfg := Default()
	LoadFromEnv(cfg)
	return cfg
}
