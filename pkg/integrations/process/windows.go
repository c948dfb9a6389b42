// Package process is the window provider of last resort: with no
// reachable display server it guesses the active GUI application by
// scanning /proc. Focus accounting degrades to a best guess instead of
// failing outright; titles are unavailable.
package process

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"deskrec/pkg/platform"
)

// Windows guesses the active application from process activity.
type Windows struct {
	lastScan       time.Time
	knownProcesses map[int]*processInfo
	guiApps        []string
}

type processInfo struct {
	pid      int
	name     string
	cmdline  string
	lastSeen time.Time
}

// NewWindows creates the degraded provider.
func NewWindows() *Windows {
	return &Windows{
		knownProcesses: make(map[int]*processInfo),
		guiApps:        commonGUIApps(),
	}
}

// ActiveWindow returns the best-guess active application. The identity
// is the pid, which is stable while the process lives.
func (w *Windows) ActiveWindow() (*platform.Window, error) {
	if err := w.scanProcesses(); err != nil {
		return nil, fmt.Errorf("failed to scan processes: %w", err)
	}

	candidates := w.scoreProcesses()
	if len(candidates) == 0 {
		return nil, nil
	}

	proc := w.knownProcesses[candidates[0].pid]
	return &platform.Window{
		ID:  "pid:" + strconv.Itoa(proc.pid),
		App: proc.name,
		PID: proc.pid,
	}, nil
}

// IsAvailable checks that /proc is readable
func (w *Windows) IsAvailable() bool {
	_, err := os.Stat("/proc")
	return err == nil
}

// DisplayServer returns "none"; this provider never talks to one.
func (w *Windows) DisplayServer() string {
	return "none"
}

// Close cleans up resources
func (w *Windows) Close() error {
	return nil
}

func (w *Windows) scanProcesses() error {
	entries, err := os.ReadDir("/proc")
	if err != nil {
		return err
	}

	now := time.Now()
	w.lastScan = now

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		pid, err := strconv.Atoi(entry.Name())
		if err != nil {
			continue
		}

		info, err := readProcessInfo(pid)
		if err != nil {
			continue
		}

		if w.isGUIApp(info) {
			info.lastSeen = now
			w.knownProcesses[pid] = info
		}
	}

	for pid, proc := range w.knownProcesses {
		if now.Sub(proc.lastSeen) > 5*time.Second {
			delete(w.knownProcesses, pid)
		}
	}

	return nil
}

func readProcessInfo(pid int) (*processInfo, error) {
	info := &processInfo{pid: pid}

	statData, err := os.ReadFile(filepath.Join("/proc", strconv.Itoa(pid), "stat"))
	if err != nil {
		return nil, err
	}
	info.name = statName(string(statData))

	if cmdData, err := os.ReadFile(filepath.Join("/proc", strconv.Itoa(pid), "cmdline")); err == nil {
		info.cmdline = strings.ReplaceAll(string(cmdData), "\x00", " ")
	}

	return info, nil
}

// statName extracts the comm field between the parentheses of a
// /proc/<pid>/stat line; the name itself may contain spaces.
func statName(stat string) string {
	start := strings.Index(stat, "(")
	end := strings.LastIndex(stat, ")")
	if start == -1 || end == -1 || end <= start {
		return ""
	}
	return stat[start+1 : end]
}

var processBlacklist = []string{
	"bash", "zsh", "fish", "sh", "dash", "tcsh", "ksh",
	"goa-daemon", "goa-identity-service", "gvfs", "dbus-daemon", "systemd",
	"pulseaudio", "pipewire", "wireplumber", "bluetoothd",
	"ssh-agent", "gpg-agent", "dconf-service",
}

func (w *Windows) isGUIApp(info *processInfo) bool {
	for _, blocked := range processBlacklist {
		if info.name == blocked || strings.HasPrefix(info.name, blocked) {
			return false
		}
	}

	for _, app := range w.guiApps {
		if info.name == app || strings.Contains(info.cmdline, app) {
			return true
		}
	}

	// anything attached to a display is a GUI candidate
	environPath := filepath.Join("/proc", strconv.Itoa(info.pid), "environ")
	if data, err := os.ReadFile(environPath); err == nil {
		environ := string(data)
		if strings.Contains(environ, "DISPLAY=") || strings.Contains(environ, "WAYLAND_DISPLAY=") {
			return true
		}
	}

	return false
}

type scoredProcess struct {
	pid   int
	score float64
}

// scoreProcesses ranks candidates: processes this recorder descends
// from (the terminal or editor it was launched in) outrank the rest,
// then recency of sighting.
func (w *Windows) scoreProcesses() []scoredProcess {
	var scored []scoredProcess

	for pid, proc := range w.knownProcesses {
		score := 0.3

		if isAncestorProcess(pid) {
			score += 5.0
		}

		if time.Since(proc.lastSeen).Seconds() < 1.0 {
			score += 0.2
		}

		scored = append(scored, scoredProcess{pid: pid, score: score})
	}

	sort.Slice(scored, func(i, j int) bool {
		return scored[i].score > scored[j].score
	})

	return scored
}

// isAncestorProcess walks the parent chain from this process upward
func isAncestorProcess(checkPID int) bool {
	pid := os.Getpid()

	for pid > 1 && pid != checkPID {
		data, err := os.ReadFile(fmt.Sprintf("/proc/%d/stat", pid))
		if err != nil {
			return false
		}

		// ppid is the first field after the parenthesized name
		rest := string(data)
		if end := strings.LastIndex(rest, ")"); end != -1 {
			rest = rest[end+1:]
		}
		fields := strings.Fields(rest)
		if len(fields) < 2 {
			return false
		}

		ppid, err := strconv.Atoi(fields[1])
		if err != nil {
			return false
		}

		if ppid == checkPID {
			return true
		}

		pid = ppid
	}

	return false
}

func commonGUIApps() []string {
	return []string{
		"firefox", "chrome", "chromium", "google-chrome", "brave", "opera", "vivaldi", "microsoft-edge",
		"code", "vscode", "sublime_text", "atom", "gedit", "vim", "nvim", "emacs",
		"gnome-terminal", "konsole", "terminator", "alacritty", "kitty", "wezterm", "tilix",
		"slack", "discord", "telegram", "signal", "zoom", "teams",
		"libreoffice", "soffice.bin", "writer", "calc", "impress",
		"vlc", "mpv", "spotify", "rhythmbox", "totem",
		"nautilus", "dolphin", "thunar", "nemo", "caja",
		"idea", "pycharm", "webstorm", "eclipse", "netbeans",
	}
}
