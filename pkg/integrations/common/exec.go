// Package common holds the small exec helpers shared by the window and
// screenshot backends.
package common

import (
	"os/exec"
	"strconv"
	"strings"
)

// CommandExists checks if a command is available in PATH
func CommandExists(cmd string) bool {
	_, err := exec.LookPath(cmd)
	return err == nil
}

// Output runs a command and returns its trimmed stdout
func Output(name string, args ...string) (string, error) {
	out, err := exec.Command(name, args...).Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// ProcessName retrieves the process name for a PID, empty if unknown
func ProcessName(pid int) string {
	out, err := Output("ps", "-p", strconv.Itoa(pid), "-o", "comm=")
	if err != nil {
		return ""
	}
	return out
}

// ProcessRunning reports whether a process with the exact name is running
func ProcessRunning(name string) bool {
	return exec.Command("pgrep", "-x", name).Run() == nil
}
