package common

import (
	"os"
	"testing"
)

func TestCommandExists(t *testing.T) {
	tests := []struct {
		name    string
		command string
		want    bool
	}{
		{"ls should exist", "ls", true},
		{"sh should exist", "sh", true},
		{"nonexistent command", "nonexistent_command_xyz", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CommandExists(tt.command); got != tt.want {
				t.Errorf("CommandExists(%s) = %v, want %v", tt.command, got, tt.want)
			}
		})
	}
}

func TestOutput(t *testing.T) {
	out, err := Output("echo", "hello")
	if err != nil {
		t.Fatalf("Output(echo) error: %v", err)
	}
	if out != "hello" {
		t.Errorf("Output(echo hello) = %q, want %q", out, "hello")
	}

	if _, err := Output("nonexistent_command_xyz"); err == nil {
		t.Error("Output() on a missing command should fail")
	}
}

func TestProcessName(t *testing.T) {
	if !CommandExists("ps") {
		t.Skip("ps not available")
	}

	name := ProcessName(os.Getpid())
	t.Logf("Own process name: %s", name)
	if name == "" {
		t.Error("ProcessName(own pid) returned empty")
	}

	if name := ProcessName(999999); name != "" {
		t.Errorf("ProcessName(999999) = %q, want empty", name)
	}
}
