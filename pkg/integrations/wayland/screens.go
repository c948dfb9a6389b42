package wayland

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"

	"deskrec/pkg/integrations/common"
	"deskrec/pkg/platform"
)

// screenshotTools in probe order. All write a PNG to the given path;
// per-window capture is not portable across compositors, so frames are
// full-output and attributed to the requested window.
var screenshotTools = []struct {
	name string
	args func(path string) []string
}{
	{"grim", func(path string) []string { return []string{path} }},
	{"gnome-screenshot", func(path string) []string { return []string{"-f", path} }},
	{"spectacle", func(path string) []string { return []string{"-b", "-n", "-o", path} }},
}

// Screens captures frames by spawning the compositor's screenshot tool.
type Screens struct {
	tool    string
	args    func(path string) []string
	tempDir string
}

// NewScreens probes the available screenshot tools.
func NewScreens() (*Screens, error) {
	for _, t := range screenshotTools {
		if common.CommandExists(t.name) {
			tempDir, err := os.MkdirTemp("", "deskrec-shot-*")
			if err != nil {
				return nil, fmt.Errorf("failed to create temp dir: %w", err)
			}
			return &Screens{tool: t.name, args: t.args, tempDir: tempDir}, nil
		}
	}
	return nil, fmt.Errorf("no wayland screenshot tool found (grim, gnome-screenshot or spectacle required)")
}

// Capture takes one full-output frame and returns it for every
// requested window. Tool failures report ErrCaptureUnavailable.
func (s *Screens) Capture(windows []platform.Window) (map[string]image.Image, error) {
	frames := make(map[string]image.Image, len(windows))
	if len(windows) == 0 {
		return frames, nil
	}

	img, err := s.captureOutput()
	if err != nil {
		return frames, fmt.Errorf("%w: %v", platform.ErrCaptureUnavailable, err)
	}

	for _, w := range windows {
		frames[w.ID] = img
	}
	return frames, nil
}

func (s *Screens) captureOutput() (image.Image, error) {
	path := filepath.Join(s.tempDir, "frame.png")
	defer os.Remove(path)

	if out, err := exec.Command(s.tool, s.args(path)...).CombinedOutput(); err != nil {
		return nil, fmt.Errorf("%s failed: %v (output: %s)", s.tool, err, string(out))
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s output: %w", s.tool, err)
	}
	defer f.Close()

	img, err := png.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s output: %w", s.tool, err)
	}
	return img, nil
}

// IsAvailable reports whether a screenshot tool was found.
func (s *Screens) IsAvailable() bool {
	return s.tool != ""
}

// Close removes the temp directory.
func (s *Screens) Close() error {
	if s.tempDir != "" {
		return os.RemoveAll(s.tempDir)
	}
	return nil
}
