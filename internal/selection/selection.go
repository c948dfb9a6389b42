package selection

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"deskrec/internal/config"
	"deskrec/pkg/platform"
)

// ErrEmptySelection means nothing is selected and the all-windows
// override is off. Recording refuses to start in that state.
var ErrEmptySelection = errors.New("no applications selected for recording")

// Selection is the set of applications being recorded, matched by
// case-insensitive application name. Safe for concurrent use; the file
// watcher swaps the set live while the capture loop consults Match.
type Selection struct {
	mu   sync.RWMutex
	all  bool
	apps map[string]struct{}
}

func New() *Selection {
	return &Selection{apps: make(map[string]struct{})}
}

// Load builds the selection from the configuration. The selection file
// takes precedence over the -windows/-all flags and the environment
// when it exists.
func Load(cfg *config.Config) (*Selection, error) {
	s := New()
	s.Set(cfg.Capture.Windows, cfg.Capture.AllWindows)

	if err := s.LoadFile(cfg.Storage.SelectionFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	if s.Empty() {
		return nil, ErrEmptySelection
	}
	return s, nil
}

// Set replaces the selected set
func (s *Selection) Set(apps []string, all bool) {
	set := make(map[string]struct{}, len(apps))
	for _, app := range apps {
		if app = strings.ToLower(strings.TrimSpace(app)); app != "" {
			set[app] = struct{}{}
		}
	}

	s.mu.Lock()
	s.apps = set
	s.all = all
	s.mu.Unlock()
}

// selectionFile is the document written by the external picker
type selectionFile struct {
	All  bool     `json:"all"`
	Apps []string `json:"apps"`
}

// LoadFile replaces the selection with the file's contents
func (s *Selection) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read selection file: %w", err)
	}

	var doc selectionFile
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to parse selection file %s: %w", path, err)
	}

	s.Set(doc.Apps, doc.All)
	return nil
}

// Match reports whether a window belongs to the recorded set
func (s *Selection) Match(w platform.Window) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.all {
		return true
	}
	_, ok := s.apps[strings.ToLower(w.App)]
	return ok
}

// Allow adapts Match for platform.Restrict
func (s *Selection) Allow() func(platform.Window) bool {
	return s.Match
}

// Empty reports whether nothing would ever match
func (s *Selection) Empty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.all && len(s.apps) == 0
}

// All reports whether every window is recorded
func (s *Selection) All() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.all
}

// Apps returns the selected application names, sorted
func (s *Selection) Apps() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	apps := make([]string, 0, len(s.apps))
	for app := range s.apps {
		apps = append(apps, app)
	}
	sort.Strings(apps)
	return apps
}

// String describes the selection for startup logging
func (s *Selection) String() string {
	if s.All() {
		return "all windows"
	}
	apps := s.Apps()
	if len(apps) == 0 {
		return "nothing"
	}
	return strings.Join(apps, ", ")
}
