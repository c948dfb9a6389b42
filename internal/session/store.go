package session

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"
)

var (
	// ErrActiveSession means another recording holds the data dir lock.
	ErrActiveSession = errors.New("another recording session is active")

	// ErrFinalized is returned by writes after Finalize.
	ErrFinalized = errors.New("session already finalized")

	// ErrWriteFailed wraps any failure to persist log lines, frames or
	// the manifest. The recorder treats it as fatal.
	ErrWriteFailed = errors.New("session store write failed")
)

const (
	dirTimeFormat  = "20060102-150405"
	shotTimeFormat = "20060102-150405.000"

	logName      = "events.jsonl"
	manifestName = "session.json"
	shotsDirName = "screenshots"
	lockName     = "active.lock"

	jpegQuality = 85
)

// Manifest summarizes one session directory. It is written when the
// session opens and atomically rewritten once at finalize.
type Manifest struct {
	ID              string     `json:"id"`
	Dir             string     `json:"dir"`
	StartedAt       time.Time  `json:"started_at"`
	EndedAt         *time.Time `json:"ended_at,omitempty"`
	Reason          string     `json:"reason,omitempty"`
	EventCount      int        `json:"event_count"`
	ScreenshotCount int        `json:"screenshot_count"`
}

// Store manages the session directories under one data dir.
type Store struct {
	root     string // <dataDir>
	sessions string // <dataDir>/sessions
}

// NewStore prepares the data dir layout.
func NewStore(dataDir string) (*Store, error) {
	s := &Store{
		root:     dataDir,
		sessions: filepath.Join(dataDir, "sessions"),
	}
	if err := os.MkdirAll(s.sessions, 0o700); err != nil {
		return nil, fmt.Errorf("create sessions directory: %w", err)
	}
	return s, nil
}

// Root returns the data dir.
func (s *Store) Root() string {
	return s.root
}

func (s *Store) lockPath() string {
	return filepath.Join(s.root, lockName)
}

// acquireLock creates the exclusive data dir lock holding our PID. A
// lock left behind by a dead process is removed and taken over.
func (s *Store) acquireLock() error {
	for attempt := 0; attempt < 2; attempt++ {
		f, err := os.OpenFile(s.lockPath(), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
		if err == nil {
			_, werr := fmt.Fprintf(f, "%d\n", os.Getpid())
			if cerr := f.Close(); werr == nil {
				werr = cerr
			}
			if werr != nil {
				_ = os.Remove(s.lockPath())
				return fmt.Errorf("write lock file: %w", werr)
			}
			return nil
		}
		if !errors.Is(err, os.ErrExist) {
			return fmt.Errorf("create lock file: %w", err)
		}
		if pid, ok := s.lockHolder(); ok && processAlive(pid) {
			return fmt.Errorf("%w (pid %d)", ErrActiveSession, pid)
		}
		// stale lock from a dead process
		if err := os.Remove(s.lockPath()); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove stale lock: %w", err)
		}
	}
	return ErrActiveSession
}

func (s *Store) lockHolder() (int, bool) {
	data, err := os.ReadFile(s.lockPath())
	if err != nil {
		return 0, false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, false
	}
	return pid, true
}

func processAlive(pid int) bool {
	return syscall.Kill(pid, 0) == nil
}

func (s *Store) releaseLock() {
	_ = os.Remove(s.lockPath())
}

// Open acquires the data dir lock and creates the directory for a
// session starting at the given time. The session id is the start
// timestamp.
func (s *Store) Open(start time.Time) (*Session, error) {
	if err := s.acquireLock(); err != nil {
		return nil, err
	}

	id := start.Format(dirTimeFormat)
	dir := filepath.Join(s.sessions, id)
	if err := os.Mkdir(dir, 0o700); err != nil {
		s.releaseLock()
		return nil, fmt.Errorf("create session directory: %w", err)
	}
	if err := os.Mkdir(filepath.Join(dir, shotsDirName), 0o700); err != nil {
		s.releaseLock()
		return nil, fmt.Errorf("create screenshots directory: %w", err)
	}

	log, err := os.OpenFile(filepath.Join(dir, logName), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		s.releaseLock()
		return nil, fmt.Errorf("open event log: %w", err)
	}

	sess := &Session{
		store:   s,
		id:      id,
		dir:     dir,
		started: start,
		log:     log,
		enc:     json.NewEncoder(log),
		lastTS:  start,
	}
	if err := writeManifest(dir, sess.manifest()); err != nil {
		_ = log.Close()
		s.releaseLock()
		return nil, err
	}
	return sess, nil
}

// List returns the manifests of every session, newest first.
// Directories without a readable manifest are skipped.
func (s *Store) List() ([]Manifest, error) {
	entries, err := os.ReadDir(s.sessions)
	if err != nil {
		return nil, fmt.Errorf("read sessions directory: %w", err)
	}

	var out []Manifest
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		m, err := readManifest(filepath.Join(s.sessions, e.Name()))
		if err != nil {
			continue
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	return out, nil
}

// ReadLog re-parses a session's event log. Every line must decode; a
// malformed line is reported with its number.
func (s *Store) ReadLog(id string) ([]Event, error) {
	f, err := os.Open(filepath.Join(s.sessions, id, logName))
	if err != nil {
		return nil, fmt.Errorf("open event log: %w", err)
	}
	defer f.Close()

	var events []Event
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var ev Event
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
			return nil, fmt.Errorf("decode log line %d: %w", line, err)
		}
		events = append(events, ev)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan event log: %w", err)
	}
	return events, nil
}

// Session is one open recording. A single goroutine owns the write
// path; the mutex only guards against a late Append racing Finalize
// during shutdown.
type Session struct {
	store   *Store
	id      string
	dir     string
	started time.Time

	mu        sync.Mutex
	log       *os.File
	enc       *json.Encoder
	lastTS    time.Time
	events    int
	shots     int
	finalized bool
}

// ID returns the session id (the formatted start timestamp).
func (s *Session) ID() string { return s.id }

// Dir returns the session directory.
func (s *Session) Dir() string { return s.dir }

// StartedAt returns the session start time.
func (s *Session) StartedAt() time.Time { return s.started }

// Counts returns the number of events appended and frames written.
func (s *Session) Counts() (events, screenshots int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.events, s.shots
}

// Append writes one record to the event log. Timestamps are clamped so
// the persisted log is non-decreasing even if producers raced by a few
// microseconds.
func (s *Session) Append(ev Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finalized {
		return ErrFinalized
	}

	if ev.TS.Before(s.lastTS) {
		ev.TS = s.lastTS
	} else {
		s.lastTS = ev.TS
	}

	if err := s.enc.Encode(ev); err != nil {
		return fmt.Errorf("append event: %w (%v)", ErrWriteFailed, err)
	}
	s.events++
	return nil
}

// SaveScreenshot encodes a frame into the screenshots directory, named
// by timestamp and trigger reason, and returns its path relative to the
// session dir. The caller appends the matching screenshot record.
func (s *Session) SaveScreenshot(ts time.Time, reason string, img image.Image) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finalized {
		return "", ErrFinalized
	}

	base := fmt.Sprintf("%s_%s", ts.Format(shotTimeFormat), reason)
	rel := filepath.Join(shotsDirName, base+".jpg")

	// same millisecond and reason twice is rare but possible
	var f *os.File
	var err error
	for i := 0; i < 100; i++ {
		f, err = os.OpenFile(filepath.Join(s.dir, rel), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
		if err == nil {
			break
		}
		if !errors.Is(err, os.ErrExist) {
			return "", fmt.Errorf("create screenshot: %w (%v)", ErrWriteFailed, err)
		}
		rel = filepath.Join(shotsDirName, fmt.Sprintf("%s-%d.jpg", base, i+2))
	}
	if err != nil {
		return "", fmt.Errorf("create screenshot: %w (%v)", ErrWriteFailed, err)
	}

	if err := jpeg.Encode(f, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("encode screenshot: %w (%v)", ErrWriteFailed, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close screenshot: %w (%v)", ErrWriteFailed, err)
	}
	s.shots++
	return rel, nil
}

// Finalize closes the log, rewrites the manifest with the end time and
// reason, and releases the data dir lock. It succeeds at most once;
// later calls return ErrFinalized and every later write is refused.
func (s *Session) Finalize(end time.Time, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finalized {
		return ErrFinalized
	}
	s.finalized = true

	var first error
	if err := s.log.Sync(); err != nil && first == nil {
		first = fmt.Errorf("sync event log: %w (%v)", ErrWriteFailed, err)
	}
	if err := s.log.Close(); err != nil && first == nil {
		first = fmt.Errorf("close event log: %w (%v)", ErrWriteFailed, err)
	}

	m := s.manifest()
	m.EndedAt = &end
	m.Reason = reason
	if err := writeManifest(s.dir, m); err != nil && first == nil {
		first = err
	}

	s.store.releaseLock()
	return first
}

func (s *Session) manifest() Manifest {
	return Manifest{
		ID:              s.id,
		Dir:             s.dir,
		StartedAt:       s.started,
		EventCount:      s.events,
		ScreenshotCount: s.shots,
	}
}

// writeManifest writes session.json atomically via temp file + rename.
func writeManifest(dir string, m Manifest) error {
	payload, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}

	tmp, err := os.CreateTemp(dir, manifestName+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp manifest: %w (%v)", ErrWriteFailed, err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(append(payload, '\n')); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp manifest: %w (%v)", ErrWriteFailed, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp manifest: %w (%v)", ErrWriteFailed, err)
	}
	if err := os.Rename(tmpPath, filepath.Join(dir, manifestName)); err != nil {
		return fmt.Errorf("rename manifest: %w (%v)", ErrWriteFailed, err)
	}
	return nil
}

func readManifest(dir string) (Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, manifestName))
	if err != nil {
		return Manifest{}, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("decode manifest: %w", err)
	}
	return m, nil
}
