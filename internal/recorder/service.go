package recorder

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"deskrec/internal/config"
	"deskrec/internal/models"
	"deskrec/internal/scroll"
	"deskrec/internal/session"
	"deskrec/internal/watchdog"
	"deskrec/pkg/platform"
)

const sweepInterval = 250 * time.Millisecond

// Index receives derived session metadata. The event log is the source
// of truth; index failures are logged and never interrupt recording.
type Index interface {
	CreateSession(rec *models.SessionRecord) error
	FinalizeSession(id string, end time.Time, reason string, events, screenshots int) error
	CreateAppUsage(rows []models.AppUsage) error
	CreateCaptureError(e *models.CaptureError) error
}

// Status is a point-in-time snapshot of the recorder for the CLI and
// the HTTP API.
type Status struct {
	Running         bool      `json:"running"`
	SessionID       string    `json:"session_id,omitempty"`
	SessionDir      string    `json:"session_dir,omitempty"`
	StartedAt       time.Time `json:"started_at"`
	DisplayServer   string    `json:"display_server"`
	Watchdog        string    `json:"watchdog"`
	LastActivity    time.Time `json:"last_activity"`
	CurrentApp      string    `json:"current_app,omitempty"`
	CurrentTitle    string    `json:"current_title,omitempty"`
	Events          int       `json:"events"`
	Screenshots     int       `json:"screenshots"`
	OpenScrolls     int       `json:"open_scroll_sessions"`
	SkippedFrames   int       `json:"skipped_duplicate_frames"`
	CaptureFailures int       `json:"capture_failures"`
}

type stopCause struct {
	reason string
	err    error
}

type appUsage struct {
	seconds  float64
	switches int
}

// Service is the capture loop. Focus polling, raw input, the periodic
// screenshot timer and the scroll sweep timer each run as producers
// feeding one time-ordered queue; a single consumer owns the session,
// the scroll filter and the usage accounting.
type Service struct {
	config *config.Config
	caps   platform.Capabilities
	store  *session.Store
	index  Index

	filter *scroll.Filter
	dog    *watchdog.Watchdog
	queue  *queue
	dedupe *deduper

	abortCh  chan error // consumer-detected fatal store failures
	stopCh   chan struct{}
	stopOnce sync.Once

	// consumer-owned, never read outside the consuming path
	current    *platform.Window
	lastSwitch time.Time
	usage      map[string]*appUsage
	broken     bool

	// snapshot for Status, guarded by mu
	mu          sync.Mutex
	running     bool
	sess        *session.Session
	statApp     string
	statTitle   string
	statScrolls int
	statSkipped int
	statErrors  int
}

// New wires a capture loop from the configuration and the selected
// capabilities. The window provider must already be restricted to the
// selected set.
func New(cfg *config.Config, caps platform.Capabilities, store *session.Store, index Index) (*Service, error) {
	filter, err := scroll.New(scroll.Options{
		Debounce:       cfg.Scroll.Debounce,
		MinDistance:    cfg.Scroll.MinDistance,
		MaxFrequency:   cfg.Scroll.MaxFrequency,
		SessionTimeout: cfg.Scroll.SessionTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("invalid scroll filter configuration: %w", err)
	}

	dog, err := watchdog.New(watchdog.Options{
		IdleAfter:         cfg.Watchdog.IdleAfter,
		InactivityTimeout: cfg.Watchdog.InactivityTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("invalid watchdog configuration: %w", err)
	}

	return &Service{
		config:  cfg,
		caps:    caps,
		store:   store,
		index:   index,
		filter:  filter,
		dog:     dog,
		queue:   newQueue(),
		dedupe:  newDeduper(cfg.Capture.DedupeDistance),
		abortCh: make(chan error, 1),
		stopCh:  make(chan struct{}),
		usage:   make(map[string]*appUsage),
	}, nil
}

// Start opens a session and runs the capture loop until the context is
// cancelled, the watchdog expires, the input source dies, or the store
// fails. It blocks for the lifetime of the recording and returns nil
// for a clean stop (external stop or inactivity timeout).
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("recorder is already running")
	}
	s.running = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	start := time.Now()
	sess, err := s.store.Open(start)
	if err != nil {
		return fmt.Errorf("failed to open session: %w", err)
	}
	s.mu.Lock()
	s.sess = sess
	s.mu.Unlock()
	s.lastSwitch = start

	if err := s.index.CreateSession(&models.SessionRecord{
		ID:            sess.ID(),
		Dir:           sess.Dir(),
		StartedAt:     start,
		DisplayServer: s.caps.DisplayServer,
	}); err != nil {
		log.Printf("Failed to index session: %v", err)
	}

	log.Printf("Recording session %s started (display server: %s)", sess.ID(), s.caps.DisplayServer)

	s.dog.Start()
	defer s.dog.Stop()

	pctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	inputErr := make(chan error, 1)
	wg.Add(4)
	go s.pollFocus(pctx, &wg)
	go s.streamInput(pctx, &wg, inputErr)
	go s.tickShots(pctx, &wg)
	go s.tickSweeps(pctx, &wg)

	// The supervisor turns the first stop condition into a cause, stops
	// the producers, and only then closes the queue so the consumer can
	// drain every event already enqueued.
	causeCh := make(chan stopCause, 1)
	go func() {
		var c stopCause
		select {
		case <-ctx.Done():
			log.Println("Recorder stopped by signal")
			c = stopCause{reason: session.ReasonUserStopped}
		case <-s.stopCh:
			log.Println("Recorder stopped")
			c = stopCause{reason: session.ReasonUserStopped}
		case <-s.dog.Expired():
			log.Printf("Inactivity timeout after %v, terminating", s.config.Watchdog.InactivityTimeout)
			c = stopCause{reason: session.ReasonInactivityTimeout}
		case err := <-inputErr:
			log.Printf("Input source failed: %v", err)
			c = stopCause{reason: session.ReasonUserStopped, err: err}
		case err := <-s.abortCh:
			log.Printf("Session store failed: %v", err)
			c = stopCause{reason: session.ReasonUserStopped, err: err}
		}
		causeCh <- c
		cancel()
		wg.Wait()
		s.queue.close()
	}()

	for {
		it, ok := s.queue.pop()
		if !ok {
			break
		}
		s.apply(it)
	}

	c := <-causeCh
	return s.finalize(c)
}

// Stop ends the recording as if an external stop signal arrived.
func (s *Service) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

// IsRunning reports whether a capture loop is active.
func (s *Service) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Status snapshots the recorder state.
func (s *Service) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{
		Running:         s.running,
		DisplayServer:   s.caps.DisplayServer,
		CurrentApp:      s.statApp,
		CurrentTitle:    s.statTitle,
		OpenScrolls:     s.statScrolls,
		SkippedFrames:   s.statSkipped,
		CaptureFailures: s.statErrors,
	}
	if s.sess != nil {
		st.SessionID = s.sess.ID()
		st.SessionDir = s.sess.Dir()
		st.StartedAt = s.sess.StartedAt()
		st.Events, st.Screenshots = s.sess.Counts()
	}
	if s.running {
		st.Watchdog = string(s.dog.State())
		st.LastActivity = s.dog.LastActivity()
	}
	return st
}

// ----- producers -----

func (s *Service) pollFocus(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	var last *platform.Window
	poll := func() {
		w, err := s.caps.Windows.ActiveWindow()
		if err != nil {
			log.Printf("Focus poll failed: %v", err)
			return
		}
		if platform.Same(last, w) {
			return
		}
		last = w
		s.queue.push(item{ts: time.Now(), kind: itemFocus, focus: w})
	}

	poll()
	ticker := time.NewTicker(s.config.Capture.FocusPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			poll()
		}
	}
}

func (s *Service) streamInput(ctx context.Context, wg *sync.WaitGroup, fatal chan<- error) {
	defer wg.Done()

	err := s.caps.Input.Stream(ctx, func(ev platform.InputEvent) error {
		now := time.Now()
		ev.Time = now
		// raw input is user activity regardless of which window has focus
		s.dog.Touch()
		s.queue.push(item{ts: now, kind: itemInput, input: ev})
		return nil
	})
	if err != nil && ctx.Err() == nil {
		select {
		case fatal <- err:
		default:
		}
	}
}

func (s *Service) tickShots(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	ticker := time.NewTicker(s.config.Capture.ScreenshotInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.queue.push(item{ts: time.Now(), kind: itemShot})
		}
	}
}

func (s *Service) tickSweeps(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.queue.push(item{ts: time.Now(), kind: itemSweep})
		}
	}
}

// ----- consumer -----

func (s *Service) apply(it item) {
	if s.broken {
		return
	}
	switch it.kind {
	case itemFocus:
		s.applyFocus(it.ts, it.focus)
	case itemInput:
		s.applyInput(it.ts, it.input)
	case itemShot:
		s.applyShot(it.ts)
	case itemSweep:
		s.applySweep(it.ts)
	}
}

func (s *Service) applyFocus(ts time.Time, to *platform.Window) {
	if platform.Same(s.current, to) {
		return
	}

	if s.current != nil {
		if sc := s.filter.CloseWindow(s.current.ID); sc != nil {
			s.appendScroll(ts, *sc)
		}
		s.dedupe.forget(s.current.ID)
	}
	s.accrueUsage(ts, to)

	s.append(session.FocusEvent(ts, to, s.current))
	s.dog.Touch()
	s.current = to

	s.mu.Lock()
	s.statApp, s.statTitle = "", ""
	if to != nil {
		s.statApp, s.statTitle = to.App, to.Title
	}
	s.statScrolls = s.filter.Open()
	s.mu.Unlock()

	if to != nil {
		s.capture(ts, *to, session.TriggerFocus)
	}
}

func (s *Service) applyInput(ts time.Time, ev platform.InputEvent) {
	if s.current == nil {
		// activity on an unselected window keeps the watchdog fed (the
		// producer already touched it) but is never persisted
		return
	}

	switch ev.Kind {
	case platform.KeyDown:
		s.append(session.KeyEvent(ts, *s.current, "down", ev.Code))
	case platform.KeyUp:
		s.append(session.KeyEvent(ts, *s.current, "up", ev.Code))
	case platform.ButtonDown:
		s.append(session.MouseEvent(ts, *s.current, "down", ev.Button, ev.X, ev.Y))
	case platform.ButtonUp:
		s.append(session.MouseEvent(ts, *s.current, "up", ev.Button, ev.X, ev.Y))
	case platform.Scroll:
		s.filter.Observe(*s.current, ts, ev.Delta)
		s.mu.Lock()
		s.statScrolls = s.filter.Open()
		s.mu.Unlock()
	}
}

func (s *Service) applyShot(ts time.Time) {
	if s.current == nil {
		return
	}
	s.capture(ts, *s.current, session.TriggerPeriodic)
}

func (s *Service) applySweep(ts time.Time) {
	for _, sc := range s.filter.Sweep(ts) {
		s.appendScroll(ts, sc)
	}
	s.mu.Lock()
	s.statScrolls = s.filter.Open()
	s.mu.Unlock()
}

// capture images one window and stores the frame. Capture failures are
// non-fatal: logged, indexed, skipped.
func (s *Service) capture(ts time.Time, w platform.Window, reason string) {
	frames, err := s.caps.Screens.Capture([]platform.Window{w})
	if err != nil {
		s.captureFailed(ts, w, err)
		return
	}
	img, ok := frames[w.ID]
	if !ok {
		s.captureFailed(ts, w, platform.ErrCaptureUnavailable)
		return
	}

	img = shrink(img, s.config.Capture.MaxImageWidth)
	if reason == session.TriggerPeriodic && !s.dedupe.keep(w.ID, img) {
		s.mu.Lock()
		s.statSkipped++
		s.mu.Unlock()
		return
	}

	rel, err := s.sess.SaveScreenshot(ts, reason, img)
	if err != nil {
		s.fatal(err)
		return
	}
	s.append(session.ScreenshotEvent(ts, w, rel, reason))
}

func (s *Service) captureFailed(ts time.Time, w platform.Window, err error) {
	log.Printf("Screenshot of %s skipped: %v", w.App, err)
	s.mu.Lock()
	s.statErrors++
	s.mu.Unlock()

	if ierr := s.index.CreateCaptureError(&models.CaptureError{
		Timestamp: ts,
		SessionID: s.sess.ID(),
		AppName:   w.App,
		Message:   err.Error(),
	}); ierr != nil {
		log.Printf("Failed to index capture error: %v", ierr)
	}
}

func (s *Service) append(ev session.Event) {
	if s.broken {
		return
	}
	if err := s.sess.Append(ev); err != nil {
		s.fatal(err)
	}
}

func (s *Service) appendScroll(ts time.Time, sc scroll.Session) {
	s.append(session.ScrollEvent(ts, sc.Window, sc.Start, sc.End, sc.TotalDelta, sc.EventCount))
}

// accrueUsage charges the time since the last focus switch to the app
// that held focus, and counts the switch for the app gaining it.
func (s *Service) accrueUsage(ts time.Time, to *platform.Window) {
	if s.current != nil {
		u := s.usageFor(s.current.App)
		u.seconds += ts.Sub(s.lastSwitch).Seconds()
	}
	if to != nil {
		s.usageFor(to.App).switches++
	}
	s.lastSwitch = ts
}

func (s *Service) usageFor(app string) *appUsage {
	u, ok := s.usage[app]
	if !ok {
		u = &appUsage{}
		s.usage[app] = u
	}
	return u
}

// fatal records a store failure, stops further writes and asks the
// supervisor to shut the loop down.
func (s *Service) fatal(err error) {
	if errors.Is(err, session.ErrFinalized) {
		return
	}
	s.broken = true
	select {
	case s.abortCh <- err:
	default:
	}
}

// finalize flushes the scroll filter, closes the session and writes the
// derived index rows.
func (s *Service) finalize(c stopCause) error {
	end := time.Now()

	for _, sc := range s.filter.CloseAll() {
		s.appendScroll(end, sc)
	}
	s.accrueUsage(end, nil)

	events, shots := s.sess.Counts()
	if err := s.sess.Finalize(end, c.reason); err != nil {
		log.Printf("Failed to finalize session: %v", err)
		if c.err == nil {
			c.err = err
		}
	}

	var rows []models.AppUsage
	for app, u := range s.usage {
		rows = append(rows, models.AppUsage{
			SessionID:  s.sess.ID(),
			AppName:    app,
			Seconds:    u.seconds,
			FocusCount: u.switches,
		})
	}
	if len(rows) > 0 {
		if err := s.index.CreateAppUsage(rows); err != nil {
			log.Printf("Failed to index app usage: %v", err)
		}
	}
	if err := s.index.FinalizeSession(s.sess.ID(), end, c.reason, events, shots); err != nil {
		log.Printf("Failed to index session end: %v", err)
	}

	log.Printf("Recording session %s finalized: %s (%d events, %d screenshots)",
		s.sess.ID(), c.reason, events, shots)
	return c.err
}
