package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"deskrec/internal/config"
	"deskrec/internal/daemon"
	"deskrec/internal/database"
	"deskrec/internal/recorder"
	"deskrec/internal/reporter"
	"deskrec/internal/selection"
	"deskrec/internal/session"
	"deskrec/internal/web"
	"deskrec/pkg/detector"
	"deskrec/pkg/utils"
)

var (
	version = "0.1.0"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]

	switch command {
	case "record":
		record(false, false)
	case "start":
		record(true, false)
	case "serve":
		record(true, true)
	case "stop":
		stopDaemon()
	case "status":
		showStatus()
	case "sessions":
		listSessions()
	case "report":
		generateReport()
	case "clear":
		clearIndex()
	case "version":
		fmt.Printf("deskrec version %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", date)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Printf(`deskrec - Desktop activity recorder

Usage:
  deskrec <command> [options]

Commands:
  record             Record in the foreground until stopped
  start              Start the recording daemon
  serve              Start the daemon with the status web API
  stop               Stop the recording daemon
  status             Show daemon status and the current focused window
  sessions           List recorded sessions
  report [period]    Per-application usage report (period: day, week, month)
  clear              Clear the session index database
  version            Show version information
  help               Show this help message

Recording options (record, start, serve):
  -windows LIST        Comma-separated application names to record
  -all                 Record every window
  -debounce SECONDS    Scroll debounce (default 0.5)
  -min-distance UNITS  Scroll minimum distance (default 5.0)
  -max-frequency N     Scroll samples per second cap (default 10)
  -session-timeout S   Scroll session timeout (default 2.0)
  -inactivity S        Inactivity auto-stop in seconds (default 2700)
  -interval S          Periodic screenshot interval in seconds (default 30)
  -input BACKEND       Input backend: auto, x11 or evdev
  -data-dir PATH       Session data directory
  -port N              Web API port (serve only)

Examples:
  deskrec record -windows firefox,code
  deskrec start -all -inactivity 1800
  deskrec serve
  deskrec report week --json
  deskrec stop

Environment Variables:
  DESKREC_DATA_DIR            Session data directory
  DESKREC_SELECTION_FILE      Selected-application file path
  DESKREC_SCROLL_DEBOUNCE     Scroll debounce seconds
  DESKREC_INACTIVITY_TIMEOUT  Inactivity timeout seconds
  DESKREC_INPUT_BACKEND       Input backend (auto, x11, evdev)
  DESKREC_PID_FILE            PID file path

Version: %s
`, version)
}

// recordFlags parses the recording verbs' threshold flags into cfg.
func recordFlags(verb string, cfg *config.Config) int {
	fs := flag.NewFlagSet(verb, flag.ExitOnError)

	windows := fs.String("windows", "", "comma-separated application names to record")
	all := fs.Bool("all", false, "record every window")
	debounce := fs.Float64("debounce", cfg.Scroll.Debounce.Seconds(), "scroll debounce in seconds")
	minDistance := fs.Float64("min-distance", cfg.Scroll.MinDistance, "scroll minimum distance")
	maxFrequency := fs.Int("max-frequency", cfg.Scroll.MaxFrequency, "scroll samples per second cap")
	sessionTimeout := fs.Float64("session-timeout", cfg.Scroll.SessionTimeout.Seconds(), "scroll session timeout in seconds")
	inactivity := fs.Int("inactivity", int(cfg.Watchdog.InactivityTimeout.Seconds()), "inactivity auto-stop in seconds")
	interval := fs.Int("interval", int(cfg.Capture.ScreenshotInterval.Seconds()), "periodic screenshot interval in seconds")
	input := fs.String("input", cfg.Capture.InputBackend, "input backend: auto, x11 or evdev")
	dataDir := fs.String("data-dir", cfg.Storage.DataDir, "session data directory")
	port := fs.Int("port", 0, "web API port")

	fs.Parse(os.Args[2:])

	if *windows != "" {
		cfg.SetWindows(*windows)
	}
	if *all {
		cfg.Capture.AllWindows = true
	}
	cfg.Scroll.Debounce = time.Duration(*debounce * float64(time.Second))
	cfg.Scroll.MinDistance = *minDistance
	cfg.Scroll.MaxFrequency = *maxFrequency
	cfg.Scroll.SessionTimeout = time.Duration(*sessionTimeout * float64(time.Second))
	cfg.Watchdog.InactivityTimeout = time.Duration(*inactivity) * time.Second
	cfg.Capture.ScreenshotInterval = time.Duration(*interval) * time.Second
	cfg.Capture.InputBackend = *input
	if *dataDir != cfg.Storage.DataDir {
		cfg.SetDataDir(*dataDir)
	}

	return *port
}

// record runs a recording session, optionally daemonized and with the
// web API alongside.
func record(daemonize, withWeb bool) {
	verb := "record"
	if daemonize {
		verb = "start"
	}
	if withWeb {
		verb = "serve"
	}

	cfg := config.New()
	customPort := recordFlags(verb, cfg)
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	dm := daemon.New(cfg.Daemon.PIDFile)
	running, pid, err := dm.IsRunning()
	if err != nil {
		log.Fatalf("Failed to check daemon status: %v", err)
	}
	if running {
		log.Fatalf("Recorder is already running (PID: %d)", pid)
	}

	if daemonize && !daemon.IsChild() {
		pid, err := daemon.Spawn(cfg.Daemon.LogFile)
		if err != nil {
			log.Fatalf("Failed to start daemon: %v", err)
		}
		fmt.Printf("Recorder started (PID: %d)\n", pid)
		if withWeb {
			fmt.Printf("Web API: http://%s:%d\n", cfg.Web.Host, webPort(cfg, customPort))
		}
		fmt.Printf("Logs: %s\n", cfg.Daemon.LogFile)
		return
	}

	runRecorder(cfg, dm, withWeb, customPort)
}

func webPort(cfg *config.Config, customPort int) int {
	if customPort > 0 {
		return customPort
	}
	return cfg.Web.Port
}

func runRecorder(cfg *config.Config, dm *daemon.Daemon, withWeb bool, customPort int) {
	if daemon.IsChild() {
		log.SetPrefix("deskrec ")
	}

	sel, err := selection.Load(cfg)
	if err != nil {
		log.Fatalf("Invalid window selection: %v (use -windows, -all, or the selection file %s)",
			err, cfg.Storage.SelectionFile)
	}
	log.Printf("Recording: %s", sel)

	caps, err := detector.New(cfg, sel.Allow())
	if err != nil {
		log.Fatalf("Failed to initialize platform backends: %v", err)
	}
	defer caps.Close()

	store, err := session.NewStore(cfg.Storage.DataDir)
	if err != nil {
		log.Fatalf("Failed to prepare data directory: %v", err)
	}

	dbPath, err := database.DefaultDBPath(cfg.Storage.DataDir)
	if err != nil {
		log.Fatalf("Failed to prepare index database: %v", err)
	}
	db, err := database.Connect(dbPath)
	if err != nil {
		log.Fatalf("Failed to open index database: %v", err)
	}
	defer db.Close()
	if err := db.Initialize(); err != nil {
		log.Fatalf("Failed to initialize index database: %v", err)
	}
	repo := database.NewRepository(db)

	rec, err := recorder.New(cfg, caps, store, repo)
	if err != nil {
		log.Fatalf("Failed to initialize recorder: %v", err)
	}

	if err := dm.WritePID(); err != nil {
		log.Fatalf("Failed to write PID file: %v", err)
	}
	defer dm.RemovePID()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Println("Received shutdown signal")
		cancel()
	}()

	// live selection reload while recording
	go func() {
		if err := sel.Watch(ctx, cfg.Storage.SelectionFile); err != nil {
			log.Printf("Selection watcher stopped: %v", err)
		}
	}()

	var webServer *web.Server
	if withWeb {
		rep := reporter.New(repo)
		webServer = web.NewServer(cfg, rec, repo, rep, customPort)
		go func() {
			if err := webServer.Start(); err != nil && err != http.ErrServerClosed {
				log.Printf("Web server error: %v", err)
			}
		}()
	}

	log.Printf("Configuration:\n%s", cfg.String())

	runErr := rec.Start(ctx)

	if webServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := webServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("Error shutting down web server: %v", err)
		}
		shutdownCancel()
	}

	if runErr != nil {
		log.Fatalf("Recorder failed: %v", runErr)
	}
	log.Println("Recorder stopped")
}

func stopDaemon() {
	cfg := config.New()
	dm := daemon.New(cfg.Daemon.PIDFile)

	running, pid, err := dm.IsRunning()
	if err != nil {
		log.Fatalf("Failed to check daemon status: %v", err)
	}
	if !running {
		fmt.Println("Recorder is not running")
		return
	}

	fmt.Printf("Stopping recorder (PID: %d)...\n", pid)
	if err := dm.Stop(); err != nil {
		log.Fatalf("Failed to stop recorder: %v", err)
	}
	fmt.Println("Recorder stopped")
}

func showStatus() {
	cfg := config.New()
	dm := daemon.New(cfg.Daemon.PIDFile)

	running, pid, err := dm.IsRunning()
	if err != nil {
		log.Fatalf("Failed to check daemon status: %v", err)
	}

	if !running {
		fmt.Println("Status: Not running")
	} else {
		fmt.Printf("Status: Running (PID: %d)\n", pid)
		fmt.Printf("Data Dir: %s\n", cfg.Storage.DataDir)
	}

	// probe the current window regardless, unrestricted: status is a
	// local diagnostic, nothing is recorded here
	caps, err := detector.New(cfg, nil)
	if err != nil {
		fmt.Printf("\nCould not detect current window: %v\n", err)
		return
	}
	defer caps.Close()

	fmt.Printf("\nDisplay Server: %s\n", caps.DisplayServer)

	win, err := caps.Windows.ActiveWindow()
	if err != nil {
		fmt.Printf("Could not detect current window: %v\n", err)
	} else if win == nil {
		fmt.Println("No window focused")
	} else {
		fmt.Printf("Current Window:\n")
		fmt.Printf("  App: %s\n", win.App)
		fmt.Printf("  Title: %s\n", win.Title)
		fmt.Printf("  ID: %s\n", win.ID)
	}
}

func listSessions() {
	cfg := config.New()

	dbPath, err := database.DefaultDBPath(cfg.Storage.DataDir)
	if err != nil {
		log.Fatalf("Failed to locate index database: %v", err)
	}
	db, err := database.Connect(dbPath)
	if err != nil {
		log.Fatalf("Failed to open index database: %v", err)
	}
	defer db.Close()
	if err := db.Initialize(); err != nil {
		log.Fatalf("Failed to initialize index database: %v", err)
	}

	repo := database.NewRepository(db)
	recs, err := repo.ListSessions(20)
	if err != nil {
		log.Fatalf("Failed to list sessions: %v", err)
	}
	if len(recs) == 0 {
		fmt.Println("No recorded sessions")
		return
	}

	fmt.Printf("%-17s %-20s %-10s %-8s %-8s %s\n",
		"SESSION", "STARTED", "DURATION", "EVENTS", "SHOTS", "REASON")
	for _, rec := range recs {
		duration := "active"
		reason := rec.Reason
		if rec.EndedAt != nil {
			duration = utils.FormatDuration(rec.EndedAt.Sub(rec.StartedAt))
		}
		if reason == "" {
			reason = "-"
		}
		fmt.Printf("%-17s %-20s %-10s %-8d %-8d %s\n",
			rec.ID,
			rec.StartedAt.Format("2006-01-02 15:04:05"),
			duration,
			rec.EventCount,
			rec.ScreenshotCount,
			reason)
	}
}

func generateReport() {
	periodType := "day"
	if len(os.Args) > 2 {
		periodType = os.Args[2]
	}

	jsonOutput := false
	if len(os.Args) > 3 && os.Args[3] == "--json" {
		jsonOutput = true
	}

	cfg := config.New()

	dbPath, err := database.DefaultDBPath(cfg.Storage.DataDir)
	if err != nil {
		log.Fatalf("Failed to locate index database: %v", err)
	}
	db, err := database.Connect(dbPath)
	if err != nil {
		log.Fatalf("Failed to open index database: %v", err)
	}
	defer db.Close()
	if err := db.Initialize(); err != nil {
		log.Fatalf("Failed to initialize index database: %v", err)
	}

	repo := database.NewRepository(db)
	rep := reporter.New(repo)

	report, err := rep.GenerateReport(periodType)
	if err != nil {
		log.Fatalf("Failed to generate report: %v", err)
	}

	if jsonOutput {
		jsonStr, err := rep.FormatReportJSON(report)
		if err != nil {
			log.Fatalf("Failed to format JSON: %v", err)
		}
		fmt.Println(jsonStr)
	} else {
		fmt.Println(rep.FormatReportText(report))
	}
}

func clearIndex() {
	cfg := config.New()

	fmt.Print("This will delete the session index (session directories are kept). Are you sure? (yes/no): ")
	var response string
	fmt.Scanln(&response)
	if response != "yes" && response != "y" {
		fmt.Println("Operation cancelled")
		return
	}

	dbPath, err := database.DefaultDBPath(cfg.Storage.DataDir)
	if err != nil {
		log.Fatalf("Failed to locate index database: %v", err)
	}
	db, err := database.Connect(dbPath)
	if err != nil {
		log.Fatalf("Failed to open index database: %v", err)
	}
	defer db.Close()

	repo := database.NewRepository(db)
	if err := repo.Clear(); err != nil {
		log.Fatalf("Failed to clear index: %v", err)
	}

	fmt.Println("Session index cleared")
}
