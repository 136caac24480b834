package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/huddlenotify/huddlenotify/internal/config"
	"github.com/huddlenotify/huddlenotify/internal/daemon"
	"github.com/huddlenotify/huddlenotify/internal/database"
	"github.com/huddlenotify/huddlenotify/internal/logging"
	"github.com/huddlenotify/huddlenotify/internal/notifier"
	"github.com/huddlenotify/huddlenotify/internal/reporter"
	"github.com/huddlenotify/huddlenotify/internal/settings"
	"github.com/huddlenotify/huddlenotify/pkg/utils"
)

var (
	version = "0.1.0"
	commit  = "unknown"
	date    = "unknown"
)

const appName = "huddlenotify"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]

	switch command {
	case "start":
		startDaemon(false)
	case "serve":
		startDaemon(true)
	case "run":
		runForeground()
	case "stop":
		stopDaemon()
	case "status":
		showStatus()
	case "report":
		generateReport()
	case "test-notify":
		testNotify()
	case "settings":
		manageSettings(os.Args[2:])
	case "clear":
		clearDatabase()
	case "version":
		fmt.Printf("%s version %s\n", appName, version)
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
	fmt.Printf(`huddlenotify - Desktop notifications when someone starts speaking in a Slack huddle

Usage:
  huddlenotify <command> [options]

Commands:
  start                   Start the watcher daemon
  serve                   Start the watcher daemon with the web API
  run                     Run watcher and web API in the foreground
  stop                    Stop the daemon
  status                  Show daemon status and current call state
  report [period] [--json]
                          Speaker report (period: day, week, month)
  test-notify             Show a test notification
  settings [key=value...] Show or change settings
                          (enabled, soundEnabled, showParticipantName,
                           notificationCooldown in ms)
  clear [days]            Delete history (only entries older than days if given)
  version                 Show version information
  help                    Show this help message

Examples:
  huddlenotify serve
  huddlenotify settings soundEnabled=false notificationCooldown=5000
  huddlenotify report week --json
  huddlenotify stop

Browser:
  Start Chrome or Chromium with --remote-debugging-port=9222 and open Slack.

Environment Variables:
  HUDDLENOTIFY_CONFIG             YAML config file
  HUDDLENOTIFY_DB_PATH            Database file path
  HUDDLENOTIFY_DEVTOOLS_URL       Browser DevTools endpoint
  HUDDLENOTIFY_TARGET_MATCH       Substring of the Slack tab URL
  HUDDLENOTIFY_SNAPSHOT_PATH      Replay an HTML file instead of a live tab
  HUDDLENOTIFY_BACKSTOP_INTERVAL  Periodic rescan in seconds (1-600)
  HUDDLENOTIFY_CHIME              Play an extra chime (true/false)
  HUDDLENOTIFY_WINDOW_TITLE       Browser window title to raise on click
  HUDDLENOTIFY_PID_FILE           PID file path
  HUDDLENOTIFY_WEB_PORT           Web API port
  HUDDLENOTIFY_LOG_LEVEL          debug, info, warn, error

Version: %s
`, version)
}

func loadConfig() *config.Config {
	cfg := config.New()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	return cfg
}

func startDaemon(withWeb bool) {
	cfg := loadConfig()

	dm := daemon.New(cfg.Daemon.PIDFile)
	running, pid, err := dm.IsRunning()
	if err != nil {
		log.Fatalf("Failed to check daemon status: %v", err)
	}
	if running {
		log.Fatalf("Daemon is already running (PID: %d)", pid)
	}

	if !daemon.IsChild() {
		pid, err := daemon.Spawn()
		if err != nil {
			log.Fatalf("%v", err)
		}
		fmt.Printf("Daemon started successfully (PID: %d)\n", pid)
		if withWeb {
			fmt.Printf("Web API available at: http://%s:%d\n", cfg.Web.Host, cfg.Web.Port)
		}
		fmt.Printf("Logs: %s\n", logging.Path(cfg.Log))
		return
	}

	logger, closer, err := logging.Setup(cfg.Log, true)
	if err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}
	defer closer.Close()

	if err := dm.WritePID(); err != nil {
		logger.Fatal().Err(err).Msg("failed to write PID file")
	}
	defer dm.RemovePID()

	runWithSignals(cfg, logger, withWeb)
}

func runForeground() {
	cfg := loadConfig()
	logger, closer, err := logging.Setup(cfg.Log, false)
	if err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}
	defer closer.Close()

	runWithSignals(cfg, logger, true)
}

func runWithSignals(cfg *config.Config, logger zerolog.Logger, withWeb bool) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info().Str("version", version).Bool("web", withWeb).Msg("starting huddlenotify")
	if err := runApp(ctx, cfg, logger, withWeb); err != nil {
		logger.Error().Err(err).Msg("stopped with error")
		return
	}
	logger.Info().Msg("stopped")
}

func stopDaemon() {
	cfg := config.New()
	dm := daemon.New(cfg.Daemon.PIDFile)

	running, pid, err := dm.IsRunning()
	if err != nil {
		log.Fatalf("Failed to check daemon status: %v", err)
	}

	if !running {
		fmt.Println("Daemon is not running")
		return
	}

	fmt.Printf("Stopping daemon (PID: %d)...\n", pid)
	if err := dm.Stop(); err != nil {
		log.Fatalf("Failed to stop daemon: %v", err)
	}

	fmt.Println("Daemon stopped successfully")
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
		fmt.Printf("Database: %s\n", cfg.Database.Path)
		fmt.Printf("Logs: %s\n", logging.Path(cfg.Log))
	}

	var status struct {
		Settings       settings.Settings `json:"settings"`
		LastNotifiedAt time.Time         `json:"last_notified_at"`
		Watcher        *struct {
			InCall       bool     `json:"in_call"`
			Landmark     string   `json:"landmark"`
			Scans        int64    `json:"scans"`
			Notified     int64    `json:"notified"`
			Speaking     int      `json:"speaking"`
			Strategies   []string `json:"strategies"`
			LastError    string   `json:"last_error"`
			Participants []struct {
				Name       string `json:"name"`
				IsSpeaking bool   `json:"is_speaking"`
			} `json:"participants"`
		} `json:"watcher"`
	}
	if err := apiRequest(cfg, http.MethodGet, "/api/status", nil, &status); err != nil {
		return
	}

	s := status.Settings
	fmt.Printf("\nSettings:\n")
	fmt.Printf("  Enabled: %v\n  Sound: %v\n  Show Name: %v\n  Cooldown: %v\n",
		s.Enabled, s.SoundEnabled, s.ShowParticipantName, s.NotificationCooldown)

	if w := status.Watcher; w != nil {
		fmt.Printf("\nCall:\n")
		fmt.Printf("  In Call: %v\n", w.InCall)
		fmt.Printf("  Scans: %d, Notified: %d\n", w.Scans, w.Notified)
		fmt.Printf("  Speaking: %d of %d\n", w.Speaking, len(w.Participants))
		fmt.Printf("  Strategies: %s\n", strings.Join(w.Strategies, " > "))
		for _, p := range w.Participants {
			state := "silent"
			if p.IsSpeaking {
				state = "audio on"
			}
			fmt.Printf("  - %s (%s)\n", p.Name, state)
		}
		if w.LastError != "" {
			fmt.Printf("  Last Error: %s\n", w.LastError)
		}
	}
	fmt.Printf("\nLast Notification: %s\n", utils.Ago(status.LastNotifiedAt, time.Now()))
}

func generateReport() {
	periodType := "day"
	jsonOutput := false
	for _, arg := range os.Args[2:] {
		if arg == "--json" {
			jsonOutput = true
			continue
		}
		periodType = arg
	}

	cfg := config.New()

	db, err := database.Connect(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.Initialize(); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	rep := reporter.New(database.NewRepository(db))

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

// testNotify goes through a running daemon when one is reachable so that
// clicks on the notification are handled.
func testNotify() {
	cfg := config.New()

	if err := apiRequest(cfg, http.MethodPost, "/api/notifications/test", nil, nil); err == nil {
		fmt.Println("Test notification sent")
		return
	}

	logger := logging.New(os.Stderr, cfg.Log.Level)
	desktop, err := notifier.NewDBusDesktop(cfg.Notifier.AppName, cfg.Notifier.IconPath, cfg.Notifier.ExpireTimeout, logger)
	if err != nil {
		log.Fatalf("Failed to connect to notification server: %v", err)
	}
	defer desktop.Shutdown()

	sound := settings.Defaults().SoundEnabled
	if db, err := database.Connect(cfg.Database.Path); err == nil {
		if values, err := database.NewRepository(db).GetSettings(); err == nil {
			sound = settings.FromValues(values).SoundEnabled
		}
		db.Close()
	}

	gateway := notifier.NewGateway(desktop, nil, nil, logger)
	if cfg.Notifier.Chime {
		gateway.SetChime(notifier.NewPulseChime(logger))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := gateway.SendTest(ctx, sound); err != nil {
		log.Fatalf("Failed to send test notification: %v", err)
	}
	fmt.Println("Test notification sent")
	if cfg.Notifier.Chime && sound {
		// The chime plays asynchronously.
		time.Sleep(time.Second)
	}
}

func manageSettings(args []string) {
	cfg := config.New()

	db, err := database.Connect(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.Initialize(); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	store := settings.NewStore(database.NewRepository(db), zerolog.Nop())
	current := store.Load()

	if len(args) == 0 {
		printSettings(current)
		return
	}

	next := current
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok {
			log.Fatalf("Expected key=value, got %q", arg)
		}
		next, err = next.With(key, value)
		if err != nil {
			log.Fatalf("%v", err)
		}
	}

	// A running daemon keeps its settings in memory; let it save and push.
	if err := apiRequest(cfg, http.MethodPut, "/api/settings", next, nil); err == nil {
		fmt.Println("Settings updated (applied to running daemon)")
		printSettings(next)
		return
	}

	if err := store.Save(next); err != nil {
		log.Fatalf("Failed to save settings: %v", err)
	}
	fmt.Println("Settings updated")
	if running, _, _ := daemon.New(cfg.Daemon.PIDFile).IsRunning(); running {
		fmt.Printf("The running daemon applies them at its next backstop scan (within %v)\n", cfg.Watcher.BackstopInterval)
	}
	printSettings(next)
}

func printSettings(s settings.Settings) {
	fmt.Printf("%s=%v\n", settings.KeyEnabled, s.Enabled)
	fmt.Printf("%s=%v\n", settings.KeySoundEnabled, s.SoundEnabled)
	fmt.Printf("%s=%v\n", settings.KeyShowParticipantName, s.ShowParticipantName)
	fmt.Printf("%s=%d\n", settings.KeyCooldown, s.NotificationCooldown.Milliseconds())
}

func clearDatabase() {
	cfg := config.New()

	var olderThan int
	if len(os.Args) > 2 {
		days, err := strconv.Atoi(os.Args[2])
		if err != nil || days <= 0 {
			log.Fatalf("Invalid number of days: %s", os.Args[2])
		}
		olderThan = days
	}

	prompt := "This will delete all notification history. Are you sure? (yes/no): "
	if olderThan > 0 {
		prompt = fmt.Sprintf("This will delete history older than %d days. Are you sure? (yes/no): ", olderThan)
	}
	fmt.Print(prompt)
	var response string
	fmt.Scanln(&response)

	if response != "yes" && response != "y" {
		fmt.Println("Operation cancelled")
		return
	}

	db, err := database.Connect(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	repo := database.NewRepository(db)

	if olderThan > 0 {
		n, err := repo.DeleteOldEvents(time.Now().AddDate(0, 0, -olderThan))
		if err != nil {
			log.Fatalf("Failed to delete old events: %v", err)
		}
		fmt.Printf("Deleted %d events\n", n)
		return
	}

	if err := repo.Clear(); err != nil {
		log.Fatalf("Failed to clear database: %v", err)
	}

	fmt.Println("Database cleared successfully")
}

// apiRequest talks to a running daemon's web API.
func apiRequest(cfg *config.Config, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, fmt.Sprintf("http://%s:%d%s", cfg.Web.Host, cfg.Web.Port, path), reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s %s: %s: %s", method, path, resp.Status, strings.TrimSpace(string(msg)))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
