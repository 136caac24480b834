package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads KEY=VALUE pairs from the given files (default ".env")
// into the process environment. Variables that are already set win.
// Missing files are ignored.
func LoadDotEnv(files ...string) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		_ = godotenv.Load(f)
	}
}

// LoadFromEnv loads configuration from environment variables
// Environment variables override default values
func LoadFromEnv(cfg *Config) {
	// Database configuration
	if dbPath := os.Getenv("HUDDLENOTIFY_DB_PATH"); dbPath != "" {
		cfg.Database.Path = dbPath
	}

	// Browser configuration
	if url := os.Getenv("HUDDLENOTIFY_DEVTOOLS_URL"); url != "" {
		cfg.Browser.DevToolsURL = url
	}

	if match := os.Getenv("HUDDLENOTIFY_TARGET_MATCH"); match != "" {
		cfg.Browser.TargetMatch = match
	}

	if snapshot := os.Getenv("HUDDLENOTIFY_SNAPSHOT_PATH"); snapshot != "" {
		cfg.Browser.SnapshotPath = snapshot
	}

	if timeout := os.Getenv("HUDDLENOTIFY_REQUEST_TIMEOUT"); timeout != "" {
		if seconds, err := strconv.Atoi(timeout); err == nil && seconds > 0 {
			cfg.Browser.RequestTimeout = time.Duration(seconds) * time.Second
		}
	}

	// Watcher configuration
	if backstop := os.Getenv("HUDDLENOTIFY_BACKSTOP_INTERVAL"); backstop != "" {
		if seconds, err := strconv.Atoi(backstop); err == nil && seconds > 0 {
			interval := time.Duration(seconds) * time.Second
			if interval >= cfg.Watcher.MinBackstopInterval && interval <= cfg.Watcher.MaxBackstopInterval {
				cfg.Watcher.BackstopInterval = interval
			}
		}
	}

	// Notifier configuration
	if icon := os.Getenv("HUDDLENOTIFY_ICON"); icon != "" {
		cfg.Notifier.IconPath = icon
	}

	if chime := os.Getenv("HUDDLENOTIFY_CHIME"); chime != "" {
		if val, err := strconv.ParseBool(chime); err == nil {
			cfg.Notifier.Chime = val
		}
	}

	// Focus configuration
	if title := os.Getenv("HUDDLENOTIFY_WINDOW_TITLE"); title != "" {
		cfg.Focus.WindowTitle = title
	}

	// Daemon configuration
	if pidFile := os.Getenv("HUDDLENOTIFY_PID_FILE"); pidFile != "" {
		cfg.Daemon.PIDFile = pidFile
	}

	// Web configuration
	if webHost := os.Getenv("HUDDLENOTIFY_WEB_HOST"); webHost != "" {
		cfg.Web.Host = webHost
	}

	if webPort := os.Getenv("HUDDLENOTIFY_WEB_PORT"); webPort != "" {
		if port, err := strconv.Atoi(webPort); err == nil && port > 0 && port <= 65535 {
			cfg.Web.Port = port
		}
	}

	// Log configuration
	if logDir := os.Getenv("HUDDLENOTIFY_LOG_DIR"); logDir != "" {
		cfg.Log.Dir = logDir
	}

	if level := os.Getenv("HUDDLENOTIFY_LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}
}

// New creates a new Config with default values, then applies the optional
// YAML file named by HUDDLENOTIFY_CONFIG, then the environment
func New() *Config {
	LoadDotEnv()
	cfg := Default()
	if path := os.Getenv("HUDDLENOTIFY_CONFIG"); path != "" {
		_ = LoadFromFile(cfg, path)
	}
	LoadFromEnv(cfg)
	return cfg
}
