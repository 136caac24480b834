package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Config holds all application configuration
type Config struct {
	// Database configuration
	Database DatabaseConfig `yaml:"database"`

	// Browser connection configuration
	Browser BrowserConfig `yaml:"browser"`

	// Watcher configuration
	Watcher WatcherConfig `yaml:"watcher"`

	// Notifier configuration
	Notifier NotifierConfig `yaml:"notifier"`

	// Focus configuration
	Focus FocusConfig `yaml:"focus"`

	// Daemon configuration
	Daemon DaemonConfig `yaml:"daemon"`

	// Web server configuration
	Web WebConfig `yaml:"web"`

	// Log configuration
	Log LogConfig `yaml:"log"`
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	Path string `yaml:"path"` // Path to SQLite database file
}

// BrowserConfig describes how to reach the observed page
type BrowserConfig struct {
	DevToolsURL    string        `yaml:"devtools_url"`    // Remote debugging endpoint of the browser
	TargetMatch    string        `yaml:"target_match"`    // Substring a tab URL must contain
	SnapshotPath   string        `yaml:"snapshot_path"`   // Replay an HTML snapshot file instead of a live tab
	RequestTimeout time.Duration `yaml:"request_timeout"` // Timeout for a single DevTools round trip
}

// WatcherConfig holds scanning behavior configuration
type WatcherConfig struct {
	BackstopInterval    time.Duration `yaml:"backstop_interval"` // Periodic rescan independent of mutations
	MinBackstopInterval time.Duration `yaml:"-"`
	MaxBackstopInterval time.Duration `yaml:"-"`
}

// NotifierConfig holds desktop notification configuration
type NotifierConfig struct {
	AppName       string        `yaml:"app_name"`
	IconPath      string        `yaml:"icon_path"`
	Chime         bool          `yaml:"chime"`          // Play our own chime in addition to the notification
	ExpireTimeout time.Duration `yaml:"expire_timeout"` // 0 lets the notification server decide
}

// FocusConfig holds window focusing configuration
type FocusConfig struct {
	WindowTitle string `yaml:"window_title"` // Substring of the browser window title to raise
}

// DaemonConfig holds daemon process configuration
type DaemonConfig struct {
	PIDFile string `yaml:"pid_file"` // Path to PID file for daemon management
}

// WebConfig holds web server configuration
type WebConfig struct {
	Host string `yaml:"host"` // Host to bind web server to
	Port int    `yaml:"port"` // Port for web server
}

// LogConfig holds logging configuration
type LogConfig struct {
	Dir   string `yaml:"dir"`   // Directory of the daemon log file
	Level string `yaml:"level"` // debug, info, warn, error
}

// DefaultDatabasePath is ~/.config/huddlenotify/huddlenotify.db, or a file
// in the working directory when there is no home directory.
func DefaultDatabasePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "huddlenotify.db"
	}
	return filepath.Join(home, ".config", "huddlenotify", "huddlenotify.db")
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path: DefaultDatabasePath(),
		},
		Browser: BrowserConfig{
			DevToolsURL:    "http://127.0.0.1:9222",
			TargetMatch:    "slack.com",
			RequestTimeout: 5 * time.Second,
		},
		Watcher: WatcherConfig{
			BackstopInterval:    30 * time.Second,
			MinBackstopInterval: 1 * time.Second,
			MaxBackstopInterval: 10 * time.Minute,
		},
		Notifier: NotifierConfig{
			AppName: "huddlenotify",
		},
		Focus: FocusConfig{
			WindowTitle: "Slack",
		},
		Daemon: DaemonConfig{
			PIDFile: fmt.Sprintf("/tmp/huddlenotify-%d.pid", os.Getuid()),
		},
		Web: WebConfig{
			Host: "localhost",
			Port: 10000 + os.Getuid(),
		},
		Log: LogConfig{
			Dir:   os.TempDir(),
			Level: "info",
		},
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Watcher.BackstopInterval < c.Watcher.MinBackstopInterval {
		return fmt.Errorf("backstop interval (%v) cannot be less than minimum (%v)",
			c.Watcher.BackstopInterval, c.Watcher.MinBackstopInterval)
	}

	if c.Watcher.BackstopInterval > c.Watcher.MaxBackstopInterval {
		return fmt.Errorf("backstop interval (%v) cannot be greater than maximum (%v)",
			c.Watcher.BackstopInterval, c.Watcher.MaxBackstopInterval)
	}

	if c.Browser.DevToolsURL == "" && c.Browser.SnapshotPath == "" {
		return fmt.Errorf("either a DevTools URL or a snapshot path is required")
	}

	if c.Browser.RequestTimeout <= 0 {
		return fmt.Errorf("browser request timeout must be positive")
	}

	if c.Notifier.ExpireTimeout < 0 {
		return fmt.Errorf("notification expire timeout cannot be negative")
	}

	// Validate web config
	if c.Web.Port < 1 || c.Web.Port > 65535 {
		return fmt.Errorf("web port must be between 1 and 65535, got %d", c.Web.Port)
	}

	if c.Web.Host == "" {
		return fmt.Errorf("web host cannot be empty")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database path cannot be empty")
	}

	// Validate daemon config
	if c.Daemon.PIDFile == "" {
		return fmt.Errorf("PID file path cannot be empty")
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.Log.Level)
	}

	return nil
}

// SetBackstopInterval sets the backstop interval with validation
func (c *Config) SetBackstopInterval(interval time.Duration) error {
	if interval < c.Watcher.MinBackstopInterval {
		return fmt.Errorf("backstop interval cannot be less than %v", c.Watcher.MinBackstopInterval)
	}
	if interval > c.Watcher.MaxBackstopInterval {
		return fmt.Errorf("backstop interval cannot be greater than %v", c.Watcher.MaxBackstopInterval)
	}
	c.Watcher.BackstopInterval = interval
	return nil
}

// SetWebPort sets the web server port with validation
func (c *Config) SetWebPort(port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", port)
	}
	c.Web.Port = port
	return nil
}

// UseSnapshot reports whether the page comes from a snapshot file
func (c *Config) UseSnapshot() bool {
	return c.Browser.SnapshotPath != ""
}

// String returns a string representation of the config
func (c *Config) String() string {
	return fmt.Sprintf(`Configuration:
  Database:
    Path: %s
  Browser:
    DevTools URL: %s
    Target Match: %s
    Snapshot Path: %s
    Request Timeout: %v
  Watcher:
    Backstop Interval: %v
  Notifier:
    App Name: %s
    Chime: %v
  Focus:
    Window Title: %s
  Daemon:
    PID File: %s
  Web:
    Host: %s
    Port: %d
  Log:
    Dir: %s
    Level: %s`,
		c.Database.Path,
		c.Browser.DevToolsURL,
		c.Browser.TargetMatch,
		c.Browser.SnapshotPath,
		c.Browser.RequestTimeout,
		c.Watcher.BackstopInterval,
		c.Notifier.AppName,
		c.Notifier.Chime,
		c.Focus.WindowTitle,
		c.Daemon.PIDFile,
		c.Web.Host,
		c.Web.Port,
		c.Log.Dir,
		c.Log.Level,
	)
}
