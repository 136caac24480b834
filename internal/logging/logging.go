package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/huddlenotify/huddlenotify/internal/config"
)

// FileName is the daemon log file inside the configured log directory.
const FileName = "huddlenotify.log"

// New builds a console logger on w at the given level.
func New(w io.Writer, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}

	consoleWriter := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: "2006-01-02 15:04:05",
		NoColor:    true,
	}
	return zerolog.New(consoleWriter).Level(lvl).With().Timestamp().Int("pid", os.Getpid()).Logger()
}

// Setup returns a logger for the process. In daemon mode output goes to the
// log file and the returned closer must be closed on exit.
func Setup(cfg config.LogConfig, daemon bool) (zerolog.Logger, io.Closer, error) {
	if !daemon {
		return New(os.Stderr, cfg.Level), nopCloser{}, nil
	}

	if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	f, err := os.OpenFile(Path(cfg), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("failed to open log file: %w", err)
	}

	return New(f, cfg.Level), f, nil
}

// Path returns the daemon log file location.
func Path(cfg config.LogConfig) string {
	return filepath.Join(cfg.Dir, FileName)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
