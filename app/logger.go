package app

import (
	"io"
	"log/slog"
	"os"

	"github.com/use-agent/leadscout/config"
)

// InitLogger installs the default slog logger described by cfg. The CLI
// passes stderr so stdout stays free for the lead summary.
func InitLogger(cfg config.LogConfig, w io.Writer) {
	if w == nil {
		w = os.Stdout
	}
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}
	slog.SetDefault(slog.New(handler))
}
