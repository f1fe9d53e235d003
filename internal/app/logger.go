package app

import (
	"log/slog"
	"os"
)

// NewLogger returns the process-wide slog.Logger. Every line carries a
// service attribute so shared log streams can be filtered down to this
// system.
func NewLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{AddSource: true}
	var handler slog.Handler
	if cfg != nil && cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler).With(slog.String("service", "gatehouse"))
}
