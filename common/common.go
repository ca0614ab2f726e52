// Package common holds the service identity and logger setup shared by all
// binaries.
package common

import (
	"log/slog"
	"os"
)

// PackageName identifies the service in logs and metrics.
const PackageName = "object-replicator"

// Version is set at build time via -ldflags.
var Version = "dev"

// LoggingOpts configures the process logger.
type LoggingOpts struct {
	// Debug enables debug-level messages.
	Debug bool

	// JSON switches the handler to JSON output.
	JSON bool

	// Service is added as a 'service' attribute to all log lines.
	Service string

	// Version is added as a 'version' attribute to all log lines.
	Version string
}

// SetupLogger builds the process-wide slog logger.
func SetupLogger(opts *LoggingOpts) *slog.Logger {
	level := slog.LevelInfo
	if opts.Debug {
		level = slog.LevelDebug
	}

	var handler slog.Handler
	if opts.JSON {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}

	log := slog.New(handler)
	if opts.Service != "" {
		log = log.With(slog.String("service", opts.Service))
	}
	if opts.Version != "" {
		log = log.With(slog.String("version", opts.Version))
	}

	return log
}
