// Package logging provides structured logging for reelflow components.
package logging

import (
	"os"

	"github.com/hashicorp/go-hclog"

	"github.com/pyrex41/reelflow/pkg/config"
)

// New creates the root logger from the logging configuration. Components
// derive their own named loggers from it via Named.
func New(cfg config.LoggingConfig) hclog.Logger {
	return hclog.New(&hclog.LoggerOptions{
		Name:       "reelflow",
		Level:      hclog.LevelFromString(cfg.Level),
		Output:     os.Stdout,
		JSONFormat: cfg.Format == "json",
	})
}

// NewNop returns a logger that discards everything; used in tests.
func NewNop() hclog.Logger {
	return hclog.NewNullLogger()
}
