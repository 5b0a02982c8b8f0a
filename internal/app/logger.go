package app

import (
	"strings"

	"github.com/darasahq/darasa/pkg/logger"
)

// ConfigureLogging initialises the global logger at the configured level.
// An empty level falls back to info.
func ConfigureLogging(level string) error {
	level = strings.TrimSpace(level)
	if level == "" {
		level = "info"
	}
	return logger.Init(level)
}
