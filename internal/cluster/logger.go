package cluster

import (
	"io"

	"github.com/hashicorp/go-hclog"
)

// newNoOpHCLogger creates a no-op hclog.Logger for Raft to avoid excessive logging.
func newNoOpHCLogger() hclog.Logger {
	return hclog.New(&hclog.LoggerOptions{
		Name:   "raft",
		Level:  hclog.Off,
		Output: io.Discard,
	})
}

// newRaftLogger returns the Raft logger for a validated config.
func newRaftLogger(config Config) hclog.Logger {
	if config.LogLevel == "" || config.LogOutput == nil {
		return newNoOpHCLogger()
	}

	return hclog.New(&hclog.LoggerOptions{
		Name:   "raft",
		Level:  hclog.LevelFromString(config.LogLevel),
		Output: config.LogOutput,
	})
}
