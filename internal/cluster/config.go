package cluster

import (
	"fmt"
	"io"
	"net"
	"time"

	"github.com/hashicorp/go-hclog"
)

// Config holds the configuration for a cluster node.
type Config struct {
	// RaftID is the unique identifier for this Raft node.
	RaftID string
	// BindAddr is the address to bind for Raft communication (host:port).
	BindAddr string
	// Peers is the list of peer Raft addresses (including this node).
	Peers []string
	// HeartbeatTimeout is the Raft heartbeat timeout.
	HeartbeatTimeout time.Duration
	// ElectionTimeout is the Raft election timeout.
	ElectionTimeout time.Duration
	// SnapshotInterval is how often to take snapshots.
	SnapshotInterval time.Duration
	// SnapshotThreshold is the number of logs before taking a snapshot.
	SnapshotThreshold uint64
	// ApplyTimeout bounds how long a registry write waits for the log to commit.
	ApplyTimeout time.Duration
	// LogLevel is the Raft library log level (trace, debug, info, warn, error); empty disables it.
	LogLevel string
	// LogOutput receives Raft library logs when LogLevel is set.
	LogOutput io.Writer
	// DataDir holds registry snapshots; empty keeps them in memory.
	DataDir string
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.RaftID == "" {
		return fmt.Errorf("raft-id is required")
	}

	if c.BindAddr == "" {
		return fmt.Errorf("raft-bind is required")
	}

	if _, _, err := net.SplitHostPort(c.BindAddr); err != nil {
		return fmt.Errorf("invalid raft-bind address %q: %w", c.BindAddr, err)
	}

	if len(c.Peers) == 0 {
		return fmt.Errorf("at least one peer is required")
	}

	self := false
	for i, peer := range c.Peers {
		if _, _, err := net.SplitHostPort(peer); err != nil {
			return fmt.Errorf("invalid peer address %d %q: %w", i, peer, err)
		}
		self = self || peer == c.BindAddr
	}
	if !self {
		return fmt.Errorf("peers must include raft-bind address %s", c.BindAddr)
	}

	if c.LogLevel != "" && hclog.LevelFromString(c.LogLevel) == hclog.NoLevel {
		return fmt.Errorf("invalid raft log level %q", c.LogLevel)
	}

	c.setDefaults()
	return nil
}

func (c *Config) setDefaults() {
	defaults := []struct {
		field *time.Duration
		value time.Duration
	}{
		{&c.HeartbeatTimeout, time.Second},
		{&c.ElectionTimeout, time.Second},
		{&c.SnapshotInterval, 2 * time.Minute},
		{&c.ApplyTimeout, 5 * time.Second},
	}
	for _, d := range defaults {
		if *d.field == 0 {
			*d.field = d.value
		}
	}

	if c.SnapshotThreshold == 0 {
		c.SnapshotThreshold = 8192
	}
}
