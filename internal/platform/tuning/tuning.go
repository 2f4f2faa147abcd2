// Package tuning provides process-level buffer and pool settings.
package tuning

import (
	"runtime"
)

// Config holds tuned parameters for the hub, storage and save pipeline.
type Config struct {
	// Channel buffer sizes
	FeedChannelBuffer int
	ClientSendBuffer  int

	// SQLite connection pool
	DBMaxOpenConns int
	DBMaxIdleConns int

	// Network surface
	MaxMessagesPerSecond int
	MaxClients           int

	// Broadcast cadence for state snapshots pushed to UI clients.
	SnapshotEveryMs int
}

// DefaultConfig returns sensible defaults for a single-player host.
func DefaultConfig() *Config {
	numCPU := runtime.NumCPU()

	return &Config{
		FeedChannelBuffer: 256,
		ClientSendBuffer:  64,

		// SQLite is local; a small pool avoids writer contention.
		DBMaxOpenConns: numCPU,
		DBMaxIdleConns: 2,

		MaxMessagesPerSecond: 50,
		MaxClients:           16,

		SnapshotEveryMs: 200,
	}
}

// LowResourceConfig returns minimal settings for development.
func LowResourceConfig() *Config {
	return &Config{
		FeedChannelBuffer: 64,
		ClientSendBuffer:  16,

		DBMaxOpenConns: 1,
		DBMaxIdleConns: 1,

		MaxMessagesPerSecond: 20,
		MaxClients:           4,

		SnapshotEveryMs: 500,
	}
}
