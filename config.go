// config.go: configuration for the inmemdb server
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package inmemdb

import (
	"time"

	"github.com/agilira/go-timecache"
)

// Config holds configuration parameters for the server.
type Config struct {
	// Port is the TCP port to listen on. 0 selects an ephemeral port.
	// Must be in [0, 65535]. Default: DefaultPort.
	Port int

	// SnapshotPath is where SAVE and SHUTDOWN write the snapshot and
	// where the server binary loads it from on startup.
	// Default: DefaultSnapshotPath.
	SnapshotPath string

	// MaxClients caps simultaneous connections; connections beyond the
	// cap are closed immediately after accept. Default: DefaultMaxClients.
	MaxClients int

	// ReadBufferSize is the per-client read buffer in bytes. A single
	// request larger than this disconnects the client.
	// Default: DefaultReadBufferSize.
	ReadBufferSize int

	// SweepInterval is the minimum time between expiry sweeps.
	// Default: DefaultSweepInterval milliseconds.
	SweepInterval time.Duration

	// SweepSamples is how many live entries each sweep inspects.
	// Default: DefaultSweepSamples.
	SweepSamples int

	// Logger is used for operational logging.
	// If nil, NoOpLogger is used. Default: NoOpLogger.
	Logger Logger

	// TimeProvider provides current time for expiry calculations.
	// If nil, a default implementation is used. Default: system time.
	TimeProvider TimeProvider
}

// Validate checks configuration parameters and applies sensible defaults.
//
// This method is automatically called by NewServer, so you typically don't
// need to call it manually. However, it's provided as a public API if you
// want to inspect the normalized configuration before creating a server.
//
// Default values applied:
//   - SnapshotPath: DefaultSnapshotPath if empty
//   - MaxClients: DefaultMaxClients if <= 0
//   - ReadBufferSize: DefaultReadBufferSize if <= 0
//   - SweepInterval: DefaultSweepInterval ms if <= 0
//   - SweepSamples: DefaultSweepSamples if <= 0
//   - Logger: NoOpLogger{} if nil
//   - TimeProvider: systemTimeProvider{} if nil
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return NewErrInvalidPort(c.Port)
	}

	if c.SnapshotPath == "" {
		c.SnapshotPath = DefaultSnapshotPath
	}

	if c.MaxClients <= 0 {
		c.MaxClients = DefaultMaxClients
	}

	if c.ReadBufferSize <= 0 {
		c.ReadBufferSize = DefaultReadBufferSize
	}

	if c.SweepInterval <= 0 {
		c.SweepInterval = DefaultSweepInterval * time.Millisecond
	}

	if c.SweepSamples <= 0 {
		c.SweepSamples = DefaultSweepSamples
	}

	if c.Logger == nil {
		c.Logger = NoOpLogger{}
	}

	if c.TimeProvider == nil {
		c.TimeProvider = &systemTimeProvider{}
	}

	return nil
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Port:           DefaultPort,
		SnapshotPath:   DefaultSnapshotPath,
		MaxClients:     DefaultMaxClients,
		ReadBufferSize: DefaultReadBufferSize,
		SweepInterval:  DefaultSweepInterval * time.Millisecond,
		SweepSamples:   DefaultSweepSamples,
		Logger:         NoOpLogger{},
		TimeProvider:   &systemTimeProvider{},
	}
}

// systemTimeProvider is the default time provider using go-timecache.
type systemTimeProvider struct{}

func (systemTimeProvider) Now() int64 {
	return timecache.CachedTimeNano() / int64(time.Millisecond)
}
