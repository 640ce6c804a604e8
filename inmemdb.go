// inmemdb.go: package-wide constants
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package inmemdb

const (
	// Version of the inmemdb server, reported by INFO.
	Version = "1.0.0"

	// DefaultPort is the TCP port the server listens on.
	DefaultPort = 6399

	// DefaultSnapshotPath is where snapshots are written and loaded from,
	// relative to the working directory.
	DefaultSnapshotPath = "dump.rdb"

	// DefaultMaxClients is the maximum number of simultaneous connections.
	DefaultMaxClients = 1024

	// DefaultReadBufferSize bounds the largest unparsed pipelined request.
	// Clients that exceed it are disconnected.
	DefaultReadBufferSize = 64 * 1024

	// DefaultSweepInterval is the minimum time between expiry sweeps.
	DefaultSweepInterval = 100 // milliseconds

	// DefaultSweepSamples is how many live entries one sweep inspects.
	DefaultSweepSamples = 20
)
