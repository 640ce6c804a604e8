// Package inmemdb provides a small in-memory key/value server with typed
// values, per-key expiry and binary snapshots.
//
// # Overview
//
// Inmemdb stores three kinds of values — strings, 64-bit integers and
// lists — in a Robin-Hood open-addressed hash table, speaks a RESP-style
// framed wire protocol over TCP, and can persist the whole keyspace to a
// single snapshot file that is replaced atomically.
//
// # Features
//
//   - Typed Values: strings, integers (auto-detected on SET) and lists
//   - Expiry: absolute millisecond deadlines, lazy checks plus a sampled
//     background sweep
//   - Wire Protocol: length-prefixed recursive frames, pipelining-friendly
//   - Snapshots: point-in-time binary dumps, loaded on startup, written by
//     SAVE/SHUTDOWN and replaced atomically
//   - Structured Errors: rich error context with error codes
//   - Hot Reload: runtime-safe settings watched via Argus
//
// # Quick Start
//
//	import "github.com/agilira/inmemdb"
//
//	func main() {
//	    srv, err := inmemdb.NewServer(inmemdb.DefaultConfig())
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    if err := srv.ListenAndServe(); err != nil {
//	        log.Fatal(err)
//	    }
//	}
//
// Connect with any RESP-speaking client, or the bundled inmemdb-cli:
//
//	$ inmemdb-cli -p 6399
//	127.0.0.1:6399> SET greeting "hello world"
//	OK
//	127.0.0.1:6399> GET greeting
//	"hello world"
//
// # Concurrency
//
// The server runs one goroutine per connection; all keyspace access is
// serialized behind a single mutex on the database, so commands observe a
// total order and replies on one connection are delivered in request order.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0
package inmemdb
