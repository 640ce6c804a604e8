// main.go: the inmemdb server binary
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

// Command inmemdb-server runs the inmemdb TCP server.
//
// Usage:
//
//	inmemdb-server [-p port] [--snapshot path] [--config path] [--logfile path]
//
// An existing snapshot at the snapshot path is loaded on startup. SIGINT
// and SIGTERM save a snapshot and stop the server cleanly.
package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/agilira/inmemdb"
	"github.com/spf13/pflag"
	"gopkg.in/natefinch/lumberjack.v2"
)

// stdLogger adapts the standard library logger to the inmemdb.Logger
// interface with key=value formatting.
type stdLogger struct {
	l *log.Logger
}

func (s stdLogger) logf(level, msg string, keyvals ...interface{}) {
	line := "level=" + level + " msg=" + fmt.Sprintf("%q", msg)
	for i := 0; i+1 < len(keyvals); i += 2 {
		line += fmt.Sprintf(" %v=%v", keyvals[i], keyvals[i+1])
	}
	s.l.Println(line)
}

func (s stdLogger) Debug(msg string, keyvals ...interface{}) { s.logf("debug", msg, keyvals...) }
func (s stdLogger) Info(msg string, keyvals ...interface{})  { s.logf("info", msg, keyvals...) }
func (s stdLogger) Warn(msg string, keyvals ...interface{})  { s.logf("warn", msg, keyvals...) }
func (s stdLogger) Error(msg string, keyvals ...interface{}) { s.logf("error", msg, keyvals...) }

func printBanner(port int) {
	fmt.Printf("\ninmemdb %s | port %d\n", inmemdb.Version, port)
	fmt.Printf("Type 'SHUTDOWN' from a client to stop.\n\n")
}

func main() {
	port := pflag.IntP("port", "p", inmemdb.DefaultPort, "TCP port to listen on")
	snapshot := pflag.String("snapshot", inmemdb.DefaultSnapshotPath, "snapshot file path")
	configPath := pflag.String("config", "", "config file to watch for hot reload")
	logFile := pflag.String("logfile", "", "log file path (rotated); default stdout only")
	pflag.Parse()

	var out io.Writer = os.Stdout
	if *logFile != "" {
		out = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   *logFile,
			MaxSize:    100, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
		})
	}
	logger := stdLogger{l: log.New(out, "", log.LstdFlags)}

	cfg := inmemdb.DefaultConfig()
	cfg.Port = *port
	cfg.SnapshotPath = *snapshot
	cfg.Logger = logger

	srv, err := inmemdb.NewServer(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if _, err := os.Stat(*snapshot); err == nil {
		loaded, err := srv.DB().LoadSnapshot(*snapshot)
		if err != nil {
			logger.Warn("snapshot load failed", "path", *snapshot, "error", err)
		} else {
			logger.Info("snapshot loaded", "path", *snapshot, "keys", loaded)
		}
	}

	if *configPath != "" {
		hc, err := inmemdb.NewHotConfig(srv, inmemdb.HotConfigOptions{
			ConfigPath: *configPath,
			Logger:     logger,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if err := hc.Start(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer func() { _ = hc.Stop() }()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("signal received, shutting down")
		if err := srv.DB().SaveSnapshot(srv.SnapshotPath()); err != nil {
			logger.Error("snapshot save failed", "error", err)
		}
		srv.Stop()
	}()

	printBanner(*port)

	if err := srv.ListenAndServe(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Goodbye.")
}
