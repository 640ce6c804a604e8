// hot-reload.go: dynamic configuration with Argus integration
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package inmemdb

import (
	"fmt"
	"sync"
	"time"

	"github.com/agilira/argus"
)

// HotSettings is the runtime-safe subset of server configuration that can
// change without a restart.
type HotSettings struct {
	// SweepInterval is the minimum time between expiry sweeps.
	SweepInterval time.Duration

	// SweepSamples is how many live entries each sweep inspects.
	SweepSamples int

	// SnapshotPath is where SAVE and SHUTDOWN write the snapshot.
	SnapshotPath string
}

// HotConfig watches a configuration file via Argus and applies changes to
// a running server. Listener port and buffer sizes require a restart and
// are ignored here.
type HotConfig struct {
	srv     *Server
	watcher *argus.Watcher
	log     Logger
	mu      sync.RWMutex
	current HotSettings

	// OnReload is called after settings are successfully applied.
	// This callback is optional and must be fast and non-blocking.
	OnReload func(old, new HotSettings)
}

// HotConfigOptions configures hot reload behavior.
type HotConfigOptions struct {
	// ConfigPath is the path to the configuration file to watch.
	// Supports JSON, YAML, TOML, HCL, INI, Properties formats.
	ConfigPath string

	// PollInterval is how often to check for configuration changes.
	// Default: 1 second. Minimum: 100ms.
	PollInterval time.Duration

	// OnReload is called after settings are successfully applied.
	OnReload func(old, new HotSettings)

	// Logger for hot reload operations. If nil, the server's logger is
	// used.
	Logger Logger
}

// NewHotConfig creates a hot-reloadable configuration for a server. It
// starts watching the configuration file once Start is called.
//
// Example configuration file (YAML):
//
//	server:
//	  sweep_interval: "250ms"
//	  sweep_samples: 40
//	  snapshot_path: "/var/lib/inmemdb/dump.rdb"
func NewHotConfig(srv *Server, opts HotConfigOptions) (*HotConfig, error) {
	if srv == nil {
		return nil, fmt.Errorf("server is required")
	}
	if opts.ConfigPath == "" {
		return nil, fmt.Errorf("config_path is required")
	}

	if opts.PollInterval == 0 {
		opts.PollInterval = 1 * time.Second
	} else if opts.PollInterval < 100*time.Millisecond {
		opts.PollInterval = 100 * time.Millisecond
	}

	if opts.Logger == nil {
		opts.Logger = srv.log
	}

	hc := &HotConfig{
		srv:      srv,
		log:      opts.Logger,
		OnReload: opts.OnReload,
		current: HotSettings{
			SweepInterval: srv.cfg.SweepInterval,
			SweepSamples:  srv.cfg.SweepSamples,
			SnapshotPath:  srv.cfg.SnapshotPath,
		},
	}

	argusConfig := argus.Config{
		PollInterval: opts.PollInterval,
	}

	watcher, err := argus.UniversalConfigWatcherWithConfig(opts.ConfigPath, hc.handleConfigChange, argusConfig)
	if err != nil {
		return nil, err
	}
	hc.watcher = watcher

	return hc, nil
}

// Start begins watching the configuration file for changes.
func (hc *HotConfig) Start() error {
	if hc.watcher.IsRunning() {
		return nil // Already started
	}
	return hc.watcher.Start()
}

// Stop stops watching the configuration file.
func (hc *HotConfig) Stop() error {
	return hc.watcher.Stop()
}

// Settings returns the currently applied settings (thread-safe).
func (hc *HotConfig) Settings() HotSettings {
	hc.mu.RLock()
	defer hc.mu.RUnlock()
	return hc.current
}

// handleConfigChange is called by Argus when configuration changes.
func (hc *HotConfig) handleConfigChange(configData map[string]interface{}) {
	hc.mu.Lock()
	oldSettings := hc.current
	newSettings := hc.parseSettings(configData, oldSettings)
	hc.current = newSettings
	hc.mu.Unlock()

	hc.applySettings(newSettings)
	hc.log.Info("configuration reloaded",
		"sweep_interval", newSettings.SweepInterval.String(),
		"sweep_samples", newSettings.SweepSamples,
		"snapshot_path", newSettings.SnapshotPath)

	if hc.OnReload != nil {
		hc.OnReload(oldSettings, newSettings)
	}
}

// parsePositiveInt extracts a positive integer from interface{} value.
// Supports both int and float64 types (YAML/JSON may vary).
func parsePositiveInt(value interface{}) (int, bool) {
	switch v := value.(type) {
	case int:
		if v > 0 {
			return v, true
		}
	case float64:
		if v > 0 {
			return int(v), true
		}
	}
	return 0, false
}

// parseDuration extracts a time.Duration from a string value.
func parseDuration(value interface{}) (time.Duration, bool) {
	if str, ok := value.(string); ok {
		if d, err := time.ParseDuration(str); err == nil && d > 0 {
			return d, true
		}
	}
	return 0, false
}

// parseString extracts a non-empty string value.
func parseString(value interface{}) (string, bool) {
	if str, ok := value.(string); ok && str != "" {
		return str, true
	}
	return "", false
}

// parseSettings extracts server settings from Argus config data, keeping
// the previous value for anything missing or out of range.
func (hc *HotConfig) parseSettings(data map[string]interface{}, prev HotSettings) HotSettings {
	settings := prev

	// Extract server section — Argus might nest it or provide it directly.
	section, ok := data["server"].(map[string]interface{})
	if !ok {
		section = data
	}

	if d, ok := parseDuration(section["sweep_interval"]); ok {
		settings.SweepInterval = d
	}
	if n, ok := parsePositiveInt(section["sweep_samples"]); ok {
		settings.SweepSamples = n
	}
	if p, ok := parseString(section["snapshot_path"]); ok {
		settings.SnapshotPath = p
	}

	return settings
}

// applySettings pushes settings into the running server.
func (hc *HotConfig) applySettings(s HotSettings) {
	hc.srv.db.SetSweepPolicy(s.SweepInterval, s.SweepSamples)
	hc.srv.SetSnapshotPath(s.SnapshotPath)
}
