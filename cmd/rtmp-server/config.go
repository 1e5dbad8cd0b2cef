package main

// Optional YAML configuration file support. Flags always win over file
// values (file values only fill in what the user didn't pass on the command
// line), matching the override order stated in -config's usage string.

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// fileConfig mirrors the subset of cliConfig that makes sense to put in a
// checked-in file rather than an invocation: listen address, logging,
// recording, relay destinations, and metrics. Hook wiring is left to flags
// since it is typically environment-specific.
type fileConfig struct {
	ListenAddr        string   `yaml:"listen_addr"`
	LogLevel          string   `yaml:"log_level"`
	RecordAll         bool     `yaml:"record_all"`
	RecordDir         string   `yaml:"record_dir"`
	ChunkSize         uint     `yaml:"chunk_size"`
	MetricsAddr       string   `yaml:"metrics_addr"`
	RelayDestinations []string `yaml:"relay_destinations,omitempty"`
}

// loadFileConfig reads and strictly decodes a YAML config file.
func loadFileConfig(path string) (*fileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	var fc fileConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&fc); err != nil {
		return nil, fmt.Errorf("decode config file: %w", err)
	}
	return &fc, nil
}

// mergeFileConfig copies each non-empty value of fc into cfg unless the
// matching flag was explicitly set on the command line (explicit, keyed by
// flag name), so a file value replaces a flag default but never an explicit
// flag, even one set to "" or 0.
func mergeFileConfig(cfg *cliConfig, fc *fileConfig, explicit map[string]bool) {
	if !explicit["listen"] && fc.ListenAddr != "" {
		cfg.listenAddr = fc.ListenAddr
	}
	if !explicit["log-level"] && fc.LogLevel != "" {
		cfg.logLevel = fc.LogLevel
	}
	if !explicit["record-all"] {
		cfg.recordAll = cfg.recordAll || fc.RecordAll
	}
	if !explicit["record-dir"] && fc.RecordDir != "" {
		cfg.recordDir = fc.RecordDir
	}
	if !explicit["chunk-size"] && fc.ChunkSize != 0 {
		cfg.chunkSize = fc.ChunkSize
	}
	if !explicit["metrics-addr"] && fc.MetricsAddr != "" {
		cfg.metricsAddr = fc.MetricsAddr
	}
	if !explicit["relay-to"] && len(fc.RelayDestinations) > 0 {
		cfg.relayDestinations = fc.RelayDestinations
	}
}
