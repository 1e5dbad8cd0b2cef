package main

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

func TestLoadFileConfig(t *testing.T) {
	path := writeTempConfig(t, `
listen_addr: ":1936"
log_level: "debug"
record_all: true
record_dir: "/data/recordings"
chunk_size: 8192
metrics_addr: ":9090"
relay_destinations:
  - "rtmp://example.com/live/a"
`)

	fc, err := loadFileConfig(path)
	if err != nil {
		t.Fatalf("loadFileConfig: %v", err)
	}
	if fc.ListenAddr != ":1936" {
		t.Errorf("ListenAddr = %q, want :1936", fc.ListenAddr)
	}
	if fc.ChunkSize != 8192 {
		t.Errorf("ChunkSize = %d, want 8192", fc.ChunkSize)
	}
	if len(fc.RelayDestinations) != 1 || fc.RelayDestinations[0] != "rtmp://example.com/live/a" {
		t.Errorf("RelayDestinations = %v", fc.RelayDestinations)
	}
}

func TestLoadFileConfigRejectsUnknownFields(t *testing.T) {
	path := writeTempConfig(t, "unknown_field: true\n")
	if _, err := loadFileConfig(path); err == nil {
		t.Fatal("expected error for unknown field, got nil")
	}
}

func TestMergeFileConfigFlagsWinOverFile(t *testing.T) {
	cfg := &cliConfig{listenAddr: ":1935", chunkSize: 4096}
	fc := &fileConfig{ListenAddr: ":9999", ChunkSize: 1024, LogLevel: "warn"}

	// listen was explicitly set on the command line; chunk-size was not.
	explicit := map[string]bool{"listen": true}
	mergeFileConfig(cfg, fc, explicit)

	if cfg.listenAddr != ":1935" {
		t.Errorf("explicit flag was overridden: listenAddr = %q, want :1935", cfg.listenAddr)
	}
	if cfg.chunkSize != 1024 {
		t.Errorf("file value did not fill unset flag: chunkSize = %d, want 1024", cfg.chunkSize)
	}
	if cfg.logLevel != "warn" {
		t.Errorf("logLevel = %q, want warn", cfg.logLevel)
	}
}

func TestMergeFileConfigRecordAllIsAdditive(t *testing.T) {
	cfg := &cliConfig{recordAll: false}
	fc := &fileConfig{RecordAll: true}

	mergeFileConfig(cfg, fc, map[string]bool{})

	if !cfg.recordAll {
		t.Error("expected record_all from file to enable recording")
	}
}
