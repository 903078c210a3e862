// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func TestDefault_IsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Errorf("default config failed validation: %v", err)
	}
}

func TestLoadFromPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[server]
host = "0.0.0.0"
port = 9090

[oracle]
model = "llama3.2:3b"

[command]
resolver = "oracle"
matcher = "ranked"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}

	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Host = %q, want 0.0.0.0", cfg.Server.Host)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Oracle.Model != "llama3.2:3b" {
		t.Errorf("Model = %q, want llama3.2:3b", cfg.Oracle.Model)
	}
	if cfg.Command.Resolver != ResolverOracle {
		t.Errorf("Resolver = %q, want oracle", cfg.Command.Resolver)
	}

	// Unset fields fall back to defaults.
	if cfg.Oracle.URL != "http://127.0.0.1:11434" {
		t.Errorf("URL = %q, want default", cfg.Oracle.URL)
	}
	if cfg.Oracle.TimeoutSecs != 30 {
		t.Errorf("TimeoutSecs = %d, want 30", cfg.Oracle.TimeoutSecs)
	}
}

func TestLoadFromPath_RejectsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad resolver", "[command]\nresolver = \"coin-flip\"\n"},
		{"bad matcher", "[command]\nmatcher = \"psychic\"\n"},
		{"bad port", "[server]\nport = 99999\n"},
		{"bad oracle url", "[oracle]\nurl = \"not a url\"\n"},
		{"malformed toml", "[[[[\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			if err := os.WriteFile(path, []byte(tt.content), 0600); err != nil {
				t.Fatal(err)
			}
			if _, err := LoadFromPath(path); err == nil {
				t.Errorf("LoadFromPath accepted invalid config %q", tt.content)
			}
		})
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("TASKPILOT_PORT", "7777")
	t.Setenv("TASKPILOT_MODEL", "llama3.2:3b")
	t.Setenv("TASKPILOT_RESOLVER", "oracle")

	cfg := Default()
	cfg.ApplyEnvOverrides()

	if cfg.Server.Port != 7777 {
		t.Errorf("Port = %d, want 7777", cfg.Server.Port)
	}
	if cfg.Oracle.Model != "llama3.2:3b" {
		t.Errorf("Model = %q, want llama3.2:3b", cfg.Oracle.Model)
	}
	if cfg.Command.Resolver != ResolverOracle {
		t.Errorf("Resolver = %q, want oracle", cfg.Command.Resolver)
	}
}

func TestSaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg := Default()
	cfg.Server.Port = 9999
	cfg.Oracle.Model = "llama3.2:3b"

	if err := SaveTOML(cfg, path); err != nil {
		t.Fatalf("SaveTOML failed: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("config file permissions = %o, want 0600", perm)
	}

	loaded, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}
	if loaded.Server.Port != 9999 {
		t.Errorf("Port = %d, want 9999", loaded.Server.Port)
	}
	if loaded.Oracle.Model != "llama3.2:3b" {
		t.Errorf("Model = %q, want llama3.2:3b", loaded.Oracle.Model)
	}
}

func TestAddr(t *testing.T) {
	cfg := Default()
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 8787

	if got := cfg.Addr(); got != "127.0.0.1:8787" {
		t.Errorf("Addr() = %q, want 127.0.0.1:8787", got)
	}
}

func TestSplitAddr(t *testing.T) {
	tests := []struct {
		addr     string
		wantHost string
		wantPort int
		wantErr  bool
	}{
		{"127.0.0.1:8787", "127.0.0.1", 8787, false},
		{"localhost:80", "localhost", 80, false},
		{"no-port", "", 0, true},
		{"host:notanumber", "", 0, true},
		{"host:99999", "", 0, true},
	}

	for _, tt := range tests {
		host, port, err := SplitAddr(tt.addr)
		if (err != nil) != tt.wantErr {
			t.Errorf("SplitAddr(%q) error = %v, wantErr %v", tt.addr, err, tt.wantErr)
			continue
		}
		if err == nil && (host != tt.wantHost || port != tt.wantPort) {
			t.Errorf("SplitAddr(%q) = (%q, %d), want (%q, %d)",
				tt.addr, host, port, tt.wantHost, tt.wantPort)
		}
	}
}

func TestWatcher_ReloadsOnChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := SaveTOML(Default(), path); err != nil {
		t.Fatal(err)
	}

	var mu sync.Mutex
	var got *Config

	w, err := NewWatcher(path, func(cfg *Config) {
		mu.Lock()
		got = cfg
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	defer w.Close()

	if err := w.Watch(); err != nil {
		t.Fatalf("Watch failed: %v", err)
	}

	updated := Default()
	updated.Oracle.Model = "llama3.2:3b"
	if err := SaveTOML(updated, path); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(5 * time.Second)
	for {
		mu.Lock()
		done := got != nil
		mu.Unlock()
		if done {
			break
		}
		select {
		case <-deadline:
			t.Fatal("watcher never delivered the reloaded config")
		case <-time.After(50 * time.Millisecond):
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if got.Oracle.Model != "llama3.2:3b" {
		t.Errorf("reloaded Model = %q, want llama3.2:3b", got.Oracle.Model)
	}
}

func TestWatcher_KeepsOldConfigOnBadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := SaveTOML(Default(), path); err != nil {
		t.Fatal(err)
	}

	var mu sync.Mutex
	calls := 0

	w, err := NewWatcher(path, func(cfg *Config) {
		mu.Lock()
		calls++
		mu.Unlock()
	})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	if err := w.Watch(); err != nil {
		t.Fatal(err)
	}

	// A broken file must not reach the callback.
	if err := os.WriteFile(path, []byte("[[[[\n"), 0600); err != nil {
		t.Fatal(err)
	}

	time.Sleep(time.Second)

	mu.Lock()
	defer mu.Unlock()
	if calls != 0 {
		t.Errorf("callback ran %d times for an invalid config, want 0", calls)
	}
}
