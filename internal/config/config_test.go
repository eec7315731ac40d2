package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Speech.Provider != "azure" {
		t.Fatalf("expected azure provider default, got %q", cfg.Speech.Provider)
	}
	if cfg.Speech.Locale != "en-us" {
		t.Fatalf("expected en-us locale default, got %q", cfg.Speech.Locale)
	}
	if cfg.Speech.Mode != "dictation" {
		t.Fatalf("expected dictation mode default, got %q", cfg.Speech.Mode)
	}
	if cfg.Run.OnError != "abort" {
		t.Fatalf("expected abort policy default, got %q", cfg.Run.OnError)
	}
	if !cfg.Input.SortByName {
		t.Fatal("expected sort_by_name default true")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		t.Fatalf("user home dir: %v", err)
	}
	if cfg.Output.Path != filepath.Join(home, "transcript.txt") {
		t.Fatalf("unexpected default output path %q", cfg.Output.Path)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "transcribe.yaml")
	data := []byte(`
speech:
  provider: mock
  locale: de-de
  mode: interactive
output:
  path: /tmp/out.txt
run:
  on_error: continue
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Speech.Provider != "mock" || cfg.Speech.Locale != "de-de" || cfg.Speech.Mode != "interactive" {
		t.Fatalf("unexpected speech config: %+v", cfg.Speech)
	}
	if cfg.Output.Path != "/tmp/out.txt" {
		t.Fatalf("unexpected output path %q", cfg.Output.Path)
	}
	if cfg.Run.OnError != "continue" {
		t.Fatalf("unexpected error policy %q", cfg.Run.OnError)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("TRANSCRIBE_SPEECH_PROVIDER", "mock")
	t.Setenv("TRANSCRIBE_SPEECH_LOCALE", "fr-fr")
	t.Setenv("TRANSCRIBE_SPEECH_CHUNK_BYTES", "1600")
	t.Setenv("TRANSCRIBE_OUTPUT_PATH", "/tmp/override.txt")
	t.Setenv("TRANSCRIBE_BUS_ENABLED", "true")
	t.Setenv("TRANSCRIBE_BUS_SERVERS", "nats://one:4222, nats://two:4222")
	t.Setenv("TRANSCRIBE_STORE_RETENTION_MODE", "persistent")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Speech.Provider != "mock" || cfg.Speech.Locale != "fr-fr" {
		t.Fatalf("expected speech overrides, got %+v", cfg.Speech)
	}
	if cfg.Speech.ChunkBytes != 1600 {
		t.Fatalf("expected chunk bytes 1600, got %d", cfg.Speech.ChunkBytes)
	}
	if cfg.Output.Path != "/tmp/override.txt" {
		t.Fatalf("expected output override, got %q", cfg.Output.Path)
	}
	if !cfg.Bus.Enabled {
		t.Fatal("expected bus enabled override")
	}
	if len(cfg.Bus.Servers) != 2 {
		t.Fatalf("expected 2 servers, got %v", cfg.Bus.Servers)
	}
	if cfg.Store.RetentionMode != "persistent" {
		t.Fatalf("expected retention override, got %q", cfg.Store.RetentionMode)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown provider", func(c *Config) { c.Speech.Provider = "webex" }},
		{"exec without command", func(c *Config) { c.Speech.Provider = "exec"; c.Speech.Command = "" }},
		{"empty locale", func(c *Config) { c.Speech.Locale = "" }},
		{"unknown mode", func(c *Config) { c.Speech.Mode = "fast" }},
		{"bad sample rate", func(c *Config) { c.Speech.SampleRate = 0 }},
		{"bad error policy", func(c *Config) { c.Run.OnError = "retry" }},
		{"bad retention", func(c *Config) { c.Store.RetentionMode = "forever" }},
		{"bus without servers", func(c *Config) { c.Bus.Enabled = true; c.Bus.Servers = nil }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			cfg.Output.Path = "/tmp/out.txt"
			tc.mutate(&cfg)
			if err := validate(cfg); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}
