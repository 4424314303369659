package config

import (
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Backend.Driver != DriverSQLite {
		t.Errorf("expected default driver %q, got %q", DriverSQLite, cfg.Backend.Driver)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.NavSpy.FallbackUnlock != time.Second {
		t.Errorf("expected fallback unlock 1s, got %s", cfg.NavSpy.FallbackUnlock)
	}
	if cfg.NavSpy.SettleUnlock != 150*time.Millisecond {
		t.Errorf("expected settle unlock 150ms, got %s", cfg.NavSpy.SettleUnlock)
	}
	if cfg.NavSpy.ReadZone.TopMargin != 100 || cfg.NavSpy.ReadZone.BottomFraction != 0.7 {
		t.Errorf("unexpected read zone %+v", cfg.NavSpy.ReadZone)
	}
}

func TestSaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.folio.yml")

	original := DefaultConfig()
	original.Backend.Driver = DriverREST
	original.Backend.URL = "https://db.example.com"
	original.Backend.AnonKey = "anon"
	original.Site.AdminEmail = "me@example.com"
	original.Server.PublicPaths = []string{"/static/**", "/robots.txt"}
	original.NavSpy.SettleUnlock = 200 * time.Millisecond
	original.NavSpy.ReadZone.BottomFraction = 0.6

	// Save.
	if err := original.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// Load back.
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if loaded.Backend != original.Backend {
		t.Errorf("backend: got %+v, want %+v", loaded.Backend, original.Backend)
	}
	if loaded.Site.AdminEmail != original.Site.AdminEmail {
		t.Errorf("admin_email: got %q, want %q", loaded.Site.AdminEmail, original.Site.AdminEmail)
	}
	if loaded.NavSpy.SettleUnlock != original.NavSpy.SettleUnlock {
		t.Errorf("settle_unlock: got %s, want %s", loaded.NavSpy.SettleUnlock, original.NavSpy.SettleUnlock)
	}
	if loaded.NavSpy.ReadZone != original.NavSpy.ReadZone {
		t.Errorf("read_zone: got %+v, want %+v", loaded.NavSpy.ReadZone, original.NavSpy.ReadZone)
	}
	if loaded.Session.TTL != original.Session.TTL {
		t.Errorf("ttl: got %s, want %s", loaded.Session.TTL, original.Session.TTL)
	}
	if len(loaded.Server.PublicPaths) != len(original.Server.PublicPaths) {
		t.Fatalf("public_paths length: got %d, want %d", len(loaded.Server.PublicPaths), len(original.Server.PublicPaths))
	}
	for i, v := range loaded.Server.PublicPaths {
		if v != original.Server.PublicPaths[i] {
			t.Errorf("public_paths[%d]: got %q, want %q", i, v, original.Server.PublicPaths[i])
		}
	}
}

func TestLoadMissingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nonexistent.yml")

	// Loading a missing file should return defaults, not an error.
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load should not fail for missing file: %v", err)
	}
	if cfg.Backend.Driver != DriverSQLite {
		t.Errorf("expected default driver, got %q", cfg.Backend.Driver)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.yml")

	cfg := DefaultConfig()
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	t.Setenv("FOLIO_BACKEND__DRIVER", "rest")
	t.Setenv("FOLIO_SITE__ADMIN_EMAIL", "owner@example.com")
	t.Setenv("FOLIO_NAVSPY__SETTLE_UNLOCK", "300ms")

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Backend.Driver != DriverREST {
		t.Errorf("env override failed: got %q, want %q", loaded.Backend.Driver, DriverREST)
	}
	if loaded.Site.AdminEmail != "owner@example.com" {
		t.Errorf("env override failed: got %q", loaded.Site.AdminEmail)
	}
	if loaded.NavSpy.SettleUnlock != 300*time.Millisecond {
		t.Errorf("env override failed: got %s", loaded.NavSpy.SettleUnlock)
	}
}

func TestEnvKey(t *testing.T) {
	tests := map[string]string{
		"FOLIO_SERVER__PORT":                  "server.port",
		"FOLIO_SERVER__ALLOW_ALL_ORIGINS":     "server.allow_all_origins",
		"FOLIO_NAVSPY__READ_ZONE__TOP_MARGIN": "navspy.read_zone.top_margin",
	}
	for in, want := range tests {
		if got := envKey(in); got != want {
			t.Errorf("envKey(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestValidateValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("DefaultConfig should be valid, got: %v", err)
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port", func(c *Config) { c.Server.Port = 0 }},
		{"base url", func(c *Config) { c.Server.BaseURL = "localhost" }},
		{"driver", func(c *Config) { c.Backend.Driver = "mongo" }},
		{"rest without url", func(c *Config) { c.Backend.Driver = DriverREST; c.Backend.AnonKey = "k" }},
		{"rest without key", func(c *Config) { c.Backend.Driver = DriverREST; c.Backend.URL = "https://x" }},
		{"sqlite without path", func(c *Config) { c.Backend.SQLitePath = "" }},
		{"short secret", func(c *Config) { c.Session.Secret = "short" }},
		{"cookie name", func(c *Config) { c.Session.CookieName = "" }},
		{"ttl", func(c *Config) { c.Session.TTL = 0 }},
		{"admin email", func(c *Config) { c.Site.AdminEmail = "not-an-email" }},
		{"negative buffer", func(c *Config) { c.NavSpy.TopBuffer = -1 }},
		{"zone fraction", func(c *Config) { c.NavSpy.ReadZone.BottomFraction = 1 }},
		{"log level", func(c *Config) { c.Log.Level = "loud" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Errorf("expected validation error for %s", tt.name)
			}
		})
	}
}

func TestEnsureSecret(t *testing.T) {
	cfg := DefaultConfig()
	generated, err := cfg.EnsureSecret()
	if err != nil {
		t.Fatalf("EnsureSecret: %v", err)
	}
	if !generated || len(cfg.Session.Secret) != 64 {
		t.Errorf("expected a 64 char generated secret, got %q", cfg.Session.Secret)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("config with generated secret should be valid: %v", err)
	}

	generated, err = cfg.EnsureSecret()
	if err != nil || generated {
		t.Errorf("existing secret should be kept, generated=%v err=%v", generated, err)
	}
}

func TestNavSpyOptions(t *testing.T) {
	opts := DefaultConfig().NavSpy.Options()
	if opts.TopBuffer != 50 || opts.SettleUnlock != 150*time.Millisecond {
		t.Errorf("unexpected options %+v", opts)
	}
}

func TestSplitAndTrim(t *testing.T) {
	tests := []struct {
		input string
		want  []string
	}{
		{"a,b,c", []string{"a", "b", "c"}},
		{" a , b , c ", []string{"a", "b", "c"}},
		{"/docs/**", []string{"/docs/**"}},
		{"", nil},
		{"  ,  , ", nil},
	}
	for _, tt := range tests {
		got := splitAndTrim(tt.input)
		if len(got) != len(tt.want) {
			t.Errorf("splitAndTrim(%q) len = %d, want %d", tt.input, len(got), len(tt.want))
			continue
		}
		for i, v := range got {
			if v != tt.want[i] {
				t.Errorf("splitAndTrim(%q)[%d] = %q, want %q", tt.input, i, v, tt.want[i])
			}
		}
	}
}
