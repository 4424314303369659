package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/mail"
	"net/url"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"go.uber.org/zap/zapcore"
	yamlv3 "gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of environment overrides.
const EnvPrefix = "FOLIO_"

// Load reads configuration from the given YAML file, then overlays
// environment variable overrides (FOLIO_*). A double underscore in a
// variable name separates nested keys: FOLIO_SERVER__PORT -> server.port.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	// Start from defaults.
	cfg := DefaultConfig()

	// Load YAML file if it exists.
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("accessing config %s: %w", path, err)
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	return cfg, nil
}

func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

// Save writes the configuration to the given YAML file path.
func (c *Config) Save(path string) error {
	data, err := yamlv3.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// minSecretLen is the shortest accepted session secret.
const minSecretLen = 16

// Validate checks that the configuration contains valid values.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Server.BaseURL != "" {
		u, err := url.Parse(c.Server.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("server.base_url %q must be an absolute URL", c.Server.BaseURL)
		}
	}
	if c.Server.PublishInterval < 0 {
		return fmt.Errorf("server.publish_interval must be non-negative")
	}

	if c.Site.AdminEmail != "" {
		if _, err := mail.ParseAddress(c.Site.AdminEmail); err != nil {
			return fmt.Errorf("site.admin_email %q: %w", c.Site.AdminEmail, err)
		}
	}

	switch c.Backend.Driver {
	case DriverREST:
		if c.Backend.URL == "" {
			return fmt.Errorf("backend.url is required for the rest driver")
		}
		if c.Backend.AnonKey == "" {
			return fmt.Errorf("backend.anon_key is required for the rest driver")
		}
	case DriverSQLite:
		if c.Backend.SQLitePath == "" {
			return fmt.Errorf("backend.sqlite_path is required for the sqlite driver")
		}
	default:
		return fmt.Errorf("invalid backend.driver %q: must be one of rest, sqlite", c.Backend.Driver)
	}

	if c.Session.Secret != "" && len(c.Session.Secret) < minSecretLen {
		return fmt.Errorf("session.secret must be at least %d characters", minSecretLen)
	}
	if c.Session.CookieName == "" {
		return fmt.Errorf("session.cookie_name is required")
	}
	if c.Session.TTL <= 0 {
		return fmt.Errorf("session.ttl must be positive")
	}

	n := c.NavSpy
	if n.TopBuffer < 0 || n.FallbackUnlock < 0 || n.SettleUnlock < 0 || n.InitialDelay < 0 {
		return fmt.Errorf("navspy tuning values must be non-negative")
	}
	if n.ReadZone.TopMargin < 0 || n.ReadZone.BottomFraction < 0 || n.ReadZone.BottomFraction >= 1 {
		return fmt.Errorf("navspy.read_zone: top_margin must be non-negative and bottom_fraction in [0, 1)")
	}

	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}

	return nil
}

// EnsureSecret fills in a random session secret when none is configured.
// It reports whether one was generated; such sessions do not survive a
// restart.
func (c *Config) EnsureSecret() (bool, error) {
	if c.Session.Secret != "" {
		return false, nil
	}
	secret, err := GenerateSecret()
	if err != nil {
		return false, err
	}
	c.Session.Secret = secret
	return true, nil
}

// GenerateSecret returns 32 random bytes, hex encoded.
func GenerateSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating session secret: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
