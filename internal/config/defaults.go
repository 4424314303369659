package config

import (
	"time"

	"github.com/ziadkadry99/folio/internal/navspy"
)

// DefaultPublicPaths are request paths that never need a session.
var DefaultPublicPaths = []string{
	"/static/**",
	"/favicon.ico",
	"/healthz",
	"/metrics",
	"/**/*.{svg,png,jpg,jpeg,gif,webp}",
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			BaseURL:         "http://localhost:8080",
			PublicPaths:     DefaultPublicPaths,
			PublishInterval: time.Minute,
		},
		Site: SiteConfig{
			Title:  "folio",
			Author: "Site Owner",
		},
		Backend: BackendConfig{
			Driver:     DriverSQLite,
			SQLitePath: ".folio/folio.db",
		},
		Session: SessionConfig{
			CookieName: "folio_session",
			TTL:        7 * 24 * time.Hour,
		},
		NavSpy: NavSpyConfig{
			TopBuffer:      navspy.DefaultTopBuffer,
			FallbackUnlock: navspy.DefaultFallbackUnlock,
			SettleUnlock:   navspy.DefaultSettleUnlock,
			InitialDelay:   100 * time.Millisecond,
			ReadZone:       navspy.DefaultReadZone(),
			TopButtonAfter: 300,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}
