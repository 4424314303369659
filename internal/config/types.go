package config

import (
	"time"

	"github.com/ziadkadry99/folio/internal/navspy"
)

// BackendDriver selects where posts, tags and identities live.
type BackendDriver string

const (
	// DriverREST talks to the hosted table API.
	DriverREST BackendDriver = "rest"
	// DriverSQLite keeps everything in a local SQLite file.
	DriverSQLite BackendDriver = "sqlite"
)

// Config is the top-level folio configuration, corresponding to .folio.yml.
type Config struct {
	Server  ServerConfig  `yaml:"server" koanf:"server"`
	Site    SiteConfig    `yaml:"site" koanf:"site"`
	Backend BackendConfig `yaml:"backend" koanf:"backend"`
	Session SessionConfig `yaml:"session" koanf:"session"`
	NavSpy  NavSpyConfig  `yaml:"navspy" koanf:"navspy"`
	Log     LogConfig     `yaml:"log" koanf:"log"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Port            int    `yaml:"port" koanf:"port"`
	AllowAllOrigins bool   `yaml:"allow_all_origins" koanf:"allow_all_origins"`
	BaseURL         string `yaml:"base_url" koanf:"base_url"`
	// PublicPaths are globs that skip session parsing entirely.
	PublicPaths []string `yaml:"public_paths" koanf:"public_paths"`
	// PublishInterval is how often scheduled posts are checked. Zero
	// disables the background publisher.
	PublishInterval time.Duration `yaml:"publish_interval" koanf:"publish_interval"`
}

// SiteConfig describes the site owner.
type SiteConfig struct {
	Title      string `yaml:"title" koanf:"title"`
	Author     string `yaml:"author" koanf:"author"`
	AdminEmail string `yaml:"admin_email" koanf:"admin_email"`
	// ContentDir overrides the embedded about pages when set.
	ContentDir string `yaml:"content_dir" koanf:"content_dir"`
}

// BackendConfig selects and configures the post store.
type BackendConfig struct {
	Driver     BackendDriver `yaml:"driver" koanf:"driver"`
	URL        string        `yaml:"url" koanf:"url"`
	AnonKey    string        `yaml:"anon_key" koanf:"anon_key"`
	SQLitePath string        `yaml:"sqlite_path" koanf:"sqlite_path"`
}

// SessionConfig controls the signed session cookie.
type SessionConfig struct {
	Secret     string        `yaml:"secret" koanf:"secret"`
	CookieName string        `yaml:"cookie_name" koanf:"cookie_name"`
	TTL        time.Duration `yaml:"ttl" koanf:"ttl"`
	Secure     bool          `yaml:"secure" koanf:"secure"`
}

// NavSpyConfig tunes the section tracker.
type NavSpyConfig struct {
	TopBuffer      float64         `yaml:"top_buffer" koanf:"top_buffer"`
	FallbackUnlock time.Duration   `yaml:"fallback_unlock" koanf:"fallback_unlock"`
	SettleUnlock   time.Duration   `yaml:"settle_unlock" koanf:"settle_unlock"`
	InitialDelay   time.Duration   `yaml:"initial_delay" koanf:"initial_delay"`
	ReadZone       navspy.ReadZone `yaml:"read_zone" koanf:"read_zone"`
	// TopButtonAfter is the scroll offset past which the back-to-top
	// button shows.
	TopButtonAfter float64 `yaml:"top_button_after" koanf:"top_button_after"`
}

// Options converts the tuning into tracker options.
func (n NavSpyConfig) Options() navspy.Options {
	return navspy.Options{
		TopBuffer:      n.TopBuffer,
		FallbackUnlock: n.FallbackUnlock,
		SettleUnlock:   n.SettleUnlock,
		InitialDelay:   n.InitialDelay,
	}
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Level       string `yaml:"level" koanf:"level"`
	Development bool   `yaml:"development" koanf:"development"`
}
