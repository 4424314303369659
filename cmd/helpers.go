package cmd

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"runtime"

	"go.uber.org/zap"

	"github.com/ziadkadry99/folio/internal/auth"
	"github.com/ziadkadry99/folio/internal/backend"
	"github.com/ziadkadry99/folio/internal/config"
	"github.com/ziadkadry99/folio/internal/content"
	"github.com/ziadkadry99/folio/internal/db"
	"github.com/ziadkadry99/folio/internal/posts"
)

// loadConfig loads and validates the config, providing a user-friendly error.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w\nRun `folio init` to create a config file", err)
	}
	return cfg, nil
}

// backendSet is the store and identity provider selected by
// backend.driver.
type backendSet struct {
	Store    posts.Store
	Provider auth.Provider
	// Local is set for the sqlite driver.
	Local *auth.LocalProvider
	// Ready checks that the backend is reachable.
	Ready func(ctx context.Context) error
	Close func() error
}

// openBackend connects to the configured backend. Local sign-in codes are
// signed with the session secret.
func openBackend(cfg *config.Config, logger *zap.Logger) (*backendSet, error) {
	switch cfg.Backend.Driver {
	case config.DriverSQLite:
		database, err := db.Open(cfg.Backend.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("opening database: %w", err)
		}
		local := auth.NewLocalProvider(database, []byte(cfg.Session.Secret), logger.Named("auth"))
		return &backendSet{
			Store:    posts.NewSQLStore(database),
			Provider: local,
			Local:    local,
			Ready:    database.PingContext,
			Close:    database.Close,
		}, nil

	case config.DriverREST:
		client := backend.NewClient(backend.Config{
			URL:     cfg.Backend.URL,
			AnonKey: cfg.Backend.AnonKey,
		}, logger.Named("backend"))
		return &backendSet{
			Store:    client.Posts(),
			Provider: client.Auth(),
			Ready: func(ctx context.Context) error {
				_, err := client.Posts().Tags(ctx)
				return err
			},
			Close: func() error { return nil },
		}, nil
	}
	return nil, fmt.Errorf("unknown backend driver %q", cfg.Backend.Driver)
}

// contentFS returns the about-page sources: the configured directory or
// the embedded pages.
func contentFS(cfg *config.Config) fs.FS {
	if cfg.Site.ContentDir != "" {
		return os.DirFS(cfg.Site.ContentDir)
	}
	return content.Embedded()
}

// openBrowser opens the given URL in the default browser.
func openBrowser(url string) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", url)
	case "darwin":
		cmd = exec.Command("open", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	_ = cmd.Start()
}
