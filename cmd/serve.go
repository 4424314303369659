package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ziadkadry99/folio/internal/auth"
	"github.com/ziadkadry99/folio/internal/content"
	"github.com/ziadkadry99/folio/internal/posts"
	"github.com/ziadkadry99/folio/internal/server"
	"github.com/ziadkadry99/folio/internal/site"
)

var (
	servePort int
	serveOpen bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the folio web server",
	Long: `Serves the about pages, the post feed, the admin area and the
navigation websocket. Scheduled posts are published in the background.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if servePort > 0 {
			cfg.Server.Port = servePort
		}
		generated, err := cfg.EnsureSecret()
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}

		logger, err := newLogger(cfg.Log)
		if err != nil {
			return fmt.Errorf("creating logger: %w", err)
		}
		defer func() { _ = logger.Sync() }()
		if generated {
			logger.Warn("no session.secret configured; using a random one, sessions will not survive a restart")
		}

		be, err := openBackend(cfg, logger)
		if err != nil {
			return err
		}
		defer be.Close()

		library, err := content.Load(contentFS(cfg))
		if err != nil {
			return fmt.Errorf("loading about pages: %w", err)
		}

		sessions, err := auth.NewManager(auth.ManagerConfig{
			Secret:     []byte(cfg.Session.Secret),
			CookieName: cfg.Session.CookieName,
			TTL:        cfg.Session.TTL,
			Secure:     cfg.Session.Secure,
		})
		if err != nil {
			return err
		}

		srv := server.New(server.Config{
			Port:     cfg.Server.Port,
			AllowAll: cfg.Server.AllowAllOrigins,
			Ready:    be.Ready,
		}, logger.Named("http"), nil)

		s, err := site.New(site.Options{
			Config:   cfg,
			Store:    be.Store,
			Provider: be.Provider,
			Sessions: sessions,
			Library:  library,
			Logger:   logger.Named("site"),
			Metrics:  srv.Metrics(),
		})
		if err != nil {
			return err
		}
		s.RegisterRoutes(srv.Router())

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if cfg.Server.PublishInterval > 0 {
			pub := &posts.Publisher{
				Store:     be.Store,
				Interval:  cfg.Server.PublishInterval,
				Logger:    logger.Named("publisher"),
				OnPublish: srv.Metrics().ScheduledPublished,
			}
			go pub.Run(ctx)
		}

		errCh := make(chan error, 1)
		go func() { errCh <- srv.Start() }()

		url := fmt.Sprintf("http://localhost:%d", cfg.Server.Port)
		logger.Info("serving", zap.String("url", url), zap.String("backend", string(cfg.Backend.Driver)))
		if serveOpen {
			openBrowser(url)
		}

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}

		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down: %w", err)
		}
		return <-errCh
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "override server.port")
	serveCmd.Flags().BoolVar(&serveOpen, "open", false, "open the site in a browser")
	rootCmd.AddCommand(serveCmd)
}
