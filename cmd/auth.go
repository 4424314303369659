package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ziadkadry99/folio/internal/config"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage sign-in and session secrets",
}

var authSecretCmd = &cobra.Command{
	Use:   "secret",
	Short: "Print a new random session secret",
	Long: `Prints a random value suitable for session.secret. Changing the
secret signs out every existing session.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		secret, err := config.GenerateSecret()
		if err != nil {
			return err
		}
		fmt.Println(secret)
		return nil
	},
}

var authLinkCmd = &cobra.Command{
	Use:   "link <email>",
	Short: "Issue a magic sign-in link without the login form",
	Long: `Issues a one-time sign-in link and prints it. Only available with
the sqlite driver; the hosted backend emails links itself.`,
	Args: cobra.ExactArgs(1),
	RunE: runAuthLink,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(authSecretCmd)
	authCmd.AddCommand(authLinkCmd)
}

func runAuthLink(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Backend.Driver != config.DriverSQLite {
		return fmt.Errorf("auth link requires the sqlite driver (configured: %s)", cfg.Backend.Driver)
	}
	if cfg.Session.Secret == "" {
		return fmt.Errorf("session.secret must be set so the running server accepts the link")
	}

	be, err := openBackend(cfg, zap.NewNop())
	if err != nil {
		return err
	}
	defer be.Close()

	var link string
	be.Local.Sent = func(_, l string) { link = l }
	redirect := strings.TrimSuffix(cfg.Server.BaseURL, "/") + "/auth/callback?next=/posts/admin"
	if _, err := be.Local.SendMagicLink(context.Background(), args[0], redirect); err != nil {
		return err
	}
	fmt.Println(link)
	return nil
}
