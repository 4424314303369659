package config

import (
	"fmt"
	"net/mail"
	"strconv"
	"strings"

	"github.com/manifoldco/promptui"
)

// DefaultPath is where the wizard writes the configuration.
const DefaultPath = ".folio.yml"

// RunWizard runs an interactive configuration wizard and returns the
// resulting Config. It also saves the config to path.
func RunWizard(path string) (*Config, error) {
	fmt.Println("Welcome to folio! Let's configure your site.")
	fmt.Println()

	cfg := DefaultConfig()

	// 1. Site identity.
	titlePrompt := promptui.Prompt{
		Label:   "Site title",
		Default: cfg.Site.Title,
	}
	title, err := titlePrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("site title: %w", err)
	}
	cfg.Site.Title = title

	authorPrompt := promptui.Prompt{
		Label:   "Author name",
		Default: cfg.Site.Author,
	}
	author, err := authorPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("author: %w", err)
	}
	cfg.Site.Author = author

	// 2. Admin email. Only this address can compose posts.
	adminPrompt := promptui.Prompt{
		Label:    "Admin email",
		Validate: validateEmail,
	}
	admin, err := adminPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("admin email: %w", err)
	}
	cfg.Site.AdminEmail = strings.TrimSpace(admin)

	// 3. Backend driver.
	driverPrompt := promptui.Select{
		Label: "Where should posts be stored",
		Items: []string{
			"sqlite - local database file",
			"rest   - hosted table API",
		},
	}
	driverIdx, _, err := driverPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("driver selection: %w", err)
	}

	if driverIdx == 1 {
		cfg.Backend.Driver = DriverREST
		urlPrompt := promptui.Prompt{Label: "Backend URL"}
		if cfg.Backend.URL, err = urlPrompt.Run(); err != nil {
			return nil, fmt.Errorf("backend url: %w", err)
		}
		keyPrompt := promptui.Prompt{Label: "Anon key", Mask: '*'}
		if cfg.Backend.AnonKey, err = keyPrompt.Run(); err != nil {
			return nil, fmt.Errorf("anon key: %w", err)
		}
	} else {
		pathPrompt := promptui.Prompt{
			Label:   "SQLite database path",
			Default: cfg.Backend.SQLitePath,
		}
		if cfg.Backend.SQLitePath, err = pathPrompt.Run(); err != nil {
			return nil, fmt.Errorf("sqlite path: %w", err)
		}
	}

	// 4. Listener.
	portPrompt := promptui.Prompt{
		Label:    "HTTP port",
		Default:  strconv.Itoa(cfg.Server.Port),
		Validate: validatePort,
	}
	portStr, err := portPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("port: %w", err)
	}
	cfg.Server.Port, _ = strconv.Atoi(portStr)
	cfg.Server.BaseURL = fmt.Sprintf("http://localhost:%d", cfg.Server.Port)

	// 5. Extra public paths.
	publicPrompt := promptui.Prompt{
		Label:   "Extra public path globs (comma-separated, leave blank for defaults)",
		Default: "",
	}
	publicStr, err := publicPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("public paths: %w", err)
	}
	if extra := splitAndTrim(publicStr); len(extra) > 0 {
		cfg.Server.PublicPaths = append(append([]string(nil), DefaultPublicPaths...), extra...)
	}

	if cfg.Session.Secret, err = GenerateSecret(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.Save(path); err != nil {
		return nil, fmt.Errorf("saving config: %w", err)
	}

	fmt.Printf("\nConfiguration saved to %s\n", path)
	if cfg.Backend.Driver == DriverSQLite {
		fmt.Println("Magic links are written to the server log while using the sqlite driver.")
	}
	return cfg, nil
}

func validateEmail(s string) error {
	if _, err := mail.ParseAddress(strings.TrimSpace(s)); err != nil {
		return fmt.Errorf("not an email address")
	}
	return nil
}

func validatePort(s string) error {
	p, err := strconv.Atoi(s)
	if err != nil || p < 1 || p > 65535 {
		return fmt.Errorf("port must be between 1 and 65535")
	}
	return nil
}

// splitAndTrim splits a comma-separated string and trims whitespace,
// dropping empty tokens.
func splitAndTrim(s string) []string {
	var result []string
	for _, part := range strings.Split(s, ",") {
		if token := strings.TrimSpace(part); token != "" {
			result = append(result, token)
		}
	}
	return result
}
