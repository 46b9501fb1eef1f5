// ABOUTME: Root command for the fleet CLI
// ABOUTME: Handles global flags, configuration loading, and shared session wiring

package cmd

import (
	"fmt"
	"log/slog"

	"github.com/markalston/fleet-dashboard/internal/client"
	"github.com/markalston/fleet-dashboard/internal/config"
	"github.com/markalston/fleet-dashboard/internal/cookie"
	"github.com/markalston/fleet-dashboard/internal/logger"
	"github.com/markalston/fleet-dashboard/internal/session"
	"github.com/spf13/cobra"
)

var (
	apiURL     string
	configDir  string
	envFile    string
	jsonOutput bool
)

// rootCmd is the base command
var rootCmd = &cobra.Command{
	Use:   "fleet",
	Short: "Session client for the Fleet Dashboard",
	Long: `fleet signs in to the Fleet Dashboard backend and keeps the session alive
while you work, signing you out after a period of inactivity.

Environment Variables:
  FLEET_API_URL          Backend API URL (default: http://localhost:8080)
  FLEET_ENVIRONMENT      development, staging, production, or test (default: production)
  FLEET_BASE_DOMAIN      Cookie domain shared across tenant subdomains
  FLEET_CONFIG_DIR       Directory for config.toml, cookies, and logs
  FLEET_REQUEST_TIMEOUT  Backend request timeout in seconds (default: 30)
  LOG_LEVEL, LOG_FORMAT  Logging (default: info, text)`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "", "Backend API URL (overrides FLEET_API_URL)")
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "Config directory (overrides FLEET_CONFIG_DIR)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "Dotenv file to load (default: .env)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output JSON instead of human-readable text")
}

// IsJSONOutput returns whether JSON output is requested
func IsJSONOutput() bool {
	return jsonOutput
}

func loadConfig() (*config.Config, error) {
	return config.Load(config.Overrides{
		APIURL:    apiURL,
		ConfigDir: configDir,
		EnvFile:   envFile,
	})
}

// initLogging installs the default logger. An empty path logs to stderr.
func initLogging(cfg *config.Config, path string) func() error {
	closeLog, err := logger.Init(logger.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		Path:   path,
	})
	if err != nil {
		slog.Warn("Falling back to stderr logging", "error", err)
	}
	return closeLog
}

// deps is everything a session command needs, all sharing one cookie jar.
type deps struct {
	cfg    *config.Config
	jar    *cookie.Jar
	client *client.Client
	store  *session.Store
}

func newDeps(cfg *config.Config) (*deps, error) {
	jar, err := cookie.New(cfg.CookieJarPath())
	if err != nil {
		return nil, fmt.Errorf("failed to open cookie jar: %w", err)
	}
	site, err := cfg.SiteURL()
	if err != nil {
		return nil, fmt.Errorf("invalid API URL: %w", err)
	}

	scope := cfg.CookieScope()
	slog.Debug("Session storage configured",
		"api_url", cfg.APIURL,
		"environment", string(scope.Environment()),
		"cookie_domain", scope.Domain(site.Host),
		"jar_path", jar.Path(),
	)

	return &deps{
		cfg:    cfg,
		jar:    jar,
		client: client.New(cfg.APIURL, jar, client.WithTimeout(cfg.Timeout())),
		store:  session.NewStore(jar, site, scope),
	}, nil
}

// setup loads configuration, installs logging, and opens the shared jar.
// logToFile sends logs to the config directory instead of the terminal.
func setup(logToFile bool) (*deps, func() error, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}

	path := ""
	if logToFile {
		path = cfg.LogPath()
	}
	closeLog := initLogging(cfg, path)

	d, err := newDeps(cfg)
	if err != nil {
		closeLog()
		return nil, nil, err
	}
	return d, closeLog, nil
}
