// ABOUTME: Configuration loader for the fleet dashboard client
// ABOUTME: Merges defaults, config.toml, .env, environment, and flag overrides

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/markalston/fleet-dashboard/internal/cookie"
)

const (
	// FileName is the optional TOML file inside the config directory
	FileName = "config.toml"
	// LogFileName receives logs while the full-screen UI is running
	LogFileName = "debug.log"

	appDirName = "fleet-dashboard"
)

type Config struct {
	// Backend
	APIURL         string
	RequestTimeout int // seconds, 1-300 (default 30)

	// Cookie scoping
	Environment cookie.Environment
	BaseDomain  string // overrides the registrable domain derived from the host

	// Local state
	ConfigDir string

	// Logging
	LogLevel  string
	LogFormat string
}

// Overrides carries command-line values, which win over every other source.
type Overrides struct {
	APIURL    string
	ConfigDir string
	// EnvFile defaults to ".env" in the working directory
	EnvFile string
}

// fileConfig mirrors config.toml
type fileConfig struct {
	APIURL         string `toml:"api_url"`
	Environment    string `toml:"environment"`
	BaseDomain     string `toml:"base_domain"`
	RequestTimeout int    `toml:"request_timeout"`
	LogLevel       string `toml:"log_level"`
	LogFormat      string `toml:"log_format"`
}

// Timeout returns RequestTimeout as a duration.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.RequestTimeout) * time.Second
}

// SiteURL returns the parsed backend URL.
func (c *Config) SiteURL() (*url.URL, error) {
	return url.Parse(c.APIURL)
}

// CookieScope returns the domain policy for session cookies.
func (c *Config) CookieScope() cookie.Scope {
	return cookie.ScopeFor(c.Environment, c.BaseDomain)
}

// CookieJarPath returns the persisted cookie jar location.
func (c *Config) CookieJarPath() string {
	return cookie.DefaultPath(c.ConfigDir)
}

// LogPath returns the log file used while the UI owns the terminal.
func (c *Config) LogPath() string {
	if c.ConfigDir == "" {
		return ""
	}
	return filepath.Join(c.ConfigDir, LogFileName)
}

// Load reads configuration. Precedence, lowest first: defaults,
// config.toml, .env, environment, overrides.
func Load(o Overrides) (*Config, error) {
	envFile := o.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	// godotenv never overrides variables already set in the environment.
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
	}

	configDir := o.ConfigDir
	if configDir == "" {
		configDir = getEnv("FLEET_CONFIG_DIR", DefaultConfigDir())
	}

	file, err := loadFile(configDir)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		APIURL:         ensureScheme(getEnv("FLEET_API_URL", orDefault(file.APIURL, "http://localhost:8080"))),
		RequestTimeout: getEnvInt("FLEET_REQUEST_TIMEOUT", intOrDefault(file.RequestTimeout, 30)),
		BaseDomain:     getEnv("FLEET_BASE_DOMAIN", file.BaseDomain),
		ConfigDir:      configDir,
		LogLevel:       getEnv("LOG_LEVEL", orDefault(file.LogLevel, "info")),
		LogFormat:      getEnv("LOG_FORMAT", orDefault(file.LogFormat, "text")),
	}
	if o.APIURL != "" {
		cfg.APIURL = ensureScheme(o.APIURL)
	}
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")

	env, err := cookie.ValidateEnvironment(getEnv("FLEET_ENVIRONMENT", file.Environment))
	if err != nil {
		return nil, fmt.Errorf("FLEET_ENVIRONMENT: %w", err)
	}
	cfg.Environment = env

	if cfg.RequestTimeout < 1 || cfg.RequestTimeout > 300 {
		return nil, fmt.Errorf("FLEET_REQUEST_TIMEOUT must be between 1 and 300, got %d", cfg.RequestTimeout)
	}

	u, err := url.Parse(cfg.APIURL)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("FLEET_API_URL is not a valid URL: %q", cfg.APIURL)
	}

	return cfg, nil
}

// DefaultConfigDir returns the default config directory following XDG spec
func DefaultConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, appDirName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", appDirName)
}

func loadFile(configDir string) (fileConfig, error) {
	var fc fileConfig
	if configDir == "" {
		return fc, nil
	}

	path := filepath.Join(configDir, FileName)
	if _, err := toml.DecodeFile(path, &fc); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fileConfig{}, nil
		}
		return fileConfig{}, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return fc, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func orDefault(value, defaultValue string) string {
	if value != "" {
		return value
	}
	return defaultValue
}

func intOrDefault(value, defaultValue int) int {
	if value != 0 {
		return value
	}
	return defaultValue
}

// ensureScheme adds https:// prefix if the URL has no scheme
func ensureScheme(url string) string {
	if url == "" {
		return url
	}
	if !strings.Contains(url, "://") {
		return "https://" + url
	}
	return url
}
