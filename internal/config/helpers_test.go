// ABOUTME: Test helpers for config tests
// ABOUTME: Provides utilities for environment variable management

package config

import (
	"os"
	"path/filepath"
	"testing"
)

var configEnvKeys = []string{
	"FLEET_API_URL",
	"FLEET_ENVIRONMENT",
	"FLEET_BASE_DOMAIN",
	"FLEET_CONFIG_DIR",
	"FLEET_REQUEST_TIMEOUT",
	"LOG_LEVEL",
	"LOG_FORMAT",
	"XDG_CONFIG_HOME",
}

// withCleanEnv unsets every variable Load reads and points XDG_CONFIG_HOME
// at a temp dir. The original values come back when the test ends.
//
// Example:
//
//	func TestSomething(t *testing.T) {
//	    dir := withCleanEnv(t)
//	    // environment is clean, config dir is dir/fleet-dashboard
//	}
func withCleanEnv(t *testing.T) string {
	t.Helper()

	for _, key := range configEnvKeys {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)
	return filepath.Join(xdg, appDirName)
}

// writeFile creates path with content, making parent directories.
func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

// noEnvFile returns Overrides pointing at a .env that does not exist.
func noEnvFile(t *testing.T) Overrides {
	t.Helper()
	return Overrides{EnvFile: filepath.Join(t.TempDir(), ".env")}
}
