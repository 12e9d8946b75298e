// Package testutil provides shared test environment helpers for E2E tests.
// It depends only on stdlib so that E2E tests exercise the binary the way a
// user does, through files and environment variables.
package testutil

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Environment variables read by the live E2E tier.
const (
	EnvLiveDeviceToken = "RMCLOUD_E2E_DEVICE_TOKEN"
	EnvLiveAllowed     = "RMCLOUD_E2E_ALLOW_LIVE"
)

// LoadDotEnv reads KEY=VALUE pairs from a .env file at the given path.
// Missing file is not an error (CI sets env vars directly).
// Existing env vars take precedence over .env values.
func LoadDotEnv(envPath string) {
	f, err := os.Open(envPath)
	if err != nil {
		return
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}

		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		value = strings.Trim(value, "\"'")

		// Env vars take precedence over .env file.
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}

// RequireLiveOptIn crashes the process unless live uploads were explicitly
// allowed, and returns the device token to use. Live tests upload real
// documents to a real account.
func RequireLiveOptIn() string {
	if os.Getenv(EnvLiveAllowed) != "1" {
		fmt.Fprintf(os.Stderr, "FATAL: %s=1 is required for live E2E tests\n", EnvLiveAllowed)
		os.Exit(1)
	}

	token := strings.TrimSpace(os.Getenv(EnvLiveDeviceToken))
	if token == "" {
		fmt.Fprintf(os.Stderr, "FATAL: %s not set\n", EnvLiveDeviceToken)
		fmt.Fprintln(os.Stderr, "Set it in .env or as an environment variable.")
		os.Exit(1)
	}

	return token
}

// FindModuleRoot walks up from the current directory to find go.mod.
// Returns the fallback if the root is not found.
func FindModuleRoot(fallback string) string {
	dir, err := os.Getwd()
	if err != nil {
		return fallback
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return fallback
		}

		dir = parent
	}
}

// DeviceConfig renders a config file for one device. Empty URLs leave the
// production endpoints in place.
func DeviceConfig(device, token, baseURL string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "devices:\n  default: %s\n  device:\n    %s:\n      device_token: '%s'\n", device, device, token)

	if baseURL != "" {
		fmt.Fprintf(&b, "network:\n  max_retries: 0\n  storage_url: %s\n  webapp_url: %s\n", baseURL, baseURL)
	}

	return b.String()
}

// WriteFile writes data to path, creating parent directories. Crashes on
// failure because tests cannot proceed without the file.
func WriteFile(path string, data []byte) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: creating %s: %v\n", filepath.Dir(path), err)
		os.Exit(1)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: writing %s: %v\n", path, err)
		os.Exit(1)
	}
}
