package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// Platform identifiers.
const (
	platformLinux  = "linux"
	platformDarwin = "darwin"
)

// appName names the data directory.
const appName = "rmcloud-upload"

// Config location shared with earlier uploaders for this device family, so
// existing device tokens keep working.
const (
	configDirName  = ".reMarkable2"
	configFileName = "reMarkable2.yaml"
)

// ledgerFileName is the upload history database inside the data directory.
const ledgerFileName = "history.db"

// DefaultConfigDir returns the per-user configuration directory (~/.reMarkable2).
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	return filepath.Join(home, configDirName)
}

// DefaultConfigPath returns the full path to the default config file.
// This is used as the fallback when neither RMCLOUD_CONFIG nor --config is
// specified.
func DefaultConfigPath() string {
	dir := DefaultConfigDir()
	if dir == "" {
		return ""
	}

	return filepath.Join(dir, configFileName)
}

// DefaultDataDir returns the platform-specific directory for application data.
// On Linux, respects XDG_DATA_HOME (defaults to ~/.local/share/rmcloud-upload).
// On macOS, uses ~/Library/Application Support/rmcloud-upload.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	switch runtime.GOOS {
	case platformLinux:
		return linuxDataDir(home)
	case platformDarwin:
		return filepath.Join(home, "Library", "Application Support", appName)
	default:
		return filepath.Join(home, ".local", "share", appName)
	}
}

// linuxDataDir returns the XDG-compliant data directory for Linux.
func linuxDataDir(home string) string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, appName)
	}

	return filepath.Join(home, ".local", "share", appName)
}

// DefaultLedgerPath returns the path of the upload history database.
func DefaultLedgerPath() string {
	dir := DefaultDataDir()
	if dir == "" {
		return ""
	}

	return filepath.Join(dir, ledgerFileName)
}
