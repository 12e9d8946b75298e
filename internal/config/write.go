package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
)

// Config files hold device secrets: owner-only access.
const (
	configFilePermissions = 0o600
	configDirPermissions  = 0o700
)

// yamlTemplate is written on first run. Optional sections are present as
// comments so users can discover them without reading docs.
const yamlTemplate = `# rmcloud-upload configuration
devices:
  default: ` + DefaultDeviceName + `
  device:
    ` + DefaultDeviceName + `:
      # Paste the device token obtained when registering this client.
      device_token: '` + PlaceholderToken + `'
      last_known_user_token: ''

# network:
#   timeout: 30s
#   max_retries: 2
#   storage_url: ` + DefaultStorageURL + `
#   webapp_url: ` + DefaultWebappURL + `

# logging:
#   log_level: warn       # debug, info, warn, error
#   log_format: auto      # auto, text, json
`

// tomlTemplate is the TOML rendering of yamlTemplate.
const tomlTemplate = `# rmcloud-upload configuration
[devices]
default = "` + DefaultDeviceName + `"

[devices.device.` + DefaultDeviceName + `]
# Paste the device token obtained when registering this client.
device_token = "` + PlaceholderToken + `"
last_known_user_token = ""

# [network]
# timeout = "30s"
# max_retries = 2
# storage_url = "` + DefaultStorageURL + `"
# webapp_url = "` + DefaultWebappURL + `"

# [logging]
# log_level = "warn"
# log_format = "auto"
`

// ErrConfigExists is returned by Scaffold when a file is already present.
var ErrConfigExists = errors.New("config: configuration file already exists")

// Scaffold writes the default configuration to path, in the format selected
// by its extension. It never overwrites an existing file.
func Scaffold(path string, logger *slog.Logger) error {
	if _, err := os.Stat(path); err == nil {
		logger.Error("configuration file exists, not writing defaults", slog.String("path", path))
		return fmt.Errorf("%w: %s", ErrConfigExists, path)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("config: checking %s: %w", path, err)
	}

	content := yamlTemplate
	if FormatFor(path) == FormatTOML {
		content = tomlTemplate
	}

	logger.Info("writing default configuration, add the device token to it",
		slog.String("path", path),
	)

	return atomicWriteFile(path, []byte(content))
}

// atomicWriteFile writes data to path via a temp file in the same directory
// and a rename, so a crash never leaves a partial config behind.
func atomicWriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, configDirPermissions); err != nil {
		return fmt.Errorf("config: creating directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".config-*.tmp")
	if err != nil {
		return fmt.Errorf("config: creating temp file: %w", err)
	}

	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmpPath)
		}
	}()

	if err := os.Chmod(tmpPath, configFilePermissions); err != nil {
		tmp.Close()
		return fmt.Errorf("config: setting permissions: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("config: writing: %w", err)
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("config: syncing: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("config: closing: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("config: renaming: %w", err)
	}

	success = true

	return nil
}
