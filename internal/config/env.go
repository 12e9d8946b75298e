package config

import "os"

// Environment variable names for overrides.
const (
	EnvConfig = "RMCLOUD_CONFIG"
	EnvDevice = "RMCLOUD_DEVICE"
)

// EnvOverrides holds values derived from environment variables.
type EnvOverrides struct {
	ConfigPath string // RMCLOUD_CONFIG: override config file path
	Device     string // RMCLOUD_DEVICE: target device name
}

// ReadEnvOverrides reads environment variables and returns any overrides found.
func ReadEnvOverrides() EnvOverrides {
	return EnvOverrides{
		ConfigPath: os.Getenv(EnvConfig),
		Device:     os.Getenv(EnvDevice),
	}
}

// ResolveConfigPath picks the config path: CLI > env > default.
func ResolveConfigPath(cliPath string, env EnvOverrides) string {
	if cliPath != "" {
		return cliPath
	}

	if env.ConfigPath != "" {
		return env.ConfigPath
	}

	return DefaultConfigPath()
}
