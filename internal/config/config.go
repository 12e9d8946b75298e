// Package config implements the device configuration file: per-device
// credentials keyed by device name, plus optional network and logging
// settings. The file is YAML by default; a path ending in ".toml" is read and
// scaffolded as TOML with the same key layout.
package config

// File is the on-disk configuration structure.
type File struct {
	Devices Devices       `yaml:"devices" toml:"devices"`
	Network NetworkConfig `yaml:"network,omitempty" toml:"network,omitempty"`
	Logging LoggingConfig `yaml:"logging,omitempty" toml:"logging,omitempty"`
}

// Devices holds the default device name and the per-device credentials.
type Devices struct {
	Default string            `yaml:"default" toml:"default"`
	Device  map[string]Device `yaml:"device" toml:"device"`
}

// Device is one registered device's stored credentials.
type Device struct {
	DeviceToken        string `yaml:"device_token" toml:"device_token"`
	LastKnownUserToken string `yaml:"last_known_user_token" toml:"last_known_user_token"`
}

// NetworkConfig controls HTTP timeouts, retries and endpoint overrides.
// Empty values fall back to the defaults in defaults.go.
type NetworkConfig struct {
	Timeout    string `yaml:"timeout,omitempty" toml:"timeout,omitempty"`
	MaxRetries *int   `yaml:"max_retries,omitempty" toml:"max_retries,omitempty"`
	StorageURL string `yaml:"storage_url,omitempty" toml:"storage_url,omitempty"`
	WebappURL  string `yaml:"webapp_url,omitempty" toml:"webapp_url,omitempty"`
}

// LoggingConfig controls log verbosity and output format.
type LoggingConfig struct {
	LogLevel  string `yaml:"log_level,omitempty" toml:"log_level,omitempty"`
	LogFormat string `yaml:"log_format,omitempty" toml:"log_format,omitempty"`
}

// DeviceCredential is the resolved credential record for one device.
// LastKnownUserToken is loaded but never refreshed on disk; session tokens
// live only in memory for the process lifetime.
type DeviceCredential struct {
	Name               string
	DeviceToken        string
	LastKnownUserToken string
}

// DeviceStatus describes a configured device for listing.
type DeviceStatus struct {
	Name       string `json:"name"`
	Default    bool   `json:"default"`
	Configured bool   `json:"configured"`
}
