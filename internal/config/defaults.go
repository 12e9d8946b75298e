package config

import "time"

// Default values used when the configuration file leaves a setting unset.
const (
	DefaultDeviceName = "reMarkable2"
	DefaultStorageURL = "https://document-storage-production-dot-remarkable-production.appspot.com"
	DefaultWebappURL  = "https://webapp-production-dot-remarkable-production.appspot.com"

	defaultTimeout    = 30 * time.Second
	defaultMaxRetries = 2
	defaultLogLevel   = "warn"
	defaultLogFormat  = "auto"
)

// PlaceholderToken is written by the scaffold. Any token starting with
// placeholderPrefix is treated as not configured.
const (
	PlaceholderToken  = "#INSERT_TOKEN_HERE"
	placeholderPrefix = "#"
)

// Network is the effective network configuration with defaults applied.
type Network struct {
	Timeout    time.Duration `json:"timeout"`
	MaxRetries int           `json:"max_retries"`
	StorageURL string        `json:"storage_url"`
	WebappURL  string        `json:"webapp_url"`
}

// Logging is the effective logging configuration with defaults applied.
type Logging struct {
	Level  string `json:"log_level"`
	Format string `json:"log_format"`
}

// DefaultNetwork returns the network settings used without a config file.
func DefaultNetwork() Network {
	return Network{
		Timeout:    defaultTimeout,
		MaxRetries: defaultMaxRetries,
		StorageURL: DefaultStorageURL,
		WebappURL:  DefaultWebappURL,
	}
}

// DefaultLogging returns the logging settings used without a config file.
func DefaultLogging() Logging {
	return Logging{
		Level:  defaultLogLevel,
		Format: defaultLogFormat,
	}
}

// resolveNetwork applies defaults to nc. nc must already be validated.
func resolveNetwork(nc NetworkConfig) Network {
	n := DefaultNetwork()

	if nc.Timeout != "" {
		if d, err := time.ParseDuration(nc.Timeout); err == nil {
			n.Timeout = d
		}
	}

	if nc.MaxRetries != nil {
		n.MaxRetries = *nc.MaxRetries
	}

	if nc.StorageURL != "" {
		n.StorageURL = nc.StorageURL
	}

	if nc.WebappURL != "" {
		n.WebappURL = nc.WebappURL
	}

	return n
}

func resolveLogging(lc LoggingConfig) Logging {
	l := DefaultLogging()

	if lc.LogLevel != "" {
		l.Level = lc.LogLevel
	}

	if lc.LogFormat != "" {
		l.Format = lc.LogFormat
	}

	return l
}
