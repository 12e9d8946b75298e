package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

// Validation range constants.
const (
	minTimeout = 1 * time.Second
	maxRetries = 10
)

var (
	validLogLevels  = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	validLogFormats = map[string]bool{"auto": true, "text": true, "json": true}
)

// Validate checks all configuration values and returns all errors found.
// Device tokens are not validated here: an unconfigured device is reported
// by Lookup, only for the device actually requested.
func Validate(cfg *File) error {
	var errs []error

	errs = append(errs, validateNetwork(&cfg.Network)...)
	errs = append(errs, validateLogging(&cfg.Logging)...)

	return errors.Join(errs...)
}

func validateNetwork(n *NetworkConfig) []error {
	var errs []error

	if n.Timeout != "" {
		d, err := time.ParseDuration(n.Timeout)
		if err != nil {
			errs = append(errs, fmt.Errorf("timeout: %w", err))
		} else if d < minTimeout {
			errs = append(errs, fmt.Errorf("timeout: must be >= %s, got %s", minTimeout, d))
		}
	}

	if n.MaxRetries != nil && (*n.MaxRetries < 0 || *n.MaxRetries > maxRetries) {
		errs = append(errs, fmt.Errorf("max_retries: must be 0-%d, got %d", maxRetries, *n.MaxRetries))
	}

	errs = append(errs, validateBaseURL("storage_url", n.StorageURL)...)
	errs = append(errs, validateBaseURL("webapp_url", n.WebappURL)...)

	return errs
}

func validateBaseURL(key, raw string) []error {
	if raw == "" {
		return nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return []error{fmt.Errorf("%s: %w", key, err)}
	}

	if (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		return []error{fmt.Errorf("%s: must be an absolute http(s) URL, got %q", key, raw)}
	}

	return nil
}

func validateLogging(l *LoggingConfig) []error {
	var errs []error

	if l.LogLevel != "" && !validLogLevels[l.LogLevel] {
		errs = append(errs, fmt.Errorf("log_level: must be one of debug, info, warn, error; got %q", l.LogLevel))
	}

	if l.LogFormat != "" && !validLogFormats[l.LogFormat] {
		errs = append(errs, fmt.Errorf("log_format: must be one of auto, text, json; got %q", l.LogFormat))
	}

	return errs
}
