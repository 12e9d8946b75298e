package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Format is the on-disk encoding of a config file.
type Format int

// Supported config file formats.
const (
	FormatYAML Format = iota
	FormatTOML
)

// FormatFor picks the encoding from the file extension. Only ".toml" selects
// TOML; every other name is YAML.
func FormatFor(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return FormatTOML
	}

	return FormatYAML
}

// Load reads, decodes and validates the config file at path. Unknown keys are
// logged as warnings. Decoding and validation failures are returned as-is:
// a malformed config file is fatal.
func Load(path string, logger *slog.Logger) (*File, error) {
	if logger == nil {
		logger = slog.Default()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	cfg, err := decode(data, FormatFor(path), logger)
	if err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func decode(data []byte, format Format, logger *slog.Logger) (*File, error) {
	var cfg File

	switch format {
	case FormatTOML:
		md, err := toml.Decode(string(data), &cfg)
		if err != nil {
			return nil, err
		}

		for _, key := range md.Undecoded() {
			logger.Warn("unknown config key", slog.String("key", key.String()))
		}
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, err
		}

		warnUnknownYAMLKeys(data, logger)
	}

	return &cfg, nil
}

// warnUnknownYAMLKeys re-decodes with KnownFields to surface typos without
// rejecting the file.
func warnUnknownYAMLKeys(data []byte, logger *slog.Logger) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var strict File
	if err := dec.Decode(&strict); err != nil && !errors.Is(err, io.EOF) {
		logger.Warn("unknown config keys", slog.String("error", err.Error()))
	}
}
