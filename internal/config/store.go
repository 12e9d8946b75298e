package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sort"
	"strings"
)

// ErrNotConfigured means the requested device has no usable token: the
// config file was just scaffolded, the device is unknown, or its token is
// empty or still the placeholder.
var ErrNotConfigured = errors.New("config: device not configured")

// Store is the device token store backed by one config file.
type Store struct {
	path   string
	file   *File
	logger *slog.Logger
}

// Open loads the config file at path. When no file exists, the default
// configuration is written first and an error wrapping ErrNotConfigured is
// returned: the first run always stops so the user can add a device token.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if path == "" {
		return nil, errors.New("config: cannot determine config file path")
	}

	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		logger.Warn("configuration file not found, creating a default one", slog.String("path", path))

		if scaffoldErr := Scaffold(path, logger); scaffoldErr != nil {
			return nil, scaffoldErr
		}

		return nil, fmt.Errorf("created %s, edit it and set the device token to continue: %w", path, ErrNotConfigured)
	}

	cfg, err := Load(path, logger)
	if err != nil {
		return nil, err
	}

	return &Store{path: path, file: cfg, logger: logger}, nil
}

// NewStore wraps an already decoded config. Used by tests and callers that
// build configuration in memory.
func NewStore(cfg *File, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}

	return &Store{file: cfg, logger: logger}
}

// Path returns the file the store was loaded from ("" for in-memory stores).
func (s *Store) Path() string {
	return s.path
}

// Lookup returns the device token stored for deviceName, unchanged.
func (s *Store) Lookup(deviceName string) (string, error) {
	cred, err := s.Credential(deviceName)
	if err != nil {
		return "", err
	}

	return cred.DeviceToken, nil
}

// Credential returns the full credential record for deviceName. An empty
// name resolves to the configured default device.
func (s *Store) Credential(deviceName string) (DeviceCredential, error) {
	if deviceName == "" {
		deviceName = s.DefaultDevice()
	}

	dev, ok := s.file.Devices.Device[deviceName]
	if !ok {
		s.logger.Error("device is not known or has no token set", slog.String("device", deviceName))
		return DeviceCredential{}, fmt.Errorf("%w: unknown device %q", ErrNotConfigured, deviceName)
	}

	if !tokenConfigured(dev.DeviceToken) {
		s.logger.Error("device token is not configured", slog.String("device", deviceName))
		return DeviceCredential{}, fmt.Errorf("%w: device %q has no token", ErrNotConfigured, deviceName)
	}

	return DeviceCredential{
		Name:               deviceName,
		DeviceToken:        dev.DeviceToken,
		LastKnownUserToken: dev.LastKnownUserToken,
	}, nil
}

// ResolveDevice picks the device name: CLI > env > config default.
func (s *Store) ResolveDevice(cliDevice string, env EnvOverrides) string {
	if cliDevice != "" {
		return cliDevice
	}

	if env.Device != "" {
		return env.Device
	}

	return s.DefaultDevice()
}

// DefaultDevice returns devices.default, or DefaultDeviceName when unset.
func (s *Store) DefaultDevice() string {
	if name := strings.TrimSpace(s.file.Devices.Default); name != "" {
		return name
	}

	return DefaultDeviceName
}

// Devices lists every configured device sorted by name.
func (s *Store) Devices() []DeviceStatus {
	def := s.DefaultDevice()
	out := make([]DeviceStatus, 0, len(s.file.Devices.Device))

	for name, dev := range s.file.Devices.Device {
		out = append(out, DeviceStatus{
			Name:       name,
			Default:    name == def,
			Configured: tokenConfigured(dev.DeviceToken),
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })

	return out
}

// Network returns the effective network settings.
func (s *Store) Network() Network {
	return resolveNetwork(s.file.Network)
}

// Logging returns the effective logging settings.
func (s *Store) Logging() Logging {
	return resolveLogging(s.file.Logging)
}

func tokenConfigured(token string) bool {
	token = strings.TrimSpace(token)
	return token != "" && !strings.HasPrefix(token, placeholderPrefix)
}
