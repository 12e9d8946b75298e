package config

import (
	"fmt"
	"io"
)

// Token states shown by RenderEffective. Tokens themselves are never printed.
const (
	tokenStateSet         = "set"
	tokenStatePlaceholder = "placeholder"
	tokenStateMissing     = "missing"
)

// RenderEffective writes the effective configuration as an annotated summary
// to w. This powers the "config show" command. Device tokens are reported
// only as set, placeholder or missing.
func RenderEffective(s *Store, w io.Writer) error {
	ew := &errWriter{w: w}

	if s.path != "" {
		ew.printf("# Effective configuration from %s\n\n", s.path)
	} else {
		ew.printf("# Effective configuration\n\n")
	}

	renderDevicesSection(ew, s)
	renderNetworkSection(ew, s.Network())
	renderLoggingSection(ew, s.Logging())

	return ew.err
}

// errWriter wraps an io.Writer and captures the first write error.
// Subsequent writes after an error are no-ops, so callers can chain
// printf calls without checking each one individually.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...any) {
	if ew.err != nil {
		return
	}

	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}

func renderDevicesSection(ew *errWriter, s *Store) {
	ew.printf("[devices]\n")
	ew.printf("  default = %q\n", s.DefaultDevice())

	for _, d := range s.Devices() {
		ew.printf("\n[devices.%s]\n", d.Name)
		ew.printf("  device_token = %s\n", tokenState(s.file.Devices.Device[d.Name].DeviceToken))
	}

	ew.printf("\n")
}

func renderNetworkSection(ew *errWriter, n Network) {
	ew.printf("[network]\n")
	ew.printf("  timeout     = %q\n", n.Timeout.String())
	ew.printf("  max_retries = %d\n", n.MaxRetries)
	ew.printf("  storage_url = %q\n", n.StorageURL)
	ew.printf("  webapp_url  = %q\n", n.WebappURL)
	ew.printf("\n")
}

func renderLoggingSection(ew *errWriter, l Logging) {
	ew.printf("[logging]\n")
	ew.printf("  log_level  = %q\n", l.Level)
	ew.printf("  log_format = %q\n", l.Format)
}

func tokenState(token string) string {
	switch {
	case tokenConfigured(token):
		return tokenStateSet
	case token == "":
		return tokenStateMissing
	default:
		return tokenStatePlaceholder
	}
}
