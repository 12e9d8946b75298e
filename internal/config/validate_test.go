package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func intPtr(n int) *int { return &n }

func TestValidate_Empty(t *testing.T) {
	assert.NoError(t, Validate(&File{}))
}

func TestValidate_Network(t *testing.T) {
	tests := []struct {
		name    string
		network NetworkConfig
		wantErr string
	}{
		{"valid", NetworkConfig{Timeout: "5s", MaxRetries: intPtr(3), StorageURL: "https://example.com"}, ""},
		{"bad duration", NetworkConfig{Timeout: "five"}, "timeout"},
		{"too short", NetworkConfig{Timeout: "10ms"}, "timeout"},
		{"negative retries", NetworkConfig{MaxRetries: intPtr(-1)}, "max_retries"},
		{"too many retries", NetworkConfig{MaxRetries: intPtr(11)}, "max_retries"},
		{"relative url", NetworkConfig{StorageURL: "/path"}, "storage_url"},
		{"bad scheme", NetworkConfig{WebappURL: "ftp://host"}, "webapp_url"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(&File{Network: tt.network})
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}

			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestValidate_Logging(t *testing.T) {
	assert.NoError(t, Validate(&File{Logging: LoggingConfig{LogLevel: "info", LogFormat: "text"}}))
	assert.ErrorContains(t, Validate(&File{Logging: LoggingConfig{LogLevel: "loud"}}), "log_level")
	assert.ErrorContains(t, Validate(&File{Logging: LoggingConfig{LogFormat: "xml"}}), "log_format")
}

func TestValidate_AccumulatesErrors(t *testing.T) {
	err := Validate(&File{
		Network: NetworkConfig{Timeout: "x"},
		Logging: LoggingConfig{LogFormat: "xml"},
	})

	assert.ErrorContains(t, err, "timeout")
	assert.ErrorContains(t, err, "log_format")
}
