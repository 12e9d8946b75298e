package config

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderEffective(t *testing.T) {
	s := NewStore(&File{
		Devices: Devices{
			Default: "rm2",
			Device: map[string]Device{
				"rm2":   {DeviceToken: "SECRET-DEVICE-TOKEN"},
				"spare": {DeviceToken: PlaceholderToken},
				"empty": {},
			},
		},
	}, testLogger(t))

	var buf bytes.Buffer
	require.NoError(t, RenderEffective(s, &buf))

	out := buf.String()
	assert.Contains(t, out, "# Effective configuration\n")
	assert.Contains(t, out, `default = "rm2"`)
	assert.Contains(t, out, "[devices.rm2]\n  device_token = set\n")
	assert.Contains(t, out, "[devices.spare]\n  device_token = placeholder\n")
	assert.Contains(t, out, "[devices.empty]\n  device_token = missing\n")
	assert.Contains(t, out, `timeout     = "30s"`)
	assert.Contains(t, out, `storage_url = "`+DefaultStorageURL+`"`)
	assert.Contains(t, out, `log_level  = "warn"`)
	assert.NotContains(t, out, "SECRET-DEVICE-TOKEN")
}

func TestRenderEffective_ShowsPath(t *testing.T) {
	path := writeTestConfig(t, "reMarkable2.yaml", fullYAML)

	s, err := Open(path, testLogger(t))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, RenderEffective(s, &buf))
	assert.Contains(t, buf.String(), "# Effective configuration from "+path)
}

// failWriter fails every write.
type failWriter struct{}

func (failWriter) Write([]byte) (int, error) {
	return 0, errors.New("disk full")
}

func TestRenderEffective_WriteError(t *testing.T) {
	s := NewStore(&File{}, testLogger(t))

	err := RenderEffective(s, failWriter{})
	assert.EqualError(t, err, "disk full")
}
