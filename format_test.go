package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatSize(t *testing.T) {
	tests := []struct {
		name  string
		bytes int64
		want  string
	}{
		{"zero", 0, "0 B"},
		{"bytes", 512, "512 B"},
		{"kilobytes", 1536, "1.5 KB"},
		{"megabytes", 5242880, "5.0 MB"},
		{"gigabytes", 1610612736, "1.5 GB"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatSize(tt.bytes))
		})
	}
}

func TestFormatTime(t *testing.T) {
	now := time.Date(2026, time.June, 1, 12, 0, 0, 0, time.UTC)

	t.Run("same year", func(t *testing.T) {
		got := formatTime(time.Date(2026, time.March, 15, 10, 30, 0, 0, time.UTC), now)
		assert.Equal(t, "Mar 15 10:30", got)
	})

	t.Run("different year", func(t *testing.T) {
		got := formatTime(time.Date(2020, time.December, 25, 8, 0, 0, 0, time.UTC), now)
		assert.Equal(t, "Dec 25  2020", got)
	})
}

func TestShortID(t *testing.T) {
	assert.Equal(t, "8a0b3f4e", shortID("8a0b3f4e-1111-4222-8333-444455556666"))
	assert.Equal(t, "abc", shortID("abc"))
	assert.Empty(t, shortID(""))
}

func TestPrintTable(t *testing.T) {
	var buf bytes.Buffer

	printTable(&buf, []string{"NAME", "DEFAULT", "STATUS"}, [][]string{
		{"reMarkable2", "*", "ready"},
		{"paper", "", "no token"},
	})

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 3)

	assert.Equal(t, "NAME         DEFAULT  STATUS", lines[0])
	assert.Equal(t, "reMarkable2  *        ready", lines[1])
	assert.Equal(t, "paper                 no token", lines[2])
}

func TestPrintJSON(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, printJSON(&buf, map[string]int{"a": 1}))
	assert.Equal(t, "{\n  \"a\": 1\n}\n", buf.String())
}
