package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]zapcore.Level{
		"DEBUG": zapcore.DebugLevel,
		"info":  zapcore.InfoLevel,
		"":      zapcore.InfoLevel,
		"Warn":  zapcore.WarnLevel,
		"ERROR": zapcore.ErrorLevel,
	}
	for in, want := range tests {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("TRACE")
	require.Error(t, err)
}

func TestNewWritesFileAndConsole(t *testing.T) {
	path := filepath.Join(t.TempDir(), "munge.log")
	require.NoError(t, os.WriteFile(path, []byte("stale content\n"), 0o644))

	var console bytes.Buffer
	log, cleanup, err := New(Options{Level: "DEBUG", File: path, Console: &console})
	require.NoError(t, err)

	log.Debug("debug entry")
	log.Info("info entry")
	log.Warn("warn entry")
	cleanup()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	file := string(data)
	assert.NotContains(t, file, "stale content")
	assert.Contains(t, file, "debug entry")
	assert.Contains(t, file, "info entry")
	assert.Contains(t, file, "warn entry")
	assert.Contains(t, file, "logging_test.go")

	assert.NotContains(t, console.String(), "info entry")
	assert.Contains(t, console.String(), "WARN")
	assert.Contains(t, console.String(), "warn entry")
}

func TestNewFileLevelFilters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "munge.log")
	var console bytes.Buffer
	log, cleanup, err := New(Options{Level: "ERROR", File: path, Console: &console})
	require.NoError(t, err)

	log.Warn("quiet")
	log.Error("loud")
	cleanup()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "quiet")
	assert.Contains(t, string(data), "loud")
	assert.NotContains(t, console.String(), "quiet")
}

func TestNewErrors(t *testing.T) {
	_, _, err := New(Options{Level: "LOUD"})
	require.Error(t, err)

	_, _, err = New(Options{File: filepath.Join(t.TempDir(), "missing", "dir", "x.log")})
	require.Error(t, err)
}
