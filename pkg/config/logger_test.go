package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerValidate(t *testing.T) {
	assert.NoError(t, Logger{}.Validate())
	assert.NoError(t, Logger{LogEncoding: "console"}.Validate())
	assert.NoError(t, Logger{LogEncoding: "json"}.Validate())
	assert.Error(t, Logger{LogEncoding: "xml"}.Validate())
}

func TestNewLoggerDefaults(t *testing.T) {
	log, err := NewLogger(Logger{})
	require.NoError(t, err)
	require.NotNil(t, log)
}

func TestNewLoggerRejectsBadLevel(t *testing.T) {
	_, err := NewLogger(Logger{LogLevel: "not-a-level"})
	assert.Error(t, err)
}

func TestNewLoggerWritesToLogPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "node.log")

	log, err := NewLogger(Logger{LogPath: path})
	require.NoError(t, err)
	log.Info("hello")

	_, err = os.Stat(path)
	assert.NoError(t, err)
}
