package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestEmptyFileDiscards(t *testing.T) {
	log, closeFn, err := New("", "debug")
	require.NoError(t, err)
	log.Info("dropped")
	assert.NoError(t, closeFn())
}

func TestFileLoggerRespectsLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sshdash.log")
	log, closeFn, err := New(path, "info")
	require.NoError(t, err)

	log.Debug("hidden")
	log.Info("reload done", zap.Uint64("generation", 3))
	require.NoError(t, closeFn())

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(b)
	assert.Contains(t, out, "INFO")
	assert.Contains(t, out, "reload done")
	assert.Contains(t, out, `"generation": 3`)
	assert.NotContains(t, out, "hidden")
}

func TestBadLevel(t *testing.T) {
	_, _, err := New(filepath.Join(t.TempDir(), "x.log"), "loud")
	assert.Error(t, err)
	_, err = Console("loud")
	assert.Error(t, err)
}
