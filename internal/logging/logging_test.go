package logging

import (
	"log"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"example.com/attendance/internal/config"
)

func TestSetupWritesToRotatingFile(t *testing.T) {
	t.Cleanup(func() {
		log.SetOutput(os.Stderr)
		log.SetPrefix("")
	})

	path := filepath.Join(t.TempDir(), "logs", "api.log")
	closer, err := Setup(config.LogConfig{File: path, MaxSizeMB: 1, MaxBackups: 1, MaxAgeDays: 1}, "[api] ")
	require.NoError(t, err)

	log.Printf("attendance recorded id=%s", "rec-1")
	require.NoError(t, closer.Close())

	contents, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(contents), "[api] ")
	require.Contains(t, string(contents), "attendance recorded id=rec-1")
}

func TestSetupWithoutFile(t *testing.T) {
	t.Cleanup(func() {
		log.SetOutput(os.Stderr)
		log.SetPrefix("")
	})

	closer, err := Setup(config.LogConfig{}, "")
	require.NoError(t, err)
	require.NoError(t, closer.Close())
}
