package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWhenFileMissing(t *testing.T) {
	root := t.TempDir()

	cfg, err := Load(root)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(root, "inbox"), cfg.Queue.InboxDir)
	assert.Equal(t, filepath.Join(root, "progress"), cfg.Queue.ProgressDir)
	assert.Equal(t, filepath.Join(root, "finished"), cfg.Queue.FinishedDir)
	assert.Equal(t, filepath.Join(root, "failed"), cfg.Queue.FailedDir)
	assert.Equal(t, 4, cfg.Worker.MaxConcurrency)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	root := t.TempDir()
	content := `
queue:
  inbox_dir: incoming
worker:
  max_concurrency: 2
  command: ["/bin/cat"]
logging:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(root, FileName), []byte(content), 0644))

	cfg, err := Load(root)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(root, "incoming"), cfg.Queue.InboxDir)
	assert.Equal(t, filepath.Join(root, "progress"), cfg.Queue.ProgressDir)
	assert.Equal(t, 2, cfg.Worker.MaxConcurrency)
	assert.Equal(t, []string{"/bin/cat"}, cfg.Worker.Command)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	root := t.TempDir()
	content := "worker:\n  max_concurrency: 2\n"
	require.NoError(t, os.WriteFile(filepath.Join(root, FileName), []byte(content), 0644))

	t.Setenv("DIRQ_MAX_CONCURRENCY", "8")
	t.Setenv("DIRQ_LOG_LEVEL", "warn")

	cfg, err := Load(root)
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.Worker.MaxConcurrency)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoad_RejectsNonPositiveConcurrency(t *testing.T) {
	root := t.TempDir()
	content := "worker:\n  max_concurrency: 0\n"
	require.NoError(t, os.WriteFile(filepath.Join(root, FileName), []byte(content), 0644))

	_, err := Load(root)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_concurrency")
}

func TestLoad_RejectsSharedDirectories(t *testing.T) {
	root := t.TempDir()
	content := "queue:\n  finished_dir: done\n  failed_dir: done\n"
	require.NoError(t, os.WriteFile(filepath.Join(root, FileName), []byte(content), 0644))

	_, err := Load(root)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "same directory")
}

func TestLoad_InvalidYAML(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, FileName), []byte("queue: [unclosed"), 0644))

	_, err := Load(root)
	require.Error(t, err)
}
