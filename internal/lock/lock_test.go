package lock

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileLock_AcquireAndRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "locks", "daemon.lock")

	l := New(path)
	require.NoError(t, l.TryLock())
	require.NoError(t, l.Unlock())

	// Reacquirable after release.
	require.NoError(t, l.TryLock())
	require.NoError(t, l.Unlock())
}

func TestFileLock_SecondHolderRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daemon.lock")

	first := New(path)
	require.NoError(t, first.TryLock())
	defer first.Unlock()

	second := New(path)
	err := second.TryLock()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "held by another daemon")
}

func TestFileLock_UnlockWithoutLockIsNoop(t *testing.T) {
	l := New(filepath.Join(t.TempDir(), "daemon.lock"))
	assert.NoError(t, l.Unlock())
}
