package queue

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harekaze/dirq/internal/model"
)

func openTestStorage(t *testing.T) *Storage {
	t.Helper()
	storage, err := Open(DefaultDirs(t.TempDir()))
	require.NoError(t, err)
	return storage
}

func TestCreateRead_RoundTrip(t *testing.T) {
	storage := openTestStorage(t)
	job := model.New("convert", `{"input":"a.wav"}`)

	entry, err := storage.Create(job)
	require.NoError(t, err)
	assert.Equal(t, job.ID, entry.Name)
	assert.Equal(t, model.StateInbox, entry.State)

	loaded, err := storage.Read(entry)
	require.NoError(t, err)
	assert.Equal(t, job.ID, loaded.ID)
	assert.Equal(t, job.Type, loaded.Type)
	assert.Equal(t, job.Payload, loaded.Payload)
}

func TestCreate_DuplicateID(t *testing.T) {
	storage := openTestStorage(t)
	job := model.New("", "p")

	_, err := storage.Create(job)
	require.NoError(t, err)

	_, err = storage.Create(job)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDuplicate))

	var writeErr *WriteError
	require.True(t, errors.As(err, &writeErr))
	assert.Equal(t, job.ID, writeErr.Name)
}

func TestCreate_LeavesNoTempFiles(t *testing.T) {
	storage := openTestStorage(t)

	_, err := storage.Create(model.New("", "p"))
	require.NoError(t, err)

	entries, err := os.ReadDir(storage.Dir(model.StateInbox))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.NotContains(t, entries[0].Name(), ".tmp")
}

func TestListInbox_SkipsDirsAndDotfiles(t *testing.T) {
	storage := openTestStorage(t)
	inbox := storage.Dir(model.StateInbox)

	_, err := storage.Create(model.New("", "p"))
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Join(inbox, "subdir"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(inbox, ".dirq-half.tmp"), []byte("partial"), 0644))

	names, err := storage.ListInbox()
	require.NoError(t, err)
	require.Len(t, names, 1)
	assert.True(t, model.ValidateID(names[0]))
}

func TestClaim_MovesToProgress(t *testing.T) {
	storage := openTestStorage(t)
	job := model.New("", "p")
	_, err := storage.Create(job)
	require.NoError(t, err)

	entry, err := storage.Claim(job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StateProgress, entry.State)

	assert.NoFileExists(t, filepath.Join(storage.Dir(model.StateInbox), job.ID))
	assert.FileExists(t, filepath.Join(storage.Dir(model.StateProgress), job.ID))
}

func TestClaim_MissingEntryIsBenign(t *testing.T) {
	storage := openTestStorage(t)

	_, err := storage.Claim("no-such-entry")
	assert.ErrorIs(t, err, ErrClaimMissed)
}

func TestClaim_AtMostOnceUnderContention(t *testing.T) {
	storage := openTestStorage(t)
	job := model.New("", "p")
	_, err := storage.Create(job)
	require.NoError(t, err)

	const claimers = 16
	var wg sync.WaitGroup
	wins := make(chan Entry, claimers)
	misses := make(chan error, claimers)

	for i := 0; i < claimers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			entry, err := storage.Claim(job.ID)
			if err != nil {
				misses <- err
				return
			}
			wins <- entry
		}()
	}
	wg.Wait()
	close(wins)
	close(misses)

	assert.Len(t, wins, 1)
	require.Len(t, misses, claimers-1)
	for err := range misses {
		assert.ErrorIs(t, err, ErrClaimMissed)
	}

	// Exactly one entry ended up in progress.
	entries, err := os.ReadDir(storage.Dir(model.StateProgress))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestRead_Malformed(t *testing.T) {
	storage := openTestStorage(t)
	inbox := storage.Dir(model.StateInbox)
	require.NoError(t, os.WriteFile(filepath.Join(inbox, "bad-entry"), []byte("not json"), 0644))

	entry, err := storage.Claim("bad-entry")
	require.NoError(t, err)

	_, err = storage.Read(entry)
	require.Error(t, err)

	var malformed *model.MalformedJobError
	assert.True(t, errors.As(err, &malformed))
}

func TestResolve_TerminalStates(t *testing.T) {
	storage := openTestStorage(t)

	for _, outcome := range []model.Outcome{model.OutcomeFinished, model.OutcomeFailed} {
		job := model.New("", "p")
		_, err := storage.Create(job)
		require.NoError(t, err)

		claimed, err := storage.Claim(job.ID)
		require.NoError(t, err)

		resolved, err := storage.Resolve(claimed, outcome)
		require.NoError(t, err)
		assert.Equal(t, outcome.State(), resolved.State)
		assert.FileExists(t, filepath.Join(storage.Dir(outcome.State()), job.ID))
		assert.NoFileExists(t, filepath.Join(storage.Dir(model.StateProgress), job.ID))
	}
}

func TestResolve_TwiceIsError(t *testing.T) {
	storage := openTestStorage(t)
	job := model.New("", "p")
	_, err := storage.Create(job)
	require.NoError(t, err)

	claimed, err := storage.Claim(job.ID)
	require.NoError(t, err)

	_, err = storage.Resolve(claimed, model.OutcomeFinished)
	require.NoError(t, err)

	_, err = storage.Resolve(claimed, model.OutcomeFailed)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already resolved")
}

func TestResolve_RejectsUnclaimedEntry(t *testing.T) {
	storage := openTestStorage(t)
	job := model.New("", "p")
	entry, err := storage.Create(job)
	require.NoError(t, err)

	_, err = storage.Resolve(entry, model.OutcomeFinished)
	require.Error(t, err)
}
