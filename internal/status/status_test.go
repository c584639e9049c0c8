package status

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harekaze/dirq/internal/config"
	"github.com/harekaze/dirq/internal/model"
	"github.com/harekaze/dirq/internal/queue"
)

func TestCollect_CountsPerState(t *testing.T) {
	root := t.TempDir()
	cfg, err := config.Load(root)
	require.NoError(t, err)

	storage, err := queue.Open(queue.Dirs{
		Inbox:    cfg.Queue.InboxDir,
		Progress: cfg.Queue.ProgressDir,
		Finished: cfg.Queue.FinishedDir,
		Failed:   cfg.Queue.FailedDir,
	})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := storage.Create(model.New("", "p"))
		require.NoError(t, err)
	}
	claimTarget := model.New("", "p")
	_, err = storage.Create(claimTarget)
	require.NoError(t, err)
	claimed, err := storage.Claim(claimTarget.ID)
	require.NoError(t, err)
	_, err = storage.Resolve(claimed, model.OutcomeFailed)
	require.NoError(t, err)

	snapshot := Collect(root, cfg)

	assert.False(t, snapshot.Daemon.Running)
	counts := make(map[model.State]int)
	for _, q := range snapshot.Queues {
		counts[q.State] = q.Count
	}
	assert.Equal(t, 3, counts[model.StateInbox])
	assert.Equal(t, 0, counts[model.StateProgress])
	assert.Equal(t, 0, counts[model.StateFinished])
	assert.Equal(t, 1, counts[model.StateFailed])
}

func TestCollect_MissingDirsCountZero(t *testing.T) {
	root := t.TempDir()
	cfg, err := config.Load(root)
	require.NoError(t, err)

	snapshot := Collect(root, cfg)
	for _, q := range snapshot.Queues {
		assert.Equal(t, 0, q.Count)
	}
}
