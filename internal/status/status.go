// Package status reports queue depth and daemon liveness for a queue root.
package status

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/harekaze/dirq/internal/config"
	"github.com/harekaze/dirq/internal/model"
	"github.com/harekaze/dirq/internal/uds"
)

type Snapshot struct {
	Daemon DaemonStatus  `json:"daemon"`
	Queues []QueueStatus `json:"queues"`
}

type DaemonStatus struct {
	Running bool `json:"running"`
}

type QueueStatus struct {
	State model.State `json:"state"`
	Count int         `json:"count"`
}

// Collect builds a snapshot for the queue root: counts per state directory
// plus a daemon liveness probe over the control socket.
func Collect(root string, cfg config.Config) Snapshot {
	return Snapshot{
		Daemon: checkDaemon(filepath.Join(root, config.SocketName)),
		Queues: Counts(cfg),
	}
}

// Counts returns the entry count per state directory.
func Counts(cfg config.Config) []QueueStatus {
	dirs := map[model.State]string{
		model.StateInbox:    cfg.Queue.InboxDir,
		model.StateProgress: cfg.Queue.ProgressDir,
		model.StateFinished: cfg.Queue.FinishedDir,
		model.StateFailed:   cfg.Queue.FailedDir,
	}
	var queues []QueueStatus
	for _, state := range model.States() {
		queues = append(queues, QueueStatus{
			State: state,
			Count: countEntries(dirs[state]),
		})
	}
	return queues
}

// Run prints the snapshot for the queue root, as text or JSON.
func Run(root string, cfg config.Config, jsonOutput bool) error {
	snapshot := Collect(root, cfg)

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(snapshot)
	}

	printSnapshot(snapshot)
	return nil
}

func checkDaemon(sockPath string) DaemonStatus {
	client := uds.NewClient(sockPath)
	resp, err := client.SendCommand("ping", nil)
	if err != nil || !resp.Success {
		return DaemonStatus{Running: false}
	}
	return DaemonStatus{Running: true}
}

func countEntries(dir string) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}
	count := 0
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		count++
	}
	return count
}

func printSnapshot(s Snapshot) {
	if s.Daemon.Running {
		fmt.Println("daemon: running")
	} else {
		fmt.Println("daemon: stopped")
	}
	for _, q := range s.Queues {
		fmt.Printf("%-10s %d\n", q.State, q.Count)
	}
}
