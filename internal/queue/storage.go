// Package queue implements the directory-backed job store. Each of the four
// state directories is a flat namespace keyed by job id; every transition is
// a rename, never an in-place mutation, so filesystem atomicity is the only
// coordination primitive needed across processes.
package queue

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/harekaze/dirq/internal/model"
)

// tempPattern is the producer-side temp name shape. Discovery and listings
// skip dotfiles, so half-written entries are never surfaced.
const tempPattern = ".dirq-*.tmp"

// Dirs names the four state directories.
type Dirs struct {
	Inbox    string
	Progress string
	Finished string
	Failed   string
}

// DefaultDirs lays the four directories out under a single root.
func DefaultDirs(root string) Dirs {
	return Dirs{
		Inbox:    filepath.Join(root, "inbox"),
		Progress: filepath.Join(root, "progress"),
		Finished: filepath.Join(root, "finished"),
		Failed:   filepath.Join(root, "failed"),
	}
}

// Entry is the on-disk file representing a job: filename is the job id,
// location is the state.
type Entry struct {
	Name  string
	State model.State
	path  string
}

// Path returns the entry's current location on disk.
func (e Entry) Path() string {
	return e.path
}

// Storage is the directory-rooted queue store.
type Storage struct {
	dirs Dirs
}

// Open ensures all four state directories exist and returns the store.
func Open(dirs Dirs) (*Storage, error) {
	for _, dir := range []string{dirs.Inbox, dirs.Progress, dirs.Finished, dirs.Failed} {
		if dir == "" {
			return nil, fmt.Errorf("queue directory not configured")
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("ensure dir %s: %w", dir, err)
		}
	}
	return &Storage{dirs: dirs}, nil
}

// Dir returns the directory backing a state.
func (s *Storage) Dir(state model.State) string {
	switch state {
	case model.StateInbox:
		return s.dirs.Inbox
	case model.StateProgress:
		return s.dirs.Progress
	case model.StateFinished:
		return s.dirs.Finished
	default:
		return s.dirs.Failed
	}
}

// Create serializes the job, writes it under a temp name in the inbox, and
// atomically renames it into place under the job id. An existing entry with
// the same id is a WriteError wrapping ErrDuplicate.
func (s *Storage) Create(job model.Job) (Entry, error) {
	content, err := model.Encode(job)
	if err != nil {
		return Entry{}, &WriteError{Name: job.ID, Err: err}
	}

	target := filepath.Join(s.dirs.Inbox, job.ID)
	if _, err := os.Lstat(target); err == nil {
		return Entry{}, &WriteError{Name: job.ID, Err: ErrDuplicate}
	}

	if err := atomicWrite(s.dirs.Inbox, target, content); err != nil {
		return Entry{}, &WriteError{Name: job.ID, Err: err}
	}

	return Entry{Name: job.ID, State: model.StateInbox, path: target}, nil
}

// atomicWrite writes content to a fresh temp name in dir, syncs it, then
// renames it to target. The temp file is removed on any failure.
func atomicWrite(dir, target string, content []byte) error {
	tmp, err := os.CreateTemp(dir, tempPattern)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpName, target); err != nil {
		return fmt.Errorf("atomic rename: %w", err)
	}
	return nil
}

// ListInbox returns a snapshot listing of ordinary inbox entries. It is used
// only for the bootstrap pass; subdirectories and dotfile temp names are
// skipped.
func (s *Storage) ListInbox() ([]string, error) {
	entries, err := os.ReadDir(s.dirs.Inbox)
	if err != nil {
		return nil, fmt.Errorf("list inbox: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		names = append(names, entry.Name())
	}
	return names, nil
}

// Claim atomically moves an entry from the inbox to progress, granting the
// caller exclusive ownership. If the source is already gone a concurrent
// path claimed it first and ErrClaimMissed is returned.
func (s *Storage) Claim(name string) (Entry, error) {
	src := filepath.Join(s.dirs.Inbox, name)
	dst := filepath.Join(s.dirs.Progress, name)

	if err := os.Rename(src, dst); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Entry{}, ErrClaimMissed
		}
		return Entry{}, fmt.Errorf("claim %s: %w", name, err)
	}

	return Entry{Name: name, State: model.StateProgress, path: dst}, nil
}

// Read loads and decodes an entry's content. Decode failures carry
// *model.MalformedJobError.
func (s *Storage) Read(entry Entry) (model.Job, error) {
	data, err := os.ReadFile(entry.path)
	if err != nil {
		return model.Job{}, fmt.Errorf("read entry %s: %w", entry.Name, err)
	}
	return model.Decode(entry.Name, data)
}

// Resolve atomically moves a claimed entry to its terminal directory. It
// must be called exactly once per entry; a second call finds the source
// missing, which is a programming error and surfaced as such.
func (s *Storage) Resolve(entry Entry, outcome model.Outcome) (Entry, error) {
	if entry.State != model.StateProgress {
		return Entry{}, fmt.Errorf("resolve %s: entry is %s, not %s", entry.Name, entry.State, model.StateProgress)
	}

	dst := filepath.Join(s.Dir(outcome.State()), entry.Name)
	if err := os.Rename(entry.path, dst); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Entry{}, fmt.Errorf("resolve %s: entry already resolved: %w", entry.Name, err)
		}
		return Entry{}, fmt.Errorf("resolve %s: %w", entry.Name, err)
	}

	return Entry{Name: entry.Name, State: outcome.State(), path: dst}, nil
}
