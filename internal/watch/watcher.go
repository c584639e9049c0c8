// Package watch wraps the OS directory change-notification facility and
// classifies its events for the discovery loop.
package watch

import (
	"errors"
	"fmt"

	"github.com/fsnotify/fsnotify"
)

// ErrUnavailable indicates the change-notification facility could not be
// initialized. Fatal at startup.
var ErrUnavailable = errors.New("directory watch unavailable")

// SetupError reports a failed watch registration on a directory.
type SetupError struct {
	Dir string
	Err error
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("watch setup on %s: %v", e.Dir, e.Err)
}

func (e *SetupError) Unwrap() error {
	return e.Err
}

// UnexpectedEventError reports an event whose operation bits fall outside
// the recognized set. It is terminal for the watch: the discovery loop stops
// and shuts the pool down gracefully.
type UnexpectedEventError struct {
	Op   fsnotify.Op
	Name string
}

func (e *UnexpectedEventError) Error() string {
	return fmt.Sprintf("unexpected watch event op=%s name=%s", e.Op, e.Name)
}

// Kind classifies a recognized watch event.
type Kind int

const (
	// KindCandidate means the named file may be ready to claim: it was
	// created in (or moved into) the directory, written, or had its
	// attributes changed (the bootstrap re-notification trigger).
	KindCandidate Kind = iota
	// KindIgnore covers informational events: removals and renames out of
	// the directory, which claiming itself produces.
	KindIgnore
)

// knownOps covers every operation the facility defines.
const knownOps = fsnotify.Create | fsnotify.Write | fsnotify.Remove | fsnotify.Rename | fsnotify.Chmod

const candidateOps = fsnotify.Create | fsnotify.Write | fsnotify.Chmod

// Classify maps an event to its Kind. Operation bits outside the recognized
// set, or an empty operation, yield an UnexpectedEventError.
func Classify(event fsnotify.Event) (Kind, error) {
	if event.Op == 0 || event.Op&^knownOps != 0 {
		return 0, &UnexpectedEventError{Op: event.Op, Name: event.Name}
	}
	if event.Op&candidateOps != 0 {
		return KindCandidate, nil
	}
	return KindIgnore, nil
}

// Watcher produces a live stream of file-level events for watched
// directories. The stream is unbounded and restartable only by reopening.
type Watcher struct {
	fs *fsnotify.Watcher
}

// New opens the underlying notification handle.
func New() (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return &Watcher{fs: fsw}, nil
}

// Add registers a directory on the watch.
func (w *Watcher) Add(dir string) error {
	if err := w.fs.Add(dir); err != nil {
		return &SetupError{Dir: dir, Err: err}
	}
	return nil
}

// Events returns the live event stream. The channel closes when the watcher
// is closed.
func (w *Watcher) Events() <-chan fsnotify.Event {
	return w.fs.Events
}

// Errors returns the stream of watch-level errors.
func (w *Watcher) Errors() <-chan error {
	return w.fs.Errors
}

// Close releases the underlying handle and closes both streams.
func (w *Watcher) Close() error {
	return w.fs.Close()
}
