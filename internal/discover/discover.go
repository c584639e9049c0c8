// Package discover produces the candidate stream: one notification per
// logical inbox file, merging pre-existing entries with live watch events.
package discover

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/harekaze/dirq/internal/events"
	"github.com/harekaze/dirq/internal/model"
	"github.com/harekaze/dirq/internal/queue"
	"github.com/harekaze/dirq/internal/watch"
)

// Discovery surfaces candidate filenames from the inbox. Pre-existing files
// are replayed through the watcher itself (a metadata touch makes it emit an
// attribute event), so live and bootstrap candidates share one code path and
// duplicate suppression reduces to the storage claim.
type Discovery struct {
	storage *queue.Storage
	bus     *events.Bus
	log     zerolog.Logger
}

// New creates a Discovery over the given store.
func New(storage *queue.Storage, bus *events.Bus, log zerolog.Logger) *Discovery {
	return &Discovery{storage: storage, bus: bus, log: log}
}

// Run arms the watch, replays pre-existing inbox entries, then forwards
// candidate filenames to out until ctx is cancelled or the watch yields an
// unexpected event. out is closed and the watch handle released on every
// exit path. The returned error is nil on orderly shutdown.
func (d *Discovery) Run(ctx context.Context, out chan<- string) error {
	defer close(out)

	watcher, err := watch.New()
	if err != nil {
		return err
	}
	defer watcher.Close()

	inbox := d.storage.Dir(model.StateInbox)
	if err := watcher.Add(inbox); err != nil {
		return err
	}

	// The watch must be armed before the scan: files created in the gap
	// between listing and watching would otherwise be missed.
	if err := d.replayExisting(inbox); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events():
			if !ok {
				return nil
			}
			if err := d.handleEvent(ctx, event, out); err != nil {
				return err
			}
		case err, ok := <-watcher.Errors():
			if !ok {
				return nil
			}
			d.log.Error().Err(err).Msg("watch error")
		}
	}
}

// replayExisting touches every ordinary inbox file so the armed watcher
// emits an attribute event for it.
func (d *Discovery) replayExisting(inbox string) error {
	names, err := d.storage.ListInbox()
	if err != nil {
		return err
	}

	now := time.Now()
	for _, name := range names {
		if err := os.Chtimes(filepath.Join(inbox, name), now, now); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				// Claimed or removed since the listing.
				continue
			}
			d.log.Warn().Err(err).Str("name", name).Msg("replay touch failed")
		}
	}
	d.log.Debug().Int("count", len(names)).Msg("replayed pre-existing inbox entries")
	return nil
}

func (d *Discovery) handleEvent(ctx context.Context, event fsnotify.Event, out chan<- string) error {
	name := filepath.Base(event.Name)
	if strings.HasPrefix(name, ".") {
		// Producer temp file, not yet renamed into place.
		return nil
	}

	kind, err := watch.Classify(event)
	if err != nil {
		d.bus.Publish(events.EventWatchUnexpected, map[string]interface{}{
			"name": name,
			"op":   event.Op.String(),
		})
		return err
	}
	if kind != watch.KindCandidate {
		return nil
	}

	d.bus.Publish(events.EventJobDiscovered, map[string]interface{}{"name": name})

	select {
	case out <- name:
	case <-ctx.Done():
	}
	return nil
}
