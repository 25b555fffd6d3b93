// Package watcher turns raw filesystem notifications into batched
// changesets. It observes the documentation root recursively and,
// once the tree has been quiet for a settle period, emits one
// changeset with a single record per touched path. The watch command
// feeds these changesets into the publisher for repeated
// changed-only runs.
package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/treeline-labs/confsync-cli/internal/core/domain"
	"github.com/treeline-labs/confsync-cli/internal/logger"
)

// DefaultSettle is the quiet period after the last filesystem event
// before the pending batch is emitted.
const DefaultSettle = 500 * time.Millisecond

// Watcher observes a documentation root on the host filesystem.
type Watcher struct {
	root   string
	settle time.Duration
}

// New creates a watcher over the documentation root directory.
func New(root string) *Watcher {
	return &Watcher{root: root, settle: DefaultSettle}
}

// Watch begins observing the root and returns a channel of
// changesets. Bursts of events are coalesced per path, with the
// latest operation winning, and delivered together after the settle
// period. The channel closes when ctx is cancelled.
func (w *Watcher) Watch(ctx context.Context) (<-chan domain.Changeset, error) {
	info, err := os.Stat(w.root)
	if err != nil {
		return nil, fmt.Errorf("root path error: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root path error: %s is not a directory", w.root)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := w.addTree(fw, w.root); err != nil {
		fw.Close()
		return nil, err
	}

	out := make(chan domain.Changeset)
	go w.run(ctx, fw, out)
	return out, nil
}

// run is the event loop. It owns the fsnotify watcher and the output
// channel for the lifetime of the watch.
func (w *Watcher) run(ctx context.Context, fw *fsnotify.Watcher, out chan<- domain.Changeset) {
	defer close(out)
	defer fw.Close()

	pending := make(map[string]domain.ChangeOp)
	timer := time.NewTimer(w.settle)
	if !timer.Stop() {
		<-timer.C
	}

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-fw.Events:
			if !ok {
				return
			}
			rec := w.handleEvent(fw, ev)
			if rec == nil {
				continue
			}
			pending[rec.Path] = rec.Op
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(w.settle)

		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			logger.Warn("watch error: %v", err)

		case <-timer.C:
			if len(pending) == 0 {
				continue
			}
			set := batch(pending)
			pending = make(map[string]domain.ChangeOp)
			select {
			case out <- set:
			case <-ctx.Done():
				return
			}
		}
	}
}

// handleEvent classifies one filesystem event. It returns nil for
// events that never concern content: directories, hidden paths,
// non-Markdown files and bare attribute changes. Directories created
// during the watch join it, so files written inside them are seen.
func (w *Watcher) handleEvent(fw *fsnotify.Watcher, ev fsnotify.Event) *domain.ChangeRecord {
	rel, err := filepath.Rel(w.root, ev.Name)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return nil
	}
	rel = filepath.ToSlash(rel)
	if isHidden(rel) {
		return nil
	}

	if ev.Op.Has(fsnotify.Create) {
		if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
			if addErr := w.addTree(fw, ev.Name); addErr != nil {
				logger.Warn("watch %s: %v", rel, addErr)
			}
			return nil
		}
	}
	if !domain.IsMarkdown(rel) {
		return nil
	}

	switch {
	case ev.Op.Has(fsnotify.Create):
		return &domain.ChangeRecord{Op: domain.OpAdd, Path: rel}
	case ev.Op.Has(fsnotify.Write):
		return &domain.ChangeRecord{Op: domain.OpModify, Path: rel}
	case ev.Op.Has(fsnotify.Remove), ev.Op.Has(fsnotify.Rename):
		// A move inside the tree arrives as unpaired Rename and Create
		// events, so the old path is reported as a delete and the new
		// path as an add. Pairing them into a rename needs an explicit
		// change listing.
		return &domain.ChangeRecord{Op: domain.OpDelete, Path: rel}
	default:
		return nil
	}
}

// addTree registers dir and every non-hidden subdirectory with the
// fsnotify watcher. fsnotify watches single directories only, so the
// tree is walked here.
func (w *Watcher) addTree(fw *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p != dir && strings.HasPrefix(d.Name(), ".") {
			return fs.SkipDir
		}
		if err := fw.Add(p); err != nil {
			return fmt.Errorf("watch %s: %w", p, err)
		}
		return nil
	})
}

// batch turns the pending per-path operations into an ordered
// changeset.
func batch(pending map[string]domain.ChangeOp) domain.Changeset {
	records := make([]domain.ChangeRecord, 0, len(pending))
	for path, op := range pending {
		records = append(records, domain.ChangeRecord{Op: op, Path: path})
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Path < records[j].Path })
	return domain.Changeset{Records: records}
}

// isHidden reports whether any segment of the slash-relative path
// starts with a dot.
func isHidden(rel string) bool {
	for _, seg := range strings.Split(rel, "/") {
		if seg != "." && strings.HasPrefix(seg, ".") {
			return true
		}
	}
	return false
}
