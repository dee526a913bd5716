// Package monitor detects source changes between runs so stale reflection
// and proxy cache entries can be flushed.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"github.com/go-park/flow/pkg/cache"
	"github.com/go-park/flow/pkg/config"
)

type ChangeKind int

const (
	Created ChangeKind = iota + 1
	Changed
	Deleted
)

func (k ChangeKind) String() string {
	switch k {
	case Created:
		return "created"
	case Changed:
		return "changed"
	case Deleted:
		return "deleted"
	}
	return fmt.Sprintf("ChangeKind(%d)", int(k))
}

type Change struct {
	Path string
	Kind ChangeKind
}

// Monitor compares file modification times against the snapshot of the
// previous run, persisted in a cache.
type Monitor struct {
	id      string
	paths   []string
	exclude []string
	store   *cache.VariableFrontend
	log     logrus.FieldLogger
}

func New(id string, settings config.MonitorSettings, store *cache.VariableFrontend, log logrus.FieldLogger) (*Monitor, error) {
	if !cache.ValidIdentifier(id) {
		return nil, fmt.Errorf("monitor: %w: %q", cache.ErrInvalidIdentifier, id)
	}
	for _, p := range settings.Exclude {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("monitor: bad exclude pattern %q", p)
		}
	}
	return &Monitor{
		id:      id,
		paths:   settings.Paths,
		exclude: settings.Exclude,
		store:   store,
		log:     log.WithField("monitor", id),
	}, nil
}

func (m *Monitor) excluded(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = path
	}
	rel = filepath.ToSlash(rel)
	for _, p := range m.exclude {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}
	return false
}

func (m *Monitor) scan() (map[string]int64, error) {
	files := make(map[string]int64)
	for _, root := range m.paths {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					return nil
				}
				return err
			}
			if d.IsDir() || m.excluded(root, path) {
				return nil
			}
			info, err := d.Info()
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					return nil
				}
				return err
			}
			files[path] = info.ModTime().UnixNano()
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("monitor: walking %s: %w", root, err)
		}
	}
	return files, nil
}

func (m *Monitor) snapshotID() string {
	return "snapshot_" + m.id
}

// Detect reports every file created, changed or deleted since the last call
// (or the last process that used the same cache) and stores the new snapshot.
func (m *Monitor) Detect() ([]Change, error) {
	previous := map[string]int64{}
	if _, err := m.store.Get(m.snapshotID(), &previous); err != nil {
		m.log.WithError(err).Warn("discarding unreadable snapshot")
		previous = map[string]int64{}
	}
	current, err := m.scan()
	if err != nil {
		return nil, err
	}
	changes := diff(previous, current)
	if err := m.store.Set(m.snapshotID(), current, nil, 0); err != nil {
		return nil, err
	}
	for _, c := range changes {
		m.log.WithFields(logrus.Fields{"file": c.Path, "change": c.Kind}).Debug("file change detected")
	}
	return changes, nil
}

func diff(previous, current map[string]int64) []Change {
	var changes []Change
	for path, mtime := range current {
		old, ok := previous[path]
		switch {
		case !ok:
			changes = append(changes, Change{Path: path, Kind: Created})
		case old != mtime:
			changes = append(changes, Change{Path: path, Kind: Changed})
		}
	}
	for path := range previous {
		if _, ok := current[path]; !ok {
			changes = append(changes, Change{Path: path, Kind: Deleted})
		}
	}
	sort.Slice(changes, func(i, j int) bool { return changes[i].Path < changes[j].Path })
	return changes
}

// Watch calls fn with the detected changes whenever the file system reports
// activity below the monitored paths. It returns when ctx is done.
func (m *Monitor) Watch(ctx context.Context, fn func([]Change)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("monitor: %w", err)
	}
	defer w.Close()

	for _, root := range m.paths {
		if err := addTree(w, root); err != nil {
			return err
		}
	}
	m.log.Info("watching for changes")
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					if err := addTree(w, ev.Name); err != nil {
						m.log.WithError(err).Warn("cannot watch new directory")
					}
				}
			}
			changes, err := m.Detect()
			if err != nil {
				m.log.WithError(err).Error("change detection failed")
				continue
			}
			if len(changes) > 0 {
				fn(changes)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			m.log.WithError(err).Warn("watcher error")
		}
	}
}

func addTree(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.Add(path); err != nil {
			return fmt.Errorf("monitor: watching %s: %w", path, err)
		}
		return nil
	})
}
