package catalog

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/platinummonkey/gatekeeper/pkg/observability"
)

// File is the on-disk catalog format.
type File struct {
	Groups []GroupSpec `yaml:"groups"`
}

// GroupSpec declares one permission group and its actions.
type GroupSpec struct {
	Name    string   `yaml:"name"`
	Actions []string `yaml:"actions"`
}

// LoadFile reads a catalog definition from a YAML file.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}

	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse catalog file: %w", err)
	}

	var keys []Key
	for _, group := range file.Groups {
		if group.Name == "" {
			return nil, fmt.Errorf("catalog group with empty name")
		}
		for _, action := range group.Actions {
			keys = append(keys, Key(group.Name+Delimiter+action))
		}
	}

	catalog, err := New(keys...)
	if err != nil {
		return nil, fmt.Errorf("invalid catalog file %s: %w", path, err)
	}
	return catalog, nil
}

// Watcher reloads the catalog when its file changes on disk.
type Watcher struct {
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// WatchFile watches path and calls onReload with the freshly parsed catalog
// on every change. A file that fails to parse is logged and skipped; the
// previous catalog stays in effect.
func WatchFile(path string, logger *observability.Logger, onReload func(*Catalog)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create catalog watcher: %w", err)
	}

	// Watch the directory: editors replace files on save, which drops the
	// watch on the file itself.
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("failed to watch catalog directory: %w", err)
	}

	w := &Watcher{
		watcher: fsw,
		done:    make(chan struct{}),
	}

	go func() {
		defer close(w.done)
		for {
			select {
			case event, ok := <-fsw.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(path) {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				catalog, err := LoadFile(path)
				if err != nil {
					logger.WithError(err).Warn("catalog reload failed, keeping previous catalog")
					continue
				}
				logger.WithField("path", path).Info("catalog reloaded")
				onReload(catalog)
			case err, ok := <-fsw.Errors:
				if !ok {
					return
				}
				logger.WithError(err).Warn("catalog watcher error")
			}
		}
	}()

	return w, nil
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	err := w.watcher.Close()
	<-w.done
	return err
}
