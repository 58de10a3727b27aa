// Package script loads JavaScript scenarios from a folder and runs them in
// an embedded goja runtime bound to the harness services.
package script

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/scenariokit/harness/internal/domain/harness"
	"github.com/scenariokit/harness/internal/logger"
)

var keyPattern = regexp.MustCompile(`^(\d+)`)

// KeyFor derives a script id: the leading digits of the file name, or the
// name without its extension.
func KeyFor(file string) string {
	base := filepath.Base(file)
	if m := keyPattern.FindString(base); m != "" {
		return m
	}
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Loader keeps the compiled scripts of one folder, keyed by id.
type Loader struct {
	dir string

	mu      sync.RWMutex
	entries map[string]harness.Entry
}

func NewLoader(dir string) *Loader {
	return &Loader{dir: dir, entries: make(map[string]harness.Entry)}
}

func (l *Loader) Dir() string { return l.dir }

// LoadAll replaces the current set with every *.js file in the folder,
// creating the folder if needed. Files that fail to compile are logged and
// skipped.
func (l *Loader) LoadAll() error {
	if err := os.MkdirAll(l.dir, 0755); err != nil {
		return fmt.Errorf("create scripts dir: %w", err)
	}
	files, err := os.ReadDir(l.dir)
	if err != nil {
		return fmt.Errorf("read scripts dir: %w", err)
	}

	entries := make(map[string]harness.Entry)
	for _, f := range files {
		if f.IsDir() || !isScript(f.Name()) {
			continue
		}
		e, err := loadFile(filepath.Join(l.dir, f.Name()))
		if err != nil {
			logger.AddScopedLog("ERROR", "loader", fmt.Sprintf("Error loading %s: %v", f.Name(), err))
			continue
		}
		if prev, ok := entries[e.Key]; ok {
			logger.AddScopedLog("WARN", "loader", fmt.Sprintf("%s replaces %s for id %s", e.File, prev.File, e.Key))
		}
		entries[e.Key] = e
	}

	l.mu.Lock()
	l.entries = entries
	l.mu.Unlock()

	names := make([]string, 0, len(entries))
	for _, e := range l.Entries() {
		names = append(names, e.String())
	}
	logger.AddScopedLog("INFO", "loader", "Loaded Scripts: "+strings.Join(names, ", "))
	return nil
}

// Reload recompiles a single file. A file that no longer exists is removed.
func (l *Loader) Reload(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		l.remove(filepath.Base(path))
		return nil
	}
	e, err := loadFile(path)
	if err != nil {
		return err
	}
	l.mu.Lock()
	l.entries[e.Key] = e
	l.mu.Unlock()
	return nil
}

func (l *Loader) remove(file string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for k, e := range l.entries {
		if e.File == file {
			delete(l.entries, k)
		}
	}
}

func (l *Loader) Get(key string) (harness.Entry, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	e, ok := l.entries[key]
	return e, ok
}

// Entries returns all scripts, numeric ids first in numeric order, then the
// rest by id.
func (l *Loader) Entries() []harness.Entry {
	l.mu.RLock()
	out := make([]harness.Entry, 0, len(l.entries))
	for _, e := range l.entries {
		out = append(out, e)
	}
	l.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		a, aErr := strconv.Atoi(out[i].Key)
		b, bErr := strconv.Atoi(out[j].Key)
		switch {
		case aErr == nil && bErr == nil:
			return a < b
		case aErr == nil:
			return true
		case bErr == nil:
			return false
		}
		return out[i].Key < out[j].Key
	})
	return out
}

// Keys returns the ids in Entries order.
func (l *Loader) Keys() []string {
	entries := l.Entries()
	keys := make([]string, len(entries))
	for i, e := range entries {
		keys[i] = e.Key
	}
	return keys
}

// Watch reloads scripts as files in the folder change, until ctx is done.
func (l *Loader) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}
	if err := w.Add(l.dir); err != nil {
		w.Close()
		return fmt.Errorf("watch %s: %w", l.dir, err)
	}

	go func() {
		defer w.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if !isScript(ev.Name) || ev.Has(fsnotify.Chmod) && !ev.Has(fsnotify.Write) {
					continue
				}
				logger.AddScopedLog("INFO", "loader", fmt.Sprintf("File change detected: %s", filepath.Base(ev.Name)))
				if err := l.Reload(ev.Name); err != nil {
					logger.AddScopedLog("ERROR", "loader", fmt.Sprintf("Error loading %s: %v", filepath.Base(ev.Name), err))
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.AddScopedLog("ERROR", "loader", fmt.Sprintf("Watcher error: %v", err))
			}
		}
	}()
	return nil
}

func loadFile(path string) (harness.Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return harness.Entry{}, err
	}
	name := filepath.Base(path)
	s, err := Compile(name, string(data))
	if err != nil {
		return harness.Entry{}, err
	}
	return harness.Entry{Key: KeyFor(name), File: name, Scenario: s}, nil
}

func isScript(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".js")
}
