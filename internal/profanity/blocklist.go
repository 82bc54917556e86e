package profanity

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// loadBlocklist reads the JSON term list. A missing file is an empty list.
func loadBlocklist(path string) ([]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read blocklist: %w", err)
	}
	var entries []string
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("parse blocklist: %w", err)
	}
	return entries, nil
}

// saveBlocklist writes the sorted term list through a temp file so readers
// never observe a partial list.
func saveBlocklist(path string, entries []string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create blocklist directory: %w", err)
	}
	raw, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("write blocklist: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace blocklist: %w", err)
	}
	return nil
}

func canonicalEntry(word string) string {
	return strings.ToLower(strings.TrimSpace(word))
}

// Add appends new terms, persists and swaps the snapshot. Returns the
// entries that were actually new and the resulting full list.
func (f *Filter) Add(words []string) (added, entries []string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	current := f.snap.Load().entries
	seen := make(map[string]struct{}, len(current))
	entries = make([]string, 0, len(current)+len(words))
	for _, e := range current {
		seen[e] = struct{}{}
		entries = append(entries, e)
	}
	for _, w := range words {
		w = canonicalEntry(w)
		if w == "" {
			continue
		}
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		entries = append(entries, w)
		added = append(added, w)
	}
	if len(added) == 0 {
		return nil, entries, nil
	}
	sort.Strings(entries)
	if err := saveBlocklist(f.path, entries); err != nil {
		return nil, nil, err
	}
	f.swap(entries)
	return added, entries, nil
}

// Remove drops terms, persists and swaps the snapshot. Returns the entries
// that were actually present and the resulting full list.
func (f *Filter) Remove(words []string) (removed, entries []string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	drop := make(map[string]struct{}, len(words))
	for _, w := range words {
		drop[canonicalEntry(w)] = struct{}{}
	}
	current := f.snap.Load().entries
	entries = make([]string, 0, len(current))
	for _, e := range current {
		if _, hit := drop[e]; hit {
			removed = append(removed, e)
			continue
		}
		entries = append(entries, e)
	}
	if len(removed) == 0 {
		return nil, entries, nil
	}
	if err := saveBlocklist(f.path, entries); err != nil {
		return nil, nil, err
	}
	f.swap(entries)
	return removed, entries, nil
}

// Reload re-reads the file and swaps the snapshot. Used by the watcher and
// safe to call at any time.
func (f *Filter) Reload() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	entries, err := loadBlocklist(f.path)
	if err != nil {
		return err
	}
	f.swap(entries)
	return nil
}

// StartWatcher reloads the blocklist when the file changes on disk. The
// directory is watched because editors and saveBlocklist replace the file
// by rename.
func (f *Filter) StartWatcher() (func() error, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	if err := fsw.Add(dir); err != nil {
		_ = fsw.Close()
		return nil, err
	}

	go func() {
		for {
			select {
			case ev, ok := <-fsw.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != filepath.Clean(f.path) {
					continue
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
					continue
				}
				if err := f.Reload(); err != nil {
					f.logger.Warn("blocklist reload failed", "path", f.path, "error", err)
					continue
				}
				f.logger.Info("blocklist reloaded", "path", f.path, "entries", len(f.snap.Load().entries))
			case err, ok := <-fsw.Errors:
				if !ok {
					return
				}
				f.logger.Warn("blocklist watcher error", "error", err)
			}
		}
	}()

	return fsw.Close, nil
}
