package store

import (
	"fmt"
	"os"
	"time"
)

// DefaultRecentCap bounds how many recent projects are remembered.
const DefaultRecentCap = 10

// RecentEntry is one remembered project. Inactive entries are kept in the
// file (soft-deactivated) but never listed.
type RecentEntry struct {
	Path       string    `json:"path"`
	Name       string    `json:"name"`
	LastOpened time.Time `json:"last_opened"`
	Active     bool      `json:"active"`
}

// RecentList remembers the most recently opened projects in a JSON file,
// newest first and capped. It is not safe for concurrent use.
type RecentList struct {
	path string
	cap  int
	now  func() time.Time
}

type recentFile struct {
	Recent []RecentEntry `json:"recent"`
}

// NewRecentList stores its state at path. limit <= 0 means DefaultRecentCap.
func NewRecentList(path string, limit int) *RecentList {
	if limit <= 0 {
		limit = DefaultRecentCap
	}
	return &RecentList{path: path, cap: limit, now: time.Now}
}

func (l *RecentList) load() ([]RecentEntry, error) {
	var file recentFile
	if err := readJSON(l.path, &file); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return file.Recent, nil
}

func (l *RecentList) save(entries []RecentEntry) error {
	return writeJSON(l.path, recentFile{Recent: entries})
}

// Touch moves the project to the front of the list, inserting it if new
// and reactivating it if it had been deactivated. The list is truncated to
// the cap, oldest entries first.
func (l *RecentList) Touch(projectPath, name string) error {
	entries, err := l.load()
	if err != nil {
		return err
	}

	touched := RecentEntry{Path: projectPath, Name: name, LastOpened: l.now().UTC(), Active: true}
	next := make([]RecentEntry, 0, len(entries)+1)
	next = append(next, touched)
	for _, entry := range entries {
		if entry.Path == projectPath {
			continue
		}
		next = append(next, entry)
	}
	if len(next) > l.cap {
		next = next[:l.cap]
	}
	return l.save(next)
}

// List returns the active entries, most recently opened first.
func (l *RecentList) List() ([]RecentEntry, error) {
	entries, err := l.load()
	if err != nil {
		return nil, err
	}
	active := make([]RecentEntry, 0, len(entries))
	for _, entry := range entries {
		if entry.Active {
			active = append(active, entry)
		}
	}
	return active, nil
}

// Prune deactivates every active entry whose project file no longer exists
// and reports how many were deactivated. Entries are kept rather than
// deleted, so a restored file can be reactivated by a later Touch.
func (l *RecentList) Prune() (int, error) {
	entries, err := l.load()
	if err != nil {
		return 0, err
	}

	pruned := 0
	for i, entry := range entries {
		if !entry.Active {
			continue
		}
		if _, err := os.Stat(entry.Path); err != nil {
			if !os.IsNotExist(err) {
				return pruned, fmt.Errorf("store: check %s: %w", entry.Path, err)
			}
			entries[i].Active = false
			pruned++
		}
	}
	if pruned == 0 {
		return 0, nil
	}
	return pruned, l.save(entries)
}
