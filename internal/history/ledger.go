// Package history keeps the version ledger of remaster batches.
//
// Entries are prepended, newest first, and are never edited or removed.
// Restoring an entry changes the live project state, never the ledger.
package history

import (
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bozzyboy/nano-director-5/internal/project"
)

// Ledger is safe for concurrent use. Items handed in and out are copies.
type Ledger struct {
	mu      sync.RWMutex
	entries []project.HistoryItem
	now     func() time.Time
}

// NewLedger seeds a ledger with previously persisted entries, newest first.
func NewLedger(entries []project.HistoryItem) *Ledger {
	l := &Ledger{now: time.Now}
	l.entries = cloneAll(entries)
	return l
}

// Append prepends a copy of item, assigning an ID and timestamp when unset,
// and returns the stored entry.
func (l *Ledger) Append(item project.HistoryItem) project.HistoryItem {
	stored := item.Clone()
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	if stored.Timestamp == 0 {
		stored.Timestamp = l.now().UnixMilli()
	}

	l.mu.Lock()
	l.entries = slices.Insert(l.entries, 0, stored)
	l.mu.Unlock()
	return stored.Clone()
}

// Entries returns the ledger, newest first.
func (l *Ledger) Entries() []project.HistoryItem {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return cloneAll(l.entries)
}

// Len returns the number of entries.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Find looks an entry up by ID.
func (l *Ledger) Find(id string) (project.HistoryItem, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, item := range l.entries {
		if item.ID == id {
			return item.Clone(), true
		}
	}
	return project.HistoryItem{}, false
}

// Replace swaps the whole ledger, used when a project is loaded.
func (l *Ledger) Replace(entries []project.HistoryItem) {
	cloned := cloneAll(entries)
	l.mu.Lock()
	l.entries = cloned
	l.mu.Unlock()
}

func cloneAll(entries []project.HistoryItem) []project.HistoryItem {
	out := make([]project.HistoryItem, len(entries))
	for i, item := range entries {
		out[i] = item.Clone()
	}
	return out
}
