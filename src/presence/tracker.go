// Package presence tracks which participants are currently in which logical
// room, with per-join metadata and join/leave notifications.
package presence

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Meta is the opaque attribute bag attached to a presence entry.
type Meta map[string]any

// Entry records one join of a participant. The same ID may appear multiple
// times under one key (multiple tabs or devices); Ref distinguishes them.
type Entry struct {
	ID       string    `json:"id"`
	Ref      string    `json:"ref"`
	Meta     Meta      `json:"meta,omitempty"`
	JoinedAt time.Time `json:"joined_at"`
}

// JoinFunc observes a join. before is the key's entry list as it was prior
// to this join, so observers can tell whether this is the first presence
// under the key.
type JoinFunc func(key string, before []Entry, joined Entry)

// LeaveFunc observes a leave. remaining is the key's entry list after
// removal.
type LeaveFunc func(key string, remaining []Entry, left Entry)

// Tracker maintains the room key -> entries mapping. A key exists in the
// mapping exactly while its list is non-empty. Safe for concurrent use.
type Tracker struct {
	mu      sync.Mutex
	rooms   map[string][]Entry
	onJoin  JoinFunc
	onLeave LeaveFunc
	logger  zerolog.Logger
}

// NewTracker creates an empty presence tracker.
func NewTracker(logger zerolog.Logger) *Tracker {
	return &Tracker{
		rooms:  make(map[string][]Entry),
		logger: logger,
	}
}

// OnJoin registers the join observer. A single slot: the last registration
// wins. Composition of multiple observers is the caller's concern.
func (t *Tracker) OnJoin(fn JoinFunc) {
	t.mu.Lock()
	t.onJoin = fn
	t.mu.Unlock()
}

// OnLeave registers the leave observer. Last registration wins.
func (t *Tracker) OnLeave(fn LeaveFunc) {
	t.mu.Lock()
	t.onLeave = fn
	t.mu.Unlock()
}

// Track records a join of id under key. The entry's Ref is minted here and
// JoinedAt is stamped by the tracker, never the caller. Returns the stored
// entry. The join observer, if any, runs after the mutation with a snapshot
// of the list as it was before this join.
func (t *Tracker) Track(key, id string, meta Meta) Entry {
	entry := Entry{
		ID:       id,
		Ref:      uuid.NewString(),
		Meta:     meta,
		JoinedAt: time.Now(),
	}

	t.mu.Lock()
	before := copyEntries(t.rooms[key])
	t.rooms[key] = append(t.rooms[key], entry)
	onJoin := t.onJoin
	t.mu.Unlock()

	t.logger.Debug().Str("key", key).Str("id", id).Str("ref", entry.Ref).Msg("presence tracked")

	if onJoin != nil {
		onJoin(key, before, entry)
	}
	return entry
}

// Untrack removes the earliest entry under key whose ID matches id. When the
// list becomes empty the key is deleted from the mapping. Untracking an
// absent key/id pair is a silent no-op: no observer fires and no error is
// reported.
func (t *Tracker) Untrack(key, id string) {
	t.mu.Lock()
	entries, ok := t.rooms[key]
	if !ok {
		t.mu.Unlock()
		return
	}

	idx := -1
	for i, e := range entries {
		if e.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		t.mu.Unlock()
		return
	}

	removed := entries[idx]
	entries = append(entries[:idx:idx], entries[idx+1:]...)
	if len(entries) == 0 {
		delete(t.rooms, key)
	} else {
		t.rooms[key] = entries
	}
	remaining := copyEntries(entries)
	onLeave := t.onLeave
	t.mu.Unlock()

	t.logger.Debug().Str("key", key).Str("id", id).Str("ref", removed.Ref).Msg("presence untracked")

	if onLeave != nil {
		onLeave(key, remaining, removed)
	}
}

// Get returns the entries under key. The result is a copy and is never nil.
func (t *Tracker) Get(key string) []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	if entries, ok := t.rooms[key]; ok {
		return copyEntries(entries)
	}
	return []Entry{}
}

// Count returns the number of entries under key.
func (t *Tracker) Count(key string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.rooms[key])
}

// List returns a snapshot of the full presence state, for admin and
// debugging use.
func (t *Tracker) List() map[string][]Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	snapshot := make(map[string][]Entry, len(t.rooms))
	for key, entries := range t.rooms {
		snapshot[key] = copyEntries(entries)
	}
	return snapshot
}

func copyEntries(entries []Entry) []Entry {
	out := make([]Entry, len(entries))
	copy(out, entries)
	return out
}
