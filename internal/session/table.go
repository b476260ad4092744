package session

import "sync"

// Entry is one session table row: spec §3 "Session" attributes.
type Entry struct {
	Key       Key
	CallerGID uint32
	ServerPID int
}

// Table is the master's session table. Per spec §3 it is exclusively owned
// by the master process; a Go master touches it from several goroutines
// (one per accepted connection, one reaper per session server, and the
// drain loop), so unlike the single-threaded C original this Table is
// guarded by a mutex rather than relying on single ownership.
type Table struct {
	mu      sync.Mutex
	entries map[Key]Entry
}

// NewTable returns an empty session table.
func NewTable() *Table {
	return &Table{entries: map[Key]Entry{}}
}

// Lookup returns the entry for key, if any.
func (t *Table) Lookup(key Key) (Entry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[key]
	return e, ok
}

// Insert adds or replaces the entry for key.
func (t *Table) Insert(e Entry) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.entries[e.Key] = e
}

// Remove deletes the entry for key, if present.
func (t *Table) Remove(key Key) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.entries, key)
}

// RemoveByPID removes whatever entry has the given server pid, returning
// the key removed (used when reaping an exited session server).
func (t *Table) RemoveByPID(pid int) (Key, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for k, e := range t.entries {
		if e.ServerPID == pid {
			delete(t.entries, k)
			return k, true
		}
	}

	return Key{}, false
}

// All returns a snapshot of every entry, for broadcast operations like
// shutdown's SIGTERM-to-every-session sweep.
func (t *Table) All() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Entry, 0, len(t.entries))
	for _, e := range t.entries {
		out = append(out, e)
	}

	return out
}

// Len reports how many sessions are live.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return len(t.entries)
}
