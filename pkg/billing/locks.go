package billing

import "sync"

// recordLocks serializes operations per billing record. Entries are created
// on demand and removed once the last holder releases, so the map does not
// grow with the record population.
type recordLocks struct {
	mu      sync.Mutex
	entries map[int64]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newRecordLocks() *recordLocks {
	return &recordLocks{entries: make(map[int64]*lockEntry)}
}

// lock acquires the lock for the given record id and returns the release
// function.
func (l *recordLocks) lock(id int64) func() {
	l.mu.Lock()
	entry, ok := l.entries[id]
	if !ok {
		entry = &lockEntry{}
		l.entries[id] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()
		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.entries, id)
		}
		l.mu.Unlock()
	}
}
