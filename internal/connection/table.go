package connection

import "sync"

// Table maps ConnectionId to Connection. Writes happen only from the
// reactor goroutine; the mutex exists so tests and the occasional
// cross-goroutine Get (e.g. from a worker's completion callback posting
// back to the reactor) stay safe.
type Table struct {
	mu   sync.Mutex
	byID map[ID]*Connection
}

// NewTable returns an empty ConnectionTable.
func NewTable() *Table {
	return &Table{byID: make(map[ID]*Connection)}
}

// Insert registers a connection, keyed by its own ID.
func (t *Table) Insert(c *Connection) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.byID[c.ID] = c
}

// Get returns the connection for id, if present.
func (t *Table) Get(id ID) (*Connection, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	c, ok := t.byID[id]
	return c, ok
}

// Remove deregisters id, releasing its mmap'd response region if any.
// Removing an id that is not present is a no-op, so repeated Remove calls
// are safe.
func (t *Table) Remove(id ID) {
	t.mu.Lock()
	c, ok := t.byID[id]
	if ok {
		delete(t.byID, id)
	}
	t.mu.Unlock()

	if ok {
		c.ReleasePending()
	}
}

// Len reports the number of live connections.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.byID)
}

// Each calls fn for every live connection. fn must not call back into
// Insert/Remove on this table to avoid deadlock.
func (t *Table) Each(fn func(*Connection)) {
	t.mu.Lock()
	snapshot := make([]*Connection, 0, len(t.byID))
	for _, c := range t.byID {
		snapshot = append(snapshot, c)
	}
	t.mu.Unlock()

	for _, c := range snapshot {
		fn(c)
	}
}
