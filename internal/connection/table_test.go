package connection

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/s00inx/reactorweb/internal/content"
)

func TestInsertGetRemove(t *testing.T) {
	tbl := NewTable()
	c := NewConnection(ID(5), 5, "127.0.0.1:1111", 0)
	tbl.Insert(c)

	got, ok := tbl.Get(ID(5))
	require.True(t, ok)
	require.Same(t, c, got)

	tbl.Remove(ID(5))
	_, ok = tbl.Get(ID(5))
	require.False(t, ok)
}

func TestRemoveIsIdempotent(t *testing.T) {
	tbl := NewTable()
	c := NewConnection(ID(1), 1, "", 0)
	tbl.Insert(c)

	require.NotPanics(t, func() {
		tbl.Remove(ID(1))
		tbl.Remove(ID(1))
	})
}

func TestRemoveReleasesPendingResponse(t *testing.T) {
	tbl := NewTable()
	c := NewConnection(ID(2), 2, "", 0)
	released := false
	c.Pending = &content.Resolved{Release: func() { released = true }}

	tbl.Insert(c)
	tbl.Remove(ID(2))
	require.True(t, released)
}

func TestEachVisitsAllConnections(t *testing.T) {
	tbl := NewTable()
	tbl.Insert(NewConnection(ID(1), 1, "", 0))
	tbl.Insert(NewConnection(ID(2), 2, "", 0))

	seen := map[ID]bool{}
	tbl.Each(func(c *Connection) { seen[c.ID] = true })

	require.Len(t, seen, 2)
	require.True(t, seen[ID(1)])
	require.True(t, seen[ID(2)])
}

func TestLenTracksInsertAndRemove(t *testing.T) {
	tbl := NewTable()
	require.Equal(t, 0, tbl.Len())
	tbl.Insert(NewConnection(ID(1), 1, "", 0))
	require.Equal(t, 1, tbl.Len())
	tbl.Remove(ID(1))
	require.Equal(t, 0, tbl.Len())
}
