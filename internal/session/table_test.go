package session

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTableInsertLookupRemove(t *testing.T) {
	tbl := NewTable()

	key := Key{UID: 1000, Num: 0}
	require.Equal(t, 0, tbl.Len())

	_, ok := tbl.Lookup(key)
	require.False(t, ok)

	tbl.Insert(Entry{Key: key, CallerGID: 1000, ServerPID: 4242})
	require.Equal(t, 1, tbl.Len())

	entry, ok := tbl.Lookup(key)
	require.True(t, ok)
	require.Equal(t, 4242, entry.ServerPID)

	tbl.Remove(key)
	require.Equal(t, 0, tbl.Len())
}

func TestTableRemoveByPID(t *testing.T) {
	tbl := NewTable()

	keyA := Key{UID: 1000, Num: 0}
	keyB := Key{UID: 1000, Num: 1}

	tbl.Insert(Entry{Key: keyA, ServerPID: 100})
	tbl.Insert(Entry{Key: keyB, ServerPID: 200})

	removed, ok := tbl.RemoveByPID(100)
	require.True(t, ok)
	require.Equal(t, keyA, removed)
	require.Equal(t, 1, tbl.Len())

	_, ok = tbl.RemoveByPID(999)
	require.False(t, ok)
}

func TestTableAllSnapshot(t *testing.T) {
	tbl := NewTable()

	tbl.Insert(Entry{Key: Key{UID: 1000, Num: 0}, ServerPID: 1})
	tbl.Insert(Entry{Key: Key{UID: 1000, Num: 1}, ServerPID: 2})

	all := tbl.All()
	require.Len(t, all, 2)
}

func TestKeySocketName(t *testing.T) {
	k := Key{UID: 1000, Num: 3}
	require.Equal(t, "hasher-priv-1000-3", k.SocketName())
}
