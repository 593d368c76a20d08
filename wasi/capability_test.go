package wasi

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFileCapsHas(t *testing.T) {
	c := FileCapRead | FileCapSeek
	require.True(t, c.Has(FileCapRead))
	require.True(t, c.Has(FileCapRead|FileCapSeek))
	require.False(t, c.Has(FileCapWrite))
}

func TestTable_OpenAndGet(t *testing.T) {
	tbl := NewTable()
	e := &Entry{Kind: EntryKindFile, FileCaps: FileCapRead}
	fd := tbl.Open(e)
	require.Equal(t, int32(3), fd)
	require.Same(t, e, tbl.Get(fd))
}

func TestTable_InsertReservesStdio(t *testing.T) {
	tbl := NewTable()
	tbl.Insert(0, &Entry{Kind: EntryKindFile})
	tbl.Insert(1, &Entry{Kind: EntryKindFile})
	tbl.Insert(2, &Entry{Kind: EntryKindFile})
	// next allocation must not collide with stdio.
	fd := tbl.Open(&Entry{Kind: EntryKindFile})
	require.Equal(t, int32(3), fd)
}

func TestTable_Close(t *testing.T) {
	tbl := NewTable()
	fd := tbl.Open(&Entry{Kind: EntryKindFile})
	_, ok := tbl.Close(fd)
	require.True(t, ok)
	require.Nil(t, tbl.Get(fd))
	_, ok = tbl.Close(fd)
	require.False(t, ok)
}

func TestTable_Renumber(t *testing.T) {
	tbl := NewTable()
	e := &Entry{Kind: EntryKindFile}
	from := tbl.Open(e)
	to := from + 10
	tbl.Renumber(from, to)
	require.Nil(t, tbl.Get(from))
	require.Same(t, e, tbl.Get(to))
}

func TestEntry_DowngradeIsMonotonic(t *testing.T) {
	e := &Entry{FileCaps: FileCapRead | FileCapWrite | FileCapSeek, DirCaps: DirCapOpen}
	e.Downgrade(FileCapRead, 0)
	require.Equal(t, FileCapRead, e.FileCaps)
	require.Equal(t, DirCaps(0), e.DirCaps)

	// Downgrade can never widen: intersecting with a superset leaves caps
	// unchanged rather than adding anything back.
	e.Downgrade(FileCapRead|FileCapWrite, 0)
	require.Equal(t, FileCapRead, e.FileCaps)
}
