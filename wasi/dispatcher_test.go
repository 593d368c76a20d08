package wasi

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestDispatcher() (*Dispatcher, *Table) {
	tbl := NewTable()
	return NewDispatcher(tbl), tbl
}

func TestDispatcher_FdReadWrite(t *testing.T) {
	d, tbl := newTestDispatcher()
	f := NewMemFile([]byte("hello world"))
	fd := tbl.Open(&Entry{Kind: EntryKindFile, File: f, FileCaps: FileCapRead | FileCapWrite})

	mem := NewSliceMemory(make([]byte, 256))
	// iovec at 0: {ptr=100, len=5}
	require.True(t, putLE32(mem, 0, 100))
	require.True(t, putLE32(mem, 4, 5))

	errno := d.FdRead(mem, fd, 0, 1, nil, 200)
	require.Equal(t, ErrnoSuccess, errno)
	n, _ := le32(mem, 200)
	require.Equal(t, uint32(5), n)
	b, _ := mem.Bytes(100, 5)
	require.Equal(t, "hello", string(b))
}

func TestDispatcher_FdRead_BadCapability(t *testing.T) {
	d, tbl := newTestDispatcher()
	f := NewMemFile([]byte("x"))
	fd := tbl.Open(&Entry{Kind: EntryKindFile, File: f, FileCaps: 0})
	mem := NewSliceMemory(make([]byte, 64))
	errno := d.FdRead(mem, fd, 0, 0, nil, 16)
	require.Equal(t, ErrnoNotcapable, errno)
}

func TestDispatcher_FdRead_BadFd(t *testing.T) {
	d, _ := newTestDispatcher()
	mem := NewSliceMemory(make([]byte, 64))
	require.Equal(t, ErrnoBadf, d.FdRead(mem, 42, 0, 0, nil, 16))
}

func TestDispatcher_FdWritePositional(t *testing.T) {
	d, tbl := newTestDispatcher()
	f := NewMemFile(make([]byte, 10))
	fd := tbl.Open(&Entry{Kind: EntryKindFile, File: f, FileCaps: FileCapWrite})

	mem := NewSliceMemory(make([]byte, 256))
	require.True(t, putLE32(mem, 0, 100))
	require.True(t, putLE32(mem, 4, 3))
	b, _ := mem.Bytes(100, 3)
	copy(b, "abc")

	off := int64(2)
	errno := d.FdWrite(mem, fd, 0, 1, &off, 200)
	require.Equal(t, ErrnoSuccess, errno)
	require.Equal(t, int64(5), off)

	st, _ := f.Stat()
	require.EqualValues(t, 10, st.Size)
}

func TestDispatcher_FdSeekAndTell(t *testing.T) {
	d, tbl := newTestDispatcher()
	f := NewMemFile([]byte("0123456789"))
	fd := tbl.Open(&Entry{Kind: EntryKindFile, File: f, FileCaps: FileCapSeek | FileCapTell})

	mem := NewSliceMemory(make([]byte, 64))
	errno := d.FdSeek(mem, fd, 4, 0, 0)
	require.Equal(t, ErrnoSuccess, errno)
	pos, _ := le64(mem, 0)
	require.EqualValues(t, 4, pos)

	errno = d.FdTell(mem, fd, 8)
	require.Equal(t, ErrnoSuccess, errno)
	pos, _ = le64(mem, 8)
	require.EqualValues(t, 4, pos)
}

func TestDispatcher_FdFdstatGet_EncodesLiveCaps(t *testing.T) {
	d, tbl := newTestDispatcher()
	f := NewMemFile(nil)
	caps := FileCapRead | FileCapWrite
	fd := tbl.Open(&Entry{Kind: EntryKindFile, File: f, FileCaps: caps})

	mem := NewSliceMemory(make([]byte, 64))
	errno := d.FdFdstatGet(mem, fd, 0)
	require.Equal(t, ErrnoSuccess, errno)

	b, _ := mem.Bytes(0, fdstatBytesLen)
	require.Equal(t, byte(FiletypeRegularFile), b[0])
	rightsBase, _ := le64(mem, 8)
	require.Equal(t, uint64(caps), rightsBase)
}

func TestDispatcher_FdFilestatGetAndSetSize(t *testing.T) {
	d, tbl := newTestDispatcher()
	f := NewMemFile([]byte("12345"))
	fd := tbl.Open(&Entry{Kind: EntryKindFile, File: f, FileCaps: FileCapFilestatGet | FileCapFilestatSetSize})

	mem := NewSliceMemory(make([]byte, 128))
	errno := d.FdFilestatGet(mem, fd, 0)
	require.Equal(t, ErrnoSuccess, errno)
	size, _ := le64(mem, 32)
	require.EqualValues(t, 5, size)

	errno = d.FdFilestatSetSize(fd, 2)
	require.Equal(t, ErrnoSuccess, errno)
	st, _ := f.Stat()
	require.EqualValues(t, 2, st.Size)
}

func TestDispatcher_FdSyncDatasyncRequireCapability(t *testing.T) {
	d, tbl := newTestDispatcher()
	f := NewMemFile(nil)
	fd := tbl.Open(&Entry{Kind: EntryKindFile, File: f, FileCaps: 0})
	require.Equal(t, ErrnoNotcapable, d.FdSync(fd))
	require.Equal(t, ErrnoNotcapable, d.FdDatasync(fd))
}

func TestDispatcher_FdClose(t *testing.T) {
	d, tbl := newTestDispatcher()
	fd := tbl.Open(&Entry{Kind: EntryKindFile, File: NewMemFile(nil), FileCaps: 0})
	require.Equal(t, ErrnoSuccess, d.FdClose(fd))
	require.Equal(t, ErrnoBadf, d.FdClose(fd))
}

func TestDispatcher_FdRenumber(t *testing.T) {
	d, tbl := newTestDispatcher()
	from := tbl.Open(&Entry{Kind: EntryKindFile, File: NewMemFile(nil)})
	to := from + 5
	require.Equal(t, ErrnoSuccess, d.FdRenumber(from, to))
	require.Nil(t, tbl.Get(from))
	require.NotNil(t, tbl.Get(to))
}

func TestDispatcher_FdReaddir(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("1"), 0o644))

	d, tbl := newTestDispatcher()
	dirEntry := &Entry{Kind: EntryKindDir, Dir: NewOSDir(root), DirCaps: DirCapReaddir}
	fd := tbl.Open(dirEntry)

	mem := NewSliceMemory(make([]byte, 512))
	errno := d.FdReaddir(mem, fd, 0, 256, 0, 400)
	require.Equal(t, ErrnoSuccess, errno)
	written, _ := le32(mem, 400)
	require.Greater(t, written, uint32(0))
}

func TestDispatcher_PathOpenDowngradesCaps(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "f.txt"), []byte("hi"), 0o644))

	d, tbl := newTestDispatcher()
	parentCaps := FileCapRead // parent lacks write
	parent := &Entry{Kind: EntryKindDir, Dir: NewOSDir(root), DirCaps: DirCapOpen, FileCaps: parentCaps}
	dirFd := tbl.Open(parent)

	mem := NewSliceMemory(make([]byte, 256))
	name := "f.txt"
	pathBuf, _ := mem.Bytes(0, uint32(len(name)))
	copy(pathBuf, name)

	errno := d.PathOpen(mem, dirFd, 0, uint32(len(name)), 0, FileCapRead|FileCapWrite, 0, 100)
	require.Equal(t, ErrnoSuccess, errno)

	newFd, _ := le32(mem, 100)
	opened := tbl.Get(int32(newFd))
	require.NotNil(t, opened)
	// requested write, but parent only grants read: downgrade is monotonic.
	require.Equal(t, FileCapRead, opened.FileCaps)
}

func TestDispatcher_PathOpenBadDirFd(t *testing.T) {
	d, _ := newTestDispatcher()
	mem := NewSliceMemory(make([]byte, 64))
	errno := d.PathOpen(mem, 99, 0, 0, 0, FileCapRead, 0, 0)
	require.Equal(t, ErrnoBadf, errno)
}

func TestDispatcher_PollOneoff(t *testing.T) {
	d, tbl := newTestDispatcher()
	fd := tbl.Open(&Entry{Kind: EntryKindFile, File: NewMemFile([]byte("x")), FileCaps: FileCapPollReadwrite})

	mem := NewSliceMemory(make([]byte, 128))
	require.True(t, putLE64(mem, 0, 1))
	b, _ := mem.Bytes(8, 1)
	b[0] = 1 // fd_read
	require.True(t, putLE32(mem, 16, uint32(fd)))

	errno := d.PollOneoff(mem, 0, 64, 1, 100)
	require.Equal(t, ErrnoSuccess, errno)
	n, _ := le32(mem, 100)
	require.EqualValues(t, 1, n)
}

func TestDispatcher_PollOneoffRejectsZeroSubscriptions(t *testing.T) {
	d, _ := newTestDispatcher()
	mem := NewSliceMemory(make([]byte, 64))
	require.Equal(t, ErrnoInval, d.PollOneoff(mem, 0, 0, 0, 0))
}

func TestDispatcher_ClockTimeGet(t *testing.T) {
	d, _ := newTestDispatcher()
	mem := NewSliceMemory(make([]byte, 16))
	require.Equal(t, ErrnoSuccess, d.ClockTimeGet(mem, 0, 0))
	nanos, _ := le64(mem, 0)
	require.Greater(t, nanos, uint64(0))

	require.Equal(t, ErrnoInval, d.ClockTimeGet(mem, 99, 0))
}
