package wasi

import "sync"

// FileCaps is the bitset of operations a regular-file descriptor entry
// may perform, backing a capability-indexed descriptor table.
type FileCaps uint32

const (
	FileCapDatasync FileCaps = 1 << iota
	FileCapRead
	FileCapSeek
	FileCapFdstatSetFlags
	FileCapSync
	FileCapTell
	FileCapWrite
	FileCapAdvise
	FileCapAllocate
	FileCapFilestatGet
	FileCapFilestatSetSize
	FileCapFilestatSetTimes
	FileCapPollReadwrite
)

// Has reports whether every bit set in want is also set in c.
func (c FileCaps) Has(want FileCaps) bool { return c&want == want }

// DirCaps is the bitset of operations a directory descriptor entry may
// perform, restored the same way as FileCaps.
type DirCaps uint32

const (
	DirCapCreateDirectory DirCaps = 1 << iota
	DirCapCreateFile
	DirCapLinkSource
	DirCapLinkTarget
	DirCapOpen
	DirCapReaddir
	DirCapReadlink
	DirCapRenameSource
	DirCapRenameTarget
	DirCapSymlinkSource
	DirCapSymlinkTarget
	DirCapRemoveDirectory
	DirCapUnlinkFile
	DirCapPathFilestatGet
	DirCapPathFilestatSetSize
	DirCapPathFilestatSetTimes
	DirCapFilestatGet
	DirCapFilestatSetTimes
	DirCapFilestatSetSize
)

// Has reports whether every bit set in want is also set in c.
func (c DirCaps) Has(want DirCaps) bool { return c&want == want }

// EntryKind tags which half of the Entry union is populated.
type EntryKind byte

const (
	EntryKindFile EntryKind = iota
	EntryKindDir
)

// Entry is one row of the descriptor table: a capability
// pair gating what the guest may do through this descriptor, plus the
// concrete backend object the syscalls dispatch to. FileCaps/DirCaps are
// both always populated (mirroring the original's fdstat carrying both a
// file- and dir-caps set regardless of the entry's actual kind) so a
// path_open that reopens a directory entry as a file doesn't need a
// separate capability type to downgrade from.
type Entry struct {
	Kind     EntryKind
	File     WasiFile
	Dir      WasiDir
	FileCaps FileCaps
	DirCaps  DirCaps
	// Preopen is true for descriptors installed at instantiation via
	// fd_prestat_get/fd_prestat_dir_name rather than opened by the guest.
	Preopen     bool
	PreopenPath string
}

// Table is the capability-indexed file-descriptor table:
// a sparse map from a small non-negative integer (the "fd" the guest
// sees) to an Entry, supporting renumbering and monotonic capability
// downgrade on reopen.
type Table struct {
	mu      sync.Mutex
	entries map[int32]*Entry
	next    int32
}

// NewTable returns an empty table. fd 0/1/2 are conventionally reserved
// for stdio by the caller inserting them explicitly via Insert before any
// guest code runs.
func NewTable() *Table {
	return &Table{entries: make(map[int32]*Entry), next: 3}
}

// Insert installs e at fd, replacing the sequential allocator's next
// value if fd is already taken by stdio/preopens set up before the guest
// starts opening its own descriptors.
func (t *Table) Insert(fd int32, e *Entry) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[fd] = e
	if fd >= t.next {
		t.next = fd + 1
	}
}

// Open allocates the next free fd and installs e there, returning the
// assigned fd.
func (t *Table) Open(e *Entry) int32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	fd := t.next
	t.next++
	t.entries[fd] = e
	return fd
}

// Get returns the entry at fd, or nil if fd is not open.
func (t *Table) Get(fd int32) *Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.entries[fd]
}

// Close removes fd, returning ErrnoBadf via the bool if it was not open.
func (t *Table) Close(fd int32) (*Entry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[fd]
	if ok {
		delete(t.entries, fd)
	}
	return e, ok
}

// Renumber moves the entry at from to to, closing whatever previously
// occupied to (fd_renumber). It is a program error — the
// guest's, not ours — to renumber a non-open fd; the caller is expected
// to have already validated from's existence and caps via a Get call and
// returns ErrnoBadf itself rather than Renumber silently no-op'ing.
func (t *Table) Renumber(from, to int32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e := t.entries[from]
	delete(t.entries, from)
	t.entries[to] = e
	if to >= t.next {
		t.next = to + 1
	}
}

// Downgrade narrows an entry's capabilities in place. The descriptor
// table never widens capabilities once assigned, so every caller of
// Downgrade is expected to pass a subset of the entry's current caps,
// which this method enforces by intersecting rather than overwriting.
func (e *Entry) Downgrade(fileCaps FileCaps, dirCaps DirCaps) {
	e.FileCaps &= fileCaps
	e.DirCaps &= dirCaps
}
