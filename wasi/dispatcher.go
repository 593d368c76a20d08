package wasi

import (
	"errors"
	"io"
	"time"
)

// Dispatcher marshals guest linear-memory pointers into calls against a
// descriptor Table, implementing the WASI snapshot-1 syscall surface.
// One Dispatcher is bound to one guest instance's memory and
// descriptor table; it holds no other mutable state.
type Dispatcher struct {
	Table *Table
}

func NewDispatcher(table *Table) *Dispatcher { return &Dispatcher{Table: table} }

// iovec is one entry of an iovec_array/ciovec_array: a 4-byte pointer
// followed by a 4-byte length, little-endian (8 bytes per entry).
type iovec struct {
	ptr uint32
	len uint32
}

func readIovecs(mem Memory, iovs uint32, iovsLen uint32) ([]iovec, bool) {
	out := make([]iovec, iovsLen)
	for i := uint32(0); i < iovsLen; i++ {
		base := iovs + i*8
		ptr, ok := le32(mem, base)
		if !ok {
			return nil, false
		}
		length, ok := le32(mem, base+4)
		if !ok {
			return nil, false
		}
		out[i] = iovec{ptr: ptr, len: length}
	}
	return out, true
}

// FdClose implements fd_close.
func (d *Dispatcher) FdClose(fd int32) Errno {
	e, ok := d.Table.Close(fd)
	if !ok {
		return ErrnoBadf
	}
	var err error
	switch e.Kind {
	case EntryKindFile:
		err = e.File.Close()
	case EntryKindDir:
		err = e.Dir.Close()
	}
	if err != nil {
		return ErrnoFromUnix(err)
	}
	return ErrnoSuccess
}

// FdRenumber implements fd_renumber.
func (d *Dispatcher) FdRenumber(from, to int32) Errno {
	if d.Table.Get(from) == nil {
		return ErrnoBadf
	}
	if existing, ok := d.Table.Close(to); ok {
		switch existing.Kind {
		case EntryKindFile:
			_ = existing.File.Close()
		case EntryKindDir:
			_ = existing.Dir.Close()
		}
	}
	d.Table.Renumber(from, to)
	return ErrnoSuccess
}

// FdRead implements fd_read/fd_pread: iovs is an iovec_array of iovsLen
// entries; if offset is non-nil, the read is positional (pread) rather
// than sequential.
func (d *Dispatcher) FdRead(mem Memory, fd int32, iovs uint32, iovsLen uint32, offset *int64, resultSize uint32) Errno {
	e := d.Table.Get(fd)
	if e == nil || e.Kind != EntryKindFile {
		return ErrnoBadf
	}
	if !e.FileCaps.Has(FileCapRead) {
		return ErrnoNotcapable
	}
	vecs, ok := readIovecs(mem, iovs, iovsLen)
	if !ok {
		return ErrnoFault
	}
	var total uint32
	for _, v := range vecs {
		buf, ok := mem.Bytes(v.ptr, v.len)
		if !ok {
			return ErrnoFault
		}
		var n int
		var err error
		if offset != nil {
			n, err = e.File.Pread(buf, *offset)
			*offset += int64(n)
		} else {
			n, err = e.File.Read(buf)
		}
		total += uint32(n)
		if err != nil {
			if n > 0 || errors.Is(err, io.EOF) {
				break
			}
			return ErrnoFromUnix(err)
		}
		if n < len(buf) {
			break
		}
	}
	if !putLE32(mem, resultSize, total) {
		return ErrnoFault
	}
	return ErrnoSuccess
}

// FdWrite implements fd_write/fd_pwrite against a ciovec_array.
func (d *Dispatcher) FdWrite(mem Memory, fd int32, iovs uint32, iovsLen uint32, offset *int64, resultSize uint32) Errno {
	e := d.Table.Get(fd)
	if e == nil || e.Kind != EntryKindFile {
		return ErrnoBadf
	}
	if !e.FileCaps.Has(FileCapWrite) {
		return ErrnoNotcapable
	}
	vecs, ok := readIovecs(mem, iovs, iovsLen)
	if !ok {
		return ErrnoFault
	}
	var total uint32
	for _, v := range vecs {
		buf, ok := mem.Bytes(v.ptr, v.len)
		if !ok {
			return ErrnoFault
		}
		var n int
		var err error
		if offset != nil {
			n, err = e.File.Pwrite(buf, *offset)
			*offset += int64(n)
		} else {
			n, err = e.File.Write(buf)
		}
		total += uint32(n)
		if err != nil {
			return ErrnoFromUnix(err)
		}
	}
	if !putLE32(mem, resultSize, total) {
		return ErrnoFault
	}
	return ErrnoSuccess
}

// FdSeek implements fd_seek.
func (d *Dispatcher) FdSeek(mem Memory, fd int32, offset int64, whence int, resultOffset uint32) Errno {
	e := d.Table.Get(fd)
	if e == nil || e.Kind != EntryKindFile {
		return ErrnoBadf
	}
	if !e.FileCaps.Has(FileCapSeek) {
		return ErrnoNotcapable
	}
	pos, err := e.File.Seek(offset, whence)
	if err != nil {
		return ErrnoFromUnix(err)
	}
	if !putLE64(mem, resultOffset, uint64(pos)) {
		return ErrnoFault
	}
	return ErrnoSuccess
}

// FdTell implements fd_tell (seek relative to current position by 0).
func (d *Dispatcher) FdTell(mem Memory, fd int32, resultOffset uint32) Errno {
	return d.FdSeek(mem, fd, 0, 1, resultOffset)
}

// fdstatBytesLen is the wire size of the fdstat record fd_fdstat_get
// writes: 1 byte filetype, 2 bytes flags, 5 pad, 8 bytes rights-base, 8
// bytes rights-inheriting. The rights fields are populated from the
// entry's live FileCaps/DirCaps bitsets rather than left zeroed.
const fdstatBytesLen = 24

// FdFdstatGet implements fd_fdstat_get, encoding the entry's live
// FileCaps/DirCaps into the legacy fs_rights_base/fs_rights_inheriting
// wire fields.
func (d *Dispatcher) FdFdstatGet(mem Memory, fd int32, result uint32) Errno {
	e := d.Table.Get(fd)
	if e == nil {
		return ErrnoBadf
	}
	b, ok := mem.Bytes(result, fdstatBytesLen)
	if !ok {
		return ErrnoFault
	}
	for i := range b {
		b[i] = 0
	}
	switch e.Kind {
	case EntryKindFile:
		b[0] = byte(FiletypeRegularFile)
		putU64At(b[8:16], uint64(e.FileCaps))
	case EntryKindDir:
		b[0] = byte(FiletypeDirectory)
		putU64At(b[8:16], uint64(e.DirCaps))
	}
	putU64At(b[16:24], uint64(e.FileCaps)|uint64(e.DirCaps)<<32)
	return ErrnoSuccess
}

func putU64At(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
}

// filestatBytesLen is the wire size of the filestat record:
// dev, ino, filetype+pad, nlink, size, atim, mtim, ctim.
const filestatBytesLen = 64

func encodeFilestat(mem Memory, offset uint32, st Filestat) bool {
	b, ok := mem.Bytes(offset, filestatBytesLen)
	if !ok {
		return false
	}
	putU64At(b[0:8], st.Dev)
	putU64At(b[8:16], st.Ino)
	b[16] = byte(st.Filetype)
	putU64At(b[24:32], st.Nlink)
	putU64At(b[32:40], st.Size)
	putU64At(b[40:48], uint64(st.Atim.UnixNano()))
	putU64At(b[48:56], uint64(st.Mtim.UnixNano()))
	putU64At(b[56:64], uint64(st.Ctim.UnixNano()))
	return true
}

// FdFilestatGet implements fd_filestat_get.
func (d *Dispatcher) FdFilestatGet(mem Memory, fd int32, result uint32) Errno {
	e := d.Table.Get(fd)
	if e == nil {
		return ErrnoBadf
	}
	var st Filestat
	var err error
	switch e.Kind {
	case EntryKindFile:
		if !e.FileCaps.Has(FileCapFilestatGet) {
			return ErrnoNotcapable
		}
		st, err = e.File.Stat()
	case EntryKindDir:
		if !e.DirCaps.Has(DirCapFilestatGet) {
			return ErrnoNotcapable
		}
		st, err = e.Dir.Stat()
	}
	if err != nil {
		return ErrnoFromUnix(err)
	}
	if !encodeFilestat(mem, result, st) {
		return ErrnoFault
	}
	return ErrnoSuccess
}

// FdFilestatSetSize implements fd_filestat_set_size.
func (d *Dispatcher) FdFilestatSetSize(fd int32, size int64) Errno {
	e := d.Table.Get(fd)
	if e == nil || e.Kind != EntryKindFile {
		return ErrnoBadf
	}
	if !e.FileCaps.Has(FileCapFilestatSetSize) {
		return ErrnoNotcapable
	}
	if err := e.File.Truncate(size); err != nil {
		return ErrnoFromUnix(err)
	}
	return ErrnoSuccess
}

// FdSync implements fd_sync; FdDatasync implements fd_datasync.
func (d *Dispatcher) FdSync(fd int32) Errno     { return d.fdFlush(fd, FileCapSync, false) }
func (d *Dispatcher) FdDatasync(fd int32) Errno { return d.fdFlush(fd, FileCapDatasync, true) }

func (d *Dispatcher) fdFlush(fd int32, want FileCaps, data bool) Errno {
	e := d.Table.Get(fd)
	if e == nil || e.Kind != EntryKindFile {
		return ErrnoBadf
	}
	if !e.FileCaps.Has(want) {
		return ErrnoNotcapable
	}
	var err error
	if data {
		err = e.File.Datasync()
	} else {
		err = e.File.Sync()
	}
	if err != nil {
		return ErrnoFromUnix(err)
	}
	return ErrnoSuccess
}

// direntBytesLen is the wire size of one fd_readdir record header (name
// bytes follow immediately after, not null-terminated): next-cookie 8,
// ino 8, namelen 4, filetype 1 + 3 pad.
const direntBytesLen = 24

// FdReaddir implements fd_readdir, copying as many whole or partial dirent
// bytes (header, then name) as fit in the buf-sized destination region. A
// libc readdir loop treats a result strictly less than bufLen as
// end-of-directory, so whenever a record doesn't fit whole, this copies
// the bytes that do fit and reports bufLen (not the smaller byte count
// actually written) to tell the guest to call again for the rest.
func (d *Dispatcher) FdReaddir(mem Memory, fd int32, buf uint32, bufLen uint32, cookie uint64, resultSize uint32) Errno {
	e := d.Table.Get(fd)
	if e == nil || e.Kind != EntryKindDir {
		return ErrnoBadf
	}
	if !e.DirCaps.Has(DirCapReaddir) {
		return ErrnoNotcapable
	}
	entries, err := e.Dir.Readdir(cookie)
	if err != nil {
		return ErrnoFromUnix(err)
	}
	var bufUsed uint32
	for i, ent := range entries {
		header := make([]byte, direntBytesLen)
		putU64At(header[0:8], cookie+uint64(i)+1)
		putU64At(header[8:16], ent.Ino)
		nameLen := uint32(len(ent.Name))
		header[16], header[17], header[18], header[19] = byte(nameLen), byte(nameLen>>8), byte(nameLen>>16), byte(nameLen>>24)
		header[20] = byte(ent.Filetype)

		headerCopyLen := minU32(direntBytesLen, bufLen-bufUsed)
		if headerCopyLen > 0 {
			dst, ok := mem.Bytes(buf+bufUsed, headerCopyLen)
			if !ok {
				return ErrnoFault
			}
			copy(dst, header[:headerCopyLen])
		}
		if headerCopyLen < direntBytesLen {
			return d.fdReaddirResult(mem, resultSize, bufLen)
		}
		bufUsed += direntBytesLen

		nameCopyLen := minU32(nameLen, bufLen-bufUsed)
		if nameCopyLen > 0 {
			dst, ok := mem.Bytes(buf+bufUsed, nameCopyLen)
			if !ok {
				return ErrnoFault
			}
			copy(dst, ent.Name[:nameCopyLen])
		}
		if nameCopyLen < nameLen {
			return d.fdReaddirResult(mem, resultSize, bufLen)
		}
		bufUsed += nameLen
	}
	return d.fdReaddirResult(mem, resultSize, bufUsed)
}

func (d *Dispatcher) fdReaddirResult(mem Memory, resultSize, v uint32) Errno {
	if !putLE32(mem, resultSize, v) {
		return ErrnoFault
	}
	return ErrnoSuccess
}

func minU32(a, b uint32) uint32 {
	if a < b {
		return a
	}
	return b
}

// OFlags mirrors path_open's oflags bitset.
type OFlags uint16

const (
	OFlagCreat OFlags = 1 << iota
	OFlagDirectory
	OFlagExcl
	OFlagTrunc
)

// FdFlags mirrors path_open's fdflags bitset.
type FdFlags uint16

const (
	FdFlagAppend FdFlags = 1 << iota
	FdFlagDsync
	FdFlagNonblock
	FdFlagRsync
	FdFlagSync
)

// PathOpen implements path_open: resolves name under the directory entry
// at dirFd, applying the requested oflags, passing the append/nonblock
// fdflags to the opened file's SetAppend/SetNonblock (the dsync, rsync
// and sync fdflags are ignored), and intersecting the
// caller-specified caps with the parent directory's own (capability
// downgrade is monotonic; a descriptor can never gain rights its parent
// preopen lacks).
func (d *Dispatcher) PathOpen(mem Memory, dirFd int32, pathPtr, pathLen uint32, oflags OFlags, fsRightsBase FileCaps, fdflags FdFlags, resultFd uint32) Errno {
	parent := d.Table.Get(dirFd)
	if parent == nil || parent.Kind != EntryKindDir {
		return ErrnoBadf
	}
	if !parent.DirCaps.Has(DirCapOpen) {
		return ErrnoNotcapable
	}
	name, ok := readString(mem, pathPtr, pathLen)
	if !ok {
		return ErrnoFault
	}

	wantCaps := fsRightsBase
	grantedCaps := wantCaps & parent.FileCaps

	if oflags&OFlagDirectory != 0 {
		sub, err := parent.Dir.OpenDir(name)
		if err != nil {
			return ErrnoFromUnix(err)
		}
		e := &Entry{Kind: EntryKindDir, Dir: sub, DirCaps: parent.DirCaps, FileCaps: parent.FileCaps}
		fd := d.Table.Open(e)
		if !putLE32(mem, resultFd, uint32(fd)) {
			return ErrnoFault
		}
		return ErrnoSuccess
	}

	osFlags := osOpenFlags(oflags, fdflags)
	f, err := parent.Dir.OpenFile(name, osFlags, grantedCaps)
	if err != nil {
		return ErrnoFromUnix(err)
	}
	if fdflags&FdFlagAppend != 0 {
		_ = f.SetAppend(true)
	}
	if fdflags&FdFlagNonblock != 0 {
		_ = f.SetNonblock(true)
	}
	e := &Entry{Kind: EntryKindFile, File: f, FileCaps: grantedCaps, DirCaps: parent.DirCaps}
	fd := d.Table.Open(e)
	if !putLE32(mem, resultFd, uint32(fd)) {
		return ErrnoFault
	}
	return ErrnoSuccess
}

func osOpenFlags(oflags OFlags, fdflags FdFlags) int {
	const (
		oCreat = 0o100
		oExcl  = 0o200
		oTrunc = 0o1000
	)
	flags := 0
	if oflags&OFlagCreat != 0 {
		flags |= oCreat
	}
	if oflags&OFlagExcl != 0 {
		flags |= oExcl
	}
	if oflags&OFlagTrunc != 0 {
		flags |= oTrunc
	}
	return flags
}

// PollOneoff implements poll_oneoff: decodes nsubscriptions records
// starting at in, evaluates readiness via Poll, and encodes the
// resulting events at out.
func (d *Dispatcher) PollOneoff(mem Memory, in, out uint32, nsubscriptions uint32, resultNevents uint32) Errno {
	if nsubscriptions == 0 {
		return ErrnoInval
	}
	subs, ok := DecodeSubscriptions(mem, in, nsubscriptions)
	if !ok {
		return ErrnoFault
	}
	events := Poll(d.Table, subs)
	if !EncodeEvents(mem, out, events) {
		return ErrnoFault
	}
	if !putLE32(mem, resultNevents, uint32(len(events))) {
		return ErrnoFault
	}
	return ErrnoSuccess
}

// clockRealtimeNanos backs clock_time_get(CLOCK_REALTIME).
func clockRealtimeNanos() uint64 { return uint64(time.Now().UnixNano()) }

// processStart is the origin of the monotonic clock: clock_time_get
// (CLOCK_MONOTONIC) reports the nanoseconds elapsed since it.
var processStart = time.Now()

// ClockTimeGet implements clock_time_get for the realtime and monotonic
// clock IDs (the only two this single-process embedding core needs:
// process/thread CPU-time clocks have no meaning without a guest-visible
// scheduler to charge them against).
func (d *Dispatcher) ClockTimeGet(mem Memory, clockID uint32, result uint32) Errno {
	var nanos uint64
	switch clockID {
	case 0: // realtime
		nanos = clockRealtimeNanos()
	case 1: // monotonic
		nanos = uint64(time.Since(processStart))
	default:
		return ErrnoInval
	}
	if !putLE64(mem, result, nanos) {
		return ErrnoFault
	}
	return ErrnoSuccess
}
