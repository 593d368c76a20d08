package wasi

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// Filetype mirrors the WASI snapshot-1 filetype enumeration used by
// fd_filestat_get/fd_readdir dirent records.
type Filetype byte

const (
	FiletypeUnknown Filetype = iota
	FiletypeBlockDevice
	FiletypeCharacterDevice
	FiletypeDirectory
	FiletypeRegularFile
	FiletypeSocketDgram
	FiletypeSocketStream
	FiletypeSymbolicLink
)

// Filestat is the fd_filestat_get/path_filestat_get result record.
type Filestat struct {
	Dev      uint64
	Ino      uint64
	Filetype Filetype
	Nlink    uint64
	Size     uint64
	Atim     time.Time
	Mtim     time.Time
	Ctim     time.Time
}

// Dirent is one fd_readdir record.
type Dirent struct {
	Ino      uint64
	Name     string
	Filetype Filetype
}

// WasiFile is the dynamic-dispatch interface every open regular-file,
// pipe, socket, or TTY descriptor implements, widened with the
// capability-aware operations (Pread/Pwrite) the FileCaps model requires.
type WasiFile interface {
	io.Closer

	Stat() (Filestat, error)
	Read(buf []byte) (int, error)
	Pread(buf []byte, offset int64) (int, error)
	Write(buf []byte) (int, error)
	Pwrite(buf []byte, offset int64) (int, error)
	Seek(offset int64, whence int) (int64, error)
	Truncate(size int64) error
	Sync() error
	Datasync() error
	IsAppend() bool
	SetAppend(bool) error
	IsNonblock() bool
	SetNonblock(bool) error
	// PollReadable reports whether a Read would currently return data
	// without blocking, used by poll_oneoff's readiness check.
	PollReadable() bool
}

// WasiDir is the directory-descriptor counterpart of WasiFile.
type WasiDir interface {
	io.Closer

	Stat() (Filestat, error)
	Readdir(cookie uint64) ([]Dirent, error)
	OpenFile(name string, oflags int, caps FileCaps) (WasiFile, error)
	OpenDir(name string) (WasiDir, error)
	CreateDirectory(name string) error
	RemoveDirectory(name string) error
	UnlinkFile(name string) error
	PathFilestatGet(name string, followSymlink bool) (Filestat, error)
	PathFilestatSetTimes(name string, atim, mtim time.Time) error
	Rename(oldName string, newDir WasiDir, newName string) error
	Link(oldName string, newDir WasiDir, newName string) error
	Symlink(oldpath, newName string) error
	Readlink(name string) (string, error)
}

// OSFile backs a regular file descriptor with a real host *os.File.
type OSFile struct {
	f        *os.File
	mu       sync.Mutex
	append   bool
	nonblock bool
}

func NewOSFile(f *os.File) *OSFile { return &OSFile{f: f} }

func (o *OSFile) Stat() (Filestat, error) {
	fi, err := o.f.Stat()
	if err != nil {
		return Filestat{}, err
	}
	return statFromOS(fi), nil
}

func statFromOS(fi os.FileInfo) Filestat {
	ft := FiletypeRegularFile
	if fi.IsDir() {
		ft = FiletypeDirectory
	}
	var ino, dev, nlink uint64
	if sys, ok := fi.Sys().(*unix.Stat_t); ok {
		ino, dev, nlink = sys.Ino, uint64(sys.Dev), uint64(sys.Nlink)
	}
	return Filestat{
		Dev: dev, Ino: ino, Filetype: ft, Nlink: nlink,
		Size: uint64(fi.Size()), Mtim: fi.ModTime(),
	}
}

func (o *OSFile) Read(buf []byte) (int, error)  { return o.f.Read(buf) }
func (o *OSFile) Pread(buf []byte, off int64) (int, error) { return o.f.ReadAt(buf, off) }
func (o *OSFile) Write(buf []byte) (int, error) { return o.f.Write(buf) }
func (o *OSFile) Pwrite(buf []byte, off int64) (int, error) { return o.f.WriteAt(buf, off) }
func (o *OSFile) Seek(off int64, whence int) (int64, error) { return o.f.Seek(off, whence) }
func (o *OSFile) Truncate(size int64) error { return o.f.Truncate(size) }
func (o *OSFile) Sync() error               { return o.f.Sync() }
func (o *OSFile) Datasync() error           { return unix.Fdatasync(int(o.f.Fd())) }
func (o *OSFile) Close() error              { return o.f.Close() }

func (o *OSFile) IsAppend() bool { o.mu.Lock(); defer o.mu.Unlock(); return o.append }
func (o *OSFile) SetAppend(v bool) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.append = v
	return nil
}

func (o *OSFile) IsNonblock() bool { o.mu.Lock(); defer o.mu.Unlock(); return o.nonblock }
func (o *OSFile) SetNonblock(v bool) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.nonblock = v
	return unix.SetNonblock(int(o.f.Fd()), v)
}

// PollReadable always reports ready for a regular file: reads from disk
// never block indefinitely the way a pipe or socket read can, and
// poll_oneoff only truly needs to multiplex non-regular files.
func (o *OSFile) PollReadable() bool { return true }

// MemFile is an in-memory WasiFile backend, used for guest-visible
// synthetic files (e.g. /dev/null-style sinks in embedder test harnesses)
// that don't warrant a real descriptor.
type MemFile struct {
	mu   sync.Mutex
	data []byte
	pos  int64
}

func NewMemFile(initial []byte) *MemFile { return &MemFile{data: append([]byte(nil), initial...)} }

func (m *MemFile) Stat() (Filestat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Filestat{Filetype: FiletypeRegularFile, Size: uint64(len(m.data))}, nil
}

func (m *MemFile) Read(buf []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pos >= int64(len(m.data)) {
		return 0, io.EOF
	}
	n := copy(buf, m.data[m.pos:])
	m.pos += int64(n)
	return n, nil
}

func (m *MemFile) Pread(buf []byte, off int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if off >= int64(len(m.data)) {
		return 0, io.EOF
	}
	return copy(buf, m.data[off:]), nil
}

func (m *MemFile) Write(buf []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := m.writeAt(m.pos, buf)
	m.pos += int64(n)
	return n, nil
}

func (m *MemFile) Pwrite(buf []byte, off int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writeAt(off, buf), nil
}

func (m *MemFile) writeAt(off int64, buf []byte) int {
	end := off + int64(len(buf))
	if end > int64(len(m.data)) {
		grown := make([]byte, end)
		copy(grown, m.data)
		m.data = grown
	}
	return copy(m.data[off:], buf)
}

func (m *MemFile) Seek(off int64, whence int) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch whence {
	case io.SeekStart:
		m.pos = off
	case io.SeekCurrent:
		m.pos += off
	case io.SeekEnd:
		m.pos = int64(len(m.data)) + off
	}
	return m.pos, nil
}

func (m *MemFile) Truncate(size int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if size < int64(len(m.data)) {
		m.data = m.data[:size]
	} else {
		grown := make([]byte, size)
		copy(grown, m.data)
		m.data = grown
	}
	return nil
}

func (m *MemFile) Sync() error             { return nil }
func (m *MemFile) Datasync() error         { return nil }
func (m *MemFile) Close() error            { return nil }
func (m *MemFile) IsAppend() bool          { return false }
func (m *MemFile) SetAppend(bool) error    { return nil }
func (m *MemFile) IsNonblock() bool        { return false }
func (m *MemFile) SetNonblock(bool) error  { return nil }
func (m *MemFile) PollReadable() bool      { return true }

// OSDir backs a directory descriptor with a real host directory, rooting
// every preopen at a host directory rather than trusting the guest with
// raw absolute paths. Every name passed to its methods goes through join, which
// rejects any path that would resolve outside root after cleaning —
// filepath.Join alone does not do this, since Join(root, "../x") happily
// walks above root.
type OSDir struct {
	root string
}

func NewOSDir(root string) *OSDir { return &OSDir{root: root} }

// errEscapesRoot is returned by join when name would resolve outside the
// directory's root, the same rejection os.DirFS applies to the identical
// case ("path escapes from parent").
var errEscapesRoot = unix.EACCES

func (d *OSDir) join(name string) (string, error) {
	full := filepath.Join(d.root, name)
	rel, err := filepath.Rel(d.root, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", errEscapesRoot
	}
	return full, nil
}

func (d *OSDir) Stat() (Filestat, error) {
	fi, err := os.Stat(d.root)
	if err != nil {
		return Filestat{}, err
	}
	return statFromOS(fi), nil
}

func (d *OSDir) Readdir(cookie uint64) ([]Dirent, error) {
	f, err := os.Open(d.root)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	names, err := f.Readdirnames(-1)
	if err != nil {
		return nil, err
	}
	if cookie >= uint64(len(names)) {
		return nil, nil
	}
	out := make([]Dirent, 0, len(names)-int(cookie))
	for _, name := range names[cookie:] {
		p, joinErr := d.join(name)
		var fi os.FileInfo
		if joinErr == nil {
			fi, err = os.Lstat(p)
		} else {
			err = joinErr
		}
		ft := FiletypeRegularFile
		if err == nil && fi.IsDir() {
			ft = FiletypeDirectory
		}
		var ino uint64
		if err == nil {
			if sys, ok := fi.Sys().(*unix.Stat_t); ok {
				ino = sys.Ino
			}
		}
		out = append(out, Dirent{Ino: ino, Name: name, Filetype: ft})
	}
	return out, nil
}

func (d *OSDir) OpenFile(name string, oflags int, caps FileCaps) (WasiFile, error) {
	mode := os.O_RDONLY
	switch {
	case caps.Has(FileCapRead) && caps.Has(FileCapWrite):
		mode = os.O_RDWR
	case caps.Has(FileCapWrite):
		mode = os.O_WRONLY
	}
	p, err := d.join(name)
	if err != nil {
		return nil, err
	}
	f, err := os.OpenFile(p, mode|oflags, 0o644)
	if err != nil {
		return nil, err
	}
	return NewOSFile(f), nil
}

func (d *OSDir) OpenDir(name string) (WasiDir, error) {
	path, err := d.join(name)
	if err != nil {
		return nil, err
	}
	if fi, err := os.Stat(path); err != nil {
		return nil, err
	} else if !fi.IsDir() {
		return nil, unix.ENOTDIR
	}
	return NewOSDir(path), nil
}

func (d *OSDir) CreateDirectory(name string) error {
	p, err := d.join(name)
	if err != nil {
		return err
	}
	return os.Mkdir(p, 0o755)
}

func (d *OSDir) RemoveDirectory(name string) error {
	p, err := d.join(name)
	if err != nil {
		return err
	}
	return os.Remove(p)
}

func (d *OSDir) UnlinkFile(name string) error {
	p, err := d.join(name)
	if err != nil {
		return err
	}
	return os.Remove(p)
}

func (d *OSDir) PathFilestatGet(name string, followSymlink bool) (Filestat, error) {
	p, err := d.join(name)
	if err != nil {
		return Filestat{}, err
	}
	var fi os.FileInfo
	if followSymlink {
		fi, err = os.Stat(p)
	} else {
		fi, err = os.Lstat(p)
	}
	if err != nil {
		return Filestat{}, err
	}
	return statFromOS(fi), nil
}

func (d *OSDir) PathFilestatSetTimes(name string, atim, mtim time.Time) error {
	p, err := d.join(name)
	if err != nil {
		return err
	}
	return os.Chtimes(p, atim, mtim)
}

func (d *OSDir) Rename(oldName string, newDir WasiDir, newName string) error {
	nd, ok := newDir.(*OSDir)
	if !ok {
		return unix.EXDEV
	}
	oldPath, err := d.join(oldName)
	if err != nil {
		return err
	}
	newPath, err := nd.join(newName)
	if err != nil {
		return err
	}
	return os.Rename(oldPath, newPath)
}

func (d *OSDir) Link(oldName string, newDir WasiDir, newName string) error {
	nd, ok := newDir.(*OSDir)
	if !ok {
		return unix.EXDEV
	}
	oldPath, err := d.join(oldName)
	if err != nil {
		return err
	}
	newPath, err := nd.join(newName)
	if err != nil {
		return err
	}
	return os.Link(oldPath, newPath)
}

func (d *OSDir) Symlink(oldpath, newName string) error {
	p, err := d.join(newName)
	if err != nil {
		return err
	}
	return os.Symlink(oldpath, p)
}

func (d *OSDir) Readlink(name string) (string, error) {
	p, err := d.join(name)
	if err != nil {
		return "", err
	}
	return os.Readlink(p)
}

func (d *OSDir) Close() error { return nil }
