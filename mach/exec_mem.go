//go:build unix

package mach

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// ExecutableImage is a finalized function body mapped into
// read+execute memory, ready to be called from Go via an entry
// trampoline, mapped with PROT_EXEC/MAP_PRIVATE|MAP_ANON flags.
type ExecutableImage struct {
	mem []byte
}

// Finalize copies code into a fresh executable mapping. The mapping is
// rounded up to a page multiple by mmap; callers should not assume
// len(mem) == len(code).
func Finalize(code []byte) (*ExecutableImage, error) {
	if len(code) == 0 {
		return &ExecutableImage{}, nil
	}
	mem, err := unix.Mmap(-1, 0, len(code), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, err
	}
	copy(mem, code)
	if err := unix.Mprotect(mem, unix.PROT_READ|unix.PROT_EXEC); err != nil {
		_ = unix.Munmap(mem)
		return nil, err
	}
	return &ExecutableImage{mem: mem}, nil
}

// Addr returns the base address of the mapped code, for constructing a Go
// function value via the entry-point trampoline machinery (architecture
// specific, not part of this core).
func (e *ExecutableImage) Addr() uintptr {
	if len(e.mem) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&e.mem[0]))
}

// Close unmaps the executable memory. Safe to call on the zero value.
func (e *ExecutableImage) Close() error {
	if e.mem == nil {
		return nil
	}
	err := unix.Munmap(e.mem)
	e.mem = nil
	return err
}
