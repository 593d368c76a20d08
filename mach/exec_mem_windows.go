//go:build windows

package mach

import (
	"unsafe"

	"golang.org/x/sys/windows"
)

// ExecutableImage mirrors the unix variant using VirtualAlloc/VirtualProtect
// instead of mmap/mprotect.
type ExecutableImage struct {
	mem []byte
}

func Finalize(code []byte) (*ExecutableImage, error) {
	if len(code) == 0 {
		return &ExecutableImage{}, nil
	}
	addr, err := windows.VirtualAlloc(0, uintptr(len(code)), windows.MEM_COMMIT|windows.MEM_RESERVE, windows.PAGE_READWRITE)
	if err != nil {
		return nil, err
	}
	mem := unsafe.Slice((*byte)(unsafe.Pointer(addr)), len(code))
	copy(mem, code)
	var old uint32
	if err := windows.VirtualProtect(addr, uintptr(len(code)), windows.PAGE_EXECUTE_READ, &old); err != nil {
		_ = windows.VirtualFree(addr, 0, windows.MEM_RELEASE)
		return nil, err
	}
	return &ExecutableImage{mem: mem}, nil
}

func (e *ExecutableImage) Addr() uintptr {
	if len(e.mem) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&e.mem[0]))
}

func (e *ExecutableImage) Close() error {
	if e.mem == nil {
		return nil
	}
	addr := uintptr(unsafe.Pointer(&e.mem[0]))
	e.mem = nil
	return windows.VirtualFree(addr, 0, windows.MEM_RELEASE)
}
