// Package nativecall implements the libffi-style native-call bridge:
// resolving a symbol in a named shared library and
// invoking it with guest-supplied, type-tagged arguments. It uses
// github.com/ebitengine/purego for the cgo-free dlopen/dlsym/call path,
// the same pattern IntuitionAmiga-IntuitionEngine pulls purego in for to
// reach system audio/graphics libraries without cgo.
package nativecall

import (
	"fmt"
	"sync"

	"github.com/ebitengine/purego"

	"github.com/nativewasm/corewasm/internal/logging"
)

// TypeTag mirrors libffi's FFI_TYPE_* small-integer enum.
type TypeTag byte

const (
	TypeU8 TypeTag = iota
	TypeI8
	TypeU16
	TypeI16
	TypeU32
	TypeI32
	TypeU64
	TypeI64
	TypeF32
	TypeF64
	TypePointer
)

// Memory is the minimal guest linear-memory accessor the bridge needs:
// its base address and size, which TranslatePointer uses to turn a
// guest-relative pointer into a host-absolute address for pointer-typed
// arguments. There is no host-to-guest translation.
type Memory interface {
	Base() uintptr
	Size() uint32
}

// LibraryMemory is the process-global "library memory" slot: a weak
// reference to the guest linear memory currently
// driving native calls, plus the one-shot flag guarding its
// initialization. It is unavoidably global because the C runtime's
// allocator-growth callback has no closure to carry a handle through —
// this is the one Open Question resolution (see DESIGN.md) that keeps a
// package-global rather than threading an explicit handle.
var LibraryMemory struct {
	mu   sync.Mutex
	mem  Memory
	once bool
}

// RegisterMemoryRegion installs mem as the active guest memory for
// subsequent native calls, matching this step 1's
// RegisterMemoryRegion host-runtime call. Safe to call repeatedly; only
// the first call — per instance lifetime — actually matters, since
// multi-instance isolation is explicitly out of scope.
func RegisterMemoryRegion(mem Memory) {
	LibraryMemory.mu.Lock()
	defer LibraryMemory.mu.Unlock()
	if LibraryMemory.once {
		return
	}
	LibraryMemory.mem = mem
	LibraryMemory.once = true
}

// symbolKey identifies a cached resolved symbol.
type symbolKey struct{ lib, sym string }

// Bridge is the native-call bridge's per-store state: a symbol cache
// keyed by (library, symbol) so repeated native_library_call
// invocations against the same C function skip dlopen/dlsym entirely.
type Bridge struct {
	mu      sync.Mutex
	libs    map[string]uintptr
	symbols map[symbolKey]uintptr
}

func NewBridge() *Bridge {
	return &Bridge{libs: make(map[string]uintptr), symbols: make(map[symbolKey]uintptr)}
}

// resolve dlopens lib (cached) and dlsyms sym within it (cached),
// matching this step 2.
func (b *Bridge) resolve(lib, sym string) (uintptr, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	key := symbolKey{lib, sym}
	if addr, ok := b.symbols[key]; ok {
		return addr, nil
	}

	handle, ok := b.libs[lib]
	if !ok {
		h, err := purego.Dlopen(lib, purego.RTLD_NOW|purego.RTLD_GLOBAL)
		if err != nil {
			return 0, fmt.Errorf("nativecall: dlopen %q: %w", lib, err)
		}
		handle = h
		b.libs[lib] = handle
	}

	addr, err := purego.Dlsym(handle, sym)
	if err != nil {
		return 0, fmt.Errorf("nativecall: dlsym %q in %q: %w", sym, lib, err)
	}
	b.symbols[key] = addr
	return addr, nil
}

// Arg is one marshalled argument: its type tag and its raw machine-word
// value (pointer-typed args already translated to a host-absolute
// address by the caller step 3).
type Arg struct {
	Tag TypeTag
	U64 uint64
}

// Call resolves libName/funcName, builds the purego.SyscallN argument
// list from args, invokes, and returns the raw return word. Pointer
// translation (guest-relative -> host-absolute) is the caller's
// responsibility via Memory.Base(), matching this step 3's
// division of labor between the bridge and the guest-memory accessor.
func (b *Bridge) Call(libName, funcName string, args []Arg, retTag TypeTag) (uint64, error) {
	addr, err := b.resolve(libName, funcName)
	if err != nil {
		logging.Native.WithError(err).WithFields(map[string]interface{}{
			"lib": libName, "func": funcName,
		}).Debug("native_library_call: resolve failed")
		return 0, err
	}

	words := make([]uintptr, len(args))
	for i, a := range args {
		words[i] = uintptr(a.U64)
	}

	ret, _, _ := purego.SyscallN(addr, words...)
	return maskReturn(uint64(ret), retTag), nil
}

func maskReturn(v uint64, tag TypeTag) uint64 {
	switch tag {
	case TypeU8, TypeI8:
		return v & 0xFF
	case TypeU16, TypeI16:
		return v & 0xFFFF
	case TypeU32, TypeI32, TypeF32:
		return v & 0xFFFFFFFF
	default:
		return v
	}
}

// TranslatePointer adds the active guest memory's base address to a
// guest-relative offset, step 3's pointer-argument
// translation rule. Returns an error if no memory has been registered
// via RegisterMemoryRegion yet.
func TranslatePointer(guestOffset uint32) (uintptr, error) {
	LibraryMemory.mu.Lock()
	defer LibraryMemory.mu.Unlock()
	if !LibraryMemory.once {
		return 0, fmt.Errorf("nativecall: no guest memory registered")
	}
	if guestOffset >= LibraryMemory.mem.Size() {
		return 0, fmt.Errorf("nativecall: guest pointer %d out of bounds", guestOffset)
	}
	return LibraryMemory.mem.Base() + uintptr(guestOffset), nil
}
