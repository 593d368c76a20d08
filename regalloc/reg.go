// Package regalloc defines the register/allocation data model shared by
// every ISA backend: a tagged (class, hw-encoding) register pair, virtual
// registers that wrap a fresh index before allocation, and the thin
// interfaces an external register allocator uses to rewrite them.
//
// The actual graph-coloring/linear-scan allocator is treated as an
// external collaborator; this package only fixes the contract between
// it and the instruction encoder.
package regalloc

import "fmt"

// RegClass is one of the two physical register files an x86-64 (or
// arm64/s390x) operand can live in.
type RegClass byte

const (
	RegClassInvalid RegClass = iota
	RegClassInt
	RegClassFloat
)

func (c RegClass) String() string {
	switch c {
	case RegClassInt:
		return "int"
	case RegClassFloat:
		return "float"
	default:
		return "invalid"
	}
}

// RealReg names a physical register by small integer, scoped to its
// RegClass. The meaning of the integer (e.g. 0 == RAX for RegClassInt on
// x86-64) is assigned by the owning ISA package.
type RealReg byte

// RealRegInvalid marks a VReg that has not yet been assigned a physical
// register.
const RealRegInvalid RealReg = 0xff

// VReg is a virtual register: a fresh index before allocation, or a
// wrapper around a RealReg once allocated. It is packed into a uint64 so
// it can be compared and hashed cheaply and carried by value through the
// instruction selector and the operand collector.
//
// Layout (high to low bits): [16 bits unused][8 bits RealReg][8 bits RegClass][32 bits ID].
type VReg uint64

const (
	vRegIDBits   = 32
	vRegIDMask   = 1<<vRegIDBits - 1
	regClassShift = vRegIDBits
	realRegShift  = vRegIDBits + 8
)

// VRegID is the pure identifier of a VReg, ignoring class/real-reg.
type VRegID uint32

// VRegInvalid is the zero-value-safe invalid VReg.
const VRegInvalid VReg = 0

// FromID constructs an unallocated virtual register of the given class.
func FromID(id VRegID, class RegClass) VReg {
	return VReg(id) | VReg(class)<<regClassShift | VReg(RealRegInvalid)<<realRegShift
}

// FromRealReg constructs a VReg that is already bound to a physical
// register — used by the ABI lowerer and encoder to refer to fixed
// registers (e.g. the stack pointer, argument registers) before any
// allocation pass runs.
func FromRealReg(r RealReg, class RegClass) VReg {
	return VReg(r)<<realRegShift | VReg(class)<<regClassShift | VReg(r)
}

// ID returns the identifier portion of v.
func (v VReg) ID() VRegID { return VRegID(v & vRegIDMask) }

// RegClass returns the register class of v.
func (v VReg) RegClass() RegClass { return RegClass((v >> regClassShift) & 0xff) }

// RealReg returns the physical register v is bound to, or RealRegInvalid.
func (v VReg) RealReg() RealReg { return RealReg((v >> realRegShift) & 0xff) }

// IsRealReg reports whether v is already bound to a physical register.
func (v VReg) IsRealReg() bool { return v != VRegInvalid && v.RealReg() != RealRegInvalid }

// SetRealReg returns a copy of v bound to the given physical register.
// This is the only mutator: the external allocator calls it once per
// virtual register as it assigns a coloring, consuming entries from an
// AllocationConsumer in the exact order the instruction's operand
// collector reported them.
func (v VReg) SetRealReg(r RealReg) VReg {
	return VReg(r)<<realRegShift | (v &^ (VReg(0xff) << realRegShift))
}

func (v VReg) String() string {
	if v.IsRealReg() {
		return fmt.Sprintf("%%r%d(real=%d)", v.ID(), v.RealReg())
	}
	return fmt.Sprintf("%%v%d(%s)", v.ID(), v.RegClass())
}

// AllocationConsumer is a stream of physical registers substituted in
// exactly the order an instruction's operand collector reported them.
// emit() implementations must call Next() once per reported operand and
// no more — a mismatch is a compilation bug.
type AllocationConsumer struct {
	regs []RealReg
	pos  int
}

// NewAllocationConsumer wraps a pre-computed allocation stream.
func NewAllocationConsumer(regs []RealReg) *AllocationConsumer {
	return &AllocationConsumer{regs: regs}
}

// Next returns the next physical register in program order. It panics if
// the stream is exhausted — an invariant violation considered a
// compilation bug.
func (a *AllocationConsumer) Next() RealReg {
	if a.pos >= len(a.regs) {
		panic("BUG: allocation consumer exhausted; operand collector and emit() disagree")
	}
	r := a.regs[a.pos]
	a.pos++
	return r
}

// Done reports whether every allocation in the stream has been consumed.
func (a *AllocationConsumer) Done() bool { return a.pos == len(a.regs) }

// OperandCollector is the side-channel interface an Instruction reports
// its register usage through, so an external allocator can rewrite
// virtual registers without the emitter knowing the final assignment
// until emission time.
type OperandCollector interface {
	// Def records a register defined (written) by the instruction.
	Def(v VReg)
	// Use records a register used (read) by the instruction.
	Use(v VReg)
	// LateUse records a register used after all Defs have taken effect
	// (e.g. the divisor register in CheckedDivOrRemSeq, which must stay
	// live across the def of the quotient).
	LateUse(v VReg)
}

// Collected is a simple OperandCollector that just accumulates, used by
// instructions to report their operands and by tests to assert on them.
type Collected struct {
	Defs, Uses, LateUses []VReg
}

func (c *Collected) Def(v VReg)     { c.Defs = append(c.Defs, v) }
func (c *Collected) Use(v VReg)     { c.Uses = append(c.Uses, v) }
func (c *Collected) LateUse(v VReg) { c.LateUses = append(c.LateUses, v) }

// Order returns Defs followed by Uses followed by LateUses, the fixed
// order emit() must consume allocations in.
func (c *Collected) Order() []VReg {
	out := make([]VReg, 0, len(c.Defs)+len(c.Uses)+len(c.LateUses))
	out = append(out, c.Defs...)
	out = append(out, c.Uses...)
	out = append(out, c.LateUses...)
	return out
}
