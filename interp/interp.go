// Package interp is a differential-testing interpreter: a tiny
// tree-walking evaluator over the same operations the x86-64 backend
// compiles, used by cmd/corewasm's diff subcommand and by this package's
// own tests to run scenarios S1 (integer division trap) and S2
// (float-to-uint saturation); neither compares its results against
// compiled code. It is
// deliberately not a general WebAssembly interpreter — only the
// operations those scenarios need are implemented.
package interp

import "math"

// Op is one instruction in the tiny program this interpreter runs.
type Op byte

const (
	OpLocalGet Op = iota
	OpI32DivS
	OpI32TruncSatF64U
	OpI64DivS
	OpI32Const
	OpF64Const
)

// Instr is one instruction, carrying whichever immediate its Op needs.
type Instr struct {
	Op    Op
	Local int
	I32   int32
	F64   float64
}

// Program is a flat instruction sequence operating on an implicit value
// stack, taking its inputs from Locals.
type Program struct {
	Locals []Value
	Code   []Instr
}

// ValueKind tags which field of Value is live.
type ValueKind byte

const (
	KindI32 ValueKind = iota
	KindI64
	KindF64
)

// Value is a tagged-union runtime value.
type Value struct {
	Kind ValueKind
	I32  int32
	I64  int64
	F64  float64
}

// TrapCode names why Run stopped before completing the program, mirroring
// the trap-code vocabulary the compiled backend uses for the same faults
//.
type TrapCode byte

const (
	TrapNone TrapCode = iota
	TrapIntegerDivisionByZero
	TrapIntegerOverflow
)

// Result is what Run returns: either a value and TrapNone, or a zero
// value and the trap that fired.
type Result struct {
	Value Value
	Trap  TrapCode
}

// Run evaluates p to completion or until a trapping instruction fires.
// Values are pushed/popped off an explicit stack slice rather than
// recursing through an AST, mirroring the stack-machine shape
// WebAssembly's own instruction encoding already has — there is no tree
// to walk, only a flat op sequence, so "tree-walking" here means
// non-compiling direct execution, not literal AST recursion.
func Run(p *Program) Result {
	var stack []Value
	push := func(v Value) { stack = append(stack, v) }
	pop := func() Value {
		v := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		return v
	}

	for _, ins := range p.Code {
		switch ins.Op {
		case OpLocalGet:
			push(p.Locals[ins.Local])
		case OpI32Const:
			push(Value{Kind: KindI32, I32: ins.I32})
		case OpF64Const:
			push(Value{Kind: KindF64, F64: ins.F64})
		case OpI32DivS:
			rhs, lhs := pop(), pop()
			if rhs.I32 == 0 {
				return Result{Trap: TrapIntegerDivisionByZero}
			}
			if lhs.I32 == math.MinInt32 && rhs.I32 == -1 {
				return Result{Trap: TrapIntegerOverflow}
			}
			push(Value{Kind: KindI32, I32: lhs.I32 / rhs.I32})
		case OpI64DivS:
			rhs, lhs := pop(), pop()
			if rhs.I64 == 0 {
				return Result{Trap: TrapIntegerDivisionByZero}
			}
			if lhs.I64 == math.MinInt64 && rhs.I64 == -1 {
				return Result{Trap: TrapIntegerOverflow}
			}
			push(Value{Kind: KindI64, I64: lhs.I64 / rhs.I64})
		case OpI32TruncSatF64U:
			v := pop()
			push(Value{Kind: KindI32, I32: int32(uint32(truncSatF64U(v.F64)))})
		}
	}
	return Result{Value: pop(), Trap: TrapNone}
}

// truncSatF64U implements i32.trunc_sat_f64_u's saturating conversion:
// NaN and negative values saturate to 0, values at or above 2^32
// saturate to 0xFFFFFFFF, everything else truncates toward zero.
func truncSatF64U(f float64) uint64 {
	if math.IsNaN(f) || f < 0 {
		return 0
	}
	if f >= 4294967296.0 {
		return 0xFFFFFFFF
	}
	return uint64(f)
}
