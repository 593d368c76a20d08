package mach

// Label names a position in the instruction stream that is not yet known
// at the point it is referenced — a branch target, a constant-pool entry,
// or a jump-table body. The emitter resolves it to a concrete offset
// during or after emission and patches every fixup recorded against it.
type Label uint32

// LabelInvalid marks the absence of a label, e.g. an amode.RipRelative
// that already carries a resolved constant offset instead of a label.
const LabelInvalid Label = 1<<32 - 1
