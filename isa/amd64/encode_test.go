package amd64

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nativewasm/corewasm/mach"
	"github.com/nativewasm/corewasm/regalloc"
)

func vreg(r regalloc.RealReg) regalloc.VReg { return regalloc.FromRealReg(r, regalloc.RegClassInt) }

func encodeOne(t *testing.T, ins *Instruction) string {
	t.Helper()
	buf := mach.NewCodeBuffer()
	enc := NewEncoder(buf, func(uint32) mach.Label { return mach.LabelInvalid })
	require.NoError(t, enc.Encode(ins))
	require.NoError(t, buf.ResolveFixups())
	return hex.EncodeToString(buf.Code)
}

func TestEncode_Ret(t *testing.T) {
	require.Equal(t, "c3", encodeOne(t, NewRet()))
}

func TestEncode_Imm(t *testing.T) {
	require.Equal(t, "b987d61200", encodeOne(t, NewImm(1234567, vreg(RCX), false)))
}

func TestEncode_MovRR_wide(t *testing.T) {
	require.Equal(t, "4889f7", encodeOne(t, NewMovRR(vreg(RSI), vreg(RDI), true)))
}

func TestEncode_AluRmiR_AddNarrow(t *testing.T) {
	src, ok := NewOperandReg(vreg(RAX), regalloc.RegClassInt)
	require.True(t, ok)
	dst, ok := NewOperandReg(vreg(RCX), regalloc.RegClassInt)
	require.True(t, ok)
	require.Equal(t, "01c1", encodeOne(t, NewAluRmiR(AluAdd, src, dst, false)))
}

func TestEncode_AluRmiR_SubWideHighRegs(t *testing.T) {
	// sub %r14, %r15 — both operands need REX.R/REX.B, exercising the
	// high-register extension bits.
	src, ok := NewOperandReg(vreg(R14), regalloc.RegClassInt)
	require.True(t, ok)
	dst, ok := NewOperandReg(vreg(R15), regalloc.RegClassInt)
	require.True(t, ok)
	require.Equal(t, "4d29f7", encodeOne(t, NewAluRmiR(AluSub, src, dst, true)))
}
