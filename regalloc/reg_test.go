package regalloc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFromID(t *testing.T) {
	v := FromID(42, RegClassFloat)
	require.Equal(t, VRegID(42), v.ID())
	require.Equal(t, RegClassFloat, v.RegClass())
	require.False(t, v.IsRealReg())
}

func TestFromRealReg(t *testing.T) {
	v := FromRealReg(5, RegClassInt)
	require.Equal(t, RealReg(5), v.RealReg())
	require.Equal(t, VRegID(5), v.ID())
	require.True(t, v.IsRealReg())
}

func TestSetRealReg(t *testing.T) {
	v := FromID(7, RegClassInt)
	require.False(t, v.IsRealReg())
	allocated := v.SetRealReg(3)
	require.True(t, allocated.IsRealReg())
	require.Equal(t, RealReg(3), allocated.RealReg())
	// ID and class survive allocation.
	require.Equal(t, VRegID(7), allocated.ID())
	require.Equal(t, RegClassInt, allocated.RegClass())
}

func TestRegClassString(t *testing.T) {
	require.Equal(t, "int", RegClassInt.String())
	require.Equal(t, "float", RegClassFloat.String())
	require.Equal(t, "invalid", RegClassInvalid.String())
}

func TestAllocationConsumer(t *testing.T) {
	c := NewAllocationConsumer([]RealReg{1, 2, 3})
	require.Equal(t, RealReg(1), c.Next())
	require.Equal(t, RealReg(2), c.Next())
	require.False(t, c.Done())
	require.Equal(t, RealReg(3), c.Next())
	require.True(t, c.Done())
}

func TestAllocationConsumer_ExhaustedPanics(t *testing.T) {
	c := NewAllocationConsumer([]RealReg{1})
	c.Next()
	require.Panics(t, func() { c.Next() })
}

func TestCollectedOrder(t *testing.T) {
	var c Collected
	def := FromID(1, RegClassInt)
	use := FromID(2, RegClassInt)
	lateUse := FromID(3, RegClassInt)
	c.Def(def)
	c.Use(use)
	c.LateUse(lateUse)
	require.Equal(t, []VReg{def, use, lateUse}, c.Order())
}
