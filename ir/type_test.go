package ir

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestType_Size(t *testing.T) {
	require.Equal(t, int64(4), I32.Size())
	require.Equal(t, int64(4), F32.Size())
	require.Equal(t, int64(8), I64.Size())
	require.Equal(t, int64(8), F64.Size())
	require.Equal(t, int64(16), V128.Size())
	require.Equal(t, int64(16), I128.Size())
}

func TestType_SizeInvalidPanics(t *testing.T) {
	require.Panics(t, func() { TypeInvalid.Size() })
}

func TestType_IsInt(t *testing.T) {
	require.True(t, I32.IsInt())
	require.True(t, I64.IsInt())
	require.True(t, I128.IsInt())
	require.False(t, F32.IsInt())
	require.False(t, F64.IsInt())
	require.False(t, V128.IsInt())
}

func TestType_String(t *testing.T) {
	require.Equal(t, "i32", I32.String())
	require.Equal(t, "i64", I64.String())
	require.Equal(t, "f32", F32.String())
	require.Equal(t, "f64", F64.String())
	require.Equal(t, "v128", V128.String())
	require.Equal(t, "i128", I128.String())
	require.Equal(t, "invalid", TypeInvalid.String())
}

func TestSignature(t *testing.T) {
	sig := Signature{Params: []Type{I32, I32}, Results: []Type{I32}}
	require.Len(t, sig.Params, 2)
	require.Equal(t, I32, sig.Results[0])
}
