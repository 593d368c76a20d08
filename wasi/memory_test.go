package wasi

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSliceMemory_BytesBounds(t *testing.T) {
	mem := NewSliceMemory(make([]byte, 16))
	b, ok := mem.Bytes(0, 16)
	require.True(t, ok)
	require.Len(t, b, 16)

	_, ok = mem.Bytes(10, 10)
	require.False(t, ok)

	require.Equal(t, uint32(16), mem.Size())
}

func TestLE32RoundTrip(t *testing.T) {
	mem := NewSliceMemory(make([]byte, 16))
	require.True(t, putLE32(mem, 4, 0xDEADBEEF))
	v, ok := le32(mem, 4)
	require.True(t, ok)
	require.Equal(t, uint32(0xDEADBEEF), v)
}

func TestLE64RoundTrip(t *testing.T) {
	mem := NewSliceMemory(make([]byte, 16))
	require.True(t, putLE64(mem, 0, 0x0102030405060708))
	v, ok := le64(mem, 0)
	require.True(t, ok)
	require.Equal(t, uint64(0x0102030405060708), v)
}

func TestReadString(t *testing.T) {
	mem := NewSliceMemory([]byte("hello world"))
	s, ok := readString(mem, 6, 5)
	require.True(t, ok)
	require.Equal(t, "world", s)

	_, ok = readString(mem, 6, 100)
	require.False(t, ok)
}
