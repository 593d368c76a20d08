//go:build unix

package mach

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFinalize_RoundTrip(t *testing.T) {
	code := []byte{0xB8, 0x2A, 0x00, 0x00, 0x00, 0xC3} // mov eax, 42; ret
	img, err := Finalize(code)
	require.NoError(t, err)
	defer img.Close()

	require.NotZero(t, img.Addr())
}

func TestFinalize_Empty(t *testing.T) {
	img, err := Finalize(nil)
	require.NoError(t, err)
	require.Zero(t, img.Addr())
	require.NoError(t, img.Close())
}

func TestExecutableImage_CloseIsIdempotentOnZeroValue(t *testing.T) {
	var img ExecutableImage
	require.NoError(t, img.Close())
}
