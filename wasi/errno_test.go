package wasi

import (
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestErrnoName(t *testing.T) {
	require.Equal(t, "SUCCESS", ErrnoName(ErrnoSuccess))
	require.Equal(t, "EBADF", ErrnoName(ErrnoBadf))
	require.Equal(t, "unknown", ErrnoName(Errno(9999)))
}

func TestErrnoFromUnix_DirectErrno(t *testing.T) {
	require.Equal(t, ErrnoNoent, ErrnoFromUnix(unix.ENOENT))
	require.Equal(t, ErrnoAcces, ErrnoFromUnix(unix.EACCES))
}

func TestErrnoFromUnix_WrappedByPathError(t *testing.T) {
	wrapped := &os.PathError{Op: "open", Path: "/nope", Err: unix.ENOENT}
	require.Equal(t, ErrnoNoent, ErrnoFromUnix(wrapped))
}

func TestErrnoFromUnix_UnrecognizedFallsBackToIo(t *testing.T) {
	require.Equal(t, ErrnoIo, ErrnoFromUnix(errors.New("not a unix errno")))
}
