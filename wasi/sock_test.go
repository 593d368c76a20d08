package wasi

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWasiSocket_ReadWriteRoundTrip(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	sock := NewWasiSocket(server)
	go func() { client.Write([]byte("ping")) }()

	buf := make([]byte, 4)
	n, err := sock.Read(buf)
	require.NoError(t, err)
	require.Equal(t, "ping", string(buf[:n]))
}

func TestWasiSocket_PollReadableDoesNotConsumeData(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	sock := NewWasiSocket(server)
	done := make(chan struct{})
	go func() {
		client.Write([]byte("x"))
		close(done)
	}()
	// net.Pipe is unbuffered: the write completes only once the peek has
	// read it, so wait for it after polling rather than before.
	time.Sleep(10 * time.Millisecond)

	require.True(t, sock.PollReadable())
	<-done

	buf := make([]byte, 1)
	n, err := sock.Read(buf)
	require.NoError(t, err)
	require.Equal(t, "x", string(buf[:n]))
}

func TestWasiSocket_ShutdownWriteRejectsWrites(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	sock := NewWasiSocket(server)
	require.NoError(t, sock.Shutdown(SockShutdownWr))
	_, err := sock.Write([]byte("x"))
	require.ErrorIs(t, err, ErrSockShutdown)
}

func TestWasiSocket_ShutdownReadReturnsEOFLikeZero(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	sock := NewWasiSocket(server)
	require.NoError(t, sock.Shutdown(SockShutdownRd))
	buf := make([]byte, 4)
	n, err := sock.Read(buf)
	require.NoError(t, err)
	require.Equal(t, 0, n)
}

func TestWasiSocket_NotSeekable(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	sock := NewWasiSocket(server)
	_, err := sock.Seek(0, 0)
	require.ErrorIs(t, err, ErrNotSeekable)
	require.ErrorIs(t, sock.Truncate(0), ErrNotSeekable)
}

func TestWasiListenSocket_Accept(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	sock := NewWasiListenSocket(ln)
	accepted := make(chan *WasiSocket, 1)
	go func() {
		s, err := sock.Accept()
		require.NoError(t, err)
		accepted <- s
	}()

	conn, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	s := <-accepted
	require.NotNil(t, s)
	defer s.Close()
}
