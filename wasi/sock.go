package wasi

import (
	"bufio"
	"errors"
	"net"
	"sync"
	"time"
)

// ErrSockShutdown is returned by Write after sock_shutdown disabled the
// write half of the socket.
var ErrSockShutdown = errors.New("wasi: socket write half shut down")

// ErrNotSeekable is returned by Seek/Truncate on a WasiSocket: streaming
// sockets have no notion of a file offset.
var ErrNotSeekable = errors.New("wasi: socket is not seekable")

// SockShutdownHow mirrors the sdflags bitset of sock_shutdown.
type SockShutdownHow byte

const (
	SockShutdownRd SockShutdownHow = 1 << iota
	SockShutdownWr
)

// WasiSocket backs a streaming socket descriptor with a real net.Conn. It
// satisfies WasiFile so the dispatcher's fd_read/fd_write path works
// unmodified against socket descriptors, and additionally provides
// Accept and Shutdown for sock_accept/sock_shutdown. It has no separate
// sock_recv/sock_send methods; data moves through Read and Write.
type WasiSocket struct {
	mu       sync.Mutex
	conn     net.Conn
	br       *bufio.Reader
	listener net.Listener
	nonblock bool
	rdShut   bool
	wrShut   bool
}

func NewWasiSocket(conn net.Conn) *WasiSocket { return &WasiSocket{conn: conn, br: bufio.NewReader(conn)} }

// NewWasiListenSocket wraps a listener for sock_accept.
func NewWasiListenSocket(l net.Listener) *WasiSocket { return &WasiSocket{listener: l} }

func (s *WasiSocket) Stat() (Filestat, error) {
	return Filestat{Filetype: FiletypeSocketStream}, nil
}

func (s *WasiSocket) Read(buf []byte) (int, error) {
	s.mu.Lock()
	shut := s.rdShut
	s.mu.Unlock()
	if shut {
		return 0, nil
	}
	return s.br.Read(buf)
}

func (s *WasiSocket) Pread(buf []byte, _ int64) (int, error) { return s.Read(buf) }

func (s *WasiSocket) Write(buf []byte) (int, error) {
	s.mu.Lock()
	shut := s.wrShut
	s.mu.Unlock()
	if shut {
		return 0, ErrSockShutdown
	}
	return s.conn.Write(buf)
}

func (s *WasiSocket) Pwrite(buf []byte, _ int64) (int, error) { return s.Write(buf) }

func (s *WasiSocket) Seek(int64, int) (int64, error) { return 0, ErrNotSeekable }
func (s *WasiSocket) Truncate(int64) error           { return ErrNotSeekable }
func (s *WasiSocket) Sync() error                    { return nil }
func (s *WasiSocket) Datasync() error                { return nil }

func (s *WasiSocket) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Close()
	}
	return s.conn.Close()
}

func (s *WasiSocket) IsAppend() bool       { return false }
func (s *WasiSocket) SetAppend(bool) error { return nil }
func (s *WasiSocket) IsNonblock() bool     { s.mu.Lock(); defer s.mu.Unlock(); return s.nonblock }
func (s *WasiSocket) SetNonblock(v bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nonblock = v
	return nil
}

// PollReadable peeks at the buffered reader under a short deadline so the
// probe byte is not consumed from the stream: the socket equivalent of
// the regular-file PollReadable's always-true shortcut, since a socket
// genuinely can block.
func (s *WasiSocket) PollReadable() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return false
	}
	if s.br.Buffered() > 0 {
		return true
	}
	_ = s.conn.SetReadDeadline(time.Now().Add(time.Millisecond))
	_, err := s.br.Peek(1)
	_ = s.conn.SetReadDeadline(time.Time{})
	return err == nil
}

// Accept implements sock_accept for a listening socket, returning a new
// connected WasiSocket.
func (s *WasiSocket) Accept() (*WasiSocket, error) {
	conn, err := s.listener.Accept()
	if err != nil {
		return nil, err
	}
	return NewWasiSocket(conn), nil
}

// Shutdown implements sock_shutdown: disables the requested half(s) of the
// duplex stream without closing the descriptor.
func (s *WasiSocket) Shutdown(how SockShutdownHow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if how&SockShutdownRd != 0 {
		s.rdShut = true
	}
	if how&SockShutdownWr != 0 {
		s.wrShut = true
	}
	return nil
}
