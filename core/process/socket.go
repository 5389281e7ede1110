package process

import (
	"context"
	"fmt"
	"net"
	"os"
	"strconv"
	"syscall"
)

// Backlog is the listen queue length requested for the shared socket
const Backlog = 1024

// Socket is the single listening socket shared by every worker. Each
// worker gets its own duplicated descriptor through TryClone.
type Socket struct {
	ln   *net.TCPListener
	addr string
}

// Bind creates the listening socket with SO_REUSEADDR set
func Bind(host string, port int) (*Socket, error) {
	addr := net.JoinHostPort(host, strconv.Itoa(port))

	lc := net.ListenConfig{
		Control: func(_, _ string, c syscall.RawConn) error {
			var sockErr error
			if err := c.Control(func(fd uintptr) { sockErr = reuseAddr(fd) }); err != nil {
				return err
			}
			return sockErr
		},
	}

	ln, err := lc.Listen(context.Background(), "tcp", addr)
	if err != nil {
		return nil, &BindError{Addr: addr, Err: err}
	}
	tcp := ln.(*net.TCPListener)

	if raw, err := tcp.SyscallConn(); err == nil {
		_ = raw.Control(func(fd uintptr) { _ = relisten(fd, Backlog) })
	}

	return &Socket{ln: tcp, addr: tcp.Addr().String()}, nil
}

// FromFile wraps an inherited listening descriptor
func FromFile(f *os.File) (*Socket, error) {
	ln, err := net.FileListener(f)
	if err != nil {
		return nil, fmt.Errorf("inherited socket: %w", err)
	}
	tcp, ok := ln.(*net.TCPListener)
	if !ok {
		ln.Close()
		return nil, fmt.Errorf("inherited socket is %T, not tcp", ln)
	}
	return &Socket{ln: tcp, addr: tcp.Addr().String()}, nil
}

// Addr returns the bound address, with the real port when 0 was requested
func (s *Socket) Addr() string {
	return s.addr
}

// Port returns the bound port
func (s *Socket) Port() int {
	return s.ln.Addr().(*net.TCPAddr).Port
}

// TryClone returns an independent descriptor for the same socket. The
// caller owns the returned file.
func (s *Socket) TryClone() (*os.File, error) {
	f, err := s.ln.File()
	if err != nil {
		return nil, fmt.Errorf("duplicate socket %s: %w", s.addr, err)
	}
	return f, nil
}

// Close closes this process's descriptor. Clones stay open.
func (s *Socket) Close() error {
	return s.ln.Close()
}
