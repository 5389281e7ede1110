//go:build !windows

package process

import "golang.org/x/sys/unix"

func reuseAddr(fd uintptr) error {
	return unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
}

// relisten applies the backlog to an already listening socket
func relisten(fd uintptr, backlog int) error {
	return unix.Listen(int(fd), backlog)
}
