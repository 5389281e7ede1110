//go:build windows

package process

import "golang.org/x/sys/windows"

func reuseAddr(fd uintptr) error {
	return windows.SetsockoptInt(windows.Handle(fd), windows.SOL_SOCKET, windows.SO_REUSEADDR, 1)
}

func relisten(uintptr, int) error {
	return nil
}
