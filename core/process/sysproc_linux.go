//go:build linux

package process

import "syscall"

// Children die with the parent, so a crashed parent leaves no orphans
func sysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Pdeathsig: syscall.SIGKILL}
}
