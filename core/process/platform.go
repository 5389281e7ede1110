package process

import (
	"os"
	"runtime"
)

// Platform describes what the host can do for the pool
type Platform struct {
	// CanFork is true when workers can be started as separate OS processes
	// that inherit the listening socket
	CanFork bool
	// Executable is the binary re-executed for every worker
	Executable string
	// Reason explains a false CanFork
	Reason string
}

// DetectPlatform inspects the running host
func DetectPlatform() Platform {
	if runtime.GOOS == "windows" {
		return Platform{Reason: "socket inheritance is not supported on windows"}
	}

	exe, err := os.Executable()
	if err != nil {
		return Platform{Reason: "executable path unavailable: " + err.Error()}
	}
	return Platform{CanFork: true, Executable: exe}
}
