//go:build !windows

package job

import (
	"fmt"
	"os"
	"strings"
	"syscall"

	"golang.org/x/sys/unix"
)

// parseSignal resolves a signal name like "TERM", "SIGKILL", or "" (the
// default graceful signal) to an os.Signal plus a display label.
func parseSignal(name string) (os.Signal, string, error) {
	if name == "" {
		return syscall.SIGTERM, "SIGTERM", nil
	}

	normalized := strings.ToUpper(strings.TrimSpace(name))
	if !strings.HasPrefix(normalized, "SIG") {
		normalized = "SIG" + normalized
	}

	sig := unix.SignalNum(normalized)
	if sig == 0 {
		return nil, "", fmt.Errorf("unknown signal %q", name)
	}
	return sig, normalized, nil
}

// processAlive probes a pid with signal 0, which checks existence
// without delivering anything.
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}
