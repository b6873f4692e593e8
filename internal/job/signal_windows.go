//go:build windows

package job

import (
	"fmt"
	"os"
)

// parseSignal on Windows supports only the default termination, which
// maps to os.Kill.
func parseSignal(name string) (os.Signal, string, error) {
	if name == "" {
		return os.Kill, "KILL", nil
	}
	return nil, "", fmt.Errorf("named signals are not supported on windows")
}

// processAlive is a best-effort liveness probe.
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	_, err := os.FindProcess(pid)
	return err == nil
}
