//go:build !windows

package launch

import "syscall"

// detachAttr detaches the supervisor child into its own session so it
// survives the launching terminal.
func detachAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setsid: true}
}

// groupAttr puts the provider process in its own process group so a
// hard-timeout kill takes its descendants down with it.
func groupAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setpgid: true}
}

// killGroup delivers SIGKILL to pid's entire process group.
func killGroup(pid int) {
	_ = syscall.Kill(-pid, syscall.SIGKILL)
}
