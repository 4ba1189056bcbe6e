//go:build windows

package main

import (
	"os/exec"
	"syscall"
)

// configureDaemonProc detaches the daemon from the TUI's console.
func configureDaemonProc(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP}
}
