// Package localexec provides a local command executor with an allowlist.
package localexec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/fentz26/chime/internal/connectors"
)

// allowedCommands is the strict allowlist of notification and audio binaries.
var allowedCommands = map[string]bool{
	"notify-send": true,
	"osascript":   true,
	"paplay":      true,
	"aplay":       true,
	"afplay":      true,
}

// LocalExec implements the Connector interface for local command execution.
type LocalExec struct {
	workDir  string
	lookPath func(string) (string, error)
}

// New creates a new LocalExec connector.
func New(workDir string) *LocalExec {
	return &LocalExec{workDir: workDir, lookPath: exec.LookPath}
}

// Name returns the connector identifier.
func (l *LocalExec) Name() string {
	return "localexec"
}

// IsAllowed checks if a command is in the allowlist.
func (l *LocalExec) IsAllowed(cmd string, args []string) bool {
	return allowedCommands[cmd]
}

// Available reports whether cmd is allowlisted and found on PATH.
func (l *LocalExec) Available(cmd string) bool {
	if !l.IsAllowed(cmd, nil) {
		return false
	}
	_, err := l.lookPath(cmd)
	return err == nil
}

// Execute runs a command if it's in the allowlist.
func (l *LocalExec) Execute(ctx context.Context, cmd string, args []string) (*connectors.ExecResult, error) {
	if !l.IsAllowed(cmd, args) {
		return nil, fmt.Errorf("command not allowed: %s %s", cmd, strings.Join(args, " "))
	}

	execCmd := exec.CommandContext(ctx, cmd, args...)
	if l.workDir != "" {
		execCmd.Dir = l.workDir
	}

	var stdout, stderr bytes.Buffer
	execCmd.Stdout = &stdout
	execCmd.Stderr = &stderr

	err := execCmd.Run()

	exitCode := 0
	if err != nil {
		var exitError *exec.ExitError
		if errors.As(err, &exitError) {
			exitCode = exitError.ExitCode()
		} else {
			return nil, fmt.Errorf("exec error: %w", err)
		}
	}

	return &connectors.ExecResult{
		Command:  cmd,
		Args:     args,
		ExitCode: exitCode,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
	}, nil
}
