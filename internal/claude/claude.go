package claude

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"syscall"
)

// ErrInterrupted is returned when Claude is terminated by an interrupt signal (Ctrl+C).
var ErrInterrupted = errors.New("claude interrupted")

// ResumeOptions configures reopening a recorded session in Claude Code.
type ResumeOptions struct {
	SessionID  string
	WorkingDir string // project the session ran in; ignored when it no longer exists
	ClaudePath string // path to claude binary (defaults to "claude")
	OnStart    func() // called just before the Claude process starts (e.g., to stop a spinner)
}

// AvailableAt checks if the claude CLI exists at the given path.
func AvailableAt(path string) error {
	_, err := exec.LookPath(path)
	if err != nil {
		return fmt.Errorf("claude CLI not found at %q: install Claude Code (https://claude.ai/code) to resume sessions", path)
	}
	return nil
}

// ResumeCommand builds the interactive `claude --resume <id>` invocation without running it.
func ResumeCommand(opts ResumeOptions) (*exec.Cmd, error) {
	if strings.TrimSpace(opts.SessionID) == "" {
		return nil, errors.New("session id is required")
	}
	claudePath := opts.ClaudePath
	if claudePath == "" {
		claudePath = "claude"
	}

	cmd := exec.Command(claudePath, "--resume", opts.SessionID)
	if info, err := os.Stat(opts.WorkingDir); opts.WorkingDir != "" && err == nil && info.IsDir() {
		cmd.Dir = opts.WorkingDir
	}
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd, nil
}

// Resume reopens a session interactively and waits for Claude to exit.
func Resume(opts ResumeOptions) error {
	claudePath := opts.ClaudePath
	if claudePath == "" {
		claudePath = "claude"
	}
	if err := AvailableAt(claudePath); err != nil {
		return err
	}

	cmd, err := ResumeCommand(opts)
	if err != nil {
		return err
	}
	if opts.OnStart != nil {
		opts.OnStart()
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start claude: %w", err)
	}
	return handleProcessExit(cmd.Wait())
}

// Version runs `claude --version` and returns its trimmed output.
func Version(claudePath string) (string, error) {
	if claudePath == "" {
		claudePath = "claude"
	}
	if err := AvailableAt(claudePath); err != nil {
		return "", err
	}
	var out bytes.Buffer
	cmd := exec.Command(claudePath, "--version")
	cmd.Stdout = &out
	// Must connect streams (not leave nil) or Claude Code may not function correctly
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		return "", handleProcessExit(err)
	}
	return strings.TrimSpace(out.String()), nil
}

// handleProcessExit converts exec errors to appropriate return values.
func handleProcessExit(err error) error {
	if err == nil {
		return nil
	}
	if isInterrupt(err) {
		return ErrInterrupted
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return fmt.Errorf("claude exited with code %d", exitErr.ExitCode())
	}
	return fmt.Errorf("failed to run claude: %w", err)
}

// isInterrupt checks if an exec error was caused by an interrupt signal.
func isInterrupt(err error) bool {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok {
			return status.Signal() == syscall.SIGINT || status.Signal() == syscall.SIGTERM
		}
	}
	return false
}
