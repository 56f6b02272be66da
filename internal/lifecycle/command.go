package lifecycle

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
)

// CommandResult is the outcome of a docker CLI invocation that ran.
type CommandResult struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
	// Signaled is set when the process was killed by a signal; ExitCode is
	// then meaningless.
	Signaled bool
}

// CommandRunner runs docker CLI commands. A non-nil error means the process
// could not be started at all; exit statuses are reported in the result.
type CommandRunner interface {
	// Output runs args with captured stdout and stderr.
	Output(ctx context.Context, args []string) (CommandResult, error)
	// Attach runs args connected to the caller's terminal.
	Attach(ctx context.Context, args []string) (CommandResult, error)
}

// execRunner runs the docker binary found on PATH.
type execRunner struct {
	binary string
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

func newExecRunner() *execRunner {
	return &execRunner{binary: "docker", stdin: os.Stdin, stdout: os.Stdout, stderr: os.Stderr}
}

func (r *execRunner) Output(ctx context.Context, args []string) (CommandResult, error) {
	cmd := exec.CommandContext(ctx, r.binary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	res := CommandResult{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}
	return classifyExit(res, err)
}

func (r *execRunner) Attach(_ context.Context, args []string) (CommandResult, error) {
	// The interactive session owns the terminal; cancellation is left to the
	// user exiting the shell.
	cmd := exec.Command(r.binary, args...)
	cmd.Stdin = r.stdin
	cmd.Stdout = r.stdout
	cmd.Stderr = r.stderr
	return classifyExit(CommandResult{}, cmd.Run())
}

func classifyExit(res CommandResult, err error) (CommandResult, error) {
	if err == nil {
		return res, nil
	}
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return res, err
	}
	res.ExitCode = exitErr.ExitCode()
	if res.ExitCode == -1 {
		res.Signaled = true
	}
	return res, nil
}
