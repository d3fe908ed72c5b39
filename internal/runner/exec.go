// Package runner renders simulator invocations and runs them as subprocesses.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"time"
)

// ErrTimeout is returned when a run exceeds its Invocation.Timeout.
var ErrTimeout = errors.New("simulator timed out")

// ExitError reports a simulator that exited with a non-zero status.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string { return fmt.Sprintf("simulator exited with status %d", e.Code) }
func (e *ExitError) Unwrap() error { return e.Err }

// Runner executes one invocation, writing combined output to out.
type Runner interface {
	Run(ctx context.Context, inv Invocation, out io.Writer) error
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context, inv Invocation, out io.Writer) error

func (f RunnerFunc) Run(ctx context.Context, inv Invocation, out io.Writer) error {
	return f(ctx, inv, out)
}

// waitDelay bounds how long Wait blocks on pipes held open by orphaned children.
const waitDelay = 5 * time.Second

// ExecRunner runs invocations with os/exec.
type ExecRunner struct {
	Log *slog.Logger
}

// NewExecRunner returns an ExecRunner logging to log, or slog.Default when nil.
func NewExecRunner(log *slog.Logger) *ExecRunner {
	if log == nil {
		log = slog.Default()
	}
	return &ExecRunner{Log: log}
}

// Run starts the process, waits for it and classifies the outcome. Timeouts
// kill the whole process group where supported. When inv.OutputFile is set
// any file left at its path is removed first and the artifact is appended
// to out after a clean exit.
func (r *ExecRunner) Run(ctx context.Context, inv Invocation, out io.Writer) error {
	if len(inv.Args) == 0 {
		return errors.New("empty invocation")
	}
	runCtx := ctx
	if inv.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, inv.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, inv.Args[0], inv.Args[1:]...)
	cmd.Dir = inv.Dir
	if len(inv.Env) > 0 {
		cmd.Env = append(os.Environ(), inv.Env...)
	}
	cmd.Stdout = out
	cmd.Stderr = out
	cmd.WaitDelay = waitDelay
	setProcessGroup(cmd)

	if err := removeArtifact(inv); err != nil {
		return err
	}

	r.Log.Debug("[Runner] starting simulator", "command", inv.Command, "dir", inv.Dir, "timeout", inv.Timeout)
	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)

	switch {
	case err == nil:
	case ctx.Err() != nil:
		return ctx.Err()
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		r.Log.Warn("[Runner] simulator timed out", "command", inv.Command, "elapsed", elapsed)
		return fmt.Errorf("%w after %s", ErrTimeout, inv.Timeout)
	default:
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return &ExitError{Code: exitErr.ExitCode(), Err: err}
		}
		return fmt.Errorf("start simulator: %w", err)
	}

	r.Log.Debug("[Runner] simulator finished", "command", inv.Command, "elapsed", elapsed)
	if inv.OutputFile != "" {
		return copyArtifact(inv, out)
	}
	return nil
}

// ArtifactPath resolves inv.OutputFile against the working directory.
func ArtifactPath(inv Invocation) string {
	if inv.OutputFile == "" || filepath.IsAbs(inv.OutputFile) || inv.Dir == "" {
		return inv.OutputFile
	}
	return filepath.Join(inv.Dir, inv.OutputFile)
}

// removeArtifact deletes a previous run's output file so a run that writes
// nothing cannot report stale data.
func removeArtifact(inv Invocation) error {
	path := ArtifactPath(inv)
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove stale output file: %w", err)
	}
	return nil
}

func copyArtifact(inv Invocation, out io.Writer) error {
	f, err := os.Open(ArtifactPath(inv))
	if err != nil {
		return fmt.Errorf("read output file: %w", err)
	}
	defer f.Close()
	if _, err := io.Copy(out, f); err != nil {
		return fmt.Errorf("copy output file: %w", err)
	}
	return nil
}
