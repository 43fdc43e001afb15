package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"

	"fireq/internal/buildctx"
	"fireq/internal/storage"
)

// Executor runs fully rendered command lines
type Executor interface {
	// Run executes command, appending its output to logfile in the build's
	// log directory. A nonzero exit is returned as a code; the error is set
	// only when the command could not be run at all
	Run(ctx context.Context, bc buildctx.Context, command, logfile string) (int, error)
	// Output executes command and returns its standard output
	Output(ctx context.Context, command string) (string, int, error)
}

// Annotator renders the browsable copy of a finished log
type Annotator interface {
	RenderFile(src, dst string) error
}

// ShellExecutor runs commands with sh in the work root
type ShellExecutor struct {
	Storage   *storage.LogStorage
	Annotator Annotator
	Logger    *slog.Logger
}

// NewShellExecutor creates an executor whose commands run in ls.BaseDir
func NewShellExecutor(ls *storage.LogStorage, annotator Annotator, logger *slog.Logger) *ShellExecutor {
	return &ShellExecutor{Storage: ls, Annotator: annotator, Logger: logger}
}

// Run executes command under "set -ex" so the log shows every step
func (e *ShellExecutor) Run(ctx context.Context, bc buildctx.Context, command, logfile string) (int, error) {
	if logfile == "" {
		logfile = bc.LogFile
	}
	f, err := e.Storage.OpenLog(bc.LogPath, logfile)
	if err != nil {
		return -1, err
	}

	cmd := e.command(ctx, "set -ex; "+command)
	cmd.Stdout = f
	cmd.Stderr = f
	runErr := cmd.Run()
	if err := f.Close(); err != nil {
		e.Logger.Warn("closing log failed", "log_file", logfile, "error", err)
	}

	code, err := exitCode(runErr)
	if err != nil {
		return -1, fmt.Errorf("run %s: %w", logfile, err)
	}

	if e.Annotator != nil {
		src := e.Storage.Path(bc.LogPath, logfile)
		if err := e.Annotator.RenderFile(src, src+".htm"); err != nil {
			e.Logger.Warn("rendering log failed", "log_file", logfile, "error", err)
		}
	}
	return code, nil
}

// Output executes command and captures stdout. Stderr is logged at debug
// level when the command fails
func (e *ShellExecutor) Output(ctx context.Context, command string) (string, int, error) {
	var stdout, stderr bytes.Buffer
	cmd := e.command(ctx, command)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	code, err := exitCode(cmd.Run())
	if err != nil {
		return "", -1, err
	}
	if code != 0 {
		e.Logger.Debug("command output", "code", code, "stderr", stderr.String())
	}
	return stdout.String(), code, nil
}

func (e *ShellExecutor) command(ctx context.Context, script string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, "sh", "-c", script)
	cmd.Dir = e.Storage.BaseDir
	configureCommandProcess(cmd)
	return cmd
}

// exitCode turns the result of cmd.Run into an exit code. Only failures to
// start the process are returned as errors
func exitCode(err error) (int, error) {
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if code := exitErr.ExitCode(); code > 0 {
			return code, nil
		}
		// Killed by a signal
		return 1, nil
	}
	return -1, err
}
