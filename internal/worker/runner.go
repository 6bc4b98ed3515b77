package worker

import (
	"context"
	"io"
	"os/exec"
	"time"
)

// processWaitDelay bounds how long Wait keeps copying output after the
// downloader exits while a child (ffmpeg) still holds the pipe open.
const processWaitDelay = 10 * time.Second

// Process is a started downloader process.
type Process interface {
	Wait() error
}

// Runner starts downloader processes. Both output streams go to output.
type Runner interface {
	Start(ctx context.Context, name string, args []string, output io.Writer) (Process, error)
}

// ExecRunner runs real subprocesses. The process is killed only when ctx is
// done; a batch cancellation never reaches it.
type ExecRunner struct{}

// Start implements Runner.
func (ExecRunner) Start(ctx context.Context, name string, args []string, output io.Writer) (Process, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = output
	cmd.Stderr = output
	cmd.WaitDelay = processWaitDelay

	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return cmd, nil
}
