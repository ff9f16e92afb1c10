// Package procx runs the external ffmpeg/ffprobe processes the pipeline
// depends on, with a wall-clock budget and bounded stderr capture on every
// call so a hung or chatty subprocess can never block a worker forever.
package procx

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/hubenschmidt/dubstream-gateway/internal/perr"
)

const maxCapturedOutput = 64 * 1024

// limitedWriter keeps the first n bytes written to buf and discards the rest,
// reporting every write as complete so the subprocess is not failed for it.
type limitedWriter struct {
	buf *bytes.Buffer
	n   int
}

func (w *limitedWriter) Write(p []byte) (int, error) {
	if room := w.n - w.buf.Len(); room > 0 {
		w.buf.Write(p[:min(room, len(p))])
	}
	return len(p), nil
}

// Runner invokes external processes with a shared timeout budget.
type Runner struct {
	Timeout time.Duration
}

// NewRunner returns a Runner with the given per-call wall-clock budget.
func NewRunner(timeout time.Duration) *Runner {
	return &Runner{Timeout: timeout}
}

// Run executes name with args, returning stdout. Stderr is captured (bounded)
// and folded into the error on non-zero exit or timeout.
func (r *Runner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &limitedWriter{buf: &stderr, n: maxCapturedOutput}

	err := cmd.Run()
	if ctx.Err() == context.DeadlineExceeded {
		return nil, fmt.Errorf("%w: %s: %s", perr.Timeout, name, stderr.String())
	}
	if err != nil {
		return nil, fmt.Errorf("%s failed: %w: %s", name, err, stderr.String())
	}
	return stdout.Bytes(), nil
}

// RunPiped executes name with args, writing stdin and returning stdout; used
// for the atempo time-stretch pipe which reads/writes raw f32le PCM over
// pipe:0/pipe:1.
func (r *Runner) RunPiped(ctx context.Context, stdin []byte, name string, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = bytes.NewReader(stdin)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &limitedWriter{buf: &stderr, n: maxCapturedOutput}

	err := cmd.Run()
	if ctx.Err() == context.DeadlineExceeded {
		return nil, fmt.Errorf("%w: %s: %s", perr.Timeout, name, stderr.String())
	}
	if err != nil {
		return nil, fmt.Errorf("%s failed: %w: %s", name, err, stderr.String())
	}
	return stdout.Bytes(), nil
}
