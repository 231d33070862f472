package cmdx

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"
)

var (
	ErrTimeout     = errors.New("command timed out")
	ErrOutputLimit = errors.New("command output exceeds limit")
	ErrExitStatus  = errors.New("command exited with non-zero status")
	ErrEmpty       = errors.New("empty command")
)

const (
	DefaultTimeout   = 30 * time.Second
	DefaultMaxStderr = 64 * 1024
	waitDelay        = 2 * time.Second
)

type Opts struct {
	// Argv[0] is resolved through PATH; no shell is involved.
	Argv    []string
	Stdin   io.Reader
	Timeout time.Duration
	Dir     string

	// 0 means unlimited for stdout, DefaultMaxStderr for stderr.
	MaxStdout int64
	MaxStderr int64
}

type Result struct {
	ExitCode        int
	Stdout          []byte
	Stderr          []byte
	TimedOut        bool
	StdoutTruncated bool
	StderrTruncated bool
}

// capBuffer keeps at most max bytes and silently drops the rest, so the child
// never blocks on a full pipe.
type capBuffer struct {
	buf       bytes.Buffer
	max       int64
	truncated bool
}

func (b *capBuffer) Write(p []byte) (int, error) {
	if b.max <= 0 {
		return b.buf.Write(p)
	}
	room := b.max - int64(b.buf.Len())
	if room <= 0 {
		if len(p) > 0 {
			b.truncated = true
		}
		return len(p), nil
	}
	if int64(len(p)) > room {
		b.buf.Write(p[:room])
		b.truncated = true
		return len(p), nil
	}
	return b.buf.Write(p)
}

func Which(name string) (string, bool) {
	p, err := exec.LookPath(name)
	if err == nil && strings.TrimSpace(p) != "" {
		return p, true
	}
	return "", false
}

// Run executes a process with a timeout and captures stdout/stderr.
// The result is non-nil whenever the process was started, including on error.
func Run(ctx context.Context, opts *Opts) (*Result, error) {
	if len(opts.Argv) == 0 || strings.TrimSpace(opts.Argv[0]) == "" {
		return nil, ErrEmpty
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	maxStderr := opts.MaxStderr
	if maxStderr <= 0 {
		maxStderr = DefaultMaxStderr
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	//nolint:gosec
	cmd := exec.CommandContext(ctx, opts.Argv[0], opts.Argv[1:]...)
	cmd.WaitDelay = waitDelay
	if strings.TrimSpace(opts.Dir) != "" {
		cmd.Dir = opts.Dir
	}
	if opts.Stdin != nil {
		cmd.Stdin = opts.Stdin
	}

	stdout := &capBuffer{max: opts.MaxStdout}
	stderr := &capBuffer{max: maxStderr}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", opts.Argv[0], err)
	}
	waitErr := cmd.Wait()

	res := &Result{
		Stdout:          stdout.buf.Bytes(),
		Stderr:          stderr.buf.Bytes(),
		StdoutTruncated: stdout.truncated,
		StderrTruncated: stderr.truncated,
		TimedOut:        errors.Is(ctx.Err(), context.DeadlineExceeded),
	}
	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
	}

	switch {
	case res.TimedOut:
		res.ExitCode = 124
		return res, fmt.Errorf("%s: %w after %s", opts.Argv[0], ErrTimeout, timeout)
	case errors.Is(ctx.Err(), context.Canceled):
		return res, fmt.Errorf("%s: %w", opts.Argv[0], ctx.Err())
	case waitErr != nil:
		var ee *exec.ExitError
		if errors.As(waitErr, &ee) {
			return res, fmt.Errorf("%s: %w (%d)", opts.Argv[0], ErrExitStatus, res.ExitCode)
		}
		return res, fmt.Errorf("%s: %w", opts.Argv[0], waitErr)
	case res.StdoutTruncated:
		return res, fmt.Errorf("%s: %w (%d bytes)", opts.Argv[0], ErrOutputLimit, opts.MaxStdout)
	}
	return res, nil
}
