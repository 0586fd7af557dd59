// Package wpcli drives WordPress through wp-cli over SSH. It is a thin command
// runner, not a client library: every call is one remote shell command.
package wpcli

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Runner executes shell commands on the remote host and copies files to it.
type Runner interface {
	Run(ctx context.Context, command string) (string, error)
	Put(ctx context.Context, localPath, remotePath string) error
}

// Target identifies the SSH endpoint.
type Target struct {
	Host string
	User string
	Port int
}

func (t Target) address() string {
	if t.User == "" {
		return t.Host
	}
	return t.User + "@" + t.Host
}

// CommandError carries the output of a failed remote command.
type CommandError struct {
	Command string
	Output  string
	Err     error
}

func (e *CommandError) Error() string {
	output := strings.TrimSpace(e.Output)
	if output == "" {
		return fmt.Sprintf("wpcli: %s: %v", e.Command, e.Err)
	}
	return fmt.Sprintf("wpcli: %s: %v: %s", e.Command, e.Err, output)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

type execFunc func(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)

func defaultExec(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// SSHRunner shells out to the ssh and scp binaries. Calls are throttled by a
// shared limiter so parallel workers cannot flood the host.
type SSHRunner struct {
	target  Target
	limiter *rate.Limiter
	logger  *zap.Logger
	exec    execFunc
}

// RunnerOption customizes an SSHRunner.
type RunnerOption func(*SSHRunner)

// WithRateLimit caps remote commands per second. Zero or less disables the cap.
func WithRateLimit(perSecond float64) RunnerOption {
	return func(r *SSHRunner) {
		if perSecond <= 0 {
			r.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		r.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
}

// WithRunnerLogger sets the logger used for command tracing.
func WithRunnerLogger(logger *zap.Logger) RunnerOption {
	return func(r *SSHRunner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewSSHRunner builds a runner for target.
func NewSSHRunner(target Target, opts ...RunnerOption) *SSHRunner {
	if target.Port == 0 {
		target.Port = 22
	}
	r := &SSHRunner{
		target:  target,
		limiter: rate.NewLimiter(rate.Inf, 1),
		logger:  zap.NewNop(),
		exec:    defaultExec,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes command through ssh and returns its trimmed stdout.
func (r *SSHRunner) Run(ctx context.Context, command string) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", err
	}
	r.logger.Debug("remote command", zap.String("host", r.target.Host), zap.String("command", abbreviate(command)))
	stdout, stderr, err := r.exec(ctx, "ssh",
		"-p", strconv.Itoa(r.target.Port),
		"-o", "BatchMode=yes",
		r.target.address(),
		command)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", &CommandError{Command: abbreviate(command), Output: string(stderr), Err: err}
	}
	return strings.TrimSpace(string(stdout)), nil
}

// Put copies localPath to remotePath with scp.
func (r *SSHRunner) Put(ctx context.Context, localPath, remotePath string) error {
	if err := r.limiter.Wait(ctx); err != nil {
		return err
	}
	r.logger.Debug("remote copy", zap.String("host", r.target.Host), zap.String("local", localPath), zap.String("remote", remotePath))
	_, stderr, err := r.exec(ctx, "scp",
		"-q",
		"-P", strconv.Itoa(r.target.Port),
		"-o", "BatchMode=yes",
		localPath,
		r.target.address()+":"+remotePath)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return &CommandError{Command: "scp " + localPath, Output: string(stderr), Err: err}
	}
	return nil
}

// Quote wraps s in single quotes for a POSIX shell.
func Quote(s string) string {
	if s == "" {
		return "''"
	}
	return "'" + strings.ReplaceAll(s, "'", `'"'"'`) + "'"
}

func abbreviate(command string) string {
	const limit = 160
	if len(command) <= limit {
		return command
	}
	return command[:limit] + "..."
}
