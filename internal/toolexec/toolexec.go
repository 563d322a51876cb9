// Package toolexec runs the external command line tools the bake pipeline
// delegates to (texconv, glslc) and captures their output.
package toolexec

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"go.uber.org/zap"
)

type options struct {
	args []string
	dir  string
	log  *zap.Logger
}

// Option configures a Run call.
type Option func(*options)

// WithArgs sets the command arguments.
func WithArgs(args ...string) Option {
	return func(o *options) {
		o.args = args
	}
}

// WithDir sets the working directory of the child process.
func WithDir(dir string) Option {
	return func(o *options) {
		o.dir = dir
	}
}

// WithLogger logs the command line at debug level and its output on failure.
func WithLogger(log *zap.Logger) Option {
	return func(o *options) {
		o.log = log
	}
}

// ExitError is returned when the tool could not be started or exited non-zero.
type ExitError struct {
	Command string
	Args    []string
	Output  string
	Err     error
}

func (e *ExitError) Error() string {
	out := strings.TrimSpace(e.Output)
	if out == "" {
		return fmt.Sprintf("%s: %v", e.Command, e.Err)
	}
	return fmt.Sprintf("%s: %v: %s", e.Command, e.Err, out)
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// Run executes command and returns its combined stdout and stderr.
// The process is killed when ctx is cancelled.
func Run(ctx context.Context, command string, opts ...Option) (string, error) {
	o := &options{log: zap.NewNop()}
	for _, opt := range opts {
		opt(o)
	}

	o.log.Debug("exec", zap.String("cmd", command), zap.String("args", strings.Join(o.args, " ")))
	cmd := exec.CommandContext(ctx, command, o.args...)
	if o.dir != "" {
		cmd.Dir = o.dir
	}

	var b bytes.Buffer
	cmd.Stdout = &b
	cmd.Stderr = &b
	if err := cmd.Run(); err != nil {
		o.log.Warn("command failed", zap.String("cmd", command), zap.String("output", b.String()), zap.Error(err))
		return b.String(), &ExitError{Command: command, Args: o.args, Output: b.String(), Err: err}
	}
	return b.String(), nil
}
