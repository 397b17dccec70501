package barcode

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// Command is one subprocess invocation.
type Command struct {
	Name string
	Args []string
	// PathEnv replaces PATH in the child environment when set.
	PathEnv string
}

// Argv returns the full command line.
func (c Command) Argv() []string {
	return append([]string{c.Name}, c.Args...)
}

func (c Command) String() string { return strings.Join(c.Argv(), " ") }

// Output is the captured result of a successful command.
type Output struct {
	Stdout string
	Stderr string
}

// Runner executes commands. Implementations must stop the process when ctx ends.
type Runner interface {
	Run(ctx context.Context, cmd Command) (Output, error)
}

// CommandError describes a failed subprocess.
type CommandError struct {
	Argv     []string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("command %q exited with status %d", strings.Join(e.Argv, " "), e.ExitCode)
	if e.Stderr != "" {
		msg += ": " + strings.TrimSpace(e.Stderr)
	}
	return msg
}

func (e *CommandError) Unwrap() error { return e.Err }

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Run starts cmd and waits for it. A ctx deadline kills the process.
func (ExecRunner) Run(ctx context.Context, c Command) (Output, error) {
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Env = os.Environ()
	if c.PathEnv != "" {
		cmd.Env = append(cmd.Env, "PATH="+c.PathEnv)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	out := Output{Stdout: stdout.String(), Stderr: stderr.String()}
	if err == nil {
		return out, nil
	}
	cerr := &CommandError{Argv: c.Argv(), ExitCode: -1, Stderr: out.Stderr, Err: err}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		cerr.ExitCode = exitErr.ExitCode()
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		cerr.Err = ctxErr
	}
	return out, cerr
}

// shellQuote wraps s in single quotes for bash -c.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
