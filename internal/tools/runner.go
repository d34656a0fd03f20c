package tools

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tanq16/clipr/internal/errs"
)

// Runner executes a short-lived tool invocation and returns its stdout.
type Runner interface {
	Output(ctx context.Context, name string, args ...string) ([]byte, error)
}

type RunnerFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

func (f RunnerFunc) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	return f(ctx, name, args...)
}

// ExecRunner runs tools as subprocesses. A context deadline surfaces as a
// TransientToolFailure; a non-zero exit keeps its *exec.ExitError in the chain.
type ExecRunner struct{}

func (ExecRunner) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	log.Debug().Str("op", "tools/runner").Msgf("executing %s", cmd.String())
	out, err := cmd.Output()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return out, errs.E(errs.TransientToolFailure, "tools/runner", fmt.Errorf("%s: %w", name, ctxErr))
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return out, fmt.Errorf("%s exited with code %d: %s: %w", name, exitErr.ExitCode(), lastLine(stderr.String()), err)
		}
		return out, fmt.Errorf("error running %s: %w", name, err)
	}
	return out, nil
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
