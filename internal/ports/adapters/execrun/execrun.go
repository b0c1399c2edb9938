package execrun

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/kbukum/gokit/process"
	"github.com/rs/zerolog"

	"github.com/clipnetic/clipnetic/internal/ports"
	"github.com/clipnetic/clipnetic/internal/types"
)

const (
	defaultGracePeriod = 5 * time.Second
	stderrTail         = 4 << 10
)

// Runner executes tools through gokit's process runner: each tool runs as
// its own process group, and on cancellation the group gets SIGTERM, then
// SIGKILL after GracePeriod.
type Runner struct {
	GracePeriod time.Duration
	// Env is appended to the parent environment.
	Env []string
	log zerolog.Logger
}

func New(log zerolog.Logger) *Runner {
	return &Runner{GracePeriod: defaultGracePeriod, log: log}
}

var _ ports.Runner = (*Runner)(nil)

func (r *Runner) Run(ctx context.Context, tool string, args []string, workdir string) (ports.ToolResult, error) {
	if tool == "" {
		return ports.ToolResult{}, errors.New("execrun: tool is required")
	}
	grace := r.GracePeriod
	if grace <= 0 {
		grace = defaultGracePeriod
	}

	out, err := process.Run(ctx, process.Command{
		Binary:      tool,
		Args:        args,
		Dir:         workdir,
		Env:         r.Env,
		GracePeriod: grace,
	})
	var res ports.ToolResult
	if out != nil {
		res = ports.ToolResult{
			Stdout:   out.Stdout,
			Stderr:   out.Stderr,
			ExitCode: out.ExitCode,
			Duration: out.Duration,
		}
	}

	name := filepath.Base(tool)
	r.log.Debug().
		Str("tool", name).
		Int("exit_code", res.ExitCode).
		Dur("duration", res.Duration).
		Msg("tool finished")

	if err != nil {
		if ctx.Err() != nil {
			return res, fmt.Errorf("%s: %w", name, ctx.Err())
		}
		return res, &types.ToolError{
			Tool:     name,
			ExitCode: res.ExitCode,
			Stderr:   tail(res.Stderr, stderrTail),
			Cause:    err,
		}
	}
	return res, nil
}

func tail(b []byte, n int) string {
	if len(b) > n {
		b = b[len(b)-n:]
	}
	return string(b)
}
