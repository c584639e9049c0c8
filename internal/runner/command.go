// Package runner provides job-processing collaborators for the worker pool.
package runner

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/rs/zerolog"

	"github.com/harekaze/dirq/internal/model"
)

const stderrTailBytes = 512

// Command executes a configured argv once per job in a child process. The
// payload is piped to stdin and job metadata travels in the environment, so
// a crashing job is isolated at the process boundary.
type Command struct {
	argv []string
	log  zerolog.Logger
}

// NewCommand creates a command runner. argv must name at least the program.
func NewCommand(argv []string, log zerolog.Logger) (*Command, error) {
	if len(argv) == 0 {
		return nil, fmt.Errorf("worker command not configured")
	}
	return &Command{argv: argv, log: log}, nil
}

// Run implements pool.Runner.
func (c *Command) Run(ctx context.Context, job model.Job) error {
	cmd := exec.CommandContext(ctx, c.argv[0], c.argv[1:]...)
	cmd.Stdin = strings.NewReader(job.Payload)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	cmd.Env = append(os.Environ(),
		"DIRQ_JOB_ID="+job.ID,
		"DIRQ_JOB_TYPE="+job.Type,
	)

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("job command: %w (stderr: %s)", err, tail(stderr.Bytes()))
	}

	c.log.Debug().Str("job_id", job.ID).Str("type", job.Type).Msg("job command finished")
	return nil
}

func tail(b []byte) string {
	if len(b) > stderrTailBytes {
		b = b[len(b)-stderrTailBytes:]
	}
	return strings.TrimSpace(string(b))
}

// Noop resolves every job as finished without running anything. Used when no
// worker command is configured.
type Noop struct{}

// Run implements pool.Runner.
func (Noop) Run(context.Context, model.Job) error {
	return nil
}
