package builder

import (
	"context"
	"io"
	"os/exec"
)

// execRunner invokes the compiler as an external process with stdout and
// stderr captured into the build log.
type execRunner struct{}

func (execRunner) Run(ctx context.Context, logW io.Writer, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = logW
	cmd.Stderr = logW
	return cmd.Run()
}
