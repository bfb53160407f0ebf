package mapping

import (
	"context"

	"github.com/roboticsapi/robotics-api-sub003/internal/dataflow"
	"github.com/roboticsapi/robotics-api-sub003/internal/sensor"
)

// Handle identifies a fragment running in an environment.
type Handle interface {
	// Name is the remote-net name other fragments use to read values the
	// run publishes.
	Name() string

	// Stop terminates the run. Stopping twice is a no-op.
	Stop(ctx context.Context) error
}

// Runner is an environment that executes compiled fragments.
type Runner interface {
	sensor.Environment

	// Compiler returns the compiler matching the environment's catalog and
	// translators.
	Compiler() *Compiler

	// CompileAndRun starts frag and keeps it running until stopped.
	CompileAndRun(ctx context.Context, frag *dataflow.Fragment) (Handle, error)
}
