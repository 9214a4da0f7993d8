package execution

import (
	"context"

	"ptw/internal/domain"
)

// Process describes the process running the current test
type Process struct {
	BinaryPath string
	TempDir    string
	PID        int
}

// Listener receives per-test progress from a Framework
type Listener interface {
	// TestStarted is called when a test's process is up (or failed to start)
	TestStarted(test domain.Test, proc Process)
	// TestFailed is called once for every failing test
	TestFailed(test domain.Test)
}

// Framework runs a collection of tests and decides pass/fail for each one.
// It returns the overall success; failFast stops after the first failure.
type Framework interface {
	Run(ctx context.Context, tests domain.Collection, failFast bool, l Listener) (bool, error)
}
