package execution

import (
	"context"
	"log/slog"

	"ptw/internal/config"
	"ptw/internal/domain"
)

// Worker wraps a Framework and turns its callbacks into the heartbeat,
// failure and verdict channels watched by the supervisor. It knows nothing
// about timeouts or crash policy.
type Worker struct {
	framework Framework
	cfg       config.Config
	logger    *slog.Logger
}

// NewWorker creates a new Worker
func NewWorker(fw Framework, cfg config.Config, logger *slog.Logger) *Worker {
	return &Worker{framework: fw, cfg: cfg, logger: logger}
}

// Run executes tests, sending a heartbeat as each test starts and a failure
// event for each failing test, then exactly one verdict. All three channels
// are closed on return.
func (w *Worker) Run(ctx context.Context, tests domain.Collection, hb chan<- domain.HeartbeatEvent, fails chan<- domain.FailureEvent, verdict chan<- bool) {
	defer close(hb)
	defer close(fails)
	defer close(verdict)

	l := &channelListener{ctx: ctx, hb: hb, fails: fails}
	ok, err := w.framework.Run(ctx, tests, w.cfg.FailFast, l)
	if err != nil {
		w.logger.Error("test run aborted", "error", err)
		ok = false
	}

	select {
	case verdict <- ok:
	case <-ctx.Done():
	}
}

type channelListener struct {
	ctx   context.Context
	hb    chan<- domain.HeartbeatEvent
	fails chan<- domain.FailureEvent
}

func (c *channelListener) TestStarted(test domain.Test, proc Process) {
	select {
	case c.hb <- domain.HeartbeatEvent{
		CurrentTest:      test.ID,
		WorkerBinaryPath: proc.BinaryPath,
		WorkerTempDir:    proc.TempDir,
		WorkerPID:        proc.PID,
	}:
	case <-c.ctx.Done():
	}
}

func (c *channelListener) TestFailed(test domain.Test) {
	select {
	case c.fails <- domain.FailureEvent{Group: test.Group}:
	case <-c.ctx.Done():
	}
}
