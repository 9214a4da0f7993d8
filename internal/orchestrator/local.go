package orchestrator

import (
	"context"
	"time"

	"ptw/internal/domain"
	"ptw/internal/execution"
)

// Local runs the worker inside the ptw process without supervision. It is
// used for gdb, gdbserver and step runs, which own the terminal and may sit
// idle far longer than any timeout.
type Local struct {
	worker *execution.Worker
	now    func() time.Time
}

// NewLocal creates a Local attempter
func NewLocal(worker *execution.Worker) *Local {
	return &Local{worker: worker, now: time.Now}
}

// Supervise runs tests in-process and collects the worker's channels
func (l *Local) Supervise(ctx context.Context, tests domain.Collection) (domain.AttemptResult, error) {
	start := l.now()
	hb := make(chan domain.HeartbeatEvent)
	fails := make(chan domain.FailureEvent)
	verdict := make(chan bool, 1)
	go l.worker.Run(ctx, tests, hb, fails, verdict)

	res := domain.AttemptResult{State: domain.StateRunning, FailedGroups: domain.NewGroupSet()}
	for hb != nil || fails != nil {
		select {
		case e, ok := <-hb:
			if !ok {
				hb = nil
				continue
			}
			res.LastHeartbeat = &e
		case e, ok := <-fails:
			if !ok {
				fails = nil
				continue
			}
			res.FailedGroups.Add(e.Group)
		}
	}
	v, ok := <-verdict
	res.Verdict = ok && v
	res.State = domain.StateDone
	res.Duration = l.now().Sub(start)
	if err := ctx.Err(); err != nil {
		return res, err
	}
	return res, nil
}
