// Package supervisor watches one worker attempt: it multiplexes the worker's
// channels, tracks liveness and decides when the worker must be killed.
package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"ptw/internal/config"
	"ptw/internal/crash"
	"ptw/internal/domain"
)

const (
	// DefaultPollInterval bounds every wait of the supervision loop
	DefaultPollInterval = time.Second
	// exitGrace is how long the supervisor waits for a worker to go away after a verdict or kill
	exitGrace = 5 * time.Second
	// settleTimeout bounds the wait for events still in flight after the verdict
	settleTimeout = time.Second
)

// Preserver saves the evidence of a worker about to be killed
type Preserver interface {
	Preserve(ctx context.Context, last *domain.HeartbeatEvent)
}

// Observer follows an attempt: its start, every drained event and its result
type Observer interface {
	Started(tests domain.Collection)
	Heartbeat(e domain.HeartbeatEvent)
	Failure(e domain.FailureEvent)
	Finished(res domain.AttemptResult)
}

// Option configures a Supervisor
type Option func(*Supervisor)

// WithObserver reports drained events to o
func WithObserver(o Observer) Option {
	return func(s *Supervisor) { s.observer = o }
}

// WithPollInterval changes the bounded wait of the loop
func WithPollInterval(d time.Duration) Option {
	return func(s *Supervisor) { s.pollInterval = d }
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(s *Supervisor) { s.now = now }
}

// Supervisor runs attempts and turns their events into an AttemptResult
type Supervisor struct {
	cfg       config.Config
	spawner   Spawner
	preserver Preserver
	logger    *slog.Logger
	observer  Observer

	pollInterval time.Duration
	now          func() time.Time
}

// NewSupervisor creates a Supervisor
func NewSupervisor(cfg config.Config, spawner Spawner, preserver Preserver, logger *slog.Logger, opts ...Option) *Supervisor {
	s := &Supervisor{
		cfg:          cfg,
		spawner:      spawner,
		preserver:    preserver,
		logger:       logger,
		pollInterval: DefaultPollInterval,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// attempt is the mutable state of one supervised run
type attempt struct {
	state    domain.State
	failed   domain.GroupSet
	last     *domain.HeartbeatEvent
	lastSeen time.Time
}

// Supervise spawns a worker for tests and watches it until it reports a
// verdict or has to be killed. An error is returned only when the worker
// could not be started or ctx was cancelled.
func (s *Supervisor) Supervise(ctx context.Context, tests domain.Collection) (domain.AttemptResult, error) {
	start := s.now()
	proc, err := s.spawner.Spawn(ctx, tests)
	if err != nil {
		return domain.AttemptResult{State: domain.StateFatalChildDead, FailedGroups: domain.NewGroupSet()},
			fmt.Errorf("spawn worker: %w", err)
	}
	defer proc.Close()
	if s.observer != nil {
		s.observer.Started(tests)
	}

	a := &attempt{state: domain.StateRunning, failed: domain.NewGroupSet(), lastSeen: start}
	detector := crash.NewDetector(s.cfg.CrashConfirmDelay, s.now)

	heartbeats, failures, verdict := proc.Heartbeats(), proc.Failures(), proc.Verdict()
	exited := proc.Exited()
	dead := false

	timer := time.NewTimer(s.pollInterval)
	defer timer.Stop()

	done := func(v domain.VerdictEvent) (domain.AttemptResult, error) {
		s.settle(a, heartbeats, failures)
		a.state = domain.StateDone
		s.logger.Debug("worker reported verdict", "success", v.Success, "failed_groups", a.failed.Len())
		select {
		case <-proc.Exited():
		case <-time.After(exitGrace):
			s.logger.Warn("worker did not exit after its verdict", "pid", proc.Pid())
			s.terminate(proc)
		}
		return s.result(a, start, v.Success), nil
	}

	for {
		select {
		case v, ok := <-verdict:
			if ok {
				return done(v)
			}
			verdict = nil
		case e, ok := <-heartbeats:
			if ok {
				s.heartbeat(a, e)
			} else {
				heartbeats = nil
			}
		case e, ok := <-failures:
			if ok {
				s.failure(a, e)
			} else {
				failures = nil
			}
		case <-exited:
			exited, dead = nil, true
		case <-ctx.Done():
			s.logger.Warn("supervision cancelled, terminating worker", "pid", proc.Pid())
			s.terminate(proc)
			return s.result(a, start, false), ctx.Err()
		case <-timer.C:
			timer.Reset(s.pollInterval)
		}

		if v, ok := pollVerdict(&verdict); ok {
			return done(v)
		}
		heartbeats = s.drainHeartbeats(a, heartbeats)
		failures = s.drainFailures(a, failures)

		if silent := s.now().Sub(a.lastSeen); silent > s.cfg.Timeout {
			if a.last != nil && crash.HandledMarkerExists(a.last.WorkerTempDir) {
				s.logger.Debug("worker is silent but handling its own crash", "dir", a.last.WorkerTempDir)
			} else {
				s.logger.Error(fmt.Sprintf("Worker sent no heartbeat for %s, exceeding the %s timeout", silent.Round(time.Millisecond), s.cfg.Timeout))
				return s.fatal(ctx, a, start, proc, domain.StateFatalTimeout)
			}
		}
		if dead {
			// the verdict stream is fully drained once the worker has exited
			if v, ok := pollVerdict(&verdict); ok {
				return done(v)
			}
			s.logger.Error("Worker process died without reporting a verdict", "pid", proc.Pid())
			return s.fatal(ctx, a, start, proc, domain.StateFatalChildDead)
		}
		if a.last != nil && a.last.WorkerTempDir != "" && detector.Poll(a.last.WorkerTempDir) == crash.Confirmed {
			s.logger.Error("Core file stayed unhandled, worker crash confirmed",
				"core", crash.CorePath(a.last.WorkerTempDir), "detected_at", detector.DetectedAt().Format(time.TimeOnly))
			return s.fatal(ctx, a, start, proc, domain.StateFatalCrashConfirmed)
		}
	}
}

// pollVerdict takes a pending verdict without blocking and clears ch once it is closed
func pollVerdict(ch *<-chan domain.VerdictEvent) (domain.VerdictEvent, bool) {
	if *ch == nil {
		return domain.VerdictEvent{}, false
	}
	select {
	case v, ok := <-*ch:
		if !ok {
			*ch = nil
		}
		return v, ok
	default:
		return domain.VerdictEvent{}, false
	}
}

func (s *Supervisor) heartbeat(a *attempt, e domain.HeartbeatEvent) {
	a.lastSeen = s.now()
	if a.last == nil || a.last.CurrentTest != e.CurrentTest {
		s.logger.Debug("test started", "test", e.CurrentTest, "pid", e.WorkerPID, "dir", e.WorkerTempDir)
	}
	a.last = &e
	if s.observer != nil {
		s.observer.Heartbeat(e)
	}
}

func (s *Supervisor) failure(a *attempt, e domain.FailureEvent) {
	a.lastSeen = s.now()
	a.failed.Add(e.Group)
	if s.observer != nil {
		s.observer.Failure(e)
	}
}

// drainHeartbeats consumes every queued heartbeat; only the last one is kept
func (s *Supervisor) drainHeartbeats(a *attempt, ch <-chan domain.HeartbeatEvent) <-chan domain.HeartbeatEvent {
	for ch != nil {
		select {
		case e, ok := <-ch:
			if !ok {
				return nil
			}
			s.heartbeat(a, e)
		default:
			return ch
		}
	}
	return nil
}

func (s *Supervisor) drainFailures(a *attempt, ch <-chan domain.FailureEvent) <-chan domain.FailureEvent {
	for ch != nil {
		select {
		case e, ok := <-ch:
			if !ok {
				return nil
			}
			s.failure(a, e)
		default:
			return ch
		}
	}
	return nil
}

// settle collects events still in flight when the verdict arrives. The
// streams are independent pipes, so a failure sent before the verdict can
// still be on its way.
func (s *Supervisor) settle(a *attempt, heartbeats <-chan domain.HeartbeatEvent, failures <-chan domain.FailureEvent) {
	deadline := time.NewTimer(settleTimeout)
	defer deadline.Stop()
	for heartbeats != nil || failures != nil {
		select {
		case e, ok := <-heartbeats:
			if !ok {
				heartbeats = nil
				continue
			}
			s.heartbeat(a, e)
		case e, ok := <-failures:
			if !ok {
				failures = nil
				continue
			}
			s.failure(a, e)
		case <-deadline.C:
			return
		}
	}
}

func (s *Supervisor) fatal(ctx context.Context, a *attempt, start time.Time, proc Process, state domain.State) (domain.AttemptResult, error) {
	a.state = state
	attrs := []any{"state", state, "pid", proc.Pid()}
	if a.last != nil {
		attrs = append(attrs, "last_test", a.last.CurrentTest, "dir", a.last.WorkerTempDir)
	}
	s.logger.Error("Terminating worker", attrs...)

	s.preserver.Preserve(ctx, a.last)
	s.terminate(proc)
	return s.result(a, start, false), nil
}

func (s *Supervisor) terminate(proc Process) {
	if err := proc.Terminate(); err != nil {
		s.logger.Error("could not terminate worker", "pid", proc.Pid(), "error", err)
	}
	s.waitExit(proc)
}

func (s *Supervisor) waitExit(proc Process) {
	select {
	case <-proc.Exited():
	case <-time.After(exitGrace):
		s.logger.Warn("worker did not exit in time", "pid", proc.Pid())
	}
}

func (s *Supervisor) result(a *attempt, start time.Time, verdict bool) domain.AttemptResult {
	res := domain.AttemptResult{
		Verdict:       verdict && !a.state.IsFatal(),
		State:         a.state,
		FailedGroups:  a.failed,
		LastHeartbeat: a.last,
		Duration:      s.now().Sub(start),
	}
	if s.observer != nil {
		s.observer.Finished(res)
	}
	return res
}
