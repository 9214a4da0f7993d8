// Package orchestrator runs supervised attempts until the suite passes or the
// retry budget is spent, narrowing every retry to the groups that failed.
package orchestrator

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"

	"ptw/internal/config"
	"ptw/internal/discovery"
	"ptw/internal/domain"
	"ptw/internal/exitcodes"
	"ptw/internal/metrics"
	"ptw/internal/storage"
)

// Attempter runs one attempt over a collection
type Attempter interface {
	Supervise(ctx context.Context, tests domain.Collection) (domain.AttemptResult, error)
}

// Orchestrator drives the retry loop
type Orchestrator struct {
	cfg       config.Config
	attempter Attempter
	logger    *slog.Logger
	out       io.Writer

	recorder *metrics.Recorder
	store    storage.Storage
	now      func() time.Time
	newRunID func() string
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithRecorder records every attempt into r
func WithRecorder(r *metrics.Recorder) Option {
	return func(o *Orchestrator) { o.recorder = r }
}

// WithStorage saves the run report into s once the run is over
func WithStorage(s storage.Storage) Option {
	return func(o *Orchestrator) { o.store = s }
}

// WithOutput sets where the console summary goes
func WithOutput(w io.Writer) Option {
	return func(o *Orchestrator) { o.out = w }
}

// New creates an Orchestrator. The attempter is a supervisor for isolated
// runs or an in-process runner for interactive ones.
func New(cfg config.Config, attempter Attempter, logger *slog.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cfg:       cfg,
		attempter: attempter,
		logger:    logger,
		out:       color.Output,
		now:       time.Now,
		newRunID:  func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Attempts returns how many attempts the run may use. Interactive runs get
// exactly one: a debugger session cannot be retried unattended.
func (o *Orchestrator) Attempts() int {
	if !o.cfg.Isolated() {
		return 1
	}
	return o.cfg.Retries + 1
}

// Run executes tests and returns the process exit code with the run report.
// The error is set when an attempt could not be run at all, the exit code is
// then exitcodes.Fatal.
func (o *Orchestrator) Run(ctx context.Context, tests domain.Collection) (int, *domain.RunReport, error) {
	start := o.now()
	report := &domain.RunReport{
		RunID:      o.newRunID(),
		StartedAt:  start,
		TotalTests: tests.Len(),
		Retries:    o.cfg.Retries,
	}
	o.logger.Debug("run started", "run_id", report.RunID, "tests", tests.Len())

	attemptsLeft := o.Attempts()
	if attemptsLeft > 1 {
		fmt.Fprintf(o.out, "Perform %d attempts to pass the suite...\n", attemptsLeft)
	}

	current := tests
	code := exitcodes.Success
	var runErr error
	for n := 1; ; n++ {
		res, err := o.attempter.Supervise(ctx, current)
		attemptsLeft--
		report.Attempts = append(report.Attempts, domain.NewAttemptRecord(n, current.Len(), res))
		if o.recorder != nil {
			o.recorder.RecordAttempt(res)
		}
		if err != nil {
			code, runErr = exitcodes.Fatal, fmt.Errorf("attempt %d: %w", n, err)
			break
		}

		failed := res.FailedGroups
		o.printAttempt(failed.Len(), attemptsLeft)
		if res.State.IsFatal() {
			o.logger.Warn("attempt terminated by supervisor", "attempt", n, "state", res.State)
		}

		if failed.Len() == 0 || attemptsLeft == 0 {
			code = exitcodes.FromAttempt(res)
			break
		}
		current = discovery.ByGroups(current, failed)
		o.logger.Debug("retrying failed groups", "groups", failed.Sorted(), "tests", current.Len())
	}

	report.ExitCode = code
	report.Duration = o.now().Sub(start).Round(time.Millisecond).String()
	o.finish(ctx, report)
	return code, report, runErr
}

func (o *Orchestrator) printAttempt(failed, left int) {
	msg := fmt.Sprintf("%d test(s) failed, %d attempt(s) left", failed, left)
	if failed == 0 {
		fmt.Fprintln(o.out, color.GreenString(msg))
		return
	}
	fmt.Fprintln(o.out, color.RedString(msg))
}

// finish persists the report and metrics, failures here never change the exit code
func (o *Orchestrator) finish(ctx context.Context, report *domain.RunReport) {
	if o.store != nil {
		if err := o.store.Save(context.WithoutCancel(ctx), report); err != nil {
			o.logger.Error("could not save run report", "error", err)
		}
	}
	if o.recorder != nil {
		o.recorder.RecordRun(report)
		if o.cfg.MetricsFile != "" {
			if err := o.recorder.WriteTextfile(o.cfg.MetricsFile); err != nil {
				o.logger.Error("could not write metrics", "file", o.cfg.MetricsFile, "error", err)
			}
		}
	}
}
