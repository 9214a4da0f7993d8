package commands

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"ptw/internal/crash"
	"ptw/internal/execution"
	"ptw/internal/exitcodes"
	"ptw/internal/metrics"
	"ptw/internal/orchestrator"
	"ptw/internal/parser"
	"ptw/internal/storage"
	"ptw/internal/supervisor"
	"ptw/internal/ui"
)

// RunCommand handles the run command
type RunCommand struct {
	env *env
}

// Execute runs the command
func (rc *RunCommand) Execute(cmd *cobra.Command, args []string) error {
	cfg, logger, err := rc.env.load()
	if err != nil {
		return err
	}
	for _, dir := range cfg.GetTestDirs() {
		if _, err := os.Stat(dir); err != nil {
			return err
		}
	}

	tests, err := discover(cfg, logger)
	if err != nil {
		return err
	}
	if tests.Len() == 0 {
		warn(rc.env.out, "No tests to execute")
		return nil
	}

	var attempter orchestrator.Attempter
	if cfg.Isolated() {
		spawner, err := supervisor.SelfSpawner(cfg, logger)
		if err != nil {
			return err
		}
		var opts []supervisor.Option
		if cfg.Verbosity == 0 {
			opts = append(opts, supervisor.WithObserver(ui.NewAttemptProgress(os.Stderr)))
		}
		preserver := crash.NewPreserver(cfg, logger, crash.NewGDB())
		attempter = supervisor.NewSupervisor(cfg, spawner, preserver, logger, opts...)
	} else {
		logger.Info("interactive mode, running tests without supervision", "debug", string(cfg.Debug), "step", cfg.Step)
		fw := execution.NewPHPUnit(cfg, parser.NewPHPUnitParser(), logger)
		attempter = orchestrator.NewLocal(execution.NewWorker(fw, cfg, logger))
	}

	opts := []orchestrator.Option{
		orchestrator.WithOutput(rc.env.out),
		orchestrator.WithRecorder(metrics.NewRecorder()),
	}
	if store, err := storage.NewStorage(cfg); err != nil {
		logger.Error("run report will not be saved", "error", err)
	} else {
		defer store.Close()
		opts = append(opts, orchestrator.WithStorage(store))
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	code, report, err := orchestrator.New(cfg, attempter, logger, opts...).Run(ctx, tests)
	ui.NewFormatter(cfg.ProjectPath, rc.env.out).PrintReport(report)
	if err != nil {
		logger.Error("run aborted", "error", err)
	}
	if code != exitcodes.Success {
		return &exitcodes.ExitError{Code: code}
	}
	return nil
}
