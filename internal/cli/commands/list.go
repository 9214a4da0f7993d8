package commands

import (
	"github.com/spf13/cobra"

	"ptw/internal/domain"
	"ptw/internal/storage"
	"ptw/internal/ui"
)

// ListCommand handles the list command
type ListCommand struct {
	env *env
}

// Execute runs the command
func (lc *ListCommand) Execute(cmd *cobra.Command, args []string) error {
	cfg, logger, err := lc.env.load()
	if err != nil {
		return err
	}
	tests, err := discover(cfg, logger)
	if err != nil {
		return err
	}

	formatter := ui.NewFormatter(cfg.ProjectPath, lc.env.out)
	if format := lc.env.flags.Format; format != ui.FormatText {
		return formatter.WriteTestList(tests, format)
	}
	if tests.Len() == 0 {
		warn(lc.env.out, "No tests found")
		return nil
	}

	// Mark the groups that still failed at the end of the last run
	failed := domain.NewGroupSet()
	if store, err := storage.NewStorage(cfg); err == nil {
		defer store.Close()
		if report, err := store.Load(cmd.Context()); err == nil {
			if final := report.FinalAttempt(); final != nil {
				failed = domain.NewGroupSet(final.FailedGroups...)
			}
		}
	}
	formatter.PrintTestList(tests, lc.env.flags.TestCases, failed)
	return nil
}
