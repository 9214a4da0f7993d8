package commands

import (
	"github.com/spf13/cobra"

	"ptw/internal/storage"
	"ptw/internal/ui"
)

// FailuresCommand handles the failures command
type FailuresCommand struct {
	env *env
}

// Execute runs the command
func (fc *FailuresCommand) Execute(cmd *cobra.Command, args []string) error {
	cfg, _, err := fc.env.load()
	if err != nil {
		return err
	}
	store, err := storage.NewStorage(cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	report, err := store.Load(cmd.Context())
	if err != nil {
		return err
	}
	return ui.NewFailuresViewer(cfg).View(report)
}
