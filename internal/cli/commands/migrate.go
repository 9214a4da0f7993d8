package commands

import (
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"ptw/internal/config"
	"ptw/internal/storage"
)

// MigrateCommand handles the migrate command
type MigrateCommand struct {
	env *env
}

// Execute runs the command
func (mc *MigrateCommand) Execute(cmd *cobra.Command, args []string) error {
	cfg, _, err := mc.env.load()
	if err != nil {
		return err
	}
	if cfg.ResultsDSN == "" {
		return errors.New(config.EnvResultsDSN + " is not set, run reports are stored as JSON")
	}
	store, err := storage.NewMySQLStorage(cfg.ResultsDSN)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Migrate(cmd.Context()); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	fmt.Fprintln(mc.env.out, color.GreenString("✓ Results database is up to date"))
	return nil
}
