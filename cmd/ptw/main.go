package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"ptw/internal/cli"
	"ptw/internal/cli/commands"
	"ptw/internal/exitcodes"
	"ptw/internal/logging"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "ptw",
		Short: "Supervised PHPUnit test watchdog",
		Long: `Runs PHPUnit tests in an isolated worker process, kills the worker when it hangs, dies or crashes ` +
			`and retries the test groups that failed.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	slog.SetDefault(logging.New(0, os.Stderr))

	// Create flags struct (will be populated by command flags)
	var flags cli.Flags

	cmds := commands.NewCommands(&flags, color.Output, os.Stderr)
	cmds.Register(rootCmd, &flags)

	if err := rootCmd.Execute(); err != nil {
		var exitErr *exitcodes.ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitcodes.TestFailure)
	}
}
