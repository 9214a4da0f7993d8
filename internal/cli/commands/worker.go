package commands

import (
	"os"

	"github.com/spf13/cobra"

	"ptw/internal/config"
	"ptw/internal/execution"
	"ptw/internal/logging"
	"ptw/internal/parser"
	"ptw/internal/protocol"
)

// WorkerCommand is the isolated worker started by the supervisor
type WorkerCommand struct {
	env *env
}

// Execute runs the job read from stdin and reports over the inherited pipes
func (wc *WorkerCommand) Execute(cmd *cobra.Command, args []string) error {
	w, err := protocol.OpenWorkerWriters()
	if err != nil {
		return err
	}
	return execution.Serve(cmd.Context(), os.Stdin, w, func(cfg config.Config) *execution.Worker {
		logger := logging.New(cfg.Verbosity, wc.env.log)
		fw := execution.NewPHPUnit(cfg, parser.NewPHPUnitParser(), logger)
		return execution.NewWorker(fw, cfg, logger)
	})
}
