package commands

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"ptw/internal/cli"
	"ptw/internal/config"
	"ptw/internal/discovery"
	"ptw/internal/domain"
	"ptw/internal/logging"
	"ptw/internal/supervisor"
	"ptw/internal/ui"
)

// Commands holds all CLI commands
type Commands struct {
	Run      *RunCommand
	List     *ListCommand
	Failures *FailuresCommand
	Migrate  *MigrateCommand
	Worker   *WorkerCommand
}

// env is what every command needs once flags are parsed
type env struct {
	flags *cli.Flags
	out   io.Writer
	log   io.Writer
}

// load builds the configuration and a logger for the current invocation
func (e *env) load() (config.Config, *slog.Logger, error) {
	cfg, err := config.Load(e.flags.ToConfigFlags())
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("load configuration: %w", err)
	}
	return cfg, logging.New(cfg.Verbosity, e.log), nil
}

// discover collects the tests below the configured directories
func discover(cfg config.Config, logger *slog.Logger) (domain.Collection, error) {
	d := discovery.NewDiscoverer(discovery.NewScanner(cfg.PathsToIgnore), discovery.NewParser(), logger)
	tests, err := d.Collect(cfg.GetTestDirs())
	if err != nil {
		return domain.Collection{}, err
	}
	return discovery.FilterByName(tests, cfg.NameFilter), nil
}

// NewCommands creates all commands. out receives console summaries, logs
// go to logOut.
func NewCommands(flags *cli.Flags, out, logOut io.Writer) *Commands {
	e := &env{flags: flags, out: out, log: logOut}
	return &Commands{
		Run:      &RunCommand{env: e},
		List:     &ListCommand{env: e},
		Failures: &FailuresCommand{env: e},
		Migrate:  &MigrateCommand{env: e},
		Worker:   &WorkerCommand{env: e},
	}
}

// Register registers all commands with cobra
func (c *Commands) Register(rootCmd *cobra.Command, flags *cli.Flags) {
	rootCmd.PersistentFlags().StringVar(&flags.ProjectPath, "project", config.DefaultProjectPath, "Path to the project root (holds .env and phpunit.xml)")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run tests under the watchdog",
		Long: "Discover and execute PHPUnit tests in an isolated worker process. The worker is killed when it " +
			"stops sending heartbeats for TIMEOUT seconds, dies without a verdict or leaves an unhandled core dump. " +
			"Failed test groups are retried RETRIES times.",
		RunE: c.Run.Execute,
	}
	runCmd.Flags().BoolVarP(&flags.FailFast, "failfast", "f", false, "Stop on first test failure")
	runCmd.Flags().StringArrayVarP(&flags.Dirs, "dir", "d", nil, "Directory to discover tests in (repeatable, default: project path)")
	runCmd.Flags().StringVar(&flags.NameFilter, "filter", "", "Filter tests by file name pattern (supports wildcards, e.g., '*UserTest.php' or '*Payment*')")
	rootCmd.AddCommand(runCmd)

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List discovered tests",
		Long:  "Scan and list all PHPUnit tests without executing them",
		RunE:  c.List.Execute,
	}
	listCmd.Flags().StringArrayVarP(&flags.Dirs, "dir", "d", nil, "Directory to discover tests in (repeatable, default: project path)")
	listCmd.Flags().StringVar(&flags.NameFilter, "filter", "", "Filter tests by file name pattern")
	listCmd.Flags().BoolVarP(&flags.TestCases, "test-cases", "c", false, "Show the test cases of every file")
	listCmd.Flags().StringVar(&flags.Format, "format", ui.FormatText, "Output format: text, yaml or json")
	rootCmd.AddCommand(listCmd)

	rootCmd.AddCommand(&cobra.Command{
		Use:   "failures",
		Short: "View the last run interactively",
		Long:  "Display the attempts of the last run, their failed groups and preserved artifacts in an interactive viewer",
		RunE:  c.Failures.Execute,
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Create the run report tables",
		Long:  "Create the tables used to store run reports in the MySQL database named by PTW_RESULTS_DSN",
		RunE:  c.Migrate.Execute,
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:    supervisor.WorkerCommand,
		Short:  "Run a job as the isolated worker",
		Hidden: true,
		Args:   cobra.NoArgs,
		RunE:   c.Worker.Execute,
	})
}

func warn(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, color.YellowString(format, args...))
}
