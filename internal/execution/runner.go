package execution

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"syscall"

	"github.com/acarl005/stripansi"

	"ptw/internal/config"
	"ptw/internal/crash"
	"ptw/internal/domain"
	"ptw/internal/parser"
)

const (
	// OutputLogName is the captured test output inside the test temp dir
	OutputLogName = "output.log"
	// GDBServerAddress is where gdbserver listens in gdbserver debug mode
	GDBServerAddress = "localhost:7777"
)

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_.-]+`)

// PHPUnit runs every test case in its own PHPUnit process, inside a fresh
// temp dir used as working directory so that core dumps land there.
type PHPUnit struct {
	cfg    config.Config
	logger *slog.Logger
	parser parser.Parser

	stdin          io.Reader
	stdout, stderr io.Writer
}

// NewPHPUnit creates a PHPUnit framework
func NewPHPUnit(cfg config.Config, p parser.Parser, logger *slog.Logger) *PHPUnit {
	return &PHPUnit{
		cfg:    cfg,
		logger: logger,
		parser: p,
		stdin:  os.Stdin,
		stdout: os.Stdout,
		stderr: os.Stderr,
	}
}

// Run executes tests in order
func (r *PHPUnit) Run(ctx context.Context, tests domain.Collection, failFast bool, l Listener) (bool, error) {
	success := true
	var stepper *bufio.Reader
	if r.cfg.Step {
		stepper = bufio.NewReader(r.stdin)
	}

	for _, test := range tests.Tests() {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		if stepper != nil {
			fmt.Fprintf(r.stderr, "Press ENTER to run %s ", test.ID)
			if _, err := stepper.ReadString('\n'); err != nil && err != io.EOF {
				return false, fmt.Errorf("read step input: %w", err)
			}
		}
		if r.runOne(ctx, test, l) {
			continue
		}
		success = false
		l.TestFailed(test)
		if failFast {
			break
		}
	}
	return success, nil
}

func (r *PHPUnit) runOne(ctx context.Context, test domain.Test, l Listener) bool {
	program := r.program()
	tempDir, err := os.MkdirTemp(r.cfg.TempRoot, "ptw-"+unsafeChars.ReplaceAllString(test.Group, "_")+"-")
	if err != nil {
		r.logger.Error("cannot create test temp dir", "test", test.ID, "error", err)
		l.TestStarted(test, Process{BinaryPath: program})
		return false
	}

	name, args := r.command(test)
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = tempDir
	cmd.Env = append(os.Environ(), "PTW_TEMP_DIR="+tempDir, "PTW_TEST_ID="+test.ID)

	var output bytes.Buffer
	if r.cfg.Debug.Interactive() {
		cmd.Stdin, cmd.Stdout, cmd.Stderr = r.stdin, r.stdout, r.stderr
	} else if r.cfg.Verbosity > 0 {
		cmd.Stdout = io.MultiWriter(&output, r.stdout)
		cmd.Stderr = io.MultiWriter(&output, r.stderr)
	} else {
		cmd.Stdout = &output
		cmd.Stderr = &output
	}

	if err := cmd.Start(); err != nil {
		r.logger.Error("cannot start test", "test", test.ID, "binary", name, "error", err)
		l.TestStarted(test, Process{BinaryPath: program, TempDir: tempDir})
		return false
	}
	l.TestStarted(test, Process{BinaryPath: program, TempDir: tempDir, PID: cmd.Process.Pid})
	r.logger.Debug("test started", "test", test.ID, "pid", cmd.Process.Pid, "dir", tempDir)

	runErr := cmd.Wait()

	text := stripansi.Strip(output.String())
	if err := os.WriteFile(filepath.Join(tempDir, OutputLogName), []byte(text), 0644); err != nil {
		r.logger.Warn("cannot save test output", "test", test.ID, "error", err)
	}
	r.handleCore(test, tempDir, cmd.ProcessState)

	summary := r.parser.Summarize(text)
	if summary.NoTests {
		r.logger.Warn("test runner executed no tests", "test", test.ID)
	}
	if runErr != nil {
		attrs := []any{"test", test.ID, "dir", tempDir, "error", runErr}
		if msg := r.parser.FailureMessage(text); msg != "" {
			attrs = append(attrs, "message", msg)
		}
		r.logger.Info("test failed", attrs...)
		return false
	}
	return summary.Failed() == 0
}

// handleCore is the worker's own crash handling: a test process killed by a
// signal that left a core is reported and the core marked handled, so the
// supervisor does not treat the worker as wedged.
func (r *PHPUnit) handleCore(test domain.Test, tempDir string, state *os.ProcessState) {
	if !crash.CoreExists(tempDir) {
		return
	}
	if !killedBySignal(state) {
		r.logger.Warn("core file found but the test process was not killed by a signal", "test", test.ID, "core", crash.CorePath(tempDir))
		return
	}
	r.logger.Error("test process left a core file", "test", test.ID, "core", crash.CorePath(tempDir))
	if err := crash.MarkHandled(tempDir); err != nil {
		r.logger.Error("cannot mark core as handled", "dir", tempDir, "error", err)
	}
}

func killedBySignal(state *os.ProcessState) bool {
	if state == nil {
		return false
	}
	ws, ok := state.Sys().(syscall.WaitStatus)
	return ok && ws.Signaled()
}

// program is the executable that runs the test code and dumps core when it
// crashes: the PHP interpreter when one is configured, the test binary itself
// otherwise.
func (r *PHPUnit) program() string {
	if r.cfg.PHPBinary != "" {
		return r.cfg.PHPBinary
	}
	return r.cfg.GetTestBinaryPath()
}

// command returns the program and arguments running test, wrapped in a
// debugger when an interactive debug mode is selected
func (r *PHPUnit) command(test domain.Test) (string, []string) {
	var args []string
	if r.cfg.PHPBinary != "" {
		args = append(args, r.cfg.GetTestBinaryPath())
	}
	args = append(args, "--filter", filterFor(test.Method))
	if conf := r.phpunitConfig(); conf != "" {
		args = append(args, "--configuration", conf)
	}
	file := test.File
	if abs, err := filepath.Abs(file); err == nil {
		file = abs
	}
	args = append(args, file)

	program := r.program()
	switch r.cfg.Debug {
	case config.DebugGDB:
		return "gdb", append([]string{"--args", program}, args...)
	case config.DebugGDBServer:
		return "gdbserver", append([]string{GDBServerAddress, program}, args...)
	default:
		return program, args
	}
}

func (r *PHPUnit) phpunitConfig() string {
	for _, name := range []string{"phpunit.xml", "phpunit.xml.dist"} {
		p := filepath.Join(r.cfg.ProjectPath, name)
		if _, err := os.Stat(p); err == nil {
			if abs, err := filepath.Abs(p); err == nil {
				return abs
			}
			return p
		}
	}
	return ""
}

// filterFor matches method exactly, including data-provider variants
func filterFor(method string) string {
	return fmt.Sprintf("::%s( with data set .*)?$", regexp.QuoteMeta(strings.TrimSpace(method)))
}
