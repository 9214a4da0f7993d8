package supervisor

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"

	"github.com/shirou/gopsutil/v3/process"

	"ptw/internal/config"
	"ptw/internal/domain"
	"ptw/internal/protocol"
)

// WorkerCommand is the hidden subcommand the ptw binary runs as a worker
const WorkerCommand = "__worker"

// Process is a running worker as seen by the supervisor
type Process interface {
	Heartbeats() <-chan domain.HeartbeatEvent
	Failures() <-chan domain.FailureEvent
	// Verdict delivers at most one verdict and is closed when the verdict stream ends
	Verdict() <-chan domain.VerdictEvent
	// Exited is closed once the worker is gone and its verdict stream is drained
	Exited() <-chan struct{}
	Pid() int
	// Terminate kills the worker and every process it started
	Terminate() error
	// Close releases the supervisor side of the channels
	Close() error
}

// Spawner starts a worker running tests
type Spawner interface {
	Spawn(ctx context.Context, tests domain.Collection) (Process, error)
}

// ExecSpawner starts the worker as a separate OS process. The job is written
// to the worker's stdin and the three channels come back over inherited pipes.
type ExecSpawner struct {
	cfg    config.Config
	logger *slog.Logger
	name   string
	args   []string

	// Env is appended to the current environment of the worker
	Env    []string
	Stdout io.Writer
	Stderr io.Writer
}

// NewExecSpawner creates a spawner running name with args as the worker,
// normally the ptw executable with WorkerCommand
func NewExecSpawner(cfg config.Config, logger *slog.Logger, name string, args ...string) *ExecSpawner {
	return &ExecSpawner{
		cfg:    cfg,
		logger: logger,
		name:   name,
		args:   args,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}
}

// SelfSpawner re-executes the running binary as the worker
func SelfSpawner(cfg config.Config, logger *slog.Logger) (*ExecSpawner, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("locate ptw executable: %w", err)
	}
	return NewExecSpawner(cfg, logger, exe, WorkerCommand), nil
}

// Spawn starts a worker for tests
func (s *ExecSpawner) Spawn(ctx context.Context, tests domain.Collection) (Process, error) {
	pipes, err := protocol.NewPipes()
	if err != nil {
		return nil, err
	}

	// Not CommandContext: only the supervisor decides when the worker dies
	cmd := exec.Command(s.name, s.args...)
	cmd.ExtraFiles = pipes.ExtraFiles()
	cmd.Stdout = s.Stdout
	cmd.Stderr = s.Stderr
	cmd.Env = append(os.Environ(), s.Env...)
	ownProcessGroup(cmd)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		pipes.Close()
		return nil, fmt.Errorf("worker stdin: %w", err)
	}
	if err := cmd.Start(); err != nil {
		pipes.Close()
		return nil, fmt.Errorf("start worker: %w", err)
	}
	pipes.CloseWriters()
	s.logger.Debug("worker started", "pid", cmd.Process.Pid, "tests", tests.Len())

	go func() {
		defer stdin.Close()
		job := protocol.Job{Tests: tests.Tests(), Config: s.cfg}
		if err := protocol.WriteJob(stdin, job); err != nil {
			s.logger.Debug("could not send job to worker", "pid", cmd.Process.Pid, "error", err)
		}
	}()

	p := &execProcess{
		cmd:    cmd,
		pipes:  pipes,
		logger: s.logger,
		stop:   make(chan struct{}),
		exited: make(chan struct{}),
	}
	p.heartbeats = protocol.Receive[domain.HeartbeatEvent](pipes.Heartbeat, 16, p.stop)
	p.failures = protocol.Receive[domain.FailureEvent](pipes.Failure, 16, p.stop)

	verdict := make(chan domain.VerdictEvent, 1)
	verdictDone := make(chan struct{})
	raw := protocol.Receive[domain.VerdictEvent](pipes.Verdict, 0, p.stop)
	go func() {
		defer close(verdictDone)
		defer close(verdict)
		for v := range raw {
			select {
			case verdict <- v:
			default:
				s.logger.Warn("worker sent more than one verdict", "pid", cmd.Process.Pid)
			}
		}
	}()
	p.verdict = verdict

	go func() {
		err := cmd.Wait()
		<-verdictDone
		p.logger.Debug("worker exited", "pid", cmd.Process.Pid, "error", err)
		close(p.exited)
	}()
	return p, nil
}

type execProcess struct {
	cmd    *exec.Cmd
	pipes  *protocol.Pipes
	logger *slog.Logger

	heartbeats <-chan domain.HeartbeatEvent
	failures   <-chan domain.FailureEvent
	verdict    <-chan domain.VerdictEvent

	stop      chan struct{}
	exited    chan struct{}
	closeOnce sync.Once
}

func (p *execProcess) Heartbeats() <-chan domain.HeartbeatEvent { return p.heartbeats }
func (p *execProcess) Failures() <-chan domain.FailureEvent     { return p.failures }
func (p *execProcess) Verdict() <-chan domain.VerdictEvent      { return p.verdict }
func (p *execProcess) Exited() <-chan struct{}                  { return p.exited }
func (p *execProcess) Pid() int                                 { return p.cmd.Process.Pid }

// Terminate kills the worker tree, then its process group. A worker that
// already died has no tree left, but test processes it started stay in the
// group after being reparented.
func (p *execProcess) Terminate() error {
	err := KillTree(p.Pid())
	if gerr := killGroup(p.Pid()); err == nil {
		err = gerr
	}
	return err
}

func (p *execProcess) Close() error {
	p.closeOnce.Do(func() {
		close(p.stop)
		p.pipes.Close()
	})
	return nil
}

// KillTree kills pid and all of its descendants. Descendants are collected
// before anything is killed, so none of them is reparented away first.
// Processes already orphaned when KillTree runs are not found.
func KillTree(pid int) error {
	root, err := process.NewProcess(int32(pid))
	if err != nil {
		// already gone
		return nil
	}
	procs := append([]*process.Process{root}, descendants(root)...)

	var firstErr error
	for _, p := range procs {
		if err := p.Kill(); err != nil {
			if running, _ := p.IsRunning(); !running {
				continue
			}
			if firstErr == nil {
				firstErr = fmt.Errorf("kill process %d: %w", p.Pid, err)
			}
		}
	}
	return firstErr
}

func descendants(p *process.Process) []*process.Process {
	children, err := p.Children()
	if err != nil {
		return nil
	}
	var out []*process.Process
	for _, c := range children {
		out = append(out, c)
		out = append(out, descendants(c)...)
	}
	return out
}
