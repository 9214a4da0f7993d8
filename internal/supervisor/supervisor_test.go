package supervisor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ptw/internal/config"
	"ptw/internal/crash"
	"ptw/internal/domain"
	"ptw/internal/logging"
)

type fakeProcess struct {
	hb      chan domain.HeartbeatEvent
	fails   chan domain.FailureEvent
	verdict chan domain.VerdictEvent
	exited  chan struct{}

	mu         sync.Mutex
	terminated bool
	exitOnce   sync.Once
}

func newFakeProcess() *fakeProcess {
	return &fakeProcess{
		hb:      make(chan domain.HeartbeatEvent, 16),
		fails:   make(chan domain.FailureEvent, 16),
		verdict: make(chan domain.VerdictEvent, 1),
		exited:  make(chan struct{}),
	}
}

func (p *fakeProcess) Heartbeats() <-chan domain.HeartbeatEvent { return p.hb }
func (p *fakeProcess) Failures() <-chan domain.FailureEvent     { return p.fails }
func (p *fakeProcess) Verdict() <-chan domain.VerdictEvent      { return p.verdict }
func (p *fakeProcess) Exited() <-chan struct{}                  { return p.exited }
func (p *fakeProcess) Pid() int                                 { return 4242 }
func (p *fakeProcess) Close() error                             { return nil }

func (p *fakeProcess) Terminate() error {
	p.mu.Lock()
	p.terminated = true
	p.mu.Unlock()
	p.exit()
	return nil
}

func (p *fakeProcess) exit() {
	p.exitOnce.Do(func() { close(p.exited) })
}

func (p *fakeProcess) wasTerminated() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.terminated
}

// finish mimics a worker that reported its verdict and exited
func (p *fakeProcess) finish(success bool) {
	p.verdict <- domain.VerdictEvent{Success: success}
	close(p.verdict)
	close(p.hb)
	close(p.fails)
	p.exit()
}

type fakeSpawner struct {
	proc *fakeProcess
	err  error
}

func (s *fakeSpawner) Spawn(context.Context, domain.Collection) (Process, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.proc, nil
}

type recordingPreserver struct {
	mu    sync.Mutex
	calls []*domain.HeartbeatEvent
}

func (r *recordingPreserver) Preserve(_ context.Context, last *domain.HeartbeatEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, last)
}

type recordingObserver struct {
	started  int
	tests    []string
	groups   []string
	finished []domain.State
}

func (o *recordingObserver) Started(tests domain.Collection)   { o.started = tests.Len() }
func (o *recordingObserver) Finished(res domain.AttemptResult) { o.finished = append(o.finished, res.State) }

func (o *recordingObserver) Heartbeat(e domain.HeartbeatEvent) { o.tests = append(o.tests, e.CurrentTest) }
func (o *recordingObserver) Failure(e domain.FailureEvent)     { o.groups = append(o.groups, e.Group) }

func testConfig() config.Config {
	cfg := config.New()
	cfg.Timeout = 200 * time.Millisecond
	cfg.CrashConfirmDelay = 50 * time.Millisecond
	return cfg
}

func newTestSupervisor(cfg config.Config, proc *fakeProcess, opts ...Option) (*Supervisor, *recordingPreserver) {
	p := &recordingPreserver{}
	opts = append([]Option{WithPollInterval(10 * time.Millisecond)}, opts...)
	return NewSupervisor(cfg, &fakeSpawner{proc: proc}, p, logging.Discard(), opts...), p
}

func tests() domain.Collection {
	return domain.NewCollection(domain.Test{ID: "a", Group: "A"}, domain.Test{ID: "b", Group: "B"})
}

func heartbeat(test, dir string) domain.HeartbeatEvent {
	return domain.HeartbeatEvent{CurrentTest: test, WorkerBinaryPath: "/usr/bin/php", WorkerTempDir: dir, WorkerPID: 77}
}

func TestSupervise_Done(t *testing.T) {
	proc := newFakeProcess()
	obs := &recordingObserver{}
	s, preserver := newTestSupervisor(testConfig(), proc, WithObserver(obs))

	proc.hb <- heartbeat("a", "/tmp/a")
	proc.fails <- domain.FailureEvent{Group: "A"}
	proc.hb <- heartbeat("b", "/tmp/b")
	proc.finish(false)

	res, err := s.Supervise(context.Background(), tests())
	require.NoError(t, err)
	assert.Equal(t, domain.StateDone, res.State)
	assert.False(t, res.Verdict)
	assert.Equal(t, []string{"A"}, res.FailedGroups.Sorted())
	require.NotNil(t, res.LastHeartbeat)
	assert.Equal(t, "b", res.LastHeartbeat.CurrentTest, "only the most recent heartbeat is kept")
	assert.Empty(t, preserver.calls)
	assert.False(t, proc.wasTerminated())
	assert.Equal(t, []string{"a", "b"}, obs.tests)
	assert.Equal(t, []string{"A"}, obs.groups)
	assert.Equal(t, 2, obs.started)
	assert.Equal(t, []domain.State{domain.StateDone}, obs.finished)
}

func TestSupervise_FailuresAfterVerdictAreCollected(t *testing.T) {
	proc := newFakeProcess()
	s, _ := newTestSupervisor(testConfig(), proc)

	proc.verdict <- domain.VerdictEvent{Success: false}
	go func() {
		time.Sleep(5 * time.Millisecond)
		proc.fails <- domain.FailureEvent{Group: "B"}
		close(proc.fails)
		close(proc.hb)
		close(proc.verdict)
		proc.exit()
	}()

	res, err := s.Supervise(context.Background(), tests())
	require.NoError(t, err)
	assert.Equal(t, domain.StateDone, res.State)
	assert.True(t, res.FailedGroups.Has("B"))
}

func TestSupervise_Timeout(t *testing.T) {
	proc := newFakeProcess()
	s, preserver := newTestSupervisor(testConfig(), proc)
	proc.hb <- heartbeat("a", t.TempDir())

	res, err := s.Supervise(context.Background(), tests())
	require.NoError(t, err)
	assert.Equal(t, domain.StateFatalTimeout, res.State)
	assert.False(t, res.Verdict)
	assert.True(t, proc.wasTerminated())
	require.Len(t, preserver.calls, 1)
	assert.Equal(t, "a", preserver.calls[0].CurrentTest)
}

func TestSupervise_TimeoutWithoutAnyHeartbeat(t *testing.T) {
	proc := newFakeProcess()
	s, preserver := newTestSupervisor(testConfig(), proc)

	res, err := s.Supervise(context.Background(), tests())
	require.NoError(t, err)
	assert.Equal(t, domain.StateFatalTimeout, res.State)
	assert.Nil(t, res.LastHeartbeat)
	require.Len(t, preserver.calls, 1)
	assert.Nil(t, preserver.calls[0])
}

func TestSupervise_HeartbeatsKeepWorkerAlive(t *testing.T) {
	proc := newFakeProcess()
	s, _ := newTestSupervisor(testConfig(), proc)

	go func() {
		for i := 0; i < 6; i++ {
			proc.hb <- heartbeat("a", "/tmp/a")
			time.Sleep(80 * time.Millisecond)
		}
		proc.finish(true)
	}()

	res, err := s.Supervise(context.Background(), tests())
	require.NoError(t, err)
	assert.Equal(t, domain.StateDone, res.State)
	assert.True(t, res.Verdict)
	assert.Greater(t, res.Duration, testConfig().Timeout)
}

func TestSupervise_HandledMarkerSuppressesTimeout(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(crash.CorePath(dir), []byte("core"), 0644))
	require.NoError(t, crash.MarkHandled(dir))

	proc := newFakeProcess()
	s, preserver := newTestSupervisor(testConfig(), proc)
	proc.hb <- heartbeat("a", dir)
	go func() {
		time.Sleep(400 * time.Millisecond)
		proc.finish(false)
	}()

	res, err := s.Supervise(context.Background(), tests())
	require.NoError(t, err)
	assert.Equal(t, domain.StateDone, res.State)
	assert.Empty(t, preserver.calls)
}

func TestSupervise_ChildDead(t *testing.T) {
	proc := newFakeProcess()
	s, preserver := newTestSupervisor(testConfig(), proc)
	proc.hb <- heartbeat("a", t.TempDir())
	close(proc.verdict)
	proc.exit()

	res, err := s.Supervise(context.Background(), tests())
	require.NoError(t, err)
	assert.Equal(t, domain.StateFatalChildDead, res.State)
	assert.False(t, res.Verdict)
	assert.Len(t, preserver.calls, 1)
}

func TestSupervise_VerdictBeforeExitIsNotChildDeath(t *testing.T) {
	proc := newFakeProcess()
	s, _ := newTestSupervisor(testConfig(), proc)
	proc.verdict <- domain.VerdictEvent{Success: true}
	proc.exit()

	res, err := s.Supervise(context.Background(), tests())
	require.NoError(t, err)
	assert.Equal(t, domain.StateDone, res.State)
	assert.True(t, res.Verdict)
}

func TestSupervise_ConfirmedCrash(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, crash.CoreFileName), []byte("core"), 0644))

	cfg := testConfig()
	cfg.Timeout = time.Minute
	proc := newFakeProcess()
	s, preserver := newTestSupervisor(cfg, proc)
	proc.hb <- heartbeat("a", dir)

	res, err := s.Supervise(context.Background(), tests())
	require.NoError(t, err)
	assert.Equal(t, domain.StateFatalCrashConfirmed, res.State)
	assert.True(t, proc.wasTerminated())
	require.Len(t, preserver.calls, 1)
	assert.Equal(t, dir, preserver.calls[0].WorkerTempDir)
}

func TestSupervise_CrashConfirmationUsesClock(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, crash.CoreFileName), []byte("core"), 0644))

	// every reading moves ten minutes on, far faster than the wall clock
	now := time.Now()
	clock := func() time.Time {
		now = now.Add(10 * time.Minute)
		return now
	}
	cfg := testConfig()
	cfg.Timeout = 100 * time.Hour
	cfg.CrashConfirmDelay = time.Hour
	proc := newFakeProcess()
	s, _ := newTestSupervisor(cfg, proc, WithClock(clock))
	proc.hb <- heartbeat("a", dir)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	res, err := s.Supervise(ctx, tests())
	require.NoError(t, err)
	assert.Equal(t, domain.StateFatalCrashConfirmed, res.State)
}

func TestSupervise_TimeoutWinsOverChildDeath(t *testing.T) {
	// the worker is already silent for too long when its death is noticed
	base, calls := time.Now(), 0
	clock := func() time.Time {
		calls++
		if calls == 1 {
			return base
		}
		return base.Add(time.Second)
	}

	proc := newFakeProcess()
	s, _ := newTestSupervisor(testConfig(), proc, WithClock(clock))
	close(proc.verdict)
	proc.exit()

	res, err := s.Supervise(context.Background(), tests())
	require.NoError(t, err)
	assert.Equal(t, domain.StateFatalTimeout, res.State)
}

func TestSupervise_SpawnError(t *testing.T) {
	s := NewSupervisor(testConfig(), &fakeSpawner{err: errors.New("no such file")}, &recordingPreserver{}, logging.Discard())

	_, err := s.Supervise(context.Background(), tests())
	assert.ErrorContains(t, err, "spawn worker")
}

func TestSupervise_Cancelled(t *testing.T) {
	proc := newFakeProcess()
	cfg := testConfig()
	cfg.Timeout = time.Minute
	s, _ := newTestSupervisor(cfg, proc)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	res, err := s.Supervise(ctx, tests())
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, res.Verdict)
	assert.True(t, proc.wasTerminated())
}
