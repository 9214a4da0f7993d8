package protocol

import (
	"fmt"
	"os"
)

// Pipes holds both ends of the three channel pipes on the supervisor side
type Pipes struct {
	Heartbeat, Failure, Verdict    *os.File // read ends, kept by the supervisor
	heartbeatW, failureW, verdictW *os.File // write ends, inherited by the worker
}

// NewPipes creates the channel pipes for one attempt
func NewPipes() (*Pipes, error) {
	p := &Pipes{}
	var err error
	if p.Heartbeat, p.heartbeatW, err = os.Pipe(); err != nil {
		return nil, fmt.Errorf("create heartbeat pipe: %w", err)
	}
	if p.Failure, p.failureW, err = os.Pipe(); err != nil {
		p.Close()
		return nil, fmt.Errorf("create failure pipe: %w", err)
	}
	if p.Verdict, p.verdictW, err = os.Pipe(); err != nil {
		p.Close()
		return nil, fmt.Errorf("create verdict pipe: %w", err)
	}
	return p, nil
}

// ExtraFiles returns the write ends in the order that maps them to
// HeartbeatFD, FailureFD and VerdictFD in the child
func (p *Pipes) ExtraFiles() []*os.File {
	return []*os.File{p.heartbeatW, p.failureW, p.verdictW}
}

// CloseWriters closes the supervisor's copies of the write ends. It must be
// called once the worker has started so that readers see EOF when it exits.
func (p *Pipes) CloseWriters() {
	for _, f := range []*os.File{p.heartbeatW, p.failureW, p.verdictW} {
		if f != nil {
			f.Close()
		}
	}
}

// Close closes every pipe end
func (p *Pipes) Close() {
	p.CloseWriters()
	for _, f := range []*os.File{p.Heartbeat, p.Failure, p.Verdict} {
		if f != nil {
			f.Close()
		}
	}
}

// OpenWorkerWriters opens the inherited pipe descriptors inside the worker
// process and marks them close-on-exec so test processes do not keep them open.
func OpenWorkerWriters() (Writers, error) {
	files := make([]*os.File, 0, 3)
	for _, fd := range []int{HeartbeatFD, FailureFD, VerdictFD} {
		f := os.NewFile(uintptr(fd), fmt.Sprintf("ptw-channel-%d", fd))
		if f == nil {
			return Writers{}, fmt.Errorf("channel descriptor %d is not open", fd)
		}
		if _, err := f.Stat(); err != nil {
			return Writers{}, fmt.Errorf("channel descriptor %d is not open: %w", fd, err)
		}
		closeOnExec(fd)
		files = append(files, f)
	}
	return Writers{Heartbeat: files[0], Failure: files[1], Verdict: files[2]}, nil
}
