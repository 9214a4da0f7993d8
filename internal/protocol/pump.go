package protocol

import (
	"fmt"
	"io"

	"golang.org/x/sync/errgroup"

	"ptw/internal/domain"
)

// Writers are the worker ends of the three channel pipes
type Writers struct {
	Heartbeat io.WriteCloser
	Failure   io.WriteCloser
	Verdict   io.WriteCloser
}

// Pump forwards the worker's channels to the pipes until all three channels
// are closed.
func Pump(hb <-chan domain.HeartbeatEvent, fails <-chan domain.FailureEvent, verdict <-chan bool, w Writers) error {
	verdicts := make(chan domain.VerdictEvent)
	go func() {
		defer close(verdicts)
		for v := range verdict {
			verdicts <- domain.VerdictEvent{Success: v}
		}
	}()

	var g errgroup.Group
	g.Go(func() error { return forward(hb, w.Heartbeat) })
	g.Go(func() error { return forward(fails, w.Failure) })
	g.Go(func() error { return forward(verdicts, w.Verdict) })
	if err := g.Wait(); err != nil {
		return fmt.Errorf("forward worker events: %w", err)
	}
	return nil
}
