package execution

import (
	"context"
	"io"

	"ptw/internal/config"
	"ptw/internal/domain"
	"ptw/internal/protocol"
)

// Serve is the body of the isolated worker process: it reads the job from
// r, runs it through the worker built by newWorker and pumps the channels
// into w until the verdict has been written.
func Serve(ctx context.Context, r io.Reader, w protocol.Writers, newWorker func(config.Config) *Worker) error {
	job, err := protocol.ReadJob(r)
	if err != nil {
		w.Heartbeat.Close()
		w.Failure.Close()
		w.Verdict.Close()
		return err
	}
	worker := newWorker(job.Config)
	worker.logger.Debug("worker received job", "tests", len(job.Tests))

	hb := make(chan domain.HeartbeatEvent)
	fails := make(chan domain.FailureEvent)
	verdict := make(chan bool)
	go worker.Run(ctx, domain.NewCollection(job.Tests...), hb, fails, verdict)

	return protocol.Pump(hb, fails, verdict, w)
}
