// Package protocol is the message contract between the supervisor and the
// isolated worker process.
//
// The worker writes three one-directional streams of newline-delimited JSON,
// one per pipe: heartbeats, failures and the verdict. In the worker process
// the pipes are file descriptors 3, 4 and 5. The job to run (tests and
// configuration) is written by the supervisor to the worker's stdin.
package protocol

import (
	"encoding/json"
	"fmt"
	"io"

	"ptw/internal/config"
	"ptw/internal/domain"
)

// File descriptors of the channel pipes inside the worker process
const (
	HeartbeatFD = 3
	FailureFD   = 4
	VerdictFD   = 5
)

// Job is everything the worker needs to run one attempt
type Job struct {
	Tests  []domain.Test `json:"tests"`
	Config config.Config `json:"config"`
}

// WriteJob encodes job to w
func WriteJob(w io.Writer, job Job) error {
	if err := json.NewEncoder(w).Encode(job); err != nil {
		return fmt.Errorf("encode job: %w", err)
	}
	return nil
}

// ReadJob decodes a job from r
func ReadJob(r io.Reader) (Job, error) {
	var job Job
	if err := json.NewDecoder(r).Decode(&job); err != nil {
		return Job{}, fmt.Errorf("decode job: %w", err)
	}
	return job, nil
}

// Receive decodes messages from r and delivers them on the returned channel,
// which is closed once r reports EOF or an error, or once stop is closed.
func Receive[T any](r io.Reader, buffer int, stop <-chan struct{}) <-chan T {
	out := make(chan T, buffer)
	go func() {
		defer close(out)
		dec := json.NewDecoder(r)
		for {
			var msg T
			if err := dec.Decode(&msg); err != nil {
				return
			}
			select {
			case out <- msg:
			case <-stop:
				return
			}
		}
	}()
	return out
}

// forward encodes every value received on ch to w and closes w once ch is
// closed. After a write error the channel is still drained so the sender
// never blocks on a supervisor that went away.
func forward[T any](ch <-chan T, w io.WriteCloser) error {
	enc := json.NewEncoder(w)
	var err error
	for msg := range ch {
		if err == nil {
			err = enc.Encode(msg)
		}
	}
	if cerr := w.Close(); err == nil {
		err = cerr
	}
	return err
}
