package domain

import "time"

// State is a supervisor state for one attempt
type State string

const (
	StateRunning             State = "RUNNING"
	StateFatalTimeout        State = "FATAL_TIMEOUT"
	StateFatalChildDead      State = "FATAL_CHILD_DEAD"
	StateFatalCrashConfirmed State = "FATAL_CRASH_CONFIRMED"
	StateDone                State = "DONE"
)

// IsFatal reports whether s is one of the FATAL_* states
func (s State) IsFatal() bool {
	switch s {
	case StateFatalTimeout, StateFatalChildDead, StateFatalCrashConfirmed:
		return true
	}
	return false
}

// IsTerminal reports whether the supervisor loop stops in s
func (s State) IsTerminal() bool {
	return s == StateDone || s.IsFatal()
}

// AttemptResult is the outcome of one supervised attempt
type AttemptResult struct {
	Verdict       bool            // Overall success, forced to false on fatal states
	State         State           // Terminal state the supervisor stopped in
	FailedGroups  GroupSet        // Groups that reported at least one failing test
	LastHeartbeat *HeartbeatEvent // Most recent heartbeat, nil if none arrived
	Duration      time.Duration
}

// AttemptRecord is the persisted form of an AttemptResult
type AttemptRecord struct {
	Number          int      `json:"number"`
	Tests           int      `json:"tests"`
	State           State    `json:"state"`
	Success         bool     `json:"success"`
	FailedGroups    []string `json:"failed_groups"`
	LastTest        string   `json:"last_test,omitempty"`
	LastTempDir     string   `json:"last_temp_dir,omitempty"`
	DurationSeconds float64  `json:"duration_seconds"`
}

// RunReport describes a complete orchestrated run
type RunReport struct {
	RunID      string          `json:"run_id"`
	StartedAt  time.Time       `json:"started_at"`
	Duration   string          `json:"duration"`
	TotalTests int             `json:"total_tests"`
	Retries    int             `json:"retries"`
	ExitCode   int             `json:"exit_code"`
	Attempts   []AttemptRecord `json:"attempts"`
}

// NewAttemptRecord converts an AttemptResult for persistence
func NewAttemptRecord(number, tests int, res AttemptResult) AttemptRecord {
	rec := AttemptRecord{
		Number:          number,
		Tests:           tests,
		State:           res.State,
		Success:         res.Verdict,
		FailedGroups:    res.FailedGroups.Sorted(),
		DurationSeconds: res.Duration.Seconds(),
	}
	if res.LastHeartbeat != nil {
		rec.LastTest = res.LastHeartbeat.CurrentTest
		rec.LastTempDir = res.LastHeartbeat.WorkerTempDir
	}
	return rec
}

// FinalAttempt returns the last attempt of the run, or nil if none ran
func (r *RunReport) FinalAttempt() *AttemptRecord {
	if len(r.Attempts) == 0 {
		return nil
	}
	return &r.Attempts[len(r.Attempts)-1]
}
