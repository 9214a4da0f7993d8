package domain

// HeartbeatEvent is sent by the worker whenever a new test starts.
// It tells the supervisor which test is running and where its artifacts live.
type HeartbeatEvent struct {
	CurrentTest      string `json:"current_test"`
	WorkerBinaryPath string `json:"worker_binary_path"`
	WorkerTempDir    string `json:"worker_temp_dir"`
	WorkerPID        int    `json:"worker_pid"`
}

// FailureEvent is sent once per failing test
type FailureEvent struct {
	Group string `json:"group"`
}

// VerdictEvent carries the worker's final verdict for the whole run
type VerdictEvent struct {
	Success bool `json:"success"`
}
