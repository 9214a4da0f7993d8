package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ptw/internal/domain"
)

func TestRecordAttempt(t *testing.T) {
	r := NewRecorder()

	r.RecordAttempt(domain.AttemptResult{State: domain.StateDone, FailedGroups: domain.NewGroupSet("A", "B"), Duration: time.Second})
	r.RecordAttempt(domain.AttemptResult{State: domain.StateFatalTimeout, FailedGroups: domain.NewGroupSet("A")})

	assert.Equal(t, 1.0, testutil.ToFloat64(r.attemptsTotal.WithLabelValues("DONE")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.attemptsTotal.WithLabelValues("FATAL_TIMEOUT")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.fatalTotal.WithLabelValues("FATAL_TIMEOUT")))
	assert.Equal(t, 0.0, testutil.ToFloat64(r.fatalTotal.WithLabelValues("DONE")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.failedGroups), "the gauge follows the latest attempt")
}

func TestWriteTextfile(t *testing.T) {
	r := NewRecorder()
	r.RecordAttempt(domain.AttemptResult{State: domain.StateFatalChildDead, FailedGroups: domain.NewGroupSet()})
	r.RecordRun(&domain.RunReport{RunID: "run-1", ExitCode: 2})

	path := filepath.Join(t.TempDir(), "ptw.prom")
	require.NoError(t, r.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `ptw_fatal_total{state="FATAL_CHILD_DEAD"} 1`)
	assert.Contains(t, string(data), `ptw_last_run_exit_code{run_id="run-1"} 2`)
}

func TestWriteTextfile_BadPath(t *testing.T) {
	err := NewRecorder().WriteTextfile(filepath.Join(t.TempDir(), "missing", "ptw.prom"))
	assert.ErrorContains(t, err, "write metrics textfile")
}
