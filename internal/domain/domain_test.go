package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollection_FilterKeepsOrder(t *testing.T) {
	c := NewCollection(
		Test{ID: "1", Group: "A"},
		Test{ID: "2", Group: "B"},
		Test{ID: "3", Group: "A"},
	)

	got := c.Filter(func(t Test) bool { return t.Group == "A" })
	require.Equal(t, 2, got.Len())
	assert.Equal(t, "1", got.Tests()[0].ID)
	assert.Equal(t, "3", got.Tests()[1].ID)
	assert.Equal(t, 3, c.Len(), "filtering never changes the source")
}

func TestCollection_IsImmutable(t *testing.T) {
	src := []Test{{ID: "1", Group: "A"}}
	c := NewCollection(src...)
	src[0].ID = "changed"

	tests := c.Tests()
	tests[0].ID = "changed too"
	assert.Equal(t, "1", c.Tests()[0].ID)
}

func TestCollection_Groups(t *testing.T) {
	c := NewCollection(Test{Group: "B"}, Test{Group: "A"}, Test{Group: "B"})
	assert.Equal(t, []string{"A", "B"}, c.Groups().Sorted())
	assert.Zero(t, NewCollection().Groups().Len())
}

func TestGroupSet(t *testing.T) {
	s := NewGroupSet("A")
	s.Add("B")
	s.Add("A")

	assert.Equal(t, 2, s.Len())
	assert.True(t, s.Has("B"))
	assert.False(t, s.Has("C"))

	cp := s.Clone()
	cp.Add("C")
	assert.False(t, s.Has("C"))
}

func TestState(t *testing.T) {
	tests := []struct {
		state    State
		fatal    bool
		terminal bool
	}{
		{StateRunning, false, false},
		{StateDone, false, true},
		{StateFatalTimeout, true, true},
		{StateFatalChildDead, true, true},
		{StateFatalCrashConfirmed, true, true},
	}
	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			assert.Equal(t, tt.fatal, tt.state.IsFatal())
			assert.Equal(t, tt.terminal, tt.state.IsTerminal())
		})
	}
}

func TestNewAttemptRecord(t *testing.T) {
	res := AttemptResult{
		State:         StateFatalTimeout,
		FailedGroups:  NewGroupSet("B", "A"),
		LastHeartbeat: &HeartbeatEvent{CurrentTest: "A::t1", WorkerTempDir: "/tmp/ptw-A-1"},
		Duration:      1500 * time.Millisecond,
	}

	rec := NewAttemptRecord(2, 10, res)
	assert.Equal(t, 2, rec.Number)
	assert.Equal(t, 10, rec.Tests)
	assert.Equal(t, []string{"A", "B"}, rec.FailedGroups)
	assert.Equal(t, "A::t1", rec.LastTest)
	assert.Equal(t, "/tmp/ptw-A-1", rec.LastTempDir)
	assert.InDelta(t, 1.5, rec.DurationSeconds, 1e-9)
}

func TestRunReport_FinalAttempt(t *testing.T) {
	r := &RunReport{}
	assert.Nil(t, r.FinalAttempt())

	r.Attempts = []AttemptRecord{{Number: 1}, {Number: 2}}
	assert.Equal(t, 2, r.FinalAttempt().Number)
}
