package exitcodes

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"ptw/internal/domain"
)

func TestFromAttempt(t *testing.T) {
	tests := []struct {
		name string
		res  domain.AttemptResult
		want int
	}{
		{"done and passed", domain.AttemptResult{Verdict: true, State: domain.StateDone}, Success},
		{"done and failed", domain.AttemptResult{Verdict: false, State: domain.StateDone}, TestFailure},
		{"timeout", domain.AttemptResult{State: domain.StateFatalTimeout}, Fatal},
		{"child dead", domain.AttemptResult{State: domain.StateFatalChildDead}, Fatal},
		{"crash confirmed", domain.AttemptResult{State: domain.StateFatalCrashConfirmed}, Fatal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FromAttempt(tt.res))
		})
	}
}

func TestExitError(t *testing.T) {
	var err error = &ExitError{Code: Fatal}
	assert.EqualError(t, err, "exit status 2")
}
