package parser

import (
	"testing"
)

const failingOutput = `PHPUnit 10.5.2 by Sebastian Bergmann and contributors.

F                                                                   1 / 1 (100%)

Time: 00:00.012, Memory: 8.00 MB

There was 1 failure:

1) Tests\Unit\UserTest::testLogin
Failed asserting that false is true.

/app/tests/Unit/UserTest.php:21

FAILURES!
Tests: 3, Assertions: 5, Failures: 1, Errors: 1.
`

func TestPHPUnitParser_Summarize(t *testing.T) {
	p := NewPHPUnitParser()

	tests := []struct {
		name     string
		output   string
		expected Summary
	}{
		{
			name:     "all passed",
			output:   "OK (4 tests, 9 assertions)",
			expected: Summary{Tests: 4, Assertions: 9, OK: true},
		},
		{
			name:     "single test passed",
			output:   "OK (1 test, 1 assertion)",
			expected: Summary{Tests: 1, Assertions: 1, OK: true},
		},
		{
			name:     "failures and errors",
			output:   failingOutput,
			expected: Summary{Tests: 3, Assertions: 5, Failures: 1, Errors: 1},
		},
		{
			name:     "nothing ran",
			output:   "No tests executed!",
			expected: Summary{NoTests: true},
		},
		{
			name:     "unparseable output",
			output:   "Segmentation fault (core dumped)",
			expected: Summary{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := p.Summarize(tt.output)
			if got != tt.expected {
				t.Errorf("expected %+v, got %+v", tt.expected, got)
			}
		})
	}

	if failed := p.Summarize(failingOutput).Failed(); failed != 2 {
		t.Errorf("expected 2 failed test cases, got %d", failed)
	}
}

func TestPHPUnitParser_FailureMessage(t *testing.T) {
	p := NewPHPUnitParser()

	if msg := p.FailureMessage(failingOutput); msg != "Failed asserting that false is true." {
		t.Errorf("unexpected failure message %q", msg)
	}

	if msg := p.FailureMessage("OK (1 test, 1 assertion)"); msg != "" {
		t.Errorf("expected no message for passing output, got %q", msg)
	}
}
