package parser

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	okPattern       = regexp.MustCompile(`OK\s*\(\s*(\d+)\s+tests?,\s*(\d+)\s+assertions?`)
	testsPattern    = regexp.MustCompile(`Tests:\s*(\d+)`)
	assertPattern   = regexp.MustCompile(`Assertions:\s*(\d+)`)
	failuresPattern = regexp.MustCompile(`Failures:\s*(\d+)`)
	errorsPattern   = regexp.MustCompile(`Errors:\s*(\d+)`)
	headerPattern   = regexp.MustCompile(`^\d+\)\s+\S+::\S+`)
)

// Summary is the result line of a PHPUnit run
type Summary struct {
	Tests      int
	Assertions int
	Failures   int
	Errors     int
	OK         bool
	NoTests    bool
}

// Failed returns the number of failed test cases
func (s Summary) Failed() int {
	return s.Failures + s.Errors
}

// PHPUnitParser parses PHPUnit test output
type PHPUnitParser struct{}

// NewPHPUnitParser creates a new PHPUnitParser
func NewPHPUnitParser() *PHPUnitParser {
	return &PHPUnitParser{}
}

// Summarize extracts the test counts from PHPUnit output
func (p *PHPUnitParser) Summarize(output string) Summary {
	var s Summary
	if strings.Contains(output, "No tests executed!") {
		s.NoTests = true
		return s
	}

	// OK (N tests, M assertions) - all passed
	if m := okPattern.FindStringSubmatch(output); len(m) == 3 {
		s.OK = true
		s.Tests = atoi(m[1])
		s.Assertions = atoi(m[2])
		return s
	}

	// FAILURES! or ERRORS! - Tests: N, Assertions: A, Failures: F, Errors: E
	s.Tests = firstInt(testsPattern, output)
	s.Assertions = firstInt(assertPattern, output)
	s.Failures = firstInt(failuresPattern, output)
	s.Errors = firstInt(errorsPattern, output)
	return s
}

// FailureMessage returns the message of the first reported failure, without
// the stack trace. Returns "" when output holds no failure block.
func (p *PHPUnitParser) FailureMessage(output string) string {
	lines := strings.Split(output, "\n")
	for i, line := range lines {
		if !headerPattern.MatchString(strings.TrimSpace(line)) {
			continue
		}
		var msg []string
		for _, next := range lines[i+1:] {
			trimmed := strings.TrimSpace(next)
			if trimmed == "" && len(msg) > 0 {
				break
			}
			if trimmed == "" || headerPattern.MatchString(trimmed) {
				continue
			}
			// Stack frames look like /path/to/FileTest.php:42
			if strings.Contains(trimmed, ".php:") {
				break
			}
			msg = append(msg, trimmed)
		}
		return strings.Join(msg, "\n")
	}
	return ""
}

func firstInt(re *regexp.Regexp, s string) int {
	if m := re.FindStringSubmatch(s); len(m) == 2 {
		return atoi(m[1])
	}
	return 0
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
