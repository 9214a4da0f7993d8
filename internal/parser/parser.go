package parser

// Parser extracts what the watchdog needs from a test runner's output
type Parser interface {
	Summarize(output string) Summary
	FailureMessage(output string) string
}
