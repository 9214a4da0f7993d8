package ui

import (
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"

	"ptw/internal/domain"
)

// AttemptProgress shows a progress bar per supervised attempt. It advances
// whenever a heartbeat names a test that was not seen before.
type AttemptProgress struct {
	w io.Writer

	mu      sync.Mutex
	bar     *progressbar.ProgressBar
	attempt int
	seen    map[string]struct{}
	failed  int
}

// NewAttemptProgress creates an AttemptProgress writing to w
func NewAttemptProgress(w io.Writer) *AttemptProgress {
	return &AttemptProgress{w: w}
}

// Started opens a new bar for an attempt over tests
func (p *AttemptProgress) Started(tests domain.Collection) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.attempt++
	p.seen = make(map[string]struct{}, tests.Len())
	p.failed = 0

	w := p.w
	p.bar = progressbar.NewOptions(tests.Len(),
		progressbar.OptionSetDescription(p.describe()),
		progressbar.OptionSetWidth(50),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        color.CyanString("█"),
			SaucerHead:    color.CyanString("█"),
			SaucerPadding: "░",
			BarStart:      "│",
			BarEnd:        "│",
		}),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWriter(w),
		progressbar.OptionShowCount(),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(w, "\n")
		}),
		progressbar.OptionSetRenderBlankState(true),
	)
}

// Heartbeat advances the bar on the first heartbeat of every test
func (p *AttemptProgress) Heartbeat(e domain.HeartbeatEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bar == nil {
		return
	}
	if _, ok := p.seen[e.CurrentTest]; ok {
		return
	}
	p.seen[e.CurrentTest] = struct{}{}
	p.bar.Add(1)
}

// Failure counts a failing test
func (p *AttemptProgress) Failure(domain.FailureEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bar == nil {
		return
	}
	p.failed++
	p.bar.Describe(p.describe())
}

// Finished closes the bar of the current attempt
func (p *AttemptProgress) Finished(res domain.AttemptResult) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bar == nil {
		return
	}
	if res.State.IsFatal() {
		p.bar.Describe(p.describe() + " " + color.RedString(string(res.State)))
	}
	p.bar.Finish()
	p.bar = nil
}

// Seen returns how many distinct tests reported a heartbeat in the current attempt
func (p *AttemptProgress) Seen() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.seen)
}

func (p *AttemptProgress) describe() string {
	return color.CyanString("Attempt %d: ", p.attempt) + color.RedString("[failed: %d]", p.failed)
}
