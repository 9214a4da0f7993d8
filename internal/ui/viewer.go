package ui

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"ptw/internal/config"
	"ptw/internal/crash"
	"ptw/internal/domain"
	"ptw/internal/execution"
)

// outputTailLines is how much of a test's output.log the viewer shows
const outputTailLines = 40

// FailuresViewer browses the attempts of the last run in an interactive TUI
type FailuresViewer struct {
	cfg config.Config
}

// NewFailuresViewer creates a new FailuresViewer
func NewFailuresViewer(cfg config.Config) *FailuresViewer {
	return &FailuresViewer{cfg: cfg}
}

// View displays the attempts of report
func (v *FailuresViewer) View(report *domain.RunReport) error {
	if report.ExitCode == 0 {
		color.Green("✓ No test failures found!")
		return nil
	}
	attempts := report.Attempts

	app := tview.NewApplication()

	list := tview.NewList().
		ShowSecondaryText(false).
		SetHighlightFullLine(true)
	for _, a := range attempts {
		list.AddItem(listItemText(a), "", 0, nil)
	}
	list.SetMainTextColor(tview.Styles.PrimaryTextColor).
		SetSelectedTextColor(tcell.ColorWhite).
		SetSelectedBackgroundColor(tcell.ColorDarkCyan).
		SetSecondaryTextColor(tview.Styles.SecondaryTextColor)

	statsView := tview.NewTextView().
		SetDynamicColors(true).
		SetWrap(false).
		SetWordWrap(false)

	detailsView := tview.NewTextView().
		SetDynamicColors(true).
		SetWrap(true).
		SetWordWrap(true)

	detailsContainer := tview.NewFlex().
		SetDirection(tview.FlexColumn).
		AddItem(detailsView, 0, 1, false).
		AddItem(tview.NewBox(), 2, 0, false)

	rightSide := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(statsView, 3, 0, false).
		AddItem(detailsContainer, 0, 1, false)

	flex := tview.NewFlex().
		SetDirection(tview.FlexColumn).
		AddItem(list, 0, 1, true).
		AddItem(rightSide, 0, 2, false)

	headerView := tview.NewTextView().
		SetTextAlign(tview.AlignCenter).
		SetDynamicColors(true)
	headerView.SetText(fmt.Sprintf(" Run %s (%d attempt(s), exit code %d) | Use ↑↓ to navigate, → to view details, ← to go back, Ctrl+C to exit ",
		report.RunID, len(attempts), report.ExitCode))

	updateDetails := func() {
		index := list.GetCurrentItem()
		if index >= 0 && index < len(attempts) {
			statsView.SetText(formatAttemptStats(attempts[index]))
			detailsView.SetText(v.formatAttemptDetails(attempts[index]))
			detailsView.ScrollToBeginning()
		}
	}

	list.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyEnter, tcell.KeyRight:
			app.SetFocus(detailsView)
			return nil
		case tcell.KeyCtrlC:
			app.Stop()
			return nil
		}
		return event
	})
	detailsView.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyLeft, tcell.KeyEsc:
			app.SetFocus(list)
			return nil
		case tcell.KeyCtrlC:
			app.Stop()
			return nil
		}
		return event
	})
	list.SetChangedFunc(func(int, string, string, rune) {
		updateDetails()
	})
	updateDetails()

	mainLayout := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(headerView, 1, 0, false).
		AddItem(tview.NewBox(), 1, 0, false).
		AddItem(flex, 0, 1, true)

	if err := app.SetRoot(mainLayout, true).SetFocus(list).Run(); err != nil {
		return fmt.Errorf("failed to run TUI: %w", err)
	}
	return nil
}

func listItemText(a domain.AttemptRecord) string {
	switch {
	case a.State.IsFatal():
		return fmt.Sprintf("[yellow]%d.[red] %s[white]", a.Number, a.State)
	case a.Success:
		return fmt.Sprintf("[yellow]%d.[green] passed[white]", a.Number)
	default:
		return fmt.Sprintf("[yellow]%d.[white] %d group(s) failed", a.Number, len(a.FailedGroups))
	}
}

func formatAttemptStats(a domain.AttemptRecord) string {
	return fmt.Sprintf("[cyan]attempt:[white] [yellow]%d[white]  [cyan]tests:[white] [yellow]%d[white]  [cyan]duration:[white] [yellow]%.2fs[white]\n",
		a.Number, a.Tests, a.DurationSeconds)
}

// formatAttemptDetails formats an attempt for display using tview color tags ([red], [cyan], etc.)
func (v *FailuresViewer) formatAttemptDetails(a domain.AttemptRecord) string {
	var b strings.Builder

	fmt.Fprintf(&b, "[cyan]State: %s[white]\n\n", a.State)
	if len(a.FailedGroups) > 0 {
		fmt.Fprintf(&b, "[yellow]Failed groups:[white]\n")
		for _, g := range a.FailedGroups {
			fmt.Fprintf(&b, "  [red]✗ %s[white]\n", g)
		}
		fmt.Fprintln(&b)
	}
	if a.LastTest != "" {
		fmt.Fprintf(&b, "[yellow]Last test:[white] %s\n", tview.Escape(a.LastTest))
	}
	if a.LastTempDir == "" {
		return b.String()
	}
	fmt.Fprintf(&b, "[yellow]Directory:[white] %s\n", tview.Escape(a.LastTempDir))

	if a.State.IsFatal() {
		link := filepath.Join(v.cfg.FailedDir, filepath.Base(a.LastTempDir)+crash.FailedSuffix)
		fmt.Fprintf(&b, "[yellow]Preserved as:[white] %s\n", tview.Escape(link))
	}
	if crash.CoreExists(a.LastTempDir) {
		handled := "unhandled"
		if crash.HandledMarkerExists(a.LastTempDir) {
			handled = "handled by the worker"
		}
		fmt.Fprintf(&b, "[red]Core file:[white] %s (%s)\n", tview.Escape(crash.CorePath(a.LastTempDir)), handled)
	}

	if out := tailFile(filepath.Join(a.LastTempDir, execution.OutputLogName), outputTailLines); out != "" {
		fmt.Fprintf(&b, "\n[yellow]Output:[white]\n%s\n", tview.Escape(out))
	}
	return b.String()
}

// tailFile returns the last n lines of path, empty if it cannot be read
func tailFile(path string, n int) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) > n {
		lines = append([]string{fmt.Sprintf("... %d more lines", len(lines)-n)}, lines[len(lines)-n:]...)
	}
	return strings.Join(lines, "\n")
}
