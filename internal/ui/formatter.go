package ui

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"gopkg.in/yaml.v3"

	"ptw/internal/domain"
	"ptw/internal/exitcodes"
)

// List output formats
const (
	FormatText = "text"
	FormatYAML = "yaml"
	FormatJSON = "json"
)

// Formatter formats and displays output
type Formatter struct {
	projectPath string
	out         io.Writer
}

// NewFormatter creates a new Formatter
func NewFormatter(projectPath string, out io.Writer) *Formatter {
	return &Formatter{projectPath: projectPath, out: out}
}

// FormatReport renders the attempts of a run as a table
func (f *Formatter) FormatReport(report *domain.RunReport) string {
	var buf bytes.Buffer

	t := table.NewWriter()
	t.SetOutputMirror(&buf)
	t.SetTitle("Run " + report.RunID)
	t.AppendHeader(table.Row{"Attempt", "Tests", "State", "Failed groups", "Last test", "Duration"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Attempt", Align: text.AlignRight},
		{Name: "Tests", Align: text.AlignRight},
		{Name: "Failed groups", WidthMax: 60, WidthMaxEnforcer: text.WrapSoft},
		{Name: "Last test", WidthMax: 80, WidthMaxEnforcer: text.WrapSoft},
		{Name: "Duration", Align: text.AlignRight},
	})

	for _, a := range report.Attempts {
		t.AppendRow(table.Row{
			a.Number,
			a.Tests,
			string(a.State),
			strings.Join(a.FailedGroups, ", "),
			f.relative(a.LastTest),
			fmt.Sprintf("%.2fs", a.DurationSeconds),
		})
	}

	switch report.ExitCode {
	case exitcodes.Success:
		t.SetStyle(table.StyleColoredBlackOnGreenWhite)
	case exitcodes.TestFailure:
		t.SetStyle(table.StyleColoredBlackOnYellowWhite)
	default:
		t.SetStyle(table.StyleColoredBlackOnRedWhite)
	}
	if color.NoColor {
		t.SetStyle(table.StyleLight)
	}

	t.AppendFooter(table.Row{"TOTAL", report.TotalTests, statusText(report.ExitCode), "", "", report.Duration})
	t.Render()
	return buf.String()
}

// PrintReport prints the report table followed by a one line verdict
func (f *Formatter) PrintReport(report *domain.RunReport) {
	fmt.Fprintln(f.out)
	fmt.Fprint(f.out, f.FormatReport(report))
	fmt.Fprintln(f.out)

	final := report.FinalAttempt()
	switch {
	case report.ExitCode == exitcodes.Success:
		fmt.Fprintln(f.out, color.GreenString("✓ All tests passed!"))
	case final != nil && final.State.IsFatal():
		fmt.Fprintln(f.out, color.RedString("✗ Worker terminated: %s", final.State))
		if final.LastTest != "" {
			fmt.Fprintln(f.out, color.RedString("  last test: %s", f.relative(final.LastTest)))
			fmt.Fprintln(f.out, color.RedString("  directory: %s", final.LastTempDir))
		}
	case final != nil:
		fmt.Fprintln(f.out, color.RedString("✗ %d test group(s) still failing", len(final.FailedGroups)))
		for _, g := range final.FailedGroups {
			fmt.Fprintln(f.out, color.RedString("  |_%s", g))
		}
	}
}

func statusText(code int) string {
	switch code {
	case exitcodes.Success:
		return "PASS"
	case exitcodes.TestFailure:
		return "FAIL"
	default:
		return "FATAL"
	}
}

// PrintTestList prints the tests grouped by file, optionally with their methods.
// Files whose group is in failed are marked with [F] in red (from last run).
func (f *Formatter) PrintTestList(tests domain.Collection, showTestCases bool, failed domain.GroupSet) {
	files, byFile := groupByFile(tests)
	if showTestCases {
		fmt.Fprintln(f.out, color.GreenString("Found %d test file(s) with %d test case(s):\n", len(files), tests.Len()))
	} else {
		fmt.Fprintln(f.out, color.GreenString("Found %d test file(s):\n", len(files)))
	}

	for i, file := range files {
		cases := byFile[file]
		isLastFile := i == len(files)-1

		failMarker := ""
		if failed.Has(cases[0].Group) {
			failMarker = " " + color.RedString("[F]")
		}
		branch := "├── "
		if isLastFile {
			branch = "└── "
		}
		fmt.Fprintln(f.out, color.CyanString("%s%s", branch, f.relative(file))+failMarker)
		if !showTestCases {
			continue
		}

		for j, tc := range cases {
			var prefix string
			switch {
			case isLastFile && j == len(cases)-1:
				prefix = "    └── "
			case isLastFile:
				prefix = "    ├── "
			case j == len(cases)-1:
				prefix = "│   └── "
			default:
				prefix = "│   ├── "
			}
			fmt.Fprintf(f.out, "%s%s\n", prefix, color.YellowString(tc.Method))
		}
		if !isLastFile {
			fmt.Fprintln(f.out)
		}
	}
}

// listEntry is the machine readable form of a test file
type listEntry struct {
	File  string   `json:"file" yaml:"file"`
	Group string   `json:"group" yaml:"group"`
	Tests []string `json:"tests" yaml:"tests"`
}

// WriteTestList writes the tests grouped by file in the yaml or json format
func (f *Formatter) WriteTestList(tests domain.Collection, format string) error {
	files, byFile := groupByFile(tests)
	entries := make([]listEntry, 0, len(files))
	for _, file := range files {
		e := listEntry{File: f.relative(file), Group: byFile[file][0].Group}
		for _, tc := range byFile[file] {
			e.Tests = append(e.Tests, tc.Method)
		}
		entries = append(entries, e)
	}

	switch format {
	case FormatYAML:
		enc := yaml.NewEncoder(f.out)
		enc.SetIndent(2)
		if err := enc.Encode(entries); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	case FormatJSON:
		enc := json.NewEncoder(f.out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(entries); err != nil {
			return fmt.Errorf("encode json: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unknown list format %q", format)
	}
}

// groupByFile returns the files in first-seen order and their tests
func groupByFile(tests domain.Collection) ([]string, map[string][]domain.Test) {
	var files []string
	byFile := make(map[string][]domain.Test)
	for _, t := range tests.Tests() {
		if _, ok := byFile[t.File]; !ok {
			files = append(files, t.File)
		}
		byFile[t.File] = append(byFile[t.File], t)
	}
	return files, byFile
}

// relative shortens a path (or test id) below the project path for display
func (f *Formatter) relative(p string) string {
	if f.projectPath == "" || p == "" {
		return p
	}
	root, err := filepath.Abs(f.projectPath)
	if err != nil {
		return p
	}
	if strings.HasPrefix(p, root+string(filepath.Separator)) {
		return strings.TrimPrefix(p, root+string(filepath.Separator))
	}
	return p
}
