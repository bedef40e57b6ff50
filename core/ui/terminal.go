// Package ui renders reports, plans and status lines to a terminal.
package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"snowops/core/output"
	"snowops/core/reconcile"
)

// Colors for terminal output
const (
	Reset  = "\033[0m"
	Bold   = "\033[1m"
	Dim    = "\033[2m"
	Red    = "\033[31m"
	Green  = "\033[32m"
	Yellow = "\033[33m"
	Blue   = "\033[34m"
	Cyan   = "\033[36m"
)

// Writer is the UI output destination
type Writer struct {
	out       io.Writer
	noColor   bool
	verbosity int
}

// NewWriter creates a UI writer
func NewWriter(out io.Writer, noColor bool) *Writer {
	if out == nil {
		out = os.Stdout
	}
	return &Writer{
		out:       out,
		noColor:   noColor,
		verbosity: 1,
	}
}

// SetVerbosity sets output verbosity (0=quiet, 1=normal, 2=verbose)
func (w *Writer) SetVerbosity(level int) {
	w.verbosity = level
}

func (w *Writer) color(c, text string) string {
	if w.noColor {
		return text
	}
	return c + text + Reset
}

// Print writes formatted text
func (w *Writer) Print(format string, args ...interface{}) {
	fmt.Fprintf(w.out, format, args...)
}

// Println writes a line with newline
func (w *Writer) Println(format string, args ...interface{}) {
	fmt.Fprintf(w.out, format+"\n", args...)
}

// Header prints a section header
func (w *Writer) Header(title string) {
	w.Println("")
	w.Println("%s", w.color(Bold+Cyan, "━━━ "+title+" ━━━"))
	w.Println("")
}

// SubHeader prints a subsection header
func (w *Writer) SubHeader(title string) {
	w.Println("%s", w.color(Bold, "▸ "+title))
}

// Success prints a success message
func (w *Writer) Success(format string, args ...interface{}) {
	w.Println("%s%s", w.color(Green, "✓ "), fmt.Sprintf(format, args...))
}

// Warning prints a warning
func (w *Writer) Warning(format string, args ...interface{}) {
	w.Println("%s%s", w.color(Yellow, "⚠ "), fmt.Sprintf(format, args...))
}

// Error prints an error
func (w *Writer) Error(format string, args ...interface{}) {
	w.Println("%s%s", w.color(Red, "✗ "), fmt.Sprintf(format, args...))
}

// Info prints an info message
func (w *Writer) Info(format string, args ...interface{}) {
	if w.verbosity < 1 {
		return
	}
	w.Println("%s%s", w.color(Blue, "ℹ "), fmt.Sprintf(format, args...))
}

// Debug prints a debug message
func (w *Writer) Debug(format string, args ...interface{}) {
	if w.verbosity < 2 {
		return
	}
	w.Println("%s", w.color(Dim, "  "+fmt.Sprintf(format, args...)))
}

// Severity colors a severity label
func (w *Writer) Severity(s string) string {
	switch strings.ToUpper(s) {
	case "CRITICAL":
		return w.color(Bold+Red, s)
	case "HIGH":
		return w.color(Red, s)
	case "WARNING":
		return w.color(Yellow, s)
	default:
		return s
	}
}

// Table prints a titled table. An empty table prints its title and a note.
func (w *Writer) Table(t *output.Table) {
	if t.Title != "" {
		w.SubHeader(t.Title)
	}
	if t.Len() == 0 {
		w.Println("%s", w.color(Dim, "  (no rows)"))
		return
	}

	widths := make([]int, len(t.Headers))
	for i, h := range t.Headers {
		widths[i] = utf8.RuneCountInString(h)
	}
	for _, row := range t.Rows {
		for i, cell := range row {
			if i < len(widths) && utf8.RuneCountInString(cell) > widths[i] {
				widths[i] = utf8.RuneCountInString(cell)
			}
		}
	}

	w.Println("%s", w.color(Bold, joinPadded(t.Headers, widths, " │ ")))

	sep := make([]string, len(widths))
	for i, n := range widths {
		sep[i] = strings.Repeat("─", n)
	}
	w.Println("%s", strings.Join(sep, "─┼─"))

	for _, row := range t.Rows {
		w.Println("%s", joinPadded(row, widths, " │ "))
	}
}

func joinPadded(cells []string, widths []int, sep string) string {
	parts := make([]string, len(widths))
	for i, n := range widths {
		cell := ""
		if i < len(cells) {
			cell = cells[i]
		}
		parts[i] = cell + strings.Repeat(" ", n-utf8.RuneCountInString(cell))
	}
	return strings.TrimRight(strings.Join(parts, sep), " ")
}

// Summary is a boxed set of headline figures
type Summary struct {
	w     *Writer
	Title string
	Lines []SummaryLine
}

// SummaryLine is one label and value in a summary box
type SummaryLine struct {
	Label string
	Value string
}

// NewSummary creates a summary
func (w *Writer) NewSummary(title string) *Summary {
	return &Summary{w: w, Title: title}
}

// Add appends a line
func (s *Summary) Add(label, value string) *Summary {
	s.Lines = append(s.Lines, SummaryLine{Label: label, Value: value})
	return s
}

// Render prints the summary box
func (s *Summary) Render() {
	s.w.Header(s.Title)

	labelWidth, valueWidth := 0, 0
	for _, l := range s.Lines {
		labelWidth = max(labelWidth, utf8.RuneCountInString(l.Label))
		valueWidth = max(valueWidth, utf8.RuneCountInString(l.Value))
	}
	inner := labelWidth + valueWidth + 6

	s.w.Println("%s", s.w.color(Bold, "╭"+strings.Repeat("─", inner)+"╮"))
	for _, l := range s.Lines {
		text := fmt.Sprintf("  %-*s  %-*s  ", labelWidth+1, l.Label+":", valueWidth, l.Value)
		s.w.Println("%s%s%s", s.w.color(Bold, "│"), s.w.color(Green, text), s.w.color(Bold, "│"))
	}
	s.w.Println("%s", s.w.color(Bold, "╰"+strings.Repeat("─", inner)+"╯"))
}

// Plan prints the changes of a reconcile plan.
func (w *Writer) Plan(plan *reconcile.Plan) {
	w.Header("Plan")
	if plan.Empty() {
		w.Success("No changes. Live state matches the declared configuration.")
		return
	}

	for _, change := range plan.Changes {
		switch change.Action {
		case reconcile.ActionCreate:
			w.Println("%s %s", w.color(Green, "+"), w.color(Bold, change.Label()))
			for _, a := range change.Attributes {
				w.Println("    %s = %s", a.Name, display(a.To))
			}
		default:
			w.Println("%s %s", w.color(Yellow, "~"), w.color(Bold, change.Label()))
			for _, a := range change.Attributes {
				w.Println("    %s: %s %s %s", a.Name, display(a.From), w.color(Yellow, "→"), display(a.To))
			}
		}
		w.Println("")
	}

	creates, alters := plan.Counts()
	w.Println("%s", strings.Repeat("─", 40))
	w.Println("%s %d to create, %d to alter", w.color(Bold, "Plan:"), creates, alters)
}

func display(v string) string {
	if v == "" {
		return "(none)"
	}
	return v
}
