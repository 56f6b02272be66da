package config

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"
)

const maxSnippetLines = 5

type diagnosticTheme struct {
	code    lipgloss.Style
	title   lipgloss.Style
	gutter  lipgloss.Style
	pointer lipgloss.Style
	label   lipgloss.Style
}

func newDiagnosticTheme(color bool) diagnosticTheme {
	if !color {
		plain := lipgloss.NewStyle()
		return diagnosticTheme{code: plain, title: plain, gutter: plain, pointer: plain, label: plain}
	}
	return diagnosticTheme{
		code:    lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
		title:   lipgloss.NewStyle().Bold(true),
		gutter:  lipgloss.NewStyle().Foreground(lipgloss.Color("12")),
		pointer: lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true),
		label:   lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
	}
}

// Render writes a report for err. Config errors point into their source;
// anything else is printed as a single line.
func Render(w io.Writer, err error, color bool) {
	if err == nil {
		return
	}
	theme := newDiagnosticTheme(color)

	var cerr *ConfigError
	if !errors.As(err, &cerr) {
		fmt.Fprintf(w, "%s %s\n", theme.code.Render("Error:"), err.Error())
		return
	}

	fmt.Fprintf(w, "%s %s\n", theme.code.Render("Error["+cerr.Code()+"]:"), theme.title.Render(cerr.Title()))
	if cerr.Message != "" {
		fmt.Fprintf(w, "  %s\n", cerr.Message)
	}
	for _, l := range cerr.Labels {
		renderLabel(w, theme, cerr.Path, cerr.Source, l)
	}
}

type sourceLine struct {
	number int
	start  int
	text   string
}

func splitLines(src string) []sourceLine {
	var (
		lines []sourceLine
		start int
	)
	for i, line := range strings.Split(src, "\n") {
		lines = append(lines, sourceLine{number: i + 1, start: start, text: strings.TrimSuffix(line, "\r")})
		start += len(line) + 1
	}
	return lines
}

func lineAt(lines []sourceLine, off int) int {
	for i := len(lines) - 1; i >= 0; i-- {
		if lines[i].start <= off {
			return i
		}
	}
	return 0
}

func renderLabel(w io.Writer, theme diagnosticTheme, path, src string, l LabeledSpan) {
	lines := splitLines(src)
	s := l.Span
	if s.Start > len(src) {
		s.Start = len(src)
	}
	if s.End < s.Start {
		s.End = s.Start
	}
	if s.End > len(src) {
		s.End = len(src)
	}

	first := lineAt(lines, s.Start)
	last := first
	if s.End > s.Start {
		last = lineAt(lines, s.End-1)
	}
	col := utf8.RuneCountInString(src[lines[first].start:s.Start]) + 1

	width := len(strconv.Itoa(lines[last].number))
	pad := strings.Repeat(" ", width)
	bar := theme.gutter.Render("|")

	fmt.Fprintf(w, "%s%s %s:%d:%d\n", pad, theme.gutter.Render("-->"), path, lines[first].number, col)
	fmt.Fprintf(w, "%s %s\n", pad, bar)

	shown := make([]int, 0, maxSnippetLines)
	for i := first; i <= last; i++ {
		shown = append(shown, i)
	}
	if len(shown) > maxSnippetLines {
		head := shown[:maxSnippetLines-2]
		shown = append(append([]int{}, head...), -1, last)
	}
	for _, i := range shown {
		if i < 0 {
			fmt.Fprintf(w, "%s %s\n", theme.gutter.Render(strings.Repeat(".", width)), bar)
			continue
		}
		num := fmt.Sprintf("%*d", width, lines[i].number)
		fmt.Fprintf(w, "%s %s %s\n", theme.gutter.Render(num), bar, lines[i].text)
	}

	// Underline on the last line shown, from the span start (or line start)
	// to the span end (or line end).
	line := lines[last]
	from := line.start
	if first == last {
		from = s.Start
	}
	to := s.End
	if lineEnd := line.start + len(line.text); to > lineEnd {
		to = lineEnd
	}
	if to < from {
		to = from
	}
	indent := utf8.RuneCountInString(src[line.start:from])
	length := utf8.RuneCountInString(src[from:to])
	if length == 0 {
		length = 1
	}
	pointer := strings.Repeat(" ", indent) + theme.pointer.Render(strings.Repeat("^", length))
	fmt.Fprintf(w, "%s %s %s %s\n", pad, bar, pointer, theme.label.Render(l.Label))
}
