package ui

import (
	"fmt"
	"io"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var spinnerFrames = []string{".  ", ".. ", "...", " ..", "  .", "   "}

const spinnerInterval = 150 * time.Millisecond

type spinnerTickMsg struct{}

type spinnerStopMsg struct{}

type spinnerModel struct {
	message string
	frame   int
	done    bool
	style   lipgloss.Style
}

func (m spinnerModel) Init() tea.Cmd {
	return spinnerTick()
}

func (m spinnerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg.(type) {
	case spinnerTickMsg:
		m.frame = (m.frame + 1) % len(spinnerFrames)
		return m, spinnerTick()
	case spinnerStopMsg:
		m.done = true
		return m, tea.Quit
	}
	return m, nil
}

func (m spinnerModel) View() string {
	if m.done {
		return ""
	}
	return m.style.Render(m.message) + spinnerFrames[m.frame]
}

func spinnerTick() tea.Cmd {
	return tea.Tick(spinnerInterval, func(time.Time) tea.Msg { return spinnerTickMsg{} })
}

// Spinner returns a progress func for out. On a terminal it animates the
// message until the returned func is called; elsewhere it prints the message
// once.
func Spinner(out io.Writer) func(msg string) (done func()) {
	return func(msg string) func() {
		if !IsTerminal(out) {
			fmt.Fprintf(out, "%s...\n", msg)
			return func() {}
		}

		style := lipgloss.NewStyle()
		if SupportsColor(out) {
			style = style.Foreground(lipgloss.Color("12"))
		}
		prog := tea.NewProgram(
			spinnerModel{message: msg, style: style},
			tea.WithOutput(out),
			tea.WithInput(nil),
			tea.WithoutSignalHandler(),
		)
		finished := make(chan struct{})
		go func() {
			defer close(finished)
			_, _ = prog.Run()
		}()
		return func() {
			prog.Send(spinnerStopMsg{})
			<-finished
		}
	}
}
