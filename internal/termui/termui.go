// Package termui renders agent replies for a terminal: a spinner while a
// turn runs and markdown formatting for the answer.
package termui

import (
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// IsTerminal reports whether w is a terminal file.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func width(w io.Writer) int {
	if f, ok := w.(*os.File); ok {
		if cols, _, err := term.GetSize(int(f.Fd())); err == nil && cols > 20 {
			return cols
		}
	}
	return 80
}

// Render formats markdown for w. Text for pipes and files is returned as is.
func Render(w io.Writer, text string) string {
	if !IsTerminal(w) {
		return text
	}
	style := "dark"
	if !lipgloss.HasDarkBackground() {
		style = "light"
	}
	return RenderMarkdown(text, style, width(w))
}

// RenderMarkdown renders text with a glamour style ("dark", "light",
// "notty"...). On failure the input comes back unchanged.
func RenderMarkdown(text, style string, wrap int) string {
	r, err := glamour.NewTermRenderer(
		glamour.WithStylePath(style),
		glamour.WithWordWrap(wrap-4),
	)
	if err != nil {
		return text
	}
	out, err := r.Render(text)
	if err != nil {
		return text
	}
	return out
}

type stopMsg struct{}

type spinnerModel struct {
	sp    spinner.Model
	label string
	done  bool
}

func newSpinner(label string) spinnerModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#B39DDB"))
	return spinnerModel{sp: sp, label: label}
}

func (m spinnerModel) Init() tea.Cmd { return m.sp.Tick }

func (m spinnerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case stopMsg:
		m.done = true
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.sp, cmd = m.sp.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m spinnerModel) View() string {
	if m.done {
		return ""
	}
	return m.sp.View() + " " + m.label
}

// StartSpinner draws a spinner with label on w until stop is called.
// Nothing is drawn when w is not a terminal. stop is safe to call twice.
func StartSpinner(w io.Writer, label string) (stop func()) {
	if !IsTerminal(w) {
		return func() {}
	}
	p := tea.NewProgram(newSpinner(label),
		tea.WithOutput(w),
		tea.WithInput(nil),
		tea.WithoutSignalHandler(),
	)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = p.Run()
	}()
	var once sync.Once
	return func() {
		once.Do(func() {
			p.Send(stopMsg{})
			<-done
		})
	}
}
