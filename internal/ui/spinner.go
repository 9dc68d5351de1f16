package ui

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

type taskDoneMsg struct{ err error }

// spinnerModel shows a spinner until its task finishes.
type spinnerModel struct {
	spinner spinner.Model
	message string
	task    func() error
	done    bool
	err     error
}

func newSpinnerModel(message string, task func() error) spinnerModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = TitleStyle
	return spinnerModel{spinner: s, message: message, task: task}
}

func (m spinnerModel) Init() tea.Cmd {
	task := m.task
	return tea.Batch(m.spinner.Tick, func() tea.Msg { return taskDoneMsg{err: task()} })
}

func (m spinnerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case taskDoneMsg:
		m.done = true
		m.err = msg.err
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m spinnerModel) View() string {
	if m.done {
		if m.err != nil {
			return ErrorStyle.Render("✗ "+m.message) + "\n"
		}
		return SuccessStyle.Render("✓ "+m.message) + "\n"
	}
	return m.spinner.View() + " " + m.message
}

// RunWithSpinner runs task, showing a spinner on out while it runs when
// interactive is set. Otherwise the message is printed once.
func RunWithSpinner(ctx context.Context, out io.Writer, interactive bool, message string, task func(context.Context) error) error {
	if !interactive {
		fmt.Fprintln(out, message+"...")
		return task(ctx)
	}

	m := newSpinnerModel(message, func() error { return task(ctx) })
	p := tea.NewProgram(m, tea.WithOutput(out), tea.WithInput(nil), tea.WithContext(ctx))
	final, err := p.Run()
	if err != nil {
		return fmt.Errorf("%s: %w", message, err)
	}
	return final.(spinnerModel).err
}
