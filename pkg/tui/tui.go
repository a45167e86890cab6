// Package tui is the interactive dozeprobe screen: the status area, the
// elapsed time line and the acquire/release keys.
package tui

import (
	"context"
	stdErrors "errors"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/devlibx/gox-dozeprobe/pkg/controller"
	"github.com/devlibx/gox-dozeprobe/pkg/display"
)

var (
	titleStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("57")).Bold(true)
	elapsedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("229")).Background(lipgloss.Color("57")).Bold(true).Padding(0, 1)
	helpStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("229")).Background(lipgloss.Color("160")).Padding(0, 1)

	statusStyles = map[display.Severity]lipgloss.Style{
		display.Neutral: lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
		display.Info:    lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		display.Error:   lipgloss.NewStyle().Foreground(lipgloss.Color("160")).Bold(true),
	}
)

type keyMap struct {
	Acquire key.Binding
	Release key.Binding
	Quit    key.Binding
}

var keys = keyMap{
	Acquire: key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "acquire")),
	Release: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "release")),
	Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

// Messages delivered into the program by Sink.
type (
	statusSetMsg struct {
		text     string
		severity display.Severity
	}
	statusAppendMsg struct {
		text     string
		severity display.Severity
	}
	elapsedMsg string
)

// actionDoneMsg reports the end of an acquire or release started by a key.
type actionDoneMsg struct {
	action string
	err    error
}

type Model struct {
	ctx        context.Context
	controller controller.Controller

	status   string
	severity display.Severity
	elapsed  string
	busy     string
	err      string
	width    int
}

// NewModel returns the screen in its released state.
func NewModel(ctx context.Context, ctrl controller.Controller) Model {
	return Model{
		ctx:        ctx,
		controller: ctrl,
		status:     controller.MessageReleased,
		severity:   display.Neutral,
		elapsed:    "0:00",
	}
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case statusSetMsg:
		m.status, m.severity = msg.text, msg.severity
		return m, nil

	case statusAppendMsg:
		m.status, m.severity = display.Join(m.status, msg.text), msg.severity
		return m, nil

	case elapsedMsg:
		m.elapsed = string(msg)
		return m, nil

	case actionDoneMsg:
		m.busy = ""
		m.err = ""
		// the controller already put the instructional message on screen
		if msg.err != nil && !stdErrors.Is(msg.err, controller.ErrPermissionRequired) {
			m.err = msg.action + " failed: " + msg.err.Error()
		}
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			return m, tea.Quit
		case m.busy != "":
			return m, nil
		case key.Matches(msg, keys.Acquire):
			m.busy = "acquire"
			return m, m.run("acquire", m.controller.Acquire)
		case key.Matches(msg, keys.Release):
			m.busy = "release"
			return m, m.run("release", m.controller.Release)
		}
	}
	return m, nil
}

// run calls fn off the update loop; acquire talks to D-Bus and release waits
// for the probe to stop.
func (m Model) run(action string, fn func(context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		return actionDoneMsg{action: action, err: fn(ctx)}
	}
}

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("dozeprobe") + "\n\n")

	style := statusStyles[m.severity]
	if m.width > 4 {
		style = style.Width(m.width - 4)
	}
	b.WriteString(style.Render(m.status) + "\n\n")

	b.WriteString(elapsedStyle.Render("Elapsed "+m.elapsed) + "\n")

	if m.err != "" {
		b.WriteString("\n" + errorStyle.Render(m.err) + "\n")
	}

	help := "\n  " + strings.Join([]string{
		helpEntry(keys.Acquire), helpEntry(keys.Release), helpEntry(keys.Quit),
	}, " • ")
	if m.busy != "" {
		help += "  (" + m.busy + "...)"
	}
	b.WriteString(helpStyle.Render(help) + "\n")
	return b.String()
}

func helpEntry(b key.Binding) string {
	return b.Help().Key + ": " + b.Help().Desc
}

// Run shows the screen until the user quits or ctx ends. sink is attached to
// the program before it starts.
func Run(ctx context.Context, model Model, sink *Sink) error {
	p := tea.NewProgram(model, tea.WithContext(ctx), tea.WithAltScreen())
	sink.Attach(p)
	defer sink.Attach(nil)

	_, err := p.Run()
	if err != nil && stdErrors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
