package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/azargarov/tickpool"
	tq "github.com/azargarov/tickpool/taskqueue"
)

const maxBarWidth = 60

// stepMsg is sent by the loader after every tick.
type stepMsg struct {
	tick     uint64
	progress float64
	band     string
}

// doneMsg ends the program.
type doneMsg struct {
	elapsed time.Duration
	stats   tickpool.Stats
	level   *level
	err     error
}

type model struct {
	bar      progress.Model
	cancel   func()
	title    string
	tick     uint64
	percent  float64
	band     string
	finished *doneMsg
}

func newModel(title string, cancel func()) model {
	return model{
		bar:    progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		cancel: cancel,
		title:  title,
		band:   tq.PriorityInstant.String(),
	}
}

func (m model) Init() tea.Cmd { return nil }

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			m.cancel()
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.bar.Width = min(msg.Width-4, maxBarWidth)
	case stepMsg:
		m.tick = msg.tick
		m.percent = msg.progress
		m.band = msg.band
	case doneMsg:
		m.finished = &msg
		if msg.err == nil {
			m.percent = 1
		}
		return m, tea.Quit
	}
	return m, nil
}

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#5B8DEF"))
	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888"))
	errStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))
	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444444")).
			Padding(0, 1)
)

func (m model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Loading " + m.title))
	b.WriteString("\n\n")
	b.WriteString(m.bar.ViewAs(m.percent))
	b.WriteString("\n\n")

	switch f := m.finished; {
	case f == nil:
		b.WriteString(infoStyle.Render(fmt.Sprintf("tick %d · band %s", m.tick, m.band)))
	case f.err != nil:
		b.WriteString(errStyle.Render("loading stopped: " + f.err.Error()))
	default:
		b.WriteString(infoStyle.Render(fmt.Sprintf(
			"done in %s over %d ticks · %d jobs on %d workers · %d nav nodes",
			f.elapsed.Round(time.Millisecond), m.tick+1, f.stats.Executed, f.stats.Workers, f.level.navNodes)))
	}
	return boxStyle.Render(b.String()) + "\n"
}
