// Package tui shows a running simulation in the terminal.
package tui

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/micrenda/circlesim-sub000/internal/sim"
)

const (
	barWidth = 40
	maxTrail = 4000
)

type Model struct {
	label    string
	duration float64
	cancel   context.CancelFunc

	last         ProgressMsg
	started      bool
	interactions int
	trail        [][2]float64
	done         *DoneMsg
	quitting     bool

	width int
}

// NewModel returns a progress view for a run of the given duration. cancel
// is called when the user quits.
func NewModel(label string, duration float64, cancel context.CancelFunc) Model {
	return Model{label: label, duration: duration, cancel: cancel, width: 80}
}

func (m Model) Init() tea.Cmd { return nil }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			m.quitting = true
			if m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
	case ProgressMsg:
		m.last = msg
		m.started = true
		if msg.Event == EventNodeEnter {
			m.interactions++
		}
		m.trail = append(m.trail, [2]float64{msg.Position.X, msg.Position.Y})
		if len(m.trail) > maxTrail {
			m.trail = append(m.trail[:0], m.trail[len(m.trail)/2:]...)
		}
	case DoneMsg:
		m.done = &msg
		return m, tea.Quit
	}
	return m, nil
}

// Done returns the final message, or nil while the run is going.
func (m Model) Done() *DoneMsg { return m.done }

func (m Model) progress() float64 {
	if m.done != nil && m.done.Err == nil {
		return 1
	}
	if m.duration <= 0 {
		return 0
	}
	return math.Min(1, math.Max(0, m.last.Time/m.duration))
}

func (m Model) bar() string {
	frac := m.progress()
	filled := int(frac * barWidth)
	return green.Render(strings.Repeat("█", filled)) +
		dimmer.Render(strings.Repeat("░", barWidth-filled)) +
		white.Render(fmt.Sprintf(" %5.1f%%", 100*frac))
}

func (m Model) regime() string {
	if !m.started {
		return dim.Render("waiting")
	}
	if m.last.Regime == sim.Laser {
		return magenta.Render(fmt.Sprintf("LASER  node %d  interaction #%d", m.last.Node, m.last.Interaction))
	}
	return cyan.Render("FREE")
}

func row(label, value string) string {
	return dim.Render(fmt.Sprintf("%-12s", label)) + white.Render(value)
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(title.Render("circlesim  " + m.label))
	b.WriteString("\n\n")
	b.WriteString(m.bar())
	b.WriteString("\n\n")

	p := m.last
	stats := []string{
		row("regime", m.regime()),
		row("time", fmt.Sprintf("%.4g / %.4g a.u.", p.Time, m.duration)),
		row("position", fmt.Sprintf("(%.4g, %.4g, %.4g)", p.Position.X, p.Position.Y, p.Position.Z)),
		row("|p|", fmt.Sprintf("%.6g", r3.Norm(p.Momentum))),
		row("energy", fmt.Sprintf("%.6g Ha", p.Energy)),
		row("interactions", fmt.Sprintf("%d", m.interactions)),
	}

	side := lipgloss.JoinVertical(lipgloss.Left, stats...)
	if len(m.trail) > 1 {
		pl := newPlot(24, 8)
		pl.trace(m.trail)
		side = lipgloss.JoinHorizontal(lipgloss.Top, panel.Render(side), "  ",
			panel.Render(yellow.Render(pl.String())+"\n"+dimmer.Render("x-y")))
	} else {
		side = panel.Render(side)
	}
	b.WriteString(side)
	b.WriteString("\n")

	switch {
	case m.done != nil && m.done.Err != nil:
		b.WriteString(red.Render("failed: " + m.done.Err.Error()))
	case m.done != nil && m.done.Result != nil:
		res := m.done.Result
		b.WriteString(green.Render(fmt.Sprintf("done in %s  %s", res.Elapsed.Round(time.Millisecond), res.Stats)))
	case m.quitting:
		b.WriteString(yellow.Render("stopping"))
	default:
		b.WriteString(dimmer.Render("q quit"))
	}
	b.WriteString("\n")
	return b.String()
}
