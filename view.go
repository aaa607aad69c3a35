package main

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/robmorgan/pulse/engine/scale"
	"github.com/robmorgan/pulse/fixture"
)

var (
	spinnerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("63"))
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	helpStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Margin(1, 0)
	dimColor     = lipgloss.Color("236")
	panelStyle   = lipgloss.NewStyle().Width(barCells*2).Height(3).Border(lipgloss.RoundedBorder())
	appStyle     = lipgloss.NewStyle().Margin(1, 2, 0, 2)
)

func (m model) View() string {
	if m.quitting {
		return ""
	}

	s := m.status
	var b strings.Builder

	b.WriteString(titleStyle.Render("PULSE") + "\n\n")
	fmt.Fprintf(&b, "%s %d    %s %s    %s %s\n\n",
		labelStyle.Render("BPM:"), s.Snapshot.Tempo,
		labelStyle.Render("Meter:"), s.Preset.Label,
		labelStyle.Render("Subdivisions:"), s.Subdivisions)

	if s.Snapshot.Running {
		fmt.Fprintf(&b, "%s running    %s %d\n\n", m.spinner.View(), labelStyle.Render("Beats:"), m.beats)
	} else {
		b.WriteString("■ stopped\n\n")
	}

	b.WriteString(m.flashPanel() + "\n")
	b.WriteString(m.lightBar() + "\n\n")
	b.WriteString(m.progress.ViewAs(m.pulseProgress()) + "\n")

	if m.lastErr != nil {
		b.WriteString("\n" + errorStyle.Render(m.lastErr.Error()) + "\n")
	}

	b.WriteString(helpStyle.Render("(space) start/stop  ([,]) BPM -/+1  ({,}) BPM -/+10  (m) meter\n(e)ighth (t)riplet (s)wing  (q) quit"))

	return appStyle.Render(b.String())
}

// beatColor is the colour of the beat being heard, or the dim colour when there is none.
func (m model) beatColor() lipgloss.Color {
	switch {
	case m.last == nil:
		return dimColor
	case m.last.accent:
		return m.accentColor
	default:
		return m.pulseColor
	}
}

func (m model) flashing() bool {
	return m.last != nil && m.now.Sub(m.last.at) < m.flash
}

func (m model) flashPanel() string {
	color := dimColor
	if m.flashing() {
		color = m.beatColor()
	}
	return panelStyle.Copy().BorderForeground(color).Background(color).Render("")
}

func (m model) pulseProgress() float64 {
	if m.last == nil {
		return 0
	}
	return scale.ToUnitClamp(0, float64(m.last.pulse))(float64(m.now.Sub(m.last.at)))
}

// lightBar mirrors the bar fixtures: a dot sweeping across the cells once per pulse.
func (m model) lightBar() string {
	if m.last == nil {
		return lipgloss.NewStyle().Foreground(dimColor).Render(strings.Repeat("░░", barCells))
	}

	pos := fixture.BarPosition(barCells, m.beats, m.pulseProgress())
	lit := lipgloss.NewStyle().Foreground(m.beatColor())
	dim := lipgloss.NewStyle().Foreground(dimColor)

	var b strings.Builder
	for cell := 0; cell < barCells; cell++ {
		switch level := 1 - math.Abs(float64(cell)-pos); {
		case level > 0.5:
			b.WriteString(lit.Render("██"))
		case level > 0:
			b.WriteString(lit.Render("▒▒"))
		default:
			b.WriteString(dim.Render("░░"))
		}
	}
	return b.String()
}
