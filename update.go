package main

import (
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/robmorgan/pulse/rhythm"
)

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case " ":
			m.console.TogglePlayback()
		case "[":
			m.console.NudgeTempo(-1)
		case "]":
			m.console.NudgeTempo(1)
		case "{":
			m.console.NudgeTempo(-10)
		case "}":
			m.console.NudgeTempo(10)
		case "m":
			if _, err := m.console.CycleMeter(); err != nil {
				m.lastErr = err
			}
		case "e":
			m.console.ToggleSubdivision(rhythm.Eighth)
		case "t":
			m.console.ToggleSubdivision(rhythm.Triplet)
		case "s":
			m.console.ToggleSubdivision(rhythm.Swing)
		case "q", "ctrl+c":
			m.quitting = true
			m.console.Stop()
			return m, tea.Quit
		}
		m.status = m.console.Status()
		return m, nil
	case tickMsg:
		m = m.advance()
		return m, tickCmd()
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// advance catches the model up with the timeline.
func (m model) advance() model {
	m.now = m.feed.Now()
	for _, b := range m.feed.Due(m.now) {
		b := b
		m.last = &b
		m.beats++
	}

	select {
	case err := <-m.errs:
		m.lastErr = err
	default:
	}

	m.status = m.console.Status()
	if !m.status.Snapshot.Running {
		m.last = nil
	}
	return m
}
