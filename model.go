package main

import (
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/robmorgan/pulse/config"
	"github.com/robmorgan/pulse/control"
)

const (
	frameRate = 25 * time.Millisecond
	barCells  = 16
)

type model struct {
	console *control.Console
	feed    *beatFeed
	errs    <-chan error

	spinner  spinner.Model
	progress progress.Model

	accentColor lipgloss.Color
	pulseColor  lipgloss.Color
	flash       time.Duration

	status  control.Status
	now     time.Time
	last    *beat
	beats   int
	lastErr error

	quitting bool
}

func newModel(console *control.Console, feed *beatFeed, errs <-chan error, lighting config.LightingConfig) model {
	s := spinner.New()
	s.Style = spinnerStyle

	p := progress.New(
		progress.WithDefaultGradient(),
		progress.WithWidth(barCells*2),
		progress.WithoutPercentage(),
	)

	return model{
		console:     console,
		feed:        feed,
		errs:        errs,
		spinner:     s,
		progress:    p,
		accentColor: lipgloss.Color(lighting.AccentColor),
		pulseColor:  lipgloss.Color(lighting.PulseColor),
		flash:       lighting.Flash.Std(),
		status:      console.Status(),
		now:         feed.Now(),
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(tickCmd(), m.spinner.Tick)
}

type tickMsg time.Time

func tickCmd() tea.Cmd {
	return tea.Tick(frameRate, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}
