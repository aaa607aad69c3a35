package control

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/robmorgan/pulse/config"
	"github.com/robmorgan/pulse/logger"
	"github.com/robmorgan/pulse/rhythm"
)

// Commands is the command surface UI adapters drive. The core never looks at UI state itself.
type Commands interface {
	SetTempo(bpm int) int
	SetMeter(preset string) error
	ToggleSubdivision(k rhythm.Subdivision) rhythm.Subdivision
	Start()
	Stop()
}

// Status is what a UI needs to render the console.
type Status struct {
	Snapshot     rhythm.Snapshot
	Preset       config.Preset
	Subdivisions rhythm.Subdivision
}

// Console applies commands to one meter and its metronome.
type Console struct {
	meter     *rhythm.Meter
	metronome *rhythm.Metronome
	log       *logrus.Entry

	mu     sync.Mutex
	preset config.Preset
}

// NewConsole wraps meter and metronome and selects the initial preset.
func NewConsole(meter *rhythm.Meter, metronome *rhythm.Metronome, preset string) (*Console, error) {
	c := &Console{
		meter:     meter,
		metronome: metronome,
		log:       logger.GetProjectLogger().WithField("component", "console"),
	}
	if err := c.SetMeter(preset); err != nil {
		return nil, err
	}
	return c, nil
}

// SetTempo applies bpm, clamped to the supported range, and returns the tempo in effect.
func (c *Console) SetTempo(bpm int) int {
	applied := c.meter.SetTempo(float64(bpm))
	c.log.WithFields(logrus.Fields{"requested": bpm, "tempo": applied}).Debug("Tempo set")
	return applied
}

// NudgeTempo moves the tempo by delta beats per minute.
func (c *Console) NudgeTempo(delta int) int {
	return c.SetTempo(c.meter.Tempo() + delta)
}

// SetMeter selects a preset from the preset table.
func (c *Console) SetMeter(id string) error {
	p, err := config.LookupPreset(id)
	if err != nil {
		return err
	}
	if err := c.meter.SetMeter(p.Spec); err != nil {
		return err
	}

	c.mu.Lock()
	c.preset = p
	c.mu.Unlock()

	c.log.WithFields(logrus.Fields{"preset": p.ID, "meter": p.Spec.String()}).Debug("Meter set")
	return nil
}

// CycleMeter selects the preset after the current one.
func (c *Console) CycleMeter() (config.Preset, error) {
	next := config.NextPreset(c.Preset().ID)
	if err := c.SetMeter(next.ID); err != nil {
		return config.Preset{}, err
	}
	return next, nil
}

// Preset returns the preset in effect.
func (c *Console) Preset() config.Preset {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.preset
}

// ToggleSubdivision flips one subdivision and returns the active set.
func (c *Console) ToggleSubdivision(k rhythm.Subdivision) rhythm.Subdivision {
	set := c.meter.ToggleSubdivision(k)
	c.log.WithField("subdivisions", set.String()).Debug("Subdivisions changed")
	return set
}

func (c *Console) Start() {
	c.metronome.Start()
}

func (c *Console) Stop() {
	c.metronome.Stop()
}

// TogglePlayback starts an idle metronome or stops a running one and reports whether it is now running.
func (c *Console) TogglePlayback() bool {
	if c.metronome.Running() {
		c.metronome.Stop()
		return false
	}
	c.metronome.Start()
	return true
}

// Status returns the state a UI renders.
func (c *Console) Status() Status {
	return Status{
		Snapshot:     c.metronome.Snapshot(),
		Preset:       c.Preset(),
		Subdivisions: c.meter.Subdivisions(),
	}
}
