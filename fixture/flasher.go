package fixture

import (
	"math"
	"sync"
	"time"

	"github.com/fogleman/ease"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/sirupsen/logrus"
	"k8s.io/utils/clock"

	"github.com/robmorgan/pulse/config"
	"github.com/robmorgan/pulse/engine/scale"
	"github.com/robmorgan/pulse/logger"
	"github.com/robmorgan/pulse/utils"
)

type beat struct {
	accent bool
	pulse  time.Duration
	at     time.Time
}

// Flasher turns metronome ticks into light. Flash fixtures blink in the accent or pulse colour on every tick and
// fade out over the flash length; bar fixtures sweep a dot across their cells, changing direction on every tick.
//
// Ticks are announced ahead of time, so they are queued and only shown once the timeline reaches them.
type Flasher struct {
	mu sync.Mutex

	manager  Manager
	timeline clock.PassiveClock
	log      *logrus.Entry

	accent colorful.Color
	pulse  colorful.Color
	flash  time.Duration

	pending []beat
	current *beat
	count   int
}

// NewFlasher creates a flasher rendering into manager's fixtures against the timeline the ticks are dated on.
func NewFlasher(manager Manager, timeline clock.PassiveClock, cfg config.LightingConfig) (*Flasher, error) {
	accent, err := utils.ParseColor(cfg.AccentColor)
	if err != nil {
		return nil, err
	}
	pulse, err := utils.ParseColor(cfg.PulseColor)
	if err != nil {
		return nil, err
	}

	return &Flasher{
		manager:  manager,
		timeline: timeline,
		log:      logger.GetProjectLogger().WithField("component", "flasher"),
		accent:   accent,
		pulse:    pulse,
		flash:    cfg.Flash.Std(),
	}, nil
}

// OnTick queues a tick for display. Ticks the timeline has already reached are promoted first, so the queue never
// holds more than the look-ahead window even when nothing renders.
func (f *Flasher) OnTick(accent bool, pulse time.Duration, at time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.advance(f.timeline.Now())
	f.pending = append(f.pending, beat{accent: accent, pulse: pulse, at: at})
}

// Render paints the fixtures for the current timeline instant.
func (f *Flasher) Render() error {
	return f.renderAt(f.timeline.Now())
}

func (f *Flasher) renderAt(now time.Time) error {
	f.mu.Lock()
	f.advance(now)
	current := f.current
	count := f.count
	f.mu.Unlock()

	ops := []dmxOperation{}
	for _, fix := range f.manager.GetByRole(config.RoleFlash) {
		ops = append(ops, f.flashOps(fix, current, now)...)
	}
	for _, fix := range f.manager.GetByRole(config.RoleBar) {
		ops = append(ops, f.barOps(fix, current, count, now)...)
	}

	return f.manager.SetDMXState(ops...)
}

// advance promotes every queued tick the timeline has reached. The caller holds f.mu.
func (f *Flasher) advance(now time.Time) {
	i := 0
	for ; i < len(f.pending) && !f.pending[i].at.After(now); i++ {
		b := f.pending[i]
		f.current = &b
		f.count++

		if f.log.Logger.IsLevelEnabled(logrus.TraceLevel) {
			f.log.WithField("color", utils.TermString(f.color(b))).Trace("Beat")
		}
	}
	f.pending = f.pending[i:]
}

// stale reports whether b is too old to show, which is how a stopped metronome goes dark.
func stale(b *beat, now time.Time) bool {
	return b == nil || now.Sub(b.at) > 2*b.pulse
}

func (f *Flasher) color(b beat) colorful.Color {
	if b.accent {
		return f.accent
	}
	return f.pulse
}

func (f *Flasher) flashOps(fix *Fixture, b *beat, now time.Time) []dmxOperation {
	level := 0.0
	if !stale(b, now) && f.flash > 0 {
		if elapsed := now.Sub(b.at); elapsed < f.flash {
			level = 1 - ease.OutCubic(float64(elapsed)/float64(f.flash))
		}
	}

	c := f.pulse
	if b != nil {
		c = f.color(*b)
	}

	ops := fix.Master(level)
	for cell := 1; cell <= fix.Cells(); cell++ {
		ops = append(ops, fix.Paint(cell, c, level)...)
	}
	return ops
}

// barOps lights the cells around a dot that eases from one end of the bar to the other over each pulse.
func (f *Flasher) barOps(fix *Fixture, b *beat, count int, now time.Time) []dmxOperation {
	if stale(b, now) {
		return append(fix.Master(0), fix.Blackout()...)
	}

	pos := BarPosition(fix.Cells(), count, scale.ToUnitClamp(0, float64(b.pulse))(float64(now.Sub(b.at))))
	c := f.color(*b)

	ops := fix.Master(1)
	for cell := 1; cell <= fix.Cells(); cell++ {
		level := math.Max(0, 1-math.Abs(float64(cell-1)-pos))
		ops = append(ops, fix.Paint(cell, c, level)...)
	}
	return ops
}

// BarPosition returns the 0-based dot position for progress through the count-th tick. Odd ticks run left to right.
func BarPosition(cells, count int, progress float64) float64 {
	span := float64(cells - 1)
	pos := ease.InOutSine(progress) * span
	if count%2 == 0 {
		pos = span - pos
	}
	return pos
}
