package rhythm

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"k8s.io/utils/clock"

	"github.com/robmorgan/pulse/logger"
)

const (
	// DefaultLookAhead bounds how far ahead of the clock ticks are committed.
	DefaultLookAhead = 250 * time.Millisecond

	// DefaultInterval is the polling cadence of the scheduling loop.
	DefaultInterval = 25 * time.Millisecond

	// DefaultStartDelay keeps the first tick of a fresh start out of the past.
	DefaultStartDelay = 50 * time.Millisecond

	errorBacklog = 16
)

// Metronome is the look-ahead scheduler. A coarse polling loop decides what plays next, while every tick is dated on
// an absolute timeline by accumulating exact pulse durations, so jitter in the polling cadence never turns into
// drift.
//
// Originally based on https://github.com/Deep-Symmetry/electro/blob/main/src/main/java/org/deepsymmetry/electro/Metronome.java#L449
type Metronome struct {
	mu sync.Mutex

	meter    *Meter
	sink     PlaybackSink
	observer SyncObserver

	clock    clock.WithTicker
	timeline clock.PassiveClock
	log      *logrus.Entry

	lookAhead  time.Duration
	interval   time.Duration
	startDelay time.Duration

	running   bool
	cancel    context.CancelFunc
	done      chan struct{}
	position  Position
	cursor    time.Time
	lastPulse time.Duration

	errs chan error
}

// Option configures a Metronome.
type Option func(*Metronome)

// WithClock sets the clock driving the polling loop. It is also the timeline unless WithTimeline is given.
func WithClock(c clock.WithTicker) Option {
	return func(m *Metronome) {
		m.clock = c
	}
}

// WithTimeline sets the authoritative clock ticks are dated against, typically an audio device clock.
func WithTimeline(c clock.PassiveClock) Option {
	return func(m *Metronome) {
		m.timeline = c
	}
}

// WithLookAhead sets the look-ahead window.
func WithLookAhead(d time.Duration) Option {
	return func(m *Metronome) {
		m.lookAhead = d
	}
}

// WithInterval sets the polling cadence.
func WithInterval(d time.Duration) Option {
	return func(m *Metronome) {
		m.interval = d
	}
}

// WithStartDelay sets the safety margin between Start and the first tick.
func WithStartDelay(d time.Duration) Option {
	return func(m *Metronome) {
		m.startDelay = d
	}
}

// WithLogger sets the logger.
func WithLogger(l *logrus.Entry) Option {
	return func(m *Metronome) {
		m.log = l
	}
}

// NewMetronome creates an idle metronome reading meter and emitting to sink and observer. Either may be nil.
func NewMetronome(meter *Meter, sink PlaybackSink, observer SyncObserver, opts ...Option) (*Metronome, error) {
	if meter == nil {
		return nil, errors.New("metronome needs a meter")
	}
	if sink == nil {
		sink = Sinks(nil)
	}
	if observer == nil {
		observer = Observers(nil)
	}

	m := &Metronome{
		meter:      meter,
		sink:       sink,
		observer:   observer,
		clock:      clock.RealClock{},
		lookAhead:  DefaultLookAhead,
		interval:   DefaultInterval,
		startDelay: DefaultStartDelay,
		position:   StartPosition(),
		lastPulse:  time.Minute / DefaultTempo,
		errs:       make(chan error, errorBacklog),
	}
	for _, opt := range opts {
		opt(m)
	}

	if m.timeline == nil {
		m.timeline = m.clock
	}
	if m.log == nil {
		m.log = logger.GetProjectLogger().WithField("component", "metronome")
	}
	if m.interval <= 0 {
		return nil, errors.New("polling interval must be positive")
	}
	if m.lookAhead <= m.interval {
		return nil, errors.New("look-ahead window must be longer than the polling interval")
	}
	if m.startDelay < 0 {
		return nil, errors.New("start delay must not be negative")
	}

	return m, nil
}

// Errors delivers configuration errors met while scheduling. Errors are dropped when nobody keeps up with the
// channel.
func (m *Metronome) Errors() <-chan error {
	return m.errs
}

// Start resets the counters, schedules the first batch of ticks and installs the polling loop. Calling Start on a
// running metronome does nothing.
func (m *Metronome) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return
	}

	m.running = true
	m.position = StartPosition()
	m.cursor = m.timeline.Now().Add(m.startDelay)

	m.log.WithFields(logrus.Fields{
		"tempo":     m.meter.Tempo(),
		"meter":     m.meter.Spec().String(),
		"cursor":    m.cursor,
		"lookahead": m.lookAhead,
	}).Info("Metronome started")

	m.schedule()

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.done = make(chan struct{})

	// the ticker is created here so that it exists before Start returns
	t := m.clock.NewTicker(m.interval)
	go m.run(ctx, t, m.done)
}

// Stop cancels the polling loop and waits for it to exit. Ticks already handed to sinks are not retracted. Calling
// Stop on an idle metronome does nothing.
func (m *Metronome) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	m.cancel()
	done := m.done
	m.mu.Unlock()

	<-done
	m.log.Info("Metronome stopped")
}

// Running reports whether the metronome is between Start and Stop.
func (m *Metronome) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Snapshot returns the current counters and timeline cursor.
func (m *Metronome) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := m.meter.State()
	pulse, err := st.PulseDuration()
	if err != nil {
		pulse = m.lastPulse
	}

	return Snapshot{
		Running:  m.running,
		Position: m.position,
		Cursor:   m.cursor,
		Mode:     st.Mode,
		Tempo:    st.Tempo,
		Pulse:    pulse,
	}
}

func (m *Metronome) run(ctx context.Context, t clock.Ticker, done chan struct{}) {
	defer close(done)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C():
			m.poll()
		}
	}
}

// poll runs one iteration of the scheduling loop.
func (m *Metronome) poll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		m.schedule()
	}
}

// schedule commits every tick whose time falls inside the look-ahead window. The caller holds m.mu.
func (m *Metronome) schedule() {
	horizon := m.timeline.Now().Add(m.lookAhead)

	for m.cursor.Before(horizon) {
		st := m.meter.State()

		tick, err := Generate(m.cursor, m.position, st)
		if err != nil {
			m.skip(err)
			m.cursor = m.cursor.Add(m.lastPulse)
			continue
		}

		m.emit(tick)

		m.position = m.position.Next(st)
		m.lastPulse = tick.Pulse
		m.cursor = m.cursor.Add(tick.Pulse)
	}
}

func (m *Metronome) emit(tick Tick) {
	for _, ev := range tick.Events {
		m.sink.Schedule(ev.Sample, tick.At.Add(ev.Offset), ev.Gain)
	}
	m.observer.OnTick(tick.Accent, tick.Pulse, tick.At)

	if m.log.Logger.IsLevelEnabled(logrus.TraceLevel) {
		m.log.WithFields(logrus.Fields{
			"at":     tick.At,
			"accent": tick.Accent,
			"beat":   m.position.Beat,
			"clave":  m.position.ClaveStep,
			"events": len(tick.Events),
		}).Trace("Tick scheduled")
	}
}

func (m *Metronome) skip(err error) {
	m.log.WithField("at", m.cursor).WithError(err).Warn("Skipping tick")

	select {
	case m.errs <- err:
	default:
		m.log.WithError(err).Debug("Error channel full, dropping error")
	}
}
