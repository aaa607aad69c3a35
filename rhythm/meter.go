package rhythm

import (
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"golang.org/x/exp/slices"

	"github.com/robmorgan/pulse/engine/scale"
)

const (
	// MinTempo and MaxTempo bound every tempo the meter will accept. Out of range values are clamped.
	MinTempo = 40
	MaxTempo = 320

	DefaultTempo = 120

	// ClaveSteps is the length of a clave cycle in 16th-note pulses.
	ClaveSteps = 16
)

// Mode selects how pulses are laid out and accented.
type Mode int

const (
	Standard Mode = iota
	Clave
)

func (m Mode) String() string {
	switch m {
	case Standard:
		return "standard"
	case Clave:
		return "clave"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ClavePattern names one of the fixed 16-step son clave patterns.
type ClavePattern string

const (
	Son32 ClavePattern = "3-2"
	Son23 ClavePattern = "2-3"
)

var claveSteps = map[ClavePattern][]int{
	Son32: {1, 4, 7, 11, 13},
	Son23: {3, 5, 9, 12, 15},
}

// Steps returns the 1-based steps of the pattern that carry an accent.
func (p ClavePattern) Steps() []int {
	return slices.Clone(claveSteps[p])
}

// Accents reports whether the 1-based step is accented by the pattern.
func (p ClavePattern) Accents(step int) bool {
	return slices.Contains(claveSteps[p], step)
}

func (p ClavePattern) known() bool {
	_, ok := claveSteps[p]
	return ok
}

// MeterSpec describes the rhythmic structure requested by SetMeter.
type MeterSpec struct {
	Mode        Mode
	Denominator int
	Grouping    []int
	Clave       ClavePattern
}

// StandardMeter describes a meter made of beat groups, each group length counted in pulses of the denominator note.
func StandardMeter(denominator int, grouping ...int) MeterSpec {
	return MeterSpec{Mode: Standard, Denominator: denominator, Grouping: grouping}
}

// ClaveMeter describes a 16-step clave cycle.
func ClaveMeter(p ClavePattern) MeterSpec {
	return MeterSpec{Mode: Clave, Clave: p}
}

func (s MeterSpec) String() string {
	if s.Mode == Clave {
		return "clave " + string(s.Clave)
	}

	groups := make([]string, len(s.Grouping))
	total := 0
	for i, g := range s.Grouping {
		groups[i] = fmt.Sprint(g)
		total += g
	}
	return fmt.Sprintf("%d/%d (%s)", total, s.Denominator, strings.Join(groups, "+"))
}

func (s MeterSpec) validate() error {
	switch s.Mode {
	case Clave:
		if !s.Clave.known() {
			return InvalidMeterError{Spec: s, Reason: fmt.Sprintf("unknown clave pattern %q", s.Clave)}
		}
	case Standard:
		if s.Denominator < 1 {
			return InvalidMeterError{Spec: s, Reason: "denominator must be positive"}
		}
		if len(s.Grouping) == 0 {
			return InvalidMeterError{Spec: s, Reason: "grouping must not be empty"}
		}
		for _, g := range s.Grouping {
			if g < 1 {
				return InvalidMeterError{Spec: s, Reason: "every beat group must be at least one pulse long"}
			}
		}
	default:
		return InvalidMeterError{Spec: s, Reason: "unknown mode"}
	}
	return nil
}

// accentPositions returns the 0-based pulse index that starts each beat group.
func accentPositions(grouping []int) []int {
	out := []int{0}
	sum := 0
	for _, g := range grouping[:len(grouping)-1] {
		sum += g
		out = append(out, sum)
	}
	return out
}

// State is an immutable copy of everything the pattern generator needs to compute a tick.
type State struct {
	Mode         Mode
	Tempo        int
	Denominator  int
	Grouping     []int
	Accents      []int
	Clave        ClavePattern
	Subdivisions Subdivision
}

// CycleLength returns the number of pulses in one rhythmic cycle.
func (s State) CycleLength() int {
	if s.Mode == Clave {
		return ClaveSteps
	}
	total := 0
	for _, g := range s.Grouping {
		total += g
	}
	return total
}

// PulseDuration returns the length of one pulse at the state's tempo.
func (s State) PulseDuration() (time.Duration, error) {
	if err := s.validate(); err != nil {
		return 0, err
	}
	beat := float64(time.Minute) / float64(s.Tempo)
	if s.Mode == Clave {
		return time.Duration(beat / 4), nil
	}
	return time.Duration(beat * 4 / float64(s.Denominator)), nil
}

func (s State) validate() error {
	if s.Tempo < MinTempo || s.Tempo > MaxTempo {
		return ConfigurationError{Reason: fmt.Sprintf("tempo %d outside [%d,%d]", s.Tempo, MinTempo, MaxTempo)}
	}
	switch s.Mode {
	case Clave:
		if !s.Clave.known() {
			return ConfigurationError{Reason: fmt.Sprintf("unknown clave pattern %q", s.Clave)}
		}
	case Standard:
		if s.Denominator < 1 {
			return ConfigurationError{Reason: "denominator must be positive"}
		}
		if len(s.Grouping) == 0 || len(s.Accents) == 0 {
			return ConfigurationError{Reason: "empty grouping"}
		}
		for _, g := range s.Grouping {
			if g < 1 {
				return ConfigurationError{Reason: "non-positive beat group"}
			}
		}
	default:
		return ConfigurationError{Reason: "unknown mode"}
	}
	return nil
}

// Meter holds the tempo and rhythmic structure of one metronome. It is safe for concurrent use: configuration
// commands may arrive from a UI goroutine while the scheduler reads State.
type Meter struct {
	mu           sync.RWMutex
	tempo        int
	mode         Mode
	denominator  int
	grouping     []int
	accents      []int
	clave        ClavePattern
	subdivisions Subdivision
}

// NewMeter creates a Meter at the default tempo in 4/4 with no subdivisions.
func NewMeter() *Meter {
	return &Meter{
		tempo:       DefaultTempo,
		mode:        Standard,
		denominator: 4,
		grouping:    []int{4},
		accents:     []int{0},
	}
}

// SetTempo clamps bpm to [MinTempo,MaxTempo], rounds it to the nearest integer and returns the applied tempo.
func (m *Meter) SetTempo(bpm float64) int {
	if math.IsNaN(bpm) {
		bpm = DefaultTempo
	}
	tempo := int(math.Round(scale.Limit(bpm, MinTempo, MaxTempo)))

	m.mu.Lock()
	defer m.mu.Unlock()
	m.tempo = tempo
	return tempo
}

// Tempo returns the current tempo in beats per minute.
func (m *Meter) Tempo() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tempo
}

// SetMeter replaces the rhythmic structure. Switching to clave mode forces a single 16 pulse group and ignores the
// denominator.
func (m *Meter) SetMeter(spec MeterSpec) error {
	if err := spec.validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.mode = spec.Mode
	if spec.Mode == Clave {
		m.grouping = []int{ClaveSteps}
		m.clave = spec.Clave
	} else {
		m.denominator = spec.Denominator
		m.grouping = slices.Clone(spec.Grouping)
		m.clave = ""
	}
	m.accents = accentPositions(m.grouping)
	return nil
}

// Spec returns the meter currently in effect.
func (m *Meter) Spec() MeterSpec {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.mode == Clave {
		return ClaveMeter(m.clave)
	}
	return StandardMeter(m.denominator, slices.Clone(m.grouping)...)
}

// AccentPositions returns the pulse indexes that start a beat group.
func (m *Meter) AccentPositions() []int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.accents)
}

// SetSubdivisions replaces the active subdivision set. Every combination is legal.
func (m *Meter) SetSubdivisions(s Subdivision) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subdivisions = s & allSubdivisions
}

// ToggleSubdivision flips the given subdivision and returns the resulting set.
func (m *Meter) ToggleSubdivision(k Subdivision) Subdivision {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subdivisions = (m.subdivisions ^ k) & allSubdivisions
	return m.subdivisions
}

// Subdivisions returns the active subdivision set.
func (m *Meter) Subdivisions() Subdivision {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.subdivisions
}

// PulseDuration returns the current pulse length, or zero if the meter has never been configured.
func (m *Meter) PulseDuration() time.Duration {
	d, err := m.State().PulseDuration()
	if err != nil {
		return 0
	}
	return d
}

// State returns a copy of the meter that later mutations cannot touch.
func (m *Meter) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return State{
		Mode:         m.mode,
		Tempo:        m.tempo,
		Denominator:  m.denominator,
		Grouping:     slices.Clone(m.grouping),
		Accents:      slices.Clone(m.accents),
		Clave:        m.clave,
		Subdivisions: m.subdivisions,
	}
}
