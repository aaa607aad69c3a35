package rhythm

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/exp/slices"
)

// Subdivision is a set of secondary sounds layered between primary pulses. The flags combine freely.
type Subdivision uint8

const (
	Eighth Subdivision = 1 << iota
	Triplet
	Swing

	allSubdivisions = Eighth | Triplet | Swing
)

// Has reports whether every flag in k is active.
func (s Subdivision) Has(k Subdivision) bool {
	return k != 0 && s&k == k
}

func (s Subdivision) String() string {
	names := []string{}
	if s.Has(Eighth) {
		names = append(names, "eighth")
	}
	if s.Has(Triplet) {
		names = append(names, "triplet")
	}
	if s.Has(Swing) {
		names = append(names, "swing")
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, "+")
}

// ParseSubdivision maps a subdivision name to its flag.
func ParseSubdivision(name string) (Subdivision, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "eighth", "8th":
		return Eighth, nil
	case "triplet":
		return Triplet, nil
	case "swing":
		return Swing, nil
	}
	return 0, fmt.Errorf("unknown subdivision %q", name)
}

// SampleID selects which sound a sub-event plays.
type SampleID int

const (
	AccentSample SampleID = iota
	PulseSample
	SubSample
)

// SampleIDs lists every sample a sink may be asked to play.
var SampleIDs = []SampleID{AccentSample, PulseSample, SubSample}

func (id SampleID) String() string {
	switch id {
	case AccentSample:
		return "accent"
	case PulseSample:
		return "pulse"
	case SubSample:
		return "sub"
	default:
		return fmt.Sprintf("sample(%d)", int(id))
	}
}

const (
	accentGain  = 1.0
	pulseGain   = 0.9
	subGain     = 0.8
	swingGain   = 0.9
	claveGain   = 1.0
	primaryStep = 0
)

// SubEvent is one sound belonging to a tick, offset from the tick's own time.
type SubEvent struct {
	Offset time.Duration
	Gain   float64
	Sample SampleID
}

// Tick is the content of one pulse, dated on the absolute timeline.
type Tick struct {
	At     time.Time
	Accent bool
	Pulse  time.Duration
	Events []SubEvent
}

// Position holds the scheduler's counters. Beat is 0-based and wraps at the cycle length, ClaveStep is 1-based and
// wraps within 1..16.
type Position struct {
	Beat      int
	ClaveStep int
}

// StartPosition is the position every fresh start begins from.
func StartPosition() Position {
	return Position{Beat: 0, ClaveStep: 1}
}

// Next returns the position following p under st.
func (p Position) Next(st State) Position {
	if st.Mode == Clave {
		p.ClaveStep = claveStep(p.ClaveStep)%ClaveSteps + 1
		return p
	}
	if n := st.CycleLength(); n > 0 {
		p.Beat = (p.Beat%n + 1) % n
	} else {
		p.Beat = 0
	}
	return p
}

func claveStep(step int) int {
	if step < 1 || step > ClaveSteps {
		return 1
	}
	return step
}

// Generate computes the tick for pos at the absolute time at. It does not mutate anything.
func Generate(at time.Time, pos Position, st State) (Tick, error) {
	pulse, err := st.PulseDuration()
	if err != nil {
		return Tick{}, err
	}

	tick := Tick{At: at, Pulse: pulse}

	if st.Mode == Clave {
		tick.Accent = st.Clave.Accents(claveStep(pos.ClaveStep))
		if tick.Accent {
			tick.Events = []SubEvent{{Offset: primaryStep, Gain: claveGain, Sample: AccentSample}}
		}
		return tick, nil
	}

	beat := pos.Beat % st.CycleLength()
	tick.Accent = slices.Contains(st.Accents, beat)

	primary := SubEvent{Offset: primaryStep, Gain: pulseGain, Sample: PulseSample}
	if tick.Accent {
		primary = SubEvent{Offset: primaryStep, Gain: accentGain, Sample: AccentSample}
	}
	tick.Events = append(tick.Events, primary)

	if st.Subdivisions.Has(Eighth) {
		tick.Events = append(tick.Events, SubEvent{Offset: pulse / 2, Gain: subGain, Sample: SubSample})
	}
	if st.Subdivisions.Has(Triplet) {
		tick.Events = append(tick.Events,
			SubEvent{Offset: pulse / 3, Gain: subGain, Sample: SubSample},
			SubEvent{Offset: 2 * pulse / 3, Gain: subGain, Sample: SubSample},
		)
	}
	// swing lands on the second triplet slot and is layered on top of it when both are active
	if st.Subdivisions.Has(Swing) {
		tick.Events = append(tick.Events, SubEvent{Offset: 2 * pulse / 3, Gain: swingGain, Sample: SubSample})
	}

	return tick, nil
}
