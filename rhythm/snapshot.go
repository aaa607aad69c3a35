package rhythm

import "time"

// Snapshot describes the metronome's timeline at the moment it was taken.
type Snapshot struct {
	// Running is true between Start and Stop.
	Running bool

	// Position holds the counters of the next tick to be generated.
	Position Position

	// Cursor is the absolute time of the next tick to be generated.
	Cursor time.Time

	// Mode, Tempo and Pulse reflect the meter at snapshot time.
	Mode  Mode
	Tempo int
	Pulse time.Duration
}

// IsDownBeat reports whether the next tick starts a cycle.
func (s Snapshot) IsDownBeat() bool {
	if s.Mode == Clave {
		return s.Position.ClaveStep == 1
	}
	return s.Position.Beat == 0
}
