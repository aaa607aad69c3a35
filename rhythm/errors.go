package rhythm

import "fmt"

// InvalidMeterError is returned by SetMeter when the requested meter is malformed. The meter keeps its previous
// state.
type InvalidMeterError struct {
	Spec   MeterSpec
	Reason string
}

func (e InvalidMeterError) Error() string {
	return fmt.Sprintf("invalid meter %s: %s", e.Spec, e.Reason)
}

// ConfigurationError is surfaced by the metronome when the meter is unusable at the time a tick is due. The slot is
// skipped and scheduling carries on.
type ConfigurationError struct {
	Reason string
}

func (e ConfigurationError) Error() string {
	return "metronome configuration error: " + e.Reason
}
