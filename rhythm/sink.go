package rhythm

import "time"

// PlaybackSink produces sound for scheduled samples. Implementations must start playback as close to at as possible,
// allow overlapping triggers of the same sample and never block the caller. Delivery failures are the sink's
// business.
type PlaybackSink interface {
	Schedule(sample SampleID, at time.Time, gain float64)
}

// SyncObserver is notified once per pulse, ahead of time, so visual feedback can be lined up with at.
type SyncObserver interface {
	OnTick(accent bool, pulse time.Duration, at time.Time)
}

// Sinks fans a schedule request out to several back-ends.
type Sinks []PlaybackSink

func (s Sinks) Schedule(sample SampleID, at time.Time, gain float64) {
	for _, sink := range s {
		if sink != nil {
			sink.Schedule(sample, at, gain)
		}
	}
}

// Observers fans tick notifications out to several observers.
type Observers []SyncObserver

func (o Observers) OnTick(accent bool, pulse time.Duration, at time.Time) {
	for _, observer := range o {
		if observer != nil {
			observer.OnTick(accent, pulse, at)
		}
	}
}
