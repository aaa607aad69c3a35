package main

import (
	"sync"
	"time"

	"k8s.io/utils/clock"
)

// maxPendingBeats caps the feed when the TUI stops draining it. The oldest beats go first.
const maxPendingBeats = 64

type beat struct {
	accent bool
	pulse  time.Duration
	at     time.Time
}

// beatFeed holds ticks announced by the metronome until the timeline reaches them, so the TUI shows each beat when
// it is heard rather than when it is scheduled.
type beatFeed struct {
	mu       sync.Mutex
	timeline clock.PassiveClock
	pending  []beat
}

func newBeatFeed(timeline clock.PassiveClock) *beatFeed {
	return &beatFeed{timeline: timeline}
}

func (f *beatFeed) OnTick(accent bool, pulse time.Duration, at time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending = append(f.pending, beat{accent: accent, pulse: pulse, at: at})
	if n := len(f.pending) - maxPendingBeats; n > 0 {
		f.pending = append(f.pending[:0], f.pending[n:]...)
	}
}

// Now returns the current timeline instant.
func (f *beatFeed) Now() time.Time {
	return f.timeline.Now()
}

// Due removes and returns the beats at or before now.
func (f *beatFeed) Due(now time.Time) []beat {
	f.mu.Lock()
	defer f.mu.Unlock()

	i := 0
	for i < len(f.pending) && !f.pending[i].at.After(now) {
		i++
	}
	due := append([]beat(nil), f.pending[:i]...)
	f.pending = f.pending[i:]
	return due
}
