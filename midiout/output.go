package midiout

import (
	"container/heap"
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	gomidi "gitlab.com/gomidi/midi/v2"
	"k8s.io/utils/clock"

	"github.com/robmorgan/pulse/config"
	"github.com/robmorgan/pulse/logger"
	"github.com/robmorgan/pulse/rhythm"
)

const (
	idleWait       = time.Second
	allNotesOffCC  = 123
	lowestVelocity = 1
)

// Output plays scheduled samples as MIDI notes. MIDI has no notion of future timestamps, so notes are held in a
// queue and sent by a dispatch loop when the timeline reaches them.
type Output struct {
	mu    sync.Mutex
	queue eventQueue
	seq   int

	send     func(gomidi.Message) error
	timeline clock.PassiveClock
	clock    clock.Clock
	log      *logrus.Entry

	channel uint8
	notes   map[rhythm.SampleID]uint8
	length  time.Duration

	interrupt chan struct{}
}

// Open finds the named output port and creates an Output sending to it.
func Open(cfg config.MIDIConfig, timeline clock.PassiveClock) (*Output, error) {
	for _, port := range gomidi.GetOutPorts() {
		if port.String() == cfg.Port {
			send, err := gomidi.SendTo(port)
			if err != nil {
				return nil, fmt.Errorf("opening midi port %s: %w", cfg.Port, err)
			}
			return New(send, cfg, timeline, clock.RealClock{}), nil
		}
	}
	return nil, fmt.Errorf("midi port %q not found", cfg.Port)
}

// New creates an Output sending through send. Notes are dated on timeline while clk drives the dispatch timers.
func New(send func(gomidi.Message) error, cfg config.MIDIConfig, timeline clock.PassiveClock, clk clock.Clock) *Output {
	notes := map[rhythm.SampleID]uint8{}
	for _, id := range rhythm.SampleIDs {
		if n, ok := cfg.Notes[id.String()]; ok {
			notes[id] = n
		}
	}

	return &Output{
		send:      send,
		timeline:  timeline,
		clock:     clk,
		log:       logger.GetProjectLogger().WithField("component", "midi"),
		channel:   cfg.Channel,
		notes:     notes,
		length:    cfg.Duration.Std(),
		interrupt: make(chan struct{}, 1),
	}
}

// Schedule queues a note-on at at and the matching note-off one note length later. Gain sets the velocity.
func (o *Output) Schedule(sample rhythm.SampleID, at time.Time, gain float64) {
	key, ok := o.notes[sample]
	if !ok {
		return
	}

	velocity := uint8(math.Max(lowestVelocity, math.Min(127, math.Round(gain*127))))

	o.mu.Lock()
	o.push(at, gomidi.NoteOn(o.channel, key, velocity))
	o.push(at.Add(o.length), gomidi.NoteOff(o.channel, key))
	o.mu.Unlock()

	select {
	case o.interrupt <- struct{}{}:
	default:
	}
}

// push adds an event to the queue. The caller holds o.mu.
func (o *Output) push(at time.Time, msg gomidi.Message) {
	heap.Push(&o.queue, event{at: at, seq: o.seq, msg: msg})
	o.seq++
}

// Pending returns the number of queued messages.
func (o *Output) Pending() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.queue.Len()
}

// Run dispatches queued messages as they fall due until ctx is cancelled.
func (o *Output) Run(ctx context.Context) {
	o.log.WithField("channel", o.channel+1).Info("MIDI output started")

	for {
		o.dispatchDue(o.timeline.Now())

		timer := o.clock.NewTimer(o.nextWait())
		select {
		case <-ctx.Done():
			timer.Stop()
			o.log.Info("MIDI output stopped")
			return
		case <-o.interrupt:
			timer.Stop()
		case <-timer.C():
		}
	}
}

func (o *Output) nextWait() time.Duration {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.queue.Len() == 0 {
		return idleWait
	}
	if wait := o.timeline.Since(o.queue[0].at); wait < 0 {
		return -wait
	}
	return 0
}

// dispatchDue sends every message due at or before now and returns how many were sent.
func (o *Output) dispatchDue(now time.Time) int {
	o.mu.Lock()
	due := []gomidi.Message{}
	for o.queue.Len() > 0 && !o.queue[0].at.After(now) {
		due = append(due, heap.Pop(&o.queue).(event).msg)
	}
	o.mu.Unlock()

	for _, msg := range due {
		if err := o.send(msg); err != nil {
			o.log.WithField("message", msg.String()).WithError(err).Warn("Could not send MIDI message")
		}
	}
	return len(due)
}

// Close drops queued messages and silences the channel.
func (o *Output) Close() error {
	o.mu.Lock()
	o.queue = nil
	o.mu.Unlock()

	return o.send(gomidi.ControlChange(o.channel, allNotesOffCC, 0))
}
