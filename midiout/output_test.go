package midiout

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gomidi "gitlab.com/gomidi/midi/v2"
	testingclock "k8s.io/utils/clock/testing"

	"github.com/robmorgan/pulse/config"
	"github.com/robmorgan/pulse/rhythm"
)

var t0 = time.Date(2024, time.March, 1, 20, 0, 0, 0, time.UTC)

type port struct {
	mu   sync.Mutex
	sent []gomidi.Message
	err  error
}

func (p *port) send(msg gomidi.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, msg)
	return p.err
}

func (p *port) Sent() []gomidi.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]gomidi.Message(nil), p.sent...)
}

func newTestOutput() (*Output, *port, *testingclock.FakeClock) {
	p := &port{}
	fc := testingclock.NewFakeClock(t0)
	return New(p.send, config.NewHaloConfig().MIDI, fc, fc), p, fc
}

func TestScheduleQueuesNotePairs(t *testing.T) {
	t.Parallel()

	o, p, _ := newTestOutput()
	o.Schedule(rhythm.AccentSample, t0.Add(100*time.Millisecond), 1)
	o.Schedule(rhythm.SubSample, t0.Add(50*time.Millisecond), 0.8)
	assert.Equal(t, 4, o.Pending())

	assert.Equal(t, 0, o.dispatchDue(t0))
	assert.Equal(t, 1, o.dispatchDue(t0.Add(50*time.Millisecond)))
	assert.Equal(t, 2, o.dispatchDue(t0.Add(100*time.Millisecond)))
	assert.Equal(t, 1, o.dispatchDue(t0.Add(150*time.Millisecond)))

	assert.Equal(t, []gomidi.Message{
		gomidi.NoteOn(9, 42, 102),
		gomidi.NoteOn(9, 76, 127),
		gomidi.NoteOff(9, 42),
		gomidi.NoteOff(9, 76),
	}, p.Sent())
}

func TestVelocityFollowsGain(t *testing.T) {
	t.Parallel()

	o, p, _ := newTestOutput()
	o.Schedule(rhythm.PulseSample, t0, 0.9)
	o.Schedule(rhythm.PulseSample, t0.Add(time.Second), 0)
	o.dispatchDue(t0.Add(2 * time.Second))

	sent := p.Sent()
	require.Len(t, sent, 4)
	assert.Equal(t, gomidi.NoteOn(9, 77, 114), sent[0])
	assert.Equal(t, gomidi.NoteOn(9, 77, 1), sent[2])
}

func TestUnmappedSamplesAreSkipped(t *testing.T) {
	t.Parallel()

	cfg := config.NewHaloConfig().MIDI
	cfg.Notes = map[string]uint8{"accent": 60}
	fc := testingclock.NewFakeClock(t0)
	o := New((&port{}).send, cfg, fc, fc)

	o.Schedule(rhythm.PulseSample, t0, 1)
	assert.Equal(t, 0, o.Pending())
}

func TestSendErrorsDoNotStopDispatch(t *testing.T) {
	t.Parallel()

	o, p, _ := newTestOutput()
	p.err = errors.New("unplugged")
	o.Schedule(rhythm.AccentSample, t0, 1)

	assert.Equal(t, 2, o.dispatchDue(t0.Add(time.Second)))
	assert.Equal(t, 0, o.Pending())
}

func TestRunDispatchesOnTime(t *testing.T) {
	t.Parallel()

	o, p, fc := newTestOutput()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		o.Run(ctx)
	}()

	require.Eventually(t, fc.HasWaiters, time.Second, time.Millisecond)
	o.Schedule(rhythm.AccentSample, t0.Add(100*time.Millisecond), 1)

	require.Eventually(t, func() bool {
		fc.Step(10 * time.Millisecond)
		return len(p.Sent()) >= 2
	}, 2*time.Second, time.Millisecond)

	sent := p.Sent()
	assert.Equal(t, gomidi.NoteOn(9, 76, 127), sent[0])
	assert.Equal(t, gomidi.NoteOff(9, 76), sent[1])
	assert.False(t, fc.Now().Before(t0.Add(150*time.Millisecond)))

	cancel()
	<-done
}

func TestCloseSilencesTheChannel(t *testing.T) {
	t.Parallel()

	o, p, _ := newTestOutput()
	o.Schedule(rhythm.AccentSample, t0.Add(time.Second), 1)
	require.NoError(t, o.Close())

	assert.Equal(t, 0, o.Pending())
	assert.Equal(t, []gomidi.Message{gomidi.ControlChange(9, allNotesOffCC, 0)}, p.Sent())
}
