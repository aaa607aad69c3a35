package oscbridge

import (
	"context"
	"errors"
	"math"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/hypebeast/go-osc/osc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robmorgan/pulse/config"
	"github.com/robmorgan/pulse/rhythm"
)

type capture struct {
	mu      sync.Mutex
	packets []osc.Packet
	err     error
}

func (c *capture) Send(packet osc.Packet) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.packets = append(c.packets, packet)
	return c.err
}

type fakeCommands struct {
	mu      sync.Mutex
	tempo   int
	preset  string
	subs    rhythm.Subdivision
	running bool
}

func (f *fakeCommands) SetTempo(bpm int) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tempo = bpm
	return bpm
}

func (f *fakeCommands) SetMeter(preset string) error {
	if _, err := config.LookupPreset(preset); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.preset = preset
	return nil
}

func (f *fakeCommands) ToggleSubdivision(k rhythm.Subdivision) rhythm.Subdivision {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subs ^= k
	return f.subs
}

func (f *fakeCommands) Start() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.running = true
}

func (f *fakeCommands) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.running = false
}

func (f *fakeCommands) Tempo() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tempo
}

var due = time.Date(2024, time.March, 1, 20, 0, 0, 0, time.UTC)

func (c *capture) Packets() []osc.Packet {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]osc.Packet(nil), c.packets...)
}

// blockingSender never returns from Send until release is closed.
type blockingSender struct {
	release chan struct{}
}

func (s blockingSender) Send(osc.Packet) error {
	<-s.release
	return nil
}

func runBridge(t *testing.T, b *Bridge) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		b.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func (b *Bridge) isFailing() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failing
}

func TestBridgeSendsTimeTaggedBundles(t *testing.T) {
	t.Parallel()

	c := &capture{}
	b := NewBridge(c)
	runBridge(t, b)
	b.Schedule(rhythm.AccentSample, due, 1)
	b.OnTick(false, 500*time.Millisecond, due.Add(time.Second))

	require.Eventually(t, func() bool { return len(c.Packets()) == 2 }, time.Second, time.Millisecond)
	packets := c.Packets()

	sample, ok := packets[0].(*osc.Bundle)
	require.True(t, ok)
	assert.WithinDuration(t, due, sample.Timetag.Time(), time.Microsecond)
	require.Len(t, sample.Messages, 1)
	assert.Equal(t, SampleAddress, sample.Messages[0].Address)
	assert.Equal(t, []interface{}{"accent", float32(1)}, sample.Messages[0].Arguments)

	tick, ok := packets[1].(*osc.Bundle)
	require.True(t, ok)
	assert.WithinDuration(t, due.Add(time.Second), tick.Timetag.Time(), time.Microsecond)
	assert.Equal(t, TickAddress, tick.Messages[0].Address)
	assert.Equal(t, []interface{}{false, float32(0.5)}, tick.Messages[0].Arguments)
}

func TestBridgeKeepsGoingWhenSendsFail(t *testing.T) {
	t.Parallel()

	c := &capture{err: errors.New("unreachable")}
	b := NewBridge(c)
	runBridge(t, b)
	b.Schedule(rhythm.PulseSample, due, 0.9)
	b.Schedule(rhythm.PulseSample, due, 0.9)

	require.Eventually(t, func() bool { return len(c.Packets()) == 2 }, time.Second, time.Millisecond)
	assert.True(t, b.isFailing())
}

func TestBridgeNeverBlocksTheScheduler(t *testing.T) {
	t.Parallel()

	sender := blockingSender{release: make(chan struct{})}
	defer close(sender.release)

	b := NewBridge(sender)
	runBridge(t, b)

	// more than the queue holds, while the sender is stuck on the first bundle
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 2*queueSize; i++ {
			b.Schedule(rhythm.SubSample, due, 0.8)
			b.OnTick(false, time.Second, due)
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Schedule blocked on a stalled sender")
	}
	assert.Len(t, b.queue, queueSize)
}

func TestDialSendsOverUDP(t *testing.T) {
	t.Parallel()

	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer conn.Close()

	b, err := Dial(conn.LocalAddr().String())
	require.NoError(t, err)
	defer b.Close()
	runBridge(t, b)

	b.OnTick(true, 250*time.Millisecond, due)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	packet, err := (&osc.Server{}).ReceivePacket(conn)
	require.NoError(t, err)

	bundle, ok := packet.(*osc.Bundle)
	require.True(t, ok)
	require.Len(t, bundle.Messages, 1)
	assert.Equal(t, TickAddress, bundle.Messages[0].Address)
	assert.Equal(t, []interface{}{true, float32(0.25)}, bundle.Messages[0].Arguments)
}

func TestDial(t *testing.T) {
	t.Parallel()

	b, err := Dial("127.0.0.1:9000")
	require.NoError(t, err)
	require.NoError(t, b.Close())

	_, err = Dial("localhost")
	require.Error(t, err)
	_, err = Dial("localhost:osc")
	require.Error(t, err)
}

func TestDispatcherAppliesCommands(t *testing.T) {
	t.Parallel()

	cmds := &fakeCommands{}
	d := NewDispatcher(cmds)

	d.Dispatch(osc.NewMessage(TempoAddress, int32(140)))
	assert.Equal(t, 140, cmds.tempo)

	d.Dispatch(osc.NewMessage(TempoAddress, float32(96.6)))
	assert.Equal(t, 97, cmds.tempo)

	// out of range tempos are clamped before rounding
	d.Dispatch(osc.NewMessage(TempoAddress, float64(1e30)))
	assert.Equal(t, rhythm.MaxTempo, cmds.tempo)
	d.Dispatch(osc.NewMessage(TempoAddress, float64(-1e30)))
	assert.Equal(t, rhythm.MinTempo, cmds.tempo)

	d.Dispatch(osc.NewMessage(MeterAddress, "7_8_3_2_2"))
	assert.Equal(t, "7_8_3_2_2", cmds.preset)

	d.Dispatch(osc.NewMessage(SubdivisionAddress, "swing"))
	assert.Equal(t, rhythm.Swing, cmds.subs)

	bundle := osc.NewBundle(time.Now())
	require.NoError(t, bundle.Append(osc.NewMessage(StartAddress)))
	d.Dispatch(bundle)
	assert.True(t, cmds.running)

	d.Dispatch(osc.NewMessage(StopAddress))
	assert.False(t, cmds.running)
}

func TestDispatcherIgnoresBadMessages(t *testing.T) {
	t.Parallel()

	cmds := &fakeCommands{tempo: 100, preset: "4_4_4"}
	d := NewDispatcher(cmds)

	assert.Error(t, d.handle(osc.NewMessage(TempoAddress)))
	assert.Error(t, d.handle(osc.NewMessage(TempoAddress, "fast")))
	assert.Error(t, d.handle(osc.NewMessage(TempoAddress, float32(math.NaN()))))
	assert.Error(t, d.handle(osc.NewMessage(MeterAddress, "banana")))
	assert.Error(t, d.handle(osc.NewMessage(MeterAddress, int32(4))))
	assert.Error(t, d.handle(osc.NewMessage(SubdivisionAddress, "quintuplet")))
	assert.Error(t, d.handle(osc.NewMessage("/metronome/explode")))

	assert.Equal(t, 100, cmds.tempo)
	assert.Equal(t, "4_4_4", cmds.preset)
}

func TestServerReceivesOverUDP(t *testing.T) {
	t.Parallel()

	cmds := &fakeCommands{}
	s, err := Listen("127.0.0.1:0", cmds)
	require.NoError(t, err)
	defer s.Close()

	port := s.Addr().(*net.UDPAddr).Port
	client := osc.NewClient("127.0.0.1", port)

	require.Eventually(t, func() bool {
		require.NoError(t, client.Send(osc.NewMessage(TempoAddress, int32(180))))
		return cmds.Tempo() == 180
	}, 2*time.Second, 10*time.Millisecond)
}

func TestServerAppliesPacketsInOrder(t *testing.T) {
	t.Parallel()

	cmds := &fakeCommands{}
	s, err := Listen("127.0.0.1:0", cmds)
	require.NoError(t, err)
	defer s.Close()

	conn, err := net.DialUDP("udp", nil, s.Addr().(*net.UDPAddr))
	require.NoError(t, err)
	defer conn.Close()

	write := func(msg *osc.Message) {
		data, err := msg.MarshalBinary()
		require.NoError(t, err)
		_, err = conn.Write(data)
		require.NoError(t, err)
	}

	for i := 0; i < 50; i++ {
		write(osc.NewMessage(StopAddress))
		write(osc.NewMessage(StartAddress))
	}
	// a tempo message sent last marks the end of the burst
	write(osc.NewMessage(TempoAddress, int32(99)))

	require.Eventually(t, func() bool { return cmds.Tempo() == 99 }, 2*time.Second, time.Millisecond)
	cmds.mu.Lock()
	defer cmds.mu.Unlock()
	assert.True(t, cmds.running)
}

func TestServerSurvivesGarbage(t *testing.T) {
	t.Parallel()

	cmds := &fakeCommands{}
	s, err := Listen("127.0.0.1:0", cmds)
	require.NoError(t, err)
	defer s.Close()

	conn, err := net.DialUDP("udp", nil, s.Addr().(*net.UDPAddr))
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("not osc"))
	require.NoError(t, err)

	data, err := osc.NewMessage(TempoAddress, int32(150)).MarshalBinary()
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		_, err := conn.Write(data)
		require.NoError(t, err)
		return cmds.Tempo() == 150
	}, 2*time.Second, 10*time.Millisecond)
}
