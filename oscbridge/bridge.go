package oscbridge

import (
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/gruntwork-io/go-commons/errors"
	"github.com/hypebeast/go-osc/osc"
	"github.com/sirupsen/logrus"

	"github.com/robmorgan/pulse/logger"
	"github.com/robmorgan/pulse/rhythm"
)

const (
	SampleAddress = "/metronome/sample"
	TickAddress   = "/metronome/tick"
)

// queueSize bounds the bundles waiting for the network. Further bundles are dropped until the queue drains.
const queueSize = 256

// Sender is the part of an OSC client the bridge sends through.
type Sender interface {
	Send(packet osc.Packet) error
}

// udpSender writes packets to a target resolved once, unlike osc.Client which resolves and dials on every send.
type udpSender struct {
	conn *net.UDPConn
}

func (u udpSender) Send(packet osc.Packet) error {
	data, err := packet.MarshalBinary()
	if err != nil {
		return err
	}
	_, err = u.conn.Write(data)
	return err
}

func (u udpSender) Close() error {
	return u.conn.Close()
}

// Bridge forwards scheduled samples and ticks to an OSC target. Every message travels in a bundle time-tagged with
// the instant it is due, so a receiver can play it on time despite network latency.
//
// Schedule and OnTick only queue bundles; Run does the sending.
type Bridge struct {
	client Sender
	queue  chan *osc.Bundle
	log    *logrus.Entry

	mu       sync.Mutex
	failing  bool
	dropping bool
}

// NewBridge creates a bridge sending through client.
func NewBridge(client Sender) *Bridge {
	return &Bridge{
		client: client,
		queue:  make(chan *osc.Bundle, queueSize),
		log:    logger.GetProjectLogger().WithField("component", "osc"),
	}
}

// Dial creates a bridge sending to a host:port target. The target is resolved here, once.
func Dial(target string) (*Bridge, error) {
	host, portStr, err := net.SplitHostPort(target)
	if err != nil {
		return nil, errors.WithStackTrace(err)
	}
	if _, err := strconv.Atoi(portStr); err != nil {
		return nil, errors.WithStackTrace(fmt.Errorf("osc target %s: %w", target, err))
	}

	addr, err := net.ResolveUDPAddr("udp", net.JoinHostPort(host, portStr))
	if err != nil {
		return nil, errors.WithStackTrace(err)
	}
	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return nil, errors.WithStackTrace(err)
	}
	return NewBridge(udpSender{conn: conn}), nil
}

// Run sends queued bundles until ctx is cancelled.
func (b *Bridge) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case bundle := <-b.queue:
			b.deliver(bundle)
		}
	}
}

// Close releases the connection opened by Dial.
func (b *Bridge) Close() error {
	if c, ok := b.client.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Schedule sends /metronome/sample with the sample name and gain.
func (b *Bridge) Schedule(sample rhythm.SampleID, at time.Time, gain float64) {
	b.send(at, osc.NewMessage(SampleAddress, sample.String(), float32(gain)))
}

// OnTick sends /metronome/tick with the accent flag and the pulse length in seconds.
func (b *Bridge) OnTick(accent bool, pulse time.Duration, at time.Time) {
	b.send(at, osc.NewMessage(TickAddress, accent, float32(pulse.Seconds())))
}

func (b *Bridge) send(at time.Time, msg *osc.Message) {
	bundle := osc.NewBundle(at)
	if err := bundle.Append(msg); err != nil {
		b.log.WithError(err).Error("Could not build OSC bundle")
		return
	}

	select {
	case b.queue <- bundle:
		return
	default:
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.dropping {
		b.log.WithField("address", msg.Address).Warn("OSC output falling behind, dropping messages")
		b.dropping = true
	}
}

func (b *Bridge) deliver(bundle *osc.Bundle) {
	err := b.client.Send(bundle)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.dropping = false
	switch {
	case err != nil && !b.failing:
		b.log.WithError(err).Warn("Could not send OSC message")
		b.failing = true
	case err == nil && b.failing:
		b.log.Info("OSC output restored")
		b.failing = false
	}
}
