package oscbridge

import (
	"fmt"
	"math"
	"net"
	"strings"

	"github.com/gruntwork-io/go-commons/errors"
	"github.com/hypebeast/go-osc/osc"
	"github.com/sirupsen/logrus"

	"github.com/robmorgan/pulse/control"
	"github.com/robmorgan/pulse/engine/scale"
	"github.com/robmorgan/pulse/logger"
	"github.com/robmorgan/pulse/rhythm"
)

const (
	TempoAddress       = "/metronome/tempo"
	MeterAddress       = "/metronome/meter"
	SubdivisionAddress = "/metronome/subdivision"
	StartAddress       = "/metronome/start"
	StopAddress        = "/metronome/stop"
)

// Dispatcher applies incoming OSC messages to the metronome controls.
type Dispatcher struct {
	commands control.Commands
	log      *logrus.Entry
}

// NewDispatcher creates a dispatcher driving commands.
func NewDispatcher(commands control.Commands) *Dispatcher {
	return &Dispatcher{
		commands: commands,
		log:      logger.GetProjectLogger().WithField("component", "osc"),
	}
}

// Dispatch implements osc.Dispatcher. Bundles are applied as soon as they arrive, whatever their time tag.
func (d *Dispatcher) Dispatch(packet osc.Packet) {
	switch packet := packet.(type) {
	case *osc.Message:
		if err := d.handle(packet); err != nil {
			d.log.WithField("address", packet.Address).WithError(err).Warn("Ignoring OSC message")
		}
	case *osc.Bundle:
		for _, msg := range packet.Messages {
			d.Dispatch(msg)
		}
		for _, bundle := range packet.Bundles {
			d.Dispatch(bundle)
		}
	}
}

func (d *Dispatcher) handle(msg *osc.Message) error {
	d.log.WithField("message", msg.String()).Debug("OSC message received")

	switch msg.Address {
	case TempoAddress:
		bpm, err := numberArg(msg)
		if err != nil {
			return err
		}
		if math.IsNaN(bpm) {
			return fmt.Errorf("tempo is not a number")
		}
		d.commands.SetTempo(int(math.Round(scale.Limit(bpm, rhythm.MinTempo, rhythm.MaxTempo))))
	case MeterAddress:
		id, err := stringArg(msg)
		if err != nil {
			return err
		}
		return d.commands.SetMeter(id)
	case SubdivisionAddress:
		name, err := stringArg(msg)
		if err != nil {
			return err
		}
		k, err := rhythm.ParseSubdivision(name)
		if err != nil {
			return err
		}
		d.commands.ToggleSubdivision(k)
	case StartAddress:
		d.commands.Start()
	case StopAddress:
		d.commands.Stop()
	default:
		return fmt.Errorf("unknown address")
	}
	return nil
}

func numberArg(msg *osc.Message) (float64, error) {
	if len(msg.Arguments) == 0 {
		return 0, fmt.Errorf("missing argument")
	}
	switch v := msg.Arguments[0].(type) {
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case float32:
		return float64(v), nil
	case float64:
		return v, nil
	}
	return 0, fmt.Errorf("argument %v is not a number", msg.Arguments[0])
}

func stringArg(msg *osc.Message) (string, error) {
	if len(msg.Arguments) == 0 {
		return "", fmt.Errorf("missing argument")
	}
	s, ok := msg.Arguments[0].(string)
	if !ok {
		return "", fmt.Errorf("argument %v is not a string", msg.Arguments[0])
	}
	return strings.TrimSpace(s), nil
}

// Server listens for OSC control messages over UDP. Packets are dispatched one at a time in arrival order, so a stop
// followed by a start always leaves the metronome running.
type Server struct {
	conn net.PacketConn
	stop chan struct{}
	done chan struct{}
}

// Listen starts serving OSC on addr until Close is called.
func Listen(addr string, commands control.Commands) (*Server, error) {
	conn, err := net.ListenPacket("udp", addr)
	if err != nil {
		return nil, errors.WithStackTrace(err)
	}

	s := &Server{conn: conn, stop: make(chan struct{}), done: make(chan struct{})}
	go s.serve(&osc.Server{Addr: addr}, NewDispatcher(commands))

	logger.GetProjectLogger().WithField("component", "osc").
		WithField("addr", conn.LocalAddr().String()).Info("Listening for OSC")
	return s, nil
}

func (s *Server) serve(srv *osc.Server, d osc.Dispatcher) {
	defer close(s.done)
	log := logger.GetProjectLogger().WithField("component", "osc")

	for {
		packet, err := srv.ReceivePacket(s.conn)
		if err != nil {
			select {
			case <-s.stop:
				return
			default:
			}
			log.WithError(err).Debug("Dropping unreadable OSC packet")
			continue
		}
		d.Dispatch(packet)
	}
}

// Addr returns the address the server is bound to.
func (s *Server) Addr() net.Addr {
	return s.conn.LocalAddr()
}

// Close stops the server and waits for it to exit.
func (s *Server) Close() error {
	close(s.stop)
	if err := s.conn.Close(); err != nil {
		return errors.WithStackTrace(err)
	}
	<-s.done
	return nil
}
