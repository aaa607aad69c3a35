package fixture

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"k8s.io/utils/clock"

	"github.com/robmorgan/pulse/logger"
)

const universeSize = 512

// DMXState holds the DMX512 values for each channel
type DMXState struct {
	universes map[int][]byte
	lock      sync.Mutex
}

type dmxOperation struct {
	universe, channel, value int
}

// GetValue returns the value of a 1-based channel, or 0 for a universe that was never written.
func (s *DMXState) GetValue(universe, channel int) int {
	s.lock.Lock()
	defer s.lock.Unlock()

	u := s.universes[universe]
	if u == nil || channel < 1 || channel > universeSize {
		return 0
	}
	return int(u[channel-1])
}

func (s *DMXState) set(ops ...dmxOperation) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	for _, op := range ops {
		channel := op.channel
		universe := op.universe
		value := op.value
		if channel < 1 || channel > universeSize {
			return fmt.Errorf("dmx channel (%d) not in range, op=%v", channel, op)
		}
		if value < 0 || value > 255 {
			return fmt.Errorf("dmx value (%d) not in range, op=%v", value, op)
		}

		s.initializeUniverse(universe)
		s.universes[universe][channel-1] = byte(value)
	}

	return nil
}

func (s *DMXState) initializeUniverse(universe int) {
	if s.universes == nil {
		s.universes = make(map[int][]byte)
	}
	if s.universes[universe] == nil {
		s.universes[universe] = make([]byte, universeSize)
	}
}

// Frames copies every written universe, keyed by universe number.
func (s *DMXState) Frames() map[int][]byte {
	s.lock.Lock()
	defer s.lock.Unlock()

	out := make(map[int][]byte, len(s.universes))
	for k, v := range s.universes {
		out[k] = append([]byte(nil), v...)
	}
	return out
}

// OLAClient is the interface for communicating with OLA
type OLAClient interface {
	SendDmx(universe int, values []byte) (status bool, err error)
	Close()
}

// Renderer updates the DMX state for the current instant before each frame is sent.
type Renderer interface {
	Render() error
}

// SendDMXWorker renders and sends OLA the current dmxState across all universes every tick
func SendDMXWorker(ctx context.Context, client OLAClient, clk clock.WithTicker, tick time.Duration, manager Manager, renderer Renderer, wg *sync.WaitGroup) error {
	defer wg.Done()
	defer client.Close()

	log := logger.GetProjectLogger().WithField("component", "dmx")

	t := clk.NewTicker(tick)
	defer t.Stop()
	log.WithField("tick", tick).Info("DMX worker started")

	failing := false
	for {
		select {
		case <-ctx.Done():
			log.Info("DMX worker shutdown")
			return ctx.Err()
		case <-t.C():
			if renderer != nil {
				if err := renderer.Render(); err != nil {
					log.WithError(err).Warn("Render failed")
				}
			}

			frames := manager.GetDMXState().Frames()
			universes := make([]int, 0, len(frames))
			for k := range frames {
				universes = append(universes, k)
			}
			sort.Ints(universes)

			for _, u := range universes {
				_, err := client.SendDmx(u, frames[u])
				switch {
				case err != nil && !failing:
					log.WithFields(logrus.Fields{"universe": u}).WithError(err).Warn("Could not send DMX to OLA")
					failing = true
				case err == nil && failing:
					log.Info("DMX output to OLA restored")
					failing = false
				}
			}
		}
	}
}
