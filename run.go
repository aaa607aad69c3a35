package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/faiface/beep"
	"github.com/gruntwork-io/go-commons/errors"
	"github.com/nickysemenza/gola"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	gomidi "gitlab.com/gomidi/midi/v2"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // Register MIDI driver
	"k8s.io/utils/clock"

	"github.com/robmorgan/pulse/audio"
	"github.com/robmorgan/pulse/config"
	"github.com/robmorgan/pulse/control"
	"github.com/robmorgan/pulse/fixture"
	"github.com/robmorgan/pulse/logger"
	"github.com/robmorgan/pulse/midiout"
	"github.com/robmorgan/pulse/oscbridge"
	"github.com/robmorgan/pulse/rhythm"
)

func runPulse(cmd *cobra.Command, args []string) error {
	if flags.listMeters {
		for _, p := range config.Presets() {
			fmt.Printf("%-16s %s\n", p.ID, p.Label)
		}
		return nil
	}
	if flags.listMIDI {
		for _, port := range gomidi.GetOutPorts() {
			fmt.Println(port.String())
		}
		gomidi.CloseDriver()
		return nil
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logOut, closeLog, err := logDestination()
	if err != nil {
		return err
	}
	defer closeLog()
	if err := logger.Configure(cfg.LogLevel, logOut); err != nil {
		return err
	}

	return Run(context.Background(), cfg, !flags.noTUI)
}

// logDestination keeps logs off the terminal while the TUI owns it.
func logDestination() (io.Writer, func(), error) {
	if flags.logFile != "" {
		f, err := os.OpenFile(flags.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, errors.WithStackTrace(err)
		}
		return f, func() { f.Close() }, nil
	}
	if flags.noTUI {
		return os.Stderr, func() {}, nil
	}
	return io.Discard, func() {}, nil
}

// teardown stops background workers before the outputs they write to are closed. Closers run in reverse order of
// registration, after the context is cancelled and every worker has returned.
type teardown struct {
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	closers []func()
}

func newTeardown(ctx context.Context) (context.Context, *teardown) {
	ctx, cancel := context.WithCancel(ctx)
	return ctx, &teardown{cancel: cancel}
}

// Go runs worker until the context is cancelled.
func (t *teardown) Go(worker func()) {
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		worker()
	}()
}

// Defer registers a closer.
func (t *teardown) Defer(closer func()) {
	t.closers = append(t.closers, closer)
}

func (t *teardown) Run() {
	t.cancel()
	t.wg.Wait()
	for i := len(t.closers) - 1; i >= 0; i-- {
		t.closers[i]()
	}
}

// Run wires the outputs configured in cfg to a metronome and runs it until the user quits.
func Run(ctx context.Context, cfg config.HaloConfig, withTUI bool) error {
	ctx, td := newTeardown(ctx)
	defer td.Run()

	logger := logger.GetProjectLogger()

	var timeline clock.PassiveClock = clock.RealClock{}
	sinks := rhythm.Sinks{}
	observers := rhythm.Observers{}

	// the audio device clock is the timeline every output is dated against
	if cfg.Audio.Enabled {
		logger.Info("Initializing audio...")
		rate := beep.SampleRate(cfg.Audio.SampleRate)
		bank, err := audio.LoadBank(cfg.Audio.Samples, rate)
		if err != nil {
			return err
		}
		engine := audio.NewEngine(rate, bank, time.Now())
		if err := engine.Play(cfg.Audio.Buffer.Std()); err != nil {
			return err
		}
		td.Defer(engine.Close)

		timeline = engine
		sinks = append(sinks, engine)
	}

	if cfg.OSC.Target != "" {
		logger.WithField("target", cfg.OSC.Target).Info("Initializing OSC output...")
		bridge, err := oscbridge.Dial(cfg.OSC.Target)
		if err != nil {
			return err
		}
		td.Defer(func() { bridge.Close() })
		td.Go(func() { bridge.Run(ctx) })

		sinks = append(sinks, bridge)
		observers = append(observers, bridge)
	}

	if cfg.MIDI.Port != "" {
		logger.WithField("port", cfg.MIDI.Port).Info("Initializing MIDI output...")
		out, err := midiout.Open(cfg.MIDI, timeline)
		if err != nil {
			return err
		}
		td.Defer(gomidi.CloseDriver)
		td.Defer(func() { out.Close() })
		td.Go(func() { out.Run(ctx) })

		sinks = append(sinks, out)
	}

	if cfg.Lighting.Enabled {
		logger.Info("Initializing fixture manager...")
		fm, err := fixture.NewManager(cfg)
		if err != nil {
			return err
		}
		flasher, err := fixture.NewFlasher(fm, timeline, cfg.Lighting)
		if err != nil {
			return err
		}

		logger.WithField("ola", cfg.Lighting.OLA).Info("Connecting to OLA...")
		client, err := gola.New(cfg.Lighting.OLA)
		if err != nil {
			logger.WithError(err).Error("Could not connect to OLA, lighting disabled")
		} else {
			tick := time.Second / time.Duration(cfg.Lighting.FrameRate)
			td.wg.Add(1)
			go fixture.SendDMXWorker(ctx, client, clock.RealClock{}, tick, fm, flasher, &td.wg)
			observers = append(observers, flasher)
		}
	}

	// only the TUI drains the feed
	var feed *beatFeed
	if withTUI {
		feed = newBeatFeed(timeline)
		observers = append(observers, feed)
	}

	meter := rhythm.NewMeter()
	meter.SetTempo(float64(cfg.Tempo))
	subs, err := cfg.SubdivisionSet()
	if err != nil {
		return err
	}
	meter.SetSubdivisions(subs)

	metronome, err := rhythm.NewMetronome(meter, sinks, observers,
		rhythm.WithTimeline(timeline),
		rhythm.WithLookAhead(cfg.Scheduler.LookAhead.Std()),
		rhythm.WithInterval(cfg.Scheduler.Interval.Std()),
		rhythm.WithStartDelay(cfg.Scheduler.StartDelay.Std()),
	)
	if err != nil {
		return err
	}
	defer metronome.Stop()

	console, err := control.NewConsole(meter, metronome, cfg.Meter)
	if err != nil {
		return err
	}

	if cfg.OSC.Listen != "" {
		server, err := oscbridge.Listen(cfg.OSC.Listen, console)
		if err != nil {
			return err
		}
		defer server.Close()
	}

	if withTUI {
		p := tea.NewProgram(newModel(console, feed, metronome.Errors(), cfg.Lighting), tea.WithAltScreen())
		if _, err := p.Run(); err != nil {
			return errors.WithStackTrace(err)
		}
	} else {
		console.Start()
		go logErrors(ctx, logger.WithField("component", "metronome"), metronome.Errors())

		// handle CTRL+C interrupt
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt)
		<-quit
	}

	logger.Info("Shutting down pulse")
	return nil
}

func logErrors(ctx context.Context, log *logrus.Entry, errs <-chan error) {
	for {
		select {
		case <-ctx.Done():
			return
		case err := <-errs:
			log.WithError(err).Error("Metronome configuration error")
		}
	}
}
