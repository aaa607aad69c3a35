package main

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	testingclock "k8s.io/utils/clock/testing"

	"github.com/robmorgan/pulse/config"
	"github.com/robmorgan/pulse/control"
	"github.com/robmorgan/pulse/rhythm"
)

var t0 = time.Date(2024, time.March, 1, 20, 0, 0, 0, time.UTC)

func newTestModel(t *testing.T) (model, *testingclock.FakeClock) {
	t.Helper()

	l := logrus.New()
	l.SetOutput(io.Discard)

	fc := testingclock.NewFakeClock(t0)
	feed := newBeatFeed(fc)
	meter := rhythm.NewMeter()
	m, err := rhythm.NewMetronome(meter, nil, feed, rhythm.WithClock(fc), rhythm.WithLogger(logrus.NewEntry(l)))
	require.NoError(t, err)
	t.Cleanup(m.Stop)

	console, err := control.NewConsole(meter, m, "4_4_4")
	require.NoError(t, err)

	return newModel(console, feed, m.Errors(), config.NewHaloConfig().Lighting), fc
}

func press(m model, key string) (model, tea.Cmd) {
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)})
	return next.(model), cmd
}

func TestBeatFeedReleasesBeatsOnTime(t *testing.T) {
	t.Parallel()

	fc := testingclock.NewFakeClock(t0)
	feed := newBeatFeed(fc)
	feed.OnTick(true, time.Second, t0.Add(100*time.Millisecond))
	feed.OnTick(false, time.Second, t0.Add(200*time.Millisecond))

	assert.Empty(t, feed.Due(feed.Now()))

	due := feed.Due(t0.Add(150 * time.Millisecond))
	require.Len(t, due, 1)
	assert.True(t, due[0].accent)

	due = feed.Due(t0.Add(time.Second))
	require.Len(t, due, 1)
	assert.False(t, due[0].accent)
	assert.Empty(t, feed.Due(t0.Add(time.Hour)))
}

func TestKeysDriveTheConsole(t *testing.T) {
	t.Parallel()

	m, _ := newTestModel(t)
	assert.Equal(t, 120, m.status.Snapshot.Tempo)

	m, _ = press(m, "]")
	assert.Equal(t, 121, m.status.Snapshot.Tempo)
	m, _ = press(m, "}")
	assert.Equal(t, 131, m.status.Snapshot.Tempo)
	m, _ = press(m, "{")
	m, _ = press(m, "[")
	assert.Equal(t, 120, m.status.Snapshot.Tempo)

	m, _ = press(m, "m")
	assert.Equal(t, "5_4_5", m.status.Preset.ID)

	m, _ = press(m, "e")
	m, _ = press(m, "s")
	assert.Equal(t, rhythm.Eighth|rhythm.Swing, m.status.Subdivisions)
	m, _ = press(m, "s")
	assert.Equal(t, rhythm.Eighth, m.status.Subdivisions)

	m, _ = press(m, " ")
	assert.True(t, m.status.Snapshot.Running)
	m, _ = press(m, " ")
	assert.False(t, m.status.Snapshot.Running)
}

func TestTicksFollowTheTimeline(t *testing.T) {
	t.Parallel()

	m, fc := newTestModel(t)
	m, _ = press(m, " ")

	next, cmd := m.Update(tickMsg(t0))
	m = next.(model)
	assert.NotNil(t, cmd)
	assert.Equal(t, 0, m.beats)
	assert.False(t, m.flashing())

	fc.Step(rhythm.DefaultStartDelay)
	next, _ = m.Update(tickMsg(fc.Now()))
	m = next.(model)
	assert.Equal(t, 1, m.beats)
	require.NotNil(t, m.last)
	assert.True(t, m.last.accent)
	assert.True(t, m.flashing())
	assert.Equal(t, m.accentColor, m.beatColor())

	view := m.View()
	assert.Contains(t, view, "running")
	assert.Contains(t, view, "4/4")
}

func TestStoppedViewIsDark(t *testing.T) {
	t.Parallel()

	m, _ := newTestModel(t)
	next, _ := m.Update(tickMsg(t0))
	m = next.(model)

	assert.Nil(t, m.last)
	assert.Equal(t, 0.0, m.pulseProgress())
	assert.Contains(t, m.View(), "stopped")
}

func TestQuit(t *testing.T) {
	t.Parallel()

	m, _ := newTestModel(t)
	m, _ = press(m, " ")
	m, cmd := press(m, "q")

	assert.NotNil(t, cmd)
	assert.True(t, m.quitting)
	assert.False(t, m.status.Snapshot.Running)
	assert.Empty(t, m.View())
}

func TestLoadConfigAppliesExplicitFlags(t *testing.T) {
	cmd := &cobra.Command{}
	cmd.Flags().IntVar(&flags.bpm, "bpm", 0, "")
	cmd.Flags().StringVar(&flags.meter, "meter", "", "")
	require.NoError(t, cmd.Flags().Set("bpm", "150"))

	cfg, err := loadConfig(cmd)
	require.NoError(t, err)
	assert.Equal(t, 150, cfg.Tempo)
	assert.Equal(t, "4_4_4", cfg.Meter)

	require.NoError(t, cmd.Flags().Set("meter", "banana"))
	_, err = loadConfig(cmd)
	require.Error(t, err)
}

func TestParseUniverse(t *testing.T) {
	t.Parallel()

	u, err := parseUniverse(nil)
	require.NoError(t, err)
	assert.Equal(t, 1, u)

	u, err = parseUniverse([]string{"3"})
	require.NoError(t, err)
	assert.Equal(t, 3, u)

	_, err = parseUniverse([]string{"zero"})
	require.Error(t, err)
	_, err = parseUniverse([]string{"0"})
	require.Error(t, err)
}

func TestBeatFeedIsBounded(t *testing.T) {
	t.Parallel()

	feed := newBeatFeed(testingclock.NewFakeClock(t0))
	for i := 0; i < 10*maxPendingBeats; i++ {
		feed.OnTick(false, time.Second, t0.Add(time.Duration(i)*time.Second))
	}

	due := feed.Due(t0.Add(time.Hour * 24))
	require.Len(t, due, maxPendingBeats)
	// the newest beats are the ones kept
	assert.Equal(t, t0.Add(time.Duration(10*maxPendingBeats-1)*time.Second), due[len(due)-1].at)
}

func TestTeardownStopsWorkersBeforeClosingOutputs(t *testing.T) {
	t.Parallel()

	ctx, td := newTeardown(context.Background())

	var mu sync.Mutex
	order := []string{}
	record := func(s string) {
		mu.Lock()
		defer mu.Unlock()
		order = append(order, s)
	}

	td.Defer(func() { record("driver closed") })
	td.Defer(func() { record("output closed") })
	td.Go(func() {
		<-ctx.Done()
		// still writing while shutting down
		time.Sleep(10 * time.Millisecond)
		record("worker stopped")
	})

	td.Run()
	assert.Equal(t, []string{"worker stopped", "output closed", "driver closed"}, order)
}
