package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robmorgan/pulse/rhythm"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "pulse.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestDefaultsAreValid(t *testing.T) {
	t.Parallel()

	cfg := NewHaloConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 250*time.Millisecond, cfg.Scheduler.LookAhead.Std())
	assert.Equal(t, 25*time.Millisecond, cfg.Scheduler.Interval.Std())
	assert.Equal(t, 50*time.Millisecond, cfg.Scheduler.StartDelay.Std())
}

func TestLoadOverlaysDefaults(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
tempo: 132
meter: 7_8_2_2_3
subdivisions: [eighth, swing]
scheduler:
  look_ahead: 300ms
audio:
  enabled: false
  samples:
    accent: /tmp/accent.wav
midi:
  notes:
    accent: 60
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 132, cfg.Tempo)
	assert.Equal(t, "7_8_2_2_3", cfg.Meter)
	assert.Equal(t, 300*time.Millisecond, cfg.Scheduler.LookAhead.Std())
	// untouched values keep their defaults
	assert.Equal(t, 25*time.Millisecond, cfg.Scheduler.Interval.Std())
	assert.Equal(t, 44100, cfg.Audio.SampleRate)
	assert.False(t, cfg.Audio.Enabled)
	assert.Equal(t, "/tmp/accent.wav", cfg.Audio.Samples["accent"])
	assert.Equal(t, uint8(60), cfg.MIDI.Notes["accent"])
	assert.Equal(t, uint8(77), cfg.MIDI.Notes["pulse"])
	assert.Len(t, cfg.PatchedFixtures, 3)

	subs, err := cfg.SubdivisionSet()
	require.NoError(t, err)
	assert.Equal(t, rhythm.Eighth|rhythm.Swing, subs)
}

func TestLoadRejectsBadFiles(t *testing.T) {
	t.Parallel()

	testCases := map[string]string{
		"unknown preset":      "meter: 4_4_5_banana\n",
		"unknown subdivision": "subdivisions: [quintuplet]\n",
		"bad duration":        "scheduler:\n  interval: soon\n",
		"window too short":    "scheduler:\n  look_ahead: 20ms\n",
		"unknown profile":     "fixtures:\n  - name: a\n    profile: nope\n    role: flash\n",
		"unknown role":        "fixtures:\n  - name: a\n    profile: shehds-par\n    role: strobe\n",
		"midi channel":        "midi:\n  channel: 16\n",
		"bad colour":          "lighting:\n  accent_color: sparkly\n",
		"not yaml":            "tempo: [\n",
	}

	for name, contents := range testCases {
		_, err := Load(writeConfig(t, contents))
		require.Error(t, err, name)
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestDuplicateFixtures(t *testing.T) {
	t.Parallel()

	c := NewHaloConfig()
	c.PatchedFixtures = []PatchedFixture{
		{Name: "fixture1", Profile: "shehds-par", Role: RoleFlash},
		{Name: "fixture1", Profile: "shehds-par", Role: RoleBar},
	}

	require.Error(t, c.Validate())
}

func TestBarBeamProfile(t *testing.T) {
	t.Parallel()

	p := NewHaloConfig().FixtureProfiles["shehds-led-bar-beam-8x12w-38ch"]
	assert.Equal(t, 8, p.Cells())
	assert.Len(t, p.Channels, 38)

	par := NewHaloConfig().FixtureProfiles["shehds-par"]
	assert.Equal(t, 1, par.Cells())
}
