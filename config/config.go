package config

import (
	"fmt"
	"os"
	"time"

	"github.com/gruntwork-io/go-commons/errors"
	"gopkg.in/yaml.v3"

	"github.com/robmorgan/pulse/profile"
	"github.com/robmorgan/pulse/rhythm"
	"github.com/robmorgan/pulse/utils"
)

// Duration is a time.Duration written as a Go duration string in config files.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// HaloConfig represents options that configure the global behavior of the program. Configuration is only ever
// read; nothing writes it back.
type HaloConfig struct {
	LogLevel string `yaml:"log_level"`

	// Initial metronome settings
	Tempo        int      `yaml:"tempo"`
	Meter        string   `yaml:"meter"`
	Subdivisions []string `yaml:"subdivisions"`

	Scheduler SchedulerConfig `yaml:"scheduler"`
	Audio     AudioConfig     `yaml:"audio"`
	Lighting  LightingConfig  `yaml:"lighting"`
	OSC       OSCConfig       `yaml:"osc"`
	MIDI      MIDIConfig      `yaml:"midi"`

	// The fixture profiles
	FixtureProfiles map[string]profile.Profile `yaml:"-"`

	// PatchedFixtures stores all of the patched fixtures in a custom struct
	PatchedFixtures []PatchedFixture `yaml:"fixtures"`
}

// SchedulerConfig tunes the look-ahead scheduler.
type SchedulerConfig struct {
	LookAhead  Duration `yaml:"look_ahead"`
	Interval   Duration `yaml:"interval"`
	StartDelay Duration `yaml:"start_delay"`
}

// AudioConfig configures the speaker sink. Samples maps accent, pulse and sub to WAV files; missing entries are
// synthesized.
type AudioConfig struct {
	Enabled    bool              `yaml:"enabled"`
	SampleRate int               `yaml:"sample_rate"`
	Buffer     Duration          `yaml:"buffer"`
	Samples    map[string]string `yaml:"samples"`
}

// LightingConfig configures the DMX visual sync.
type LightingConfig struct {
	Enabled     bool     `yaml:"enabled"`
	OLA         string   `yaml:"ola"`
	FrameRate   int      `yaml:"frame_rate"`
	AccentColor string   `yaml:"accent_color"`
	PulseColor  string   `yaml:"pulse_color"`
	Flash       Duration `yaml:"flash"`
}

// OSCConfig configures the OSC command server and the OSC event sink. Empty addresses disable them.
type OSCConfig struct {
	Listen string `yaml:"listen"`
	Target string `yaml:"target"`
}

// MIDIConfig configures the MIDI sink. An empty port disables it.
type MIDIConfig struct {
	Port     string           `yaml:"port"`
	Channel  uint8            `yaml:"channel"`
	Notes    map[string]uint8 `yaml:"notes"`
	Duration Duration         `yaml:"note_length"`
}

// NewHaloConfig creates a new HaloConfig object with reasonable defaults for real usage
func NewHaloConfig() HaloConfig {
	return HaloConfig{
		LogLevel: "info",
		Tempo:    100,
		Meter:    "4_4_4",
		Scheduler: SchedulerConfig{
			LookAhead:  Duration(rhythm.DefaultLookAhead),
			Interval:   Duration(rhythm.DefaultInterval),
			StartDelay: Duration(rhythm.DefaultStartDelay),
		},
		Audio: AudioConfig{
			Enabled:    true,
			SampleRate: 44100,
			Buffer:     Duration(20 * time.Millisecond),
			Samples:    map[string]string{},
		},
		Lighting: LightingConfig{
			OLA:         "localhost:9010",
			FrameRate:   40,
			AccentColor: "#ff4081",
			PulseColor:  "#4caf50",
			Flash:       Duration(80 * time.Millisecond),
		},
		MIDI: MIDIConfig{
			Channel: 9,
			Notes: map[string]uint8{
				rhythm.AccentSample.String(): 76,
				rhythm.PulseSample.String():  77,
				rhythm.SubSample.String():    42,
			},
			Duration: Duration(50 * time.Millisecond),
		},
		FixtureProfiles: initializeFixtureProfiles(),
		PatchedFixtures: PatchFixtures(),
	}
}

// Load overlays the YAML file at path onto the defaults and validates the result.
func Load(path string) (HaloConfig, error) {
	cfg := NewHaloConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.WithStackTrace(err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.WithStackTrace(fmt.Errorf("parsing %s: %w", path, err))
	}
	if err := cfg.Validate(); err != nil {
		return cfg, errors.WithStackTrace(fmt.Errorf("%s: %w", path, err))
	}

	return cfg, nil
}

// Validate checks the settings that would otherwise only fail once the metronome is running.
func (c HaloConfig) Validate() error {
	if _, err := LookupPreset(c.Meter); err != nil {
		return err
	}
	if _, err := c.SubdivisionSet(); err != nil {
		return err
	}
	if c.Scheduler.Interval <= 0 || c.Scheduler.LookAhead <= c.Scheduler.Interval {
		return fmt.Errorf("scheduler look_ahead (%s) must exceed a positive interval (%s)",
			c.Scheduler.LookAhead.Std(), c.Scheduler.Interval.Std())
	}
	if c.Audio.SampleRate <= 0 {
		return fmt.Errorf("audio sample_rate must be positive")
	}
	if c.Lighting.FrameRate <= 0 {
		return fmt.Errorf("lighting frame_rate must be positive")
	}
	for _, color := range []string{c.Lighting.AccentColor, c.Lighting.PulseColor} {
		if _, err := utils.ParseColor(color); err != nil {
			return fmt.Errorf("lighting: %w", err)
		}
	}
	if c.MIDI.Channel > 15 {
		return fmt.Errorf("midi channel %d out of range", c.MIDI.Channel)
	}

	seen := map[string]bool{}
	for _, f := range c.PatchedFixtures {
		if seen[f.Name] {
			return fmt.Errorf("duplicate fixtures found! name=%s", f.Name)
		}
		seen[f.Name] = true

		if _, ok := c.FixtureProfiles[f.Profile]; !ok {
			return fmt.Errorf("fixture %s uses unknown profile %q", f.Name, f.Profile)
		}
		if f.Role != RoleFlash && f.Role != RoleBar {
			return fmt.Errorf("fixture %s has unknown role %q", f.Name, f.Role)
		}
	}

	return nil
}

// SubdivisionSet combines the configured subdivision names.
func (c HaloConfig) SubdivisionSet() (rhythm.Subdivision, error) {
	var set rhythm.Subdivision
	for _, name := range c.Subdivisions {
		k, err := rhythm.ParseSubdivision(name)
		if err != nil {
			return 0, err
		}
		set |= k
	}
	return set, nil
}
