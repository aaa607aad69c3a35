package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/robmorgan/pulse/config"
)

var Version = "dev"

// Command-line configuration. Flags only override the config file when they are set explicitly.
var flags struct {
	config     string
	bpm        int
	meter      string
	logLevel   string
	logFile    string
	noTUI      bool
	noAudio    bool
	lights     bool
	oscListen  string
	oscTarget  string
	midiPort   string
	listMeters bool
	listMIDI   bool
}

var rootCmd = &cobra.Command{
	Use:   "pulse",
	Short: "A drift-free metronome with audio, MIDI, OSC and DMX output",
	Long: `Pulse is a look-ahead metronome. Clicks are scheduled on an absolute timeline a
quarter of a second ahead of time, so they stay sample accurate however busy
the machine is.

Meters with irregular groupings (5/8, 7/8, 9/8) and son clave patterns are
supported, together with eighth, triplet and swing subdivisions.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runPulse,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flags.config, "config", "c", "",
		"YAML config file (defaults are used when empty)")
	rootCmd.PersistentFlags().IntVarP(&flags.bpm, "bpm", "b", 0,
		"Initial tempo in beats per minute")
	rootCmd.PersistentFlags().StringVarP(&flags.meter, "meter", "m", "",
		"Initial meter preset, e.g. 4_4_4, 7_8_2_2_3 or 2_2_clave_3_2")
	rootCmd.PersistentFlags().StringVar(&flags.logLevel, "log", "",
		"Log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&flags.logFile, "log-file", "",
		"Write logs to a file (logs are discarded while the TUI runs otherwise)")
	rootCmd.PersistentFlags().BoolVar(&flags.noTUI, "no-tui", false,
		"Run headless, starting the metronome immediately")
	rootCmd.PersistentFlags().BoolVar(&flags.noAudio, "no-audio", false,
		"Disable the speaker output")
	rootCmd.PersistentFlags().BoolVar(&flags.lights, "lights", false,
		"Enable DMX output through OLA")
	rootCmd.PersistentFlags().StringVar(&flags.oscListen, "osc-listen", "",
		"Listen for OSC control messages on host:port")
	rootCmd.PersistentFlags().StringVar(&flags.oscTarget, "osc-target", "",
		"Send OSC tick and sample bundles to host:port")
	rootCmd.PersistentFlags().StringVar(&flags.midiPort, "midi-port", "",
		"Play clicks as notes on the named MIDI output port")
	rootCmd.Flags().BoolVar(&flags.listMeters, "list-meters", false,
		"Print the meter presets and exit")
	rootCmd.Flags().BoolVar(&flags.listMIDI, "list-midi", false,
		"Print the MIDI output ports and exit")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads the config file, if any, and applies the flags the user set.
func loadConfig(cmd *cobra.Command) (config.HaloConfig, error) {
	cfg := config.NewHaloConfig()
	if flags.config != "" {
		var err error
		if cfg, err = config.Load(flags.config); err != nil {
			return cfg, err
		}
	}

	changed := cmd.Flags().Changed
	if changed("bpm") {
		cfg.Tempo = flags.bpm
	}
	if changed("meter") {
		cfg.Meter = flags.meter
	}
	if changed("log") {
		cfg.LogLevel = flags.logLevel
	}
	if flags.noAudio {
		cfg.Audio.Enabled = false
	}
	if flags.lights {
		cfg.Lighting.Enabled = true
	}
	if changed("osc-listen") {
		cfg.OSC.Listen = flags.oscListen
	}
	if changed("osc-target") {
		cfg.OSC.Target = flags.oscTarget
	}
	if changed("midi-port") {
		cfg.MIDI.Port = flags.midiPort
	}

	return cfg, cfg.Validate()
}
