package main

import (
	"fmt"
	"strconv"

	"github.com/gruntwork-io/go-commons/errors"
	"github.com/nickysemenza/gola"
	"github.com/spf13/cobra"
)

var dumpCmd = &cobra.Command{
	Use:   "dmx-dump [universe]",
	Short: "Print the DMX frame OLA holds for a universe",
	Long:  "Reads a universe back from OLA, which is handy for checking the fixture patch while the lights are flashing.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runDump,
}

func init() {
	rootCmd.AddCommand(dumpCmd)
}

func runDump(cmd *cobra.Command, args []string) error {
	universe, err := parseUniverse(args)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	client, err := gola.New(cfg.Lighting.OLA)
	if err != nil {
		return errors.WithStackTrace(fmt.Errorf("could not connect to OLA at %s: %w", cfg.Lighting.OLA, err))
	}
	defer client.Close()

	x, err := client.GetDmx(universe)
	if err != nil {
		return errors.WithStackTrace(fmt.Errorf("GetDmx: %d: %w", universe, err))
	}

	for i, v := range x.Data {
		if v != 0 {
			fmt.Printf("%3d: %3d\n", i+1, v)
		}
	}
	return nil
}

// parseUniverse reads the optional universe argument, defaulting to 1.
func parseUniverse(args []string) (int, error) {
	if len(args) == 0 {
		return 1, nil
	}
	u, err := strconv.Atoi(args[0])
	if err != nil || u < 1 {
		return 0, fmt.Errorf("invalid universe %q", args[0])
	}
	return u, nil
}
