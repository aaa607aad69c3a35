package config

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/exp/slices"

	"github.com/robmorgan/pulse/rhythm"
)

// Preset is one entry of the closed set of meters offered to the user.
type Preset struct {
	// ID encodes the meter as numerator_denominator_grouping..., or 2_2_clave_X_Y for a clave.
	ID    string
	Label string
	Spec  rhythm.MeterSpec
}

// UnknownPresetError is returned for a preset id outside the preset table.
type UnknownPresetError struct {
	ID string
}

func (e UnknownPresetError) Error() string {
	return fmt.Sprintf("unknown meter preset %q", e.ID)
}

var presetTable = []struct {
	id    string
	label string
}{
	{"2_4_2", "2/4"},
	{"3_4_3", "3/4"},
	{"4_4_4", "4/4"},
	{"5_4_5", "5/4"},
	{"5_8_3_2", "5/8 (3+2)"},
	{"6_8_3_3", "6/8"},
	{"7_8_2_2_3", "7/8 (2+2+3)"},
	{"7_8_3_2_2", "7/8 (3+2+2)"},
	{"7_8_2_3_2", "7/8 (2+3+2)"},
	{"9_8_2_2_2_3", "9/8 (2+2+2+3)"},
	{"12_8_3_3_3_3", "12/8"},
	{"2_2_clave_3_2", "Clave 3-2"},
	{"2_2_clave_2_3", "Clave 2-3"},
}

var presets = buildPresets()

func buildPresets() []Preset {
	out := make([]Preset, 0, len(presetTable))
	for _, p := range presetTable {
		spec, err := ParsePreset(p.id)
		if err != nil {
			panic(err)
		}
		out = append(out, Preset{ID: p.id, Label: p.label, Spec: spec})
	}
	return out
}

// Presets returns every preset in display order.
func Presets() []Preset {
	return slices.Clone(presets)
}

// LookupPreset finds a preset by id.
func LookupPreset(id string) (Preset, error) {
	i := slices.IndexFunc(presets, func(p Preset) bool { return p.ID == id })
	if i < 0 {
		return Preset{}, UnknownPresetError{ID: id}
	}
	return presets[i], nil
}

// NextPreset returns the preset after id in display order, wrapping at the end.
func NextPreset(id string) Preset {
	i := slices.IndexFunc(presets, func(p Preset) bool { return p.ID == id })
	return presets[(i+1)%len(presets)]
}

// ParsePreset decodes a preset id. The numerator is informational; the grouping defines the cycle.
func ParsePreset(id string) (rhythm.MeterSpec, error) {
	parts := strings.Split(id, "_")

	if len(parts) == 5 && parts[2] == "clave" {
		return rhythm.ClaveMeter(rhythm.ClavePattern(parts[3] + "-" + parts[4])), nil
	}

	if len(parts) < 3 {
		return rhythm.MeterSpec{}, fmt.Errorf("preset %q needs a numerator, a denominator and a grouping", id)
	}

	values := make([]int, len(parts))
	for i, part := range parts {
		v, err := strconv.Atoi(part)
		if err != nil {
			return rhythm.MeterSpec{}, fmt.Errorf("preset %q: %w", id, err)
		}
		values[i] = v
	}

	return rhythm.StandardMeter(values[1], values[2:]...), nil
}
