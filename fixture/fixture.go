package fixture

import (
	"github.com/lucasb-eyer/go-colorful"

	"github.com/robmorgan/pulse/engine/scale"
	"github.com/robmorgan/pulse/profile"
	"github.com/robmorgan/pulse/utils"
)

// Fixture is a patched light driven by the visual sync.
type Fixture struct {
	Name     string
	Universe int
	Address  int
	Role     string
	Profile  profile.Profile
}

// Cells returns the number of individually addressable colour cells.
func (f *Fixture) Cells() int {
	return f.Profile.Cells()
}

// Paint returns the operations setting one 1-based cell to c dimmed by level. Cell 1 of a single-cell fixture is the
// fixture itself.
func (f *Fixture) Paint(cell int, c colorful.Color, level float64) []dmxOperation {
	r, g, b := utils.Scale(c, level)

	ops := []dmxOperation{}
	for channelType, value := range map[string]uint8{
		profile.ChannelTypeRed:   r,
		profile.ChannelTypeGreen: g,
		profile.ChannelTypeBlue:  b,
		profile.ChannelTypeWhite: 0,
	} {
		if ch, ok := f.cellChannel(channelType, cell); ok {
			ops = append(ops, f.op(ch, int(value)))
		}
	}
	return ops
}

// Master returns the operation setting the fixture's intensity channel, if it has one.
func (f *Fixture) Master(level float64) []dmxOperation {
	ch, ok := f.Profile.Channel(profile.ChannelTypeIntensity)
	if !ok {
		return nil
	}
	return []dmxOperation{f.op(ch, int(scale.Limit(level, 0, 1)*255))}
}

// Blackout returns the operations turning every cell off.
func (f *Fixture) Blackout() []dmxOperation {
	ops := []dmxOperation{}
	for cell := 1; cell <= f.Cells(); cell++ {
		ops = append(ops, f.Paint(cell, colorful.Color{}, 0)...)
	}
	return ops
}

func (f *Fixture) cellChannel(channelType string, cell int) (int, bool) {
	if ch, ok := f.Profile.Channel(profile.CellChannel(channelType, cell)); ok {
		return ch, true
	}
	if cell == 1 {
		return f.Profile.Channel(channelType)
	}
	return 0, false
}

// op converts a 1-based profile channel into an absolute DMX operation.
func (f *Fixture) op(channel, value int) dmxOperation {
	return dmxOperation{
		universe: f.Universe,
		channel:  f.Address + channel - 1,
		value:    value,
	}
}
