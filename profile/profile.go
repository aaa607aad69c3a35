package profile

import "fmt"

const (
	ChannelTypeIntensity = "channel:type:intensity"
	ChannelTypeStrobe    = "channel:type:strobe"

	ChannelTypeRed   = "channel:type:red"
	ChannelTypeGreen = "channel:type:green"
	ChannelTypeBlue  = "channel:type:blue"
	ChannelTypeWhite = "channel:type:white"
	ChannelTypeAmber = "channel:type:amber"
	ChannelTypeUV    = "channel:type:uv"

	ChannelTypePan       = "channel:type:pan"
	ChannelTypeTilt      = "channel:type:tilt"
	ChannelTypeTiltSpeed = "channel:type:tiltspeed"

	ChannelTypeFunctionSelect = "channel:type:function:select"
	ChannelTypeFunctionSpeed  = "channel:type:function:speed"

	ChannelTypeUnknown = "channel:type:unknown"
)

// Profile holds info for a fixture profile including the channel and capability mappings.
type Profile struct {
	Name         string
	Capabilities []string

	// The fixture channels, keyed by channel type. Multi-cell fixtures suffix the colour channel types with the
	// 1-based cell number.
	Channels map[string]int
}

// CellChannel names the channel type of a colour component in one cell of a multi-cell fixture.
func CellChannel(channelType string, cell int) string {
	return fmt.Sprintf("%s%d", channelType, cell)
}

// Cells returns the number of individually addressable colour cells. Fixtures without numbered cells count as one.
func (p Profile) Cells() int {
	n := 0
	for {
		if _, ok := p.Channels[CellChannel(ChannelTypeRed, n+1)]; !ok {
			break
		}
		n++
	}
	if n == 0 {
		return 1
	}
	return n
}

// Channel returns the 1-based channel offset for a channel type, if the fixture has one.
func (p Profile) Channel(channelType string) (int, bool) {
	ch, ok := p.Channels[channelType]
	return ch, ok
}
