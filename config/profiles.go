package config

import "github.com/robmorgan/pulse/profile"

const (
	barBeamCells     = 8
	barBeamFirstCell = 7
)

func initializeFixtureProfiles() map[string]profile.Profile {
	out := map[string]profile.Profile{
		"shehds-par": {
			Name: "Shehds LED Flat PAR 12x3W RGBW",
			Channels: map[string]int{
				profile.ChannelTypeIntensity:      1,
				profile.ChannelTypeRed:            2,
				profile.ChannelTypeGreen:          3,
				profile.ChannelTypeBlue:           4,
				profile.ChannelTypeWhite:          5,
				profile.ChannelTypeStrobe:         6,
				profile.ChannelTypeFunctionSelect: 7,
				profile.ChannelTypeUnknown:        8,
			},
		},
		"shehds-led-wash-7x18w-rgbwa-uv": {
			Name: "Shehds LED Wash 7x18W RGBWA+UV",
			// 10 channel mode
			Channels: map[string]int{
				profile.ChannelTypePan:       1,
				profile.ChannelTypeTilt:      2,
				profile.ChannelTypeIntensity: 3,
				profile.ChannelTypeRed:       4,
				profile.ChannelTypeGreen:     5,
				profile.ChannelTypeBlue:      6,
				profile.ChannelTypeWhite:     7,
				profile.ChannelTypeAmber:     8,
				profile.ChannelTypeUV:        9,
			},
		},
		"shehds-led-bar-beam-8x12w-38ch": barBeamProfile(),
	}

	return out
}

// barBeamProfile lays out the 38 channel mode of the bar beam: six control channels followed by eight RGBW cells.
func barBeamProfile() profile.Profile {
	channels := map[string]int{
		profile.ChannelTypeTilt:           1,
		profile.ChannelTypeTiltSpeed:      2,
		profile.ChannelTypeFunctionSelect: 3,
		profile.ChannelTypeFunctionSpeed:  4,
		profile.ChannelTypeIntensity:      5,
		profile.ChannelTypeStrobe:         6,
	}

	for cell := 1; cell <= barBeamCells; cell++ {
		base := barBeamFirstCell + (cell-1)*4
		channels[profile.CellChannel(profile.ChannelTypeRed, cell)] = base
		channels[profile.CellChannel(profile.ChannelTypeGreen, cell)] = base + 1
		channels[profile.CellChannel(profile.ChannelTypeBlue, cell)] = base + 2
		channels[profile.CellChannel(profile.ChannelTypeWhite, cell)] = base + 3
	}

	return profile.Profile{
		Name:     "Shehds LED Bar Beam 8x12W RGBW",
		Channels: channels,
	}
}
