package config

const (
	// RoleFlash fixtures flash on every tick, in the accent colour on accents.
	RoleFlash = "flash"

	// RoleBar fixtures form the light bar. Their cells are walked end to end once per pulse, alternating direction.
	RoleBar = "bar"
)

// PatchedFixture stores config info for a dmx fixture
type PatchedFixture struct {
	Name     string `yaml:"name"`
	Address  int    `yaml:"address"`
	Universe int    `yaml:"universe"`
	Profile  string `yaml:"profile"`
	Role     string `yaml:"role"`
}

// PatchFixtures returns the default rig: the two middle PARs flash and the beam bar carries the light bar.
func PatchFixtures() []PatchedFixture {
	s := make([]PatchedFixture, 0)

	s = append(s, patchFlashPars()...)
	s = append(s, patchLightBar()...)

	return s
}

func patchFlashPars() []PatchedFixture {
	return []PatchedFixture{
		{
			Name:     "left_middle_par",
			Address:  115,
			Universe: 1,
			Profile:  "shehds-par",
			Role:     RoleFlash,
		},
		{
			Name:     "right_middle_par",
			Address:  139,
			Universe: 1,
			Profile:  "shehds-par",
			Role:     RoleFlash,
		},
	}
}

func patchLightBar() []PatchedFixture {
	return []PatchedFixture{
		{
			Name:     "beam_bar",
			Address:  163,
			Universe: 1,
			Profile:  "shehds-led-bar-beam-8x12w-38ch",
			Role:     RoleBar,
		},
	}
}
