package utils

import (
	"fmt"
	"strings"

	"github.com/aybabtme/rgbterm"
	"github.com/lucasb-eyer/go-colorful"
)

var namedColors = map[string]string{
	"black":   "#000000",
	"white":   "#ffffff",
	"red":     "#ff0000",
	"green":   "#00ff00",
	"blue":    "#0000ff",
	"amber":   "#ffbf00",
	"magenta": "#ff00ff",
	"cyan":    "#00ffff",
}

// ParseColor reads a colour given as #rrggbb or as one of a handful of names.
func ParseColor(s string) (colorful.Color, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if hex, ok := namedColors[s]; ok {
		s = hex
	}

	c, err := colorful.Hex(s)
	if err != nil {
		return colorful.Color{}, fmt.Errorf("invalid colour %q: %w", s, err)
	}
	return c, nil
}

// GetRGBFromString returns the colour for s, or black when s cannot be parsed.
func GetRGBFromString(s string) colorful.Color {
	c, err := ParseColor(s)
	if err != nil {
		return colorful.Color{}
	}
	return c
}

// Scale dims c by level in [0,1] and returns the result as DMX levels.
func Scale(c colorful.Color, level float64) (r, g, b uint8) {
	return c.Clamped().BlendRgb(colorful.Color{}, 1-clampUnit(level)).RGB255()
}

// TermString renders c as a coloured swatch followed by its hex code.
func TermString(c colorful.Color) string {
	r, g, b := c.Clamped().RGB255()
	return rgbterm.FgString("■ "+c.Hex(), r, g, b)
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
