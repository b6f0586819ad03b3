// Package palette maps arbitrary RGB colors onto the band's fixed color table.
package palette

import (
	"errors"
	"fmt"
	"strconv"
)

// Code is a 5-bit color index understood by the band.
type Code uint8

// Band color table.
const (
	Cyan         Code = 0x00
	Purple       Code = 0x01
	Blue         Code = 0x02
	MidnightBlue Code = 0x03
	BrightPurple Code = 0x05
	Lavender     Code = 0x06
	Pink         Code = 0x08
	YellowOrange Code = 0x0F
	OffYellow    Code = 0x10
	Lime         Code = 0x12
	Orange       Code = 0x13
	RedOrange    Code = 0x14
	Red          Code = 0x15
	Green        Code = 0x19
	LimeGreen    Code = 0x1A
	White        Code = 0x1B
	Off          Code = 0x1D
	Random       Code = 0x1F
)

// ErrInvalidHex is returned by Parse for anything that is not #RRGGBB.
var ErrInvalidHex = errors.New("invalid hex color")

// Names is the panel's selectable palette.
var Names = map[string]Code{
	"cyan":         Cyan,
	"purple":       Purple,
	"blue":         Blue,
	"brightpurple": BrightPurple,
	"pink":         Pink,
	"yelloworange": YellowOrange,
	"lime":         Lime,
	"orange":       Orange,
	"red":          Red,
	"green":        Green,
	"white":        White,
}

// presets is the set of names the band accepts for action=preset. It differs
// from Names: "purple" lights the bright purple LED.
var presets = map[string]Code{
	"red":    Red,
	"blue":   Blue,
	"purple": BrightPurple,
	"white":  White,
	"green":  Green,
	"orange": Orange,
	"cyan":   Cyan,
	"pink":   Pink,
}

// Lookup resolves a panel palette name.
func Lookup(name string) (Code, bool) {
	c, ok := Names[name]
	return c, ok
}

// Preset resolves a preset color name the way the band does, falling back to white.
func Preset(name string) Code {
	if c, ok := presets[name]; ok {
		return c
	}
	return White
}

// PresetNames lists the names accepted by Preset.
func PresetNames() []string {
	return []string{"red", "blue", "purple", "white", "green", "orange", "cyan", "pink"}
}

// Parse decodes a #RRGGBB string.
func Parse(hex string) (r, g, b uint8, err error) {
	if len(hex) != 7 || hex[0] != '#' {
		return 0, 0, 0, fmt.Errorf("%w: %q", ErrInvalidHex, hex)
	}
	v, err := strconv.ParseUint(hex[1:], 16, 32)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("%w: %q", ErrInvalidHex, hex)
	}
	return uint8(v >> 16), uint8(v >> 8), uint8(v), nil
}

// Closest classifies a #RRGGBB color with coarse channel thresholds. Rules are
// checked in order and the first match wins; colors matching none, and
// malformed input, map to white.
func Closest(hex string) Code {
	r, g, b, err := Parse(hex)
	if err != nil {
		return White
	}
	return Classify(int(r), int(g), int(b))
}

// Classify applies the threshold rules to decoded channels.
func Classify(r, g, b int) Code {
	switch {
	case r > 200 && g < 100 && b < 100:
		return Red
	case r < 100 && g < 100 && b > 200:
		return Blue
	case r < 100 && g > 200 && b < 100:
		return Green
	case r > 200 && g > 100 && b < 100:
		return Orange
	case r > 150 && g < 100 && b > 150:
		return Purple
	case r > 200 && g > 100 && b > 150:
		return Pink
	case r < 100 && g > 200 && b > 200:
		return Cyan
	// shadowed by the orange rule, kept for parity with the panel
	case r > 200 && g > 200 && b < 100:
		return YellowOrange
	case r > 200 && g > 200 && b > 200:
		return White
	}
	return White
}
