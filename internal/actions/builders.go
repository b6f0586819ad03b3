// Package actions turns panel actions into band command bodies and runs them
// through the dispatcher.
package actions

import (
	"errors"
	"net/url"
	"strconv"
	"strings"

	"magicband-controller/internal/core"
	"magicband-controller/internal/palette"
)

// ErrEmptyManual is returned for a manual command that is blank after trimming.
var ErrEmptyManual = errors.New("manual command is empty")

// Vibration is the optional vibration parameter attached to most commands.
type Vibration struct {
	On      bool
	Pattern string
}

// Value is the vib= field: the pattern when enabled, else 0.
func (v Vibration) Value() string {
	if !v.On || v.Pattern == "" {
		return "0"
	}
	return v.Pattern
}

func body(action core.Action, vib Vibration, fields ...string) string {
	q := url.Values{}
	q.Set("action", string(action))
	for i := 0; i+1 < len(fields); i += 2 {
		q.Set(fields[i], fields[i+1])
	}
	q.Set("vib", vib.Value())
	// Encode sorts keys; action, c1..c5/color, vib happens to be the band's order.
	return q.Encode()
}

func code(c palette.Code) string {
	return strconv.Itoa(int(c))
}

// Preset builds a solid preset command for a named color.
func Preset(color string, vib Vibration) string {
	return body(core.ActionPreset, vib, "color", color)
}

// Dual builds a two-zone command.
func Dual(inner, outer palette.Code, vib Vibration) string {
	return body(core.ActionDual, vib, "c1", code(inner), "c2", code(outer))
}

// Crossfade builds a two-color crossfade command.
func Crossfade(a, b palette.Code, vib Vibration) string {
	return body(core.ActionCrossfade, vib, "c1", code(a), "c2", code(b))
}

// Rainbow builds a five-point rainbow command.
func Rainbow(colors [5]palette.Code, vib Vibration) string {
	fields := make([]string, 0, 10)
	for i, c := range colors {
		fields = append(fields, "c"+strconv.Itoa(i+1), code(c))
	}
	return body(core.ActionRainbow, vib, fields...)
}

// Circle builds the circle animation command.
func Circle(vib Vibration) string {
	return body(core.ActionCircle, vib)
}

// Manual returns the user's raw command, trimmed. It is sent verbatim.
func Manual(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyManual
	}
	return text, nil
}
