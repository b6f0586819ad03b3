package device

import (
	"net/url"
	"strings"

	"magicband-controller/internal/ble"
	"magicband-controller/internal/palette"
)

// toInt parses a leading decimal integer. Trailing junk is ignored and no
// digits give 0, so "3x" is 3 and "x" is 0.
func toInt(s string) int {
	s = strings.TrimLeft(s, " \t\r\n")
	neg := false
	if s != "" && (s[0] == '-' || s[0] == '+') {
		neg = s[0] == '-'
		s = s[1:]
	}
	n := 0
	for i := 0; i < len(s) && s[i] >= '0' && s[i] <= '9'; i++ {
		n = n*10 + int(s[i]-'0')
	}
	if neg {
		return -n
	}
	return n
}

func intParam(form url.Values, key string, def int) int {
	if !form.Has(key) {
		return def
	}
	return toInt(form.Get(key))
}

func codeParam(form url.Values, key string, def palette.Code) palette.Code {
	return palette.Code(uint8(intParam(form, key, int(def))))
}

// Packet encodes a parsed /command form into a band packet. Unknown actions
// yield nil: the band acknowledges them without broadcasting.
func Packet(action string, form url.Values) []byte {
	vib := uint8(intParam(form, "vib", 0))

	switch action {
	case "ping":
		return ble.Ping()
	case "preset":
		color := "white"
		if form.Has("color") {
			color = form.Get("color")
		}
		return ble.Preset(palette.Preset(color), vib)
	case "rainbow":
		return ble.Rainbow([5]palette.Code{
			codeParam(form, "c1", palette.YellowOrange),
			codeParam(form, "c2", palette.Red),
			codeParam(form, "c3", palette.Green),
			codeParam(form, "c4", palette.Blue),
			codeParam(form, "c5", palette.Purple),
		}, vib)
	case "dual":
		return ble.Dual(codeParam(form, "c1", palette.YellowOrange), codeParam(form, "c2", palette.Blue), vib)
	case "circle":
		return ble.Circle(vib)
	case "crossfade":
		return ble.Crossfade(codeParam(form, "c1", palette.Red), codeParam(form, "c2", palette.Blue), vib)
	}
	return nil
}
