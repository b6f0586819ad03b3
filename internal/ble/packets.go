package ble

import "magicband-controller/internal/palette"

// CompanyID is the manufacturer id the band listens for (bytes 83 01 on air).
const CompanyID uint16 = 0x0183

// PresetTiming is the timing byte the band uses for solid presets.
const PresetTiming byte = 0x2E

func vibByte(vib uint8) byte {
	return 0xB0 | (vib & 0x0F)
}

func colorByte(prefix byte, c palette.Code) byte {
	return prefix | (byte(c) & 0x1F)
}

// Ping wakes bands in range.
func Ping() []byte {
	return []byte{0xCC, 0x03, 0x00, 0x00, 0x00}
}

// SingleColor shows one palette color with the given timing byte.
func SingleColor(color palette.Code, timing byte, vib uint8) []byte {
	return []byte{
		0x83, 0x01,
		0xE9, 0x05,
		0x00,
		timing,
		0x0E,
		colorByte(0xE0, color),
		vibByte(vib),
	}
}

// Preset shows a solid preset color.
func Preset(color palette.Code, vib uint8) []byte {
	return SingleColor(color, PresetTiming, vib)
}

// Rainbow cycles through five palette colors.
func Rainbow(colors [5]palette.Code, vib uint8) []byte {
	p := []byte{0x83, 0x01, 0xE9, 0x09, 0x00, 0x2E, 0x0F}
	for _, c := range colors {
		p = append(p, colorByte(0xA0, c))
	}
	return append(p, vibByte(vib))
}

// Dual lights the inner and outer zones in two colors.
func Dual(inner, outer palette.Code, vib uint8) []byte {
	return []byte{
		0x83, 0x01, 0xE9, 0x06, 0x00, 0x22, 0x0F,
		colorByte(0x80, inner), colorByte(0x80, outer),
		vibByte(vib),
	}
}

// Circle runs the circle animation.
func Circle(vib uint8) []byte {
	return []byte{
		0x83, 0x01, 0xE9, 0x0B, 0x0B, 0x0F, 0x0F,
		0x5C, 0x5D, 0x48, 0xA5, 0xD1, 0x45, 0x32,
		vibByte(vib),
	}
}

// Crossfade fades between two palette colors.
func Crossfade(a, b palette.Code, vib uint8) []byte {
	return []byte{
		0x83, 0x01, 0xE1, 0x00, 0xE9, 0x11, 0x00, 0x6F, 0x0F,
		colorByte(0x40, a), colorByte(0x40, b),
		0x58, 0xF4, 0x48, 0x82, 0xD1, 0x46, 0x02, 0x08, 0xD0, 0x65, 0x00,
		vibByte(vib),
	}
}

// ManufacturerData splits a packet into the company id and the payload that
// follows it. Packets without the 83 01 prefix are sent whole after it.
func ManufacturerData(packet []byte) (uint16, []byte) {
	if len(packet) >= 2 && packet[0] == 0x83 && packet[1] == 0x01 {
		return CompanyID, packet[2:]
	}
	return CompanyID, packet
}
