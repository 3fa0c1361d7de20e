package soa

import "strconv"

// ParseHexColor parses "#RRGGBB" into three components in [0, 1].
func ParseHexColor(s string) (r, g, b float32, ok bool) {
	if len(s) != 7 || s[0] != '#' {
		return 0, 0, 0, false
	}
	v, err := strconv.ParseUint(s[1:], 16, 32)
	if err != nil {
		return 0, 0, 0, false
	}
	return float32(v>>16&0xff) / 255, float32(v>>8&0xff) / 255, float32(v&0xff) / 255, true
}

// MustHexColor is ParseHexColor for compile-time constants; malformed input
// yields DefaultColor grey.
func MustHexColor(s string) [3]float32 {
	r, g, b, ok := ParseHexColor(s)
	if !ok {
		return [3]float32{DefaultColor, DefaultColor, DefaultColor}
	}
	return [3]float32{r, g, b}
}

// FormatHexColor is the inverse of ParseHexColor, rounding to 8 bits.
func FormatHexColor(r, g, b float32) string {
	return "#" + hexByte(r) + hexByte(g) + hexByte(b)
}

func hexByte(c float32) string {
	v := int(c*255 + 0.5)
	v = max(0, min(255, v))
	const digits = "0123456789abcdef"
	return string([]byte{digits[v>>4], digits[v&0xf]})
}
