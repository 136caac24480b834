package classifier

import (
	"strconv"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

// IdleFill is the mic glyph color when nobody is talking.
const IdleFill = "#616061"

// parseColor understands the forms getComputedStyle and inline SVG use:
// #rgb, #rrggbb, rgb(r, g, b) and rgba(r, g, b, a). Fully transparent colors
// are reported as unparseable since nothing is painted.
func parseColor(s string) (colorful.Color, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch {
	case strings.HasPrefix(s, "#"):
		c, err := colorful.Hex(s)
		if err != nil {
			return colorful.Color{}, false
		}
		return c, true

	case strings.HasPrefix(s, "rgb"):
		open := strings.Index(s, "(")
		end := strings.LastIndex(s, ")")
		if open == -1 || end <= open {
			return colorful.Color{}, false
		}
		parts := strings.Split(s[open+1:end], ",")
		if len(parts) != 3 && len(parts) != 4 {
			return colorful.Color{}, false
		}
		var rgb [3]uint8
		for i := 0; i < 3; i++ {
			v, err := strconv.Atoi(strings.TrimSpace(parts[i]))
			if err != nil || v < 0 || v > 255 {
				return colorful.Color{}, false
			}
			rgb[i] = uint8(v)
		}
		if len(parts) == 4 {
			alpha, err := strconv.ParseFloat(strings.TrimSpace(parts[3]), 64)
			if err != nil || alpha == 0 {
				return colorful.Color{}, false
			}
		}
		return colorful.Color{
			R: float64(rgb[0]) / 255.0,
			G: float64(rgb[1]) / 255.0,
			B: float64(rgb[2]) / 255.0,
		}, true
	}
	return colorful.Color{}, false
}

// sameColor compares two colors at 8-bit precision.
func sameColor(a, b colorful.Color) bool {
	ar, ag, ab := a.RGB255()
	br, bg, bb := b.RGB255()
	return ar == br && ag == bg && ab == bb
}

// styleProperty reads one property out of an inline style attribute.
func styleProperty(style, name string) string {
	for _, decl := range strings.Split(style, ";") {
		k, v, ok := strings.Cut(decl, ":")
		if !ok {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(k), name) {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
