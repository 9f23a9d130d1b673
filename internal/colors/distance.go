// Package colors implements the perceptual color consolidation engine:
// redmean-weighted fuzzy binning of raw color observations, majority-rule
// canonical re-keying, and the derived report summary. Everything here is
// pure and total; malformed input is dropped at ingestion, never raised.
package colors

import (
	"fmt"
	"math"
	"strings"
)

// RGB is a parsed 8-bit-per-channel color.
type RGB struct {
	R, G, B int
}

// ParseHex parses "#rgb" or "#rrggbb" (case-insensitive, leading '#'
// optional) into an RGB value. The second return is false for anything
// unparseable.
func ParseHex(s string) (RGB, bool) {
	h := strings.TrimPrefix(strings.TrimSpace(strings.ToLower(s)), "#")
	switch len(h) {
	case 3:
		h = string([]byte{h[0], h[0], h[1], h[1], h[2], h[2]})
	case 6:
	default:
		return RGB{}, false
	}

	var c RGB
	if _, err := fmt.Sscanf(h, "%02x%02x%02x", &c.R, &c.G, &c.B); err != nil {
		return RGB{}, false
	}
	return c, true
}

// Hex returns the normalized "#rrggbb" form.
func (c RGB) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// NormalizeHex returns the canonical "#rrggbb" form of a hex string, or
// "" when it cannot be parsed.
func NormalizeHex(s string) string {
	c, ok := ParseHex(s)
	if !ok {
		return ""
	}
	return c.Hex()
}

// Redmean computes the redmean-weighted Euclidean distance between two
// colors. Channel weights shift with the average redness, which tracks
// human color perception far better than plain Euclidean RGB distance.
func Redmean(a, b RGB) float64 {
	rMean := float64(a.R+b.R) / 2
	dR := float64(a.R - b.R)
	dG := float64(a.G - b.G)
	dB := float64(a.B - b.B)

	return math.Sqrt(
		(2+rMean/256)*dR*dR +
			4*dG*dG +
			(2+(255-rMean)/256)*dB*dB,
	)
}

// IsNeutral reports whether the color is a gray: all channels within
// tolerance of each other.
func IsNeutral(c RGB, tolerance int) bool {
	maxC := max(c.R, max(c.G, c.B))
	minC := min(c.R, min(c.G, c.B))
	return maxC-minC <= tolerance
}

// relativeLuminance implements the WCAG 2.x formula.
func relativeLuminance(c RGB) float64 {
	lin := func(v int) float64 {
		s := float64(v) / 255
		if s <= 0.04045 {
			return s / 12.92
		}
		return math.Pow((s+0.055)/1.055, 2.4)
	}
	return 0.2126*lin(c.R) + 0.7152*lin(c.G) + 0.0722*lin(c.B)
}

// ContrastRatio returns the WCAG contrast ratio between two colors,
// in the range [1, 21].
func ContrastRatio(a, b RGB) float64 {
	la, lb := relativeLuminance(a), relativeLuminance(b)
	if la < lb {
		la, lb = lb, la
	}
	return (la + 0.05) / (lb + 0.05)
}
