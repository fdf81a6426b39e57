// Package colour provides a shared colour object for use across the render pipeline.
package colour

import "math"

// RGB represents a colour with red, green, blue, and opacity channels.
// All channels are normalized so they're within the range [0, 1].
type RGB struct {
	R, G, B, O float64
}

// NewRGB returns a new opaque RGB colour with the specified 8-bit channels.
func NewRGB(r, g, b uint8) RGB {
	return RGB{R: float64(r) / 255.0, G: float64(g) / 255.0, B: float64(b) / 255.0, O: 1.0}
}

// NewRGBFromFloats returns a new RGB object with the specified colours (after clamping them to the range [0, 1]).
func NewRGBFromFloats(r, g, b float32) RGB {
	return RGB{R: clamp(float64(r)), G: clamp(float64(g)), B: clamp(float64(b)), O: 1.0}
}

func clamp(v float64) float64 {
	return math.Max(0.0, math.Min(v, 1.0))
}

// Add returns the sum of the RGB objects a and b.  Opacity is carried from a.
func (a RGB) Add(b RGB) RGB {
	return RGB{R: math.Min(a.R+b.R, 1.0), G: math.Min(a.G+b.G, 1.0), B: math.Min(a.B+b.B, 1.0), O: a.O}
}

// Scale returns the RGB object a scaled by the scalar s.
func (a RGB) Scale(s float64) RGB {
	return RGB{R: clamp(s * a.R), G: clamp(s * a.G), B: clamp(s * a.B), O: a.O}
}

// Multiply returns the component-wise product of the RGB objects a and b.
func (a RGB) Multiply(b RGB) RGB {
	return RGB{R: a.R * b.R, G: a.G * b.G, B: a.B * b.B, O: a.O}
}

// Over composites b behind a using a's opacity (the "over" operator).
func (a RGB) Over(b RGB) RGB {
	t := 1.0 - a.O
	return RGB{
		R: a.R*a.O + b.R*t,
		G: a.G*a.O + b.G*t,
		B: a.B*a.O + b.B*t,
		O: a.O + b.O*t,
	}
}

// RGBA implements the image/color.Color interface.
func (a RGB) RGBA() (uint32, uint32, uint32, uint32) {
	return uint32(255 * a.R), uint32(255 * a.G), uint32(255 * a.B), uint32(255 * a.O)
}

// Bytes returns the three colour channels in the range [0, 255].
func (a RGB) Bytes() (uint8, uint8, uint8) {
	return uint8(255 * clamp(a.R)), uint8(255 * clamp(a.G)), uint8(255 * clamp(a.B))
}
