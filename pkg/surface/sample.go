package surface

import "image/color"

// Material is the optional shading metadata attached to a sample.
type Material struct {
	Color color.NRGBA `json:"color"`
	ID    uint32      `json:"id"`
}

// SampleResult is the outcome of sampling a surface at a point.
type SampleResult struct {
	// Distance is signed: negative inside, zero on, positive outside.
	Distance float64
	// Material is only filled when the sample asked for it.
	Material Material
}
