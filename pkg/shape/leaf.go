// Package shape provides the concrete surfaces sdfview renders: sdfx-backed
// primitives, an analytic plane, a voxel volume and the Union and Translate
// composites.
package shape

import (
	"image/color"

	"github.com/chazu/sdfview/pkg/surface"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// DefaultColor is the surface color used when none is given.
var DefaultColor = color.NRGBA{R: 25, G: 125, B: 25, A: 255}

// Size limits shared by every primitive parameter.
const (
	minSize = 1e-6
	maxSize = 1e6
)

// Compile-time interface checks.
var (
	_ surface.Surface         = (*Sphere)(nil)
	_ surface.ParameterSetter = (*Sphere)(nil)
	_ surface.ChangeReporter  = (*Sphere)(nil)
	_ surface.Bounded         = (*Sphere)(nil)
	_ surface.ParameterSetter = (*Box)(nil)
	_ surface.ParameterSetter = (*Cylinder)(nil)
)

// sdfLeaf adapts an sdfx SDF3 to a surface leaf.
type sdfLeaf struct {
	surface.Node
	s     sdf.SDF3
	color color.NRGBA
}

func newSDFLeaf(id uint32, name string, s sdf.SDF3) sdfLeaf {
	return sdfLeaf{Node: surface.NewNode(id, name), s: s, color: DefaultColor}
}

// Sample evaluates the wrapped SDF.
func (l *sdfLeaf) Sample(p v3.Vec, material bool) surface.SampleResult {
	r := surface.SampleResult{Distance: l.s.Evaluate(p)}
	if material {
		r.Material = surface.Material{Color: l.color, ID: l.ID()}
	}
	return r
}

// Bounds returns the bounding box of the wrapped SDF.
func (l *sdfLeaf) Bounds() (surface.Box, bool) {
	return l.s.BoundingBox(), true
}

// SDF3 exposes the wrapped sdfx value.
func (l *sdfLeaf) SDF3() sdf.SDF3 { return l.s }

// Color returns the surface color.
func (l *sdfLeaf) Color() color.NRGBA { return l.color }

// replace swaps in a rebuilt SDF and marks the union of the old and new
// extents dirty.
func (l *sdfLeaf) replace(s sdf.SDF3) {
	before := l.s.BoundingBox()
	l.s = s
	l.MarkDirty(surface.Merge(before, s.BoundingBox()))
}

func (l *sdfLeaf) setColor(c color.NRGBA) {
	l.color = c
	l.MarkDirty(l.s.BoundingBox())
}

func colorParam(c color.NRGBA) surface.Param {
	return surface.ColorParam("color", c, "surface color")
}

func sizeParam(key string, v float64, desc string) surface.Param {
	return surface.FloatParam(key, v, minSize, maxSize, desc)
}

func roundParam(v float64) surface.Param {
	return surface.FloatParam("round", v, 0, maxSize, "edge rounding radius")
}

// rejected converts an sdfx constructor failure into a parameter rejection.
func rejected(key string, err error) error {
	return &surface.ParamError{Key: key, Reason: err.Error()}
}
