package shape

import (
	"image/color"
	"math"

	"github.com/chazu/sdfview/pkg/surface"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

var (
	_ surface.NormalEstimator = (*Plane)(nil)
	_ surface.ParameterSetter = (*Plane)(nil)
)

// Plane is the horizontal plane y = offset, solid below.
// It is unbounded and reports no Bounds.
type Plane struct {
	surface.Node
	offset float64
	color  color.NRGBA
}

// NewPlane returns the plane y = offset.
func NewPlane(id uint32, name string, offset float64) *Plane {
	return &Plane{Node: surface.NewNode(id, name), offset: offset, color: DefaultColor}
}

// Sample returns the height of p above the plane.
func (pl *Plane) Sample(p v3.Vec, material bool) surface.SampleResult {
	r := surface.SampleResult{Distance: p.Y - pl.offset}
	if material {
		r.Material = surface.Material{Color: pl.color, ID: pl.ID()}
	}
	return r
}

// Normal is +y everywhere.
func (pl *Plane) Normal(v3.Vec, float64) v3.Vec {
	return v3.Vec{Y: 1}
}

// Parameters lists offset and color.
func (pl *Plane) Parameters() []surface.Param {
	return []surface.Param{
		surface.FloatParam("offset", pl.offset, -maxSize, maxSize, "height of the plane"),
		colorParam(pl.color),
	}
}

// SetParameter updates offset or color. Moving the plane dirties the slab
// swept between the old and new heights.
func (pl *Plane) SetParameter(p surface.Param) error {
	r, err := surface.Resolve(pl.Parameters(), p)
	if err != nil {
		return err
	}
	switch r.Key {
	case "offset":
		next := r.Value.(float64)
		pl.MarkDirty(slab(math.Min(pl.offset, next), math.Max(pl.offset, next)))
		pl.offset = next
	case "color":
		pl.color = r.Value.(color.NRGBA)
		pl.MarkDirty(slab(pl.offset, pl.offset))
	}
	return nil
}

func slab(lo, hi float64) surface.Box {
	inf := math.Inf(1)
	return surface.Box{
		Min: v3.Vec{X: -inf, Y: lo, Z: -inf},
		Max: v3.Vec{X: inf, Y: hi, Z: inf},
	}
}
