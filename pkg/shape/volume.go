package shape

import (
	"fmt"
	"image/color"
	"math"

	"github.com/chazu/sdfview/pkg/surface"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// DefaultThreshold is the iso level a new Volume extracts.
const DefaultThreshold = 0.15

// MaxBlobRes bounds the per-axis resolution of NewBlobVolume.
const MaxBlobRes = 256

var (
	_ surface.Bounded         = (*Volume)(nil)
	_ surface.ParameterSetter = (*Volume)(nil)
)

// Volume is a dense grid of density samples spanning a box. Voxel values
// are stored at cell centers, x fastest. Densities at or above the
// threshold are inside the surface.
type Volume struct {
	surface.Node
	bounds    surface.Box
	res       [3]int
	data      []float32
	lo, hi    float64
	threshold float64
	color     color.NRGBA
}

// NewVolume wraps data sampled on a res grid over bounds. data is not copied.
func NewVolume(id uint32, name string, bounds surface.Box, res [3]int, data []float32) (*Volume, error) {
	n := 1
	for i, r := range res {
		if r < 1 {
			return nil, fmt.Errorf("shape: volume: resolution %v has non-positive axis %d", res, i)
		}
		n *= r
	}
	if len(data) != n {
		return nil, fmt.Errorf("shape: volume: %d samples for a %v grid, want %d", len(data), res, n)
	}
	size := bounds.Max.Sub(bounds.Min)
	if size.X <= 0 || size.Y <= 0 || size.Z <= 0 {
		return nil, fmt.Errorf("shape: volume: empty bounds %v", bounds)
	}
	v := &Volume{
		Node:      surface.NewNode(id, name),
		bounds:    bounds,
		res:       res,
		data:      data,
		threshold: DefaultThreshold,
		color:     DefaultColor,
	}
	v.lo, v.hi = math.Inf(1), math.Inf(-1)
	for _, d := range data {
		v.extendRange(float64(d))
	}
	v.threshold = math.Max(v.lo, math.Min(v.hi, DefaultThreshold))
	return v, nil
}

// NewBlobVolume builds a volume whose density falls off linearly from 1 at
// the center of a box of the given size to 0 at half its smallest side.
func NewBlobVolume(id uint32, name string, size v3.Vec, res int) (*Volume, error) {
	if res < 2 || res > MaxBlobRes {
		return nil, fmt.Errorf("shape: volume: resolution %d outside [2, %d]", res, MaxBlobRes)
	}
	half := size.MulScalar(0.5)
	bounds := surface.Box{Min: half.MulScalar(-1), Max: half}
	radius := math.Min(half.X, math.Min(half.Y, half.Z))
	grid := [3]int{res, res, res}
	data := make([]float32, res*res*res)
	cell := v3.Vec{X: size.X / float64(res), Y: size.Y / float64(res), Z: size.Z / float64(res)}
	for k := 0; k < res; k++ {
		for j := 0; j < res; j++ {
			for i := 0; i < res; i++ {
				p := v3.Vec{
					X: bounds.Min.X + (float64(i)+0.5)*cell.X,
					Y: bounds.Min.Y + (float64(j)+0.5)*cell.Y,
					Z: bounds.Min.Z + (float64(k)+0.5)*cell.Z,
				}
				d := 1 - p.Length()/radius
				data[i+res*(j+res*k)] = float32(math.Max(0, d))
			}
		}
	}
	return NewVolume(id, name, bounds, grid, data)
}

// Bounds returns the box spanned by the grid.
func (v *Volume) Bounds() (surface.Box, bool) { return v.bounds, true }

// Resolution returns the grid size.
func (v *Volume) Resolution() [3]int { return v.res }

// Threshold returns the current iso level.
func (v *Volume) Threshold() float64 { return v.threshold }

// Range returns the smallest and largest stored density, the bounds of the
// threshold.
func (v *Volume) Range() (lo, hi float64) { return v.lo, v.hi }

func (v *Volume) cell() v3.Vec {
	size := v.bounds.Max.Sub(v.bounds.Min)
	return v3.Vec{X: size.X / float64(v.res[0]), Y: size.Y / float64(v.res[1]), Z: size.Z / float64(v.res[2])}
}

func (v *Volume) at(i, j, k int) float64 {
	return float64(v.data[i+v.res[0]*(j+v.res[1]*k)])
}

// Density returns the trilinearly interpolated density at p, clamped to
// the grid.
func (v *Volume) Density(p v3.Vec) float64 {
	c := v.cell()
	var idx [3]int
	var frac [3]float64
	coords := [3]float64{
		(p.X-v.bounds.Min.X)/c.X - 0.5,
		(p.Y-v.bounds.Min.Y)/c.Y - 0.5,
		(p.Z-v.bounds.Min.Z)/c.Z - 0.5,
	}
	for a := 0; a < 3; a++ {
		u := math.Max(0, math.Min(float64(v.res[a]-1), coords[a]))
		i := int(math.Floor(u))
		if i >= v.res[a]-1 {
			i = max(v.res[a]-2, 0)
		}
		idx[a] = i
		frac[a] = u - float64(i)
	}
	next := func(a int) int { return min(idx[a]+1, v.res[a]-1) }
	i0, j0, k0 := idx[0], idx[1], idx[2]
	i1, j1, k1 := next(0), next(1), next(2)
	fx, fy, fz := frac[0], frac[1], frac[2]

	c00 := lerp(v.at(i0, j0, k0), v.at(i1, j0, k0), fx)
	c10 := lerp(v.at(i0, j1, k0), v.at(i1, j1, k0), fx)
	c01 := lerp(v.at(i0, j0, k1), v.at(i1, j0, k1), fx)
	c11 := lerp(v.at(i0, j1, k1), v.at(i1, j1, k1), fx)
	return lerp(lerp(c00, c10, fy), lerp(c01, c11, fy), fz)
}

func lerp(a, b, t float64) float64 { return a + (b-a)*t }

// Sample approximates the signed distance to the iso surface by scaling the
// density offset with the cell size. Outside the grid the distance to the
// grid box is added so the field stays finite and increasing.
func (v *Volume) Sample(p v3.Vec, material bool) surface.SampleResult {
	q := p.Max(v.bounds.Min).Min(v.bounds.Max)
	outside := p.Sub(q).Length()
	c := v.cell()
	scale := math.Min(c.X, math.Min(c.Y, c.Z))
	r := surface.SampleResult{Distance: (v.threshold-v.Density(q))*scale + outside}
	if material {
		r.Material = surface.Material{Color: v.color, ID: v.ID()}
	}
	return r
}

// SetVoxel overwrites one sample and dirties the cells it influences.
func (v *Volume) SetVoxel(i, j, k int, value float32) error {
	if i < 0 || j < 0 || k < 0 || i >= v.res[0] || j >= v.res[1] || k >= v.res[2] {
		return fmt.Errorf("shape: volume: voxel (%d,%d,%d) outside %v grid", i, j, k, v.res)
	}
	v.data[i+v.res[0]*(j+v.res[1]*k)] = value
	v.extendRange(float64(value))

	c := v.cell()
	center := v3.Vec{
		X: v.bounds.Min.X + (float64(i)+0.5)*c.X,
		Y: v.bounds.Min.Y + (float64(j)+0.5)*c.Y,
		Z: v.bounds.Min.Z + (float64(k)+0.5)*c.Z,
	}
	region := surface.Box{Min: center.Sub(c), Max: center.Add(c)}
	v.MarkDirty(surface.Box{Min: region.Min.Max(v.bounds.Min), Max: region.Max.Min(v.bounds.Max)})
	return nil
}

func (v *Volume) extendRange(d float64) {
	v.lo = math.Min(v.lo, d)
	v.hi = math.Max(v.hi, d)
}

// Parameters lists threshold and color. The threshold is bounded by the
// range of the stored densities.
func (v *Volume) Parameters() []surface.Param {
	return []surface.Param{
		surface.FloatParam("threshold", v.threshold, v.lo, v.hi, "iso level extracted from the densities"),
		colorParam(v.color),
	}
}

// SetParameter updates threshold or color; both dirty the whole grid.
func (v *Volume) SetParameter(p surface.Param) error {
	r, err := surface.Resolve(v.Parameters(), p)
	if err != nil {
		return err
	}
	switch r.Key {
	case "threshold":
		v.threshold = r.Value.(float64)
	case "color":
		v.color = r.Value.(color.NRGBA)
	}
	v.MarkDirty(v.bounds)
	return nil
}
