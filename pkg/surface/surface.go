package surface

import (
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// DefaultNormalEpsilon is the stencil offset used by DefaultNormal when the
// caller does not provide one.
const DefaultNormalEpsilon = 0.001

// DefaultName is reported by surfaces that do not implement Namer.
const DefaultName = "Root"

// Surface is a node of an SDF scene. Sample is the only mandatory primitive.
//
// Sample returns the signed distance from p to the surface (negative inside).
// Material data is only meaningful when material is true. Sample must return
// a finite distance for any finite point and must not mutate the node.
type Surface interface {
	Sample(p v3.Vec, material bool) SampleResult
}

// Composite is implemented by surfaces with sub-surfaces.
type Composite interface {
	Children() []Surface
}

// Identifier is implemented by surfaces with a numeric identity.
type Identifier interface {
	ID() uint32
}

// Namer is implemented by surfaces with a display name.
type Namer interface {
	Name() string
}

// ParameterLister is implemented by surfaces exposing editable parameters.
type ParameterLister interface {
	Parameters() []Param
}

// ParameterSetter is implemented by surfaces accepting parameter changes.
type ParameterSetter interface {
	SetParameter(p Param) error
}

// ChangeReporter is implemented by surfaces that track their own changes.
// Changed returns the region affected since the last call, or false.
type ChangeReporter interface {
	Changed() (Box, bool)
}

// NormalEstimator is implemented by surfaces with their own normal
// computation (analytic gradients, for instance).
type NormalEstimator interface {
	Normal(p v3.Vec, eps float64) v3.Vec
}

// Bounded is implemented by surfaces that know their own extent.
// Bounds reports false when the surface is unbounded.
type Bounded interface {
	Bounds() (Box, bool)
}

// Children returns the sub-surfaces of s. Leaves return nil.
func Children(s Surface) []Surface {
	if c, ok := s.(Composite); ok {
		return c.Children()
	}
	return nil
}

// ID returns the identity of s, or 0 when s has none.
func ID(s Surface) uint32 {
	if i, ok := s.(Identifier); ok {
		return i.ID()
	}
	return 0
}

// Name returns the name of s, or DefaultName when s has none.
func Name(s Surface) string {
	if n, ok := s.(Namer); ok {
		return n.Name()
	}
	return DefaultName
}

// Parameters returns the editable parameters of s.
func Parameters(s Surface) []Param {
	if l, ok := s.(ParameterLister); ok {
		return l.Parameters()
	}
	return nil
}

// SetParameter applies p to s. Surfaces that accept no parameters always
// fail with ErrNoParameters.
func SetParameter(s Surface, p Param) error {
	if ps, ok := s.(ParameterSetter); ok {
		return ps.SetParameter(p)
	}
	return ErrNoParameters
}

// Changed reports a region of s that changed since the last call.
// Surfaces that do not track changes themselves are queried through
// DefaultChanged.
func Changed(s Surface) (Box, bool) {
	if c, ok := s.(ChangeReporter); ok {
		return c.Changed()
	}
	return DefaultChanged(s)
}

// DefaultChanged asks each child of s in enumeration order and returns the
// first change reported. Other pending changes are left for later calls, so
// callers must poll until Changed reports nothing.
func DefaultChanged(s Surface) (Box, bool) {
	for _, ch := range Children(s) {
		if box, ok := Changed(ch); ok {
			return box, true
		}
	}
	return Box{}, false
}

// Normal returns the unit normal of s at p. eps <= 0 selects
// DefaultNormalEpsilon.
func Normal(s Surface, p v3.Vec, eps float64) v3.Vec {
	if n, ok := s.(NormalEstimator); ok {
		return n.Normal(p, eps)
	}
	return DefaultNormal(s, p, eps)
}

// tetrahedron holds the stencil directions of DefaultNormal.
var tetrahedron = [4]v3.Vec{
	{X: 1, Y: -1, Z: -1},
	{X: -1, Y: 1, Z: -1},
	{X: -1, Y: -1, Z: 1},
	{X: 1, Y: 1, Z: 1},
}

// DefaultNormal estimates the gradient of s around p with the 4-tap
// tetrahedral stencil and normalizes it. A flat field yields the zero vector.
func DefaultNormal(s Surface, p v3.Vec, eps float64) v3.Vec {
	if eps <= 0 {
		eps = DefaultNormalEpsilon
	}
	var g v3.Vec
	for _, k := range tetrahedron {
		d := s.Sample(p.Add(k.MulScalar(eps)), true).Distance
		g = g.Add(k.MulScalar(d))
	}
	return normalize(g)
}

func normalize(v v3.Vec) v3.Vec {
	l := v.Length()
	if l == 0 {
		return v3.Vec{}
	}
	return v.MulScalar(1 / l)
}

// Walk visits s and its descendants depth-first in pre-order. Returning
// false from fn skips the children of the visited node.
func Walk(s Surface, fn func(s Surface) bool) {
	if !fn(s) {
		return
	}
	for _, ch := range Children(s) {
		Walk(ch, fn)
	}
}

// Find returns the first node of the tree rooted at s whose ID is id.
func Find(s Surface, id uint32) (Surface, bool) {
	var found Surface
	Walk(s, func(n Surface) bool {
		if found != nil {
			return false
		}
		if ID(n) == id {
			found = n
			return false
		}
		return true
	})
	return found, found != nil
}
