package shape

import (
	"math"

	"github.com/chazu/sdfview/pkg/surface"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

var (
	_ surface.Composite       = (*Union)(nil)
	_ surface.Composite       = (*Translate)(nil)
	_ surface.NormalEstimator = (*Translate)(nil)
	_ surface.Bounded         = (*Translate)(nil)
)

// Union combines its children; the nearest child wins. Children may be
// shared with other parents.
type Union struct {
	surface.Node
	children []surface.Surface
}

// NewUnion returns a union of the given children.
func NewUnion(id uint32, name string, children ...surface.Surface) *Union {
	return &Union{Node: surface.NewNode(id, name), children: children}
}

// Sample returns the minimum child distance and, when requested, the
// material of the nearest child. An empty union is infinitely far away,
// reported as math.MaxFloat64 to stay finite.
func (u *Union) Sample(p v3.Vec, material bool) surface.SampleResult {
	best := surface.SampleResult{Distance: math.MaxFloat64}
	for _, ch := range u.children {
		r := ch.Sample(p, material)
		if r.Distance < best.Distance {
			best = r
		}
	}
	return best
}

// Children returns the children in insertion order.
func (u *Union) Children() []surface.Surface { return u.children }

// Add appends a child and marks its extent dirty. An unbounded child
// dirties all of space.
func (u *Union) Add(s surface.Surface) {
	u.children = append(u.children, s)
	if b, ok := surface.Bounds(s); ok {
		u.MarkDirty(b)
	} else {
		u.MarkDirty(everywhere())
	}
}

// Changed reports a membership change first, then the first change found
// among the children.
func (u *Union) Changed() (surface.Box, bool) {
	if b, ok := u.Node.Changed(); ok {
		return b, true
	}
	return surface.DefaultChanged(u)
}

// maxChildPolls bounds how many pending child changes a move absorbs.
const maxChildPolls = 1 << 16

// Translate moves a single child by an offset.
type Translate struct {
	surface.Node
	child  surface.Surface
	offset v3.Vec
}

// NewTranslate returns child moved by offset.
func NewTranslate(id uint32, name string, child surface.Surface, offset v3.Vec) *Translate {
	return &Translate{Node: surface.NewNode(id, name), child: child, offset: offset}
}

// Sample evaluates the child in its own frame.
func (t *Translate) Sample(p v3.Vec, material bool) surface.SampleResult {
	return t.child.Sample(p.Sub(t.offset), material)
}

// Normal delegates to the child so analytic normals survive translation.
func (t *Translate) Normal(p v3.Vec, eps float64) v3.Vec {
	return surface.Normal(t.child, p.Sub(t.offset), eps)
}

// Children returns the translated child.
func (t *Translate) Children() []surface.Surface { return []surface.Surface{t.child} }

// Offset returns the current translation.
func (t *Translate) Offset() v3.Vec { return t.offset }

// Bounds returns the child's bounds moved by the offset.
func (t *Translate) Bounds() (surface.Box, bool) {
	b, ok := surface.Bounds(t.child)
	if !ok {
		return surface.Box{}, false
	}
	return surface.Offset(b, t.offset), true
}

// Parameters lists the offset components.
func (t *Translate) Parameters() []surface.Param {
	return []surface.Param{
		surface.FloatParam("offset-x", t.offset.X, -maxSize, maxSize, "translation along x"),
		surface.FloatParam("offset-y", t.offset.Y, -maxSize, maxSize, "translation along y"),
		surface.FloatParam("offset-z", t.offset.Z, -maxSize, maxSize, "translation along z"),
	}
}

// SetParameter updates one offset component and dirties the old and new
// positions of the child.
func (t *Translate) SetParameter(p surface.Param) error {
	r, err := surface.Resolve(t.Parameters(), p)
	if err != nil {
		return err
	}
	// Changes the child made before the move happened at the old offset.
	for i := 0; i < maxChildPolls; i++ {
		b, ok := surface.Changed(t.child)
		if !ok {
			break
		}
		t.MarkDirty(surface.Offset(b, t.offset))
	}
	before, bounded := t.Bounds()
	v := r.Value.(float64)
	switch r.Key {
	case "offset-x":
		t.offset.X = v
	case "offset-y":
		t.offset.Y = v
	case "offset-z":
		t.offset.Z = v
	}
	if bounded {
		after, _ := t.Bounds()
		t.MarkDirty(surface.Merge(before, after))
	} else {
		t.MarkDirty(everywhere())
	}
	return nil
}

// Changed reports the translation's own change first, then the child's
// change moved into this frame.
func (t *Translate) Changed() (surface.Box, bool) {
	if b, ok := t.Node.Changed(); ok {
		return b, true
	}
	b, ok := surface.Changed(t.child)
	if !ok {
		return surface.Box{}, false
	}
	return surface.Offset(b, t.offset), true
}

func everywhere() surface.Box {
	inf := math.Inf(1)
	return surface.Box{
		Min: v3.Vec{X: -inf, Y: -inf, Z: -inf},
		Max: v3.Vec{X: inf, Y: inf, Z: inf},
	}
}
