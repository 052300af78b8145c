package surface

import (
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Box is an axis-aligned bounding box.
type Box = sdf.Box3

// Merge returns the smallest box containing both a and b.
func Merge(a, b Box) Box {
	return Box{Min: a.Min.Min(b.Min), Max: a.Max.Max(b.Max)}
}

// MergeAll merges every box. It reports false for an empty input.
func MergeAll(boxes ...Box) (Box, bool) {
	if len(boxes) == 0 {
		return Box{}, false
	}
	out := boxes[0]
	for _, b := range boxes[1:] {
		out = Merge(out, b)
	}
	return out, true
}

// Bounds returns the extent of s. Surfaces implementing Bounded report their
// own box; otherwise the bounds of the children are merged. A leaf without
// Bounded (or a composite with an unbounded child) reports false.
func Bounds(s Surface) (Box, bool) {
	if b, ok := s.(Bounded); ok {
		return b.Bounds()
	}
	children := Children(s)
	if len(children) == 0 {
		return Box{}, false
	}
	boxes := make([]Box, 0, len(children))
	for _, ch := range children {
		b, ok := Bounds(ch)
		if !ok {
			return Box{}, false
		}
		boxes = append(boxes, b)
	}
	return MergeAll(boxes...)
}

// Contains reports whether p lies inside b, boundary included.
func Contains(b Box, p v3.Vec) bool {
	return p.X >= b.Min.X && p.X <= b.Max.X &&
		p.Y >= b.Min.Y && p.Y <= b.Max.Y &&
		p.Z >= b.Min.Z && p.Z <= b.Max.Z
}

// Overlaps reports whether a and b share any point.
func Overlaps(a, b Box) bool {
	return a.Min.X <= b.Max.X && b.Min.X <= a.Max.X &&
		a.Min.Y <= b.Max.Y && b.Min.Y <= a.Max.Y &&
		a.Min.Z <= b.Max.Z && b.Min.Z <= a.Max.Z
}

// Offset translates b by d.
func Offset(b Box, d v3.Vec) Box {
	return Box{Min: b.Min.Add(d), Max: b.Max.Add(d)}
}

// Grow enlarges b by m on every side.
func Grow(b Box, m float64) Box {
	return Box{Min: b.Min.AddScalar(-m), Max: b.Max.AddScalar(m)}
}
