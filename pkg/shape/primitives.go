package shape

import (
	"fmt"
	"image/color"

	"github.com/chazu/sdfview/pkg/surface"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Sphere is a sphere centered at the origin.
type Sphere struct {
	sdfLeaf
	radius float64
}

// NewSphere returns a sphere of the given radius.
func NewSphere(id uint32, name string, radius float64) (*Sphere, error) {
	s, err := sdf.Sphere3D(radius)
	if err != nil {
		return nil, fmt.Errorf("shape: sphere: %w", err)
	}
	return &Sphere{sdfLeaf: newSDFLeaf(id, name, s), radius: radius}, nil
}

// Parameters lists radius and color.
func (s *Sphere) Parameters() []surface.Param {
	return []surface.Param{
		sizeParam("radius", s.radius, "sphere radius"),
		colorParam(s.color),
	}
}

// SetParameter updates radius or color.
func (s *Sphere) SetParameter(p surface.Param) error {
	r, err := surface.Resolve(s.Parameters(), p)
	if err != nil {
		return err
	}
	switch r.Key {
	case "radius":
		radius := r.Value.(float64)
		built, err := sdf.Sphere3D(radius)
		if err != nil {
			return rejected(r.Key, err)
		}
		s.radius = radius
		s.replace(built)
	case "color":
		s.setColor(r.Value.(color.NRGBA))
	}
	return nil
}

// Box is an axis-aligned, optionally rounded box centered at the origin.
type Box struct {
	sdfLeaf
	size  v3.Vec
	round float64
}

// NewBox returns a box with the given size and edge rounding.
func NewBox(id uint32, name string, size v3.Vec, round float64) (*Box, error) {
	s, err := sdf.Box3D(size, round)
	if err != nil {
		return nil, fmt.Errorf("shape: box: %w", err)
	}
	return &Box{sdfLeaf: newSDFLeaf(id, name, s), size: size, round: round}, nil
}

// Parameters lists the box dimensions, rounding and color.
func (b *Box) Parameters() []surface.Param {
	return []surface.Param{
		sizeParam("size-x", b.size.X, "extent along x"),
		sizeParam("size-y", b.size.Y, "extent along y"),
		sizeParam("size-z", b.size.Z, "extent along z"),
		roundParam(b.round),
		colorParam(b.color),
	}
}

// SetParameter updates one dimension, the rounding or the color.
func (b *Box) SetParameter(p surface.Param) error {
	r, err := surface.Resolve(b.Parameters(), p)
	if err != nil {
		return err
	}
	size, round := b.size, b.round
	switch r.Key {
	case "size-x":
		size.X = r.Value.(float64)
	case "size-y":
		size.Y = r.Value.(float64)
	case "size-z":
		size.Z = r.Value.(float64)
	case "round":
		round = r.Value.(float64)
	case "color":
		b.setColor(r.Value.(color.NRGBA))
		return nil
	}
	built, err := sdf.Box3D(size, round)
	if err != nil {
		return rejected(r.Key, err)
	}
	b.size, b.round = size, round
	b.replace(built)
	return nil
}

// Cylinder is a z-aligned cylinder centered at the origin.
type Cylinder struct {
	sdfLeaf
	height, radius, round float64
}

// NewCylinder returns a cylinder with the given height, radius and rounding.
func NewCylinder(id uint32, name string, height, radius, round float64) (*Cylinder, error) {
	s, err := sdf.Cylinder3D(height, radius, round)
	if err != nil {
		return nil, fmt.Errorf("shape: cylinder: %w", err)
	}
	return &Cylinder{sdfLeaf: newSDFLeaf(id, name, s), height: height, radius: radius, round: round}, nil
}

// Parameters lists height, radius, rounding and color.
func (c *Cylinder) Parameters() []surface.Param {
	return []surface.Param{
		sizeParam("height", c.height, "length along z"),
		sizeParam("radius", c.radius, "cylinder radius"),
		roundParam(c.round),
		colorParam(c.color),
	}
}

// SetParameter updates one dimension, the rounding or the color.
func (c *Cylinder) SetParameter(p surface.Param) error {
	r, err := surface.Resolve(c.Parameters(), p)
	if err != nil {
		return err
	}
	height, radius, round := c.height, c.radius, c.round
	switch r.Key {
	case "height":
		height = r.Value.(float64)
	case "radius":
		radius = r.Value.(float64)
	case "round":
		round = r.Value.(float64)
	case "color":
		c.setColor(r.Value.(color.NRGBA))
		return nil
	}
	built, err := sdf.Cylinder3D(height, radius, round)
	if err != nil {
		return rejected(r.Key, err)
	}
	c.height, c.radius, c.round = height, radius, round
	c.replace(built)
	return nil
}
