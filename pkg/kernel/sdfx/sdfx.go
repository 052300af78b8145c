// Package sdfx implements the kernel.Kernel interface using the
// github.com/deadsy/sdfx marching cubes renderer. Vertex normals come from
// the surface itself (surface.Normal), not from the triangle faces.
package sdfx

import (
	"fmt"

	"github.com/chazu/sdfview/pkg/kernel"
	"github.com/chazu/sdfview/pkg/surface"
	"github.com/deadsy/sdfx/render"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Compile-time interface check.
var _ kernel.Kernel = (*SdfxKernel)(nil)

// DefaultMeshCells controls marching cubes tessellation resolution along
// the longest side of the bounds.
const DefaultMeshCells = 200

// surfaceSDF presents a surface as an sdf.SDF3.
type surfaceSDF struct {
	s  surface.Surface
	bb sdf.Box3
}

// Evaluate samples the surface without material.
func (a *surfaceSDF) Evaluate(p v3.Vec) float64 {
	return a.s.Sample(p, false).Distance
}

// BoundingBox returns the bounds captured at construction.
func (a *surfaceSDF) BoundingBox() sdf.Box3 {
	return a.bb
}

// ToSDF3 adapts a bounded surface to the sdfx SDF3 interface.
func ToSDF3(s surface.Surface) (sdf.SDF3, error) {
	bb, ok := surface.Bounds(s)
	if !ok {
		return nil, kernel.ErrUnbounded
	}
	return &surfaceSDF{s: s, bb: bb}, nil
}

// SdfxKernel implements kernel.Kernel using sdfx.
type SdfxKernel struct {
	// Cells is the marching cubes resolution; zero means DefaultMeshCells.
	Cells int
	// NormalEpsilon is the stencil offset for vertex normals; zero means
	// surface.DefaultNormalEpsilon.
	NormalEpsilon float64
}

// New returns a new SdfxKernel.
func New() *SdfxKernel {
	return &SdfxKernel{}
}

func (k *SdfxKernel) cells() int {
	if k.Cells > 0 {
		return k.Cells
	}
	return DefaultMeshCells
}

// Triangles runs marching cubes over s and returns the raw sdfx triangles.
func (k *SdfxKernel) Triangles(s surface.Surface) ([]*sdf.Triangle3, error) {
	sdf3, err := ToSDF3(s)
	if err != nil {
		return nil, err
	}
	renderer := render.NewMarchingCubesUniform(k.cells())
	return render.ToTriangles(sdf3, renderer), nil
}

// ToMesh converts a surface to a triangle mesh using marching cubes.
func (k *SdfxKernel) ToMesh(s surface.Surface) (*kernel.Mesh, error) {
	triangles, err := k.Triangles(s)
	if err != nil {
		return nil, fmt.Errorf("sdfx: mesh %q: %w", surface.Name(s), err)
	}

	numTri := len(triangles)
	numVerts := numTri * 3

	vertices := make([]float32, 0, numVerts*3)
	normals := make([]float32, 0, numVerts*3)
	indices := make([]uint32, 0, numVerts)

	for i, tri := range triangles {
		// Face normal is the fallback where the field is flat.
		face := tri.Normal()

		for j := 0; j < 3; j++ {
			v := tri[j]
			n := surface.Normal(s, v, k.NormalEpsilon)
			if n == (v3.Vec{}) {
				n = face
			}
			vertices = append(vertices, float32(v.X), float32(v.Y), float32(v.Z))
			normals = append(normals, float32(n.X), float32(n.Y), float32(n.Z))
			indices = append(indices, uint32(i*3+j))
		}
	}

	return &kernel.Mesh{
		Vertices: vertices,
		Normals:  normals,
		Indices:  indices,
		PartName: surface.Name(s),
		PartID:   surface.ID(s),
	}, nil
}

// SaveSTL meshes s and writes it to path as binary STL.
func (k *SdfxKernel) SaveSTL(s surface.Surface, path string) (int, error) {
	triangles, err := k.Triangles(s)
	if err != nil {
		return 0, fmt.Errorf("sdfx: export %q: %w", surface.Name(s), err)
	}
	if err := render.SaveSTL(path, triangles); err != nil {
		return 0, fmt.Errorf("sdfx: write %s: %w", path, err)
	}
	return len(triangles), nil
}
