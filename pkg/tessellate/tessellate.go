// Package tessellate walks a surface tree and produces triangle meshes
// using a meshing kernel. One mesh is produced per part, where the parts
// are the direct children of the root (or the root itself for a leaf).
package tessellate

import (
	"fmt"
	"log"

	"github.com/chazu/sdfview/pkg/kernel"
	"github.com/chazu/sdfview/pkg/surface"
)

// Parts returns the surfaces that Tessellate meshes separately.
func Parts(root surface.Surface) []surface.Surface {
	if root == nil {
		return nil
	}
	children := surface.Children(root)
	if len(children) == 0 {
		return []surface.Surface{root}
	}
	return children
}

// PartName returns the display name of a part: its name, or its id when
// it only carries the default name.
func PartName(s surface.Surface) string {
	name := surface.Name(s)
	if name == surface.DefaultName {
		if id := surface.ID(s); id != 0 {
			return fmt.Sprintf("#%d", id)
		}
	}
	return name
}

// Part is a meshed part together with the surface it was meshed from.
type Part struct {
	Surface surface.Surface
	Mesh    *kernel.Mesh
}

// TessellateParts produces one triangle mesh per part of root using the
// provided kernel. Unbounded parts (planes, for instance) cannot be meshed
// and are skipped. The tessellator only samples; it never mutates the tree.
func TessellateParts(root surface.Surface, k kernel.Kernel) ([]Part, error) {
	var parts []Part
	for _, part := range Parts(root) {
		if _, ok := surface.Bounds(part); !ok {
			log.Printf("tessellate: skipping unbounded part %s", PartName(part))
			continue
		}
		mesh, err := k.ToMesh(part)
		if err != nil {
			return nil, fmt.Errorf("tessellate: part %s: %w", PartName(part), err)
		}
		mesh.PartName = PartName(part)
		parts = append(parts, Part{Surface: part, Mesh: mesh})
	}
	return parts, nil
}

// Tessellate is TessellateParts without the part surfaces.
func Tessellate(root surface.Surface, k kernel.Kernel) ([]*kernel.Mesh, error) {
	parts, err := TessellateParts(root, k)
	if err != nil {
		return nil, err
	}
	meshes := make([]*kernel.Mesh, 0, len(parts))
	for _, p := range parts {
		meshes = append(meshes, p.Mesh)
	}
	return meshes, nil
}
