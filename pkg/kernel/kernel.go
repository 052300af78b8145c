// Package kernel defines the meshing kernel interface. A kernel turns a
// surface tree into triangles for display or export. Implementations
// (currently sdfx marching cubes) live in sub-packages so the backend can
// be swapped without touching callers.
package kernel

import (
	"errors"

	"github.com/chazu/sdfview/pkg/surface"
)

// ErrUnbounded is returned when a surface without finite bounds is meshed.
var ErrUnbounded = errors.New("kernel: surface has no finite bounds")

// Kernel is the abstract meshing interface.
type Kernel interface {
	// ToMesh extracts the zero level set of s. s must be bounded.
	ToMesh(s surface.Surface) (*Mesh, error)
}
