package viewer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sync"

	"github.com/chazu/sdfview/pkg/bake"
	"github.com/chazu/sdfview/pkg/shape"
	"github.com/chazu/sdfview/pkg/surface"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// ErrNotFound is returned when no node carries the requested id.
var ErrNotFound = errors.New("viewer: no surface with that id")

// NodeParams lists the parameters of one node.
type NodeParams struct {
	ID     uint32
	Name   string
	Params []surface.Param
}

// Scene owns a surface tree and its baked distance texture. Parameter edits
// and ticks are serialized; a tick re-bakes only the regions the tree
// reports as changed. A change below a node reachable along more than one
// path is reported for one path only, so it re-bakes the whole grid.
type Scene struct {
	mu   sync.Mutex
	cfg  Config
	root surface.Surface
	tex  *bake.Texture
	// stale forces the next tick to re-bake the whole grid.
	stale bool
}

// NewScene applies the configured volume material to root and bakes it.
func NewScene(ctx context.Context, root surface.Surface, cfg Config) (*Scene, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("viewer: %w", err)
	}
	s := &Scene{cfg: cfg}
	if err := s.load(ctx, root); err != nil {
		return nil, err
	}
	return s, nil
}

// load prepares root and swaps it in. The caller holds mu or owns s.
func (s *Scene) load(ctx context.Context, root surface.Surface) error {
	if err := applyMaterial(root, s.cfg); err != nil {
		return err
	}
	if _, err := bake.Drain(root, 0); err != nil {
		return fmt.Errorf("viewer: %w", err)
	}
	grid := GridFor(root, s.cfg.Bake)
	tex, err := bake.NewTexture(grid, s.cfg.Bake.Band)
	if err != nil {
		return fmt.Errorf("viewer: %w", err)
	}
	if err := bake.Bake(ctx, root, tex); err != nil {
		return fmt.Errorf("viewer: %w", err)
	}
	s.root, s.tex, s.stale = root, tex, false
	log.Printf("Baked %q: %v voxels over %v", surface.Name(root), grid.Res, grid.Bounds)
	return nil
}

// applyMaterial gives every volume in the tree the configured color and
// threshold. The threshold is clamped to the range of each volume's data.
func applyMaterial(root surface.Surface, cfg Config) error {
	c, err := cfg.MaterialColor()
	if err != nil {
		return fmt.Errorf("viewer: material: %w", err)
	}
	var firstErr error
	surface.Walk(root, func(n surface.Surface) bool {
		vol, ok := n.(*shape.Volume)
		if !ok || firstErr != nil {
			return firstErr == nil
		}
		lo, hi := vol.Range()
		threshold := math.Max(lo, math.Min(hi, cfg.Material.Threshold))
		if threshold != cfg.Material.Threshold {
			log.Printf("Volume %q: threshold %v clamped to %v", surface.Name(vol), cfg.Material.Threshold, threshold)
		}
		for _, p := range []surface.Param{
			{Key: "threshold", Value: threshold},
			{Key: "color", Value: c},
		} {
			if err := vol.SetParameter(p); err != nil {
				firstErr = fmt.Errorf("viewer: volume %q: %w", surface.Name(vol), err)
				return false
			}
		}
		return true
	})
	return firstErr
}

// GridFor returns the bake grid for root: its bounds grown by the padding,
// or a cube of the configured extent when root is unbounded. The longest
// side gets cfg.Resolution voxels and the others keep the cells near cubic.
func GridFor(root surface.Surface, cfg Bake) bake.Grid {
	b, ok := surface.Bounds(root)
	if ok {
		b = surface.Grow(b, cfg.Padding)
	} else {
		e := cfg.Extent
		b = surface.Box{Min: v3.Vec{X: -e, Y: -e, Z: -e}, Max: v3.Vec{X: e, Y: e, Z: e}}
	}
	size := b.Max.Sub(b.Min)
	sides := [3]float64{size.X, size.Y, size.Z}
	longest := math.Max(sides[0], math.Max(sides[1], sides[2]))
	cell := longest / float64(cfg.Resolution)
	var res [3]int
	for i, side := range sides {
		res[i] = max(1, int(math.Ceil(side/cell-1e-9)))
	}
	return bake.Grid{Bounds: b, Res: res}
}

// Tick drains pending changes and re-bakes the affected voxels. It returns
// the number of voxels written.
func (s *Scene) Tick(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sh := findSharing(s.root)
	full := s.stale || sh.dirty() || s.tex.Band <= 0
	regions, err := bake.Drain(s.root, 0)
	if err != nil {
		return 0, fmt.Errorf("viewer: %w", err)
	}
	if len(regions) == 0 && !s.stale {
		return 0, nil
	}
	if full || sh.opaque {
		// Keep stale set until a full bake completes.
		s.stale = true
		if err := bake.Bake(ctx, s.root, s.tex); err != nil {
			return 0, fmt.Errorf("viewer: %w", err)
		}
		s.stale = false
		return s.tex.Grid.Len(), nil
	}
	total := 0
	for _, r := range regions {
		n, err := bake.Rebake(ctx, s.root, s.tex, r)
		if err != nil {
			return total, fmt.Errorf("viewer: %w", err)
		}
		total += n
	}
	return total, nil
}

// SetParameter changes a parameter of the node with the given id. The
// change becomes visible in the texture on the next Tick.
func (s *Scene) SetParameter(id uint32, p surface.Param) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	node, ok := surface.Find(s.root, id)
	if !ok {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	sh := findSharing(s.root)
	if sh.contains(node) || sh.dirty() {
		s.stale = true
	}
	if err := surface.SetParameter(node, p); err != nil {
		return fmt.Errorf("viewer: %s: %w", surface.Name(node), err)
	}
	return nil
}

// Parameters lists every node that declares parameters, in tree order.
// Shared nodes are listed once. Nodes that cannot be compared by identity
// are listed wherever they occur.
func (s *Scene) Parameters() []NodeParams {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[surface.Surface]bool)
	var out []NodeParams
	surface.Walk(s.root, func(n surface.Surface) bool {
		if identifiable(n) {
			if seen[n] {
				return false
			}
			seen[n] = true
		}
		if params := surface.Parameters(n); len(params) > 0 {
			out = append(out, NodeParams{ID: surface.ID(n), Name: surface.Name(n), Params: params})
		}
		return true
	})
	return out
}

// Replace swaps in a new tree and bakes it from scratch.
func (s *Scene) Replace(ctx context.Context, root surface.Surface) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx, root)
}

// Root returns the current tree. Callers must not mutate it directly.
func (s *Scene) Root() surface.Surface {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.root
}

// Texture returns a copy of the baked texture.
func (s *Scene) Texture() bake.Texture {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := *s.tex
	t.Data = append([]float32(nil), s.tex.Data...)
	return t
}

// Sample queries the current tree with material.
func (s *Scene) Sample(p v3.Vec) surface.SampleResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.root.Sample(p, true)
}

// Normal estimates the surface normal at p.
func (s *Scene) Normal(p v3.Vec, eps float64) v3.Vec {
	s.mu.Lock()
	defer s.mu.Unlock()
	return surface.Normal(s.root, p, eps)
}

// Config returns the scene configuration.
func (s *Scene) Config() Config { return s.cfg }
