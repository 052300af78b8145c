// Package bake samples a surface tree into a dense distance texture, the
// form a GPU ray marcher uploads as a 3D texture. It also implements the
// consumer side of change tracking: polling a tree until it is clean and
// re-sampling only the voxels inside each reported region.
package bake

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"

	"github.com/chazu/sdfview/pkg/surface"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"golang.org/x/sync/errgroup"
)

// ErrNoDrain is returned when a tree keeps reporting changes past the poll
// limit.
var ErrNoDrain = errors.New("bake: surface did not drain")

// DefaultMaxPolls bounds Drain when the caller passes zero.
const DefaultMaxPolls = 1 << 16

// Grid is a regular lattice of voxel centers spanning Bounds.
type Grid struct {
	Bounds surface.Box
	Res    [3]int
}

// Validate checks that the grid has a positive resolution and extent.
func (g Grid) Validate() error {
	for i, r := range g.Res {
		if r < 1 {
			return fmt.Errorf("bake: grid axis %d has resolution %d", i, r)
		}
	}
	size := g.Bounds.Max.Sub(g.Bounds.Min)
	if !(size.X > 0 && size.Y > 0 && size.Z > 0) {
		return fmt.Errorf("bake: grid bounds %v are empty", g.Bounds)
	}
	return nil
}

// Cell returns the voxel size.
func (g Grid) Cell() v3.Vec {
	size := g.Bounds.Max.Sub(g.Bounds.Min)
	return v3.Vec{X: size.X / float64(g.Res[0]), Y: size.Y / float64(g.Res[1]), Z: size.Z / float64(g.Res[2])}
}

// Center returns the world position of voxel (i, j, k).
func (g Grid) Center(i, j, k int) v3.Vec {
	c := g.Cell()
	return v3.Vec{
		X: g.Bounds.Min.X + (float64(i)+0.5)*c.X,
		Y: g.Bounds.Min.Y + (float64(j)+0.5)*c.Y,
		Z: g.Bounds.Min.Z + (float64(k)+0.5)*c.Z,
	}
}

// Len returns the number of voxels.
func (g Grid) Len() int { return g.Res[0] * g.Res[1] * g.Res[2] }

// Index returns the offset of voxel (i, j, k) in a texture, x fastest.
func (g Grid) Index(i, j, k int) int { return i + g.Res[0]*(j+g.Res[1]*k) }

// span returns the voxel index range [lo, hi) along axis a whose centers
// fall inside [min, max]. Infinite bounds clamp to the grid.
func (g Grid) span(a int, min, max float64) (lo, hi int) {
	c := [3]float64{g.Cell().X, g.Cell().Y, g.Cell().Z}[a]
	origin := [3]float64{g.Bounds.Min.X, g.Bounds.Min.Y, g.Bounds.Min.Z}[a]
	l := math.Ceil((min-origin)/c - 0.5)
	h := math.Floor((max-origin)/c-0.5) + 1
	l = math.Max(0, math.Min(float64(g.Res[a]), l))
	h = math.Max(0, math.Min(float64(g.Res[a]), h))
	return int(l), int(h)
}

// Texture is a baked distance field. Distances are clamped to [-Band, Band]
// so that a change only affects voxels within Band of the changed region.
type Texture struct {
	Grid Grid
	Band float64
	Data []float32
}

// NewTexture allocates a texture for grid. band <= 0 disables clamping.
func NewTexture(grid Grid, band float64) (*Texture, error) {
	if err := grid.Validate(); err != nil {
		return nil, err
	}
	return &Texture{Grid: grid, Band: band, Data: make([]float32, grid.Len())}, nil
}

// At returns the stored value of voxel (i, j, k).
func (t *Texture) At(i, j, k int) float32 { return t.Data[t.Grid.Index(i, j, k)] }

func (t *Texture) clamp(d float64) float32 {
	if t.Band > 0 {
		d = math.Max(-t.Band, math.Min(t.Band, d))
	}
	return float32(d)
}

// Bake samples s at every voxel center of t. Slices along z are sampled
// concurrently; s must support concurrent Sample calls, which the surface
// contract guarantees as Sample never mutates.
func Bake(ctx context.Context, s surface.Surface, t *Texture) error {
	_, err := fill(ctx, s, t, 0, t.Grid.Res[0], 0, t.Grid.Res[1], 0, t.Grid.Res[2])
	return err
}

// Rebake re-samples the voxels affected by a change in region and returns
// how many were written. The region is grown by the texture band. Without a
// band every stored distance depends on the whole tree, so the full grid is
// re-sampled.
func Rebake(ctx context.Context, s surface.Surface, t *Texture, region surface.Box) (int, error) {
	if t.Band <= 0 {
		return fill(ctx, s, t, 0, t.Grid.Res[0], 0, t.Grid.Res[1], 0, t.Grid.Res[2])
	}
	region = surface.Grow(region, t.Band)
	g := t.Grid
	i0, i1 := g.span(0, region.Min.X, region.Max.X)
	j0, j1 := g.span(1, region.Min.Y, region.Max.Y)
	k0, k1 := g.span(2, region.Min.Z, region.Max.Z)
	if i0 >= i1 || j0 >= j1 || k0 >= k1 {
		return 0, nil
	}
	return fill(ctx, s, t, i0, i1, j0, j1, k0, k1)
}

func fill(ctx context.Context, s surface.Surface, t *Texture, i0, i1, j0, j1, k0, k1 int) (int, error) {
	g := t.Grid
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(runtime.GOMAXPROCS(0))
	for k := k0; k < k1; k++ {
		k := k
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			for j := j0; j < j1; j++ {
				for i := i0; i < i1; i++ {
					d := s.Sample(g.Center(i, j, k), false).Distance
					t.Data[g.Index(i, j, k)] = t.clamp(d)
				}
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return 0, fmt.Errorf("bake: %w", err)
	}
	return (i1 - i0) * (j1 - j0) * (k1 - k0), nil
}

// Drain polls s until it reports no change and returns every region seen.
// maxPolls <= 0 selects DefaultMaxPolls.
func Drain(s surface.Surface, maxPolls int) ([]surface.Box, error) {
	if maxPolls <= 0 {
		maxPolls = DefaultMaxPolls
	}
	var regions []surface.Box
	for i := 0; i < maxPolls; i++ {
		b, ok := surface.Changed(s)
		if !ok {
			return regions, nil
		}
		regions = append(regions, b)
	}
	return regions, fmt.Errorf("%w after %d polls", ErrNoDrain, maxPolls)
}
