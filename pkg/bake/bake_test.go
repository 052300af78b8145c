package bake

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/chazu/sdfview/pkg/shape"
	"github.com/chazu/sdfview/pkg/surface"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

func cube(half float64) surface.Box {
	return surface.Box{Min: v3.Vec{X: -half, Y: -half, Z: -half}, Max: v3.Vec{X: half, Y: half, Z: half}}
}

// noisy never stops reporting a change.
type noisy struct{}

func (noisy) Sample(v3.Vec, bool) surface.SampleResult { return surface.SampleResult{} }
func (noisy) Changed() (surface.Box, bool)             { return cube(1), true }

func TestGridValidate(t *testing.T) {
	tests := []struct {
		name string
		grid Grid
		ok   bool
	}{
		{"valid", Grid{Bounds: cube(1), Res: [3]int{2, 2, 2}}, true},
		{"zero resolution", Grid{Bounds: cube(1), Res: [3]int{2, 0, 2}}, false},
		{"empty bounds", Grid{Bounds: cube(0), Res: [3]int{2, 2, 2}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.grid.Validate()
			if (err == nil) != tt.ok {
				t.Errorf("Validate() = %v, want ok=%v", err, tt.ok)
			}
		})
	}
}

func TestGridCenter(t *testing.T) {
	g := Grid{Bounds: cube(2), Res: [3]int{4, 4, 4}}
	if c := g.Center(0, 0, 0); c != (v3.Vec{X: -1.5, Y: -1.5, Z: -1.5}) {
		t.Errorf("Center(0,0,0) = %v", c)
	}
	if c := g.Center(3, 2, 1); c != (v3.Vec{X: 1.5, Y: 0.5, Z: -0.5}) {
		t.Errorf("Center(3,2,1) = %v", c)
	}
	if i := g.Index(3, 2, 1); i != 3+4*(2+4*1) {
		t.Errorf("Index(3,2,1) = %d", i)
	}
}

func TestBakeSphere(t *testing.T) {
	s, err := shape.NewSphere(1, "ball", 1)
	if err != nil {
		t.Fatal(err)
	}
	tex, err := NewTexture(Grid{Bounds: cube(2), Res: [3]int{8, 8, 8}}, 0)
	if err != nil {
		t.Fatal(err)
	}
	if err := Bake(context.Background(), s, tex); err != nil {
		t.Fatalf("Bake failed: %v", err)
	}
	for k := 0; k < 8; k++ {
		for j := 0; j < 8; j++ {
			for i := 0; i < 8; i++ {
				want := tex.Grid.Center(i, j, k).Length() - 1
				if got := float64(tex.At(i, j, k)); math.Abs(got-want) > 1e-5 {
					t.Fatalf("voxel (%d,%d,%d) = %v, want %v", i, j, k, got, want)
				}
			}
		}
	}
}

func TestBakeBand(t *testing.T) {
	s, _ := shape.NewSphere(1, "ball", 0.5)
	tex, _ := NewTexture(Grid{Bounds: cube(4), Res: [3]int{4, 4, 4}}, 0.25)
	if err := Bake(context.Background(), s, tex); err != nil {
		t.Fatal(err)
	}
	for _, d := range tex.Data {
		if d < -0.25 || d > 0.25 {
			t.Fatalf("value %v outside band", d)
		}
	}
}

func TestBakeCancelled(t *testing.T) {
	s, _ := shape.NewSphere(1, "ball", 1)
	tex, _ := NewTexture(Grid{Bounds: cube(2), Res: [3]int{4, 4, 4}}, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := Bake(ctx, s, tex); !errors.Is(err, context.Canceled) {
		t.Fatalf("Bake error = %v, want context.Canceled", err)
	}
}

// narrow is a band thin enough not to move any voxel into a grown region.
const narrow = 1e-3

func TestRebakeTouchesOnlyRegion(t *testing.T) {
	s, _ := shape.NewSphere(1, "ball", 1)
	tex, _ := NewTexture(Grid{Bounds: cube(2), Res: [3]int{4, 4, 4}}, narrow)

	// Voxel centers per axis are -1.5, -0.5, 0.5, 1.5; this region holds
	// the two middle centers on x and only the low half on y and z.
	region := surface.Box{Min: v3.Vec{X: -0.6, Y: -2, Z: -2}, Max: v3.Vec{X: 0.6, Y: -1, Z: -1}}
	n, err := Rebake(context.Background(), s, tex, region)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("Rebake wrote %d voxels, want 2", n)
	}
	written := 0
	for _, d := range tex.Data {
		if d != 0 {
			written++
		}
	}
	if written != 2 {
		t.Errorf("%d voxels changed, want 2", written)
	}
	if tex.At(1, 0, 0) == 0 || tex.At(2, 0, 0) == 0 {
		t.Error("expected voxels (1,0,0) and (2,0,0) to be written")
	}
}

func TestRebakeOutsideGrid(t *testing.T) {
	s, _ := shape.NewSphere(1, "ball", 1)
	tex, _ := NewTexture(Grid{Bounds: cube(1), Res: [3]int{2, 2, 2}}, narrow)
	far := surface.Box{Min: v3.Vec{X: 10, Y: 10, Z: 10}, Max: v3.Vec{X: 11, Y: 11, Z: 11}}
	n, err := Rebake(context.Background(), s, tex, far)
	if err != nil || n != 0 {
		t.Fatalf("Rebake = %d, %v; want 0, nil", n, err)
	}
}

func TestRebakeInfiniteRegion(t *testing.T) {
	floor := shape.NewPlane(1, "floor", 0)
	tex, _ := NewTexture(Grid{Bounds: cube(1), Res: [3]int{2, 2, 2}}, narrow)
	inf := math.Inf(1)
	slab := surface.Box{Min: v3.Vec{X: -inf, Y: -0.1, Z: -inf}, Max: v3.Vec{X: inf, Y: 0.1, Z: inf}}
	n, err := Rebake(context.Background(), floor, tex, slab)
	if err != nil {
		t.Fatal(err)
	}
	// The slab holds no voxel center (they sit at y = +-0.5).
	if n != 0 {
		t.Errorf("Rebake wrote %d voxels, want 0", n)
	}
	slab.Max.Y = 0.6
	if n, _ = Rebake(context.Background(), floor, tex, slab); n != 4 {
		t.Errorf("Rebake wrote %d voxels, want 4", n)
	}
}

func TestRebakeWithoutBandResamplesGrid(t *testing.T) {
	ctx := context.Background()
	s, _ := shape.NewSphere(1, "ball", 1)
	tex, _ := NewTexture(Grid{Bounds: cube(2), Res: [3]int{8, 8, 8}}, 0)
	if err := Bake(ctx, s, tex); err != nil {
		t.Fatal(err)
	}

	// Shrinking the sphere changes the unclamped distance everywhere, far
	// outside the region it reports.
	if err := s.SetParameter(surface.Param{Key: "radius", Value: 0.5}); err != nil {
		t.Fatal(err)
	}
	region, ok := s.Changed()
	if !ok {
		t.Fatal("radius change not reported")
	}
	n, err := Rebake(ctx, s, tex, region)
	if err != nil {
		t.Fatal(err)
	}
	if n != tex.Grid.Len() {
		t.Errorf("Rebake wrote %d voxels, want all %d", n, tex.Grid.Len())
	}

	want, _ := NewTexture(tex.Grid, 0)
	if err := Bake(ctx, s, want); err != nil {
		t.Fatal(err)
	}
	for i := range want.Data {
		if tex.Data[i] != want.Data[i] {
			t.Fatalf("voxel %d = %v, full bake gives %v", i, tex.Data[i], want.Data[i])
		}
	}
}

func TestDrain(t *testing.T) {
	a, _ := shape.NewSphere(1, "a", 1)
	b, _ := shape.NewSphere(2, "b", 1)
	u := shape.NewUnion(3, "u", a, b)
	if _, err := Drain(u, 0); err != nil {
		t.Fatal(err)
	}
	if err := a.SetParameter(surface.Param{Key: "radius", Value: 2.0}); err != nil {
		t.Fatal(err)
	}
	if err := b.SetParameter(surface.Param{Key: "radius", Value: 3.0}); err != nil {
		t.Fatal(err)
	}
	regions, err := Drain(u, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(regions) != 2 {
		t.Fatalf("Drain returned %d regions, want 2", len(regions))
	}
	if _, ok := surface.Changed(u); ok {
		t.Error("union still reports a change after Drain")
	}
}

func TestDrainLimit(t *testing.T) {
	regions, err := Drain(noisy{}, 5)
	if !errors.Is(err, ErrNoDrain) {
		t.Fatalf("Drain error = %v, want ErrNoDrain", err)
	}
	if len(regions) != 5 {
		t.Errorf("Drain returned %d regions, want 5", len(regions))
	}
}
