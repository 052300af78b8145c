package main

import (
	"context"
	"math"
	"os"
	"strings"
	"testing"

	"github.com/chazu/sdfview/pkg/kernel/sdfx"
	"github.com/chazu/sdfview/pkg/viewer"
)

// newTestApp keeps meshing and baking coarse so end-to-end tests stay fast.
func newTestApp() *App {
	cfg := viewer.DefaultConfig()
	cfg.Bake.Resolution = 16
	return NewAppWithConfig(context.Background(), cfg, &sdfx.SdfxKernel{Cells: 32})
}

func requireNoErrors(t *testing.T, result EvalResult) {
	t.Helper()
	if len(result.Errors) > 0 {
		for _, e := range result.Errors {
			t.Errorf("eval error (line %d): %s", e.Line, e.Message)
		}
		t.FailNow()
	}
}

// TestE2ESceneExample exercises the full pipeline: Lisp source → engine →
// surface tree → baked scene → tessellate → meshes.
func TestE2ESceneExample(t *testing.T) {
	app := newTestApp()

	source, err := os.ReadFile("examples/scene.lisp")
	if err != nil {
		t.Fatalf("failed to read scene.lisp: %v", err)
	}

	result := app.Evaluate(string(source))
	requireNoErrors(t, result)

	// The floor is unbounded and is not meshed.
	expectedParts := map[string]bool{
		"stack":    false,
		"trunk-at": false,
		"blob-at":  false,
	}
	if len(result.Meshes) != len(expectedParts) {
		t.Fatalf("expected %d meshes, got %d", len(expectedParts), len(result.Meshes))
	}
	for _, m := range result.Meshes {
		if _, ok := expectedParts[m.PartName]; !ok {
			t.Errorf("unexpected part name: %q", m.PartName)
			continue
		}
		expectedParts[m.PartName] = true

		if len(m.Vertices) == 0 || len(m.Normals) == 0 || len(m.Indices) == 0 {
			t.Errorf("part %q: empty geometry", m.PartName)
		}
		if m.Color == "" {
			t.Errorf("part %q: no color assigned", m.PartName)
		}
	}
	for name, found := range expectedParts {
		if !found {
			t.Errorf("missing mesh for part %q", name)
		}
	}

	// Every shape with parameters is listed; composites without any are not.
	ids := map[uint32]bool{}
	for _, n := range result.Params {
		ids[n.ID] = true
	}
	for _, id := range []uint32{1, 3, 4, 10, 11, 12, 13, 20, 21} {
		if !ids[id] {
			t.Errorf("parameters of #%d missing", id)
		}
	}
	if ids[0] || ids[2] {
		t.Error("unions should not list parameters")
	}
}

// TestE2EEmptySource ensures the pipeline handles empty input gracefully.
func TestE2EEmptySource(t *testing.T) {
	app := newTestApp()
	result := app.Evaluate("")

	if len(result.Errors) > 0 {
		t.Errorf("unexpected errors for empty source: %v", result.Errors)
	}
	if len(result.Meshes) != 0 {
		t.Errorf("expected 0 meshes for empty source, got %d", len(result.Meshes))
	}
}

// TestE2ESyntaxError ensures eval errors are reported, not fatal errors.
func TestE2ESyntaxError(t *testing.T) {
	app := newTestApp()
	result := app.Evaluate(`(sphere :radius 1`)

	if len(result.Errors) == 0 {
		t.Fatal("expected eval errors for syntax error")
	}
	if len(result.Meshes) != 0 {
		t.Errorf("expected 0 meshes on error, got %d", len(result.Meshes))
	}
}

// TestE2ESingleShape ensures a single shape renders one mesh in its color.
func TestE2ESingleShape(t *testing.T) {
	app := newTestApp()
	result := app.Evaluate(`(sphere :name "ball" :radius 2 :color "#ff0000")`)
	requireNoErrors(t, result)

	if len(result.Meshes) != 1 {
		t.Fatalf("expected 1 mesh, got %d", len(result.Meshes))
	}
	m := result.Meshes[0]
	if m.PartName != "ball" || m.PartID != 1 {
		t.Errorf("part = %q #%d, want ball #1", m.PartName, m.PartID)
	}
	if m.Color != "#FF0000" {
		t.Errorf("color = %q, want #FF0000", m.Color)
	}
}

func TestE2ESetParameter(t *testing.T) {
	app := newTestApp()
	requireNoErrors(t, app.Evaluate(`(sphere :id 5 :name "ball" :radius 1)`))

	before := app.Scene().Texture()
	result := app.SetParameter(5, "radius", "0.5")
	requireNoErrors(t, result)
	if result.Rebaked == 0 {
		t.Error("radius change re-baked no voxels")
	}
	if len(result.Meshes) != 1 {
		t.Fatalf("expected 1 mesh, got %d", len(result.Meshes))
	}
	after := app.Scene().Texture()
	changed := 0
	for i := range before.Data {
		if before.Data[i] != after.Data[i] {
			changed++
		}
	}
	if changed == 0 || changed > result.Rebaked {
		t.Errorf("%d voxels changed, %d re-baked", changed, result.Rebaked)
	}

	var radius string
	for _, n := range result.Params {
		for _, p := range n.Params {
			if n.ID == 5 && p.Key == "radius" {
				radius = p.Value
			}
		}
	}
	if radius != "0.5" {
		t.Errorf("reported radius = %q, want 0.5", radius)
	}
}

func TestE2ESetParameterRejected(t *testing.T) {
	app := newTestApp()

	if result := app.SetParameter(1, "radius", "1"); len(result.Errors) == 0 {
		t.Error("expected an error before any evaluation")
	}

	requireNoErrors(t, app.Evaluate(`(union :id 3 (sphere :id 1) (box :id 2))`))
	tests := []struct {
		name  string
		id    uint32
		key   string
		value string
		want  string
	}{
		{"union has no parameters", 3, "radius", "1", "no parameters"},
		{"unknown key", 1, "height", "1", "unknown parameter"},
		{"not a number", 1, "radius", "big", "not a number"},
		{"out of range", 2, "size-x", "-4", "outside"},
		{"missing node", 99, "radius", "1", "no surface"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := app.SetParameter(tt.id, tt.key, tt.value)
			if len(result.Errors) == 0 {
				t.Fatal("expected a rejection")
			}
			if msg := result.Errors[0].Message; !strings.Contains(msg, tt.want) {
				t.Errorf("error %q does not contain %q", msg, tt.want)
			}
		})
	}
}

func TestE2ENormal(t *testing.T) {
	app := newTestApp()
	if _, err := app.Normal(0, 0, 0); err == nil {
		t.Error("expected an error before any evaluation")
	}
	requireNoErrors(t, app.Evaluate(`(plane :offset 2)`))
	n, err := app.Normal(3, 2, -1)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(n.Y-1) > 1e-6 || math.Abs(n.X) > 1e-6 || math.Abs(n.Z) > 1e-6 {
		t.Errorf("normal = %+v, want +y", n)
	}
	if n.Distance != 0 {
		t.Errorf("distance = %v, want 0", n.Distance)
	}
}
