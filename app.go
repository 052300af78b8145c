package main

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/chazu/sdfview/pkg/engine"
	"github.com/chazu/sdfview/pkg/kernel"
	"github.com/chazu/sdfview/pkg/kernel/sdfx"
	"github.com/chazu/sdfview/pkg/surface"
	"github.com/chazu/sdfview/pkg/tessellate"
	"github.com/chazu/sdfview/pkg/viewer"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// colorPalette is used for parts whose surface reports no material.
var colorPalette = []string{
	"#4A90D9", "#E67E22", "#2ECC71", "#9B59B6",
	"#E74C3C", "#1ABC9C", "#F39C12", "#3498DB",
}

// App binds the engine, the mesher and the baked scene behind methods that
// exchange JSON-serializable values.
type App struct {
	ctx    context.Context
	engine *engine.Engine
	kernel kernel.Kernel
	cfg    viewer.Config

	mu    sync.Mutex
	scene *viewer.Scene
}

// MeshData is the JSON-serializable mesh format.
type MeshData struct {
	Vertices []float32 `json:"vertices"`
	Normals  []float32 `json:"normals"`
	Indices  []uint32  `json:"indices"`
	PartName string    `json:"partName"`
	PartID   uint32    `json:"partId"`
	Color    string    `json:"color"`
}

// EvalErrorData is a JSON-serializable eval error.
type EvalErrorData struct {
	Line    int    `json:"line"`
	Col     int    `json:"col"`
	Message string `json:"message"`
}

// ParamData describes one surface parameter.
type ParamData struct {
	Key         string  `json:"key"`
	Kind        string  `json:"kind"`
	Value       string  `json:"value"`
	Bounded     bool    `json:"bounded"`
	Min         float64 `json:"min"`
	Max         float64 `json:"max"`
	Description string  `json:"description"`
}

// NodeParamsData lists the parameters of one surface node.
type NodeParamsData struct {
	ID     uint32      `json:"id"`
	Name   string      `json:"name"`
	Params []ParamData `json:"params"`
}

// EvalResult is the full result of an evaluation or parameter edit.
type EvalResult struct {
	Meshes  []MeshData       `json:"meshes"`
	Params  []NodeParamsData `json:"params"`
	Errors  []EvalErrorData  `json:"errors"`
	Rebaked int              `json:"rebaked"`
}

// NewApp creates an App with the default viewer configuration.
func NewApp() *App {
	return NewAppWithConfig(context.Background(), viewer.DefaultConfig(), sdfx.New())
}

// NewAppWithConfig creates an App with an explicit configuration and kernel.
func NewAppWithConfig(ctx context.Context, cfg viewer.Config, k kernel.Kernel) *App {
	return &App{
		ctx:    ctx,
		engine: engine.NewEngine(),
		kernel: k,
		cfg:    cfg,
	}
}

func newResult() EvalResult {
	return EvalResult{
		Meshes: []MeshData{},
		Params: []NodeParamsData{},
		Errors: []EvalErrorData{},
	}
}

func (r *EvalResult) fail(format string, args ...any) {
	r.Errors = append(r.Errors, EvalErrorData{Message: fmt.Sprintf(format, args...)})
}

// Evaluate takes Lisp source and returns mesh data, parameters and errors.
// On success the resulting tree replaces the current scene.
func (a *App) Evaluate(source string) EvalResult {
	result := newResult()

	// Step 1: Evaluate the Lisp source into a surface tree.
	root, evalErrs, err := a.engine.Evaluate(source)
	if err != nil {
		// Fatal error (panic, timeout, etc.)
		log.Printf("Evaluate fatal error: %v", err)
		result.fail("%v", err)
		return result
	}
	if len(evalErrs) > 0 {
		for _, e := range evalErrs {
			result.Errors = append(result.Errors, EvalErrorData{
				Line:    e.Line,
				Col:     e.Col,
				Message: e.Message,
			})
		}
		return result
	}

	// Step 2: Bake the tree into the scene.
	scene, err := viewer.NewScene(a.ctx, root, a.cfg)
	if err != nil {
		log.Printf("Scene error: %v", err)
		result.fail("scene setup failed: %v", err)
		return result
	}
	a.mu.Lock()
	a.scene = scene
	a.mu.Unlock()

	// Step 3: Tessellate the parts into triangle meshes.
	if err := a.mesh(root, &result); err != nil {
		return result
	}
	result.Params = paramsData(scene.Parameters())
	return result
}

// mesh fills result with the meshes of root's parts.
func (a *App) mesh(root surface.Surface, result *EvalResult) error {
	parts, err := tessellate.TessellateParts(root, a.kernel)
	if err != nil {
		log.Printf("Tessellate error: %v", err)
		result.fail("tessellation failed: %v", err)
		return err
	}
	for i, part := range parts {
		m := part.Mesh
		result.Meshes = append(result.Meshes, MeshData{
			Vertices: m.Vertices,
			Normals:  m.Normals,
			Indices:  m.Indices,
			PartName: m.PartName,
			PartID:   m.PartID,
			Color:    meshColor(part.Surface, m, i),
		})
	}
	return nil
}

// meshColor samples the material of part at the first vertex of m. Parts
// that leave the material unset fall back to the palette.
func meshColor(part surface.Surface, m *kernel.Mesh, i int) string {
	if len(m.Vertices) >= 3 {
		p := v3.Vec{X: float64(m.Vertices[0]), Y: float64(m.Vertices[1]), Z: float64(m.Vertices[2])}
		c := part.Sample(p, true).Material.Color
		if c.A != 0 {
			return fmt.Sprintf("#%02X%02X%02X", c.R, c.G, c.B)
		}
	}
	return colorPalette[i%len(colorPalette)]
}

func paramsData(nodes []viewer.NodeParams) []NodeParamsData {
	out := make([]NodeParamsData, 0, len(nodes))
	for _, n := range nodes {
		d := NodeParamsData{ID: n.ID, Name: n.Name, Params: make([]ParamData, 0, len(n.Params))}
		for _, p := range n.Params {
			d.Params = append(d.Params, ParamData{
				Key:         p.Key,
				Kind:        p.Kind.String(),
				Value:       formatValue(p),
				Bounded:     p.Bounded,
				Min:         p.Min,
				Max:         p.Max,
				Description: p.Description,
			})
		}
		out = append(out, d)
	}
	return out
}

func formatValue(p surface.Param) string {
	if p.Kind == surface.KindColor {
		if c, err := p.Color(); err == nil {
			return surface.FormatColor(c)
		}
	}
	return fmt.Sprint(p.Value)
}

// currentScene returns the scene of the last successful evaluation.
func (a *App) currentScene() (*viewer.Scene, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.scene == nil {
		return nil, fmt.Errorf("no scene evaluated")
	}
	return a.scene, nil
}

// Parameters lists the parameters of the current scene.
func (a *App) Parameters() []NodeParamsData {
	scene, err := a.currentScene()
	if err != nil {
		return []NodeParamsData{}
	}
	return paramsData(scene.Parameters())
}

// SetParameter changes one parameter of node id. value is parsed according
// to the parameter's kind. On success the changed regions are re-baked and
// the meshes rebuilt; rejections are reported in Errors.
func (a *App) SetParameter(id uint32, key, value string) EvalResult {
	result := newResult()
	scene, err := a.currentScene()
	if err != nil {
		result.fail("%v", err)
		return result
	}
	if err := scene.SetParameter(id, surface.Param{Key: key, Value: value}); err != nil {
		log.Printf("SetParameter #%d %s=%s: %v", id, key, value, err)
		result.fail("%v", err)
		return result
	}
	n, err := scene.Tick(a.ctx)
	if err != nil {
		log.Printf("Tick error: %v", err)
		result.fail("re-bake failed: %v", err)
		return result
	}
	result.Rebaked = n
	if err := a.mesh(scene.Root(), &result); err != nil {
		return result
	}
	result.Params = paramsData(scene.Parameters())
	return result
}

// NormalData is a unit surface normal.
type NormalData struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Z        float64 `json:"z"`
	Distance float64 `json:"distance"`
}

// Normal estimates the normal of the current scene at (x, y, z) and reports
// the signed distance there.
func (a *App) Normal(x, y, z float64) (NormalData, error) {
	scene, err := a.currentScene()
	if err != nil {
		return NormalData{}, err
	}
	p := v3.Vec{X: x, Y: y, Z: z}
	n := scene.Normal(p, 0)
	return NormalData{X: n.X, Y: n.Y, Z: n.Z, Distance: scene.Sample(p).Distance}, nil
}

// Scene exposes the current scene, or nil before the first evaluation.
func (a *App) Scene() *viewer.Scene {
	s, _ := a.currentScene()
	return s
}
