// Package viewer holds the consumer side of a surface tree: the viewer
// configuration and a Scene that keeps a baked distance texture in sync with
// parameter edits.
package viewer

import (
	"errors"
	"fmt"
	"image/color"
	"math"
	"os"

	"github.com/chazu/sdfview/pkg/shape"
	"github.com/chazu/sdfview/pkg/surface"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"gopkg.in/yaml.v3"
)

// Vec3 is a YAML-friendly vector written as [x, y, z].
type Vec3 [3]float64

// Vec converts to the sdfx vector type.
func (v Vec3) Vec() v3.Vec { return v3.Vec{X: v[0], Y: v[1], Z: v[2]} }

func (v Vec3) zero() bool { return v == Vec3{} }

// Camera describes the orbit camera.
type Camera struct {
	Position    Vec3    `yaml:"position"`
	Target      Vec3    `yaml:"target"`
	Up          Vec3    `yaml:"up"`
	FOV         float64 `yaml:"fov"`
	Near        float64 `yaml:"near"`
	Far         float64 `yaml:"far"`
	MinDistance float64 `yaml:"min_distance"`
	MaxDistance float64 `yaml:"max_distance"`
}

// Light is a white directional light.
type Light struct {
	Direction Vec3    `yaml:"direction"`
	Intensity float64 `yaml:"intensity"`
}

// Material is the iso threshold and color applied to volume surfaces.
type Material struct {
	Threshold float64 `yaml:"threshold"`
	Color     string  `yaml:"color"`
}

// Bake controls the distance texture.
type Bake struct {
	// Resolution is the voxel count along the longest side of the bounds.
	Resolution int `yaml:"resolution"`
	// Padding grows the scene bounds before baking.
	Padding float64 `yaml:"padding"`
	// Band clamps stored distances; zero disables clamping.
	Band float64 `yaml:"band"`
	// Extent is the half size of the baked cube when the scene is unbounded.
	Extent float64 `yaml:"extent"`
}

// Config is the complete viewer configuration.
type Config struct {
	Camera   Camera   `yaml:"camera"`
	Ambient  float64  `yaml:"ambient"`
	Lights   []Light  `yaml:"lights"`
	Material Material `yaml:"material"`
	Bake     Bake     `yaml:"bake"`
}

// DefaultConfig returns the stock viewer setup: a camera slightly above
// and behind the origin, an ambient light and two opposing directional
// lights, and the green volume material.
func DefaultConfig() Config {
	return Config{
		Camera: Camera{
			Position:    Vec3{0.25, -0.5, -2},
			Target:      Vec3{0, 0, 0},
			Up:          Vec3{0, 1, 0},
			FOV:         45,
			Near:        0.1,
			Far:         1000,
			MinDistance: 1,
			MaxDistance: 100,
		},
		Ambient: 0.4,
		Lights: []Light{
			{Direction: Vec3{-1, -1, -1}, Intensity: 2},
			{Direction: Vec3{1, 1, 1}, Intensity: 2},
		},
		Material: Material{
			Threshold: shape.DefaultThreshold,
			Color:     surface.FormatColor(shape.DefaultColor),
		},
		Bake: Bake{
			Resolution: 64,
			Padding:    0.1,
			Band:       1,
			Extent:     10,
		},
	}
}

// LoadConfig reads a YAML file over the defaults. Keys missing from the
// file keep their default values.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("viewer: read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("viewer: parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("viewer: config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the configuration as YAML.
func (c Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("viewer: encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("viewer: write config: %w", err)
	}
	return nil
}

// MaterialColor parses the material color.
func (c Config) MaterialColor() (color.NRGBA, error) {
	return surface.ParseColor(c.Material.Color)
}

// Validate reports every inconsistent setting.
func (c Config) Validate() error {
	cam := c.Camera
	var errs []error
	if cam.FOV <= 0 || cam.FOV >= 180 {
		errs = append(errs, fmt.Errorf("camera fov %v outside (0, 180)", cam.FOV))
	}
	if cam.Near <= 0 || cam.Far <= cam.Near {
		errs = append(errs, fmt.Errorf("camera clip planes near=%v far=%v", cam.Near, cam.Far))
	}
	if cam.MinDistance <= 0 || cam.MaxDistance < cam.MinDistance {
		errs = append(errs, fmt.Errorf("camera orbit distance %v..%v", cam.MinDistance, cam.MaxDistance))
	}
	if cam.Position == cam.Target {
		errs = append(errs, errors.New("camera position equals target"))
	}
	if cam.Up.zero() {
		errs = append(errs, errors.New("camera up vector is zero"))
	}
	if c.Ambient < 0 || math.IsNaN(c.Ambient) {
		errs = append(errs, fmt.Errorf("ambient %v is negative", c.Ambient))
	}
	for i, l := range c.Lights {
		if l.Direction.zero() {
			errs = append(errs, fmt.Errorf("light %d has no direction", i))
		}
		if l.Intensity < 0 {
			errs = append(errs, fmt.Errorf("light %d intensity %v is negative", i, l.Intensity))
		}
	}
	if _, err := c.MaterialColor(); err != nil {
		errs = append(errs, fmt.Errorf("material: %w", err))
	}
	if c.Bake.Resolution < 2 {
		errs = append(errs, fmt.Errorf("bake resolution %d below 2", c.Bake.Resolution))
	}
	if c.Bake.Padding < 0 || c.Bake.Band < 0 {
		errs = append(errs, fmt.Errorf("bake padding %v and band %v must not be negative", c.Bake.Padding, c.Bake.Band))
	}
	if c.Bake.Extent <= 0 {
		errs = append(errs, fmt.Errorf("bake extent %v must be positive", c.Bake.Extent))
	}
	return errors.Join(errs...)
}
