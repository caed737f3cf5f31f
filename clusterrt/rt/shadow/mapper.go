// Package shadow renders the sun's depth from an orthographic light camera
// and answers visibility queries against it.
package shadow

import (
	"errors"
	"fmt"

	"github.com/gekko3d/clusterfog/clusterrt/rt/gpu"

	"github.com/go-gl/mathgl/mgl32"
)

type Config struct {
	Resolution int     `yaml:"resolution"`
	Bias       float32 `yaml:"bias"`
	HalfExtent float32 `yaml:"half_extent"`
	Near       float32 `yaml:"near"`
	Far        float32 `yaml:"far"`
	// Direction points from the scene toward the sun.
	Direction mgl32.Vec3 `yaml:"direction"`
	Center    mgl32.Vec3 `yaml:"center"`
	// ShadowedVisibility is the sun visibility of a shadowed point.
	ShadowedVisibility float32 `yaml:"shadowed_visibility"`
}

func DefaultConfig() Config {
	return Config{
		Resolution:         1024,
		Bias:               0.007,
		HalfExtent:         25,
		Near:               0.1,
		Far:                100,
		Direction:          mgl32.Vec3{1, 0.5, 1},
		Center:             mgl32.Vec3{0, 2, 0},
		ShadowedVisibility: 0.3,
	}
}

func (c Config) Validate() error {
	var errs []error
	if c.Resolution <= 0 {
		errs = append(errs, fmt.Errorf("shadow: resolution %d must be positive", c.Resolution))
	}
	if c.HalfExtent <= 0 || c.Near < 0 || c.Far <= c.Near {
		errs = append(errs, fmt.Errorf("shadow: bad projection extent %v near %v far %v", c.HalfExtent, c.Near, c.Far))
	}
	if c.Direction.Len() == 0 {
		errs = append(errs, errors.New("shadow: direction must be non-zero"))
	}
	if c.ShadowedVisibility < 0 || c.ShadowedVisibility > 1 {
		errs = append(errs, fmt.Errorf("shadow: shadowed visibility %v outside [0, 1]", c.ShadowedVisibility))
	}
	return errors.Join(errs...)
}

// Mapper owns the light camera. The shadow map itself is a render graph
// target; Mapper only needs its binding to read it back.
type Mapper struct {
	cfg Config

	View       mgl32.Mat4
	Projection mgl32.Mat4
	ViewProj   mgl32.Mat4
}

func NewMapper(cfg Config) (*Mapper, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	m := &Mapper{cfg: cfg}
	m.Update()
	return m, nil
}

func (m *Mapper) Config() Config { return m.cfg }

// SunDirection is the normalized direction toward the sun.
func (m *Mapper) SunDirection() mgl32.Vec3 { return m.cfg.Direction.Normalize() }

// Update rebuilds the light view and orthographic projection. The eye sits
// half the far distance from Center toward the sun.
func (m *Mapper) Update() {
	dir := m.SunDirection()
	eye := m.cfg.Center.Add(dir.Mul(m.cfg.Far * 0.5))
	up := mgl32.Vec3{0, 1, 0}
	if abs(dir.Y()) > 0.99 {
		up = mgl32.Vec3{1, 0, 0}
	}
	h := m.cfg.HalfExtent
	m.View = mgl32.LookAtV(eye, m.cfg.Center, up)
	m.Projection = mgl32.Ortho(-h, h, -h, h, m.cfg.Near, m.cfg.Far)
	m.ViewProj = m.Projection.Mul4(m.View)
}

// Project maps a world point to shadow map UV and window depth.
func (m *Mapper) Project(world mgl32.Vec3) (uv mgl32.Vec2, z float32, ok bool) {
	return gpu.Project(m.ViewProj, world)
}

// InShadow reports whether a point at coordZ lies behind the stored depth.
func InShadow(depth, coordZ, bias float32) bool {
	return coordZ > depth+bias
}

// Visibility is ShadowedVisibility for shadowed points and 1 otherwise.
func (m *Mapper) Visibility(depth, coordZ float32) float32 {
	if InShadow(depth, coordZ, m.cfg.Bias) {
		return m.cfg.ShadowedVisibility
	}
	return 1
}

// Lookup samples the shadow map bound at b for a world point. Points outside
// the light frustum are lit.
func (m *Mapper) Lookup(s gpu.Sampler, b gpu.Binding, world mgl32.Vec3) float32 {
	uv, z, ok := m.Project(world)
	if !ok || uv[0] < 0 || uv[0] > 1 || uv[1] < 0 || uv[1] > 1 || z > 1 {
		return 1
	}
	return m.Visibility(s.Sample(b, uv).X(), z)
}

// Program renders window depth into the red channel of the shadow target.
// Uniforms are the *Mapper itself; vertices are already in world space.
func (m *Mapper) Program() gpu.ProgramDesc {
	return gpu.ProgramDesc{
		Label:    "shadow",
		Vertex:   shadowVertex,
		Fragment: shadowFragment,
		Outputs:  1,
	}
}

func shadowVertex(u any, v gpu.Vertex) (mgl32.Vec4, gpu.Varyings) {
	m := u.(*Mapper)
	return m.ViewProj.Mul4x1(v.Position.Vec4(1)), gpu.Varyings{World: v.Position}
}

func shadowFragment(_ any, in *gpu.Fragment, _ gpu.Sampler, out *gpu.Outputs) bool {
	z := in.Coord.Z()
	out[0] = mgl32.Vec4{z, z, z, 1}
	return true
}

func abs(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
