package core

import (
	"fmt"
	"math/rand/v2"

	"github.com/gekko3d/clusterfog/clusterrt/rt/bvh"
	"github.com/gekko3d/clusterfog/clusterrt/rt/gpu"

	"github.com/go-gl/mathgl/mgl32"
)

// Model is one drawable of the scene. Geometry is baked in world space.
type Model struct {
	Name      string
	Data      MeshData
	Material  Material
	WorldAABB [2]mgl32.Vec3

	Mesh   gpu.Mesh
	Albedo gpu.Texture
	Normal gpu.Texture
}

func NewModel(name string, data MeshData, mat Material) *Model {
	return &Model{Name: name, Data: data, Material: mat, WorldAABB: data.Bounds()}
}

// Upload creates the model's mesh and its generated maps on dev.
func (m *Model) Upload(dev gpu.Device, mapSize int) error {
	m.Release(dev)
	mesh, err := dev.CreateMesh(m.Data.Vertices, m.Data.Indices)
	if err != nil {
		return fmt.Errorf("model %q: %w", m.Name, err)
	}
	m.Mesh = mesh
	maps := []struct {
		dst  *gpu.Texture
		name string
		data []float32
	}{
		{&m.Albedo, "albedo", m.Material.AlbedoMap(mapSize)},
		{&m.Normal, "normal", m.Material.NormalMap(mapSize)},
	}
	for _, mp := range maps {
		tex, err := dev.CreateTexture(gpu.TextureDesc{
			Label:  m.Name + "_" + mp.name,
			Width:  mapSize,
			Height: mapSize,
			Format: gpu.FormatRGBA8,
			Filter: gpu.FilterLinear,
			Wrap:   gpu.WrapRepeat,
		})
		if err != nil {
			return fmt.Errorf("model %q: %w", m.Name, err)
		}
		if err := dev.WriteTexture(tex, mp.data); err != nil {
			return fmt.Errorf("model %q: %w", m.Name, err)
		}
		*mp.dst = tex
	}
	return nil
}

func (m *Model) Release(dev gpu.Device) {
	if m.Mesh != nil {
		dev.Release(m.Mesh)
	}
	if m.Albedo != nil {
		dev.Release(m.Albedo)
	}
	if m.Normal != nil {
		dev.Release(m.Normal)
	}
	m.Mesh, m.Albedo, m.Normal = nil, nil, nil
}

// draw binds the model's maps over rc and issues its indexed draw.
func (m *Model) draw(pass gpu.Pass, rc gpu.RenderContext) error {
	if m.Mesh == nil {
		return fmt.Errorf("model %q: not uploaded", m.Name)
	}
	rc = rc.With(gpu.BindAlbedoMap, m.Albedo).With(gpu.BindNormalMap, m.Normal)
	return pass.Draw(rc, m.Mesh)
}

type Scene struct {
	Models         []*Model
	VisibleObjects []*Model
	Lights         *LightSet

	committed bool
	tree      *bvh.Tree
	visible   []bool
}

func NewScene(lights *LightSet) *Scene {
	return &Scene{Lights: lights}
}

func (s *Scene) AddModel(m *Model) {
	s.Models = append(s.Models, m)
	s.committed = false
	s.tree = nil
}

func (s *Scene) RemoveModel(m *Model) {
	for i, o := range s.Models {
		if o == m {
			s.Models = append(s.Models[:i], s.Models[i+1:]...)
			s.committed = false
			s.tree = nil
			return
		}
	}
}

func (s *Scene) Upload(dev gpu.Device, mapSize int) error {
	for _, m := range s.Models {
		if err := m.Upload(dev, mapSize); err != nil {
			return err
		}
	}
	return nil
}

func (s *Scene) Release(dev gpu.Device) {
	for _, m := range s.Models {
		m.Release(dev)
	}
}

// Commit culls the models against the frustum planes (see Frustum) through
// a BVH over their world boxes. The tree is rebuilt after the model list
// changes; VisibleObjects keeps the order of Models.
func (s *Scene) Commit(planes [6]mgl32.Vec4) {
	if s.tree == nil {
		boxes := make([][2]mgl32.Vec3, len(s.Models))
		for i, m := range s.Models {
			boxes[i] = m.WorldAABB
		}
		s.tree = bvh.Build(boxes)
		s.visible = make([]bool, len(s.Models))
	}
	clear(s.visible)
	s.tree.Query(func(box [2]mgl32.Vec3) bool {
		return AABBInFrustum(box, planes)
	}, func(i int) {
		s.visible[i] = true
	})

	s.VisibleObjects = s.VisibleObjects[:0]
	for i, m := range s.Models {
		if s.visible[i] {
			s.VisibleObjects = append(s.VisibleObjects, m)
		}
	}
	s.committed = true
}

// Draw issues the visible models into pass, each with its own maps bound
// over rc. Before the first Commit every model is drawn.
func (s *Scene) Draw(pass gpu.Pass, rc gpu.RenderContext) error {
	models := s.VisibleObjects
	if !s.committed {
		models = s.Models
	}
	for _, m := range models {
		if err := m.draw(pass, rc); err != nil {
			return err
		}
	}
	return nil
}

// All draws every model regardless of culling. Shadow casters outside the
// camera frustum still need to reach the shadow map.
func (s *Scene) All() *AllModels { return (*AllModels)(s) }

type AllModels Scene

func (a *AllModels) Draw(pass gpu.Pass, rc gpu.RenderContext) error {
	for _, m := range a.Models {
		if err := m.draw(pass, rc); err != nil {
			return err
		}
	}
	return nil
}

// SceneConfig describes the procedural stand-in scene: a ground plane, two
// rows of pillars and a few scattered crates.
type SceneConfig struct {
	GroundHalfX  float32   `yaml:"ground_half_x"`
	GroundHalfZ  float32   `yaml:"ground_half_z"`
	PillarRows   []float32 `yaml:"pillar_rows"`
	PillarCount  int       `yaml:"pillar_count"`
	PillarHeight float32   `yaml:"pillar_height"`
	Crates       int       `yaml:"crates"`
	MapSize      int       `yaml:"map_size"`
	Seed         uint64    `yaml:"seed"`
}

func DefaultSceneConfig() SceneConfig {
	return SceneConfig{
		GroundHalfX:  16,
		GroundHalfZ:  8,
		PillarRows:   []float32{-4, 4},
		PillarCount:  7,
		PillarHeight: 10,
		Crates:       6,
		MapSize:      64,
		Seed:         7,
	}
}

func (c SceneConfig) Validate() error {
	if c.GroundHalfX <= 2 || c.GroundHalfZ <= 0 {
		return fmt.Errorf("scene: ground %vx%v too small", c.GroundHalfX, c.GroundHalfZ)
	}
	if c.PillarCount < 0 || c.Crates < 0 || c.PillarHeight <= 0 {
		return fmt.Errorf("scene: bad pillar or crate settings")
	}
	if c.MapSize < 1 {
		return fmt.Errorf("scene: map size %d must be positive", c.MapSize)
	}
	return nil
}

// Procedural builds the stand-in scene. Nothing is uploaded yet.
func Procedural(cfg SceneConfig, lights *LightSet) *Scene {
	s := NewScene(lights)
	stone := NewMaterial([4]uint8{178, 170, 150, 255}, [4]uint8{140, 132, 118, 255}, PatternChecker)
	stone.Tiles = 8
	s.AddModel(NewModel("ground", Plane(cfg.GroundHalfX, cfg.GroundHalfZ, 4), stone))

	column := NewMaterial([4]uint8{200, 190, 170, 255}, [4]uint8{170, 160, 140, 255}, PatternStripes)
	column.Tiles = 6
	for _, z := range cfg.PillarRows {
		for i := 0; i < cfg.PillarCount; i++ {
			x := -cfg.GroundHalfX + 2 + float32(i)*(2*cfg.GroundHalfX-4)/float32(max(cfg.PillarCount-1, 1))
			t := NewTransform()
			t.Position = mgl32.Vec3{x, 0, z}
			data := Box(mgl32.Vec3{-0.4, 0, -0.4}, mgl32.Vec3{0.4, cfg.PillarHeight, 0.4}).Transformed(t)
			s.AddModel(NewModel(fmt.Sprintf("pillar_%d_%d", int(z), i), data, column))
		}
	}

	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x5851f42d4c957f2d))
	crate := NewMaterial([4]uint8{150, 96, 60, 255}, [4]uint8{110, 70, 40, 255}, PatternStripes)
	for i := 0; i < cfg.Crates; i++ {
		t := NewTransform()
		size := 0.6 + rng.Float32()
		t.Position = mgl32.Vec3{
			(rng.Float32()*2 - 1) * (cfg.GroundHalfX - 2),
			0,
			(rng.Float32()*2 - 1) * 2.5,
		}
		t.Rotation = mgl32.QuatRotate(rng.Float32()*mgl32.DegToRad(90), mgl32.Vec3{0, 1, 0})
		t.Scale = mgl32.Vec3{size, size, size}
		data := Box(mgl32.Vec3{-0.5, 0, -0.5}, mgl32.Vec3{0.5, 1, 0.5}).Transformed(t)
		s.AddModel(NewModel(fmt.Sprintf("crate_%d", i), data, crate))
	}
	return s
}
