package core

import (
	"math"
	"testing"

	"github.com/gekko3d/clusterfog/clusterrt/rt/gpu"
	"github.com/gekko3d/clusterfog/clusterrt/rt/gpu/soft"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransformComposition(t *testing.T) {
	tr := NewTransform()
	tr.Position = mgl32.Vec3{10, 20, 30}
	tr.Rotation = mgl32.QuatRotate(0.7, mgl32.Vec3{1, 1, 0}.Normalize())
	tr.Scale = mgl32.Vec3{2, 3, 4}

	identity := tr.ObjectToWorld().Mul4(tr.WorldToObject())
	want := mgl32.Ident4()
	for i := range want {
		assert.InDelta(t, want[i], identity[i], 1e-4, "element %d", i)
	}
}

func TestTransformAABB(t *testing.T) {
	tr := NewTransform()
	tr.Position = mgl32.Vec3{5, 0, 0}
	tr.Rotation = mgl32.QuatRotate(math.Pi/4, mgl32.Vec3{0, 1, 0})
	box := tr.AABB(mgl32.Vec3{-1, 0, -1}, mgl32.Vec3{1, 2, 1})

	r := float32(math.Sqrt2)
	assert.InDelta(t, 5-r, box[0].X(), 1e-5)
	assert.InDelta(t, 5+r, box[1].X(), 1e-5)
	assert.InDelta(t, 0, box[0].Y(), 1e-5)
	assert.InDelta(t, 2, box[1].Y(), 1e-5)
	assert.InDelta(t, -r, box[0].Z(), 1e-5)
}

func TestBoxNormalsPointOutward(t *testing.T) {
	lo, hi := mgl32.Vec3{-1, 0, -2}, mgl32.Vec3{1, 3, 2}
	m := Box(lo, hi)
	require.Len(t, m.Vertices, 24)
	require.Len(t, m.Indices, 36)

	center := lo.Add(hi).Mul(0.5)
	for i, v := range m.Vertices {
		assert.Greater(t, v.Normal.Dot(v.Position.Sub(center)), float32(0), "vertex %d", i)
	}
	assert.Equal(t, [2]mgl32.Vec3{lo, hi}, m.Bounds())
}

func TestPlaneFacesUp(t *testing.T) {
	m := Plane(4, 2, 2)
	require.Len(t, m.Indices, 6)
	for _, v := range m.Vertices {
		assert.Equal(t, mgl32.Vec3{0, 1, 0}, v.Normal)
		assert.Equal(t, float32(0), v.Position.Y())
	}
	b := m.Bounds()
	assert.Equal(t, mgl32.Vec3{-4, 0, -2}, b[0])
	assert.Equal(t, mgl32.Vec3{4, 0, 2}, b[1])
	// the texture repeats every 2 units
	var maxU float32
	for _, v := range m.Vertices {
		maxU = max(maxU, v.UV.X())
	}
	assert.Equal(t, float32(4), maxU)
}

func TestTransformedBakesNormals(t *testing.T) {
	tr := NewTransform()
	tr.Rotation = mgl32.QuatRotate(math.Pi/2, mgl32.Vec3{0, 1, 0})
	tr.Scale = mgl32.Vec3{1, 5, 1}
	m := Box(mgl32.Vec3{-1, -1, -1}, mgl32.Vec3{1, 1, 1}).Transformed(tr)

	for _, v := range m.Vertices {
		assert.InDelta(t, 1, v.Normal.Len(), 1e-5)
	}
	// +X face rotates onto -Z
	n := m.Vertices[8].Normal
	assert.InDelta(t, 0, n.X(), 1e-5)
	assert.InDelta(t, -1, n.Z(), 1e-5)
	b := m.Bounds()
	assert.InDelta(t, 5, b[1].Y(), 1e-5)
}

func TestMaterialMaps(t *testing.T) {
	m := NewMaterial([4]uint8{255, 0, 0, 255}, [4]uint8{0, 0, 255, 255}, PatternChecker)
	m.Tiles = 2
	m.Bump = 0

	albedo := m.AlbedoMap(4)
	require.Len(t, albedo, 4*4*4)
	texel := func(x, y int) []float32 { o := (y*4 + x) * 4; return albedo[o : o+4] }
	assert.Equal(t, []float32{1, 0, 0, 1}, texel(0, 0))
	assert.Equal(t, []float32{0, 0, 1, 1}, texel(2, 0))
	assert.Equal(t, []float32{0, 0, 1, 1}, texel(0, 3))
	assert.Equal(t, []float32{1, 0, 0, 1}, texel(3, 3))

	flat := m.NormalMap(4)
	for i := 0; i < len(flat); i += 4 {
		assert.Equal(t, []float32{0.5, 0.5, 1, 1}, flat[i:i+4])
	}

	m.Bump = 1
	bumpy := m.NormalMap(16)
	tilted := 0
	for i := 0; i < len(bumpy); i += 4 {
		n := mgl32.Vec3{bumpy[i]*2 - 1, bumpy[i+1]*2 - 1, bumpy[i+2]*2 - 1}
		assert.InDelta(t, 1, n.Len(), 1e-4)
		assert.Greater(t, n.Z(), float32(0))
		if n.Z() < 0.999 {
			tilted++
		}
	}
	assert.Greater(t, tilted, 0)
}

func TestLightSetPlacementAndWrap(t *testing.T) {
	cfg := DefaultLightConfig()
	cfg.Count = 500
	s := NewLightSet(cfg)
	require.Equal(t, 500, s.Len())
	for _, l := range s.Lights() {
		for k := 0; k < 3; k++ {
			assert.GreaterOrEqual(t, l.Position[k], cfg.Min[k])
			assert.LessOrEqual(t, l.Position[k], cfg.Max[k])
		}
		assert.Equal(t, cfg.Radius, l.Radius)
		assert.GreaterOrEqual(t, l.Color.X(), float32(0.5))
		assert.LessOrEqual(t, l.Color.Z(), float32(1.5))
	}

	// same seed, same lights
	assert.Equal(t, s.Lights(), NewLightSet(cfg).Lights())

	for i := 0; i < 2000; i++ {
		s.Update()
	}
	for _, l := range s.Lights() {
		assert.GreaterOrEqual(t, l.Position.Y(), cfg.Min.Y())
		assert.Less(t, l.Position.Y(), cfg.Max.Y())
	}
}

func TestWrap(t *testing.T) {
	tests := []struct{ v, want float32 }{
		{5, 5},
		{-0.03, 19.97},
		{20, 0},
		{41, 1},
	}
	for _, tc := range tests {
		assert.InDelta(t, tc.want, wrap(tc.v, 0, 20), 1e-4, "wrap(%v)", tc.v)
	}
	assert.Equal(t, float32(3), wrap(7, 3, 3))
}

func TestProceduralScene(t *testing.T) {
	cfg := DefaultSceneConfig()
	s := Procedural(cfg, nil)
	require.Len(t, s.Models, 1+len(cfg.PillarRows)*cfg.PillarCount+cfg.Crates)
	assert.Equal(t, "ground", s.Models[0].Name)

	ground := s.Models[0].WorldAABB
	for _, m := range s.Models[1:] {
		assert.GreaterOrEqual(t, m.WorldAABB[0].Y(), float32(-1e-4), m.Name)
		assert.GreaterOrEqual(t, m.WorldAABB[0].X(), ground[0].X(), m.Name)
		assert.LessOrEqual(t, m.WorldAABB[1].X(), ground[1].X(), m.Name)
	}

	// same seed, same crates
	again := Procedural(cfg, nil)
	assert.Equal(t, s.Models[len(s.Models)-1].WorldAABB, again.Models[len(again.Models)-1].WorldAABB)
}

func TestSceneCommitCulls(t *testing.T) {
	s := NewScene(nil)
	near := NewModel("near", Box(mgl32.Vec3{-1, -1, -6}, mgl32.Vec3{1, 1, -4}), DefaultMaterial())
	far := NewModel("behind", Box(mgl32.Vec3{-1, -1, 4}, mgl32.Vec3{1, 1, 6}), DefaultMaterial())
	s.AddModel(near)
	s.AddModel(far)

	proj := mgl32.Perspective(mgl32.DegToRad(90), 1, 1, 100)
	view := mgl32.LookAtV(mgl32.Vec3{}, mgl32.Vec3{0, 0, -1}, mgl32.Vec3{0, 1, 0})
	s.Commit(Frustum(proj.Mul4(view)))
	assert.Equal(t, []*Model{near}, s.VisibleObjects)

	s.RemoveModel(near)
	assert.Equal(t, []*Model{far}, s.Models)
}

type albedoUniforms struct{ viewProj mgl32.Mat4 }

// albedoProgram draws the albedo map unlit.
func albedoProgram() gpu.ProgramDesc {
	return gpu.ProgramDesc{
		Label: "albedo",
		Vertex: func(u any, v gpu.Vertex) (mgl32.Vec4, gpu.Varyings) {
			return u.(*albedoUniforms).viewProj.Mul4x1(v.Position.Vec4(1)), gpu.Varyings{World: v.Position, Normal: v.Normal, UV: v.UV}
		},
		Fragment: func(_ any, in *gpu.Fragment, s gpu.Sampler, out *gpu.Outputs) bool {
			out[0] = s.Sample(gpu.BindAlbedoMap, in.UV)
			return true
		},
		Bindings: []gpu.Binding{gpu.BindAlbedoMap},
		Outputs:  1,
	}
}

func TestSceneDrawBindsEachModelsMaps(t *testing.T) {
	dev := soft.New(soft.Options{})
	defer dev.Destroy()

	red := NewMaterial([4]uint8{255, 0, 0, 255}, [4]uint8{255, 0, 0, 255}, PatternSolid)
	s := NewScene(nil)
	s.AddModel(NewModel("ground", Plane(8, 8, 4), red))

	prog, err := dev.CreateProgram(albedoProgram())
	require.NoError(t, err)
	target, err := dev.CreateTexture(gpu.TextureDesc{Width: 8, Height: 8, Format: gpu.FormatRGBA8})
	require.NoError(t, err)
	depth, err := dev.CreateTexture(gpu.TextureDesc{Width: 8, Height: 8, Format: gpu.FormatDepth32F})
	require.NoError(t, err)
	fb, err := dev.CreateFramebuffer(gpu.FramebufferDesc{Color: []gpu.Texture{target}, Depth: depth})
	require.NoError(t, err)

	proj := mgl32.Perspective(mgl32.DegToRad(90), 1, 0.1, 50)
	view := mgl32.LookAtV(mgl32.Vec3{0, 10, 0}, mgl32.Vec3{}, mgl32.Vec3{0, 0, -1})
	rc := gpu.NewRenderContext(prog, &albedoUniforms{viewProj: proj.Mul4(view)})

	pass, err := dev.BeginPass(gpu.PassDesc{Target: fb})
	require.NoError(t, err)
	assert.Error(t, s.Draw(pass, rc), "models are not uploaded yet")
	require.NoError(t, pass.End())

	require.NoError(t, s.Upload(dev, 4))
	pass, err = dev.BeginPass(gpu.PassDesc{Target: fb})
	require.NoError(t, err)
	require.NoError(t, s.All().Draw(pass, rc))
	require.NoError(t, pass.End())

	px, err := dev.ReadTexture(target)
	require.NoError(t, err)
	centre := (4*8 + 4) * 4
	assert.Equal(t, []float32{1, 0, 0, 1}, px[centre:centre+4])

	before := dev.Live()
	s.Release(dev)
	assert.Equal(t, before-3, dev.Live())
}

func TestSceneCommitMatchesBruteForce(t *testing.T) {
	s := Procedural(DefaultSceneConfig(), nil)
	cam := NewCamera(DefaultCameraConfig())
	cam.SetViewport(16, 9)

	for _, target := range []mgl32.Vec3{{0, 2, 0}, {10, 2, 5}, {-10, 8, 30}} {
		cam.Target = target
		cam.UpdateMatrices()
		planes := Frustum(cam.ViewProjection())
		s.Commit(planes)

		var want []*Model
		for _, m := range s.Models {
			if AABBInFrustum(m.WorldAABB, planes) {
				want = append(want, m)
			}
		}
		assert.Equal(t, len(want), len(s.VisibleObjects), "target %v", target)
		for i := range want {
			assert.Same(t, want[i], s.VisibleObjects[i])
		}
	}

	// adding a model rebuilds the tree
	extra := NewModel("extra", Box(mgl32.Vec3{-1, 0, -1}, mgl32.Vec3{1, 1, 1}), DefaultMaterial())
	s.AddModel(extra)
	cam.Target = mgl32.Vec3{0, 0.5, 0}
	cam.UpdateMatrices()
	s.Commit(Frustum(cam.ViewProjection()))
	assert.Contains(t, s.VisibleObjects, extra)
}
