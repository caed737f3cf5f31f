package shadow

import (
	"testing"

	"github.com/gekko3d/clusterfog/clusterrt/rt/gpu"
	"github.com/gekko3d/clusterfog/clusterrt/rt/gpu/soft"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInShadow(t *testing.T) {
	tests := []struct {
		depth, z float32
		want     bool
	}{
		{0.5, 0.5, false},
		{0.5, 0.506, false},
		{0.5, 0.508, true},
		{0.9, 0.2, false},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, InShadow(tc.depth, tc.z, 0.007), "depth %v z %v", tc.depth, tc.z)
	}
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
	bad := DefaultConfig()
	bad.Far = bad.Near
	bad.Direction = mgl32.Vec3{}
	_, err := NewMapper(bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "direction")
}

func TestProjectCentre(t *testing.T) {
	m, err := NewMapper(DefaultConfig())
	require.NoError(t, err)
	assert.InDelta(t, 1, m.SunDirection().Len(), 1e-6)

	uv, z, ok := m.Project(m.Config().Center)
	require.True(t, ok)
	assert.InDelta(t, 0.5, uv.X(), 1e-5)
	assert.InDelta(t, 0.5, uv.Y(), 1e-5)
	assert.InDelta(t, 0.5, z, 0.01)

	// closer to the sun means smaller depth
	_, zNear, _ := m.Project(m.Config().Center.Add(m.SunDirection().Mul(10)))
	assert.Less(t, zNear, z)
}

// texSampler reads a texture copied back from the device, nearest filtered.
type texSampler struct {
	data []float32
	w, h int
}

func (s *texSampler) Sample(_ gpu.Binding, uv mgl32.Vec2) mgl32.Vec4 {
	x := min(max(int(uv[0]*float32(s.w)), 0), s.w-1)
	y := min(max(int(uv[1]*float32(s.h)), 0), s.h-1)
	return s.Fetch(0, x, y)
}

func (s *texSampler) Sample3D(gpu.Binding, mgl32.Vec3) mgl32.Vec4 { return mgl32.Vec4{} }

func (s *texSampler) Fetch(_ gpu.Binding, x, y int) mgl32.Vec4 {
	o := (y*s.w + x) * 4
	return mgl32.Vec4{s.data[o], s.data[o+1], s.data[o+2], s.data[o+3]}
}

func (s *texSampler) Size(gpu.Binding) (int, int) { return s.w, s.h }

func quad(y, half float32) []gpu.Vertex {
	n := mgl32.Vec3{0, 1, 0}
	return []gpu.Vertex{
		{Position: mgl32.Vec3{-half, y, -half}, Normal: n},
		{Position: mgl32.Vec3{half, y, -half}, Normal: n},
		{Position: mgl32.Vec3{half, y, half}, Normal: n},
		{Position: mgl32.Vec3{-half, y, half}, Normal: n},
	}
}

func TestOccluderCastsShadow(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Resolution = 256
	cfg.HalfExtent = 14
	cfg.Center = mgl32.Vec3{0, 0, 0}
	m, err := NewMapper(cfg)
	require.NoError(t, err)

	dev := soft.New(soft.Options{Workers: 2})
	defer dev.Destroy()

	color, err := dev.CreateTexture(gpu.TextureDesc{Label: "shadow", Width: cfg.Resolution, Height: cfg.Resolution, Format: gpu.FormatRGBA32F})
	require.NoError(t, err)
	depth, err := dev.CreateTexture(gpu.TextureDesc{Label: "shadow_depth", Width: cfg.Resolution, Height: cfg.Resolution, Format: gpu.FormatDepth32F})
	require.NoError(t, err)
	fb, err := dev.CreateFramebuffer(gpu.FramebufferDesc{Color: []gpu.Texture{color}, Depth: depth})
	require.NoError(t, err)
	prog, err := dev.CreateProgram(m.Program())
	require.NoError(t, err)

	idx := []uint32{0, 1, 2, 0, 2, 3}
	ground, err := dev.CreateMesh(quad(0, 12), idx)
	require.NoError(t, err)
	blocker, err := dev.CreateMesh(quad(3, 1), idx)
	require.NoError(t, err)

	pass, err := dev.BeginPass(gpu.PassDesc{Label: "shadow", Target: fb, ClearColors: []gpu.ClearColor{{1, 1, 1, 1}}})
	require.NoError(t, err)
	rc := gpu.NewRenderContext(prog, m)
	require.NoError(t, pass.Draw(rc, ground))
	require.NoError(t, pass.Draw(rc, blocker))
	require.NoError(t, pass.End())

	data, err := dev.ReadTexture(color)
	require.NoError(t, err)
	s := &texSampler{data: data, w: cfg.Resolution, h: cfg.Resolution}

	// (1, 0.5, 1) * 6 lifts a ground point to the blocker height
	assert.Equal(t, cfg.ShadowedVisibility, m.Lookup(s, gpu.BindShadowMap, mgl32.Vec3{-6, 0, -6}))
	assert.Equal(t, float32(1), m.Lookup(s, gpu.BindShadowMap, mgl32.Vec3{5, 0, 5}))
	assert.Equal(t, float32(1), m.Lookup(s, gpu.BindShadowMap, mgl32.Vec3{-8, 0, 6}))
	assert.Equal(t, float32(1), m.Lookup(s, gpu.BindShadowMap, mgl32.Vec3{0, 3, 0}), "the blocker does not shadow itself")
	assert.Equal(t, float32(1), m.Lookup(s, gpu.BindShadowMap, mgl32.Vec3{500, 0, 500}), "outside the light frustum")
}
