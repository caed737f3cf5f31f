package shading

import (
	"testing"

	"github.com/gekko3d/clusterfog/clusterrt/rt/core"
	"github.com/gekko3d/clusterfog/clusterrt/rt/gpu"
	"github.com/gekko3d/clusterfog/clusterrt/rt/gpu/soft"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCubicGaussian(t *testing.T) {
	assert.InDelta(t, 1, CubicGaussian(0), 1e-6)
	assert.InDelta(t, 0.25, CubicGaussian(1), 1e-6)
	assert.Equal(t, float32(0), CubicGaussian(2))
	assert.Equal(t, float32(0), CubicGaussian(5))
	prev := CubicGaussian(0)
	for h := float32(0.1); h < 2; h += 0.1 {
		v := CubicGaussian(h)
		assert.LessOrEqual(t, v, prev)
		prev = v
	}
}

func TestPointLightFalloff(t *testing.T) {
	l := core.Light{Position: mgl32.Vec3{0, 2, 0}, Radius: 5, Color: mgl32.Vec3{1, 1, 1}}
	up := mgl32.Vec3{0, 1, 0}
	albedo := mgl32.Vec3{0.5, 0.5, 0.5}
	eye := mgl32.Vec3{0, 10, 0}

	near := PointLight(l, mgl32.Vec3{0, 0, 0}, up, albedo, eye, 100)
	assert.Greater(t, near.X(), float32(0))

	// the light is 5 away: exactly at its radius
	atRadius := PointLight(l, mgl32.Vec3{0, -3, 0}, up, albedo, eye, 100)
	assert.Equal(t, mgl32.Vec3{}, atRadius)

	// facing away
	back := PointLight(l, mgl32.Vec3{0, 0, 0}, mgl32.Vec3{0, -1, 0}, albedo, eye, 100)
	assert.Equal(t, mgl32.Vec3{}, back)
}

func TestSunFloorAndVisibility(t *testing.T) {
	albedo := mgl32.Vec3{1, 1, 1}
	dir := mgl32.Vec3{0, 1, 0}
	color := mgl32.Vec3{0.5, 0.5, 0.4}

	lit := Sun(albedo, mgl32.Vec3{0, 1, 0}, dir, color, 0.05, 1)
	assert.InDelta(t, 0.5, lit.X(), 1e-6)
	shadowed := Sun(albedo, mgl32.Vec3{0, 1, 0}, dir, color, 0.05, 0.3)
	assert.InDelta(t, 0.15, shadowed.X(), 1e-6)
	facingAway := Sun(albedo, mgl32.Vec3{0, -1, 0}, dir, color, 0.05, 1)
	assert.InDelta(t, 0.025, facingAway.X(), 1e-6)
}

func TestComposite(t *testing.T) {
	c := Composite(mgl32.Vec3{1, 0.5, 0}, mgl32.Vec4{0.1, 0.2, 0.3, 0.5})
	assert.InDelta(t, 0.6, c.X(), 1e-6)
	assert.InDelta(t, 0.45, c.Y(), 1e-6)
	assert.InDelta(t, 0.3, c.Z(), 1e-6)
	assert.Equal(t, mgl32.Vec3{2, 3, 4}, Composite(mgl32.Vec3{2, 3, 4}, mgl32.Vec4{0, 0, 0, 1}))
}

func TestToneMap(t *testing.T) {
	linear := ToneMapConfig{Operator: ToneLinear, Exposure: 1, Gamma: 1}
	assert.Equal(t, mgl32.Vec3{0.25, 1, 0}, ToneMap(mgl32.Vec3{0.25, 3, -1}, linear))

	reinhard := ToneMapConfig{Operator: ToneReinhard, Exposure: 2, Gamma: 1}
	assert.InDelta(t, 0.5, ToneMap(mgl32.Vec3{0.5, 0, 0}, reinhard).X(), 1e-6)

	filmic := ToneMapConfig{Operator: ToneFilmic, Exposure: 1, Gamma: 2.2}
	prev := float32(-1)
	for _, x := range []float32{0, 0.1, 0.5, 1, 4, 100} {
		v := ToneMap(mgl32.Vec3{x, x, x}, filmic).X()
		assert.GreaterOrEqual(t, v, prev)
		assert.LessOrEqual(t, v, float32(1))
		prev = v
	}
	assert.Equal(t, float32(0), ToneMap(mgl32.Vec3{}, filmic).X())
}

func TestHeatEnds(t *testing.T) {
	assert.Equal(t, mgl32.Vec3{0, 0, 1}, Heat(0))
	assert.Equal(t, mgl32.Vec3{0, 1, 0}, Heat(0.5))
	assert.Equal(t, mgl32.Vec3{1, 0, 0}, Heat(1))
	assert.Equal(t, Heat(1), Heat(7))
}

func TestPerturbNormalFlatMap(t *testing.T) {
	for _, n := range []mgl32.Vec3{{0, 1, 0}, {1, 0, 0}, mgl32.Vec3{1, 1, 1}.Normalize()} {
		got := PerturbNormal(n, mgl32.Vec3{0.5, 0.5, 1})
		assert.InDelta(t, 0, got.Sub(n).Len(), 1e-5, "normal %v", n)
	}
	tilted := PerturbNormal(mgl32.Vec3{0, 0, 1}, mgl32.Vec3{1, 0.5, 0.5})
	assert.InDelta(t, 1, tilted.Len(), 1e-5)
	assert.InDelta(t, 0, tilted.Z(), 1e-5)
}

func TestParsers(t *testing.T) {
	m, err := ParseToneMapper("ACES")
	require.NoError(t, err)
	assert.Equal(t, ToneFilmic, m)
	_, err = ParseToneMapper("hable")
	assert.Error(t, err)

	v, err := ParseDebugView("Clusters")
	require.NoError(t, err)
	assert.Equal(t, DebugClusters, v)
	v, err = ParseDebugView("")
	require.NoError(t, err)
	assert.Equal(t, DebugNone, v)
	_, err = ParseDebugView("depth")
	assert.Error(t, err)

	assert.NoError(t, DefaultConfig().Validate())
	bad := DefaultConfig()
	bad.ToneMap.Gamma = 0
	bad.Debug = "wire"
	assert.Error(t, bad.Validate())
}

// unpackProbe copies every light read back through the sampler.
type unpackProbe struct {
	got []core.Light
}

func TestLightBufferThroughDevice(t *testing.T) {
	lights := core.NewLightSet(core.DefaultLightConfig()).Lights()[:9]
	buf, err := NewLightBuffer(len(lights))
	require.NoError(t, err)
	PackLights(buf, lights)

	dev := soft.New(soft.Options{})
	defer dev.Destroy()
	require.NoError(t, buf.Attach(dev, "lights"))
	require.NoError(t, buf.Flush(dev))

	probe := &unpackProbe{got: make([]core.Light, len(lights))}
	prog, err := dev.CreateProgram(gpu.ProgramDesc{
		Label:    "unpack",
		Bindings: []gpu.Binding{gpu.BindLightBuffer},
		Outputs:  1,
		Fragment: func(u any, in *gpu.Fragment, s gpu.Sampler, out *gpu.Outputs) bool {
			i := int(in.Coord.X())
			u.(*unpackProbe).got[i] = UnpackLight(s, gpu.BindLightBuffer, i)
			return false
		},
	})
	require.NoError(t, err)
	target, err := dev.CreateTexture(gpu.TextureDesc{Width: len(lights), Height: 1, Format: gpu.FormatRGBA8})
	require.NoError(t, err)
	fb, err := dev.CreateFramebuffer(gpu.FramebufferDesc{Color: []gpu.Texture{target}})
	require.NoError(t, err)
	pass, err := dev.BeginPass(gpu.PassDesc{Target: fb})
	require.NoError(t, err)
	require.NoError(t, pass.DrawFullscreen(gpu.NewRenderContext(prog, probe).With(gpu.BindLightBuffer, buf.Texture())))
	require.NoError(t, pass.End())

	assert.Equal(t, lights, probe.got)
}
