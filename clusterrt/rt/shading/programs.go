package shading

import (
	"github.com/gekko3d/clusterfog/clusterrt/rt/cluster"
	"github.com/gekko3d/clusterfog/clusterrt/rt/gpu"
	"github.com/gekko3d/clusterfog/clusterrt/rt/shadow"
	"github.com/gekko3d/clusterfog/clusterrt/rt/volume"

	"github.com/go-gl/mathgl/mgl32"
)

// Uniforms is the per-frame block every program reads. The renderer fills
// it once per frame before the graph runs.
type Uniforms struct {
	Config Config
	// Width and Height are the output size in pixels.
	Width, Height int

	View        mgl32.Mat4
	ViewProj    mgl32.Mat4
	InvViewProj mgl32.Mat4
	Eye         mgl32.Vec3

	LightCount int
	Slicing    cluster.Slicing
	Capacity   int

	Shadow     *shadow.Mapper
	Volume     *volume.Snapshot
	Integrator *volume.Integrator
	Beacons    []volume.PointSource
}

// Geometry writes world position (w = 1), albedo and the mapped normal to
// the three G-buffer attachments.
func Geometry() gpu.ProgramDesc {
	return gpu.ProgramDesc{
		Label:    "geometry",
		Vertex:   surfaceVertex,
		Fragment: geometryFragment,
		Bindings: []gpu.Binding{gpu.BindAlbedoMap, gpu.BindNormalMap},
		Outputs:  3,
	}
}

// Forward shades surfaces directly. Clustered variants look lights up
// through the cluster buffer; the plain variant loops over every light.
func Forward(clustered bool) gpu.ProgramDesc {
	d := gpu.ProgramDesc{
		Label:    "forward",
		Vertex:   surfaceVertex,
		Fragment: forwardFragment,
		Bindings: []gpu.Binding{gpu.BindAlbedoMap, gpu.BindNormalMap, gpu.BindLightBuffer, gpu.BindShadowMap},
		Outputs:  1,
	}
	if clustered {
		d.Label = "forward_plus"
		d.Fragment = forwardPlusFragment
		d.Bindings = append(d.Bindings, gpu.BindClusterBuffer)
	}
	return d
}

// Volume marches from the eye to the G-buffer surface (or the far plane)
// and writes scattered light and transmittance. The medium is lit by the
// clustered point lights, the sun and the beacons.
func Volume() gpu.ProgramDesc {
	return gpu.ProgramDesc{
		Label:    "volume",
		Fragment: volumeFragment,
		Bindings: []gpu.Binding{
			gpu.BindGBufferPosition, gpu.BindVolumeDensity,
			gpu.BindLightBuffer, gpu.BindClusterBuffer, gpu.BindShadowMap,
		},
		Outputs:  1,
	}
}

// Deferred shades the G-buffer with clustered lights, the shadowed sun and
// the volume pass.
func Deferred() gpu.ProgramDesc {
	return gpu.ProgramDesc{
		Label:    "deferred",
		Fragment: deferredFragment,
		Bindings: []gpu.Binding{
			gpu.BindGBufferPosition, gpu.BindGBufferAlbedo, gpu.BindGBufferNormal,
			gpu.BindLightBuffer, gpu.BindClusterBuffer, gpu.BindShadowMap, gpu.BindVolumePass,
		},
		Outputs: 1,
	}
}

func ToneMapProgram() gpu.ProgramDesc {
	return gpu.ProgramDesc{
		Label:    "tonemap",
		Fragment: toneMapFragment,
		Bindings: []gpu.Binding{gpu.BindHDR},
		Outputs:  1,
	}
}

func surfaceVertex(uniforms any, v gpu.Vertex) (mgl32.Vec4, gpu.Varyings) {
	u := uniforms.(*Uniforms)
	return u.ViewProj.Mul4x1(v.Position.Vec4(1)), gpu.Varyings{World: v.Position, Normal: v.Normal, UV: v.UV}
}

// surface reads albedo and the mapped normal of a rasterized fragment.
func surface(in *gpu.Fragment, s gpu.Sampler) (albedo, normal mgl32.Vec3) {
	albedo = s.Sample(gpu.BindAlbedoMap, in.UV).Vec3()
	normal = in.Normal
	if normal.Len() > 0 {
		normal = normal.Normalize()
	}
	normal = PerturbNormal(normal, s.Sample(gpu.BindNormalMap, in.UV).Vec3())
	return albedo, normal
}

func geometryFragment(_ any, in *gpu.Fragment, s gpu.Sampler, out *gpu.Outputs) bool {
	albedo, normal := surface(in, s)
	out[0] = in.World.Vec4(1)
	out[1] = albedo.Vec4(1)
	out[2] = normal.Vec4(1)
	return true
}

// direct is the light reaching a surface without fog: shadowed sun plus
// ambient. Point lights are added by the caller.
func (u *Uniforms) direct(s gpu.Sampler, pos, normal, albedo mgl32.Vec3) mgl32.Vec3 {
	vis := float32(1)
	sunDir := mgl32.Vec3{1, 0.5, 1}.Normalize()
	if u.Shadow != nil {
		vis = u.Shadow.Lookup(s, gpu.BindShadowMap, pos)
		sunDir = u.Shadow.SunDirection()
	}
	c := Sun(albedo, normal, sunDir, u.Config.SunColor, u.Config.SunFloor, vis)
	return c.Add(mul(albedo, u.Config.Ambient))
}

func (u *Uniforms) allLights(s gpu.Sampler, pos, normal, albedo mgl32.Vec3) mgl32.Vec3 {
	var c mgl32.Vec3
	for i := 0; i < u.LightCount; i++ {
		l := UnpackLight(s, gpu.BindLightBuffer, i)
		c = c.Add(PointLight(l, pos, normal, albedo, u.Eye, u.Config.Shininess))
	}
	return c
}

// cell returns the flat cluster index of a world point, or -1 outside the grid.
func (u *Uniforms) cell(pos mgl32.Vec3) int {
	view := u.View.Mul4x1(pos.Vec4(1)).Vec3()
	x, y, z, ok := u.Slicing.Cell(view)
	if !ok {
		return -1
	}
	return u.Slicing.Index(x, y, z)
}

func (u *Uniforms) clusterLights(s gpu.Sampler, pos, normal, albedo mgl32.Vec3) mgl32.Vec3 {
	var c mgl32.Vec3
	cell := u.cell(pos)
	if cell < 0 {
		return c
	}
	n := ClusterCount(s, gpu.BindClusterBuffer, cell, u.Capacity)
	for k := 0; k < n; k++ {
		l := UnpackLight(s, gpu.BindLightBuffer, ClusterLight(s, gpu.BindClusterBuffer, cell, k))
		c = c.Add(PointLight(l, pos, normal, albedo, u.Eye, u.Config.Shininess))
	}
	return c
}

func (u *Uniforms) clusterHeat(s gpu.Sampler, pos mgl32.Vec3) mgl32.Vec3 {
	cell := u.cell(pos)
	if cell < 0 || u.Capacity == 0 {
		return mgl32.Vec3{}
	}
	n := ClusterCount(s, gpu.BindClusterBuffer, cell, u.Capacity)
	return Heat(float32(n) / float32(u.Capacity))
}

// debugSurface renders the surface debug views; ok is false for views the
// caller handles itself.
func (u *Uniforms) debugSurface(s gpu.Sampler, screen mgl32.Vec2, pos, normal, albedo mgl32.Vec3, clustered bool) (mgl32.Vec3, bool) {
	switch u.Config.Debug {
	case DebugAlbedo:
		return albedo, true
	case DebugNormal:
		return normal.Mul(0.5).Add(mgl32.Vec3{0.5, 0.5, 0.5}), true
	case DebugPosition:
		return clamp01(pos.Mul(u.Config.PositionScale).Add(mgl32.Vec3{0.5, 0.5, 0.5})), true
	case DebugShadow:
		d := s.Sample(gpu.BindShadowMap, screen).X()
		return mgl32.Vec3{d, d, d}, true
	case DebugClusters:
		if clustered {
			return u.clusterHeat(s, pos), true
		}
	}
	return mgl32.Vec3{}, false
}

func forwardFragment(uniforms any, in *gpu.Fragment, s gpu.Sampler, out *gpu.Outputs) bool {
	u := uniforms.(*Uniforms)
	albedo, normal := surface(in, s)
	if c, ok := u.debugSurface(s, u.screenUV(in), in.World, normal, albedo, false); ok {
		out[0] = c.Vec4(1)
		return true
	}
	c := u.direct(s, in.World, normal, albedo).Add(u.allLights(s, in.World, normal, albedo))
	out[0] = c.Vec4(1)
	return true
}

func forwardPlusFragment(uniforms any, in *gpu.Fragment, s gpu.Sampler, out *gpu.Outputs) bool {
	u := uniforms.(*Uniforms)
	albedo, normal := surface(in, s)
	if c, ok := u.debugSurface(s, u.screenUV(in), in.World, normal, albedo, true); ok {
		out[0] = c.Vec4(1)
		return true
	}
	c := u.direct(s, in.World, normal, albedo).Add(u.clusterLights(s, in.World, normal, albedo))
	out[0] = c.Vec4(1)
	return true
}

// screenUV is the UV of a rasterized fragment on the output target.
func (u *Uniforms) screenUV(in *gpu.Fragment) mgl32.Vec2 {
	if u.Width == 0 || u.Height == 0 {
		return mgl32.Vec2{}
	}
	return mgl32.Vec2{in.Coord.X() / float32(u.Width), in.Coord.Y() / float32(u.Height)}
}

func deferredFragment(uniforms any, in *gpu.Fragment, s gpu.Sampler, out *gpu.Outputs) bool {
	u := uniforms.(*Uniforms)
	pos4 := s.Sample(gpu.BindGBufferPosition, in.UV)
	vol := s.Sample(gpu.BindVolumePass, in.UV)
	pos := pos4.Vec3()
	albedo := s.Sample(gpu.BindGBufferAlbedo, in.UV).Vec3()
	normal := s.Sample(gpu.BindGBufferNormal, in.UV).Vec3()

	if u.Config.Debug == DebugVolume {
		out[0] = vol.Vec3().Vec4(1)
		return true
	}
	if u.Config.Debug == DebugShadow {
		d := s.Sample(gpu.BindShadowMap, in.UV).X()
		out[0] = mgl32.Vec4{d, d, d, 1}
		return true
	}
	if pos4.W() == 0 {
		if u.Config.Debug != DebugNone {
			out[0] = mgl32.Vec4{0, 0, 0, 1}
			return true
		}
		out[0] = Composite(mgl32.Vec3{}, vol).Vec4(1)
		return true
	}
	if c, ok := u.debugSurface(s, in.UV, pos, normal, albedo, true); ok {
		out[0] = c.Vec4(1)
		return true
	}
	c := u.direct(s, pos, normal, albedo).Add(u.clusterLights(s, pos, normal, albedo))
	out[0] = Composite(c, vol).Vec4(1)
	return true
}

func volumeFragment(uniforms any, in *gpu.Fragment, s gpu.Sampler, out *gpu.Outputs) bool {
	u := uniforms.(*Uniforms)
	origin := u.Eye
	var end mgl32.Vec3
	if pos4 := s.Sample(gpu.BindGBufferPosition, in.UV); pos4.W() > 0 {
		end = pos4.Vec3()
	} else {
		ndc := gpu.UVToNDC(in.UV)
		far := u.InvViewProj.Mul4x1(mgl32.Vec4{ndc[0], ndc[1], 1, 1})
		end = far.Vec3().Mul(1 / far.W())
	}

	medium := volume.Sampled{Snapshot: u.Volume, Sampler: s, Binding: gpu.BindVolumeDensity}
	if u.Volume.Ambient == 0 {
		// outside the box the medium is empty; march only the inside
		seg := end.Sub(origin)
		tNear, tFar, ok := u.Volume.Intersect(origin, seg)
		if !ok || tNear > 1 {
			out[0] = mgl32.Vec4{0, 0, 0, 1}
			return true
		}
		origin, end = origin.Add(seg.Mul(max(tNear, 0))), origin.Add(seg.Mul(min(tFar, 1)))
	}
	res := u.Integrator.March(origin, end, medium, u.fogSources(s, medium))
	out[0] = res.Scattered.Vec4(res.Transmittance)
	return true
}

// fogSources lights the medium with the beacons, the lights of each
// sample's cluster and the sun.
func (u *Uniforms) fogSources(s gpu.Sampler, medium volume.Medium) *volume.Sources {
	src := u.Integrator.Sources(u.Beacons, medium)
	if u.Capacity > 0 && u.LightCount > 0 {
		src.Lookup = func(p mgl32.Vec3, visit func(volume.PointSource)) {
			cell := u.cell(p)
			if cell < 0 {
				return
			}
			n := ClusterCount(s, gpu.BindClusterBuffer, cell, u.Capacity)
			for k := 0; k < n; k++ {
				l := UnpackLight(s, gpu.BindLightBuffer, ClusterLight(s, gpu.BindClusterBuffer, cell, k))
				visit(volume.PointSource{Position: l.Position, Color: l.Color})
			}
		}
	}
	sun := &volume.DirectionalSource{Color: u.Config.SunColor}
	if u.Shadow != nil && u.Integrator.ShadowMap {
		sun.Visibility = func(p mgl32.Vec3) float32 {
			return u.Shadow.Lookup(s, gpu.BindShadowMap, p)
		}
	}
	src.Sun = sun
	return src
}

func toneMapFragment(uniforms any, in *gpu.Fragment, s gpu.Sampler, out *gpu.Outputs) bool {
	u := uniforms.(*Uniforms)
	c := s.Sample(gpu.BindHDR, in.UV).Vec3()
	if u.Config.Debug != DebugNone {
		out[0] = clamp01(c).Vec4(1)
		return true
	}
	out[0] = ToneMap(c, u.Config.ToneMap).Vec4(1)
	return true
}

func clamp01(c mgl32.Vec3) mgl32.Vec3 {
	return mgl32.Vec3{mgl32.Clamp(c[0], 0, 1), mgl32.Clamp(c[1], 0, 1), mgl32.Clamp(c[2], 0, 1)}
}
