package soft

import (
	"math"

	"github.com/gekko3d/clusterfog/clusterrt/rt/gpu"

	"github.com/go-gl/mathgl/mgl32"
)

type texture struct {
	resource
	desc  gpu.TextureDesc
	depth int
	ch    int
	data  []float32
}

func newTexture(r resource, desc gpu.TextureDesc) *texture {
	depth := max(desc.Depth, 1)
	return &texture{
		resource: r,
		desc:     desc,
		depth:    depth,
		ch:       desc.Format.Channels(),
		data:     make([]float32, desc.Floats()),
	}
}

func (t *texture) Desc() gpu.TextureDesc { return t.desc }

func (t *texture) offset(x, y, z int) int {
	return ((z*t.desc.Height+y)*t.desc.Width + x) * t.ch
}

// store writes a single texel, applying the format's range rules.
func (t *texture) store(x, y int, v mgl32.Vec4) {
	o := t.offset(x, y, 0)
	norm := t.desc.Format.Normalized()
	for c := 0; c < t.ch; c++ {
		if norm {
			t.data[o+c] = quantize8(v[c])
		} else {
			t.data[o+c] = v[c]
		}
	}
}

func (t *texture) fill(v mgl32.Vec4) {
	for y := 0; y < t.desc.Height*t.depth; y++ {
		for x := 0; x < t.desc.Width; x++ {
			t.store(x, y, v)
		}
	}
}

func (t *texture) texel(x, y, z int) mgl32.Vec4 {
	o := t.offset(x, y, z)
	if t.ch == 1 {
		return mgl32.Vec4{t.data[o], 0, 0, 1}
	}
	return mgl32.Vec4{t.data[o], t.data[o+1], t.data[o+2], t.data[o+3]}
}

func (t *texture) fetch(x, y int) mgl32.Vec4 {
	if x < 0 || y < 0 || x >= t.desc.Width || y >= t.desc.Height {
		return mgl32.Vec4{}
	}
	return t.texel(x, y, 0)
}

func (t *texture) sample(uv mgl32.Vec2) mgl32.Vec4 {
	w, h := t.desc.Width, t.desc.Height
	if t.desc.Filter == gpu.FilterNearest {
		return t.texel(t.nearest(uv[0], w), t.nearest(uv[1], h), 0)
	}
	x0, x1, tx := t.linear(uv[0], w)
	y0, y1, ty := t.linear(uv[1], h)
	top := lerp4(t.texel(x0, y0, 0), t.texel(x1, y0, 0), tx)
	bottom := lerp4(t.texel(x0, y1, 0), t.texel(x1, y1, 0), tx)
	return lerp4(top, bottom, ty)
}

func (t *texture) sample3D(uvw mgl32.Vec3) mgl32.Vec4 {
	w, h, d := t.desc.Width, t.desc.Height, t.depth
	if t.desc.Filter == gpu.FilterNearest {
		return t.texel(t.nearest(uvw[0], w), t.nearest(uvw[1], h), t.nearest(uvw[2], d))
	}
	x0, x1, tx := t.linear(uvw[0], w)
	y0, y1, ty := t.linear(uvw[1], h)
	z0, z1, tz := t.linear(uvw[2], d)
	slice := func(z int) mgl32.Vec4 {
		top := lerp4(t.texel(x0, y0, z), t.texel(x1, y0, z), tx)
		bottom := lerp4(t.texel(x0, y1, z), t.texel(x1, y1, z), tx)
		return lerp4(top, bottom, ty)
	}
	return lerp4(slice(z0), slice(z1), tz)
}

func (t *texture) nearest(u float32, n int) int {
	u = t.wrapUV(u)
	return min(int(u*float32(n)), n-1)
}

// linear returns the two texel indices around u and the blend weight.
func (t *texture) linear(u float32, n int) (int, int, float32) {
	u = t.wrapUV(u)
	f := u*float32(n) - 0.5
	fl := float32(math.Floor(float64(f)))
	i0 := int(fl)
	return t.wrapIndex(i0, n), t.wrapIndex(i0+1, n), f - fl
}

func (t *texture) wrapUV(u float32) float32 {
	if u != u || math.IsInf(float64(u), 0) {
		return 0
	}
	if t.desc.Wrap == gpu.WrapRepeat {
		return u - float32(math.Floor(float64(u)))
	}
	return mgl32.Clamp(u, 0, 1)
}

func (t *texture) wrapIndex(i, n int) int {
	if t.desc.Wrap == gpu.WrapRepeat {
		i %= n
		if i < 0 {
			i += n
		}
		return i
	}
	return min(max(i, 0), n-1)
}

func lerp4(a, b mgl32.Vec4, t float32) mgl32.Vec4 {
	return a.Add(b.Sub(a).Mul(t))
}

func quantize8(v float32) float32 {
	v = mgl32.Clamp(v, 0, 1)
	return float32(math.Round(float64(v)*255)) / 255
}
