// Package shading holds the per-pass programs of the renderer and the
// lighting math they share.
package shading

import (
	"math"

	"github.com/gekko3d/clusterfog/clusterrt/rt/core"

	"github.com/go-gl/mathgl/mgl32"
)

// CubicGaussian approximates a gaussian that reaches exactly zero at h = 2.
func CubicGaussian(h float32) float32 {
	switch {
	case h < 1:
		a, b := 2-h, 1-h
		return 0.25*a*a*a - b*b*b
	case h < 2:
		a := 2 - h
		return 0.25 * a * a * a
	}
	return 0
}

// PointLight is the Blinn-Phong contribution of one clustered light with a
// cubic-gaussian falloff that vanishes at the light radius.
func PointLight(l core.Light, pos, normal, albedo, eye mgl32.Vec3, shininess float32) mgl32.Vec3 {
	toLight := l.Position.Sub(pos)
	dist := toLight.Len()
	if dist <= 0 || l.Radius <= 0 {
		return mgl32.Vec3{}
	}
	falloff := CubicGaussian(2 * dist / l.Radius)
	if falloff <= 0 {
		return mgl32.Vec3{}
	}
	dir := toLight.Mul(1 / dist)
	lambert := max(dir.Dot(normal), 0)
	if lambert == 0 {
		return mgl32.Vec3{}
	}
	var spec float32
	if view := eye.Sub(pos); view.Len() > 0 {
		half := dir.Add(view.Normalize())
		if half.Len() > 0 {
			spec = float32(math.Pow(float64(max(half.Normalize().Dot(normal), 0)), float64(shininess)))
		}
	}
	base := albedo.Add(mgl32.Vec3{spec, spec, spec})
	return mul(base, l.Color).Mul(lambert * falloff)
}

// Sun is the directional term albedo * color * max(n·l, floor) * visibility.
func Sun(albedo, normal, dir, color mgl32.Vec3, floor, visibility float32) mgl32.Vec3 {
	return mul(albedo, color).Mul(max(dir.Dot(normal), floor) * visibility)
}

// Composite applies the volume pass (scattered light in rgb, transmittance
// in a) over a surface color.
func Composite(color mgl32.Vec3, vol mgl32.Vec4) mgl32.Vec3 {
	return color.Mul(vol.W()).Add(vol.Vec3())
}

// ACES is the Narkowicz fit of the ACES filmic curve.
func ACES(x float32) float32 {
	const a, b, c, d, e = 2.51, 0.03, 2.43, 0.59, 0.14
	return mgl32.Clamp((x*(a*x+b))/(x*(c*x+d)+e), 0, 1)
}

func Reinhard(x float32) float32 {
	return x / (1 + x)
}

// ToneMap exposes, compresses and gamma-encodes a linear HDR color.
func ToneMap(c mgl32.Vec3, cfg ToneMapConfig) mgl32.Vec3 {
	var out mgl32.Vec3
	inv := 1 / float64(cfg.Gamma)
	for k := 0; k < 3; k++ {
		x := max(c[k]*cfg.Exposure, 0)
		switch cfg.Operator {
		case ToneReinhard:
			x = Reinhard(x)
		case ToneLinear:
		default:
			x = ACES(x)
		}
		x = mgl32.Clamp(x, 0, 1)
		out[k] = float32(math.Pow(float64(x), inv))
	}
	return out
}

// Heat maps t in [0,1] to a blue-green-red ramp.
func Heat(t float32) mgl32.Vec3 {
	t = mgl32.Clamp(t, 0, 1)
	if t < 0.5 {
		return mgl32.Vec3{0, 2 * t, 1 - 2*t}
	}
	return mgl32.Vec3{2*t - 1, 2 - 2*t, 0}
}

// PerturbNormal applies a tangent-space normal map sample (encoded in
// [0,1]) to a geometric normal.
func PerturbNormal(n mgl32.Vec3, encoded mgl32.Vec3) mgl32.Vec3 {
	m := encoded.Mul(2).Sub(mgl32.Vec3{1, 1, 1})
	up := mgl32.Vec3{0, 1, 0}
	if abs(n.Y()) > 0.999 {
		up = mgl32.Vec3{1, 0, 0}
	}
	t := up.Cross(n).Normalize()
	b := n.Cross(t)
	p := t.Mul(m.X()).Add(b.Mul(m.Y())).Add(n.Mul(m.Z()))
	if p.Len() == 0 {
		return n
	}
	return p.Normalize()
}

func mul(a, b mgl32.Vec3) mgl32.Vec3 {
	return mgl32.Vec3{a[0] * b[0], a[1] * b[1], a[2] * b[2]}
}

func abs(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
