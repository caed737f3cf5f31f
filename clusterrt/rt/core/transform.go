package core

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Transform places an object (a model or the fog volume) in the world.
type Transform struct {
	Position mgl32.Vec3 `yaml:"position"`
	Rotation mgl32.Quat `yaml:"-"`
	Scale    mgl32.Vec3 `yaml:"scale"`
}

func NewTransform() Transform {
	return Transform{
		Rotation: mgl32.QuatIdent(),
		Scale:    mgl32.Vec3{1, 1, 1},
	}
}

// ObjectToWorld returns T * R * S.
func (t Transform) ObjectToWorld() mgl32.Mat4 {
	translate := mgl32.Translate3D(t.Position.X(), t.Position.Y(), t.Position.Z())
	rotate := t.Rotation.Normalize().Mat4()
	scale := mgl32.Scale3D(t.Scale.X(), t.Scale.Y(), t.Scale.Z())
	return translate.Mul4(rotate).Mul4(scale)
}

// WorldToObject is the inverse of ObjectToWorld built from the inverted parts.
func (t Transform) WorldToObject() mgl32.Mat4 {
	invScale := mgl32.Scale3D(1.0/t.Scale.X(), 1.0/t.Scale.Y(), 1.0/t.Scale.Z())
	invRotate := t.Rotation.Normalize().Conjugate().Mat4()
	invTranslate := mgl32.Translate3D(-t.Position.X(), -t.Position.Y(), -t.Position.Z())
	return invScale.Mul4(invRotate).Mul4(invTranslate)
}

// NormalMatrix is the inverse transpose of ObjectToWorld, used for normals.
func (t Transform) NormalMatrix() mgl32.Mat4 {
	return t.WorldToObject().Transpose()
}

// AABB transforms the local box [lo, hi] and returns the enclosing world box.
func (t Transform) AABB(lo, hi mgl32.Vec3) [2]mgl32.Vec3 {
	o2w := t.ObjectToWorld()
	inf := float32(1e20)
	wMin := mgl32.Vec3{inf, inf, inf}
	wMax := mgl32.Vec3{-inf, -inf, -inf}
	for i := 0; i < 8; i++ {
		c := lo
		if i&1 != 0 {
			c[0] = hi[0]
		}
		if i&2 != 0 {
			c[1] = hi[1]
		}
		if i&4 != 0 {
			c[2] = hi[2]
		}
		wc := o2w.Mul4x1(c.Vec4(1)).Vec3()
		for k := 0; k < 3; k++ {
			wMin[k] = min(wMin[k], wc[k])
			wMax[k] = max(wMax[k], wc[k])
		}
	}
	return [2]mgl32.Vec3{wMin, wMax}
}
