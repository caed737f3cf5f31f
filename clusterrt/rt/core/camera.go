package core

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// CameraConfig describes the initial camera. FovY is in degrees.
type CameraConfig struct {
	FovY     float32    `yaml:"fov"`
	Near     float32    `yaml:"near"`
	Far      float32    `yaml:"far"`
	Position mgl32.Vec3 `yaml:"position"`
	Target   mgl32.Vec3 `yaml:"target"`
}

func DefaultCameraConfig() CameraConfig {
	return CameraConfig{
		FovY:     75,
		Near:     0.1,
		Far:      50,
		Position: mgl32.Vec3{-10, 8, 0},
		Target:   mgl32.Vec3{0, 2, 0},
	}
}

func (c CameraConfig) Validate() error {
	if c.FovY <= 0 || c.FovY >= 180 {
		return fmt.Errorf("camera: fov %v outside (0, 180)", c.FovY)
	}
	if c.Near <= 0 || c.Far <= c.Near {
		return fmt.Errorf("camera: need 0 < near < far, got near %v far %v", c.Near, c.Far)
	}
	if c.Position == c.Target {
		return fmt.Errorf("camera: position and target coincide at %v", c.Position)
	}
	return nil
}

// Camera is owned by the host and read by the cluster grid and the passes.
// View and Projection are refreshed by UpdateMatrices once per frame.
type Camera struct {
	Position mgl32.Vec3
	Target   mgl32.Vec3
	Up       mgl32.Vec3
	FovY     float32 // radians
	Aspect   float32
	Near     float32
	Far      float32

	View       mgl32.Mat4
	Projection mgl32.Mat4
}

func NewCamera(cfg CameraConfig) *Camera {
	c := &Camera{
		Position: cfg.Position,
		Target:   cfg.Target,
		Up:       mgl32.Vec3{0, 1, 0},
		FovY:     mgl32.DegToRad(cfg.FovY),
		Aspect:   1,
		Near:     cfg.Near,
		Far:      cfg.Far,
	}
	c.UpdateMatrices()
	return c
}

// SetViewport updates the aspect ratio from a surface size.
func (c *Camera) SetViewport(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	c.Aspect = float32(width) / float32(height)
}

func (c *Camera) UpdateMatrices() {
	c.View = mgl32.LookAtV(c.Position, c.Target, c.Up)
	c.Projection = mgl32.Perspective(c.FovY, c.Aspect, c.Near, c.Far)
}

func (c *Camera) ViewProjection() mgl32.Mat4 {
	return c.Projection.Mul4(c.View)
}

func (c *Camera) Forward() mgl32.Vec3 {
	return c.Target.Sub(c.Position).Normalize()
}

// ToView transforms a world-space point into view space (camera looks down -Z).
func (c *Camera) ToView(p mgl32.Vec3) mgl32.Vec3 {
	return c.View.Mul4x1(p.Vec4(1)).Vec3()
}

// HalfExtents returns the frustum half-width and half-height at distance 1.
func (c *Camera) HalfExtents() (halfX, halfY float32) {
	halfY = float32(math.Tan(float64(c.FovY) / 2))
	return c.Aspect * halfY, halfY
}

// Frustum extracts the 6 planes of vp in the order Left, Right, Bottom, Top,
// Near, Far. Each plane is Ax + By + Cz + D = 0 with the normal pointing inside.
func Frustum(vp mgl32.Mat4) [6]mgl32.Vec4 {
	var planes [6]mgl32.Vec4
	row := func(r int) mgl32.Vec4 {
		return mgl32.Vec4{vp.At(r, 0), vp.At(r, 1), vp.At(r, 2), vp.At(r, 3)}
	}
	w := row(3)
	for axis := 0; axis < 3; axis++ {
		r := row(axis)
		planes[axis*2] = w.Add(r)
		planes[axis*2+1] = w.Sub(r)
	}
	for i := range planes {
		length := planes[i].Vec3().Len()
		if length > 0 {
			planes[i] = planes[i].Mul(1.0 / length)
		}
	}
	return planes
}

// AABBInFrustum reports whether any part of the box can be inside the planes.
// The test is conservative: boxes straddling a frustum corner may pass.
func AABBInFrustum(aabb [2]mgl32.Vec3, planes [6]mgl32.Vec4) bool {
	for _, plane := range planes {
		// most-inside corner along the plane normal
		var p mgl32.Vec3
		for k := 0; k < 3; k++ {
			if plane[k] > 0 {
				p[k] = aabb[1][k]
			} else {
				p[k] = aabb[0][k]
			}
		}
		if plane.Vec3().Dot(p)+plane[3] < 0 {
			return false
		}
	}
	return true
}
