package gpu

import "github.com/go-gl/mathgl/mgl32"

// Window space has its origin at the top-left texel; texture UV (0,0) is the
// same corner, so a pixel at (x, y) of a W×H target has UV ((x+.5)/W, (y+.5)/H).

// NDCToUV maps normalized device xy in [-1,1] to texture UV.
func NDCToUV(x, y float32) mgl32.Vec2 {
	return mgl32.Vec2{x*0.5 + 0.5, 0.5 - y*0.5}
}

// UVToNDC is the inverse of NDCToUV.
func UVToNDC(uv mgl32.Vec2) mgl32.Vec2 {
	return mgl32.Vec2{uv[0]*2 - 1, 1 - uv[1]*2}
}

// WindowDepth maps NDC z in [-1,1] to window depth in [0,1].
func WindowDepth(ndcZ float32) float32 {
	return ndcZ*0.5 + 0.5
}

// Project transforms p by m and returns texture UV and window depth.
// ok is false when p lies behind the projection (w <= 0).
func Project(m mgl32.Mat4, p mgl32.Vec3) (uv mgl32.Vec2, depth float32, ok bool) {
	clip := m.Mul4x1(p.Vec4(1))
	if clip[3] <= 0 {
		return mgl32.Vec2{}, 0, false
	}
	inv := 1 / clip[3]
	return NDCToUV(clip[0]*inv, clip[1]*inv), WindowDepth(clip[2] * inv), true
}
