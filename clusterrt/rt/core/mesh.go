package core

import (
	"github.com/gekko3d/clusterfog/clusterrt/rt/gpu"

	"github.com/go-gl/mathgl/mgl32"
)

// MeshData is an indexed triangle list on the CPU.
type MeshData struct {
	Vertices []gpu.Vertex
	Indices  []uint32
}

// quad appends the two triangles of a face with corners a, b, c, d in
// counter-clockwise order seen from the front.
func (m *MeshData) quad(a, b, c, d, normal mgl32.Vec3, uvScale mgl32.Vec2) {
	base := uint32(len(m.Vertices))
	m.Vertices = append(m.Vertices,
		gpu.Vertex{Position: a, Normal: normal, UV: mgl32.Vec2{0, uvScale.Y()}},
		gpu.Vertex{Position: b, Normal: normal, UV: mgl32.Vec2{uvScale.X(), uvScale.Y()}},
		gpu.Vertex{Position: c, Normal: normal, UV: mgl32.Vec2{uvScale.X(), 0}},
		gpu.Vertex{Position: d, Normal: normal, UV: mgl32.Vec2{0, 0}},
	)
	m.Indices = append(m.Indices, base, base+1, base+2, base, base+2, base+3)
}

// Plane is a ground quad at y = 0 facing +Y, spanning [-halfX, halfX] x
// [-halfZ, halfZ]. The texture repeats every `tile` world units.
func Plane(halfX, halfZ, tile float32) MeshData {
	var m MeshData
	uv := mgl32.Vec2{2 * halfX / tile, 2 * halfZ / tile}
	m.quad(
		mgl32.Vec3{-halfX, 0, halfZ},
		mgl32.Vec3{halfX, 0, halfZ},
		mgl32.Vec3{halfX, 0, -halfZ},
		mgl32.Vec3{-halfX, 0, -halfZ},
		mgl32.Vec3{0, 1, 0}, uv)
	return m
}

// Box is an axis-aligned box with outward normals and one UV square per face.
func Box(lo, hi mgl32.Vec3) MeshData {
	var m MeshData
	x0, y0, z0 := lo.X(), lo.Y(), lo.Z()
	x1, y1, z1 := hi.X(), hi.Y(), hi.Z()
	one := mgl32.Vec2{1, 1}
	m.quad(mgl32.Vec3{x0, y0, z1}, mgl32.Vec3{x1, y0, z1}, mgl32.Vec3{x1, y1, z1}, mgl32.Vec3{x0, y1, z1}, mgl32.Vec3{0, 0, 1}, one)
	m.quad(mgl32.Vec3{x1, y0, z0}, mgl32.Vec3{x0, y0, z0}, mgl32.Vec3{x0, y1, z0}, mgl32.Vec3{x1, y1, z0}, mgl32.Vec3{0, 0, -1}, one)
	m.quad(mgl32.Vec3{x1, y0, z1}, mgl32.Vec3{x1, y0, z0}, mgl32.Vec3{x1, y1, z0}, mgl32.Vec3{x1, y1, z1}, mgl32.Vec3{1, 0, 0}, one)
	m.quad(mgl32.Vec3{x0, y0, z0}, mgl32.Vec3{x0, y0, z1}, mgl32.Vec3{x0, y1, z1}, mgl32.Vec3{x0, y1, z0}, mgl32.Vec3{-1, 0, 0}, one)
	m.quad(mgl32.Vec3{x0, y1, z1}, mgl32.Vec3{x1, y1, z1}, mgl32.Vec3{x1, y1, z0}, mgl32.Vec3{x0, y1, z0}, mgl32.Vec3{0, 1, 0}, one)
	m.quad(mgl32.Vec3{x0, y0, z0}, mgl32.Vec3{x1, y0, z0}, mgl32.Vec3{x1, y0, z1}, mgl32.Vec3{x0, y0, z1}, mgl32.Vec3{0, -1, 0}, one)
	return m
}

// Transformed bakes t into a copy of the mesh. Normals go through the
// inverse transpose.
func (m MeshData) Transformed(t Transform) MeshData {
	o2w := t.ObjectToWorld()
	nm := t.NormalMatrix()
	out := MeshData{
		Vertices: make([]gpu.Vertex, len(m.Vertices)),
		Indices:  append([]uint32(nil), m.Indices...),
	}
	for i, v := range m.Vertices {
		v.Position = o2w.Mul4x1(v.Position.Vec4(1)).Vec3()
		if n := nm.Mul4x1(v.Normal.Vec4(0)).Vec3(); n.Len() > 0 {
			v.Normal = n.Normalize()
		}
		out.Vertices[i] = v
	}
	return out
}

// Bounds is the axis-aligned box around every vertex.
func (m MeshData) Bounds() [2]mgl32.Vec3 {
	if len(m.Vertices) == 0 {
		return [2]mgl32.Vec3{}
	}
	lo, hi := m.Vertices[0].Position, m.Vertices[0].Position
	for _, v := range m.Vertices[1:] {
		for k := 0; k < 3; k++ {
			lo[k] = min(lo[k], v.Position[k])
			hi[k] = max(hi[k], v.Position[k])
		}
	}
	return [2]mgl32.Vec3{lo, hi}
}
