package soft

import (
	"math"

	"github.com/gekko3d/clusterfog/clusterrt/rt/gpu"

	"github.com/go-gl/mathgl/mgl32"
)

type clipVertex struct {
	pos  mgl32.Vec4
	vary gpu.Varyings
}

// screenVertex holds window coordinates and varyings pre-divided by w.
type screenVertex struct {
	x, y, z float32
	invW    float32
	vary    gpu.Varyings
}

type triangle struct {
	v      [3]screenVertex
	area   float32
	x0, x1 int
	y0, y1 int
}

const nearEpsilon = 1e-6

func lerpClip(a, b clipVertex, t float32) clipVertex {
	return clipVertex{
		pos:  a.pos.Add(b.pos.Sub(a.pos).Mul(t)),
		vary: gpu.Lerp3(&a.vary, &b.vary, &b.vary, 1-t, t, 0),
	}
}

// clipNear clips a triangle against the near plane z >= -w and returns the
// resulting polygon (0, 3 or 4 vertices).
func clipNear(tri [3]clipVertex, out []clipVertex) []clipVertex {
	out = out[:0]
	dist := func(v clipVertex) float32 { return v.pos[2] + v.pos[3] }
	for i := 0; i < 3; i++ {
		a, b := tri[i], tri[(i+1)%3]
		da, db := dist(a), dist(b)
		if da >= 0 {
			out = append(out, a)
		}
		if (da >= 0) != (db >= 0) {
			out = append(out, lerpClip(a, b, da/(da-db)))
		}
	}
	return out
}

func toScreen(v clipVertex, w, h int) (screenVertex, bool) {
	if v.pos[3] <= nearEpsilon {
		return screenVertex{}, false
	}
	inv := 1 / v.pos[3]
	return screenVertex{
		x:    (v.pos[0]*inv*0.5 + 0.5) * float32(w),
		y:    (0.5 - v.pos[1]*inv*0.5) * float32(h),
		z:    gpu.WindowDepth(v.pos[2] * inv),
		invW: inv,
		vary: gpu.Varyings{
			World:  v.vary.World.Mul(inv),
			Normal: v.vary.Normal.Mul(inv),
			UV:     v.vary.UV.Mul(inv),
		},
	}, true
}

func edge(ax, ay, bx, by, px, py float32) float32 {
	return (bx-ax)*(py-ay) - (by-ay)*(px-ax)
}

// setupTriangles clips, projects and bounds every triangle of an indexed mesh.
func setupTriangles(verts []clipVertex, indices []uint32, w, h int) []triangle {
	tris := make([]triangle, 0, len(indices)/3)
	poly := make([]clipVertex, 0, 4)
	for i := 0; i+2 < len(indices); i += 3 {
		in := [3]clipVertex{verts[indices[i]], verts[indices[i+1]], verts[indices[i+2]]}
		poly = clipNear(in, poly)
		if len(poly) < 3 {
			continue
		}
		var sv [4]screenVertex
		ok := true
		for k := range poly {
			if sv[k], ok = toScreen(poly[k], w, h); !ok {
				break
			}
		}
		if !ok {
			continue
		}
		for k := 1; k+1 < len(poly); k++ {
			t := triangle{v: [3]screenVertex{sv[0], sv[k], sv[k+1]}}
			a, b, c := &t.v[0], &t.v[1], &t.v[2]
			t.area = edge(a.x, a.y, b.x, b.y, c.x, c.y)
			if t.area == 0 {
				continue
			}
			minX := min(a.x, b.x, c.x)
			maxX := max(a.x, b.x, c.x)
			minY := min(a.y, b.y, c.y)
			maxY := max(a.y, b.y, c.y)
			t.x0 = max(int(math.Floor(float64(minX))), 0)
			t.x1 = min(int(math.Ceil(float64(maxX))), w)
			t.y0 = max(int(math.Floor(float64(minY))), 0)
			t.y1 = min(int(math.Ceil(float64(maxY))), h)
			if t.x0 >= t.x1 || t.y0 >= t.y1 {
				continue
			}
			tris = append(tris, t)
		}
	}
	return tris
}

// rasterBand shades every triangle's pixels inside rows [y0, y1).
func (p *pass) rasterBand(prog *program, s *sampler, uniforms any, tris []triangle, y0, y1 int) {
	depth := p.fb.depth
	var in gpu.Fragment
	var out gpu.Outputs
	for ti := range tris {
		t := &tris[ti]
		ya, yb := max(t.y0, y0), min(t.y1, y1)
		if ya >= yb {
			continue
		}
		a, b, c := &t.v[0], &t.v[1], &t.v[2]
		invArea := 1 / t.area
		for y := ya; y < yb; y++ {
			py := float32(y) + 0.5
			for x := t.x0; x < t.x1; x++ {
				px := float32(x) + 0.5
				w0 := edge(b.x, b.y, c.x, c.y, px, py) * invArea
				w1 := edge(c.x, c.y, a.x, a.y, px, py) * invArea
				w2 := edge(a.x, a.y, b.x, b.y, px, py) * invArea
				if w0 < 0 || w1 < 0 || w2 < 0 {
					continue
				}
				z := w0*a.z + w1*b.z + w2*c.z
				if z < 0 || z > 1 {
					continue
				}
				if depth != nil && z >= depth.data[depth.offset(x, y, 0)] {
					continue
				}
				iw := w0*a.invW + w1*b.invW + w2*c.invW
				if iw <= 0 {
					continue
				}
				vary := gpu.Lerp3(&a.vary, &b.vary, &c.vary, w0/iw, w1/iw, w2/iw)
				in = gpu.Fragment{Coord: mgl32.Vec3{px, py, z}, Varyings: vary}
				out = gpu.Outputs{}
				if !prog.desc.Fragment(uniforms, &in, s, &out) {
					continue
				}
				p.write(x, y, &out)
				if depth != nil {
					depth.data[depth.offset(x, y, 0)] = z
				}
			}
		}
	}
}
