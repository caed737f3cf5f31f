// Package cluster buckets point lights into a view-frustum aligned grid.
//
// Z is split into linear depth slices between the near and far planes. X and
// Y are split into equal steps of the frustum's tangent at distance one, so
// every X/Y boundary is a plane through the camera. A light is assigned to
// the box of cells its sphere overlaps on each axis independently; the box is
// a conservative superset of the exact sphere/cell overlap.
package cluster

import (
	"errors"
	"fmt"

	"github.com/gekko3d/clusterfog/clusterrt/rt/core"
	"github.com/gekko3d/clusterfog/clusterrt/rt/packed"

	"github.com/go-gl/mathgl/mgl32"
)

type Config struct {
	XSlices             int `yaml:"x_slices"`
	YSlices             int `yaml:"y_slices"`
	ZSlices             int `yaml:"z_slices"`
	MaxLightsPerCluster int `yaml:"max_lights_per_cluster"`
}

func DefaultConfig() Config {
	return Config{XSlices: 15, YSlices: 15, ZSlices: 15, MaxLightsPerCluster: 32}
}

func (c Config) Validate() error {
	if c.XSlices <= 0 || c.YSlices <= 0 || c.ZSlices <= 0 {
		return fmt.Errorf("cluster: slice counts must be positive, got %dx%dx%d", c.XSlices, c.YSlices, c.ZSlices)
	}
	if c.MaxLightsPerCluster <= 0 {
		return errors.New("cluster: max lights per cluster must be positive")
	}
	return nil
}

func (c Config) Count() int { return c.XSlices * c.YSlices * c.ZSlices }

// RecordFloats is the size of one packed cluster record: the count followed
// by up to MaxLightsPerCluster light indices.
func (c Config) RecordFloats() int { return c.MaxLightsPerCluster + 1 }

// Stats summarises one rebuild.
type Stats struct {
	Lights      int
	Culled      int // lights that touched no cell
	Assignments int
	Dropped     int // light/cell pairs rejected because the cell was full
}

// Grid is rebuilt from scratch every frame; nothing carries over.
type Grid struct {
	cfg    Config
	counts []int
	lights []int32
	buffer *packed.Buffer
	stats  Stats
}

func NewGrid(cfg Config) (Grid, error) {
	if err := cfg.Validate(); err != nil {
		return Grid{}, err
	}
	buf, err := packed.New(cfg.Count(), cfg.RecordFloats())
	if err != nil {
		return Grid{}, err
	}
	return Grid{
		cfg:    cfg,
		counts: make([]int, cfg.Count()),
		lights: make([]int32, cfg.Count()*cfg.MaxLightsPerCluster),
		buffer: buf,
	}, nil
}

func (g *Grid) Config() Config { return g.cfg }

func (g *Grid) Dims() (x, y, z int) { return g.cfg.XSlices, g.cfg.YSlices, g.cfg.ZSlices }

func (g *Grid) Buffer() *packed.Buffer { return g.buffer }

func (g *Grid) Stats() Stats { return g.stats }

// Index flattens a cell coordinate: x + y*X + z*X*Y.
func (g *Grid) Index(x, y, z int) int {
	return x + y*g.cfg.XSlices + z*g.cfg.XSlices*g.cfg.YSlices
}

func (g *Grid) Count(x, y, z int) int { return g.counts[g.Index(x, y, z)] }

// Lights returns the light indices stored in a cell, in insertion order.
func (g *Grid) Lights(x, y, z int) []int {
	c := g.Index(x, y, z)
	out := make([]int, g.counts[c])
	base := c * g.cfg.MaxLightsPerCluster
	for k := range out {
		out[k] = int(g.lights[base+k])
	}
	return out
}

// Rebuild reassigns every light and writes the result to the packed buffer.
//
// Two approximations are intentional and silent: a light whose sphere misses
// the frustum on any axis is skipped, and a light arriving at a full cell is
// dropped for that cell only.
func (g *Grid) Rebuild(cam *core.Camera, lights []core.Light) Stats {
	clear(g.counts)
	g.stats = Stats{Lights: len(lights)}

	halfX, halfY := cam.HalfExtents()
	for li, l := range lights {
		view := cam.ToView(l.Position)
		depth := -view.Z()
		bounds, ok := g.lightBounds(mgl32.Vec3{view.X(), view.Y(), depth}, l.Radius, cam.Near, cam.Far, halfX, halfY)
		if !ok {
			g.stats.Culled++
			continue
		}
		for z := bounds[2][0]; z < bounds[2][1]; z++ {
			for y := bounds[1][0]; y < bounds[1][1]; y++ {
				for x := bounds[0][0]; x < bounds[0][1]; x++ {
					g.add(g.Index(x, y, z), li)
				}
			}
		}
	}
	g.flush()
	return g.stats
}

func (g *Grid) add(cell, light int) {
	n := g.counts[cell]
	if n >= g.cfg.MaxLightsPerCluster {
		g.stats.Dropped++
		return
	}
	g.lights[cell*g.cfg.MaxLightsPerCluster+n] = int32(light)
	g.counts[cell] = n + 1
	g.stats.Assignments++
}

func (g *Grid) flush() {
	for c, n := range g.counts {
		g.buffer.Write(c, 0, float32(n))
		base := c * g.cfg.MaxLightsPerCluster
		for k := 0; k < n; k++ {
			g.buffer.Write(c, k+1, float32(g.lights[base+k]))
		}
	}
}

// lightBounds returns half-open [lo, hi) slice ranges for x, y and z.
// p is the light centre in view space with z negated (depth grows forward).
func (g *Grid) lightBounds(p mgl32.Vec3, radius, near, far, halfX, halfY float32) ([3][2]int, bool) {
	var b [3][2]int
	var ok bool

	stepZ := (far - near) / float32(g.cfg.ZSlices)
	b[2][0], b[2][1], ok = sliceRange(g.cfg.ZSlices, radius, func(k int) float32 {
		return p.Z() - (near + float32(k)*stepZ)
	})
	if !ok {
		return b, false
	}
	b[1][0], b[1][1], ok = sliceRange(g.cfg.YSlices, radius, angularDistance(p.Y(), p.Z(), halfY, g.cfg.YSlices))
	if !ok {
		return b, false
	}
	b[0][0], b[0][1], ok = sliceRange(g.cfg.XSlices, radius, angularDistance(p.X(), p.Z(), halfX, g.cfg.XSlices))
	if !ok {
		return b, false
	}
	return b, true
}

// angularDistance returns the signed distance from (u, depth) to boundary k
// of an axis split into n steps over [-half, half] at distance one. The
// boundary plane passes through the camera with normal normalize(1, -d);
// distances are positive on the side of larger u.
func angularDistance(u, depth, half float32, n int) func(k int) float32 {
	step := 2 * half / float32(n)
	return func(k int) float32 {
		d := -half + float32(k)*step
		cos, sin := planeNormal(d)
		return cos*u - sin*depth
	}
}

// planeNormal normalizes (1, d).
func planeNormal(d float32) (float32, float32) {
	v := mgl32.Vec2{1, d}.Normalize()
	return v[0], v[1]
}

// sliceRange scans the n slices of one axis. dist(k) is the signed distance
// of the light centre past boundary k, decreasing with k. Slice i is touched
// when the sphere reaches past boundary i and not entirely past boundary i+1.
func sliceRange(n int, radius float32, dist func(k int) float32) (lo, hi int, ok bool) {
	lo = n
	for i := 0; i < n; i++ {
		if dist(i+1) < radius {
			lo = i
			break
		}
	}
	if lo == n || dist(lo) < -radius {
		return 0, 0, false
	}
	hi = n
	for i := lo + 1; i < n; i++ {
		if dist(i) < -radius {
			hi = i
			break
		}
	}
	return lo, hi, true
}

// Slicing is the boundary set of one frame: grid dimensions plus the camera
// parameters the slices are derived from. Shading code carries it in its
// uniforms to find the cell of a pixel without the Grid itself.
type Slicing struct {
	X, Y, Z      int
	Near, Far    float32
	HalfX, HalfY float32
}

func (g *Grid) Slicing(cam *core.Camera) Slicing {
	halfX, halfY := cam.HalfExtents()
	return Slicing{
		X: g.cfg.XSlices, Y: g.cfg.YSlices, Z: g.cfg.ZSlices,
		Near: cam.Near, Far: cam.Far,
		HalfX: halfX, HalfY: halfY,
	}
}

// Cell returns the cell containing a view-space point (camera looking down
// -Z), or ok=false outside the frustum. Boundaries match Rebuild.
func (s Slicing) Cell(view mgl32.Vec3) (x, y, z int, ok bool) {
	depth := -view.Z()
	if depth < s.Near || depth >= s.Far {
		return 0, 0, 0, false
	}
	z = int((depth - s.Near) / (s.Far - s.Near) * float32(s.Z))
	fx := (view.X()/depth + s.HalfX) / (2 * s.HalfX) * float32(s.X)
	fy := (view.Y()/depth + s.HalfY) / (2 * s.HalfY) * float32(s.Y)
	if fx < 0 || fy < 0 {
		return 0, 0, 0, false
	}
	x, y = int(fx), int(fy)
	if x >= s.X || y >= s.Y || z >= s.Z {
		return 0, 0, 0, false
	}
	return x, y, z, true
}

// Index flattens a cell coordinate the same way Grid.Index does.
func (s Slicing) Index(x, y, z int) int {
	return x + y*s.X + z*s.X*s.Y
}

// CellOf is Slicing(cam).Cell(view).
func (g *Grid) CellOf(cam *core.Camera, view mgl32.Vec3) (x, y, z int, ok bool) {
	return g.Slicing(cam).Cell(view)
}
