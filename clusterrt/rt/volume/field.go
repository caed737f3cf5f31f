package volume

import (
	"errors"
	"fmt"
	"math"

	"github.com/gekko3d/clusterfog/clusterrt/rt/core"
	"github.com/gekko3d/clusterfog/clusterrt/rt/gpu"

	"github.com/go-gl/mathgl/mgl32"
)

// Config holds every fog tunable. Placement is the world box the unit
// lattice is stretched over.
type Config struct {
	Resolution    int          `yaml:"resolution"`
	Noise         NoiseKind    `yaml:"noise"`
	Heterogeneity float32      `yaml:"heterogeneity"`
	DensityScale  float32      `yaml:"density_scale"`
	Ambient       float32      `yaml:"ambient"`
	DriftSpeed    float32      `yaml:"drift_speed"`
	Downscale     int          `yaml:"downscale"`
	Position      mgl32.Vec3   `yaml:"position"`
	Scale         mgl32.Vec3   `yaml:"scale"`
	Integrator    Integrator   `yaml:"integrator"`
	Beacons       BeaconConfig `yaml:"beacons"`
}

func DefaultConfig() Config {
	return Config{
		Resolution:    64,
		Noise:         NoiseFBM,
		Heterogeneity: 1,
		DensityScale:  0.5,
		Ambient:       0.02,
		DriftSpeed:    0.05,
		Downscale:     2,
		Position:      mgl32.Vec3{0, 6, 0},
		Scale:         mgl32.Vec3{30, 14, 14},
		Integrator:    DefaultIntegrator(),
		Beacons:       DefaultBeaconConfig(),
	}
}

func (c Config) Validate() error {
	var errs []error
	if c.Resolution < 2 || c.Resolution > 256 {
		errs = append(errs, fmt.Errorf("volume: resolution %d outside [2, 256]", c.Resolution))
	}
	if _, err := ParseNoiseKind(string(c.Noise)); err != nil {
		errs = append(errs, err)
	}
	if c.Heterogeneity < 0 || c.Heterogeneity > 1 {
		errs = append(errs, fmt.Errorf("volume: heterogeneity %v outside [0, 1]", c.Heterogeneity))
	}
	if c.DensityScale < 0 || c.Ambient < 0 {
		errs = append(errs, errors.New("volume: density scale and ambient must not be negative"))
	}
	if c.Downscale < 1 {
		errs = append(errs, fmt.Errorf("volume: downscale %d must be at least 1", c.Downscale))
	}
	if c.Scale.X() <= 0 || c.Scale.Y() <= 0 || c.Scale.Z() <= 0 {
		errs = append(errs, fmt.Errorf("volume: scale %v must be positive", c.Scale))
	}
	errs = append(errs, c.Integrator.Validate())
	return errors.Join(errs...)
}

// Medium reports the scattering coefficient at a world-space point.
type Medium interface {
	Scattering(p mgl32.Vec3) float32
}

// Snapshot is the per-frame state shading needs to evaluate a field: the
// inverse placement, the drift offset and the density mapping.
type Snapshot struct {
	WorldToLocal mgl32.Mat4
	Drift        float32
	DensityScale float32
	Ambient      float32
}

// Local maps a world point into the unit box [-0.5, 0.5]^3.
func (s *Snapshot) Local(p mgl32.Vec3) mgl32.Vec3 {
	return s.WorldToLocal.Mul4x1(p.Vec4(1)).Vec3()
}

// lookup returns the lattice coordinate of a local point and whether the
// point is inside the box.
func (s *Snapshot) lookup(p mgl32.Vec3) (mgl32.Vec3, bool) {
	l := s.Local(p)
	for k := 0; k < 3; k++ {
		if l[k] < -0.5 || l[k] > 0.5 {
			return mgl32.Vec3{}, false
		}
	}
	uvw := l.Add(mgl32.Vec3{0.5, 0.5, 0.5})
	uvw[0] += s.Drift
	return uvw, true
}

// Intersect clips the ray origin + t*dir against the field box and returns
// the entry and exit parameters. tNear is negative when origin is inside.
func (s *Snapshot) Intersect(origin, dir mgl32.Vec3) (tNear, tFar float32, ok bool) {
	o := s.Local(origin)
	d := s.WorldToLocal.Mul4x1(dir.Vec4(0)).Vec3()
	tNear, tFar = float32(math.Inf(-1)), float32(math.Inf(1))
	for k := 0; k < 3; k++ {
		if d[k] == 0 {
			if o[k] < -0.5 || o[k] > 0.5 {
				return 0, 0, false
			}
			continue
		}
		t0 := (-0.5 - o[k]) / d[k]
		t1 := (0.5 - o[k]) / d[k]
		if t0 > t1 {
			t0, t1 = t1, t0
		}
		tNear = max(tNear, t0)
		tFar = min(tFar, t1)
	}
	if tNear > tFar || tFar < 0 {
		return 0, 0, false
	}
	return tNear, tFar, true
}

// Sampled evaluates a snapshot through the density texture bound to a draw.
type Sampled struct {
	*Snapshot
	Sampler gpu.Sampler
	Binding gpu.Binding
}

func (m Sampled) Scattering(p mgl32.Vec3) float32 {
	uvw, inside := m.lookup(p)
	if !inside {
		return m.Ambient
	}
	return m.Sampler.Sample3D(m.Binding, uvw).X() * m.DensityScale
}

// Field is the fog density lattice and its placement. The lattice is only
// regenerated when resolution, noise kind or heterogeneity change; placement
// and drift are cheap updates.
type Field struct {
	cfg       Config
	placement core.Transform
	data      []uint8
	drift     float32
	snap      Snapshot

	tex      gpu.Texture
	texRes   int
	uploaded bool
}

func NewField(cfg Config) *Field {
	f := &Field{cfg: cfg, placement: core.NewTransform()}
	f.placement.Position = cfg.Position
	f.placement.Scale = cfg.Scale
	f.generate()
	f.refresh()
	return f
}

func (f *Field) Config() Config { return f.cfg }

// Configure applies cfg and reports whether the lattice was regenerated.
func (f *Field) Configure(cfg Config) bool {
	regen := cfg.Resolution != f.cfg.Resolution || cfg.Noise != f.cfg.Noise || cfg.Heterogeneity != f.cfg.Heterogeneity
	f.cfg = cfg
	f.placement.Position = cfg.Position
	f.placement.Scale = cfg.Scale
	if regen {
		f.generate()
	}
	f.refresh()
	return regen
}

func (f *Field) Placement() core.Transform { return f.placement }

func (f *Field) SetPlacement(t core.Transform) {
	f.placement = t
	f.refresh()
}

// Advance moves the density along X by dt * DriftSpeed.
func (f *Field) Advance(dt float32) {
	f.drift += dt * f.cfg.DriftSpeed
	// keep the offset small; the lattice repeats every unit
	f.drift -= float32(math.Floor(float64(f.drift)))
	f.snap.Drift = f.drift
}

func (f *Field) Drift() float32 { return f.drift }

func (f *Field) Resolution() int { return f.cfg.Resolution }

// Snapshot returns the current placement for shading. It stays valid until
// the next Configure, SetPlacement or Advance.
func (f *Field) Snapshot() *Snapshot { return &f.snap }

func (f *Field) refresh() {
	f.snap = Snapshot{
		WorldToLocal: f.placement.WorldToObject(),
		Drift:        f.drift,
		DensityScale: f.cfg.DensityScale,
		Ambient:      f.cfg.Ambient,
	}
}

func (f *Field) index(i, j, k int) int {
	n := f.cfg.Resolution
	return (k*n+j)*n + i
}

func (f *Field) generate() {
	n := f.cfg.Resolution
	f.data = make([]uint8, n*n*n)
	h := f.cfg.Heterogeneity
	var cache lattice
	if f.cfg.Noise == NoiseFBM {
		cache = make(lattice)
	}
	for k := 0; k < n; k++ {
		for j := 0; j < n; j++ {
			for i := 0; i < n; i++ {
				var v float32 = 1
				switch f.cfg.Noise {
				case NoiseRandom:
					v = Hash3(mgl32.Vec3{float32(i), float32(j), float32(k)})
				case NoiseFBM:
					v = cache.fbm(mgl32.Vec3{
						(float32(i) + 0.5) / float32(n),
						(float32(j) + 0.5) / float32(n),
						(float32(k) + 0.5) / float32(n),
					})
				}
				v = mgl32.Clamp((1-h)+h*v, 0, 1)
				f.data[f.index(i, j, k)] = uint8(math.Round(float64(v) * 255))
			}
		}
	}
	f.uploaded = false
}

// Density returns the normalized lattice value at voxel (i, j, k).
func (f *Field) Density(i, j, k int) float32 {
	return float32(f.data[f.index(i, j, k)]) / 255
}

// Lookup filters the lattice trilinearly at texel-centred coordinates,
// repeating outside [0,1). It matches a linear, repeating 3D texture.
func (f *Field) Lookup(uvw mgl32.Vec3) float32 {
	n := f.cfg.Resolution
	var i0, i1 [3]int
	var t [3]float32
	for a := 0; a < 3; a++ {
		u := uvw[a] - float32(math.Floor(float64(uvw[a])))
		x := u*float32(n) - 0.5
		fl := float32(math.Floor(float64(x)))
		i0[a] = wrapIndex(int(fl), n)
		i1[a] = wrapIndex(int(fl)+1, n)
		t[a] = x - fl
	}
	d := func(i, j, k int) float32 { return f.Density(i, j, k) }
	lerp := func(a, b, w float32) float32 { return a + (b-a)*w }
	c00 := lerp(d(i0[0], i0[1], i0[2]), d(i1[0], i0[1], i0[2]), t[0])
	c10 := lerp(d(i0[0], i1[1], i0[2]), d(i1[0], i1[1], i0[2]), t[0])
	c01 := lerp(d(i0[0], i0[1], i1[2]), d(i1[0], i0[1], i1[2]), t[0])
	c11 := lerp(d(i0[0], i1[1], i1[2]), d(i1[0], i1[1], i1[2]), t[0])
	return lerp(lerp(c00, c10, t[1]), lerp(c01, c11, t[1]), t[2])
}

func wrapIndex(i, n int) int {
	i %= n
	if i < 0 {
		i += n
	}
	return i
}

// Scattering evaluates the field on the CPU lattice.
func (f *Field) Scattering(p mgl32.Vec3) float32 {
	uvw, inside := f.snap.lookup(p)
	if !inside {
		return f.snap.Ambient
	}
	return f.Lookup(uvw) * f.snap.DensityScale
}

func (f *Field) Intersect(origin, dir mgl32.Vec3) (tNear, tFar float32, ok bool) {
	return f.snap.Intersect(origin, dir)
}

// Upload creates the R8 density texture on first use or after a resolution
// change, and rewrites it whenever the lattice was regenerated.
func (f *Field) Upload(dev gpu.Device) error {
	n := f.cfg.Resolution
	if f.tex == nil || f.texRes != n {
		if f.tex != nil {
			dev.Release(f.tex)
		}
		tex, err := dev.CreateTexture(gpu.TextureDesc{
			Label:  "volume_density",
			Width:  n,
			Height: n,
			Depth:  n,
			Format: gpu.FormatR8,
			Filter: gpu.FilterLinear,
			Wrap:   gpu.WrapRepeat,
		})
		if err != nil {
			return fmt.Errorf("volume: create density texture: %w", err)
		}
		f.tex, f.texRes, f.uploaded = tex, n, false
	}
	if f.uploaded {
		return nil
	}
	pix := make([]float32, len(f.data))
	for i, b := range f.data {
		pix[i] = float32(b) / 255
	}
	if err := dev.WriteTexture(f.tex, pix); err != nil {
		return fmt.Errorf("volume: upload density: %w", err)
	}
	f.uploaded = true
	return nil
}

func (f *Field) Texture() gpu.Texture { return f.tex }

func (f *Field) Release(dev gpu.Device) {
	if f.tex != nil {
		dev.Release(f.tex)
	}
	f.tex, f.texRes, f.uploaded = nil, 0, false
}
