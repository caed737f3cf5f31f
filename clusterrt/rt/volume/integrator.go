package volume

import (
	"errors"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

const isotropicPhase = 1 / (4 * math.Pi)

// Integrator marches a segment through a medium accumulating single
// scattering. The medium's absorption is uniform; scattering comes from
// the medium.
type Integrator struct {
	Steps      int     `yaml:"steps"`
	Absorption float32 `yaml:"absorption"`
	// Epsilon floors the extinction used as a divisor.
	Epsilon float32 `yaml:"epsilon"`

	// ShadowMap gates the sun at every sample with the shadow map.
	ShadowMap bool `yaml:"shadow_map"`

	SelfShadow       bool    `yaml:"self_shadow"`
	ShadowSteps      int     `yaml:"shadow_steps"`
	ShadowAbsorption float32 `yaml:"shadow_absorption"`
}

func DefaultIntegrator() Integrator {
	return Integrator{
		Steps:            100,
		Absorption:       0.006,
		Epsilon:          1e-7,
		ShadowMap:        true,
		ShadowSteps:      16,
		ShadowAbsorption: 0.05,
	}
}

func (in Integrator) Validate() error {
	if in.Steps <= 0 {
		return errors.New("volume: integrator steps must be positive")
	}
	if in.Absorption < 0 || in.ShadowAbsorption < 0 {
		return errors.New("volume: absorption must not be negative")
	}
	if in.Epsilon <= 0 {
		return errors.New("volume: integrator epsilon must be positive")
	}
	if in.SelfShadow && in.ShadowSteps <= 0 {
		return errors.New("volume: self shadowing needs positive shadow steps")
	}
	return nil
}

// Radiance is the light arriving at a point inside the medium.
type Radiance interface {
	Incident(p mgl32.Vec3) mgl32.Vec3
}

// RadianceFunc adapts a function to Radiance.
type RadianceFunc func(p mgl32.Vec3) mgl32.Vec3

func (f RadianceFunc) Incident(p mgl32.Vec3) mgl32.Vec3 { return f(p) }

type Result struct {
	Scattered     mgl32.Vec3
	Transmittance float32
}

// March integrates from origin to end in Steps equal steps, sampling each
// step at its midpoint. Transmittance never increases along the march.
func (in *Integrator) March(origin, end mgl32.Vec3, medium Medium, li Radiance) Result {
	res := Result{Transmittance: 1}
	seg := end.Sub(origin)
	length := seg.Len()
	if length <= 0 || in.Steps <= 0 {
		return res
	}
	d := length / float32(in.Steps)
	for s := 0; s < in.Steps; s++ {
		p := origin.Add(seg.Mul((float32(s) + 0.5) / float32(in.Steps)))
		muS := medium.Scattering(p)
		muE := muS + in.Absorption
		expE := float32(math.Exp(float64(-muE * d)))
		if muS > 0 {
			scat := li.Incident(p).Mul(muS * isotropicPhase)
			integ := scat.Sub(scat.Mul(expE)).Mul(1 / max(muE, in.Epsilon))
			res.Scattered = res.Scattered.Add(integ.Mul(res.Transmittance))
		}
		res.Transmittance *= expE
	}
	return res
}

// Transmittance is the fraction of light surviving from one point to
// another, using ShadowAbsorption on top of the medium's scattering.
func (in *Integrator) Transmittance(from, to mgl32.Vec3, medium Medium, steps int) float32 {
	seg := to.Sub(from)
	length := seg.Len()
	if length <= 0 || steps <= 0 {
		return 1
	}
	d := length / float32(steps)
	var optical float32
	for s := 0; s < steps; s++ {
		p := from.Add(seg.Mul((float32(s) + 0.5) / float32(steps)))
		optical += max(medium.Scattering(p)+in.ShadowAbsorption, in.Epsilon) * d
	}
	return float32(math.Exp(float64(-optical)))
}

// PointSource is an unbounded point light with inverse-square falloff.
type PointSource struct {
	Position mgl32.Vec3
	Color    mgl32.Vec3
}

// DirectionalSource is a light at infinity with constant radiance.
// Visibility gates it per sample, typically with a shadow map lookup; nil
// means unoccluded.
type DirectionalSource struct {
	Color      mgl32.Vec3
	Visibility func(p mgl32.Vec3) float32
}

// PointLookup calls visit for every point light that can reach p, such as
// the lights listed in p's cluster.
type PointLookup func(p mgl32.Vec3, visit func(PointSource))

// Sources sums the light arriving at a sample: fixed point sources, point
// sources found through Lookup and an optional sun. Point sources are
// attenuated by the medium between them and the sample when Shadow is set.
type Sources struct {
	Points []PointSource
	Lookup PointLookup
	Sun    *DirectionalSource
	// Shadow is the medium to self-shadow through; nil disables it.
	Shadow     Medium
	Integrator *Integrator
}

// Sources returns the light set for a march, self-shadowed through
// medium when SelfShadow is on.
func (in *Integrator) Sources(points []PointSource, medium Medium) *Sources {
	s := &Sources{Points: points, Integrator: in}
	if in.SelfShadow {
		s.Shadow = medium
	}
	return s
}

func (s *Sources) Incident(p mgl32.Vec3) mgl32.Vec3 {
	var sum mgl32.Vec3
	for _, src := range s.Points {
		sum = sum.Add(s.point(p, src))
	}
	if s.Lookup != nil {
		s.Lookup(p, func(src PointSource) {
			sum = sum.Add(s.point(p, src))
		})
	}
	if s.Sun != nil {
		vis := float32(1)
		if s.Sun.Visibility != nil {
			vis = s.Sun.Visibility(p)
		}
		sum = sum.Add(s.Sun.Color.Mul(vis))
	}
	return sum
}

func (s *Sources) point(p mgl32.Vec3, src PointSource) mgl32.Vec3 {
	l := src.Position.Sub(p)
	d2 := max(l.Dot(l), s.Integrator.Epsilon)
	li := src.Color.Mul(1 / d2)
	if s.Shadow != nil {
		li = li.Mul(s.Integrator.Transmittance(p, src.Position, s.Shadow, s.Integrator.ShadowSteps))
	}
	return li
}

// BeaconConfig places the two animated fog lights: a key light bobbing
// above the scene and a user light sweeping along X.
type BeaconConfig struct {
	KeyHeight     float32    `yaml:"key_height"`
	KeyAmplitude  float32    `yaml:"key_amplitude"`
	KeyColor      mgl32.Vec3 `yaml:"key_color"`
	KeyIntensity  float32    `yaml:"key_intensity"`
	UserAmplitude float32    `yaml:"user_amplitude"`
	UserColor     mgl32.Vec3 `yaml:"user_color"`
	UserIntensity float32    `yaml:"user_intensity"`
}

func DefaultBeaconConfig() BeaconConfig {
	return BeaconConfig{
		KeyHeight:     8,
		KeyAmplitude:  2,
		KeyColor:      mgl32.Vec3{0, 0, 1},
		KeyIntensity:  1000,
		UserAmplitude: 2,
		UserColor:     mgl32.Vec3{0, 128.0 / 255, 1},
		UserIntensity: 1,
	}
}

// At returns both beacons at time t in seconds.
func (c BeaconConfig) At(t float32) []PointSource {
	wave := float32(math.Sin(float64(t) * 0.5))
	return []PointSource{
		{Position: mgl32.Vec3{0, c.KeyHeight + c.KeyAmplitude*wave, 0}, Color: c.KeyColor.Mul(c.KeyIntensity)},
		{Position: mgl32.Vec3{c.UserAmplitude * wave, 0, 0}, Color: c.UserColor.Mul(c.UserIntensity)},
	}
}
