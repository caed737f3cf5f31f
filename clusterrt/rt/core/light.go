package core

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/go-gl/mathgl/mgl32"
)

// Light is a point light. Radius is where its contribution falls to zero.
type Light struct {
	Position mgl32.Vec3
	Radius   float32
	Color    mgl32.Vec3
}

// LightFloats is the packed record size of a light: pos.xyz, radius, color.rgb, pad.
const LightFloats = 8

type LightConfig struct {
	Count  int        `yaml:"count"`
	Min    mgl32.Vec3 `yaml:"min"`
	Max    mgl32.Vec3 `yaml:"max"`
	Radius float32    `yaml:"radius"`
	DeltaY float32    `yaml:"delta_y"`
	Seed   uint64     `yaml:"seed"`
}

func DefaultLightConfig() LightConfig {
	return LightConfig{
		Count:  100,
		Min:    mgl32.Vec3{-14, 0, -6},
		Max:    mgl32.Vec3{14, 20, 6},
		Radius: 5,
		DeltaY: -0.03,
		Seed:   1,
	}
}

func (c LightConfig) Validate() error {
	if c.Count < 0 {
		return fmt.Errorf("lights: count %d must not be negative", c.Count)
	}
	if c.Radius <= 0 {
		return fmt.Errorf("lights: radius %v must be positive", c.Radius)
	}
	for k := 0; k < 3; k++ {
		if c.Max[k] < c.Min[k] {
			return fmt.Errorf("lights: bounds min %v exceed max %v", c.Min, c.Max)
		}
	}
	return nil
}

// LightSet owns the dynamic point lights. Lights are created once and only
// their height changes afterwards.
type LightSet struct {
	cfg    LightConfig
	lights []Light
}

func NewLightSet(cfg LightConfig) *LightSet {
	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))
	s := &LightSet{cfg: cfg, lights: make([]Light, cfg.Count)}
	for i := range s.lights {
		var pos mgl32.Vec3
		for k := 0; k < 3; k++ {
			pos[k] = cfg.Min[k] + rng.Float32()*(cfg.Max[k]-cfg.Min[k])
		}
		s.lights[i] = Light{
			Position: pos,
			Radius:   cfg.Radius,
			Color: mgl32.Vec3{
				0.5 + 0.5*rng.Float32(),
				0.5 + 0.5*rng.Float32(),
				0.5 + rng.Float32(),
			},
		}
	}
	return s
}

// Update moves every light by DeltaY and wraps it back into [Min.Y, Max.Y).
func (s *LightSet) Update() {
	lo, hi := s.cfg.Min.Y(), s.cfg.Max.Y()
	for i := range s.lights {
		s.lights[i].Position[1] = wrap(s.lights[i].Position[1]+s.cfg.DeltaY, lo, hi)
	}
}

func (s *LightSet) Lights() []Light { return s.lights }

func (s *LightSet) Len() int { return len(s.lights) }

// wrap maps v into [lo, hi) with a positive modulo.
func wrap(v, lo, hi float32) float32 {
	span := hi - lo
	if span <= 0 {
		return lo
	}
	m := float32(math.Mod(float64(v-lo), float64(span)))
	if m < 0 {
		m += span
	}
	if m >= span {
		m = 0
	}
	return lo + m
}
