package volume

import (
	"fmt"
	"math"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
)

// NoiseKind selects how the density lattice is generated.
type NoiseKind string

const (
	NoiseConstant NoiseKind = "constant"
	NoiseRandom   NoiseKind = "random"
	NoiseFBM      NoiseKind = "fbm"
)

func ParseNoiseKind(s string) (NoiseKind, error) {
	switch k := NoiseKind(strings.ToLower(strings.TrimSpace(s))); k {
	case NoiseConstant, NoiseRandom, NoiseFBM:
		return k, nil
	case "":
		return NoiseFBM, nil
	case "homogeneous":
		return NoiseConstant, nil
	case "random3d":
		return NoiseRandom, nil
	case "fbm3d":
		return NoiseFBM, nil
	}
	return "", fmt.Errorf("volume: unknown noise kind %q", s)
}

const (
	fbmOctaves = 4
	fbmBase    = 4.0
	// upper bound of the smoothed lattice (1.75) times the octave amplitude sum (1.875)
	fbmMax = 1.75 * 1.875
)

// Hash3 is a deterministic pseudo-random value in [0,1) for a point.
func Hash3(p mgl32.Vec3) float32 {
	d := float64(p.X())*12.9898 + float64(p.Y())*78.233 + float64(p.Z())*138.531
	v := math.Sin(d) * 43758.5453
	return float32(v - math.Floor(v))
}

// lattice memoizes smoothed lattice values. Generating a field evaluates
// the same integer points many times; a nil lattice computes every call.
type lattice map[[3]float32]float32

// smooth blends a lattice point with its 26 neighbours; corners weigh 1/32,
// edges 1/16, faces 1/12 and the centre 1/4.
func (l lattice) smooth(x, y, z float32) float32 {
	key := [3]float32{x, y, z}
	if v, ok := l[key]; ok {
		return v
	}
	var n float32
	for i := float32(-1); i <= 1; i++ {
		for j := float32(-1); j <= 1; j++ {
			for k := float32(-1); k <= 1; k++ {
				var div float32
				switch abs(i) + abs(j) + abs(k) {
				case 3:
					div = 32
				case 2:
					div = 16
				case 1:
					div = 12
				default:
					div = 4
				}
				n += Hash3(mgl32.Vec3{x + i, y + j, z + k}) / div
			}
		}
	}
	if l != nil {
		l[key] = n
	}
	return n
}

func cosineLerp(a, b, f float32) float32 {
	f = (1 - float32(math.Cos(float64(f)*math.Pi))) * 0.5
	return a*(1-f) + b*f
}

func (l lattice) valueNoise(x, y, z float32) float32 {
	ix := float32(math.Floor(float64(x)))
	iy := float32(math.Floor(float64(y)))
	iz := float32(math.Floor(float64(z)))
	fx, fy, fz := x-ix, y-iy, z-iz

	v1 := l.smooth(ix, iy, iz)
	v2 := l.smooth(ix, iy+1, iz)
	v3 := l.smooth(ix, iy, iz+1)
	v4 := l.smooth(ix, iy+1, iz+1)
	v5 := l.smooth(ix+1, iy, iz)
	v6 := l.smooth(ix+1, iy+1, iz)
	v7 := l.smooth(ix+1, iy, iz+1)
	v8 := l.smooth(ix+1, iy+1, iz+1)

	i1 := cosineLerp(v1, v2, fy)
	i2 := cosineLerp(v3, v4, fy)
	i3 := cosineLerp(v5, v6, fy)
	i4 := cosineLerp(v7, v8, fy)
	return cosineLerp(cosineLerp(i1, i2, fz), cosineLerp(i3, i4, fz), fx)
}

// FBM is 4 octaves of cosine-interpolated value noise normalized to [0,1].
func FBM(p mgl32.Vec3) float32 { return lattice(nil).fbm(p) }

func (l lattice) fbm(p mgl32.Vec3) float32 {
	var total float32
	freq, amp := float32(fbmBase), float32(1)
	for o := 0; o < fbmOctaves; o++ {
		total += l.valueNoise(p.X()*freq, p.Y()*freq, p.Z()*freq) * amp
		freq *= 2
		amp *= 0.5
	}
	return mgl32.Clamp(total/fbmMax, 0, 1)
}

func abs(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
