package core

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

type Pattern int

const (
	PatternSolid Pattern = iota
	PatternChecker
	PatternStripes
)

// Material is the surface of a model. Its albedo and normal maps are
// generated at load time instead of read from disk.
type Material struct {
	BaseColor [4]uint8 // RGBA
	Accent    [4]uint8 // second color of the pattern
	Pattern   Pattern
	Tiles     int
	// Bump scales the height field the normal map is derived from; zero
	// gives a flat map.
	Bump float32
}

func NewMaterial(baseColor, accent [4]uint8, pattern Pattern) Material {
	return Material{
		BaseColor: baseColor,
		Accent:    accent,
		Pattern:   pattern,
		Tiles:     4,
		Bump:      0.5,
	}
}

// Helper for default white
func DefaultMaterial() Material {
	return Material{
		BaseColor: [4]uint8{255, 255, 255, 255},
		Accent:    [4]uint8{255, 255, 255, 255},
		Tiles:     1,
	}
}

// AlbedoMap returns size*size RGBA texels in [0,1], row-major.
func (m Material) AlbedoMap(size int) []float32 {
	out := make([]float32, size*size*4)
	tiles := max(m.Tiles, 1)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			c := m.BaseColor
			tx, ty := x*tiles/size, y*tiles/size
			switch m.Pattern {
			case PatternChecker:
				if (tx+ty)%2 == 1 {
					c = m.Accent
				}
			case PatternStripes:
				if tx%2 == 1 {
					c = m.Accent
				}
			}
			o := (y*size + x) * 4
			for k := 0; k < 4; k++ {
				out[o+k] = float32(c[k]) / 255
			}
		}
	}
	return out
}

// height is the bump field at texture coordinate (u, v).
func (m Material) height(u, v float32) float32 {
	f := 2 * math.Pi * float64(max(m.Tiles, 1))
	return m.Bump * float32(math.Sin(f*float64(u))*math.Sin(f*float64(v))) / float32(f)
}

// NormalMap returns size*size tangent-space normals encoded as n*0.5+0.5.
func (m Material) NormalMap(size int) []float32 {
	out := make([]float32, size*size*4)
	step := 1 / float32(size)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			u, v := (float32(x)+0.5)*step, (float32(y)+0.5)*step
			n := mgl32.Vec3{0, 0, 1}
			if m.Bump != 0 {
				du := (m.height(u+step, v) - m.height(u-step, v)) / (2 * step)
				dv := (m.height(u, v+step) - m.height(u, v-step)) / (2 * step)
				n = mgl32.Vec3{-du, -dv, 1}.Normalize()
			}
			o := (y*size + x) * 4
			out[o] = n[0]*0.5 + 0.5
			out[o+1] = n[1]*0.5 + 0.5
			out[o+2] = n[2]*0.5 + 0.5
			out[o+3] = 1
		}
	}
	return out
}
