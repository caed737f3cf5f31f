package gpu

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

type Vertex struct {
	Position mgl32.Vec3
	Normal   mgl32.Vec3
	UV       mgl32.Vec2
}

// Varyings are interpolated across a triangle (perspective correct).
type Varyings struct {
	World  mgl32.Vec3
	Normal mgl32.Vec3
	UV     mgl32.Vec2
}

// Lerp3 returns the barycentric combination of three varyings.
func Lerp3(a, b, c *Varyings, wa, wb, wc float32) Varyings {
	return Varyings{
		World:  a.World.Mul(wa).Add(b.World.Mul(wb)).Add(c.World.Mul(wc)),
		Normal: a.Normal.Mul(wa).Add(b.Normal.Mul(wb)).Add(c.Normal.Mul(wc)),
		UV:     a.UV.Mul(wa).Add(b.UV.Mul(wb)).Add(c.UV.Mul(wc)),
	}
}

// Fragment is the input of a fragment function. Coord holds the pixel
// centre in window coordinates (origin top-left) and the window depth in
// [0,1]. For fullscreen draws Varyings.UV is the screen UV.
type Fragment struct {
	Coord mgl32.Vec3
	Varyings
}

// Sampler gives fragment functions access to the textures bound for a draw.
type Sampler interface {
	// Sample filters according to the texture's filter and wrap modes.
	// UV (0,0) is the first texel row.
	Sample(b Binding, uv mgl32.Vec2) mgl32.Vec4
	Sample3D(b Binding, uvw mgl32.Vec3) mgl32.Vec4
	// Fetch reads a single texel without filtering. Out-of-range reads return zero.
	Fetch(b Binding, x, y int) mgl32.Vec4
	Size(b Binding) (width, height int)
}

// Outputs receives one color per framebuffer attachment.
type Outputs [MaxColorAttachments]mgl32.Vec4

// VertexFunc transforms a vertex to clip space.
type VertexFunc func(uniforms any, v Vertex) (mgl32.Vec4, Varyings)

// FragmentFunc shades a fragment; returning false discards it.
type FragmentFunc func(uniforms any, in *Fragment, tex Sampler, out *Outputs) bool

type ProgramDesc struct {
	Label    string
	Vertex   VertexFunc // optional for fullscreen-only programs
	Fragment FragmentFunc
	Bindings []Binding
	Outputs  int
}

// Link validates the description and resolves its binding table, in the
// declared order. Failures wrap ErrProgramLink.
func (d ProgramDesc) Link() (map[Binding]int, error) {
	if d.Fragment == nil {
		return nil, fmt.Errorf("%w: %q has no fragment stage", ErrProgramLink, d.Label)
	}
	if d.Outputs < 0 || d.Outputs > MaxColorAttachments {
		return nil, fmt.Errorf("%w: %q declares %d outputs", ErrProgramLink, d.Label, d.Outputs)
	}
	slots := make(map[Binding]int, len(d.Bindings))
	for i, b := range d.Bindings {
		if !b.Valid() {
			return nil, fmt.Errorf("%w: %q uses unknown %s", ErrProgramLink, d.Label, b)
		}
		if _, dup := slots[b]; dup {
			return nil, fmt.Errorf("%w: %q binds %s twice", ErrProgramLink, d.Label, b)
		}
		slots[b] = i
	}
	return slots, nil
}
