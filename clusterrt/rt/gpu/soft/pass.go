package soft

import (
	"fmt"

	"github.com/gekko3d/clusterfog/clusterrt/rt/gpu"

	"github.com/go-gl/mathgl/mgl32"
)

type pass struct {
	dev   *Device
	fb    *framebuffer
	label string
	ended bool
}

// sampler resolves symbolic bindings through the program's slot table.
type sampler struct {
	prog     *program
	textures []*texture
}

func (s *sampler) tex(b gpu.Binding) *texture {
	slot, ok := s.prog.slots[b]
	if !ok {
		return nil
	}
	return s.textures[slot]
}

func (s *sampler) Sample(b gpu.Binding, uv mgl32.Vec2) mgl32.Vec4 {
	if t := s.tex(b); t != nil {
		return t.sample(uv)
	}
	return mgl32.Vec4{}
}

func (s *sampler) Sample3D(b gpu.Binding, uvw mgl32.Vec3) mgl32.Vec4 {
	if t := s.tex(b); t != nil {
		return t.sample3D(uvw)
	}
	return mgl32.Vec4{}
}

func (s *sampler) Fetch(b gpu.Binding, x, y int) mgl32.Vec4 {
	if t := s.tex(b); t != nil {
		return t.fetch(x, y)
	}
	return mgl32.Vec4{}
}

func (s *sampler) Size(b gpu.Binding) (int, int) {
	if t := s.tex(b); t != nil {
		return t.desc.Width, t.desc.Height
	}
	return 0, 0
}

// prepare validates the render context against the pass target.
func (p *pass) prepare(rc gpu.RenderContext) (*program, *sampler, error) {
	if p.ended {
		return nil, nil, fmt.Errorf("soft: pass %q already ended", p.label)
	}
	prog, ok := rc.Program.(*program)
	if !ok || !p.dev.owns(rc.Program) {
		return nil, nil, fmt.Errorf("%w: program in pass %q", gpu.ErrForeignResource, p.label)
	}
	if prog.desc.Outputs != len(p.fb.color) {
		return nil, nil, fmt.Errorf("soft: program %q writes %d outputs, target %q has %d", prog.label, prog.desc.Outputs, p.fb.label, len(p.fb.color))
	}
	bound, err := rc.Resolve()
	if err != nil {
		return nil, nil, err
	}
	s := &sampler{prog: prog, textures: make([]*texture, len(bound))}
	for i, t := range bound {
		tex, err := p.dev.texture(t)
		if err != nil {
			return nil, nil, err
		}
		for _, c := range p.fb.color {
			if c == tex {
				return nil, nil, fmt.Errorf("soft: pass %q samples its own target %q", p.label, tex.label)
			}
		}
		s.textures[i] = tex
	}
	return prog, s, nil
}

func (p *pass) Draw(rc gpu.RenderContext, m gpu.Mesh) error {
	prog, s, err := p.prepare(rc)
	if err != nil {
		return err
	}
	if prog.desc.Vertex == nil {
		return fmt.Errorf("%w: program %q has no vertex stage", gpu.ErrProgramLink, prog.label)
	}
	msh, ok := m.(*mesh)
	if !ok || !p.dev.owns(m) {
		return fmt.Errorf("%w: mesh in pass %q", gpu.ErrForeignResource, p.label)
	}

	clip := make([]clipVertex, len(msh.vertices))
	for i, v := range msh.vertices {
		pos, vary := prog.desc.Vertex(rc.Uniforms, v)
		clip[i] = clipVertex{pos: pos, vary: vary}
	}
	tris := setupTriangles(clip, msh.indices, p.fb.w, p.fb.h)
	if len(tris) == 0 {
		return nil
	}
	p.dev.bands(p.fb.h, func(y0, y1 int) {
		p.rasterBand(prog, s, rc.Uniforms, tris, y0, y1)
	})
	return nil
}

func (p *pass) DrawFullscreen(rc gpu.RenderContext) error {
	prog, s, err := p.prepare(rc)
	if err != nil {
		return err
	}
	w, h := p.fb.w, p.fb.h
	p.dev.bands(h, func(y0, y1 int) {
		var in gpu.Fragment
		var out gpu.Outputs
		for y := y0; y < y1; y++ {
			for x := 0; x < w; x++ {
				fx, fy := float32(x)+0.5, float32(y)+0.5
				in = gpu.Fragment{Coord: mgl32.Vec3{fx, fy, 0}}
				in.UV = mgl32.Vec2{fx / float32(w), fy / float32(h)}
				out = gpu.Outputs{}
				if !prog.desc.Fragment(rc.Uniforms, &in, s, &out) {
					continue
				}
				p.write(x, y, &out)
			}
		}
	})
	return nil
}

func (p *pass) write(x, y int, out *gpu.Outputs) {
	for i, c := range p.fb.color {
		c.store(x, y, out[i])
	}
}

func (p *pass) End() error {
	if p.ended {
		return fmt.Errorf("soft: pass %q ended twice", p.label)
	}
	p.ended = true
	return nil
}
