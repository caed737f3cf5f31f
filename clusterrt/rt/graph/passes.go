package graph

import (
	"errors"
	"fmt"

	"github.com/gekko3d/clusterfog/clusterrt/rt/gpu"
	"github.com/gekko3d/clusterfog/clusterrt/rt/shading"
	"github.com/gekko3d/clusterfog/clusterrt/rt/shadow"

	"github.com/go-gl/mathgl/mgl32"
)

var errNoScene = errors.New("graph: frame has no scene")

// base carries the name, target lists and program shared by every pass.
type base struct {
	name   string
	reads  []string
	writes []string
	prog   gpu.Program
}

func (b *base) Name() string     { return b.name }
func (b *base) Reads() []string  { return b.reads }
func (b *base) Writes() []string { return b.writes }

func (b *base) Program() gpu.Program { return b.prog }

func newBase(dev gpu.Device, desc gpu.ProgramDesc, name string, reads, writes []string) (base, error) {
	prog, err := dev.CreateProgram(desc)
	if err != nil {
		return base{}, fmt.Errorf("graph: pass %q: %w", name, err)
	}
	return base{name: name, reads: reads, writes: writes, prog: prog}, nil
}

// begin opens a render pass on the single target this pass writes.
func (b *base) begin(f *Frame, clear []gpu.ClearColor) (gpu.Pass, error) {
	t := f.Target(b.writes[0])
	if t == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTarget, b.writes[0])
	}
	return f.dev.BeginPass(gpu.PassDesc{Label: b.name, Target: t.Framebuffer, ClearColors: clear})
}

func (b *base) drawScene(f *Frame, scene Drawer, rc gpu.RenderContext, clear []gpu.ClearColor) error {
	if scene == nil {
		return errNoScene
	}
	pass, err := b.begin(f, clear)
	if err != nil {
		return err
	}
	if err := scene.Draw(pass, rc); err != nil {
		pass.End()
		return err
	}
	return pass.End()
}

func (b *base) fullscreen(f *Frame, rc gpu.RenderContext) error {
	pass, err := b.begin(f, nil)
	if err != nil {
		return err
	}
	if err := pass.DrawFullscreen(rc); err != nil {
		pass.End()
		return err
	}
	return pass.End()
}

func color(f *Frame, target string, i int) gpu.Texture {
	if t := f.Target(target); t != nil && i < len(t.Color) {
		return t.Color[i]
	}
	return nil
}

// ShadowPass renders scene depth from the sun into the shadow target.
type ShadowPass struct {
	base
	mapper *shadow.Mapper
}

func NewShadowPass(dev gpu.Device, m *shadow.Mapper) (*ShadowPass, error) {
	b, err := newBase(dev, m.Program(), "shadow", nil, []string{TargetShadow})
	if err != nil {
		return nil, err
	}
	return &ShadowPass{base: b, mapper: m}, nil
}

func (p *ShadowPass) Execute(f *Frame) error {
	p.mapper.Update()
	rc := gpu.NewRenderContext(p.prog, p.mapper)
	casters := f.Casters
	if casters == nil {
		casters = f.Scene
	}
	return p.drawScene(f, casters, rc, clearTo(1, mgl32.Vec4{1, 1, 1, 1}))
}

// GeometryPass fills the G-buffer. Background pixels keep position w = 0.
type GeometryPass struct{ base }

func NewGeometryPass(dev gpu.Device) (*GeometryPass, error) {
	b, err := newBase(dev, shading.Geometry(), "geometry", nil, []string{TargetGBuffer})
	if err != nil {
		return nil, err
	}
	return &GeometryPass{b}, nil
}

func (p *GeometryPass) Execute(f *Frame) error {
	rc := gpu.NewRenderContext(p.prog, f.Uniforms)
	return p.drawScene(f, f.Scene, rc, nil)
}

// VolumePass integrates the fog along every view ray of the downscaled
// volume target.
type VolumePass struct{ base }

func NewVolumePass(dev gpu.Device) (*VolumePass, error) {
	b, err := newBase(dev, shading.Volume(), "volume", []string{TargetShadow, TargetGBuffer}, []string{TargetVolume})
	if err != nil {
		return nil, err
	}
	return &VolumePass{b}, nil
}

func (p *VolumePass) Execute(f *Frame) error {
	if f.Uniforms == nil || f.Uniforms.Volume == nil || f.Uniforms.Integrator == nil {
		return errors.New("graph: volume pass needs a volume snapshot and integrator")
	}
	rc := gpu.NewRenderContext(p.prog, f.Uniforms).
		With(gpu.BindGBufferPosition, color(f, TargetGBuffer, 0)).
		With(gpu.BindVolumeDensity, f.Density).
		With(gpu.BindLightBuffer, f.Lights).
		With(gpu.BindClusterBuffer, f.Clusters).
		With(gpu.BindShadowMap, color(f, TargetShadow, 0))
	return p.fullscreen(f, rc)
}

// ShadingPass resolves the G-buffer into the HDR target.
type ShadingPass struct{ base }

func NewShadingPass(dev gpu.Device) (*ShadingPass, error) {
	b, err := newBase(dev, shading.Deferred(), "shading",
		[]string{TargetShadow, TargetGBuffer, TargetVolume}, []string{TargetHDR})
	if err != nil {
		return nil, err
	}
	return &ShadingPass{b}, nil
}

func (p *ShadingPass) Execute(f *Frame) error {
	rc := gpu.NewRenderContext(p.prog, f.Uniforms).
		With(gpu.BindGBufferPosition, color(f, TargetGBuffer, 0)).
		With(gpu.BindGBufferAlbedo, color(f, TargetGBuffer, 1)).
		With(gpu.BindGBufferNormal, color(f, TargetGBuffer, 2)).
		With(gpu.BindLightBuffer, f.Lights).
		With(gpu.BindClusterBuffer, f.Clusters).
		With(gpu.BindShadowMap, color(f, TargetShadow, 0)).
		With(gpu.BindVolumePass, color(f, TargetVolume, 0))
	return p.fullscreen(f, rc)
}

// ForwardPass shades the scene straight into the HDR target, either
// looping over every light or through the cluster buffer.
type ForwardPass struct {
	base
	clustered bool
}

func NewForwardPass(dev gpu.Device, clustered bool) (*ForwardPass, error) {
	desc := shading.Forward(clustered)
	b, err := newBase(dev, desc, desc.Label, []string{TargetShadow}, []string{TargetHDR})
	if err != nil {
		return nil, err
	}
	return &ForwardPass{base: b, clustered: clustered}, nil
}

func (p *ForwardPass) Execute(f *Frame) error {
	rc := gpu.NewRenderContext(p.prog, f.Uniforms).
		With(gpu.BindLightBuffer, f.Lights).
		With(gpu.BindShadowMap, color(f, TargetShadow, 0))
	if p.clustered {
		rc = rc.With(gpu.BindClusterBuffer, f.Clusters)
	}
	return p.drawScene(f, f.Scene, rc, nil)
}

// TonemapPass encodes the HDR target into the display target.
type TonemapPass struct{ base }

func NewTonemapPass(dev gpu.Device) (*TonemapPass, error) {
	b, err := newBase(dev, shading.ToneMapProgram(), "tonemap", []string{TargetHDR}, []string{TargetDisplay})
	if err != nil {
		return nil, err
	}
	return &TonemapPass{b}, nil
}

func (p *TonemapPass) Execute(f *Frame) error {
	rc := gpu.NewRenderContext(p.prog, f.Uniforms).With(gpu.BindHDR, color(f, TargetHDR, 0))
	return p.fullscreen(f, rc)
}
