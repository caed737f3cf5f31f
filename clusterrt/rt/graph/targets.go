package graph

import (
	"fmt"

	"github.com/gekko3d/clusterfog/clusterrt/rt/gpu"
)

const (
	TargetShadow  = "shadow"
	TargetGBuffer = "gbuffer"
	TargetVolume  = "volume"
	TargetHDR     = "hdr"
	TargetDisplay = "display"
)

// TargetSpec declares the attachments of a target and its size rule. A
// target with a non-zero Fixed size never follows the output; otherwise it
// is the output size divided by Downscale.
type TargetSpec struct {
	Name      string
	Color     []gpu.Format
	Depth     bool
	Filter    gpu.Filter
	Fixed     [2]int
	Downscale int
}

// Relative reports whether the target follows the output size.
func (s TargetSpec) Relative() bool { return s.Fixed[0] == 0 && s.Fixed[1] == 0 }

// SizeFor is the target size for an output of w x h pixels.
func (s TargetSpec) SizeFor(w, h int) (int, int) {
	if !s.Relative() {
		return s.Fixed[0], s.Fixed[1]
	}
	d := max(s.Downscale, 1)
	return max(w/d, 1), max(h/d, 1)
}

func ShadowTarget(resolution int) TargetSpec {
	return TargetSpec{
		Name:   TargetShadow,
		Color:  []gpu.Format{gpu.FormatRGBA32F},
		Depth:  true,
		Filter: gpu.FilterNearest,
		Fixed:  [2]int{resolution, resolution},
	}
}

// GBufferTarget holds world position (w = 1 on geometry), albedo and normal.
func GBufferTarget() TargetSpec {
	return TargetSpec{
		Name:   TargetGBuffer,
		Color:  []gpu.Format{gpu.FormatRGBA32F, gpu.FormatRGBA32F, gpu.FormatRGBA32F},
		Depth:  true,
		Filter: gpu.FilterNearest,
	}
}

// VolumeTarget is sampled bilinearly by the shading pass, which upsamples
// it back to the output size.
func VolumeTarget(downscale int) TargetSpec {
	return TargetSpec{
		Name:      TargetVolume,
		Color:     []gpu.Format{gpu.FormatRGBA16F},
		Filter:    gpu.FilterLinear,
		Downscale: downscale,
	}
}

func HDRTarget() TargetSpec {
	return TargetSpec{
		Name:   TargetHDR,
		Color:  []gpu.Format{gpu.FormatRGBA16F},
		Depth:  true,
		Filter: gpu.FilterNearest,
	}
}

func DisplayTarget() TargetSpec {
	return TargetSpec{
		Name:   TargetDisplay,
		Color:  []gpu.Format{gpu.FormatRGBA8},
		Filter: gpu.FilterNearest,
	}
}

// Target is an allocated TargetSpec.
type Target struct {
	Spec        TargetSpec
	Color       []gpu.Texture
	Depth       gpu.Texture
	Framebuffer gpu.Framebuffer
}

func (t *Target) Size() (int, int) { return t.Framebuffer.Size() }

func allocate(dev gpu.Device, s TargetSpec, w, h int) (*Target, error) {
	tw, th := s.SizeFor(w, h)
	t := &Target{Spec: s}
	for i, f := range s.Color {
		tex, err := dev.CreateTexture(gpu.TextureDesc{
			Label:  fmt.Sprintf("%s_color%d", s.Name, i),
			Width:  tw,
			Height: th,
			Format: f,
			Filter: s.Filter,
			Wrap:   gpu.WrapClamp,
		})
		if err != nil {
			t.release(dev)
			return nil, fmt.Errorf("graph: target %q: %w", s.Name, err)
		}
		t.Color = append(t.Color, tex)
	}
	if s.Depth {
		tex, err := dev.CreateTexture(gpu.TextureDesc{
			Label:  s.Name + "_depth",
			Width:  tw,
			Height: th,
			Format: gpu.FormatDepth32F,
		})
		if err != nil {
			t.release(dev)
			return nil, fmt.Errorf("graph: target %q: %w", s.Name, err)
		}
		t.Depth = tex
	}
	fb, err := dev.CreateFramebuffer(gpu.FramebufferDesc{Label: s.Name, Color: t.Color, Depth: t.Depth})
	if err != nil {
		t.release(dev)
		return nil, fmt.Errorf("graph: target %q: %w", s.Name, err)
	}
	t.Framebuffer = fb
	return t, nil
}

func (t *Target) release(dev gpu.Device) {
	for _, c := range t.Color {
		dev.Release(c)
	}
	if t.Depth != nil {
		dev.Release(t.Depth)
	}
	if t.Framebuffer != nil {
		dev.Release(t.Framebuffer)
	}
	t.Color, t.Depth, t.Framebuffer = nil, nil, nil
}
