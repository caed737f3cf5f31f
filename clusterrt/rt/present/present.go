// Package present puts rendered frames on a GLFW window through WebGPU: the
// image is uploaded to a texture and blitted over the swapchain with a
// fullscreen triangle.
package present

import (
	"errors"
	"fmt"
	"image"

	"github.com/gekko3d/clusterfog"
	"github.com/gekko3d/clusterfog/clusterrt/rt/shaders"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/cogentcore/webgpu/wgpuglfw"
	"github.com/go-gl/glfw/v3.3/glfw"
)

type Presenter struct {
	Window   *glfw.Window
	Instance *wgpu.Instance
	Adapter  *wgpu.Adapter
	Device   *wgpu.Device
	Queue    *wgpu.Queue
	Surface  *wgpu.Surface
	Config   *wgpu.SurfaceConfiguration

	Pipeline *wgpu.RenderPipeline
	Sampler  *wgpu.Sampler

	frame     *wgpu.Texture
	frameView *wgpu.TextureView
	bindGroup *wgpu.BindGroup
	frameW    int
	frameH    int

	log clusterfog.Logger
}

// New creates the device and swapchain for window. The window must have
// been created with the NoAPI client hint.
func New(window *glfw.Window, logger clusterfog.Logger) (*Presenter, error) {
	p := &Presenter{Window: window, log: clusterfog.OrNop(logger)}
	if err := p.init(); err != nil {
		p.Release()
		return nil, err
	}
	return p, nil
}

func (p *Presenter) init() error {
	p.Instance = wgpu.CreateInstance(nil)
	p.Surface = p.Instance.CreateSurface(wgpuglfw.GetSurfaceDescriptor(p.Window))

	adapter, err := p.Instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		CompatibleSurface: p.Surface,
		PowerPreference:   wgpu.PowerPreferenceHighPerformance,
	})
	if err != nil {
		return fmt.Errorf("present: request adapter: %w", err)
	}
	p.Adapter = adapter

	p.Device, err = adapter.RequestDevice(nil)
	if err != nil {
		return fmt.Errorf("present: request device: %w", err)
	}
	p.Queue = p.Device.GetQueue()

	width, height := p.Window.GetFramebufferSize()
	caps := p.Surface.GetCapabilities(adapter)
	if len(caps.Formats) == 0 || len(caps.AlphaModes) == 0 {
		return errors.New("present: surface reports no formats")
	}
	p.Config = &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      surfaceFormat(caps.Formats),
		Width:       uint32(max(width, 1)),
		Height:      uint32(max(height, 1)),
		PresentMode: wgpu.PresentModeFifo,
		AlphaMode:   caps.AlphaModes[0],
	}
	p.Surface.Configure(adapter, p.Device, p.Config)

	if _, err := shaders.Validate("blit", shaders.BlitWGSL); err != nil {
		p.log.Warnf("present: %v", err)
	}
	module, err := p.Device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "Blit",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: shaders.BlitWGSL},
	})
	if err != nil {
		return fmt.Errorf("present: blit shader: %w", err)
	}
	defer module.Release()

	p.Pipeline, err = p.Device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label: "Blit Pipeline",
		Vertex: wgpu.VertexState{
			Module:     module,
			EntryPoint: shaders.VertexEntry,
		},
		Fragment: &wgpu.FragmentState{
			Module:     module,
			EntryPoint: shaders.FragmentEntry,
			Targets: []wgpu.ColorTargetState{{
				Format:    p.Config.Format,
				WriteMask: wgpu.ColorWriteMaskAll,
			}},
		},
		Primitive: wgpu.PrimitiveState{
			Topology: wgpu.PrimitiveTopologyTriangleList,
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return fmt.Errorf("present: blit pipeline: %w", err)
	}

	p.Sampler, err = p.Device.CreateSampler(&wgpu.SamplerDescriptor{
		MinFilter:     wgpu.FilterModeLinear,
		MagFilter:     wgpu.FilterModeLinear,
		MaxAnisotropy: 1,
	})
	if err != nil {
		return fmt.Errorf("present: sampler: %w", err)
	}
	p.log.Infof("present: swapchain %dx%d format %v", p.Config.Width, p.Config.Height, p.Config.Format)
	return nil
}

// surfaceFormat prefers a linear 8-bit format; frames arrive already tone
// mapped and gamma corrected.
func surfaceFormat(formats []wgpu.TextureFormat) wgpu.TextureFormat {
	for _, f := range formats {
		if f == wgpu.TextureFormatBGRA8Unorm || f == wgpu.TextureFormatRGBA8Unorm {
			return f
		}
	}
	return formats[0]
}

// Resize reconfigures the swapchain. Zero sizes (minimized) are ignored.
func (p *Presenter) Resize(w, h int) {
	if w <= 0 || h <= 0 || p.Config == nil {
		return
	}
	p.Config.Width = uint32(w)
	p.Config.Height = uint32(h)
	p.Surface.Configure(p.Adapter, p.Device, p.Config)
}

// ensureFrame (re)creates the upload texture and its bind group for a w x h
// image.
func (p *Presenter) ensureFrame(w, h int) error {
	if p.frame != nil && p.frameW == w && p.frameH == h {
		return nil
	}
	p.releaseFrame()

	tex, err := p.Device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         "Frame",
		Size:          wgpu.Extent3D{Width: uint32(w), Height: uint32(h), DepthOrArrayLayers: 1},
		Format:        wgpu.TextureFormatRGBA8Unorm,
		Usage:         wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst,
		Dimension:     wgpu.TextureDimension2D,
		MipLevelCount: 1,
		SampleCount:   1,
	})
	if err != nil {
		return fmt.Errorf("present: frame texture: %w", err)
	}
	p.frame = tex
	p.frameView, err = tex.CreateView(nil)
	if err != nil {
		return fmt.Errorf("present: frame view: %w", err)
	}
	p.bindGroup, err = p.Device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Layout: p.Pipeline.GetBindGroupLayout(0),
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, TextureView: p.frameView},
			{Binding: 1, Sampler: p.Sampler},
		},
	})
	if err != nil {
		return fmt.Errorf("present: bind group: %w", err)
	}
	p.frameW, p.frameH = w, h
	return nil
}

// Present uploads img and draws it stretched over the window.
func (p *Presenter) Present(img *image.RGBA) error {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return nil
	}
	if err := p.ensureFrame(w, h); err != nil {
		return err
	}
	err := p.Queue.WriteTexture(p.frame.AsImageCopy(), img.Pix, &wgpu.TextureDataLayout{
		Offset:       0,
		BytesPerRow:  uint32(img.Stride),
		RowsPerImage: uint32(h),
	}, &wgpu.Extent3D{Width: uint32(w), Height: uint32(h), DepthOrArrayLayers: 1})
	if err != nil {
		return fmt.Errorf("present: upload frame: %w", err)
	}

	next, err := p.Surface.GetCurrentTexture()
	if err != nil {
		return fmt.Errorf("present: current texture: %w", err)
	}
	defer next.Release()
	view, err := next.CreateView(nil)
	if err != nil {
		return fmt.Errorf("present: current view: %w", err)
	}
	defer view.Release()

	encoder, err := p.Device.CreateCommandEncoder(nil)
	if err != nil {
		return fmt.Errorf("present: encoder: %w", err)
	}
	defer encoder.Release()

	pass := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{{
			View:       view,
			LoadOp:     wgpu.LoadOpClear,
			StoreOp:    wgpu.StoreOpStore,
			ClearValue: wgpu.Color{0, 0, 0, 1},
		}},
	})
	pass.SetPipeline(p.Pipeline)
	pass.SetBindGroup(0, p.bindGroup, nil)
	pass.Draw(3, 1, 0, 0)
	if err := pass.End(); err != nil {
		return fmt.Errorf("present: blit pass: %w", err)
	}

	cmd, err := encoder.Finish(nil)
	if err != nil {
		return fmt.Errorf("present: finish: %w", err)
	}
	defer cmd.Release()
	p.Queue.Submit(cmd)
	p.Surface.Present()
	return nil
}

func (p *Presenter) releaseFrame() {
	if p.bindGroup != nil {
		p.bindGroup.Release()
		p.bindGroup = nil
	}
	if p.frameView != nil {
		p.frameView.Release()
		p.frameView = nil
	}
	if p.frame != nil {
		p.frame.Release()
		p.frame = nil
	}
}

func (p *Presenter) Release() {
	p.releaseFrame()
	if p.Sampler != nil {
		p.Sampler.Release()
	}
	if p.Pipeline != nil {
		p.Pipeline.Release()
	}
	if p.Queue != nil {
		p.Queue.Release()
	}
	if p.Device != nil {
		p.Device.Release()
	}
	if p.Adapter != nil {
		p.Adapter.Release()
	}
	if p.Surface != nil {
		p.Surface.Release()
	}
	if p.Instance != nil {
		p.Instance.Release()
	}
}
