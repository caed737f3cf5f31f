package renderer

import (
	"github.com/gekko3d/clusterfog"
	"github.com/gekko3d/clusterfog/clusterrt/rt/cluster"
	"github.com/gekko3d/clusterfog/clusterrt/rt/gpu"
	"github.com/gekko3d/clusterfog/clusterrt/rt/graph"
	"github.com/gekko3d/clusterfog/clusterrt/rt/shadow"
)

// forwardCaps is what the forward strategies need from a device.
func forwardCaps(o Options) gpu.Caps {
	return gpu.Caps{MaxTextureSize: o.Shadow.Resolution, MaxColorAttachments: 1, FloatRenderTargets: true}
}

func forwardSpecs(o Options) []graph.TargetSpec {
	return []graph.TargetSpec{
		graph.ShadowTarget(o.Shadow.Resolution),
		graph.HDRTarget(),
		graph.DisplayTarget(),
	}
}

// Forward shades every light for every fragment: shadow, forward, tonemap.
type Forward struct {
	base
}

func NewForward(dev gpu.Device, opts Options, w, h int) (*Forward, error) {
	b, err := newBase(clusterfog.RendererForward, dev, opts, forwardCaps(opts))
	if err != nil {
		return nil, err
	}
	r := &Forward{base: b}
	err = r.build(w, h, forwardSpecs(opts), func() ([]graph.Pass, error) {
		return forwardPasses(dev, r.mapper, false)
	})
	if err != nil {
		r.Release()
		return nil, err
	}
	return r, nil
}

func (r *Forward) Render(in Input) error {
	f, err := r.prepare(in)
	if err != nil {
		return err
	}
	return r.execute(f)
}

// ForwardPlus looks lights up through the cluster grid: shadow, forward+,
// tonemap.
type ForwardPlus struct {
	base
	clustered
}

func NewForwardPlus(dev gpu.Device, opts Options, w, h int) (*ForwardPlus, error) {
	b, err := newBase(clusterfog.RendererClusteredForwardPlus, dev, opts, forwardCaps(opts))
	if err != nil {
		return nil, err
	}
	c, err := newClustered(dev, opts.Cluster)
	if err != nil {
		b.Release()
		return nil, err
	}
	r := &ForwardPlus{base: b, clustered: c}
	err = r.build(w, h, forwardSpecs(opts), func() ([]graph.Pass, error) {
		return forwardPasses(dev, r.mapper, true)
	})
	if err != nil {
		r.Release()
		return nil, err
	}
	return r, nil
}

func (r *ForwardPlus) Render(in Input) error {
	f, err := r.prepare(in)
	if err != nil {
		return err
	}
	if err := r.rebuild(r.dev, r.log, in, f); err != nil {
		return err
	}
	return r.execute(f)
}

func (r *ForwardPlus) Stats() cluster.Stats { return r.stats }

func (r *ForwardPlus) Release() {
	r.base.Release()
	r.clustered.release(r.dev)
}

// Deferred fills a G-buffer, integrates the fog at reduced resolution and
// shades the G-buffer with clustered lights: shadow, geometry, volume,
// shading, tonemap.
type Deferred struct {
	base
	clustered
}

func NewDeferred(dev gpu.Device, opts Options, w, h int) (*Deferred, error) {
	need := gpu.Caps{
		MaxTextureSize:      opts.Shadow.Resolution,
		MaxColorAttachments: 3,
		FloatRenderTargets:  true,
		Textures3D:          true,
	}
	b, err := newBase(clusterfog.RendererClusteredDeferred, dev, opts, need)
	if err != nil {
		return nil, err
	}
	if err := opts.Integrator.Validate(); err != nil {
		b.Release()
		return nil, err
	}
	c, err := newClustered(dev, opts.Cluster)
	if err != nil {
		b.Release()
		return nil, err
	}
	r := &Deferred{base: b, clustered: c}
	specs := []graph.TargetSpec{
		graph.ShadowTarget(opts.Shadow.Resolution),
		graph.GBufferTarget(),
		graph.VolumeTarget(opts.VolumeDownscale),
		graph.HDRTarget(),
		graph.DisplayTarget(),
	}
	err = r.build(w, h, specs, func() ([]graph.Pass, error) {
		return deferredPasses(dev, r.mapper)
	})
	if err != nil {
		r.Release()
		return nil, err
	}
	return r, nil
}

func (r *Deferred) Render(in Input) error {
	if in.Volume == nil {
		return ErrNoVolume
	}
	f, err := r.prepare(in)
	if err != nil {
		return err
	}
	if err := r.rebuild(r.dev, r.log, in, f); err != nil {
		return err
	}
	if err := in.Volume.Upload(r.dev); err != nil {
		return err
	}
	f.Uniforms.Volume = in.Volume.Snapshot()
	f.Density = in.Volume.Texture()
	return r.execute(f)
}

func (r *Deferred) Stats() cluster.Stats { return r.stats }

func (r *Deferred) Release() {
	r.base.Release()
	r.clustered.release(r.dev)
}

func forwardPasses(dev gpu.Device, m *shadow.Mapper, withClusters bool) ([]graph.Pass, error) {
	var passes []graph.Pass
	shadowPass, err := graph.NewShadowPass(dev, m)
	if err != nil {
		return passes, err
	}
	passes = append(passes, shadowPass)
	fwd, err := graph.NewForwardPass(dev, withClusters)
	if err != nil {
		return passes, err
	}
	passes = append(passes, fwd)
	tonemap, err := graph.NewTonemapPass(dev)
	if err != nil {
		return passes, err
	}
	return append(passes, tonemap), nil
}

func deferredPasses(dev gpu.Device, m *shadow.Mapper) ([]graph.Pass, error) {
	var passes []graph.Pass
	shadowPass, err := graph.NewShadowPass(dev, m)
	if err != nil {
		return passes, err
	}
	passes = append(passes, shadowPass)
	geometry, err := graph.NewGeometryPass(dev)
	if err != nil {
		return passes, err
	}
	passes = append(passes, geometry)
	vol, err := graph.NewVolumePass(dev)
	if err != nil {
		return passes, err
	}
	passes = append(passes, vol)
	shade, err := graph.NewShadingPass(dev)
	if err != nil {
		return passes, err
	}
	passes = append(passes, shade)
	tonemap, err := graph.NewTonemapPass(dev)
	if err != nil {
		return passes, err
	}
	return append(passes, tonemap), nil
}
