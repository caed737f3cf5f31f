// Package renderer holds the three frame strategies. Each one owns a render
// graph, packs the light buffer and executes its passes; the clustered ones
// also rebuild a cluster grid before anything is drawn.
package renderer

import (
	"errors"
	"fmt"

	"github.com/gekko3d/clusterfog"
	"github.com/gekko3d/clusterfog/clusterrt/rt/cluster"
	"github.com/gekko3d/clusterfog/clusterrt/rt/core"
	"github.com/gekko3d/clusterfog/clusterrt/rt/gpu"
	"github.com/gekko3d/clusterfog/clusterrt/rt/graph"
	"github.com/gekko3d/clusterfog/clusterrt/rt/packed"
	"github.com/gekko3d/clusterfog/clusterrt/rt/shading"
	"github.com/gekko3d/clusterfog/clusterrt/rt/shadow"
	"github.com/gekko3d/clusterfog/clusterrt/rt/volume"
)

var ErrNoVolume = errors.New("renderer: deferred renderer needs a volume field")

// Options configures every strategy. Fields a strategy has no use for are
// ignored.
type Options struct {
	Shading         shading.Config
	Shadow          shadow.Config
	Cluster         cluster.Config
	Integrator      volume.Integrator
	VolumeDownscale int
	// MaxLights sizes the light buffer up front. A frame with more lights
	// replaces the buffer.
	MaxLights int
	Logger    clusterfog.Logger
}

// Input is what the host hands over for one frame.
type Input struct {
	Camera   *core.Camera
	Scene    *core.Scene
	Volume   *volume.Field
	Beacons  []volume.PointSource
	Profiler graph.Scopes
}

type Renderer interface {
	Name() clusterfog.RendererName
	// Render draws one frame into the display target.
	Render(in Input) error
	// Resize queues a new output size for the next Render.
	Resize(w, h int)
	Display() gpu.Texture
	Stats() cluster.Stats
	SetDebugView(v shading.DebugView)
	Graph() *graph.Graph
	Release()
}

// New builds the strategy named by name and allocates its graph for a
// w x h output.
func New(name clusterfog.RendererName, dev gpu.Device, opts Options, w, h int) (Renderer, error) {
	switch name {
	case clusterfog.RendererForward:
		return NewForward(dev, opts, w, h)
	case clusterfog.RendererClusteredForwardPlus:
		return NewForwardPlus(dev, opts, w, h)
	case clusterfog.RendererClusteredDeferred:
		return NewDeferred(dev, opts, w, h)
	}
	return nil, fmt.Errorf("renderer: unknown renderer %q", name)
}

// base is the part every strategy shares: the graph, the light buffer, the
// shadow camera and the per-frame uniforms.
type base struct {
	name       clusterfog.RendererName
	dev        gpu.Device
	log        clusterfog.Logger
	opts       Options
	graph      *graph.Graph
	lights     *packed.Buffer
	mapper     *shadow.Mapper
	integrator volume.Integrator
	uniforms   shading.Uniforms
}

func newBase(name clusterfog.RendererName, dev gpu.Device, opts Options, need gpu.Caps) (base, error) {
	if err := gpu.RequireCaps(dev.Caps(), need); err != nil {
		return base{}, fmt.Errorf("renderer %s: %w", name, err)
	}
	if err := opts.Shading.Validate(); err != nil {
		return base{}, err
	}
	mapper, err := shadow.NewMapper(opts.Shadow)
	if err != nil {
		return base{}, err
	}
	lights, err := shading.NewLightBuffer(max(opts.MaxLights, 1))
	if err != nil {
		return base{}, err
	}
	if err := lights.Attach(dev, "lights"); err != nil {
		return base{}, err
	}
	return base{
		name:       name,
		dev:        dev,
		log:        clusterfog.OrNop(opts.Logger),
		opts:       opts,
		lights:     lights,
		mapper:     mapper,
		integrator: opts.Integrator,
		uniforms:   shading.Uniforms{Config: opts.Shading},
	}, nil
}

// build creates the passes and allocates the graph. On error newPasses
// returns the passes it did create so their programs can be released.
func (b *base) build(w, h int, specs []graph.TargetSpec, newPasses func() ([]graph.Pass, error)) error {
	passes, err := newPasses()
	if err != nil {
		graph.ReleasePasses(b.dev, passes)
		return err
	}
	b.graph = graph.New(b.dev, b.log, specs, passes...)
	if err := b.graph.Build(w, h); err != nil {
		return fmt.Errorf("renderer %s: %w", b.name, err)
	}
	b.log.Infof("renderer %s: %d passes at %dx%d", b.name, len(passes), w, h)
	return nil
}

func (b *base) Name() clusterfog.RendererName { return b.name }

func (b *base) Graph() *graph.Graph { return b.graph }

func (b *base) Resize(w, h int) { b.graph.RequestResize(w, h) }

func (b *base) Display() gpu.Texture {
	t := b.graph.Target(graph.TargetDisplay)
	if t == nil {
		return nil
	}
	return t.Color[0]
}

func (b *base) SetDebugView(v shading.DebugView) { b.uniforms.Config.Debug = v }

func (b *base) Stats() cluster.Stats { return cluster.Stats{} }

func (b *base) Release() {
	if b.graph != nil {
		b.graph.Release()
	}
	if tex := b.lights.Texture(); tex != nil {
		b.dev.Release(tex)
	}
}

// packLights uploads the current light set. The buffer is replaced, never
// grown, when the light count exceeds its capacity.
func (b *base) packLights(lights []core.Light) error {
	if len(lights) > b.lights.ElementCount() {
		buf, err := shading.NewLightBuffer(len(lights))
		if err != nil {
			return err
		}
		if err := buf.Attach(b.dev, "lights"); err != nil {
			return err
		}
		if old := b.lights.Texture(); old != nil {
			b.dev.Release(old)
		}
		b.lights = buf
		b.log.Debugf("renderer %s: light buffer now holds %d lights", b.name, len(lights))
	}
	shading.PackLights(b.lights, lights)
	b.uniforms.LightCount = len(lights)
	return b.lights.Flush(b.dev)
}

// prepare fills the uniforms for in, packs the lights and culls the scene.
// It returns the frame the graph runs with.
func (b *base) prepare(in Input) (*graph.Frame, error) {
	if in.Camera == nil || in.Scene == nil {
		return nil, errors.New("renderer: frame needs a camera and a scene")
	}
	var lights []core.Light
	if in.Scene.Lights != nil {
		lights = in.Scene.Lights.Lights()
	}
	if err := b.packLights(lights); err != nil {
		return nil, err
	}

	cam := in.Camera
	vp := cam.ViewProjection()
	u := &b.uniforms
	u.View = cam.View
	u.ViewProj = vp
	u.InvViewProj = vp.Inv()
	u.Eye = cam.Position
	u.Shadow = b.mapper
	u.Integrator = &b.integrator
	u.Beacons = in.Beacons
	u.Volume = nil

	in.Scene.Commit(core.Frustum(vp))
	return &graph.Frame{
		Uniforms: u,
		Scene:    in.Scene,
		Casters:  in.Scene.All(),
		Lights:   b.lights.Texture(),
		Profiler: in.Profiler,
	}, nil
}

func (b *base) execute(f *graph.Frame) error {
	if err := b.graph.Execute(f); err != nil {
		return fmt.Errorf("renderer %s: %w", b.name, err)
	}
	return nil
}

// clustered is the grid shared by the two clustered strategies.
type clustered struct {
	grid  cluster.Grid
	stats cluster.Stats
}

func newClustered(dev gpu.Device, cfg cluster.Config) (clustered, error) {
	grid, err := cluster.NewGrid(cfg)
	if err != nil {
		return clustered{}, err
	}
	if err := grid.Buffer().Attach(dev, "clusters"); err != nil {
		return clustered{}, err
	}
	return clustered{grid: grid}, nil
}

// rebuild reassigns the lights to cells and uploads the cluster buffer.
func (c *clustered) rebuild(dev gpu.Device, log clusterfog.Logger, in Input, f *graph.Frame) error {
	if in.Profiler != nil {
		in.Profiler.BeginScope("clusters")
		defer in.Profiler.EndScope("clusters")
	}
	var lights []core.Light
	if in.Scene.Lights != nil {
		lights = in.Scene.Lights.Lights()
	}
	c.stats = c.grid.Rebuild(in.Camera, lights)
	if c.stats.Dropped > 0 || c.stats.Culled > 0 {
		log.Debugf("clusters: %d lights, %d culled, %d assignments, %d dropped",
			c.stats.Lights, c.stats.Culled, c.stats.Assignments, c.stats.Dropped)
	}
	if err := c.grid.Buffer().Flush(dev); err != nil {
		return err
	}
	f.Uniforms.Slicing = c.grid.Slicing(in.Camera)
	f.Uniforms.Capacity = c.grid.Config().MaxLightsPerCluster
	f.Clusters = c.grid.Buffer().Texture()
	return nil
}

func (c *clustered) release(dev gpu.Device) {
	if tex := c.grid.Buffer().Texture(); tex != nil {
		dev.Release(tex)
	}
}
