// Package graph runs the renderer's passes in a fixed order over a set of
// named render targets. Targets are allocated once by Build; output-relative
// targets are reallocated when a resize request is picked up at the start
// of the next Execute.
package graph

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gekko3d/clusterfog"
	"github.com/gekko3d/clusterfog/clusterrt/rt/gpu"
	"github.com/gekko3d/clusterfog/clusterrt/rt/shading"

	"github.com/go-gl/mathgl/mgl32"
)

var (
	ErrUnknownTarget = errors.New("graph: unknown target")
	ErrPassOrder     = errors.New("graph: target read before it is written")
	ErrNotBuilt      = errors.New("graph: not built")
)

// Pass is one step of the graph. Reads and Writes name targets; Build
// rejects a pass that reads a target no earlier pass writes.
type Pass interface {
	Name() string
	Reads() []string
	Writes() []string
	Execute(f *Frame) error
}

// Drawer issues the scene's draws into a pass.
type Drawer interface {
	Draw(pass gpu.Pass, rc gpu.RenderContext) error
}

// Scopes receives per-pass timings. app.Profiler implements it.
type Scopes interface {
	BeginScope(name string)
	EndScope(name string)
}

// Frame is everything a pass needs for one frame. The renderer fills the
// exported fields; Execute attaches the device and targets.
type Frame struct {
	Uniforms *shading.Uniforms
	Scene    Drawer
	Casters  Drawer // drawn into the shadow map; Scene when nil

	Lights   gpu.Texture
	Clusters gpu.Texture
	Density  gpu.Texture

	Profiler Scopes

	dev     gpu.Device
	targets map[string]*Target
}

// Device is the device the graph was built on.
func (f *Frame) Device() gpu.Device { return f.dev }

// Target returns the named target or nil.
func (f *Frame) Target(name string) *Target { return f.targets[name] }

type Graph struct {
	dev    gpu.Device
	log    clusterfog.Logger
	specs  []TargetSpec
	passes []Pass

	targets map[string]*Target
	width   int
	height  int
	built   bool

	mu      sync.Mutex
	pending *[2]int
}

func New(dev gpu.Device, logger clusterfog.Logger, specs []TargetSpec, passes ...Pass) *Graph {
	return &Graph{
		dev:     dev,
		log:     clusterfog.OrNop(logger),
		specs:   specs,
		passes:  passes,
		targets: make(map[string]*Target, len(specs)),
	}
}

func (g *Graph) Passes() []Pass { return g.passes }

// Size is the output size the relative targets are currently allocated for.
func (g *Graph) Size() (int, int) { return g.width, g.height }

func (g *Graph) Target(name string) *Target { return g.targets[name] }

// Validate checks pass order against the target specs without allocating.
func (g *Graph) Validate() error {
	known := make(map[string]bool, len(g.specs))
	for _, s := range g.specs {
		if known[s.Name] {
			return fmt.Errorf("graph: target %q declared twice", s.Name)
		}
		known[s.Name] = true
	}
	written := make(map[string]bool, len(g.specs))
	for _, p := range g.passes {
		for _, name := range p.Reads() {
			if !known[name] {
				return fmt.Errorf("%w: %q read by pass %q", ErrUnknownTarget, name, p.Name())
			}
			if !written[name] {
				return fmt.Errorf("%w: %q in pass %q", ErrPassOrder, name, p.Name())
			}
		}
		for _, name := range p.Writes() {
			if !known[name] {
				return fmt.Errorf("%w: %q written by pass %q", ErrUnknownTarget, name, p.Name())
			}
			written[name] = true
		}
	}
	return nil
}

// Build validates the pass order and allocates every target for an output
// of w x h pixels. An incomplete framebuffer is returned as an error and
// leaves the graph unbuilt.
func (g *Graph) Build(w, h int) error {
	if err := g.Validate(); err != nil {
		return err
	}
	if w <= 0 || h <= 0 {
		return fmt.Errorf("graph: invalid output size %dx%d", w, h)
	}
	g.release(func(TargetSpec) bool { return true })
	for _, s := range g.specs {
		t, err := allocate(g.dev, s, w, h)
		if err != nil {
			g.release(func(TargetSpec) bool { return true })
			return err
		}
		g.targets[s.Name] = t
		tw, th := t.Size()
		g.log.Debugf("graph: target %q %dx%d (%d color, depth=%v)", s.Name, tw, th, len(t.Color), t.Depth != nil)
	}
	g.width, g.height = w, h
	g.built = true
	return nil
}

// RequestResize records a new output size. The latest request wins and is
// applied at the start of the next Execute.
func (g *Graph) RequestResize(w, h int) {
	g.mu.Lock()
	g.pending = &[2]int{w, h}
	g.mu.Unlock()
}

func (g *Graph) applyResize() error {
	g.mu.Lock()
	p := g.pending
	g.pending = nil
	g.mu.Unlock()
	if p == nil {
		return nil
	}
	w, h := p[0], p[1]
	if w <= 0 || h <= 0 || (w == g.width && h == g.height) {
		return nil
	}
	g.release(TargetSpec.Relative)
	for _, s := range g.specs {
		if !s.Relative() {
			continue
		}
		t, err := allocate(g.dev, s, w, h)
		if err != nil {
			g.built = false
			return fmt.Errorf("graph: resize to %dx%d: %w", w, h, err)
		}
		g.targets[s.Name] = t
	}
	g.log.Debugf("graph: resized %dx%d -> %dx%d", g.width, g.height, w, h)
	g.width, g.height = w, h
	return nil
}

// Execute applies a pending resize and runs every pass in order. The first
// failing pass stops the frame.
func (g *Graph) Execute(f *Frame) error {
	if !g.built {
		return ErrNotBuilt
	}
	if err := g.applyResize(); err != nil {
		return err
	}
	f.dev = g.dev
	f.targets = g.targets
	if f.Uniforms != nil {
		f.Uniforms.Width, f.Uniforms.Height = g.width, g.height
	}
	for _, p := range g.passes {
		if f.Profiler != nil {
			f.Profiler.BeginScope(p.Name())
		}
		err := p.Execute(f)
		if f.Profiler != nil {
			f.Profiler.EndScope(p.Name())
		}
		if err != nil {
			return fmt.Errorf("graph: pass %q: %w", p.Name(), err)
		}
	}
	return nil
}

// programOwner is implemented by passes that created a device program.
type programOwner interface {
	Program() gpu.Program
}

// Release frees every target and the programs of the passes. The graph
// cannot be built again afterwards.
func (g *Graph) Release() {
	g.release(func(TargetSpec) bool { return true })
	g.built = false
	ReleasePasses(g.dev, g.passes)
}

// ReleasePasses frees the programs of passes that created one. It is for
// passes that never made it into a graph.
func ReleasePasses(dev gpu.Device, passes []Pass) {
	for _, p := range passes {
		if po, ok := p.(programOwner); ok {
			dev.Release(po.Program())
		}
	}
}

func (g *Graph) release(match func(TargetSpec) bool) {
	for name, t := range g.targets {
		if !match(t.Spec) {
			continue
		}
		t.release(g.dev)
		delete(g.targets, name)
	}
}

// clearTo is a helper for passes that clear every attachment to one value.
func clearTo(n int, c mgl32.Vec4) []gpu.ClearColor {
	out := make([]gpu.ClearColor, n)
	for i := range out {
		out[i] = gpu.ClearColor(c)
	}
	return out
}
