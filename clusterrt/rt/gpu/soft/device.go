// Package soft is a software implementation of gpu.Device. Draws are
// rasterized on the CPU; a single draw is split into horizontal bands that
// run on a worker pool and are joined before the draw returns.
package soft

import (
	"fmt"
	"sync"
	"time"

	"github.com/gekko3d/clusterfog/clusterrt/rt/gpu"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
)

type Options struct {
	// Workers is the number of raster workers; values below 2 rasterize on
	// the calling goroutine.
	Workers        int
	MaxTextureSize int
}

type Device struct {
	id      uuid.UUID
	caps    gpu.Caps
	workers int
	pool    worker.DynamicWorkerPool

	mu   sync.Mutex
	live map[uuid.UUID]gpu.Resource
}

func New(opts Options) *Device {
	if opts.MaxTextureSize <= 0 {
		opts.MaxTextureSize = 1 << 16
	}
	d := &Device{
		id: uuid.New(),
		caps: gpu.Caps{
			MaxTextureSize:      opts.MaxTextureSize,
			MaxColorAttachments: gpu.MaxColorAttachments,
			FloatRenderTargets:  true,
			Textures3D:          true,
		},
		workers: opts.Workers,
		live:    make(map[uuid.UUID]gpu.Resource),
	}
	if d.workers > 1 {
		d.pool = worker.NewDynamicWorkerPool(d.workers, d.workers*4, 1*time.Second)
	}
	return d
}

func (d *Device) Caps() gpu.Caps { return d.caps }

// Live is the number of resources created and not yet released.
func (d *Device) Live() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.live)
}

type resource struct {
	id    uuid.UUID
	label string
	owner uuid.UUID
}

func (r resource) ID() uuid.UUID     { return r.id }
func (r resource) Label() string     { return r.label }
func (r resource) device() uuid.UUID { return r.owner }

type owned interface {
	device() uuid.UUID
}

func (d *Device) newResource(label string) resource {
	return resource{id: uuid.New(), label: label, owner: d.id}
}

func (d *Device) track(res gpu.Resource) {
	d.mu.Lock()
	d.live[res.ID()] = res
	d.mu.Unlock()
}

func (d *Device) owns(res gpu.Resource) bool {
	o, ok := res.(owned)
	return ok && o.device() == d.id
}

func (d *Device) texture(t gpu.Texture) (*texture, error) {
	tex, ok := t.(*texture)
	if !ok || !d.owns(t) {
		return nil, fmt.Errorf("%w: texture %v", gpu.ErrForeignResource, t)
	}
	return tex, nil
}

func (d *Device) CreateTexture(desc gpu.TextureDesc) (gpu.Texture, error) {
	if err := desc.Validate(d.caps); err != nil {
		return nil, err
	}
	tex := newTexture(d.newResource(desc.Label), desc)
	d.track(tex)
	return tex, nil
}

func (d *Device) WriteTexture(t gpu.Texture, data []float32) error {
	tex, err := d.texture(t)
	if err != nil {
		return err
	}
	if len(data) != len(tex.data) {
		return fmt.Errorf("%w: %q expects %d floats, got %d", gpu.ErrInvalidTexture, tex.label, len(tex.data), len(data))
	}
	if !tex.desc.Format.Normalized() {
		copy(tex.data, data)
		return nil
	}
	for i, v := range data {
		tex.data[i] = quantize8(v)
	}
	return nil
}

func (d *Device) ReadTexture(t gpu.Texture) ([]float32, error) {
	tex, err := d.texture(t)
	if err != nil {
		return nil, err
	}
	out := make([]float32, len(tex.data))
	copy(out, tex.data)
	return out, nil
}

type framebuffer struct {
	resource
	color []*texture
	depth *texture
	w, h  int
}

func (f *framebuffer) Size() (int, int) { return f.w, f.h }
func (f *framebuffer) ColorCount() int  { return len(f.color) }
func (f *framebuffer) HasDepth() bool   { return f.depth != nil }

func (d *Device) CreateFramebuffer(desc gpu.FramebufferDesc) (gpu.Framebuffer, error) {
	if err := gpu.CheckFramebuffer(desc, d.caps); err != nil {
		return nil, err
	}
	fb := &framebuffer{resource: d.newResource(desc.Label)}
	for _, c := range desc.Color {
		tex, err := d.texture(c)
		if err != nil {
			return nil, err
		}
		fb.color = append(fb.color, tex)
		fb.w, fb.h = tex.desc.Width, tex.desc.Height
	}
	if desc.Depth != nil {
		tex, err := d.texture(desc.Depth)
		if err != nil {
			return nil, err
		}
		fb.depth = tex
		fb.w, fb.h = tex.desc.Width, tex.desc.Height
	}
	d.track(fb)
	return fb, nil
}

type program struct {
	resource
	desc  gpu.ProgramDesc
	slots map[gpu.Binding]int
}

func (p *program) Slot(b gpu.Binding) (int, bool) {
	s, ok := p.slots[b]
	return s, ok
}

func (p *program) Bindings() []gpu.Binding { return p.desc.Bindings }
func (p *program) Outputs() int            { return p.desc.Outputs }

func (d *Device) CreateProgram(desc gpu.ProgramDesc) (gpu.Program, error) {
	slots, err := desc.Link()
	if err != nil {
		return nil, err
	}
	p := &program{resource: d.newResource(desc.Label), desc: desc, slots: slots}
	d.track(p)
	return p, nil
}

type mesh struct {
	resource
	vertices []gpu.Vertex
	indices  []uint32
}

func (m *mesh) IndexCount() int { return len(m.indices) }

func (d *Device) CreateMesh(vertices []gpu.Vertex, indices []uint32) (gpu.Mesh, error) {
	if len(indices)%3 != 0 {
		return nil, fmt.Errorf("soft: index count %d is not a multiple of 3", len(indices))
	}
	for _, idx := range indices {
		if int(idx) >= len(vertices) {
			return nil, fmt.Errorf("soft: index %d out of range (%d vertices)", idx, len(vertices))
		}
	}
	m := &mesh{
		resource: d.newResource("mesh"),
		vertices: append([]gpu.Vertex(nil), vertices...),
		indices:  append([]uint32(nil), indices...),
	}
	d.track(m)
	return m, nil
}

func (d *Device) BeginPass(desc gpu.PassDesc) (gpu.Pass, error) {
	if desc.Target == nil {
		return nil, fmt.Errorf("soft: pass %q has no target", desc.Label)
	}
	fb, ok := desc.Target.(*framebuffer)
	if !ok || !d.owns(desc.Target) {
		return nil, fmt.Errorf("%w: framebuffer for pass %q", gpu.ErrForeignResource, desc.Label)
	}
	for i, c := range fb.color {
		var clear gpu.ClearColor
		if i < len(desc.ClearColors) {
			clear = desc.ClearColors[i]
		}
		c.fill(mgl32.Vec4(clear))
	}
	if fb.depth != nil {
		fb.depth.fill(mgl32.Vec4{1, 1, 1, 1})
	}
	return &pass{dev: d, fb: fb, label: desc.Label}, nil
}

func (d *Device) Release(res gpu.Resource) {
	if res == nil {
		return
	}
	d.mu.Lock()
	delete(d.live, res.ID())
	d.mu.Unlock()
}

func (d *Device) Destroy() {
	if d.pool != nil {
		d.pool.Stop()
		d.pool = nil
	}
	d.mu.Lock()
	d.live = make(map[uuid.UUID]gpu.Resource)
	d.mu.Unlock()
}

// bands runs fn over [0, height) split into row ranges, in parallel when a
// pool is available, and returns after every band has finished.
func (d *Device) bands(height int, fn func(y0, y1 int)) {
	if d.pool == nil || height < 2*d.workers {
		fn(0, height)
		return
	}
	n := d.workers * 2
	step := (height + n - 1) / n
	var wg sync.WaitGroup
	id := 0
	for y0 := 0; y0 < height; y0 += step {
		y1 := min(y0+step, height)
		wg.Add(1)
		lo, hi := y0, y1
		d.pool.SubmitTask(worker.Task{
			ID: id,
			Do: func() (any, error) {
				defer wg.Done()
				fn(lo, hi)
				return nil, nil
			},
		})
		id++
	}
	wg.Wait()
}
