// Package app runs the frame loop: it owns the scene, camera, fog field and
// the active renderer, and turns the display target into images for the
// host to present or save.
package app

import (
	"errors"
	"fmt"
	"image"
	"sync"
	"sync/atomic"

	"github.com/gekko3d/clusterfog"
	"github.com/gekko3d/clusterfog/clusterrt/rt/core"
	"github.com/gekko3d/clusterfog/clusterrt/rt/gpu"
	"github.com/gekko3d/clusterfog/clusterrt/rt/renderer"
	"github.com/gekko3d/clusterfog/clusterrt/rt/shading"
	"github.com/gekko3d/clusterfog/clusterrt/rt/volume"

	"golang.org/x/image/draw"
)

// ErrAborted is returned by Frame once the loop was aborted, either by Abort
// or by an earlier frame error.
var ErrAborted = errors.New("app: aborted")

type App struct {
	Config   clusterfog.Config
	Device   gpu.Device
	Camera   *core.Camera
	Scene    *core.Scene
	Volume   *volume.Field
	Renderer renderer.Renderer
	Profiler *Profiler
	HUD      *HUD

	log    clusterfog.Logger
	width  int
	height int

	Time       float32
	FrameCount int
	FPS        float64
	fpsTime    float64
	fpsFrames  int

	aborted atomic.Bool
	mu      sync.Mutex
	pending *[2]int
}

// New builds the scene, uploads it to dev and creates the configured
// renderer at the window size.
func New(cfg clusterfog.Config, dev gpu.Device, logger clusterfog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	a := &App{
		Config:   cfg,
		Device:   dev,
		Camera:   core.NewCamera(cfg.Camera),
		Volume:   volume.NewField(cfg.Volume),
		Profiler: NewProfiler(),
		HUD:      NewHUD(),
		log:      clusterfog.OrNop(logger),
		width:    cfg.Window.Width,
		height:   cfg.Window.Height,
	}
	a.Camera.SetViewport(a.width, a.height)
	a.Camera.UpdateMatrices()

	a.Scene = core.Procedural(cfg.Scene, core.NewLightSet(cfg.Lights))
	if err := a.Scene.Upload(dev, cfg.Scene.MapSize); err != nil {
		a.Scene.Release(dev)
		return nil, fmt.Errorf("app: upload scene: %w", err)
	}
	r, err := renderer.New(cfg.Renderer, dev, a.options(), a.width, a.height)
	if err != nil {
		a.Scene.Release(dev)
		return nil, err
	}
	a.Renderer = r
	a.log.Infof("app: %d models, %d lights, renderer %s", len(a.Scene.Models), a.Scene.Lights.Len(), r.Name())
	return a, nil
}

func (a *App) options() renderer.Options {
	return renderer.Options{
		Shading:         a.Config.Shading,
		Shadow:          a.Config.Shadow,
		Cluster:         a.Config.Cluster,
		Integrator:      a.Config.Volume.Integrator,
		VolumeDownscale: a.Config.Volume.Downscale,
		MaxLights:       a.Config.Lights.Count,
		Logger:          a.log,
	}
}

// Size is the output size of the last frame, or the queued one if no frame
// ran since Resize.
func (a *App) Size() (int, int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.pending != nil {
		return a.pending[0], a.pending[1]
	}
	return a.width, a.height
}

// Resize queues a new output size; it is applied at the start of the next
// frame. Non-positive sizes (a minimized window) are ignored.
func (a *App) Resize(w, h int) {
	if w <= 0 || h <= 0 {
		return
	}
	a.mu.Lock()
	a.pending = &[2]int{w, h}
	a.mu.Unlock()
}

func (a *App) takeResize() (int, int, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.pending == nil {
		return 0, 0, false
	}
	w, h := a.pending[0], a.pending[1]
	a.pending = nil
	return w, h, true
}

// Abort stops the loop; the next Frame returns ErrAborted. Safe to call from
// any goroutine.
func (a *App) Abort() { a.aborted.Store(true) }

func (a *App) Aborted() bool { return a.aborted.Load() }

// Frame advances the simulation by dt seconds and renders one frame. An
// error from the renderer aborts the loop and is returned as is.
func (a *App) Frame(dt float64) error {
	if a.aborted.Load() {
		return ErrAborted
	}
	p := a.Profiler
	p.Reset()
	p.BeginScope("frame")

	if w, h, ok := a.takeResize(); ok && (w != a.width || h != a.height) {
		a.width, a.height = w, h
		a.Camera.SetViewport(w, h)
		a.Renderer.Resize(w, h)
		a.log.Debugf("app: resized to %dx%d", w, h)
	}

	p.BeginScope("update")
	a.Scene.Lights.Update()
	a.Time += float32(dt)
	a.Volume.Advance(float32(dt))
	a.Camera.UpdateMatrices()
	p.EndScope("update")

	err := a.Renderer.Render(renderer.Input{
		Camera:   a.Camera,
		Scene:    a.Scene,
		Volume:   a.Volume,
		Beacons:  a.Config.Volume.Beacons.At(a.Time),
		Profiler: p,
	})
	p.EndScope("frame")
	if err != nil {
		a.aborted.Store(true)
		a.log.Errorf("app: frame %d: %v", a.FrameCount, err)
		return err
	}

	stats := a.Renderer.Stats()
	p.SetCount("lights", a.Scene.Lights.Len())
	p.SetCount("visible", len(a.Scene.VisibleObjects))
	if a.Renderer.Name().Clustered() {
		p.SetCount("culled", stats.Culled)
		p.SetCount("assigned", stats.Assignments)
		p.SetCount("dropped", stats.Dropped)
	}

	a.FrameCount++
	a.fpsFrames++
	a.fpsTime += dt
	if a.fpsTime >= 1 {
		a.FPS = float64(a.fpsFrames) / a.fpsTime
		a.fpsFrames = 0
		a.fpsTime = 0
	}
	return nil
}

// SetRenderer switches strategy. The new renderer is built before the old
// one is released, so a failure leaves the current one in place.
func (a *App) SetRenderer(name clusterfog.RendererName) error {
	if a.Renderer != nil && a.Renderer.Name() == name {
		return nil
	}
	r, err := renderer.New(name, a.Device, a.options(), a.width, a.height)
	if err != nil {
		return err
	}
	if a.Renderer != nil {
		a.Renderer.Release()
	}
	a.Renderer = r
	a.Config.Renderer = name
	// drop counters the new strategy will not refresh
	clear(a.Profiler.Counts)
	a.log.Infof("app: renderer %s", name)
	return nil
}

// NextRenderer switches to the renderer after the current one.
func (a *App) NextRenderer() error {
	names := clusterfog.RendererNames()
	for i, n := range names {
		if n == a.Config.Renderer {
			return a.SetRenderer(names[(i+1)%len(names)])
		}
	}
	return a.SetRenderer(names[0])
}

func (a *App) SetDebugView(v shading.DebugView) {
	a.Config.Shading.Debug = v
	a.Renderer.SetDebugView(v)
}

// CycleDebugView steps through shading.DebugViews and returns the new view.
func (a *App) CycleDebugView() shading.DebugView {
	views := shading.DebugViews()
	next := views[0]
	for i, v := range views {
		if v == a.Config.Shading.Debug {
			next = views[(i+1)%len(views)]
			break
		}
	}
	a.SetDebugView(next)
	return next
}

// StatsLines is the HUD text for the last frame.
func (a *App) StatsLines() []string {
	lines := []string{
		fmt.Sprintf("%s  %.1f fps", a.Renderer.Name(), a.FPS),
		fmt.Sprintf("debug view %s", a.Config.Shading.Debug),
	}
	return append(lines, a.Profiler.Lines()...)
}

// Snapshot converts the display target of the last frame to an image. A
// non-zero w and h scale it with Catmull-Rom. The HUD is drawn after
// scaling when enabled.
func (a *App) Snapshot(w, h int) (*image.RGBA, error) {
	tex := a.Renderer.Display()
	if tex == nil {
		return nil, errors.New("app: no display target")
	}
	px, err := a.Device.ReadTexture(tex)
	if err != nil {
		return nil, fmt.Errorf("app: read display: %w", err)
	}
	d := tex.Desc()
	img := ToRGBA(px, d.Width, d.Height)
	if w > 0 && h > 0 && (w != d.Width || h != d.Height) {
		scaled := image.NewRGBA(image.Rect(0, 0, w, h))
		draw.CatmullRom.Scale(scaled, scaled.Bounds(), img, img.Bounds(), draw.Src, nil)
		img = scaled
	}
	if a.Config.HUD {
		a.HUD.Draw(img, a.StatsLines())
	}
	return img, nil
}

// ToRGBA quantizes RGBA float texels in [0, 1] to 8 bits, top row first.
func ToRGBA(px []float32, w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < w*h*4 && i < len(px); i++ {
		v := min(max(px[i], 0), 1)
		img.Pix[i] = uint8(v*255 + 0.5)
	}
	return img
}

func (a *App) Release() {
	if a.Renderer != nil {
		a.Renderer.Release()
		a.Renderer = nil
	}
	a.Volume.Release(a.Device)
	a.Scene.Release(a.Device)
}
