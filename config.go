package clusterfog

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/gekko3d/clusterfog/clusterrt/rt/cluster"
	"github.com/gekko3d/clusterfog/clusterrt/rt/core"
	"github.com/gekko3d/clusterfog/clusterrt/rt/shading"
	"github.com/gekko3d/clusterfog/clusterrt/rt/shadow"
	"github.com/gekko3d/clusterfog/clusterrt/rt/volume"

	"gopkg.in/yaml.v3"
)

type WindowConfig struct {
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
	Title  string `yaml:"title"`
}

// HeadlessConfig renders without a window and writes PNG frames. Output may
// contain one %d verb for the frame number; without it only the last frame
// is written.
type HeadlessConfig struct {
	Enabled      bool   `yaml:"enabled"`
	Frames       int    `yaml:"frames"`
	Every        int    `yaml:"every"`
	Output       string `yaml:"output"`
	OutputWidth  int    `yaml:"output_width"`
	OutputHeight int    `yaml:"output_height"`
}

// Config holds every tunable of the renderer and its host.
type Config struct {
	Window   WindowConfig   `yaml:"window"`
	Headless HeadlessConfig `yaml:"headless"`
	Renderer RendererName   `yaml:"renderer"`
	Workers  int            `yaml:"workers"`
	Debug    bool           `yaml:"debug"`
	HUD      bool           `yaml:"hud"`

	Camera  core.CameraConfig `yaml:"camera"`
	Lights  core.LightConfig  `yaml:"lights"`
	Scene   core.SceneConfig  `yaml:"scene"`
	Cluster cluster.Config    `yaml:"cluster"`
	Volume  volume.Config     `yaml:"volume"`
	Shadow  shadow.Config     `yaml:"shadow"`
	Shading shading.Config    `yaml:"shading"`
}

func DefaultConfig() Config {
	return Config{
		Window:   WindowConfig{Width: 1280, Height: 720, Title: "clusterfog"},
		Headless: HeadlessConfig{Frames: 60, Output: "frame.png"},
		Renderer: RendererClusteredDeferred,
		Workers:  4,
		HUD:      true,
		Camera:   core.DefaultCameraConfig(),
		Lights:   core.DefaultLightConfig(),
		Scene:    core.DefaultSceneConfig(),
		Cluster:  cluster.DefaultConfig(),
		Volume:   volume.DefaultConfig(),
		Shadow:   shadow.DefaultConfig(),
		Shading:  shading.DefaultConfig(),
	}
}

// LoadConfig reads a YAML file over the defaults. Unknown keys are errors.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Overlay(data); err != nil {
		return cfg, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Overlay decodes YAML over c; keys missing from data keep their values.
func (c *Config) Overlay(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Validate reports every invalid field, not just the first.
func (c Config) Validate() error {
	var errs []error
	if c.Window.Width <= 0 || c.Window.Height <= 0 {
		errs = append(errs, fmt.Errorf("config: window size %dx%d must be positive", c.Window.Width, c.Window.Height))
	}
	if _, err := ParseRendererName(string(c.Renderer)); err != nil {
		errs = append(errs, err)
	}
	if c.Workers < 0 {
		errs = append(errs, fmt.Errorf("config: workers %d must not be negative", c.Workers))
	}
	if c.Headless.Enabled {
		if c.Headless.Frames <= 0 {
			errs = append(errs, fmt.Errorf("config: headless frames %d must be positive", c.Headless.Frames))
		}
		if c.Headless.Output == "" {
			errs = append(errs, errors.New("config: headless output path is empty"))
		}
		if c.Headless.Every > 0 && !strings.Contains(c.Headless.Output, "%d") {
			errs = append(errs, fmt.Errorf("config: output %q needs a %%d verb to write every %d frames", c.Headless.Output, c.Headless.Every))
		}
		if c.Headless.OutputWidth < 0 || c.Headless.OutputHeight < 0 {
			errs = append(errs, errors.New("config: output size must not be negative"))
		}
	}
	errs = append(errs,
		c.Camera.Validate(),
		c.Lights.Validate(),
		c.Scene.Validate(),
		c.Cluster.Validate(),
		c.Volume.Validate(),
		c.Shadow.Validate(),
		c.Shading.Validate(),
	)
	return errors.Join(errs...)
}

// ParseFlags builds the configuration from command-line arguments. The file
// named by -config overlays the defaults and flags given on the command
// line override both.
func ParseFlags(name string, args []string) (Config, error) {
	cfg := DefaultConfig()
	var path string
	fs := cfg.flagSet(name, &path)
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}
	if path != "" {
		loaded, err := LoadConfig(path)
		if err != nil {
			return cfg, err
		}
		over := loaded.flagSet(name, new(string))
		var setErr error
		fs.Visit(func(f *flag.Flag) {
			if f.Name == "config" || setErr != nil {
				return
			}
			setErr = over.Set(f.Name, f.Value.String())
		})
		if setErr != nil {
			return cfg, setErr
		}
		cfg = loaded
	}
	return cfg, cfg.Validate()
}

func (c *Config) flagSet(name string, path *string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.StringVar(path, "config", "", "YAML config file")
	fs.IntVar(&c.Window.Width, "width", c.Window.Width, "output width")
	fs.IntVar(&c.Window.Height, "height", c.Window.Height, "output height")
	fs.Var(textValue[RendererName]{&c.Renderer, ParseRendererName}, "renderer", "forward, clustered-forward-plus or clustered-deferred")
	fs.IntVar(&c.Workers, "workers", c.Workers, "raster worker goroutines (0 or 1 rasterizes inline)")
	fs.BoolVar(&c.Debug, "debug", c.Debug, "debug logging")
	fs.BoolVar(&c.HUD, "hud", c.HUD, "draw the stats overlay")

	fs.BoolVar(&c.Headless.Enabled, "headless", c.Headless.Enabled, "render without a window")
	fs.IntVar(&c.Headless.Frames, "frames", c.Headless.Frames, "frames to render in headless mode")
	fs.IntVar(&c.Headless.Every, "every", c.Headless.Every, "write every n-th frame (needs %d in -output)")
	fs.StringVar(&c.Headless.Output, "output", c.Headless.Output, "PNG output path")
	fs.IntVar(&c.Headless.OutputWidth, "output-width", c.Headless.OutputWidth, "scale PNG output to this width")
	fs.IntVar(&c.Headless.OutputHeight, "output-height", c.Headless.OutputHeight, "scale PNG output to this height")

	fs.IntVar(&c.Lights.Count, "lights", c.Lights.Count, "number of point lights")
	fs.Var(float32Value{&c.Lights.Radius}, "light-radius", "point light radius")
	fs.IntVar(&c.Cluster.XSlices, "cluster-x", c.Cluster.XSlices, "cluster slices along X")
	fs.IntVar(&c.Cluster.YSlices, "cluster-y", c.Cluster.YSlices, "cluster slices along Y")
	fs.IntVar(&c.Cluster.ZSlices, "cluster-z", c.Cluster.ZSlices, "cluster slices along Z")
	fs.IntVar(&c.Cluster.MaxLightsPerCluster, "cluster-cap", c.Cluster.MaxLightsPerCluster, "max lights per cluster")

	fs.IntVar(&c.Volume.Resolution, "volume-res", c.Volume.Resolution, "fog lattice resolution")
	fs.Var(textValue[volume.NoiseKind]{&c.Volume.Noise, volume.ParseNoiseKind}, "volume-noise", "constant, random or fbm")
	fs.Var(float32Value{&c.Volume.Heterogeneity}, "heterogeneity", "fog heterogeneity in [0, 1]")
	fs.Var(float32Value{&c.Volume.DensityScale}, "density", "fog density scale")
	fs.IntVar(&c.Volume.Downscale, "volume-downscale", c.Volume.Downscale, "volume pass resolution divisor")
	fs.IntVar(&c.Volume.Integrator.Steps, "volume-steps", c.Volume.Integrator.Steps, "ray march steps")
	fs.BoolVar(&c.Volume.Integrator.SelfShadow, "self-shadow", c.Volume.Integrator.SelfShadow, "volumetric self shadowing")

	fs.IntVar(&c.Shadow.Resolution, "shadow-res", c.Shadow.Resolution, "shadow map resolution")
	fs.Var(textValue[shading.DebugView]{&c.Shading.Debug, shading.ParseDebugView}, "debug-view", "none, volume, shadow, albedo, normal, position or clusters")
	fs.Var(textValue[shading.ToneMapper]{&c.Shading.ToneMap.Operator, shading.ParseToneMapper}, "tonemap", "filmic, reinhard or linear")
	fs.Var(float32Value{&c.Shading.ToneMap.Exposure}, "exposure", "exposure multiplier")
	return fs
}

// textValue is a flag.Value for string enums with a parser.
type textValue[T ~string] struct {
	p     *T
	parse func(string) (T, error)
}

func (v textValue[T]) String() string {
	if v.p == nil {
		return ""
	}
	return string(*v.p)
}

func (v textValue[T]) Set(s string) error {
	t, err := v.parse(s)
	if err != nil {
		return err
	}
	*v.p = t
	return nil
}

type float32Value struct{ p *float32 }

func (v float32Value) String() string {
	if v.p == nil {
		return ""
	}
	return strconv.FormatFloat(float64(*v.p), 'g', -1, 32)
}

func (v float32Value) Set(s string) error {
	f, err := strconv.ParseFloat(s, 32)
	if err != nil {
		return err
	}
	*v.p = float32(f)
	return nil
}
