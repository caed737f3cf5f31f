package shading

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
)

type ToneMapper string

const (
	ToneFilmic   ToneMapper = "filmic"
	ToneReinhard ToneMapper = "reinhard"
	ToneLinear   ToneMapper = "linear"
)

func ParseToneMapper(s string) (ToneMapper, error) {
	switch m := ToneMapper(strings.ToLower(strings.TrimSpace(s))); m {
	case ToneFilmic, ToneReinhard, ToneLinear:
		return m, nil
	case "", "aces":
		return ToneFilmic, nil
	case "none":
		return ToneLinear, nil
	}
	return "", fmt.Errorf("shading: unknown tone mapper %q", s)
}

// DebugView replaces the final image with one intermediate buffer.
type DebugView string

const (
	DebugNone     DebugView = "none"
	DebugVolume   DebugView = "volume"
	DebugShadow   DebugView = "shadow"
	DebugAlbedo   DebugView = "albedo"
	DebugNormal   DebugView = "normal"
	DebugPosition DebugView = "position"
	DebugClusters DebugView = "clusters"
)

func DebugViews() []DebugView {
	return []DebugView{DebugNone, DebugVolume, DebugShadow, DebugAlbedo, DebugNormal, DebugPosition, DebugClusters}
}

func ParseDebugView(s string) (DebugView, error) {
	v := DebugView(strings.ToLower(strings.TrimSpace(s)))
	if v == "" {
		return DebugNone, nil
	}
	for _, known := range DebugViews() {
		if v == known {
			return v, nil
		}
	}
	return "", fmt.Errorf("shading: unknown debug view %q", s)
}

type ToneMapConfig struct {
	Operator ToneMapper `yaml:"operator"`
	Exposure float32    `yaml:"exposure"`
	Gamma    float32    `yaml:"gamma"`
}

type Config struct {
	SunColor  mgl32.Vec3    `yaml:"sun_color"`
	SunFloor  float32       `yaml:"sun_floor"`
	Ambient   mgl32.Vec3    `yaml:"ambient"`
	Shininess float32       `yaml:"shininess"`
	Debug     DebugView     `yaml:"debug_view"`
	ToneMap   ToneMapConfig `yaml:"tone_map"`
	// PositionScale maps world positions into [0,1] for the position view.
	PositionScale float32 `yaml:"position_scale"`
}

func DefaultConfig() Config {
	return Config{
		SunColor:  mgl32.Vec3{0.5, 0.5, 0.4},
		SunFloor:  0.05,
		Ambient:   mgl32.Vec3{0.025, 0.025, 0.025},
		Shininess: 100,
		Debug:     DebugNone,
		ToneMap: ToneMapConfig{
			Operator: ToneFilmic,
			Exposure: 1,
			Gamma:    2.2,
		},
		PositionScale: 1.0 / 30,
	}
}

func (c Config) Validate() error {
	var errs []error
	if _, err := ParseDebugView(string(c.Debug)); err != nil {
		errs = append(errs, err)
	}
	if _, err := ParseToneMapper(string(c.ToneMap.Operator)); err != nil {
		errs = append(errs, err)
	}
	if c.ToneMap.Exposure <= 0 || c.ToneMap.Gamma <= 0 {
		errs = append(errs, errors.New("shading: exposure and gamma must be positive"))
	}
	if c.Shininess <= 0 {
		errs = append(errs, errors.New("shading: shininess must be positive"))
	}
	return errors.Join(errs...)
}
