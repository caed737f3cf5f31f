package clusterfog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gekko3d/clusterfog/clusterrt/rt/shading"
	"github.com/gekko3d/clusterfog/clusterrt/rt/volume"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, RendererClusteredDeferred, cfg.Renderer)
	assert.Equal(t, 15, cfg.Cluster.XSlices)
	assert.Equal(t, 32, cfg.Cluster.MaxLightsPerCluster)
	assert.Equal(t, 100, cfg.Lights.Count)
	assert.Equal(t, 1024, cfg.Shadow.Resolution)
	assert.Equal(t, 64, cfg.Volume.Resolution)
}

func TestOverlayKeepsUnsetFields(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Overlay([]byte(`
renderer: forward
lights:
  count: 12
  min: [-1, 0, -1]
volume:
  noise: random
shading:
  tone_map:
    operator: reinhard
`)))
	assert.Equal(t, RendererForward, cfg.Renderer)
	assert.Equal(t, 12, cfg.Lights.Count)
	assert.Equal(t, mgl32.Vec3{-1, 0, -1}, cfg.Lights.Min)
	assert.Equal(t, DefaultConfig().Lights.Max, cfg.Lights.Max)
	assert.Equal(t, volume.NoiseRandom, cfg.Volume.Noise)
	assert.Equal(t, shading.ToneReinhard, cfg.Shading.ToneMap.Operator)
	assert.Equal(t, float32(1), cfg.Shading.ToneMap.Exposure)

	empty := DefaultConfig()
	require.NoError(t, empty.Overlay(nil))
	assert.Equal(t, DefaultConfig(), empty)
}

func TestOverlayRejectsUnknownKeys(t *testing.T) {
	cfg := DefaultConfig()
	assert.Error(t, cfg.Overlay([]byte("lihgts:\n  count: 3\n")))
}

func TestValidateJoinsEveryError(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Window.Width = 0
	cfg.Renderer = "raytraced"
	cfg.Cluster.XSlices = 0
	cfg.Volume.Heterogeneity = 2
	cfg.Shadow.Resolution = -1

	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{"window size", "unknown renderer", "slice counts", "heterogeneity", "shadow: resolution"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestHeadlessEveryNeedsVerb(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Headless.Enabled = true
	cfg.Headless.Every = 10
	cfg.Headless.Output = "out.png"
	assert.ErrorContains(t, cfg.Validate(), "%d verb")

	cfg.Headless.Output = "out_%d.png"
	assert.NoError(t, cfg.Validate())
}

func TestParseFlags(t *testing.T) {
	cfg, err := ParseFlags("test", []string{"-renderer", "forward+", "-lights", "7", "-exposure", "1.5", "-debug-view", "clusters"})
	require.NoError(t, err)
	assert.Equal(t, RendererClusteredForwardPlus, cfg.Renderer)
	assert.Equal(t, 7, cfg.Lights.Count)
	assert.Equal(t, float32(1.5), cfg.Shading.ToneMap.Exposure)
	assert.Equal(t, shading.DebugClusters, cfg.Shading.Debug)

	_, err = ParseFlags("test", []string{"-renderer", "raytraced"})
	assert.Error(t, err)
	_, err = ParseFlags("test", []string{"-tonemap", "sepia"})
	assert.Error(t, err)
}

func TestFlagsOverrideConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fog.yaml")
	require.NoError(t, os.WriteFile(path, []byte("renderer: forward\nlights:\n  count: 20\nvolume:\n  resolution: 32\n"), 0o644))

	cfg, err := ParseFlags("test", []string{"-config", path, "-lights", "5"})
	require.NoError(t, err)
	assert.Equal(t, RendererForward, cfg.Renderer, "from the file")
	assert.Equal(t, 5, cfg.Lights.Count, "flag wins over the file")
	assert.Equal(t, 32, cfg.Volume.Resolution)

	_, err = ParseFlags("test", []string{"-config", filepath.Join(t.TempDir(), "missing.yaml")})
	assert.Error(t, err)
}
