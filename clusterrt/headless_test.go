package main

import (
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/gekko3d/clusterfog"
	"github.com/gekko3d/clusterfog/clusterrt/rt/cluster"
	"github.com/gekko3d/clusterfog/clusterrt/rt/gpu/soft"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func smallConfig(dir string) clusterfog.Config {
	cfg := clusterfog.DefaultConfig()
	cfg.Window.Width, cfg.Window.Height = 24, 16
	cfg.Lights.Count = 3
	cfg.Cluster = cluster.Config{XSlices: 3, YSlices: 3, ZSlices: 3, MaxLightsPerCluster: 4}
	cfg.Shadow.Resolution = 32
	cfg.Volume.Resolution = 4
	cfg.Volume.Integrator.Steps = 4
	cfg.Scene.PillarCount = 1
	cfg.Scene.Crates = 0
	cfg.Scene.MapSize = 2
	cfg.HUD = false
	cfg.Headless = clusterfog.HeadlessConfig{
		Enabled: true,
		Frames:  4,
		Output:  filepath.Join(dir, "out", "frame.png"),
	}
	return cfg
}

func TestHeadlessWritesLastFrame(t *testing.T) {
	dir := t.TempDir()
	cfg := smallConfig(dir)
	cfg.Headless.OutputWidth, cfg.Headless.OutputHeight = 48, 32

	dev := soft.New(soft.Options{})
	defer dev.Destroy()
	require.NoError(t, runHeadless(cfg, dev, nil))

	f, err := os.Open(cfg.Headless.Output)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, 48, img.Bounds().Dx())
	assert.Equal(t, 32, img.Bounds().Dy())
	assert.Equal(t, 0, dev.Live())
}

func TestHeadlessWritesEveryNthFrame(t *testing.T) {
	dir := t.TempDir()
	cfg := smallConfig(dir)
	cfg.Headless.Every = 2
	cfg.Headless.Output = filepath.Join(dir, "f_%d.png")
	cfg.Renderer = clusterfog.RendererForward

	dev := soft.New(soft.Options{})
	defer dev.Destroy()
	require.NoError(t, runHeadless(cfg, dev, nil))

	for _, name := range []string{"f_2.png", "f_4.png"} {
		assert.FileExists(t, filepath.Join(dir, name))
	}
	assert.NoFileExists(t, filepath.Join(dir, "f_1.png"))
	assert.NoFileExists(t, filepath.Join(dir, "f_3.png"))
}
