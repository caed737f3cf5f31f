package main

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/gekko3d/clusterfog"
	"github.com/gekko3d/clusterfog/clusterrt/rt/app"
	"github.com/gekko3d/clusterfog/clusterrt/rt/gpu"
)

// headlessStep is the simulated frame time; headless output is independent
// of how fast frames render.
const headlessStep = 1.0 / 60

// runHeadless renders cfg.Headless.Frames frames and writes PNGs. With Every
// set, every n-th frame is written to Output formatted with the frame
// number; otherwise only the last frame is.
func runHeadless(cfg clusterfog.Config, dev gpu.Device, log clusterfog.Logger) error {
	log = clusterfog.OrNop(log)
	application, err := app.New(cfg, dev, log)
	if err != nil {
		return err
	}
	defer application.Release()

	h := cfg.Headless
	for i := 1; i <= h.Frames; i++ {
		if err := application.Frame(headlessStep); err != nil {
			return err
		}
		last := i == h.Frames
		if !(h.Every > 0 && i%h.Every == 0) && !(h.Every == 0 && last) {
			continue
		}
		img, err := application.Snapshot(h.OutputWidth, h.OutputHeight)
		if err != nil {
			return err
		}
		path := h.Output
		if strings.Contains(path, "%d") {
			path = fmt.Sprintf(path, i)
		}
		if err := writePNG(path, img); err != nil {
			return err
		}
		log.Infof("frame %d -> %s", i, path)
	}
	log.Infof("%d frames, %s", h.Frames, strings.Join(application.Profiler.Lines(), ", "))
	return nil
}

func writePNG(path string, img image.Image) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return f.Close()
}
