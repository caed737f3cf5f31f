package main

import (
	"errors"
	"flag"
	"os"
	"runtime"

	"github.com/gekko3d/clusterfog"
	"github.com/gekko3d/clusterfog/clusterrt/rt/app"
	"github.com/gekko3d/clusterfog/clusterrt/rt/gpu/soft"
	"github.com/gekko3d/clusterfog/clusterrt/rt/present"

	"github.com/go-gl/glfw/v3.3/glfw"
)

func init() {
	runtime.LockOSThread()
}

func main() {
	cfg, err := clusterfog.ParseFlags("clusterfog", os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	log := clusterfog.NewDefaultLogger("clusterfog", cfg.Debug)
	if err != nil {
		log.Errorf("%v", err)
		os.Exit(2)
	}

	dev := soft.New(soft.Options{Workers: cfg.Workers})
	defer dev.Destroy()

	if cfg.Headless.Enabled {
		err = runHeadless(cfg, dev, log)
	} else {
		err = runWindowed(cfg, dev, log)
	}
	if err != nil {
		log.Errorf("%v", err)
		dev.Destroy()
		os.Exit(1)
	}
}

func runWindowed(cfg clusterfog.Config, dev *soft.Device, log clusterfog.Logger) error {
	if err := glfw.Init(); err != nil {
		return err
	}
	defer glfw.Terminate()

	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	window, err := glfw.CreateWindow(cfg.Window.Width, cfg.Window.Height, cfg.Window.Title, nil, nil)
	if err != nil {
		return err
	}
	defer window.Destroy()

	presenter, err := present.New(window, log)
	if err != nil {
		return err
	}
	defer presenter.Release()

	// render at framebuffer resolution, which differs from the window size
	// on high-DPI displays
	cfg.Window.Width, cfg.Window.Height = window.GetFramebufferSize()
	application, err := app.New(cfg, dev, log)
	if err != nil {
		return err
	}
	defer application.Release()

	window.SetFramebufferSizeCallback(func(w *glfw.Window, width, height int) {
		presenter.Resize(width, height)
		application.Resize(width, height)
	})

	window.SetKeyCallback(func(w *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
		if action != glfw.Press {
			return
		}
		var err error
		switch key {
		case glfw.KeyEscape:
			w.SetShouldClose(true)
		case glfw.Key1:
			err = application.SetRenderer(clusterfog.RendererForward)
		case glfw.Key2:
			err = application.SetRenderer(clusterfog.RendererClusteredForwardPlus)
		case glfw.Key3:
			err = application.SetRenderer(clusterfog.RendererClusteredDeferred)
		case glfw.KeyTab:
			err = application.NextRenderer()
		case glfw.KeyD:
			log.Infof("debug view %s", application.CycleDebugView())
		case glfw.KeyH:
			application.Config.HUD = !application.Config.HUD
		case glfw.KeyF1:
			log.SetDebug(!log.DebugEnabled())
		}
		if err != nil {
			log.Warnf("%v", err)
		}
	})

	last := glfw.GetTime()
	for !window.ShouldClose() {
		glfw.PollEvents()

		now := glfw.GetTime()
		dt := now - last
		last = now

		if err := application.Frame(dt); err != nil {
			return err
		}
		img, err := application.Snapshot(0, 0)
		if err != nil {
			return err
		}
		if err := presenter.Present(img); err != nil {
			log.Warnf("%v", err)
		}
	}
	return nil
}
