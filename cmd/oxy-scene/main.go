package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/Carmen-Shannon/oxy-scene/engine"
	"github.com/Carmen-Shannon/oxy-scene/engine/assets"
	"github.com/Carmen-Shannon/oxy-scene/engine/component"
	"github.com/Carmen-Shannon/oxy-scene/engine/config"
	"github.com/Carmen-Shannon/oxy-scene/engine/renderer"
	"github.com/Carmen-Shannon/oxy-scene/engine/scene"
	"github.com/Carmen-Shannon/oxy-scene/engine/scripting"
	"github.com/Carmen-Shannon/oxy-scene/engine/window"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to a TOML config file")
	manifestPath := flag.String("scene", "", "YAML scene manifest, overrides assets.scene_manifest")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *manifestPath != "" {
		cfg.Assets.SceneManifest = *manifestPath
	}

	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	var win window.Window
	if cfg.Render.Backend == "wgpu" {
		win, err = window.NewWindow(
			window.WithTitle(cfg.Window.Title),
			window.WithWidth(cfg.Window.Width),
			window.WithHeight(cfg.Window.Height),
		)
		if err != nil {
			return err
		}
	}

	images := assets.NewLoader(
		assets.WithDir(cfg.Assets.Dir),
		assets.WithConcurrency(cfg.Assets.DecodeConcurrency),
		assets.WithLogger(log),
	)

	options := []engine.EngineBuilderOption{
		engine.WithLogger(log),
		engine.WithTickRate(cfg.Engine.TickRate),
		engine.WithUpdateTimeout(cfg.Engine.UpdateTimeout),
		engine.WithRenderFrameLimit(cfg.Render.FrameLimit),
		engine.WithProfiling(cfg.Engine.Profiling),
		engine.WithProfilerInterval(cfg.Engine.ProfileInterval),
		engine.WithContextOptions(
			engine.WithRenderer(rendererFactory(cfg, win)),
			engine.WithWorkers(cfg.Engine.Workers),
			engine.WithDebug(cfg.Render.Debug),
			engine.WithImageLoader(images),
		),
	}
	if win != nil {
		options = append(options, engine.WithWindow(win))
	}
	e, err := engine.NewEngine(options...)
	if err != nil {
		if win != nil {
			_ = win.Close()
		}
		return err
	}

	if cfg.Assets.SceneManifest != "" {
		m, err := assets.LoadManifest(cfg.Assets.SceneManifest)
		if err != nil {
			return err
		}
		names, err := assets.Replay(e.Client(), m)
		if err != nil {
			return fmt.Errorf("replay %s: %w", cfg.Assets.SceneManifest, err)
		}
		log.Info("scene manifest loaded", zap.String("path", cfg.Assets.SceneManifest), zap.Int("records", len(names)))
	}

	scripts := scripting.NewEngine(e.Client(), scripting.WithLogger(log), scripting.WithScriptDir(cfg.Scripting.Dir))
	defer scripts.Close()
	if err := loadEntry(scripts, cfg.Scripting, log); err != nil {
		return err
	}

	e.SetTickCallback(func(dt float32) {
		if err := scripts.Update(dt); err != nil {
			log.Error("script update failed", zap.Error(err))
		}
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		e.Quit()
	}()

	log.Info("engine started",
		zap.String("backend", cfg.Render.Backend),
		zap.Float64("tick_rate", cfg.Engine.TickRate),
		zap.Int("workers", cfg.Engine.Workers),
	)
	e.Run()
	stop()
	log.Info("engine stopped", zap.Uint64("frames", e.Frames()))
	return nil
}

// loadEntry runs the entry script. A missing entry script is not an error so a manifest
// can drive the scene on its own.
func loadEntry(scripts *scripting.Engine, cfg config.ScriptingConfig, log *zap.Logger) error {
	if cfg.Entry == "" {
		return nil
	}
	path := cfg.Entry
	if cfg.Dir != "" && !filepath.IsAbs(path) {
		path = filepath.Join(cfg.Dir, path)
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		log.Warn("entry script not found", zap.String("path", path))
		return nil
	}
	return scripts.Load(cfg.Entry)
}

func rendererFactory(cfg *config.Config, win window.Window) engine.RendererFactory {
	return func(store component.Store, index scene.Index, log *zap.Logger) (renderer.Renderer, error) {
		present := renderer.PresentModeUncapped
		if cfg.Render.VSync {
			present = renderer.PresentModeVSync
		}
		var surface renderer.Surface
		if win != nil {
			surface = win
		}
		return renderer.NewRenderer(renderer.ParseBackendType(cfg.Render.Backend), surface, store, index,
			renderer.WithLogger(log),
			renderer.WithMSAA(renderer.MSAASampleCount(cfg.Render.MSAA)),
			renderer.WithPresentMode(present),
			renderer.WithForceSoftwareRenderer(cfg.Render.Software),
			renderer.WithSurfaceSize(cfg.Window.Width, cfg.Window.Height),
		)
	}
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
