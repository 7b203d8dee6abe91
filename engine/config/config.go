package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Window    WindowConfig    `toml:"window"`
	Render    RenderConfig    `toml:"render"`
	Engine    EngineConfig    `toml:"engine"`
	Scripting ScriptingConfig `toml:"scripting"`
	Assets    AssetsConfig    `toml:"assets"`
	Logging   LoggingConfig   `toml:"logging"`
}

type WindowConfig struct {
	Title  string `toml:"title"`
	Width  int    `toml:"width"`
	Height int    `toml:"height"`
}

type RenderConfig struct {
	Backend    string  `toml:"backend"` // "wgpu" or "headless"
	MSAA       int     `toml:"msaa"`    // 1, 4 or 8
	VSync      bool    `toml:"vsync"`
	FrameLimit float64 `toml:"frame_limit"` // frames per second, 0 = uncapped
	Debug      bool    `toml:"debug"`       // structural violations panic
	Software   bool    `toml:"software"`
}

type EngineConfig struct {
	TickRate        float64       `toml:"tick_rate"` // control updates per second
	Workers         int           `toml:"workers"`
	UpdateTimeout   time.Duration `toml:"update_timeout"`
	Profiling       bool          `toml:"profiling"`
	ProfileInterval time.Duration `toml:"profile_interval"`
}

type ScriptingConfig struct {
	Dir   string `toml:"dir"`
	Entry string `toml:"entry"`
}

type AssetsConfig struct {
	Dir               string `toml:"dir"`
	DecodeConcurrency int    `toml:"decode_concurrency"`
	SceneManifest     string `toml:"scene_manifest"`
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "console" or "json"
}

// Load reads a TOML file over the defaults. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := defaults()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Render.Backend {
	case "wgpu", "headless":
	default:
		return fmt.Errorf("render.backend must be wgpu or headless, got %q", c.Render.Backend)
	}
	switch c.Render.MSAA {
	case 1, 4, 8:
	default:
		return fmt.Errorf("render.msaa must be 1, 4 or 8, got %d", c.Render.MSAA)
	}
	if c.Window.Width <= 0 || c.Window.Height <= 0 {
		return fmt.Errorf("window size must be positive, got %dx%d", c.Window.Width, c.Window.Height)
	}
	return nil
}

func defaults() *Config {
	return &Config{
		Window: WindowConfig{
			Title:  "oxy-scene",
			Width:  1280,
			Height: 720,
		},
		Render: RenderConfig{
			Backend: "wgpu",
			MSAA:    4,
			VSync:   true,
		},
		Engine: EngineConfig{
			TickRate:        60,
			Workers:         4,
			UpdateTimeout:   100 * time.Millisecond,
			ProfileInterval: time.Second,
		},
		Scripting: ScriptingConfig{
			Dir:   "scripts",
			Entry: "main.lua",
		},
		Assets: AssetsConfig{
			Dir:               "assets",
			DecodeConcurrency: 4,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}
