package engine

import (
	"time"

	"github.com/Carmen-Shannon/oxy-scene/engine/window"
	"go.uber.org/zap"
)

// EngineBuilderOption is a functional option applied to an engine during construction via NewEngine.
type EngineBuilderOption func(*engine)

// WithLogger sets the engine logger. It is shared with the context, the control client and the profiler.
//
// Parameters:
//   - logger: the logger; nil keeps the no-op logger
//
// Returns:
//   - EngineBuilderOption: a function that applies the logger option to an engine
func WithLogger(logger *zap.Logger) EngineBuilderOption {
	return func(e *engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithProfiling enables or disables profiler reports.
//
// Parameters:
//   - enabled: true to log frame statistics, false to disable (default)
//
// Returns:
//   - EngineBuilderOption: a function that applies the profiling option to an engine
func WithProfiling(enabled bool) EngineBuilderOption {
	return func(e *engine) {
		e.profilingEnabled = enabled
	}
}

// WithProfilerInterval sets how often profiler reports are logged.
func WithProfilerInterval(d time.Duration) EngineBuilderOption {
	return func(e *engine) {
		if d > 0 {
			e.profilerInterval = d
		}
	}
}

// WithTickRate sets the control tick rate in updates per second.
//
// Parameters:
//   - fps: target updates per second (defaults to 60 if <= 0)
//
// Returns:
//   - EngineBuilderOption: a function that applies the tick rate option to an engine
func WithTickRate(fps float64) EngineBuilderOption {
	return func(e *engine) {
		if fps <= 0 {
			fps = 60
		}
		e.engineTickRate = time.Duration(float64(time.Second) / fps)
	}
}

// WithUpdateTimeout sets how long the render goroutine waits for a control update before
// drawing anyway.
//
// Parameters:
//   - d: the wait; values <= 0 never wait
//
// Returns:
//   - EngineBuilderOption: a function that applies the timeout option to an engine
func WithUpdateTimeout(d time.Duration) EngineBuilderOption {
	return func(e *engine) {
		e.updateTimeout = d
	}
}

// WithWindow sets the window the engine presents to and resizes with.
//
// Parameters:
//   - w: the window
//
// Returns:
//   - EngineBuilderOption: a function that applies the window option to an engine
func WithWindow(w window.Window) EngineBuilderOption {
	return func(e *engine) {
		e.window = w
	}
}

// WithContextOptions passes options through to NewContext.
//
// Parameters:
//   - options: the context options
//
// Returns:
//   - EngineBuilderOption: a function that applies the options to an engine
func WithContextOptions(options ...ContextBuilderOption) EngineBuilderOption {
	return func(e *engine) {
		e.ctxOptions = append(e.ctxOptions, options...)
	}
}

// WithRenderFrameLimit sets an optional render frame rate cap in frames per second.
//
// Parameters:
//   - fps: maximum render frames per second (0 = uncapped)
//
// Returns:
//   - EngineBuilderOption: a function that applies the frame limit option to an engine
func WithRenderFrameLimit(fps float64) EngineBuilderOption {
	return func(e *engine) {
		if fps <= 0 {
			e.renderFrameLimit = 0
			return
		}
		e.renderFrameLimit = time.Duration(float64(time.Second) / fps)
	}
}
