package engine

import (
	"github.com/Carmen-Shannon/oxy-scene/engine/command"
	"github.com/Carmen-Shannon/oxy-scene/engine/profiler"
	"go.uber.org/zap"
)

// ContextBuilderOption is a functional option applied to a context during construction via NewContext.
type ContextBuilderOption func(*engineContext)

// WithContextLogger sets the logger shared by the store, hierarchy, index, commands and renderer.
func WithContextLogger(logger *zap.Logger) ContextBuilderOption {
	return func(c *engineContext) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithWorkers sets the number of workers the scene index rebuilds instance data with.
func WithWorkers(n int) ContextBuilderOption {
	return func(c *engineContext) {
		if n > 0 {
			c.workers = n
		}
	}
}

// WithDebug makes structural violations in commands panic instead of being dropped.
func WithDebug(debug bool) ContextBuilderOption {
	return func(c *engineContext) {
		c.debug = debug
	}
}

// WithRenderer sets how the renderer is created once the store and index exist.
//
// Parameters:
//   - f: the renderer factory
//
// Returns:
//   - ContextBuilderOption: a function that applies the renderer option to a context
func WithRenderer(f RendererFactory) ContextBuilderOption {
	return func(c *engineContext) {
		if f != nil {
			c.newRenderer = f
		}
	}
}

// WithContextProfiler ticks p at the end of every frame.
func WithContextProfiler(p *profiler.Profiler) ContextBuilderOption {
	return func(c *engineContext) {
		c.profiler = p
	}
}

// WithFrameSync releases the control side through s as soon as the queue is swapped.
func WithFrameSync(s *FrameSync) ContextBuilderOption {
	return func(c *engineContext) {
		c.sync = s
	}
}

// WithFrameSource sets where video and webcam frames come from.
func WithFrameSource(src FrameSource) ContextBuilderOption {
	return func(c *engineContext) {
		c.sources = src
	}
}

// WithImageLoader sets the decoder texture load commands use.
func WithImageLoader(l command.ImageLoader) ContextBuilderOption {
	return func(c *engineContext) {
		c.images = l
	}
}
