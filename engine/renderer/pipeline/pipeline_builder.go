package pipeline

import (
	"github.com/Carmen-Shannon/oxy-scene/engine/renderer/shader"
	"go.uber.org/zap"
)

// PipelineBuilderOption is a functional option used to configure a Pipeline during construction.
type PipelineBuilderOption func(*pipeline)

// WithNative sets the backend pipeline object and the function that releases it.
//
// Parameters:
//   - native: the backend pipeline object
//   - release: called once by Pipeline.Release, may be nil
//
// Returns:
//   - PipelineBuilderOption: a function that sets the backend object for this pipeline
func WithNative(native any, release func()) PipelineBuilderOption {
	return func(p *pipeline) {
		p.native = native
		p.release = release
	}
}

// WithReflection sets the reflected layout of the pipeline's shader.
//
// Parameters:
//   - r: the shader reflection
//
// Returns:
//   - PipelineBuilderOption: a function that sets the reflection for this pipeline
func WithReflection(r shader.Reflection) PipelineBuilderOption {
	return func(p *pipeline) {
		p.reflection = r
	}
}

// WithShaderGeneration records the generation of the shader record the pipeline was built from.
//
// Parameters:
//   - gen: the shader generation
//
// Returns:
//   - PipelineBuilderOption: a function that sets the shader generation for this pipeline
func WithShaderGeneration(gen uint64) PipelineBuilderOption {
	return func(p *pipeline) {
		p.generation = gen
	}
}

// CacheBuilderOption is a functional option used to configure a Cache during construction.
type CacheBuilderOption func(*cache)

// WithLogger sets the logger used to report pipeline builds and evictions.
//
// Parameters:
//   - logger: the zap logger to use
//
// Returns:
//   - CacheBuilderOption: a function that sets the logger for this cache
func WithLogger(logger *zap.Logger) CacheBuilderOption {
	return func(c *cache) {
		if logger != nil {
			c.logger = logger
		}
	}
}
