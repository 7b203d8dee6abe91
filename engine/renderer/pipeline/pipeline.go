package pipeline

import (
	"github.com/Carmen-Shannon/oxy-scene/engine/component"
	"github.com/Carmen-Shannon/oxy-scene/engine/renderer/shader"
)

// Key is the full description of a render or compute pipeline. Two equal keys always
// describe the same GPU pipeline, so Key is the cache key itself.
type Key struct {
	Shader component.Handle
	// Compute keys carry only the shader; every other field stays zero.
	Compute     bool
	Cull        component.CullMode
	FrontFace   component.FrontFace
	Topology    component.Topology
	Blend       component.BlendMode
	DepthTest   bool
	DepthWrite  bool
	SampleCount uint32
	ColorFormat component.TextureFormat
}

// NewKey combines a material's pipeline state with the properties of the pass target it
// is drawn into.
//
// Parameters:
//   - pso: the material-owned pipeline state
//   - samples: the sample count of the color target
//   - format: the color target format
//
// Returns:
//   - Key: the pipeline key
func NewKey(pso component.PipelineState, samples uint32, format component.TextureFormat) Key {
	return Key{
		Shader:      pso.Shader,
		Cull:        pso.Cull,
		FrontFace:   pso.FrontFace,
		Topology:    pso.Topology,
		Blend:       pso.Blend,
		DepthTest:   pso.DepthTest,
		DepthWrite:  pso.DepthWrite,
		SampleCount: samples,
		ColorFormat: format,
	}
}

// NewComputeKey returns the key of the compute pipeline of a shader.
func NewComputeKey(shader component.Handle) Key {
	return Key{Shader: shader, Compute: true}
}

// Valid reports whether k can be turned into a pipeline.
func (k Key) Valid() bool {
	if k.Shader == 0 {
		return false
	}
	if k.Compute {
		return true
	}
	return k.SampleCount != 0 && k.Topology.Valid()
}

// pipeline is the implementation of the Pipeline interface.
type pipeline struct {
	key        Key
	generation uint64
	reflection shader.Reflection

	// native is the backend pipeline object.
	native  any
	release func()
}

// Pipeline is a compiled render pipeline together with the reflection of the shader it
// was built from. The renderer uses the reflection to build matching bind groups.
type Pipeline interface {
	// Key returns the key this pipeline was built for.
	//
	// Returns:
	//   - Key: the pipeline key
	Key() Key

	// ShaderGeneration returns the generation of the shader record at build time.
	//
	// Returns:
	//   - uint64: the shader generation
	ShaderGeneration() uint64

	// Reflection returns the reflected layout of the pipeline's shader.
	//
	// Returns:
	//   - shader.Reflection: the shader reflection
	Reflection() shader.Reflection

	// Native returns the backend pipeline object. The caller is responsible for type
	// asserting it to the backend's type.
	//
	// Returns:
	//   - any: the backend pipeline object
	Native() any

	// Release releases the backend pipeline object.
	Release()
}

var _ Pipeline = &pipeline{}

// NewPipeline creates a Pipeline for key.
//
// Parameters:
//   - key: the key the pipeline is built for
//   - opts: variadic list of PipelineBuilderOption to configure the Pipeline
//
// Returns:
//   - Pipeline: the new Pipeline
func NewPipeline(key Key, opts ...PipelineBuilderOption) Pipeline {
	p := &pipeline{key: key}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *pipeline) Key() Key {
	return p.key
}

func (p *pipeline) ShaderGeneration() uint64 {
	return p.generation
}

func (p *pipeline) Reflection() shader.Reflection {
	return p.reflection
}

func (p *pipeline) Native() any {
	return p.native
}

func (p *pipeline) Release() {
	if p.release != nil {
		p.release()
		p.release = nil
	}
	p.native = nil
}
