package renderer

import (
	"github.com/Carmen-Shannon/oxy-scene/common"
	"github.com/Carmen-Shannon/oxy-scene/engine/component"
	"github.com/Carmen-Shannon/oxy-scene/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-scene/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-scene/engine/renderer/shader"
)

// RendererBackendType identifies the GPU backend implementation used by the Renderer.
type RendererBackendType int

const (
	// BackendTypeWGPU selects the WebGPU-based rendering backend.
	BackendTypeWGPU RendererBackendType = iota

	// BackendTypeHeadless selects the recording backend that talks to no GPU.
	BackendTypeHeadless
)

// ParseBackendType maps a configuration name to a backend type. Unknown names select WGPU.
func ParseBackendType(name string) RendererBackendType {
	if name == "headless" {
		return BackendTypeHeadless
	}
	return BackendTypeWGPU
}

// PresentMode controls how rendered frames are presented to the display surface.
type PresentMode int

const (
	// PresentModeVSync waits for the next vertical blank before presenting, capping frame rate
	// to the monitor's refresh rate. Eliminates tearing.
	PresentModeVSync PresentMode = iota

	// PresentModeUncapped presents frames immediately without waiting for vertical blank.
	// May cause screen tearing but provides the lowest latency.
	PresentModeUncapped
)

// MSAASampleCount controls the number of samples used for multisample anti-aliasing (MSAA)
// of the window surface. WebGPU guarantees support for 1 (off) and 4; higher values are
// adapter-dependent. Passes into target textures pick their own count.
type MSAASampleCount uint32

const (
	// MSAAOff disables multisample anti-aliasing (sample count 1).
	MSAAOff MSAASampleCount = 1

	// MSAA4x enables 4× multisample anti-aliasing. This is the default.
	MSAA4x MSAASampleCount = 4

	// MSAA8x enables 8× multisample anti-aliasing. Adapter-dependent.
	MSAA8x MSAASampleCount = 8
)

// Resource is a backend GPU object: a buffer, texture, sampler, pipeline or bind group.
type Resource = bind_group_provider.Resource

// BufferKind selects the usage a backend buffer is created with.
type BufferKind uint8

const (
	BufferVertex BufferKind = iota
	BufferIndex
	BufferUniform
	BufferStorage
)

// bufferKindFor maps a store buffer's usage to a backend buffer kind.
func bufferKindFor(u component.BufferUsage) BufferKind {
	switch u {
	case component.BufferUsageUniform:
		return BufferUniform
	case component.BufferUsageVertex:
		return BufferVertex
	case component.BufferUsageIndex:
		return BufferIndex
	default:
		return BufferStorage
	}
}

// BindEntry is one entry of a bind group. Exactly one resource field is set.
type BindEntry struct {
	Binding uint32
	Buffer  Resource
	Texture Resource
	Sampler Resource
}

// PassTarget describes where a render pass draws.
type PassTarget struct {
	// Texture is the color target; nil targets the window surface.
	Texture Resource
	Width   uint32
	Height  uint32
	// SampleCount above 1 on a texture target draws into a multisampled attachment that
	// is resolved into Texture when the pass ends. Surface passes ignore it.
	SampleCount uint32
	// Clear clears color and depth on load; otherwise the previous contents are kept.
	Clear      bool
	ClearColor common.Color
}

// DrawCall is one instanced draw within a pass.
type DrawCall struct {
	Pipeline pipeline.Pipeline
	// BindGroups are bound at their index; nil entries are skipped.
	BindGroups []Resource
	// VertexBuffers are bound to slots in the order of the pipeline's vertex inputs.
	VertexBuffers []Resource
	IndexBuffer   Resource
	// Count is the index count for indexed draws and the vertex count otherwise.
	Count     uint32
	Instances uint32
}

// ComputeCall is one dispatch of a compute pipeline.
type ComputeCall struct {
	Pipeline pipeline.Pipeline
	// BindGroups are bound at their index; nil entries are skipped.
	BindGroups []Resource
	Workgroups [3]uint32
}

// RendererBackend is the GPU API the Renderer drives. Every method is called from the
// render goroutine only.
type RendererBackend interface {
	// ConfigureSurface (re)creates the surface and its depth and MSAA attachments.
	//
	// Parameters:
	//   - width: the surface width in pixels
	//   - height: the surface height in pixels
	ConfigureSurface(width, height int)

	// SurfaceSize returns the configured surface size in pixels.
	SurfaceSize() (width, height uint32)

	// SetPresentMode sets the present mode; it takes effect on the next ConfigureSurface.
	SetPresentMode(mode PresentMode)

	// SampleCount returns the sample count of surface passes.
	SampleCount() uint32

	// CreateBuffer creates a zero-filled buffer.
	//
	// Parameters:
	//   - label: the debug label
	//   - kind: the buffer usage
	//   - size: the size in bytes, rounded up to 4 by the backend
	//
	// Returns:
	//   - Resource: the buffer
	//   - error: an error if creation fails
	CreateBuffer(label string, kind BufferKind, size uint64) (Resource, error)

	// WriteBuffer queues a write into a buffer created by CreateBuffer.
	WriteBuffer(buf Resource, offset uint64, data []byte)

	// CreateTexture creates a sampled texture that can also be rendered into.
	//
	// Parameters:
	//   - label: the debug label
	//   - desc: the texture description
	//
	// Returns:
	//   - Resource: the texture
	//   - error: an error if creation fails
	CreateTexture(label string, desc component.TextureDesc) (Resource, error)

	// WriteTexture queues a write into a region of a texture created by CreateTexture.
	WriteTexture(tex Resource, desc component.TextureDesc, region component.TextureWriteDesc, data []byte)

	// CreateSampler creates a sampler.
	//
	// Parameters:
	//   - cfg: the sampler configuration
	//   - comparison: create a depth comparison sampler
	//
	// Returns:
	//   - Resource: the sampler
	//   - error: an error if creation fails
	CreateSampler(cfg component.SamplerConfig, comparison bool) (Resource, error)

	// CreatePipeline compiles the shader record and builds a render pipeline for key,
	// with bind group layouts taken from the reflection.
	//
	// Parameters:
	//   - key: the pipeline key
	//   - src: the shader record
	//   - refl: the reflection of src
	//
	// Returns:
	//   - Resource: the pipeline
	//   - error: an error if compilation or creation fails
	CreatePipeline(key pipeline.Key, src *component.Shader, refl shader.Reflection) (Resource, error)

	// CreateComputePipeline compiles the compute stage of the shader record.
	//
	// Parameters:
	//   - key: the compute pipeline key
	//   - src: the shader record
	//   - refl: the compute reflection of src
	//
	// Returns:
	//   - Resource: the pipeline
	//   - error: an error if compilation or creation fails
	CreateComputePipeline(key pipeline.Key, src *component.Shader, refl shader.Reflection) (Resource, error)

	// CreateBindGroup creates a bind group for group index group of p.
	//
	// Parameters:
	//   - p: the pipeline whose layout the group must match
	//   - group: the group index
	//   - entries: one entry per reflected binding of the group
	//
	// Returns:
	//   - Resource: the bind group
	//   - error: an error if creation fails
	CreateBindGroup(p pipeline.Pipeline, group uint32, entries []BindEntry) (Resource, error)

	// BeginFrame acquires the surface texture and a command encoder.
	//
	// Returns:
	//   - error: an error if the surface texture could not be acquired
	BeginFrame() error

	// BeginPass starts a render pass into target.
	BeginPass(target PassTarget) error

	// Draw encodes one draw call in the current pass.
	Draw(call DrawCall)

	// EndPass ends the current render pass.
	EndPass()

	// Dispatch encodes a compute pass holding one dispatch. It must not be called
	// between BeginPass and EndPass.
	Dispatch(call ComputeCall)

	// EndFrame submits the frame's command buffer.
	EndFrame()

	// Present presents the surface and releases the surface texture.
	Present()

	// Release releases every object the backend owns directly.
	Release()
}
