package component

// BindingKind tags which payload a Binding carries.
type BindingKind uint8

const (
	BindingEmpty BindingKind = iota
	BindingUniform
	BindingStorage
	BindingSampler
	BindingTexture
	BindingStorageTexture
	// BindingBuffer references a Buffer record as a storage buffer.
	BindingBuffer
)

func (k BindingKind) String() string {
	switch k {
	case BindingEmpty:
		return "empty"
	case BindingUniform:
		return "uniform"
	case BindingStorage:
		return "storage"
	case BindingSampler:
		return "sampler"
	case BindingTexture:
		return "texture"
	case BindingStorageTexture:
		return "storage_texture"
	case BindingBuffer:
		return "buffer"
	default:
		return "unknown"
	}
}

// AddressMode is the sampler wrap mode.
type AddressMode uint8

const (
	AddressRepeat AddressMode = iota
	AddressClampToEdge
	AddressMirrorRepeat
)

// FilterMode is the sampler filter.
type FilterMode uint8

const (
	FilterLinear FilterMode = iota
	FilterNearest
)

// SamplerConfig is a comparable sampler description, usable as a cache key.
type SamplerConfig struct {
	AddressU, AddressV, AddressW AddressMode
	MagFilter, MinFilter         FilterMode
	MipFilter                    FilterMode
}

// Binding is one material binding slot. The payload is only reachable through the
// accessor matching its kind.
type Binding struct {
	kind    BindingKind
	data    []byte
	sampler SamplerConfig
	ref     Handle
}

// UniformBinding binds a copy of data as a uniform buffer.
func UniformBinding(data []byte) Binding {
	return Binding{kind: BindingUniform, data: append([]byte(nil), data...)}
}

// StorageBinding binds a copy of data as a read-only storage buffer.
func StorageBinding(data []byte) Binding {
	return Binding{kind: BindingStorage, data: append([]byte(nil), data...)}
}

// SamplerBinding binds a sampler.
func SamplerBinding(cfg SamplerConfig) Binding {
	return Binding{kind: BindingSampler, sampler: cfg}
}

// TextureBinding binds a Texture record for sampling. A zero handle binds the white fallback.
func TextureBinding(texture Handle) Binding {
	return Binding{kind: BindingTexture, ref: texture}
}

// StorageTextureBinding binds a Texture record as a storage texture.
func StorageTextureBinding(texture Handle) Binding {
	return Binding{kind: BindingStorageTexture, ref: texture}
}

// BufferBinding binds a Buffer record.
func BufferBinding(buffer Handle) Binding {
	return Binding{kind: BindingBuffer, ref: buffer}
}

// Kind returns the binding's tag.
func (b Binding) Kind() BindingKind { return b.kind }

// Bytes returns the buffer contents of a uniform or storage binding.
func (b Binding) Bytes() ([]byte, bool) {
	if b.kind != BindingUniform && b.kind != BindingStorage {
		return nil, false
	}
	return b.data, true
}

// Sampler returns the sampler configuration of a sampler binding.
func (b Binding) Sampler() (SamplerConfig, bool) {
	if b.kind != BindingSampler {
		return SamplerConfig{}, false
	}
	return b.sampler, true
}

// Texture returns the referenced texture of a texture or storage texture binding.
func (b Binding) Texture() (Handle, bool) {
	if b.kind != BindingTexture && b.kind != BindingStorageTexture {
		return 0, false
	}
	return b.ref, true
}

// Buffer returns the referenced buffer of a buffer binding.
func (b Binding) Buffer() (Handle, bool) {
	if b.kind != BindingBuffer {
		return 0, false
	}
	return b.ref, true
}

// MaxMaterialBindings is the number of binding slots in a material's bind group.
const MaxMaterialBindings = 16

// CullMode selects which faces are discarded.
type CullMode uint8

const (
	CullNone CullMode = iota
	CullFront
	CullBack
)

// Topology is the primitive assembly mode.
type Topology uint8

const (
	TopologyTriangleList Topology = iota
	TopologyTriangleStrip
	TopologyLineList
	TopologyLineStrip
	TopologyPointList

	topologyCount
)

// Valid reports whether t names a known topology.
func (t Topology) Valid() bool { return t < topologyCount }

// FrontFace is the winding order of front-facing triangles.
type FrontFace uint8

const (
	FrontCCW FrontFace = iota
	FrontCW
)

// BlendMode selects color blending.
type BlendMode uint8

const (
	BlendNone BlendMode = iota
	BlendAlpha
	BlendAdditive
)

// PipelineState is the material-owned part of a pipeline key.
type PipelineState struct {
	Shader     Handle
	Cull       CullMode
	FrontFace  FrontFace
	Topology   Topology
	Blend      BlendMode
	DepthTest  bool
	DepthWrite bool
}

// DefaultPipelineState returns opaque, depth-tested triangle state for shader.
func DefaultPipelineState(shader Handle) PipelineState {
	return PipelineState{
		Shader:     shader,
		Cull:       CullNone,
		FrontFace:  FrontCCW,
		Topology:   TopologyTriangleList,
		Blend:      BlendNone,
		DepthTest:  true,
		DepthWrite: true,
	}
}

// Material pairs pipeline state with its bind group contents.
type Material struct {
	Base

	PSO      PipelineState
	Bindings [MaxMaterialBindings]Binding
	// Revision is bumped whenever a binding changes so cached bind groups can be rebuilt.
	Revision uint64
}

func (m *Material) setDefaults() {
	m.PSO = DefaultPipelineState(0)
	m.Revision = 1
}

// SetBinding replaces one binding slot and bumps the revision.
func (m *Material) SetBinding(location int, b Binding) {
	m.Bindings[location] = b
	m.Revision++
}
