package renderer

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/Carmen-Shannon/oxy-scene/engine/component"
	"github.com/Carmen-Shannon/oxy-scene/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-scene/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

// wgpuBuffer wraps a GPU buffer.
type wgpuBuffer struct {
	buf  *wgpu.Buffer
	size uint64
}

func (b *wgpuBuffer) Release() { b.buf.Release() }

// wgpuTexture wraps a GPU texture and its default view.
type wgpuTexture struct {
	tex  *wgpu.Texture
	view *wgpu.TextureView
	desc component.TextureDesc
}

func (t *wgpuTexture) Release() {
	t.view.Release()
	t.tex.Release()
}

// wgpuSampler wraps a GPU sampler.
type wgpuSampler struct {
	s *wgpu.Sampler
}

func (s *wgpuSampler) Release() { s.s.Release() }

// wgpuBindGroup wraps a GPU bind group.
type wgpuBindGroup struct {
	bg *wgpu.BindGroup
}

func (g *wgpuBindGroup) Release() { g.bg.Release() }

// wgpuPipeline wraps a render or compute pipeline with the layouts it was built from.
// Bind groups are created against groups[i].
type wgpuPipeline struct {
	pipeline *wgpu.RenderPipeline
	compute  *wgpu.ComputePipeline
	layout   *wgpu.PipelineLayout
	groups   []*wgpu.BindGroupLayout
	modules  []*wgpu.ShaderModule
}

func (p *wgpuPipeline) Release() {
	if p.pipeline != nil {
		p.pipeline.Release()
	}
	if p.compute != nil {
		p.compute.Release()
	}
	p.release()
}

// release frees the layouts and modules; it also cleans up after a failed build.
func (p *wgpuPipeline) release() {
	if p.layout != nil {
		p.layout.Release()
	}
	for _, g := range p.groups {
		if g != nil {
			g.Release()
		}
	}
	for _, m := range p.modules {
		m.Release()
	}
}

// depthKey identifies a cached depth attachment.
type depthKey struct {
	width, height, samples uint32
}

// msaaKey identifies a cached multisampled color attachment of a texture target.
type msaaKey struct {
	width, height, samples uint32
	format                 component.TextureFormat
}

// wgpuRendererBackend is the WebGPU implementation of RendererBackend.
type wgpuRendererBackend struct {
	mu *sync.Mutex

	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	surface  *wgpu.Surface
	device   *wgpu.Device
	queue    *wgpu.Queue

	surfaceFormat wgpu.TextureFormat
	presentMode   wgpu.PresentMode
	sampleCount   MSAASampleCount
	width, height uint32

	// msaaTexture is the multisampled color attachment resolved into the surface.
	msaaTexture     *wgpu.Texture
	msaaTextureView *wgpu.TextureView

	// depth holds one depth attachment per target size and sample count.
	depth map[depthKey]*wgpuTexture
	// targetMSAA holds the multisampled attachments of texture targets.
	targetMSAA map[msaaKey]*wgpuTexture

	frameEncoder *wgpu.CommandEncoder
	framePass    *wgpu.RenderPassEncoder
	frameSurface *wgpu.Texture
	frameView    *wgpu.TextureView
}

var _ RendererBackend = &wgpuRendererBackend{}

// newWGPURendererBackend creates the WebGPU device and surface. It locks the calling
// goroutine to its OS thread; every later call must come from the same goroutine.
//
// Parameters:
//   - surfaceDescriptor: the platform surface descriptor from the window
//   - forceFallbackAdapter: request a software adapter
//   - sampleCount: the MSAA sample count of the surface
//
// Returns:
//   - *wgpuRendererBackend: the backend
//   - error: an error if no adapter or device is available
func newWGPURendererBackend(surfaceDescriptor *wgpu.SurfaceDescriptor, forceFallbackAdapter bool, sampleCount MSAASampleCount) (*wgpuRendererBackend, error) {
	runtime.LockOSThread()
	w := &wgpuRendererBackend{
		mu:          &sync.Mutex{},
		instance:    wgpu.CreateInstance(nil),
		presentMode: wgpu.PresentModeFifo,
		sampleCount: max(sampleCount, MSAAOff),
		depth:       make(map[depthKey]*wgpuTexture),
		targetMSAA:  make(map[msaaKey]*wgpuTexture),
	}
	w.surface = w.instance.CreateSurface(surfaceDescriptor)

	a, err := w.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: forceFallbackAdapter,
		CompatibleSurface:    w.surface,
	})
	if err != nil {
		return nil, fmt.Errorf("renderer: request adapter: %w", err)
	}
	w.adapter = a

	d, err := a.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "Main Device",
		RequiredLimits: &wgpu.RequiredLimits{
			Limits: wgpu.DefaultLimits(),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("renderer: request device: %w", err)
	}
	w.device = d
	w.queue = d.GetQueue()

	return w, nil
}

func (b *wgpuRendererBackend) ConfigureSurface(width, height int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.width, b.height = uint32(max(width, 1)), uint32(max(height, 1))
	capabilities := b.surface.GetCapabilities(b.adapter)
	b.surfaceFormat = capabilities.Formats[0]

	b.surface.Configure(b.adapter, b.device, &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      b.surfaceFormat,
		Width:       b.width,
		Height:      b.height,
		PresentMode: b.presentMode,
		AlphaMode:   capabilities.AlphaModes[0],
	})

	if b.msaaTextureView != nil {
		b.msaaTextureView.Release()
		b.msaaTexture.Release()
		b.msaaTextureView, b.msaaTexture = nil, nil
	}
	if b.sampleCount > 1 {
		// The render pass draws into the MSAA texture; the resolved result is written to
		// the swapchain view as the ResolveTarget.
		tex, err := b.device.CreateTexture(&wgpu.TextureDescriptor{
			Label: "MSAA Texture",
			Size: wgpu.Extent3D{
				Width:              b.width,
				Height:             b.height,
				DepthOrArrayLayers: 1,
			},
			MipLevelCount: 1,
			SampleCount:   uint32(b.sampleCount),
			Dimension:     wgpu.TextureDimension2D,
			Format:        b.surfaceFormat,
			Usage:         wgpu.TextureUsageRenderAttachment,
		})
		if err != nil {
			panic(fmt.Sprintf("renderer: create msaa texture: %v", err))
		}
		view, err := tex.CreateView(nil)
		if err != nil {
			panic(fmt.Sprintf("renderer: create msaa view: %v", err))
		}
		b.msaaTexture, b.msaaTextureView = tex, view
	}

	// Depth attachments of the old size are never used again.
	for k, d := range b.depth {
		d.Release()
		delete(b.depth, k)
	}
	for k, t := range b.targetMSAA {
		t.Release()
		delete(b.targetMSAA, k)
	}
}

func (b *wgpuRendererBackend) SurfaceSize() (uint32, uint32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.width, b.height
}

func (b *wgpuRendererBackend) SetPresentMode(mode PresentMode) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch mode {
	case PresentModeUncapped:
		b.presentMode = wgpu.PresentModeImmediate
	default:
		b.presentMode = wgpu.PresentModeFifo
	}
}

func (b *wgpuRendererBackend) SampleCount() uint32 {
	return uint32(b.sampleCount)
}

func (b *wgpuRendererBackend) CreateBuffer(label string, kind BufferKind, size uint64) (Resource, error) {
	usage := wgpu.BufferUsageCopyDst
	switch kind {
	case BufferVertex:
		usage |= wgpu.BufferUsageVertex
	case BufferIndex:
		usage |= wgpu.BufferUsageIndex
	case BufferUniform:
		usage |= wgpu.BufferUsageUniform
	default:
		usage |= wgpu.BufferUsageStorage
	}
	size = max((size+3)&^3, 4)
	buf, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: label,
		Size:  size,
		Usage: usage,
	})
	if err != nil {
		return nil, fmt.Errorf("renderer: create buffer %q: %w", label, err)
	}
	return &wgpuBuffer{buf: buf, size: size}, nil
}

func (b *wgpuRendererBackend) WriteBuffer(buf Resource, offset uint64, data []byte) {
	if len(data) == 0 {
		return
	}
	// queue writes must be a multiple of 4 bytes
	if pad := len(data) % 4; pad != 0 {
		data = append(data[:len(data):len(data)], make([]byte, 4-pad)...)
	}
	b.queue.WriteBuffer(buf.(*wgpuBuffer).buf, offset, data)
}

// textureFormat maps a store texture format to the WebGPU format.
func (b *wgpuRendererBackend) textureFormat(f component.TextureFormat) wgpu.TextureFormat {
	switch f {
	case component.FormatRGBA8UnormSrgb:
		return wgpu.TextureFormatRGBA8UnormSrgb
	case component.FormatRGBA16Float:
		return wgpu.TextureFormatRGBA16Float
	case component.FormatRGBA32Float:
		return wgpu.TextureFormatRGBA32Float
	case component.FormatR32Float:
		return wgpu.TextureFormatR32Float
	case component.FormatSurface:
		return b.surfaceFormat
	default:
		return wgpu.TextureFormatRGBA8Unorm
	}
}

func (b *wgpuRendererBackend) CreateTexture(label string, desc component.TextureDesc) (Resource, error) {
	usage := wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst | wgpu.TextureUsageRenderAttachment
	if desc.Format != component.FormatRGBA8UnormSrgb {
		usage |= wgpu.TextureUsageStorageBinding
	}
	tex, err := b.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:     label,
		Usage:     usage,
		Dimension: wgpu.TextureDimension2D,
		Size: wgpu.Extent3D{
			Width:              desc.Width,
			Height:             desc.Height,
			DepthOrArrayLayers: max(desc.Depth, 1),
		},
		Format:        b.textureFormat(desc.Format),
		MipLevelCount: max(desc.Mips, 1),
		SampleCount:   1,
	})
	if err != nil {
		return nil, fmt.Errorf("renderer: create texture %q: %w", label, err)
	}
	var viewDesc *wgpu.TextureViewDescriptor
	if desc.Cube {
		viewDesc = &wgpu.TextureViewDescriptor{
			Label:           label + " cube",
			Format:          b.textureFormat(desc.Format),
			Dimension:       wgpu.TextureViewDimensionCube,
			MipLevelCount:   max(desc.Mips, 1),
			ArrayLayerCount: component.CubeFaces,
			Aspect:          wgpu.TextureAspectAll,
		}
	}
	view, err := tex.CreateView(viewDesc)
	if err != nil {
		tex.Release()
		return nil, fmt.Errorf("renderer: create texture view %q: %w", label, err)
	}
	return &wgpuTexture{tex: tex, view: view, desc: desc}, nil
}

func (b *wgpuRendererBackend) WriteTexture(tex Resource, desc component.TextureDesc, region component.TextureWriteDesc, data []byte) {
	t := tex.(*wgpuTexture)
	depth := max(region.Depth, 1)
	b.queue.WriteTexture(
		&wgpu.ImageCopyTexture{
			Texture:  t.tex,
			MipLevel: region.Mip,
			Origin:   wgpu.Origin3D{X: region.OffsetX, Y: region.OffsetY, Z: region.OffsetZ},
			Aspect:   wgpu.TextureAspectAll,
		},
		data,
		&wgpu.TextureDataLayout{
			Offset:       0,
			BytesPerRow:  region.Width * uint32(desc.Format.BytesPerTexel()),
			RowsPerImage: region.Height,
		},
		&wgpu.Extent3D{
			Width:              region.Width,
			Height:             region.Height,
			DepthOrArrayLayers: depth,
		},
	)
}

func addressMode(m component.AddressMode) wgpu.AddressMode {
	switch m {
	case component.AddressClampToEdge:
		return wgpu.AddressModeClampToEdge
	case component.AddressMirrorRepeat:
		return wgpu.AddressModeMirrorRepeat
	default:
		return wgpu.AddressModeRepeat
	}
}

func filterMode(m component.FilterMode) wgpu.FilterMode {
	if m == component.FilterNearest {
		return wgpu.FilterModeNearest
	}
	return wgpu.FilterModeLinear
}

func (b *wgpuRendererBackend) CreateSampler(cfg component.SamplerConfig, comparison bool) (Resource, error) {
	desc := &wgpu.SamplerDescriptor{
		Label:         "Sampler",
		AddressModeU:  addressMode(cfg.AddressU),
		AddressModeV:  addressMode(cfg.AddressV),
		AddressModeW:  addressMode(cfg.AddressW),
		MagFilter:     filterMode(cfg.MagFilter),
		MinFilter:     filterMode(cfg.MinFilter),
		MipmapFilter:  wgpu.MipmapFilterModeLinear,
		LodMinClamp:   0,
		LodMaxClamp:   32,
		MaxAnisotropy: 1,
	}
	if cfg.MipFilter == component.FilterNearest {
		desc.MipmapFilter = wgpu.MipmapFilterModeNearest
	}
	if comparison {
		desc.Compare = wgpu.CompareFunctionLess
	}
	s, err := b.device.CreateSampler(desc)
	if err != nil {
		return nil, fmt.Errorf("renderer: create sampler: %w", err)
	}
	return &wgpuSampler{s: s}, nil
}

// layoutEntry converts a reflected resource into a bind group layout entry.
func layoutEntry(res shader.Resource) wgpu.BindGroupLayoutEntry {
	var vis wgpu.ShaderStage
	if res.Visibility&shader.StageVertex != 0 {
		vis |= wgpu.ShaderStageVertex
	}
	if res.Visibility&shader.StageFragment != 0 {
		vis |= wgpu.ShaderStageFragment
	}
	if res.Visibility&shader.StageCompute != 0 {
		vis |= wgpu.ShaderStageCompute
	}
	entry := wgpu.BindGroupLayoutEntry{Binding: res.Binding, Visibility: vis}

	dims := map[shader.TextureDim]wgpu.TextureViewDimension{
		shader.Dim1D:        wgpu.TextureViewDimension1D,
		shader.Dim2D:        wgpu.TextureViewDimension2D,
		shader.Dim2DArray:   wgpu.TextureViewDimension2DArray,
		shader.Dim3D:        wgpu.TextureViewDimension3D,
		shader.DimCube:      wgpu.TextureViewDimensionCube,
		shader.DimCubeArray: wgpu.TextureViewDimensionCubeArray,
	}

	switch res.Type {
	case shader.ResourceUniform:
		entry.Buffer.Type = wgpu.BufferBindingTypeUniform
		entry.Buffer.MinBindingSize = res.Size
	case shader.ResourceReadOnlyStorage:
		entry.Buffer.Type = wgpu.BufferBindingTypeReadOnlyStorage
		entry.Buffer.MinBindingSize = res.Size
	case shader.ResourceStorage:
		entry.Buffer.Type = wgpu.BufferBindingTypeStorage
		entry.Buffer.MinBindingSize = res.Size
	case shader.ResourceSampler:
		entry.Sampler.Type = wgpu.SamplerBindingTypeFiltering
	case shader.ResourceComparisonSampler:
		entry.Sampler.Type = wgpu.SamplerBindingTypeComparison
	case shader.ResourceTexture, shader.ResourceDepthTexture:
		entry.Texture.ViewDimension = dims[res.Dim]
		entry.Texture.Multisampled = res.Multisampled
		switch res.SampleType {
		case shader.SampleSint:
			entry.Texture.SampleType = wgpu.TextureSampleTypeSint
		case shader.SampleUint:
			entry.Texture.SampleType = wgpu.TextureSampleTypeUint
		case shader.SampleDepth:
			entry.Texture.SampleType = wgpu.TextureSampleTypeDepth
		default:
			entry.Texture.SampleType = wgpu.TextureSampleTypeFloat
		}
	case shader.ResourceStorageTexture:
		entry.StorageTexture.ViewDimension = dims[res.Dim]
		entry.StorageTexture.Format = storageFormat(res.TexelFormat)
		switch res.Access {
		case shader.AccessRead:
			entry.StorageTexture.Access = wgpu.StorageTextureAccessReadOnly
		case shader.AccessReadWrite:
			entry.StorageTexture.Access = wgpu.StorageTextureAccessReadWrite
		default:
			entry.StorageTexture.Access = wgpu.StorageTextureAccessWriteOnly
		}
	}
	return entry
}

// storageFormat maps a WGSL texel format to the formats a store texture can have.
func storageFormat(texel string) wgpu.TextureFormat {
	switch texel {
	case "rgba16float":
		return wgpu.TextureFormatRGBA16Float
	case "rgba32float":
		return wgpu.TextureFormatRGBA32Float
	case "r32float":
		return wgpu.TextureFormatR32Float
	default:
		return wgpu.TextureFormatRGBA8Unorm
	}
}

var vertexFormats = [5]wgpu.VertexFormat{
	1: wgpu.VertexFormatFloat32,
	2: wgpu.VertexFormatFloat32x2,
	3: wgpu.VertexFormatFloat32x3,
	4: wgpu.VertexFormatFloat32x4,
}

func (b *wgpuRendererBackend) CreatePipeline(key pipeline.Key, src *component.Shader, refl shader.Reflection) (Resource, error) {
	out := &wgpuPipeline{}
	fail := func(err error) (Resource, error) {
		out.release()
		return nil, err
	}

	vs, err := b.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label: src.Name() + " vertex",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
			Code: src.VertexSource,
		},
	})
	if err != nil {
		return fail(fmt.Errorf("renderer: compile vertex stage: %w", err))
	}
	out.modules = append(out.modules, vs)
	fs := vs
	if src.FragmentSource != "" && src.FragmentSource != src.VertexSource {
		fs, err = b.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
			Label: src.Name() + " fragment",
			WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
				Code: src.FragmentSource,
			},
		})
		if err != nil {
			return fail(fmt.Errorf("renderer: compile fragment stage: %w", err))
		}
		out.modules = append(out.modules, fs)
	}

	if err := b.createLayouts(src.Name(), refl, out); err != nil {
		return fail(err)
	}

	// One non-interleaved buffer per vertex input, in location order.
	vertexLayouts := make([]wgpu.VertexBufferLayout, 0, len(refl.Inputs))
	for _, in := range refl.Inputs {
		n := min(max(in.Components, 1), 4)
		vertexLayouts = append(vertexLayouts, wgpu.VertexBufferLayout{
			ArrayStride: uint64(n * 4),
			StepMode:    wgpu.VertexStepModeVertex,
			Attributes: []wgpu.VertexAttribute{{
				Format:         vertexFormats[n],
				Offset:         0,
				ShaderLocation: uint32(in.Location),
			}},
		})
	}

	target := wgpu.ColorTargetState{
		Format:    b.textureFormat(key.ColorFormat),
		WriteMask: wgpu.ColorWriteMaskAll,
	}
	switch key.Blend {
	case component.BlendAlpha:
		target.Blend = &wgpu.BlendState{
			Color: wgpu.BlendComponent{
				SrcFactor: wgpu.BlendFactorSrcAlpha,
				DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
				Operation: wgpu.BlendOperationAdd,
			},
			Alpha: wgpu.BlendComponent{
				SrcFactor: wgpu.BlendFactorOne,
				DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
				Operation: wgpu.BlendOperationAdd,
			},
		}
	case component.BlendAdditive:
		add := wgpu.BlendComponent{
			SrcFactor: wgpu.BlendFactorOne,
			DstFactor: wgpu.BlendFactorOne,
			Operation: wgpu.BlendOperationAdd,
		}
		target.Blend = &wgpu.BlendState{Color: add, Alpha: add}
	}

	primitive := wgpu.PrimitiveState{
		Topology:  wgpu.PrimitiveTopologyTriangleList,
		FrontFace: wgpu.FrontFaceCCW,
		CullMode:  wgpu.CullModeNone,
	}
	switch key.Topology {
	case component.TopologyTriangleStrip:
		primitive.Topology = wgpu.PrimitiveTopologyTriangleStrip
		primitive.StripIndexFormat = wgpu.IndexFormatUint32
	case component.TopologyLineList:
		primitive.Topology = wgpu.PrimitiveTopologyLineList
	case component.TopologyLineStrip:
		primitive.Topology = wgpu.PrimitiveTopologyLineStrip
		primitive.StripIndexFormat = wgpu.IndexFormatUint32
	case component.TopologyPointList:
		primitive.Topology = wgpu.PrimitiveTopologyPointList
	}
	if key.FrontFace == component.FrontCW {
		primitive.FrontFace = wgpu.FrontFaceCW
	}
	switch key.Cull {
	case component.CullFront:
		primitive.CullMode = wgpu.CullModeFront
	case component.CullBack:
		primitive.CullMode = wgpu.CullModeBack
	}

	depthCompare := wgpu.CompareFunctionLess
	if !key.DepthTest {
		depthCompare = wgpu.CompareFunctionAlways
	}

	created, err := b.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  src.Name() + " Render Pipeline",
		Layout: out.layout,
		Vertex: wgpu.VertexState{
			Module:     vs,
			EntryPoint: src.VertexEntry,
			Buffers:    vertexLayouts,
		},
		Fragment: &wgpu.FragmentState{
			Module:     fs,
			EntryPoint: src.FragmentEntry,
			Targets:    []wgpu.ColorTargetState{target},
		},
		Primitive: primitive,
		Multisample: wgpu.MultisampleState{
			Count: key.SampleCount,
			Mask:  0xFFFFFFFF,
		},
		DepthStencil: &wgpu.DepthStencilState{
			Format:            wgpu.TextureFormatDepth24Plus,
			DepthWriteEnabled: key.DepthWrite,
			DepthCompare:      depthCompare,
			StencilFront: wgpu.StencilFaceState{
				Compare: wgpu.CompareFunctionAlways,
			},
			StencilBack: wgpu.StencilFaceState{
				Compare: wgpu.CompareFunctionAlways,
			},
		},
	})
	if err != nil {
		return fail(fmt.Errorf("renderer: create render pipeline: %w", err))
	}
	out.pipeline = created
	return out, nil
}

// createLayouts creates the bind group layouts and the pipeline layout of a reflection.
func (b *wgpuRendererBackend) createLayouts(label string, refl shader.Reflection, out *wgpuPipeline) error {
	out.groups = make([]*wgpu.BindGroupLayout, refl.GroupCount())
	for g := range out.groups {
		resources := refl.Group(uint32(g))
		entries := make([]wgpu.BindGroupLayoutEntry, len(resources))
		for i, res := range resources {
			entries[i] = layoutEntry(res)
		}
		layout, err := b.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
			Label:   fmt.Sprintf("%s group %d", label, g),
			Entries: entries,
		})
		if err != nil {
			return fmt.Errorf("renderer: create bind group layout %d: %w", g, err)
		}
		out.groups[g] = layout
	}

	layout, err := b.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            label,
		BindGroupLayouts: out.groups,
	})
	if err != nil {
		return fmt.Errorf("renderer: create pipeline layout: %w", err)
	}
	out.layout = layout
	return nil
}

func (b *wgpuRendererBackend) CreateComputePipeline(key pipeline.Key, src *component.Shader, refl shader.Reflection) (Resource, error) {
	if src.ComputeSource == "" {
		return nil, fmt.Errorf("renderer: shader %d has no compute source", key.Shader)
	}
	out := &wgpuPipeline{}
	cs, err := b.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label: src.Name() + " compute",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
			Code: src.ComputeSource,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("renderer: compile compute stage: %w", err)
	}
	out.modules = append(out.modules, cs)

	if err := b.createLayouts(src.Name(), refl, out); err != nil {
		out.release()
		return nil, err
	}

	entry := src.ComputeEntry
	if refl.ComputeEntry != "" {
		entry = refl.ComputeEntry
	}
	created, err := b.device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label:  src.Name() + " Compute Pipeline",
		Layout: out.layout,
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     cs,
			EntryPoint: entry,
		},
	})
	if err != nil {
		out.release()
		return nil, fmt.Errorf("renderer: create compute pipeline: %w", err)
	}
	out.compute = created
	return out, nil
}

func (b *wgpuRendererBackend) CreateBindGroup(p pipeline.Pipeline, group uint32, entries []BindEntry) (Resource, error) {
	native := p.Native().(*wgpuPipeline)
	if int(group) >= len(native.groups) {
		return nil, fmt.Errorf("renderer: pipeline has no group %d", group)
	}
	out := make([]wgpu.BindGroupEntry, len(entries))
	for i, e := range entries {
		out[i].Binding = e.Binding
		switch {
		case e.Buffer != nil:
			out[i].Buffer = e.Buffer.(*wgpuBuffer).buf
			out[i].Offset = 0
			out[i].Size = wgpu.WholeSize
		case e.Texture != nil:
			out[i].TextureView = e.Texture.(*wgpuTexture).view
		case e.Sampler != nil:
			out[i].Sampler = e.Sampler.(*wgpuSampler).s
		}
	}
	bg, err := b.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   fmt.Sprintf("group %d", group),
		Layout:  native.groups[group],
		Entries: out,
	})
	if err != nil {
		return nil, fmt.Errorf("renderer: create bind group %d: %w", group, err)
	}
	return &wgpuBindGroup{bg: bg}, nil
}

func (b *wgpuRendererBackend) BeginFrame() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.frameSurface != nil {
		return fmt.Errorf("renderer: previous frame surface not yet presented")
	}

	surfaceTexture, err := b.surface.GetCurrentTexture()
	if err != nil {
		return err
	}
	view, err := surfaceTexture.CreateView(nil)
	if err != nil {
		surfaceTexture.Release()
		return err
	}
	encoder, err := b.device.CreateCommandEncoder(nil)
	if err != nil {
		view.Release()
		surfaceTexture.Release()
		return err
	}

	b.frameEncoder = encoder
	b.frameSurface = surfaceTexture
	b.frameView = view
	return nil
}

// depthView returns the cached depth attachment for a target size and sample count.
func (b *wgpuRendererBackend) depthView(width, height, samples uint32) (*wgpu.TextureView, error) {
	k := depthKey{width, height, samples}
	if d, ok := b.depth[k]; ok {
		return d.view, nil
	}
	tex, err := b.device.CreateTexture(&wgpu.TextureDescriptor{
		Label: "Depth Texture",
		Size: wgpu.Extent3D{
			Width:              width,
			Height:             height,
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   samples,
		Dimension:     wgpu.TextureDimension2D,
		Format:        wgpu.TextureFormatDepth24Plus,
		Usage:         wgpu.TextureUsageRenderAttachment,
	})
	if err != nil {
		return nil, err
	}
	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return nil, err
	}
	b.depth[k] = &wgpuTexture{tex: tex, view: view}
	return view, nil
}

// msaaView returns the cached multisampled color attachment for a texture target.
func (b *wgpuRendererBackend) msaaView(width, height, samples uint32, format component.TextureFormat) (*wgpu.TextureView, error) {
	k := msaaKey{width, height, samples, format}
	if t, ok := b.targetMSAA[k]; ok {
		return t.view, nil
	}
	tex, err := b.device.CreateTexture(&wgpu.TextureDescriptor{
		Label: "Target MSAA Texture",
		Size: wgpu.Extent3D{
			Width:              width,
			Height:             height,
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   samples,
		Dimension:     wgpu.TextureDimension2D,
		Format:        b.textureFormat(format),
		Usage:         wgpu.TextureUsageRenderAttachment,
	})
	if err != nil {
		return nil, err
	}
	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return nil, err
	}
	b.targetMSAA[k] = &wgpuTexture{tex: tex, view: view}
	return view, nil
}

func (b *wgpuRendererBackend) BeginPass(target PassTarget) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.frameEncoder == nil {
		return fmt.Errorf("renderer: BeginPass outside a frame")
	}

	color := wgpu.RenderPassColorAttachment{
		LoadOp:  wgpu.LoadOpLoad,
		StoreOp: wgpu.StoreOpStore,
		ClearValue: wgpu.Color{
			R: float64(target.ClearColor[0]),
			G: float64(target.ClearColor[1]),
			B: float64(target.ClearColor[2]),
			A: float64(target.ClearColor[3]),
		},
	}
	if target.Clear {
		color.LoadOp = wgpu.LoadOpClear
	}

	width, height, samples := b.width, b.height, uint32(1)
	switch {
	case target.Texture != nil && target.SampleCount > 1:
		// Draw into a multisampled attachment and resolve into the target texture.
		t := target.Texture.(*wgpuTexture)
		width, height, samples = t.desc.Width, t.desc.Height, target.SampleCount
		view, err := b.msaaView(width, height, samples, t.desc.Format)
		if err != nil {
			return fmt.Errorf("renderer: msaa attachment: %w", err)
		}
		color.View = view
		color.ResolveTarget = t.view
	case target.Texture != nil:
		t := target.Texture.(*wgpuTexture)
		color.View = t.view
		width, height = t.desc.Width, t.desc.Height
	case b.sampleCount > 1:
		// Draw into the MSAA texture and resolve into the swapchain view. The MSAA
		// contents are stored so a later surface pass can load them.
		color.View = b.msaaTextureView
		color.ResolveTarget = b.frameView
		samples = uint32(b.sampleCount)
	default:
		color.View = b.frameView
	}

	depth, err := b.depthView(width, height, samples)
	if err != nil {
		return fmt.Errorf("renderer: depth attachment: %w", err)
	}

	b.framePass = b.frameEncoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{color},
		DepthStencilAttachment: &wgpu.RenderPassDepthStencilAttachment{
			View:            depth,
			DepthLoadOp:     wgpu.LoadOpClear,
			DepthStoreOp:    wgpu.StoreOpDiscard,
			DepthClearValue: 1.0,
		},
	})
	return nil
}

func (b *wgpuRendererBackend) Draw(call DrawCall) {
	b.mu.Lock()
	defer b.mu.Unlock()

	pass := b.framePass
	pass.SetPipeline(call.Pipeline.Native().(*wgpuPipeline).pipeline)
	for i, bg := range call.BindGroups {
		if bg != nil {
			pass.SetBindGroup(uint32(i), bg.(*wgpuBindGroup).bg, nil)
		}
	}
	for slot, vb := range call.VertexBuffers {
		pass.SetVertexBuffer(uint32(slot), vb.(*wgpuBuffer).buf, 0, wgpu.WholeSize)
	}
	if call.IndexBuffer != nil {
		pass.SetIndexBuffer(call.IndexBuffer.(*wgpuBuffer).buf, wgpu.IndexFormatUint32, 0, wgpu.WholeSize)
		pass.DrawIndexed(call.Count, call.Instances, 0, 0, 0)
		return
	}
	pass.Draw(call.Count, call.Instances, 0, 0)
}

func (b *wgpuRendererBackend) EndPass() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.framePass != nil {
		b.framePass.End()
		b.framePass.Release()
		b.framePass = nil
	}
}

func (b *wgpuRendererBackend) Dispatch(call ComputeCall) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.frameEncoder == nil || b.framePass != nil {
		return
	}
	pass := b.frameEncoder.BeginComputePass(nil)
	pass.SetPipeline(call.Pipeline.Native().(*wgpuPipeline).compute)
	for i, bg := range call.BindGroups {
		if bg != nil {
			pass.SetBindGroup(uint32(i), bg.(*wgpuBindGroup).bg, nil)
		}
	}
	pass.DispatchWorkgroups(call.Workgroups[0], call.Workgroups[1], call.Workgroups[2])
	pass.End()
	pass.Release()
}

func (b *wgpuRendererBackend) EndFrame() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.frameEncoder == nil {
		return
	}
	commandBuffer, err := b.frameEncoder.Finish(nil)
	b.frameEncoder.Release()
	b.frameEncoder = nil
	if err != nil {
		return
	}
	b.queue.Submit(commandBuffer)
	commandBuffer.Release()
}

func (b *wgpuRendererBackend) Present() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.frameSurface == nil {
		return
	}
	b.surface.Present()
	b.frameView.Release()
	b.frameSurface.Release()
	b.frameView = nil
	b.frameSurface = nil
}

func (b *wgpuRendererBackend) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for k, d := range b.depth {
		d.Release()
		delete(b.depth, k)
	}
	for k, t := range b.targetMSAA {
		t.Release()
		delete(b.targetMSAA, k)
	}
	if b.msaaTextureView != nil {
		b.msaaTextureView.Release()
		b.msaaTexture.Release()
	}
	b.queue.Release()
	b.device.Release()
	b.adapter.Release()
	b.surface.Release()
	b.instance.Release()
}
