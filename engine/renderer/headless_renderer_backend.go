package renderer

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-scene/engine/component"
	"github.com/Carmen-Shannon/oxy-scene/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-scene/engine/renderer/shader"
)

// HeadlessResource is the object type handed out by the headless backend.
type HeadlessResource struct {
	ID    int
	Kind  string
	Label string
	// Data holds buffer contents and, for textures, the texels of mip 0 layer 0.
	Data     []byte
	Desc     component.TextureDesc
	Released bool

	owner *HeadlessBackend
}

func (r *HeadlessResource) Release() {
	r.owner.mu.Lock()
	defer r.owner.mu.Unlock()
	if !r.Released {
		r.Released = true
		r.owner.live--
	}
}

// HeadlessPass records one render pass.
type HeadlessPass struct {
	Target PassTarget
	Draws  []DrawCall
}

// HeadlessBackend is a RendererBackend that keeps everything in memory. It lets the
// renderer run without a GPU and records what was drawn.
type HeadlessBackend struct {
	mu sync.Mutex

	width, height uint32
	samples       uint32
	presentMode   PresentMode

	nextID int
	live   int

	// Frames counts presented frames.
	Frames int
	// Passes holds the passes of the last frame.
	Passes []HeadlessPass
	// Dispatches holds the compute dispatches of the last frame.
	Dispatches []ComputeCall
	// Created counts created resources by kind.
	Created map[string]int

	inFrame bool
	current *HeadlessPass
}

var _ RendererBackend = &HeadlessBackend{}

// NewHeadlessBackend creates a headless backend with a surface of the given size.
//
// Parameters:
//   - width: the surface width in pixels
//   - height: the surface height in pixels
//   - msaa: the surface sample count
//
// Returns:
//   - *HeadlessBackend: the backend
func NewHeadlessBackend(width, height int, msaa MSAASampleCount) *HeadlessBackend {
	b := &HeadlessBackend{samples: uint32(msaa), Created: make(map[string]int)}
	b.ConfigureSurface(width, height)
	return b
}

func (b *HeadlessBackend) newResource(kind, label string, size uint64) *HeadlessResource {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	b.live++
	b.Created[kind]++
	return &HeadlessResource{ID: b.nextID, Kind: kind, Label: label, Data: make([]byte, size), owner: b}
}

// Live returns the number of resources created and not yet released.
func (b *HeadlessBackend) Live() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.live
}

// DrawCount returns the number of draws recorded in the last frame.
func (b *HeadlessBackend) DrawCount() int {
	n := 0
	for _, p := range b.Passes {
		n += len(p.Draws)
	}
	return n
}

func (b *HeadlessBackend) ConfigureSurface(width, height int) {
	b.width, b.height = uint32(max(width, 1)), uint32(max(height, 1))
}

func (b *HeadlessBackend) SurfaceSize() (uint32, uint32) {
	return b.width, b.height
}

func (b *HeadlessBackend) SetPresentMode(mode PresentMode) {
	b.presentMode = mode
}

func (b *HeadlessBackend) SampleCount() uint32 {
	return max(b.samples, 1)
}

func (b *HeadlessBackend) CreateBuffer(label string, kind BufferKind, size uint64) (Resource, error) {
	return b.newResource("buffer", label, (size+3)&^3), nil
}

func (b *HeadlessBackend) WriteBuffer(buf Resource, offset uint64, data []byte) {
	r := buf.(*HeadlessResource)
	if offset+uint64(len(data)) > uint64(len(r.Data)) {
		panic(fmt.Sprintf("renderer: headless write of %d bytes at %d overflows %q (%d bytes)", len(data), offset, r.Label, len(r.Data)))
	}
	copy(r.Data[offset:], data)
}

func (b *HeadlessBackend) CreateTexture(label string, desc component.TextureDesc) (Resource, error) {
	if desc.Width == 0 || desc.Height == 0 {
		return nil, fmt.Errorf("renderer: texture %q has zero size", label)
	}
	r := b.newResource("texture", label, uint64(desc.Width)*uint64(desc.Height)*uint64(desc.Format.BytesPerTexel()))
	r.Desc = desc
	return r, nil
}

func (b *HeadlessBackend) WriteTexture(tex Resource, desc component.TextureDesc, region component.TextureWriteDesc, data []byte) {
	r := tex.(*HeadlessResource)
	if region.Mip != 0 || region.OffsetZ != 0 {
		return
	}
	bpt := uint32(desc.Format.BytesPerTexel())
	for y := range region.Height {
		src := data[y*region.Width*bpt : (y+1)*region.Width*bpt]
		dst := ((region.OffsetY+y)*desc.Width + region.OffsetX) * bpt
		copy(r.Data[dst:], src)
	}
}

func (b *HeadlessBackend) CreateSampler(cfg component.SamplerConfig, comparison bool) (Resource, error) {
	return b.newResource("sampler", "sampler", 0), nil
}

func (b *HeadlessBackend) CreatePipeline(key pipeline.Key, src *component.Shader, refl shader.Reflection) (Resource, error) {
	if src.VertexSource == "" {
		return nil, fmt.Errorf("renderer: shader %d has no source", key.Shader)
	}
	if refl.VertexEntry == "" && src.VertexEntry == "" {
		return nil, fmt.Errorf("renderer: shader %d has no vertex entry point", key.Shader)
	}
	return b.newResource("pipeline", src.Name(), 0), nil
}

func (b *HeadlessBackend) CreateComputePipeline(key pipeline.Key, src *component.Shader, refl shader.Reflection) (Resource, error) {
	if src.ComputeSource == "" {
		return nil, fmt.Errorf("renderer: shader %d has no compute source", key.Shader)
	}
	if refl.ComputeEntry == "" {
		return nil, fmt.Errorf("renderer: shader %d has no compute entry point", key.Shader)
	}
	return b.newResource("compute_pipeline", src.Name(), 0), nil
}

func (b *HeadlessBackend) CreateBindGroup(p pipeline.Pipeline, group uint32, entries []BindEntry) (Resource, error) {
	want := p.Reflection().Group(group)
	if len(entries) != len(want) {
		return nil, fmt.Errorf("renderer: group %d expects %d entries, got %d", group, len(want), len(entries))
	}
	for i, e := range entries {
		if e.Binding != want[i].Binding {
			return nil, fmt.Errorf("renderer: group %d entry %d binds %d, layout expects %d", group, i, e.Binding, want[i].Binding)
		}
		if e.Buffer == nil && e.Texture == nil && e.Sampler == nil {
			return nil, fmt.Errorf("renderer: group %d binding %d is empty", group, e.Binding)
		}
	}
	return b.newResource("bind_group", fmt.Sprintf("group %d", group), 0), nil
}

func (b *HeadlessBackend) BeginFrame() error {
	b.inFrame = true
	b.Passes = b.Passes[:0]
	b.Dispatches = b.Dispatches[:0]
	return nil
}

func (b *HeadlessBackend) BeginPass(target PassTarget) error {
	if !b.inFrame {
		panic("renderer: BeginPass outside a frame")
	}
	b.Passes = append(b.Passes, HeadlessPass{Target: target})
	b.current = &b.Passes[len(b.Passes)-1]
	return nil
}

func (b *HeadlessBackend) Draw(call DrawCall) {
	if b.current == nil {
		panic("renderer: Draw outside a pass")
	}
	call.BindGroups = append([]Resource(nil), call.BindGroups...)
	call.VertexBuffers = append([]Resource(nil), call.VertexBuffers...)
	b.current.Draws = append(b.current.Draws, call)
}

func (b *HeadlessBackend) Dispatch(call ComputeCall) {
	if !b.inFrame || b.current != nil {
		panic("renderer: Dispatch outside a frame or inside a render pass")
	}
	call.BindGroups = append([]Resource(nil), call.BindGroups...)
	b.Dispatches = append(b.Dispatches, call)
}

func (b *HeadlessBackend) EndPass() {
	b.current = nil
}

func (b *HeadlessBackend) EndFrame() {
	b.inFrame = false
}

func (b *HeadlessBackend) Present() {
	b.Frames++
}

func (b *HeadlessBackend) Release() {}
