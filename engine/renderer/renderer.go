package renderer

import (
	"fmt"
	"slices"
	"sync"

	"github.com/Carmen-Shannon/oxy-scene/common"
	"github.com/Carmen-Shannon/oxy-scene/engine/camera"
	"github.com/Carmen-Shannon/oxy-scene/engine/component"
	"github.com/Carmen-Shannon/oxy-scene/engine/light"
	"github.com/Carmen-Shannon/oxy-scene/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-scene/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-scene/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-scene/engine/scene"
	"github.com/cogentcore/webgpu/wgpu"
	"go.uber.org/zap"
)

// Bind group indices the renderer fills itself. Groups past GroupInstances only receive
// fallback resources.
const (
	GroupFrame     uint32 = 0
	GroupMaterial  uint32 = 1
	GroupInstances uint32 = 2
)

// Surface is what the renderer needs from a window.
type Surface interface {
	SurfaceDescriptor() *wgpu.SurfaceDescriptor
	Width() int
	Height() int
}

// Frame names what to draw this frame.
type Frame struct {
	// Scene and Camera are drawn when RootPass is zero, and fill in passes that leave theirs unset.
	Scene  component.Handle
	Camera component.Handle
	// RootPass starts the pass chain; zero draws Scene into the surface.
	RootPass component.Handle
	// Time is the engine time in seconds, passed to shaders.
	Time float32
}

// Stats counts the work done by one Render call.
type Stats struct {
	Passes          int
	Dispatches      int
	DrawCalls       int
	Instances       int
	Pipelines       int
	BindGroupsBuilt int
	Uploads         int
}

// renderer is the implementation of the Renderer interface.
type renderer struct {
	mu sync.Mutex

	store   component.Store
	index   scene.Index
	backend RendererBackend
	cache   pipeline.Cache
	logger  *zap.Logger

	// Pre-creation config collected from builder options
	backendType          RendererBackendType
	forceFallbackAdapter bool
	pendingPresentMode   *PresentMode
	pendingMSAA          *MSAASampleCount
	width, height        int

	frame uint64
	stats Stats

	textures   map[component.Handle]*textureState
	buffers    map[component.Handle]*bufferState
	geometries map[component.Handle]*geometryState
	materials  map[component.Handle]*materialState
	instances  map[instanceKey]*instanceState
	frames     map[component.Handle]*frameState
	// fallbackGroups holds bind groups made only of fallbacks, by layout signature.
	fallbackGroups map[string]bind_group_provider.BindGroupProvider
	fallbacks      fallbacks
}

// Renderer draws the records of a component store.
//
// The renderer owns every GPU object. Store records describe resources; Render keeps the
// GPU side in step with them, rebuilds pipelines when shaders change and rebuilds bind
// groups when the textures or buffers they reference are reallocated.
type Renderer interface {
	// Render uploads pending resource changes and draws the pass chain of f.
	//
	// Parameters:
	//   - f: what to draw
	//
	// Returns:
	//   - Stats: counters for the frame
	//   - error: an error if the surface could not be acquired; the frame is dropped
	Render(f Frame) (Stats, error)

	// Resize configures the underlying backend to handle a new surface size.
	// This should be called when re-sizing the window or when the surface size should change.
	//
	// Parameters:
	//   - width: the new width of the surface in pixels
	//   - height: the new height of the surface in pixels
	Resize(width, height int)

	// SetPresentMode sets the surface present mode. It takes effect on the next Resize.
	SetPresentMode(mode PresentMode)

	// Pipelines returns the pipeline cache.
	Pipelines() pipeline.Cache

	// Backend returns the backend the renderer drives.
	Backend() RendererBackend

	// Release releases every GPU object the renderer created.
	Release()
}

var _ Renderer = &renderer{}

// NewRenderer creates a new Renderer with the specified backend type.
//
// Parameters:
//   - backendType: the type of rendering backend to use
//   - surface: the window to present into; may be nil for the headless backend
//   - store: the component store to draw from
//   - index: the scene index supplying primitive groups and lights
//   - options: variadic list of RendererBuilderOption functions to configure the Renderer
//
// Returns:
//   - Renderer: the renderer
//   - error: an error if the backend could not be created
func NewRenderer(backendType RendererBackendType, surface Surface, store component.Store, index scene.Index, options ...RendererBuilderOption) (Renderer, error) {
	if store == nil || index == nil {
		panic("renderer: NewRenderer requires a store and an index")
	}
	r := &renderer{
		store:          store,
		index:          index,
		logger:         zap.NewNop(),
		backendType:    backendType,
		width:          1280,
		height:         720,
		textures:       make(map[component.Handle]*textureState),
		buffers:        make(map[component.Handle]*bufferState),
		geometries:     make(map[component.Handle]*geometryState),
		materials:      make(map[component.Handle]*materialState),
		instances:      make(map[instanceKey]*instanceState),
		frames:         make(map[component.Handle]*frameState),
		fallbackGroups: make(map[string]bind_group_provider.BindGroupProvider),
	}

	// Apply options first so config flags (e.g. forceFallbackAdapter) are
	// available before the backend requests a GPU adapter.
	for _, opt := range options {
		opt(r)
	}
	if surface != nil {
		r.width, r.height = surface.Width(), surface.Height()
	}

	msaa := MSAA4x
	if r.pendingMSAA != nil {
		msaa = *r.pendingMSAA
	}

	if r.backend == nil {
		switch backendType {
		case BackendTypeHeadless:
			r.backend = NewHeadlessBackend(r.width, r.height, msaa)
		case BackendTypeWGPU:
			fallthrough
		default:
			if surface == nil {
				return nil, fmt.Errorf("renderer: the wgpu backend needs a surface")
			}
			b, err := newWGPURendererBackend(surface.SurfaceDescriptor(), r.forceFallbackAdapter, msaa)
			if err != nil {
				return nil, err
			}
			r.backend = b
		}
	}

	if r.pendingPresentMode != nil {
		r.backend.SetPresentMode(*r.pendingPresentMode)
	}
	r.backend.ConfigureSurface(r.width, r.height)

	r.cache = pipeline.NewCache(r.buildPipeline, pipeline.WithLogger(r.logger))
	return r, nil
}

func (r *renderer) Resize(width, height int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backend.ConfigureSurface(width, height)
}

func (r *renderer) SetPresentMode(mode PresentMode) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backend.SetPresentMode(mode)
}

func (r *renderer) Pipelines() pipeline.Cache {
	return r.cache
}

func (r *renderer) Backend() RendererBackend {
	return r.backend
}

// buildPipeline is the pipeline cache factory. It compiles the shader record the key names.
func (r *renderer) buildPipeline(key pipeline.Key) (pipeline.Pipeline, error) {
	sh, err := r.store.Shader(key.Shader)
	if err != nil {
		return nil, err
	}
	if key.Compute != sh.IsCompute() {
		return nil, fmt.Errorf("renderer: shader %d has the wrong stages for this pass", key.Shader)
	}
	var (
		refl   shader.Reflection
		native Resource
	)
	if key.Compute {
		refl = shader.ReflectCompute(sh.ComputeSource)
		native, err = r.backend.CreateComputePipeline(key, sh, refl)
	} else {
		refl = shader.Reflect(sh.VertexSource, sh.FragmentSource)
		native, err = r.backend.CreatePipeline(key, sh, refl)
	}
	if err != nil {
		return nil, err
	}
	return pipeline.NewPipeline(key,
		pipeline.WithNative(native, native.Release),
		pipeline.WithReflection(refl),
		pipeline.WithShaderGeneration(sh.Generation),
	), nil
}

func (r *renderer) Render(f Frame) (Stats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.frame++
	r.stats = Stats{}

	r.evictPipelines()
	r.syncTextures()
	r.syncBuffers()
	r.sweep()

	if err := r.backend.BeginFrame(); err != nil {
		return Stats{}, fmt.Errorf("renderer: begin frame: %w", err)
	}
	for _, p := range r.passChain(f) {
		if err := r.drawPass(p, f); err != nil {
			r.logger.Warn("renderer: pass skipped", zap.Uint64("pass", uint64(p.handle)), zap.Error(err))
		}
	}
	r.backend.EndFrame()
	r.backend.Present()

	r.stats.Pipelines = r.cache.Len()
	return r.stats, nil
}

// evictPipelines drops pipelines whose shader was destroyed or changed since they were built.
func (r *renderer) evictPipelines() {
	for h, gen := range r.cache.Shaders() {
		sh, err := r.store.Shader(h)
		if err == nil && !sh.Destroyed() && sh.Generation == gen {
			continue
		}
		r.cache.Evict(h)
	}
}

// syncTextures creates, reallocates and fills the GPU textures of the store's texture records.
func (r *renderer) syncTextures() {
	component.EachOf(r.store, component.TypeTexture, func(t *component.Texture) bool {
		st := r.textures[t.Handle()]
		if st == nil {
			st = &textureState{}
			r.textures[t.Handle()] = st
		}
		st.seen = r.frame
		if st.generation != t.Generation {
			st.release()
			st.generation = t.Generation
			st.desc = t.Desc
			res, err := r.backend.CreateTexture(fmt.Sprintf("texture %d", t.Handle()), t.Desc)
			if err != nil {
				r.logger.Warn("renderer: texture creation failed, using magenta fallback",
					zap.Uint64("handle", uint64(t.Handle())), zap.Error(err))
				st.failed = true
			} else {
				st.res = res
				st.failed = false
			}
		}
		if st.res != nil {
			for _, w := range t.Pending {
				r.backend.WriteTexture(st.res, t.Desc, w.Region, w.Data)
				r.stats.Uploads++
			}
		}
		t.Pending = nil
		return true
	})
}

// syncBuffers creates, reallocates and fills the GPU buffers of the store's buffer records.
func (r *renderer) syncBuffers() {
	component.EachOf(r.store, component.TypeBuffer, func(b *component.Buffer) bool {
		st := r.buffers[b.Handle()]
		if st == nil {
			st = &bufferState{}
			r.buffers[b.Handle()] = st
		}
		st.seen = r.frame
		if st.generation != b.Generation {
			st.release()
			st.generation = b.Generation
			res, err := r.backend.CreateBuffer(fmt.Sprintf("buffer %d", b.Handle()), bufferKindFor(b.Usage), max(b.Size, 4))
			if err != nil {
				r.logger.Warn("renderer: buffer creation failed", zap.Uint64("handle", uint64(b.Handle())), zap.Error(err))
			} else {
				st.res = res
			}
		}
		if st.res != nil {
			for _, w := range b.Pending {
				r.backend.WriteBuffer(st.res, w.Offset, w.Data)
				r.stats.Uploads++
			}
		}
		b.Pending = nil
		return true
	})
}

// sweep releases the GPU state of records that no longer exist.
func (r *renderer) sweep() {
	for h, st := range r.textures {
		if st.seen != r.frame {
			st.release()
			delete(r.textures, h)
		}
	}
	for h, st := range r.buffers {
		if st.seen != r.frame {
			st.release()
			delete(r.buffers, h)
		}
	}
	for h, st := range r.geometries {
		if g, err := r.store.Geometry(h); err != nil || g.Destroyed() {
			st.release()
			delete(r.geometries, h)
		}
	}
	for h, st := range r.materials {
		if m, err := r.store.Material(h); err != nil || m.Destroyed() {
			st.release()
			delete(r.materials, h)
		}
	}
	for k, st := range r.instances {
		sc, err := r.store.Scene(k.scene)
		if err != nil || sc.Destroyed() || sc.Primitives[k.key] == nil {
			st.release()
			delete(r.instances, k)
		}
	}
	for h, st := range r.frames {
		if h == 0 {
			continue
		}
		if p, err := r.store.Pass(h); err != nil || p.Destroyed() {
			st.release()
			delete(r.frames, h)
		}
	}
}

// lookup reports the store generation of a texture or buffer. Missing resources report
// generation zero so bind groups referencing them rebuild once when they appear.
func (r *renderer) lookup(h component.Handle) (uint64, bool) {
	c, ok := r.store.Get(h)
	if !ok || c.Destroyed() {
		return 0, true
	}
	switch rec := c.(type) {
	case *component.Texture:
		return rec.Generation, true
	case *component.Buffer:
		return rec.Generation, true
	}
	return 0, true
}

// plannedPass is one resolved entry of the pass chain.
type plannedPass struct {
	handle   component.Handle
	kind     component.PassKind
	scene    component.Handle
	camera   component.Handle
	material component.Handle
	target   component.Handle
	samples  uint32
	groups   [3]uint32
	clear    bool
	color    common.Color
}

// passChain resolves the passes to draw this frame, following Next from the root pass.
func (r *renderer) passChain(f Frame) []plannedPass {
	if f.RootPass == 0 {
		p := plannedPass{scene: f.Scene, camera: f.Camera, clear: true, color: common.Black}
		if sc, err := r.store.Scene(f.Scene); err == nil {
			p.color = sc.Desc.Background
			p.camera = common.Coalesce(sc.Desc.MainCamera, f.Camera)
		}
		return []plannedPass{p}
	}

	var out []plannedPass
	visited := make(map[component.Handle]bool)
	for h := f.RootPass; h != 0; {
		if visited[h] {
			r.logger.Warn("renderer: pass chain loops", zap.Uint64("pass", uint64(h)))
			break
		}
		visited[h] = true
		p, err := r.store.Pass(h)
		if err != nil || p.Destroyed() {
			r.logger.Debug("renderer: pass chain ends at missing pass", zap.Uint64("pass", uint64(h)))
			break
		}
		plan := plannedPass{
			handle:   h,
			kind:     p.Kind,
			scene:    common.Coalesce(p.Scene, f.Scene),
			material: p.Material,
			target:   p.Target,
			samples:  p.SampleCount,
			groups:   p.Workgroups,
			clear:    p.ClearOnLoad,
			color:    p.ClearColor,
		}
		if p.Kind == component.PassRender {
			plan.camera = p.Camera
			if plan.camera == 0 {
				if sc, err := r.store.Scene(plan.scene); err == nil {
					plan.camera = sc.Desc.MainCamera
				}
			}
			plan.camera = common.Coalesce(plan.camera, f.Camera)
		}
		out = append(out, plan)
		h = p.Next
	}
	return out
}

// passTarget resolves where a pass draws and the pipeline format that goes with it.
func (r *renderer) passTarget(p plannedPass) (PassTarget, uint32, component.TextureFormat, error) {
	target := PassTarget{Clear: p.clear, ClearColor: p.color}
	if p.target == 0 {
		target.Width, target.Height = r.backend.SurfaceSize()
		return target, r.backend.SampleCount(), component.FormatSurface, nil
	}
	st := r.textures[p.target]
	if st == nil || st.res == nil {
		return target, 0, 0, fmt.Errorf("target texture %d is not available", p.target)
	}
	if st.desc.Cube {
		return target, 0, 0, fmt.Errorf("target texture %d is a cubemap", p.target)
	}
	target.Texture = st.res
	target.Width, target.Height = st.desc.Width, st.desc.Height
	target.SampleCount = max(p.samples, 1)
	return target, target.SampleCount, st.desc.Format, nil
}

func (r *renderer) drawPass(p plannedPass, f Frame) error {
	if p.kind == component.PassCompute {
		return r.dispatchPass(p)
	}
	target, samples, format, err := r.passTarget(p)
	if err != nil {
		return err
	}
	if err := r.backend.BeginPass(target); err != nil {
		return err
	}
	defer r.backend.EndPass()
	r.stats.Passes++

	aspect := float32(target.Width) / float32(max(target.Height, 1))
	frame := r.passFrame(p.handle)

	if p.kind == component.PassScreen {
		r.writeFrame(frame, camera.Resolve(nil, aspect), nil, target, f.Time)
		r.drawScreen(p, frame, samples, format)
		return nil
	}

	var cam *component.Camera
	if p.camera != 0 {
		if c, err := r.store.Camera(p.camera); err == nil && !c.Destroyed() {
			cam = c
		} else {
			r.logger.Debug("renderer: pass camera missing, using default", zap.Uint64("camera", uint64(p.camera)))
		}
	}
	sc, err := r.store.Scene(p.scene)
	if err != nil || sc.Destroyed() {
		// nothing to draw, but the clear still happens
		return nil
	}
	r.writeFrame(frame, camera.Resolve(cam, aspect), sc, target, f.Time)

	groups := r.index.Groups(p.scene)
	// blended groups draw after opaque ones
	slices.SortStableFunc(groups, func(a, b *component.PrimitiveGroup) int {
		return r.blendOrder(a.Key.Material) - r.blendOrder(b.Key.Material)
	})
	for _, g := range groups {
		r.drawGroup(p.scene, g, frame, samples, format)
	}
	return nil
}

// dispatchPass runs the compute shader of a compute pass's material. Group 0 takes the
// material's bindings; later groups receive fallbacks.
func (r *renderer) dispatchPass(p plannedPass) error {
	mat, err := r.store.Material(p.material)
	if err != nil || mat.Destroyed() {
		return fmt.Errorf("compute pass has no material")
	}
	if mat.PSO.Shader == 0 {
		return fmt.Errorf("material %d has no shader", mat.Handle())
	}
	if p.groups[0] == 0 || p.groups[1] == 0 || p.groups[2] == 0 {
		return nil
	}
	pl, err := r.cache.GetOrCreate(pipeline.NewComputeKey(mat.PSO.Shader))
	if err != nil {
		return err
	}
	refl := pl.Reflection()
	call := ComputeCall{Pipeline: pl, Workgroups: p.groups, BindGroups: make([]Resource, refl.GroupCount())}
	for gi := range refl.GroupCount() {
		var bg Resource
		if gi == 0 {
			bg = r.materialGroup(mat, pl, gi)
		} else {
			bg = r.fallbackGroup(pl, gi)
		}
		if bg == nil {
			return fmt.Errorf("bind group %d unavailable", gi)
		}
		call.BindGroups[gi] = bg
	}
	r.backend.Dispatch(call)
	r.stats.Dispatches++
	return nil
}

func (r *renderer) blendOrder(material component.Handle) int {
	m, err := r.store.Material(material)
	if err != nil || m.PSO.Blend == component.BlendNone {
		return 0
	}
	return 1
}

// writeFrame uploads the frame uniform and light list of a pass.
func (r *renderer) writeFrame(st *frameState, m camera.Matrices, sc *component.Scene, target PassTarget, time float32) {
	u := camera.NewFrameUniform(m)
	var lights []light.GPULight
	var ambient [3]float32
	if sc != nil {
		for _, h := range r.index.Lights(sc.Handle()) {
			l, err := r.store.Light(h)
			if err != nil || l.Destroyed() {
				continue
			}
			lights = append(lights, light.ToGPULight(l))
		}
		ambient = sc.Desc.Ambient
		fog := sc.Desc.Fog
		u.FogColor = fog.Color
		if fog.Enabled {
			u.Fog = [4]float32{1, float32(fog.Kind), fog.Density, 0}
		}
	}
	u.Params = [4]float32{time, float32(min(len(lights), light.MaxGPULights)), float32(target.Width), float32(target.Height)}

	r.ensureFrameBuffers(st, light.BufferSize(len(lights)))
	if st.uniform != nil {
		r.backend.WriteBuffer(st.uniform, 0, u.Marshal())
	}
	if st.lights != nil {
		r.backend.WriteBuffer(st.lights, 0, light.MarshalLightBuffer(lights, ambient))
	}
}

func (r *renderer) ensureFrameBuffers(st *frameState, lightSize uint64) {
	if st.uniform == nil {
		buf, err := r.backend.CreateBuffer("frame", BufferUniform, uint64((&camera.GPUFrameUniform{}).Size()))
		if err != nil {
			r.logger.Warn("renderer: frame buffer creation failed", zap.Error(err))
			return
		}
		st.uniform = buf
		st.invalidate()
	}
	if st.lights == nil || st.lightSize < lightSize {
		if st.lights != nil {
			st.lights.Release()
		}
		st.lights, st.lightSize = nil, 0
		buf, err := r.backend.CreateBuffer("lights", BufferStorage, lightSize)
		if err != nil {
			r.logger.Warn("renderer: light buffer creation failed", zap.Error(err))
			return
		}
		st.lights, st.lightSize = buf, lightSize
		st.invalidate()
	}
}

// pipelineFor resolves the pipeline of a material for a pass target.
func (r *renderer) pipelineFor(pso component.PipelineState, samples uint32, format component.TextureFormat) (pipeline.Pipeline, error) {
	return r.cache.GetOrCreate(pipeline.NewKey(pso, samples, format))
}

func (r *renderer) drawGroup(sceneHandle component.Handle, g *component.PrimitiveGroup, frame *frameState, samples uint32, format component.TextureFormat) {
	instances := len(g.InstanceData) / scene.InstanceStride
	if instances == 0 {
		return
	}
	mat, err := r.store.Material(g.Key.Material)
	if err != nil || mat.Destroyed() {
		return
	}
	if mat.PSO.Shader == 0 {
		r.logger.Debug("renderer: material has no shader", zap.Uint64("material", uint64(mat.Handle())))
		return
	}
	geo, err := r.store.Geometry(g.Key.Geometry)
	if err != nil || geo.Destroyed() {
		return
	}
	p, err := r.pipelineFor(mat.PSO, samples, format)
	if err != nil {
		r.logger.Warn("renderer: pipeline unavailable", zap.Uint64("material", uint64(mat.Handle())), zap.Error(err))
		return
	}
	refl := p.Reflection()

	gs := r.uploadGeometry(geo)
	call := DrawCall{Pipeline: p, Instances: uint32(instances)}
	vertexCount, ok := r.vertexBuffers(gs, geo, refl, &call)
	if !ok {
		return
	}
	if gs.index != nil {
		call.IndexBuffer = gs.index
		call.Count = uint32(min(geo.IndexCount(), len(geo.Indices)))
	} else {
		call.Count = uint32(vertexCount)
	}
	if call.Count == 0 {
		return
	}

	call.BindGroups = make([]Resource, refl.GroupCount())
	for gi := range refl.GroupCount() {
		var bg Resource
		switch gi {
		case GroupFrame:
			bg = r.frameGroup(frame, p, gi)
		case GroupMaterial:
			bg = r.materialGroup(mat, p, gi)
		case GroupInstances:
			bg = r.instanceGroup(instanceKey{sceneHandle, g.Key}, g, p, gi)
		default:
			bg = r.fallbackGroup(p, gi)
		}
		if bg == nil {
			return
		}
		call.BindGroups[gi] = bg
	}

	r.backend.Draw(call)
	r.stats.DrawCalls++
	r.stats.Instances += instances
}

// drawScreen draws the fullscreen triangle of a screen pass.
func (r *renderer) drawScreen(p plannedPass, frame *frameState, samples uint32, format component.TextureFormat) {
	mat, err := r.store.Material(p.material)
	if err != nil || mat.Destroyed() {
		r.logger.Debug("renderer: screen pass has no material", zap.Uint64("pass", uint64(p.handle)))
		return
	}
	if mat.PSO.Shader == 0 {
		r.logger.Debug("renderer: material has no shader", zap.Uint64("material", uint64(mat.Handle())))
		return
	}
	pso := mat.PSO
	pso.DepthTest = false
	pso.DepthWrite = false
	pl, err := r.pipelineFor(pso, samples, format)
	if err != nil {
		r.logger.Warn("renderer: pipeline unavailable", zap.Uint64("material", uint64(mat.Handle())), zap.Error(err))
		return
	}
	refl := pl.Reflection()

	call := DrawCall{Pipeline: pl, Count: 3, Instances: 1}
	if len(refl.Inputs) > 0 {
		zero := r.fallbacks.zeroBuffer(r, BufferVertex, 3*16)
		if zero == nil {
			return
		}
		for range refl.Inputs {
			call.VertexBuffers = append(call.VertexBuffers, zero)
		}
	}
	call.BindGroups = make([]Resource, refl.GroupCount())
	for gi := range refl.GroupCount() {
		var bg Resource
		switch gi {
		case GroupFrame:
			bg = r.frameGroup(frame, pl, gi)
		case GroupMaterial:
			bg = r.materialGroup(mat, pl, gi)
		default:
			bg = r.fallbackGroup(pl, gi)
		}
		if bg == nil {
			return
		}
		call.BindGroups[gi] = bg
	}
	r.backend.Draw(call)
	r.stats.DrawCalls++
	r.stats.Instances++
}

func (r *renderer) Release() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for h, st := range r.textures {
		st.release()
		delete(r.textures, h)
	}
	for h, st := range r.buffers {
		st.release()
		delete(r.buffers, h)
	}
	for h, st := range r.geometries {
		st.release()
		delete(r.geometries, h)
	}
	for h, st := range r.materials {
		st.release()
		delete(r.materials, h)
	}
	for k, st := range r.instances {
		st.release()
		delete(r.instances, k)
	}
	for h, st := range r.frames {
		st.release()
		delete(r.frames, h)
	}
	for s, p := range r.fallbackGroups {
		p.Release()
		delete(r.fallbackGroups, s)
	}
	r.fallbacks.release()
	r.cache.Release()
	r.backend.Release()
}
