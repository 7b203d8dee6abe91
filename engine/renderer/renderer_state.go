package renderer

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-scene/common"
	"github.com/Carmen-Shannon/oxy-scene/engine/component"
	"github.com/Carmen-Shannon/oxy-scene/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-scene/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-scene/engine/renderer/shader"
	"go.uber.org/zap"
)

// textureState is the GPU side of a texture record.
type textureState struct {
	generation uint64
	desc       component.TextureDesc
	res        Resource
	// failed marks a texture the backend could not create; bindings see magenta.
	failed bool
	seen   uint64
}

func (s *textureState) release() {
	if s.res != nil {
		s.res.Release()
		s.res = nil
	}
}

// bufferState is the GPU side of a buffer record.
type bufferState struct {
	generation uint64
	res        Resource
	seen       uint64
}

func (s *bufferState) release() {
	if s.res != nil {
		s.res.Release()
		s.res = nil
	}
}

// geometryState holds one vertex buffer per attribute location, the index buffer and a
// zero-filled stream for inputs the geometry does not provide.
type geometryState struct {
	generation uint64
	attributes [component.MaxVertexAttributes]Resource
	index      Resource
	zero       Resource
}

func (s *geometryState) release() {
	for i, a := range s.attributes {
		if a != nil {
			a.Release()
			s.attributes[i] = nil
		}
	}
	for _, res := range []*Resource{&s.index, &s.zero} {
		if *res != nil {
			(*res).Release()
			*res = nil
		}
	}
}

// materialState caches a material's bind group for the layout of its shader.
type materialState struct {
	revision  uint64
	signature string
	provider  bind_group_provider.BindGroupProvider
}

func (s *materialState) release() {
	if s.provider != nil {
		s.provider.Release()
		s.provider = nil
	}
}

// instanceKey names one primitive group of one scene.
type instanceKey struct {
	scene component.Handle
	key   component.PrimitiveKey
}

// instanceState owns the instance storage buffer of a primitive group.
type instanceState struct {
	generation uint64
	signature  string
	provider   bind_group_provider.BindGroupProvider
}

func (s *instanceState) release() {
	if s.provider != nil {
		s.provider.Release()
		s.provider = nil
	}
}

// frameState holds the per-pass frame uniform and light buffer. Each pass has its own so
// queued writes of one pass do not overwrite another's.
type frameState struct {
	uniform   Resource
	lights    Resource
	lightSize uint64
	providers map[string]bind_group_provider.BindGroupProvider
}

func (s *frameState) invalidate() {
	for _, p := range s.providers {
		p.Invalidate()
	}
}

func (s *frameState) release() {
	for k, p := range s.providers {
		p.Release()
		delete(s.providers, k)
	}
	for _, res := range []*Resource{&s.uniform, &s.lights} {
		if *res != nil {
			(*res).Release()
			*res = nil
		}
	}
	s.lightSize = 0
}

// zeroKey identifies a shared zero-filled buffer.
type zeroKey struct {
	kind BufferKind
	size uint64
}

// fallbacks are the resources bound where a binding is unset or its resource is unusable.
type fallbacks struct {
	white, black, magenta Resource
	// cube is a white six-face texture for cube bindings.
	cube     Resource
	samplers map[samplerKey]Resource
	zero     map[zeroKey]Resource
}

type samplerKey struct {
	cfg        component.SamplerConfig
	comparison bool
}

func (f *fallbacks) pixel(r *renderer, slot *Resource, c common.Color, name string) Resource {
	desc := component.TextureDesc{Format: component.FormatRGBA8Unorm, Width: 1, Height: 1, Depth: 1, Mips: 1}
	return f.solid(r, slot, c, name, desc)
}

func (f *fallbacks) cubePixel(r *renderer) Resource {
	desc := component.TextureDesc{Format: component.FormatRGBA8Unorm, Width: 1, Height: 1, Depth: component.CubeFaces, Mips: 1, Cube: true}
	return f.solid(r, &f.cube, common.White, "white cube", desc)
}

// solid creates a texture of one color per layer in slot on first use.
func (f *fallbacks) solid(r *renderer, slot *Resource, c common.Color, name string, desc component.TextureDesc) Resource {
	if *slot != nil {
		return *slot
	}
	tex, err := r.backend.CreateTexture(name, desc)
	if err != nil {
		r.logger.Error("renderer: fallback texture creation failed", zap.String("kind", name), zap.Error(err))
		return nil
	}
	img := common.SolidImage(c, desc.Width, desc.Height*desc.Depth)
	r.backend.WriteTexture(tex, desc, component.FullWrite(desc), img.Pixels)
	*slot = tex
	return tex
}

func (f *fallbacks) sampler(r *renderer, cfg component.SamplerConfig, comparison bool) Resource {
	k := samplerKey{cfg, comparison}
	if s, ok := f.samplers[k]; ok {
		return s
	}
	s, err := r.backend.CreateSampler(cfg, comparison)
	if err != nil {
		r.logger.Error("renderer: sampler creation failed", zap.Error(err))
		return nil
	}
	if f.samplers == nil {
		f.samplers = make(map[samplerKey]Resource)
	}
	f.samplers[k] = s
	return s
}

func (f *fallbacks) zeroBuffer(r *renderer, kind BufferKind, size uint64) Resource {
	k := zeroKey{kind, (max(size, 16) + 3) &^ 3}
	if b, ok := f.zero[k]; ok {
		return b
	}
	b, err := r.backend.CreateBuffer("zero", kind, k.size)
	if err != nil {
		r.logger.Error("renderer: zero buffer creation failed", zap.Error(err))
		return nil
	}
	if f.zero == nil {
		f.zero = make(map[zeroKey]Resource)
	}
	f.zero[k] = b
	return b
}

func (f *fallbacks) release() {
	for _, res := range []*Resource{&f.white, &f.black, &f.magenta, &f.cube} {
		if *res != nil {
			(*res).Release()
			*res = nil
		}
	}
	for k, s := range f.samplers {
		s.Release()
		delete(f.samplers, k)
	}
	for k, b := range f.zero {
		b.Release()
		delete(f.zero, k)
	}
}

// fallbackEntry binds the fallback resource for a reflected binding.
func (r *renderer) fallbackEntry(res shader.Resource) BindEntry {
	e := BindEntry{Binding: res.Binding}
	switch res.Type {
	case shader.ResourceUniform:
		e.Buffer = r.fallbacks.zeroBuffer(r, BufferUniform, res.Size)
	case shader.ResourceReadOnlyStorage, shader.ResourceStorage:
		e.Buffer = r.fallbacks.zeroBuffer(r, BufferStorage, res.Size)
	case shader.ResourceSampler:
		e.Sampler = r.fallbacks.sampler(r, component.SamplerConfig{}, false)
	case shader.ResourceComparisonSampler:
		e.Sampler = r.fallbacks.sampler(r, component.SamplerConfig{}, true)
	case shader.ResourceStorageTexture:
		e.Texture = r.fallbacks.pixel(r, &r.fallbacks.black, common.Black, "black")
	default:
		if res.Dim == shader.DimCube {
			e.Texture = r.fallbacks.cubePixel(r)
			break
		}
		e.Texture = r.fallbacks.pixel(r, &r.fallbacks.white, common.White, "white")
	}
	return e
}

// createBindGroup creates a bind group and counts it.
func (r *renderer) createBindGroup(p pipeline.Pipeline, group uint32, entries []BindEntry) Resource {
	for _, e := range entries {
		if e.Buffer == nil && e.Texture == nil && e.Sampler == nil {
			return nil
		}
	}
	bg, err := r.backend.CreateBindGroup(p, group, entries)
	if err != nil {
		r.logger.Warn("renderer: bind group creation failed",
			zap.Uint64("shader", uint64(p.Key().Shader)), zap.Uint32("group", group), zap.Error(err))
		return nil
	}
	r.stats.BindGroupsBuilt++
	return bg
}

func (r *renderer) passFrame(pass component.Handle) *frameState {
	st := r.frames[pass]
	if st == nil {
		st = &frameState{providers: make(map[string]bind_group_provider.BindGroupProvider)}
		r.frames[pass] = st
	}
	return st
}

// frameGroup returns the frame bind group of a pass for p's group layout. Binding 0 takes
// the frame uniform and binding 1 the light list.
func (r *renderer) frameGroup(st *frameState, p pipeline.Pipeline, group uint32) Resource {
	refl := p.Reflection()
	sig := refl.Signature(group)
	prov := st.providers[sig]
	if prov == nil {
		prov = bind_group_provider.NewBindGroupProvider("frame")
		st.providers[sig] = prov
	}
	if !prov.Stale(r.lookup) {
		return prov.BindGroup()
	}
	entries := make([]BindEntry, 0, len(refl.Group(group)))
	for _, res := range refl.Group(group) {
		switch {
		case res.Binding == 0 && res.Type == shader.ResourceUniform && st.uniform != nil:
			entries = append(entries, BindEntry{Binding: 0, Buffer: st.uniform})
		case res.Binding == 1 && res.Type.IsBuffer() && res.Type != shader.ResourceUniform && st.lights != nil:
			entries = append(entries, BindEntry{Binding: 1, Buffer: st.lights})
		default:
			entries = append(entries, r.fallbackEntry(res))
		}
	}
	bg := r.createBindGroup(p, group, entries)
	if bg != nil {
		prov.SetBindGroup(bg, nil)
	}
	return bg
}

// materialGroup returns the bind group built from a material's bindings. Inline uniform
// and storage data is copied into buffers owned by the provider; referenced textures and
// buffers are tracked by generation.
func (r *renderer) materialGroup(mat *component.Material, p pipeline.Pipeline, group uint32) Resource {
	refl := p.Reflection()
	sig := refl.Signature(group)
	st := r.materials[mat.Handle()]
	if st == nil {
		st = &materialState{}
		r.materials[mat.Handle()] = st
	}
	if st.provider == nil || st.revision != mat.Revision || st.signature != sig {
		st.release()
		st.provider = bind_group_provider.NewBindGroupProvider(fmt.Sprintf("material %d", mat.Handle()))
		st.revision = mat.Revision
		st.signature = sig
	}
	prov := st.provider
	if !prov.Stale(r.lookup) {
		return prov.BindGroup()
	}

	var deps []bind_group_provider.Dep
	entries := make([]BindEntry, 0, len(refl.Group(group)))
	for _, res := range refl.Group(group) {
		var b component.Binding
		if res.Binding < component.MaxMaterialBindings {
			b = mat.Bindings[res.Binding]
		}
		e := BindEntry{Binding: res.Binding}
		switch {
		case res.Type.IsBuffer():
			if data, ok := b.Bytes(); ok {
				e.Buffer = r.ownedBuffer(prov, res, data)
			} else if h, ok := b.Buffer(); ok {
				gen, _ := r.lookup(h)
				deps = append(deps, bind_group_provider.Dep{Handle: h, Generation: gen})
				if bs := r.buffers[h]; bs != nil && bs.res != nil {
					e.Buffer = bs.res
				}
			}
		case res.Type == shader.ResourceSampler || res.Type == shader.ResourceComparisonSampler:
			if cfg, ok := b.Sampler(); ok {
				e.Sampler = r.fallbacks.sampler(r, cfg, res.Type == shader.ResourceComparisonSampler)
			}
		default:
			if h, ok := b.Texture(); ok && h != 0 {
				gen, _ := r.lookup(h)
				deps = append(deps, bind_group_provider.Dep{Handle: h, Generation: gen})
				cube := res.Dim == shader.DimCube
				if ts := r.textures[h]; ts != nil {
					switch {
					case ts.res != nil && ts.desc.Cube == cube:
						e.Texture = ts.res
					case ts.res != nil:
						r.logger.Debug("renderer: texture view does not match binding, using fallback",
							zap.Uint64("texture", uint64(h)), zap.Uint32("binding", res.Binding))
					case ts.failed && !cube:
						e.Texture = r.fallbacks.pixel(r, &r.fallbacks.magenta, common.Magenta, "magenta")
					}
				}
			}
		}
		if e.Buffer == nil && e.Texture == nil && e.Sampler == nil {
			e = r.fallbackEntry(res)
		}
		entries = append(entries, e)
	}
	bg := r.createBindGroup(p, group, entries)
	if bg != nil {
		prov.SetBindGroup(bg, deps)
	}
	return bg
}

// ownedBuffer returns the provider's buffer for a binding, creating and filling it on
// first use. Providers are replaced when the material revision changes, so an existing
// buffer already holds the current data.
func (r *renderer) ownedBuffer(prov bind_group_provider.BindGroupProvider, res shader.Resource, data []byte) Resource {
	if b, ok := prov.Buffer(res.Binding); ok {
		return b.Buffer
	}
	kind := BufferStorage
	if res.Type == shader.ResourceUniform {
		kind = BufferUniform
	}
	size := (max(uint64(len(data)), res.Size, 16) + 3) &^ 3
	buf, err := r.backend.CreateBuffer(prov.Label(), kind, size)
	if err != nil {
		r.logger.Warn("renderer: material buffer creation failed", zap.String("material", prov.Label()), zap.Error(err))
		return nil
	}
	r.backend.WriteBuffer(buf, 0, data)
	r.stats.Uploads++
	prov.SetBuffer(res.Binding, bind_group_provider.OwnedBuffer{Buffer: buf, Size: size})
	return buf
}

// instanceGroup returns the bind group of a primitive group's instance data, rewriting the
// storage buffer when the group was repacked.
func (r *renderer) instanceGroup(k instanceKey, g *component.PrimitiveGroup, p pipeline.Pipeline, group uint32) Resource {
	refl := p.Reflection()
	sig := refl.Signature(group)
	st := r.instances[k]
	if st == nil {
		st = &instanceState{}
		r.instances[k] = st
	}
	if st.provider == nil || st.signature != sig {
		st.release()
		st.provider = bind_group_provider.NewBindGroupProvider(fmt.Sprintf("instances %d/%d", k.key.Material, k.key.Geometry))
		st.signature = sig
		st.generation = 0
	}
	prov := st.provider

	// the first storage buffer of the group receives the instance block
	binding := -1
	for _, res := range refl.Group(group) {
		if res.Type == shader.ResourceReadOnlyStorage || res.Type == shader.ResourceStorage {
			binding = int(res.Binding)
			break
		}
	}
	if binding >= 0 {
		need := uint64(len(g.InstanceData))
		owned, ok := prov.Buffer(uint32(binding))
		if !ok || owned.Size < need {
			size := max(need, owned.Size*2)
			buf, err := r.backend.CreateBuffer(prov.Label(), BufferStorage, size)
			if err != nil {
				r.logger.Warn("renderer: instance buffer creation failed", zap.Error(err))
				return nil
			}
			prov.SetBuffer(uint32(binding), bind_group_provider.OwnedBuffer{Buffer: buf, Size: size})
			st.generation = 0
		}
		if st.generation != g.Generation {
			owned, _ = prov.Buffer(uint32(binding))
			r.backend.WriteBuffer(owned.Buffer, 0, g.InstanceData)
			r.stats.Uploads++
			st.generation = g.Generation
		}
	}

	if !prov.Stale(r.lookup) {
		return prov.BindGroup()
	}
	entries := make([]BindEntry, 0, len(refl.Group(group)))
	for _, res := range refl.Group(group) {
		if int(res.Binding) == binding {
			owned, _ := prov.Buffer(res.Binding)
			entries = append(entries, BindEntry{Binding: res.Binding, Buffer: owned.Buffer})
			continue
		}
		entries = append(entries, r.fallbackEntry(res))
	}
	bg := r.createBindGroup(p, group, entries)
	if bg != nil {
		prov.SetBindGroup(bg, nil)
	}
	return bg
}

// fallbackGroup returns a bind group made only of fallbacks, for groups the renderer has
// no data for.
func (r *renderer) fallbackGroup(p pipeline.Pipeline, group uint32) Resource {
	refl := p.Reflection()
	sig := refl.Signature(group)
	prov := r.fallbackGroups[sig]
	if prov == nil {
		prov = bind_group_provider.NewBindGroupProvider("fallback")
		r.fallbackGroups[sig] = prov
	}
	if !prov.Stale(r.lookup) {
		return prov.BindGroup()
	}
	entries := make([]BindEntry, 0, len(refl.Group(group)))
	for _, res := range refl.Group(group) {
		entries = append(entries, r.fallbackEntry(res))
	}
	bg := r.createBindGroup(p, group, entries)
	if bg != nil {
		prov.SetBindGroup(bg, nil)
	}
	return bg
}

// uploadGeometry uploads a geometry's streams when its generation changed.
func (r *renderer) uploadGeometry(geo *component.Geometry) *geometryState {
	st := r.geometries[geo.Handle()]
	if st == nil {
		st = &geometryState{}
		r.geometries[geo.Handle()] = st
	}
	if st.generation == geo.Generation {
		return st
	}
	st.release()
	st.generation = geo.Generation
	label := fmt.Sprintf("geometry %d", geo.Handle())
	for loc, a := range geo.Attributes {
		if a.Components <= 0 || len(a.Data) == 0 {
			continue
		}
		buf, err := r.backend.CreateBuffer(label, BufferVertex, uint64(len(a.Data)*4))
		if err != nil {
			r.logger.Warn("renderer: vertex buffer creation failed", zap.String("geometry", label), zap.Error(err))
			continue
		}
		r.backend.WriteBuffer(buf, 0, common.SliceToBytes(a.Data))
		r.stats.Uploads++
		st.attributes[loc] = buf
	}
	if len(geo.Indices) > 0 {
		buf, err := r.backend.CreateBuffer(label, BufferIndex, uint64(len(geo.Indices)*4))
		if err != nil {
			r.logger.Warn("renderer: index buffer creation failed", zap.String("geometry", label), zap.Error(err))
		} else {
			r.backend.WriteBuffer(buf, 0, common.SliceToBytes(geo.Indices))
			r.stats.Uploads++
			st.index = buf
		}
	}
	return st
}

// vertexBuffers binds one stream per shader input: the geometry attribute at the input's
// location when its width matches, the zero stream otherwise. It returns the number of
// vertices every bound stream can supply.
func (r *renderer) vertexBuffers(st *geometryState, geo *component.Geometry, refl shader.Reflection, call *DrawCall) (int, bool) {
	count := geo.VertexCount()
	for _, in := range refl.Inputs {
		if in.Location < 0 || in.Location >= component.MaxVertexAttributes {
			continue
		}
		a := geo.Attributes[in.Location]
		if st.attributes[in.Location] != nil && a.Components == in.Components {
			count = min(count, len(a.Data)/a.Components)
		}
	}
	count = max(count, 0)

	for _, in := range refl.Inputs {
		var buf Resource
		if in.Location >= 0 && in.Location < component.MaxVertexAttributes {
			a := geo.Attributes[in.Location]
			if st.attributes[in.Location] != nil && a.Components == in.Components {
				buf = st.attributes[in.Location]
			}
		}
		if buf == nil {
			if st.zero == nil {
				zero, err := r.backend.CreateBuffer(fmt.Sprintf("geometry %d zero", geo.Handle()), BufferVertex, uint64(max(count, 1)*16))
				if err != nil {
					r.logger.Warn("renderer: zero stream creation failed", zap.Error(err))
					return 0, false
				}
				st.zero = zero
			}
			buf = st.zero
		}
		call.VertexBuffers = append(call.VertexBuffers, buf)
	}
	return count, true
}
