package renderer

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-scene/common"
	"github.com/Carmen-Shannon/oxy-scene/engine/component"
	"github.com/Carmen-Shannon/oxy-scene/engine/renderer/material"
	"github.com/Carmen-Shannon/oxy-scene/engine/scene"
	"github.com/Carmen-Shannon/oxy-scene/engine/transform"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type fixture struct {
	store   component.Store
	index   scene.Index
	tree    transform.Hierarchy
	backend *HeadlessBackend
	r       Renderer
	logs    *observer.ObservedLogs
	scene   component.Handle
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s := component.NewStore()
	idx := scene.NewIndex(s, scene.WithWorkers(2))
	core, logs := observer.New(zap.DebugLevel)
	b := NewHeadlessBackend(640, 480, MSAA4x)
	r, err := NewRenderer(BackendTypeHeadless, nil, s, idx, WithBackend(b), WithLogger(zap.New(core)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return &fixture{
		store:   s,
		index:   idx,
		tree:    transform.NewHierarchy(s, transform.WithSceneTracker(idx)),
		backend: b,
		r:       r,
		logs:    logs,
		scene:   s.Create(component.TypeScene).Handle(),
	}
}

func (f *fixture) shader(b material.Builtin) *component.Shader {
	sh := f.store.Create(component.TypeShader).(*component.Shader)
	sh.VertexSource = b.Source()
	return sh
}

func (f *fixture) material(sh *component.Shader, b material.Builtin, albedo component.Handle) *component.Material {
	def := material.Define(b, common.White, albedo)
	m := f.store.Create(component.TypeMaterial).(*component.Material)
	m.PSO = def.PSO
	m.PSO.Shader = sh.Handle()
	for loc, binding := range def.Bindings {
		m.SetBinding(loc, binding)
	}
	return m
}

func (f *fixture) triangle() *component.Geometry {
	g := f.store.Create(component.TypeGeometry).(*component.Geometry)
	g.Attributes[0] = component.VertexAttribute{Components: 3, Data: []float32{0, 0, 0, 1, 0, 0, 0, 1, 0}}
	g.Attributes[1] = component.VertexAttribute{Components: 3, Data: []float32{0, 0, 1, 0, 0, 1, 0, 0, 1}}
	g.Attributes[2] = component.VertexAttribute{Components: 2, Data: []float32{0, 0, 1, 0, 0, 1}}
	g.Indices = []uint32{0, 1, 2}
	return g
}

func (f *fixture) mesh(t *testing.T, geo, mat component.Handle) component.Handle {
	t.Helper()
	m := f.store.Create(component.TypeMesh).(*component.Mesh)
	m.Geometry, m.Material = geo, mat
	if err := f.tree.AddChild(f.scene, m.Handle()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return m.Handle()
}

func (f *fixture) render(t *testing.T, frame Frame) Stats {
	t.Helper()
	f.tree.RebuildDirty()
	f.index.RefreshStalePrimitiveGroups(f.scene)
	if frame.Scene == 0 {
		frame.Scene = f.scene
	}
	stats, err := f.r.Render(frame)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return stats
}

func TestRenderDrawsOneCallPerGroup(t *testing.T) {
	f := newFixture(t)
	sh := f.shader(material.Flat)
	red := f.material(sh, material.Flat, 0)
	blue := f.material(sh, material.Flat, 0)
	geo := f.triangle()
	f.mesh(t, geo.Handle(), red.Handle())
	f.mesh(t, geo.Handle(), red.Handle())
	f.mesh(t, geo.Handle(), blue.Handle())

	stats := f.render(t, Frame{})

	if stats.DrawCalls != 2 || stats.Instances != 3 {
		t.Errorf("expected 2 draws of 3 instances, got %d draws of %d", stats.DrawCalls, stats.Instances)
	}
	if stats.Pipelines != 1 {
		t.Errorf("expected one shared pipeline, got %d", stats.Pipelines)
	}
	if f.backend.Frames != 1 {
		t.Errorf("expected 1 presented frame, got %d", f.backend.Frames)
	}
	draw := f.backend.Passes[0].Draws[0]
	if draw.Count != 3 || len(draw.VertexBuffers) != 3 || draw.IndexBuffer == nil {
		t.Errorf("expected indexed draw of 3 with 3 streams, got count %d with %d streams", draw.Count, len(draw.VertexBuffers))
	}
	if len(draw.BindGroups) != 3 {
		t.Errorf("expected 3 bind groups, got %d", len(draw.BindGroups))
	}
}

func TestRenderReusesPipelinesAndBindGroups(t *testing.T) {
	f := newFixture(t)
	sh := f.shader(material.Flat)
	mat := f.material(sh, material.Flat, 0)
	f.mesh(t, f.triangle().Handle(), mat.Handle())

	first := f.render(t, Frame{})
	second := f.render(t, Frame{})

	if first.BindGroupsBuilt != 3 {
		t.Errorf("expected 3 bind groups on the first frame, got %d", first.BindGroupsBuilt)
	}
	if second.BindGroupsBuilt != 0 || second.Uploads != 0 {
		t.Errorf("expected an idle second frame, got %d bind groups and %d uploads", second.BindGroupsBuilt, second.Uploads)
	}
	if n := f.backend.Created["pipeline"]; n != 1 {
		t.Errorf("expected 1 pipeline created, got %d", n)
	}
}

func TestTextureReallocationRebuildsMaterialGroup(t *testing.T) {
	f := newFixture(t)
	tex := f.store.Create(component.TypeTexture).(*component.Texture)
	sh := f.shader(material.Lit)
	mat := f.material(sh, material.Lit, tex.Handle())
	f.mesh(t, f.triangle().Handle(), mat.Handle())

	f.render(t, Frame{})
	if got := f.render(t, Frame{}).BindGroupsBuilt; got != 0 {
		t.Fatalf("expected no rebuild before reallocation, got %d", got)
	}

	tex.Reallocate(component.TextureDesc{Format: component.FormatRGBA8Unorm, Width: 2, Height: 2})
	stats := f.render(t, Frame{})
	if stats.BindGroupsBuilt != 1 {
		t.Errorf("expected only the material group rebuilt, got %d", stats.BindGroupsBuilt)
	}
	if n := f.backend.Created["texture"]; n != 2 {
		t.Errorf("expected the texture recreated, got %d creations", n)
	}
}

func TestTextureWritesUploadOnce(t *testing.T) {
	f := newFixture(t)
	tex := f.store.Create(component.TypeTexture).(*component.Texture)
	tex.Pending = append(tex.Pending, component.TextureWrite{
		Region: component.FullWrite(tex.Desc),
		Data:   []byte{1, 2, 3, 4},
	})

	if got := f.render(t, Frame{}).Uploads; got != 1 {
		t.Errorf("expected 1 upload, got %d", got)
	}
	if len(tex.Pending) != 0 {
		t.Errorf("expected pending writes cleared, got %d", len(tex.Pending))
	}
	if got := f.render(t, Frame{}).Uploads; got != 0 {
		t.Errorf("expected no uploads on the next frame, got %d", got)
	}
	st := f.r.(*renderer).textures[tex.Handle()]
	if data := st.res.(*HeadlessResource).Data; data[0] != 1 || data[3] != 4 {
		t.Errorf("expected texel [1 2 3 4], got %v", data[:4])
	}
}

func TestShaderChangeEvictsPipeline(t *testing.T) {
	f := newFixture(t)
	sh := f.shader(material.Flat)
	mat := f.material(sh, material.Flat, 0)
	f.mesh(t, f.triangle().Handle(), mat.Handle())

	f.render(t, Frame{})
	sh.VertexSource = material.Normal.Source()
	sh.Generation++
	stats := f.render(t, Frame{})

	if n := f.backend.Created["pipeline"]; n != 2 {
		t.Errorf("expected the pipeline rebuilt, got %d creations", n)
	}
	if stats.Pipelines != 1 || stats.DrawCalls != 1 {
		t.Errorf("expected 1 cached pipeline and 1 draw, got %d and %d", stats.Pipelines, stats.DrawCalls)
	}
}

func TestPassChainDrawsIntoTargetThenScreen(t *testing.T) {
	f := newFixture(t)
	sh := f.shader(material.Flat)
	mat := f.material(sh, material.Flat, 0)
	f.mesh(t, f.triangle().Handle(), mat.Handle())

	target := f.store.Create(component.TypeTexture).(*component.Texture)
	target.Reallocate(component.TextureDesc{Format: component.FormatRGBA8Unorm, Width: 64, Height: 32})
	post := f.material(f.shader(material.Fullscreen), material.Fullscreen, target.Handle())

	screen := f.store.Create(component.TypePass).(*component.Pass)
	screen.Kind = component.PassScreen
	screen.Material = post.Handle()

	offscreen := f.store.Create(component.TypePass).(*component.Pass)
	offscreen.Scene = f.scene
	offscreen.Target = target.Handle()
	offscreen.Next = screen.Handle()

	stats := f.render(t, Frame{RootPass: offscreen.Handle()})

	if stats.Passes != 2 || len(f.backend.Passes) != 2 {
		t.Fatalf("expected 2 passes, got %d", stats.Passes)
	}
	first, second := f.backend.Passes[0], f.backend.Passes[1]
	if first.Target.Texture == nil || first.Target.Width != 64 || first.Target.Height != 32 {
		t.Errorf("expected first pass into the 64x32 target, got %+v", first.Target)
	}
	if second.Target.Texture != nil {
		t.Error("expected second pass into the surface")
	}
	if len(second.Draws) != 1 || second.Draws[0].Count != 3 || second.Draws[0].IndexBuffer != nil {
		t.Fatalf("expected one fullscreen triangle, got %+v", second.Draws)
	}
	if key := second.Draws[0].Pipeline.Key(); key.DepthTest || key.ColorFormat != component.FormatSurface || key.SampleCount != 4 {
		t.Errorf("expected depthless surface pipeline, got %+v", key)
	}
	if key := first.Draws[0].Pipeline.Key(); key.SampleCount != 1 || key.ColorFormat != component.FormatRGBA8Unorm {
		t.Errorf("expected single sampled target pipeline, got %+v", key)
	}
}

func TestPassChainStopsOnLoop(t *testing.T) {
	f := newFixture(t)
	p := f.store.Create(component.TypePass).(*component.Pass)
	p.Next = p.Handle()

	stats := f.render(t, Frame{RootPass: p.Handle()})
	if stats.Passes != 1 {
		t.Errorf("expected 1 pass, got %d", stats.Passes)
	}
	if n := f.logs.FilterMessage("renderer: pass chain loops").Len(); n != 1 {
		t.Errorf("expected 1 loop warning, got %d", n)
	}
}

func TestImplicitPassClearsWithBackground(t *testing.T) {
	f := newFixture(t)
	sc, _ := f.store.Scene(f.scene)
	sc.Desc.Background = common.Color{0.2, 0.3, 0.4, 1}

	f.render(t, Frame{})
	if len(f.backend.Passes) != 1 {
		t.Fatalf("expected 1 pass, got %d", len(f.backend.Passes))
	}
	if got := f.backend.Passes[0].Target; !got.Clear || got.ClearColor != sc.Desc.Background {
		t.Errorf("expected clear to background, got %+v", got)
	}
}

func TestMissingTextureUsesFallback(t *testing.T) {
	f := newFixture(t)
	sh := f.shader(material.UnlitTexture)
	mat := f.material(sh, material.UnlitTexture, 999)
	f.mesh(t, f.triangle().Handle(), mat.Handle())

	if got := f.render(t, Frame{}).DrawCalls; got != 1 {
		t.Errorf("expected the draw to use the white fallback, got %d draws", got)
	}
	if f.r.(*renderer).fallbacks.white == nil {
		t.Error("expected the white fallback to be created")
	}
}

func TestMaterialWithoutShaderIsSkipped(t *testing.T) {
	f := newFixture(t)
	mat := f.store.Create(component.TypeMaterial).(*component.Material)
	f.mesh(t, f.triangle().Handle(), mat.Handle())

	if got := f.render(t, Frame{}).DrawCalls; got != 0 {
		t.Errorf("expected no draws, got %d", got)
	}
	if n := f.logs.FilterMessage("renderer: material has no shader").Len(); n != 1 {
		t.Errorf("expected 1 debug entry, got %d", n)
	}
}

func TestMissingAttributeBindsZeroStream(t *testing.T) {
	f := newFixture(t)
	sh := f.shader(material.UV)
	mat := f.material(sh, material.UV, 0)
	geo := f.triangle()
	geo.Attributes[2] = component.VertexAttribute{}
	f.mesh(t, geo.Handle(), mat.Handle())

	f.render(t, Frame{})
	draw := f.backend.Passes[0].Draws[0]
	zero := f.r.(*renderer).geometries[geo.Handle()].zero
	if zero == nil || draw.VertexBuffers[2] != zero {
		t.Error("expected the uv input bound to the zero stream")
	}
}

func TestReleaseFreesEverything(t *testing.T) {
	f := newFixture(t)
	tex := f.store.Create(component.TypeTexture).(*component.Texture)
	sh := f.shader(material.Lit)
	mat := f.material(sh, material.Lit, tex.Handle())
	f.mesh(t, f.triangle().Handle(), mat.Handle())
	f.render(t, Frame{})

	f.r.Release()
	if n := f.backend.Live(); n != 0 {
		t.Errorf("expected no live resources, got %d", n)
	}
}

func TestDestroyedTextureIsReleased(t *testing.T) {
	f := newFixture(t)
	tex := f.store.Create(component.TypeTexture)
	f.render(t, Frame{})
	live := f.backend.Live()

	_ = f.store.Destroy(tex.Handle())
	f.store.CollectGarbage()
	f.render(t, Frame{})
	if n := f.backend.Live(); n != live-1 {
		t.Errorf("expected %d live resources, got %d", live-1, n)
	}
}

const scaleCompute = `
struct Params {
    scale: f32,
    count: u32,
}

@group(0) @binding(0) var<uniform> params: Params;
@group(0) @binding(1) var<storage, read_write> values: array<f32>;

@compute @workgroup_size(8, 8)
fn scale_values(@builtin(global_invocation_id) id: vec3<u32>) {
    if (id.x < params.count) {
        values[id.x] = values[id.x] * params.scale;
    }
}
`

func (f *fixture) computeMaterial(source string, bindings map[int]component.Binding) *component.Material {
	sh := f.store.Create(component.TypeShader).(*component.Shader)
	sh.ComputeSource = source
	m := f.store.Create(component.TypeMaterial).(*component.Material)
	m.PSO = component.DefaultPipelineState(sh.Handle())
	for loc, b := range bindings {
		m.SetBinding(loc, b)
	}
	return m
}

func TestComputePassDispatchesBeforeDraws(t *testing.T) {
	f := newFixture(t)
	buf := f.store.Create(component.TypeBuffer).(*component.Buffer)
	buf.Size = 256
	mat := f.computeMaterial(scaleCompute, map[int]component.Binding{
		0: component.UniformBinding(make([]byte, 8)),
		1: component.BufferBinding(buf.Handle()),
	})

	draw := f.store.Create(component.TypePass).(*component.Pass)
	draw.Scene = f.scene
	compute := f.store.Create(component.TypePass).(*component.Pass)
	compute.Kind = component.PassCompute
	compute.Material = mat.Handle()
	compute.Workgroups = [3]uint32{4, 2, 1}
	compute.Next = draw.Handle()

	stats := f.render(t, Frame{RootPass: compute.Handle()})

	if stats.Dispatches != 1 || len(f.backend.Dispatches) != 1 {
		t.Fatalf("expected 1 dispatch, got %d", stats.Dispatches)
	}
	if stats.Passes != 1 || len(f.backend.Passes) != 1 {
		t.Errorf("expected only the render pass to begin a pass, got %d", len(f.backend.Passes))
	}
	call := f.backend.Dispatches[0]
	if call.Workgroups != [3]uint32{4, 2, 1} {
		t.Errorf("expected workgroups [4 2 1], got %v", call.Workgroups)
	}
	key := call.Pipeline.Key()
	if !key.Compute || key.Shader != mat.PSO.Shader {
		t.Errorf("expected compute key for shader %d, got %+v", mat.PSO.Shader, key)
	}
	refl := call.Pipeline.Reflection()
	if refl.ComputeEntry != "scale_values" || refl.WorkgroupSize != [3]uint32{8, 8, 1} {
		t.Errorf("expected scale_values at [8 8 1], got %q at %v", refl.ComputeEntry, refl.WorkgroupSize)
	}
	if len(call.BindGroups) != 1 || call.BindGroups[0] == nil {
		t.Errorf("expected one bound group, got %v", call.BindGroups)
	}
	if n := f.backend.Created["compute_pipeline"]; n != 1 {
		t.Errorf("expected 1 compute pipeline, got %d", n)
	}

	f.render(t, Frame{RootPass: compute.Handle()})
	if n := f.backend.Created["compute_pipeline"]; n != 1 {
		t.Errorf("expected the compute pipeline cached, got %d creations", n)
	}
}

func TestComputePassSkipsRenderShader(t *testing.T) {
	f := newFixture(t)
	mat := f.material(f.shader(material.Flat), material.Flat, 0)
	compute := f.store.Create(component.TypePass).(*component.Pass)
	compute.Kind = component.PassCompute
	compute.Material = mat.Handle()

	stats := f.render(t, Frame{RootPass: compute.Handle()})

	if stats.Dispatches != 0 || len(f.backend.Dispatches) != 0 {
		t.Errorf("expected no dispatch, got %d", stats.Dispatches)
	}
	if f.logs.FilterMessage("renderer: pass skipped").Len() != 1 {
		t.Error("expected the skipped pass to be logged")
	}
}

func TestComputePassWithZeroWorkgroupsDoesNothing(t *testing.T) {
	f := newFixture(t)
	mat := f.computeMaterial(scaleCompute, nil)
	compute := f.store.Create(component.TypePass).(*component.Pass)
	compute.Kind = component.PassCompute
	compute.Material = mat.Handle()
	compute.Workgroups = [3]uint32{16, 0, 1}

	stats := f.render(t, Frame{RootPass: compute.Handle()})
	if stats.Dispatches != 0 || f.backend.Created["compute_pipeline"] != 0 {
		t.Errorf("expected nothing dispatched or built, got %d dispatches", stats.Dispatches)
	}
}

func TestTargetPassMultisamples(t *testing.T) {
	f := newFixture(t)
	mat := f.material(f.shader(material.Flat), material.Flat, 0)
	f.mesh(t, f.triangle().Handle(), mat.Handle())

	target := f.store.Create(component.TypeTexture).(*component.Texture)
	target.Reallocate(component.TextureDesc{Format: component.FormatRGBA16Float, Width: 32, Height: 32})
	pass := f.store.Create(component.TypePass).(*component.Pass)
	pass.Scene = f.scene
	pass.Target = target.Handle()
	pass.SampleCount = 8

	f.render(t, Frame{RootPass: pass.Handle()})

	if len(f.backend.Passes) != 1 || len(f.backend.Passes[0].Draws) != 1 {
		t.Fatalf("expected one pass with one draw, got %+v", f.backend.Passes)
	}
	p := f.backend.Passes[0]
	if p.Target.SampleCount != 8 {
		t.Errorf("expected the target drawn at 8 samples, got %d", p.Target.SampleCount)
	}
	if key := p.Draws[0].Pipeline.Key(); key.SampleCount != 8 || key.ColorFormat != component.FormatRGBA16Float {
		t.Errorf("expected an 8 sample rgba16f pipeline, got %+v", key)
	}
}

const cubeScreen = `
struct ScreenOut {
    @builtin(position) clip: vec4<f32>,
    @location(0) dir: vec3<f32>,
}

@group(1) @binding(0) var sky: texture_cube<f32>;
@group(1) @binding(1) var sky_sampler: sampler;

@vertex
fn vs_main(@builtin(vertex_index) i: u32) -> ScreenOut {
    let uv = vec2<f32>(f32((i << 1u) & 2u), f32(i & 2u));
    var out: ScreenOut;
    out.clip = vec4<f32>(uv * 2.0 - 1.0, 0.0, 1.0);
    out.dir = vec3<f32>(uv * 2.0 - 1.0, 1.0);
    return out;
}

@fragment
fn fs_main(in: ScreenOut) -> @location(0) vec4<f32> {
    return textureSample(sky, sky_sampler, in.dir);
}
`

func TestCubeBindingRejectsFlatTexture(t *testing.T) {
	tests := []struct {
		name         string
		cube         bool
		wantFallback bool
	}{
		{"cubemap binds itself", true, false},
		{"2d texture falls back", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			tex := f.store.Create(component.TypeTexture).(*component.Texture)
			tex.Reallocate(component.TextureDesc{Format: component.FormatRGBA8Unorm, Width: 4, Height: 4, Cube: tt.cube})

			sh := f.store.Create(component.TypeShader).(*component.Shader)
			sh.VertexSource = cubeScreen
			m := f.store.Create(component.TypeMaterial).(*component.Material)
			m.PSO = component.DefaultPipelineState(sh.Handle())
			m.SetBinding(0, component.TextureBinding(tex.Handle()))
			m.SetBinding(1, component.SamplerBinding(component.SamplerConfig{}))

			pass := f.store.Create(component.TypePass).(*component.Pass)
			pass.Kind = component.PassScreen
			pass.Material = m.Handle()
			stats := f.render(t, Frame{RootPass: pass.Handle()})

			if stats.DrawCalls != 1 {
				t.Fatalf("expected the sky drawn, got %d draws", stats.DrawCalls)
			}
			gotFallback := f.r.(*renderer).fallbacks.cube != nil
			if gotFallback != tt.wantFallback {
				t.Errorf("expected cube fallback %v, got %v", tt.wantFallback, gotFallback)
			}
		})
	}
}

func TestCubeTargetIsRejected(t *testing.T) {
	f := newFixture(t)
	target := f.store.Create(component.TypeTexture).(*component.Texture)
	target.Reallocate(component.TextureDesc{Width: 8, Height: 8, Cube: true})
	pass := f.store.Create(component.TypePass).(*component.Pass)
	pass.Scene = f.scene
	pass.Target = target.Handle()

	stats := f.render(t, Frame{RootPass: pass.Handle()})
	if stats.Passes != 0 {
		t.Errorf("expected the pass skipped, got %d passes", stats.Passes)
	}
	if target.Desc.Depth != component.CubeFaces {
		t.Errorf("expected a cube to hold %d layers, got %d", component.CubeFaces, target.Desc.Depth)
	}
}
