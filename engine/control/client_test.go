package control

import (
	"errors"
	"testing"

	"github.com/Carmen-Shannon/oxy-scene/common"
	"github.com/Carmen-Shannon/oxy-scene/engine/camera"
	"github.com/Carmen-Shannon/oxy-scene/engine/command"
	"github.com/Carmen-Shannon/oxy-scene/engine/component"
	"github.com/Carmen-Shannon/oxy-scene/engine/renderer/material"
	"github.com/Carmen-Shannon/oxy-scene/engine/scene"
	"github.com/Carmen-Shannon/oxy-scene/engine/transform"
	"github.com/go-gl/mathgl/mgl32"
)

type fixture struct {
	store  component.Store
	index  scene.Index
	queue  command.Queue
	target *command.Target
	c      Client
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s := component.NewStore()
	idx := scene.NewIndex(s, scene.WithWorkers(1))
	q := command.NewQueue()
	return &fixture{
		store: s,
		index: idx,
		queue: q,
		target: &command.Target{
			Store:  s,
			Tree:   transform.NewHierarchy(s, transform.WithSceneTracker(idx)),
			Scenes: idx,
			Active: &command.Active{},
			Debug:  true,
		},
		c: NewClient(q, s.Allocator()),
	}
}

// apply flushes the client and runs the commands the way a frame would.
func (f *fixture) apply() int {
	f.c.Flush()
	f.queue.Swap()
	return f.queue.Drain(f.target)
}

func TestFlushBatchesInOrder(t *testing.T) {
	f := newFixture(t)
	h := f.c.Transform("a")
	if err := f.c.SetPosition(h, mgl32.Vec3{1, 2, 3}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.queue.Pending() != 0 {
		t.Fatalf("expected nothing queued before Flush, got %d", f.queue.Pending())
	}
	if n := f.c.Flush(); n != 2 {
		t.Errorf("expected 2 commands flushed, got %d", n)
	}
	if f.c.Pending() != 0 || f.queue.Pending() != 2 {
		t.Errorf("expected 0 batched and 2 queued, got %d and %d", f.c.Pending(), f.queue.Pending())
	}
	f.queue.Swap()
	f.queue.Drain(f.target)
	tr, err := f.store.Transform(h)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tr.Position != (mgl32.Vec3{1, 2, 3}) || tr.Name() != "a" {
		t.Errorf("expected named transform at [1 2 3], got %q at %v", tr.Name(), tr.Position)
	}
}

func TestSceneIsBuiltOnRenderSide(t *testing.T) {
	f := newFixture(t)
	sc := f.c.Scene()
	geo := f.c.Geometry()
	mat, err := f.c.BuiltinMaterial(material.Flat, common.White, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m, err := f.c.Mesh(geo, mat)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := f.c.AddChild(sc, m); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cam := f.c.Camera(component.DefaultCameraParams())
	if err := f.c.SetMainCamera(cam); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f.apply()

	if got := f.index.NumPrimitives(sc, mat, geo); got != 1 {
		t.Errorf("expected 1 primitive, got %d", got)
	}
	if f.target.Active.Scene != sc || f.target.Active.Camera != cam {
		t.Errorf("expected active scene %d camera %d, got %+v", sc, cam, *f.target.Active)
	}
	s, _ := f.store.Scene(sc)
	if s.Desc.MainCamera != cam {
		t.Errorf("expected main camera %d, got %d", cam, s.Desc.MainCamera)
	}
	if f.c.MainScene() != sc {
		t.Errorf("expected first scene to become main, got %d", f.c.MainScene())
	}
}

func TestBuiltinShaderIsShared(t *testing.T) {
	f := newFixture(t)
	a, _ := f.c.BuiltinMaterial(material.Flat, common.White, 0)
	b, _ := f.c.BuiltinMaterial(material.Flat, common.Color{1, 0, 0, 1}, 0)
	c, _ := f.c.BuiltinMaterial(material.Normal, common.White, 0)
	f.apply()

	if got := f.store.Len(component.TypeShader); got != 2 {
		t.Errorf("expected 2 shaders, got %d", got)
	}
	ma, _ := f.store.Material(a)
	mb, _ := f.store.Material(b)
	mc, _ := f.store.Material(c)
	if ma.PSO.Shader != mb.PSO.Shader || ma.PSO.Shader == mc.PSO.Shader {
		t.Errorf("expected flat materials to share a shader, got %d %d %d", ma.PSO.Shader, mb.PSO.Shader, mc.PSO.Shader)
	}
}

func TestAddChildRejectsCycle(t *testing.T) {
	f := newFixture(t)
	a := f.c.Transform("a")
	b := f.c.Transform("b")
	if err := f.c.AddChild(a, b); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	pending := f.c.Pending()
	tests := []struct {
		name          string
		parent, child component.Handle
	}{
		{"self", a, a},
		{"ancestor under descendant", b, a},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := f.c.AddChild(tt.parent, tt.child); !errors.Is(err, transform.ErrCycle) {
				t.Errorf("expected ErrCycle, got %v", err)
			}
		})
	}
	if f.c.Pending() != pending {
		t.Errorf("expected no commands for rejected links, got %d more", f.c.Pending()-pending)
	}
}

func TestAddChildRejectsScene(t *testing.T) {
	f := newFixture(t)
	main := f.c.Scene()
	other := f.c.Scene()
	group := f.c.Transform("group")
	if err := f.c.AddChild(main, group); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	pending := f.c.Pending()

	for _, parent := range []component.Handle{group, main} {
		if err := f.c.AddChild(parent, other); !errors.Is(err, transform.ErrSceneNotRoot) {
			t.Errorf("expected ErrSceneNotRoot under %d, got %v", parent, err)
		}
	}
	if f.c.Pending() != pending {
		t.Errorf("expected no commands for rejected links, got %d more", f.c.Pending()-pending)
	}

	f.apply()
	if got, _ := f.c.Parent(other); got != 0 {
		t.Errorf("expected the client to keep the scene a root, got parent %d", got)
	}
	n, err := f.store.Node(other)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n.Parent != 0 {
		t.Errorf("expected the render store to keep the scene a root, got parent %d", n.Parent)
	}
}

func TestWriteTextureValidation(t *testing.T) {
	f := newFixture(t)
	tex := f.c.Texture(component.TextureDesc{Format: component.FormatRGBA8Unorm, Width: 4, Height: 4})
	loaded := f.c.LoadTexture("missing.png", false)
	full := make([]byte, 4*4*4)

	tests := []struct {
		name   string
		tex    component.Handle
		region component.TextureWriteDesc
		data   []byte
		want   error
	}{
		{"full", tex, component.TextureWriteDesc{Width: 4, Height: 4}, full, nil},
		{"corner", tex, component.TextureWriteDesc{OffsetX: 2, OffsetY: 2, Width: 2, Height: 2}, full[:16], nil},
		{"out of bounds", tex, component.TextureWriteDesc{OffsetX: 3, Width: 2, Height: 1}, full, component.ErrWriteOutOfBounds},
		{"bad mip", tex, component.TextureWriteDesc{Mip: 1, Width: 1, Height: 1}, full, component.ErrInvalidMip},
		{"short data", tex, component.TextureWriteDesc{Width: 4, Height: 4}, full[:10], component.ErrPixelDataLength},
		{"unknown size", loaded, component.TextureWriteDesc{Width: 1, Height: 1}, full, component.ErrWriteOutOfBounds},
		{"not a texture", f.c.Geometry(), component.TextureWriteDesc{Width: 1, Height: 1}, full, component.ErrTypeMismatch},
		{"unknown handle", 999, component.TextureWriteDesc{Width: 1, Height: 1}, full, component.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.c.WriteTexture(tt.tex, tt.region, tt.data)
			if tt.want == nil && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}

	f.apply()
	rec, _ := f.store.Texture(tex)
	if len(rec.Pending) != 2 {
		t.Errorf("expected 2 pending writes, got %d", len(rec.Pending))
	}
}

func TestWriteBufferRange(t *testing.T) {
	f := newFixture(t)
	buf := f.c.Buffer(component.BufferUsageStorage, 16)
	if err := f.c.WriteBuffer(buf, 8, make([]byte, 8)); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := f.c.WriteBuffer(buf, 12, make([]byte, 8)); !errors.Is(err, component.ErrBufferWriteRange) {
		t.Errorf("expected ErrBufferWriteRange, got %v", err)
	}
	if err := f.c.WriteBuffer(buf, 32, nil); !errors.Is(err, component.ErrBufferWriteRange) {
		t.Errorf("expected ErrBufferWriteRange past the end, got %v", err)
	}
}

func TestTypeChecks(t *testing.T) {
	f := newFixture(t)
	tr := f.c.Transform("")
	geo := f.c.Geometry()
	if err := f.c.SetMaterial(tr, 0); !errors.Is(err, component.ErrTypeMismatch) {
		t.Errorf("expected ErrTypeMismatch, got %v", err)
	}
	if err := f.c.SetPosition(geo, mgl32.Vec3{}); !errors.Is(err, component.ErrTypeMismatch) {
		t.Errorf("expected ErrTypeMismatch for a non-node, got %v", err)
	}
	if _, err := f.c.Mesh(tr, 0); !errors.Is(err, component.ErrTypeMismatch) {
		t.Errorf("expected ErrTypeMismatch for a transform as geometry, got %v", err)
	}
	if err := f.c.SetPosition(12345, mgl32.Vec3{}); !errors.Is(err, component.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := f.c.GeometryAttribute(geo, component.MaxVertexAttributes, 3, nil); !errors.Is(err, command.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestDestroy(t *testing.T) {
	tests := []struct {
		name       string
		subtree    bool
		childAlive bool
	}{
		{"detach children", false, true},
		{"whole subtree", true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			root := f.c.Transform("root")
			child := f.c.Transform("child")
			grand := f.c.Transform("grand")
			_ = f.c.AddChild(root, child)
			_ = f.c.AddChild(child, grand)
			if err := f.c.Destroy(child, tt.subtree); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if _, err := f.c.Position(child); !errors.Is(err, component.ErrNotFound) {
				t.Errorf("expected destroyed node to be gone, got %v", err)
			}
			parent, err := f.c.Parent(grand)
			if (err == nil) != tt.childAlive {
				t.Errorf("expected grandchild alive=%v, got err %v", tt.childAlive, err)
			}
			if tt.childAlive && parent != 0 {
				t.Errorf("expected grandchild to become a root, got parent %d", parent)
			}
			if kids, _ := f.c.Children(root); len(kids) != 0 {
				t.Errorf("expected root to have no children, got %v", kids)
			}

			f.apply()
			f.store.CollectGarbage()
			if _, ok := f.store.Get(grand); ok != tt.childAlive {
				t.Errorf("expected render side grandchild alive=%v", tt.childAlive)
			}
		})
	}
}

func TestSnapshotReads(t *testing.T) {
	f := newFixture(t)
	cam := f.c.Camera(component.DefaultCameraParams())
	o := camera.NewOrbit(camera.WithRadius(5), camera.WithAngles(0, 0))
	if err := f.c.Orbit(cam, o); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p, err := f.c.Position(cam)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !p.ApproxEqualThreshold(o.Eye(), 1e-5) {
		t.Errorf("expected position %v, got %v", o.Eye(), p)
	}
	s, _ := f.c.Scale(cam)
	if s != (mgl32.Vec3{1, 1, 1}) {
		t.Errorf("expected unit scale, got %v", s)
	}
}

func TestInput(t *testing.T) {
	in := NewInput()
	in.KeyDown(32)
	in.KeyDown(32)
	if !in.Key(32) || !in.KeyPressed(32) {
		t.Error("expected key held and pressed")
	}
	if in.KeyPressed(32) {
		t.Error("expected press to be consumed")
	}
	in.KeyUp(32)
	if in.Key(32) {
		t.Error("expected key released")
	}
	in.Scroll(1)
	in.Scroll(0.5)
	if got := in.TakeScroll(); got != 1.5 {
		t.Errorf("expected 1.5 scroll, got %f", got)
	}
	in.SetButton(MouseMiddle, true, 10, 20)
	if x, y := in.Mouse(); !in.Button(MouseMiddle) || x != 10 || y != 20 {
		t.Errorf("expected middle button held at 10,20, got %v %d,%d", in.Button(MouseMiddle), x, y)
	}
}

func TestPassValidation(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name string
		desc PassDesc
		ok   bool
	}{
		{"compute", PassDesc{Kind: component.PassCompute, Workgroups: [3]uint32{4, 4, 1}}, true},
		{"multisampled", PassDesc{SampleCount: 4}, true},
		{"odd sample count", PassDesc{SampleCount: 3}, false},
		{"unknown kind", PassDesc{Kind: component.PassKind(12)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.c.Pass(tt.desc)
			if tt.ok && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tt.ok && !errors.Is(err, command.ErrInvalidArgument) {
				t.Errorf("expected ErrInvalidArgument, got %v", err)
			}
		})
	}
}

func TestOutputMaterial(t *testing.T) {
	f := newFixture(t)
	hdr := f.c.Texture(component.TextureDesc{Format: component.FormatRGBA16Float, Width: 4, Height: 4})
	if _, err := f.c.OutputMaterial(hdr, material.OutputParams{Tonemap: material.Tonemap(99)}); !errors.Is(err, command.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument for an unknown curve, got %v", err)
	}
	m, err := f.c.OutputMaterial(hdr, material.DefaultOutputParams())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f.apply()

	rec, err := f.store.Material(m)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.PSO.DepthTest {
		t.Error("expected the output material to skip depth")
	}
	if h, ok := rec.Bindings[material.BindingAlbedo].Texture(); !ok || h != hdr {
		t.Errorf("expected input %d bound, got %d", hdr, h)
	}
}

func TestComputeShaderAndCubemap(t *testing.T) {
	f := newFixture(t)
	sh := f.c.Shader(ShaderSource{Compute: "@compute @workgroup_size(8) fn main() {}", ComputeEntry: "main"})
	cube := f.c.LoadCubemap([component.CubeFaces]string{"a", "b", "c", "d", "e", "f"}, true)
	f.apply()

	s, err := f.store.Shader(sh)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !s.IsCompute() || s.ComputeEntry != "main" {
		t.Errorf("expected compute shader with entry main, got %q", s.ComputeEntry)
	}
	// no image loader on the target, so the cube falls back
	tex, err := f.store.Texture(cube)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !tex.Desc.Cube || tex.Desc.Depth != component.CubeFaces || tex.Desc.Format != component.FormatRGBA8UnormSrgb {
		t.Errorf("expected an sRGB fallback cube, got %+v", tex.Desc)
	}
}
