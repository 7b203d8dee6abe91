package assets

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/Carmen-Shannon/oxy-scene/engine/command"
	"github.com/Carmen-Shannon/oxy-scene/engine/component"
	"github.com/Carmen-Shannon/oxy-scene/engine/control"
	"github.com/Carmen-Shannon/oxy-scene/engine/scene"
	"github.com/Carmen-Shannon/oxy-scene/engine/transform"
	"github.com/go-gl/mathgl/mgl32"
)

const testManifest = `
scene:
  background: [0.1, 0.2, 0.3]
  ambient: [0.5, 0.5, 0.5]
  fog:
    kind: exp2
    density: 0.05
textures:
  checker:
    path: checker.png
    srgb: true
  dot:
    width: 1
    height: 1
    pixels: [1, 0, 0, 1]
geometries:
  box:
    primitive: cube
  tri:
    attributes:
      - {location: 0, components: 3, data: [0, 0, 0, 1, 0, 0, 0, 1, 0]}
    indices: [0, 1, 2]
materials:
  red:
    builtin: flat
    color: [1, 0, 0]
  skin:
    builtin: unlit_texture
    texture: checker
nodes:
  - name: cam
    type: camera
    fov: 60
    position: [0, 2, 5]
    look_at: [0, 0, 0]
  - name: root
    position: [1, 0, 0]
    children:
      - name: crate
        type: mesh
        geometry: box
        material: skin
        scale: [2, 2, 2]
      - name: sun
        type: light
        light: point
        intensity: 3
`

type harness struct {
	store  component.Store
	queue  command.Queue
	target *command.Target
	client control.Client
}

func newHarness(t *testing.T, dir string) *harness {
	t.Helper()
	s := component.NewStore()
	idx := scene.NewIndex(s, scene.WithWorkers(1))
	q := command.NewQueue()
	return &harness{
		store: s,
		queue: q,
		target: &command.Target{
			Store:  s,
			Tree:   transform.NewHierarchy(s, transform.WithSceneTracker(idx)),
			Scenes: idx,
			Images: NewLoader(WithDir(dir)),
			Active: &command.Active{},
			Debug:  true,
		},
		client: control.NewClient(q, s.Allocator()),
	}
}

func (h *harness) apply() {
	h.client.Flush()
	h.queue.Swap()
	h.queue.Drain(h.target)
}

func TestReplay(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, dir, "checker.png", 4, 2)
	path := filepath.Join(dir, "scene.yaml")
	if err := os.WriteFile(path, []byte(testManifest), 0o644); err != nil {
		t.Fatal(err)
	}
	m, err := LoadManifest(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	h := newHarness(t, dir)
	names, err := Replay(h.client, m)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	h.apply()

	for name, typ := range map[string]component.Type{
		"checker": component.TypeTexture,
		"dot":     component.TypeTexture,
		"box":     component.TypeGeometry,
		"tri":     component.TypeGeometry,
		"red":     component.TypeMaterial,
		"skin":    component.TypeMaterial,
		"cam":     component.TypeCamera,
		"root":    component.TypeTransform,
		"crate":   component.TypeMesh,
		"sun":     component.TypeLight,
	} {
		if got := h.client.TypeOf(names[name]); got != typ {
			t.Errorf("%s: expected %s, got %s", name, typ, got)
		}
	}

	sc, err := h.store.Scene(h.client.MainScene())
	if err != nil {
		t.Fatalf("expected a main scene: %v", err)
	}
	if sc.Desc.Background != [4]float32{0.1, 0.2, 0.3, 1} {
		t.Errorf("expected background to keep opaque alpha, got %v", sc.Desc.Background)
	}
	if !sc.Desc.Fog.Enabled || sc.Desc.Fog.Kind != component.FogExponentialSquared {
		t.Errorf("expected exp2 fog, got %+v", sc.Desc.Fog)
	}
	if h.client.MainCamera() != names["cam"] {
		t.Errorf("expected the only camera to become main, got %d", h.client.MainCamera())
	}

	parent, err := h.client.Parent(names["crate"])
	if err != nil || parent != names["root"] {
		t.Errorf("expected crate under root, got %d (%v)", parent, err)
	}
	if scale, _ := h.client.Scale(names["crate"]); scale != (mgl32.Vec3{2, 2, 2}) {
		t.Errorf("expected scale [2 2 2], got %v", scale)
	}

	box, err := h.store.Geometry(names["box"])
	if err != nil {
		t.Fatal(err)
	}
	if box.VertexCount() != 24 || box.IndexCount() != 36 {
		t.Errorf("expected cube with 24 vertices and 36 indices, got %d and %d", box.VertexCount(), box.IndexCount())
	}

	checker, err := h.store.Texture(names["checker"])
	if err != nil {
		t.Fatal(err)
	}
	if checker.Desc.Width != 4 || checker.Desc.Height != 2 || checker.Desc.Format != component.FormatRGBA8UnormSrgb {
		t.Errorf("expected 4x2 srgb texture, got %+v", checker.Desc)
	}
	dot, err := h.store.Texture(names["dot"])
	if err != nil {
		t.Fatal(err)
	}
	if len(dot.Pending) != 1 || string(dot.Pending[0].Data) != string([]byte{255, 0, 0, 255}) {
		t.Errorf("expected one red texel write, got %+v", dot.Pending)
	}

	light, err := h.store.Light(names["sun"])
	if err != nil {
		t.Fatal(err)
	}
	if light.Desc.Kind != component.LightPoint || light.Desc.Intensity != 3 {
		t.Errorf("expected point light of intensity 3, got %+v", light.Desc)
	}
}

func TestReplayErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want error
	}{
		{"unknown geometry", "nodes:\n  - {type: mesh, geometry: nope}\n", component.ErrNotFound},
		{"unknown material", "nodes:\n  - {type: mesh, material: nope}\n", component.ErrNotFound},
		{"unknown builtin", "materials:\n  m: {builtin: chrome}\n", nil},
		{"unknown primitive", "geometries:\n  g: {primitive: torus}\n", nil},
		{"unknown node type", "nodes:\n  - {type: sprite}\n", nil},
		{"sized texture without size", "textures:\n  t: {format: rgba8}\n", nil},
		{"bad pixel count", "textures:\n  t: {width: 2, height: 2, pixels: [1, 1, 1, 1]}\n", component.ErrPixelDataLength},
		{"short cubemap", "textures:\n  sky: {faces: [a.png, b.png]}\n", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := ParseManifest([]byte(tt.yaml))
			if err != nil {
				t.Fatalf("unexpected parse error: %v", err)
			}
			_, err = Replay(newHarness(t, "").client, m)
			if err == nil {
				t.Fatal("expected an error")
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestReplayCubemap(t *testing.T) {
	dir := t.TempDir()
	faces := []string{"px.png", "nx.png", "py.png", "ny.png", "pz.png", "nz.png"}
	for _, f := range faces {
		writePNG(t, dir, f, 4, 4)
	}
	m, err := ParseManifest([]byte("textures:\n  sky:\n    srgb: true\n    faces: [px.png, nx.png, py.png, ny.png, pz.png, nz.png]\n"))
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	h := newHarness(t, dir)
	names, err := Replay(h.client, m)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	h.apply()

	tex, err := h.store.Texture(names["sky"])
	if err != nil {
		t.Fatal(err)
	}
	want := component.TextureDesc{Format: component.FormatRGBA8UnormSrgb, Width: 4, Height: 4, Depth: component.CubeFaces, Mips: 1, Cube: true}
	if tex.Desc != want {
		t.Errorf("expected %+v, got %+v", want, tex.Desc)
	}
}

func TestLoadManifestErrors(t *testing.T) {
	dir := t.TempDir()
	if _, err := LoadManifest(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected a read error")
	}
	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("nodes: {"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadManifest(bad); err == nil {
		t.Error("expected a parse error")
	}
}

func TestPrimitives(t *testing.T) {
	tests := []struct {
		name     string
		vertices int
		indices  int
	}{
		{"triangle", 3, 3},
		{"plane", 4, 6},
		{"cube", 24, 36},
		{"sphere", 25 * 17, 24 * 16 * 6},
	}
	for _, tt := range tests {
		m, err := Primitive(tt.name, 1)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tt.name, err)
		}
		if m.VertexCount() != tt.vertices || len(m.Indices) != tt.indices {
			t.Errorf("%s: expected %d/%d, got %d/%d", tt.name, tt.vertices, tt.indices, m.VertexCount(), len(m.Indices))
		}
		if len(m.Normals) != len(m.Positions) || len(m.UVs) != m.VertexCount()*2 {
			t.Errorf("%s: streams disagree on vertex count", tt.name)
		}
		for _, i := range m.Indices {
			if int(i) >= m.VertexCount() {
				t.Fatalf("%s: index %d out of range", tt.name, i)
			}
		}
	}
}
