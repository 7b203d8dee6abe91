package scripting

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Carmen-Shannon/oxy-scene/engine/command"
	"github.com/Carmen-Shannon/oxy-scene/engine/component"
	"github.com/Carmen-Shannon/oxy-scene/engine/control"
	"github.com/go-gl/mathgl/mgl32"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func newEngine(t *testing.T, options ...EngineBuilderOption) (*Engine, control.Client, command.Queue) {
	t.Helper()
	q := command.NewQueue()
	c := control.NewClient(q, &component.HandleAllocator{})
	e := NewEngine(c, options...)
	t.Cleanup(e.Close)
	return e, c, q
}

func number(t *testing.T, e *Engine, name string) float64 {
	t.Helper()
	n, ok := e.vm.GetGlobal(name).(lua.LNumber)
	if !ok {
		t.Fatalf("expected global %s to be a number, got %s", name, e.vm.GetGlobal(name).Type())
	}
	return float64(n)
}

func TestBuildScene(t *testing.T) {
	e, c, _ := newEngine(t)
	err := e.DoString(`
		local s = gg.scene()
		cam = gg.camera(60, 0.1, 50)
		gg.main_camera(cam)
		gg.pos(cam, 0, 2, 5)
		gg.look_at(cam, 0, 0, 0)

		local geo = gg.geometry()
		gg.geometry_attribute(geo, 0, 3, {0,0,0, 1,0,0, 0,1,0})
		gg.geometry_indices(geo, {0, 1, 2})
		local mat = gg.material("flat", 1, 0, 0)
		m = gg.mesh(geo, mat)
		gg.add_child(s, m)
		gg.sca(m, 2)
		gg.bg_color(0, 0.1, 0.1, 0.1)
		gg.fog(0, 0.05, 1, 1, 1)
		x, y, z = gg.get_pos(cam)
		main = gg.main_scene()
		parent = gg.parent(m)
	`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if x, y, z := number(t, e, "x"), number(t, e, "y"), number(t, e, "z"); x != 0 || y != 2 || z != 5 {
		t.Errorf("expected get_pos 0 2 5, got %v %v %v", x, y, z)
	}
	m := component.Handle(number(t, e, "m"))
	if s, _ := c.Scale(m); s != (mgl32.Vec3{2, 2, 2}) {
		t.Errorf("expected uniform scale 2, got %v", s)
	}
	if c.MainCamera() != component.Handle(number(t, e, "cam")) {
		t.Errorf("expected main camera to be set")
	}
	if got := component.Handle(number(t, e, "parent")); got != c.MainScene() || got != component.Handle(number(t, e, "main")) {
		t.Errorf("expected mesh parent to be the main scene, got %d", got)
	}
	if c.Pending() == 0 {
		t.Error("expected batched commands")
	}
}

func TestScriptErrorsAreRaised(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"texture write out of bounds", `local t = gg.texture(2, 2); gg.texture_write(t, {1,1,1,1}, 1, 1, 2, 1)`, "out of bounds"},
		{"texture write short", `local t = gg.texture(2, 2); gg.texture_write(t, {1,1,1,1})`, "pixel data length"},
		{"texture write bad mip", `local t = gg.texture(2, 2); gg.texture_write(t, {1,1,1,1}, 0, 0, 1, 1, 3)`, "invalid mip"},
		{"loaded texture", `local t = gg.load_texture("x.png"); gg.texture_write(t, {1,1,1,1})`, "no known size"},
		{"buffer write range", `local b = gg.buffer(8); gg.buffer_write(b, 4, {1, 2})`, "out of range"},
		{"cycle", `local a = gg.transform(); local b = gg.transform(); gg.add_child(a, b); gg.add_child(b, a)`, "cycle"},
		{"type mismatch", `local g = gg.geometry(); gg.pos(g, 1, 2, 3)`, "type mismatch"},
		{"unknown handle", `gg.pos(424242, 1, 2, 3)`, "not found"},
		{"unknown material", `gg.material("chrome")`, "unknown material"},
		{"unknown tonemap", `gg.output_material(0, {tonemap = "filmic"})`, "unknown tonemap"},
		{"short cubemap", `gg.load_cubemap({"a.png", "b.png"})`, "face paths"},
		{"odd sample count", `gg.pass({samples = 3})`, "invalid argument"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, _, _ := newEngine(t)
			err := e.DoString(tt.src)
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestTextureWriteQueued(t *testing.T) {
	e, c, q := newEngine(t)
	if err := e.DoString(`tex = gg.texture(1, 2); gg.texture_write(tex, {1,0,0,1, 0,0,1,1})`); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c.Flush()
	if q.Pending() != 3 {
		t.Errorf("expected create, allocate and write, got %d commands", q.Pending())
	}
}

func TestPostProcessChain(t *testing.T) {
	e, c, _ := newEngine(t)
	err := e.DoString(`
		local hdr = gg.texture(64, 64, "rgba16f")
		local blur = gg.compute_shader("@compute @workgroup_size(8, 8) fn blur() {}", "blur")
		local screen = gg.pass({kind = "screen", material = gg.output_material(hdr, {tonemap = "aces", exposure = 1.5})})
		local post = gg.pass({kind = "compute", material = gg.material(blur), workgroups = {8, 8}, next = screen})
		scene_pass = gg.pass({target = hdr, samples = 4, next = post})
		sky = gg.load_cubemap({"px.png", "nx.png", "py.png", "ny.png", "pz.png", "nz.png"}, true)
	`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if number(t, e, "scene_pass") == 0 || number(t, e, "sky") == 0 {
		t.Error("expected pass and cubemap handles")
	}
	if c.Pending() == 0 {
		t.Error("expected batched commands")
	}
}

func TestPassDescWorkgroups(t *testing.T) {
	L := lua.NewState()
	defer L.Close()
	tests := []struct {
		name   string
		groups []float64
		want   [3]uint32
	}{
		{"unset", nil, [3]uint32{}},
		{"two dimensions", []float64{8, 4}, [3]uint32{8, 4, 1}},
		{"three dimensions", []float64{2, 3, 4}, [3]uint32{2, 3, 4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tbl := L.NewTable()
			tbl.RawSetString("kind", lua.LString("compute"))
			if tt.groups != nil {
				w := L.NewTable()
				for _, g := range tt.groups {
					w.Append(lua.LNumber(g))
				}
				tbl.RawSetString("workgroups", w)
			}
			d := passDesc(L, tbl)
			if d.Kind != component.PassCompute || d.Workgroups != tt.want {
				t.Errorf("expected compute pass with %v, got kind %d with %v", tt.want, d.Kind, d.Workgroups)
			}
		})
	}
}

func TestUpdate(t *testing.T) {
	e, _, _ := newEngine(t)
	if err := e.Update(0.5); err != nil {
		t.Fatalf("expected a script without update to be fine, got %v", err)
	}
	if err := e.DoString(`
		total = 0
		function update(dt) total = total + dt end
	`); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	e.Update(0.25)
	e.Update(0.25)
	if got := number(t, e, "total"); got != 0.5 {
		t.Errorf("expected total 0.5, got %v", got)
	}
	if e.Time() != 1 {
		t.Errorf("expected time 1, got %v", e.Time())
	}

	if err := e.DoString(`function update(dt) error("boom") end`); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err := e.Update(0.1)
	var apiErr *lua.ApiError
	if !errors.As(err, &apiErr) || !strings.Contains(err.Error(), "boom") {
		t.Errorf("expected lua api error containing boom, got %v", err)
	}
}

func TestLoadFromScriptDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "shapes.lua"), []byte(`
		local M = {}
		function M.box() return gg.transform("box") end
		return M
	`), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "main.lua"), []byte(`
		local shapes = require("shapes")
		box = shapes.box()
		gg.log("made", box)
	`), 0o644); err != nil {
		t.Fatal(err)
	}

	core, logs := observer.New(zap.InfoLevel)
	e, c, _ := newEngine(t, WithScriptDir(dir), WithLogger(zap.New(core)))
	if err := e.Load("main.lua"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.TypeOf(component.Handle(number(t, e, "box"))) != component.TypeTransform {
		t.Error("expected box to be a transform")
	}
	if logs.FilterMessage("lua").Len() != 1 {
		t.Errorf("expected one lua log entry, got %d", logs.Len())
	}
	if err := e.Load("missing.lua"); err == nil {
		t.Error("expected an error for a missing script")
	}
}
