package scripting

import (
	"fmt"
	"math"
	"strings"

	"github.com/Carmen-Shannon/oxy-scene/common"
	"github.com/Carmen-Shannon/oxy-scene/engine/component"
	"github.com/Carmen-Shannon/oxy-scene/engine/control"
	"github.com/Carmen-Shannon/oxy-scene/engine/renderer/material"
	"github.com/go-gl/mathgl/mgl32"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// loader builds the gg module table.
func (e *Engine) loader(L *lua.LState) int {
	mod := L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"transform":       e.transform,
		"mesh":            e.mesh,
		"scene":           e.scene,
		"camera":          e.camera,
		"perspective":     e.perspective,
		"ortho":           e.ortho,
		"light":           e.light,
		"text":            e.text,
		"geometry":        e.geometry,
		"shader":          e.shader,
		"compute_shader":  e.computeShader,
		"material":        e.material,
		"output_material": e.outputMaterial,
		"texture":         e.texture,
		"load_texture":    e.loadTexture,
		"load_cubemap":    e.loadCubemap,
		"buffer":          e.buffer,
		"pass":            e.pass,
		"set_pass":        e.setPass,
		"root_pass":       e.rootPass,
		"video":           e.video,
		"video_pause":     e.videoPause,
		"webcam":          e.webcam,
		"webcam_freeze":   e.webcamFreeze,

		"pos":          e.pos,
		"get_pos":      e.getPos,
		"rot":          e.rot,
		"sca":          e.sca,
		"look_at":      e.lookAt,
		"add_child":    e.addChild,
		"remove_child": e.removeChild,
		"parent":       e.parent,
		"destroy":      e.destroy,

		"set_material":       e.setMaterial,
		"set_geometry":       e.setGeometry,
		"material_uniform":   e.materialUniform,
		"material_texture":   e.materialTexture,
		"texture_write":      e.textureWrite,
		"buffer_write":       e.bufferWrite,
		"geometry_attribute": e.geometryAttribute,
		"geometry_indices":   e.geometryIndices,

		"bg_color":    e.bgColor,
		"ambient":     e.ambient,
		"fog":         e.fog,
		"main_scene":  e.mainScene,
		"main_camera": e.mainCamera,

		"key":         e.key,
		"key_pressed": e.keyPressed,
		"mouse":       e.mouse,
		"button":      e.button,
		"scroll":      e.scroll,
		"time":        e.timeNow,
		"log":         e.logMessage,
	})
	L.Push(mod)
	return 1
}

func checkHandle(L *lua.LState, n int) component.Handle {
	return component.Handle(uint64(L.CheckNumber(n)))
}

func optHandle(L *lua.LState, n int) component.Handle {
	return component.Handle(uint64(L.OptNumber(n, 0)))
}

func pushHandle(L *lua.LState, h component.Handle) int {
	L.Push(lua.LNumber(h))
	return 1
}

func checkVec3(L *lua.LState, n int) mgl32.Vec3 {
	return mgl32.Vec3{float32(L.CheckNumber(n)), float32(L.CheckNumber(n + 1)), float32(L.CheckNumber(n + 2))}
}

// optColor reads r, g, b and an optional alpha starting at argument n.
func optColor(L *lua.LState, n int, def common.Color) common.Color {
	if L.Get(n) == lua.LNil {
		return def
	}
	return common.Color{
		float32(L.CheckNumber(n)),
		float32(L.CheckNumber(n + 1)),
		float32(L.CheckNumber(n + 2)),
		float32(L.OptNumber(n+3, 1)),
	}
}

func floats(t *lua.LTable) []float32 {
	out := make([]float32, 0, t.Len())
	t.ForEach(func(_, v lua.LValue) {
		if n, ok := v.(lua.LNumber); ok {
			out = append(out, float32(n))
		}
	})
	return out
}

// check raises a Lua error for err, naming the gg function that failed.
func check(L *lua.LState, name string, err error) {
	if err != nil {
		L.RaiseError("gg.%s: %v", name, err)
	}
}

func (e *Engine) transform(L *lua.LState) int {
	return pushHandle(L, e.client.Transform(L.OptString(1, "")))
}

func (e *Engine) mesh(L *lua.LState) int {
	h, err := e.client.Mesh(optHandle(L, 1), optHandle(L, 2))
	check(L, "mesh", err)
	return pushHandle(L, h)
}

func (e *Engine) scene(L *lua.LState) int {
	return pushHandle(L, e.client.Scene())
}

func cameraParams(L *lua.LState, n int, base component.CameraParams) component.CameraParams {
	base.Near = float32(L.OptNumber(n, lua.LNumber(base.Near)))
	base.Far = float32(L.OptNumber(n+1, lua.LNumber(base.Far)))
	return base
}

// camera([fov_degrees [, near [, far]]])
func (e *Engine) camera(L *lua.LState) int {
	p := component.DefaultCameraParams()
	p.FovRadians = mgl32.DegToRad(float32(L.OptNumber(1, lua.LNumber(mgl32.RadToDeg(p.FovRadians)))))
	return pushHandle(L, e.client.Camera(cameraParams(L, 2, p)))
}

// perspective(cam, fov_degrees [, near [, far]])
func (e *Engine) perspective(L *lua.LState) int {
	p := component.DefaultCameraParams()
	p.FovRadians = mgl32.DegToRad(float32(L.CheckNumber(2)))
	check(L, "perspective", e.client.SetCameraParams(checkHandle(L, 1), cameraParams(L, 3, p)))
	return 0
}

// ortho(cam, size [, near [, far]])
func (e *Engine) ortho(L *lua.LState) int {
	p := component.DefaultCameraParams()
	p.Kind = component.CameraOrthographic
	p.Size = float32(L.CheckNumber(2))
	check(L, "ortho", e.client.SetCameraParams(checkHandle(L, 1), cameraParams(L, 3, p)))
	return 0
}

// light([kind [, r, g, b [, intensity]]])
func (e *Engine) light(L *lua.LState) int {
	desc := component.LightDesc{
		Color:     [3]float32{1, 1, 1},
		Intensity: 1,
		Range:     10,
		InnerCone: math.Pi / 12,
		OuterCone: math.Pi / 8,
	}
	switch kind := L.OptString(1, "directional"); kind {
	case "directional":
		desc.Kind = component.LightDirectional
	case "point":
		desc.Kind = component.LightPoint
	case "spot":
		desc.Kind = component.LightSpot
	default:
		L.ArgError(1, fmt.Sprintf("unknown light kind %q", kind))
	}
	if L.Get(2) != lua.LNil {
		c := checkVec3(L, 2)
		desc.Color = [3]float32{c[0], c[1], c[2]}
	}
	desc.Intensity = float32(L.OptNumber(5, lua.LNumber(desc.Intensity)))
	return pushHandle(L, e.client.Light(desc))
}

func (e *Engine) text(L *lua.LState) int {
	return pushHandle(L, e.client.Text(L.CheckString(1), optColor(L, 2, common.White)))
}

func (e *Engine) geometry(L *lua.LState) int {
	return pushHandle(L, e.client.Geometry())
}

// shader(source [, vertex_entry [, fragment_entry]])
func (e *Engine) shader(L *lua.LState) int {
	return pushHandle(L, e.client.Shader(control.ShaderSource{
		Vertex:        L.CheckString(1),
		VertexEntry:   L.OptString(2, ""),
		FragmentEntry: L.OptString(3, ""),
	}))
}

// compute_shader(source [, entry])
func (e *Engine) computeShader(L *lua.LState) int {
	return pushHandle(L, e.client.Shader(control.ShaderSource{
		Compute:      L.CheckString(1),
		ComputeEntry: L.OptString(2, ""),
	}))
}

// output_material(texture [, {tonemap=, exposure=, gamma=}])
func (e *Engine) outputMaterial(L *lua.LState) int {
	params := material.DefaultOutputParams()
	if t, ok := L.Get(2).(*lua.LTable); ok {
		if name, ok := t.RawGetString("tonemap").(lua.LString); ok {
			tm, found := material.ParseTonemap(string(name))
			if !found {
				L.ArgError(2, fmt.Sprintf("unknown tonemap %q", name))
			}
			params.Tonemap = tm
		}
		if n, ok := t.RawGetString("exposure").(lua.LNumber); ok {
			params.Exposure = float32(n)
		}
		if n, ok := t.RawGetString("gamma").(lua.LNumber); ok {
			params.Gamma = float32(n)
		}
	}
	h, err := e.client.OutputMaterial(optHandle(L, 1), params)
	check(L, "output_material", err)
	return pushHandle(L, h)
}

// material(builtin_name [, r, g, b [, a]] [, texture]) or material(shader)
func (e *Engine) material(L *lua.LState) int {
	if name, ok := L.Get(1).(lua.LString); ok {
		b, found := material.ParseBuiltin(string(name))
		if !found {
			L.ArgError(1, fmt.Sprintf("unknown material %q", name))
		}
		color := common.White
		albedo := optHandle(L, 2)
		if L.GetTop() >= 4 {
			color = optColor(L, 2, common.White)
			albedo = optHandle(L, 6)
		}
		h, err := e.client.BuiltinMaterial(b, color, albedo)
		check(L, "material", err)
		return pushHandle(L, h)
	}
	h, err := e.client.Material(component.DefaultPipelineState(checkHandle(L, 1)), nil)
	check(L, "material", err)
	return pushHandle(L, h)
}

var textureFormats = map[string]component.TextureFormat{
	"rgba8":      component.FormatRGBA8Unorm,
	"rgba8_srgb": component.FormatRGBA8UnormSrgb,
	"rgba16f":    component.FormatRGBA16Float,
	"rgba32f":    component.FormatRGBA32Float,
	"r32f":       component.FormatR32Float,
}

// texture(width, height [, format [, mips]])
func (e *Engine) texture(L *lua.LState) int {
	name := L.OptString(3, "rgba8")
	format, ok := textureFormats[name]
	if !ok {
		L.ArgError(3, fmt.Sprintf("unknown texture format %q", name))
	}
	return pushHandle(L, e.client.Texture(component.TextureDesc{
		Format: format,
		Width:  uint32(L.CheckInt(1)),
		Height: uint32(L.CheckInt(2)),
		Mips:   uint32(L.OptInt(4, 1)),
	}))
}

func (e *Engine) loadTexture(L *lua.LState) int {
	return pushHandle(L, e.client.LoadTexture(L.CheckString(1), L.OptBool(2, false)))
}

// load_cubemap({px, nx, py, ny, pz, nz} [, srgb])
func (e *Engine) loadCubemap(L *lua.LState) int {
	t := L.CheckTable(1)
	if t.Len() != component.CubeFaces {
		L.ArgError(1, fmt.Sprintf("expected %d face paths, got %d", component.CubeFaces, t.Len()))
	}
	var paths [component.CubeFaces]string
	for i := range paths {
		paths[i] = lua.LVAsString(t.RawGetInt(i + 1))
	}
	return pushHandle(L, e.client.LoadCubemap(paths, L.OptBool(2, false)))
}

var bufferUsages = map[string]component.BufferUsage{
	"storage": component.BufferUsageStorage,
	"uniform": component.BufferUsageUniform,
	"vertex":  component.BufferUsageVertex,
	"index":   component.BufferUsageIndex,
}

// buffer(size [, usage])
func (e *Engine) buffer(L *lua.LState) int {
	usage, ok := bufferUsages[L.OptString(2, "storage")]
	if !ok {
		L.ArgError(2, "unknown buffer usage")
	}
	return pushHandle(L, e.client.Buffer(usage, uint64(L.CheckInt(1))))
}

func handleField(t *lua.LTable, key string) component.Handle {
	if n, ok := t.RawGetString(key).(lua.LNumber); ok {
		return component.Handle(uint64(n))
	}
	return 0
}

// passDesc reads {kind=, scene=, camera=, material=, target=, next=, samples=,
// workgroups={x[,y[,z]]}, clear={r,g,b,a}, clear_on_load=}. Missing workgroup
// dimensions are 1.
func passDesc(L *lua.LState, t *lua.LTable) control.PassDesc {
	d := control.PassDesc{
		Scene:       handleField(t, "scene"),
		Camera:      handleField(t, "camera"),
		Material:    handleField(t, "material"),
		Target:      handleField(t, "target"),
		Next:        handleField(t, "next"),
		ClearColor:  common.Black,
		ClearOnLoad: t.RawGetString("clear_on_load") != lua.LFalse,
	}
	switch kind := lua.LVAsString(t.RawGetString("kind")); kind {
	case "", "render":
		d.Kind = component.PassRender
	case "screen":
		d.Kind = component.PassScreen
	case "compute":
		d.Kind = component.PassCompute
	default:
		L.ArgError(1, fmt.Sprintf("unknown pass kind %q", kind))
	}
	if n, ok := t.RawGetString("samples").(lua.LNumber); ok {
		d.SampleCount = uint32(n)
	}
	if w, ok := t.RawGetString("workgroups").(*lua.LTable); ok {
		f := floats(w)
		d.Workgroups = [3]uint32{1, 1, 1}
		for i := 0; i < len(f) && i < 3; i++ {
			d.Workgroups[i] = uint32(f[i])
		}
	}
	if c, ok := t.RawGetString("clear").(*lua.LTable); ok {
		f := floats(c)
		for i := 0; i < len(f) && i < 4; i++ {
			d.ClearColor[i] = f[i]
		}
	}
	return d
}

func (e *Engine) pass(L *lua.LState) int {
	h, err := e.client.Pass(passDesc(L, L.CheckTable(1)))
	check(L, "pass", err)
	return pushHandle(L, h)
}

func (e *Engine) setPass(L *lua.LState) int {
	check(L, "set_pass", e.client.SetPass(checkHandle(L, 1), passDesc(L, L.CheckTable(2))))
	return 0
}

func (e *Engine) rootPass(L *lua.LState) int {
	check(L, "root_pass", e.client.SetRootPass(optHandle(L, 1)))
	return 0
}

func (e *Engine) video(L *lua.LState) int {
	h, err := e.client.Video(L.CheckString(1), checkHandle(L, 2), L.OptBool(3, true))
	check(L, "video", err)
	return pushHandle(L, h)
}

func (e *Engine) videoPause(L *lua.LState) int {
	check(L, "video_pause", e.client.SetVideoPaused(checkHandle(L, 1), L.OptBool(2, true)))
	return 0
}

func (e *Engine) webcam(L *lua.LState) int {
	h, err := e.client.Webcam(L.OptInt(1, 0), checkHandle(L, 2))
	check(L, "webcam", err)
	return pushHandle(L, h)
}

func (e *Engine) webcamFreeze(L *lua.LState) int {
	check(L, "webcam_freeze", e.client.SetWebcamFrozen(checkHandle(L, 1), L.OptBool(2, true)))
	return 0
}

// pos(h, x, y, z)
func (e *Engine) pos(L *lua.LState) int {
	check(L, "pos", e.client.SetPosition(checkHandle(L, 1), checkVec3(L, 2)))
	return 0
}

// get_pos(h) -> x, y, z
func (e *Engine) getPos(L *lua.LState) int {
	p, err := e.client.Position(checkHandle(L, 1))
	check(L, "get_pos", err)
	L.Push(lua.LNumber(p[0]))
	L.Push(lua.LNumber(p[1]))
	L.Push(lua.LNumber(p[2]))
	return 3
}

// rot(h, x, y, z) with Euler angles in radians, applied X then Y then Z.
func (e *Engine) rot(L *lua.LState) int {
	a := checkVec3(L, 2)
	q := mgl32.AnglesToQuat(a[0], a[1], a[2], mgl32.XYZ)
	check(L, "rot", e.client.SetRotation(checkHandle(L, 1), q))
	return 0
}

// sca(h, s) or sca(h, x, y, z)
func (e *Engine) sca(L *lua.LState) int {
	var s mgl32.Vec3
	if L.GetTop() < 4 {
		v := float32(L.CheckNumber(2))
		s = mgl32.Vec3{v, v, v}
	} else {
		s = checkVec3(L, 2)
	}
	check(L, "sca", e.client.SetScale(checkHandle(L, 1), s))
	return 0
}

// look_at(h, x, y, z)
func (e *Engine) lookAt(L *lua.LState) int {
	check(L, "look_at", e.client.LookAt(checkHandle(L, 1), checkVec3(L, 2), mgl32.Vec3{0, 1, 0}))
	return 0
}

func (e *Engine) addChild(L *lua.LState) int {
	check(L, "add_child", e.client.AddChild(checkHandle(L, 1), checkHandle(L, 2)))
	return 0
}

func (e *Engine) removeChild(L *lua.LState) int {
	check(L, "remove_child", e.client.RemoveChild(checkHandle(L, 1), checkHandle(L, 2)))
	return 0
}

func (e *Engine) parent(L *lua.LState) int {
	p, err := e.client.Parent(checkHandle(L, 1))
	check(L, "parent", err)
	return pushHandle(L, p)
}

// destroy(h [, subtree])
func (e *Engine) destroy(L *lua.LState) int {
	check(L, "destroy", e.client.Destroy(checkHandle(L, 1), L.OptBool(2, false)))
	return 0
}

func (e *Engine) setMaterial(L *lua.LState) int {
	check(L, "set_material", e.client.SetMaterial(checkHandle(L, 1), optHandle(L, 2)))
	return 0
}

func (e *Engine) setGeometry(L *lua.LState) int {
	check(L, "set_geometry", e.client.SetGeometry(checkHandle(L, 1), optHandle(L, 2)))
	return 0
}

// material_uniform(mat, location, {floats})
func (e *Engine) materialUniform(L *lua.LState) int {
	data := common.SliceToBytes(floats(L.CheckTable(3)))
	check(L, "material_uniform", e.client.SetMaterialBinding(checkHandle(L, 1), L.CheckInt(2), component.UniformBinding(data)))
	return 0
}

// material_texture(mat, location, texture)
func (e *Engine) materialTexture(L *lua.LState) int {
	check(L, "material_texture", e.client.SetMaterialBinding(checkHandle(L, 1), L.CheckInt(2), component.TextureBinding(optHandle(L, 3))))
	return 0
}

// encodePixels turns channel values in [0, 1] into texels of the given format.
func encodePixels(format component.TextureFormat, values []float32) ([]byte, error) {
	switch format {
	case component.FormatRGBA8Unorm, component.FormatRGBA8UnormSrgb:
		out := make([]byte, len(values))
		for i, v := range values {
			out[i] = byte(common.Clamp(v, 0, 1)*255 + 0.5)
		}
		return out, nil
	case component.FormatRGBA32Float, component.FormatR32Float:
		return common.SliceToBytes(values), nil
	default:
		return nil, fmt.Errorf("scripts cannot write format %d", format)
	}
}

// texture_write(tex, {values} [, x, y, width, height [, mip]])
func (e *Engine) textureWrite(L *lua.LState) int {
	tex := checkHandle(L, 1)
	values := floats(L.CheckTable(2))
	desc, ok := e.client.TextureDesc(tex)
	if !ok {
		// let the client report why
		check(L, "texture_write", e.client.WriteTexture(tex, component.TextureWriteDesc{Width: 1, Height: 1}, nil))
	}
	region := component.TextureWriteDesc{
		OffsetX: uint32(L.OptInt(3, 0)),
		OffsetY: uint32(L.OptInt(4, 0)),
		Width:   uint32(L.OptInt(5, int(desc.Width))),
		Height:  uint32(L.OptInt(6, int(desc.Height))),
		Mip:     uint32(L.OptInt(7, 0)),
		Depth:   1,
	}
	data, err := encodePixels(desc.Format, values)
	check(L, "texture_write", err)
	check(L, "texture_write", e.client.WriteTexture(tex, region, data))
	return 0
}

// buffer_write(buf, offset, {floats})
func (e *Engine) bufferWrite(L *lua.LState) int {
	data := common.SliceToBytes(floats(L.CheckTable(3)))
	check(L, "buffer_write", e.client.WriteBuffer(checkHandle(L, 1), uint64(L.CheckInt(2)), data))
	return 0
}

// geometry_attribute(geo, location, components, {floats})
func (e *Engine) geometryAttribute(L *lua.LState) int {
	data := floats(L.CheckTable(4))
	check(L, "geometry_attribute", e.client.GeometryAttribute(checkHandle(L, 1), L.CheckInt(2), L.CheckInt(3), data))
	return 0
}

// geometry_indices(geo, {indices})
func (e *Engine) geometryIndices(L *lua.LState) int {
	t := L.CheckTable(2)
	idx := make([]uint32, 0, t.Len())
	t.ForEach(func(_, v lua.LValue) {
		if n, ok := v.(lua.LNumber); ok {
			idx = append(idx, uint32(n))
		}
	})
	check(L, "geometry_indices", e.client.GeometryIndices(checkHandle(L, 1), idx))
	return 0
}

// sceneArg reads a scene handle, where 0 or nil means the main scene.
func (e *Engine) sceneArg(L *lua.LState, n int) component.Handle {
	if h := optHandle(L, n); h != 0 {
		return h
	}
	return e.client.MainScene()
}

// bg_color(scene, r, g, b [, a])
func (e *Engine) bgColor(L *lua.LState) int {
	check(L, "bg_color", e.client.Background(e.sceneArg(L, 1), optColor(L, 2, common.Black)))
	return 0
}

// ambient(scene, r, g, b)
func (e *Engine) ambient(L *lua.LState) int {
	c := checkVec3(L, 2)
	check(L, "ambient", e.client.Ambient(e.sceneArg(L, 1), [3]float32{c[0], c[1], c[2]}))
	return 0
}

// fog(scene, false) or fog(scene, density [, r, g, b [, kind]])
func (e *Engine) fog(L *lua.LState) int {
	fog := component.Fog{Color: common.Color{0.5, 0.5, 0.5, 1}}
	if L.Get(2) != lua.LFalse {
		fog.Enabled = true
		fog.Density = float32(L.CheckNumber(2))
		if L.Get(3) != lua.LNil {
			fog.Color = optColor(L, 3, fog.Color)
			fog.Color[3] = 1
		}
		switch kind := strings.ToLower(L.OptString(6, "exp")); kind {
		case "exp":
			fog.Kind = component.FogExponential
		case "exp2":
			fog.Kind = component.FogExponentialSquared
		case "linear":
			fog.Kind = component.FogLinear
		default:
			L.ArgError(6, fmt.Sprintf("unknown fog kind %q", kind))
		}
	}
	check(L, "fog", e.client.Fog(e.sceneArg(L, 1), fog))
	return 0
}

// main_scene([scene]) -> scene
func (e *Engine) mainScene(L *lua.LState) int {
	if L.GetTop() >= 1 {
		check(L, "main_scene", e.client.SetMainScene(optHandle(L, 1)))
	}
	return pushHandle(L, e.client.MainScene())
}

// main_camera([camera]) -> camera
func (e *Engine) mainCamera(L *lua.LState) int {
	if L.GetTop() >= 1 {
		check(L, "main_camera", e.client.SetMainCamera(optHandle(L, 1)))
	}
	return pushHandle(L, e.client.MainCamera())
}

func (e *Engine) key(L *lua.LState) int {
	L.Push(lua.LBool(e.client.Input().Key(uint32(L.CheckInt(1)))))
	return 1
}

func (e *Engine) keyPressed(L *lua.LState) int {
	L.Push(lua.LBool(e.client.Input().KeyPressed(uint32(L.CheckInt(1)))))
	return 1
}

func (e *Engine) mouse(L *lua.LState) int {
	x, y := e.client.Input().Mouse()
	L.Push(lua.LNumber(x))
	L.Push(lua.LNumber(y))
	return 2
}

func (e *Engine) button(L *lua.LState) int {
	L.Push(lua.LBool(e.client.Input().Button(uint8(L.CheckInt(1)))))
	return 1
}

func (e *Engine) scroll(L *lua.LState) int {
	L.Push(lua.LNumber(e.client.Input().TakeScroll()))
	return 1
}

func (e *Engine) timeNow(L *lua.LState) int {
	L.Push(lua.LNumber(e.time))
	return 1
}

// log(...) joins its arguments with spaces and logs them at info level.
func (e *Engine) logMessage(L *lua.LState) int {
	parts := make([]string, 0, L.GetTop())
	for i := 1; i <= L.GetTop(); i++ {
		parts = append(parts, L.ToStringMeta(L.Get(i)).String())
	}
	e.log.Info("lua", zap.String("message", strings.Join(parts, " ")))
	return 0
}
