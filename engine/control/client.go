package control

import (
	"fmt"
	"slices"

	"github.com/Carmen-Shannon/oxy-scene/common"
	"github.com/Carmen-Shannon/oxy-scene/engine/camera"
	"github.com/Carmen-Shannon/oxy-scene/engine/command"
	"github.com/Carmen-Shannon/oxy-scene/engine/component"
	"github.com/Carmen-Shannon/oxy-scene/engine/renderer/material"
	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"
)

// ShaderSource is the WGSL of a shader record. An empty fragment source reuses the vertex
// source, and empty entry points default to vs_main, fs_main and cs_main. Setting Compute
// makes a compute shader for compute passes; the other sources are then unused.
type ShaderSource struct {
	Vertex        string
	Fragment      string
	VertexEntry   string
	FragmentEntry string
	Compute       string
	ComputeEntry  string
}

// PassDesc describes a pass of the frame's pass chain.
type PassDesc struct {
	Kind     component.PassKind
	Next     component.Handle
	Scene    component.Handle
	Camera   component.Handle
	Material component.Handle
	Target   component.Handle
	// SampleCount multisamples a texture target: 0 or 1 for none, 4 or 8. Surface passes
	// use the renderer's MSAA setting.
	SampleCount uint32
	// Workgroups is the dispatch size of compute passes; zero dispatches one workgroup.
	Workgroups  [3]uint32
	ClearColor  common.Color
	ClearOnLoad bool
}

// node is the control side's copy of a node's local state.
type node struct {
	typ      component.Type
	position mgl32.Vec3
	rotation mgl32.Quat
	scale    mgl32.Vec3
	parent   component.Handle
	children []component.Handle
	geometry component.Handle
	material component.Handle
}

// texture is the control side's copy of a texture's shape. Loaded textures have no known
// shape until the render side decodes them.
type texture struct {
	desc  component.TextureDesc
	known bool
}

// client is the implementation of the Client interface.
type client struct {
	queue  command.Queue
	alloc  *component.HandleAllocator
	logger *zap.Logger
	input  *Input

	pending []command.Command

	types    map[component.Handle]component.Type
	nodes    map[component.Handle]*node
	textures map[component.Handle]texture
	buffers  map[component.Handle]uint64
	builtins map[material.Builtin]component.Handle

	mainScene  component.Handle
	mainCamera component.Handle
}

// Client is the control side of the engine. It names records with freshly allocated
// handles, keeps a snapshot of what it has asked for so reads never reach into the render
// side, validates writes before they are queued and batches the resulting commands until Flush.
//
// A Client is not safe for concurrent use; it belongs to the control goroutine.
type Client interface {
	// Flush pushes every batched command to the queue in one step.
	//
	// Returns:
	//   - int: the number of commands pushed
	Flush() int

	// Pending returns the number of batched commands.
	Pending() int

	// Input returns the keyboard and mouse state fed by the window.
	Input() *Input

	// Transform creates an empty node.
	Transform(name string) component.Handle
	// Mesh creates a drawable node. Either handle may be zero and set later.
	Mesh(geometry, material component.Handle) (component.Handle, error)
	// Scene creates a scene root. The first scene created becomes the main scene.
	Scene() component.Handle
	// Camera creates a camera node.
	Camera(params component.CameraParams) component.Handle
	// Light creates a light node.
	Light(desc component.LightDesc) component.Handle
	// Text creates a label node.
	Text(value string, color common.Color) component.Handle
	// Geometry creates an empty geometry.
	Geometry() component.Handle
	// Shader creates a shader from WGSL.
	Shader(src ShaderSource) component.Handle
	// Material creates a material from pipeline state and bindings.
	Material(pso component.PipelineState, bindings map[int]component.Binding) (component.Handle, error)
	// BuiltinMaterial creates a material using one of the built-in shaders. Built-in shaders
	// are created once and shared.
	BuiltinMaterial(b material.Builtin, color common.Color, albedo component.Handle) (component.Handle, error)
	// OutputMaterial creates the built-in output material, which tonemaps input in a screen pass.
	OutputMaterial(input component.Handle, params material.OutputParams) (component.Handle, error)
	// Texture creates a texture with the given shape.
	Texture(desc component.TextureDesc) component.Handle
	// LoadTexture creates a texture decoded from an image file on the render side.
	LoadTexture(path string, srgb bool) component.Handle
	// LoadCubemap creates a cubemap from six face images in +X, -X, +Y, -Y, +Z, -Z order.
	LoadCubemap(paths [component.CubeFaces]string, srgb bool) component.Handle
	// Buffer creates a raw buffer.
	Buffer(usage component.BufferUsage, size uint64) component.Handle
	// Pass creates a pass.
	Pass(desc PassDesc) (component.Handle, error)
	// Video creates a video stream drawn into texture.
	Video(path string, texture component.Handle, loop bool) (component.Handle, error)
	// Webcam creates a capture stream drawn into texture.
	Webcam(device int, texture component.Handle) (component.Handle, error)

	SetPosition(h component.Handle, p mgl32.Vec3) error
	SetRotation(h component.Handle, q mgl32.Quat) error
	SetScale(h component.Handle, s mgl32.Vec3) error
	// LookAt turns a node to face target.
	LookAt(h component.Handle, target, up mgl32.Vec3) error
	// Orbit places a camera at the orbit's eye looking at its target.
	Orbit(cam component.Handle, o camera.Orbit) error
	// Position returns the local position last set on a node.
	Position(h component.Handle) (mgl32.Vec3, error)
	// Rotation returns the local rotation last set on a node.
	Rotation(h component.Handle) (mgl32.Quat, error)
	// Scale returns the local scale last set on a node.
	Scale(h component.Handle) (mgl32.Vec3, error)
	// Parent returns a node's parent, zero for roots.
	Parent(h component.Handle) (component.Handle, error)
	// Children returns a copy of a node's children.
	Children(h component.Handle) ([]component.Handle, error)

	// AddChild reparents child under parent.
	//
	// Returns:
	//   - error: transform.ErrCycle if parent is child or one of its descendants
	AddChild(parent, child component.Handle) error
	// RemoveChild detaches child from parent, making it a root.
	RemoveChild(parent, child component.Handle) error
	// Destroy removes a record. With subtree set, a node's descendants go with it.
	Destroy(h component.Handle, subtree bool) error

	SetMaterial(mesh, material component.Handle) error
	SetGeometry(mesh, geometry component.Handle) error
	SetMaterialBinding(material component.Handle, location int, b component.Binding) error
	SetCameraParams(cam component.Handle, params component.CameraParams) error
	SetLight(light component.Handle, desc component.LightDesc) error
	SetPass(pass component.Handle, desc PassDesc) error
	SetVideoPaused(video component.Handle, paused bool) error
	SetWebcamFrozen(webcam component.Handle, frozen bool) error

	// WriteTexture queues pixel data for a texture region.
	//
	// Returns:
	//   - error: ErrWriteOutOfBounds, ErrInvalidMip or ErrPixelDataLength if the write does not fit
	WriteTexture(tex component.Handle, region component.TextureWriteDesc, data []byte) error
	// WriteBuffer queues bytes for a buffer range.
	//
	// Returns:
	//   - error: ErrBufferWriteRange if the write does not fit
	WriteBuffer(buf component.Handle, offset uint64, data []byte) error
	// GeometryAttribute replaces one vertex stream.
	GeometryAttribute(geo component.Handle, location, components int, data []float32) error
	// GeometryIndices replaces the index buffer.
	GeometryIndices(geo component.Handle, indices []uint32) error

	Background(scene component.Handle, c common.Color) error
	Ambient(scene component.Handle, c [3]float32) error
	Fog(scene component.Handle, fog component.Fog) error
	// SetMainScene selects the scene drawn when there is no root pass.
	SetMainScene(scene component.Handle) error
	// SetMainCamera makes cam the main scene's camera and the active camera.
	SetMainCamera(cam component.Handle) error
	// SetRootPass selects the first pass of the frame. Zero draws the main scene directly.
	SetRootPass(pass component.Handle) error

	MainScene() component.Handle
	MainCamera() component.Handle
	// TextureDesc returns the shape of a texture, false if it is unknown or loaded from a file.
	TextureDesc(h component.Handle) (component.TextureDesc, bool)
	// TypeOf returns the type of a record the client created, or TypeInvalid.
	TypeOf(h component.Handle) component.Type
}

var _ Client = &client{}

// NewClient creates a Client that pushes to queue and names records with alloc.
//
// Parameters:
//   - queue: the command queue drained by the render side
//   - alloc: the store's handle allocator
//   - options: functional options
//
// Returns:
//   - Client: the new client
func NewClient(queue command.Queue, alloc *component.HandleAllocator, options ...ClientBuilderOption) Client {
	if queue == nil || alloc == nil {
		panic("control: NewClient requires a queue and an allocator")
	}
	c := &client{
		queue:    queue,
		alloc:    alloc,
		logger:   zap.NewNop(),
		input:    NewInput(),
		types:    make(map[component.Handle]component.Type),
		nodes:    make(map[component.Handle]*node),
		textures: make(map[component.Handle]texture),
		buffers:  make(map[component.Handle]uint64),
		builtins: make(map[material.Builtin]component.Handle),
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

func (c *client) push(cmds ...command.Command) {
	c.pending = append(c.pending, cmds...)
}

func (c *client) Flush() int {
	n := len(c.pending)
	if n == 0 {
		return 0
	}
	c.queue.PushAll(c.pending...)
	c.logger.Debug("control: flushed commands", zap.Int("count", n))
	clear(c.pending)
	c.pending = c.pending[:0]
	return n
}

func (c *client) Pending() int { return len(c.pending) }

func (c *client) Input() *Input { return c.input }

func (c *client) TypeOf(h component.Handle) component.Type { return c.types[h] }

// expect checks that h names a live record of one of the given types.
func (c *client) expect(h component.Handle, types ...component.Type) error {
	t, ok := c.types[h]
	if !ok {
		return fmt.Errorf("%w: handle %d", component.ErrNotFound, h)
	}
	if !slices.Contains(types, t) {
		return fmt.Errorf("%w: handle %d is a %s", component.ErrTypeMismatch, h, t)
	}
	return nil
}

// expectOptional is expect for references where zero means "none".
func (c *client) expectOptional(h component.Handle, types ...component.Type) error {
	if h == 0 {
		return nil
	}
	return c.expect(h, types...)
}

func (c *client) node(h component.Handle) (*node, error) {
	n, ok := c.nodes[h]
	if !ok {
		if t, live := c.types[h]; live {
			return nil, fmt.Errorf("%w: handle %d is a %s", component.ErrTypeMismatch, h, t)
		}
		return nil, fmt.Errorf("%w: handle %d", component.ErrNotFound, h)
	}
	return n, nil
}

func (c *client) create(t component.Type, name string) component.Handle {
	h := c.alloc.Next()
	c.types[h] = t
	if t.IsNode() {
		c.nodes[h] = &node{typ: t, rotation: mgl32.QuatIdent(), scale: mgl32.Vec3{1, 1, 1}}
	}
	c.push(command.Create{Handle: h, Type: t, Name: name})
	return h
}

func (c *client) Transform(name string) component.Handle {
	return c.create(component.TypeTransform, name)
}

func (c *client) Mesh(geometry, mat component.Handle) (component.Handle, error) {
	if err := c.expectOptional(geometry, component.TypeGeometry); err != nil {
		return 0, err
	}
	if err := c.expectOptional(mat, component.TypeMaterial); err != nil {
		return 0, err
	}
	h := c.create(component.TypeMesh, "")
	n := c.nodes[h]
	n.geometry, n.material = geometry, mat
	if geometry != 0 || mat != 0 {
		c.push(command.SetMesh{Mesh: h, Geometry: geometry, Material: mat})
	}
	return h, nil
}

func (c *client) Scene() component.Handle {
	h := c.create(component.TypeScene, "")
	if c.mainScene == 0 {
		c.mainScene = h
		c.push(command.SetActiveScene{Scene: h})
	}
	return h
}

func (c *client) Camera(params component.CameraParams) component.Handle {
	h := c.create(component.TypeCamera, "")
	c.push(command.SetCamera{Camera: h, Params: params})
	return h
}

func (c *client) Light(desc component.LightDesc) component.Handle {
	h := c.create(component.TypeLight, "")
	c.push(command.SetLight{Light: h, Desc: desc})
	return h
}

func (c *client) Text(value string, color common.Color) component.Handle {
	h := c.create(component.TypeText, "")
	c.push(command.SetText{
		Text:            h,
		Value:           value,
		Color:           color,
		ControlPoints:   [2]float32{0.5, 0.5},
		VerticalSpacing: 1,
	})
	return h
}

func (c *client) Geometry() component.Handle {
	return c.create(component.TypeGeometry, "")
}

func (c *client) Shader(src ShaderSource) component.Handle {
	h := c.create(component.TypeShader, "")
	c.push(command.SetShader{
		Shader:         h,
		VertexSource:   src.Vertex,
		FragmentSource: src.Fragment,
		VertexEntry:    src.VertexEntry,
		FragmentEntry:  src.FragmentEntry,
		ComputeSource:  src.Compute,
		ComputeEntry:   src.ComputeEntry,
	})
	return h
}

func (c *client) Material(pso component.PipelineState, bindings map[int]component.Binding) (component.Handle, error) {
	if err := c.expectOptional(pso.Shader, component.TypeShader); err != nil {
		return 0, err
	}
	if !pso.Topology.Valid() {
		return 0, fmt.Errorf("%w: topology %d", command.ErrInvalidArgument, pso.Topology)
	}
	locations := make([]int, 0, len(bindings))
	for loc, b := range bindings {
		if loc < 0 || loc >= component.MaxMaterialBindings {
			return 0, fmt.Errorf("%w: binding location %d", command.ErrInvalidArgument, loc)
		}
		if err := c.checkBinding(b); err != nil {
			return 0, err
		}
		locations = append(locations, loc)
	}
	slices.Sort(locations)

	h := c.create(component.TypeMaterial, "")
	c.push(command.SetMaterialPipeline{Material: h, State: pso})
	for _, loc := range locations {
		c.push(command.SetMaterialBinding{Material: h, Location: loc, Binding: bindings[loc]})
	}
	return h, nil
}

func (c *client) checkBinding(b component.Binding) error {
	if t, ok := b.Texture(); ok {
		return c.expectOptional(t, component.TypeTexture)
	}
	if buf, ok := b.Buffer(); ok {
		return c.expectOptional(buf, component.TypeBuffer)
	}
	return nil
}

func (c *client) BuiltinMaterial(b material.Builtin, color common.Color, albedo component.Handle) (component.Handle, error) {
	if err := c.expectOptional(albedo, component.TypeTexture); err != nil {
		return 0, err
	}
	return c.builtinMaterial(material.Define(b, color, albedo))
}

func (c *client) OutputMaterial(input component.Handle, params material.OutputParams) (component.Handle, error) {
	if err := c.expectOptional(input, component.TypeTexture); err != nil {
		return 0, err
	}
	if !params.Tonemap.Valid() {
		return 0, fmt.Errorf("%w: tonemap %d", command.ErrInvalidArgument, params.Tonemap)
	}
	return c.builtinMaterial(material.DefineOutput(input, params))
}

// builtinMaterial creates a material from a definition, sharing one shader record per built-in.
func (c *client) builtinMaterial(def material.Definition) (component.Handle, error) {
	sh, ok := c.builtins[def.Builtin]
	if !ok || c.types[sh] != component.TypeShader {
		sh = c.Shader(ShaderSource{Vertex: def.Source})
		c.builtins[def.Builtin] = sh
	}
	def.PSO.Shader = sh
	return c.Material(def.PSO, def.Bindings)
}

func (c *client) Texture(desc component.TextureDesc) component.Handle {
	desc.Depth = max(desc.Depth, 1)
	desc.Mips = max(desc.Mips, 1)
	h := c.create(component.TypeTexture, "")
	c.textures[h] = texture{desc: desc, known: true}
	c.push(command.AllocateTexture{Texture: h, Desc: desc})
	return h
}

func (c *client) TextureDesc(h component.Handle) (component.TextureDesc, bool) {
	t, ok := c.textures[h]
	return t.desc, ok && t.known
}

func (c *client) LoadTexture(path string, srgb bool) component.Handle {
	h := c.create(component.TypeTexture, path)
	c.textures[h] = texture{}
	c.push(command.LoadTexture{Texture: h, Path: path, SRGB: srgb})
	return h
}

func (c *client) LoadCubemap(paths [component.CubeFaces]string, srgb bool) component.Handle {
	h := c.create(component.TypeTexture, paths[0])
	c.textures[h] = texture{}
	c.push(command.LoadCubemap{Texture: h, Paths: paths, SRGB: srgb})
	return h
}

func (c *client) Buffer(usage component.BufferUsage, size uint64) component.Handle {
	h := c.create(component.TypeBuffer, "")
	c.buffers[h] = size
	c.push(command.AllocateBuffer{Buffer: h, Usage: usage, Size: size})
	return h
}

func (c *client) checkPass(self component.Handle, d PassDesc) error {
	if !d.Kind.Valid() {
		return fmt.Errorf("%w: pass kind %d", command.ErrInvalidArgument, d.Kind)
	}
	if !component.ValidSampleCount(d.SampleCount) {
		return fmt.Errorf("%w: sample count %d", command.ErrInvalidArgument, d.SampleCount)
	}
	if err := c.expectOptional(d.Next, component.TypePass); err != nil {
		return err
	}
	if d.Next != 0 && d.Next == self {
		return fmt.Errorf("%w: pass %d chains to itself", component.ErrStructural, self)
	}
	if err := c.expectOptional(d.Scene, component.TypeScene); err != nil {
		return err
	}
	if err := c.expectOptional(d.Camera, component.TypeCamera); err != nil {
		return err
	}
	if err := c.expectOptional(d.Material, component.TypeMaterial); err != nil {
		return err
	}
	return c.expectOptional(d.Target, component.TypeTexture)
}

func setPass(h component.Handle, d PassDesc) command.SetPass {
	return command.SetPass{
		Pass:        h,
		PassKind:    d.Kind,
		Next:        d.Next,
		Scene:       d.Scene,
		Camera:      d.Camera,
		Material:    d.Material,
		Target:      d.Target,
		SampleCount: d.SampleCount,
		Workgroups:  d.Workgroups,
		ClearColor:  d.ClearColor,
		ClearOnLoad: d.ClearOnLoad,
	}
}

func (c *client) Pass(d PassDesc) (component.Handle, error) {
	if err := c.checkPass(0, d); err != nil {
		return 0, err
	}
	h := c.create(component.TypePass, "")
	c.push(setPass(h, d))
	return h, nil
}

func (c *client) SetPass(pass component.Handle, d PassDesc) error {
	if err := c.expect(pass, component.TypePass); err != nil {
		return err
	}
	if err := c.checkPass(pass, d); err != nil {
		return err
	}
	c.push(setPass(pass, d))
	return nil
}

func (c *client) Video(path string, tex component.Handle, loop bool) (component.Handle, error) {
	if err := c.expectOptional(tex, component.TypeTexture); err != nil {
		return 0, err
	}
	h := c.create(component.TypeVideo, path)
	c.push(command.SetVideo{Video: h, Path: path, Texture: tex, Rate: 1, Loop: loop})
	return h, nil
}

func (c *client) SetVideoPaused(video component.Handle, paused bool) error {
	if err := c.expect(video, component.TypeVideo); err != nil {
		return err
	}
	c.push(command.Func{Name: "set_video_paused", Fn: func(t *command.Target) error {
		v, err := t.Store.Video(video)
		if err != nil {
			return err
		}
		v.Paused = paused
		return nil
	}})
	return nil
}

func (c *client) Webcam(device int, tex component.Handle) (component.Handle, error) {
	if err := c.expectOptional(tex, component.TypeTexture); err != nil {
		return 0, err
	}
	h := c.create(component.TypeWebcam, "")
	c.push(command.SetWebcam{Webcam: h, DeviceID: device, Texture: tex})
	return h, nil
}

func (c *client) SetWebcamFrozen(webcam component.Handle, frozen bool) error {
	if err := c.expect(webcam, component.TypeWebcam); err != nil {
		return err
	}
	c.push(command.Func{Name: "set_webcam_frozen", Fn: func(t *command.Target) error {
		w, err := t.Store.Webcam(webcam)
		if err != nil {
			return err
		}
		w.Freeze = frozen
		return nil
	}})
	return nil
}
