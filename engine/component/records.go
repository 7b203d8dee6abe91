package component

import (
	"math"

	"github.com/Carmen-Shannon/oxy-scene/common"
)

// Mesh is a drawable node: a transform paired with a geometry and a material.
type Mesh struct {
	Transform

	Geometry Handle
	Material Handle
}

// CameraKind selects the projection used by a camera.
type CameraKind uint8

const (
	CameraPerspective CameraKind = iota
	CameraOrthographic
)

// CameraParams are the projection parameters of a camera.
type CameraParams struct {
	Kind CameraKind
	// FovRadians is the vertical field of view for perspective cameras.
	FovRadians float32
	// Size is the vertical extent in world units for orthographic cameras.
	Size float32
	Near float32
	Far  float32
}

// DefaultCameraParams returns a 45 degree perspective camera.
func DefaultCameraParams() CameraParams {
	return CameraParams{
		Kind:       CameraPerspective,
		FovRadians: math.Pi / 4,
		Size:       6,
		Near:       0.1,
		Far:        100,
	}
}

// Camera is a node that provides view and projection for a render pass.
type Camera struct {
	Transform

	Params CameraParams
}

func (c *Camera) setDefaults() {
	c.Transform.setDefaults()
	c.Params = DefaultCameraParams()
}

// LightKind is the light model.
type LightKind uint8

const (
	LightDirectional LightKind = iota
	LightPoint
	LightSpot
)

// LightDesc describes a light. Position and direction come from the light's world matrix.
type LightDesc struct {
	Kind      LightKind
	Color     [3]float32
	Intensity float32
	// Range is the attenuation cutoff for point and spot lights.
	Range float32
	// InnerCone and OuterCone are half-angles in radians for spot lights.
	InnerCone float32
	OuterCone float32
}

// Light is a node that lights the scene it is attached to.
type Light struct {
	Transform

	Desc LightDesc
}

func (l *Light) setDefaults() {
	l.Transform.setDefaults()
	l.Desc = LightDesc{
		Kind:      LightDirectional,
		Color:     [3]float32{1, 1, 1},
		Intensity: 1,
		Range:     10,
		InnerCone: math.Pi / 12,
		OuterCone: math.Pi / 8,
	}
}

// FogKind selects the fog falloff.
type FogKind uint8

const (
	FogExponential FogKind = iota
	FogExponentialSquared
	FogLinear
)

// Fog describes distance fog applied by the scene's materials.
type Fog struct {
	Enabled bool
	Kind    FogKind
	Color   common.Color
	Density float32
}

// SceneDesc holds the scene-wide render settings.
type SceneDesc struct {
	Background common.Color
	Ambient    [3]float32
	Fog        Fog
	// MainCamera is the camera used when no pass names one.
	MainCamera Handle
}

// Scene is a hierarchy root that indexes its drawable content for batched rendering.
type Scene struct {
	Transform

	Desc SceneDesc

	// Primitives maps each (material, geometry) pair to the meshes drawn with it.
	// Maintained by scene.Index.
	Primitives map[PrimitiveKey]*PrimitiveGroup
	// Lights is the set of light nodes reachable from the scene.
	Lights map[Handle]struct{}
}

func (s *Scene) setDefaults() {
	s.Transform.setDefaults()
	s.Desc = SceneDesc{
		Background: common.Color{0, 0, 0, 1},
		Ambient:    [3]float32{0.1, 0.1, 0.1},
		Fog: Fog{
			Color:   common.Color{0.5, 0.5, 0.5, 1},
			Density: 0.1,
		},
	}
	s.Primitives = make(map[PrimitiveKey]*PrimitiveGroup)
	s.Lights = make(map[Handle]struct{})
}

// Text is a label node. Glyph shaping is done by an external collaborator; the record
// only carries what it needs.
type Text struct {
	Transform

	Text            string
	FontPath        string
	Color           common.Color
	ControlPoints   [2]float32
	VerticalSpacing float32
}

func (t *Text) setDefaults() {
	t.Transform.setDefaults()
	t.Color = common.White
	t.ControlPoints = [2]float32{0.5, 0.5}
	t.VerticalSpacing = 1
}

// MaxVertexAttributes is the number of non-interleaved vertex attribute slots a geometry has.
const MaxVertexAttributes = 8

// VertexAttribute is one non-interleaved vertex stream.
type VertexAttribute struct {
	// Components is the number of float32 values per vertex, 1 to 4. Zero means unused.
	Components int
	Data       []float32
}

// Geometry holds vertex streams and indices.
type Geometry struct {
	Base

	Attributes [MaxVertexAttributes]VertexAttribute
	Indices    []uint32
	// VertexCountOverride and IndexCountOverride replace the derived counts when >= 0.
	VertexCountOverride int
	IndexCountOverride  int
	// Generation is bumped whenever a vertex stream or the index buffer is replaced.
	Generation uint64
}

func (g *Geometry) setDefaults() {
	g.VertexCountOverride = -1
	g.IndexCountOverride = -1
	g.Generation = 1
}

// VertexCount returns the number of vertices to draw.
func (g *Geometry) VertexCount() int {
	if g.VertexCountOverride >= 0 {
		return g.VertexCountOverride
	}
	a := g.Attributes[0]
	if a.Components == 0 {
		return 0
	}
	return len(a.Data) / a.Components
}

// IndexCount returns the number of indices to draw; zero means non-indexed.
func (g *Geometry) IndexCount() int {
	if g.IndexCountOverride >= 0 {
		return g.IndexCountOverride
	}
	return len(g.Indices)
}

// Shader holds WGSL source and entry points.
type Shader struct {
	Base

	VertexSource   string
	FragmentSource string
	VertexEntry    string
	FragmentEntry  string
	// ComputeSource makes the record a compute shader; the vertex and fragment fields
	// are ignored when it is set.
	ComputeSource string
	ComputeEntry  string
	// VertexLayout lists the component count of each vertex attribute location the
	// vertex stage consumes; zero entries are unused.
	VertexLayout [MaxVertexAttributes]int
	// Generation is bumped whenever the source changes so compiled pipelines are rebuilt.
	Generation uint64
}

// IsCompute reports whether the record holds a compute stage.
func (s *Shader) IsCompute() bool {
	return s.ComputeSource != ""
}

func (s *Shader) setDefaults() {
	s.VertexEntry = "vs_main"
	s.FragmentEntry = "fs_main"
	s.ComputeEntry = "cs_main"
	s.Generation = 1
}

// PassKind selects what a pass does.
type PassKind uint8

const (
	// PassRender draws a scene through a camera.
	PassRender PassKind = iota
	// PassScreen draws a fullscreen triangle with a material.
	PassScreen
	// PassCompute dispatches the compute shader of a material. It draws nothing and
	// has no target.
	PassCompute
)

// Valid reports whether k is a known pass kind.
func (k PassKind) Valid() bool {
	return k <= PassCompute
}

// ValidSampleCount reports whether n is a sample count a pass can request. Zero keeps
// the default: the surface count for surface passes and 1 for texture targets.
func ValidSampleCount(n uint32) bool {
	return n == 0 || n == 1 || n == 4 || n == 8
}

// Pass is one step of the frame's render graph. Passes form a chain through Next.
type Pass struct {
	Base

	Kind PassKind
	Next Handle

	// Scene and Camera are used by render passes. A zero camera uses the scene's main camera.
	Scene  Handle
	Camera Handle
	// Material is drawn by screen passes and dispatched by compute passes.
	Material Handle
	// Target is the texture drawn into; zero targets the window surface. With a
	// SampleCount above 1 the pass draws into a multisampled attachment and Target
	// receives the resolved result.
	Target      Handle
	SampleCount uint32
	// Workgroups is the dispatch size of compute passes.
	Workgroups [3]uint32

	ClearColor  common.Color
	ClearOnLoad bool
}

func (p *Pass) setDefaults() {
	p.ClearColor = common.Color{0, 0, 0, 1}
	p.ClearOnLoad = true
	p.Workgroups = [3]uint32{1, 1, 1}
}

// BufferUsage says how a buffer is bound.
type BufferUsage uint8

const (
	BufferUsageStorage BufferUsage = iota
	BufferUsageUniform
	BufferUsageVertex
	BufferUsageIndex
)

// BufferWrite is a pending upload into a buffer.
type BufferWrite struct {
	Offset uint64
	Data   []byte
}

// Buffer is a raw GPU buffer addressable from material bindings.
type Buffer struct {
	Base

	Usage BufferUsage
	Size  uint64
	// Generation is bumped when the buffer is reallocated.
	Generation uint64
	Pending    []BufferWrite
}

func (b *Buffer) setDefaults() {
	b.Generation = 1
}

// ValidateBufferWrite checks that len(data) bytes at offset fit in a buffer of the given size.
func ValidateBufferWrite(size, offset uint64, data []byte) error {
	if offset > size || uint64(len(data)) > size-offset {
		return ErrBufferWriteRange
	}
	return nil
}

// Video is a video stream decoded into a texture by an external frame source.
type Video struct {
	Base

	Path    string
	Texture Handle
	Rate    float32
	Loop    bool
	Paused  bool
}

func (v *Video) setDefaults() {
	v.Rate = 1
}

// Webcam is a capture device streamed into a texture by an external frame source.
type Webcam struct {
	Base

	DeviceID int
	Texture  Handle
	Freeze   bool
	// LastFrame is the capture frame counter last uploaded, used to skip repeated frames.
	LastFrame uint64
}
