package command

import (
	"fmt"
	"slices"

	"github.com/Carmen-Shannon/oxy-scene/common"
	"github.com/Carmen-Shannon/oxy-scene/engine/component"
	"github.com/Carmen-Shannon/oxy-scene/engine/renderer/shader"
	"go.uber.org/zap"
)

// SetGeometryAttribute replaces one vertex stream of a geometry.
type SetGeometryAttribute struct {
	Geometry   component.Handle
	Location   int
	Components int
	Data       []float32
}

// NewSetGeometryAttribute builds a SetGeometryAttribute that owns a copy of data.
func NewSetGeometryAttribute(geometry component.Handle, location, components int, data []float32) SetGeometryAttribute {
	return SetGeometryAttribute{Geometry: geometry, Location: location, Components: components, Data: slices.Clone(data)}
}

func (c SetGeometryAttribute) Kind() string { return "set_geometry_attribute" }

func (c SetGeometryAttribute) Execute(t *Target) error {
	g, err := t.Store.Geometry(c.Geometry)
	if err != nil {
		return err
	}
	if c.Location < 0 || c.Location >= component.MaxVertexAttributes {
		return fmt.Errorf("%w: attribute location %d", ErrInvalidArgument, c.Location)
	}
	if c.Components < 0 || c.Components > 4 {
		return fmt.Errorf("%w: %d components per vertex", ErrInvalidArgument, c.Components)
	}
	g.Attributes[c.Location] = component.VertexAttribute{Components: c.Components, Data: c.Data}
	g.Generation++
	return nil
}

// SetGeometryIndices replaces a geometry's index buffer.
type SetGeometryIndices struct {
	Geometry component.Handle
	Indices  []uint32
}

// NewSetGeometryIndices builds a SetGeometryIndices that owns a copy of indices.
func NewSetGeometryIndices(geometry component.Handle, indices []uint32) SetGeometryIndices {
	return SetGeometryIndices{Geometry: geometry, Indices: slices.Clone(indices)}
}

func (c SetGeometryIndices) Kind() string { return "set_geometry_indices" }

func (c SetGeometryIndices) Execute(t *Target) error {
	g, err := t.Store.Geometry(c.Geometry)
	if err != nil {
		return err
	}
	g.Indices = c.Indices
	g.Generation++
	return nil
}

// SetGeometryCounts overrides the vertex and index counts drawn. Negative values restore
// the derived counts.
type SetGeometryCounts struct {
	Geometry component.Handle
	Vertices int
	Indices  int
}

func (c SetGeometryCounts) Kind() string { return "set_geometry_counts" }

func (c SetGeometryCounts) Execute(t *Target) error {
	g, err := t.Store.Geometry(c.Geometry)
	if err != nil {
		return err
	}
	g.VertexCountOverride = c.Vertices
	g.IndexCountOverride = c.Indices
	return nil
}

// SetShader replaces a shader's source and vertex layout. A zero layout is taken from
// the vertex stage's input struct. A compute source makes the record a compute shader.
type SetShader struct {
	Shader         component.Handle
	VertexSource   string
	FragmentSource string
	VertexEntry    string
	FragmentEntry  string
	ComputeSource  string
	ComputeEntry   string
	VertexLayout   [component.MaxVertexAttributes]int
}

func (c SetShader) Kind() string { return "set_shader" }

func (c SetShader) Execute(t *Target) error {
	s, err := t.Store.Shader(c.Shader)
	if err != nil {
		return err
	}
	s.VertexSource = c.VertexSource
	s.FragmentSource = common.Coalesce(c.FragmentSource, c.VertexSource)
	s.VertexEntry = common.Coalesce(c.VertexEntry, "vs_main")
	s.FragmentEntry = common.Coalesce(c.FragmentEntry, "fs_main")
	s.ComputeSource = c.ComputeSource
	s.ComputeEntry = common.Coalesce(c.ComputeEntry, "cs_main")
	s.VertexLayout = c.VertexLayout
	if s.VertexLayout == ([component.MaxVertexAttributes]int{}) && !s.IsCompute() {
		s.VertexLayout = shader.Reflect(s.VertexSource, s.FragmentSource).VertexLayout()
	}
	s.Generation++
	return nil
}

// SetMaterialPipeline replaces a material's pipeline state.
type SetMaterialPipeline struct {
	Material component.Handle
	State    component.PipelineState
}

func (c SetMaterialPipeline) Kind() string { return "set_material_pipeline" }

func (c SetMaterialPipeline) Execute(t *Target) error {
	m, err := t.Store.Material(c.Material)
	if err != nil {
		return err
	}
	if c.State.Shader != 0 {
		if _, err := t.Store.Shader(c.State.Shader); err != nil {
			return err
		}
	}
	if !c.State.Topology.Valid() {
		return fmt.Errorf("%w: topology %d", ErrInvalidArgument, c.State.Topology)
	}
	m.PSO = c.State
	return nil
}

// SetMaterialBinding replaces one binding slot of a material.
type SetMaterialBinding struct {
	Material component.Handle
	Location int
	Binding  component.Binding
}

func (c SetMaterialBinding) Kind() string { return "set_material_binding" }

func (c SetMaterialBinding) Execute(t *Target) error {
	m, err := t.Store.Material(c.Material)
	if err != nil {
		return err
	}
	if c.Location < 0 || c.Location >= component.MaxMaterialBindings {
		return fmt.Errorf("%w: binding location %d", ErrInvalidArgument, c.Location)
	}
	if h, ok := c.Binding.Texture(); ok && h != 0 {
		if _, err := t.Store.Texture(h); err != nil {
			return err
		}
	}
	if h, ok := c.Binding.Buffer(); ok && h != 0 {
		if _, err := t.Store.Buffer(h); err != nil {
			return err
		}
	}
	m.SetBinding(c.Location, c.Binding)
	return nil
}

// AllocateTexture gives a texture a new shape, discarding its contents.
type AllocateTexture struct {
	Texture component.Handle
	Desc    component.TextureDesc
}

func (c AllocateTexture) Kind() string { return "allocate_texture" }

func (c AllocateTexture) Execute(t *Target) error {
	tex, err := t.Store.Texture(c.Texture)
	if err != nil {
		return err
	}
	tex.Reallocate(c.Desc)
	return nil
}

// WriteTexture uploads pixels into a texture region. The write was validated against
// the texture's shape when it was built; a reallocation since then drops it.
type WriteTexture struct {
	Texture component.Handle
	Region  component.TextureWriteDesc
	Data    []byte
}

// NewWriteTexture builds a WriteTexture that owns a copy of data.
func NewWriteTexture(texture component.Handle, region component.TextureWriteDesc, data []byte) WriteTexture {
	return WriteTexture{Texture: texture, Region: region, Data: slices.Clone(data)}
}

func (c WriteTexture) Kind() string { return "write_texture" }

func (c WriteTexture) Execute(t *Target) error {
	tex, err := t.Store.Texture(c.Texture)
	if err != nil {
		return err
	}
	if err := component.ValidateTextureWrite(tex.Desc, c.Region, len(c.Data)); err != nil {
		return err
	}
	tex.Pending = append(tex.Pending, component.TextureWrite{Region: c.Region, Data: c.Data})
	return nil
}

// LoadTexture decodes an image file into a texture. A file that cannot be decoded leaves
// the texture as a single magenta pixel.
type LoadTexture struct {
	Texture component.Handle
	Path    string
	SRGB    bool
}

func (c LoadTexture) Kind() string { return "load_texture" }

func (c LoadTexture) Execute(t *Target) error {
	tex, err := t.Store.Texture(c.Texture)
	if err != nil {
		return err
	}
	var img common.ImageData
	if t.Images == nil {
		err = fmt.Errorf("no image loader configured")
	} else {
		img, err = t.Images.LoadImage(c.Path)
	}
	if err != nil {
		if t.Log != nil {
			t.Log.Warn("command: texture load failed, using fallback",
				zap.Uint64("handle", uint64(c.Texture)), zap.String("path", c.Path), zap.Error(err))
		}
		img = common.SolidImage(common.Magenta, 1, 1)
	}
	Upload(tex, img, c.SRGB)
	return nil
}

// LoadCubemap decodes six face images into a cubemap texture, in +X, -X, +Y, -Y, +Z, -Z
// order. Every face must decode and have the size of the first; otherwise the texture is
// left as a magenta cube of one texel per face.
type LoadCubemap struct {
	Texture component.Handle
	Paths   [component.CubeFaces]string
	SRGB    bool
}

func (c LoadCubemap) Kind() string { return "load_cubemap" }

func (c LoadCubemap) Execute(t *Target) error {
	tex, err := t.Store.Texture(c.Texture)
	if err != nil {
		return err
	}
	faces, err := c.decode(t)
	if err != nil {
		if t.Log != nil {
			t.Log.Warn("command: cubemap load failed, using fallback",
				zap.Uint64("handle", uint64(c.Texture)), zap.Strings("paths", c.Paths[:]), zap.Error(err))
		}
		faces = nil
		for range component.CubeFaces {
			faces = append(faces, common.SolidImage(common.Magenta, 1, 1))
		}
	}
	UploadCube(tex, faces, c.SRGB)
	return nil
}

func (c LoadCubemap) decode(t *Target) ([]common.ImageData, error) {
	if t.Images == nil {
		return nil, fmt.Errorf("no image loader configured")
	}
	faces := make([]common.ImageData, 0, component.CubeFaces)
	for i, path := range c.Paths {
		img, err := t.Images.LoadImage(path)
		if err != nil {
			return nil, fmt.Errorf("face %d: %w", i, err)
		}
		if i > 0 && (img.Width != faces[0].Width || img.Height != faces[0].Height) {
			return nil, fmt.Errorf("%w: face %d is %dx%d, face 0 is %dx%d",
				ErrInvalidArgument, i, img.Width, img.Height, faces[0].Width, faces[0].Height)
		}
		faces = append(faces, img)
	}
	return faces, nil
}

// UploadCube reallocates tex as a cubemap of the faces' size and queues every face.
// The faces must share one size.
func UploadCube(tex *component.Texture, faces []common.ImageData, srgb bool) {
	format := component.FormatRGBA8Unorm
	if srgb {
		format = component.FormatRGBA8UnormSrgb
	}
	desc := component.TextureDesc{Format: format, Width: faces[0].Width, Height: faces[0].Height, Depth: component.CubeFaces, Mips: 1, Cube: true}
	tex.Reallocate(desc)
	pixels := make([]byte, 0, len(faces[0].Pixels)*component.CubeFaces)
	for _, f := range faces {
		pixels = append(pixels, f.Pixels...)
	}
	tex.Pending = append(tex.Pending, component.TextureWrite{Region: component.FullWrite(desc), Data: pixels})
}

// Upload reallocates tex to the image's size and queues its pixels.
func Upload(tex *component.Texture, img common.ImageData, srgb bool) {
	format := component.FormatRGBA8Unorm
	if srgb {
		format = component.FormatRGBA8UnormSrgb
	}
	desc := component.TextureDesc{Format: format, Width: img.Width, Height: img.Height, Depth: 1, Mips: 1}
	tex.Reallocate(desc)
	tex.Pending = append(tex.Pending, component.TextureWrite{Region: component.FullWrite(desc), Data: img.Pixels})
}

// AllocateBuffer gives a buffer a usage and size, discarding its contents.
type AllocateBuffer struct {
	Buffer component.Handle
	Usage  component.BufferUsage
	Size   uint64
}

func (c AllocateBuffer) Kind() string { return "allocate_buffer" }

func (c AllocateBuffer) Execute(t *Target) error {
	b, err := t.Store.Buffer(c.Buffer)
	if err != nil {
		return err
	}
	b.Usage = c.Usage
	b.Size = c.Size
	b.Pending = nil
	b.Generation++
	return nil
}

// WriteBuffer uploads bytes into a buffer at an offset.
type WriteBuffer struct {
	Buffer component.Handle
	Offset uint64
	Data   []byte
}

// NewWriteBuffer builds a WriteBuffer that owns a copy of data.
func NewWriteBuffer(buffer component.Handle, offset uint64, data []byte) WriteBuffer {
	return WriteBuffer{Buffer: buffer, Offset: offset, Data: slices.Clone(data)}
}

func (c WriteBuffer) Kind() string { return "write_buffer" }

func (c WriteBuffer) Execute(t *Target) error {
	b, err := t.Store.Buffer(c.Buffer)
	if err != nil {
		return err
	}
	if err := component.ValidateBufferWrite(b.Size, c.Offset, c.Data); err != nil {
		return err
	}
	b.Pending = append(b.Pending, component.BufferWrite{Offset: c.Offset, Data: c.Data})
	return nil
}

// SetPass replaces a pass description.
type SetPass struct {
	Pass        component.Handle
	PassKind    component.PassKind
	Next        component.Handle
	Scene       component.Handle
	Camera      component.Handle
	Material    component.Handle
	Target      component.Handle
	SampleCount uint32
	// Workgroups of zero dispatch a single workgroup.
	Workgroups  [3]uint32
	ClearColor  common.Color
	ClearOnLoad bool
}

func (c SetPass) Kind() string { return "set_pass" }

func (c SetPass) Execute(t *Target) error {
	p, err := t.Store.Pass(c.Pass)
	if err != nil {
		return err
	}
	if !c.PassKind.Valid() {
		return fmt.Errorf("%w: pass kind %d", ErrInvalidArgument, c.PassKind)
	}
	if !component.ValidSampleCount(c.SampleCount) {
		return fmt.Errorf("%w: sample count %d", ErrInvalidArgument, c.SampleCount)
	}
	for n := c.Next; n != 0; {
		if n == c.Pass {
			return fmt.Errorf("%w: pass %d chains back to itself", component.ErrStructural, c.Pass)
		}
		next, err := t.Store.Pass(n)
		if err != nil {
			return err
		}
		n = next.Next
	}
	p.Kind = c.PassKind
	p.Next = c.Next
	p.Scene = c.Scene
	p.Camera = c.Camera
	p.Material = c.Material
	p.Target = c.Target
	p.SampleCount = c.SampleCount
	p.Workgroups = c.Workgroups
	if p.Workgroups == ([3]uint32{}) {
		p.Workgroups = [3]uint32{1, 1, 1}
	}
	p.ClearColor = c.ClearColor
	p.ClearOnLoad = c.ClearOnLoad
	return nil
}

// SetVideo configures a video stream record.
type SetVideo struct {
	Video   component.Handle
	Path    string
	Texture component.Handle
	Rate    float32
	Loop    bool
	Paused  bool
}

func (c SetVideo) Kind() string { return "set_video" }

func (c SetVideo) Execute(t *Target) error {
	v, err := t.Store.Video(c.Video)
	if err != nil {
		return err
	}
	if c.Texture != 0 {
		if _, err := t.Store.Texture(c.Texture); err != nil {
			return err
		}
	}
	v.Path, v.Texture, v.Rate, v.Loop, v.Paused = c.Path, c.Texture, c.Rate, c.Loop, c.Paused
	return nil
}

// SetWebcam configures a capture device record.
type SetWebcam struct {
	Webcam   component.Handle
	DeviceID int
	Texture  component.Handle
	Freeze   bool
}

func (c SetWebcam) Kind() string { return "set_webcam" }

func (c SetWebcam) Execute(t *Target) error {
	w, err := t.Store.Webcam(c.Webcam)
	if err != nil {
		return err
	}
	if c.Texture != 0 {
		if _, err := t.Store.Texture(c.Texture); err != nil {
			return err
		}
	}
	w.DeviceID, w.Texture, w.Freeze = c.DeviceID, c.Texture, c.Freeze
	return nil
}
