package assets

import (
	"fmt"
	"maps"
	"math"
	"os"
	"path/filepath"
	"slices"

	"github.com/Carmen-Shannon/oxy-scene/common"
	"github.com/Carmen-Shannon/oxy-scene/engine/component"
	"github.com/Carmen-Shannon/oxy-scene/engine/control"
	"github.com/Carmen-Shannon/oxy-scene/engine/renderer/material"
	"github.com/go-gl/mathgl/mgl32"
	"gopkg.in/yaml.v3"
)

// Manifest is a declarative scene read from YAML. Records are created in a fixed order:
// textures, geometries, materials, then nodes depth first.
type Manifest struct {
	Scene      SceneManifest               `yaml:"scene"`
	Textures   map[string]TextureManifest  `yaml:"textures"`
	Geometries map[string]GeometryManifest `yaml:"geometries"`
	Materials  map[string]MaterialManifest `yaml:"materials"`
	Nodes      []NodeManifest              `yaml:"nodes"`

	dir string
}

// SceneManifest holds the scene-wide settings.
type SceneManifest struct {
	Background []float32    `yaml:"background"`
	Ambient    []float32    `yaml:"ambient"`
	Fog        *FogManifest `yaml:"fog"`
}

// FogManifest describes distance fog.
type FogManifest struct {
	Kind    string    `yaml:"kind"`
	Density float32   `yaml:"density"`
	Color   []float32 `yaml:"color"`
}

// TextureManifest is an image file, six cubemap face files, or a texture filled from
// inline channel values.
type TextureManifest struct {
	Path   string    `yaml:"path"`
	Faces  []string  `yaml:"faces"`
	SRGB   bool      `yaml:"srgb"`
	Width  uint32    `yaml:"width"`
	Height uint32    `yaml:"height"`
	Format string    `yaml:"format"`
	Pixels []float32 `yaml:"pixels"`
}

// GeometryManifest is either a named primitive or explicit vertex streams.
type GeometryManifest struct {
	Primitive  string              `yaml:"primitive"`
	Size       float32             `yaml:"size"`
	Attributes []AttributeManifest `yaml:"attributes"`
	Indices    []uint32            `yaml:"indices"`
}

// AttributeManifest is one vertex stream.
type AttributeManifest struct {
	Location   int       `yaml:"location"`
	Components int       `yaml:"components"`
	Data       []float32 `yaml:"data"`
}

// MaterialManifest is a built-in material or a material over custom WGSL.
type MaterialManifest struct {
	Builtin string          `yaml:"builtin"`
	Color   []float32       `yaml:"color"`
	Texture string          `yaml:"texture"`
	Shader  *ShaderManifest `yaml:"shader"`
}

// ShaderManifest is WGSL inline or read from files next to the manifest.
type ShaderManifest struct {
	Source       string `yaml:"source"`
	File         string `yaml:"file"`
	FragmentFile string `yaml:"fragment_file"`
}

// NodeManifest is one node and its subtree.
type NodeManifest struct {
	Name     string    `yaml:"name"`
	Type     string    `yaml:"type"`
	Position []float32 `yaml:"position"`
	Rotation []float32 `yaml:"rotation"`
	Scale    []float32 `yaml:"scale"`
	LookAt   []float32 `yaml:"look_at"`

	Geometry string `yaml:"geometry"`
	Material string `yaml:"material"`

	Fov   float32 `yaml:"fov"`
	Ortho float32 `yaml:"ortho"`
	Near  float32 `yaml:"near"`
	Far   float32 `yaml:"far"`
	Main  bool    `yaml:"main"`

	Light     string    `yaml:"light"`
	Color     []float32 `yaml:"color"`
	Intensity float32   `yaml:"intensity"`
	Range     float32   `yaml:"range"`

	Text string `yaml:"text"`

	Children []NodeManifest `yaml:"children"`
}

var manifestFormats = map[string]component.TextureFormat{
	"":           component.FormatRGBA8Unorm,
	"rgba8":      component.FormatRGBA8Unorm,
	"rgba8_srgb": component.FormatRGBA8UnormSrgb,
	"rgba32f":    component.FormatRGBA32Float,
	"r32f":       component.FormatR32Float,
}

var manifestLights = map[string]component.LightKind{
	"":            component.LightDirectional,
	"directional": component.LightDirectional,
	"point":       component.LightPoint,
	"spot":        component.LightSpot,
}

var manifestFog = map[string]component.FogKind{
	"":       component.FogExponential,
	"exp":    component.FogExponential,
	"exp2":   component.FogExponentialSquared,
	"linear": component.FogLinear,
}

// LoadManifest reads and parses a manifest file. Shader files are resolved against the
// manifest's directory.
//
// Parameters:
//   - path: the YAML file
//
// Returns:
//   - *Manifest: the parsed manifest
//   - error: an error if the file cannot be read or parsed
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest %s: %w", path, err)
	}
	m, err := ParseManifest(data)
	if err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	m.dir = filepath.Dir(path)
	return m, nil
}

// ParseManifest parses manifest YAML.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// replay carries the name tables while a manifest is being replayed.
type replay struct {
	c       control.Client
	dir     string
	names   map[string]component.Handle
	scene   component.Handle
	cameras []component.Handle
}

// Replay creates everything a manifest describes through client. Nodes are parented under
// the client's main scene, creating one if there is none yet. Commands are batched on the
// client and reach the render side on its next Flush.
//
// Parameters:
//   - client: the control client to create records with
//   - m: the manifest
//
// Returns:
//   - map[string]component.Handle: the handle of every named texture, geometry, material and node
//   - error: the first record the manifest describes badly
func Replay(client control.Client, m *Manifest) (map[string]component.Handle, error) {
	r := &replay{c: client, dir: m.dir, names: make(map[string]component.Handle)}
	r.scene = client.MainScene()
	if r.scene == 0 {
		r.scene = client.Scene()
	}
	if err := r.settings(m.Scene); err != nil {
		return nil, err
	}
	for _, name := range slices.Sorted(maps.Keys(m.Textures)) {
		if err := r.texture(name, m.Textures[name]); err != nil {
			return nil, fmt.Errorf("texture %s: %w", name, err)
		}
	}
	for _, name := range slices.Sorted(maps.Keys(m.Geometries)) {
		if err := r.geometry(name, m.Geometries[name]); err != nil {
			return nil, fmt.Errorf("geometry %s: %w", name, err)
		}
	}
	for _, name := range slices.Sorted(maps.Keys(m.Materials)) {
		if err := r.material(name, m.Materials[name]); err != nil {
			return nil, fmt.Errorf("material %s: %w", name, err)
		}
	}
	for i := range m.Nodes {
		if err := r.node(r.scene, &m.Nodes[i]); err != nil {
			return nil, err
		}
	}
	if client.MainCamera() == 0 && len(r.cameras) > 0 {
		if err := client.SetMainCamera(r.cameras[0]); err != nil {
			return nil, err
		}
	}
	return r.names, nil
}

func (r *replay) settings(s SceneManifest) error {
	if len(s.Background) > 0 {
		if err := r.c.Background(r.scene, colorOr(s.Background, common.Black)); err != nil {
			return err
		}
	}
	if len(s.Ambient) > 0 {
		a := colorOr(s.Ambient, common.Black)
		if err := r.c.Ambient(r.scene, [3]float32{a[0], a[1], a[2]}); err != nil {
			return err
		}
	}
	if s.Fog != nil {
		kind, ok := manifestFog[s.Fog.Kind]
		if !ok {
			return fmt.Errorf("unknown fog kind %q", s.Fog.Kind)
		}
		fog := component.Fog{Enabled: true, Kind: kind, Density: s.Fog.Density, Color: colorOr(s.Fog.Color, common.White)}
		if err := r.c.Fog(r.scene, fog); err != nil {
			return err
		}
	}
	return nil
}

func (r *replay) texture(name string, t TextureManifest) error {
	if t.Path != "" {
		r.names[name] = r.c.LoadTexture(t.Path, t.SRGB)
		return nil
	}
	if len(t.Faces) > 0 {
		if len(t.Faces) != component.CubeFaces {
			return fmt.Errorf("cubemap needs %d faces, got %d", component.CubeFaces, len(t.Faces))
		}
		r.names[name] = r.c.LoadCubemap([component.CubeFaces]string(t.Faces), t.SRGB)
		return nil
	}
	format, ok := manifestFormats[t.Format]
	if !ok {
		return fmt.Errorf("unknown format %q", t.Format)
	}
	if t.Width == 0 || t.Height == 0 {
		return fmt.Errorf("texture needs a path or a size")
	}
	desc := component.TextureDesc{Format: format, Width: t.Width, Height: t.Height}
	h := r.c.Texture(desc)
	r.names[name] = h
	if len(t.Pixels) == 0 {
		return nil
	}
	data := common.SliceToBytes(t.Pixels)
	if format == component.FormatRGBA8Unorm || format == component.FormatRGBA8UnormSrgb {
		data = make([]byte, len(t.Pixels))
		for i, v := range t.Pixels {
			data[i] = byte(common.Clamp(v, 0, 1)*255 + 0.5)
		}
	}
	desc, _ = r.c.TextureDesc(h)
	return r.c.WriteTexture(h, component.FullWrite(desc), data)
}

func (r *replay) geometry(name string, g GeometryManifest) error {
	h := r.c.Geometry()
	r.names[name] = h
	if g.Primitive != "" {
		mesh, err := Primitive(g.Primitive, g.Size)
		if err != nil {
			return err
		}
		return UploadMesh(r.c, h, mesh)
	}
	for _, a := range g.Attributes {
		if err := r.c.GeometryAttribute(h, a.Location, a.Components, a.Data); err != nil {
			return err
		}
	}
	if len(g.Indices) > 0 {
		return r.c.GeometryIndices(h, g.Indices)
	}
	return nil
}

// UploadMesh queues mesh's streams on an existing geometry.
func UploadMesh(c control.Client, geo component.Handle, mesh MeshData) error {
	streams := []struct {
		location, components int
		data                 []float32
	}{
		{LocationPosition, 3, mesh.Positions},
		{LocationNormal, 3, mesh.Normals},
		{LocationUV, 2, mesh.UVs},
	}
	for _, s := range streams {
		if len(s.data) == 0 {
			continue
		}
		if err := c.GeometryAttribute(geo, s.location, s.components, s.data); err != nil {
			return err
		}
	}
	if len(mesh.Indices) == 0 {
		return nil
	}
	return c.GeometryIndices(geo, mesh.Indices)
}

func (r *replay) lookup(kind, name string, t component.Type) (component.Handle, error) {
	if name == "" {
		return 0, nil
	}
	h, ok := r.names[name]
	if !ok || r.c.TypeOf(h) != t {
		return 0, fmt.Errorf("%w: %s %q", component.ErrNotFound, kind, name)
	}
	return h, nil
}

func (r *replay) material(name string, m MaterialManifest) error {
	if m.Shader != nil {
		src, err := r.shaderSource(m.Shader)
		if err != nil {
			return err
		}
		h, err := r.c.Material(component.DefaultPipelineState(r.c.Shader(src)), nil)
		if err != nil {
			return err
		}
		r.names[name] = h
		return nil
	}
	b, ok := material.ParseBuiltin(m.Builtin)
	if !ok {
		return fmt.Errorf("unknown builtin %q", m.Builtin)
	}
	albedo, err := r.lookup("texture", m.Texture, component.TypeTexture)
	if err != nil {
		return err
	}
	h, err := r.c.BuiltinMaterial(b, colorOr(m.Color, common.White), albedo)
	if err != nil {
		return err
	}
	r.names[name] = h
	return nil
}

func (r *replay) shaderSource(s *ShaderManifest) (control.ShaderSource, error) {
	var src control.ShaderSource
	src.Vertex = s.Source
	if s.File != "" {
		b, err := os.ReadFile(filepath.Join(r.dir, s.File))
		if err != nil {
			return src, err
		}
		src.Vertex = string(b)
	}
	if s.FragmentFile != "" {
		b, err := os.ReadFile(filepath.Join(r.dir, s.FragmentFile))
		if err != nil {
			return src, err
		}
		src.Fragment = string(b)
	}
	if src.Vertex == "" {
		return src, fmt.Errorf("shader has no source")
	}
	return src, nil
}

func (r *replay) node(parent component.Handle, n *NodeManifest) error {
	h, err := r.create(n)
	if err != nil {
		return fmt.Errorf("node %q: %w", n.Name, err)
	}
	if n.Name != "" {
		r.names[n.Name] = h
	}
	if err := r.c.AddChild(parent, h); err != nil {
		return err
	}
	if len(n.Position) > 0 {
		if err := r.c.SetPosition(h, vec3(n.Position, mgl32.Vec3{})); err != nil {
			return err
		}
	}
	if len(n.Rotation) > 0 {
		e := vec3(n.Rotation, mgl32.Vec3{})
		q := mgl32.AnglesToQuat(mgl32.DegToRad(e[0]), mgl32.DegToRad(e[1]), mgl32.DegToRad(e[2]), mgl32.XYZ)
		if err := r.c.SetRotation(h, q); err != nil {
			return err
		}
	}
	if len(n.Scale) > 0 {
		if err := r.c.SetScale(h, vec3(n.Scale, mgl32.Vec3{1, 1, 1})); err != nil {
			return err
		}
	}
	if len(n.LookAt) > 0 {
		if err := r.c.LookAt(h, vec3(n.LookAt, mgl32.Vec3{}), mgl32.Vec3{0, 1, 0}); err != nil {
			return err
		}
	}
	for i := range n.Children {
		if err := r.node(h, &n.Children[i]); err != nil {
			return err
		}
	}
	return nil
}

func (r *replay) create(n *NodeManifest) (component.Handle, error) {
	switch n.Type {
	case "", "transform":
		return r.c.Transform(n.Name), nil
	case "mesh":
		geo, err := r.lookup("geometry", n.Geometry, component.TypeGeometry)
		if err != nil {
			return 0, err
		}
		mat, err := r.lookup("material", n.Material, component.TypeMaterial)
		if err != nil {
			return 0, err
		}
		return r.c.Mesh(geo, mat)
	case "camera":
		params := component.DefaultCameraParams()
		if n.Fov > 0 {
			params.FovRadians = mgl32.DegToRad(n.Fov)
		}
		if n.Ortho > 0 {
			params.Kind = component.CameraOrthographic
			params.Size = n.Ortho
		}
		if n.Near > 0 {
			params.Near = n.Near
		}
		if n.Far > 0 {
			params.Far = n.Far
		}
		h := r.c.Camera(params)
		if n.Main {
			r.cameras = slices.Insert(r.cameras, 0, h)
		} else {
			r.cameras = append(r.cameras, h)
		}
		return h, nil
	case "light":
		kind, ok := manifestLights[n.Light]
		if !ok {
			return 0, fmt.Errorf("unknown light kind %q", n.Light)
		}
		c := colorOr(n.Color, common.White)
		desc := component.LightDesc{
			Kind:      kind,
			Color:     [3]float32{c[0], c[1], c[2]},
			Intensity: 1,
			Range:     10,
			InnerCone: math.Pi / 12,
			OuterCone: math.Pi / 8,
		}
		if n.Intensity > 0 {
			desc.Intensity = n.Intensity
		}
		if n.Range > 0 {
			desc.Range = n.Range
		}
		return r.c.Light(desc), nil
	case "text":
		return r.c.Text(n.Text, colorOr(n.Color, common.White)), nil
	default:
		return 0, fmt.Errorf("unknown node type %q", n.Type)
	}
}

// colorOr reads up to four channels, filling missing ones from def.
func colorOr(v []float32, def common.Color) common.Color {
	c := def
	copy(c[:], v)
	return c
}

func vec3(v []float32, def mgl32.Vec3) mgl32.Vec3 {
	out := def
	copy(out[:], v)
	return out
}
