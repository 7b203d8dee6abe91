package material

import (
	_ "embed"
	"strings"

	"github.com/Carmen-Shannon/oxy-scene/common"
	"github.com/Carmen-Shannon/oxy-scene/engine/camera"
	"github.com/Carmen-Shannon/oxy-scene/engine/component"
	"github.com/Carmen-Shannon/oxy-scene/engine/light"
)

// Binding slots of the built-in materials' group 1.
const (
	BindingParams  = 0
	BindingAlbedo  = 1
	BindingSampler = 2
)

var (
	//go:embed assets/common.wgsl
	commonSource string
	//go:embed assets/flat.wgsl
	flatSource string
	//go:embed assets/normal.wgsl
	normalSource string
	//go:embed assets/uv.wgsl
	uvSource string
	//go:embed assets/unlit_texture.wgsl
	unlitTextureSource string
	//go:embed assets/lit.wgsl
	litSource string
	//go:embed assets/fullscreen.wgsl
	fullscreenSource string
)

// Builtin names one of the materials that ship with the engine.
type Builtin uint8

const (
	// Flat draws the base color.
	Flat Builtin = iota
	// Normal draws world-space normals remapped to [0, 1].
	Normal
	// UV draws texture coordinates.
	UV
	// UnlitTexture draws the albedo texture tinted by the base color.
	UnlitTexture
	// Lit shades the albedo texture with the scene's lights.
	Lit
	// Fullscreen draws the albedo texture over the whole target; it is meant for screen passes.
	Fullscreen
	// Output tonemaps the albedo texture over the whole target with OutputParams.
	Output

	builtinCount
)

var builtinNames = [builtinCount]string{
	Flat:         "flat",
	Normal:       "normal",
	UV:           "uv",
	UnlitTexture: "unlit_texture",
	Lit:          "lit",
	Fullscreen:   "fullscreen",
	Output:       "output",
}

func (b Builtin) String() string {
	if b >= builtinCount {
		return "unknown"
	}
	return builtinNames[b]
}

// ParseBuiltin looks a built-in material up by name.
//
// Parameters:
//   - name: the material name, e.g. "lit"
//
// Returns:
//   - Builtin: the material
//   - bool: false if no built-in has that name
func ParseBuiltin(name string) (Builtin, bool) {
	for i, n := range builtinNames {
		if n == name {
			return Builtin(i), true
		}
	}
	return 0, false
}

// Source returns the complete WGSL module of a built-in material. Mesh materials share
// the vertex stage and the frame, light and instance declarations.
func (b Builtin) Source() string {
	switch b {
	case Fullscreen:
		return GPUMaterialParamsSource + "\n" + fullscreenSource
	case Output:
		return outputSource
	}
	var body string
	switch b {
	case Normal:
		body = normalSource
	case UV:
		body = uvSource
	case UnlitTexture:
		body = unlitTextureSource
	case Lit:
		body = litSource
	default:
		body = flatSource
	}
	return strings.Join([]string{
		camera.GPUFrameUniformSource,
		light.GPULightSource,
		GPUMaterialParamsSource,
		commonSource,
		body,
	}, "\n")
}

// Textured reports whether the material samples an albedo texture.
func (b Builtin) Textured() bool {
	return b == UnlitTexture || b == Lit || b == Fullscreen || b == Output
}

// Screen reports whether the material draws a fullscreen triangle instead of meshes.
func (b Builtin) Screen() bool {
	return b == Fullscreen || b == Output
}

// Definition is everything needed to create a built-in material's shader and material records.
type Definition struct {
	Builtin  Builtin
	Source   string
	PSO      component.PipelineState
	Bindings map[int]component.Binding
}

// Define describes a built-in material. The pipeline state's shader is left zero for the
// caller to fill in once the shader record exists.
//
// Parameters:
//   - b: the built-in material
//   - color: the base color
//   - albedo: the albedo texture, zero for the white fallback
//
// Returns:
//   - Definition: the material definition
func Define(b Builtin, color common.Color, albedo component.Handle) Definition {
	params := GPUMaterialParams{Color: color}
	uniform := params.Marshal()
	if b == Output {
		uniform = DefaultOutputParams().Marshal()
	}
	def := Definition{
		Builtin: b,
		Source:  b.Source(),
		PSO:     component.DefaultPipelineState(0),
		Bindings: map[int]component.Binding{
			BindingParams: component.UniformBinding(uniform),
		},
	}
	if color[3] < 1 && b != Output {
		def.PSO.Blend = component.BlendAlpha
	}
	if b.Screen() {
		def.PSO.DepthTest = false
		def.PSO.DepthWrite = false
	}
	if b.Textured() {
		def.Bindings[BindingAlbedo] = component.TextureBinding(albedo)
		def.Bindings[BindingSampler] = component.SamplerBinding(component.SamplerConfig{})
	}
	return def
}
