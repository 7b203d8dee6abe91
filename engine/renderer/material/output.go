package material

import (
	_ "embed"
	"encoding/binary"
	"math"

	"github.com/Carmen-Shannon/oxy-scene/engine/component"
)

//go:embed assets/output.wgsl
var outputSource string

// Tonemap selects the curve the output material maps HDR color through.
type Tonemap uint32

const (
	TonemapNone Tonemap = iota
	TonemapLinear
	TonemapReinhard
	TonemapCineon
	TonemapACES
	TonemapUncharted

	tonemapCount
)

var tonemapNames = [tonemapCount]string{
	TonemapNone:      "none",
	TonemapLinear:    "linear",
	TonemapReinhard:  "reinhard",
	TonemapCineon:    "cineon",
	TonemapACES:      "aces",
	TonemapUncharted: "uncharted",
}

func (t Tonemap) String() string {
	if t >= tonemapCount {
		return "unknown"
	}
	return tonemapNames[t]
}

// Valid reports whether t names a known curve.
func (t Tonemap) Valid() bool {
	return t < tonemapCount
}

// ParseTonemap looks a tonemap curve up by name.
func ParseTonemap(name string) (Tonemap, bool) {
	for i, n := range tonemapNames {
		if n == name {
			return Tonemap(i), true
		}
	}
	return 0, false
}

// OutputParams are the settings of the output material. Gamma is 1 by default because
// the surface format already applies the sRGB curve.
type OutputParams struct {
	Tonemap  Tonemap
	Exposure float32
	Gamma    float32
}

// DefaultOutputParams returns the Uncharted curve at unit exposure and gamma.
func DefaultOutputParams() OutputParams {
	return OutputParams{Tonemap: TonemapUncharted, Exposure: 1, Gamma: 1}
}

// Marshal serializes the params into the 16-byte OutputParams uniform.
//
// Returns:
//   - []byte: exposure, gamma, tonemap and one word of padding
func (p OutputParams) Marshal() []byte {
	buf := make([]byte, 16)
	binary.LittleEndian.PutUint32(buf[0:4], math.Float32bits(p.Exposure))
	binary.LittleEndian.PutUint32(buf[4:8], math.Float32bits(p.Gamma))
	binary.LittleEndian.PutUint32(buf[8:12], uint32(p.Tonemap))
	return buf
}

// DefineOutput describes an output material that tonemaps input onto its pass target.
// It is meant for the screen pass that ends a chain rendering into an HDR texture.
//
// Parameters:
//   - input: the texture to tonemap, zero for the white fallback
//   - params: the tonemap settings
//
// Returns:
//   - Definition: the material definition
func DefineOutput(input component.Handle, params OutputParams) Definition {
	def := Define(Output, [4]float32{1, 1, 1, 1}, input)
	def.Bindings[BindingParams] = component.UniformBinding(params.Marshal())
	return def
}
