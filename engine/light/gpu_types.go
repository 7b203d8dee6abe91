package light

import (
	_ "embed"
	"encoding/binary"
	"math"
	"unsafe"

	"github.com/Carmen-Shannon/oxy-scene/engine/component"
	"github.com/go-gl/mathgl/mgl32"
)

// MaxGPULights is the maximum number of lights marshaled into the light storage buffer
// per pass. Lights past the budget are dropped in handle order.
const MaxGPULights = 256

// GPULightSource is the canonical WGSL definition of the Light and Lights structs.
// Matches GPULightHeader followed by GPULight elements (16 + 64n bytes).
//
//go:embed assets/light.wgsl
var GPULightSource string

// GPULight is the GPU-aligned representation of a single light source.
// Matches the WGSL Light struct layout exactly (see GPULightSource).
// Size: 64 bytes.
type GPULight struct {
	Position   [3]float32 // offset  0: world-space position (point/spot)
	LightType  uint32     // offset 12: 0 = directional, 1 = point, 2 = spot
	Color      [3]float32 // offset 16: RGB color
	Intensity  float32    // offset 28: scalar multiplier
	Direction  [3]float32 // offset 32: normalized direction (directional/spot)
	LightRange float32    // offset 44: attenuation cutoff distance
	InnerCone  float32    // offset 48: cos(inner half-angle) for spot
	OuterCone  float32    // offset 52: cos(outer half-angle) for spot
	_pad       [2]uint32  // offset 56: padding to 64 bytes
}

// Size returns the size of the GPULight struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (64)
func (g *GPULight) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPULight struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 64-byte buffer ready for GPU upload
func (g *GPULight) Marshal() []byte {
	buf := make([]byte, 64)
	g.put(buf)
	return buf
}

func (g *GPULight) put(buf []byte) {
	binary.LittleEndian.PutUint32(buf[0:4], math.Float32bits(g.Position[0]))
	binary.LittleEndian.PutUint32(buf[4:8], math.Float32bits(g.Position[1]))
	binary.LittleEndian.PutUint32(buf[8:12], math.Float32bits(g.Position[2]))
	binary.LittleEndian.PutUint32(buf[12:16], g.LightType)
	binary.LittleEndian.PutUint32(buf[16:20], math.Float32bits(g.Color[0]))
	binary.LittleEndian.PutUint32(buf[20:24], math.Float32bits(g.Color[1]))
	binary.LittleEndian.PutUint32(buf[24:28], math.Float32bits(g.Color[2]))
	binary.LittleEndian.PutUint32(buf[28:32], math.Float32bits(g.Intensity))
	binary.LittleEndian.PutUint32(buf[32:36], math.Float32bits(g.Direction[0]))
	binary.LittleEndian.PutUint32(buf[36:40], math.Float32bits(g.Direction[1]))
	binary.LittleEndian.PutUint32(buf[40:44], math.Float32bits(g.Direction[2]))
	binary.LittleEndian.PutUint32(buf[44:48], math.Float32bits(g.LightRange))
	binary.LittleEndian.PutUint32(buf[48:52], math.Float32bits(g.InnerCone))
	binary.LittleEndian.PutUint32(buf[52:56], math.Float32bits(g.OuterCone))
	binary.LittleEndian.PutUint64(buf[56:64], 0) // padding
}

// GPULightHeader is the header prepended to the light storage buffer.
// Size: 16 bytes (vec3 + u32).
type GPULightHeader struct {
	AmbientColor [3]float32 // offset 0: scene ambient RGB
	LightCount   uint32     // offset 12: number of lights following the header
}

// Size returns the size of the GPULightHeader struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (16)
func (h *GPULightHeader) Size() int {
	return int(unsafe.Sizeof(*h))
}

// Marshal serializes the GPULightHeader struct into a byte buffer suitable for
// GPU upload.
//
// Returns:
//   - []byte: 16-byte buffer ready for GPU upload
func (h *GPULightHeader) Marshal() []byte {
	buf := make([]byte, 16)
	binary.LittleEndian.PutUint32(buf[0:4], math.Float32bits(h.AmbientColor[0]))
	binary.LittleEndian.PutUint32(buf[4:8], math.Float32bits(h.AmbientColor[1]))
	binary.LittleEndian.PutUint32(buf[8:12], math.Float32bits(h.AmbientColor[2]))
	binary.LittleEndian.PutUint32(buf[12:16], h.LightCount)
	return buf
}

// ToGPULight converts a light node into its GPU representation. Position is the
// translation of the world matrix and direction is its -Z axis.
//
// Parameters:
//   - l: the light record, with rebuilt matrices
//
// Returns:
//   - GPULight: the GPU-aligned representation
func ToGPULight(l *component.Light) GPULight {
	pos := l.World.Col(3).Vec3()
	dir := l.World.Mul4x1(mgl32.Vec4{0, 0, -1, 0}).Vec3()
	if dir.Len() > 1e-6 {
		dir = dir.Normalize()
	} else {
		dir = mgl32.Vec3{0, 0, -1}
	}
	return GPULight{
		Position:   pos,
		LightType:  uint32(l.Desc.Kind),
		Color:      l.Desc.Color,
		Intensity:  l.Desc.Intensity,
		Direction:  dir,
		LightRange: l.Desc.Range,
		InnerCone:  float32(math.Cos(float64(l.Desc.InnerCone))),
		OuterCone:  float32(math.Cos(float64(l.Desc.OuterCone))),
	}
}

// BufferSize returns the storage buffer size needed for n lights. It never returns less
// than the size of one light so the binding is valid for an unlit scene.
func BufferSize(n int) uint64 {
	n = min(max(n, 1), MaxGPULights)
	return uint64((&GPULightHeader{}).Size() + n*(&GPULight{}).Size())
}

// MarshalLightBuffer marshals lights into a byte buffer suitable for GPU upload. The
// buffer layout is:
//
//	[GPULightHeader (16 bytes)] [GPULight × count (64 bytes each)]
//
// At most MaxGPULights lights are written. The buffer is BufferSize(len(lights)) long.
//
// Parameters:
//   - lights: the lights to marshal
//   - ambient: the scene ambient color as RGB
//
// Returns:
//   - []byte: the marshaled buffer ready for GPU upload
func MarshalLightBuffer(lights []GPULight, ambient [3]float32) []byte {
	count := min(len(lights), MaxGPULights)
	buf := make([]byte, BufferSize(count))

	header := GPULightHeader{AmbientColor: ambient, LightCount: uint32(count)}
	copy(buf, header.Marshal())

	offset := header.Size()
	for i := range count {
		lights[i].put(buf[offset:])
		offset += 64
	}
	return buf
}
