package camera

import (
	_ "embed"
	"unsafe"

	"github.com/Carmen-Shannon/oxy-scene/common"
	"github.com/go-gl/mathgl/mgl32"
)

// GPUFrameUniformSource is the canonical WGSL definition of the Frame struct.
// Matches GPUFrameUniform layout exactly (256 bytes, std140 aligned).
//
//go:embed assets/frame.wgsl
var GPUFrameUniformSource string

// GPUFrameUniform is the per-pass uniform bound at @group(0) @binding(0).
// Matches the WGSL Frame struct layout exactly (see GPUFrameUniformSource).
// Size: 256 bytes.
type GPUFrameUniform struct {
	View     mgl32.Mat4 // offset   0
	Proj     mgl32.Mat4 // offset  64
	ViewProj mgl32.Mat4 // offset 128
	Eye      [4]float32 // offset 192: xyz world-space eye, w unused
	FogColor [4]float32 // offset 208
	Fog      [4]float32 // offset 224: enabled, kind, density, unused
	Params   [4]float32 // offset 240: time, light count, viewport width, viewport height
}

// Size returns the size of the GPUFrameUniform struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (256)
func (g *GPUFrameUniform) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUFrameUniform struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: the serialized byte buffer
func (g *GPUFrameUniform) Marshal() []byte {
	buf := make([]byte, g.Size())
	common.PutMat4(buf[0:], g.View)
	common.PutMat4(buf[64:], g.Proj)
	common.PutMat4(buf[128:], g.ViewProj)
	common.PutVec4(buf[192:], g.Eye)
	common.PutVec4(buf[208:], g.FogColor)
	common.PutVec4(buf[224:], g.Fog)
	common.PutVec4(buf[240:], g.Params)
	return buf
}

// NewFrameUniform fills the camera part of a frame uniform.
func NewFrameUniform(m Matrices) GPUFrameUniform {
	return GPUFrameUniform{
		View:     m.View,
		Proj:     m.Proj,
		ViewProj: m.ViewProj,
		Eye:      [4]float32{m.Eye[0], m.Eye[1], m.Eye[2], 1},
	}
}
