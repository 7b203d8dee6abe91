package common

import (
	"encoding/binary"
	"math"
	"unsafe"

	"github.com/go-gl/mathgl/mgl32"
)

// degenerateEpsilon is the column length below which a basis axis is treated as collapsed.
const degenerateEpsilon = 1e-6

// SliceToBytes converts any slice to a byte slice for GPU buffer uploads.
// Uses unsafe pointer operations to create a view into the original data.
// WARNING: The returned slice shares memory with the input - do not modify.
//
// Parameters:
//   - data: source slice of any type
//
// Returns:
//   - []byte: byte slice view of the input data, or nil if input is empty
func SliceToBytes[T any](data []T) []byte {
	if len(data) == 0 {
		return nil
	}
	var zero T
	size := unsafe.Sizeof(zero)
	return unsafe.Slice((*byte)(unsafe.Pointer(&data[0])), int(size)*len(data))
}

// PutMat4 writes a column-major matrix into buf as 16 little-endian float32 values.
// buf must hold at least 64 bytes.
func PutMat4(buf []byte, m mgl32.Mat4) {
	for i := range 16 {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(m[i]))
	}
}

// PutVec4 writes four little-endian float32 values into buf. buf must hold at least 16 bytes.
func PutVec4(buf []byte, v [4]float32) {
	for i := range 4 {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v[i]))
	}
}

// ComposeTRS builds a local matrix as T * R * S.
//
// Parameters:
//   - pos: translation
//   - rot: rotation quaternion (normalized by the caller or here if non-unit)
//   - scale: per-axis scale
//
// Returns:
//   - mgl32.Mat4: the composed column-major matrix
func ComposeTRS(pos mgl32.Vec3, rot mgl32.Quat, scale mgl32.Vec3) mgl32.Mat4 {
	r := rot
	if l := r.Len(); l != 0 && l != 1 {
		r = r.Normalize()
	}
	m := r.Mat4()
	// scale columns in place rather than multiplying by a scale matrix
	for c := range 3 {
		for row := range 3 {
			m[c*4+row] *= scale[c]
		}
	}
	m[12], m[13], m[14] = pos[0], pos[1], pos[2]
	return m
}

// DecomposeTRS splits an affine matrix into translation, rotation and scale.
// Each scale factor is the length of the corresponding basis column. A column
// whose length is below degenerateEpsilon reports a scale of 0 and contributes
// the matching identity axis to the rotation basis, so zero-scaled matrices never
// produce NaN rotations.
//
// Parameters:
//   - m: the matrix to decompose
//
// Returns:
//   - mgl32.Vec3: translation
//   - mgl32.Quat: rotation
//   - mgl32.Vec3: scale
func DecomposeTRS(m mgl32.Mat4) (mgl32.Vec3, mgl32.Quat, mgl32.Vec3) {
	pos := mgl32.Vec3{m[12], m[13], m[14]}

	var scale mgl32.Vec3
	var basis [3]mgl32.Vec3
	identity := [3]mgl32.Vec3{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
	for c := range 3 {
		col := mgl32.Vec3{m[c*4], m[c*4+1], m[c*4+2]}
		l := col.Len()
		if l < degenerateEpsilon || math.IsNaN(float64(l)) {
			scale[c] = 0
			basis[c] = identity[c]
			continue
		}
		scale[c] = l
		basis[c] = col.Mul(1 / l)
	}

	// a mirrored basis flips one axis so the rotation stays proper
	if basis[0].Cross(basis[1]).Dot(basis[2]) < 0 {
		scale[0] = -scale[0]
		basis[0] = basis[0].Mul(-1)
	}

	rm := mgl32.Mat4FromCols(basis[0].Vec4(0), basis[1].Vec4(0), basis[2].Vec4(0), mgl32.Vec4{0, 0, 0, 1})
	rot := mgl32.Mat4ToQuat(rm).Normalize()
	return pos, rot, scale
}

// NormalMatrix returns the inverse-transpose of the upper 3x3 of m, widened to a Mat4
// so it can be packed with std430 alignment. A singular input yields the identity.
func NormalMatrix(m mgl32.Mat4) mgl32.Mat4 {
	m3 := m.Mat3()
	if m3.Det() == 0 {
		return mgl32.Ident4()
	}
	return m3.Inv().Transpose().Mat4()
}

// Perspective creates a perspective projection matrix for the WebGPU clip space
// depth range [0, 1].
//
// Parameters:
//   - fovY: vertical field of view in radians
//   - aspect: viewport aspect ratio (width/height)
//   - near: near clipping plane distance (must be > 0)
//   - far: far clipping plane distance (must be > near)
//
// Returns:
//   - mgl32.Mat4: the projection matrix
func Perspective(fovY, aspect, near, far float32) mgl32.Mat4 {
	f := 1.0 / float32(math.Tan(float64(fovY)/2.0))
	var out mgl32.Mat4
	out[0] = f / aspect
	out[5] = f
	out[10] = far / (near - far)
	out[11] = -1.0
	out[14] = (near * far) / (near - far)
	return out
}

// Orthographic creates an orthographic projection matrix for the WebGPU depth range [0, 1].
func Orthographic(left, right, bottom, top, near, far float32) mgl32.Mat4 {
	var out mgl32.Mat4
	out[0] = 2 / (right - left)
	out[5] = 2 / (top - bottom)
	out[10] = 1 / (near - far)
	out[12] = -(right + left) / (right - left)
	out[13] = -(top + bottom) / (top - bottom)
	out[14] = near / (near - far)
	out[15] = 1
	return out
}

// LookRotation returns the rotation that points a node's -Z axis from eye toward target.
// When eye and target coincide, or up is parallel to the view direction, the identity
// rotation is returned.
func LookRotation(eye, target, up mgl32.Vec3) mgl32.Quat {
	forward := target.Sub(eye)
	if forward.Len() < degenerateEpsilon {
		return mgl32.QuatIdent()
	}
	z := forward.Normalize().Mul(-1)
	x := up.Cross(z)
	if x.Len() < degenerateEpsilon {
		return mgl32.QuatIdent()
	}
	x = x.Normalize()
	y := z.Cross(x)
	rm := mgl32.Mat4FromCols(x.Vec4(0), y.Vec4(0), z.Vec4(0), mgl32.Vec4{0, 0, 0, 1})
	return mgl32.Mat4ToQuat(rm).Normalize()
}
