package camera

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-scene/common"
	"github.com/Carmen-Shannon/oxy-scene/engine/component"
	"github.com/go-gl/mathgl/mgl32"
)

// Matrices is everything a render pass needs from a camera.
type Matrices struct {
	View     mgl32.Mat4
	Proj     mgl32.Mat4
	ViewProj mgl32.Mat4
	Eye      mgl32.Vec3
}

// Projection builds the projection matrix of a camera for the WebGPU depth range [0, 1].
//
// Parameters:
//   - p: the camera parameters
//   - aspect: the target width divided by its height
//
// Returns:
//   - mgl32.Mat4: the projection matrix
func Projection(p component.CameraParams, aspect float32) mgl32.Mat4 {
	if aspect <= 0 {
		aspect = 1
	}
	near := max(p.Near, 1e-4)
	far := max(p.Far, near+1e-3)
	if p.Kind == component.CameraOrthographic {
		halfH := p.Size / 2
		halfW := halfH * aspect
		return common.Orthographic(-halfW, halfW, -halfH, halfH, near, far)
	}
	return common.Perspective(p.FovRadians, aspect, near, far)
}

// View returns the view matrix of a camera node, the inverse of its world matrix.
// It panics when the camera's matrices have not been rebuilt since it last moved.
func View(cam *component.Camera) mgl32.Mat4 {
	if cam.Stale != component.StaleNone {
		panic(fmt.Sprintf("camera: view of camera %d read while %s", cam.Handle(), cam.Stale))
	}
	return cam.World.Inv()
}

// Resolve computes the matrices of cam for a target with the given aspect ratio. A nil
// camera sits at the origin looking down -Z with the default parameters.
//
// Parameters:
//   - cam: the camera record, or nil
//   - aspect: the target width divided by its height
//
// Returns:
//   - Matrices: the resolved matrices
func Resolve(cam *component.Camera, aspect float32) Matrices {
	params := component.DefaultCameraParams()
	view := mgl32.Ident4()
	var eye mgl32.Vec3
	if cam != nil {
		params = cam.Params
		view = View(cam)
		eye = cam.World.Col(3).Vec3()
	}
	proj := Projection(params, aspect)
	return Matrices{
		View:     view,
		Proj:     proj,
		ViewProj: proj.Mul4(view),
		Eye:      eye,
	}
}
