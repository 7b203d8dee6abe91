package component

import (
	"fmt"
	"sync/atomic"
)

// Handle identifies one component record for the lifetime of a session.
// Handles are never reused and are the only reference that may cross the
// control/render boundary. The zero Handle means "none".
type Handle uint64

// Type tags the kind of record a Handle names.
type Type uint8

const (
	TypeInvalid Type = iota
	TypeTransform
	TypeMesh
	TypeCamera
	TypeLight
	TypeScene
	TypeText
	TypeGeometry
	TypeShader
	TypeMaterial
	TypeTexture
	TypePass
	TypeBuffer
	TypeVideo
	TypeWebcam

	typeCount
)

var typeNames = [typeCount]string{
	TypeInvalid:   "invalid",
	TypeTransform: "transform",
	TypeMesh:      "mesh",
	TypeCamera:    "camera",
	TypeLight:     "light",
	TypeScene:     "scene",
	TypeText:      "text",
	TypeGeometry:  "geometry",
	TypeShader:    "shader",
	TypeMaterial:  "material",
	TypeTexture:   "texture",
	TypePass:      "pass",
	TypeBuffer:    "buffer",
	TypeVideo:     "video",
	TypeWebcam:    "webcam",
}

func (t Type) String() string {
	if t >= typeCount {
		return fmt.Sprintf("type(%d)", uint8(t))
	}
	return typeNames[t]
}

// IsNode reports whether records of this type embed a Transform and take part in the hierarchy.
func (t Type) IsNode() bool {
	switch t {
	case TypeTransform, TypeMesh, TypeCamera, TypeLight, TypeScene, TypeText:
		return true
	default:
		return false
	}
}

// HandleAllocator hands out process-unique handles. It is safe for concurrent use,
// which lets the control goroutine name records before the render goroutine creates them.
type HandleAllocator struct {
	next atomic.Uint64
}

// Next returns a fresh handle. It never returns zero.
func (a *HandleAllocator) Next() Handle {
	return Handle(a.next.Add(1))
}

// Observe raises the allocator so that h and everything below it will never be handed out.
func (a *HandleAllocator) Observe(h Handle) {
	for {
		cur := a.next.Load()
		if uint64(h) <= cur {
			return
		}
		if a.next.CompareAndSwap(cur, uint64(h)) {
			return
		}
	}
}
