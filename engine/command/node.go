package command

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-scene/engine/component"
	"github.com/go-gl/mathgl/mgl32"
)

// Create makes a record under a handle the control side allocated.
type Create struct {
	Handle component.Handle
	Type   component.Type
	Name   string
}

func (c Create) Kind() string { return "create" }

func (c Create) Execute(t *Target) error {
	rec, err := t.Store.CreateWith(c.Handle, c.Type)
	if err != nil {
		return err
	}
	rec.SetName(c.Name)
	return nil
}

// Destroy removes a record. Nodes are unlinked from the hierarchy first; with Subtree set
// their descendants are destroyed too.
type Destroy struct {
	Handle  component.Handle
	Subtree bool
}

func (c Destroy) Kind() string { return "destroy" }

func (c Destroy) Execute(t *Target) error {
	rec, ok := t.Store.Get(c.Handle)
	if !ok {
		return fmt.Errorf("%w: handle %d", component.ErrNotFound, c.Handle)
	}
	if t.Active != nil {
		switch c.Handle {
		case t.Active.Scene:
			t.Active.Scene = 0
		case t.Active.Camera:
			t.Active.Camera = 0
		case t.Active.RootPass:
			t.Active.RootPass = 0
		}
	}
	if rec.Type().IsNode() {
		return t.Tree.Remove(c.Handle, c.Subtree)
	}
	return t.Store.Destroy(c.Handle)
}

// SetPosition sets a node's local position.
type SetPosition struct {
	Handle component.Handle
	Value  mgl32.Vec3
}

func (c SetPosition) Kind() string { return "set_position" }

func (c SetPosition) Execute(t *Target) error { return t.Tree.SetPosition(c.Handle, c.Value) }

// SetRotation sets a node's local rotation.
type SetRotation struct {
	Handle component.Handle
	Value  mgl32.Quat
}

func (c SetRotation) Kind() string { return "set_rotation" }

func (c SetRotation) Execute(t *Target) error { return t.Tree.SetRotation(c.Handle, c.Value) }

// SetScale sets a node's local scale.
type SetScale struct {
	Handle component.Handle
	Value  mgl32.Vec3
}

func (c SetScale) Kind() string { return "set_scale" }

func (c SetScale) Execute(t *Target) error { return t.Tree.SetScale(c.Handle, c.Value) }

// SetTRS sets all three local components at once.
type SetTRS struct {
	Handle   component.Handle
	Position mgl32.Vec3
	Rotation mgl32.Quat
	Scale    mgl32.Vec3
}

func (c SetTRS) Kind() string { return "set_trs" }

func (c SetTRS) Execute(t *Target) error {
	return t.Tree.SetTRS(c.Handle, c.Position, c.Rotation, c.Scale)
}

// SetWorldMatrix places a node in world space under its current parent.
type SetWorldMatrix struct {
	Handle component.Handle
	Matrix mgl32.Mat4
}

func (c SetWorldMatrix) Kind() string { return "set_world_matrix" }

func (c SetWorldMatrix) Execute(t *Target) error { return t.Tree.SetWorldMatrix(c.Handle, c.Matrix) }

// LookAt turns a node toward a world-space point.
type LookAt struct {
	Handle component.Handle
	Target mgl32.Vec3
	Up     mgl32.Vec3
}

func (c LookAt) Kind() string { return "look_at" }

func (c LookAt) Execute(t *Target) error { return t.Tree.LookAt(c.Handle, c.Target, c.Up) }

// AddChild attaches Child under Parent.
type AddChild struct {
	Parent component.Handle
	Child  component.Handle
}

func (c AddChild) Kind() string { return "add_child" }

func (c AddChild) Execute(t *Target) error { return t.Tree.AddChild(c.Parent, c.Child) }

// RemoveChild detaches Child from Parent.
type RemoveChild struct {
	Parent component.Handle
	Child  component.Handle
}

func (c RemoveChild) Kind() string { return "remove_child" }

func (c RemoveChild) Execute(t *Target) error { return t.Tree.RemoveChild(c.Parent, c.Child) }

// SetMesh assigns a mesh's geometry and material, regrouping it in its scene.
type SetMesh struct {
	Mesh     component.Handle
	Geometry component.Handle
	Material component.Handle
}

func (c SetMesh) Kind() string { return "set_mesh" }

func (c SetMesh) Execute(t *Target) error {
	if c.Geometry != 0 {
		if _, err := t.Store.Geometry(c.Geometry); err != nil {
			return err
		}
	}
	if c.Material != 0 {
		if _, err := t.Store.Material(c.Material); err != nil {
			return err
		}
	}
	return t.Scenes.UpdateMesh(c.Mesh, c.Geometry, c.Material)
}

// SetCamera replaces a camera's projection parameters.
type SetCamera struct {
	Camera component.Handle
	Params component.CameraParams
}

func (c SetCamera) Kind() string { return "set_camera" }

func (c SetCamera) Execute(t *Target) error {
	cam, err := t.Store.Camera(c.Camera)
	if err != nil {
		return err
	}
	cam.Params = c.Params
	return nil
}

// SetLight replaces a light's description.
type SetLight struct {
	Light component.Handle
	Desc  component.LightDesc
}

func (c SetLight) Kind() string { return "set_light" }

func (c SetLight) Execute(t *Target) error {
	l, err := t.Store.Light(c.Light)
	if err != nil {
		return err
	}
	l.Desc = c.Desc
	return nil
}

// SetText replaces a label's content and layout.
type SetText struct {
	Text            component.Handle
	Value           string
	FontPath        string
	Color           [4]float32
	ControlPoints   [2]float32
	VerticalSpacing float32
}

func (c SetText) Kind() string { return "set_text" }

func (c SetText) Execute(t *Target) error {
	rec, err := t.Store.Text(c.Text)
	if err != nil {
		return err
	}
	rec.Text = c.Value
	rec.FontPath = c.FontPath
	rec.Color = c.Color
	rec.ControlPoints = c.ControlPoints
	rec.VerticalSpacing = c.VerticalSpacing
	return nil
}
