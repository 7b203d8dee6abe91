package control

import (
	"fmt"
	"slices"

	"github.com/Carmen-Shannon/oxy-scene/common"
	"github.com/Carmen-Shannon/oxy-scene/engine/camera"
	"github.com/Carmen-Shannon/oxy-scene/engine/command"
	"github.com/Carmen-Shannon/oxy-scene/engine/component"
	"github.com/Carmen-Shannon/oxy-scene/engine/transform"
	"github.com/go-gl/mathgl/mgl32"
)

func (c *client) SetPosition(h component.Handle, p mgl32.Vec3) error {
	n, err := c.node(h)
	if err != nil {
		return err
	}
	n.position = p
	c.push(command.SetPosition{Handle: h, Value: p})
	return nil
}

func (c *client) SetRotation(h component.Handle, q mgl32.Quat) error {
	n, err := c.node(h)
	if err != nil {
		return err
	}
	n.rotation = q.Normalize()
	c.push(command.SetRotation{Handle: h, Value: n.rotation})
	return nil
}

func (c *client) SetScale(h component.Handle, s mgl32.Vec3) error {
	n, err := c.node(h)
	if err != nil {
		return err
	}
	n.scale = s
	c.push(command.SetScale{Handle: h, Value: s})
	return nil
}

func (c *client) LookAt(h component.Handle, target, up mgl32.Vec3) error {
	n, err := c.node(h)
	if err != nil {
		return err
	}
	// The render side resolves the rotation against the parent's world matrix; the
	// snapshot can only follow it for roots.
	if n.parent == 0 {
		n.rotation = common.LookRotation(n.position, target, up)
	}
	c.push(command.LookAt{Handle: h, Target: target, Up: up})
	return nil
}

func (c *client) Orbit(cam component.Handle, o camera.Orbit) error {
	if err := c.expect(cam, component.TypeCamera); err != nil {
		return err
	}
	if err := c.SetPosition(cam, o.Eye()); err != nil {
		return err
	}
	return c.LookAt(cam, o.Target(), mgl32.Vec3{0, 1, 0})
}

func (c *client) Position(h component.Handle) (mgl32.Vec3, error) {
	n, err := c.node(h)
	if err != nil {
		return mgl32.Vec3{}, err
	}
	return n.position, nil
}

func (c *client) Rotation(h component.Handle) (mgl32.Quat, error) {
	n, err := c.node(h)
	if err != nil {
		return mgl32.QuatIdent(), err
	}
	return n.rotation, nil
}

func (c *client) Scale(h component.Handle) (mgl32.Vec3, error) {
	n, err := c.node(h)
	if err != nil {
		return mgl32.Vec3{}, err
	}
	return n.scale, nil
}

func (c *client) Parent(h component.Handle) (component.Handle, error) {
	n, err := c.node(h)
	if err != nil {
		return 0, err
	}
	return n.parent, nil
}

func (c *client) Children(h component.Handle) ([]component.Handle, error) {
	n, err := c.node(h)
	if err != nil {
		return nil, err
	}
	return slices.Clone(n.children), nil
}

// isAncestor reports whether a is b or one of b's ancestors.
func (c *client) isAncestor(a, b component.Handle) bool {
	for cur := b; cur != 0; {
		if cur == a {
			return true
		}
		n, ok := c.nodes[cur]
		if !ok {
			return false
		}
		cur = n.parent
	}
	return false
}

func (c *client) unlink(h component.Handle, n *node) {
	if p, ok := c.nodes[n.parent]; ok {
		p.children = slices.DeleteFunc(p.children, func(x component.Handle) bool { return x == h })
	}
	n.parent = 0
}

func (c *client) AddChild(parent, child component.Handle) error {
	p, err := c.node(parent)
	if err != nil {
		return err
	}
	ch, err := c.node(child)
	if err != nil {
		return err
	}
	if ch.typ == component.TypeScene {
		return fmt.Errorf("%w: scene %d under %d", transform.ErrSceneNotRoot, child, parent)
	}
	if c.isAncestor(child, parent) {
		return fmt.Errorf("%w: %d under %d", transform.ErrCycle, child, parent)
	}
	if ch.parent == parent {
		return nil
	}
	c.unlink(child, ch)
	ch.parent = parent
	p.children = append(p.children, child)
	c.push(command.AddChild{Parent: parent, Child: child})
	return nil
}

func (c *client) RemoveChild(parent, child component.Handle) error {
	if _, err := c.node(parent); err != nil {
		return err
	}
	ch, err := c.node(child)
	if err != nil {
		return err
	}
	if ch.parent != parent {
		return nil
	}
	c.unlink(child, ch)
	c.push(command.RemoveChild{Parent: parent, Child: child})
	return nil
}

func (c *client) Destroy(h component.Handle, subtree bool) error {
	t, ok := c.types[h]
	if !ok {
		return fmt.Errorf("%w: handle %d", component.ErrNotFound, h)
	}
	if n, isNode := c.nodes[h]; isNode {
		c.unlink(h, n)
		for _, child := range n.children {
			if subtree {
				c.forget(child, true)
			} else if cn, ok := c.nodes[child]; ok {
				cn.parent = 0
			}
		}
	}
	c.forget(h, false)
	if _, ok := c.types[c.mainScene]; !ok {
		c.mainScene = 0
	}
	if _, ok := c.types[c.mainCamera]; !ok {
		c.mainCamera = 0
	}
	if t == component.TypeShader {
		for b, sh := range c.builtins {
			if sh == h {
				delete(c.builtins, b)
			}
		}
	}
	c.push(command.Destroy{Handle: h, Subtree: subtree})
	return nil
}

// forget drops the snapshot of h and, when recursive, of its descendants.
func (c *client) forget(h component.Handle, recursive bool) {
	if n, ok := c.nodes[h]; ok && recursive {
		for _, child := range n.children {
			c.forget(child, true)
		}
	}
	delete(c.types, h)
	delete(c.nodes, h)
	delete(c.textures, h)
	delete(c.buffers, h)
}

func (c *client) mesh(h component.Handle) (*node, error) {
	if err := c.expect(h, component.TypeMesh); err != nil {
		return nil, err
	}
	return c.nodes[h], nil
}

func (c *client) SetMaterial(mesh, mat component.Handle) error {
	n, err := c.mesh(mesh)
	if err != nil {
		return err
	}
	if err := c.expectOptional(mat, component.TypeMaterial); err != nil {
		return err
	}
	n.material = mat
	c.push(command.SetMesh{Mesh: mesh, Geometry: n.geometry, Material: mat})
	return nil
}

func (c *client) SetGeometry(mesh, geo component.Handle) error {
	n, err := c.mesh(mesh)
	if err != nil {
		return err
	}
	if err := c.expectOptional(geo, component.TypeGeometry); err != nil {
		return err
	}
	n.geometry = geo
	c.push(command.SetMesh{Mesh: mesh, Geometry: geo, Material: n.material})
	return nil
}

func (c *client) SetMaterialBinding(mat component.Handle, location int, b component.Binding) error {
	if err := c.expect(mat, component.TypeMaterial); err != nil {
		return err
	}
	if location < 0 || location >= component.MaxMaterialBindings {
		return fmt.Errorf("%w: binding location %d", command.ErrInvalidArgument, location)
	}
	if err := c.checkBinding(b); err != nil {
		return err
	}
	c.push(command.SetMaterialBinding{Material: mat, Location: location, Binding: b})
	return nil
}

func (c *client) SetCameraParams(cam component.Handle, params component.CameraParams) error {
	if err := c.expect(cam, component.TypeCamera); err != nil {
		return err
	}
	c.push(command.SetCamera{Camera: cam, Params: params})
	return nil
}

func (c *client) SetLight(light component.Handle, desc component.LightDesc) error {
	if err := c.expect(light, component.TypeLight); err != nil {
		return err
	}
	c.push(command.SetLight{Light: light, Desc: desc})
	return nil
}

func (c *client) WriteTexture(tex component.Handle, region component.TextureWriteDesc, data []byte) error {
	if err := c.expect(tex, component.TypeTexture); err != nil {
		return err
	}
	t := c.textures[tex]
	if !t.known {
		return fmt.Errorf("%w: texture %d is loaded from a file and has no known size", component.ErrWriteOutOfBounds, tex)
	}
	if err := component.ValidateTextureWrite(t.desc, region, len(data)); err != nil {
		return err
	}
	c.push(command.NewWriteTexture(tex, region, data))
	return nil
}

func (c *client) WriteBuffer(buf component.Handle, offset uint64, data []byte) error {
	if err := c.expect(buf, component.TypeBuffer); err != nil {
		return err
	}
	if err := component.ValidateBufferWrite(c.buffers[buf], offset, data); err != nil {
		return fmt.Errorf("%w: buffer %d holds %d bytes, write covers [%d, %d)",
			err, buf, c.buffers[buf], offset, offset+uint64(len(data)))
	}
	c.push(command.NewWriteBuffer(buf, offset, data))
	return nil
}

func (c *client) GeometryAttribute(geo component.Handle, location, components int, data []float32) error {
	if err := c.expect(geo, component.TypeGeometry); err != nil {
		return err
	}
	if location < 0 || location >= component.MaxVertexAttributes {
		return fmt.Errorf("%w: attribute location %d", command.ErrInvalidArgument, location)
	}
	if components < 1 || components > 4 {
		return fmt.Errorf("%w: %d components per vertex", command.ErrInvalidArgument, components)
	}
	c.push(command.NewSetGeometryAttribute(geo, location, components, data))
	return nil
}

func (c *client) GeometryIndices(geo component.Handle, indices []uint32) error {
	if err := c.expect(geo, component.TypeGeometry); err != nil {
		return err
	}
	c.push(command.NewSetGeometryIndices(geo, indices))
	return nil
}

func (c *client) Background(scene component.Handle, col common.Color) error {
	if err := c.expect(scene, component.TypeScene); err != nil {
		return err
	}
	c.push(command.SetBackground{Scene: scene, Color: col})
	return nil
}

func (c *client) Ambient(scene component.Handle, col [3]float32) error {
	if err := c.expect(scene, component.TypeScene); err != nil {
		return err
	}
	c.push(command.SetAmbient{Scene: scene, Color: col})
	return nil
}

func (c *client) Fog(scene component.Handle, fog component.Fog) error {
	if err := c.expect(scene, component.TypeScene); err != nil {
		return err
	}
	c.push(command.SetFog{Scene: scene, Fog: fog})
	return nil
}

func (c *client) SetMainScene(scene component.Handle) error {
	if err := c.expectOptional(scene, component.TypeScene); err != nil {
		return err
	}
	c.mainScene = scene
	c.push(command.SetActiveScene{Scene: scene})
	return nil
}

func (c *client) SetMainCamera(cam component.Handle) error {
	if err := c.expectOptional(cam, component.TypeCamera); err != nil {
		return err
	}
	c.mainCamera = cam
	if c.mainScene != 0 {
		c.push(command.SetMainCamera{Scene: c.mainScene, Camera: cam})
	}
	c.push(command.SetActiveCamera{Camera: cam})
	return nil
}

func (c *client) SetRootPass(pass component.Handle) error {
	if err := c.expectOptional(pass, component.TypePass); err != nil {
		return err
	}
	c.push(command.SetRootPass{Pass: pass})
	return nil
}

func (c *client) MainScene() component.Handle { return c.mainScene }

func (c *client) MainCamera() component.Handle { return c.mainCamera }
