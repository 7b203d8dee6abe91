package transform

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-scene/common"
	"github.com/Carmen-Shannon/oxy-scene/engine/component"
	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"
)

var (
	// ErrCycle is returned when a parent/child link would make a node its own ancestor.
	ErrCycle = fmt.Errorf("%w: hierarchy cycle", component.ErrStructural)

	// ErrSceneNotRoot is returned when a scene is attached under another node.
	ErrSceneNotRoot = fmt.Errorf("%w: scenes are hierarchy roots", component.ErrStructural)

	// ErrNotChild is returned by RemoveChild when the link does not exist.
	ErrNotChild = fmt.Errorf("%w: not a child", component.ErrNotFound)
)

// SceneTracker is told when content enters or leaves a scene and when a world matrix
// inside a scene changes. scene.Index implements it.
type SceneTracker interface {
	AddSubgraph(scene, root component.Handle)
	RemoveSubgraph(scene, root component.Handle)
	WorldChanged(scene, node component.Handle)
}

// Hierarchy maintains parent/child links, staleness and cached matrices of the nodes in a Store.
type Hierarchy interface {
	// MarkStale raises a node to at least level and raises every ancestor to at least
	// StaleDescendents.
	//
	// Parameters:
	//   - h: the node to mark
	//   - level: the minimum staleness the node must have afterwards
	//
	// Returns:
	//   - error: component.ErrNotFound or component.ErrTypeMismatch
	MarkStale(h component.Handle, level component.Staleness) error

	SetPosition(h component.Handle, p mgl32.Vec3) error
	SetRotation(h component.Handle, q mgl32.Quat) error
	SetScale(h component.Handle, s mgl32.Vec3) error
	SetTRS(h component.Handle, p mgl32.Vec3, q mgl32.Quat, s mgl32.Vec3) error

	// SetWorldMatrix sets a node's local TRS so that its world matrix becomes m under the
	// current parent.
	SetWorldMatrix(h component.Handle, m mgl32.Mat4) error

	// LookAt rotates a node so its -Z axis faces target in world space, keeping its world
	// position and scale.
	LookAt(h component.Handle, target, up mgl32.Vec3) error

	// AddChild attaches child under parent, detaching it from any previous parent.
	//
	// Parameters:
	//   - parent: the new parent node
	//   - child: the node to attach
	//
	// Returns:
	//   - error: ErrCycle if parent is child or a descendant of it, in which case nothing changes
	AddChild(parent, child component.Handle) error

	// RemoveChild detaches child from parent, making it a root.
	RemoveChild(parent, child component.Handle) error

	// Remove detaches a node from the hierarchy and destroys it. When subtree is false its
	// children become roots, otherwise every descendant is destroyed too.
	Remove(h component.Handle, subtree bool) error

	// RebuildMatrices brings the subtree under root up to date and returns the number of
	// world matrices recomputed.
	RebuildMatrices(root component.Handle) int

	// RebuildDirty rebuilds every root that has been marked since the last call.
	RebuildDirty() int

	// World returns the node's world matrix, computing it along the parent chain without
	// touching the caches when any of them is stale.
	World(h component.Handle) (mgl32.Mat4, error)

	// IsAncestor reports whether a is a strict ancestor of b.
	IsAncestor(a, b component.Handle) bool

	// SceneOf returns the scene a node belongs to, or zero.
	SceneOf(h component.Handle) component.Handle
}

type hierarchy struct {
	store   component.Store
	tracker SceneTracker
	logger  *zap.Logger

	dirtyRoots map[component.Handle]struct{}
}

var _ Hierarchy = &hierarchy{}

// NewHierarchy creates a Hierarchy over the nodes of store.
//
// Parameters:
//   - store: the component store holding the nodes
//   - options: variadic list of HierarchyBuilderOption functions
//
// Returns:
//   - Hierarchy: the new hierarchy
func NewHierarchy(store component.Store, options ...HierarchyBuilderOption) Hierarchy {
	h := &hierarchy{
		store:      store,
		logger:     zap.NewNop(),
		dirtyRoots: make(map[component.Handle]struct{}),
	}
	for _, opt := range options {
		opt(h)
	}
	return h
}

func raise(n *component.Transform, level component.Staleness) {
	if n.Stale < level {
		n.Stale = level
	}
}

func (h *hierarchy) MarkStale(handle component.Handle, level component.Staleness) error {
	n, err := h.store.Node(handle)
	if err != nil {
		return err
	}
	h.mark(n, level)
	return nil
}

func (h *hierarchy) mark(n *component.Transform, level component.Staleness) {
	raise(n, level)
	for n.Parent != 0 {
		p, err := h.store.Node(n.Parent)
		if err != nil {
			h.logger.Warn("transform: dangling parent, detaching", zap.Uint64("handle", uint64(n.Handle())), zap.Uint64("parent", uint64(n.Parent)))
			n.Parent = 0
			raise(n, component.StaleWorld)
			break
		}
		if p.Stale >= component.StaleDescendents {
			return
		}
		p.Stale = component.StaleDescendents
		n = p
	}
	h.dirtyRoots[n.Handle()] = struct{}{}
}

func (h *hierarchy) SetPosition(handle component.Handle, p mgl32.Vec3) error {
	n, err := h.store.Node(handle)
	if err != nil {
		return err
	}
	n.Position = p
	h.mark(n, component.StaleLocal)
	return nil
}

func (h *hierarchy) SetRotation(handle component.Handle, q mgl32.Quat) error {
	n, err := h.store.Node(handle)
	if err != nil {
		return err
	}
	n.Rotation = q.Normalize()
	h.mark(n, component.StaleLocal)
	return nil
}

func (h *hierarchy) SetScale(handle component.Handle, s mgl32.Vec3) error {
	n, err := h.store.Node(handle)
	if err != nil {
		return err
	}
	n.Scale = s
	h.mark(n, component.StaleLocal)
	return nil
}

func (h *hierarchy) SetTRS(handle component.Handle, p mgl32.Vec3, q mgl32.Quat, s mgl32.Vec3) error {
	n, err := h.store.Node(handle)
	if err != nil {
		return err
	}
	n.Position, n.Rotation, n.Scale = p, q.Normalize(), s
	h.mark(n, component.StaleLocal)
	return nil
}

func (h *hierarchy) parentWorld(n *component.Transform) (mgl32.Mat4, error) {
	if n.Parent == 0 {
		return mgl32.Ident4(), nil
	}
	return h.World(n.Parent)
}

func (h *hierarchy) SetWorldMatrix(handle component.Handle, m mgl32.Mat4) error {
	n, err := h.store.Node(handle)
	if err != nil {
		return err
	}
	pw, err := h.parentWorld(n)
	if err != nil {
		return err
	}
	local := pw.Inv().Mul4(m)
	n.Position, n.Rotation, n.Scale = common.DecomposeTRS(local)
	h.mark(n, component.StaleLocal)
	return nil
}

func (h *hierarchy) LookAt(handle component.Handle, target, up mgl32.Vec3) error {
	w, err := h.World(handle)
	if err != nil {
		return err
	}
	eye, _, scale := common.DecomposeTRS(w)
	rot := common.LookRotation(eye, target, up)
	return h.SetWorldMatrix(handle, common.ComposeTRS(eye, rot, scale))
}

func (h *hierarchy) IsAncestor(a, b component.Handle) bool {
	n, err := h.store.Node(b)
	if err != nil {
		return false
	}
	for n.Parent != 0 {
		if n.Parent == a {
			return true
		}
		if n, err = h.store.Node(n.Parent); err != nil {
			return false
		}
	}
	return false
}

func (h *hierarchy) SceneOf(handle component.Handle) component.Handle {
	n, err := h.store.Node(handle)
	if err != nil {
		return 0
	}
	return sceneOf(n)
}

func sceneOf(n *component.Transform) component.Handle {
	if n.Type() == component.TypeScene {
		return n.Handle()
	}
	return n.Scene
}

func (h *hierarchy) AddChild(parent, child component.Handle) error {
	if parent == child {
		return fmt.Errorf("%w: node %d under itself", ErrCycle, child)
	}
	p, err := h.store.Node(parent)
	if err != nil {
		return err
	}
	c, err := h.store.Node(child)
	if err != nil {
		return err
	}
	if c.Type() == component.TypeScene {
		return fmt.Errorf("%w: scene %d under node %d", ErrSceneNotRoot, child, parent)
	}
	if h.IsAncestor(child, parent) {
		return fmt.Errorf("%w: node %d is an ancestor of %d", ErrCycle, child, parent)
	}
	if c.Parent == parent {
		return nil
	}
	if err := h.detach(c); err != nil {
		return err
	}
	c.Parent = parent
	p.Children = append(p.Children, child)
	h.moveScene(c, sceneOf(p))
	h.mark(c, component.StaleWorld)
	return nil
}

func (h *hierarchy) RemoveChild(parent, child component.Handle) error {
	c, err := h.store.Node(child)
	if err != nil {
		return err
	}
	if c.Parent != parent {
		return fmt.Errorf("%w: node %d under %d", ErrNotChild, child, parent)
	}
	if err := h.detach(c); err != nil {
		return err
	}
	h.moveScene(c, 0)
	h.mark(c, component.StaleWorld)
	return nil
}

// detach unlinks n from its parent's child list without touching scene membership.
func (h *hierarchy) detach(n *component.Transform) error {
	if n.Parent == 0 {
		return nil
	}
	p, err := h.store.Node(n.Parent)
	if err != nil {
		n.Parent = 0
		if errors.Is(err, component.ErrNotFound) {
			return nil
		}
		return err
	}
	if i := p.ChildIndex(n.Handle()); i >= 0 {
		p.Children = append(p.Children[:i], p.Children[i+1:]...)
	}
	n.Parent = 0
	return nil
}

// moveScene switches the subtree under n to scene, notifying the tracker.
func (h *hierarchy) moveScene(n *component.Transform, scene component.Handle) {
	old := n.Scene
	if old == scene {
		return
	}
	if old != 0 && h.tracker != nil {
		h.tracker.RemoveSubgraph(old, n.Handle())
	}
	h.walk(n, func(d *component.Transform) { d.Scene = scene })
	if scene != 0 && h.tracker != nil {
		h.tracker.AddSubgraph(scene, n.Handle())
	}
}

// walk visits n and its descendants depth first, parents before children.
func (h *hierarchy) walk(n *component.Transform, fn func(*component.Transform)) {
	fn(n)
	for _, ch := range n.Children {
		c, err := h.store.Node(ch)
		if err != nil {
			continue
		}
		h.walk(c, fn)
	}
}

func (h *hierarchy) Remove(handle component.Handle, subtree bool) error {
	n, err := h.store.Node(handle)
	if err != nil {
		return err
	}
	if n.Destroyed() {
		return nil
	}
	if n.Type() == component.TypeScene {
		if h.tracker != nil {
			for _, ch := range n.Children {
				h.tracker.RemoveSubgraph(handle, ch)
			}
		}
	} else if n.Scene != 0 && h.tracker != nil {
		h.tracker.RemoveSubgraph(n.Scene, handle)
	}
	if err := h.detach(n); err != nil {
		return err
	}

	children := n.Children
	n.Children = nil
	for _, ch := range children {
		c, err := h.store.Node(ch)
		if err != nil {
			continue
		}
		if subtree {
			h.walk(c, func(d *component.Transform) {
				d.Scene = 0
				_ = h.store.Destroy(d.Handle())
			})
			continue
		}
		c.Parent = 0
		h.walk(c, func(d *component.Transform) { d.Scene = 0 })
		h.mark(c, component.StaleWorld)
	}
	delete(h.dirtyRoots, handle)
	n.Scene = 0
	return h.store.Destroy(handle)
}

func (h *hierarchy) RebuildMatrices(root component.Handle) int {
	n, err := h.store.Node(root)
	if err != nil {
		return 0
	}
	pw, err := h.parentWorld(n)
	if err != nil {
		pw = mgl32.Ident4()
	}
	return h.rebuild(n, pw)
}

func (h *hierarchy) rebuild(n *component.Transform, parentWorld mgl32.Mat4) int {
	count := 0
	switch n.Stale {
	case component.StaleLocal:
		n.Local = common.ComposeTRS(n.Position, n.Rotation, n.Scale)
		fallthrough
	case component.StaleWorld:
		n.World = parentWorld.Mul4(n.Local)
		count++
		for _, ch := range n.Children {
			if c, err := h.store.Node(ch); err == nil {
				raise(c, component.StaleWorld)
			}
		}
		if s := sceneOf(n); s != 0 && h.tracker != nil {
			h.tracker.WorldChanged(s, n.Handle())
		}
	}
	n.Stale = component.StaleNone
	for _, ch := range n.Children {
		c, err := h.store.Node(ch)
		if err != nil || c.Stale == component.StaleNone {
			continue
		}
		count += h.rebuild(c, n.World)
	}
	return count
}

func (h *hierarchy) RebuildDirty() int {
	count := 0
	for root := range h.dirtyRoots {
		delete(h.dirtyRoots, root)
		n, err := h.store.Node(root)
		if err != nil || n.Parent != 0 || n.Stale == component.StaleNone {
			continue
		}
		count += h.rebuild(n, mgl32.Ident4())
	}
	return count
}

func (h *hierarchy) World(handle component.Handle) (mgl32.Mat4, error) {
	n, err := h.store.Node(handle)
	if err != nil {
		return mgl32.Ident4(), err
	}
	chain := []*component.Transform{n}
	for cur := n; cur.Parent != 0; {
		p, err := h.store.Node(cur.Parent)
		if err != nil {
			return mgl32.Ident4(), err
		}
		chain = append(chain, p)
		cur = p
	}

	world := mgl32.Ident4()
	valid := true
	for i := len(chain) - 1; i >= 0; i-- {
		c := chain[i]
		switch {
		case valid && c.Stale <= component.StaleDescendents:
			world = c.World
		case c.Stale == component.StaleLocal:
			valid = false
			world = world.Mul4(common.ComposeTRS(c.Position, c.Rotation, c.Scale))
		default:
			valid = false
			world = world.Mul4(c.Local)
		}
	}
	return world, nil
}
