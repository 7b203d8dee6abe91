package scene

import (
	"cmp"
	"fmt"
	"runtime"
	"slices"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-scene/common"
	"github.com/Carmen-Shannon/oxy-scene/engine/component"
	"github.com/Carmen-Shannon/oxy-scene/engine/transform"
	"go.uber.org/zap"
)

// InstanceStride is the size in bytes of one packed instance: the model matrix followed
// by the normal matrix, both column-major mat4x4<f32>.
const InstanceStride = 128

// Index keeps each scene's primitive groups and light set in step with the hierarchy.
//
// Index is driven from the render goroutine. RefreshStalePrimitiveGroups fans work out to
// a worker pool but returns only after every task has finished.
type Index interface {
	transform.SceneTracker

	// RegisterMesh adds mesh to the group of its (material, geometry) pair in scene.
	//
	// Parameters:
	//   - scene: the scene the mesh belongs to
	//   - mesh: the mesh to add
	//
	// Returns:
	//   - error: component.ErrNotFound or component.ErrTypeMismatch for bad handles
	RegisterMesh(scene, mesh component.Handle) error

	// UnregisterMesh removes mesh from its group in scene, deleting the group when it empties.
	UnregisterMesh(scene, mesh component.Handle) error

	// UpdateMesh reassigns a mesh's geometry and material, moving it between groups.
	UpdateMesh(mesh, geometry, material component.Handle) error

	// MarkPrimitiveStale flags the group holding mesh so its instance data is rebuilt.
	MarkPrimitiveStale(scene, mesh component.Handle) error

	// RefreshStalePrimitiveGroups rebuilds the instance data of every stale group in scene.
	//
	// Returns:
	//   - int: the number of groups rebuilt
	RefreshStalePrimitiveGroups(scene component.Handle) int

	// Primitives returns the meshes drawn with the given pair, in insertion order.
	Primitives(scene, material, geometry component.Handle) []component.Handle

	// NumPrimitives returns the number of meshes drawn with the given pair.
	NumPrimitives(scene, material, geometry component.Handle) int

	// Groups returns the groups of scene ordered by material, then geometry.
	Groups(scene component.Handle) []*component.PrimitiveGroup

	// Lights returns the lights of scene in handle order.
	Lights(scene component.Handle) []component.Handle
}

type index struct {
	store  component.Store
	logger *zap.Logger

	// pool runs the instance data rebuild of each stale group. Workers persist across
	// frames; a WaitGroup is the per-frame barrier.
	pool    worker.DynamicWorkerPool
	workers int
}

var _ Index = &index{}

// NewIndex creates an Index over the records of store.
//
// Parameters:
//   - store: the component store holding scenes, meshes and lights
//   - options: variadic list of IndexBuilderOption functions
//
// Returns:
//   - Index: the new index
func NewIndex(store component.Store, options ...IndexBuilderOption) Index {
	if store == nil {
		panic("scene: NewIndex requires a non-nil Store")
	}
	i := &index{
		store:   store,
		logger:  zap.NewNop(),
		workers: max(runtime.NumCPU()-1, 1),
	}
	for _, opt := range options {
		opt(i)
	}
	// Created after options so WithWorkers can override the default.
	i.pool = worker.NewDynamicWorkerPool(i.workers, 256, 1*time.Second)
	return i
}

func keyOf(m *component.Mesh) (component.PrimitiveKey, bool) {
	if m.Material == 0 || m.Geometry == 0 {
		return component.PrimitiveKey{}, false
	}
	return component.PrimitiveKey{Material: m.Material, Geometry: m.Geometry}, true
}

func (i *index) RegisterMesh(scene, mesh component.Handle) error {
	sc, err := i.store.Scene(scene)
	if err != nil {
		return err
	}
	m, err := i.store.Mesh(mesh)
	if err != nil {
		return err
	}
	key, ok := keyOf(m)
	if !ok {
		return nil
	}
	g := sc.Primitives[key]
	if g == nil {
		g = component.NewPrimitiveGroup(key)
		sc.Primitives[key] = g
	}
	if g.Add(mesh) {
		g.Stale = true
	}
	return nil
}

func (i *index) UnregisterMesh(scene, mesh component.Handle) error {
	sc, err := i.store.Scene(scene)
	if err != nil {
		return err
	}
	m, err := i.store.Mesh(mesh)
	if err != nil {
		return err
	}
	key, ok := keyOf(m)
	if !ok {
		return nil
	}
	i.removeFromGroup(sc, key, mesh)
	return nil
}

func (i *index) removeFromGroup(sc *component.Scene, key component.PrimitiveKey, mesh component.Handle) {
	g := sc.Primitives[key]
	if g == nil || !g.Remove(mesh) {
		return
	}
	if g.Len() == 0 {
		delete(sc.Primitives, key)
		return
	}
	g.Stale = true
}

func (i *index) UpdateMesh(mesh, geometry, material component.Handle) error {
	m, err := i.store.Mesh(mesh)
	if err != nil {
		return err
	}
	if m.Scene != 0 {
		if err := i.UnregisterMesh(m.Scene, mesh); err != nil {
			return err
		}
	}
	m.Geometry = geometry
	m.Material = material
	if m.Scene != 0 {
		return i.RegisterMesh(m.Scene, mesh)
	}
	return nil
}

func (i *index) MarkPrimitiveStale(scene, mesh component.Handle) error {
	sc, err := i.store.Scene(scene)
	if err != nil {
		return err
	}
	m, err := i.store.Mesh(mesh)
	if err != nil {
		return err
	}
	key, ok := keyOf(m)
	if !ok {
		return nil
	}
	g := sc.Primitives[key]
	if g == nil || !g.Has(mesh) {
		return fmt.Errorf("%w: mesh %d is not in a group of scene %d", component.ErrNotFound, mesh, scene)
	}
	g.Stale = true
	return nil
}

func (i *index) RefreshStalePrimitiveGroups(scene component.Handle) int {
	sc, err := i.store.Scene(scene)
	if err != nil {
		return 0
	}

	var wg sync.WaitGroup
	taskID := 0
	for _, g := range sc.Primitives {
		if !g.Stale {
			continue
		}
		wg.Add(1)
		group := g
		id := taskID
		taskID++
		i.pool.SubmitTask(worker.Task{
			ID: id,
			Do: func() (any, error) {
				defer wg.Done()
				i.packInstances(group)
				return nil, nil
			},
		})
	}
	wg.Wait()
	return taskID
}

// packInstances writes the model and normal matrix of every member into the group's
// instance block. It only reads the store, so groups can be packed concurrently.
func (i *index) packInstances(g *component.PrimitiveGroup) {
	meshes := g.Meshes()
	need := len(meshes) * InstanceStride
	if cap(g.InstanceData) < need {
		g.InstanceData = make([]byte, need)
	}
	g.InstanceData = g.InstanceData[:need]
	for n, h := range meshes {
		off := n * InstanceStride
		m, err := i.store.Mesh(h)
		if err != nil {
			clear(g.InstanceData[off : off+InstanceStride])
			continue
		}
		common.PutMat4(g.InstanceData[off:], m.World)
		common.PutMat4(g.InstanceData[off+64:], common.NormalMatrix(m.World))
	}
	g.Generation++
	g.Stale = false
}

func (i *index) Primitives(scene, material, geometry component.Handle) []component.Handle {
	sc, err := i.store.Scene(scene)
	if err != nil {
		return nil
	}
	g := sc.Primitives[component.PrimitiveKey{Material: material, Geometry: geometry}]
	if g == nil {
		return nil
	}
	return slices.Clone(g.Meshes())
}

func (i *index) NumPrimitives(scene, material, geometry component.Handle) int {
	sc, err := i.store.Scene(scene)
	if err != nil {
		return 0
	}
	g := sc.Primitives[component.PrimitiveKey{Material: material, Geometry: geometry}]
	if g == nil {
		return 0
	}
	return g.Len()
}

func (i *index) Groups(scene component.Handle) []*component.PrimitiveGroup {
	sc, err := i.store.Scene(scene)
	if err != nil {
		return nil
	}
	groups := make([]*component.PrimitiveGroup, 0, len(sc.Primitives))
	for _, g := range sc.Primitives {
		groups = append(groups, g)
	}
	slices.SortFunc(groups, func(a, b *component.PrimitiveGroup) int {
		return cmp.Or(cmp.Compare(a.Key.Material, b.Key.Material), cmp.Compare(a.Key.Geometry, b.Key.Geometry))
	})
	return groups
}

func (i *index) Lights(scene component.Handle) []component.Handle {
	sc, err := i.store.Scene(scene)
	if err != nil {
		return nil
	}
	out := make([]component.Handle, 0, len(sc.Lights))
	for h := range sc.Lights {
		out = append(out, h)
	}
	slices.Sort(out)
	return out
}

// walk visits root and its descendants, parents first.
func (i *index) walk(root component.Handle, fn func(component.Component)) {
	c, ok := i.store.Get(root)
	if !ok {
		return
	}
	fn(c)
	n, err := i.store.Node(root)
	if err != nil {
		return
	}
	for _, ch := range n.Children {
		i.walk(ch, fn)
	}
}

func (i *index) AddSubgraph(scene, root component.Handle) {
	sc, err := i.store.Scene(scene)
	if err != nil {
		i.logger.Warn("scene: add subgraph to missing scene", zap.Uint64("scene", uint64(scene)), zap.Error(err))
		return
	}
	i.walk(root, func(c component.Component) {
		switch c.Type() {
		case component.TypeMesh:
			if err := i.RegisterMesh(scene, c.Handle()); err != nil {
				i.logger.Warn("scene: register mesh", zap.Uint64("handle", uint64(c.Handle())), zap.Error(err))
			}
		case component.TypeLight:
			sc.Lights[c.Handle()] = struct{}{}
		}
	})
}

func (i *index) RemoveSubgraph(scene, root component.Handle) {
	sc, err := i.store.Scene(scene)
	if err != nil {
		return
	}
	i.walk(root, func(c component.Component) {
		switch c.Type() {
		case component.TypeMesh:
			if m, err := i.store.Mesh(c.Handle()); err == nil {
				if key, ok := keyOf(m); ok {
					i.removeFromGroup(sc, key, c.Handle())
				}
			}
		case component.TypeLight:
			delete(sc.Lights, c.Handle())
		}
	})
}

func (i *index) WorldChanged(scene, node component.Handle) {
	c, ok := i.store.Get(node)
	if !ok || c.Type() != component.TypeMesh {
		return
	}
	// meshes without a full pair are not grouped
	_ = i.MarkPrimitiveStale(scene, node)
}
