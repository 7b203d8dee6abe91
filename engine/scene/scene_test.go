package scene

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/Carmen-Shannon/oxy-scene/engine/component"
	"github.com/Carmen-Shannon/oxy-scene/engine/transform"
	"github.com/go-gl/mathgl/mgl32"
)

type fixture struct {
	store component.Store
	index Index
	tree  transform.Hierarchy
	scene component.Handle
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s := component.NewStore()
	idx := NewIndex(s, WithWorkers(2))
	return &fixture{
		store: s,
		index: idx,
		tree:  transform.NewHierarchy(s, transform.WithSceneTracker(idx)),
		scene: s.Create(component.TypeScene).Handle(),
	}
}

func (f *fixture) mesh(t *testing.T, geo, mat component.Handle) component.Handle {
	t.Helper()
	m := f.store.Create(component.TypeMesh).(*component.Mesh)
	m.Geometry, m.Material = geo, mat
	return m.Handle()
}

func TestBucketFollowsMaterialChange(t *testing.T) {
	f := newFixture(t)
	matA := f.store.Create(component.TypeMaterial).Handle()
	matB := f.store.Create(component.TypeMaterial).Handle()
	geo := f.store.Create(component.TypeGeometry).Handle()
	m := f.mesh(t, geo, matA)

	if err := f.tree.AddChild(f.scene, m); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := f.index.Primitives(f.scene, matA, geo); len(got) != 1 || got[0] != m {
		t.Fatalf("expected (A,G) = {%d}, got %v", m, got)
	}

	if err := f.index.UpdateMesh(m, geo, matB); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n := f.index.NumPrimitives(f.scene, matA, geo); n != 0 {
		t.Errorf("expected (A,G) empty, got %d", n)
	}
	if got := f.index.Primitives(f.scene, matB, geo); len(got) != 1 || got[0] != m {
		t.Errorf("expected (B,G) = {%d}, got %v", m, got)
	}
	if len(f.index.Groups(f.scene)) != 1 {
		t.Errorf("expected empty group deleted, got %d groups", len(f.index.Groups(f.scene)))
	}
}

func TestRegisterIsIdempotent(t *testing.T) {
	f := newFixture(t)
	mat := f.store.Create(component.TypeMaterial).Handle()
	geo := f.store.Create(component.TypeGeometry).Handle()
	m := f.mesh(t, geo, mat)
	_ = f.tree.AddChild(f.scene, m)

	if err := f.index.RegisterMesh(f.scene, m); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n := f.index.NumPrimitives(f.scene, mat, geo); n != 1 {
		t.Errorf("expected 1 primitive, got %d", n)
	}
}

func TestIncompleteMeshIsNotBucketed(t *testing.T) {
	f := newFixture(t)
	geo := f.store.Create(component.TypeGeometry).Handle()
	m := f.mesh(t, geo, 0)
	_ = f.tree.AddChild(f.scene, m)
	if len(f.index.Groups(f.scene)) != 0 {
		t.Error("expected no groups for a mesh without material")
	}
}

func TestSubgraphMovesBetweenScenes(t *testing.T) {
	f := newFixture(t)
	other := f.store.Create(component.TypeScene).Handle()
	mat := f.store.Create(component.TypeMaterial).Handle()
	geo := f.store.Create(component.TypeGeometry).Handle()

	group := f.store.Create(component.TypeTransform).Handle()
	m1 := f.mesh(t, geo, mat)
	m2 := f.mesh(t, geo, mat)
	lamp := f.store.Create(component.TypeLight).Handle()
	for _, c := range []component.Handle{m1, m2, lamp} {
		_ = f.tree.AddChild(group, c)
	}

	_ = f.tree.AddChild(f.scene, group)
	if n := f.index.NumPrimitives(f.scene, mat, geo); n != 2 {
		t.Fatalf("expected 2 primitives, got %d", n)
	}
	if got := f.index.Lights(f.scene); len(got) != 1 || got[0] != lamp {
		t.Fatalf("expected lights [%d], got %v", lamp, got)
	}

	_ = f.tree.AddChild(other, group)
	if n := f.index.NumPrimitives(f.scene, mat, geo); n != 0 {
		t.Errorf("expected old scene emptied, got %d", n)
	}
	if len(f.index.Lights(f.scene)) != 0 {
		t.Error("expected light removed from old scene")
	}
	if n := f.index.NumPrimitives(other, mat, geo); n != 2 {
		t.Errorf("expected 2 primitives in new scene, got %d", n)
	}

	_ = f.tree.Remove(m1, false)
	if got := f.index.Primitives(other, mat, geo); len(got) != 1 || got[0] != m2 {
		t.Errorf("expected only %d after remove, got %v", m2, got)
	}
}

func TestRefreshPacksWorldMatrices(t *testing.T) {
	f := newFixture(t)
	mat := f.store.Create(component.TypeMaterial).Handle()
	geo := f.store.Create(component.TypeGeometry).Handle()
	m := f.mesh(t, geo, mat)
	_ = f.tree.AddChild(f.scene, m)
	_ = f.tree.SetPosition(m, mgl32.Vec3{1, 2, 3})

	f.tree.RebuildDirty()
	if n := f.index.RefreshStalePrimitiveGroups(f.scene); n != 1 {
		t.Fatalf("expected 1 group rebuilt, got %d", n)
	}
	g := f.index.Groups(f.scene)[0]
	if g.Stale {
		t.Error("expected group fresh after refresh")
	}
	if len(g.InstanceData) != InstanceStride {
		t.Fatalf("expected %d bytes, got %d", InstanceStride, len(g.InstanceData))
	}
	tx := math.Float32frombits(binary.LittleEndian.Uint32(g.InstanceData[48:]))
	ty := math.Float32frombits(binary.LittleEndian.Uint32(g.InstanceData[52:]))
	if tx != 1 || ty != 2 {
		t.Errorf("expected translation (1,2), got (%f,%f)", tx, ty)
	}
	gen := g.Generation

	if n := f.index.RefreshStalePrimitiveGroups(f.scene); n != 0 {
		t.Errorf("expected nothing to rebuild, got %d", n)
	}

	_ = f.tree.SetPosition(m, mgl32.Vec3{5, 0, 0})
	f.tree.RebuildDirty()
	if !g.Stale {
		t.Error("expected world change to mark the group stale")
	}
	f.index.RefreshStalePrimitiveGroups(f.scene)
	if g.Generation != gen+1 {
		t.Errorf("expected generation %d, got %d", gen+1, g.Generation)
	}
}

func TestRefreshManyGroups(t *testing.T) {
	f := newFixture(t)
	geo := f.store.Create(component.TypeGeometry).Handle()
	const groups = 40
	for range groups {
		mat := f.store.Create(component.TypeMaterial).Handle()
		for range 3 {
			_ = f.tree.AddChild(f.scene, f.mesh(t, geo, mat))
		}
	}
	f.tree.RebuildDirty()
	if n := f.index.RefreshStalePrimitiveGroups(f.scene); n != groups {
		t.Errorf("expected %d groups rebuilt, got %d", groups, n)
	}
	for _, g := range f.index.Groups(f.scene) {
		if g.Stale || len(g.InstanceData) != 3*InstanceStride {
			t.Errorf("group %v not packed: stale %v, %d bytes", g.Key, g.Stale, len(g.InstanceData))
		}
	}
}
