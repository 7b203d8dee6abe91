package component

// PrimitiveKey identifies one batched draw bucket within a scene.
type PrimitiveKey struct {
	Material Handle
	Geometry Handle
}

// PrimitiveGroup is the set of meshes drawn with one (material, geometry) pair.
// Members keep insertion order so instance data is stable between rebuilds.
type PrimitiveGroup struct {
	Key PrimitiveKey

	meshes []Handle
	slot   map[Handle]int

	// Stale marks that InstanceData must be rebuilt before the next draw.
	Stale bool
	// InstanceData is the packed per-instance block, in Meshes order.
	InstanceData []byte
	// Generation is bumped every time InstanceData is rebuilt.
	Generation uint64
}

// NewPrimitiveGroup returns an empty, stale group.
func NewPrimitiveGroup(key PrimitiveKey) *PrimitiveGroup {
	return &PrimitiveGroup{Key: key, slot: make(map[Handle]int), Stale: true}
}

// Add appends mesh and reports whether it was not already present.
func (g *PrimitiveGroup) Add(mesh Handle) bool {
	if _, ok := g.slot[mesh]; ok {
		return false
	}
	g.slot[mesh] = len(g.meshes)
	g.meshes = append(g.meshes, mesh)
	return true
}

// Remove deletes mesh, preserving the order of the remaining members, and reports whether it was present.
func (g *PrimitiveGroup) Remove(mesh Handle) bool {
	i, ok := g.slot[mesh]
	if !ok {
		return false
	}
	delete(g.slot, mesh)
	copy(g.meshes[i:], g.meshes[i+1:])
	g.meshes = g.meshes[:len(g.meshes)-1]
	for j := i; j < len(g.meshes); j++ {
		g.slot[g.meshes[j]] = j
	}
	return true
}

// Has reports whether mesh is a member.
func (g *PrimitiveGroup) Has(mesh Handle) bool {
	_, ok := g.slot[mesh]
	return ok
}

// Meshes returns the members in insertion order. The slice must not be modified.
func (g *PrimitiveGroup) Meshes() []Handle { return g.meshes }

// Len returns the number of members.
func (g *PrimitiveGroup) Len() int { return len(g.meshes) }
