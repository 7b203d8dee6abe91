package component

import "github.com/go-gl/mathgl/mgl32"

// Staleness describes how much matrix work a node needs before its cached matrices
// may be read. Levels are ordered by severity; a node's level is only ever raised
// until the next rebuild resets it to StaleNone.
type Staleness uint8

const (
	// StaleNone means local and world matrices are valid as cached.
	StaleNone Staleness = iota
	// StaleDescendents means this node is valid but some descendant is not.
	StaleDescendents
	// StaleWorld means the world matrix of this node and all descendants must be recomputed.
	StaleWorld
	// StaleLocal means the local matrix must be rebuilt from position, rotation and scale,
	// which also forces world recomputation for this node and all descendants.
	StaleLocal
)

func (s Staleness) String() string {
	switch s {
	case StaleNone:
		return "none"
	case StaleDescendents:
		return "descendents"
	case StaleWorld:
		return "world"
	case StaleLocal:
		return "local"
	default:
		return "unknown"
	}
}

// Transform is a node of the spatial hierarchy.
//
// The fields are plain data. Parent/child links, staleness and scene membership are
// maintained by transform.Hierarchy; writing them directly bypasses propagation.
type Transform struct {
	Base

	Position mgl32.Vec3
	Rotation mgl32.Quat
	Scale    mgl32.Vec3

	// Local and World are the cached matrices. They are only valid when Stale is StaleNone
	// for this node and every ancestor.
	Local mgl32.Mat4
	World mgl32.Mat4

	Parent   Handle
	Children []Handle
	Stale    Staleness

	// Scene is the scene root this node is reachable from, or zero.
	Scene Handle
}

func (t *Transform) setDefaults() {
	t.Rotation = mgl32.QuatIdent()
	t.Scale = mgl32.Vec3{1, 1, 1}
	t.Local = mgl32.Ident4()
	t.World = mgl32.Ident4()
}

func (t *Transform) node() *Transform { return t }

// ChildIndex returns the position of child in the child list, or -1.
func (t *Transform) ChildIndex(child Handle) int {
	for i, c := range t.Children {
		if c == child {
			return i
		}
	}
	return -1
}
