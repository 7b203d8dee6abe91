package assets

import (
	"fmt"
	"math"
)

// Vertex attribute locations used by primitive geometry, matching the built-in materials.
const (
	LocationPosition = 0
	LocationNormal   = 1
	LocationUV       = 2
)

// MeshData is non-interleaved vertex data ready for geometry attribute commands.
type MeshData struct {
	Positions []float32
	Normals   []float32
	UVs       []float32
	Indices   []uint32
}

// VertexCount returns the number of vertices.
func (m MeshData) VertexCount() int { return len(m.Positions) / 3 }

// Primitive builds one of the named primitive shapes: "triangle", "plane", "cube" or "sphere".
//
// Parameters:
//   - name: the shape
//   - size: the edge length, or the diameter for spheres
//
// Returns:
//   - MeshData: the shape centered on the origin
//   - error: an error for unknown names
func Primitive(name string, size float32) (MeshData, error) {
	if size <= 0 {
		size = 1
	}
	switch name {
	case "triangle":
		return Triangle(size), nil
	case "plane":
		return Plane(size), nil
	case "cube":
		return Cube(size), nil
	case "sphere":
		return Sphere(size/2, 24, 16), nil
	default:
		return MeshData{}, fmt.Errorf("unknown primitive %q", name)
	}
}

// Triangle returns a single triangle in the XY plane facing +Z.
func Triangle(size float32) MeshData {
	h := size / 2
	return MeshData{
		Positions: []float32{-h, -h, 0, h, -h, 0, 0, h, 0},
		Normals:   []float32{0, 0, 1, 0, 0, 1, 0, 0, 1},
		UVs:       []float32{0, 1, 1, 1, 0.5, 0},
		Indices:   []uint32{0, 1, 2},
	}
}

// Plane returns a square in the XZ plane facing +Y.
func Plane(size float32) MeshData {
	h := size / 2
	return MeshData{
		Positions: []float32{-h, 0, h, h, 0, h, h, 0, -h, -h, 0, -h},
		Normals:   []float32{0, 1, 0, 0, 1, 0, 0, 1, 0, 0, 1, 0},
		UVs:       []float32{0, 1, 1, 1, 1, 0, 0, 0},
		Indices:   []uint32{0, 1, 2, 0, 2, 3},
	}
}

// Cube returns an axis-aligned cube with four vertices per face so normals stay flat.
func Cube(size float32) MeshData {
	h := size / 2
	faces := []struct {
		n, u, v [3]float32
	}{
		{[3]float32{0, 0, 1}, [3]float32{1, 0, 0}, [3]float32{0, 1, 0}},
		{[3]float32{0, 0, -1}, [3]float32{-1, 0, 0}, [3]float32{0, 1, 0}},
		{[3]float32{1, 0, 0}, [3]float32{0, 0, -1}, [3]float32{0, 1, 0}},
		{[3]float32{-1, 0, 0}, [3]float32{0, 0, 1}, [3]float32{0, 1, 0}},
		{[3]float32{0, 1, 0}, [3]float32{1, 0, 0}, [3]float32{0, 0, -1}},
		{[3]float32{0, -1, 0}, [3]float32{1, 0, 0}, [3]float32{0, 0, 1}},
	}
	corners := [4][2]float32{{-1, -1}, {1, -1}, {1, 1}, {-1, 1}}
	var m MeshData
	for i, f := range faces {
		for _, c := range corners {
			for k := 0; k < 3; k++ {
				m.Positions = append(m.Positions, h*(f.n[k]+c[0]*f.u[k]+c[1]*f.v[k]))
			}
			m.Normals = append(m.Normals, f.n[:]...)
			m.UVs = append(m.UVs, (c[0]+1)/2, 1-(c[1]+1)/2)
		}
		base := uint32(i * 4)
		m.Indices = append(m.Indices, base, base+1, base+2, base, base+2, base+3)
	}
	return m
}

// Sphere returns a UV sphere.
func Sphere(radius float32, segments, rings int) MeshData {
	segments, rings = max(segments, 3), max(rings, 2)
	var m MeshData
	for r := 0; r <= rings; r++ {
		phi := math.Pi * float64(r) / float64(rings)
		for s := 0; s <= segments; s++ {
			theta := 2 * math.Pi * float64(s) / float64(segments)
			n := [3]float32{
				float32(math.Sin(phi) * math.Sin(theta)),
				float32(math.Cos(phi)),
				float32(math.Sin(phi) * math.Cos(theta)),
			}
			m.Positions = append(m.Positions, n[0]*radius, n[1]*radius, n[2]*radius)
			m.Normals = append(m.Normals, n[:]...)
			m.UVs = append(m.UVs, float32(s)/float32(segments), float32(r)/float32(rings))
		}
	}
	stride := uint32(segments + 1)
	for r := uint32(0); r < uint32(rings); r++ {
		for s := uint32(0); s < uint32(segments); s++ {
			a := r*stride + s
			b := a + stride
			m.Indices = append(m.Indices, a, b, a+1, a+1, b, b+1)
		}
	}
	return m
}
