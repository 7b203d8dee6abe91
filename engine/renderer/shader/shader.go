package shader

import (
	"fmt"
	"slices"
	"strings"
)

// Stage is a bit set of shader stages.
type Stage uint8

const (
	StageVertex Stage = 1 << iota
	StageFragment
	StageCompute
)

// ResourceType classifies a declared @group/@binding variable.
type ResourceType uint8

const (
	ResourceUniform ResourceType = iota
	ResourceReadOnlyStorage
	ResourceStorage
	ResourceSampler
	ResourceComparisonSampler
	ResourceTexture
	ResourceDepthTexture
	ResourceStorageTexture
)

func (t ResourceType) String() string {
	switch t {
	case ResourceUniform:
		return "uniform"
	case ResourceReadOnlyStorage:
		return "storage"
	case ResourceStorage:
		return "storage_rw"
	case ResourceSampler:
		return "sampler"
	case ResourceComparisonSampler:
		return "sampler_comparison"
	case ResourceTexture:
		return "texture"
	case ResourceDepthTexture:
		return "texture_depth"
	case ResourceStorageTexture:
		return "texture_storage"
	default:
		return "unknown"
	}
}

// IsBuffer reports whether the resource is backed by a buffer.
func (t ResourceType) IsBuffer() bool {
	return t == ResourceUniform || t == ResourceReadOnlyStorage || t == ResourceStorage
}

// TextureDim is the view dimension of a texture binding.
type TextureDim uint8

const (
	Dim2D TextureDim = iota
	Dim1D
	Dim2DArray
	Dim3D
	DimCube
	DimCubeArray
)

// SampleType is the component type a texture binding samples.
type SampleType uint8

const (
	SampleFloat SampleType = iota
	SampleSint
	SampleUint
	SampleDepth
)

// StorageAccess is the access mode of a storage texture binding.
type StorageAccess uint8

const (
	AccessWrite StorageAccess = iota
	AccessRead
	AccessReadWrite
)

// Resource is one declared binding.
type Resource struct {
	Group      uint32
	Binding    uint32
	Name       string
	Type       ResourceType
	Visibility Stage

	// Size is the minimum binding size of buffer resources, zero when it cannot be resolved.
	Size uint64

	Dim          TextureDim
	SampleType   SampleType
	Multisampled bool

	// TexelFormat is the WGSL texel format of a storage texture, e.g. "rgba8unorm".
	TexelFormat string
	Access      StorageAccess
}

// VertexInput is one @location field of a vertex input struct.
type VertexInput struct {
	Location   int
	Components int
	Name       string
}

// Reflection is what the engine needs to know about a shader to build its pipeline and bind groups.
type Reflection struct {
	VertexEntry   string
	FragmentEntry string
	ComputeEntry  string
	// WorkgroupSize is the @workgroup_size of the compute entry point, [1, 1, 1] when absent.
	WorkgroupSize [3]uint32
	Inputs        []VertexInput
	// Groups holds the declared resources of each bind group, sorted by binding.
	Groups map[uint32][]Resource
}

// Reflect parses the vertex and fragment WGSL sources. The two may be the same module;
// resources declared by both are merged and made visible to both stages.
//
// Parameters:
//   - vertex: the WGSL source holding the vertex entry point
//   - fragment: the WGSL source holding the fragment entry point, empty to reuse vertex
//
// Returns:
//   - Reflection: the merged reflection
func Reflect(vertex, fragment string) Reflection {
	if fragment == "" {
		fragment = vertex
	}
	r := Reflection{
		VertexEntry:   parseEntryPoint(vertex, StageVertex),
		FragmentEntry: parseEntryPoint(fragment, StageFragment),
		Inputs:        parseVertexInputs(vertex),
		Groups:        make(map[uint32][]Resource),
	}

	merge := func(source string, stage Stage) {
		for _, res := range parseResources(source, stage) {
			list := r.Groups[res.Group]
			i := slices.IndexFunc(list, func(o Resource) bool { return o.Binding == res.Binding })
			if i >= 0 {
				list[i].Visibility |= stage
				continue
			}
			r.Groups[res.Group] = append(list, res)
		}
	}
	merge(vertex, StageVertex)
	if fragment != vertex {
		merge(fragment, StageFragment)
	} else {
		for g := range r.Groups {
			for i := range r.Groups[g] {
				r.Groups[g][i].Visibility |= StageFragment
			}
		}
	}
	for g := range r.Groups {
		slices.SortFunc(r.Groups[g], func(a, b Resource) int { return int(a.Binding) - int(b.Binding) })
	}
	return r
}

// ReflectCompute parses a compute WGSL source. Every resource is visible to the compute stage only.
//
// Parameters:
//   - source: the WGSL source holding the compute entry point
//
// Returns:
//   - Reflection: the reflection, with no vertex inputs
func ReflectCompute(source string) Reflection {
	r := Reflection{
		ComputeEntry:  parseEntryPoint(source, StageCompute),
		WorkgroupSize: parseWorkgroupSize(source),
		Groups:        make(map[uint32][]Resource),
	}
	for _, res := range parseResources(source, StageCompute) {
		r.Groups[res.Group] = append(r.Groups[res.Group], res)
	}
	for g := range r.Groups {
		slices.SortFunc(r.Groups[g], func(a, b Resource) int { return int(a.Binding) - int(b.Binding) })
	}
	return r
}

// IsCompute reports whether the reflection came from ReflectCompute.
func (r Reflection) IsCompute() bool {
	return r.ComputeEntry != ""
}

// Group returns the resources declared in group g, sorted by binding.
func (r Reflection) Group(g uint32) []Resource {
	return r.Groups[g]
}

// GroupCount returns one past the highest declared group index.
func (r Reflection) GroupCount() uint32 {
	var n uint32
	for g := range r.Groups {
		n = max(n, g+1)
	}
	return n
}

// VertexLayout returns the component count per vertex attribute location, the form a
// shader record stores it in.
func (r Reflection) VertexLayout() [8]int {
	var out [8]int
	for _, in := range r.Inputs {
		if in.Location >= 0 && in.Location < len(out) {
			out[in.Location] = in.Components
		}
	}
	return out
}

// Signature is a stable description of a group's layout. Bind groups built for one
// signature are valid for every pipeline whose group has the same signature.
func (r Reflection) Signature(g uint32) string {
	var sb strings.Builder
	for _, res := range r.Groups[g] {
		fmt.Fprintf(&sb, "%d:%s:%d:%d:%d:%t:%s:%d;",
			res.Binding, res.Type, res.Visibility, res.Dim, res.SampleType, res.Multisampled, res.TexelFormat, res.Access)
	}
	return sb.String()
}
