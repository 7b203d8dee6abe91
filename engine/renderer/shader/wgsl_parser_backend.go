package shader

import (
	"strconv"
	"strings"
)

// primitiveLayouts maps WGSL primitive, vector, matrix, and atomic type names
// to their byte size and alignment as WGSL defines them.
//
// Reference: https://www.w3.org/TR/WGSL/#alignment-and-size
var primitiveLayouts = map[string]typeLayout{
	// Scalars
	"f32":  {4, 4},
	"i32":  {4, 4},
	"u32":  {4, 4},
	"f16":  {2, 2},
	"bool": {4, 4},

	// Vectors – f32
	"vec2<f32>": {8, 8},
	"vec2f":     {8, 8},
	"vec3<f32>": {12, 16},
	"vec3f":     {12, 16},
	"vec4<f32>": {16, 16},
	"vec4f":     {16, 16},

	// Vectors – i32
	"vec2<i32>": {8, 8},
	"vec2i":     {8, 8},
	"vec3<i32>": {12, 16},
	"vec3i":     {12, 16},
	"vec4<i32>": {16, 16},
	"vec4i":     {16, 16},

	// Vectors – u32
	"vec2<u32>": {8, 8},
	"vec2u":     {8, 8},
	"vec3<u32>": {12, 16},
	"vec3u":     {12, 16},
	"vec4<u32>": {16, 16},
	"vec4u":     {16, 16},

	// Vectors – f16
	"vec2<f16>": {4, 4},
	"vec2h":     {4, 4},
	"vec4<f16>": {8, 8},
	"vec4h":     {8, 8},

	// Matrices – matCxR<f32>: C columns of vecR<f32>, stride = roundUp(align(vecR), size(vecR))
	"mat2x2<f32>": {16, 8},
	"mat2x3<f32>": {32, 16},
	"mat2x4<f32>": {32, 16},
	"mat3x2<f32>": {24, 8},
	"mat3x3<f32>": {48, 16},
	"mat3x4<f32>": {48, 16},
	"mat4x2<f32>": {32, 8},
	"mat4x3<f32>": {64, 16},
	"mat4x4<f32>": {64, 16},

	// Matrices, f32 shorthand aliases
	"mat2x2f": {16, 8},
	"mat2x3f": {32, 16},
	"mat2x4f": {32, 16},
	"mat3x2f": {24, 8},
	"mat3x3f": {48, 16},
	"mat3x4f": {48, 16},
	"mat4x2f": {32, 8},
	"mat4x3f": {64, 16},
	"mat4x4f": {64, 16},

	// Matrices, f16
	"mat2x2<f16>": {8, 4},
	"mat2x2h":     {8, 4},
	"mat2x3<f16>": {16, 8},
	"mat2x3h":     {16, 8},
	"mat2x4<f16>": {16, 8},
	"mat2x4h":     {16, 8},
	"mat3x2<f16>": {12, 4},
	"mat3x2h":     {12, 4},
	"mat3x3<f16>": {24, 8},
	"mat3x3h":     {24, 8},
	"mat3x4<f16>": {24, 8},
	"mat3x4h":     {24, 8},
	"mat4x2<f16>": {16, 4},
	"mat4x2h":     {16, 4},
	"mat4x3<f16>": {32, 8},
	"mat4x3h":     {32, 8},
	"mat4x4<f16>": {32, 8},
	"mat4x4h":     {32, 8},

	// Atomic types
	"atomic<u32>": {4, 4},
	"atomic<i32>": {4, 4},
}

// roundUpAlign rounds value up to the next multiple of a power-of-two alignment.
func roundUpAlign(alignment, value uint64) uint64 {
	if alignment == 0 {
		return value
	}
	return (value + alignment - 1) &^ (alignment - 1)
}

// arrayParts splits "array<T, N>" into T and N. sized is false for runtime-sized arrays.
func arrayParts(typeName string) (elem string, count uint64, sized, ok bool) {
	if !strings.HasPrefix(typeName, "array<") || !strings.HasSuffix(typeName, ">") {
		return "", 0, false, false
	}
	inner := typeName[len("array<") : len(typeName)-1]
	elem, n, sized := strings.Cut(inner, ",")
	elem = strings.TrimSpace(elem)
	if !sized {
		return elem, 0, false, true
	}
	count, err := strconv.ParseUint(strings.TrimSpace(n), 10, 64)
	return elem, count, true, err == nil
}

// resolveTypeLayout resolves a WGSL type name to its size and alignment from the primitive
// table and the struct layouts resolved so far. A runtime-sized array resolves to one
// element stride, the smallest buffer that can be bound to it.
//
// Parameters:
//   - typeName: the WGSL type name to resolve, e.g. "f32", "Frame", "array<Light, 8>"
//   - knownTypes: struct layouts resolved so far
//
// Returns:
//   - typeLayout: the resolved layout
//   - bool: false for unknown types
func resolveTypeLayout(typeName string, knownTypes map[string]typeLayout) (typeLayout, bool) {
	if layout, ok := primitiveLayouts[typeName]; ok {
		return layout, true
	}
	if layout, ok := knownTypes[typeName]; ok {
		return layout, true
	}

	elem, count, sized, ok := arrayParts(typeName)
	if !ok {
		return typeLayout{}, false
	}
	el, ok := resolveTypeLayout(elem, knownTypes)
	if !ok {
		return typeLayout{}, false
	}
	stride := roundUpAlign(el.align, el.size)
	if !sized {
		count = 1
	}
	return typeLayout{count * stride, el.align}, true
}

// computeStructLayout lays out a struct's fields at their aligned offsets and rounds the
// total up to the largest field alignment. A trailing runtime-sized array contributes one
// element. Builtin fields are not part of buffer memory and are skipped.
func computeStructLayout(ps parsedStruct, knownTypes map[string]typeLayout) (typeLayout, bool) {
	var offset uint64
	maxAlign := uint64(1)

	for _, field := range ps.fields {
		if field.isBuiltin {
			continue
		}
		fl, ok := resolveTypeLayout(field.typeName, knownTypes)
		if !ok {
			return typeLayout{}, false
		}
		offset = roundUpAlign(fl.align, offset) + fl.size
		maxAlign = max(maxAlign, fl.align)
	}

	return typeLayout{roundUpAlign(maxAlign, offset), maxAlign}, true
}

// computeStructSizes computes the byte size and alignment of all parsed WGSL structs.
// It resolves dependencies between structs iteratively, handling cases where one struct
// contains fields typed as another struct. Returns a map from struct name to layout.
//
// Parameters:
//   - structs: all parsed struct blocks from the WGSL source
//
// Returns:
//   - map[string]typeLayout: a map from struct name to computed layout
func computeStructSizes(structs []parsedStruct) map[string]typeLayout {
	resolved := make(map[string]typeLayout, len(structs))
	remaining := make([]parsedStruct, len(structs))
	copy(remaining, structs)

	for {
		progress := false
		next := remaining[:0]

		for _, ps := range remaining {
			if layout, ok := computeStructLayout(ps, resolved); ok {
				resolved[ps.name] = layout
				progress = true
			} else {
				next = append(next, ps)
			}
		}

		remaining = next
		if !progress || len(remaining) == 0 {
			break
		}
	}

	return resolved
}

// classifyResource determines the resource category (buffer, texture, sampler, storage
// texture) from the address space qualifier and type name of a declaration.
//
// Parameters:
//   - addressSpace: the address space qualifier (e.g. "uniform", "storage, read_write"), empty for handle types
//   - typeName: the WGSL type string (e.g. "Frame", "texture_2d<f32>", "sampler")
//
// Returns:
//   - Resource: a resource with its type and texture fields populated
func classifyResource(addressSpace, typeName string) Resource {
	var res Resource

	if addressSpace != "" {
		switch {
		case addressSpace == "uniform":
			res.Type = ResourceUniform
		case strings.HasPrefix(addressSpace, "storage"):
			if strings.Contains(addressSpace, "read_write") {
				res.Type = ResourceStorage
			} else {
				res.Type = ResourceReadOnlyStorage
			}
		}
		return res
	}

	switch {
	case typeName == "sampler":
		res.Type = ResourceSampler
	case typeName == "sampler_comparison":
		res.Type = ResourceComparisonSampler
	case strings.HasPrefix(typeName, "texture_storage_"):
		classifyStorageTexture(typeName, &res)
	case strings.HasPrefix(typeName, "texture_depth_"):
		res.Type = ResourceDepthTexture
		res.SampleType = SampleDepth
		if info, ok := wgslSampledTextureMap[typeName]; ok {
			res.Dim = info.dim
			res.Multisampled = info.multisampled
		}
	case strings.HasPrefix(typeName, "texture_"):
		res.Type = ResourceTexture
		base, param := splitTypeParams(typeName)
		if info, ok := wgslSampledTextureMap[base]; ok {
			res.Dim = info.dim
			res.Multisampled = info.multisampled
		}
		if st, ok := wgslSampleTypeMap[param]; ok {
			res.SampleType = st
		}
	}

	return res
}

// classifyStorageTexture parses a storage texture type (e.g. "texture_storage_2d<rgba8unorm, write>")
// and populates the storage texture fields on the resource
func classifyStorageTexture(typeName string, res *Resource) {
	res.Type = ResourceStorageTexture
	base, params := splitTypeParams(typeName)

	if dim, ok := wgslStorageTextureDimMap[base]; ok {
		res.Dim = dim
	}

	parts := strings.SplitN(params, ",", 2)
	if len(parts) >= 1 {
		res.TexelFormat = strings.TrimSpace(parts[0])
	}
	if len(parts) >= 2 {
		if access, ok := wgslStorageAccessMap[strings.TrimSpace(parts[1])]; ok {
			res.Access = access
		}
	}
}

// splitTypeParams splits a WGSL parameterized type into its base name and parameter string.
// For "texture_2d<f32>" returns ("texture_2d", "f32").
// For "texture_depth_2d" (no params) returns ("texture_depth_2d", "").
//
// Parameters:
//   - typeName: the WGSL type string to split
//
// Returns:
//   - base: the type name before the first angle bracket
//   - params: the content between angle brackets, or empty if none
func splitTypeParams(typeName string) (base string, params string) {
	before, after, ok := strings.Cut(typeName, "<")
	if !ok {
		return typeName, ""
	}
	base = before
	params = strings.TrimSuffix(after, ">")
	params = strings.TrimSpace(params)
	return base, params
}

// stripComments removes both single-line (//) and block (/* */) comments from WGSL source.
// Block comments may be nested in WGSL.
//
// Parameters:
//   - source: raw WGSL source string
//
// Returns:
//   - string: source with all comments removed
func stripComments(source string) string {
	return stripLineComments(stripBlockComments(source))
}

// stripLineComments removes single-line // comments from WGSL source so they
// do not interfere with struct and field parsing
//
// Parameters:
//   - source: raw WGSL source string
//
// Returns:
//   - string: source with line comments removed
func stripLineComments(source string) string {
	var sb strings.Builder
	lines := strings.SplitSeq(source, "\n")
	for line := range lines {
		if idx := strings.Index(line, "//"); idx >= 0 {
			line = line[:idx]
		}
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
	return sb.String()
}

// stripBlockComments removes block comments (/* ... */) from WGSL source,
// handling nested block comments as WGSL defines them
//
// Parameters:
//   - source: raw WGSL source string
//
// Returns:
//   - string: source with block comments removed
func stripBlockComments(source string) string {
	var sb strings.Builder
	sb.Grow(len(source))
	depth := 0
	i := 0
	for i < len(source) {
		if i+1 < len(source) {
			if source[i] == '/' && source[i+1] == '*' {
				depth++
				i += 2
				continue
			}
			if source[i] == '*' && source[i+1] == '/' {
				if depth > 0 {
					depth--
				}
				i += 2
				continue
			}
		}
		if depth == 0 {
			sb.WriteByte(source[i])
		}
		i++
	}
	return sb.String()
}

// isVertexInputStruct returns true if the struct is a pure vertex input, meaning
// it has at least one @location field and zero @builtin fields. This distinguishes
// vertex input structs from vertex output structs which mix @location with @builtin(position).
//
// Parameters:
//   - ps: the parsed struct to check
//
// Returns:
//   - bool: true if this is a vertex input struct
func isVertexInputStruct(ps parsedStruct) bool {
	hasLocation := false
	for _, f := range ps.fields {
		if f.isBuiltin {
			return false
		}
		if f.location >= 0 {
			hasLocation = true
		}
	}
	return hasLocation
}

// splitAtTopLevelCommas splits a string at commas that are not nested inside angle brackets.
// This correctly handles WGSL types like array<Light, 8> where the comma is part of
// the type syntax rather than a field separator.
//
// Parameters:
//   - s: the string to split (typically the body of a WGSL struct)
//
// Returns:
//   - []string: substrings between top-level commas
func splitAtTopLevelCommas(s string) []string {
	var parts []string
	depth := 0
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '<':
			depth++
		case '>':
			if depth > 0 {
				depth--
			}
		case ',':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	parts = append(parts, s[start:])
	return parts
}
