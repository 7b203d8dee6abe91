package shader

import (
	"regexp"
	"slices"
	"strconv"
	"strings"
)

// wgslVertexComponents maps the float WGSL types a geometry stream can feed to their component count
var wgslVertexComponents = map[string]int{
	"f32":       1,
	"vec2f":     2,
	"vec2<f32>": 2,
	"vec3f":     3,
	"vec3<f32>": 3,
	"vec4f":     4,
	"vec4<f32>": 4,
}

// wgslSampledTextureMap maps WGSL sampled texture base names to their view dimension and multisampled flag
var wgslSampledTextureMap = map[string]struct {
	dim          TextureDim
	multisampled bool
}{
	"texture_1d":                    {Dim1D, false},
	"texture_2d":                    {Dim2D, false},
	"texture_2d_array":              {Dim2DArray, false},
	"texture_3d":                    {Dim3D, false},
	"texture_cube":                  {DimCube, false},
	"texture_cube_array":            {DimCubeArray, false},
	"texture_multisampled_2d":       {Dim2D, true},
	"texture_depth_2d":              {Dim2D, false},
	"texture_depth_2d_array":        {Dim2DArray, false},
	"texture_depth_cube":            {DimCube, false},
	"texture_depth_cube_array":      {DimCubeArray, false},
	"texture_depth_multisampled_2d": {Dim2D, true},
}

// wgslStorageTextureDimMap maps WGSL storage texture base names to their view dimension
var wgslStorageTextureDimMap = map[string]TextureDim{
	"texture_storage_1d":       Dim1D,
	"texture_storage_2d":       Dim2D,
	"texture_storage_2d_array": Dim2DArray,
	"texture_storage_3d":       Dim3D,
}

// wgslSampleTypeMap maps WGSL scalar type parameters to their texture sample type
var wgslSampleTypeMap = map[string]SampleType{
	"f32": SampleFloat,
	"i32": SampleSint,
	"u32": SampleUint,
}

// wgslStorageAccessMap maps WGSL access mode keywords to their storage texture access
var wgslStorageAccessMap = map[string]StorageAccess{
	"write":      AccessWrite,
	"read":       AccessRead,
	"read_write": AccessReadWrite,
}

var (
	// structBlockRegex matches struct declarations and captures the name and body
	structBlockRegex = regexp.MustCompile(`struct\s+(\w+)\s*\{([^}]*)\}`)

	// locationRegex matches @location(N) attributes
	locationRegex = regexp.MustCompile(`@location\((\d+)\)`)

	// builtinRegex matches @builtin(...) attributes
	builtinRegex = regexp.MustCompile(`@builtin\(\w+\)`)

	// fieldRegex matches a struct field line: optional attributes, name, colon, type.
	// The type capture (.+) is greedy to handle parameterized types like array<T, N>.
	fieldRegex = regexp.MustCompile(`(?:(?:@\w+\([^)]*\)\s*)*)*\s*(\w+)\s*:\s*(.+)`)

	// vertexEntryRegex matches @vertex functions and captures the entry point name
	vertexEntryRegex = regexp.MustCompile(`(?s)@vertex\b.*?\bfn\s+(\w+)`)

	// fragmentEntryRegex matches @fragment functions and captures the entry point name
	fragmentEntryRegex = regexp.MustCompile(`(?s)@fragment\b.*?\bfn\s+(\w+)`)

	// computeEntryRegex matches @compute functions and captures the entry point name
	computeEntryRegex = regexp.MustCompile(`(?s)@compute\b.*?\bfn\s+(\w+)`)

	// workgroupSizeRegex captures 1-3 integer dimensions from @workgroup_size(x[, y[, z]])
	workgroupSizeRegex = regexp.MustCompile(`@workgroup_size\(\s*(\d+)\s*(?:,\s*(\d+)\s*(?:,\s*(\d+)\s*)?)?\)`)

	// bindGroupDeclRegex captures group, binding, optional address space, variable name, and type
	// from declarations like: @group(0) @binding(0) var<uniform> frame: Frame;
	// or handle types: @group(1) @binding(0) var albedo: texture_2d<f32>;
	bindGroupDeclRegex = regexp.MustCompile(`@group\((\d+)\)\s*@binding\((\d+)\)\s*var(?:<([^>]*)>)?\s+(\w+)\s*:\s*([^;]+?)\s*;`)
)

// parseVertexInputs extracts the @location fields of the first pure vertex input struct
// in the source, sorted by location. Fields whose type is not a float scalar or vector
// are skipped since geometry streams are float32 only.
//
// Parameters:
//   - source: the raw WGSL source code string
//
// Returns:
//   - []VertexInput: the vertex inputs, or nil if the shader has no vertex input struct
func parseVertexInputs(source string) []VertexInput {
	structs := parseStructBlocks(stripComments(source))
	for _, ps := range structs {
		if !isVertexInputStruct(ps) {
			continue
		}
		var inputs []VertexInput
		for _, f := range ps.fields {
			n, ok := wgslVertexComponents[f.typeName]
			if !ok || f.location < 0 {
				continue
			}
			inputs = append(inputs, VertexInput{Location: f.location, Components: n, Name: f.name})
		}
		slices.SortFunc(inputs, func(a, b VertexInput) int { return a.Location - b.Location })
		return inputs
	}
	return nil
}

// parseResources extracts all @group(N) @binding(M) resource declarations from WGSL source.
//
// Parameters:
//   - source: the raw WGSL source code string
//   - visibility: the stage the source is compiled for
//
// Returns:
//   - []Resource: the declared resources in source order
func parseResources(source string, visibility Stage) []Resource {
	cleaned := stripComments(source)

	// Struct sizes give buffer bindings a minimum size so fallback buffers can be created.
	structSizes := computeStructSizes(parseStructBlocks(cleaned))

	matches := bindGroupDeclRegex.FindAllStringSubmatch(cleaned, -1)
	out := make([]Resource, 0, len(matches))
	for _, match := range matches {
		group, _ := strconv.Atoi(match[1])
		binding, _ := strconv.Atoi(match[2])
		addressSpace := strings.TrimSpace(match[3])
		typeName := strings.TrimSpace(match[5])

		res := classifyResource(addressSpace, typeName)
		res.Group = uint32(group)
		res.Binding = uint32(binding)
		res.Name = strings.TrimSpace(match[4])
		res.Visibility = visibility

		if res.Type.IsBuffer() {
			if layout, ok := resolveTypeLayout(typeName, structSizes); ok {
				res.Size = layout.size
			}
		}
		out = append(out, res)
	}
	return out
}

// parseEntryPoint extracts the entry point function name for the given stage from WGSL
// source. Returns an empty string if no matching entry point annotation is found.
func parseEntryPoint(source string, stage Stage) string {
	re := vertexEntryRegex
	switch stage {
	case StageFragment:
		re = fragmentEntryRegex
	case StageCompute:
		re = computeEntryRegex
	}
	if match := re.FindStringSubmatch(stripComments(source)); match != nil {
		return match[1]
	}
	return ""
}

// parseWorkgroupSize extracts the @workgroup_size of a compute shader. Omitted
// dimensions are 1, and so is every dimension when there is no annotation.
//
// Parameters:
//   - source: the raw WGSL source code string
//
// Returns:
//   - [3]uint32: the workgroup size as [x, y, z]
func parseWorkgroupSize(source string) [3]uint32 {
	result := [3]uint32{1, 1, 1}
	match := workgroupSizeRegex.FindStringSubmatch(stripComments(source))
	if match == nil {
		return result
	}
	for i := range result {
		if match[i+1] == "" {
			continue
		}
		if v, err := strconv.ParseUint(match[i+1], 10, 32); err == nil && v > 0 {
			result[i] = uint32(v)
		}
	}
	return result
}

// parseStructBlocks finds all struct { ... } blocks in the cleaned WGSL source
// and parses their fields including @location and @builtin attributes
//
// Parameters:
//   - source: WGSL source with comments already stripped
//
// Returns:
//   - []parsedStruct: all struct blocks found in the source
func parseStructBlocks(source string) []parsedStruct {
	matches := structBlockRegex.FindAllStringSubmatch(source, -1)
	structs := make([]parsedStruct, 0, len(matches))

	for _, match := range matches {
		structs = append(structs, parsedStruct{
			name:   match[1],
			fields: parseStructFields(match[2]),
		})
	}

	return structs
}

// parseStructFields parses the body of a struct block into individual fields,
// extracting @location and @builtin attributes along with the field name and type
func parseStructFields(body string) []parsedField {
	lines := splitAtTopLevelCommas(body)
	fields := make([]parsedField, 0, len(lines))

	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		field := parsedField{location: -1}
		if builtinRegex.MatchString(line) {
			field.isBuiltin = true
		}
		if locMatch := locationRegex.FindStringSubmatch(line); locMatch != nil {
			if loc, err := strconv.Atoi(locMatch[1]); err == nil {
				field.location = loc
			}
		}

		fm := fieldRegex.FindStringSubmatch(line)
		if fm == nil {
			continue
		}
		field.name = fm[1]
		field.typeName = strings.TrimSpace(fm[2])
		fields = append(fields, field)
	}

	return fields
}
