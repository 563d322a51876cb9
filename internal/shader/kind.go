// Package shader compiles GLSL sources to SPIR-V with glslc and tracks the
// compiled binaries in an incremental build graph.
package shader

import "fmt"

// Kind is a pipeline stage.
type Kind int

const (
	Vertex Kind = iota
	Fragment
	Geometry
	TessControl
	TessEval
	Compute
	RayGen
	RayMiss
	RayClosestHit
	RayAnyHit
	Intersection
	Task
	Mesh
)

type kindInfo struct {
	name  string // glslc -fshader-stage value
	macro string
}

var kinds = [...]kindInfo{
	Vertex:        {"vertex", "VERTEX_STAGE"},
	Fragment:      {"fragment", "FRAGMENT_STAGE"},
	Geometry:      {"geometry", "GEOMETRY_STAGE"},
	TessControl:   {"tesscontrol", "TESS_CONTROL_STAGE"},
	TessEval:      {"tesseval", "TESS_EVAL_STAGE"},
	Compute:       {"compute", "COMPUTE_STAGE"},
	RayGen:        {"rgen", "RAY_GEN_STAGE"},
	RayMiss:       {"rmiss", "RAY_MISS_STAGE"},
	RayClosestHit: {"rchit", "RAY_CLOSEST_HIT_STAGE"},
	RayAnyHit:     {"rahit", "RAY_ANY_HIT_STAGE"},
	Intersection:  {"rint", "RAY_INTERSECTION_STAGE"},
	Task:          {"task", "TASK_STAGE"},
	Mesh:          {"mesh", "MESH_STAGE"},
}

func (k Kind) valid() bool {
	return k >= 0 && int(k) < len(kinds)
}

// String returns the glslc stage name.
func (k Kind) String() string {
	if !k.valid() {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kinds[k].name
}

// Macro is the preprocessor symbol defined when compiling this stage.
func (k Kind) Macro() string {
	if !k.valid() {
		return ""
	}
	return kinds[k].macro
}

// ParseKind maps a glslc stage name back to its Kind.
func ParseKind(name string) (Kind, error) {
	for i, info := range kinds {
		if info.name == name {
			return Kind(i), nil
		}
	}
	return 0, fmt.Errorf("unknown shader stage %q", name)
}
