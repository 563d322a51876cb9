package geometry

import "github.com/bazhenovc/malwerks-sub001/pkg/bundle"

type meshlet struct {
	vertices []uint32 // vertex buffer indices in local order
	indices  []uint8  // local triangle indices
}

// buildMeshlets walks the triangles in order and starts a new meshlet
// whenever the next triangle would exceed the vertex or triangle cap.
func buildMeshlets(indices []uint32, vertexCount int) []meshlet {
	var out []meshlet
	local := make([]int16, vertexCount)
	for i := range local {
		local[i] = -1
	}

	var cur meshlet
	flush := func() {
		if len(cur.indices) == 0 {
			return
		}
		for _, v := range cur.vertices {
			local[v] = -1
		}
		out = append(out, cur)
		cur = meshlet{}
	}

	for t := 0; t+2 < len(indices); t += 3 {
		tri := indices[t : t+3]
		added := 0
		for j, v := range tri {
			if local[v] < 0 && (j == 0 || v != tri[0]) && (j < 2 || v != tri[1]) {
				added++
			}
		}
		if len(cur.vertices)+added > bundle.MaxClusterVertices || len(cur.indices)/3+1 > bundle.MaxClusterTriangles {
			flush()
		}
		for _, v := range tri {
			if local[v] < 0 {
				local[v] = int16(len(cur.vertices))
				cur.vertices = append(cur.vertices, v)
			}
			cur.indices = append(cur.indices, uint8(local[v]))
		}
	}
	flush()
	return out
}
