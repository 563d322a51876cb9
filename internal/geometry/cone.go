package geometry

import (
	stdmath "math"

	"github.com/bazhenovc/malwerks-sub001/pkg/bundle"
	"github.com/bazhenovc/malwerks-sub001/pkg/math"
)

// coneMinDot below which the normals spread too wide for a useful cone.
const coneMinDot = 0.1

// computeCone derives the backface culling cone of a meshlet from its
// triangle normals. A cluster can be skipped when
// dot(normalize(apex - eye), axis) >= cutoff.
// Zero-area triangles do not contribute. When no useful cone exists the
// result has a zero axis and cutoff 1, which never rejects.
func computeCone(positions [][3]float32, m *meshlet) bundle.BoundingCone {
	box := math.EmptyAABB()
	for _, v := range m.vertices {
		box.Extend(positions[v])
	}
	center := box.Center()
	degenerate := bundle.BoundingCone{Apex: center.Array(), Cutoff: 1}

	type face struct {
		p0     math.Vec3
		normal math.Vec3
	}
	faces := make([]face, 0, len(m.indices)/3)
	var sum math.Vec3
	for t := 0; t+2 < len(m.indices); t += 3 {
		p0 := math.V3(positions[m.vertices[m.indices[t]]])
		p1 := math.V3(positions[m.vertices[m.indices[t+1]]])
		p2 := math.V3(positions[m.vertices[m.indices[t+2]]])
		n := p1.Sub(p0).Cross(p2.Sub(p0))
		if n.Length() == 0 {
			continue
		}
		n = n.Normalize()
		faces = append(faces, face{p0: p0, normal: n})
		sum = sum.Add(n)
	}
	if len(faces) == 0 {
		return degenerate
	}
	axis := sum.Normalize()
	if axis.Length() == 0 {
		return degenerate
	}

	mindp := float32(1)
	for _, f := range faces {
		if dp := f.normal.Dot(axis); dp < mindp {
			mindp = dp
		}
	}
	if mindp <= coneMinDot {
		return degenerate
	}

	// Push the apex back along the axis until every triangle plane is in front of it.
	var maxt float32
	for _, f := range faces {
		dc := center.Sub(f.p0).Dot(f.normal)
		dn := axis.Dot(f.normal)
		if t := dc / dn; t > maxt {
			maxt = t
		}
	}

	return bundle.BoundingCone{
		Apex:   center.Sub(axis.Scale(maxt)).Array(),
		Axis:   axis.Array(),
		Cutoff: float32(stdmath.Sqrt(float64(1 - mindp*mindp))),
	}
}
