// Package geometry rewrites indexed triangle meshes into clustered meshes:
// duplicate vertices folded, triangles ordered for the post-transform vertex
// cache, vertices ordered for fetch, and the result split into meshlets with
// per-meshlet bounding cones.
package geometry

import (
	"encoding/binary"
	stdmath "math"

	"github.com/bazhenovc/malwerks-sub001/pkg/bakeerr"
	"github.com/bazhenovc/malwerks-sub001/pkg/bundle"
	"github.com/bazhenovc/malwerks-sub001/pkg/math"
)

// Input is one indexed triangle list with interleaved vertices.
type Input struct {
	Vertices       []byte
	Stride         int
	PositionOffset int // offset of the R32G32B32 float position
	Indices        []byte
	IndexWidth     int // 1, 2 or 4 bytes
}

// Output is the clustered mesh. Vertices are grouped per cluster and
// Indices are local to their cluster.
type Output struct {
	Vertices []byte
	Indices  []uint16
	Clusters []bundle.Cluster
	Cones    []bundle.BoundingCone
	Bounds   math.AABB
}

// VertexCount is the number of vertices in the output buffer.
func (o *Output) VertexCount(stride int) int {
	return len(o.Vertices) / stride
}

// Optimize runs the whole clustering pipeline.
func Optimize(in Input) (*Output, error) {
	if err := in.check(); err != nil {
		return nil, err
	}
	indices, err := widenIndices(in.Indices, in.IndexWidth)
	if err != nil {
		return nil, err
	}
	vertexCount := len(in.Vertices) / in.Stride
	for _, idx := range indices {
		if int(idx) >= vertexCount {
			return nil, bakeerr.New(bakeerr.KindInvariantViolation, "index %d out of range for %d vertices", idx, vertexCount)
		}
	}

	remap, unique := generateVertexRemap(in.Vertices, in.Stride, indices)
	vertices := remapVertexBuffer(in.Vertices, in.Stride, remap, unique)
	remapIndexBuffer(indices, remap)

	indices = optimizeVertexCache(indices, unique)
	vertices = optimizeVertexFetch(vertices, in.Stride, indices)

	positions := readPositions(vertices, in.Stride, in.PositionOffset)
	meshlets := buildMeshlets(indices, unique)

	out := &Output{}
	if len(positions) > 0 {
		out.Bounds = math.EmptyAABB()
		for _, p := range positions {
			out.Bounds.Extend(p)
		}
	}
	for i := range meshlets {
		m := &meshlets[i]
		out.Clusters = append(out.Clusters, bundle.Cluster{
			VertexOffset: uint32(len(out.Vertices) / in.Stride),
			VertexCount:  uint32(len(m.vertices)),
			IndexOffset:  uint32(len(out.Indices)),
			IndexCount:   uint32(len(m.indices)),
		})
		for _, v := range m.vertices {
			out.Vertices = append(out.Vertices, vertices[int(v)*in.Stride:int(v+1)*in.Stride]...)
		}
		for _, local := range m.indices {
			out.Indices = append(out.Indices, uint16(local))
		}
		out.Cones = append(out.Cones, computeCone(positions, m))
	}

	if err := out.check(in.Stride); err != nil {
		return nil, err
	}
	return out, nil
}

func (in *Input) check() error {
	if in.Stride <= 0 {
		return bakeerr.New(bakeerr.KindInvariantViolation, "vertex stride %d", in.Stride)
	}
	if in.PositionOffset < 0 || in.PositionOffset+12 > in.Stride {
		return bakeerr.New(bakeerr.KindInvariantViolation, "position offset %d outside stride %d", in.PositionOffset, in.Stride)
	}
	if len(in.Vertices)%in.Stride != 0 {
		return bakeerr.New(bakeerr.KindInvariantViolation, "vertex bytes %d not a multiple of stride %d", len(in.Vertices), in.Stride)
	}
	return nil
}

// check verifies the cluster layout the runtime relies on.
func (o *Output) check(stride int) error {
	var vertices, indices uint32
	for i, c := range o.Clusters {
		if c.VertexOffset != vertices || c.IndexOffset != indices {
			return bakeerr.New(bakeerr.KindInvariantViolation, "cluster %d offsets not contiguous", i)
		}
		if c.VertexCount > bundle.MaxClusterVertices || c.IndexCount > bundle.MaxClusterIndices || c.IndexCount%3 != 0 {
			return bakeerr.New(bakeerr.KindInvariantViolation, "cluster %d exceeds caps", i)
		}
		for _, local := range o.Indices[c.IndexOffset : c.IndexOffset+c.IndexCount] {
			if uint32(local) >= c.VertexCount {
				return bakeerr.New(bakeerr.KindInvariantViolation, "cluster %d local index %d >= %d", i, local, c.VertexCount)
			}
		}
		vertices += c.VertexCount
		indices += c.IndexCount
	}
	if int(vertices)*stride != len(o.Vertices) {
		return bakeerr.New(bakeerr.KindInvariantViolation, "vertex accumulator %d does not match buffer of %d vertices", vertices, len(o.Vertices)/stride)
	}
	if int(indices) != len(o.Indices) {
		return bakeerr.New(bakeerr.KindInvariantViolation, "index accumulator %d does not match %d indices", indices, len(o.Indices))
	}
	return nil
}

func widenIndices(data []byte, width int) ([]uint32, error) {
	switch width {
	case 1, 2, 4:
	default:
		return nil, bakeerr.New(bakeerr.KindUnsupportedFormat, "index width %d", width)
	}
	if len(data)%width != 0 {
		return nil, bakeerr.New(bakeerr.KindInvariantViolation, "index bytes %d not a multiple of width %d", len(data), width)
	}
	out := make([]uint32, len(data)/width)
	for i := range out {
		switch width {
		case 1:
			out[i] = uint32(data[i])
		case 2:
			out[i] = uint32(binary.LittleEndian.Uint16(data[i*2:]))
		case 4:
			out[i] = binary.LittleEndian.Uint32(data[i*4:])
		}
	}
	if len(out)%3 != 0 {
		return nil, bakeerr.New(bakeerr.KindInvariantViolation, "index count %d is not a triangle list", len(out))
	}
	return out, nil
}

// generateVertexRemap assigns every referenced vertex a new index in first
// reference order, folding byte-identical vertices. Unreferenced vertices
// map to ^0.
func generateVertexRemap(vertices []byte, stride int, indices []uint32) ([]uint32, int) {
	remap := make([]uint32, len(vertices)/stride)
	for i := range remap {
		remap[i] = ^uint32(0)
	}
	seen := make(map[string]uint32)
	next := uint32(0)
	for _, idx := range indices {
		if remap[idx] != ^uint32(0) {
			continue
		}
		key := string(vertices[int(idx)*stride : int(idx+1)*stride])
		if id, ok := seen[key]; ok {
			remap[idx] = id
			continue
		}
		seen[key] = next
		remap[idx] = next
		next++
	}
	return remap, int(next)
}

func remapVertexBuffer(vertices []byte, stride int, remap []uint32, unique int) []byte {
	out := make([]byte, unique*stride)
	for i, dst := range remap {
		if dst != ^uint32(0) {
			copy(out[int(dst)*stride:], vertices[i*stride:(i+1)*stride])
		}
	}
	return out
}

func remapIndexBuffer(indices []uint32, remap []uint32) {
	for i, idx := range indices {
		indices[i] = remap[idx]
	}
}

// optimizeVertexFetch reorders vertices by first use and rewrites indices
// in place to match.
func optimizeVertexFetch(vertices []byte, stride int, indices []uint32) []byte {
	count := len(vertices) / stride
	remap := make([]uint32, count)
	for i := range remap {
		remap[i] = ^uint32(0)
	}
	out := make([]byte, 0, len(vertices))
	next := uint32(0)
	for i, idx := range indices {
		if remap[idx] == ^uint32(0) {
			remap[idx] = next
			next++
			out = append(out, vertices[int(idx)*stride:int(idx+1)*stride]...)
		}
		indices[i] = remap[idx]
	}
	return out
}

func readPositions(vertices []byte, stride, offset int) [][3]float32 {
	out := make([][3]float32, len(vertices)/stride)
	for i := range out {
		base := i*stride + offset
		for c := 0; c < 3; c++ {
			out[i][c] = stdmath.Float32frombits(binary.LittleEndian.Uint32(vertices[base+c*4:]))
		}
	}
	return out
}
