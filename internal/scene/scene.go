// Package scene flattens a glTF node hierarchy into render buckets: one
// bucket per material definition, one instance per (sub-mesh, material
// instance) pair, each carrying every world transform it is drawn at.
package scene

import (
	"sort"

	"github.com/qmuntal/gltf"
	"go.uber.org/zap"

	"github.com/bazhenovc/malwerks-sub001/pkg/bakeerr"
	"github.com/bazhenovc/malwerks-sub001/pkg/bundle"
	"github.com/bazhenovc/malwerks-sub001/pkg/math"
)

// RemappedPrimitive is what one source primitive became after import.
type RemappedPrimitive struct {
	SubMesh          uint32 // bundle mesh
	Material         uint32 // material definition
	MaterialInstance uint32
	Bounds           math.AABB // local space
}

// PrimitiveRemap maps a source mesh to its imported primitives.
type PrimitiveRemap struct {
	MeshID     uint32
	Primitives []RemappedPrimitive
}

type instanceKey struct {
	subMesh          uint32
	materialInstance uint32
}

type placements struct {
	transforms []math.Mat4
	bounds     []math.AABB
}

// Flattener collects node placements and turns them into buckets.
type Flattener struct {
	remaps map[uint32]*PrimitiveRemap
	groups map[uint32]map[instanceKey]*placements
	log    *zap.Logger
}

// NewFlattener returns a flattener resolving meshes through remaps.
func NewFlattener(remaps []PrimitiveRemap, log *zap.Logger) *Flattener {
	if log == nil {
		log = zap.NewNop()
	}
	f := &Flattener{
		remaps: make(map[uint32]*PrimitiveRemap, len(remaps)),
		groups: make(map[uint32]map[instanceKey]*placements),
		log:    log,
	}
	for i := range remaps {
		f.remaps[remaps[i].MeshID] = &remaps[i]
	}
	return f
}

// Place records every primitive of mesh drawn at world.
func (f *Flattener) Place(mesh uint32, world math.Mat4) error {
	remap, ok := f.remaps[mesh]
	if !ok {
		return bakeerr.New(bakeerr.KindInvariantViolation, "mesh %d has no primitive remap", mesh)
	}
	for _, p := range remap.Primitives {
		bounds := p.Bounds.Transform(world)
		if !bounds.Valid() {
			return bakeerr.New(bakeerr.KindInvariantViolation, "mesh %d sub-mesh %d: degenerate bounds %v", mesh, p.SubMesh, bounds)
		}
		group, ok := f.groups[p.Material]
		if !ok {
			group = make(map[instanceKey]*placements)
			f.groups[p.Material] = group
		}
		key := instanceKey{p.SubMesh, p.MaterialInstance}
		pl, ok := group[key]
		if !ok {
			pl = &placements{}
			group[key] = pl
		}
		pl.transforms = append(pl.transforms, world)
		pl.bounds = append(pl.bounds, bounds)
	}
	return nil
}

// Walk places every mesh node of the default scene depth-first. Without a
// declared scene every root node is walked.
func (f *Flattener) Walk(doc *gltf.Document) error {
	roots, err := sceneRoots(doc)
	if err != nil {
		return err
	}
	visiting := make([]bool, len(doc.Nodes))
	var walk func(idx int, parent math.Mat4) error
	walk = func(idx int, parent math.Mat4) error {
		if idx < 0 || idx >= len(doc.Nodes) {
			return bakeerr.New(bakeerr.KindInvariantViolation, "node %d out of range", idx)
		}
		if visiting[idx] {
			return bakeerr.New(bakeerr.KindInvariantViolation, "node %d is its own ancestor", idx)
		}
		visiting[idx] = true
		defer func() { visiting[idx] = false }()

		node := doc.Nodes[idx]
		world := parent.Mul(LocalTransform(node))
		if node.Mesh != nil {
			if err := f.Place(uint32(*node.Mesh), world); err != nil {
				return err
			}
		}
		for _, child := range node.Children {
			if err := walk(int(child), world); err != nil {
				return err
			}
		}
		return nil
	}
	for _, r := range roots {
		if err := walk(r, math.Identity()); err != nil {
			return err
		}
	}
	return nil
}

// Bucketize appends one bucket per material definition to b, in ascending
// material order, each with its transform buffer. Instances within a bucket
// are in ascending (sub-mesh, material instance) order.
func (f *Flattener) Bucketize(b *bundle.Bundle) error {
	materials := make([]uint32, 0, len(f.groups))
	for m := range f.groups {
		materials = append(materials, m)
	}
	sort.Slice(materials, func(i, j int) bool { return materials[i] < materials[j] })

	for _, m := range materials {
		group := f.groups[m]
		keys := make([]instanceKey, 0, len(group))
		for k := range group {
			keys = append(keys, k)
		}
		sort.Slice(keys, func(i, j int) bool {
			if keys[i].subMesh != keys[j].subMesh {
				return keys[i].subMesh < keys[j].subMesh
			}
			return keys[i].materialInstance < keys[j].materialInstance
		})

		bucket := bundle.Bucket{Material: m}
		var data []byte
		for _, k := range keys {
			if int(k.subMesh) >= len(b.Meshes) {
				return bakeerr.New(bakeerr.KindInvariantViolation, "sub-mesh %d out of range", k.subMesh)
			}
			pl := group[k]
			count := uint32(len(pl.transforms))
			bucket.Instances = append(bucket.Instances, bundle.Instance{
				Mesh:               k.subMesh,
				MaterialInstance:   k.materialInstance,
				TotalInstanceCount: count,
				TotalDrawCount:     count * uint32(len(b.Meshes[k.subMesh].Clusters)),
				Transforms:         pl.transforms,
				Bounds:             pl.bounds,
			})
			for _, t := range pl.transforms {
				data = t.AppendBytes(data)
			}
		}
		bucket.TransformBuffer = uint32(len(b.Buffers))
		b.Buffers = append(b.Buffers, bundle.Buffer{
			Stride: bundle.TransformStride,
			Usage:  bundle.BufferUsageStorage | bundle.BufferUsageTransferDst,
			Data:   data,
		})
		b.Buckets = append(b.Buckets, bucket)
		f.log.Debug("bucket",
			zap.Uint32("material", m),
			zap.Int("instances", len(bucket.Instances)),
			zap.Int("transforms", len(data)/bundle.TransformStride))
	}
	return nil
}

// LocalTransform returns the node's matrix, or its TRS when the matrix is
// absent or identity.
func LocalTransform(n *gltf.Node) math.Mat4 {
	m := n.MatrixOrDefault()
	var out math.Mat4
	for i, v := range m {
		out[i] = float32(v)
	}
	if out != (math.Mat4{}) && !out.IsIdentity() {
		return out
	}
	t := n.TranslationOrDefault()
	r := n.RotationOrDefault()
	s := n.ScaleOrDefault()
	return math.FromTRS(
		math.Vec3{X: float32(t[0]), Y: float32(t[1]), Z: float32(t[2])},
		math.Quat{X: float32(r[0]), Y: float32(r[1]), Z: float32(r[2]), W: float32(r[3])}.Normalize(),
		math.Vec3{X: float32(s[0]), Y: float32(s[1]), Z: float32(s[2])},
	)
}

func sceneRoots(doc *gltf.Document) ([]int, error) {
	var nodes []uint32
	switch {
	case doc.Scene != nil:
		idx := int(*doc.Scene)
		if idx >= len(doc.Scenes) {
			return nil, bakeerr.New(bakeerr.KindInvariantViolation, "default scene %d out of range", idx)
		}
		nodes = doc.Scenes[idx].Nodes
	case len(doc.Scenes) > 0:
		nodes = doc.Scenes[0].Nodes
	default:
		child := make([]bool, len(doc.Nodes))
		for _, n := range doc.Nodes {
			for _, c := range n.Children {
				if int(c) < len(child) {
					child[c] = true
				}
			}
		}
		var roots []int
		for i, isChild := range child {
			if !isChild {
				roots = append(roots, i)
			}
		}
		return roots, nil
	}
	roots := make([]int, len(nodes))
	for i, n := range nodes {
		roots[i] = int(n)
	}
	return roots, nil
}
