package importer

import (
	"encoding/binary"
	stdmath "math"
	"sort"
	"strconv"
	"strings"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
	"go.uber.org/zap"

	"github.com/bazhenovc/malwerks-sub001/internal/geometry"
	"github.com/bazhenovc/malwerks-sub001/internal/material"
	"github.com/bazhenovc/malwerks-sub001/internal/scene"
	"github.com/bazhenovc/malwerks-sub001/pkg/bakeerr"
	"github.com/bazhenovc/malwerks-sub001/pkg/bundle"
)

// Attribute classes in vertex order.
const (
	attrPosition = iota
	attrNormal
	attrTangent
	attrTexCoord
	attrColor
	attrSkipped
)

type attribute struct {
	name     string
	class    int
	set      int // n of TEXCOORD_n and COLOR_n
	accessor uint32
}

func classifyAttribute(name string) (class, set int, ok bool) {
	switch name {
	case "POSITION":
		return attrPosition, 0, true
	case "NORMAL":
		return attrNormal, 0, true
	case "TANGENT":
		return attrTangent, 0, true
	}
	prefix, n, found := strings.Cut(name, "_")
	if !found {
		return 0, 0, false
	}
	set, err := strconv.Atoi(n)
	if err != nil || set < 0 {
		return 0, 0, false
	}
	switch prefix {
	case "TEXCOORD":
		return attrTexCoord, set, true
	case "COLOR":
		return attrColor, set, true
	case "JOINTS", "WEIGHTS":
		return attrSkipped, set, true
	}
	return 0, 0, false
}

var attributeLayout = [...]struct {
	semantic bundle.AttributeSemantic
	format   bundle.Format
}{
	attrPosition: {bundle.SemanticPosition, bundle.FormatR32G32B32Sfloat},
	attrNormal:   {bundle.SemanticNormal, bundle.FormatR32G32B32Sfloat},
	attrTangent:  {bundle.SemanticTangent, bundle.FormatR32G32B32A32Sfloat},
	attrTexCoord: {bundle.SemanticInterpolated, bundle.FormatR32G32Sfloat},
	attrColor:    {bundle.SemanticInterpolated, bundle.FormatR8G8B8A8Unorm},
}

// importMeshes turns every triangle primitive into one clustered bundle
// mesh and records where each glTF mesh went.
func (r *run) importMeshes() error {
	log := r.imp.log.Named(StageMeshes)
	for i, mesh := range r.doc.Meshes {
		remap := scene.PrimitiveRemap{MeshID: uint32(i)}
		for j, p := range mesh.Primitives {
			asset := meshName(i, mesh) + " primitive " + strconv.Itoa(j)
			rp, ok, err := r.importPrimitive(p, log.With(zap.String("primitive", asset)))
			if err != nil {
				return &StageError{Stage: StageMeshes, Asset: asset, Err: err}
			}
			if ok {
				remap.Primitives = append(remap.Primitives, rp)
			}
		}
		r.remaps = append(r.remaps, remap)
	}
	return nil
}

func (r *run) importPrimitive(p *gltf.Primitive, log *zap.Logger) (scene.RemappedPrimitive, bool, error) {
	var rp scene.RemappedPrimitive
	if p.Mode != gltf.PrimitiveTriangles {
		return rp, false, bakeerr.New(bakeerr.KindUnsupportedFormat, "primitive mode %d is not a triangle list", p.Mode)
	}

	attrs, err := r.primitiveAttributes(p, log)
	if err != nil {
		return rp, false, err
	}
	vertices, format, count, err := r.interleave(attrs)
	if err != nil {
		return rp, false, err
	}
	indices, width, err := r.primitiveIndices(p, count)
	if err != nil {
		return rp, false, err
	}
	if count == 0 || len(indices) == 0 {
		log.Debug("skipping empty primitive")
		return rp, false, nil
	}

	out, err := geometry.Optimize(geometry.Input{
		Vertices:   vertices,
		Stride:     int(format.Stride),
		Indices:    indices,
		IndexWidth: width,
	})
	if err != nil {
		return rp, false, err
	}

	src, instance, err := r.materialFor(p)
	if err != nil {
		return rp, false, err
	}

	vb := r.appendBuffer(format.Stride, bundle.BufferUsageVertex|bundle.BufferUsageTransferDst, out.Vertices)
	indexBytes := make([]byte, 2*len(out.Indices))
	for k, idx := range out.Indices {
		binary.LittleEndian.PutUint16(indexBytes[2*k:], idx)
	}
	ib := r.appendBuffer(2, bundle.BufferUsageIndex|bundle.BufferUsageTransferDst, indexBytes)

	rp.SubMesh = uint32(len(r.b.Meshes))
	r.b.Meshes = append(r.b.Meshes, bundle.Mesh{
		VertexBuffer: vb,
		IndexType:    bundle.IndexTypeUint16,
		IndexBuffer:  ib,
		IndexCount:   uint32(len(out.Indices)),
		Clusters:     out.Clusters,
		Cones:        out.Cones,
	})
	rp.Material = r.dedup.Definition(src, format, r.imp.opts.MaterialDefines)
	rp.MaterialInstance = instance
	rp.Bounds = out.Bounds

	log.Debug("mesh",
		zap.Uint32("mesh", rp.SubMesh),
		zap.Int("vertices", out.VertexCount(int(format.Stride))),
		zap.Int("source_vertices", count),
		zap.Int("clusters", len(out.Clusters)),
		zap.Uint32("material", rp.Material))
	return rp, true, nil
}

func (r *run) appendBuffer(stride uint32, usage bundle.BufferUsage, data []byte) uint32 {
	idx := uint32(len(r.b.Buffers))
	r.b.Buffers = append(r.b.Buffers, bundle.Buffer{Stride: stride, Usage: usage, Data: data})
	return idx
}

// primitiveAttributes returns the attributes that go into the vertex, in
// vertex order.
func (r *run) primitiveAttributes(p *gltf.Primitive, log *zap.Logger) ([]attribute, error) {
	var attrs []attribute
	for name, acr := range p.Attributes {
		class, set, ok := classifyAttribute(name)
		if !ok {
			return nil, bakeerr.New(bakeerr.KindUnsupportedFormat, "vertex attribute %s", name)
		}
		if class == attrSkipped {
			log.Debug("skipping skinning attribute", zap.String("attribute", name))
			continue
		}
		if int(acr) >= len(r.doc.Accessors) {
			return nil, bakeerr.New(bakeerr.KindInvariantViolation, "attribute %s accessor %d out of range", name, acr)
		}
		attrs = append(attrs, attribute{name: name, class: class, set: set, accessor: acr})
	}
	sort.Slice(attrs, func(i, j int) bool {
		if attrs[i].class != attrs[j].class {
			return attrs[i].class < attrs[j].class
		}
		return attrs[i].set < attrs[j].set
	})
	if len(attrs) == 0 || attrs[0].class != attrPosition {
		return nil, bakeerr.New(bakeerr.KindUnsupportedFormat, "primitive has no POSITION attribute")
	}
	return attrs, nil
}

// interleave reads every attribute and packs them into one vertex stream.
func (r *run) interleave(attrs []attribute) ([]byte, material.VertexFormat, int, error) {
	var format material.VertexFormat
	columns := make([][]byte, len(attrs))
	count := -1
	for i, a := range attrs {
		layout := attributeLayout[a.class]
		data, n, err := r.readAttribute(a)
		if err != nil {
			return nil, format, 0, err
		}
		if count >= 0 && n != count {
			return nil, format, 0, bakeerr.New(bakeerr.KindInvariantViolation, "attribute %s has %d elements, POSITION has %d", a.name, n, count)
		}
		count = n
		columns[i] = data
		format.Attributes = append(format.Attributes, bundle.VertexAttribute{
			Semantic: layout.semantic,
			Name:     a.name,
			Location: uint32(i),
			Format:   layout.format,
			Offset:   format.Stride,
		})
		format.Stride += layout.format.Size()
	}

	vertices := make([]byte, count*int(format.Stride))
	for i, attr := range format.Attributes {
		size := int(attr.Format.Size())
		for v := 0; v < count; v++ {
			copy(vertices[v*int(format.Stride)+int(attr.Offset):], columns[i][v*size:(v+1)*size])
		}
	}
	return vertices, format, count, nil
}

// readAttribute returns the attribute's elements in their vertex format.
func (r *run) readAttribute(a attribute) ([]byte, int, error) {
	acr := r.doc.Accessors[a.accessor]
	var out []byte
	switch a.class {
	case attrPosition, attrNormal:
		var vs [][3]float32
		var err error
		if a.class == attrPosition {
			vs, err = modeler.ReadPosition(r.doc, acr, nil)
		} else {
			vs, err = modeler.ReadNormal(r.doc, acr, nil)
		}
		if err != nil {
			return nil, 0, accessorError(a, err)
		}
		for _, v := range vs {
			out = appendFloats(out, v[:]...)
		}
		return out, len(vs), nil
	case attrTangent:
		vs, err := modeler.ReadTangent(r.doc, acr, nil)
		if err != nil {
			return nil, 0, accessorError(a, err)
		}
		for _, v := range vs {
			out = appendFloats(out, v[:]...)
		}
		return out, len(vs), nil
	case attrTexCoord:
		vs, err := modeler.ReadTextureCoord(r.doc, acr, nil)
		if err != nil {
			return nil, 0, accessorError(a, err)
		}
		for _, v := range vs {
			out = appendFloats(out, v[:]...)
		}
		return out, len(vs), nil
	case attrColor:
		vs, err := modeler.ReadColor(r.doc, acr, nil)
		if err != nil {
			return nil, 0, accessorError(a, err)
		}
		for _, v := range vs {
			out = append(out, v[:]...)
		}
		return out, len(vs), nil
	}
	return nil, 0, bakeerr.New(bakeerr.KindUnsupportedFormat, "vertex attribute %s", a.name)
}

func accessorError(a attribute, err error) error {
	if bakeerr.KindOf(err) != bakeerr.KindUnknown {
		return err
	}
	return bakeerr.Wrap(bakeerr.KindUnsupportedFormat, err, "reading %s", a.name)
}

func appendFloats(b []byte, vs ...float32) []byte {
	for _, v := range vs {
		b = binary.LittleEndian.AppendUint32(b, stdmath.Float32bits(v))
	}
	return b
}

// primitiveIndices returns the raw index stream and its width. Primitives
// without indices draw their vertices in order.
func (r *run) primitiveIndices(p *gltf.Primitive, vertexCount int) ([]byte, int, error) {
	if p.Indices == nil {
		out := make([]byte, 4*vertexCount)
		for i := 0; i < vertexCount; i++ {
			binary.LittleEndian.PutUint32(out[4*i:], uint32(i))
		}
		return out, 4, nil
	}
	if int(*p.Indices) >= len(r.doc.Accessors) {
		return nil, 0, bakeerr.New(bakeerr.KindInvariantViolation, "index accessor %d out of range", *p.Indices)
	}
	data, err := modeler.ReadAccessor(r.doc, r.doc.Accessors[*p.Indices], nil)
	if err != nil {
		return nil, 0, bakeerr.Wrap(bakeerr.KindUnsupportedFormat, err, "reading indices")
	}
	switch idx := data.(type) {
	case []uint8:
		return idx, 1, nil
	case []uint16:
		out := make([]byte, 2*len(idx))
		for i, v := range idx {
			binary.LittleEndian.PutUint16(out[2*i:], v)
		}
		return out, 2, nil
	case []uint32:
		out := make([]byte, 4*len(idx))
		for i, v := range idx {
			binary.LittleEndian.PutUint32(out[4*i:], v)
		}
		return out, 4, nil
	}
	return nil, 0, bakeerr.New(bakeerr.KindUnsupportedFormat, "index accessor of type %T", data)
}

func meshName(i int, m *gltf.Mesh) string {
	if m.Name != "" {
		return m.Name
	}
	return "mesh " + strconv.Itoa(i)
}
