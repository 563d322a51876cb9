// Package bundle defines the on-disk resource bundle consumed by the renderer
// and the binary codec that reads and writes it.
//
// Entities reference each other by integer index into the ordered sequences
// of Bundle. Nothing is referenced by pointer, in memory or on disk.
package bundle

import (
	"github.com/bazhenovc/malwerks-sub001/pkg/math"
)

// Cluster caps.
const (
	MaxClusterVertices  = 64
	MaxClusterTriangles = 126
	MaxClusterIndices   = MaxClusterTriangles * 3
)

// MaterialParametersSize is the size of a packed material parameter block.
const MaterialParametersSize = 64

// TransformStride is the stride of per-instance transform buffers.
const TransformStride = math.Mat4Size

// OptionalIndex is an index that may be absent.
type OptionalIndex struct {
	Index uint32
	Valid bool
}

// Some returns a present OptionalIndex.
func Some(index uint32) OptionalIndex {
	return OptionalIndex{Index: index, Valid: true}
}

// None is the absent index.
var None = OptionalIndex{}

// Sampler describes fixed sampler state.
type Sampler struct {
	MagFilter Filter
	MinFilter Filter
	MipMode   MipmapMode
	WrapU     AddressMode
	WrapV     AddressMode
	WrapW     AddressMode
}

// DefaultSampler is linear filtering with repeat wrapping on every axis.
func DefaultSampler() Sampler {
	return Sampler{
		MagFilter: FilterLinear,
		MinFilter: FilterLinear,
		MipMode:   MipmapModeLinear,
		WrapU:     AddressModeRepeat,
		WrapV:     AddressModeRepeat,
		WrapW:     AddressModeRepeat,
	}
}

// Image is a GPU-ready, possibly block-compressed image with its full mip chain.
// Pixels holds all layers, each layer holding all of its mips, in that order.
type Image struct {
	Width      uint32
	Height     uint32
	Depth      uint32
	BlockSize  uint32
	MipCount   uint32
	LayerCount uint32
	Kind       ImageKind
	ViewKind   ImageViewKind
	Format     Format
	Pixels     []byte
}

// VertexAttribute is one interleaved attribute of a vertex format.
type VertexAttribute struct {
	Semantic AttributeSemantic
	Name     string
	Location uint32
	Format   Format
	Offset   uint32
}

// MaterialLayout groups materials by their number of image slots.
type MaterialLayout struct {
	ImageSlotCount uint32
}

// ImageBinding names an image slot of a material definition and the uv channel it samples.
type ImageBinding struct {
	Name      string
	UVChannel uint32
}

// MacroDefinition is a shader preprocessor definition.
type MacroDefinition struct {
	Name  string
	Value string
}

// Material is a material definition: shader permutation, vertex format and fixed-function state.
type Material struct {
	Layout       uint32
	VertexStride uint32
	Attributes   []VertexAttribute
	AlphaTest    bool
	CullMode     CullMode
	Images       []ImageBinding
	Defines      []MacroDefinition
}

// ImageSamplerBinding pairs an image with a sampler.
type ImageSamplerBinding struct {
	Image   uint32
	Sampler uint32
}

// MaterialInstance holds per-material parameters and texture bindings.
type MaterialInstance struct {
	Layout     uint32
	Parameters [MaterialParametersSize]byte
	Images     []ImageSamplerBinding
}

// Buffer is a GPU buffer.
type Buffer struct {
	Stride uint32
	Usage  BufferUsage
	Data   []byte
}

// Cluster is a range of a mesh's vertex and index buffers forming one meshlet.
type Cluster struct {
	VertexOffset uint32
	VertexCount  uint32
	IndexOffset  uint32
	IndexCount   uint32
}

// BoundingCone summarizes the triangle normals of a cluster for backface rejection.
type BoundingCone struct {
	Apex   [3]float32
	Axis   [3]float32
	Cutoff float32
}

// Degenerate reports whether the cone cannot be used for rejection.
func (c BoundingCone) Degenerate() bool {
	return c.Axis == [3]float32{} && c.Cutoff >= 1
}

// Mesh is clustered renderable geometry.
type Mesh struct {
	VertexBuffer uint32
	IndexType    IndexType
	IndexBuffer  uint32
	IndexCount   uint32
	Clusters     []Cluster
	Cones        []BoundingCone
}

// Instance is one mesh drawn with one material instance at several transforms.
// Transforms and Bounds are parallel.
type Instance struct {
	Mesh               uint32
	MaterialInstance   uint32
	TotalInstanceCount uint32
	TotalDrawCount     uint32
	Transforms         []math.Mat4
	Bounds             []math.AABB
}

// Bucket groups every instance sharing a material definition.
type Bucket struct {
	Material        uint32
	Instances       []Instance
	TransformBuffer uint32
}

// EnvironmentProbe references the images lighting a scene.
type EnvironmentProbe struct {
	Skybox uint32
	Iem    OptionalIndex
	Pmrem  OptionalIndex
}

// Bundle is everything the renderer needs for one scene.
type Bundle struct {
	Buffers           []Buffer
	Meshes            []Mesh
	Images            []Image
	Samplers          []Sampler
	MaterialLayouts   []MaterialLayout
	MaterialInstances []MaterialInstance
	Materials         []Material
	Buckets           []Bucket
	EnvironmentProbes []EnvironmentProbe
	BrdfLUT           OptionalIndex
}

// ShaderPipeline is one pipeline's stage binaries. Stage slots by kind:
//
//	Material:   vertex, geometry, tess_ctrl, tess_eval, fragment
//	RayTracing: raygen, closest_hit, any_hit, miss, intersection
//	Compute:    stage
//
// An empty slot means the stage is absent.
type ShaderPipeline struct {
	Kind   PipelineKind
	Name   string
	Stages [5][]uint32
}

// Stage slots for Material pipelines.
const (
	StageVertex = iota
	StageGeometry
	StageTessControl
	StageTessEval
	StageFragment
)

// Stage slots for RayTracing pipelines.
const (
	StageRayGen = iota
	StageClosestHit
	StageAnyHit
	StageMiss
	StageIntersection
)

// StageCompute is the only slot of a Compute pipeline.
const StageCompute = 0

// ShaderBundle holds every pipeline of a resource bundle, stored as a separate file.
// Material pipelines come first, one per material definition in order.
type ShaderBundle struct {
	Pipelines []ShaderPipeline
}
