package bundle

import (
	"fmt"

	"github.com/bazhenovc/malwerks-sub001/pkg/bakeerr"
)

// Validate checks the structural invariants of the bundle: every cross
// reference in range, cluster caps honoured, layouts consistent.
// Violations are reported as InvariantViolation.
func (b *Bundle) Validate() error {
	for i := range b.Buffers {
		if err := b.validateBuffer(i); err != nil {
			return err
		}
	}
	for i := range b.Images {
		if err := validateImage(i, &b.Images[i]); err != nil {
			return err
		}
	}
	for i := range b.Meshes {
		if err := b.validateMesh(i); err != nil {
			return err
		}
	}
	for i := range b.MaterialInstances {
		if err := b.validateMaterialInstance(i); err != nil {
			return err
		}
	}
	for i := range b.Materials {
		if err := b.validateMaterial(i); err != nil {
			return err
		}
	}
	for i := range b.Buckets {
		if err := b.validateBucket(i); err != nil {
			return err
		}
	}
	for i, probe := range b.EnvironmentProbes {
		if err := b.checkImage(probe.Skybox, "probe %d skybox", i); err != nil {
			return err
		}
		if err := b.checkOptionalImage(probe.Iem, "probe %d iem", i); err != nil {
			return err
		}
		if err := b.checkOptionalImage(probe.Pmrem, "probe %d pmrem", i); err != nil {
			return err
		}
	}
	return b.checkOptionalImage(b.BrdfLUT, "brdf lut")
}

func violation(format string, args ...interface{}) error {
	return bakeerr.New(bakeerr.KindInvariantViolation, format, args...)
}

func checkIndex(index uint32, length int, format string, args ...interface{}) error {
	if int(index) >= length {
		return violation("%s: index %d out of range [0, %d)", fmt.Sprintf(format, args...), index, length)
	}
	return nil
}

func (b *Bundle) checkImage(index uint32, format string, args ...interface{}) error {
	return checkIndex(index, len(b.Images), format, args...)
}

func (b *Bundle) checkOptionalImage(index OptionalIndex, format string, args ...interface{}) error {
	if !index.Valid {
		return nil
	}
	return b.checkImage(index.Index, format, args...)
}

func (b *Bundle) validateBuffer(i int) error {
	buf := &b.Buffers[i]
	if buf.Stride == 0 {
		return violation("buffer %d: zero stride", i)
	}
	if len(buf.Data)%int(buf.Stride) != 0 {
		return violation("buffer %d: length %d not a multiple of stride %d", i, len(buf.Data), buf.Stride)
	}
	return nil
}

func validateImage(i int, img *Image) error {
	if img.Depth < 1 {
		return violation("image %d: depth must be >= 1", i)
	}
	if img.MipCount < 1 {
		return violation("image %d: mip count must be >= 1", i)
	}
	if img.LayerCount < 1 {
		return violation("image %d: layer count must be >= 1", i)
	}
	if img.ViewKind == ImageViewKindCube && img.LayerCount%6 != 0 {
		return violation("image %d: cube view with %d layers", i, img.LayerCount)
	}
	return nil
}

func (b *Bundle) validateMesh(i int) error {
	mesh := &b.Meshes[i]
	if err := checkIndex(mesh.VertexBuffer, len(b.Buffers), "mesh %d vertex buffer", i); err != nil {
		return err
	}
	if err := checkIndex(mesh.IndexBuffer, len(b.Buffers), "mesh %d index buffer", i); err != nil {
		return err
	}
	if len(mesh.Clusters) != len(mesh.Cones) {
		return violation("mesh %d: %d clusters but %d cones", i, len(mesh.Clusters), len(mesh.Cones))
	}

	vertexBuffer := &b.Buffers[mesh.VertexBuffer]
	vertexCount := uint32(len(vertexBuffer.Data)) / vertexBuffer.Stride
	indexCount := uint32(len(b.Buffers[mesh.IndexBuffer].Data)) / mesh.IndexType.Size()

	var total uint32
	for j, c := range mesh.Clusters {
		if c.VertexCount == 0 || c.IndexCount == 0 {
			return violation("mesh %d cluster %d: empty", i, j)
		}
		if c.VertexCount > MaxClusterVertices {
			return violation("mesh %d cluster %d: %d vertices exceeds %d", i, j, c.VertexCount, MaxClusterVertices)
		}
		if c.IndexCount > MaxClusterIndices || c.IndexCount%3 != 0 {
			return violation("mesh %d cluster %d: bad index count %d", i, j, c.IndexCount)
		}
		if c.VertexOffset+c.VertexCount > vertexCount {
			return violation("mesh %d cluster %d: vertex range past buffer end", i, j)
		}
		if c.IndexOffset+c.IndexCount > indexCount {
			return violation("mesh %d cluster %d: index range past buffer end", i, j)
		}
		total += c.IndexCount
	}
	if total != mesh.IndexCount {
		return violation("mesh %d: cluster index counts sum to %d, mesh has %d", i, total, mesh.IndexCount)
	}
	return nil
}

func (b *Bundle) validateMaterialInstance(i int) error {
	mi := &b.MaterialInstances[i]
	if err := checkIndex(mi.Layout, len(b.MaterialLayouts), "material instance %d layout", i); err != nil {
		return err
	}
	slots := b.MaterialLayouts[mi.Layout].ImageSlotCount
	if uint32(len(mi.Images)) != slots {
		return violation("material instance %d: %d bindings for layout with %d slots", i, len(mi.Images), slots)
	}
	for j, binding := range mi.Images {
		if err := b.checkImage(binding.Image, "material instance %d binding %d image", i, j); err != nil {
			return err
		}
		if err := checkIndex(binding.Sampler, len(b.Samplers), "material instance %d binding %d sampler", i, j); err != nil {
			return err
		}
	}
	return nil
}

func (b *Bundle) validateMaterial(i int) error {
	mat := &b.Materials[i]
	if err := checkIndex(mat.Layout, len(b.MaterialLayouts), "material %d layout", i); err != nil {
		return err
	}
	var end uint32
	for j, attr := range mat.Attributes {
		if j > 0 && attr.Offset < end {
			return violation("material %d attribute %q overlaps previous attribute", i, attr.Name)
		}
		size := attr.Format.Size()
		if size == 0 {
			return violation("material %d attribute %q has unsupported format %s", i, attr.Name, attr.Format)
		}
		end = attr.Offset + size
		if end > mat.VertexStride {
			return violation("material %d attribute %q ends past stride %d", i, attr.Name, mat.VertexStride)
		}
	}
	return nil
}

func (b *Bundle) validateBucket(i int) error {
	bucket := &b.Buckets[i]
	if err := checkIndex(bucket.Material, len(b.Materials), "bucket %d material", i); err != nil {
		return err
	}
	if err := checkIndex(bucket.TransformBuffer, len(b.Buffers), "bucket %d transform buffer", i); err != nil {
		return err
	}
	if stride := b.Buffers[bucket.TransformBuffer].Stride; stride != TransformStride {
		return violation("bucket %d: transform buffer stride %d, want %d", i, stride, TransformStride)
	}

	layout := b.Materials[bucket.Material].Layout
	var transforms int
	for j := range bucket.Instances {
		inst := &bucket.Instances[j]
		if err := checkIndex(inst.Mesh, len(b.Meshes), "bucket %d instance %d mesh", i, j); err != nil {
			return err
		}
		if err := checkIndex(inst.MaterialInstance, len(b.MaterialInstances), "bucket %d instance %d material instance", i, j); err != nil {
			return err
		}
		if got := b.MaterialInstances[inst.MaterialInstance].Layout; got != layout {
			return violation("bucket %d instance %d: material instance layout %d, bucket layout %d", i, j, got, layout)
		}
		if len(inst.Transforms) != len(inst.Bounds) || uint32(len(inst.Transforms)) != inst.TotalInstanceCount {
			return violation("bucket %d instance %d: %d transforms, %d bounds, count %d",
				i, j, len(inst.Transforms), len(inst.Bounds), inst.TotalInstanceCount)
		}
		transforms += len(inst.Transforms)
	}
	if got := len(b.Buffers[bucket.TransformBuffer].Data) / TransformStride; got != transforms {
		return violation("bucket %d: transform buffer holds %d matrices, instances hold %d", i, got, transforms)
	}
	return nil
}

// Validate checks that every Material pipeline has vertex and fragment stages
// and every Compute pipeline has its stage.
func (s *ShaderBundle) Validate() error {
	for i, p := range s.Pipelines {
		switch p.Kind {
		case PipelineMaterial:
			if len(p.Stages[StageVertex]) == 0 || len(p.Stages[StageFragment]) == 0 {
				return violation("pipeline %d (%s): material pipeline without vertex or fragment stage", i, p.Name)
			}
		case PipelineRayTracing:
		case PipelineCompute:
			if len(p.Stages[StageCompute]) == 0 {
				return violation("pipeline %d (%s): compute pipeline without stage", i, p.Name)
			}
			for slot := 1; slot < len(p.Stages); slot++ {
				if len(p.Stages[slot]) != 0 {
					return violation("pipeline %d (%s): compute pipeline with extra stage %d", i, p.Name, slot)
				}
			}
		default:
			return violation("pipeline %d: unknown kind %d", i, p.Kind)
		}
	}
	return nil
}
