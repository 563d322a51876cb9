package bundle

import (
	"errors"
	"testing"

	"github.com/bazhenovc/malwerks-sub001/pkg/bakeerr"
	"github.com/bazhenovc/malwerks-sub001/pkg/math"
)

func TestValidateSample(t *testing.T) {
	if err := sampleBundle().Validate(); err != nil {
		t.Fatalf("sample bundle invalid: %v", err)
	}
}

func TestValidateViolations(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(b *Bundle)
	}{
		{"zero stride", func(b *Bundle) { b.Buffers[0].Stride = 0 }},
		{"ragged buffer", func(b *Bundle) { b.Buffers[0].Data = b.Buffers[0].Data[:35] }},
		{"zero mips", func(b *Bundle) { b.Images[0].MipCount = 0 }},
		{"cube with one layer", func(b *Bundle) { b.Images[0].ViewKind = ImageViewKindCube }},
		{"mesh vertex buffer out of range", func(b *Bundle) { b.Meshes[0].VertexBuffer = 9 }},
		{"cone count mismatch", func(b *Bundle) { b.Meshes[0].Cones = nil }},
		{"cluster over vertex cap", func(b *Bundle) { b.Meshes[0].Clusters[0].VertexCount = MaxClusterVertices + 1 }},
		{"cluster index count not triangles", func(b *Bundle) { b.Meshes[0].Clusters[0].IndexCount = 2 }},
		{"cluster past index buffer", func(b *Bundle) { b.Meshes[0].Clusters[0].IndexOffset = 3 }},
		{"index count sum", func(b *Bundle) { b.Meshes[0].IndexCount = 6 }},
		{"instance binding count", func(b *Bundle) { b.MaterialInstances[0].Images = nil }},
		{"instance sampler out of range", func(b *Bundle) { b.MaterialInstances[0].Images[0].Sampler = 3 }},
		{"material layout out of range", func(b *Bundle) { b.Materials[0].Layout = 2 }},
		{"attribute past stride", func(b *Bundle) { b.Materials[0].VertexStride = 8 }},
		{"overlapping attributes", func(b *Bundle) {
			b.Materials[0].VertexStride = 24
			b.Materials[0].Attributes = append(b.Materials[0].Attributes, VertexAttribute{
				Semantic: SemanticNormal, Name: "NORMAL", Location: 1, Format: FormatR32G32B32Sfloat, Offset: 8,
			})
		}},
		{"unknown attribute format", func(b *Bundle) { b.Materials[0].Attributes[0].Format = FormatUndefined }},
		{"bucket material out of range", func(b *Bundle) { b.Buckets[0].Material = 1 }},
		{"transform buffer stride", func(b *Bundle) { b.Buckets[0].TransformBuffer = 0 }},
		{"instance layout mismatch", func(b *Bundle) {
			b.MaterialLayouts = append(b.MaterialLayouts, MaterialLayout{ImageSlotCount: 0})
			b.Materials[0].Layout = 1
		}},
		{"transform count mismatch", func(b *Bundle) {
			b.Buckets[0].Instances[0].Transforms = append(b.Buckets[0].Instances[0].Transforms, math.Identity())
		}},
		{"transform buffer size", func(b *Bundle) {
			b.Buffers[2].Data = append(b.Buffers[2].Data, math.Identity().AppendBytes(nil)...)
		}},
		{"probe skybox out of range", func(b *Bundle) { b.EnvironmentProbes[0].Skybox = 4 }},
		{"brdf out of range", func(b *Bundle) { b.BrdfLUT = Some(1) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := sampleBundle()
			tt.mutate(b)
			err := b.Validate()
			if err == nil {
				t.Fatal("expected violation")
			}
			if !errors.Is(err, bakeerr.ErrInvariantViolation) {
				t.Errorf("expected InvariantViolation, got %v", err)
			}
		})
	}
}

func TestShaderBundleValidate(t *testing.T) {
	spirv := []uint32{0x07230203}
	tests := []struct {
		name     string
		pipeline ShaderPipeline
		wantErr  bool
	}{
		{"material ok", ShaderPipeline{Kind: PipelineMaterial, Stages: [5][]uint32{StageVertex: spirv, StageFragment: spirv}}, false},
		{"material without fragment", ShaderPipeline{Kind: PipelineMaterial, Stages: [5][]uint32{StageVertex: spirv}}, true},
		{"ray tracing empty", ShaderPipeline{Kind: PipelineRayTracing}, false},
		{"compute ok", ShaderPipeline{Kind: PipelineCompute, Stages: [5][]uint32{StageCompute: spirv}}, false},
		{"compute empty", ShaderPipeline{Kind: PipelineCompute}, true},
		{"compute extra stage", ShaderPipeline{Kind: PipelineCompute, Stages: [5][]uint32{spirv, spirv}}, true},
		{"unknown kind", ShaderPipeline{Kind: 9}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &ShaderBundle{Pipelines: []ShaderPipeline{tt.pipeline}}
			err := s.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
