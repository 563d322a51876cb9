package bundle

import (
	"hash/fnv"
	"io"

	"github.com/bazhenovc/malwerks-sub001/pkg/bakeerr"
	"github.com/bazhenovc/malwerks-sub001/pkg/math"
)

// File magics.
const (
	resourceMagic = "MWRB"
	shaderMagic   = "MWSB"
)

// The schema descriptors are hashed into the file header. Any change to the
// encoding must change the descriptor so stale files fail to decode.
const (
	resourceSchema = "buffers[stride u32,usage u32,data lz4];" +
		"meshes[vb u32,itype u32,ib u32,icount u32,clusters[u32 x4],cones[apex v3,axis v3,cutoff f32]];" +
		"images[w,h,d,block,mips,layers,kind,view,format u32,pixels lz4];" +
		"samplers[mag,min,mip,u,v,w u32];" +
		"layouts[slots u32];" +
		"instances[layout u32,params 64,images[image u32,sampler u32]];" +
		"materials[layout u32,stride u32,attrs[sem u32,name str,loc u32,fmt u32,off u32],alpha bool,cull u32,images[name str,uv u32],defines[name str,value str]];" +
		"buckets[material u32,instances[mesh,mi,count,draws u32,transforms[m4],bounds[v3,v3]],tb u32];" +
		"probes[skybox u32,iem opt,pmrem opt];brdf opt"
	shaderSchema = "pipelines[kind u32,name str,stages[5][words]]"
)

func fingerprint(schema string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(schema))
	return h.Sum64()
}

func (w *writer) header(magic, schema string) {
	w.raw([]byte(magic))
	w.u64(fingerprint(schema))
}

func (r *reader) header(magic, schema string) {
	got := r.take(len(magic))
	if r.err != nil {
		return
	}
	if string(got) != magic {
		r.fail("bad magic %q, want %q", got, magic)
		return
	}
	if fp := r.u64(); r.err == nil && fp != fingerprint(schema) {
		r.fail("schema fingerprint %016x does not match %016x", fp, fingerprint(schema))
	}
}

// Encode writes b to w. Image pixels and buffer data are LZ4-compressed at
// the given level (0..9). Only I/O failures are reported.
func Encode(w io.Writer, b *Bundle, compressionLevel uint32) error {
	e := newWriter(w, compressionLevel)
	e.header(resourceMagic, resourceSchema)

	writeSeq(e, b.Buffers, func(buf *Buffer) {
		e.u32(buf.Stride)
		e.u32(uint32(buf.Usage))
		e.lz4Bytes(buf.Data)
	})
	writeSeq(e, b.Meshes, func(m *Mesh) {
		e.u32(m.VertexBuffer)
		e.u32(uint32(m.IndexType))
		e.u32(m.IndexBuffer)
		e.u32(m.IndexCount)
		writeSeq(e, m.Clusters, func(c *Cluster) {
			e.u32(c.VertexOffset)
			e.u32(c.VertexCount)
			e.u32(c.IndexOffset)
			e.u32(c.IndexCount)
		})
		writeSeq(e, m.Cones, func(c *BoundingCone) {
			e.vec3(c.Apex)
			e.vec3(c.Axis)
			e.f32(c.Cutoff)
		})
	})
	writeSeq(e, b.Images, func(img *Image) {
		e.u32(img.Width)
		e.u32(img.Height)
		e.u32(img.Depth)
		e.u32(img.BlockSize)
		e.u32(img.MipCount)
		e.u32(img.LayerCount)
		e.u32(uint32(img.Kind))
		e.u32(uint32(img.ViewKind))
		e.u32(uint32(img.Format))
		e.lz4Bytes(img.Pixels)
	})
	writeSeq(e, b.Samplers, func(s *Sampler) {
		e.u32(uint32(s.MagFilter))
		e.u32(uint32(s.MinFilter))
		e.u32(uint32(s.MipMode))
		e.u32(uint32(s.WrapU))
		e.u32(uint32(s.WrapV))
		e.u32(uint32(s.WrapW))
	})
	writeSeq(e, b.MaterialLayouts, func(l *MaterialLayout) {
		e.u32(l.ImageSlotCount)
	})
	writeSeq(e, b.MaterialInstances, func(mi *MaterialInstance) {
		e.u32(mi.Layout)
		e.raw(mi.Parameters[:])
		writeSeq(e, mi.Images, func(binding *ImageSamplerBinding) {
			e.u32(binding.Image)
			e.u32(binding.Sampler)
		})
	})
	writeSeq(e, b.Materials, func(m *Material) {
		e.u32(m.Layout)
		e.u32(m.VertexStride)
		writeSeq(e, m.Attributes, func(a *VertexAttribute) {
			e.u32(uint32(a.Semantic))
			e.str(a.Name)
			e.u32(a.Location)
			e.u32(uint32(a.Format))
			e.u32(a.Offset)
		})
		e.boolean(m.AlphaTest)
		e.u32(uint32(m.CullMode))
		writeSeq(e, m.Images, func(img *ImageBinding) {
			e.str(img.Name)
			e.u32(img.UVChannel)
		})
		writeSeq(e, m.Defines, func(d *MacroDefinition) {
			e.str(d.Name)
			e.str(d.Value)
		})
	})
	writeSeq(e, b.Buckets, func(bucket *Bucket) {
		e.u32(bucket.Material)
		writeSeq(e, bucket.Instances, func(inst *Instance) {
			e.u32(inst.Mesh)
			e.u32(inst.MaterialInstance)
			e.u32(inst.TotalInstanceCount)
			e.u32(inst.TotalDrawCount)
			writeSeq(e, inst.Transforms, func(m *math.Mat4) {
				for _, f := range m {
					e.f32(f)
				}
			})
			writeSeq(e, inst.Bounds, func(box *math.AABB) {
				e.vec3(box.Min)
				e.vec3(box.Max)
			})
		})
		e.u32(bucket.TransformBuffer)
	})
	writeSeq(e, b.EnvironmentProbes, func(p *EnvironmentProbe) {
		e.u32(p.Skybox)
		e.optional(p.Iem)
		e.optional(p.Pmrem)
	})
	e.optional(b.BrdfLUT)

	return e.flush()
}

// Decode reads a bundle previously written by Encode and validates it.
// Every failure is a DecodeError.
func Decode(src io.Reader) (*Bundle, error) {
	data, err := io.ReadAll(src)
	if err != nil {
		return nil, bakeerr.Wrap(bakeerr.KindIO, err, "reading bundle")
	}
	return DecodeBytes(data)
}

// DecodeBytes is Decode over an in-memory buffer.
func DecodeBytes(data []byte) (*Bundle, error) {
	r := &reader{data: data}
	r.header(resourceMagic, resourceSchema)

	b := &Bundle{}
	b.Buffers = readSeq(r, 24, func() Buffer {
		return Buffer{
			Stride: r.u32(),
			Usage:  BufferUsage(r.u32()),
			Data:   r.lz4Bytes(),
		}
	})
	b.Meshes = readSeq(r, 32, func() Mesh {
		m := Mesh{
			VertexBuffer: r.u32(),
			IndexType:    IndexType(r.u32()),
			IndexBuffer:  r.u32(),
			IndexCount:   r.u32(),
		}
		m.Clusters = readSeq(r, 16, func() Cluster {
			return Cluster{
				VertexOffset: r.u32(),
				VertexCount:  r.u32(),
				IndexOffset:  r.u32(),
				IndexCount:   r.u32(),
			}
		})
		m.Cones = readSeq(r, 28, func() BoundingCone {
			return BoundingCone{Apex: r.vec3(), Axis: r.vec3(), Cutoff: r.f32()}
		})
		return m
	})
	b.Images = readSeq(r, 52, func() Image {
		return Image{
			Width:      r.u32(),
			Height:     r.u32(),
			Depth:      r.u32(),
			BlockSize:  r.u32(),
			MipCount:   r.u32(),
			LayerCount: r.u32(),
			Kind:       ImageKind(r.u32()),
			ViewKind:   ImageViewKind(r.u32()),
			Format:     Format(r.u32()),
			Pixels:     r.lz4Bytes(),
		}
	})
	b.Samplers = readSeq(r, 24, func() Sampler {
		return Sampler{
			MagFilter: Filter(r.u32()),
			MinFilter: Filter(r.u32()),
			MipMode:   MipmapMode(r.u32()),
			WrapU:     AddressMode(r.u32()),
			WrapV:     AddressMode(r.u32()),
			WrapW:     AddressMode(r.u32()),
		}
	})
	b.MaterialLayouts = readSeq(r, 4, func() MaterialLayout {
		return MaterialLayout{ImageSlotCount: r.u32()}
	})
	b.MaterialInstances = readSeq(r, 4+MaterialParametersSize+8, func() MaterialInstance {
		mi := MaterialInstance{Layout: r.u32()}
		copy(mi.Parameters[:], r.take(MaterialParametersSize))
		mi.Images = readSeq(r, 8, func() ImageSamplerBinding {
			return ImageSamplerBinding{Image: r.u32(), Sampler: r.u32()}
		})
		return mi
	})
	b.Materials = readSeq(r, 37, func() Material {
		m := Material{
			Layout:       r.u32(),
			VertexStride: r.u32(),
		}
		m.Attributes = readSeq(r, 24, func() VertexAttribute {
			return VertexAttribute{
				Semantic: AttributeSemantic(r.u32()),
				Name:     r.str(),
				Location: r.u32(),
				Format:   Format(r.u32()),
				Offset:   r.u32(),
			}
		})
		m.AlphaTest = r.boolean()
		m.CullMode = CullMode(r.u32())
		m.Images = readSeq(r, 12, func() ImageBinding {
			return ImageBinding{Name: r.str(), UVChannel: r.u32()}
		})
		m.Defines = readSeq(r, 16, func() MacroDefinition {
			return MacroDefinition{Name: r.str(), Value: r.str()}
		})
		return m
	})
	b.Buckets = readSeq(r, 16, func() Bucket {
		bucket := Bucket{Material: r.u32()}
		bucket.Instances = readSeq(r, 32, func() Instance {
			inst := Instance{
				Mesh:               r.u32(),
				MaterialInstance:   r.u32(),
				TotalInstanceCount: r.u32(),
				TotalDrawCount:     r.u32(),
			}
			inst.Transforms = readSeq(r, math.Mat4Size, func() math.Mat4 {
				var m math.Mat4
				for i := range m {
					m[i] = r.f32()
				}
				return m
			})
			inst.Bounds = readSeq(r, 24, func() math.AABB {
				return math.AABB{Min: r.vec3(), Max: r.vec3()}
			})
			return inst
		})
		bucket.TransformBuffer = r.u32()
		return bucket
	})
	b.EnvironmentProbes = readSeq(r, 6, func() EnvironmentProbe {
		return EnvironmentProbe{Skybox: r.u32(), Iem: r.optional(), Pmrem: r.optional()}
	})
	b.BrdfLUT = r.optional()

	if err := r.finish(); err != nil {
		return nil, err
	}
	if err := b.Validate(); err != nil {
		return nil, bakeerr.Wrap(bakeerr.KindDecode, err, "validating bundle")
	}
	return b, nil
}

// EncodeShaders writes the shader stage bundle to w.
func EncodeShaders(w io.Writer, s *ShaderBundle) error {
	e := newWriter(w, 0)
	e.header(shaderMagic, shaderSchema)
	writeSeq(e, s.Pipelines, func(p *ShaderPipeline) {
		e.u32(uint32(p.Kind))
		e.str(p.Name)
		for _, stage := range p.Stages {
			e.words(stage)
		}
	})
	return e.flush()
}

// DecodeShaders reads a shader stage bundle and validates it.
func DecodeShaders(src io.Reader) (*ShaderBundle, error) {
	data, err := io.ReadAll(src)
	if err != nil {
		return nil, bakeerr.Wrap(bakeerr.KindIO, err, "reading shader bundle")
	}
	r := &reader{data: data}
	r.header(shaderMagic, shaderSchema)

	s := &ShaderBundle{}
	s.Pipelines = readSeq(r, 52, func() ShaderPipeline {
		p := ShaderPipeline{Kind: PipelineKind(r.u32()), Name: r.str()}
		for i := range p.Stages {
			p.Stages[i] = r.words()
		}
		return p
	})
	if err := r.finish(); err != nil {
		return nil, err
	}
	if err := s.Validate(); err != nil {
		return nil, bakeerr.Wrap(bakeerr.KindDecode, err, "validating shader bundle")
	}
	return s, nil
}
