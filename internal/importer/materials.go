package importer

import (
	"strconv"

	"github.com/qmuntal/gltf"
	"go.uber.org/zap"

	"github.com/bazhenovc/malwerks-sub001/internal/material"
	"github.com/bazhenovc/malwerks-sub001/internal/texture"
	"github.com/bazhenovc/malwerks-sub001/pkg/bakeerr"
	"github.com/bazhenovc/malwerks-sub001/pkg/bundle"
)

// slotUsages maps texture slots to the usage their images are converted for.
var slotUsages = [material.SlotCount]texture.Usage{
	material.SlotBaseColor:         texture.SrgbColor,
	material.SlotMetallicRoughness: texture.MetallicRoughnessMap,
	material.SlotNormal:            texture.NormalMap,
	material.SlotOcclusion:         texture.AmbientOcclusionMap,
	material.SlotEmissive:          texture.SrgbColor,
}

type imageKey struct {
	image uint32 // glTF image
	usage texture.Usage
}

// imagePlan lists the images to convert, in first-reference order. An
// image's position in the plan is its bundle index.
type imagePlan struct {
	keys  []imageKey
	index map[imageKey]uint32
}

func (p *imagePlan) add(key imageKey) uint32 {
	if idx, ok := p.index[key]; ok {
		return idx
	}
	idx := uint32(len(p.keys))
	p.keys = append(p.keys, key)
	p.index[key] = idx
	return idx
}

// samplerPlan deduplicates glTF samplers by their full state.
type samplerPlan struct {
	samplers []bundle.Sampler
	index    map[bundle.Sampler]uint32
}

func (p *samplerPlan) add(s bundle.Sampler) uint32 {
	if idx, ok := p.index[s]; ok {
		return idx
	}
	idx := uint32(len(p.samplers))
	p.samplers = append(p.samplers, s)
	p.index[s] = idx
	return idx
}

// importMaterials appends one material instance per glTF material, plus a
// default one when some primitive has no material.
func (r *run) importMaterials() error {
	log := r.imp.log.Named(StageMaterials)
	for i, m := range r.doc.Materials {
		src := materialSource(m)
		bindings, err := r.planBindings(&src)
		if err != nil {
			return &StageError{Stage: StageMaterials, Asset: materialName(i, m), Err: err}
		}
		idx := r.dedup.AddInstance(src, func(slot material.Slot, _ material.TextureRef) bundle.ImageSamplerBinding {
			return bindings[slot]
		})
		r.sources = append(r.sources, src)
		r.instances = append(r.instances, idx)
		log.Debug("material instance",
			zap.String("material", materialName(i, m)),
			zap.Uint32("instance", idx),
			zap.Uint32("slots", src.SlotCount()))
	}

	if r.needsFallback() {
		src := material.DefaultSource()
		src.Name = "default"
		idx := r.dedup.AddInstance(src, nil)
		r.fallback = &idx
		log.Debug("default material instance", zap.Uint32("instance", idx))
	}
	return nil
}

func (r *run) needsFallback() bool {
	for _, mesh := range r.doc.Meshes {
		for _, p := range mesh.Primitives {
			if p.Material == nil {
				return true
			}
		}
	}
	return false
}

// materialFor returns the source and instance a primitive is drawn with.
func (r *run) materialFor(p *gltf.Primitive) (material.Source, uint32, error) {
	if p.Material == nil {
		if r.fallback == nil {
			return material.Source{}, 0, bakeerr.New(bakeerr.KindInvariantViolation, "no default material instance")
		}
		src := material.DefaultSource()
		src.Name = "default"
		return src, *r.fallback, nil
	}
	idx := *p.Material
	if int(idx) >= len(r.sources) {
		return material.Source{}, 0, bakeerr.New(bakeerr.KindInvariantViolation, "material %d out of range", idx)
	}
	return r.sources[idx], r.instances[idx], nil
}

func materialSource(m *gltf.Material) material.Source {
	src := material.DefaultSource()
	src.Name = m.Name
	src.AlphaCutoff = m.AlphaCutoffOrDefault()
	src.Emissive = m.EmissiveFactor
	src.DoubleSided = m.DoubleSided
	switch m.AlphaMode {
	case gltf.AlphaMask:
		src.AlphaMode = material.AlphaMask
	case gltf.AlphaBlend:
		src.AlphaMode = material.AlphaBlend
	default:
		src.AlphaMode = material.AlphaOpaque
	}

	if pbr := m.PBRMetallicRoughness; pbr != nil {
		src.BaseColor = pbr.BaseColorFactorOrDefault()
		src.Metallic = pbr.MetallicFactorOrDefault()
		src.Roughness = pbr.RoughnessFactorOrDefault()
		if t := pbr.BaseColorTexture; t != nil {
			src.Textures[material.SlotBaseColor] = &material.TextureRef{Texture: int(t.Index), UVChannel: t.TexCoord}
		}
		if t := pbr.MetallicRoughnessTexture; t != nil {
			src.Textures[material.SlotMetallicRoughness] = &material.TextureRef{Texture: int(t.Index), UVChannel: t.TexCoord}
		}
	}
	if t := m.NormalTexture; t != nil && t.Index != nil {
		src.Textures[material.SlotNormal] = &material.TextureRef{Texture: int(*t.Index), UVChannel: t.TexCoord}
	}
	if t := m.OcclusionTexture; t != nil && t.Index != nil {
		src.Textures[material.SlotOcclusion] = &material.TextureRef{Texture: int(*t.Index), UVChannel: t.TexCoord}
	}
	if t := m.EmissiveTexture; t != nil {
		src.Textures[material.SlotEmissive] = &material.TextureRef{Texture: int(t.Index), UVChannel: t.TexCoord}
	}
	return src
}

// planBindings resolves every texture of src to a planned image and sampler.
func (r *run) planBindings(src *material.Source) ([material.SlotCount]bundle.ImageSamplerBinding, error) {
	var out [material.SlotCount]bundle.ImageSamplerBinding
	for slot, ref := range src.Textures {
		if ref == nil {
			continue
		}
		if ref.Texture < 0 || ref.Texture >= len(r.doc.Textures) {
			return out, bakeerr.New(bakeerr.KindInvariantViolation, "%s texture %d out of range", material.Slot(slot), ref.Texture)
		}
		tex := r.doc.Textures[ref.Texture]
		if tex.Source == nil {
			return out, bakeerr.New(bakeerr.KindUnsupportedFormat, "%s texture %d has no image source", material.Slot(slot), ref.Texture)
		}
		if int(*tex.Source) >= len(r.doc.Images) {
			return out, bakeerr.New(bakeerr.KindInvariantViolation, "texture %d image %d out of range", ref.Texture, *tex.Source)
		}
		binding := bundle.ImageSamplerBinding{
			Image: r.images.add(imageKey{image: *tex.Source, usage: slotUsages[slot]}),
		}
		if tex.Sampler != nil {
			if int(*tex.Sampler) >= len(r.doc.Samplers) {
				return out, bakeerr.New(bakeerr.KindInvariantViolation, "texture %d sampler %d out of range", ref.Texture, *tex.Sampler)
			}
			binding.Sampler = r.samplers.add(convertSampler(r.doc.Samplers[*tex.Sampler]))
		}
		out[slot] = binding
	}
	return out, nil
}

// convertSampler maps glTF sampler state to the bundle's. Unset filters are
// linear and unset wraps repeat.
func convertSampler(s *gltf.Sampler) bundle.Sampler {
	out := bundle.DefaultSampler()
	if s.MagFilter == gltf.MagNearest {
		out.MagFilter = bundle.FilterNearest
	}
	switch s.MinFilter {
	case gltf.MinNearest:
		out.MinFilter = bundle.FilterNearest
	case gltf.MinNearestMipMapNearest:
		out.MinFilter, out.MipMode = bundle.FilterNearest, bundle.MipmapModeNearest
	case gltf.MinNearestMipMapLinear:
		out.MinFilter = bundle.FilterNearest
	case gltf.MinLinearMipMapNearest:
		out.MipMode = bundle.MipmapModeNearest
	}
	out.WrapU = convertWrap(s.WrapS)
	out.WrapV = convertWrap(s.WrapT)
	return out
}

func convertWrap(w gltf.WrappingMode) bundle.AddressMode {
	switch w {
	case gltf.WrapClampToEdge:
		return bundle.AddressModeClampToEdge
	case gltf.WrapMirroredRepeat:
		return bundle.AddressModeMirroredRepeat
	default:
		return bundle.AddressModeRepeat
	}
}

func materialName(i int, m *gltf.Material) string {
	if m != nil && m.Name != "" {
		return m.Name
	}
	return "material " + strconv.Itoa(i)
}
