// Package material folds source PBR materials into shared layouts, material
// definitions and per-material instances.
package material

import (
	"encoding/binary"
	"fmt"
	stdmath "math"
	"strings"

	"go.uber.org/zap"

	"github.com/bazhenovc/malwerks-sub001/pkg/bundle"
)

// Slot is a texture slot of the PBR metallic-roughness model.
type Slot int

const (
	SlotBaseColor Slot = iota
	SlotMetallicRoughness
	SlotNormal
	SlotOcclusion
	SlotEmissive
	SlotCount
)

var slotNames = [SlotCount]string{"base_color", "metallic_roughness", "normal", "occlusion", "emissive"}

func (s Slot) String() string {
	if s < 0 || s >= SlotCount {
		return fmt.Sprintf("Slot(%d)", int(s))
	}
	return slotNames[s]
}

// AlphaMode is how a material's alpha channel is interpreted.
type AlphaMode int

const (
	AlphaOpaque AlphaMode = iota
	AlphaMask
	AlphaBlend
)

// TextureRef points at a source texture.
type TextureRef struct {
	Texture   int
	UVChannel uint32
}

// Source is one material as authored.
type Source struct {
	Name        string
	BaseColor   [4]float32
	Metallic    float32
	Roughness   float32
	AlphaCutoff float32
	Emissive    [3]float32
	Textures    [SlotCount]*TextureRef
	AlphaMode   AlphaMode
	DoubleSided bool
}

// DefaultSource returns the glTF default material.
func DefaultSource() Source {
	return Source{
		Name:        "default",
		BaseColor:   [4]float32{1, 1, 1, 1},
		Metallic:    1,
		Roughness:   1,
		AlphaCutoff: 0.5,
	}
}

// SlotCount returns the number of bound texture slots.
func (s Source) SlotCount() uint32 {
	var n uint32
	for _, t := range s.Textures {
		if t != nil {
			n++
		}
	}
	return n
}

// Parameters packs the 64-byte parameter block as four 16-byte lanes:
// base color, (metallic, roughness, alpha cutoff, 0), (emissive, 0), zeros.
func (s Source) Parameters() [bundle.MaterialParametersSize]byte {
	lanes := [16]float32{
		s.BaseColor[0], s.BaseColor[1], s.BaseColor[2], s.BaseColor[3],
		s.Metallic, s.Roughness, s.AlphaCutoff, 0,
		s.Emissive[0], s.Emissive[1], s.Emissive[2], 0,
	}
	var out [bundle.MaterialParametersSize]byte
	for i, f := range lanes {
		binary.LittleEndian.PutUint32(out[i*4:], stdmath.Float32bits(f))
	}
	return out
}

// VertexFormat is the interleaved vertex layout of a primitive.
type VertexFormat struct {
	Stride     uint32
	Attributes []bundle.VertexAttribute
}

// Resolver maps a source texture to its bundle image and sampler.
type Resolver func(slot Slot, ref TextureRef) bundle.ImageSamplerBinding

// Deduplicator appends layouts, instances and definitions to a bundle under
// construction, reusing existing entries where they are equal.
type Deduplicator struct {
	b         *bundle.Bundle
	log       *zap.Logger
	layouts   map[uint32]uint32
	materials map[string]uint32
}

// NewDeduplicator returns a deduplicator appending to b.
func NewDeduplicator(b *bundle.Bundle, log *zap.Logger) *Deduplicator {
	if log == nil {
		log = zap.NewNop()
	}
	d := &Deduplicator{
		b:         b,
		log:       log,
		layouts:   make(map[uint32]uint32),
		materials: make(map[string]uint32),
	}
	for i, l := range b.MaterialLayouts {
		if _, ok := d.layouts[l.ImageSlotCount]; !ok {
			d.layouts[l.ImageSlotCount] = uint32(i)
		}
	}
	for i := range b.Materials {
		key := materialKey(&b.Materials[i])
		if _, ok := d.materials[key]; !ok {
			d.materials[key] = uint32(i)
		}
	}
	return d
}

// Layout returns the layout for the given slot count, appending it on first use.
func (d *Deduplicator) Layout(slotCount uint32) uint32 {
	if idx, ok := d.layouts[slotCount]; ok {
		return idx
	}
	idx := uint32(len(d.b.MaterialLayouts))
	d.b.MaterialLayouts = append(d.b.MaterialLayouts, bundle.MaterialLayout{ImageSlotCount: slotCount})
	d.layouts[slotCount] = idx
	d.log.Debug("material layout", zap.Uint32("index", idx), zap.Uint32("slots", slotCount))
	return idx
}

// AddInstance appends the instance of src. Instances are never shared.
func (d *Deduplicator) AddInstance(src Source, resolve Resolver) uint32 {
	mi := bundle.MaterialInstance{
		Layout:     d.Layout(src.SlotCount()),
		Parameters: src.Parameters(),
	}
	for slot, ref := range src.Textures {
		if ref != nil {
			mi.Images = append(mi.Images, resolve(Slot(slot), *ref))
		}
	}
	idx := uint32(len(d.b.MaterialInstances))
	d.b.MaterialInstances = append(d.b.MaterialInstances, mi)
	return idx
}

// Definition returns the material definition drawing src with the given
// vertex format, appending it unless an equal one exists. Generated defines
// come first, followed by extra in order.
func (d *Deduplicator) Definition(src Source, format VertexFormat, extra []bundle.MacroDefinition) uint32 {
	m := bundle.Material{
		Layout:       d.Layout(src.SlotCount()),
		VertexStride: format.Stride,
		Attributes:   append([]bundle.VertexAttribute(nil), format.Attributes...),
		AlphaTest:    src.AlphaMode == AlphaMask,
		CullMode:     bundle.CullModeBack,
	}
	if src.DoubleSided {
		m.CullMode = bundle.CullModeNone
	}
	for _, a := range format.Attributes {
		m.Defines = append(m.Defines, bundle.MacroDefinition{Name: "HAS_" + macroName(a.Name), Value: "1"})
	}
	for slot, ref := range src.Textures {
		if ref == nil {
			continue
		}
		m.Images = append(m.Images, bundle.ImageBinding{Name: Slot(slot).String(), UVChannel: ref.UVChannel})
		m.Defines = append(m.Defines, bundle.MacroDefinition{Name: "HAS_" + macroName(Slot(slot).String()) + "_TEXTURE", Value: "1"})
	}
	if m.AlphaTest {
		m.Defines = append(m.Defines, bundle.MacroDefinition{Name: "ALPHA_TEST", Value: "1"})
	}
	m.Defines = append(m.Defines, extra...)

	key := materialKey(&m)
	if idx, ok := d.materials[key]; ok {
		return idx
	}
	idx := uint32(len(d.b.Materials))
	d.b.Materials = append(d.b.Materials, m)
	d.materials[key] = idx
	d.log.Debug("material definition",
		zap.Uint32("index", idx),
		zap.String("source", src.Name),
		zap.Uint32("layout", m.Layout),
		zap.Bool("alpha_test", m.AlphaTest),
		zap.Stringer("cull", m.CullMode))
	return idx
}

// materialKey is equal for structurally equal definitions. Empty and nil
// lists compare equal.
func materialKey(m *bundle.Material) string {
	k := *m
	if len(k.Attributes) == 0 {
		k.Attributes = nil
	}
	if len(k.Images) == 0 {
		k.Images = nil
	}
	if len(k.Defines) == 0 {
		k.Defines = nil
	}
	return fmt.Sprintf("%#v", k)
}

func macroName(s string) string {
	return strings.ToUpper(strings.NewReplacer(" ", "_", "-", "_", ".", "_").Replace(s))
}
