// Package texture turns source images into GPU-ready block-compressed images.
//
// Conversion is delegated to an external compressor (texconv). Its DDS
// output is cached in the scratch directory and reused while it is newer
// than the source image.
package texture

import (
	"fmt"

	"github.com/bazhenovc/malwerks-sub001/pkg/bundle"
)

// Usage is the semantic role of an image. It fixes the target format,
// block size, cube-ness and mip policy.
type Usage int

const (
	SrgbColor Usage = iota
	MetallicRoughnessMap
	NormalMap
	AmbientOcclusionMap
	EnvironmentSkybox
	EnvironmentIem
	EnvironmentPmrem
	EnvironmentBrdf
)

// MipPolicy selects how many mips the compressor generates.
type MipPolicy int

const (
	FullChain MipPolicy = iota
	SingleMip
	PreserveSource
)

type usageInfo struct {
	name       string
	format     bundle.Format
	dxgi       DXGIFormat
	blockBytes uint32
	cube       bool
	mips       MipPolicy
}

// R16G16 is not block compressed; its "block" is one 4-byte texel.
var usages = [...]usageInfo{
	SrgbColor:            {"srgb_color", bundle.FormatBC7SrgbBlock, DXGIFormatBC7UnormSrgb, 16, false, FullChain},
	MetallicRoughnessMap: {"metallic_roughness", bundle.FormatBC7UnormBlock, DXGIFormatBC7Unorm, 16, false, FullChain},
	NormalMap:            {"normal", bundle.FormatBC7UnormBlock, DXGIFormatBC7Unorm, 16, false, FullChain},
	AmbientOcclusionMap:  {"occlusion", bundle.FormatBC4UnormBlock, DXGIFormatBC4Unorm, 8, false, FullChain},
	EnvironmentSkybox:    {"skybox", bundle.FormatBC7SrgbBlock, DXGIFormatBC7UnormSrgb, 16, true, FullChain},
	EnvironmentIem:       {"iem", bundle.FormatBC6HUfloatBlock, DXGIFormatBC6HUF16, 16, true, SingleMip},
	EnvironmentPmrem:     {"pmrem", bundle.FormatBC6HUfloatBlock, DXGIFormatBC6HUF16, 16, true, PreserveSource},
	EnvironmentBrdf:      {"brdf", bundle.FormatR16G16Sfloat, DXGIFormatR16G16Float, 4, false, SingleMip},
}

func (u Usage) info() usageInfo {
	if u < 0 || int(u) >= len(usages) {
		panic(fmt.Sprintf("texture: invalid usage %d", int(u)))
	}
	return usages[u]
}

func (u Usage) String() string {
	if u < 0 || int(u) >= len(usages) {
		return fmt.Sprintf("Usage(%d)", int(u))
	}
	return usages[u].name
}

// Format is the bundle format images of this usage are stored in.
func (u Usage) Format() bundle.Format { return u.info().format }

// DXGI is the container format the compressor must produce.
func (u Usage) DXGI() DXGIFormat { return u.info().dxgi }

// BlockBytes is the size of one compressed block (or texel) in bytes.
func (u Usage) BlockBytes() uint32 { return u.info().blockBytes }

// Cube reports whether images of this usage are cube maps.
func (u Usage) Cube() bool { return u.info().cube }

// Mips is the mip policy of the usage.
func (u Usage) Mips() MipPolicy { return u.info().mips }
