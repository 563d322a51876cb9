package bundle

import "fmt"

// Enumerations below are persisted as plain integers. The values are the raw
// Vulkan enum values so a loader can cast them without a lookup table.

// Format is a VkFormat value.
type Format uint32

const (
	FormatUndefined          Format = 0
	FormatR8G8B8A8Unorm      Format = 37
	FormatR16G16Sfloat       Format = 83
	FormatR32G32Sfloat       Format = 103
	FormatR32G32B32Sfloat    Format = 106
	FormatR32G32B32A32Sfloat Format = 109
	FormatBC4UnormBlock      Format = 139
	FormatBC6HUfloatBlock    Format = 143
	FormatBC7UnormBlock      Format = 145
	FormatBC7SrgbBlock       Format = 146
)

// String returns a human-readable format name.
func (f Format) String() string {
	switch f {
	case FormatUndefined:
		return "UNDEFINED"
	case FormatR8G8B8A8Unorm:
		return "R8G8B8A8_UNORM"
	case FormatR16G16Sfloat:
		return "R16G16_SFLOAT"
	case FormatR32G32Sfloat:
		return "R32G32_SFLOAT"
	case FormatR32G32B32Sfloat:
		return "R32G32B32_SFLOAT"
	case FormatR32G32B32A32Sfloat:
		return "R32G32B32A32_SFLOAT"
	case FormatBC4UnormBlock:
		return "BC4_UNORM_BLOCK"
	case FormatBC6HUfloatBlock:
		return "BC6H_UFLOAT_BLOCK"
	case FormatBC7UnormBlock:
		return "BC7_UNORM_BLOCK"
	case FormatBC7SrgbBlock:
		return "BC7_SRGB_BLOCK"
	default:
		return fmt.Sprintf("Format(%d)", uint32(f))
	}
}

// Size returns the byte size of one element of an uncompressed format, or
// the block size of a block-compressed one. Unknown formats return 0.
func (f Format) Size() uint32 {
	switch f {
	case FormatR8G8B8A8Unorm, FormatR16G16Sfloat:
		return 4
	case FormatR32G32Sfloat:
		return 8
	case FormatR32G32B32Sfloat:
		return 12
	case FormatR32G32B32A32Sfloat:
		return 16
	case FormatBC4UnormBlock:
		return 8
	case FormatBC6HUfloatBlock, FormatBC7UnormBlock, FormatBC7SrgbBlock:
		return 16
	default:
		return 0
	}
}

// Compressed reports whether f is a 4x4 block-compressed format.
func (f Format) Compressed() bool {
	switch f {
	case FormatBC4UnormBlock, FormatBC6HUfloatBlock, FormatBC7UnormBlock, FormatBC7SrgbBlock:
		return true
	default:
		return false
	}
}

// Filter is a VkFilter value.
type Filter uint32

const (
	FilterNearest Filter = 0
	FilterLinear  Filter = 1
)

func (f Filter) String() string {
	switch f {
	case FilterNearest:
		return "NEAREST"
	case FilterLinear:
		return "LINEAR"
	default:
		return fmt.Sprintf("Filter(%d)", uint32(f))
	}
}

// MipmapMode is a VkSamplerMipmapMode value.
type MipmapMode uint32

const (
	MipmapModeNearest MipmapMode = 0
	MipmapModeLinear  MipmapMode = 1
)

func (m MipmapMode) String() string {
	switch m {
	case MipmapModeNearest:
		return "NEAREST"
	case MipmapModeLinear:
		return "LINEAR"
	default:
		return fmt.Sprintf("MipmapMode(%d)", uint32(m))
	}
}

// AddressMode is a VkSamplerAddressMode value.
type AddressMode uint32

const (
	AddressModeRepeat         AddressMode = 0
	AddressModeMirroredRepeat AddressMode = 1
	AddressModeClampToEdge    AddressMode = 2
)

func (a AddressMode) String() string {
	switch a {
	case AddressModeRepeat:
		return "REPEAT"
	case AddressModeMirroredRepeat:
		return "MIRRORED_REPEAT"
	case AddressModeClampToEdge:
		return "CLAMP_TO_EDGE"
	default:
		return fmt.Sprintf("AddressMode(%d)", uint32(a))
	}
}

// ImageKind is a VkImageType value.
type ImageKind uint32

const (
	ImageKind1D ImageKind = 0
	ImageKind2D ImageKind = 1
	ImageKind3D ImageKind = 2
)

func (k ImageKind) String() string {
	switch k {
	case ImageKind1D:
		return "1D"
	case ImageKind2D:
		return "2D"
	case ImageKind3D:
		return "3D"
	default:
		return fmt.Sprintf("ImageKind(%d)", uint32(k))
	}
}

// ImageViewKind is a VkImageViewType value.
type ImageViewKind uint32

const (
	ImageViewKind1D   ImageViewKind = 0
	ImageViewKind2D   ImageViewKind = 1
	ImageViewKind3D   ImageViewKind = 2
	ImageViewKindCube ImageViewKind = 3
)

func (k ImageViewKind) String() string {
	switch k {
	case ImageViewKind1D:
		return "1D"
	case ImageViewKind2D:
		return "2D"
	case ImageViewKind3D:
		return "3D"
	case ImageViewKindCube:
		return "CUBE"
	default:
		return fmt.Sprintf("ImageViewKind(%d)", uint32(k))
	}
}

// IndexType is a VkIndexType value.
type IndexType uint32

const (
	IndexTypeUint16 IndexType = 0
	IndexTypeUint32 IndexType = 1
)

// Size returns the byte width of one index.
func (t IndexType) Size() uint32 {
	if t == IndexTypeUint32 {
		return 4
	}
	return 2
}

// CullMode is a VkCullModeFlags value.
type CullMode uint32

const (
	CullModeNone CullMode = 0
	CullModeBack CullMode = 2
)

func (c CullMode) String() string {
	switch c {
	case CullModeNone:
		return "NONE"
	case CullModeBack:
		return "BACK"
	default:
		return fmt.Sprintf("CullMode(%d)", uint32(c))
	}
}

// BufferUsage is a VkBufferUsageFlags bit set.
type BufferUsage uint32

const (
	BufferUsageTransferDst BufferUsage = 0x00000002
	BufferUsageStorage     BufferUsage = 0x00000020
	BufferUsageIndex       BufferUsage = 0x00000040
	BufferUsageVertex      BufferUsage = 0x00000080
)

// AttributeSemantic classifies a vertex attribute.
type AttributeSemantic uint32

const (
	SemanticPosition AttributeSemantic = iota
	SemanticNormal
	SemanticTangent
	SemanticInterpolated
)

func (s AttributeSemantic) String() string {
	switch s {
	case SemanticPosition:
		return "Position"
	case SemanticNormal:
		return "Normal"
	case SemanticTangent:
		return "Tangent"
	case SemanticInterpolated:
		return "Interpolated"
	default:
		return fmt.Sprintf("AttributeSemantic(%d)", uint32(s))
	}
}

// PipelineKind tags a ShaderPipeline variant.
type PipelineKind uint32

const (
	PipelineMaterial PipelineKind = iota
	PipelineRayTracing
	PipelineCompute
)

func (k PipelineKind) String() string {
	switch k {
	case PipelineMaterial:
		return "Material"
	case PipelineRayTracing:
		return "RayTracing"
	case PipelineCompute:
		return "Compute"
	default:
		return fmt.Sprintf("PipelineKind(%d)", uint32(k))
	}
}
