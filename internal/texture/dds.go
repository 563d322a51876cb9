package texture

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// DDS container errors.
var (
	ErrInvalidDDSMagic   = errors.New("invalid DDS magic: expected 'DDS '")
	ErrTruncatedDDS      = errors.New("truncated DDS data")
	ErrUnsupportedDDS    = errors.New("unsupported DDS layout")
	ErrUnknownDXGIFormat = errors.New("unknown DXGI format")
)

// DXGIFormat is a DXGI_FORMAT value from the DX10 header.
type DXGIFormat uint32

const (
	DXGIFormatR8G8B8A8Unorm DXGIFormat = 28
	DXGIFormatR16G16Float   DXGIFormat = 34
	DXGIFormatBC4Unorm      DXGIFormat = 80
	DXGIFormatBC6HUF16      DXGIFormat = 95
	DXGIFormatBC7Unorm      DXGIFormat = 98
	DXGIFormatBC7UnormSrgb  DXGIFormat = 99
)

// String returns the name texconv uses for the format.
func (f DXGIFormat) String() string {
	switch f {
	case DXGIFormatR8G8B8A8Unorm:
		return "R8G8B8A8_UNORM"
	case DXGIFormatR16G16Float:
		return "R16G16_FLOAT"
	case DXGIFormatBC4Unorm:
		return "BC4_UNORM"
	case DXGIFormatBC6HUF16:
		return "BC6H_UF16"
	case DXGIFormatBC7Unorm:
		return "BC7_UNORM"
	case DXGIFormatBC7UnormSrgb:
		return "BC7_UNORM_SRGB"
	default:
		return fmt.Sprintf("DXGI_FORMAT(%d)", uint32(f))
	}
}

// BlockBytes returns the bytes per 4x4 block of a compressed format or per
// texel of an uncompressed one. Unknown formats return 0.
func (f DXGIFormat) BlockBytes() uint32 {
	switch f {
	case DXGIFormatBC4Unorm:
		return 8
	case DXGIFormatBC6HUF16, DXGIFormatBC7Unorm, DXGIFormatBC7UnormSrgb:
		return 16
	case DXGIFormatR8G8B8A8Unorm, DXGIFormatR16G16Float:
		return 4
	default:
		return 0
	}
}

// Compressed reports whether the format is 4x4 block compressed.
func (f DXGIFormat) Compressed() bool {
	switch f {
	case DXGIFormatBC4Unorm, DXGIFormatBC6HUF16, DXGIFormatBC7Unorm, DXGIFormatBC7UnormSrgb:
		return true
	default:
		return false
	}
}

const (
	ddsMagic = 0x20534444 // "DDS "

	ddsdCaps        = 0x1
	ddsdHeight      = 0x2
	ddsdWidth       = 0x4
	ddsdPixelFormat = 0x1000
	ddsdMipMapCount = 0x20000
	ddsdLinearSize  = 0x80000
	ddsdDepth       = 0x800000

	ddpfFourCC = 0x4
	fourCCDX10 = 0x30315844 // "DX10"

	ddscapsComplex = 0x8
	ddscapsTexture = 0x1000
	ddscapsMipMap  = 0x400000

	ddscaps2Cubemap    = 0x200
	ddscaps2AllFaces   = 0xFC00
	ddscaps2Volume     = 0x200000
	dx10MiscCube       = 0x4
	dimensionTexture1D = 2
	dimensionTexture2D = 3
	dimensionTexture3D = 4

	maxExtent    = 1 << 16
	maxArraySize = 2048
)

type ddsPixelFormat struct {
	Size        uint32
	Flags       uint32
	FourCC      uint32
	RGBBitCount uint32
	RBitMask    uint32
	GBitMask    uint32
	BBitMask    uint32
	ABitMask    uint32
}

type ddsHeader struct {
	Size              uint32
	Flags             uint32
	Height            uint32
	Width             uint32
	PitchOrLinearSize uint32
	Depth             uint32
	MipMapCount       uint32
	Reserved1         [11]uint32
	PixelFormat       ddsPixelFormat
	Caps              uint32
	Caps2             uint32
	Caps3             uint32
	Caps4             uint32
	Reserved2         uint32
}

type ddsHeaderDX10 struct {
	Format            uint32
	ResourceDimension uint32
	MiscFlag          uint32
	ArraySize         uint32
	MiscFlags2        uint32
}

// DDS is a parsed DX10 DDS texture. Data holds every array element (every
// face for cube maps), each with its full mip chain, tightly packed.
type DDS struct {
	Width     uint32
	Height    uint32
	Depth     uint32
	MipCount  uint32
	ArraySize uint32
	Cube      bool
	Format    DXGIFormat
	Data      []byte
}

// Layers is the number of 2D layers: ArraySize, times 6 for cube maps.
func (d *DDS) Layers() uint32 {
	if d.Cube {
		return d.ArraySize * 6
	}
	return d.ArraySize
}

func mipExtent(v, mip uint32) uint32 {
	v >>= mip
	if v == 0 {
		return 1
	}
	return v
}

// MipSize returns the byte size of one mip level of one layer.
func MipSize(format DXGIFormat, width, height, depth, mip uint32) uint64 {
	w := uint64(mipExtent(width, mip))
	h := uint64(mipExtent(height, mip))
	d := uint64(mipExtent(depth, mip))
	if format.Compressed() {
		w = (w + 3) / 4
		h = (h + 3) / 4
	}
	return w * h * d * uint64(format.BlockBytes())
}

// DataSize is the expected size of the pixel payload.
func (d *DDS) DataSize() uint64 {
	var layer uint64
	for mip := uint32(0); mip < d.MipCount; mip++ {
		layer += MipSize(d.Format, d.Width, d.Height, d.Depth, mip)
	}
	return layer * uint64(d.Layers())
}

// ParseDDS parses a DDS file with a DX10 extended header.
func ParseDDS(data []byte) (*DDS, error) {
	if len(data) < 4 {
		return nil, ErrTruncatedDDS
	}
	if binary.LittleEndian.Uint32(data) != ddsMagic {
		return nil, ErrInvalidDDSMagic
	}

	r := bytes.NewReader(data[4:])
	var hdr ddsHeader
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return nil, fmt.Errorf("%w: reading header", ErrTruncatedDDS)
	}
	if hdr.Size != 124 || hdr.PixelFormat.Size != 32 {
		return nil, fmt.Errorf("%w: header size %d", ErrUnsupportedDDS, hdr.Size)
	}
	if hdr.PixelFormat.Flags&ddpfFourCC == 0 || hdr.PixelFormat.FourCC != fourCCDX10 {
		return nil, fmt.Errorf("%w: missing DX10 header", ErrUnsupportedDDS)
	}

	var dx10 ddsHeaderDX10
	if err := binary.Read(r, binary.LittleEndian, &dx10); err != nil {
		return nil, fmt.Errorf("%w: reading DX10 header", ErrTruncatedDDS)
	}

	dds := &DDS{
		Width:     hdr.Width,
		Height:    hdr.Height,
		Depth:     1,
		MipCount:  1,
		ArraySize: dx10.ArraySize,
		Cube:      dx10.MiscFlag&dx10MiscCube != 0,
		Format:    DXGIFormat(dx10.Format),
	}
	if dds.Format.BlockBytes() == 0 {
		return nil, fmt.Errorf("%w: %d", ErrUnknownDXGIFormat, dx10.Format)
	}
	if dx10.ResourceDimension == dimensionTexture3D && hdr.Depth > 1 {
		dds.Depth = hdr.Depth
	}
	if hdr.MipMapCount > 1 {
		dds.MipCount = hdr.MipMapCount
	}
	if dds.ArraySize == 0 {
		dds.ArraySize = 1
	}
	if dds.Width == 0 || dds.Height == 0 || dds.Width > maxExtent || dds.Height > maxExtent || dds.Depth > maxExtent {
		return nil, fmt.Errorf("%w: %dx%dx%d", ErrUnsupportedDDS, dds.Width, dds.Height, dds.Depth)
	}
	if dds.ArraySize > maxArraySize {
		return nil, fmt.Errorf("%w: array size %d", ErrUnsupportedDDS, dds.ArraySize)
	}
	if dds.MipCount > 32 {
		return nil, fmt.Errorf("%w: %d mips", ErrUnsupportedDDS, dds.MipCount)
	}

	size := dds.DataSize()
	if uint64(r.Len()) < size {
		return nil, fmt.Errorf("%w: need %d pixel bytes, have %d", ErrTruncatedDDS, size, r.Len())
	}
	dds.Data = make([]byte, size)
	if _, err := io.ReadFull(r, dds.Data); err != nil {
		return nil, fmt.Errorf("%w: reading pixels", ErrTruncatedDDS)
	}
	return dds, nil
}

// WriteDDS writes d as a DX10 DDS file.
func WriteDDS(w io.Writer, d *DDS) error {
	if d.Format.BlockBytes() == 0 {
		return fmt.Errorf("%w: %d", ErrUnknownDXGIFormat, uint32(d.Format))
	}
	if uint64(len(d.Data)) != d.DataSize() {
		return fmt.Errorf("%w: payload is %d bytes, layout needs %d", ErrUnsupportedDDS, len(d.Data), d.DataSize())
	}

	hdr := ddsHeader{
		Size:        124,
		Flags:       ddsdCaps | ddsdHeight | ddsdWidth | ddsdPixelFormat | ddsdMipMapCount,
		Height:      d.Height,
		Width:       d.Width,
		Depth:       d.Depth,
		MipMapCount: d.MipCount,
		PixelFormat: ddsPixelFormat{Size: 32, Flags: ddpfFourCC, FourCC: fourCCDX10},
		Caps:        ddscapsTexture,
	}
	if d.Format.Compressed() {
		hdr.Flags |= ddsdLinearSize
		hdr.PitchOrLinearSize = uint32(MipSize(d.Format, d.Width, d.Height, 1, 0))
	} else {
		hdr.PitchOrLinearSize = d.Width * d.Format.BlockBytes()
	}
	if d.MipCount > 1 {
		hdr.Caps |= ddscapsMipMap | ddscapsComplex
	}

	dx10 := ddsHeaderDX10{
		Format:            uint32(d.Format),
		ResourceDimension: dimensionTexture2D,
		ArraySize:         d.ArraySize,
	}
	switch {
	case d.Cube:
		hdr.Caps |= ddscapsComplex
		hdr.Caps2 = ddscaps2Cubemap | ddscaps2AllFaces
		dx10.MiscFlag = dx10MiscCube
	case d.Depth > 1:
		hdr.Flags |= ddsdDepth
		hdr.Caps |= ddscapsComplex
		hdr.Caps2 = ddscaps2Volume
		dx10.ResourceDimension = dimensionTexture3D
	case d.Height == 1:
		dx10.ResourceDimension = dimensionTexture1D
	}

	if err := binary.Write(w, binary.LittleEndian, uint32(ddsMagic)); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, &hdr); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, &dx10); err != nil {
		return err
	}
	_, err := w.Write(d.Data)
	return err
}
