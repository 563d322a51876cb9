package texture

import (
	"bytes"
	"errors"
	"testing"
)

func solidDDS(format DXGIFormat, width, height, mips, arraySize uint32, cube bool) *DDS {
	d := &DDS{
		Width:     width,
		Height:    height,
		Depth:     1,
		MipCount:  mips,
		ArraySize: arraySize,
		Cube:      cube,
		Format:    format,
	}
	d.Data = make([]byte, d.DataSize())
	for i := range d.Data {
		d.Data[i] = byte(i * 7)
	}
	return d
}

func TestMipSize(t *testing.T) {
	tests := []struct {
		name   string
		format DXGIFormat
		w, h   uint32
		mip    uint32
		want   uint64
	}{
		{"bc7 base", DXGIFormatBC7Unorm, 256, 256, 0, 64 * 64 * 16},
		{"bc7 tail", DXGIFormatBC7Unorm, 256, 256, 8, 16},
		{"bc4 non multiple of four", DXGIFormatBC4Unorm, 6, 6, 0, 2 * 2 * 8},
		{"r16g16 base", DXGIFormatR16G16Float, 32, 16, 0, 32 * 16 * 4},
		{"r16g16 mip", DXGIFormatR16G16Float, 32, 16, 2, 8 * 4 * 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MipSize(tt.format, tt.w, tt.h, 1, tt.mip); got != tt.want {
				t.Errorf("MipSize() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestDDSRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		dds  *DDS
	}{
		{"bc7 2d", solidDDS(DXGIFormatBC7UnormSrgb, 64, 32, 7, 1, false)},
		{"bc6h cube", solidDDS(DXGIFormatBC6HUF16, 16, 16, 5, 1, true)},
		{"bc4 single mip", solidDDS(DXGIFormatBC4Unorm, 8, 8, 1, 1, false)},
		{"r16g16", solidDDS(DXGIFormatR16G16Float, 4, 4, 1, 1, false)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := WriteDDS(&buf, tt.dds); err != nil {
				t.Fatalf("WriteDDS: %v", err)
			}
			got, err := ParseDDS(buf.Bytes())
			if err != nil {
				t.Fatalf("ParseDDS: %v", err)
			}
			if got.Width != tt.dds.Width || got.Height != tt.dds.Height || got.MipCount != tt.dds.MipCount {
				t.Errorf("dimensions %dx%d/%d, want %dx%d/%d",
					got.Width, got.Height, got.MipCount, tt.dds.Width, tt.dds.Height, tt.dds.MipCount)
			}
			if got.Cube != tt.dds.Cube || got.Layers() != tt.dds.Layers() {
				t.Errorf("cube %t layers %d, want %t %d", got.Cube, got.Layers(), tt.dds.Cube, tt.dds.Layers())
			}
			if got.Format != tt.dds.Format {
				t.Errorf("format %s, want %s", got.Format, tt.dds.Format)
			}
			if !bytes.Equal(got.Data, tt.dds.Data) {
				t.Error("pixel data differs")
			}
		})
	}
}

func TestParseDDSErrors(t *testing.T) {
	var valid bytes.Buffer
	if err := WriteDDS(&valid, solidDDS(DXGIFormatBC7Unorm, 16, 16, 1, 1, false)); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"empty", nil, ErrTruncatedDDS},
		{"bad magic", append([]byte("PNG "), valid.Bytes()[4:]...), ErrInvalidDDSMagic},
		{"short header", valid.Bytes()[:64], ErrTruncatedDDS},
		{"short pixels", valid.Bytes()[:valid.Len()-1], ErrTruncatedDDS},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseDDS(tt.data)
			if !errors.Is(err, tt.want) {
				t.Errorf("ParseDDS() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestWriteDDSRejectsWrongPayload(t *testing.T) {
	d := solidDDS(DXGIFormatBC7Unorm, 16, 16, 1, 1, false)
	d.Data = d.Data[:10]
	if err := WriteDDS(&bytes.Buffer{}, d); !errors.Is(err, ErrUnsupportedDDS) {
		t.Errorf("WriteDDS() error = %v, want ErrUnsupportedDDS", err)
	}
}
