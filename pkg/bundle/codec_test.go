package bundle

import (
	"bytes"
	"encoding/binary"
	"errors"
	stdmath "math"
	"reflect"
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/pierrec/lz4/v4"

	"github.com/bazhenovc/malwerks-sub001/pkg/bakeerr"
	"github.com/bazhenovc/malwerks-sub001/pkg/math"
)

// sampleBundle returns a small bundle satisfying every structural invariant.
func sampleBundle() *Bundle {
	vertices := make([]byte, 0, 36)
	for _, v := range []float32{0, 0, 0, 1, 0, 0, 0, 1, 0} {
		vertices = binary.LittleEndian.AppendUint32(vertices, stdmath.Float32bits(v))
	}
	indices := []byte{0, 0, 1, 0, 2, 0}
	transform := math.Translate(1, 2, 3)

	var params [MaterialParametersSize]byte
	for i := range params {
		params[i] = byte(i)
	}
	pixels := bytes.Repeat([]byte{0xAB, 0xCD, 0xEF, 0x01}, 4)

	return &Bundle{
		Buffers: []Buffer{
			{Stride: 12, Usage: BufferUsageVertex | BufferUsageTransferDst, Data: vertices},
			{Stride: 2, Usage: BufferUsageIndex | BufferUsageTransferDst, Data: indices},
			{Stride: TransformStride, Usage: BufferUsageStorage | BufferUsageTransferDst, Data: transform.AppendBytes(nil)},
		},
		Meshes: []Mesh{{
			VertexBuffer: 0,
			IndexType:    IndexTypeUint16,
			IndexBuffer:  1,
			IndexCount:   3,
			Clusters:     []Cluster{{VertexOffset: 0, VertexCount: 3, IndexOffset: 0, IndexCount: 3}},
			Cones:        []BoundingCone{{Apex: [3]float32{0.3, 0.3, -1}, Axis: [3]float32{0, 0, 1}, Cutoff: 0}},
		}},
		Images: []Image{{
			Width: 4, Height: 4, Depth: 1, BlockSize: 16, MipCount: 1, LayerCount: 1,
			Kind: ImageKind2D, ViewKind: ImageViewKind2D, Format: FormatBC7SrgbBlock,
			Pixels: pixels,
		}},
		Samplers:        []Sampler{DefaultSampler()},
		MaterialLayouts: []MaterialLayout{{ImageSlotCount: 1}},
		MaterialInstances: []MaterialInstance{{
			Layout:     0,
			Parameters: params,
			Images:     []ImageSamplerBinding{{Image: 0, Sampler: 0}},
		}},
		Materials: []Material{{
			Layout:       0,
			VertexStride: 12,
			Attributes: []VertexAttribute{
				{Semantic: SemanticPosition, Name: "POSITION", Location: 0, Format: FormatR32G32B32Sfloat, Offset: 0},
			},
			CullMode: CullModeBack,
			Images:   []ImageBinding{{Name: "base_color", UVChannel: 0}},
			Defines:  []MacroDefinition{{Name: "HAS_POSITION", Value: "1"}, {Name: "HAS_BASE_COLOR_TEXTURE", Value: "1"}},
		}},
		Buckets: []Bucket{{
			Material: 0,
			Instances: []Instance{{
				Mesh:               0,
				MaterialInstance:   0,
				TotalInstanceCount: 1,
				TotalDrawCount:     1,
				Transforms:         []math.Mat4{transform},
				Bounds:             []math.AABB{{Min: [3]float32{1, 2, 3}, Max: [3]float32{2, 3, 3}}},
			}},
			TransformBuffer: 2,
		}},
		EnvironmentProbes: []EnvironmentProbe{{Skybox: 0, Iem: Some(0), Pmrem: None}},
		BrdfLUT:           Some(0),
	}
}

func encode(t *testing.T, b *Bundle, level uint32) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := Encode(&buf, b, level); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	return buf.Bytes()
}

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		bundle *Bundle
	}{
		{"empty", &Bundle{}},
		{"sample", sampleBundle()},
		{"no brdf", func() *Bundle {
			b := sampleBundle()
			b.BrdfLUT = None
			b.EnvironmentProbes = nil
			return b
		}()},
	}

	// Fixtures keep empty sequences nil; the codec decodes them that way.
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := encode(t, tt.bundle, DefaultCompressionLevel)
			got, err := Decode(bytes.NewReader(data))
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if !reflect.DeepEqual(got, tt.bundle) {
				t.Errorf("round trip mismatch\ngot:  %s\nwant: %s", spew.Sdump(got), spew.Sdump(tt.bundle))
			}
		})
	}
}

func TestEmptySequencesDecodeNil(t *testing.T) {
	b := &Bundle{
		Buffers:           []Buffer{},
		Meshes:            []Mesh{},
		Images:            []Image{},
		Samplers:          []Sampler{},
		MaterialLayouts:   []MaterialLayout{},
		MaterialInstances: []MaterialInstance{},
		Materials:         []Material{},
		Buckets:           []Bucket{},
		EnvironmentProbes: []EnvironmentProbe{},
	}
	got, err := DecodeBytes(encode(t, b, 0))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !reflect.DeepEqual(got, &Bundle{}) {
		t.Errorf("empty sequences decoded as %s", spew.Sdump(got))
	}
}

// pseudoRandom returns n bytes that LZ4 cannot shrink.
func pseudoRandom(n int) []byte {
	out := make([]byte, n)
	x := uint32(2463534242)
	for i := range out {
		x ^= x << 13
		x ^= x >> 17
		x ^= x << 5
		out[i] = byte(x)
	}
	return out
}

func TestLZ4FieldIsRawBlock(t *testing.T) {
	tests := []struct {
		name  string
		data  []byte
		level uint32
	}{
		{"repetitive fast", bytes.Repeat([]byte("malwerks"), 1024), 0},
		{"repetitive hc", bytes.Repeat([]byte("malwerks"), 1024), 9},
		{"incompressible fast", pseudoRandom(4096), 0},
		{"incompressible hc", pseudoRandom(4096), 9},
		{"single byte", []byte{42}, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			w := newWriter(&buf, tt.level)
			w.lz4Bytes(tt.data)
			if err := w.flush(); err != nil {
				t.Fatalf("flush: %v", err)
			}
			field := buf.Bytes()
			if len(field) < 16 {
				t.Fatalf("field is %d bytes", len(field))
			}
			size := binary.LittleEndian.Uint64(field[0:8])
			n := binary.LittleEndian.Uint64(field[8:16])
			if size != uint64(len(tt.data)) || n != uint64(len(field)-16) {
				t.Fatalf("prefixes = (%d, %d), want (%d, %d)", size, n, len(tt.data), len(field)-16)
			}

			out := make([]byte, size)
			got, err := lz4.UncompressBlock(field[16:], out)
			if err != nil {
				t.Fatalf("UncompressBlock: %v", err)
			}
			if got != len(tt.data) || !bytes.Equal(out, tt.data) {
				t.Errorf("block expanded to %d bytes, want %d identical bytes", got, len(tt.data))
			}

			r := &reader{data: field}
			if back := r.lz4Bytes(); r.err != nil || !bytes.Equal(back, tt.data) {
				t.Errorf("lz4Bytes read back %d bytes, err %v", len(back), r.err)
			}
		})
	}
}

func TestLZ4FieldErrors(t *testing.T) {
	var buf bytes.Buffer
	w := newWriter(&buf, 9)
	w.lz4Bytes(bytes.Repeat([]byte{7}, 300))
	if err := w.flush(); err != nil {
		t.Fatal(err)
	}
	valid := buf.Bytes()

	tests := []struct {
		name   string
		mutate func(d []byte) []byte
	}{
		{"size too large", func(d []byte) []byte {
			binary.LittleEndian.PutUint64(d, 301)
			return d
		}},
		{"size too small", func(d []byte) []byte {
			binary.LittleEndian.PutUint64(d, 299)
			return d
		}},
		{"expansion bound", func(d []byte) []byte {
			binary.LittleEndian.PutUint64(d, 1<<40)
			return d
		}},
		{"payload for empty field", func(d []byte) []byte {
			binary.LittleEndian.PutUint64(d, 0)
			return d
		}},
		{"corrupt block", func(d []byte) []byte {
			binary.LittleEndian.PutUint64(d[8:], 2)
			d[16] = 0xFF
			return d[:18]
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &reader{data: tt.mutate(append([]byte(nil), valid...))}
			r.lz4Bytes()
			if bakeerr.KindOf(r.err) != bakeerr.KindDecode {
				t.Errorf("err = %v, want DecodeError", r.err)
			}
		})
	}
}

func TestCompressionLevelDoesNotChangeContent(t *testing.T) {
	b := sampleBundle()
	b.Images[0].Pixels = bytes.Repeat([]byte("malwerks"), 512)
	b.Images[0].Width = 64
	b.Images[0].Height = 64

	for _, level := range []uint32{0, 1, 5, 9, 42} {
		got, err := DecodeBytes(encode(t, b, level))
		if err != nil {
			t.Fatalf("level %d: Decode: %v", level, err)
		}
		if !reflect.DeepEqual(got, b) {
			t.Errorf("level %d: decoded bundle differs", level)
		}
	}
}

func TestEncodeDeterministic(t *testing.T) {
	a := encode(t, sampleBundle(), 9)
	b := encode(t, sampleBundle(), 9)
	if !bytes.Equal(a, b) {
		t.Error("encoding the same bundle twice produced different bytes")
	}
}

func TestDecodeErrors(t *testing.T) {
	valid := encode(t, sampleBundle(), 9)

	tests := []struct {
		name string
		data func() []byte
	}{
		{"empty", func() []byte { return nil }},
		{"bad magic", func() []byte {
			d := append([]byte(nil), valid...)
			copy(d, "XXXX")
			return d
		}},
		{"fingerprint mismatch", func() []byte {
			d := append([]byte(nil), valid...)
			d[4] ^= 0xFF
			return d
		}},
		{"truncated", func() []byte { return valid[:len(valid)-3] }},
		{"truncated header", func() []byte { return valid[:6] }},
		{"trailing bytes", func() []byte { return append(append([]byte(nil), valid...), 0) }},
		{"huge sequence length", func() []byte {
			d := append([]byte(nil), valid[:12]...)
			return binary.LittleEndian.AppendUint64(d, 1<<60)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeBytes(tt.data())
			if err == nil {
				t.Fatal("expected error")
			}
			if !errors.Is(err, bakeerr.ErrDecode) {
				t.Errorf("expected DecodeError, got %v", err)
			}
		})
	}
}

func TestDecodeRejectsInvalidBundle(t *testing.T) {
	b := sampleBundle()
	b.Buckets[0].Material = 7

	data := encode(t, b, 9)
	_, err := DecodeBytes(data)
	if err == nil {
		t.Fatal("expected error")
	}
	if bakeerr.KindOf(err) != bakeerr.KindDecode {
		t.Errorf("expected DecodeError, got %v", err)
	}
	if !errors.Is(err, bakeerr.ErrInvariantViolation) {
		t.Errorf("expected wrapped InvariantViolation, got %v", err)
	}
}

func TestShaderRoundTrip(t *testing.T) {
	s := &ShaderBundle{Pipelines: []ShaderPipeline{
		{Kind: PipelineMaterial, Name: "material_0", Stages: [5][]uint32{
			StageVertex:   {0x07230203, 1, 2},
			StageFragment: {0x07230203, 3},
		}},
		{Kind: PipelineRayTracing, Name: "rt"},
		{Kind: PipelineCompute, Name: "cull", Stages: [5][]uint32{StageCompute: {0x07230203, 9}}},
	}}

	var buf bytes.Buffer
	if err := EncodeShaders(&buf, s); err != nil {
		t.Fatalf("EncodeShaders: %v", err)
	}
	got, err := DecodeShaders(&buf)
	if err != nil {
		t.Fatalf("DecodeShaders: %v", err)
	}
	if !reflect.DeepEqual(got, s) {
		t.Errorf("round trip mismatch\ngot:  %s\nwant: %s", spew.Sdump(got), spew.Sdump(s))
	}
}

func TestShaderBundleRejectsResourceFile(t *testing.T) {
	_, err := DecodeShaders(bytes.NewReader(encode(t, sampleBundle(), 0)))
	if !errors.Is(err, bakeerr.ErrDecode) {
		t.Errorf("expected DecodeError, got %v", err)
	}
}
