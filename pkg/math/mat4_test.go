package math

import (
	"math"
	"testing"
)

func TestMulIdentity(t *testing.T) {
	m := Translate(1, 2, 3)
	if got := m.Mul(Identity()); got != m {
		t.Errorf("M * I = %v, want %v", got, m)
	}
	if got := Identity().Mul(m); got != m {
		t.Errorf("I * M = %v, want %v", got, m)
	}
}

func TestMulOrder(t *testing.T) {
	// Scale first, then translate.
	m := Translate(10, 0, 0).Mul(Scale(2, 2, 2))
	if got, want := m.TransformPoint([3]float32{1, 1, 1}), [3]float32{12, 2, 2}; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestTransformPoint(t *testing.T) {
	tests := []struct {
		name string
		m    Mat4
		want [3]float32
	}{
		{"translate", Translate(10, 20, 30), [3]float32{11, 22, 33}},
		{"scale", Scale(2, 2, 2), [3]float32{2, 4, 6}},
		{"projective", Mat4{0: 1, 5: 1, 10: 1, 15: 2}, [3]float32{0.5, 1, 1.5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.m.TransformPoint([3]float32{1, 2, 3}); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFromTRS(t *testing.T) {
	m := FromTRS(Vec3{1, 2, 3}, QuatIdentity(), Vec3{2, 2, 2})
	if got, want := m.TransformPoint([3]float32{1, 1, 1}), [3]float32{3, 4, 5}; got != want {
		t.Errorf("FromTRS point: got %v, want %v", got, want)
	}

	half := float32(math.Sqrt(0.5))
	r := QuatFromArray([4]float32{0, half, 0, half})
	trs := FromTRS(Vec3{1, 2, 3}, r, Vec3{2, 3, 4})
	composed := Translate(1, 2, 3).Mul(r.ToMat4()).Mul(Scale(2, 3, 4))
	for i := range trs {
		if abs(trs[i]-composed[i]) > 1e-5 {
			t.Fatalf("FromTRS = %v, want T*R*S = %v", trs, composed)
		}
	}
}

func TestAppendBytes(t *testing.T) {
	buf := Identity().AppendBytes([]byte{0xff})
	if len(buf) != 1+Mat4Size {
		t.Fatalf("expected %d bytes, got %d", 1+Mat4Size, len(buf))
	}
	// 1.0f little-endian = 00 00 80 3f
	if buf[1] != 0x00 || buf[2] != 0x00 || buf[3] != 0x80 || buf[4] != 0x3f {
		t.Errorf("unexpected encoding of m0: % x", buf[1:5])
	}
}

func abs(x float32) float32 {
	if x < 0 {
		return -x
	}
	return x
}
