package math

import (
	"testing"
)

func TestVec3Cross(t *testing.T) {
	x := Vec3{1, 0, 0}
	y := Vec3{0, 1, 0}
	got := x.Cross(y)
	want := Vec3{0, 0, 1}
	if got != want {
		t.Errorf("Vec3.Cross() = %v, want %v", got, want)
	}
}

func TestVec3Normalize(t *testing.T) {
	n := Vec3{3, 4, 0}.Normalize()
	l := n.Length()
	if l < 0.999 || l > 1.001 {
		t.Errorf("Vec3.Normalize().Length() = %v, want ~1", l)
	}
	if (Vec3{}).Normalize() != (Vec3{}) {
		t.Error("zero vector should normalize to zero")
	}
}

func TestAABBCenter(t *testing.T) {
	b := AABB{Min: [3]float32{-2, 0, 4}, Max: [3]float32{2, 2, 8}}
	if got, want := b.Center(), (Vec3{0, 1, 6}); got != want {
		t.Errorf("Center = %v, want %v", got, want)
	}
}

func TestAABBExtend(t *testing.T) {
	b := EmptyAABB()
	if b.Valid() {
		t.Error("empty box should not be valid")
	}
	b.Extend([3]float32{1, 2, 3})
	b.Extend([3]float32{-1, 0, 5})

	if b.Min != [3]float32{-1, 0, 3} || b.Max != [3]float32{1, 2, 5} {
		t.Errorf("unexpected box %+v", b)
	}
	if !b.Valid() {
		t.Error("expected valid box")
	}
}

func TestAABBTransform(t *testing.T) {
	b := AABB{Min: [3]float32{-1, -1, -1}, Max: [3]float32{1, 1, 1}}

	tests := []struct {
		name string
		m    Mat4
		want AABB
	}{
		{"identity", Identity(), b},
		{"translate", Translate(10, 0, 0), AABB{Min: [3]float32{9, -1, -1}, Max: [3]float32{11, 1, 1}}},
		{"scale", Scale(2, 3, 4), AABB{Min: [3]float32{-2, -3, -4}, Max: [3]float32{2, 3, 4}}},
		{"mirror", Scale(-1, 1, 1), b},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := b.Transform(tt.m)
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}
