package math

import (
	"math"
	"testing"
)

func TestQuatNormalize(t *testing.T) {
	tests := []struct {
		name string
		q    Quat
		want Quat
	}{
		{"unit", QuatIdentity(), QuatIdentity()},
		{"scaled", Quat{W: 2}, QuatIdentity()},
		{"zero", Quat{}, QuatIdentity()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.q.Normalize(); got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}

	n := Quat{X: 1, Y: 2, Z: 3, W: 4}.Normalize()
	length := math.Sqrt(float64(n.X*n.X + n.Y*n.Y + n.Z*n.Z + n.W*n.W))
	if math.Abs(length-1) > 1e-5 {
		t.Errorf("normalized length = %v, want 1", length)
	}
}

func TestQuatToMat4Identity(t *testing.T) {
	if m := QuatIdentity().ToMat4(); m != Identity() {
		t.Errorf("identity quaternion gave %v", m)
	}
}

func TestQuatRotation(t *testing.T) {
	half := float32(math.Sqrt(0.5))
	tests := []struct {
		name string
		q    [4]float32 // glTF x, y, z, w
		p    [3]float32
		want [3]float32
	}{
		{"90 around Y", [4]float32{0, half, 0, half}, [3]float32{1, 0, 0}, [3]float32{0, 0, -1}},
		{"90 around Z", [4]float32{0, 0, half, half}, [3]float32{1, 0, 0}, [3]float32{0, 1, 0}},
		{"180 around X", [4]float32{1, 0, 0, 0}, [3]float32{0, 1, 0}, [3]float32{0, -1, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := QuatFromArray(tt.q).ToMat4().TransformPoint(tt.p)
			for i := range got {
				if abs(got[i]-tt.want[i]) > 1e-5 {
					t.Fatalf("got %v, want %v", got, tt.want)
				}
			}
		})
	}
}
