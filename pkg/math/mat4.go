package math

import (
	"encoding/binary"
	"math"
)

// Mat4 is a 4x4 matrix in column-major order, the layout glTF and GLSL use.
// Element m[c*4+r] is column c, row r; translation lives in m[12:15].
type Mat4 [16]float32

// Mat4Size is the serialized size of a Mat4 in bytes.
const Mat4Size = 64

// Identity returns the identity matrix.
func Identity() Mat4 {
	return Mat4{0: 1, 5: 1, 10: 1, 15: 1}
}

// Translate returns a translation matrix.
func Translate(x, y, z float32) Mat4 {
	m := Identity()
	m[12], m[13], m[14] = x, y, z
	return m
}

// Scale returns a scale matrix.
func Scale(x, y, z float32) Mat4 {
	return Mat4{0: x, 5: y, 10: z, 15: 1}
}

// FromTRS composes translation * rotation * scale, the order glTF nodes use.
func FromTRS(t Vec3, r Quat, s Vec3) Mat4 {
	m := r.ToMat4()
	for row := 0; row < 3; row++ {
		m[row] *= s.X
		m[4+row] *= s.Y
		m[8+row] *= s.Z
	}
	m[12], m[13], m[14] = t.X, t.Y, t.Z
	return m
}

// Mul returns m * other, so other is applied first.
func (m Mat4) Mul(other Mat4) Mat4 {
	var out Mat4
	for col := 0; col < 4; col++ {
		for row := 0; row < 4; row++ {
			var sum float32
			for k := 0; k < 4; k++ {
				sum += m[k*4+row] * other[col*4+k]
			}
			out[col*4+row] = sum
		}
	}
	return out
}

// IsIdentity reports whether m is exactly the identity matrix.
func (m Mat4) IsIdentity() bool {
	return m == Identity()
}

// TransformPoint transforms p as a point (w = 1), with perspective divide
// when the matrix is projective.
func (m Mat4) TransformPoint(p [3]float32) [3]float32 {
	var out [4]float32
	for row := 0; row < 4; row++ {
		out[row] = m[row]*p[0] + m[4+row]*p[1] + m[8+row]*p[2] + m[12+row]
	}
	if w := out[3]; w != 0 && w != 1 {
		return [3]float32{out[0] / w, out[1] / w, out[2] / w}
	}
	return [3]float32{out[0], out[1], out[2]}
}

// AppendBytes appends the 64-byte little-endian column-major encoding of m.
func (m Mat4) AppendBytes(dst []byte) []byte {
	for _, f := range m {
		dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(f))
	}
	return dst
}
