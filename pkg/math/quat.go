package math

import "math"

// Quat is a rotation quaternion with W as the scalar part.
type Quat struct {
	X, Y, Z, W float32
}

// QuatIdentity is the quaternion of no rotation.
func QuatIdentity() Quat {
	return Quat{W: 1}
}

// QuatFromArray builds a quaternion from glTF's [x, y, z, w] order.
func QuatFromArray(a [4]float32) Quat {
	return Quat{X: a[0], Y: a[1], Z: a[2], W: a[3]}
}

// Normalize returns q scaled to unit length. Exporters sometimes write
// slightly denormalized rotations; a zero quaternion becomes identity.
func (q Quat) Normalize() Quat {
	sq := q.X*q.X + q.Y*q.Y + q.Z*q.Z + q.W*q.W
	if sq < 1e-8 {
		return QuatIdentity()
	}
	inv := float32(1 / math.Sqrt(float64(sq)))
	return Quat{q.X * inv, q.Y * inv, q.Z * inv, q.W * inv}
}

// ToMat4 returns the rotation matrix of the normalized quaternion.
func (q Quat) ToMat4() Mat4 {
	q = q.Normalize()
	x2, y2, z2 := q.X+q.X, q.Y+q.Y, q.Z+q.Z

	// columns
	return Mat4{
		1 - q.Y*y2 - q.Z*z2, q.X*y2 + q.W*z2, q.X*z2 - q.W*y2, 0,
		q.X*y2 - q.W*z2, 1 - q.X*x2 - q.Z*z2, q.Y*z2 + q.W*x2, 0,
		q.X*z2 + q.W*y2, q.Y*z2 - q.W*x2, 1 - q.X*x2 - q.Y*y2, 0,
		0, 0, 0, 1,
	}
}
