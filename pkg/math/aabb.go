package math

import "math"

// AABB is an axis-aligned bounding box.
type AABB struct {
	Min [3]float32
	Max [3]float32
}

// EmptyAABB returns an inverted box that any Extend call will overwrite.
func EmptyAABB() AABB {
	inf := float32(math.Inf(1))
	return AABB{
		Min: [3]float32{inf, inf, inf},
		Max: [3]float32{-inf, -inf, -inf},
	}
}

// Extend grows the box to include p.
func (b *AABB) Extend(p [3]float32) {
	for i := 0; i < 3; i++ {
		if p[i] < b.Min[i] {
			b.Min[i] = p[i]
		}
		if p[i] > b.Max[i] {
			b.Max[i] = p[i]
		}
	}
}

// Valid reports whether Min <= Max on every axis and all bounds are finite.
func (b AABB) Valid() bool {
	for i := 0; i < 3; i++ {
		if math.IsInf(float64(b.Min[i]), 0) || math.IsInf(float64(b.Max[i]), 0) {
			return false
		}
		if math.IsNaN(float64(b.Min[i])) || math.IsNaN(float64(b.Max[i])) {
			return false
		}
		if b.Min[i] > b.Max[i] {
			return false
		}
	}
	return true
}

// Center returns the box midpoint.
func (b AABB) Center() Vec3 {
	return V3(b.Min).Add(V3(b.Max)).Scale(0.5)
}

// Transform returns the box enclosing b after transformation by m.
// Uses Arvo's method: each matrix column contributes its min/max extents.
func (b AABB) Transform(m Mat4) AABB {
	out := AABB{
		Min: [3]float32{m[12], m[13], m[14]},
		Max: [3]float32{m[12], m[13], m[14]},
	}
	for col := 0; col < 3; col++ {
		for row := 0; row < 3; row++ {
			e := m[col*4+row]
			a := e * b.Min[col]
			c := e * b.Max[col]
			if a < c {
				out.Min[row] += a
				out.Max[row] += c
			} else {
				out.Min[row] += c
				out.Max[row] += a
			}
		}
	}
	return out
}
