// Package geom provides the planar primitives the spiral pipeline is built on:
// polar/cartesian conversion, reflection across a chord, and segment intersection.
// Everything here is pure. Degenerate inputs yield identity or absence, never errors.
package geom

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// Tolerances shared across the pipeline.
const (
	// Eps guards squared lengths and intersection denominators.
	Eps = 1e-12

	// VertexTol is the distance under which two vertices count as coincident.
	VertexTol = 1e-9
)

// PolarToCartesian maps (theta, r) to a cartesian point.
func PolarToCartesian(theta, r float64) r2.Vec {
	return r2.Vec{X: r * math.Cos(theta), Y: r * math.Sin(theta)}
}

// CartesianToPolar maps a point to (theta, r) with theta normalized to [0, 2π).
func CartesianToPolar(p r2.Vec) (theta, r float64) {
	r = math.Hypot(p.X, p.Y)
	theta = math.Atan2(p.Y, p.X)
	if theta < 0 {
		theta += 2 * math.Pi
	}
	return theta, r
}

// ReflectAcrossLine mirrors p across the infinite line through a and b.
// A degenerate line (|b-a|² < Eps) reflects nothing: p comes back unchanged.
func ReflectAcrossLine(p, a, b r2.Vec) r2.Vec {
	d := r2.Sub(b, a)
	l2 := r2.Norm2(d)
	if l2 < Eps {
		return p
	}
	t := r2.Dot(r2.Sub(p, a), d) / l2
	foot := r2.Add(a, r2.Scale(t, d))
	return r2.Sub(r2.Scale(2, foot), p)
}

// SegmentIntersect returns the intersection of segments a0-a1 and b0-b1.
// ok is false for parallel or collinear segments and for crossings that fall
// outside either segment. Absence is an expected geometric outcome here.
func SegmentIntersect(a0, a1, b0, b1 r2.Vec) (p r2.Vec, ok bool) {
	da := r2.Sub(a1, a0)
	db := r2.Sub(b1, b0)
	den := r2.Cross(da, db)
	if math.Abs(den) < Eps {
		return r2.Vec{}, false
	}
	ab := r2.Sub(b0, a0)
	t := r2.Cross(ab, db) / den
	u := r2.Cross(ab, da) / den
	if t < 0 || t > 1 || u < 0 || u > 1 {
		return r2.Vec{}, false
	}
	return r2.Add(a0, r2.Scale(t, da)), true
}

// VecEqual reports whether two points coincide within VertexTol.
func VecEqual(a, b r2.Vec) bool {
	return math.Abs(a.X-b.X) < VertexTol && math.Abs(a.Y-b.Y) < VertexTol
}
