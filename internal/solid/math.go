package solid

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

// rotationBetween derives the axis-angle rotation carrying unit vector from
// onto unit vector to. A near-zero angle returns (X axis, 0): the cross
// product is undefined there and callers skip the rotation. Anti-parallel
// vectors rotate half a turn about any perpendicular axis.
func rotationBetween(from, to r3.Vec) (axis r3.Vec, angle float64) {
	dot := math.Max(-1, math.Min(1, r3.Dot(from, to)))
	angle = math.Acos(dot)
	if angle < 1e-9 {
		return r3.Vec{X: 1}, 0
	}
	cross := r3.Cross(from, to)
	if n := r3.Norm(cross); n > 1e-9 {
		return r3.Scale(1/n, cross), angle
	}
	// Anti-parallel: any axis perpendicular to from works.
	perp := r3.Cross(from, r3.Vec{X: 1})
	if r3.Norm(perp) < 1e-9 {
		perp = r3.Cross(from, r3.Vec{Y: 1})
	}
	return r3.Scale(1/r3.Norm(perp), perp), math.Pi
}

// rodrigues rotates v by angle about the unit axis k.
func rodrigues(v, k r3.Vec, angle float64) r3.Vec {
	if angle == 0 {
		return v
	}
	cos, sin := math.Cos(angle), math.Sin(angle)
	term1 := r3.Scale(cos, v)
	term2 := r3.Scale(sin, r3.Cross(k, v))
	term3 := r3.Scale(r3.Dot(k, v)*(1-cos), k)
	return r3.Add(r3.Add(term1, term2), term3)
}

// ccw returns the profile in counterclockwise order, reversing it when the
// signed (shoelace) area is negative. SDF polygons need consistent winding.
func ccw(profile []r2.Vec) []r2.Vec {
	area := 0.0
	for i := range profile {
		a, b := profile[i], profile[(i+1)%len(profile)]
		area += a.X*b.Y - b.X*a.Y
	}
	if area >= 0 {
		return profile
	}
	out := make([]r2.Vec, len(profile))
	for i, v := range profile {
		out[len(profile)-1-i] = v
	}
	return out
}
