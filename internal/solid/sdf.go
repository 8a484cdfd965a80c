package solid

import (
	"math"

	"github.com/soypat/sdf"
	"github.com/soypat/sdf/form2/must2"
	"github.com/soypat/sdf/form3/must3"
	"github.com/soypat/sdf/render"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

// SDFKernel implements Kernel on signed distance fields via soypat/sdf.
// It meshes to STL through the octree renderer; it has no BREP form, so it
// does not implement BrepExporter and STEP export degrades to skipped.
type SDFKernel struct{}

// NewSDFKernel returns the SDF-backed kernel.
func NewSDFKernel() *SDFKernel { return &SDFKernel{} }

func (k *SDFKernel) Extrude(profile []r2.Vec, thickness float64) Solid {
	return sdf.Extrude3D(must2.Polygon(ccw(profile)), thickness)
}

func (k *SDFKernel) ExtrudeOnPlane(pl Plane, profile []r2.Vec, depth float64) Solid {
	s := sdf.Extrude3D(must2.Polygon(ccw(profile)), depth)
	// Map the local frame (e_x, e_y, e_z) onto (XDir, Normal x XDir,
	// Normal) at the plane origin: one rotation carries e_z to the
	// normal, a second spins about the normal to line up XDir. The
	// leading z-shift makes the symmetric extrusion one-sided.
	axis, angle := rotationBetween(r3.Vec{Z: 1}, pl.Normal)
	x1 := rodrigues(r3.Vec{X: 1}, axis, angle)
	spin := math.Atan2(r3.Dot(r3.Cross(x1, pl.XDir), pl.Normal), r3.Dot(x1, pl.XDir))

	m := sdf.Translate3D(pl.Origin)
	if spin != 0 {
		m = m.Mul(sdf.Rotate3D(pl.Normal, spin))
	}
	if angle != 0 {
		m = m.Mul(sdf.Rotate3D(axis, angle))
	}
	m = m.Mul(sdf.Translate3D(r3.Vec{Z: depth / 2}))
	return sdf.Transform3D(s, m)
}

func (k *SDFKernel) RevolveX(profile []r2.Vec) Solid {
	// Revolve3D spins about Z with profile x as radius; swap the axial
	// and radial coordinates, then carry the solid's axis onto +X.
	swapped := make([]r2.Vec, len(profile))
	for i, v := range profile {
		swapped[i] = r2.Vec{X: v.Y, Y: v.X}
	}
	rev := sdf.Revolve3D(must2.Polygon(ccw(swapped)), 2*math.Pi)
	return sdf.Transform3D(rev, sdf.RotateY(math.Pi/2))
}

func (k *SDFKernel) Box(size r3.Vec) Solid {
	return must3.Box(size, 0)
}

func (k *SDFKernel) Union(a, b Solid) Solid {
	return sdf.Union3D(a.(sdf.SDF3), b.(sdf.SDF3))
}

func (k *SDFKernel) Cut(a, b Solid) Solid {
	return sdf.Difference3D(a.(sdf.SDF3), b.(sdf.SDF3))
}

func (k *SDFKernel) Translate(s Solid, delta r3.Vec) Solid {
	return sdf.Transform3D(s.(sdf.SDF3), sdf.Translate3D(delta))
}

func (k *SDFKernel) Rotate(s Solid, origin, axis r3.Vec, angleRad float64) Solid {
	m := sdf.Translate3D(origin).
		Mul(sdf.Rotate3D(axis, angleRad)).
		Mul(sdf.Translate3D(r3.Scale(-1, origin)))
	return sdf.Transform3D(s.(sdf.SDF3), m)
}

func (k *SDFKernel) Mirror(s Solid, pl MirrorPlane) Solid {
	switch pl {
	case MirrorXZ:
		return sdf.Transform3D(s.(sdf.SDF3), sdf.MirrorXZ())
	default:
		return sdf.Transform3D(s.(sdf.SDF3), sdf.MirrorXY())
	}
}

func (k *SDFKernel) BoundingBox(s Solid) (min, max r3.Vec) {
	bb := s.(sdf.SDF3).Bounds()
	return bb.Min, bb.Max
}

func (k *SDFKernel) WriteSTL(s Solid, path string, meshCells int) error {
	return render.CreateSTL(path, render.NewOctreeRenderer(s.(sdf.SDF3), meshCells))
}
