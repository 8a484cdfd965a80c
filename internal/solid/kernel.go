// Package solid turns the unfolded 2D layout into manufacturable 3D bodies.
// All kernel operations go through the Kernel capability interface; a nil
// kernel disables solid construction and export without touching the 2D
// pipeline.
package solid

import (
	"errors"

	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

// Sentinel errors for missing capabilities.
var (
	// ErrKernelUnavailable is returned by operations that need a solid
	// kernel when the synthesizer was built without one.
	ErrKernelUnavailable = errors.New("solid kernel unavailable")

	// ErrUnsupported is returned for export formats the active kernel
	// cannot produce (the SDF kernel has no BREP representation).
	ErrUnsupported = errors.New("operation not supported by this kernel")

	// ErrDegenerateLayout is returned when the unfolded strip has
	// collapsed to zero height (p=0 blends both spirals into one) and no
	// profile with area exists to build from.
	ErrDegenerateLayout = errors.New("degenerate layout: strip has zero height")
)

// Solid is an opaque handle to a kernel-side body. Only the kernel that
// produced a handle may operate on it.
type Solid any

// Plane is a workplane in 3D: an origin, the in-plane x direction, and the
// plane normal. XDir and Normal are unit vectors.
type Plane struct {
	Origin r3.Vec
	XDir   r3.Vec
	Normal r3.Vec
}

// MirrorPlane names one of the coordinate planes used for mirroring.
type MirrorPlane int

const (
	MirrorXY MirrorPlane = iota // z -> -z
	MirrorXZ                    // y -> -y
)

// Kernel is the solid-modeling collaborator contract. Implementations are
// expected to be deterministic: the same call sequence yields the same
// geometry. Calls may be computationally expensive and block.
type Kernel interface {
	// Extrude extrudes a closed profile on the XY plane symmetrically
	// about z=0; thickness is the total extruded height.
	Extrude(profile []r2.Vec, thickness float64) Solid

	// ExtrudeOnPlane extrudes a closed profile drawn in the plane's
	// local coordinates one-sided along the plane normal.
	ExtrudeOnPlane(pl Plane, profile []r2.Vec, depth float64) Solid

	// RevolveX revolves a profile (x axial, y radial) 360 degrees about
	// the +X axis.
	RevolveX(profile []r2.Vec) Solid

	// Box builds an axis-aligned box centered at the origin.
	Box(size r3.Vec) Solid

	Union(a, b Solid) Solid
	Cut(a, b Solid) Solid

	Translate(s Solid, delta r3.Vec) Solid

	// Rotate rotates s by angleRad about the axis through origin.
	Rotate(s Solid, origin, axis r3.Vec, angleRad float64) Solid

	Mirror(s Solid, pl MirrorPlane) Solid

	BoundingBox(s Solid) (min, max r3.Vec)

	// WriteSTL meshes the solid and writes it to path. meshCells bounds
	// the mesh resolution along the longest axis.
	WriteSTL(s Solid, path string, meshCells int) error
}

// BrepExporter is an optional kernel capability for boundary-representation
// export. Kernels without it simply skip STEP output.
type BrepExporter interface {
	WriteSTEP(parts []Solid, path string) error
}
