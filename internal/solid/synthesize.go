package solid

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/talgya/spirob/internal/geom"
	"github.com/talgya/spirob/internal/layout"
	"github.com/talgya/spirob/internal/spiral"
)

// Assembly is the synthesized body pair: the segmented main solid and the
// optional elastic-layer solid. They stay separate so BREP export can keep
// them as distinct parts; mesh export merges them.
type Assembly struct {
	Main    Solid
	Elastic Solid // nil when the elastic layer is absent
}

// Synthesizer builds 3D solids from an unfolded layout through a Kernel.
// A nil kernel is valid and turns every build call into ErrKernelUnavailable.
type Synthesizer struct {
	k Kernel
}

// NewSynthesizer returns a synthesizer over k. k may be nil.
func NewSynthesizer(k Kernel) *Synthesizer { return &Synthesizer{k: k} }

// Available reports whether a solid kernel is wired in.
func (s *Synthesizer) Available() bool { return s.k != nil }

// Kernel exposes the underlying kernel for export plumbing. Nil when absent.
func (s *Synthesizer) Kernel() Kernel { return s.k }

// Cone1MaxDeg is the largest cone1 angle, in degrees, for which the two
// cut planes still clear the base before meeting.
func Cone1MaxDeg(extrusion, robotLength float64) float64 {
	if robotLength <= 1e-6 {
		return 0
	}
	return math.Max(0, 2*math.Atan((extrusion/2)/robotLength)*180/math.Pi)
}

// Cone2MaxDeg is the largest cone2 angle in degrees: four times the strip's
// taper angle.
func Cone2MaxDeg(taperAngleDeg float64) float64 {
	return math.Max(0, 4*taperAngleDeg)
}

// EffectiveCones clamps the requested cone angles into their geometrically
// valid ranges. Out-of-range requests are reduced to the maximum, never
// rejected.
func EffectiveCones(p spiral.Params, lay layout.Layout) (cone1, cone2 float64) {
	thickness := math.Max(0.1, p.Extrusion)
	cone1 = clampAngle(p.ConeAngle1, Cone1MaxDeg(thickness, lay.RobotLength))
	cone2 = clampAngle(p.ConeAngle2, Cone2MaxDeg(lay.TaperAngleDeg))
	return cone1, cone2
}

func clampAngle(v, maxDeg float64) float64 {
	if v < 0 {
		return 0
	}
	if v > maxDeg {
		return maxDeg
	}
	return v
}

// Assembly builds the full robot body for the layout. Two-cable designs
// extrude every unit and carve the cone cuts and two frustum cavities;
// three-cable designs revolve the primary units about the long axis and
// carve three cavities.
func (s *Synthesizer) Assembly(p spiral.Params, lay layout.Layout) (Assembly, error) {
	if s.k == nil {
		return Assembly{}, ErrKernelUnavailable
	}
	if lay.BaseSize < geom.VertexTol {
		return Assembly{}, ErrDegenerateLayout
	}
	if p.TwoCable {
		return s.twoCableAssembly(p, lay), nil
	}
	return s.threeCableAssembly(p, lay), nil
}

func (s *Synthesizer) twoCableAssembly(p spiral.Params, lay layout.Layout) Assembly {
	thickness := math.Max(0.1, p.Extrusion)

	var main Solid
	for _, u := range lay.Units {
		main = s.unionInto(main, s.k.Extrude(u.Verts(), thickness))
	}
	for _, u := range lay.Mirrors {
		main = s.unionInto(main, s.k.Extrude(u.Verts(), thickness))
	}

	var elastic Solid
	if lay.Elastic != nil {
		elastic = s.k.Extrude(lay.Elastic, thickness)
	}
	if lay.ElasticMirror != nil {
		elastic = s.unionInto(elastic, s.k.Extrude(lay.ElasticMirror, thickness))
	}

	cone1, cone2 := EffectiveCones(p, lay)

	if lay.RobotLength > 1e-6 && cone1 > 1e-6 {
		// Anchor the cut planes at the solid's actual x-extent: earlier
		// booleans may have shifted the bounding box off the nominal
		// robot length.
		_, bbMax := s.k.BoundingBox(main)
		alpha := -cone1 / 2 * math.Pi / 180
		halfZ := thickness / 2
		extent := 10 * math.Max(lay.RobotLength, math.Max(lay.BaseSize, thickness))

		n1 := r3.Vec{X: math.Sin(alpha), Z: math.Cos(alpha)}
		n2 := r3.Vec{X: math.Sin(alpha), Z: -math.Cos(alpha)}
		o1 := r3.Vec{X: bbMax.X, Z: halfZ}
		o2 := r3.Vec{X: bbMax.X, Z: -halfZ}

		main = s.cutHalfSpace(main, o1, n1, extent)
		main = s.cutHalfSpace(main, o2, n2, extent)
		if elastic != nil {
			elastic = s.cutHalfSpace(elastic, o1, n1, extent)
			elastic = s.cutHalfSpace(elastic, o2, n2, extent)
		}
	}

	if holes := s.frustumCavities(p, lay, []float64{0, math.Pi}); holes != nil {
		main = s.k.Cut(main, holes)
		if elastic != nil {
			elastic = s.k.Cut(elastic, holes)
		}
	}

	if wedge := s.cone2Cutter(p, lay, cone1, cone2, thickness); wedge != nil {
		main = s.k.Cut(main, wedge)
		if elastic != nil {
			elastic = s.k.Cut(elastic, wedge)
		}
	}

	return Assembly{Main: main, Elastic: elastic}
}

func (s *Synthesizer) threeCableAssembly(p spiral.Params, lay layout.Layout) Assembly {
	var body Solid
	for _, u := range lay.Units {
		body = s.unionInto(body, s.k.RevolveX(u.Verts()))
	}
	// The elastic axis is axisymmetric too; it merges into the main body
	// rather than shipping as a separate part.
	if lay.Elastic != nil {
		body = s.unionInto(body, s.k.RevolveX(lay.Elastic))
	}

	angles := []float64{0, 2 * math.Pi / 3, 4 * math.Pi / 3}
	if holes := s.frustumCavities(p, lay, angles); holes != nil {
		body = s.k.Cut(body, holes)
	}
	return Assembly{Main: body}
}

// Baselink builds the single-unit mesh referenced by the simulation chain:
// the rightmost unit with its cuts applied, moved to the origin and stood
// up along +Z.
func (s *Synthesizer) Baselink(p spiral.Params, lay layout.Layout) (Solid, error) {
	if s.k == nil {
		return nil, ErrKernelUnavailable
	}
	if lay.BaseSize < geom.VertexTol {
		return nil, ErrDegenerateLayout
	}

	last := lay.Units[len(lay.Units)-1]
	var body Solid
	if p.TwoCable {
		thickness := math.Max(0.1, p.Extrusion)
		body = s.k.Extrude(last.Verts(), thickness)
		lastMirror := lay.Mirrors[len(lay.Mirrors)-1]
		body = s.k.Union(body, s.k.Extrude(lastMirror.Verts(), thickness))

		cone1, cone2 := EffectiveCones(p, lay)
		if lay.RobotLength > 1e-6 && cone1 > 1e-6 {
			_, bbMax := s.k.BoundingBox(body)
			alpha := -cone1 / 2 * math.Pi / 180
			halfZ := thickness / 2
			extent := 10 * math.Max(lay.RobotLength, math.Max(lay.BaseSize, thickness))
			body = s.cutHalfSpace(body, r3.Vec{X: bbMax.X, Z: halfZ},
				r3.Vec{X: math.Sin(alpha), Z: math.Cos(alpha)}, extent)
			body = s.cutHalfSpace(body, r3.Vec{X: bbMax.X, Z: -halfZ},
				r3.Vec{X: math.Sin(alpha), Z: -math.Cos(alpha)}, extent)
		}
		if wedge := s.cone2Cutter(p, lay, cone1, cone2, thickness); wedge != nil {
			body = s.k.Cut(body, wedge)
		}
	} else {
		body = s.k.RevolveX(last.Verts())
	}

	body = s.k.Translate(body, r3.Vec{X: -lay.RobotLength})
	body = s.k.Rotate(body, r3.Vec{}, r3.Vec{Y: 1}, math.Pi/2)
	return body, nil
}

// frustumCavities builds the tapered cable-hole solid and instances it at
// the given angles about the +X axis, returning their union. Returns nil
// when the geometry is degenerate (no robot length, coincident endpoints).
func (s *Synthesizer) frustumCavities(p spiral.Params, lay layout.Layout, angles []float64) Solid {
	fr := s.frustum(p, lay)
	if fr == nil {
		return nil
	}
	var holes Solid
	for _, ang := range angles {
		inst := fr
		if ang != 0 {
			inst = s.k.Rotate(fr, r3.Vec{}, r3.Vec{X: 1}, ang)
		}
		holes = s.unionInto(holes, inst)
	}
	return holes
}

// frustum revolves the hole profile about +X, then aligns its axis from the
// tip-hole center to the base-hole center: rotate about the cross-product
// axis, then translate by the residual of the Rodrigues-rotated reference
// endpoint. The order is load-bearing; translating first would misplace the
// cavity.
func (s *Synthesizer) frustum(p spiral.Params, lay layout.Layout) Solid {
	if lay.RobotLength <= 1e-6 {
		return nil
	}
	y0 := clamp01(p.TipHolePos/100) * lay.TipSize / 2
	y1 := clamp01(p.BaseHolePos/100) * lay.BaseSize / 2
	p0 := r3.Vec{Y: y0}
	p1 := r3.Vec{X: lay.RobotLength, Y: y1}

	v := r3.Sub(p1, p0)
	length := r3.Norm(v)
	if length <= 1e-6 {
		return nil
	}

	profile := []r2.Vec{
		{X: 0, Y: 0},
		{X: length, Y: 0},
		{X: length, Y: p.BaseHoleSize / 2},
		{X: 0, Y: p.TipHoleSize / 2},
	}
	fr := s.k.RevolveX(profile)

	vhat := r3.Scale(1/length, v)
	angle := math.Acos(math.Max(-1, math.Min(1, vhat.X)))
	axis := r3.Vec{X: 1}
	if math.Abs(angle) > 1e-6 {
		cross := r3.Vec{Y: -vhat.Z, Z: vhat.Y} // X-hat x vhat
		if n := r3.Norm(cross); n > 1e-9 {
			axis = r3.Scale(1/n, cross)
			fr = s.k.Rotate(fr, r3.Vec{}, axis, angle)
		} else {
			angle = 0
		}
	} else {
		angle = 0
	}

	end := rodrigues(r3.Vec{X: length}, axis, angle)
	return s.k.Translate(fr, r3.Sub(p1, end))
}

// cone2Cutter builds the four-fold symmetric wedge that carves the
// secondary cable channel. The wedge sits on a plane from the cone1 apex
// point to the robot tip edge, spun by cone2 about that axis and mirrored
// across the XY and XZ planes. Nil when cone2 is off or the plane normal
// degenerates.
func (s *Synthesizer) cone2Cutter(p spiral.Params, lay layout.Layout, cone1, cone2, thickness float64) Solid {
	if !p.TwoCable || lay.RobotLength <= 1e-6 || math.Abs(cone2) <= 1e-6 {
		return nil
	}

	alpha := -cone1 / 2 * math.Pi / 180
	apexZ := thickness/2 + math.Tan(alpha)*lay.RobotLength
	p0 := r3.Vec{Z: apexZ}
	p1 := r3.Vec{X: lay.RobotLength, Z: thickness / 2}

	v1 := r3.Sub(p1, p0)
	lenV1 := r3.Norm(v1)
	if lenV1 <= 1e-6 {
		return nil
	}
	lenV2 := math.Max(1e-6, lay.BaseSize)
	xdir := r3.Scale(1/lenV1, v1)
	normal := r3.Cross(v1, r3.Vec{Y: lay.BaseSize})
	nlen := r3.Norm(normal)
	if nlen <= 1e-9 {
		return nil
	}
	normal = r3.Scale(1/nlen, normal)

	rect := []r2.Vec{{X: 0, Y: 0}, {X: lenV1, Y: 0}, {X: lenV1, Y: lenV2}, {X: 0, Y: lenV2}}
	wedge := s.k.ExtrudeOnPlane(Plane{Origin: p0, XDir: xdir, Normal: normal}, rect, lay.BaseSize/2)

	axis := r3.Scale(1/lenV1, r3.Sub(p1, p0))
	wedge = s.k.Rotate(wedge, p0, axis, -cone2*math.Pi/180)

	pair := s.k.Union(wedge, s.k.Mirror(wedge, MirrorXY))
	return s.k.Union(pair, s.k.Mirror(pair, MirrorXZ))
}

// cutHalfSpace removes everything beyond the plane through origin with
// outward normal n, realized as an oversized box pushed half its extent
// along the normal.
func (s *Synthesizer) cutHalfSpace(body Solid, origin, n r3.Vec, extent float64) Solid {
	box := s.k.Box(r3.Vec{X: extent, Y: extent, Z: extent})
	angle := math.Atan2(n.X, n.Z)
	box = s.k.Rotate(box, r3.Vec{}, r3.Vec{Y: 1}, angle)
	box = s.k.Translate(box, r3.Add(origin, r3.Scale(extent/2, n)))
	return s.k.Cut(body, box)
}

func (s *Synthesizer) unionInto(acc, next Solid) Solid {
	if acc == nil {
		return next
	}
	return s.k.Union(acc, next)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
