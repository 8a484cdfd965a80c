package spiral

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/talgya/spirob/internal/geom"
)

// TracePoint is one polar sample of a spiral curve.
type TracePoint struct {
	Theta float64 `json:"theta"`
	R     float64 `json:"r"`
}

// PolarUnit is one trapezoidal segment of the decomposition, four polar
// vertices in closed order. Primary units run outer edge first then central
// edge back; mirror units run central edge first then the reflected outer
// edge back.
type PolarUnit struct {
	Theta [4]float64 `json:"theta"`
	R     [4]float64 `json:"r"`
}

// Vertex returns vertex i in cartesian coordinates.
func (u PolarUnit) Vertex(i int) r2.Vec {
	return geom.PolarToCartesian(u.Theta[i], u.R[i])
}

// Vertices returns all four vertices in cartesian coordinates.
func (u PolarUnit) Vertices() [4]r2.Vec {
	return [4]r2.Vec{u.Vertex(0), u.Vertex(1), u.Vertex(2), u.Vertex(3)}
}

// Decomposition is the polar-domain output of one parameter set: the sampled
// spiral traces plus the trapezoidal units cut between them.
type Decomposition struct {
	Outer   []TracePoint `json:"outer"`
	Central []TracePoint `json:"central"`
	Units   []PolarUnit  `json:"units"`
	Mirrors []PolarUnit  `json:"mirrors"`
}

// UnitCount is the number of primary units (mirrors always match).
func (d Decomposition) UnitCount() int { return len(d.Units) }

// Decompose samples both spirals at the angular step and cuts trapezoidal
// units between them. Units are emitted only while their end angle stays
// within the central spiral's sweep; the last partial step is dropped, not
// clipped, so a short sweep can legitimately yield zero units.
func Decompose(p Params) Decomposition {
	thetaEnd := p.ThetaEnd()
	sweepEnd := p.SweepEnd()
	dtheta := p.DTheta()
	c := p.CFactor()

	var d Decomposition
	for theta := 0.0; theta <= thetaEnd+1e-12; theta += dtheta {
		r := p.A * math.Exp(p.B*theta)
		d.Outer = append(d.Outer, TracePoint{Theta: theta, R: r})
		d.Central = append(d.Central, TracePoint{Theta: theta, R: c * r})
	}

	for i := 0; i+1 < len(d.Outer); i++ {
		t0, t1 := d.Outer[i].Theta, d.Outer[i+1].Theta
		if t1 > sweepEnd+1e-12 {
			break
		}
		r0, r1 := d.Outer[i].R, d.Outer[i+1].R
		rc0, rc1 := d.Central[i].R, d.Central[i+1].R
		d.Units = append(d.Units, PolarUnit{
			Theta: [4]float64{t0, t1, t1, t0},
			R:     [4]float64{r0, r1, rc1, rc0},
		})

		// The mirror unit reflects the outer edge across the central
		// edge q0-q1 and re-expresses the result in polar form.
		q0 := geom.PolarToCartesian(t0, rc0)
		q1 := geom.PolarToCartesian(t1, rc1)
		m0 := geom.ReflectAcrossLine(geom.PolarToCartesian(t0, r0), q0, q1)
		m1 := geom.ReflectAcrossLine(geom.PolarToCartesian(t1, r1), q0, q1)
		t0m, r0m := geom.CartesianToPolar(m0)
		t1m, r1m := geom.CartesianToPolar(m1)
		d.Mirrors = append(d.Mirrors, PolarUnit{
			Theta: [4]float64{t0, t1, t1m, t0m},
			R:     [4]float64{rc0, rc1, r1m, r0m},
		})
	}
	return d
}

// BaseQuad returns the first flattened unit [P0, P1, Q1, Q0], rotated so the
// inner edge Q0-Q1 is horizontal. Every later unit is this quad scaled by
// Gamma^k, so the strip is derived once here and never re-unrolled per unit.
func BaseQuad(p Params) [4]r2.Vec {
	dtheta := p.DTheta()
	c := p.CFactor()
	r0 := p.A
	r1 := p.A * math.Exp(p.B*dtheta)

	p0 := geom.PolarToCartesian(0, r0)
	p1 := geom.PolarToCartesian(dtheta, r1)
	q0 := geom.PolarToCartesian(0, c*r0)
	q1 := geom.PolarToCartesian(dtheta, c*r1)

	angle := -math.Atan2(q1.Y-q0.Y, q1.X-q0.X)
	return [4]r2.Vec{
		r2.Rotate(p0, angle, r2.Vec{}),
		r2.Rotate(p1, angle, r2.Vec{}),
		r2.Rotate(q1, angle, r2.Vec{}),
		r2.Rotate(q0, angle, r2.Vec{}),
	}
}
