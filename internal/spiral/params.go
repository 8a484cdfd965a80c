// Package spiral implements the logarithmic-spiral segmentation at the heart
// of the limb designer: parameter normalization, the trapezoidal unit
// decomposition, and the closed-form quantities every later stage reuses.
package spiral

import "math"

// Params is one complete design input set. Linear dimensions are millimetres,
// angles are degrees unless a field says otherwise. Hole positions are percent
// of the half-height at the respective end.
type Params struct {
	A          float64 `json:"a" db:"a"`                     // spiral radius at theta=0
	B          float64 `json:"b" db:"b"`                     // growth rate
	DThetaDeg  int     `json:"dtheta_deg" db:"dtheta_deg"`   // angular step per unit
	ThetaMaxPi float64 `json:"theta_max_pi" db:"theta_max_pi"` // sweep, in units of pi
	P          float64 `json:"p" db:"p"`                     // central-spiral blend, 0..0.5

	ElasticEnabled bool    `json:"elastic_enabled" db:"elastic_enabled"`
	ElasticPercent float64 `json:"elastic_percent" db:"elastic_percent"`

	Extrusion  float64 `json:"extrusion" db:"extrusion"` // 0 means "not set yet"
	ConeAngle1 float64 `json:"cone_angle1" db:"cone_angle1"`
	ConeAngle2 float64 `json:"cone_angle2" db:"cone_angle2"`

	TipHolePos   float64 `json:"tip_hole_pos" db:"tip_hole_pos"`
	TipHoleSize  float64 `json:"tip_hole_size" db:"tip_hole_size"`
	BaseHolePos  float64 `json:"base_hole_pos" db:"base_hole_pos"`
	BaseHoleSize float64 `json:"base_hole_size" db:"base_hole_size"`

	TwoCable bool `json:"two_cable" db:"two_cable"`
}

// DefaultParams returns the reference design every session starts from.
func DefaultParams() Params {
	return Params{
		A:              4.95,
		B:              0.1764,
		DThetaDeg:      30,
		ThetaMaxPi:     6.0,
		P:              0.5,
		ElasticEnabled: true,
		ElasticPercent: 5.0,
		ConeAngle1:     5.0,
		ConeAngle2:     15.0,
		TipHolePos:     50.0,
		TipHoleSize:    1.4,
		BaseHolePos:    90.0,
		BaseHoleSize:   3.0,
		TwoCable:       true,
	}
}

// Normalized returns a copy with every field clamped to its valid domain.
// Out-of-range inputs are pulled to the nearest bound, never rejected.
func (p Params) Normalized() Params {
	p.A = clamp(p.A, 0.1, 20)
	p.B = clamp(p.B, 0.01, 0.35)
	if p.DThetaDeg < 1 {
		p.DThetaDeg = 1
	} else if p.DThetaDeg > 60 {
		p.DThetaDeg = 60
	}
	p.ThetaMaxPi = clamp(p.ThetaMaxPi, 0.1, 12)
	p.P = clamp(p.P, 0, 0.5)
	p.ElasticPercent = clamp(p.ElasticPercent, 0, 100)
	if p.Extrusion != 0 {
		p.Extrusion = clamp(p.Extrusion, 0.01, 100)
	}
	p.ConeAngle1 = clamp(p.ConeAngle1, 0, 180)
	p.ConeAngle2 = clamp(p.ConeAngle2, 0, 360)
	p.TipHolePos = clamp(p.TipHolePos, 0, 100)
	p.TipHoleSize = clamp(p.TipHoleSize, 0.1, 10)
	p.BaseHolePos = clamp(p.BaseHolePos, 0, 100)
	p.BaseHoleSize = clamp(p.BaseHoleSize, 0.1, 10)
	return p
}

// Turns is the number of full revolutions in the sweep.
func (p Params) Turns() float64 { return p.ThetaMaxPi / 2 }

// ThetaEnd is the sweep end angle in radians.
func (p Params) ThetaEnd() float64 { return 2 * math.Pi * p.Turns() }

// SweepEnd is where unit emission stops: the central spiral trails the outer
// spiral by exactly one turn, so the last unit ends one revolution early.
func (p Params) SweepEnd() float64 { return math.Max(0, p.ThetaEnd()-2*math.Pi) }

// DTheta is the angular step in radians, floored at one degree.
func (p Params) DTheta() float64 {
	d := p.DThetaDeg
	if d < 1 {
		d = 1
	}
	return float64(d) * math.Pi / 180
}

// CFactor scales the outer radius onto the central spiral:
// (1-p) + p*e^(2πb). At p=1 the central spiral is the outer spiral one full
// turn ahead; at p=0 it collapses onto the outer spiral.
func (p Params) CFactor() float64 {
	return (1 - p.P) + p.P*math.Exp(2*math.Pi*p.B)
}

// Gamma is the per-unit growth ratio e^(b·Δθ). Consecutive flattened units
// differ by exactly this scale factor.
func (p Params) Gamma() float64 { return math.Exp(p.B * p.DTheta()) }

// TaperAngle is the full opening angle of the flattened strip, radians.
func (p Params) TaperAngle() float64 {
	eb := math.Exp(2 * math.Pi * p.B)
	return 2 * math.Atan(p.B*(eb-1)/(math.Sqrt(p.B*p.B+1)*(eb+1)))
}

// TaperAngleDeg is TaperAngle in degrees.
func (p Params) TaperAngleDeg() float64 { return p.TaperAngle() * 180 / math.Pi }

// VirtualTipDist is the distance from the strip's first unit back to the
// virtual apex where the two taper edges would meet.
func (p Params) VirtualTipDist() float64 {
	return p.CFactor() * p.A * math.Sqrt(p.B*p.B+1) / p.B
}

// JointKind names the articulation used between simulated units.
type JointKind string

const (
	JointHinge JointKind = "hinge" // two-cable designs bend in plane
	JointBall  JointKind = "ball"  // three-cable designs bend in 3D
)

// Joint returns the articulation implied by the cable layout.
func (p Params) Joint() JointKind {
	if p.TwoCable {
		return JointHinge
	}
	return JointBall
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
