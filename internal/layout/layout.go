// Package layout unfolds the spiral decomposition into a flat chain of
// trapezoids along the x-axis, derives the design metrics shown to the user,
// and constructs the optional elastic-layer polygon and cable-site points.
package layout

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/talgya/spirob/internal/geom"
	"github.com/talgya/spirob/internal/spiral"
)

// FlatUnit is one unfolded trapezoid [P0, P1, Q1, Q0]: the outer-spiral edge
// P0-P1 on top, the central-spiral edge Q1-Q0 on the baseline.
type FlatUnit [4]r2.Vec

// Verts returns the unit's vertices as a polygon slice.
func (u FlatUnit) Verts() []r2.Vec { return []r2.Vec{u[0], u[1], u[2], u[3]} }

// Layout is the complete unfolded strip for one parameter set.
type Layout struct {
	Units   []FlatUnit `json:"units"`
	Mirrors []FlatUnit `json:"mirrors"`

	// Elastic polygons are nil when the layer is disabled or the guide
	// rays miss the strip edges. Nil is a valid state, not an error.
	Elastic       []r2.Vec `json:"elastic,omitempty"`
	ElasticMirror []r2.Vec `json:"elastic_mirror,omitempty"`

	// Guide rays from the virtual tip, used by the sketch renderer.
	RayStart r2.Vec `json:"ray_start"`
	RayUpper r2.Vec `json:"ray_upper"`
	RayLower r2.Vec `json:"ray_lower"`

	TipSize       float64 `json:"tip_size"`
	BaseSize      float64 `json:"base_size"`
	RobotLength   float64 `json:"robot_length"`
	TaperAngleDeg float64 `json:"taper_angle_deg"`
	Gamma         float64 `json:"gamma"`
}

// UnitCount is the number of placed primary units.
func (l Layout) UnitCount() int { return len(l.Units) }

// UnitHeight is the baseline length of the last (largest) unit, floored so
// the chain exporter never divides by zero.
func (l Layout) UnitHeight() float64 {
	if len(l.Units) == 0 {
		return 1e-6
	}
	last := l.Units[len(l.Units)-1]
	return math.Max(1e-6, math.Abs(last[2].X-last[3].X))
}

// placeAtBaseline scales the base quad by scale and translates it so the
// leading inner vertex Q0 lands at (currentX, 0) exactly. Forcing y to zero
// here is what keeps the chain on the baseline: without the reset the
// residual y of Q0 would compound across units. Returns the placed unit and
// the next baseline offset (the trailing inner vertex Q1).
func placeAtBaseline(base [4]r2.Vec, scale, currentX float64) (FlatUnit, float64) {
	var u FlatUnit
	for i, v := range base {
		u[i] = r2.Scale(scale, v)
	}
	delta := r2.Vec{X: currentX - u[3].X, Y: -u[3].Y}
	for i := range u {
		u[i] = r2.Add(u[i], delta)
	}
	return u, u[2].X
}

// Unfold places max(1, unitCount) scaled copies of the base quad edge to
// edge along the x-axis. Self-similarity makes every unit the base quad
// scaled by Gamma^k, so only one quad is ever derived from the spiral.
func Unfold(p spiral.Params, unitCount int) Layout {
	base := spiral.BaseQuad(p)
	gamma := p.Gamma()

	if unitCount < 1 {
		unitCount = 1
	}

	l := Layout{
		Units:         make([]FlatUnit, 0, unitCount),
		Mirrors:       make([]FlatUnit, 0, unitCount),
		TaperAngleDeg: p.TaperAngleDeg(),
		Gamma:         gamma,
	}

	currentX := 0.0
	for k := 0; k < unitCount; k++ {
		unit, nextX := placeAtBaseline(base, math.Pow(gamma, float64(k)), currentX)
		var mirror FlatUnit
		for i, v := range unit {
			mirror[i] = r2.Vec{X: v.X, Y: -v.Y}
		}
		l.Units = append(l.Units, unit)
		l.Mirrors = append(l.Mirrors, mirror)
		currentX = nextX
	}

	first := l.Units[0]
	last := l.Units[len(l.Units)-1]
	l.TipSize = 2 * maxY(first)
	l.BaseSize = 2 * maxY(last)
	l.RobotLength = maxX(last)

	l.buildElastic(p)
	return l
}

// buildElastic casts two rays from the virtual tip at the elastic opening
// angle and cuts the elastic quadrilateral between the first unit's left
// edge and the last unit's right edge. Both intersections must land for the
// polygon to exist.
func (l *Layout) buildElastic(p spiral.Params) {
	vtip := p.VirtualTipDist()
	elasticAngle := (p.ElasticPercent / 100) * (p.TaperAngle() / 2)
	m := 0.0
	if elasticAngle != 0 {
		m = math.Tan(elasticAngle)
	}

	maxPolyX := 0.0
	for _, u := range l.Units {
		if x := maxX(u); x > maxPolyX {
			maxPolyX = x
		}
	}
	rayLen := math.Max(10, maxPolyX+vtip+10)
	l.RayStart = r2.Vec{X: -vtip}
	l.RayUpper = r2.Vec{X: -vtip + rayLen, Y: m * rayLen}
	l.RayLower = r2.Vec{X: -vtip + rayLen, Y: -m * rayLen}

	if !p.ElasticEnabled {
		return
	}

	first := l.Units[0]
	last := l.Units[len(l.Units)-1]
	leftP, leftQ := first[0], first[3]
	rightP, rightQ := last[1], last[2]

	hitLeft, okL := geom.SegmentIntersect(l.RayStart, l.RayUpper, leftP, leftQ)
	hitRight, okR := geom.SegmentIntersect(l.RayStart, l.RayUpper, rightP, rightQ)
	if !okL || !okR {
		return
	}

	l.Elastic = []r2.Vec{leftQ, hitLeft, hitRight, rightQ}
	l.ElasticMirror = make([]r2.Vec, len(l.Elastic))
	for i, v := range l.Elastic {
		l.ElasticMirror[i] = r2.Vec{X: v.X, Y: -v.Y}
	}
}

// CableSites solves the two cable attachment points on the last unit: the
// line from the tip-hole center to the base-hole center, intersected with
// the unit's left and right edges. When an intersection misses (short or
// steep lines), the point is interpolated on the line at the edge's x
// instead, so the exporter always gets two sites.
func (l Layout) CableSites(p spiral.Params) (left, right r2.Vec) {
	last := l.Units[len(l.Units)-1]
	p0 := r2.Vec{X: 0, Y: (p.TipHolePos / 100) * l.TipSize / 2}
	p1 := r2.Vec{X: l.RobotLength, Y: (p.BaseHolePos / 100) * l.BaseSize / 2}

	dir := r2.Sub(p1, p0)
	if math.Abs(dir.X) < 1e-9 && math.Abs(dir.Y) < 1e-9 {
		dir = r2.Vec{X: 1}
	}
	dir = r2.Scale(1/r2.Norm(dir), dir)
	const far = 1e6
	lineA := r2.Sub(p0, r2.Scale(far, dir))
	lineB := r2.Add(p0, r2.Scale(far, dir))

	leftEdge := [2]r2.Vec{last[3], last[0]}
	rightEdge := [2]r2.Vec{last[2], last[1]}

	hitL, okL := geom.SegmentIntersect(lineA, lineB, leftEdge[0], leftEdge[1])
	hitR, okR := geom.SegmentIntersect(lineA, lineB, rightEdge[0], rightEdge[1])
	if okL && okR {
		return hitL, hitR
	}

	x1 := leftEdge[0].X
	x2 := rightEdge[0].X
	if math.Abs(p1.X-p0.X) < 1e-9 {
		return r2.Vec{X: x1, Y: p0.Y}, r2.Vec{X: x2, Y: p1.Y}
	}
	slope := (p1.Y - p0.Y) / (p1.X - p0.X)
	return r2.Vec{X: x1, Y: p0.Y + slope*(x1-p0.X)},
		r2.Vec{X: x2, Y: p0.Y + slope*(x2-p0.X)}
}

func maxY(u FlatUnit) float64 {
	m := u[0].Y
	for _, v := range u[1:] {
		if v.Y > m {
			m = v.Y
		}
	}
	return m
}

func maxX(u FlatUnit) float64 {
	m := u[0].X
	for _, v := range u[1:] {
		if v.X > m {
			m = v.X
		}
	}
	return m
}
