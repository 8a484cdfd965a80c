package layout

import (
	"math"
	"testing"

	"github.com/talgya/spirob/internal/spiral"
)

func referenceParams() spiral.Params {
	p := spiral.DefaultParams()
	p.A = 4.95
	p.B = 0.1764
	p.DThetaDeg = 30
	p.ThetaMaxPi = 6.0
	p.P = 0.5
	return p
}

func referenceLayout(t *testing.T) (spiral.Params, Layout) {
	t.Helper()
	p := referenceParams()
	d := spiral.Decompose(p)
	if d.UnitCount() == 0 {
		t.Fatal("reference decomposition produced no units")
	}
	return p, Unfold(p, d.UnitCount())
}

func TestUnfoldChainContinuity(t *testing.T) {
	_, l := referenceLayout(t)

	for i := 1; i < len(l.Units); i++ {
		prev, cur := l.Units[i-1], l.Units[i]
		// Trailing inner vertex of unit k is the leading inner vertex
		// of unit k+1, shared exactly on the baseline.
		if math.Abs(prev[2].X-cur[3].X) > 1e-9 {
			t.Errorf("Expected unit %d to start at x=%v, got %v", i, prev[2].X, cur[3].X)
		}
		if math.Abs(cur[3].Y) > 1e-9 || math.Abs(cur[2].Y) > 1e-9 {
			t.Errorf("Expected unit %d inner edge on the baseline, got y=%v,%v",
				i, cur[3].Y, cur[2].Y)
		}
	}
}

func TestUnfoldBaselineResidualYIsZero(t *testing.T) {
	// The y reset must hold even for long chains where accumulated
	// floating error would otherwise show.
	p := referenceParams()
	p.DThetaDeg = 1
	d := spiral.Decompose(p)
	l := Unfold(p, d.UnitCount())

	for i, u := range l.Units {
		if u[3].Y != 0 {
			t.Fatalf("Expected unit %d leading vertex y exactly 0, got %v", i, u[3].Y)
		}
	}
}

func TestUnfoldSelfSimilarity(t *testing.T) {
	p, l := referenceLayout(t)
	gamma := p.Gamma()

	for i := 1; i < len(l.Units); i++ {
		prev, cur := l.Units[i-1], l.Units[i]
		for e := 0; e < 4; e++ {
			a := edgeLen(prev, e)
			b := edgeLen(cur, e)
			if a == 0 {
				continue
			}
			if math.Abs(b/a-gamma) > 1e-9 {
				t.Fatalf("Expected edge %d ratio %v between units %d and %d, got %v",
					e, gamma, i-1, i, b/a)
			}
		}
	}
}

func edgeLen(u FlatUnit, e int) float64 {
	a, b := u[e], u[(e+1)%4]
	return math.Hypot(b.X-a.X, b.Y-a.Y)
}

func TestUnfoldMetrics(t *testing.T) {
	_, l := referenceLayout(t)

	if l.TipSize <= 0 || l.BaseSize <= 0 || l.RobotLength <= 0 {
		t.Fatalf("Expected positive metrics, got tip=%v base=%v length=%v",
			l.TipSize, l.BaseSize, l.RobotLength)
	}
	// A growing spiral always widens toward the base.
	if l.TipSize >= l.BaseSize {
		t.Errorf("Expected tip %v smaller than base %v", l.TipSize, l.BaseSize)
	}
	if l.UnitHeight() <= 0 {
		t.Errorf("Expected positive unit height, got %v", l.UnitHeight())
	}
}

func TestUnfoldZeroUnitsStillPlacesOne(t *testing.T) {
	p := referenceParams()
	l := Unfold(p, 0)
	if got := l.UnitCount(); got != 1 {
		t.Errorf("Expected floor of one unit, got %d", got)
	}
}

func TestElasticPolygonPresent(t *testing.T) {
	p := referenceParams()
	p.ElasticEnabled = true
	p.ElasticPercent = 5
	d := spiral.Decompose(p)
	l := Unfold(p, d.UnitCount())

	if l.Elastic == nil {
		t.Fatal("Expected elastic polygon for the reference design")
	}
	if len(l.Elastic) != 4 {
		t.Fatalf("Expected 4-vertex elastic polygon, got %d", len(l.Elastic))
	}
	if l.ElasticMirror == nil {
		t.Fatal("Expected mirrored elastic polygon")
	}
	for i := range l.Elastic {
		if math.Abs(l.Elastic[i].Y+l.ElasticMirror[i].Y) > 1e-12 {
			t.Errorf("Expected mirror vertex %d to be the y-flip", i)
		}
	}
}

func TestElasticPolygonAbsentWhenDisabled(t *testing.T) {
	p := referenceParams()
	p.ElasticEnabled = false
	d := spiral.Decompose(p)
	l := Unfold(p, d.UnitCount())

	if l.Elastic != nil || l.ElasticMirror != nil {
		t.Error("Expected no elastic polygon when the layer is disabled")
	}
}

func TestCableSitesOnLastUnitEdges(t *testing.T) {
	p, l := referenceLayout(t)
	left, right := l.CableSites(p)

	last := l.Units[len(l.Units)-1]
	// The left site lies on the leading edge's x-span, the right site on
	// the trailing edge's.
	if left.X < min(last[3].X, last[0].X)-1e-9 || left.X > max(last[3].X, last[0].X)+1e-9 {
		t.Errorf("Expected left site within the leading edge, got x=%v", left.X)
	}
	if right.X < min(last[2].X, last[1].X)-1e-9 || right.X > max(last[2].X, last[1].X)+1e-9 {
		t.Errorf("Expected right site within the trailing edge, got x=%v", right.X)
	}
	if left.X >= right.X {
		t.Errorf("Expected left site before right site, got %v >= %v", left.X, right.X)
	}
}

func TestCableSitesFallbackInterpolation(t *testing.T) {
	// Hole centers at the baseline give a line along y=0 that never
	// crosses the unit's side edges; the fallback interpolates instead.
	p := referenceParams()
	p.TipHolePos = 0
	p.BaseHolePos = 0
	d := spiral.Decompose(p)
	l := Unfold(p, d.UnitCount())

	left, right := l.CableSites(p)
	if math.Abs(left.Y) > 1e-9 || math.Abs(right.Y) > 1e-9 {
		t.Errorf("Expected fallback sites on the baseline, got y=%v,%v", left.Y, right.Y)
	}
}
