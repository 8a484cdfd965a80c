// Package sketch renders the two design views as PNGs: the spiral
// decomposition in the polar domain and the unfolded strip.
package sketch

import (
	"bufio"
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/talgya/spirob/internal/geom"
	"github.com/talgya/spirob/internal/layout"
	"github.com/talgya/spirob/internal/spiral"
)

var (
	outerColor   = color.RGBA{R: 0x1f, G: 0x77, B: 0xb4, A: 0xff}
	centralColor = color.RGBA{R: 0xd6, G: 0x27, B: 0x28, A: 0xff}
	unitColor    = color.RGBA{R: 0x2c, G: 0xa0, B: 0x2c, A: 0xff}
	mirrorColor  = color.RGBA{R: 0x7f, G: 0x7f, B: 0x7f, A: 0xff}
	elasticColor = color.RGBA{R: 0xff, G: 0x7f, B: 0x0e, A: 0xff}
	rayColor     = color.RGBA{R: 0x99, G: 0x99, B: 0x99, A: 0xff}
)

// PolarView draws both spiral traces with the trapezoidal units cut between
// them. Traces are resampled at one degree so the curves stay smooth at
// coarse angular steps. The central trace stops at the sweep end, one full
// turn short of the outer trace, matching the span the units occupy.
func PolarView(p spiral.Params, d spiral.Decomposition) (*plot.Plot, error) {
	pl := plot.New()
	pl.Title.Text = "Spiral decomposition"
	pl.X.Label.Text = "x (mm)"
	pl.Y.Label.Text = "y (mm)"

	outer, central := spiralTraces(p)
	if err := addLine(pl, outer, outerColor); err != nil {
		return nil, err
	}
	if err := addLine(pl, central, centralColor); err != nil {
		return nil, err
	}

	for _, u := range d.Units {
		v := u.Vertices()
		if err := addOutline(pl, v[:], unitColor); err != nil {
			return nil, err
		}
	}
	for _, u := range d.Mirrors {
		v := u.Vertices()
		if err := addOutline(pl, v[:], mirrorColor); err != nil {
			return nil, err
		}
	}
	return pl, nil
}

// StripView draws the unfolded chain: primary and mirror trapezoids, the
// elastic polygons when present, and the guide rays clipped at the base.
func StripView(lay layout.Layout) (*plot.Plot, error) {
	pl := plot.New()
	pl.Title.Text = "Unfolded strip"
	pl.X.Label.Text = "x (mm)"
	pl.Y.Label.Text = "y (mm)"

	for _, u := range lay.Units {
		if err := addOutline(pl, u.Verts(), unitColor); err != nil {
			return nil, err
		}
	}
	for _, u := range lay.Mirrors {
		if err := addOutline(pl, u.Verts(), mirrorColor); err != nil {
			return nil, err
		}
	}
	if lay.Elastic != nil {
		if err := addOutline(pl, lay.Elastic, elasticColor); err != nil {
			return nil, err
		}
	}
	if lay.ElasticMirror != nil {
		if err := addOutline(pl, lay.ElasticMirror, elasticColor); err != nil {
			return nil, err
		}
	}

	for _, end := range []r2.Vec{lay.RayUpper, lay.RayLower} {
		tip := clipRay(lay.RayStart, end, lay.RobotLength)
		pts := plotter.XYs{
			{X: lay.RayStart.X, Y: lay.RayStart.Y},
			{X: tip.X, Y: tip.Y},
		}
		if err := addLine(pl, pts, rayColor); err != nil {
			return nil, err
		}
	}
	return pl, nil
}

// spiralTraces samples both spirals at one degree. The outer trace covers
// the whole sweep; the central trace ends one full turn earlier, where the
// last unit ends.
func spiralTraces(p spiral.Params) (outer, central plotter.XYs) {
	thetaEnd := p.ThetaEnd()
	sweepEnd := p.SweepEnd()
	c := p.CFactor()
	step := math.Pi / 180
	for theta := 0.0; theta <= thetaEnd+1e-12; theta += step {
		r := p.A * math.Exp(p.B*theta)
		o := geom.PolarToCartesian(theta, r)
		outer = append(outer, plotter.XY{X: o.X, Y: o.Y})
		if theta <= sweepEnd+1e-12 {
			m := geom.PolarToCartesian(theta, c*r)
			central = append(central, plotter.XY{X: m.X, Y: m.Y})
		}
	}
	return outer, central
}

// clipRay shortens the ray so it stops at the base plane x = limit.
func clipRay(start, end r2.Vec, limit float64) r2.Vec {
	dx := end.X - start.X
	if dx <= 1e-9 || end.X <= limit {
		return end
	}
	t := (limit - start.X) / dx
	return r2.Add(start, r2.Scale(t, r2.Sub(end, start)))
}

func addLine(pl *plot.Plot, pts plotter.XYs, col color.Color) error {
	line, err := plotter.NewLine(pts)
	if err != nil {
		return fmt.Errorf("sketch line: %w", err)
	}
	line.LineStyle.Width = vg.Points(1.2)
	line.LineStyle.Color = col
	pl.Add(line)
	return nil
}

func addOutline(pl *plot.Plot, verts []r2.Vec, col color.Color) error {
	pts := make(plotter.XYs, 0, len(verts)+1)
	for _, v := range verts {
		pts = append(pts, plotter.XY{X: v.X, Y: v.Y})
	}
	pts = append(pts, pts[0])
	return addLine(pl, pts, col)
}

// SavePNG renders the plot at the given size in inches and writes it out.
func SavePNG(pl *plot.Plot, widthIn, heightIn float64, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create sketch dir: %w", err)
	}
	c := vgimg.NewWith(
		vgimg.UseWH(vg.Length(widthIn)*vg.Inch, vg.Length(heightIn)*vg.Inch),
		vgimg.UseDPI(200),
	)
	pl.Draw(draw.New(c))

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	bw := bufio.NewWriter(f)
	defer bw.Flush()
	pngc := vgimg.PngCanvas{Canvas: c}
	if _, err := pngc.WriteTo(bw); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
