// Command spirob computes one spiral limb design and optionally exports it:
// a one-shot counterpart to the spirobd HTTP daemon.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/talgya/spirob/internal/design"
	"github.com/talgya/spirob/internal/solid"
	"github.com/talgya/spirob/internal/spiral"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	defaults := spiral.DefaultParams()

	a := flag.Float64("a", defaults.A, "spiral radius at theta=0, mm")
	b := flag.Float64("b", defaults.B, "spiral growth rate")
	dtheta := flag.Int("dtheta", defaults.DThetaDeg, "angular step per unit, degrees")
	turnsPi := flag.Float64("theta-max-pi", defaults.ThetaMaxPi, "total sweep in units of pi")
	blend := flag.Float64("p", defaults.P, "central-spiral blend factor, 0..0.5")
	elastic := flag.Bool("elastic", defaults.ElasticEnabled, "include the elastic layer")
	elasticPct := flag.Float64("elastic-pct", defaults.ElasticPercent, "elastic opening, percent of half taper")
	extrusion := flag.Float64("extrusion", 0, "body thickness, mm (0 derives from base size)")
	cone1 := flag.Float64("cone1", defaults.ConeAngle1, "primary cone angle, degrees")
	cone2 := flag.Float64("cone2", defaults.ConeAngle2, "secondary cone angle, degrees")
	threeCable := flag.Bool("three-cable", false, "axisymmetric three-cable design")
	export := flag.String("export", "", "comma-separated export kinds: cad,xml,sketch (empty = no export)")
	outDir := flag.String("out", "exports", "export output directory")
	meshCells := flag.Int("mesh-cells", 200, "octree cells for STL meshing")
	noKernel := flag.Bool("no-kernel", false, "disable the solid kernel")
	flag.Parse()

	p := defaults
	p.A = *a
	p.B = *b
	p.DThetaDeg = *dtheta
	p.ThetaMaxPi = *turnsPi
	p.P = *blend
	p.ElasticEnabled = *elastic
	p.ElasticPercent = *elasticPct
	p.Extrusion = *extrusion
	p.ConeAngle1 = *cone1
	p.ConeAngle2 = *cone2
	p.TwoCable = !*threeCable

	var kernel solid.Kernel
	if !*noKernel {
		kernel = solid.NewSDFKernel()
	}

	session := design.NewSession(solid.NewSynthesizer(kernel))
	snap := session.SetParams(p)

	fmt.Printf("units:          %d\n", snap.Metrics.UnitCount)
	fmt.Printf("robot length:   %.3f mm\n", snap.Metrics.RobotLength)
	fmt.Printf("tip size:       %.3f mm\n", snap.Metrics.TipSize)
	fmt.Printf("base size:      %.3f mm\n", snap.Metrics.BaseSize)
	fmt.Printf("taper angle:    %.4f deg\n", snap.Metrics.TaperAngleDeg)
	fmt.Printf("extrusion:      %.3f mm\n", snap.Params.Extrusion)
	fmt.Printf("joint:          %s\n", snap.Params.Joint())
	fmt.Printf("cone1:          %.3f deg (max %.3f)\n", snap.Cone1Deg, snap.Cone1MaxDeg)
	fmt.Printf("cone2:          %.3f deg (max %.3f)\n", snap.Cone2Deg, snap.Cone2MaxDeg)

	if *export == "" {
		return
	}

	var kinds []string
	for _, kind := range strings.Split(*export, ",") {
		if kind = strings.TrimSpace(kind); kind != "" {
			kinds = append(kinds, kind)
		}
	}

	dir, files, err := session.Export(design.ExportOptions{
		Dir:       *outDir,
		Kinds:     kinds,
		MeshCells: *meshCells,
	})
	if err != nil {
		slog.Error("export failed", "error", err)
		os.Exit(1)
	}

	fmt.Printf("\nexported %d files to %s\n", len(files), dir)
	for _, f := range files {
		fmt.Printf("  %-6s %s\n", f.Kind, f.Path)
	}
}
