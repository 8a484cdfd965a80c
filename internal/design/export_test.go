package design

import (
	"os"
	"path/filepath"
	"testing"

	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/talgya/spirob/internal/solid"
)

// brepKernel is a stub kernel with BREP export, used to drive the STEP
// branch of the CAD export without meshing anything.
type brepKernel struct {
	stepParts int
}

func (k *brepKernel) Extrude(profile []r2.Vec, thickness float64) solid.Solid { return "solid" }
func (k *brepKernel) ExtrudeOnPlane(pl solid.Plane, profile []r2.Vec, depth float64) solid.Solid {
	return "solid"
}
func (k *brepKernel) RevolveX(profile []r2.Vec) solid.Solid       { return "solid" }
func (k *brepKernel) Box(size r3.Vec) solid.Solid                 { return "solid" }
func (k *brepKernel) Union(a, b solid.Solid) solid.Solid          { return "solid" }
func (k *brepKernel) Cut(a, b solid.Solid) solid.Solid            { return "solid" }
func (k *brepKernel) Translate(s solid.Solid, d r3.Vec) solid.Solid { return "solid" }
func (k *brepKernel) Rotate(s solid.Solid, origin, axis r3.Vec, angleRad float64) solid.Solid {
	return "solid"
}
func (k *brepKernel) Mirror(s solid.Solid, pl solid.MirrorPlane) solid.Solid { return "solid" }

func (k *brepKernel) BoundingBox(s solid.Solid) (r3.Vec, r3.Vec) {
	return r3.Vec{X: -1, Y: -1, Z: -1}, r3.Vec{X: 10, Y: 1, Z: 1}
}

func (k *brepKernel) WriteSTL(s solid.Solid, path string, meshCells int) error {
	return os.WriteFile(path, []byte("solid stub\nendsolid stub\n"), 0o644)
}

func (k *brepKernel) WriteSTEP(parts []solid.Solid, path string) error {
	k.stepParts = len(parts)
	return os.WriteFile(path, []byte("ISO-10303-21;\nEND-ISO-10303-21;\n"), 0o644)
}

func TestCADExportWritesSTEPWhenKernelSupportsIt(t *testing.T) {
	k := &brepKernel{}
	s := NewSession(solid.NewSynthesizer(k))

	dir, files, err := s.Export(ExportOptions{Dir: t.TempDir(), Kinds: []string{ExportCAD}})
	if err != nil {
		t.Fatal(err)
	}

	if len(files) != 2 {
		t.Fatalf("Expected 2 CAD files, got %d", len(files))
	}
	for _, name := range []string{"spi_rob.stl", "spi_rob.step"} {
		info, err := os.Stat(filepath.Join(dir, name))
		if err != nil {
			t.Fatal(err)
		}
		if info.Size() == 0 {
			t.Errorf("Expected non-empty %s", name)
		}
	}

	// The default design carries the elastic layer as a second part.
	if k.stepParts != 2 {
		t.Errorf("Expected 2 STEP parts (main + elastic), got %d", k.stepParts)
	}
}
