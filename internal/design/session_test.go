package design

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/talgya/spirob/internal/solid"
)

func newTestSession() *Session {
	return NewSession(solid.NewSynthesizer(nil))
}

func TestNewSessionDerivesExtrusion(t *testing.T) {
	s := newTestSession()
	snap := s.Snapshot()

	if snap.Metrics.UnitCount == 0 {
		t.Fatal("Expected units in the default design")
	}
	want := 0.6 * snap.Metrics.BaseSize
	if math.Abs(snap.Params.Extrusion-want) > 1e-9 {
		t.Errorf("Expected derived extrusion %v, got %v", want, snap.Params.Extrusion)
	}
}

func TestApplyMergesOverCurrentParams(t *testing.T) {
	s := newTestSession()
	before := s.Params()

	snap, err := s.Apply(json.RawMessage(`{"a": 6.0}`))
	if err != nil {
		t.Fatal(err)
	}
	if snap.Params.A != 6.0 {
		t.Errorf("Expected a=6.0, got %v", snap.Params.A)
	}
	if snap.Params.B != before.B || snap.Params.DThetaDeg != before.DThetaDeg {
		t.Error("Expected untouched fields to survive the patch")
	}
}

func TestApplyRejectsUnknownFields(t *testing.T) {
	s := newTestSession()
	before := s.Params()

	if _, err := s.Apply(json.RawMessage(`{"bogus": 1}`)); err == nil {
		t.Fatal("Expected an error for an unknown field")
	}
	if s.Params() != before {
		t.Error("Expected parameters unchanged after a rejected patch")
	}
}

func TestExtrusionOverrideSurvivesLaterPatches(t *testing.T) {
	s := newTestSession()
	base := s.Snapshot().Metrics.BaseSize
	override := 0.25 * base

	snap, err := s.Apply(json.RawMessage(`{"extrusion": ` + jsonNum(override) + `}`))
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(snap.Params.Extrusion-override) > 1e-9 {
		t.Fatalf("Expected user extrusion %v, got %v", override, snap.Params.Extrusion)
	}

	// A later patch of an unrelated field must not re-derive the default.
	snap, err = s.Apply(json.RawMessage(`{"cone_angle1": 2.0}`))
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(snap.Params.Extrusion-override) > 1e-9 {
		t.Errorf("Expected override to persist, got %v", snap.Params.Extrusion)
	}
}

func TestExtrusionOverrideClampedIntoRange(t *testing.T) {
	s := newTestSession()
	snap, err := s.Apply(json.RawMessage(`{"extrusion": 0.001}`))
	if err != nil {
		t.Fatal(err)
	}
	if want := 0.2 * snap.Metrics.BaseSize; math.Abs(snap.Params.Extrusion-want) > 1e-9 {
		t.Errorf("Expected extrusion clamped up to %v, got %v", want, snap.Params.Extrusion)
	}
}

func TestSetParamsResetsDerivedExtrusion(t *testing.T) {
	s := newTestSession()
	if _, err := s.Apply(json.RawMessage(`{"extrusion": 2.0}`)); err != nil {
		t.Fatal(err)
	}

	p := s.Params()
	p.Extrusion = 0
	snap := s.SetParams(p)
	if want := 0.6 * snap.Metrics.BaseSize; math.Abs(snap.Params.Extrusion-want) > 1e-9 {
		t.Errorf("Expected re-derived extrusion %v, got %v", want, snap.Params.Extrusion)
	}
}

func TestSubmitCoalescesToLatest(t *testing.T) {
	s := newTestSession()
	s.Submit(json.RawMessage(`{"a": 2.0}`))
	s.Submit(json.RawMessage(`{"a": 9.0}`))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if s.Params().A == 9.0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Errorf("Expected the latest patch to win, got a=%v", s.Params().A)
}

func TestExportNeedsKernelForSolidKinds(t *testing.T) {
	s := newTestSession()
	dir := t.TempDir()

	for _, kind := range []string{ExportCAD, ExportXML} {
		_, _, err := s.Export(ExportOptions{Dir: dir, Kinds: []string{kind}})
		if !errors.Is(err, solid.ErrKernelUnavailable) {
			t.Errorf("Expected ErrKernelUnavailable for %s, got %v", kind, err)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("Expected no partial output, found %d entries", len(entries))
	}
}

func TestExportRejectsUnknownKind(t *testing.T) {
	s := newTestSession()
	if _, _, err := s.Export(ExportOptions{Dir: t.TempDir(), Kinds: []string{"mesh"}}); err == nil {
		t.Error("Expected an error for an unknown kind")
	}
}

func TestSketchExportWithoutKernel(t *testing.T) {
	s := newTestSession()
	dir, files, err := s.Export(ExportOptions{Dir: t.TempDir(), Kinds: []string{ExportSketch}})
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 2 {
		t.Fatalf("Expected 2 sketch files, got %d", len(files))
	}
	for _, name := range []string{"polar.png", "cartesian.png"} {
		info, err := os.Stat(filepath.Join(dir, name))
		if err != nil {
			t.Fatal(err)
		}
		if info.Size() == 0 {
			t.Errorf("Expected non-empty %s", name)
		}
	}
}

func TestFullExportWithSDFKernel(t *testing.T) {
	if testing.Short() {
		t.Skip("meshing is slow")
	}
	s := NewSession(solid.NewSynthesizer(solid.NewSDFKernel()))
	// Shrink the sweep so the meshed body stays small.
	if _, err := s.Apply(json.RawMessage(`{"theta_max_pi": 2.5}`)); err != nil {
		t.Fatal(err)
	}

	dir, files, err := s.Export(ExportOptions{
		Dir: t.TempDir(), Kinds: []string{ExportCAD, ExportXML}, MeshCells: 24,
	})
	if err != nil {
		t.Fatal(err)
	}

	wantNames := map[string]bool{"spi_rob.stl": false, "baselink.stl": false, "robot.xml": false}
	for _, f := range files {
		wantNames[filepath.Base(f.Path)] = true
		if f.Bytes == 0 {
			t.Errorf("Expected non-empty %s", f.Path)
		}
	}
	for name, seen := range wantNames {
		if !seen {
			t.Errorf("Expected %s in %s", name, dir)
		}
	}
	// The SDF kernel has no BREP form, so no STEP file may appear.
	if _, err := os.Stat(filepath.Join(dir, "spi_rob.step")); !os.IsNotExist(err) {
		t.Errorf("Expected no STEP file, got stat err %v", err)
	}
}

func jsonNum(v float64) string {
	b, _ := json.Marshal(v)
	return string(b)
}
