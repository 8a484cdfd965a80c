package design

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/talgya/spirob/internal/mujoco"
	"github.com/talgya/spirob/internal/sketch"
	"github.com/talgya/spirob/internal/solid"
)

// Export kinds.
const (
	ExportCAD    = "cad"    // spi_rob.stl, spi_rob.step when the kernel has BREP
	ExportXML    = "xml"    // robot.xml plus the baselink.stl it references
	ExportSketch = "sketch" // polar.png, cartesian.png
)

// ExportOptions selects what to write and where.
type ExportOptions struct {
	Dir       string   // exports root; a timestamped subdirectory is created
	Kinds     []string // empty means all kinds
	MeshCells int      // octree cells for STL meshing; <=0 uses 200
}

// ExportedFile is one file written by an export run.
type ExportedFile struct {
	Kind  string `json:"kind"`
	Path  string `json:"path"`
	Bytes int64  `json:"bytes"`
}

// Export writes the requested artifacts for the current snapshot into a
// fresh timestamped directory. Kinds that need the solid kernel fail the
// whole run up front when none is wired, so a run never leaves partial
// output behind.
func (s *Session) Export(opts ExportOptions) (string, []ExportedFile, error) {
	kinds := opts.Kinds
	if len(kinds) == 0 {
		kinds = []string{ExportCAD, ExportXML, ExportSketch}
	}
	for _, kind := range kinds {
		switch kind {
		case ExportCAD, ExportXML, ExportSketch:
		default:
			return "", nil, fmt.Errorf("unknown export kind %q", kind)
		}
		if (kind == ExportCAD || kind == ExportXML) && !s.synth.Available() {
			return "", nil, fmt.Errorf("export %s: %w", kind, solid.ErrKernelUnavailable)
		}
	}

	cells := opts.MeshCells
	if cells <= 0 {
		cells = 200
	}

	snap := s.Snapshot()
	dir := filepath.Join(opts.Dir, time.Now().Format("20060102_150405"))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", nil, fmt.Errorf("create export dir: %w", err)
	}

	var files []ExportedFile
	for _, kind := range kinds {
		var err error
		switch kind {
		case ExportCAD:
			files, err = s.exportCAD(snap, dir, cells, files)
		case ExportXML:
			files, err = s.exportXML(snap, dir, cells, files)
		case ExportSketch:
			files, err = s.exportSketch(snap, dir, files)
		}
		if err != nil {
			return "", nil, fmt.Errorf("export %s: %w", kind, err)
		}
	}

	for _, f := range files {
		slog.Info("export written", "kind", f.Kind, "path", f.Path,
			"size", humanize.Bytes(uint64(f.Bytes)))
	}
	return dir, files, nil
}

func (s *Session) exportCAD(snap Snapshot, dir string, cells int, files []ExportedFile) ([]ExportedFile, error) {
	asm, err := s.synth.Assembly(snap.Params, snap.Layout)
	if err != nil {
		return files, err
	}

	k := s.synth.Kernel()
	merged := asm.Main
	if asm.Elastic != nil {
		merged = k.Union(merged, asm.Elastic)
	}

	stlPath := filepath.Join(dir, "spi_rob.stl")
	if err := k.WriteSTL(merged, stlPath, cells); err != nil {
		return files, fmt.Errorf("write stl: %w", err)
	}
	files = appendFile(files, ExportCAD, stlPath)

	if be, ok := k.(solid.BrepExporter); ok {
		parts := []solid.Solid{asm.Main}
		if asm.Elastic != nil {
			parts = append(parts, asm.Elastic)
		}
		stepPath := filepath.Join(dir, "spi_rob.step")
		if err := be.WriteSTEP(parts, stepPath); err != nil {
			return files, fmt.Errorf("write step: %w", err)
		}
		files = appendFile(files, ExportCAD, stepPath)
	} else {
		slog.Info("step export skipped", "reason", "kernel has no BREP form")
	}
	return files, nil
}

func (s *Session) exportXML(snap Snapshot, dir string, cells int, files []ExportedFile) ([]ExportedFile, error) {
	base, err := s.synth.Baselink(snap.Params, snap.Layout)
	if err != nil {
		return files, err
	}

	stlPath := filepath.Join(dir, "baselink.stl")
	if err := s.synth.Kernel().WriteSTL(base, stlPath, cells); err != nil {
		return files, fmt.Errorf("write baselink: %w", err)
	}
	files = appendFile(files, ExportXML, stlPath)

	chain := mujoco.NewChain(snap.Params, snap.Layout, "baselink.stl")
	xmlPath := filepath.Join(dir, "robot.xml")
	if err := chain.WriteFile(xmlPath); err != nil {
		return files, err
	}
	return appendFile(files, ExportXML, xmlPath), nil
}

func (s *Session) exportSketch(snap Snapshot, dir string, files []ExportedFile) ([]ExportedFile, error) {
	polar, err := sketch.PolarView(snap.Params, snap.Decomp)
	if err != nil {
		return files, err
	}
	polarPath := filepath.Join(dir, "polar.png")
	if err := sketch.SavePNG(polar, 8, 8, polarPath); err != nil {
		return files, err
	}
	files = appendFile(files, ExportSketch, polarPath)

	strip, err := sketch.StripView(snap.Layout)
	if err != nil {
		return files, err
	}
	stripPath := filepath.Join(dir, "cartesian.png")
	if err := sketch.SavePNG(strip, 10, 6, stripPath); err != nil {
		return files, err
	}
	return appendFile(files, ExportSketch, stripPath), nil
}

func appendFile(files []ExportedFile, kind, path string) []ExportedFile {
	var size int64
	if info, err := os.Stat(path); err == nil {
		size = info.Size()
	}
	return append(files, ExportedFile{Kind: kind, Path: path, Bytes: size})
}
