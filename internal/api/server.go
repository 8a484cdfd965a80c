// Package api provides the HTTP API for the design session.
// GET endpoints are public (read-only inspection of the current design).
// POST endpoints require a bearer token (design control plane).
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/talgya/spirob/internal/design"
	"github.com/talgya/spirob/internal/mujoco"
	"github.com/talgya/spirob/internal/persistence"
	"github.com/talgya/spirob/internal/solid"
)

// Server serves the design session over HTTP.
type Server struct {
	Session   *design.Session
	DB        *persistence.DB
	Port      int
	AdminKey  string // Bearer token for POST endpoints. Empty = POST disabled.
	ExportDir string // Root directory for export runs.
	MeshCells int    // Default STL meshing resolution.

	budget *ExportBudget
}

// Export credit pricing. Solid kinds mesh the whole body through the
// octree; sketches only draw lines.
const (
	solidExportCost  = 5
	sketchExportCost = 1
	exportCredits    = 120 // per client per hour
)

// exportCost prices an export run by its kinds. Empty kinds means a full
// run of everything.
func exportCost(kinds []string) int {
	if len(kinds) == 0 {
		kinds = []string{design.ExportCAD, design.ExportXML, design.ExportSketch}
	}
	cost := 0
	for _, kind := range kinds {
		switch kind {
		case design.ExportCAD, design.ExportXML:
			cost += solidExportCost
		default:
			cost += sketchExportCost
		}
	}
	return cost
}

// Start begins serving the HTTP API in a goroutine.
func (s *Server) Start() {
	// Exports mesh the whole solid; keep them off the hot path.
	s.budget = NewExportBudget(exportCredits, time.Hour)

	mux := http.NewServeMux()

	// Public endpoints (GET, read-only).
	mux.HandleFunc("/api/v1/status", s.handleStatus)
	mux.HandleFunc("/api/v1/units", s.handleUnits)
	mux.HandleFunc("/api/v1/layout", s.handleLayout)
	mux.HandleFunc("/api/v1/chain", s.handleChain)
	mux.HandleFunc("/api/v1/exports", s.handleExports)

	// Admin endpoints (POST, require bearer token).
	mux.HandleFunc("/api/v1/params", s.adminOnly(s.handleParams))
	mux.HandleFunc("/api/v1/presets", s.adminOnly(s.handlePresets))
	mux.HandleFunc("/api/v1/presets/", s.adminOnly(s.handlePresetRoutes))
	mux.HandleFunc("/api/v1/export", s.adminOnly(s.handleExport))

	addr := fmt.Sprintf(":%d", s.Port)
	slog.Info("HTTP API starting", "addr", addr, "admin_auth", s.AdminKey != "")

	go func() {
		handler := corsMiddleware(mux)
		if err := http.ListenAndServe(addr, handler); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()
}

// corsMiddleware adds CORS headers for allowed frontend origins.
// Set CORS_ORIGINS env var to a comma-separated list of allowed origins.
// Localhost dev servers are always allowed.
func corsMiddleware(next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:4173": true,
		"http://localhost:3000": true,
	}
	if env := os.Getenv("CORS_ORIGINS"); env != "" {
		for _, origin := range strings.Split(env, ",") {
			origin = strings.TrimSpace(origin)
			if origin != "" {
				allowedOrigins[origin] = true
			}
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// checkBearerToken returns true if the request has a valid admin bearer token.
func (s *Server) checkBearerToken(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.AdminKey
}

// adminOnly wraps a handler to require bearer token auth on mutating requests.
// GET requests pass through (for endpoints that support both GET and POST).
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost || r.Method == http.MethodDelete {
			if s.AdminKey == "" {
				http.Error(w, "admin endpoints disabled (no SPIROB_ADMIN_KEY set)", http.StatusForbidden)
				return
			}

			if !s.checkBearerToken(r) {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}

		next(w, r)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap := s.Session.Snapshot()

	_, brep := s.Session.Synthesizer().Kernel().(solid.BrepExporter)

	status := map[string]any{
		"name":             "spirob",
		"params":           snap.Params,
		"unit_count":       snap.Metrics.UnitCount,
		"taper_angle_deg":  snap.Metrics.TaperAngleDeg,
		"tip_size":         snap.Metrics.TipSize,
		"base_size":        snap.Metrics.BaseSize,
		"robot_length":     snap.Metrics.RobotLength,
		"joint":            snap.Params.Joint(),
		"extrusion":        snap.Params.Extrusion,
		"cone1_deg":        snap.Cone1Deg,
		"cone2_deg":        snap.Cone2Deg,
		"cone1_max_deg":    snap.Cone1MaxDeg,
		"cone2_max_deg":    snap.Cone2MaxDeg,
		"kernel_available": s.Session.Synthesizer().Available(),
		"brep_capable":     brep,
	}
	if s.DB != nil {
		if n, err := s.DB.CountExports(); err == nil {
			status["export_count"] = n
		}
	}
	writeJSON(w, status)
}

func (s *Server) handleUnits(w http.ResponseWriter, r *http.Request) {
	snap := s.Session.Snapshot()
	writeJSON(w, snap.Decomp)
}

func (s *Server) handleLayout(w http.ResponseWriter, r *http.Request) {
	snap := s.Session.Snapshot()

	result := map[string]any{
		"layout": snap.Layout,
	}
	if snap.Params.TwoCable {
		left, right := snap.Layout.CableSites(snap.Params)
		result["cable_sites"] = map[string]any{
			"upper": map[string]float64{"x": left.X, "y": left.Y},
			"lower": map[string]float64{"x": right.X, "y": right.Y},
		}
	}
	writeJSON(w, result)
}

func (s *Server) handleChain(w http.ResponseWriter, r *http.Request) {
	snap := s.Session.Snapshot()
	chain := mujoco.NewChain(snap.Params, snap.Layout, "baselink.stl")

	result := map[string]any{
		"mesh_file":       chain.MeshFile,
		"unit_height":     chain.UnitHeight,
		"scale":           chain.Scale,
		"units":           chain.Units,
		"joint":           chain.Joint,
		"joint_limit_deg": chain.JointLimitDeg,
		"robot_length":    chain.RobotLength,
	}
	if chain.TwoCable {
		result["sites"] = map[string]any{
			"upper": map[string]float64{"x": chain.SiteUpper.X, "y": chain.SiteUpper.Y},
			"lower": map[string]float64{"x": chain.SiteLower.X, "y": chain.SiteLower.Y},
		}
	}
	writeJSON(w, result)
}

func (s *Server) handleExports(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "database not available", http.StatusServiceUnavailable)
		return
	}

	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	recs, err := s.DB.ListExports(limit)
	if err != nil {
		slog.Error("export list query failed", "error", err)
		writeJSON(w, []persistence.ExportRecord{})
		return
	}
	if recs == nil {
		recs = []persistence.ExportRecord{}
	}
	writeJSON(w, recs)
}

// handleParams returns the current parameters on GET and applies a JSON
// patch on POST. A patch with ?async=true is queued for the session worker
// and answered immediately; queued patches coalesce, newest wins.
func (s *Server) handleParams(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, s.Session.Params())
		return
	}

	patch, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<16))
	if err != nil {
		http.Error(w, "body too large", http.StatusRequestEntityTooLarge)
		return
	}

	if r.URL.Query().Get("async") == "true" {
		s.Session.Submit(patch)
		w.WriteHeader(http.StatusAccepted)
		writeJSON(w, map[string]any{"queued": true})
		return
	}

	snap, err := s.Session.Apply(patch)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, snap)
}

func (s *Server) handlePresets(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "database not available", http.StatusServiceUnavailable)
		return
	}

	if r.Method != http.MethodPost {
		presets, err := s.DB.ListPresets()
		if err != nil {
			slog.Error("preset list query failed", "error", err)
			http.Error(w, "preset list failed", http.StatusInternalServerError)
			return
		}
		if presets == nil {
			presets = []persistence.Preset{}
		}
		writeJSON(w, presets)
		return
	}

	var req struct {
		Name   string          `json:"name"`
		Params json.RawMessage `json:"params,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.Name == "" {
		http.Error(w, "name required", http.StatusBadRequest)
		return
	}

	// A preset without explicit params captures the live design.
	params := s.Session.Params()
	if req.Params != nil {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			http.Error(w, "invalid params", http.StatusBadRequest)
			return
		}
	}

	if err := s.DB.SavePreset(req.Name, params); err != nil {
		slog.Error("preset save failed", "error", err, "name", req.Name)
		http.Error(w, "preset save failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{"name": req.Name, "saved": true})
}

// handlePresetRoutes dispatches /api/v1/presets/apply and
// /api/v1/presets/:name.
func (s *Server) handlePresetRoutes(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "database not available", http.StatusServiceUnavailable)
		return
	}

	name := strings.TrimPrefix(r.URL.Path, "/api/v1/presets/")
	if name == "" {
		http.Error(w, "missing preset name", http.StatusBadRequest)
		return
	}

	if name == "apply" {
		s.handlePresetApply(w, r)
		return
	}

	switch r.Method {
	case http.MethodDelete:
		if err := s.DB.DeletePreset(name); err != nil {
			if errors.Is(err, persistence.ErrNotFound) {
				http.Error(w, "preset not found", http.StatusNotFound)
				return
			}
			http.Error(w, "preset delete failed", http.StatusInternalServerError)
			return
		}
		writeJSON(w, map[string]any{"name": name, "deleted": true})
	default:
		pre, err := s.DB.LoadPreset(name)
		if err != nil {
			if errors.Is(err, persistence.ErrNotFound) {
				http.Error(w, "preset not found", http.StatusNotFound)
				return
			}
			http.Error(w, "preset load failed", http.StatusInternalServerError)
			return
		}
		writeJSON(w, pre)
	}
}

func (s *Server) handlePresetApply(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		http.Error(w, "name required", http.StatusBadRequest)
		return
	}

	pre, err := s.DB.LoadPreset(req.Name)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			http.Error(w, "preset not found", http.StatusNotFound)
			return
		}
		http.Error(w, "preset load failed", http.StatusInternalServerError)
		return
	}

	snap := s.Session.SetParams(pre.Params)
	slog.Info("preset applied", "name", req.Name, "units", snap.Metrics.UnitCount)
	writeJSON(w, snap)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Kinds     []string `json:"kinds,omitempty"`
		MeshCells int      `json:"mesh_cells,omitempty"`
	}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
	}

	if s.budget != nil {
		ip := clientIP(r)
		if !s.budget.Spend(ip, exportCost(req.Kinds)) {
			w.Header().Set("Retry-After", strconv.Itoa(s.budget.RetryAfter(ip)))
			http.Error(w, "export budget exhausted", http.StatusTooManyRequests)
			return
		}
	}

	cells := req.MeshCells
	if cells <= 0 {
		cells = s.MeshCells
	}

	dir, files, err := s.Session.Export(design.ExportOptions{
		Dir:       s.ExportDir,
		Kinds:     req.Kinds,
		MeshCells: cells,
	})
	if err != nil {
		if errors.Is(err, solid.ErrKernelUnavailable) {
			http.Error(w, "solid kernel unavailable", http.StatusServiceUnavailable)
			return
		}
		slog.Error("export failed", "error", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if s.DB != nil {
		now := time.Now().UTC()
		for _, f := range files {
			rec := persistence.ExportRecord{
				ID:        uuid.NewString(),
				Kind:      f.Kind,
				Path:      f.Path,
				Bytes:     f.Bytes,
				CreatedAt: now,
			}
			if err := s.DB.RecordExport(rec); err != nil {
				slog.Error("export record failed", "error", err, "path", f.Path)
			}
		}
		if err := s.DB.SaveMeta("last_export", dir); err != nil {
			slog.Error("export meta save failed", "error", err)
		}
	}

	type exportedFile struct {
		design.ExportedFile
		Size string `json:"size"`
	}
	out := make([]exportedFile, 0, len(files))
	for _, f := range files {
		out = append(out, exportedFile{ExportedFile: f, Size: humanize.Bytes(uint64(f.Bytes))})
	}
	writeJSON(w, map[string]any{"dir": dir, "files": out})
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
