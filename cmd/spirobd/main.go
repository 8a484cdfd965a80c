// Command spirobd serves the spiral limb designer over HTTP.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/talgya/spirob/internal/api"
	"github.com/talgya/spirob/internal/design"
	"github.com/talgya/spirob/internal/persistence"
	"github.com/talgya/spirob/internal/solid"
	"github.com/talgya/spirob/internal/spiral"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	dbPath := envOr("SPIROB_DB", "data/spirob.db")
	exportDir := envOr("SPIROB_EXPORT_DIR", "exports")
	apiPort := envInt("SPIROB_PORT", 8080)
	meshCells := envInt("SPIROB_MESH_CELLS", 200)

	// ── Database ──────────────────────────────────────────────────────
	os.MkdirAll(filepath.Dir(dbPath), 0755)
	db, err := persistence.Open(dbPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("database opened", "path", dbPath)

	// ── Solid kernel ──────────────────────────────────────────────────
	var kernel solid.Kernel
	if os.Getenv("SPIROB_NO_KERNEL") != "" {
		slog.Warn("SPIROB_NO_KERNEL set, solid construction and CAD export disabled")
	} else {
		kernel = solid.NewSDFKernel()
	}

	// ── Design session ────────────────────────────────────────────────
	session := design.NewSession(solid.NewSynthesizer(kernel))

	// Restore the last design the daemon was serving, if any.
	if paramsJSON, err := db.GetMeta("last_params"); err == nil {
		var p spiral.Params
		if err := json.Unmarshal([]byte(paramsJSON), &p); err != nil {
			slog.Warn("saved parameters unreadable, starting from defaults", "error", err)
		} else {
			session.SetParams(p)
			slog.Info("design restored", "units", session.Snapshot().Metrics.UnitCount)
		}
	}

	snap := session.Snapshot()
	slog.Info("design ready",
		"units", snap.Metrics.UnitCount,
		"robot_length", fmt.Sprintf("%.2f", snap.Metrics.RobotLength),
		"taper_deg", fmt.Sprintf("%.3f", snap.Metrics.TaperAngleDeg),
		"joint", snap.Params.Joint(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go session.Run(ctx)

	// ── HTTP API ──────────────────────────────────────────────────────
	adminKey := os.Getenv("SPIROB_ADMIN_KEY")
	if adminKey == "" {
		slog.Warn("SPIROB_ADMIN_KEY not set, admin POST endpoints will be disabled")
	}

	apiServer := &api.Server{
		Session:   session,
		DB:        db,
		Port:      apiPort,
		AdminKey:  adminKey,
		ExportDir: exportDir,
		MeshCells: meshCells,
	}
	apiServer.Start()

	fmt.Printf("\nspirobd serving %d units over %.2f mm.\n",
		snap.Metrics.UnitCount, snap.Metrics.RobotLength)
	fmt.Printf("API: http://localhost:%d/api/v1/status\n", apiPort)
	fmt.Println("Ctrl+C to stop.")

	<-ctx.Done()

	// Persist the live parameters so the next start resumes this design.
	slog.Info("shutting down")
	paramsJSON, err := json.Marshal(session.Params())
	if err == nil {
		if err := db.SaveMeta("last_params", string(paramsJSON)); err != nil {
			slog.Error("final save failed", "error", err)
		}
	}
	fmt.Println("Designer stopped. Parameters saved.")
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
