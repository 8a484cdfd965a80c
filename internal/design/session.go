// Package design holds the live design session: the current parameter set,
// the derived decomposition, layout and cone angles, and the export driver.
package design

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/talgya/spirob/internal/layout"
	"github.com/talgya/spirob/internal/solid"
	"github.com/talgya/spirob/internal/spiral"
)

// Metrics are the headline numbers shown for a design.
type Metrics struct {
	TaperAngleDeg float64 `json:"taper_angle_deg"`
	TipSize       float64 `json:"tip_size"`
	BaseSize      float64 `json:"base_size"`
	RobotLength   float64 `json:"robot_length"`
	UnitCount     int     `json:"unit_count"`
}

// Snapshot is one immutable, fully derived design state. Readers get the
// whole snapshot at once, so the decomposition, layout and cone angles they
// see always belong to the same parameter set.
type Snapshot struct {
	Params  spiral.Params        `json:"params"`
	Decomp  spiral.Decomposition `json:"decomposition"`
	Layout  layout.Layout        `json:"layout"`
	Metrics Metrics              `json:"metrics"`

	// Cone angles after clamping, plus the current maxima the clamps
	// were taken against.
	Cone1Deg    float64 `json:"cone1_deg"`
	Cone2Deg    float64 `json:"cone2_deg"`
	Cone1MaxDeg float64 `json:"cone1_max_deg"`
	Cone2MaxDeg float64 `json:"cone2_max_deg"`
}

// Session owns the mutable design state. All mutation goes through Apply or
// SetParams; reads return value copies.
type Session struct {
	synth *solid.Synthesizer

	mu sync.RWMutex
	// extrusionSet flips once the user supplies an explicit extrusion.
	// Before that, every recompute re-derives the default from the base
	// size; after, the user's value only gets clamped into range.
	extrusionSet bool
	params       spiral.Params
	snap         Snapshot

	// pending holds at most one queued patch; a newer submission replaces
	// an unserved older one.
	pending chan json.RawMessage
}

// NewSession builds a session at the default parameters and computes the
// first snapshot. synth may wrap a nil kernel.
func NewSession(synth *solid.Synthesizer) *Session {
	s := &Session{
		synth:   synth,
		params:  spiral.DefaultParams(),
		pending: make(chan json.RawMessage, 1),
	}
	s.mu.Lock()
	s.recomputeLocked()
	s.mu.Unlock()
	return s
}

// Synthesizer exposes the solid builder for the export path.
func (s *Session) Synthesizer() *solid.Synthesizer { return s.synth }

// Snapshot returns the current derived state.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// Params returns the current parameter set.
func (s *Session) Params() spiral.Params {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.params
}

// SetParams replaces the whole parameter set, as preset application does.
// The extrusion override survives only if the new set carries an explicit
// extrusion of its own.
func (s *Session) SetParams(p spiral.Params) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.params = p.Normalized()
	s.extrusionSet = p.Extrusion != 0
	s.recomputeLocked()
	return s.snap
}

// Apply merges a JSON patch over the current parameters and recomputes.
// Unknown fields are rejected; a patch that names "extrusion" switches the
// extrusion from derived to user-controlled.
func (s *Session) Apply(patch json.RawMessage) (Snapshot, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(patch, &fields); err != nil {
		return Snapshot{}, fmt.Errorf("decode patch: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.params
	dec := json.NewDecoder(bytes.NewReader(patch))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&next); err != nil {
		return Snapshot{}, fmt.Errorf("apply patch: %w", err)
	}

	s.params = next.Normalized()
	if _, ok := fields["extrusion"]; ok {
		s.extrusionSet = true
	}
	s.recomputeLocked()
	return s.snap, nil
}

// Submit queues a patch for the background worker, replacing any patch that
// is still waiting. The newest parameters always win.
func (s *Session) Submit(patch json.RawMessage) {
	for {
		select {
		case s.pending <- patch:
			return
		default:
			select {
			case <-s.pending:
			default:
			}
		}
	}
}

// Run serves queued patches until the context ends.
func (s *Session) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case patch := <-s.pending:
			if _, err := s.Apply(patch); err != nil {
				slog.Warn("queued patch rejected", "error", err)
			}
		}
	}
}

// recomputeLocked rebuilds the snapshot from s.params. Callers hold s.mu.
func (s *Session) recomputeLocked() {
	d := spiral.Decompose(s.params)
	lay := layout.Unfold(s.params, d.UnitCount())

	// The extrusion depends on the base size, which depends on the
	// layout; it is settled here and written back into the parameters so
	// every consumer sees the same value.
	lo, hi := 0.2*lay.BaseSize, lay.BaseSize
	if s.extrusionSet {
		s.params.Extrusion = clamp(s.params.Extrusion, lo, hi)
	} else {
		s.params.Extrusion = clamp(0.6*lay.BaseSize, lo, hi)
	}

	cone1, cone2 := solid.EffectiveCones(s.params, lay)
	s.snap = Snapshot{
		Params: s.params,
		Decomp: d,
		Layout: lay,
		Metrics: Metrics{
			TaperAngleDeg: lay.TaperAngleDeg,
			TipSize:       lay.TipSize,
			BaseSize:      lay.BaseSize,
			RobotLength:   lay.RobotLength,
			UnitCount:     lay.UnitCount(),
		},
		Cone1Deg:    cone1,
		Cone2Deg:    cone2,
		Cone1MaxDeg: solid.Cone1MaxDeg(math.Max(0.1, s.params.Extrusion), lay.RobotLength),
		Cone2MaxDeg: solid.Cone2MaxDeg(lay.TaperAngleDeg),
	}
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
