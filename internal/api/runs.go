package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/iotsim-core/internal/runstore"
	"github.com/nerrad567/iotsim-core/internal/sim"
)

// startRunRequest is the optional JSON body for POST /runs. Fields override
// the configured scenario's run settings; omitted fields keep the values
// from config.yaml.
type startRunRequest struct {
	Name      string   `json:"name"`
	Seed      *int64   `json:"seed"`
	DurationS *float64 `json:"duration_s"`
}

// failoverRequest is the JSON body for POST /runs/current/failover.
type failoverRequest struct {
	DownS float64 `json:"down_s"`
}

// handleStartRun launches a run built from the configured scenario.
// The run slot holds one run at a time; a second start returns 409.
func (s *Server) handleStartRun(w http.ResponseWriter, r *http.Request) {
	var req startRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeBadRequest(w, "invalid JSON body: "+err.Error())
		return
	}

	// Copy the base config so per-request overrides don't leak into
	// subsequent runs.
	cfg := *s.baseConfig
	if req.Name != "" {
		cfg.Run.Name = req.Name
	}
	if req.Seed != nil {
		cfg.Run.Seed = *req.Seed
	}
	if req.DurationS != nil {
		cfg.Run.DurationS = *req.DurationS
	}

	runID, err := s.controller.Start(sim.FromConfig(&cfg))
	if err != nil {
		if errors.Is(err, sim.ErrAlreadyRunning) {
			writeConflict(w, "a run is already active")
			return
		}
		writeBadRequest(w, "starting run: "+err.Error())
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"run_id":   runID,
		"scenario": cfg.Run.Name,
		"status":   sim.StatusRunning,
	})
}

// handleStopRun halts the active run and waits for it to wind down.
func (s *Server) handleStopRun(w http.ResponseWriter, _ *http.Request) {
	if err := s.controller.Stop(); err != nil {
		if errors.Is(err, sim.ErrNotRunning) {
			writeConflict(w, "no run is active")
			return
		}
		writeInternalError(w, "stopping run: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, s.controller.Stats())
}

// handleFailover injects a broker outage into the active run.
func (s *Server) handleFailover(w http.ResponseWriter, r *http.Request) {
	var req failoverRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body: "+err.Error())
		return
	}
	if req.DownS <= 0 {
		writeBadRequest(w, "down_s must be positive")
		return
	}

	if err := s.controller.TriggerFailover(req.DownS); err != nil {
		if errors.Is(err, sim.ErrNotRunning) {
			writeConflict(w, "no run is active")
			return
		}
		writeInternalError(w, "triggering failover: "+err.Error())
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"run_id": s.controller.RunID(),
		"down_s": req.DownS,
	})
}

// handleListRuns returns recent runs, newest first.
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeInternalError(w, "run store not configured")
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeBadRequest(w, "limit must be a positive integer")
			return
		}
		limit = n
	}

	runs, err := s.store.ListRuns(r.Context(), limit)
	if err != nil {
		writeInternalError(w, "listing runs: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"runs":  runs,
		"count": len(runs),
	})
}

// handleGetRun returns one run's record, including summary figures once
// the run has finished.
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeInternalError(w, "run store not configured")
		return
	}

	id := chi.URLParam(r, "id")
	run, err := s.store.GetRun(r.Context(), id)
	if err != nil {
		if errors.Is(err, runstore.ErrNotFound) {
			writeNotFound(w, "run not found: "+id)
			return
		}
		writeInternalError(w, "fetching run: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, run)
}

// handleRunSnapshots returns a run's snapshot sequence in timestamp order.
func (s *Server) handleRunSnapshots(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeInternalError(w, "run store not configured")
		return
	}

	id := chi.URLParam(r, "id")
	if _, err := s.store.GetRun(r.Context(), id); err != nil {
		if errors.Is(err, runstore.ErrNotFound) {
			writeNotFound(w, "run not found: "+id)
			return
		}
		writeInternalError(w, "fetching run: "+err.Error())
		return
	}

	snapshots, err := s.store.Snapshots(r.Context(), id)
	if err != nil {
		writeInternalError(w, "fetching snapshots: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"run_id":    id,
		"snapshots": snapshots,
		"count":     len(snapshots),
	})
}
