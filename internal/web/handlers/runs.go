package handlers

import (
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/uidai-stress/internal/store"
)

const maxRunListSize = 200

// RunsHandler serves pipeline run history from the relational store.
type RunsHandler struct {
	Store *store.Store
}

// RunResponse represents one archived pipeline run
type RunResponse struct {
	RunID          string    `json:"run_id"`
	StartedAt      time.Time `json:"started_at"`
	FinishedAt     time.Time `json:"finished_at"`
	InputFiles     int       `json:"input_files"`
	InputRows      int       `json:"input_rows"`
	RejectedRows   int       `json:"rejected_rows"`
	DuplicateRows  int       `json:"duplicate_rows"`
	AggregateRows  int       `json:"aggregate_rows"`
	Districts      int       `json:"districts"`
	TotalOperators int       `json:"total_operators"`
	MonthlyCost    float64   `json:"monthly_cost"`
}

func toRunResponse(run store.Run) RunResponse {
	return RunResponse{
		RunID:          run.RunID,
		StartedAt:      run.StartedAt,
		FinishedAt:     run.FinishedAt,
		InputFiles:     run.InputFiles,
		InputRows:      run.InputRows,
		RejectedRows:   run.RejectedRows,
		DuplicateRows:  run.DuplicateRows,
		AggregateRows:  run.AggregateRows,
		Districts:      run.Districts,
		TotalOperators: run.TotalOperators,
		MonthlyCost:    run.MonthlyCost,
	}
}

// ListRuns returns archived runs, newest first.
func (h *RunsHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit := parseIntParam(r.URL.Query().Get("limit"), 20)
	if limit > maxRunListSize {
		limit = maxRunListSize
	}

	runs, err := h.Store.Runs(r.Context(), limit)
	if err != nil {
		writeError(w, "failed to list runs", http.StatusInternalServerError)
		return
	}
	out := make([]RunResponse, 0, len(runs))
	for _, run := range runs {
		out = append(out, toRunResponse(run))
	}
	writeJSON(w, map[string]interface{}{"runs": out, "total": len(out)})
}

// LatestRun returns the most recent archived run.
func (h *RunsHandler) LatestRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.Store.LatestRun(r.Context())
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, "no runs recorded", http.StatusNotFound)
		return
	}
	if err != nil {
		writeError(w, "failed to load latest run", http.StatusInternalServerError)
		return
	}
	writeJSON(w, toRunResponse(run))
}

// RunProfiles returns the archived district profiles of one run.
func (h *RunsHandler) RunProfiles(w http.ResponseWriter, r *http.Request) {
	runID := mux.Vars(r)["id"]
	profiles, err := h.Store.Profiles(r.Context(), runID)
	if err != nil {
		writeError(w, "failed to load run profiles", http.StatusInternalServerError)
		return
	}
	if len(profiles) == 0 {
		writeError(w, "unknown run "+runID, http.StatusNotFound)
		return
	}
	writeJSON(w, DistrictsResponse{Districts: toDistricts(profiles), Total: len(profiles)})
}
