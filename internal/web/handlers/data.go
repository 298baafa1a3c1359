package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/uidai-stress/internal/dataset"
	"github.com/uidai-stress/internal/model"
)

const maxRankingSize = 100

// DataHandler serves the scored district dataset loaded from the
// pipeline outputs.
type DataHandler struct {
	Loader *dataset.Loader
}

// DistrictsResponse represents a filtered list of district profiles
type DistrictsResponse struct {
	Districts []District `json:"districts"`
	Total     int        `json:"total"`
}

func (h *DataHandler) load(w http.ResponseWriter) (*dataset.Dataset, bool) {
	ds, err := h.Loader.Load()
	if err != nil {
		writeError(w, "failed to load dataset: "+err.Error(), http.StatusServiceUnavailable)
		return nil, false
	}
	return ds, true
}

// ListDistricts returns the profiles matching the query selectors.
func (h *DataHandler) ListDistricts(w http.ResponseWriter, r *http.Request) {
	ds, ok := h.load(w)
	if !ok {
		return
	}

	query := r.URL.Query()
	profiles := ds.Filter(dataset.Filter{
		State:          query.Get("state"),
		District:       query.Get("district"),
		Category:       model.Category(query.Get("category")),
		Recommendation: model.Recommendation(query.Get("recommendation")),
		Window:         model.WindowClass(query.Get("window")),
	})
	writeJSON(w, DistrictsResponse{Districts: toDistricts(profiles), Total: len(profiles)})
}

// TopDistricts returns the n most stressed districts.
func (h *DataHandler) TopDistricts(w http.ResponseWriter, r *http.Request) {
	h.ranking(w, r, dataset.TopStressed)
}

// LeastDistricts returns the n least stressed districts.
func (h *DataHandler) LeastDistricts(w http.ResponseWriter, r *http.Request) {
	h.ranking(w, r, dataset.LeastStressed)
}

func (h *DataHandler) ranking(w http.ResponseWriter, r *http.Request, rank func([]model.StressProfile, int) []model.StressProfile) {
	ds, ok := h.load(w)
	if !ok {
		return
	}
	n := parseIntParam(r.URL.Query().Get("n"), 10)
	if n > maxRankingSize {
		n = maxRankingSize
	}
	profiles := rank(ds.Profiles, n)
	writeJSON(w, DistrictsResponse{Districts: toDistricts(profiles), Total: len(profiles)})
}

// GetSummary returns the headline numbers over the whole dataset.
func (h *DataHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	ds, ok := h.load(w)
	if !ok {
		return
	}
	writeJSON(w, dataset.Summarize(ds.Profiles))
}

// ListStates returns the states present in the dataset.
func (h *DataHandler) ListStates(w http.ResponseWriter, r *http.Request) {
	ds, ok := h.load(w)
	if !ok {
		return
	}
	states := ds.States()
	writeJSON(w, map[string]interface{}{"states": states, "total": len(states)})
}

// ListStateDistricts returns the district names of one state.
func (h *DataHandler) ListStateDistricts(w http.ResponseWriter, r *http.Request) {
	ds, ok := h.load(w)
	if !ok {
		return
	}
	state := mux.Vars(r)["state"]
	districts := ds.Districts(state)
	if len(districts) == 0 {
		writeError(w, "unknown state "+state, http.StatusNotFound)
		return
	}
	writeJSON(w, map[string]interface{}{"state": state, "districts": districts, "total": len(districts)})
}

// StateSummaries returns the per-state rollup.
func (h *DataHandler) StateSummaries(w http.ResponseWriter, r *http.Request) {
	ds, ok := h.load(w)
	if !ok {
		return
	}
	writeJSON(w, map[string]interface{}{"states": dataset.StateRollup(ds.Profiles)})
}

// GetMapPoints returns the geocoded district markers.
func (h *DataHandler) GetMapPoints(w http.ResponseWriter, r *http.Request) {
	ds, ok := h.load(w)
	if !ok {
		return
	}
	points := dataset.MapPoints(ds.Profiles)
	writeJSON(w, map[string]interface{}{"points": points, "total": len(points)})
}

// Refresh drops the cached dataset and reloads it from disk, so new
// pipeline outputs become visible without a restart.
func (h *DataHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	h.Loader.Invalidate()
	ds, err := h.Loader.Load()
	if err != nil {
		writeError(w, "failed to reload dataset: "+err.Error(), http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, map[string]interface{}{
		"success":   true,
		"districts": len(ds.Profiles),
		"loaded_at": ds.LoadedAt,
	})
}

// Health reports whether the dataset is servable.
func (h *DataHandler) Health(w http.ResponseWriter, r *http.Request) {
	ds, err := h.Loader.Load()
	w.Header().Set("Content-Type", "application/json")
	if err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]interface{}{"status": "unavailable", "error": err.Error()})
		return
	}
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":    "ok",
		"districts": len(ds.Profiles),
		"loaded_at": ds.LoadedAt,
		"time":      time.Now().UTC(),
	})
}
