// Package handlers implements the JSON API over the scored district
// dataset and the run history store.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/uidai-stress/internal/model"
)

// District is one scored district as served by the API. The percentile
// is a pointer so the insufficient-peers sentinel serializes as null.
type District struct {
	State            string   `json:"state"`
	District         string   `json:"district"`
	WindowClass      string   `json:"window_class"`
	EURMean          float64  `json:"eur_mean"`
	EURStd           float64  `json:"eur_std"`
	StressPercentile *float64 `json:"stress_percentile"`
	PeerCount        int      `json:"peer_count"`
	Category         string   `json:"eur_category"`
	Recommendation   string   `json:"recommendation"`
	Reason           string   `json:"reason"`

	TotalEnrolments    int     `json:"total_enrolments"`
	TotalUpdates       int     `json:"total_updates"`
	ObservedDays       int     `json:"observed_days"`
	AvgDailyEnrolments float64 `json:"avg_daily_enrolments"`
	AvgDailyUpdates    float64 `json:"avg_daily_updates"`

	DailyGap        float64 `json:"daily_gap"`
	OperatorsNeeded int     `json:"operators_needed"`
	MonthlyCost     float64 `json:"monthly_cost"`
}

func toDistrict(p model.StressProfile) District {
	d := District{
		State:              p.State,
		District:           p.District,
		WindowClass:        string(p.WindowClass),
		EURMean:            p.EURMean,
		EURStd:             p.EURStd,
		PeerCount:          p.PeerCount,
		Category:           string(p.Category),
		Recommendation:     string(p.Recommendation),
		Reason:             p.Reason,
		TotalEnrolments:    p.TotalEnrolments,
		TotalUpdates:       p.TotalUpdates,
		ObservedDays:       p.ObservedDays,
		AvgDailyEnrolments: p.AvgDailyEnrolments,
		AvgDailyUpdates:    p.AvgDailyUpdates,
		DailyGap:           p.DailyGap,
		OperatorsNeeded:    p.OperatorsNeeded,
		MonthlyCost:        p.MonthlyCost,
	}
	if p.HasPercentile() {
		pct := p.StressPercentile
		d.StressPercentile = &pct
	}
	return d
}

func toDistricts(profiles []model.StressProfile) []District {
	out := make([]District, 0, len(profiles))
	for _, p := range profiles {
		out = append(out, toDistrict(p))
	}
	return out
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

func parseIntParam(value string, defaultValue int) int {
	if value == "" {
		return defaultValue
	}
	if v, err := strconv.Atoi(value); err == nil && v > 0 {
		return v
	}
	return defaultValue
}
