package dataset

import (
	"sort"

	"github.com/uidai-stress/internal/model"
)

// Filter selects profiles; zero-valued selectors match everything.
type Filter struct {
	State          string
	District       string
	Category       model.Category
	Recommendation model.Recommendation
	Window         model.WindowClass
}

// Filter returns the profiles matching every set selector.
func (d *Dataset) Filter(f Filter) []model.StressProfile {
	out := make([]model.StressProfile, 0, len(d.Profiles))
	for _, p := range d.Profiles {
		if f.State != "" && p.State != f.State {
			continue
		}
		if f.District != "" && p.District != f.District {
			continue
		}
		if f.Category != "" && p.Category != f.Category {
			continue
		}
		if f.Recommendation != "" && p.Recommendation != f.Recommendation {
			continue
		}
		if f.Window != "" && p.WindowClass != f.Window {
			continue
		}
		out = append(out, p)
	}
	return out
}

// States lists the states present, sorted.
func (d *Dataset) States() []string {
	seen := make(map[string]bool)
	for _, p := range d.Profiles {
		seen[p.State] = true
	}
	states := make([]string, 0, len(seen))
	for s := range seen {
		states = append(states, s)
	}
	sort.Strings(states)
	return states
}

// Districts lists districts, optionally within one state, sorted.
func (d *Dataset) Districts(state string) []string {
	seen := make(map[string]bool)
	for _, p := range d.Profiles {
		if state != "" && p.State != state {
			continue
		}
		seen[p.District] = true
	}
	districts := make([]string, 0, len(seen))
	for s := range seen {
		districts = append(districts, s)
	}
	sort.Strings(districts)
	return districts
}

// Summary is the headline numbers over a profile set.
type Summary struct {
	Districts           int                          `json:"districts"`
	States              int                          `json:"states"`
	Categories          map[model.Category]int       `json:"categories"`
	Recommendations     map[model.Recommendation]int `json:"recommendations"`
	TotalOperators      int                          `json:"total_operators"`
	MonthlyCost         float64                      `json:"monthly_cost"`
	AvgStressPercentile float64                      `json:"avg_stress_percentile"`
}

// Summarize computes the headline numbers for any (possibly filtered)
// profile set. The percentile average skips sentinel profiles.
func Summarize(profiles []model.StressProfile) Summary {
	s := Summary{
		Districts:       len(profiles),
		Categories:      make(map[model.Category]int),
		Recommendations: make(map[model.Recommendation]int),
	}
	states := make(map[string]bool)
	var pctSum float64
	var pctN int
	for _, p := range profiles {
		states[p.State] = true
		s.Categories[p.Category]++
		s.Recommendations[p.Recommendation]++
		s.TotalOperators += p.OperatorsNeeded
		s.MonthlyCost += p.MonthlyCost
		if p.HasPercentile() {
			pctSum += p.StressPercentile
			pctN++
		}
	}
	s.States = len(states)
	if pctN > 0 {
		s.AvgStressPercentile = pctSum / float64(pctN)
	}
	return s
}

// StateSummary is the district table rolled up to one state row.
type StateSummary struct {
	State           string  `json:"state"`
	DistrictCount   int     `json:"district_count"`
	EURMean         float64 `json:"eur_mean"`
	EURStd          float64 `json:"eur_std"`
	TotalEnrolments int     `json:"total_enrolments"`
	TotalUpdates    int     `json:"total_updates"`
	OperatorsNeeded int     `json:"operators_needed"`
	DailyGap        float64 `json:"daily_gap"`
	MonthlyCost     float64 `json:"monthly_cost"`
}

// StateRollup aggregates district profiles to state level: counts and
// gaps sum, the EUR statistics average across districts.
func StateRollup(profiles []model.StressProfile) []StateSummary {
	byState := make(map[string]*StateSummary)
	for _, p := range profiles {
		s := byState[p.State]
		if s == nil {
			s = &StateSummary{State: p.State}
			byState[p.State] = s
		}
		s.DistrictCount++
		s.EURMean += p.EURMean
		s.EURStd += p.EURStd
		s.TotalEnrolments += p.TotalEnrolments
		s.TotalUpdates += p.TotalUpdates
		s.OperatorsNeeded += p.OperatorsNeeded
		s.DailyGap += p.DailyGap
		s.MonthlyCost += p.MonthlyCost
	}

	rollup := make([]StateSummary, 0, len(byState))
	for _, s := range byState {
		s.EURMean /= float64(s.DistrictCount)
		s.EURStd /= float64(s.DistrictCount)
		rollup = append(rollup, *s)
	}
	sort.Slice(rollup, func(i, j int) bool { return rollup[i].State < rollup[j].State })
	return rollup
}

// TopStressed returns the n highest-ranked districts. Sentinel and
// zero percentiles are excluded, matching the dashboard's ranking view.
func TopStressed(profiles []model.StressProfile, n int) []model.StressProfile {
	ranked := validPercentiles(profiles)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].StressPercentile > ranked[j].StressPercentile
	})
	return head(ranked, n)
}

// LeastStressed returns the n lowest-ranked districts with a valid
// percentile.
func LeastStressed(profiles []model.StressProfile, n int) []model.StressProfile {
	ranked := validPercentiles(profiles)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].StressPercentile < ranked[j].StressPercentile
	})
	return head(ranked, n)
}

func validPercentiles(profiles []model.StressProfile) []model.StressProfile {
	out := make([]model.StressProfile, 0, len(profiles))
	for _, p := range profiles {
		if p.HasPercentile() && p.StressPercentile > 0 {
			out = append(out, p)
		}
	}
	return out
}

func head(profiles []model.StressProfile, n int) []model.StressProfile {
	if n >= 0 && len(profiles) > n {
		return profiles[:n]
	}
	return profiles
}

// MapPoint is a district pinned near its state centroid.
type MapPoint struct {
	State            string               `json:"state"`
	District         string               `json:"district"`
	Lat              float64              `json:"lat"`
	Lon              float64              `json:"lon"`
	Category         model.Category       `json:"eur_category"`
	Recommendation   model.Recommendation `json:"recommendation"`
	StressPercentile *float64             `json:"stress_percentile"`
	OperatorsNeeded  int                  `json:"operators_needed"`
}

// MapPoints geocodes profiles onto state centroids. Districts of states
// missing from the centroid table are left off the map.
func MapPoints(profiles []model.StressProfile) []MapPoint {
	points := make([]MapPoint, 0, len(profiles))
	for _, p := range profiles {
		lat, lon, ok := Locate(p.State, p.District)
		if !ok {
			continue
		}
		point := MapPoint{
			State:           p.State,
			District:        p.District,
			Lat:             lat,
			Lon:             lon,
			Category:        p.Category,
			Recommendation:  p.Recommendation,
			OperatorsNeeded: p.OperatorsNeeded,
		}
		if p.HasPercentile() {
			pct := p.StressPercentile
			point.StressPercentile = &pct
		}
		points = append(points, point)
	}
	return points
}
