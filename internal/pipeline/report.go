package pipeline

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/uidai-stress/internal/model"
)

const reportTopDistricts = 10

// Render writes the console run report, the same summary the run command
// prints and operators archive next to the CSV outputs.
func (r *Result) Render(w io.Writer) {
	fmt.Fprintf(w, "=== Pipeline Run Results ===\n")
	fmt.Fprintf(w, "Run ID: %s\n", r.RunID)
	fmt.Fprintf(w, "Input Files: %d\n", r.InputFiles)
	fmt.Fprintf(w, "Input Rows: %d\n", r.InputRows)
	fmt.Fprintf(w, "Rejected Rows: %d\n", r.RejectedRows)
	fmt.Fprintf(w, "Exact Duplicates: %d\n", r.ExactDuplicates)
	fmt.Fprintf(w, "Merged Rows: %d\n", r.MergedRows)
	fmt.Fprintf(w, "Aggregate Rows: %d\n", len(r.Rows))
	fmt.Fprintf(w, "Districts Scored: %d\n", r.Districts())
	fmt.Fprintf(w, "Elapsed: %s\n", r.Elapsed().Round(time.Millisecond))

	categories := make(map[model.Category]int)
	recs := make(map[model.Recommendation]int)
	for _, p := range r.Profiles {
		categories[p.Category]++
		recs[p.Recommendation]++
	}

	fmt.Fprintf(w, "\n=== Stress Categories ===\n")
	for _, c := range []model.Category{model.CategoryCritical, model.CategoryWarning, model.CategoryNormal} {
		fmt.Fprintf(w, "%s: %d (%.2f%%)\n", c, categories[c], share(categories[c], r.Districts()))
	}

	fmt.Fprintf(w, "\n=== Recommendations ===\n")
	for _, rec := range sortedRecs(recs) {
		fmt.Fprintf(w, "%s: %d\n", rec, recs[rec])
	}

	if top := r.topStressed(reportTopDistricts); len(top) > 0 {
		fmt.Fprintf(w, "\n=== Top Stressed Districts ===\n")
		for i, p := range top {
			fmt.Fprintf(w, "%2d. %s / %s: %.1f (%s)\n",
				i+1, p.State, p.District, p.StressPercentile, p.Recommendation)
		}
	}

	fmt.Fprintf(w, "\n=== Capacity Plan ===\n")
	fmt.Fprintf(w, "Additional Operators: %d\n", r.Summary.TotalOperators)
	fmt.Fprintf(w, "Daily Transaction Gap: %.1f\n", r.Summary.TotalDailyGap)
	fmt.Fprintf(w, "Monthly Cost: ₹%.0f\n", r.Summary.MonthlyCost)
	fmt.Fprintf(w, "Annual Budget: ₹%.0f\n", r.Summary.AnnualCost)
	fmt.Fprintf(w, "Monthly Capacity Added: %.0f\n", r.Summary.MonthlyCapacityAdded)
}

// topStressed returns up to n districts by descending percentile,
// skipping those scored with the insufficient-peers sentinel.
func (r *Result) topStressed(n int) []model.StressProfile {
	ranked := make([]model.StressProfile, 0, len(r.Profiles))
	for _, p := range r.Profiles {
		if p.HasPercentile() {
			ranked = append(ranked, p)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].StressPercentile != ranked[j].StressPercentile {
			return ranked[i].StressPercentile > ranked[j].StressPercentile
		}
		if ranked[i].State != ranked[j].State {
			return ranked[i].State < ranked[j].State
		}
		return ranked[i].District < ranked[j].District
	})
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

func sortedRecs(recs map[model.Recommendation]int) []model.Recommendation {
	out := make([]model.Recommendation, 0, len(recs))
	for rec := range recs {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if recs[out[i]] != recs[out[j]] {
			return recs[out[i]] > recs[out[j]]
		}
		return out[i] < out[j]
	})
	return out
}

func share(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total) * 100
}
