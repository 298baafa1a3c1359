package stress

import (
	"context"
	"math"
	"runtime"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/uidai-stress/internal/feature"
	"github.com/uidai-stress/internal/model"
)

// Window class boundaries on the trailing-history span of a district,
// measured in days from its first observation to the dataset's as-of date.
const (
	ShortTermMaxDays = 30 // spans below this are short_term
	LongTermMinDays  = 90 // spans above this are long_term
)

// Scorer computes per-district stress statistics from the daily aggregate
// table. Districts are partitioned across workers; results are merged and
// ranked afterwards, so worker count never changes the output.
type Scorer struct {
	workers int
}

// NewScorer creates a scorer. workers <= 0 means one worker per CPU.
func NewScorer(workers int) *Scorer {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Scorer{workers: workers}
}

// districtStats is the per-district intermediate before ranking.
type districtStats struct {
	key          model.DistrictKey
	span         int
	observedDays int
	eurMean      float64
	eurStd       float64
	enrolments   int
	updates      int
}

// Score produces one stress profile per district: EUR mean and population
// std over the district-day series, window class from trailing-history
// span, and percentile rank within the window class. Profiles are sorted
// by state and district. Rule and capacity fields are left for the later
// stages.
func (s *Scorer) Score(ctx context.Context, rows []model.AggregateRow) ([]model.StressProfile, error) {
	if len(rows) == 0 {
		return nil, nil
	}

	byDistrict := make(map[model.DistrictKey][]model.AggregateRow)
	asOf := rows[0].Date
	for _, row := range rows {
		key := model.DistrictKey{State: row.State, District: row.District}
		byDistrict[key] = append(byDistrict[key], row)
		if row.Date.After(asOf) {
			asOf = row.Date
		}
	}

	keys := make([]model.DistrictKey, 0, len(byDistrict))
	for key := range byDistrict {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].State != keys[j].State {
			return keys[i].State < keys[j].State
		}
		return keys[i].District < keys[j].District
	})

	stats, err := s.computeStats(ctx, keys, byDistrict, asOf)
	if err != nil {
		return nil, err
	}

	return rank(stats), nil
}

// computeStats fans the sorted district keys out over the worker pool.
func (s *Scorer) computeStats(ctx context.Context, keys []model.DistrictKey, byDistrict map[model.DistrictKey][]model.AggregateRow, asOf time.Time) ([]districtStats, error) {
	workers := s.workers
	if workers > len(keys) {
		workers = len(keys)
	}

	stats := make([]districtStats, len(keys))
	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		w := w
		g.Go(func() error {
			for i := w; i < len(keys); i += workers {
				if err := ctx.Err(); err != nil {
					return err
				}
				stats[i] = computeDistrict(keys[i], byDistrict[keys[i]], asOf)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return stats, nil
}

// computeDistrict collapses a district's rows to a district-day series in
// date order and derives its stats. The EUR of each day is recomputed from
// the counts summed across pincodes, never averaged from row ratios.
func computeDistrict(key model.DistrictKey, rows []model.AggregateRow, asOf time.Time) districtStats {
	byDay := make(map[time.Time]model.Counts)
	for _, row := range rows {
		byDay[row.Date] = byDay[row.Date].Add(row.Counts)
	}

	days := make([]time.Time, 0, len(byDay))
	for day := range byDay {
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	st := districtStats{key: key, observedDays: len(days)}
	series := make([]float64, 0, len(days))
	for _, day := range days {
		c := byDay[day]
		st.enrolments += c.Enrolments()
		st.updates += c.Updates()
		series = append(series, feature.Ratio(c.Updates(), c.Enrolments()))
	}

	st.span = int(asOf.Sub(days[0]).Hours() / 24)
	st.eurMean, st.eurStd = meanStd(series)
	return st
}

// meanStd returns the mean and population standard deviation.
func meanStd(xs []float64) (mean, std float64) {
	if len(xs) == 0 {
		return 0, 0
	}
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))

	var sq float64
	for _, x := range xs {
		d := x - mean
		sq += d * d
	}
	return mean, math.Sqrt(sq / float64(len(xs)))
}

// WindowFor buckets a trailing-history span into its window class.
func WindowFor(spanDays int) model.WindowClass {
	switch {
	case spanDays < ShortTermMaxDays:
		return model.WindowShortTerm
	case spanDays > LongTermMinDays:
		return model.WindowLongTerm
	default:
		return model.WindowMidTerm
	}
}

// rank assigns stress percentiles within each window class. Districts are
// ordered by mean EUR ascending with (state, district) as the tie-break,
// 1-based rank over peer count, so the highest mean gets exactly 100. A
// class with fewer than 2 districts gets the NaN sentinel instead of a
// fabricated rank.
func rank(stats []districtStats) []model.StressProfile {
	byClass := make(map[model.WindowClass][]int)
	for i, st := range stats {
		class := WindowFor(st.span)
		byClass[class] = append(byClass[class], i)
	}

	percentiles := make([]float64, len(stats))
	peers := make([]int, len(stats))
	for _, members := range byClass {
		sort.Slice(members, func(a, b int) bool {
			sa, sb := stats[members[a]], stats[members[b]]
			if sa.eurMean != sb.eurMean {
				return sa.eurMean < sb.eurMean
			}
			if sa.key.State != sb.key.State {
				return sa.key.State < sb.key.State
			}
			return sa.key.District < sb.key.District
		})
		n := len(members)
		for pos, idx := range members {
			if n < 2 {
				percentiles[idx] = math.NaN()
			} else {
				percentiles[idx] = float64(pos+1) / float64(n) * 100
			}
			peers[idx] = n
		}
	}

	profiles := make([]model.StressProfile, len(stats))
	for i, st := range stats {
		profiles[i] = model.StressProfile{
			State:              st.key.State,
			District:           st.key.District,
			WindowClass:        WindowFor(st.span),
			EURMean:            st.eurMean,
			EURStd:             st.eurStd,
			StressPercentile:   percentiles[i],
			PeerCount:          peers[i],
			TotalEnrolments:    st.enrolments,
			TotalUpdates:       st.updates,
			ObservedDays:       st.observedDays,
			AvgDailyEnrolments: float64(st.enrolments) / float64(st.observedDays),
			AvgDailyUpdates:    float64(st.updates) / float64(st.observedDays),
		}
	}
	return profiles
}
