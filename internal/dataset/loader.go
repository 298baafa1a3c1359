// Package dataset loads the exported run outputs for the web API,
// mirroring what the dashboard consumes: district_recommendations.csv
// merged with operator_requirements.csv on the district key.
package dataset

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/uidai-stress/internal/export"
	"github.com/uidai-stress/internal/model"
)

const cacheKey = "dataset"

// Loader reads and caches the exported dataset. The cache never expires
// on a timer; refresh is explicit, after a new pipeline run lands.
type Loader struct {
	dir   string
	cache *gocache.Cache
}

func NewLoader(dir string) *Loader {
	return &Loader{dir: dir, cache: gocache.New(gocache.NoExpiration, 0)}
}

// Dataset is one loaded snapshot of the exported profiles.
type Dataset struct {
	Profiles []model.StressProfile
	LoadedAt time.Time
}

// Load returns the cached dataset, reading the CSVs on first use.
func (l *Loader) Load() (*Dataset, error) {
	if v, ok := l.cache.Get(cacheKey); ok {
		return v.(*Dataset), nil
	}
	ds, err := l.read()
	if err != nil {
		return nil, err
	}
	l.cache.Set(cacheKey, ds, gocache.NoExpiration)
	return ds, nil
}

// Invalidate drops the cached snapshot so the next Load re-reads the
// files.
func (l *Loader) Invalidate() {
	l.cache.Delete(cacheKey)
}

func (l *Loader) read() (*Dataset, error) {
	profiles, err := readRecommendations(filepath.Join(l.dir, export.RecommendationsFile))
	if err != nil {
		return nil, err
	}
	if err := mergeRequirements(profiles, filepath.Join(l.dir, export.RequirementsFile)); err != nil {
		return nil, err
	}
	sort.Slice(profiles, func(i, j int) bool {
		if profiles[i].State != profiles[j].State {
			return profiles[i].State < profiles[j].State
		}
		return profiles[i].District < profiles[j].District
	})
	return &Dataset{Profiles: profiles, LoadedAt: time.Now()}, nil
}

func readRecommendations(path string) ([]model.StressProfile, error) {
	records, columns, err := readTable(path)
	if err != nil {
		return nil, err
	}

	profiles := make([]model.StressProfile, 0, len(records))
	for i, row := range records {
		get := func(col string) string { return field(row, columns, col) }

		p := model.StressProfile{
			State:          get("state"),
			District:       get("district"),
			WindowClass:    model.WindowClass(get("window_class")),
			Category:       model.Category(get("eur_category")),
			Recommendation: model.Recommendation(get("recommendation")),
			Reason:         get("reason"),
		}
		if p.EURMean, err = floatField(get("eur_mean")); err != nil {
			return nil, fmt.Errorf("%s: row %d: eur_mean: %w", path, i+2, err)
		}
		if p.EURStd, err = floatField(get("eur_std")); err != nil {
			return nil, fmt.Errorf("%s: row %d: eur_std: %w", path, i+2, err)
		}
		p.StressPercentile = percentileField(get("stress_percentile"))
		if p.PeerCount, err = intField(get("peer_count")); err != nil {
			return nil, fmt.Errorf("%s: row %d: peer_count: %w", path, i+2, err)
		}
		if p.TotalEnrolments, err = intField(get("total_enrolments")); err != nil {
			return nil, fmt.Errorf("%s: row %d: total_enrolments: %w", path, i+2, err)
		}
		if p.TotalUpdates, err = intField(get("total_updates")); err != nil {
			return nil, fmt.Errorf("%s: row %d: total_updates: %w", path, i+2, err)
		}
		if p.ObservedDays, err = intField(get("observed_days")); err != nil {
			return nil, fmt.Errorf("%s: row %d: observed_days: %w", path, i+2, err)
		}
		profiles = append(profiles, p)
	}
	return profiles, nil
}

func mergeRequirements(profiles []model.StressProfile, path string) error {
	records, columns, err := readTable(path)
	if err != nil {
		return err
	}

	type staffing struct {
		avgEnrol, avgUpdates, gap, cost float64
		operators                       int
	}
	byKey := make(map[model.DistrictKey]staffing, len(records))
	for i, row := range records {
		get := func(col string) string { return field(row, columns, col) }

		var s staffing
		if s.avgEnrol, err = floatField(get("avg_daily_enrolments")); err != nil {
			return fmt.Errorf("%s: row %d: avg_daily_enrolments: %w", path, i+2, err)
		}
		if s.avgUpdates, err = floatField(get("avg_daily_updates")); err != nil {
			return fmt.Errorf("%s: row %d: avg_daily_updates: %w", path, i+2, err)
		}
		if s.gap, err = floatField(get("daily_gap")); err != nil {
			return fmt.Errorf("%s: row %d: daily_gap: %w", path, i+2, err)
		}
		if s.cost, err = floatField(get("monthly_cost")); err != nil {
			return fmt.Errorf("%s: row %d: monthly_cost: %w", path, i+2, err)
		}
		if s.operators, err = intField(get("operators_needed")); err != nil {
			return fmt.Errorf("%s: row %d: operators_needed: %w", path, i+2, err)
		}
		byKey[model.DistrictKey{State: get("state"), District: get("district")}] = s
	}

	for i := range profiles {
		s, ok := byKey[profiles[i].Key()]
		if !ok {
			continue // left merge: missing staffing stays zero
		}
		profiles[i].AvgDailyEnrolments = s.avgEnrol
		profiles[i].AvgDailyUpdates = s.avgUpdates
		profiles[i].DailyGap = s.gap
		profiles[i].MonthlyCost = s.cost
		profiles[i].OperatorsNeeded = s.operators
	}
	return nil
}

// readTable reads a CSV with a header row into records plus a
// column-name index. Header names are trimmed and lowercased.
func readTable(path string) ([][]string, map[string]int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if len(rows) == 0 {
		return nil, nil, fmt.Errorf("%s: empty file", path)
	}

	columns := make(map[string]int, len(rows[0]))
	for i, name := range rows[0] {
		columns[strings.ToLower(strings.TrimSpace(name))] = i
	}
	return rows[1:], columns, nil
}

func field(row []string, columns map[string]int, name string) string {
	idx, ok := columns[name]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func floatField(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("bad number %q", s)
	}
	return v, nil
}

func intField(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("bad integer %q", s)
	}
	return v, nil
}

// percentileField maps the empty cell back to the sentinel.
func percentileField(s string) float64 {
	if s == "" {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}
