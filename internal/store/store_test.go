package store

import (
	"context"
	"database/sql"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uidai-stress/internal/feature"
	"github.com/uidai-stress/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenWith(DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func TestStore_RunsNewestFirst(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	first := Run{
		RunID:     "01HV0000000000000000000001",
		StartedAt: time.Date(2025, 3, 2, 10, 0, 0, 0, time.UTC),
		InputRows: 100,
	}
	first.FinishedAt = first.StartedAt.Add(time.Minute)
	second := first
	second.RunID = "01HV0000000000000000000002"
	second.StartedAt = first.StartedAt.Add(time.Hour)
	second.FinishedAt = second.StartedAt.Add(time.Minute)
	second.InputRows = 200

	require.NoError(t, s.SaveRun(ctx, first))
	require.NoError(t, s.SaveRun(ctx, second))

	runs, err := s.Runs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, second.RunID, runs[0].RunID)
	assert.True(t, runs[0].StartedAt.Equal(second.StartedAt))

	latest, err := s.LatestRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, second.RunID, latest.RunID)
	assert.Equal(t, 200, latest.InputRows)
}

func TestStore_LatestRunEmpty(t *testing.T) {
	s := openTestStore(t)

	_, err := s.LatestRun(context.Background())
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestStore_RunByID(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	run := Run{
		RunID:     "01HV0000000000000000000009",
		StartedAt: time.Date(2025, 3, 2, 10, 0, 0, 0, time.UTC),
		Districts: 7,
	}
	run.FinishedAt = run.StartedAt.Add(time.Minute)
	require.NoError(t, s.SaveRun(ctx, run))

	got, err := s.Run(ctx, run.RunID)
	require.NoError(t, err)
	assert.Equal(t, 7, got.Districts)
	assert.True(t, got.StartedAt.Equal(run.StartedAt))

	_, err = s.Run(ctx, "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestStore_SaveAggregates(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	var rows []model.AggregateRow
	for day := 0; day < 3; day++ {
		rows = append(rows, feature.Derive(model.TransactionRecord{
			Date:     time.Date(2025, 3, 2+day, 0, 0, 0, 0, time.UTC),
			State:    "Odisha",
			District: "Cuttack",
			Pincode:  "753001",
			Counts:   model.Counts{Age18Plus: 10 + day, BioAge18Plus: day},
		}))
	}
	require.NoError(t, s.SaveAggregates(ctx, "run-1", rows))

	var n int
	require.NoError(t, s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM daily_aggregates WHERE run_id = 'run-1'`))
	assert.Equal(t, 3, n)

	var ratio float64
	require.NoError(t, s.db.GetContext(ctx, &ratio,
		`SELECT update_to_enrolment_ratio FROM daily_aggregates WHERE date = '2025-03-04'`))
	assert.InDelta(t, feature.Ratio(2, 12), ratio, 1e-12)

	got, err := s.Aggregates(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, rows[0].Counts, got[0].Counts)
	assert.Equal(t, rows[0].MonthName, got[0].MonthName)
	assert.True(t, got[0].Date.Equal(rows[0].Date))

	empty, err := s.Aggregates(ctx, "no-such-run")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestStore_ProfileRoundtrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	profiles := []model.StressProfile{
		{
			State: "Odisha", District: "Cuttack", WindowClass: model.WindowLongTerm,
			EURMean: 0.42, EURStd: 0.05, StressPercentile: 91.5, PeerCount: 12,
			Category: model.CategoryCritical, Recommendation: model.RecPermanentCentre,
			Reason: "test reason", TotalEnrolments: 1000, TotalUpdates: 420,
			ObservedDays: 100, AvgDailyEnrolments: 10, AvgDailyUpdates: 4.2,
			DailyGap: 14.2, OperatorsNeeded: 1, MonthlyCost: 15000,
		},
		{
			State: "Kerala", District: "Ernakulam", WindowClass: model.WindowMidTerm,
			EURMean: 0.1, EURStd: 0, StressPercentile: math.NaN(), PeerCount: 1,
			Category: model.CategoryNormal, Recommendation: model.RecMonitorClosely,
			Reason: "insufficient peers",
		},
	}
	require.NoError(t, s.SaveProfiles(ctx, "run-1", profiles))

	got, err := s.Profiles(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, got, 2)

	// ordered by state, district
	assert.Equal(t, "Ernakulam", got[0].District)
	assert.Equal(t, "Cuttack", got[1].District)

	// sentinel survives the NULL column
	assert.False(t, got[0].HasPercentile())
	assert.Equal(t, model.RecMonitorClosely, got[0].Recommendation)

	assert.Equal(t, 91.5, got[1].StressPercentile)
	assert.Equal(t, model.WindowLongTerm, got[1].WindowClass)
	assert.Equal(t, 1, got[1].OperatorsNeeded)
}

func TestStore_BatchInsertOverBatchSize(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	var profiles []model.StressProfile
	for i := 0; i < batchSize+7; i++ {
		profiles = append(profiles, model.StressProfile{
			State:            "Odisha",
			District:         districtName(i),
			WindowClass:      model.WindowShortTerm,
			StressPercentile: float64(i % 100),
			Category:         model.CategoryNormal,
			Recommendation:   model.RecMonitor,
			Reason:           "r",
		})
	}
	require.NoError(t, s.SaveProfiles(ctx, "run-1", profiles))

	got, err := s.Profiles(ctx, "run-1")
	require.NoError(t, err)
	assert.Len(t, got, batchSize+7)
}

func districtName(i int) string {
	// distinct names keep the primary key happy
	name := make([]byte, 0, 8)
	for i > 0 || len(name) == 0 {
		name = append(name, byte('A'+i%26))
		i /= 26
	}
	return "D" + string(name)
}
