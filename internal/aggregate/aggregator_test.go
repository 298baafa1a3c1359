package aggregate

import (
	"strings"
	"testing"
	"time"

	"github.com/ansel1/merry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uidai-stress/internal/feature"
	"github.com/uidai-stress/internal/model"
)

func row(t *testing.T, date, state, district, pincode string, counts model.Counts) model.AggregateRow {
	t.Helper()
	d, err := time.Parse(model.DateLayout, date)
	require.NoError(t, err)
	return feature.Derive(model.TransactionRecord{
		Date: d, State: state, District: district, Pincode: pincode, Counts: counts,
	})
}

func TestDaily_DropsExactDuplicates(t *testing.T) {
	a := row(t, "01-03-2024", "Odisha", "Cuttack", "753001", model.Counts{Age18Plus: 10, BioAge18Plus: 3})
	rows := []model.AggregateRow{a, a, a}

	res, err := Daily(rows)
	require.NoError(t, err)

	assert.Equal(t, 2, res.ExactDuplicates)
	require.Len(t, res.Rows, 1)
	// Dropped copies are not summed.
	assert.Equal(t, 10, res.Rows[0].Counts.Age18Plus)
}

func TestDaily_SumsPerKey(t *testing.T) {
	rows := []model.AggregateRow{
		row(t, "01-03-2024", "Odisha", "Cuttack", "753001", model.Counts{Age18Plus: 10, BioAge18Plus: 4}),
		row(t, "01-03-2024", "Odisha", "Cuttack", "753001", model.Counts{Age18Plus: 30, DemoAge18Plus: 8}),
		row(t, "01-03-2024", "Odisha", "Cuttack", "753002", model.Counts{Age18Plus: 7}),
	}

	res, err := Daily(rows)
	require.NoError(t, err)
	require.Len(t, res.Rows, 2)
	assert.Equal(t, 1, res.MergedRows)

	merged := res.Rows[0]
	assert.Equal(t, "753001", merged.Pincode)
	assert.Equal(t, 40, merged.Counts.Age18Plus)
	assert.Equal(t, 40, merged.TotalEnrolments)
	assert.Equal(t, 12, merged.TotalUpdates)
	assert.Equal(t, feature.Ratio(12, 40), merged.UpdateToEnrolmentRatio,
		"ratio must be recomputed from summed totals")
}

func TestDaily_SumInvariant(t *testing.T) {
	rows := []model.AggregateRow{
		row(t, "01-03-2024", "Odisha", "Cuttack", "753001", model.Counts{Age0To5: 1, Age18Plus: 10, BioAge18Plus: 4}),
		row(t, "01-03-2024", "Odisha", "Cuttack", "753001", model.Counts{Age0To5: 2, Age18Plus: 30}),
		row(t, "02-03-2024", "Kerala", "Ernakulam", "682001", model.Counts{Age5To17: 5, DemoAge5To17: 6}),
	}

	var wantTotal model.Counts
	for _, r := range rows {
		wantTotal = wantTotal.Add(r.Counts)
	}

	res, err := Daily(rows)
	require.NoError(t, err)

	var gotTotal model.Counts
	for _, r := range res.Rows {
		gotTotal = gotTotal.Add(r.Counts)
	}
	assert.Equal(t, wantTotal, gotTotal, "per-column sums must survive aggregation")
}

func TestDaily_Idempotent(t *testing.T) {
	rows := []model.AggregateRow{
		row(t, "01-03-2024", "Odisha", "Cuttack", "753001", model.Counts{Age18Plus: 10, BioAge18Plus: 4}),
		row(t, "01-03-2024", "Odisha", "Cuttack", "753001", model.Counts{Age18Plus: 30}),
		row(t, "02-03-2024", "Kerala", "Ernakulam", "682001", model.Counts{Age5To17: 5}),
	}

	once, err := Daily(rows)
	require.NoError(t, err)

	twice, err := Daily(once.Rows)
	require.NoError(t, err)

	assert.Equal(t, once.Rows, twice.Rows, "aggregating aggregated output must be the identity")
	assert.Zero(t, twice.ExactDuplicates)
	assert.Zero(t, twice.MergedRows)
}

func TestDaily_OrderIndependent(t *testing.T) {
	a := row(t, "01-03-2024", "Odisha", "Cuttack", "753001", model.Counts{Age18Plus: 10})
	b := row(t, "01-03-2024", "Kerala", "Ernakulam", "682001", model.Counts{Age18Plus: 20})
	c := row(t, "02-03-2024", "Odisha", "Cuttack", "753001", model.Counts{Age18Plus: 5})

	res1, err := Daily([]model.AggregateRow{a, b, c})
	require.NoError(t, err)
	res2, err := Daily([]model.AggregateRow{c, b, a})
	require.NoError(t, err)

	assert.Equal(t, res1.Rows, res2.Rows)
}

func TestVerifyUnique_Violation(t *testing.T) {
	a := row(t, "01-03-2024", "Odisha", "Cuttack", "753001", model.Counts{Age18Plus: 10})
	b := row(t, "01-03-2024", "Odisha", "Cuttack", "753001", model.Counts{Age18Plus: 99})

	err := VerifyUnique([]model.AggregateRow{a, b})
	require.Error(t, err)
	assert.True(t, merry.Is(err, ErrDuplicateKey))
	assert.True(t, strings.Contains(err.Error(), "Cuttack"), "error must name the offending key: %v", err)
}
