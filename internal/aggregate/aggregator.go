package aggregate

import (
	"sort"

	"github.com/ansel1/merry"

	"github.com/uidai-stress/internal/feature"
	"github.com/uidai-stress/internal/model"
)

// ErrDuplicateKey is raised when the aggregate table still contains more
// than one row for a (date, state, district, pincode) key.
var ErrDuplicateKey = merry.New("duplicate aggregate key")

// Result is the aggregated daily table plus merge accounting for the run
// report.
type Result struct {
	Rows            []model.AggregateRow
	InputRows       int
	ExactDuplicates int
	MergedRows      int
}

// Daily deduplicates and aggregates feature-engineered rows into the daily
// aggregate table: exact duplicate rows are dropped, remaining rows are
// summed per aggregate key, and the ratio is recomputed from the summed
// totals. Output is sorted by key, so the result does not depend on input
// order and aggregating its own output is the identity.
func Daily(rows []model.AggregateRow) (Result, error) {
	res := Result{InputRows: len(rows)}

	seen := make(map[model.AggregateRow]struct{}, len(rows))
	grouped := make(map[model.AggregateKey]*model.AggregateRow)

	for _, row := range rows {
		if _, dup := seen[row]; dup {
			res.ExactDuplicates++
			continue
		}
		seen[row] = struct{}{}

		key := row.Key()
		if acc, ok := grouped[key]; ok {
			acc.Counts = acc.Counts.Add(row.Counts)
			res.MergedRows++
			continue
		}
		copied := row
		grouped[key] = &copied
	}

	res.Rows = make([]model.AggregateRow, 0, len(grouped))
	for _, row := range grouped {
		feature.Recompute(row)
		res.Rows = append(res.Rows, *row)
	}
	sortRows(res.Rows)

	if err := VerifyUnique(res.Rows); err != nil {
		return res, err
	}
	return res, nil
}

// VerifyUnique checks the key-uniqueness invariant over aggregate rows.
func VerifyUnique(rows []model.AggregateRow) error {
	keys := make(map[model.AggregateKey]struct{}, len(rows))
	for _, row := range rows {
		key := row.Key()
		if _, ok := keys[key]; ok {
			return merry.Append(ErrDuplicateKey, key.String())
		}
		keys[key] = struct{}{}
	}
	return nil
}

func sortRows(rows []model.AggregateRow) {
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		if a.State != b.State {
			return a.State < b.State
		}
		if a.District != b.District {
			return a.District < b.District
		}
		return a.Pincode < b.Pincode
	})
}
