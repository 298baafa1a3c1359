package feature

import (
	"time"

	"github.com/uidai-stress/internal/model"
)

// RatioOffset is the smoothing constant added to the enrolment denominator
// of the update-to-enrolment ratio. It keeps zero-enrolment districts
// finite and is applied identically everywhere the ratio is computed.
const RatioOffset = 0.1

// Ratio computes the update-to-enrolment ratio. Never average stored
// ratios; recompute from summed totals instead.
func Ratio(totalUpdates, totalEnrolments int) float64 {
	return float64(totalUpdates) / (float64(totalEnrolments) + RatioOffset)
}

// Derive builds a feature-engineered aggregate row from a normalized
// transaction record: calendar columns, derived totals and the ratio.
func Derive(rec model.TransactionRecord) model.AggregateRow {
	row := model.AggregateRow{
		Date:      rec.Date,
		State:     rec.State,
		District:  rec.District,
		Pincode:   rec.Pincode,
		MonthName: rec.Date.Month().String(),
		DayName:   rec.Date.Weekday().String(),
		IsWeekend: isWeekend(rec.Date),
		Counts:    rec.Counts,
	}
	Recompute(&row)
	return row
}

// Recompute refreshes the derived totals and ratio of a row from its raw
// counts. Called after aggregation sums the counts of merged rows.
func Recompute(row *model.AggregateRow) {
	c := row.Counts
	row.TotalEnrolments = c.Enrolments()
	row.TotalBiometricUpdates = c.BiometricUpdates()
	row.TotalDemographicUpdates = c.DemographicUpdates()
	row.TotalUpdates = row.TotalBiometricUpdates + row.TotalDemographicUpdates
	row.OverallActivity = row.TotalEnrolments + row.TotalUpdates
	row.UpdateToEnrolmentRatio = Ratio(row.TotalUpdates, row.TotalEnrolments)
}

func isWeekend(t time.Time) int {
	switch t.Weekday() {
	case time.Saturday, time.Sunday:
		return 1
	}
	return 0
}
