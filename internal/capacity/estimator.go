// Package capacity converts recommendations into staffing and budget
// numbers suitable for sanction orders.
package capacity

import (
	"math"

	"github.com/uidai-stress/internal/config"
	"github.com/uidai-stress/internal/model"
)

// Estimator prices the daily transaction gap behind each recommendation
// using the configured operator assumptions.
type Estimator struct {
	cfg config.Capacity
}

func NewEstimator(cfg config.Capacity) *Estimator {
	return &Estimator{cfg: cfg}
}

// Estimate fills the staffing columns of one profile. Districts on a
// monitoring recommendation get zero staffing regardless of the raw gap
// arithmetic; everything else is ceil(gap / per-operator capacity).
func (e *Estimator) Estimate(p *model.StressProfile) {
	p.DailyGap = 0
	p.OperatorsNeeded = 0
	p.MonthlyCost = 0

	switch p.Recommendation {
	case model.RecMonitor, model.RecMonitorClosely:
		return
	}

	perOperator := float64(e.cfg.OperatorCapacityPerDay)
	gap := p.AvgDailyActivity() - perOperator*float64(e.cfg.ExistingOperators)
	if gap <= 0 {
		return
	}
	p.DailyGap = gap
	p.OperatorsNeeded = int(math.Ceil(gap / perOperator))
	p.MonthlyCost = float64(p.OperatorsNeeded) * e.cfg.OperatorSalaryMonth
}

// Apply fills the staffing columns on every profile in place.
func (e *Estimator) Apply(profiles []model.StressProfile) {
	for i := range profiles {
		e.Estimate(&profiles[i])
	}
}

// Summary aggregates staffing needs across all districts for the run
// report.
type Summary struct {
	TotalOperators       int
	TotalDailyGap        float64
	MonthlyCost          float64
	AnnualCost           float64
	MonthlyCapacityAdded float64
}

// Summarize totals the staffing columns. MonthlyCapacityAdded is the
// transaction throughput the new operators buy per month.
func Summarize(profiles []model.StressProfile, cfg config.Capacity) Summary {
	var s Summary
	for _, p := range profiles {
		s.TotalOperators += p.OperatorsNeeded
		s.TotalDailyGap += p.DailyGap
		s.MonthlyCost += p.MonthlyCost
	}
	s.AnnualCost = s.MonthlyCost * 12
	s.MonthlyCapacityAdded = float64(s.TotalOperators * cfg.OperatorCapacityPerDay * cfg.WorkingDaysPerMonth)
	return s
}
