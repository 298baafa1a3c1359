package capacity

import (
	"testing"

	"github.com/uidai-stress/internal/config"
	"github.com/uidai-stress/internal/model"
)

func TestEstimate(t *testing.T) {
	cfg := config.Capacity{
		OperatorCapacityPerDay: 50,
		WorkingDaysPerMonth:    25,
		OperatorSalaryMonth:    15000,
	}

	tests := []struct {
		name          string
		rec           model.Recommendation
		dailyEnrol    float64
		dailyUpdates  float64
		existing      int
		wantGap       float64
		wantOperators int
		wantCost      float64
	}{
		{
			name:          "gap rounds up to whole operators",
			rec:           model.RecMobileVan,
			dailyEnrol:    80,
			dailyUpdates:  40,
			wantGap:       120,
			wantOperators: 3,
			wantCost:      45000,
		},
		{
			name:          "exact multiple of capacity",
			rec:           model.RecExtraCounters,
			dailyEnrol:    60,
			dailyUpdates:  40,
			wantGap:       100,
			wantOperators: 2,
			wantCost:      30000,
		},
		{
			name:          "existing operators shrink the gap",
			rec:           model.RecPermanentCentre,
			dailyEnrol:    80,
			dailyUpdates:  40,
			existing:      2,
			wantGap:       20,
			wantOperators: 1,
			wantCost:      15000,
		},
		{
			name:         "existing operators cover the load",
			rec:          model.RecExtraCounters,
			dailyEnrol:   60,
			dailyUpdates: 30,
			existing:     3,
		},
		{
			name:         "monitor gets nothing however big the load",
			rec:          model.RecMonitor,
			dailyEnrol:   5000,
			dailyUpdates: 5000,
		},
		{
			name:         "monitor closely gets nothing",
			rec:          model.RecMonitorClosely,
			dailyEnrol:   5000,
			dailyUpdates: 5000,
		},
		{
			name: "zero activity",
			rec:  model.RecExtraCounters,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := cfg
			cfg.ExistingOperators = tt.existing
			p := model.StressProfile{
				Recommendation:     tt.rec,
				AvgDailyEnrolments: tt.dailyEnrol,
				AvgDailyUpdates:    tt.dailyUpdates,
			}
			NewEstimator(cfg).Estimate(&p)

			if p.DailyGap != tt.wantGap {
				t.Errorf("DailyGap = %v, want %v", p.DailyGap, tt.wantGap)
			}
			if p.OperatorsNeeded != tt.wantOperators {
				t.Errorf("OperatorsNeeded = %d, want %d", p.OperatorsNeeded, tt.wantOperators)
			}
			if p.MonthlyCost != tt.wantCost {
				t.Errorf("MonthlyCost = %v, want %v", p.MonthlyCost, tt.wantCost)
			}
		})
	}
}

func TestApply_MonitoringAlwaysZeroOperators(t *testing.T) {
	recs := []model.Recommendation{
		model.RecMobileVan, model.RecMonitor, model.RecPermanentCentre,
		model.RecMonitorClosely, model.RecExtraCounters, model.RecMonitor,
	}
	var profiles []model.StressProfile
	for i, rec := range recs {
		profiles = append(profiles, model.StressProfile{
			Recommendation:     rec,
			AvgDailyEnrolments: float64(200 * (i + 1)),
			AvgDailyUpdates:    float64(100 * (i + 1)),
		})
	}

	NewEstimator(config.DefaultPipeline().Capacity).Apply(profiles)

	for _, p := range profiles {
		switch p.Recommendation {
		case model.RecMonitor, model.RecMonitorClosely:
			if p.OperatorsNeeded != 0 || p.DailyGap != 0 || p.MonthlyCost != 0 {
				t.Errorf("%s: staffing leaked through the monitor gate: ops=%d gap=%v cost=%v",
					p.Recommendation, p.OperatorsNeeded, p.DailyGap, p.MonthlyCost)
			}
		default:
			if p.OperatorsNeeded == 0 {
				t.Errorf("%s: expected staffing for active recommendation", p.Recommendation)
			}
		}
	}
}

func TestSummarize(t *testing.T) {
	cfg := config.Capacity{OperatorCapacityPerDay: 50, WorkingDaysPerMonth: 25, OperatorSalaryMonth: 15000}
	profiles := []model.StressProfile{
		{OperatorsNeeded: 3, DailyGap: 120, MonthlyCost: 45000},
		{OperatorsNeeded: 1, DailyGap: 20, MonthlyCost: 15000},
		{}, // monitored district contributes nothing
	}

	s := Summarize(profiles, cfg)

	if s.TotalOperators != 4 {
		t.Errorf("TotalOperators = %d, want 4", s.TotalOperators)
	}
	if s.TotalDailyGap != 140 {
		t.Errorf("TotalDailyGap = %v, want 140", s.TotalDailyGap)
	}
	if s.MonthlyCost != 60000 {
		t.Errorf("MonthlyCost = %v, want 60000", s.MonthlyCost)
	}
	if s.AnnualCost != 720000 {
		t.Errorf("AnnualCost = %v, want 720000", s.AnnualCost)
	}
	if s.MonthlyCapacityAdded != 4*50*25 {
		t.Errorf("MonthlyCapacityAdded = %v, want %v", s.MonthlyCapacityAdded, 4*50*25)
	}
}
