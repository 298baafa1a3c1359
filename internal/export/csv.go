// Package export writes the run's output files: the CSV pair consumed
// by the dashboard, the master aggregate table, and an XLSX action plan
// for circulation outside the dashboard.
package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/uidai-stress/internal/model"
)

// Output file names are a data contract with the dashboard loader; do
// not rename them without updating the consumers.
const (
	RecommendationsFile = "district_recommendations.csv"
	RequirementsFile    = "operator_requirements.csv"
	MasterFile          = "master_aggregates.csv"
	WorkbookFile        = "action_plan.xlsx"
	QualityFile         = "data_quality_report.csv"
)

const isoDate = "2006-01-02"

// Exporter writes output files under one directory.
type Exporter struct {
	outputDir string
}

func NewExporter(outputDir string) *Exporter {
	return &Exporter{outputDir: outputDir}
}

// Dir returns the output directory.
func (e *Exporter) Dir() string {
	return e.outputDir
}

func (e *Exporter) create(name string) (*os.File, string, error) {
	if err := os.MkdirAll(e.outputDir, 0755); err != nil {
		return nil, "", fmt.Errorf("failed to create output directory: %w", err)
	}
	path := filepath.Join(e.outputDir, name)
	f, err := os.Create(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create %s: %w", path, err)
	}
	return f, path, nil
}

// WriteRecommendations writes district_recommendations.csv, the primary
// dashboard table. The insufficient-peer sentinel becomes an empty cell,
// never a number.
func (e *Exporter) WriteRecommendations(profiles []model.StressProfile) (string, error) {
	f, path, err := e.create(RecommendationsFile)
	if err != nil {
		return "", err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	header := []string{
		"state", "district", "window_class", "eur_mean", "eur_std",
		"stress_percentile", "peer_count", "eur_category", "recommendation",
		"reason", "total_enrolments", "total_updates", "observed_days",
	}
	if err := w.Write(header); err != nil {
		return "", fmt.Errorf("failed to write header: %w", err)
	}

	for _, p := range profiles {
		row := []string{
			p.State,
			p.District,
			string(p.WindowClass),
			formatFloat(p.EURMean),
			formatFloat(p.EURStd),
			formatPercentile(p),
			strconv.Itoa(p.PeerCount),
			string(p.Category),
			string(p.Recommendation),
			p.Reason,
			strconv.Itoa(p.TotalEnrolments),
			strconv.Itoa(p.TotalUpdates),
			strconv.Itoa(p.ObservedDays),
		}
		if err := w.Write(row); err != nil {
			return "", fmt.Errorf("failed to write row for %s/%s: %w", p.State, p.District, err)
		}
	}
	w.Flush()
	return path, w.Error()
}

// WriteRequirements writes operator_requirements.csv, the staffing table
// merged into the dashboard on (state, district).
func (e *Exporter) WriteRequirements(profiles []model.StressProfile) (string, error) {
	f, path, err := e.create(RequirementsFile)
	if err != nil {
		return "", err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	header := []string{
		"state", "district", "stress_percentile", "avg_daily_enrolments",
		"avg_daily_updates", "daily_gap", "operators_needed", "monthly_cost",
	}
	if err := w.Write(header); err != nil {
		return "", fmt.Errorf("failed to write header: %w", err)
	}

	for _, p := range profiles {
		row := []string{
			p.State,
			p.District,
			formatPercentile(p),
			formatFloat(p.AvgDailyEnrolments),
			formatFloat(p.AvgDailyUpdates),
			formatFloat(p.DailyGap),
			strconv.Itoa(p.OperatorsNeeded),
			formatFloat(p.MonthlyCost),
		}
		if err := w.Write(row); err != nil {
			return "", fmt.Errorf("failed to write row for %s/%s: %w", p.State, p.District, err)
		}
	}
	w.Flush()
	return path, w.Error()
}

// WriteMaster writes the full aggregate table with ISO dates, the same
// shape the ingest reader accepts back.
func (e *Exporter) WriteMaster(rows []model.AggregateRow) (string, error) {
	f, path, err := e.create(MasterFile)
	if err != nil {
		return "", err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	header := []string{
		"date", "state", "district", "pincode", "month_name", "day_name",
		"is_weekend", "age_0_5", "age_5_17", "age_18_greater", "bio_age_5_17",
		"bio_age_18_greater", "demo_age_5_17", "demo_age_18_greater",
		"total_enrolments", "total_biometric_updates",
		"total_demographic_updates", "total_updates", "overall_activity",
		"update_to_enrolment_ratio",
	}
	if err := w.Write(header); err != nil {
		return "", fmt.Errorf("failed to write header: %w", err)
	}

	for _, row := range rows {
		record := []string{
			row.Date.Format(isoDate),
			row.State,
			row.District,
			row.Pincode,
			row.MonthName,
			row.DayName,
			strconv.Itoa(row.IsWeekend),
			strconv.Itoa(row.Counts.Age0To5),
			strconv.Itoa(row.Counts.Age5To17),
			strconv.Itoa(row.Counts.Age18Plus),
			strconv.Itoa(row.Counts.BioAge5To17),
			strconv.Itoa(row.Counts.BioAge18Plus),
			strconv.Itoa(row.Counts.DemoAge5To17),
			strconv.Itoa(row.Counts.DemoAge18Plus),
			strconv.Itoa(row.TotalEnrolments),
			strconv.Itoa(row.TotalBiometricUpdates),
			strconv.Itoa(row.TotalDemographicUpdates),
			strconv.Itoa(row.TotalUpdates),
			strconv.Itoa(row.OverallActivity),
			formatFloat(row.UpdateToEnrolmentRatio),
		}
		if err := w.Write(record); err != nil {
			return "", fmt.Errorf("failed to write row for %s: %w", row.Key(), err)
		}
	}
	w.Flush()
	return path, w.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatPercentile(p model.StressProfile) string {
	if !p.HasPercentile() {
		return ""
	}
	return formatFloat(p.StressPercentile)
}
