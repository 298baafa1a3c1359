package export

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/xuri/excelize/v2"

	"github.com/uidai-stress/internal/capacity"
	"github.com/uidai-stress/internal/config"
	"github.com/uidai-stress/internal/model"
)

const (
	sheetActionPlan  = "Action Plan"
	sheetRankings    = "Rankings"
	sheetAssumptions = "Assumptions"

	rankingRows = 20
)

// WriteWorkbook writes the XLSX action plan circulated outside the
// dashboard: districts needing intervention, the stress rankings, and
// the capacity assumptions behind the numbers.
func (e *Exporter) WriteWorkbook(profiles []model.StressProfile, sum capacity.Summary, cfg config.Capacity) (string, error) {
	if err := os.MkdirAll(e.outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	f.SetSheetName("Sheet1", sheetActionPlan)
	writeActionPlan(f, profiles)

	f.NewSheet(sheetRankings)
	writeRankings(f, profiles)

	f.NewSheet(sheetAssumptions)
	writeAssumptions(f, sum, cfg)

	path := filepath.Join(e.outputDir, WorkbookFile)
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("failed to save workbook: %w", err)
	}
	return path, nil
}

func writeActionPlan(f *excelize.File, profiles []model.StressProfile) {
	headers := []string{"Category", "State", "District", "Window", "Stress %",
		"Recommendation", "Reason", "Operators Needed", "Monthly Cost (₹)"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheetActionPlan, cell, header)
		f.SetColWidth(sheetActionPlan, cell, cell, 18)
	}

	// interventions only, most urgent first
	actions := make([]model.StressProfile, 0, len(profiles))
	for _, p := range profiles {
		if p.Recommendation == model.RecMonitor || p.Recommendation == model.RecMonitorClosely {
			continue
		}
		actions = append(actions, p)
	}
	sort.SliceStable(actions, func(i, j int) bool {
		if ra, rb := categoryRank(actions[i].Category), categoryRank(actions[j].Category); ra != rb {
			return ra < rb
		}
		return actions[i].OperatorsNeeded > actions[j].OperatorsNeeded
	})

	for i, p := range actions {
		row := i + 2
		f.SetCellValue(sheetActionPlan, fmt.Sprintf("A%d", row), string(p.Category))
		f.SetCellValue(sheetActionPlan, fmt.Sprintf("B%d", row), p.State)
		f.SetCellValue(sheetActionPlan, fmt.Sprintf("C%d", row), p.District)
		f.SetCellValue(sheetActionPlan, fmt.Sprintf("D%d", row), string(p.WindowClass))
		f.SetCellValue(sheetActionPlan, fmt.Sprintf("E%d", row), percentCell(p))
		f.SetCellValue(sheetActionPlan, fmt.Sprintf("F%d", row), string(p.Recommendation))
		f.SetCellValue(sheetActionPlan, fmt.Sprintf("G%d", row), p.Reason)
		f.SetCellValue(sheetActionPlan, fmt.Sprintf("H%d", row), p.OperatorsNeeded)
		f.SetCellValue(sheetActionPlan, fmt.Sprintf("I%d", row), p.MonthlyCost)
	}
}

func writeRankings(f *excelize.File, profiles []model.StressProfile) {
	headers := []string{"Rank", "State", "District", "Window", "EUR Mean",
		"EUR Std", "Stress %", "Category"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheetRankings, cell, header)
		f.SetColWidth(sheetRankings, cell, cell, 16)
	}

	ranked := make([]model.StressProfile, 0, len(profiles))
	for _, p := range profiles {
		if p.HasPercentile() {
			ranked = append(ranked, p)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].StressPercentile > ranked[j].StressPercentile
	})
	if len(ranked) > rankingRows {
		ranked = ranked[:rankingRows]
	}

	for i, p := range ranked {
		row := i + 2
		f.SetCellValue(sheetRankings, fmt.Sprintf("A%d", row), i+1)
		f.SetCellValue(sheetRankings, fmt.Sprintf("B%d", row), p.State)
		f.SetCellValue(sheetRankings, fmt.Sprintf("C%d", row), p.District)
		f.SetCellValue(sheetRankings, fmt.Sprintf("D%d", row), string(p.WindowClass))
		f.SetCellValue(sheetRankings, fmt.Sprintf("E%d", row), fmt.Sprintf("%.4f", p.EURMean))
		f.SetCellValue(sheetRankings, fmt.Sprintf("F%d", row), fmt.Sprintf("%.4f", p.EURStd))
		f.SetCellValue(sheetRankings, fmt.Sprintf("G%d", row), fmt.Sprintf("%.1f", p.StressPercentile))
		f.SetCellValue(sheetRankings, fmt.Sprintf("H%d", row), string(p.Category))
	}
}

func writeAssumptions(f *excelize.File, sum capacity.Summary, cfg config.Capacity) {
	rows := []struct {
		label string
		value interface{}
	}{
		{"Transactions per operator per day", cfg.OperatorCapacityPerDay},
		{"Working days per month", cfg.WorkingDaysPerMonth},
		{"Operator salary (₹/month)", cfg.OperatorSalaryMonth},
		{"Existing operators per district", cfg.ExistingOperators},
		{"", nil},
		{"Total operators needed", sum.TotalOperators},
		{"Total daily transaction gap", sum.TotalDailyGap},
		{"Monthly cost (₹)", sum.MonthlyCost},
		{"Annual budget (₹)", sum.AnnualCost},
		{"Monthly capacity added (transactions)", sum.MonthlyCapacityAdded},
	}

	f.SetColWidth(sheetAssumptions, "A", "A", 36)
	f.SetColWidth(sheetAssumptions, "B", "B", 18)
	for i, r := range rows {
		if r.label == "" {
			continue
		}
		f.SetCellValue(sheetAssumptions, fmt.Sprintf("A%d", i+1), r.label)
		f.SetCellValue(sheetAssumptions, fmt.Sprintf("B%d", i+1), r.value)
	}
}

func categoryRank(c model.Category) int {
	switch c {
	case model.CategoryCritical:
		return 0
	case model.CategoryWarning:
		return 1
	default:
		return 2
	}
}

func percentCell(p model.StressProfile) string {
	if !p.HasPercentile() {
		return "n/a"
	}
	return fmt.Sprintf("%.1f", p.StressPercentile)
}
