// Package quality runs advisory master-data checks over the aggregate
// table and renders the validation report. Checks flag, they never
// reject; hard rejection happens at ingest and normalization.
package quality

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/uidai-stress/internal/model"
)

// Options tune the advisory thresholds.
type Options struct {
	ExtremeEnrolments int // rows above this daily enrolment count are flagged
	MinDistrictRows   int // state-district combinations below this are flagged rare
	TopRows           int // extreme rows kept in the report
}

func DefaultOptions() Options {
	return Options{ExtremeEnrolments: 50000, MinDistrictRows: 10, TopRows: 10}
}

// RegionStates maps the leading pincode digit to the states that postal
// region serves. Digits 9 and 0 are field post and unassigned, so they
// are not cross-checked.
var RegionStates = map[int][]string{
	1: {"Delhi", "Haryana"},
	2: {"Punjab", "Himachal Pradesh", "Jammu and Kashmir"},
	3: {"Rajasthan", "Gujarat"},
	4: {"Maharashtra", "Goa"},
	5: {"Karnataka", "Andhra Pradesh", "Telangana"},
	6: {"Tamil Nadu", "Kerala", "Puducherry"},
	7: {"West Bengal", "Odisha", "Assam", "Arunachal Pradesh", "Nagaland", "Manipur",
		"Mizoram", "Tripura", "Meghalaya"},
	8: {"Bihar", "Jharkhand"},
}

// ExtremeRow is a row whose enrolment count crossed the extreme
// threshold.
type ExtremeRow struct {
	Date            time.Time
	State           string
	District        string
	Pincode         string
	TotalEnrolments int
}

// RareDistrict is a state-district pair with too few rows to trust its
// statistics.
type RareDistrict struct {
	State    string
	District string
	Rows     int
}

// RegionMismatch is a state observed under a pincode region that does
// not serve it.
type RegionMismatch struct {
	Digit int
	State string
	Rows  int
}

// Report is the outcome of all checks over one dataset.
type Report struct {
	InputRows         int
	ExactDuplicates   int
	DuplicateKeys     int
	ZeroEnrolmentRows int
	UniqueStates      int
	UniqueDistricts   int
	DateFrom          time.Time
	DateTo            time.Time

	ExtremeRows      []ExtremeRow
	RareDistricts    []RareDistrict
	RegionMismatches []RegionMismatch

	// AliasHits and RejectedRows are filled by the caller: the checks run
	// after normalization and never see the rows it rejected.
	AliasHits    map[string]int
	RejectedRows int
}

// ZeroEnrolmentShare is the fraction of rows with zero enrolments.
func (r Report) ZeroEnrolmentShare() float64 {
	if r.InputRows == 0 {
		return 0
	}
	return float64(r.ZeroEnrolmentRows) / float64(r.InputRows)
}

// Check runs every check over the given rows. Rows may be raw
// (pre-aggregation) or aggregated; duplicate counts are only meaningful
// on raw rows.
func Check(rows []model.AggregateRow, opts Options) Report {
	r := Report{InputRows: len(rows)}
	if len(rows) == 0 {
		return r
	}

	seen := make(map[model.AggregateRow]bool, len(rows))
	keyRows := make(map[model.AggregateKey]int)
	districtRows := make(map[model.DistrictKey]int)
	states := make(map[string]bool)
	mismatches := make(map[RegionMismatch]int)

	r.DateFrom, r.DateTo = rows[0].Date, rows[0].Date
	for _, row := range rows {
		if seen[row] {
			r.ExactDuplicates++
			continue
		}
		seen[row] = true

		keyRows[row.Key()]++
		districtRows[model.DistrictKey{State: row.State, District: row.District}]++
		states[row.State] = true

		if row.Date.Before(r.DateFrom) {
			r.DateFrom = row.Date
		}
		if row.Date.After(r.DateTo) {
			r.DateTo = row.Date
		}

		if row.TotalEnrolments == 0 {
			r.ZeroEnrolmentRows++
		}
		if row.TotalEnrolments > opts.ExtremeEnrolments {
			r.ExtremeRows = append(r.ExtremeRows, ExtremeRow{
				Date: row.Date, State: row.State, District: row.District,
				Pincode: row.Pincode, TotalEnrolments: row.TotalEnrolments,
			})
		}

		if digit := regionDigit(row.Pincode); digit > 0 {
			if expected, ok := RegionStates[digit]; ok && !contains(expected, row.State) {
				mismatches[RegionMismatch{Digit: digit, State: row.State}]++
			}
		}
	}

	for _, n := range keyRows {
		if n > 1 {
			r.DuplicateKeys++
		}
	}
	for key, n := range districtRows {
		if n < opts.MinDistrictRows {
			r.RareDistricts = append(r.RareDistricts, RareDistrict{State: key.State, District: key.District, Rows: n})
		}
	}
	for m, n := range mismatches {
		m.Rows = n
		r.RegionMismatches = append(r.RegionMismatches, m)
	}
	r.UniqueStates = len(states)
	r.UniqueDistricts = len(districtRows)

	sort.Slice(r.ExtremeRows, func(i, j int) bool {
		if r.ExtremeRows[i].TotalEnrolments != r.ExtremeRows[j].TotalEnrolments {
			return r.ExtremeRows[i].TotalEnrolments > r.ExtremeRows[j].TotalEnrolments
		}
		return r.ExtremeRows[i].Date.Before(r.ExtremeRows[j].Date)
	})
	if len(r.ExtremeRows) > opts.TopRows {
		r.ExtremeRows = r.ExtremeRows[:opts.TopRows]
	}
	sort.Slice(r.RareDistricts, func(i, j int) bool {
		if r.RareDistricts[i].State != r.RareDistricts[j].State {
			return r.RareDistricts[i].State < r.RareDistricts[j].State
		}
		return r.RareDistricts[i].District < r.RareDistricts[j].District
	})
	sort.Slice(r.RegionMismatches, func(i, j int) bool {
		if r.RegionMismatches[i].Digit != r.RegionMismatches[j].Digit {
			return r.RegionMismatches[i].Digit < r.RegionMismatches[j].Digit
		}
		return r.RegionMismatches[i].State < r.RegionMismatches[j].State
	})

	return r
}

// Render writes the human-readable report.
func (r Report) Render(w io.Writer) {
	fmt.Fprintf(w, "=== Data Quality Report ===\n")
	fmt.Fprintf(w, "Rows: %d\n", r.InputRows)
	fmt.Fprintf(w, "Date range: %s to %s\n", r.DateFrom.Format(model.DateLayout), r.DateTo.Format(model.DateLayout))
	fmt.Fprintf(w, "States: %d, Districts: %d\n", r.UniqueStates, r.UniqueDistricts)
	if r.RejectedRows > 0 {
		fmt.Fprintf(w, "Rejected at normalization: %d\n", r.RejectedRows)
	}

	fmt.Fprintf(w, "\n--- Duplicates ---\n")
	fmt.Fprintf(w, "Exact duplicate rows: %d\n", r.ExactDuplicates)
	fmt.Fprintf(w, "Keys needing merge: %d\n", r.DuplicateKeys)

	fmt.Fprintf(w, "\n--- Unusual Patterns ---\n")
	fmt.Fprintf(w, "Zero-enrolment rows: %d (%.2f%%)\n", r.ZeroEnrolmentRows, r.ZeroEnrolmentShare()*100)
	if len(r.ExtremeRows) == 0 {
		fmt.Fprintf(w, "No extreme enrolment counts\n")
	} else {
		fmt.Fprintf(w, "Extreme enrolment counts (top %d):\n", len(r.ExtremeRows))
		for _, e := range r.ExtremeRows {
			fmt.Fprintf(w, "  %s %s/%s %s: %d\n",
				e.Date.Format(model.DateLayout), e.State, e.District, e.Pincode, e.TotalEnrolments)
		}
	}
	if len(r.RareDistricts) > 0 {
		fmt.Fprintf(w, "Districts with sparse history (< threshold rows): %d\n", len(r.RareDistricts))
	}

	fmt.Fprintf(w, "\n--- Pincode Region Cross-Check ---\n")
	if len(r.RegionMismatches) == 0 {
		fmt.Fprintf(w, "All pincodes match their state's postal region\n")
	} else {
		for _, m := range r.RegionMismatches {
			fmt.Fprintf(w, "  region %d: unexpected state %s (%d rows)\n", m.Digit, m.State, m.Rows)
		}
	}

	if len(r.AliasHits) > 0 {
		fmt.Fprintf(w, "\n--- Alias Corrections Applied ---\n")
		aliases := make([]string, 0, len(r.AliasHits))
		for alias := range r.AliasHits {
			aliases = append(aliases, alias)
		}
		sort.Strings(aliases)
		for _, alias := range aliases {
			fmt.Fprintf(w, "  %q: %d\n", alias, r.AliasHits[alias])
		}
	}
}

// WriteCSV writes the report's scalar metrics and flagged rows as a flat
// (section, detail, value) table for archival next to the run outputs.
func (r Report) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	write := func(section, detail, value string) {
		cw.Write([]string{section, detail, value})
	}

	write("summary", "input_rows", strconv.Itoa(r.InputRows))
	write("summary", "unique_states", strconv.Itoa(r.UniqueStates))
	write("summary", "unique_districts", strconv.Itoa(r.UniqueDistricts))
	write("summary", "date_from", r.DateFrom.Format(model.DateLayout))
	write("summary", "date_to", r.DateTo.Format(model.DateLayout))
	write("summary", "rejected_rows", strconv.Itoa(r.RejectedRows))
	write("duplicates", "exact_duplicate_rows", strconv.Itoa(r.ExactDuplicates))
	write("duplicates", "keys_needing_merge", strconv.Itoa(r.DuplicateKeys))
	write("patterns", "zero_enrolment_rows", strconv.Itoa(r.ZeroEnrolmentRows))
	write("patterns", "zero_enrolment_share", strconv.FormatFloat(r.ZeroEnrolmentShare(), 'f', 4, 64))

	for _, e := range r.ExtremeRows {
		write("extreme", fmt.Sprintf("%s %s/%s %s", e.Date.Format(model.DateLayout), e.State, e.District, e.Pincode),
			strconv.Itoa(e.TotalEnrolments))
	}
	for _, d := range r.RareDistricts {
		write("rare_district", d.State+"/"+d.District, strconv.Itoa(d.Rows))
	}
	for _, m := range r.RegionMismatches {
		write("region_mismatch", fmt.Sprintf("region %d: %s", m.Digit, m.State), strconv.Itoa(m.Rows))
	}
	aliases := make([]string, 0, len(r.AliasHits))
	for alias := range r.AliasHits {
		aliases = append(aliases, alias)
	}
	sort.Strings(aliases)
	for _, alias := range aliases {
		write("alias_hit", alias, strconv.Itoa(r.AliasHits[alias]))
	}

	cw.Flush()
	return cw.Error()
}

func regionDigit(pincode string) int {
	if pincode == "" || pincode[0] < '1' || pincode[0] > '9' {
		return 0
	}
	return int(pincode[0] - '0')
}

func contains(xs []string, s string) bool {
	for _, x := range xs {
		if x == s {
			return true
		}
	}
	return false
}
