package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/uidai-stress/internal/model"
)

// Transaction CSVs arrive as three source families (enrolment, biometric
// update, demographic update) sharing the date/state/district/pincode key,
// or as a single pre-merged master file. Every file is read with the same
// parser: count columns absent from a file are zero, and the outer join
// across families falls out of downstream aggregation summing disjoint
// columns per key.

// requiredColumns must be present in every transaction CSV.
var requiredColumns = []string{"date", "state", "district", "pincode"}

// countColumns maps each count field to its accepted header spellings.
// The age-17 forms are the legacy raw-extract names for the 18+ bands.
var countColumns = []struct {
	names []string
	set   func(*model.Counts, int)
}{
	{[]string{"age_0_5"}, func(c *model.Counts, v int) { c.Age0To5 = v }},
	{[]string{"age_5_17"}, func(c *model.Counts, v int) { c.Age5To17 = v }},
	{[]string{"age_18_greater"}, func(c *model.Counts, v int) { c.Age18Plus = v }},
	{[]string{"bio_age_5_17"}, func(c *model.Counts, v int) { c.BioAge5To17 = v }},
	{[]string{"bio_age_18_greater", "bio_age_17_"}, func(c *model.Counts, v int) { c.BioAge18Plus = v }},
	{[]string{"demo_age_5_17"}, func(c *model.Counts, v int) { c.DemoAge5To17 = v }},
	{[]string{"demo_age_18_greater", "demo_age_17_"}, func(c *model.Counts, v int) { c.DemoAge18Plus = v }},
}

// ReadFile parses one transaction CSV. Malformed dates and negative or
// non-numeric counts fail immediately with a diagnostic naming the file,
// line and column.
func ReadFile(path string) ([]model.TransactionRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open transaction CSV: %w", err)
	}
	defer file.Close()

	records, err := parse(csv.NewReader(file), path)
	if err != nil {
		return nil, err
	}
	return records, nil
}

// ReadGlob reads every file matching the given glob patterns, concatenated
// in sorted path order so runs are reproducible. Returns the records and
// the number of files read.
func ReadGlob(patterns ...string) ([]model.TransactionRecord, int, error) {
	var paths []string
	for _, pattern := range patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to expand glob %q: %w", pattern, err)
		}
		paths = append(paths, matches...)
	}
	if len(paths) == 0 {
		return nil, 0, fmt.Errorf("no input files match %v", patterns)
	}
	sort.Strings(paths)

	var all []model.TransactionRecord
	for _, path := range paths {
		records, err := ReadFile(path)
		if err != nil {
			return nil, 0, err
		}
		all = append(all, records...)
	}
	return all, len(paths), nil
}

func parse(reader *csv.Reader, path string) ([]model.TransactionRecord, error) {
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header of %s: %w", path, err)
	}

	columnMap := make(map[string]int)
	for i, col := range header {
		columnMap[strings.ToLower(strings.TrimSpace(col))] = i
	}
	for _, col := range requiredColumns {
		if _, ok := columnMap[col]; !ok {
			return nil, fmt.Errorf("%s: missing required column %q", path, col)
		}
	}

	// Resolve which count columns this file carries, preferring the
	// canonical spelling when both appear.
	type countIndex struct {
		index int
		name  string
		set   func(*model.Counts, int)
	}
	var counts []countIndex
	for _, cc := range countColumns {
		for _, name := range cc.names {
			if idx, ok := columnMap[name]; ok {
				counts = append(counts, countIndex{index: idx, name: name, set: cc.set})
				break
			}
		}
	}
	if len(counts) == 0 {
		return nil, fmt.Errorf("%s: no transaction count columns found", path)
	}

	var records []model.TransactionRecord
	line := 1
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("failed to read %s:%d: %w", path, line, err)
		}

		date, err := parseDate(row[columnMap["date"]])
		if err != nil {
			return nil, fmt.Errorf("%s:%d: bad date %q (want DD-MM-YYYY)", path, line, row[columnMap["date"]])
		}

		rec := model.TransactionRecord{
			Date:     date,
			State:    row[columnMap["state"]],
			District: row[columnMap["district"]],
			Pincode:  strings.TrimSpace(row[columnMap["pincode"]]),
		}
		for _, ci := range counts {
			value, err := parseCount(row[ci.index])
			if err != nil {
				return nil, fmt.Errorf("%s:%d: column %s: %w", path, line, ci.name, err)
			}
			ci.set(&rec.Counts, value)
		}
		records = append(records, rec)
	}
	return records, nil
}

// parseDate accepts the registrar layout (DD-MM-YYYY) and, as a
// fallback, the ISO layout used by re-exported master files.
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if date, err := time.Parse(model.DateLayout, s); err == nil {
		return date, nil
	}
	return time.Parse("2006-01-02", s)
}

// parseCount parses a non-negative count. Empty cells mean zero, the
// outer-join convention for columns a source family does not carry.
// Master files written by the previous tooling format counts as floats
// ("123.0"); whole values are accepted, fractional ones are data errors.
func parseCount(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil || f != math.Trunc(f) {
			return 0, fmt.Errorf("bad count %q", s)
		}
		v = int(f)
	}
	if v < 0 {
		return 0, fmt.Errorf("negative count %d", v)
	}
	return v, nil
}
