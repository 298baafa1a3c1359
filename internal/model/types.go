package model

import (
	"fmt"
	"math"
	"time"
)

// DateLayout is the civic date format used across all input and output files.
// Dates are calendar dates, not instants; no timezone handling applies.
const DateLayout = "02-01-2006"

// WindowClass buckets a district by the span of its trailing history.
type WindowClass string

const (
	WindowShortTerm WindowClass = "short_term"
	WindowMidTerm   WindowClass = "mid_term"
	WindowLongTerm  WindowClass = "long_term"
)

// Recommendation is an intervention action from the fixed vocabulary.
type Recommendation string

const (
	RecMobileVan       Recommendation = "Mobile Aadhaar Van"
	RecPermanentCentre Recommendation = "Permanent Centre"
	RecExtraCounters   Recommendation = "Extra Counters"
	RecSemiPermanent   Recommendation = "Semi-Permanent Support"
	RecTemporaryCamp   Recommendation = "Temporary Mobile Camp"
	RecMonitorClosely  Recommendation = "Monitor Closely"
	RecMonitor         Recommendation = "Monitor / No Action"
)

// Category is the severity band derived from a recommendation.
type Category string

const (
	CategoryCritical Category = "Critical"
	CategoryWarning  Category = "Warning"
	CategoryNormal   Category = "Normal"
)

// CategoryFor maps a recommendation to its severity band.
func CategoryFor(rec Recommendation) Category {
	switch rec {
	case RecMobileVan, RecPermanentCentre:
		return CategoryCritical
	case RecExtraCounters, RecSemiPermanent, RecTemporaryCamp:
		return CategoryWarning
	default:
		return CategoryNormal
	}
}

// Counts holds the seven transaction count columns shared by raw records
// and aggregate rows. Enrolments are split by age band; updates by kind and
// age band.
type Counts struct {
	Age0To5       int `json:"age_0_5"`
	Age5To17      int `json:"age_5_17"`
	Age18Plus     int `json:"age_18_greater"`
	BioAge5To17   int `json:"bio_age_5_17"`
	BioAge18Plus  int `json:"bio_age_18_greater"`
	DemoAge5To17  int `json:"demo_age_5_17"`
	DemoAge18Plus int `json:"demo_age_18_greater"`
}

// Enrolments is the sum of the enrolment age bands.
func (c Counts) Enrolments() int {
	return c.Age0To5 + c.Age5To17 + c.Age18Plus
}

// BiometricUpdates is the sum of the biometric update age bands.
func (c Counts) BiometricUpdates() int {
	return c.BioAge5To17 + c.BioAge18Plus
}

// DemographicUpdates is the sum of the demographic update age bands.
func (c Counts) DemographicUpdates() int {
	return c.DemoAge5To17 + c.DemoAge18Plus
}

// Updates is the sum of all update columns.
func (c Counts) Updates() int {
	return c.BiometricUpdates() + c.DemographicUpdates()
}

// Add returns the column-wise sum of two count sets.
func (c Counts) Add(o Counts) Counts {
	return Counts{
		Age0To5:       c.Age0To5 + o.Age0To5,
		Age5To17:      c.Age5To17 + o.Age5To17,
		Age18Plus:     c.Age18Plus + o.Age18Plus,
		BioAge5To17:   c.BioAge5To17 + o.BioAge5To17,
		BioAge18Plus:  c.BioAge18Plus + o.BioAge18Plus,
		DemoAge5To17:  c.DemoAge5To17 + o.DemoAge5To17,
		DemoAge18Plus: c.DemoAge18Plus + o.DemoAge18Plus,
	}
}

// TransactionRecord is one parsed input row before key normalization.
type TransactionRecord struct {
	Date     time.Time `json:"date"`
	State    string    `json:"state"`
	District string    `json:"district"`
	Pincode  string    `json:"pincode"`
	Counts   Counts    `json:"counts"`
}

// DistrictKey identifies a district after normalization.
type DistrictKey struct {
	State    string `json:"state"`
	District string `json:"district"`
}

func (k DistrictKey) String() string {
	return fmt.Sprintf("%s / %s", k.State, k.District)
}

// AggregateKey is the grouping key for daily aggregate rows. The calendar
// columns are functionally dependent on Date and are carried alongside the
// key rather than inside it.
type AggregateKey struct {
	Date     time.Time `json:"date"`
	State    string    `json:"state"`
	District string    `json:"district"`
	Pincode  string    `json:"pincode"`
}

func (k AggregateKey) String() string {
	return fmt.Sprintf("%s %s/%s/%s", k.Date.Format(DateLayout), k.State, k.District, k.Pincode)
}

// DistrictKey returns the district portion of the aggregate key.
func (k AggregateKey) DistrictKey() DistrictKey {
	return DistrictKey{State: k.State, District: k.District}
}

// AggregateRow is one feature-engineered daily aggregate row: the aggregate
// key, calendar columns, raw counts and the derived totals and ratio.
type AggregateRow struct {
	Date     time.Time `json:"date"`
	State    string    `json:"state"`
	District string    `json:"district"`
	Pincode  string    `json:"pincode"`

	MonthName string `json:"month_name"`
	DayName   string `json:"day_name"`
	IsWeekend int    `json:"is_weekend"`

	Counts Counts `json:"counts"`

	TotalEnrolments         int     `json:"total_enrolments"`
	TotalBiometricUpdates   int     `json:"total_biometric_updates"`
	TotalDemographicUpdates int     `json:"total_demographic_updates"`
	TotalUpdates            int     `json:"total_updates"`
	OverallActivity         int     `json:"overall_activity"`
	UpdateToEnrolmentRatio  float64 `json:"update_to_enrolment_ratio"`
}

// Key returns the aggregate grouping key of the row.
func (r AggregateRow) Key() AggregateKey {
	return AggregateKey{Date: r.Date, State: r.State, District: r.District, Pincode: r.Pincode}
}

// StressProfile is one output row of the district stress profile table.
// StressPercentile is NaN when PeerCount < 2; consumers must check
// HasPercentile before using the value.
type StressProfile struct {
	State       string      `json:"state"`
	District    string      `json:"district"`
	WindowClass WindowClass `json:"window_class"`

	EURMean          float64 `json:"eur_mean"`
	EURStd           float64 `json:"eur_std"`
	StressPercentile float64 `json:"stress_percentile"`
	PeerCount        int     `json:"peer_count"`

	Category       Category       `json:"eur_category"`
	Recommendation Recommendation `json:"recommendation"`
	Reason         string         `json:"reason"`

	TotalEnrolments    int     `json:"total_enrolments"`
	TotalUpdates       int     `json:"total_updates"`
	ObservedDays       int     `json:"observed_days"`
	AvgDailyEnrolments float64 `json:"avg_daily_enrolments"`
	AvgDailyUpdates    float64 `json:"avg_daily_updates"`

	DailyGap        float64 `json:"daily_gap"`
	OperatorsNeeded int     `json:"operators_needed"`
	MonthlyCost     float64 `json:"monthly_cost"`
}

// Key returns the district key of the profile.
func (p StressProfile) Key() DistrictKey {
	return DistrictKey{State: p.State, District: p.District}
}

// HasPercentile reports whether the profile carries a meaningful percentile.
func (p StressProfile) HasPercentile() bool {
	return !math.IsNaN(p.StressPercentile)
}

// AvgDailyActivity is the combined daily enrolment and update load.
func (p StressProfile) AvgDailyActivity() float64 {
	return p.AvgDailyEnrolments + p.AvgDailyUpdates
}
