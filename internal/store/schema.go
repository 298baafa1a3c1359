package store

// Schema kept portable across postgres and sqlite: dates and timestamps
// travel as TEXT (ISO 8601), so ordering and comparisons behave the same
// under both drivers.

const schemaPipelineRuns = `
CREATE TABLE IF NOT EXISTS pipeline_runs (
	run_id          TEXT PRIMARY KEY,
	started_at      TEXT NOT NULL,
	finished_at     TEXT NOT NULL,
	input_files     INTEGER NOT NULL,
	input_rows      INTEGER NOT NULL,
	rejected_rows   INTEGER NOT NULL,
	duplicate_rows  INTEGER NOT NULL,
	aggregate_rows  INTEGER NOT NULL,
	districts       INTEGER NOT NULL,
	total_operators INTEGER NOT NULL,
	monthly_cost    REAL NOT NULL
);`

const schemaDailyAggregates = `
CREATE TABLE IF NOT EXISTS daily_aggregates (
	run_id           TEXT NOT NULL,
	date             TEXT NOT NULL,
	state            TEXT NOT NULL,
	district         TEXT NOT NULL,
	pincode          TEXT NOT NULL,
	month_name       TEXT NOT NULL,
	day_name         TEXT NOT NULL,
	is_weekend       INTEGER NOT NULL,
	age_0_5          INTEGER NOT NULL,
	age_5_17         INTEGER NOT NULL,
	age_18_greater   INTEGER NOT NULL,
	bio_age_5_17     INTEGER NOT NULL,
	bio_age_18_greater  INTEGER NOT NULL,
	demo_age_5_17    INTEGER NOT NULL,
	demo_age_18_greater INTEGER NOT NULL,
	total_enrolments           INTEGER NOT NULL,
	total_biometric_updates    INTEGER NOT NULL,
	total_demographic_updates  INTEGER NOT NULL,
	total_updates              INTEGER NOT NULL,
	overall_activity           INTEGER NOT NULL,
	update_to_enrolment_ratio  REAL NOT NULL,
	PRIMARY KEY (run_id, date, state, district, pincode)
);`

const schemaDistrictProfiles = `
CREATE TABLE IF NOT EXISTS district_profiles (
	run_id               TEXT NOT NULL,
	state                TEXT NOT NULL,
	district             TEXT NOT NULL,
	window_class         TEXT NOT NULL,
	eur_mean             REAL NOT NULL,
	eur_std              REAL NOT NULL,
	stress_percentile    REAL,
	peer_count           INTEGER NOT NULL,
	eur_category         TEXT NOT NULL,
	recommendation       TEXT NOT NULL,
	reason               TEXT NOT NULL,
	total_enrolments     INTEGER NOT NULL,
	total_updates        INTEGER NOT NULL,
	observed_days        INTEGER NOT NULL,
	avg_daily_enrolments REAL NOT NULL,
	avg_daily_updates    REAL NOT NULL,
	daily_gap            REAL NOT NULL,
	operators_needed     INTEGER NOT NULL,
	monthly_cost         REAL NOT NULL,
	PRIMARY KEY (run_id, state, district)
);`

var schemas = []string{schemaPipelineRuns, schemaDailyAggregates, schemaDistrictProfiles}
