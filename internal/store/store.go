// Package store persists pipeline runs, aggregates and profiles to a
// relational database, postgres for shared deployments or sqlite for
// single-machine analysis.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/uidai-stress/internal/config"
	"github.com/uidai-stress/internal/model"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"

	isoDate = "2006-01-02"

	// rows per multi-row insert, kept under sqlite's bind variable cap
	batchSize = 250
)

// Store wraps the run database.
type Store struct {
	db *sqlx.DB
}

// Open connects using the environment: STRESS_DB_DRIVER selects the
// driver, postgres reads the PG* variables, sqlite reads STRESS_DB_PATH.
func Open() (*Store, error) {
	driver := config.GetEnv("STRESS_DB_DRIVER", DriverSQLite)
	dsn, err := dsnFromEnv(driver)
	if err != nil {
		return nil, err
	}
	return OpenWith(driver, dsn)
}

// OpenWith connects to an explicit driver and DSN.
func OpenWith(driver, dsn string) (*Store, error) {
	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s database: %w", driver, err)
	}
	if driver == DriverPostgres {
		db.SetMaxOpenConns(20)
		db.SetMaxIdleConns(10)
	} else {
		// sqlite gives every pool connection its own view of :memory:
		// and serializes file writes anyway, so keep one connection.
		db.SetMaxOpenConns(1)
	}
	return &Store{db: db}, nil
}

func dsnFromEnv(driver string) (string, error) {
	switch driver {
	case DriverPostgres:
		return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
			config.GetEnv("PGHOST", "localhost"),
			config.GetEnv("PGPORT", "5432"),
			config.GetEnv("PGUSER", "uidai"),
			config.GetEnv("PGPASSWORD", "uidai"),
			config.GetEnv("PGDATABASE", "uidai_stress"),
		), nil
	case DriverSQLite:
		return config.GetEnv("STRESS_DB_PATH", "stress.db"), nil
	default:
		return "", fmt.Errorf("unknown database driver %q", driver)
	}
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate creates the tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	for _, ddl := range schemas {
		if _, err := s.db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}

// Run is one pipeline_runs row.
type Run struct {
	RunID          string    `db:"run_id"`
	StartedAt      time.Time `db:"-"`
	FinishedAt     time.Time `db:"-"`
	InputFiles     int       `db:"input_files"`
	InputRows      int       `db:"input_rows"`
	RejectedRows   int       `db:"rejected_rows"`
	DuplicateRows  int       `db:"duplicate_rows"`
	AggregateRows  int       `db:"aggregate_rows"`
	Districts      int       `db:"districts"`
	TotalOperators int       `db:"total_operators"`
	MonthlyCost    float64   `db:"monthly_cost"`
}

type runRow struct {
	Run
	StartedAtText  string `db:"started_at"`
	FinishedAtText string `db:"finished_at"`
}

// SaveRun inserts the run summary row.
func (s *Store) SaveRun(ctx context.Context, run Run) error {
	row := runRow{
		Run:            run,
		StartedAtText:  run.StartedAt.UTC().Format(time.RFC3339),
		FinishedAtText: run.FinishedAt.UTC().Format(time.RFC3339),
	}
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO pipeline_runs (
			run_id, started_at, finished_at, input_files, input_rows,
			rejected_rows, duplicate_rows, aggregate_rows, districts,
			total_operators, monthly_cost
		) VALUES (
			:run_id, :started_at, :finished_at, :input_files, :input_rows,
			:rejected_rows, :duplicate_rows, :aggregate_rows, :districts,
			:total_operators, :monthly_cost
		)`, row)
	if err != nil {
		return fmt.Errorf("failed to insert pipeline run %s: %w", run.RunID, err)
	}
	return nil
}

// Runs lists recent runs, newest first.
func (s *Store) Runs(ctx context.Context, limit int) ([]Run, error) {
	var rows []runRow
	query := s.db.Rebind(`
		SELECT run_id, started_at, finished_at, input_files, input_rows,
		       rejected_rows, duplicate_rows, aggregate_rows, districts,
		       total_operators, monthly_cost
		FROM pipeline_runs ORDER BY started_at DESC LIMIT ?`)
	if err := s.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list pipeline runs: %w", err)
	}

	runs := make([]Run, 0, len(rows))
	for _, row := range rows {
		run, err := row.toRun()
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, nil
}

// LatestRun returns the most recent run, or sql.ErrNoRows when the table
// is empty.
func (s *Store) LatestRun(ctx context.Context) (Run, error) {
	runs, err := s.Runs(ctx, 1)
	if err != nil {
		return Run{}, err
	}
	if len(runs) == 0 {
		return Run{}, sql.ErrNoRows
	}
	return runs[0], nil
}

func (r runRow) toRun() (Run, error) {
	started, err := time.Parse(time.RFC3339, r.StartedAtText)
	if err != nil {
		return Run{}, fmt.Errorf("failed to parse started_at for run %s: %w", r.RunID, err)
	}
	finished, err := time.Parse(time.RFC3339, r.FinishedAtText)
	if err != nil {
		return Run{}, fmt.Errorf("failed to parse finished_at for run %s: %w", r.RunID, err)
	}
	run := r.Run
	run.StartedAt = started
	run.FinishedAt = finished
	return run, nil
}

type aggregateRow struct {
	RunID     string `db:"run_id"`
	Date      string `db:"date"`
	State     string `db:"state"`
	District  string `db:"district"`
	Pincode   string `db:"pincode"`
	MonthName string `db:"month_name"`
	DayName   string `db:"day_name"`
	IsWeekend int    `db:"is_weekend"`

	Age0To5       int `db:"age_0_5"`
	Age5To17      int `db:"age_5_17"`
	Age18Plus     int `db:"age_18_greater"`
	BioAge5To17   int `db:"bio_age_5_17"`
	BioAge18Plus  int `db:"bio_age_18_greater"`
	DemoAge5To17  int `db:"demo_age_5_17"`
	DemoAge18Plus int `db:"demo_age_18_greater"`

	TotalEnrolments         int     `db:"total_enrolments"`
	TotalBiometricUpdates   int     `db:"total_biometric_updates"`
	TotalDemographicUpdates int     `db:"total_demographic_updates"`
	TotalUpdates            int     `db:"total_updates"`
	OverallActivity         int     `db:"overall_activity"`
	UpdateToEnrolmentRatio  float64 `db:"update_to_enrolment_ratio"`
}

// SaveAggregates bulk-inserts the daily aggregate table for a run.
func (s *Store) SaveAggregates(ctx context.Context, runID string, rows []model.AggregateRow) error {
	const insert = `
		INSERT INTO daily_aggregates (
			run_id, date, state, district, pincode, month_name, day_name, is_weekend,
			age_0_5, age_5_17, age_18_greater, bio_age_5_17, bio_age_18_greater,
			demo_age_5_17, demo_age_18_greater, total_enrolments,
			total_biometric_updates, total_demographic_updates, total_updates,
			overall_activity, update_to_enrolment_ratio
		) VALUES (
			:run_id, :date, :state, :district, :pincode, :month_name, :day_name, :is_weekend,
			:age_0_5, :age_5_17, :age_18_greater, :bio_age_5_17, :bio_age_18_greater,
			:demo_age_5_17, :demo_age_18_greater, :total_enrolments,
			:total_biometric_updates, :total_demographic_updates, :total_updates,
			:overall_activity, :update_to_enrolment_ratio
		)`

	for start := 0; start < len(rows); start += batchSize {
		end := start + batchSize
		if end > len(rows) {
			end = len(rows)
		}
		batch := make([]aggregateRow, 0, end-start)
		for _, row := range rows[start:end] {
			batch = append(batch, toAggregateRow(runID, row))
		}
		if _, err := s.db.NamedExecContext(ctx, insert, batch); err != nil {
			return fmt.Errorf("failed to insert daily aggregates: %w", err)
		}
	}
	return nil
}

func toAggregateRow(runID string, row model.AggregateRow) aggregateRow {
	return aggregateRow{
		RunID:     runID,
		Date:      row.Date.Format(isoDate),
		State:     row.State,
		District:  row.District,
		Pincode:   row.Pincode,
		MonthName: row.MonthName,
		DayName:   row.DayName,
		IsWeekend: row.IsWeekend,

		Age0To5:       row.Counts.Age0To5,
		Age5To17:      row.Counts.Age5To17,
		Age18Plus:     row.Counts.Age18Plus,
		BioAge5To17:   row.Counts.BioAge5To17,
		BioAge18Plus:  row.Counts.BioAge18Plus,
		DemoAge5To17:  row.Counts.DemoAge5To17,
		DemoAge18Plus: row.Counts.DemoAge18Plus,

		TotalEnrolments:         row.TotalEnrolments,
		TotalBiometricUpdates:   row.TotalBiometricUpdates,
		TotalDemographicUpdates: row.TotalDemographicUpdates,
		TotalUpdates:            row.TotalUpdates,
		OverallActivity:         row.OverallActivity,
		UpdateToEnrolmentRatio:  row.UpdateToEnrolmentRatio,
	}
}

type profileRow struct {
	RunID       string `db:"run_id"`
	State       string `db:"state"`
	District    string `db:"district"`
	WindowClass string `db:"window_class"`

	EURMean          float64         `db:"eur_mean"`
	EURStd           float64         `db:"eur_std"`
	StressPercentile sql.NullFloat64 `db:"stress_percentile"`
	PeerCount        int             `db:"peer_count"`

	Category       string `db:"eur_category"`
	Recommendation string `db:"recommendation"`
	Reason         string `db:"reason"`

	TotalEnrolments    int     `db:"total_enrolments"`
	TotalUpdates       int     `db:"total_updates"`
	ObservedDays       int     `db:"observed_days"`
	AvgDailyEnrolments float64 `db:"avg_daily_enrolments"`
	AvgDailyUpdates    float64 `db:"avg_daily_updates"`

	DailyGap        float64 `db:"daily_gap"`
	OperatorsNeeded int     `db:"operators_needed"`
	MonthlyCost     float64 `db:"monthly_cost"`
}

// SaveProfiles bulk-inserts the scored district profiles for a run. The
// insufficient-peer sentinel is stored as NULL, never as a number.
func (s *Store) SaveProfiles(ctx context.Context, runID string, profiles []model.StressProfile) error {
	const insert = `
		INSERT INTO district_profiles (
			run_id, state, district, window_class, eur_mean, eur_std,
			stress_percentile, peer_count, eur_category, recommendation, reason,
			total_enrolments, total_updates, observed_days,
			avg_daily_enrolments, avg_daily_updates, daily_gap,
			operators_needed, monthly_cost
		) VALUES (
			:run_id, :state, :district, :window_class, :eur_mean, :eur_std,
			:stress_percentile, :peer_count, :eur_category, :recommendation, :reason,
			:total_enrolments, :total_updates, :observed_days,
			:avg_daily_enrolments, :avg_daily_updates, :daily_gap,
			:operators_needed, :monthly_cost
		)`

	for start := 0; start < len(profiles); start += batchSize {
		end := start + batchSize
		if end > len(profiles) {
			end = len(profiles)
		}
		batch := make([]profileRow, 0, end-start)
		for _, p := range profiles[start:end] {
			batch = append(batch, toProfileRow(runID, p))
		}
		if _, err := s.db.NamedExecContext(ctx, insert, batch); err != nil {
			return fmt.Errorf("failed to insert district profiles: %w", err)
		}
	}
	return nil
}

func toProfileRow(runID string, p model.StressProfile) profileRow {
	row := profileRow{
		RunID:       runID,
		State:       p.State,
		District:    p.District,
		WindowClass: string(p.WindowClass),

		EURMean:   p.EURMean,
		EURStd:    p.EURStd,
		PeerCount: p.PeerCount,

		Category:       string(p.Category),
		Recommendation: string(p.Recommendation),
		Reason:         p.Reason,

		TotalEnrolments:    p.TotalEnrolments,
		TotalUpdates:       p.TotalUpdates,
		ObservedDays:       p.ObservedDays,
		AvgDailyEnrolments: p.AvgDailyEnrolments,
		AvgDailyUpdates:    p.AvgDailyUpdates,

		DailyGap:        p.DailyGap,
		OperatorsNeeded: p.OperatorsNeeded,
		MonthlyCost:     p.MonthlyCost,
	}
	if p.HasPercentile() {
		row.StressPercentile = sql.NullFloat64{Float64: p.StressPercentile, Valid: true}
	}
	return row
}

func (r profileRow) toProfile() model.StressProfile {
	p := model.StressProfile{
		State:       r.State,
		District:    r.District,
		WindowClass: model.WindowClass(r.WindowClass),

		EURMean:          r.EURMean,
		EURStd:           r.EURStd,
		StressPercentile: math.NaN(),
		PeerCount:        r.PeerCount,

		Category:       model.Category(r.Category),
		Recommendation: model.Recommendation(r.Recommendation),
		Reason:         r.Reason,

		TotalEnrolments:    r.TotalEnrolments,
		TotalUpdates:       r.TotalUpdates,
		ObservedDays:       r.ObservedDays,
		AvgDailyEnrolments: r.AvgDailyEnrolments,
		AvgDailyUpdates:    r.AvgDailyUpdates,

		DailyGap:        r.DailyGap,
		OperatorsNeeded: r.OperatorsNeeded,
		MonthlyCost:     r.MonthlyCost,
	}
	if r.StressPercentile.Valid {
		p.StressPercentile = r.StressPercentile.Float64
	}
	return p
}

// Profiles loads the scored profiles of a run ordered by state and
// district.
func (s *Store) Profiles(ctx context.Context, runID string) ([]model.StressProfile, error) {
	var rows []profileRow
	query := s.db.Rebind(`
		SELECT run_id, state, district, window_class, eur_mean, eur_std,
		       stress_percentile, peer_count, eur_category, recommendation, reason,
		       total_enrolments, total_updates, observed_days,
		       avg_daily_enrolments, avg_daily_updates, daily_gap,
		       operators_needed, monthly_cost
		FROM district_profiles WHERE run_id = ? ORDER BY state, district`)
	if err := s.db.SelectContext(ctx, &rows, query, runID); err != nil {
		return nil, fmt.Errorf("failed to load district profiles for run %s: %w", runID, err)
	}

	profiles := make([]model.StressProfile, 0, len(rows))
	for _, row := range rows {
		profiles = append(profiles, row.toProfile())
	}
	return profiles, nil
}

func (r aggregateRow) toAggregate() (model.AggregateRow, error) {
	date, err := time.Parse(isoDate, r.Date)
	if err != nil {
		return model.AggregateRow{}, fmt.Errorf("bad date %q in daily_aggregates: %w", r.Date, err)
	}
	return model.AggregateRow{
		Date:      date,
		State:     r.State,
		District:  r.District,
		Pincode:   r.Pincode,
		MonthName: r.MonthName,
		DayName:   r.DayName,
		IsWeekend: r.IsWeekend,

		Counts: model.Counts{
			Age0To5:       r.Age0To5,
			Age5To17:      r.Age5To17,
			Age18Plus:     r.Age18Plus,
			BioAge5To17:   r.BioAge5To17,
			BioAge18Plus:  r.BioAge18Plus,
			DemoAge5To17:  r.DemoAge5To17,
			DemoAge18Plus: r.DemoAge18Plus,
		},

		TotalEnrolments:         r.TotalEnrolments,
		TotalBiometricUpdates:   r.TotalBiometricUpdates,
		TotalDemographicUpdates: r.TotalDemographicUpdates,
		TotalUpdates:            r.TotalUpdates,
		OverallActivity:         r.OverallActivity,
		UpdateToEnrolmentRatio:  r.UpdateToEnrolmentRatio,
	}, nil
}

// Aggregates loads the daily aggregate table of a run in key order.
func (s *Store) Aggregates(ctx context.Context, runID string) ([]model.AggregateRow, error) {
	var rows []aggregateRow
	query := s.db.Rebind(`
		SELECT run_id, date, state, district, pincode, month_name, day_name, is_weekend,
		       age_0_5, age_5_17, age_18_greater, bio_age_5_17, bio_age_18_greater,
		       demo_age_5_17, demo_age_18_greater, total_enrolments,
		       total_biometric_updates, total_demographic_updates, total_updates,
		       overall_activity, update_to_enrolment_ratio
		FROM daily_aggregates WHERE run_id = ?
		ORDER BY date, state, district, pincode`)
	if err := s.db.SelectContext(ctx, &rows, query, runID); err != nil {
		return nil, fmt.Errorf("failed to load daily aggregates for run %s: %w", runID, err)
	}

	out := make([]model.AggregateRow, 0, len(rows))
	for _, row := range rows {
		agg, err := row.toAggregate()
		if err != nil {
			return nil, err
		}
		out = append(out, agg)
	}
	return out, nil
}

// Run loads one archived run by ID, or sql.ErrNoRows when absent.
func (s *Store) Run(ctx context.Context, runID string) (Run, error) {
	var row runRow
	query := s.db.Rebind(`
		SELECT run_id, started_at, finished_at, input_files, input_rows,
		       rejected_rows, duplicate_rows, aggregate_rows, districts,
		       total_operators, monthly_cost
		FROM pipeline_runs WHERE run_id = ?`)
	if err := s.db.GetContext(ctx, &row, query, runID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, err
		}
		return Run{}, fmt.Errorf("failed to load run %s: %w", runID, err)
	}
	return row.toRun()
}
