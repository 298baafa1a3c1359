// Package pipeline wires the processing stages into one batch run: ingest,
// geography normalization, feature engineering, daily aggregation, stress
// scoring, rule classification and capacity estimation.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/powerman/structlog"

	"github.com/uidai-stress/internal/aggregate"
	"github.com/uidai-stress/internal/capacity"
	"github.com/uidai-stress/internal/config"
	"github.com/uidai-stress/internal/feature"
	"github.com/uidai-stress/internal/ingest"
	"github.com/uidai-stress/internal/model"
	"github.com/uidai-stress/internal/normalize"
	"github.com/uidai-stress/internal/quality"
	"github.com/uidai-stress/internal/rules"
	"github.com/uidai-stress/internal/stress"
)

var log = structlog.New()

// Result carries everything a single run produced, plus the stage
// accounting the run report and the runs table are built from.
type Result struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time

	InputFiles      int
	InputRows       int
	RejectedRows    int
	ExactDuplicates int
	MergedRows      int

	Rows     []model.AggregateRow
	Profiles []model.StressProfile
	Summary  capacity.Summary

	// AliasHits counts, per raw alias, how many input rows the state
	// canonicalization rewrote.
	AliasHits map[string]int
}

// Districts returns how many district profiles the run scored.
func (r *Result) Districts() int { return len(r.Profiles) }

// Elapsed returns the wall-clock duration of the run.
func (r *Result) Elapsed() time.Duration { return r.FinishedAt.Sub(r.StartedAt) }

// Runner executes the batch pipeline under one configuration.
type Runner struct {
	cfg config.Pipeline
}

func NewRunner(cfg config.Pipeline) *Runner {
	return &Runner{cfg: cfg}
}

// Run executes every stage over the files matched by the glob patterns and
// returns the scored, classified and staffed district profiles.
func (r *Runner) Run(ctx context.Context, patterns ...string) (*Result, error) {
	res := &Result{
		RunID:     ulid.Make().String(),
		StartedAt: time.Now(),
	}
	log := log.New("run", res.RunID)

	prep, err := r.prepare(log, patterns)
	if err != nil {
		return nil, err
	}
	res.InputFiles = prep.files
	res.InputRows = prep.input
	res.RejectedRows = prep.rejected
	res.AliasHits = prep.norm.Hits()

	agg, err := aggregate.Daily(prep.rows)
	if err != nil {
		return nil, err
	}
	res.ExactDuplicates = agg.ExactDuplicates
	res.MergedRows = agg.MergedRows
	res.Rows = agg.Rows
	log.Info("aggregate complete",
		"rows", len(agg.Rows), "exact_duplicates", agg.ExactDuplicates, "merged", agg.MergedRows)

	profiles, err := stress.NewScorer(r.cfg.ScorerWorkers).Score(ctx, agg.Rows)
	if err != nil {
		return nil, fmt.Errorf("failed to score districts: %w", err)
	}
	log.Info("scoring complete", "districts", len(profiles))

	if err := rules.Apply(profiles); err != nil {
		return nil, err
	}
	capacity.NewEstimator(r.cfg.Capacity).Apply(profiles)

	res.Profiles = profiles
	res.Summary = capacity.Summarize(profiles, r.cfg.Capacity)
	res.FinishedAt = time.Now()
	log.Info("run complete",
		"districts", len(profiles),
		"operators", res.Summary.TotalOperators,
		"elapsed", res.Elapsed().Round(time.Millisecond))
	return res, nil
}

// Validate runs ingest, normalization and feature engineering, then checks
// the pre-aggregation rows for quality problems without scoring anything.
func (r *Runner) Validate(patterns []string, opts quality.Options) (*quality.Report, error) {
	prep, err := r.prepare(log, patterns)
	if err != nil {
		return nil, err
	}
	rep := quality.Check(prep.rows, opts)
	rep.AliasHits = prep.norm.Hits()
	rep.RejectedRows = prep.rejected
	return &rep, nil
}

// prepared is the shared front half of a run: parsed, normalized and
// feature-engineered rows ready for aggregation or quality checks.
type prepared struct {
	files    int
	input    int
	rejected int
	rows     []model.AggregateRow
	norm     *normalize.Normalizer
}

func (r *Runner) prepare(log *structlog.Logger, patterns []string) (*prepared, error) {
	records, files, err := ingest.ReadGlob(patterns...)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("no input rows matched %v", patterns)
	}
	log.Info("ingest complete", "files", files, "rows", len(records))

	norm := normalize.NewNormalizer()
	if r.cfg.AliasOverlay != "" {
		added, err := norm.LoadOverlay(r.cfg.AliasOverlay)
		if err != nil {
			return nil, fmt.Errorf("failed to load alias overlay: %w", err)
		}
		log.Info("alias overlay loaded", "path", r.cfg.AliasOverlay, "aliases", added)
	}

	prep := &prepared{files: files, input: len(records), norm: norm}
	prep.rows = make([]model.AggregateRow, 0, len(records))
	for i := range records {
		if err := norm.Record(&records[i]); err != nil {
			if r.cfg.OnUnresolved == config.UnresolvedFail {
				return nil, err
			}
			prep.rejected++
			continue
		}
		prep.rows = append(prep.rows, feature.Derive(records[i]))
	}
	log.Info("normalize complete", "kept", len(prep.rows), "rejected", prep.rejected)
	return prep, nil
}
