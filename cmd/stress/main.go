package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/powerman/structlog"
	"github.com/spf13/cobra"

	"github.com/uidai-stress/internal/config"
	"github.com/uidai-stress/internal/export"
	"github.com/uidai-stress/internal/model"
	"github.com/uidai-stress/internal/pipeline"
	"github.com/uidai-stress/internal/quality"
	"github.com/uidai-stress/internal/sink"
	"github.com/uidai-stress/internal/store"
)

func main() {
	config.LoadEnv()
	initLog()

	rootCmd := &cobra.Command{
		Use:   "stress",
		Short: "UIDAI district stress analysis pipeline",
		Long:  `Scores district-level Aadhaar enrolment and update stress from daily transaction extracts, classifies intervention needs and plans operator capacity`,
	}

	rootCmd.AddCommand(createRunCmd())
	rootCmd.AddCommand(createValidateCmd())
	rootCmd.AddCommand(createRunsCmd())
	rootCmd.AddCommand(createPublishCmd())
	rootCmd.AddCommand(createInitConfigCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func initLog() {
	structlog.DefaultLogger.
		SetPrefixKeys(
			structlog.KeyApp, structlog.KeyPID, structlog.KeyLevel, structlog.KeyUnit, structlog.KeyTime,
		).
		SetDefaultKeyvals(
			structlog.KeyApp, filepath.Base(os.Args[0]),
			structlog.KeySource, structlog.Auto,
		).
		SetSuffixKeys(
			structlog.KeyStack,
		).
		SetSuffixKeys(structlog.KeySource).
		SetKeysFormat(map[string]string{
			structlog.KeyTime:   " %[2]s",
			structlog.KeySource: " %6[2]s",
			structlog.KeyUnit:   " %6[2]s",
		})
}

// loadPipelineConfig reads the YAML config when a path is given and
// falls back to the defaults otherwise.
func loadPipelineConfig(path string) config.Pipeline {
	if path == "" {
		return config.DefaultPipeline()
	}
	cfg, err := config.LoadPipeline(path)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

// createRunCmd creates the main pipeline command
func createRunCmd() *cobra.Command {
	var configPath string
	var outputDir string
	var workers int
	var failUnresolved bool
	var archive bool
	var publish bool

	cmd := &cobra.Command{
		Use:   "run [glob...]",
		Short: "Run the full stress pipeline over transaction CSVs",
		Long:  `Ingests the matched transaction CSVs, normalizes geography, aggregates per district-day, scores stress percentiles, classifies interventions and writes the CSV and Excel artefacts`,
		Args:  cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			cfg := loadPipelineConfig(configPath)
			if outputDir != "" {
				cfg.OutputDir = outputDir
			}
			if workers > 0 {
				cfg.ScorerWorkers = workers
			}
			if failUnresolved {
				cfg.OnUnresolved = config.UnresolvedFail
			}

			ctx := context.Background()
			res, err := pipeline.NewRunner(cfg).Run(ctx, args...)
			if err != nil {
				log.Fatalf("Pipeline failed: %v", err)
			}

			ex := export.NewExporter(cfg.OutputDir)
			if _, err := ex.WriteMaster(res.Rows); err != nil {
				log.Fatalf("Failed to write master CSV: %v", err)
			}
			if _, err := ex.WriteRecommendations(res.Profiles); err != nil {
				log.Fatalf("Failed to write recommendations CSV: %v", err)
			}
			if _, err := ex.WriteRequirements(res.Profiles); err != nil {
				log.Fatalf("Failed to write requirements CSV: %v", err)
			}
			if _, err := ex.WriteWorkbook(res.Profiles, res.Summary, cfg.Capacity); err != nil {
				log.Fatalf("Failed to write action plan workbook: %v", err)
			}

			if archive {
				archiveRun(ctx, res)
			}
			if publish {
				publishRun(ctx, res.Rows, res.Profiles, res.FinishedAt)
			}

			fmt.Println()
			res.Render(os.Stdout)
			fmt.Printf("\nOutputs written to %s\n", ex.Dir())
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "Path to YAML pipeline config")
	cmd.Flags().StringVar(&outputDir, "output", "", "Output directory (overrides config)")
	cmd.Flags().IntVar(&workers, "workers", 0, "Scorer worker count (0 = one per CPU)")
	cmd.Flags().BoolVar(&failUnresolved, "fail-unresolved", false, "Fail on unresolved geography instead of dropping rows")
	cmd.Flags().BoolVar(&archive, "store", false, "Archive the run in the relational store")
	cmd.Flags().BoolVar(&publish, "publish", false, "Publish the run's series to InfluxDB")

	return cmd
}

func archiveRun(ctx context.Context, res *pipeline.Result) {
	st, err := store.Open()
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer st.Close()

	if err := st.Migrate(ctx); err != nil {
		log.Fatalf("Failed to migrate store: %v", err)
	}

	run := store.Run{
		RunID:          res.RunID,
		StartedAt:      res.StartedAt,
		FinishedAt:     res.FinishedAt,
		InputFiles:     res.InputFiles,
		InputRows:      res.InputRows,
		RejectedRows:   res.RejectedRows,
		DuplicateRows:  res.ExactDuplicates,
		AggregateRows:  len(res.Rows),
		Districts:      res.Districts(),
		TotalOperators: res.Summary.TotalOperators,
		MonthlyCost:    res.Summary.MonthlyCost,
	}
	if err := st.SaveRun(ctx, run); err != nil {
		log.Fatalf("Failed to archive run: %v", err)
	}
	if err := st.SaveAggregates(ctx, res.RunID, res.Rows); err != nil {
		log.Fatalf("Failed to archive aggregates: %v", err)
	}
	if err := st.SaveProfiles(ctx, res.RunID, res.Profiles); err != nil {
		log.Fatalf("Failed to archive profiles: %v", err)
	}
	fmt.Printf("Run %s archived\n", res.RunID)
}

// createValidateCmd creates the data quality command
func createValidateCmd() *cobra.Command {
	var configPath string
	var csvPath string
	var extremeThreshold int
	var minDistrictRows int

	cmd := &cobra.Command{
		Use:   "validate [glob...]",
		Short: "Run data quality checks without scoring",
		Long:  `Ingests and normalizes the transaction CSVs, then reports duplicates, unusual patterns and pincode region mismatches`,
		Args:  cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			cfg := loadPipelineConfig(configPath)

			opts := quality.DefaultOptions()
			if extremeThreshold > 0 {
				opts.ExtremeEnrolments = extremeThreshold
			}
			if minDistrictRows > 0 {
				opts.MinDistrictRows = minDistrictRows
			}

			rep, err := pipeline.NewRunner(cfg).Validate(args, opts)
			if err != nil {
				log.Fatalf("Validation failed: %v", err)
			}

			rep.Render(os.Stdout)

			if csvPath != "" {
				f, err := os.Create(csvPath)
				if err != nil {
					log.Fatalf("Failed to create report CSV: %v", err)
				}
				defer f.Close()
				if err := rep.WriteCSV(f); err != nil {
					log.Fatalf("Failed to write report CSV: %v", err)
				}
				fmt.Printf("\nReport written to %s\n", csvPath)
			}
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "Path to YAML pipeline config")
	cmd.Flags().StringVar(&csvPath, "csv", "", "Also write the report as CSV to this path")
	cmd.Flags().IntVar(&extremeThreshold, "extreme-threshold", 0, "Daily enrolment count considered extreme (default 50000)")
	cmd.Flags().IntVar(&minDistrictRows, "min-district-rows", 0, "Row count below which a district is flagged rare (default 10)")

	return cmd
}

// createRunsCmd creates the run history command
func createRunsCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List archived pipeline runs",
		Run: func(cmd *cobra.Command, args []string) {
			st, err := store.Open()
			if err != nil {
				log.Fatalf("Failed to open store: %v", err)
			}
			defer st.Close()

			ctx := context.Background()
			if err := st.Migrate(ctx); err != nil {
				log.Fatalf("Failed to migrate store: %v", err)
			}

			runs, err := st.Runs(ctx, limit)
			if err != nil {
				log.Fatalf("Failed to list runs: %v", err)
			}

			fmt.Printf("=== Archived Runs ===\n")
			if len(runs) == 0 {
				fmt.Println("No runs archived yet")
				return
			}
			for _, run := range runs {
				fmt.Printf("%s  %s  rows=%d districts=%d operators=%d cost=₹%.0f\n",
					run.RunID,
					run.StartedAt.Format(time.RFC3339),
					run.InputRows,
					run.Districts,
					run.TotalOperators,
					run.MonthlyCost)
			}
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of runs to list")

	return cmd
}

// createPublishCmd creates the InfluxDB publish command
func createPublishCmd() *cobra.Command {
	var runID string

	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Publish an archived run's series to InfluxDB",
		Long:  `Loads an archived run from the relational store and writes its district activity and stress series to InfluxDB for dashboards`,
		Run: func(cmd *cobra.Command, args []string) {
			st, err := store.Open()
			if err != nil {
				log.Fatalf("Failed to open store: %v", err)
			}
			defer st.Close()

			ctx := context.Background()
			run, err := resolveRun(ctx, st, runID)
			if err != nil {
				log.Fatalf("Failed to resolve run: %v", err)
			}

			rows, err := st.Aggregates(ctx, run.RunID)
			if err != nil {
				log.Fatalf("Failed to load aggregates: %v", err)
			}
			profiles, err := st.Profiles(ctx, run.RunID)
			if err != nil {
				log.Fatalf("Failed to load profiles: %v", err)
			}

			publishRun(ctx, rows, profiles, run.FinishedAt)
		},
	}

	cmd.Flags().StringVar(&runID, "run", "", "Run ID to publish (default: latest)")

	return cmd
}

func resolveRun(ctx context.Context, st *store.Store, runID string) (store.Run, error) {
	if runID == "" {
		return st.LatestRun(ctx)
	}
	return st.Run(ctx, runID)
}

func publishRun(ctx context.Context, rows []model.AggregateRow, profiles []model.StressProfile, at time.Time) {
	influx, err := sink.NewInflux(ctx, sink.InfluxFromEnv())
	if err != nil {
		log.Fatalf("Failed to connect to InfluxDB: %v", err)
	}
	defer influx.Close()

	activity, err := influx.PublishActivity(ctx, rows)
	if err != nil {
		log.Fatalf("Failed to publish activity series: %v", err)
	}
	stress, err := influx.PublishProfiles(ctx, profiles, at)
	if err != nil {
		log.Fatalf("Failed to publish stress series: %v", err)
	}

	fmt.Printf("\n=== Publish Results ===\n")
	fmt.Printf("Activity Points: %d\n", activity)
	fmt.Printf("Stress Points: %d\n", stress)
}

// createInitConfigCmd creates the config scaffolding command
func createInitConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init-config [path]",
		Short: "Write a pipeline config with the default assumptions",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			if _, err := os.Stat(args[0]); err == nil {
				log.Fatalf("Refusing to overwrite existing %s", args[0])
			}
			if err := config.DefaultPipeline().Save(args[0]); err != nil {
				log.Fatalf("Failed to write config: %v", err)
			}
			fmt.Printf("Config written to %s\n", args[0])
		},
	}
}
