package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Unresolved-geography policies for rows carrying the sentinel placeholder.
const (
	UnresolvedDrop = "drop"
	UnresolvedFail = "fail"
)

// Capacity holds the staffing arithmetic knobs. Salary feeds cost
// extrapolation only and never changes the staffing count.
type Capacity struct {
	OperatorCapacityPerDay int     `yaml:"operator_capacity_per_day"`
	WorkingDaysPerMonth    int     `yaml:"working_days_per_month"`
	OperatorSalaryMonth    float64 `yaml:"operator_salary_month"`
	ExistingOperators      int     `yaml:"existing_operators"`
}

// Pipeline is the YAML analysis configuration for a pipeline run.
type Pipeline struct {
	Capacity      Capacity `yaml:"capacity"`
	OnUnresolved  string   `yaml:"on_unresolved"`
	AliasOverlay  string   `yaml:"alias_overlay,omitempty"`
	ScorerWorkers int      `yaml:"scorer_workers"`
	OutputDir     string   `yaml:"output_dir"`
}

// DefaultPipeline returns the standard analysis configuration.
func DefaultPipeline() Pipeline {
	return Pipeline{
		Capacity: Capacity{
			OperatorCapacityPerDay: 50,
			WorkingDaysPerMonth:    25,
			OperatorSalaryMonth:    15000,
			ExistingOperators:      0,
		},
		OnUnresolved:  UnresolvedDrop,
		ScorerWorkers: 0, // 0 means one worker per CPU
		OutputDir:     "output",
	}
}

// LoadPipeline reads a YAML pipeline config. Fields absent from the file
// keep their defaults.
func LoadPipeline(path string) (Pipeline, error) {
	cfg := DefaultPipeline()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read pipeline config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse pipeline config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid pipeline config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the config for values the pipeline cannot run with.
func (p Pipeline) Validate() error {
	if p.Capacity.OperatorCapacityPerDay <= 0 {
		return fmt.Errorf("operator_capacity_per_day must be positive, got %d", p.Capacity.OperatorCapacityPerDay)
	}
	if p.Capacity.WorkingDaysPerMonth <= 0 || p.Capacity.WorkingDaysPerMonth > 31 {
		return fmt.Errorf("working_days_per_month must be in 1..31, got %d", p.Capacity.WorkingDaysPerMonth)
	}
	if p.Capacity.OperatorSalaryMonth < 0 {
		return fmt.Errorf("operator_salary_month must not be negative, got %v", p.Capacity.OperatorSalaryMonth)
	}
	if p.Capacity.ExistingOperators < 0 {
		return fmt.Errorf("existing_operators must not be negative, got %d", p.Capacity.ExistingOperators)
	}
	if p.OnUnresolved != UnresolvedDrop && p.OnUnresolved != UnresolvedFail {
		return fmt.Errorf("on_unresolved must be %q or %q, got %q", UnresolvedDrop, UnresolvedFail, p.OnUnresolved)
	}
	if p.ScorerWorkers < 0 {
		return fmt.Errorf("scorer_workers must not be negative, got %d", p.ScorerWorkers)
	}
	if p.OutputDir == "" {
		return fmt.Errorf("output_dir must not be empty")
	}
	return nil
}

// Save writes the config as YAML, used by the init-config command.
func (p Pipeline) Save(path string) error {
	data, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal pipeline config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write pipeline config: %w", err)
	}
	return nil
}
