package quality

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/soundprediction/recall/pkg/store"
	"github.com/soundprediction/recall/pkg/types"
	"github.com/soundprediction/recall/pkg/utils"
)

// Config tunes the assessment engine.
type Config struct {
	// Threshold is the overall score below which a record is flagged.
	Threshold float64 `mapstructure:"threshold"`

	// Weights overrides the per-validator weight. Validators not listed
	// weigh 1.0.
	Weights map[string]float64 `mapstructure:"weights"`

	// MaxConcurrency bounds parallel assessment in batch operations.
	MaxConcurrency int `mapstructure:"max_concurrency"`

	// WorkspaceRoot is the directory relevance checks resolve file
	// references against. Empty means the current directory.
	WorkspaceRoot string `mapstructure:"workspace_root"`
}

func DefaultConfig() Config {
	return Config{Threshold: 0.7, MaxConcurrency: 8, WorkspaceRoot: "."}
}

// Engine runs validators over stored records and aggregates their scores.
type Engine struct {
	records    store.RecordStore
	validators []Validator
	cfg        Config
	logger     *slog.Logger
}

func NewEngine(records store.RecordStore, validators []Validator, cfg Config, logger *slog.Logger) *Engine {
	if cfg.Threshold <= 0 {
		cfg.Threshold = 0.7
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 8
	}
	if cfg.WorkspaceRoot == "" {
		cfg.WorkspaceRoot = "."
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{records: records, validators: validators, cfg: cfg, logger: logger}
}

func (e *Engine) weight(name string) float64 {
	if w, ok := e.cfg.Weights[name]; ok && w > 0 {
		return w
	}
	return 1.0
}

// Assess fetches the record and scores it with every validator. The
// overall score is the weighted mean of the validator scores.
func (e *Engine) Assess(ctx context.Context, id string) (*types.QualityReport, error) {
	rec, err := e.records.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return e.assessRecord(ctx, rec)
}

func (e *Engine) assessRecord(ctx context.Context, rec *types.Record) (*types.QualityReport, error) {
	report := &types.QualityReport{
		RecordID:        rec.ID,
		ValidatorScores: make(map[string]float64, len(e.validators)),
	}

	var weighted, totalWeight float64
	for _, v := range e.validators {
		score, suggestions, err := v.Validate(ctx, rec)
		if err != nil {
			return nil, fmt.Errorf("validator %s failed on %s: %w", v.Name(), rec.ID, err)
		}
		report.ValidatorScores[v.Name()] = score
		report.Suggestions = append(report.Suggestions, suggestions...)
		w := e.weight(v.Name())
		weighted += w * score
		totalWeight += w
	}
	if totalWeight > 0 {
		report.OverallScore = weighted / totalWeight
	}
	report.BelowThreshold = report.OverallScore < e.cfg.Threshold
	return report, nil
}

// AssessBatch scores the given records concurrently. A failure on one
// record is recorded in the report and does not abort the rest.
func (e *Engine) AssessBatch(ctx context.Context, ids []string) (*types.BatchQualityReport, error) {
	tasks := make([]func() (*types.QualityReport, error), len(ids))
	for i, id := range ids {
		id := id
		tasks[i] = func() (*types.QualityReport, error) {
			return e.Assess(ctx, id)
		}
	}
	reports, errs := utils.ExecuteWithResults(ctx, e.cfg.MaxConcurrency, tasks...)

	batch := &types.BatchQualityReport{}
	for i := range ids {
		if errs[i] != nil {
			if batch.Failures == nil {
				batch.Failures = make(map[string]string)
			}
			batch.Failures[ids[i]] = errs[i].Error()
			continue
		}
		batch.Reports = append(batch.Reports, reports[i])
		batch.Assessed++
		if reports[i].BelowThreshold {
			batch.BelowThreshold++
		}
	}
	sort.Slice(batch.Reports, func(i, j int) bool {
		return batch.Reports[i].OverallScore < batch.Reports[j].OverallScore
	})

	e.logger.Info("batch quality assessment complete",
		"assessed", batch.Assessed,
		"below_threshold", batch.BelowThreshold,
		"failures", len(batch.Failures))
	return batch, nil
}

// AssessByType scores every live record of the given type, worst first.
func (e *Engine) AssessByType(ctx context.Context, recType string) (*types.BatchQualityReport, error) {
	recs, err := e.records.List(ctx, &store.ListFilter{Types: []string{recType}})
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(recs))
	for i, rec := range recs {
		ids[i] = rec.ID
	}
	return e.AssessBatch(ctx, ids)
}
