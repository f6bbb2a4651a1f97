package flows

import (
	"context"

	"scholarforge/internal/runner"
	"scholarforge/internal/schema"
	"scholarforge/internal/types"
)

// CohortOutcome is a cohort analysis, model-written or rules-based.
type CohortOutcome struct {
	Analysis schema.CohortAnalystOutput `json:"analysis"`
	Fallback bool                       `json:"fallback"`
}

// CohortInsights analyses an anonymous cohort aggregate.
func (s *Service) CohortInsights(ctx context.Context, in schema.CohortAnalystInput) (CohortOutcome, error) {
	ctx = flowContext(ctx, "cohort")
	res, ok, err := s.run(ctx, runner.RunRequest{Module: types.ModuleCohortAnalyst, Input: in, Audience: types.AudienceSystem})
	if err != nil {
		return CohortOutcome{}, err
	}
	if out, isOut := res.Output.(schema.CohortAnalystOutput); ok && isOut {
		return CohortOutcome{Analysis: out}, nil
	}
	return CohortOutcome{Analysis: fallbackCohort(in), Fallback: true}, nil
}

// ProgressOutcome is a progress summary for a parent.
type ProgressOutcome struct {
	Progress schema.ProgressTrackerOutput `json:"progress"`
	Fallback bool                         `json:"fallback"`
}

// ProgressSummary summarises a subject's period for a parent.
func (s *Service) ProgressSummary(ctx context.Context, in schema.ProgressTrackerInput) (ProgressOutcome, error) {
	ctx = flowContext(ctx, "progress")
	res, ok, err := s.run(ctx, runner.RunRequest{Module: types.ModuleProgressTracker, Input: in, Audience: types.AudienceParent})
	if err != nil {
		return ProgressOutcome{}, err
	}
	if out, isOut := res.Output.(schema.ProgressTrackerOutput); ok && isOut {
		return ProgressOutcome{Progress: out}, nil
	}
	return ProgressOutcome{Progress: fallbackProgress(in), Fallback: true}, nil
}

// ParentReportOutcome is a parent-facing report.
type ParentReportOutcome struct {
	Report   schema.ParentReporterOutput `json:"report"`
	Fallback bool                        `json:"fallback"`
}

// ParentReport writes a parent report.
func (s *Service) ParentReport(ctx context.Context, in schema.ParentReporterInput) (ParentReportOutcome, error) {
	ctx = flowContext(ctx, "parent_report")
	res, ok, err := s.run(ctx, runner.RunRequest{Module: types.ModuleParentReporter, Input: in, Audience: types.AudienceParent})
	if err != nil {
		return ParentReportOutcome{}, err
	}
	if out, isOut := res.Output.(schema.ParentReporterOutput); ok && isOut {
		return ParentReportOutcome{Report: out}, nil
	}
	return ParentReportOutcome{Report: fallbackParentReport(in), Fallback: true}, nil
}
