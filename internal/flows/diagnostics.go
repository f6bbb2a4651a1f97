package flows

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"scholarforge/internal/logging"
	"scholarforge/internal/runner"
	"scholarforge/internal/schema"
	"scholarforge/internal/store"
	"scholarforge/internal/types"
)

// DiagnoseRequest carries the evidence for one subject and skill.
type DiagnoseRequest struct {
	SubjectID    string
	SkillID      string
	PriorMastery float64
	Attempts     []schema.AttemptSummary
	Scores       []float64
	// Errors, when present, add a misconception diagnosis.
	Errors []schema.ErrorSample
	// CalibrationStatus is carried into the stored diagnostics when set.
	CalibrationStatus string
}

// DiagnosisOutcome is the joined diagnostic result.
type DiagnosisOutcome struct {
	Mastery        schema.MasteryEstimatorOutput        `json:"mastery"`
	Trend          schema.TrendMonitorOutput            `json:"trend"`
	Misconceptions *schema.MisconceptionDiagnoserOutput `json:"misconceptions,omitempty"`
	Diagnostics    schema.PriorDiagnostics              `json:"diagnostics"`
	Fallbacks      []types.ModuleID                     `json:"fallbacks,omitempty"`
}

// Diagnose runs mastery estimation and trend monitoring (plus misconception
// diagnosis when error samples are supplied) concurrently, joins on all of
// them, and stores the combined state for later session planning.
func (s *Service) Diagnose(ctx context.Context, req DiagnoseRequest) (DiagnosisOutcome, error) {
	ctx = flowContext(ctx, "diagnose")
	timer := logging.StartTimer(logging.CategoryFlows, "Diagnose")
	defer timer.Stop()

	masteryIn := schema.MasteryEstimatorInput{
		SubjectID: req.SubjectID, SkillID: req.SkillID, PriorMastery: req.PriorMastery, Attempts: req.Attempts,
	}
	trendIn := schema.TrendMonitorInput{SubjectID: req.SubjectID, SkillID: req.SkillID, Scores: req.Scores}

	var (
		out                           DiagnosisOutcome
		masteryOK, trendOK, diagnosed bool
		misconceptions                schema.MisconceptionDiagnoserOutput
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		res, ok, err := s.run(gctx, runner.RunRequest{Module: types.ModuleMasteryEstimator, Input: masteryIn, Audience: types.AudienceSystem})
		if err != nil {
			return err
		}
		out.Mastery, masteryOK = res.Output.(schema.MasteryEstimatorOutput)
		masteryOK = masteryOK && ok
		return nil
	})
	g.Go(func() error {
		res, ok, err := s.run(gctx, runner.RunRequest{Module: types.ModuleTrendMonitor, Input: trendIn, Audience: types.AudienceSystem})
		if err != nil {
			return err
		}
		out.Trend, trendOK = res.Output.(schema.TrendMonitorOutput)
		trendOK = trendOK && ok
		return nil
	})
	if len(req.Errors) > 0 {
		g.Go(func() error {
			in := schema.MisconceptionDiagnoserInput{SkillID: req.SkillID, Errors: req.Errors}
			res, ok, err := s.run(gctx, runner.RunRequest{Module: types.ModuleMisconceptionDiagnoser, Input: in, Audience: types.AudienceSystem})
			if err != nil {
				return err
			}
			misconceptions, diagnosed = res.Output.(schema.MisconceptionDiagnoserOutput)
			diagnosed = diagnosed && ok
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return DiagnosisOutcome{}, err
	}

	if !masteryOK {
		out.Mastery = fallbackMastery(masteryIn)
		out.Fallbacks = append(out.Fallbacks, types.ModuleMasteryEstimator)
	}
	if !trendOK {
		out.Trend = fallbackTrend(trendIn)
		out.Fallbacks = append(out.Fallbacks, types.ModuleTrendMonitor)
	}
	if len(req.Errors) > 0 {
		if !diagnosed {
			misconceptions = schema.MisconceptionDiagnoserOutput{Misconceptions: []schema.Misconception{}}
			out.Fallbacks = append(out.Fallbacks, types.ModuleMisconceptionDiagnoser)
		}
		out.Misconceptions = &misconceptions
	}

	diag, err := s.mergeDiagnostics(ctx, req, out)
	if err != nil {
		return out, err
	}
	out.Diagnostics = diag
	logging.Flows("Diagnosis for %s/%s: mastery=%.2f trend=%s fallbacks=%d",
		req.SubjectID, req.SkillID, out.Mastery.Mastery, out.Trend.Trend, len(out.Fallbacks))
	return out, nil
}

// mergeDiagnostics folds this diagnosis into the subject's stored state.
func (s *Service) mergeDiagnostics(ctx context.Context, req DiagnoseRequest, out DiagnosisOutcome) (schema.PriorDiagnostics, error) {
	d := schema.PriorDiagnostics{CalibrationStatus: schema.CalibrationUnknown}
	prev, err := s.store.LatestDiagnostics(ctx, req.SubjectID)
	switch {
	case err == nil:
		d = prev.Diagnostics
	case !errors.Is(err, store.ErrNotFound):
		return d, fmt.Errorf("diagnose: load diagnostics: %w", err)
	}

	d.Trend = out.Trend.Trend
	d.PlateauFlag = out.Trend.PlateauFlag
	d.FatigueRisk = out.Trend.FatigueRisk
	if req.CalibrationStatus != "" {
		d.CalibrationStatus = req.CalibrationStatus
	}
	if n := len(req.Scores); n > 0 {
		d.RecentAccuracy = req.Scores[n-1]
	}

	merged := false
	for i := range d.Skills {
		if d.Skills[i].SkillID == req.SkillID {
			d.Skills[i].Mastery = out.Mastery.Mastery
			merged = true
		}
	}
	if !merged {
		d.Skills = append(d.Skills, schema.SkillMastery{SkillID: req.SkillID, Mastery: out.Mastery.Mastery})
	}

	if err := s.store.SaveDiagnostics(ctx, req.SubjectID, d); err != nil {
		return d, fmt.Errorf("diagnose: %w", err)
	}
	return d, nil
}
