package flows

import (
	"context"
	"fmt"

	"scholarforge/internal/logging"
	"scholarforge/internal/runner"
	"scholarforge/internal/schema"
	"scholarforge/internal/types"
)

// EvaluateRequest is a learner's answer to a stored item. SelectedIndex is -1
// for a free-text answer.
type EvaluateRequest struct {
	ItemID         string
	SelectedIndex  int
	ResponseText   string
	Confidence     int
	ResponseTimeMs int
}

// EvaluationOutcome is the evaluator's judgement plus the calibration reading
// derived from it.
type EvaluationOutcome struct {
	Evaluation          schema.ResponseEvaluatorOutput     `json:"evaluation"`
	Calibration         schema.ConfidenceInterpreterOutput `json:"calibration"`
	EvaluationFallback  bool                               `json:"evaluationFallback"`
	CalibrationFallback bool                               `json:"calibrationFallback"`
}

// Evaluate judges a response, then interprets the learner's confidence using
// the evaluator's correctness result. Either module failing yields defaults.
func (s *Service) Evaluate(ctx context.Context, req EvaluateRequest) (EvaluationOutcome, error) {
	ctx = flowContext(ctx, "evaluate")
	item, err := s.store.GetItem(ctx, req.ItemID)
	if err != nil {
		return EvaluationOutcome{}, fmt.Errorf("evaluate: %w", err)
	}
	answer, err := s.store.GetPrivateAnswer(ctx, req.ItemID)
	if err != nil {
		return EvaluationOutcome{}, fmt.Errorf("evaluate: %w", err)
	}

	evalIn := schema.ResponseEvaluatorInput{
		ItemID:        item.ID,
		SkillID:       item.SkillID,
		Stem:          item.Stem,
		Options:       item.Options,
		CorrectIndex:  answer.CorrectIndex,
		SelectedIndex: req.SelectedIndex,
		ResponseText:  req.ResponseText,
	}
	var out EvaluationOutcome
	res, ok, err := s.run(ctx, runner.RunRequest{Module: types.ModuleResponseEvaluator, Input: evalIn, Audience: types.AudienceChild})
	if err != nil {
		return out, err
	}
	if ev, isEval := res.Output.(schema.ResponseEvaluatorOutput); ok && isEval {
		out.Evaluation = ev
	} else {
		out.Evaluation = fallbackEvaluation(evalIn)
		out.EvaluationFallback = true
	}

	confIn := schema.ConfidenceInterpreterInput{
		SkillID:                item.SkillID,
		IsCorrect:              out.Evaluation.IsCorrect,
		SelfReportedConfidence: req.Confidence,
		ResponseTimeMs:         req.ResponseTimeMs,
	}
	res, ok, err = s.run(ctx, runner.RunRequest{Module: types.ModuleConfidenceInterpreter, Input: confIn, Audience: types.AudienceSystem})
	if err != nil {
		return out, err
	}
	if cal, isCal := res.Output.(schema.ConfidenceInterpreterOutput); ok && isCal {
		out.Calibration = cal
	} else {
		out.Calibration = fallbackCalibration(confIn)
		out.CalibrationFallback = true
	}
	return out, nil
}

// HintRequest asks for a hint. With ItemID set, the stem and reference answer
// come from the store; otherwise Stem and ReferenceAnswer are used as given.
type HintRequest struct {
	ItemID          string
	SkillName       string
	Stem            string
	StudentAttempt  string
	ScaffoldLevel   int
	ReferenceAnswer string
}

// HintOutcome is the hint shown to the learner.
type HintOutcome struct {
	Hint          string `json:"hint"`
	ScaffoldLevel int    `json:"scaffoldLevel"`
	Strategy      string `json:"strategy"`
	Fallback      bool   `json:"fallback"`
	RunID         string `json:"runId,omitempty"`
}

// Hint runs the tutor with the reference answer held back for local checks
// only. Any failure yields the static hint for the scaffold level.
func (s *Service) Hint(ctx context.Context, req HintRequest) (HintOutcome, error) {
	ctx = flowContext(ctx, "hint")
	level := clampScaffold(req.ScaffoldLevel)
	if req.ItemID != "" {
		item, err := s.store.GetItem(ctx, req.ItemID)
		if err != nil {
			return HintOutcome{}, fmt.Errorf("hint: %w", err)
		}
		answer, err := s.store.GetPrivateAnswer(ctx, req.ItemID)
		if err != nil {
			return HintOutcome{}, fmt.Errorf("hint: %w", err)
		}
		req.Stem = item.Stem
		req.ReferenceAnswer = answer.CorrectOption
		if req.SkillName == "" {
			if sk, err := s.skills.Get(ctx, item.SkillID); err == nil {
				req.SkillName = sk.Name
			}
		}
	}

	in := schema.TutorInput{
		SkillName:      req.SkillName,
		Stem:           req.Stem,
		StudentAttempt: req.StudentAttempt,
		ScaffoldLevel:  level,
	}
	res, ok, err := s.run(ctx, runner.RunRequest{
		Module:          types.ModuleTutor,
		Input:           in,
		Audience:        types.AudienceChild,
		ReferenceAnswer: req.ReferenceAnswer,
	})
	if err != nil {
		return HintOutcome{}, err
	}
	if out, isHint := res.Output.(schema.TutorOutput); ok && isHint {
		return HintOutcome{Hint: out.Hint, ScaffoldLevel: out.ScaffoldLevel, Strategy: out.Strategy, RunID: res.RunID}, nil
	}
	logging.Flows("Serving static hint at scaffold level %d", level)
	hint, strategy := staticHint(level, req.ReferenceAnswer)
	return HintOutcome{Hint: hint, ScaffoldLevel: level, Strategy: strategy, Fallback: true}, nil
}

func clampScaffold(level int) int {
	if level < schema.MinScaffoldLevel {
		return schema.MinScaffoldLevel
	}
	if level > schema.MaxScaffoldLevel {
		return schema.MaxScaffoldLevel
	}
	return level
}
