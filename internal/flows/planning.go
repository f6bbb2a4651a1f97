package flows

import (
	"context"
	"errors"
	"fmt"
	"time"

	"scholarforge/internal/logging"
	"scholarforge/internal/orchestrator"
	"scholarforge/internal/runner"
	"scholarforge/internal/schema"
	"scholarforge/internal/store"
	"scholarforge/internal/types"
)

// Coordination sources reported on a PlanOutcome.
const (
	CoordinationNone      = "none"
	CoordinationExtractor = "extractor"
	CoordinationRules     = "rules"
)

// PlanRequest asks for a session plan.
type PlanRequest struct {
	SubjectID      string
	Level          int
	Domain         string
	SkillIDs       []string
	QuestionCount  int
	BaseDifficulty int
	ExcludeIDs     []string
}

// PlanOutcome is a persisted plan plus the coordination object behind it.
type PlanOutcome struct {
	PlanID             string                     `json:"planId"`
	Plan               schema.SessionPlan         `json:"plan"`
	Coordination       *schema.CoordinationObject `json:"coordination,omitempty"`
	CoordinationSource string                     `json:"coordinationSource"`
}

// PlanSession coordinates and plans one session. When prior diagnostics exist
// the coordination extractor runs first, falling back to rules-derived
// coordination if it fails. The deterministic planner always runs afterwards.
func (s *Service) PlanSession(ctx context.Context, req PlanRequest) (PlanOutcome, error) {
	ctx = flowContext(ctx, "plan")
	timer := logging.StartTimer(logging.CategoryFlows, "PlanSession")
	defer timer.Stop()

	out := PlanOutcome{CoordinationSource: CoordinationNone}
	prior, err := s.store.LatestDiagnostics(ctx, req.SubjectID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		logging.Get(logging.CategoryFlows).Debug("No prior diagnostics for %s; planning without coordination", req.SubjectID)
	case err != nil:
		return out, fmt.Errorf("plan: load diagnostics: %w", err)
	default:
		obj, runID, source, err := s.coordinate(ctx, req, prior.Diagnostics)
		if err != nil {
			return out, err
		}
		if err := s.store.SaveCoordination(ctx, runID, req.SubjectID, obj); err != nil {
			return out, fmt.Errorf("plan: %w", err)
		}
		out.Coordination = &obj
		out.CoordinationSource = source
		return s.finishPlan(ctx, req, out, runID)
	}
	return s.finishPlan(ctx, req, out, "")
}

func (s *Service) finishPlan(ctx context.Context, req PlanRequest, out PlanOutcome, runID string) (PlanOutcome, error) {
	in := schema.OrchestratorInput{
		SubjectID:         req.SubjectID,
		Level:             req.Level,
		Domain:            req.Domain,
		SkillIDs:          req.SkillIDs,
		QuestionCount:     req.QuestionCount,
		BaseDifficulty:    req.BaseDifficulty,
		ExcludeIDs:        req.ExcludeIDs,
		Coordination:      out.Coordination,
		CoordinationRunID: runID,
	}
	plan, err := orchestrator.Plan(ctx, in, s.store)
	if err != nil {
		return out, fmt.Errorf("plan: %w", err)
	}
	if v := s.runner.Contracts().Validate(types.ModuleOrchestrator, plan, in); !v.Pass {
		// The planner is deterministic; a failure here is a planner bug.
		logging.Get(logging.CategoryFlows).Error("Session plan for %s violates its contract: %v", req.SubjectID, v.Reasons)
	}
	id, err := s.store.SaveSessionPlan(ctx, plan)
	if err != nil {
		return out, fmt.Errorf("plan: %w", err)
	}
	out.PlanID = id
	out.Plan = plan
	logging.Flows("Session plan %s for %s: %d/%d question(s), coordination=%s",
		id, req.SubjectID, len(plan.QuestionIDs), plan.Requested, out.CoordinationSource)
	return out, nil
}

// coordinate runs the extractor, or derives coordination by rule when it fails.
func (s *Service) coordinate(ctx context.Context, req PlanRequest, d schema.PriorDiagnostics) (schema.CoordinationObject, string, string, error) {
	now := s.now().UTC()
	in := schema.CoordinationExtractorInput{
		SubjectID:   req.SubjectID,
		Level:       req.Level,
		SkillIDs:    req.SkillIDs,
		ValidFrom:   now.Format(time.RFC3339),
		ValidUntil:  now.Add(s.validFor).Format(time.RFC3339),
		Diagnostics: d,
	}
	res, ok, err := s.run(ctx, runner.RunRequest{Module: types.ModuleCoordinationExtractor, Input: in, Audience: types.AudienceSystem})
	if err != nil {
		return schema.CoordinationObject{}, "", "", err
	}
	if ok {
		if obj, isObj := res.Output.(schema.CoordinationObject); isObj {
			return obj, res.RunID, CoordinationExtractor, nil
		}
	}
	return orchestrator.DeriveCoordination(in), s.newID(), CoordinationRules, nil
}
