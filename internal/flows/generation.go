package flows

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"scholarforge/internal/articulation"
	"scholarforge/internal/logging"
	"scholarforge/internal/runner"
	"scholarforge/internal/schema"
	"scholarforge/internal/store"
	"scholarforge/internal/types"
)

// GenerateRequest asks for a batch of items for one skill.
type GenerateRequest struct {
	SkillID    string
	Difficulty int
	Count      int
}

// Rejection records why one candidate item was dropped. Stage is one of
// "decode", "safety", "audit" or "contract".
type Rejection struct {
	Index int    `json:"index"`
	Stage string `json:"stage"`
}

// GenerationReport summarises one generation flow.
type GenerationReport struct {
	RunID      string      `json:"runId"`
	Requested  int         `json:"requested"`
	Candidates int         `json:"candidates"`
	Approved   int         `json:"approved"`
	Rejected   int         `json:"rejected"`
	ItemIDs    []string    `json:"itemIds"`
	Rejections []Rejection `json:"rejections,omitempty"`
	// RunFailed is set when the generator produced nothing usable.
	RunFailed bool `json:"runFailed"`
}

// GenerateItems runs the item generator once, gates every candidate on its
// own, and writes the survivors as agent-approved in one atomic step. Nothing
// is written unless at least one item passes every gate.
func (s *Service) GenerateItems(ctx context.Context, req GenerateRequest) (GenerationReport, error) {
	ctx = flowContext(ctx, "generate")
	timer := logging.StartTimer(logging.CategoryFlows, "GenerateItems")
	defer timer.Stop()

	report := GenerationReport{Requested: req.Count, ItemIDs: []string{}}
	if req.Count <= 0 {
		return report, fmt.Errorf("generate: count must be positive, got %d", req.Count)
	}
	skill, err := s.skills.Get(ctx, req.SkillID)
	if err != nil {
		return report, fmt.Errorf("generate: %w", err)
	}

	in := schema.ItemGeneratorInput{
		SkillID:     skill.ID,
		SkillName:   skill.Name,
		Domain:      skill.Domain,
		Level:       skill.Level,
		Difficulty:  req.Difficulty,
		Count:       req.Count,
		Description: skill.Description,
	}
	res, ok, err := s.run(ctx, runner.RunRequest{Module: types.ModuleItemGenerator, Input: in, Audience: types.AudienceChild})
	if err != nil {
		return report, err
	}
	report.RunID = res.RunID
	if !ok {
		report.RunFailed = true
		return report, nil
	}

	desc, _ := s.runner.Catalog().Lookup(types.ModuleItemGenerator)
	raw, _ := res.Fields[desc.ItemsField].([]any)
	report.Candidates = len(raw)

	var drafts []store.Draft
	for i, candidate := range raw {
		item, stage := s.gateItem(in, candidate)
		if stage != "" {
			report.Rejections = append(report.Rejections, Rejection{Index: i, Stage: stage})
			continue
		}
		drafts = append(drafts, store.Draft{
			Item: store.Item{
				SkillID:       in.SkillID,
				Domain:        in.Domain,
				Level:         in.Level,
				Difficulty:    item.Difficulty,
				Stem:          item.Stem,
				Options:       item.Options,
				Explanation:   item.Explanation,
				PromptVersion: res.PromptVersion,
				RunID:         res.RunID,
			},
			Answer: store.PrivateAnswer{CorrectIndex: item.CorrectIndex, CorrectOption: item.CorrectOption()},
		})
	}
	report.Rejected = len(report.Rejections)

	if len(drafts) > 0 {
		ids, err := s.store.WriteApprovedDrafts(ctx, drafts)
		if err != nil {
			return report, fmt.Errorf("generate: persist approved items: %w", err)
		}
		report.ItemIDs = ids
		report.Approved = len(ids)
	}
	logging.Flows("Generation %s for %s: %d approved, %d rejected of %d candidate(s)",
		res.RunID, in.SkillID, report.Approved, report.Rejected, report.Candidates)
	return report, nil
}

// gateItem runs one candidate through the safety, audit and contract checks in
// that order. It returns the decoded item and an empty stage when it passes.
func (s *Service) gateItem(in schema.ItemGeneratorInput, candidate any) (schema.GeneratedItem, string) {
	log := logging.Get(logging.CategoryFlows)
	fields, ok := candidate.(map[string]any)
	if !ok {
		return schema.GeneratedItem{}, "decode"
	}
	raw, err := json.Marshal(fields)
	if err != nil {
		return schema.GeneratedItem{}, "decode"
	}
	var item schema.GeneratedItem
	if err := json.Unmarshal(raw, &item); err != nil {
		return schema.GeneratedItem{}, "decode"
	}

	verdict := s.safety.Check(schema.SafetyGateInput{
		Text:       childVisibleText(item),
		Audience:   types.AudienceChild,
		FieldNames: articulation.FieldNames(fields),
	})
	if verdict.Decision == types.DecisionBlock {
		log.Debug("Item rejected by safety gate: %d rule(s) triggered", len(verdict.Reasons))
		return item, "safety"
	}
	desc, _ := s.runner.Catalog().Lookup(types.ModuleItemGenerator)
	if report := s.audit.AuditItem(desc, fields); !report.Passed() {
		log.Debug("Item rejected by audit: %d violation(s)", len(report.Violations))
		return item, "audit"
	}
	if v := s.runner.Contracts().ValidateItem(in, item); !v.Pass {
		log.Debug("Item rejected by contract: %s", strings.Join(v.Reasons, "; "))
		return item, "contract"
	}
	if verdict.Decision == types.DecisionEscalate {
		logging.FlowsWarn("Item for %s escalated by safety gate; accepted pending review", in.SkillID)
	}
	return item, ""
}

// childVisibleText is everything a learner will read for an item.
func childVisibleText(item schema.GeneratedItem) string {
	parts := append([]string{item.Stem}, item.Options...)
	parts = append(parts, item.Explanation)
	return strings.Join(parts, "\n")
}
