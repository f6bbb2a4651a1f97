package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"scholarforge/cmd/scholarforge/ui"
	"scholarforge/internal/flows"
	"scholarforge/internal/schema"
)

var planReq flows.PlanRequest

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Coordinate and plan a practice session",
	Long: `Plans one session for a subject. If diagnostics are stored for the
subject, a coordination object is produced first (by the extractor, or by
rule when the extractor fails) and persisted; the deterministic planner then
picks the questions.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if planReq.QuestionCount == 0 {
			planReq.QuestionCount = cfg.Session.ItemCount
		}
		return withApp(func(ctx context.Context, a *app) error {
			out, err := a.flows.PlanSession(ctx, planReq)
			if err != nil {
				return err
			}
			return emit(cmd, out, func() string { return planView(out.PlanID, out.Plan, out.CoordinationSource) })
		})
	},
}

func planView(id string, plan schema.SessionPlan, source string) string {
	pairs := [][2]string{}
	if id != "" {
		pairs = append(pairs, [2]string{"plan", id})
	}
	pairs = append(pairs,
		[2]string{"subject", plan.SubjectID},
		[2]string{"level", strconv.Itoa(plan.Level)},
		[2]string{"target", fmt.Sprintf("%.1f", plan.TargetDifficulty)},
		[2]string{"mix", fmt.Sprintf("%.2f / %.2f / %.2f", plan.SessionMix.Reinforce, plan.SessionMix.Target, plan.SessionMix.Stretch)},
		[2]string{"questions", fmt.Sprintf("%d of %d", len(plan.QuestionIDs), plan.Requested)},
		[2]string{"inventory", styles.Status(plan.InventorySufficient, "sufficient", fmt.Sprintf("short by %d", plan.Shortfall))},
	)
	if source != "" {
		pairs = append(pairs, [2]string{"coordination", source})
	}
	view := ui.Fields(styles, "Session plan", pairs...)
	for i, q := range plan.QuestionIDs {
		view += styles.Muted.Render(fmt.Sprintf("%3d. ", i+1)) + q + "\n"
	}
	return view
}

var hintReq flows.HintRequest

var hintCmd = &cobra.Command{
	Use:   "hint",
	Short: "Get a scaffolded hint that never reveals the answer",
	RunE: func(cmd *cobra.Command, args []string) error {
		if hintReq.ItemID == "" && hintReq.Stem == "" {
			return fmt.Errorf("either --item or --stem is required")
		}
		return withApp(func(ctx context.Context, a *app) error {
			out, err := a.flows.Hint(ctx, hintReq)
			if err != nil {
				return err
			}
			return emit(cmd, out, func() string {
				return ui.Fields(styles, "Hint",
					[2]string{"hint", out.Hint},
					[2]string{"level", strconv.Itoa(out.ScaffoldLevel)},
					[2]string{"strategy", out.Strategy},
					[2]string{"source", styles.Status(!out.Fallback, "tutor", "static fallback")},
				)
			})
		})
	},
}

var evalReq flows.EvaluateRequest

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Evaluate a response and interpret the learner's confidence",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app) error {
			out, err := a.flows.Evaluate(ctx, evalReq)
			if err != nil {
				return err
			}
			return emit(cmd, out, func() string {
				return ui.Fields(styles, "Evaluation",
					[2]string{"correct", strconv.FormatBool(out.Evaluation.IsCorrect)},
					[2]string{"score", fmt.Sprintf("%.2f", out.Evaluation.Score)},
					[2]string{"feedback", out.Evaluation.Feedback},
					[2]string{"pattern", out.Evaluation.ErrorPattern},
					[2]string{"calibration", out.Calibration.CalibrationStatus},
					[2]string{"evaluator", styles.Status(!out.EvaluationFallback, "model", "fallback")},
					[2]string{"interpreter", styles.Status(!out.CalibrationFallback, "model", "fallback")},
				)
			})
		})
	},
}

var (
	diagReq        flows.DiagnoseRequest
	diagCorrect    []bool
	diagErrorsPath string
)

var diagnoseCmd = &cobra.Command{
	Use:   "diagnose",
	Short: "Estimate mastery and trend for a subject and skill",
	Long: `Runs mastery estimation and trend monitoring concurrently (plus
misconception diagnosis when --errors is given) and stores the merged
diagnostics for later session planning.

Example:
  scholarforge diagnose --subject s-1 --skill add --prior 0.5 \
    --correct true,false,true --scores 0.5,0.6,0.7`,
	RunE: func(cmd *cobra.Command, args []string) error {
		req := diagReq
		for _, ok := range diagCorrect {
			req.Attempts = append(req.Attempts, schema.AttemptSummary{Correct: ok})
		}
		if diagErrorsPath != "" {
			raw, err := os.ReadFile(diagErrorsPath)
			if err != nil {
				return fmt.Errorf("failed to read errors file: %w", err)
			}
			if err := decodeStrict(raw, &req.Errors); err != nil {
				return err
			}
		}
		return withApp(func(ctx context.Context, a *app) error {
			out, err := a.flows.Diagnose(ctx, req)
			if err != nil {
				return err
			}
			return emit(cmd, out, func() string {
				fallbacks := make([]string, 0, len(out.Fallbacks))
				for _, id := range out.Fallbacks {
					fallbacks = append(fallbacks, string(id))
				}
				pairs := [][2]string{
					{"mastery", fmt.Sprintf("%.2f (%s)", out.Mastery.Mastery, out.Mastery.Level)},
					{"trend", out.Trend.Trend},
					{"plateau", strconv.FormatBool(out.Trend.PlateauFlag)},
					{"fatigue", out.Trend.FatigueRisk},
				}
				if out.Misconceptions != nil {
					pairs = append(pairs, [2]string{"misconceptions", strconv.Itoa(len(out.Misconceptions.Misconceptions))})
				}
				if len(fallbacks) > 0 {
					pairs = append(pairs, [2]string{"fallbacks", styles.Warning.Render(strings.Join(fallbacks, ", "))})
				}
				return ui.Fields(styles, "Diagnosis", pairs...)
			})
		})
	},
}

func prettyJSON(v any) string {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(raw)
}

func init() {
	planCmd.Flags().StringVar(&planReq.SubjectID, "subject", "", "Subject id (required)")
	planCmd.Flags().IntVar(&planReq.Level, "level", 1, "Subject level")
	planCmd.Flags().StringVar(&planReq.Domain, "domain", "", "Domain filter when no skills are given")
	planCmd.Flags().StringSliceVar(&planReq.SkillIDs, "skills", nil, "Skill ids to draw from")
	planCmd.Flags().IntVar(&planReq.QuestionCount, "count", 0, "Questions (default: session.item_count)")
	planCmd.Flags().IntVar(&planReq.BaseDifficulty, "difficulty", 3, "Base difficulty (1-5)")
	planCmd.Flags().StringSliceVar(&planReq.ExcludeIDs, "exclude", nil, "Item ids to leave out")
	_ = planCmd.MarkFlagRequired("subject")

	hintCmd.Flags().StringVar(&hintReq.ItemID, "item", "", "Stored item id")
	hintCmd.Flags().StringVar(&hintReq.Stem, "stem", "", "Question text when no item is given")
	hintCmd.Flags().StringVar(&hintReq.ReferenceAnswer, "answer", "", "Reference answer when no item is given")
	hintCmd.Flags().StringVar(&hintReq.SkillName, "skill-name", "", "Skill name")
	hintCmd.Flags().StringVar(&hintReq.StudentAttempt, "attempt", "", "The learner's attempt so far")
	hintCmd.Flags().IntVar(&hintReq.ScaffoldLevel, "level", 1, "Scaffold level (1-4)")

	evaluateCmd.Flags().StringVar(&evalReq.ItemID, "item", "", "Stored item id (required)")
	evaluateCmd.Flags().IntVar(&evalReq.SelectedIndex, "selected", -1, "Selected option index, -1 for free text")
	evaluateCmd.Flags().StringVar(&evalReq.ResponseText, "text", "", "Free-text response")
	evaluateCmd.Flags().IntVar(&evalReq.Confidence, "confidence", 0, "Self-rated confidence 1-5, 0 if not asked")
	evaluateCmd.Flags().IntVar(&evalReq.ResponseTimeMs, "time-ms", 0, "Response time in milliseconds")
	_ = evaluateCmd.MarkFlagRequired("item")

	diagnoseCmd.Flags().StringVar(&diagReq.SubjectID, "subject", "", "Subject id (required)")
	diagnoseCmd.Flags().StringVar(&diagReq.SkillID, "skill", "", "Skill id (required)")
	diagnoseCmd.Flags().Float64Var(&diagReq.PriorMastery, "prior", 0.5, "Prior mastery estimate")
	diagnoseCmd.Flags().BoolSliceVar(&diagCorrect, "correct", nil, "Correctness of recent attempts, oldest first")
	diagnoseCmd.Flags().Float64SliceVar(&diagReq.Scores, "scores", nil, "Session accuracies, oldest first")
	diagnoseCmd.Flags().StringVar(&diagReq.CalibrationStatus, "calibration", "", "Latest calibration status")
	diagnoseCmd.Flags().StringVar(&diagErrorsPath, "errors", "", "JSON file of error samples")
	_ = diagnoseCmd.MarkFlagRequired("subject")
	_ = diagnoseCmd.MarkFlagRequired("skill")
}
