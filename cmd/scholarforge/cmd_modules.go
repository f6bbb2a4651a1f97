package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"scholarforge/cmd/scholarforge/ui"
	"scholarforge/internal/audit"
	"scholarforge/internal/catalog"
	"scholarforge/internal/orchestrator"
	"scholarforge/internal/runner"
	"scholarforge/internal/safety"
	"scholarforge/internal/schema"
	"scholarforge/internal/store"
	"scholarforge/internal/types"
)

var modulesCmd = &cobra.Command{
	Use:   "modules",
	Short: "List the module catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		cat := catalog.Default()
		type row struct {
			ID            types.ModuleID `json:"id"`
			Kind          types.Kind     `json:"kind"`
			Audience      types.Audience `json:"audience"`
			Tier          types.Tier     `json:"tier,omitempty"`
			PromptVersion string         `json:"promptVersion,omitempty"`
		}
		var rows []row
		for _, id := range cat.IDs() {
			d, _ := cat.Lookup(id)
			rows = append(rows, row{d.ID, d.Kind, d.Audience, d.Tier, d.PromptVersion})
		}
		return emit(cmd, rows, func() string {
			t := ui.NewTable("Module catalog", "ID", "Kind", "Audience", "Tier", "Prompt")
			for _, r := range rows {
				t.AddRow(string(r.ID), string(r.Kind), string(r.Audience), string(r.Tier), r.PromptVersion)
			}
			return t.View(styles)
		})
	},
}

var (
	runInputPath string
	runReference string
	runAudience  string
)

var runModuleCmd = &cobra.Command{
	Use:   "run-module [module]",
	Short: "Run one catalog module on a JSON input",
	Long: `Runs a single module through its full pipeline and prints the result.

Generative modules go through the provider and every gate. The deterministic
modules (orchestrator, safety_gate, audit_gate) run locally.

Example:
  scholarforge run-module tutor --input hint.json --reference "17"
  echo '{"text":"...","audience":"CHILD"}' | scholarforge run-module safety_gate --input -`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := types.ModuleID(args[0])
		raw, err := readInput(runInputPath, cmd.InOrStdin())
		if err != nil {
			return err
		}
		in, err := moduleInput(id, raw)
		if err != nil {
			return err
		}

		switch id {
		case types.ModuleSafetyGate:
			gateIn := in.(schema.SafetyGateInput)
			gateIn.ReferenceAnswer = runReference
			out := safety.DefaultGate().Check(gateIn)
			return emit(cmd, out, func() string { return safetyView(out) })
		case types.ModuleAuditGate:
			out := audit.NewGate(catalog.Default()).Check(in.(schema.AuditGateInput))
			return emit(cmd, out, func() string { return auditView(out) })
		case types.ModuleOrchestrator:
			return withStore(func(ctx context.Context, st *store.SQLiteStore) error {
				plan, err := orchestrator.Plan(ctx, in.(schema.OrchestratorInput), st)
				if err != nil {
					return err
				}
				return emit(cmd, plan, func() string { return planView("", plan, "") })
			})
		}

		return withApp(func(ctx context.Context, a *app) error {
			res, err := a.runner.Run(ctx, runner.RunRequest{
				Module:          id,
				Input:           in,
				Audience:        types.Audience(strings.ToUpper(runAudience)),
				ReferenceAnswer: runReference,
			})
			if err != nil {
				return err
			}
			journal(a.store)(ctx, res)
			return emit(cmd, res, func() string { return runView(res) })
		})
	},
}

func init() {
	runModuleCmd.Flags().StringVarP(&runInputPath, "input", "i", "", "Input JSON file, or - for stdin")
	runModuleCmd.Flags().StringVar(&runReference, "reference", "", "Reference answer held back for the reveal check")
	runModuleCmd.Flags().StringVar(&runAudience, "audience", "", "Audience override (CHILD, PARENT, SYSTEM)")
}

func runView(res runner.RunResult) string {
	pairs := [][2]string{
		{"run", res.RunID},
		{"module", string(res.Module)},
		{"prompt", res.PromptVersion},
		{"model", res.ModelVersion},
		{"status", styles.Status(res.Success, "passed", "failed")},
		{"safety", string(res.SafetyDecision)},
		{"latency", fmt.Sprintf("%dms", res.LatencyMs)},
		{"tokens", fmt.Sprintf("%d in / %d out", res.Usage.Prompt, res.Usage.Completion)},
	}
	for _, reason := range res.ValidationErrors {
		pairs = append(pairs, [2]string{"reason", reason})
	}
	view := ui.Fields(styles, "Module run", pairs...)
	if res.Success {
		view += "\n" + prettyJSON(res.Output) + "\n"
	}
	return view
}

func safetyView(out schema.SafetyGateOutput) string {
	pairs := [][2]string{{"decision", styles.Status(out.Decision == types.DecisionAllow, string(out.Decision), string(out.Decision))}}
	for _, r := range out.Reasons {
		pairs = append(pairs, [2]string{r.Code, r.Message})
	}
	return ui.Fields(styles, "Safety gate", pairs...)
}

func auditView(out schema.AuditGateOutput) string {
	pairs := [][2]string{
		{"schema", styles.Status(out.SchemaCompliance, "compliant", "violated")},
		{"purity", styles.Status(out.RolePurity, "pure", "violated")},
	}
	for _, v := range out.Violations {
		pairs = append(pairs, [2]string{v.Code, v.Message})
	}
	return ui.Fields(styles, "Audit gate", pairs...)
}
