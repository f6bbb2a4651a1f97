package main

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"scholarforge/cmd/scholarforge/ui"
	"scholarforge/internal/schema"
	"scholarforge/internal/store"
	"scholarforge/internal/usage"
)

var reportInputPath string

var reportCmd = &cobra.Command{
	Use:       "report [progress|parent|cohort]",
	Short:     "Write a progress summary, parent report or cohort analysis",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"progress", "parent", "cohort"},
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := readInput(reportInputPath, cmd.InOrStdin())
		if err != nil {
			return err
		}
		return withApp(func(ctx context.Context, a *app) error {
			switch args[0] {
			case "progress":
				var in schema.ProgressTrackerInput
				if err := decodeStrict(raw, &in); err != nil {
					return err
				}
				out, err := a.flows.ProgressSummary(ctx, in)
				if err != nil {
					return err
				}
				return emit(cmd, out, func() string {
					return ui.Fields(styles, "Progress",
						[2]string{"summary", out.Progress.Summary},
						[2]string{"improved", strings.Join(out.Progress.SkillsImproved, ", ")},
						[2]string{"practice", strings.Join(out.Progress.SkillsNeedingPractice, ", ")},
						[2]string{"source", styles.Status(!out.Fallback, "model", "fallback")},
					)
				})
			case "parent":
				var in schema.ParentReporterInput
				if err := decodeStrict(raw, &in); err != nil {
					return err
				}
				out, err := a.flows.ParentReport(ctx, in)
				if err != nil {
					return err
				}
				return emit(cmd, out, func() string {
					pairs := [][2]string{{"headline", out.Report.Headline}, {"narrative", out.Report.Narrative}}
					for _, step := range out.Report.NextSteps {
						pairs = append(pairs, [2]string{"next", step})
					}
					pairs = append(pairs, [2]string{"source", styles.Status(!out.Fallback, "model", "fallback")})
					return ui.Fields(styles, "Parent report", pairs...)
				})
			case "cohort":
				var in schema.CohortAnalystInput
				if err := decodeStrict(raw, &in); err != nil {
					return err
				}
				out, err := a.flows.CohortInsights(ctx, in)
				if err != nil {
					return err
				}
				return emit(cmd, out, func() string {
					t := ui.NewTable("Cohort "+in.CohortID, "Skill", "Observation")
					for _, insight := range out.Analysis.Insights {
						t.AddRow(insight.SkillID, insight.Observation)
					}
					return t.View(styles) + ui.Fields(styles, "",
						[2]string{"focus", strings.Join(out.Analysis.FocusSkillIDs, ", ")},
						[2]string{"at risk", strconv.Itoa(out.Analysis.AtRiskCount)},
						[2]string{"source", styles.Status(!out.Fallback, "model", "fallback")},
					)
				})
			}
			return fmt.Errorf("unknown report %q (valid: progress, parent, cohort)", args[0])
		})
	},
}

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Show token usage by module, flow and model",
	RunE: func(cmd *cobra.Command, args []string) error {
		tracker, err := usage.NewTracker(cfg.Usage.Path)
		if err != nil {
			return err
		}
		stats := tracker.Stats()
		return emit(cmd, stats, func() string {
			view := ui.Fields(styles, "Token usage",
				[2]string{"calls", strconv.FormatInt(stats.Calls, 10)},
				[2]string{"retries", strconv.FormatInt(stats.Retries, 10)},
				[2]string{"tokens", fmt.Sprintf("%d in / %d out", stats.Total.Input, stats.Total.Output)},
			)
			view += "\n" + countsTable("By module", stats.ByModule)
			view += "\n" + countsTable("By flow", stats.ByFlow)
			view += "\n" + countsTable("By model", stats.ByModel)
			return view
		})
	},
}

func countsTable(title string, counts map[string]usage.TokenCounts) string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	t := ui.NewTable(title, "Name", "Input", "Output", "Total")
	for _, k := range keys {
		c := counts[k]
		t.AddRow(k, strconv.FormatInt(c.Input, 10), strconv.FormatInt(c.Output, 10), strconv.FormatInt(c.Total, 10))
	}
	return t.View(styles)
}

var runsLimit int

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Show the most recent module runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(ctx context.Context, st *store.SQLiteStore) error {
			runs, err := st.RecentRuns(ctx, runsLimit)
			if err != nil {
				return err
			}
			return emit(cmd, runs, func() string {
				t := ui.NewTable("Recent runs", "Run", "Module", "Status", "Safety", "Latency", "Tokens")
				for _, r := range runs {
					t.AddRow(r.RunID, r.Module, styles.Status(r.Success, "ok", "failed"), r.SafetyDecision,
						fmt.Sprintf("%dms", r.LatencyMs), strconv.Itoa(r.PromptTokens+r.CompletionTokens))
				}
				return t.View(styles)
			})
		})
	},
}

func init() {
	reportCmd.Flags().StringVarP(&reportInputPath, "input", "i", "", "Input JSON file, or - for stdin")
	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "Number of runs to show")
}
