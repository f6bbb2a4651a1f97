package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"scholarforge/cmd/scholarforge/ui"
	"scholarforge/internal/flows"
	"scholarforge/internal/store"
)

var skillsCmd = &cobra.Command{
	Use:   "skills",
	Short: "Manage the skill catalogue",
}

var skillFlags store.Skill

var skillsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add or update one skill",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(ctx context.Context, st *store.SQLiteStore) error {
			if err := st.UpsertSkill(ctx, skillFlags); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s skill %s\n", styles.Success.Render("saved"), skillFlags.ID)
			return nil
		})
	},
}

var skillsImportCmd = &cobra.Command{
	Use:   "import [file.yaml]",
	Short: "Import skills from a YAML list",
	Long: `Imports a YAML file of the form:

  skills:
    - id: add-within-20
      name: Addition within 20
      domain: number
      level: 2
      description: Adding two numbers with a total up to 20.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read skills file: %w", err)
		}
		list, err := parseSkills(raw)
		if err != nil {
			return err
		}
		return withStore(func(ctx context.Context, st *store.SQLiteStore) error {
			for _, sk := range list {
				if err := st.UpsertSkill(ctx, sk); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %d skill(s)\n", styles.Success.Render("imported"), len(list))
			return nil
		})
	},
}

var skillsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the skill catalogue",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(ctx context.Context, st *store.SQLiteStore) error {
			list, err := st.LoadSkills(ctx)
			if err != nil {
				return err
			}
			return emit(cmd, list, func() string {
				t := ui.NewTable("Skills", "ID", "Name", "Domain", "Level")
				for _, sk := range list {
					t.AddRow(sk.ID, sk.Name, sk.Domain, strconv.Itoa(sk.Level))
				}
				return t.View(styles)
			})
		})
	},
}

// parseSkills reads a skills YAML document.
func parseSkills(raw []byte) ([]store.Skill, error) {
	var doc struct {
		Skills []store.Skill `yaml:"skills"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse skills: %w", err)
	}
	for i, sk := range doc.Skills {
		if sk.ID == "" || sk.Name == "" {
			return nil, fmt.Errorf("skill %d: id and name are required", i)
		}
	}
	return doc.Skills, nil
}

var genRequest flows.GenerateRequest

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate, gate and store a batch of items for a skill",
	RunE: func(cmd *cobra.Command, args []string) error {
		if genRequest.Count == 0 {
			genRequest.Count = cfg.Session.GenerationSize
		}
		return withApp(func(ctx context.Context, a *app) error {
			report, err := a.flows.GenerateItems(ctx, genRequest)
			if err != nil {
				return err
			}
			return emit(cmd, report, func() string {
				pairs := [][2]string{
					{"run", report.RunID},
					{"status", styles.Status(!report.RunFailed, "completed", "generator failed")},
					{"candidates", fmt.Sprintf("%d of %d requested", report.Candidates, report.Requested)},
					{"approved", strconv.Itoa(report.Approved)},
					{"rejected", strconv.Itoa(report.Rejected)},
				}
				for _, r := range report.Rejections {
					pairs = append(pairs, [2]string{fmt.Sprintf("item %d", r.Index), "rejected at " + r.Stage})
				}
				for _, id := range report.ItemIDs {
					pairs = append(pairs, [2]string{"stored", id})
				}
				return ui.Fields(styles, "Item generation", pairs...)
			})
		})
	},
}

var approveCmd = &cobra.Command{
	Use:   "approve [item-id...]",
	Short: "Mark draft items as approved",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setStatus(cmd, args, "approved", (*store.SQLiteStore).MarkApproved)
	},
}

var publishCmd = &cobra.Command{
	Use:   "publish [item-id...]",
	Short: "Publish approved items as live",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setStatus(cmd, args, "published", (*store.SQLiteStore).Publish)
	},
}

func setStatus(cmd *cobra.Command, ids []string, verb string, apply func(*store.SQLiteStore, context.Context, []string) (int, error)) error {
	return withStore(func(ctx context.Context, st *store.SQLiteStore) error {
		n, err := apply(st, ctx, ids)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %d item(s)\n", styles.Success.Render(verb), n)
		return nil
	})
}

func init() {
	skillsAddCmd.Flags().StringVar(&skillFlags.ID, "id", "", "Skill id (required)")
	skillsAddCmd.Flags().StringVar(&skillFlags.Name, "name", "", "Display name (required)")
	skillsAddCmd.Flags().StringVar(&skillFlags.Domain, "domain", "", "Domain")
	skillsAddCmd.Flags().IntVar(&skillFlags.Level, "level", 1, "Level")
	skillsAddCmd.Flags().StringVar(&skillFlags.Description, "description", "", "Description shown to the generator")
	_ = skillsAddCmd.MarkFlagRequired("id")
	_ = skillsAddCmd.MarkFlagRequired("name")
	skillsCmd.AddCommand(skillsAddCmd, skillsImportCmd, skillsListCmd)

	generateCmd.Flags().StringVar(&genRequest.SkillID, "skill", "", "Skill id (required)")
	generateCmd.Flags().IntVar(&genRequest.Difficulty, "difficulty", 3, "Target difficulty (1-5)")
	generateCmd.Flags().IntVar(&genRequest.Count, "count", 0, "Number of items (default: session.generation_size)")
	_ = generateCmd.MarkFlagRequired("skill")
}
