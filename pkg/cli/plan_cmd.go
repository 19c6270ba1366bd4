package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"cubesql/internal/app"
	"cubesql/internal/declarative"
)

func newPlanCmd(rt *runtime) *cobra.Command {
	var noColor bool

	cmd := &cobra.Command{
		Use:   "plan DIR",
		Short: "Show changes required to store a model directory",
		Long:  "Loads a model directory, compares it with the stored model and prints the plan. Exits with status 2 when there are changes.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			desired, err := declarative.LoadDirectory(args[0])
			if err != nil {
				return fmt.Errorf("load model: %w", err)
			}
			if verrs := declarative.Validate(desired); len(verrs) > 0 {
				fmt.Fprintf(cmd.ErrOrStderr(), "Model has %d validation error(s):\n", len(verrs))
				for _, ve := range verrs {
					fmt.Fprintf(cmd.ErrOrStderr(), "  - %s\n", ve.Error())
				}
				return &exitError{code: 1}
			}

			a, err := app.New(cmd.Context(), app.Deps{Cfg: rt.cfg, Logger: rt.logger})
			if err != nil {
				return err
			}
			defer a.Close() //nolint:errcheck

			plan, err := declarative.PlanBundle(cmd.Context(), a.Service, desired)
			if err != nil {
				return fmt.Errorf("plan: %w", err)
			}

			out := cmd.OutOrStdout()
			if getOutputFormat(cmd) == "json" {
				if err := declarative.FormatJSON(out, plan); err != nil {
					return fmt.Errorf("format plan: %w", err)
				}
			} else {
				declarative.FormatText(out, plan, noColor || !colorEnabled(out))
			}
			if plan.HasChanges() {
				return &exitError{code: 2}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	return cmd
}

func newApplyCmd(rt *runtime) *cobra.Command {
	var principal string

	cmd := &cobra.Command{
		Use:   "apply DIR...",
		Short: "Validate model directories and store them",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.New(cmd.Context(), app.Deps{Cfg: rt.cfg, Logger: rt.logger})
			if err != nil {
				return err
			}
			defer a.Close() //nolint:errcheck

			results, err := a.ImportModels(cmd.Context(), principal, args)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if getOutputFormat(cmd) == "json" {
				type applied struct {
					Dir     string                  `json:"dir"`
					Model   string                  `json:"model"`
					Created bool                    `json:"created"`
					Summary declarative.PlanSummary `json:"summary"`
				}
				rows := make([]applied, len(results))
				for i, r := range results {
					rows[i] = applied{
						Dir:     r.Dir,
						Model:   r.Plan.Model,
						Created: !r.Plan.Exists,
						Summary: r.Plan.Summary(),
					}
				}
				return printJSON(out, rows)
			}

			rows := make([][]string, len(results))
			for i, r := range results {
				s := r.Plan.Summary()
				status := "unchanged"
				switch {
				case !r.Plan.Exists:
					status = "created"
				case r.Plan.HasChanges():
					status = "updated"
				}
				rows[i] = []string{
					r.Plan.Model, status,
					fmt.Sprint(s.Creates), fmt.Sprint(s.Updates), fmt.Sprint(s.Deletes),
					r.Dir,
				}
			}
			printTable(out, []string{"model", "status", "creates", "updates", "deletes", "dir"}, rows)
			return nil
		},
	}

	cmd.Flags().StringVar(&principal, "principal", "cli", "Recorded as the creator of new models")
	return cmd
}
