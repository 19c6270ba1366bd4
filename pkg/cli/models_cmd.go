package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"cubesql/internal/app"
	"cubesql/internal/domain"
)

type modelSummary struct {
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Dialect     string    `json:"dialect"`
	Catalog     string    `json:"catalog,omitempty"`
	Cubes       int       `json:"cubes"`
	Dimensions  int       `json:"dimensions"`
	Indicators  int       `json:"indicators"`
	CreatedBy   string    `json:"created_by,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func summarizeModel(m domain.SemanticModel) modelSummary {
	return modelSummary{
		Name:        m.Name,
		Description: m.Description,
		Dialect:     m.Dialect,
		Catalog:     m.Catalog,
		Cubes:       len(m.Schema.Cubes),
		Dimensions:  len(m.Schema.Dimensions),
		Indicators:  len(m.Schema.Indicators),
		CreatedBy:   m.CreatedBy,
		UpdatedAt:   m.UpdatedAt,
	}
}

func modelRow(s modelSummary) []string {
	return []string{
		s.Name, s.Dialect, s.Catalog,
		fmt.Sprint(s.Cubes), fmt.Sprint(s.Dimensions), fmt.Sprint(s.Indicators),
		s.Description,
	}
}

var modelColumns = []string{"name", "dialect", "catalog", "cubes", "dimensions", "indicators", "description"}

func newModelsCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models",
		Short: "Manage stored semantic models",
	}
	cmd.AddCommand(newModelsListCmd(rt), newModelsGetCmd(rt), newModelsDeleteCmd(rt))
	return cmd
}

func newModelsListCmd(rt *runtime) *cobra.Command {
	var (
		maxResults int
		pageToken  string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored semantic models",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := app.New(cmd.Context(), app.Deps{Cfg: rt.cfg, Logger: rt.logger})
			if err != nil {
				return err
			}
			defer a.Close() //nolint:errcheck

			page := domain.PageRequest{MaxResults: maxResults, PageToken: pageToken}
			models, total, err := a.Service.ListSemanticModels(cmd.Context(), page)
			if err != nil {
				return err
			}
			summaries := make([]modelSummary, len(models))
			for i, m := range models {
				summaries[i] = summarizeModel(m)
			}
			next := domain.NextPageToken(page.Offset(), page.Limit(), total)

			out := cmd.OutOrStdout()
			if getOutputFormat(cmd) == "json" {
				return printJSON(out, map[string]any{
					"data":            summaries,
					"next_page_token": next,
				})
			}
			rows := make([][]string, len(summaries))
			for i, s := range summaries {
				rows[i] = modelRow(s)
			}
			printTable(out, modelColumns, rows)
			if next != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "More results: --page-token %s\n", next)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&maxResults, "max-results", 0, "Page size")
	cmd.Flags().StringVar(&pageToken, "page-token", "", "Token of the page to fetch")
	return cmd
}

func newModelsGetCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "get NAME",
		Short: "Show a stored semantic model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.New(cmd.Context(), app.Deps{Cfg: rt.cfg, Logger: rt.logger})
			if err != nil {
				return err
			}
			defer a.Close() //nolint:errcheck

			m, err := a.Service.GetSemanticModel(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if getOutputFormat(cmd) == "json" {
				return printJSON(out, map[string]any{
					"model":  summarizeModel(*m),
					"schema": m.Schema,
				})
			}
			printTable(out, modelColumns, [][]string{modelRow(summarizeModel(*m))})
			return nil
		},
	}
}

func newModelsDeleteCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "delete NAME",
		Short: "Delete a stored semantic model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.New(cmd.Context(), app.Deps{Cfg: rt.cfg, Logger: rt.logger})
			if err != nil {
				return err
			}
			defer a.Close() //nolint:errcheck

			if err := a.Service.DeleteSemanticModel(cmd.Context(), args[0]); err != nil {
				return err
			}
			if getOutputFormat(cmd) == "json" {
				return printJSON(cmd.OutOrStdout(), map[string]string{"deleted": args[0]})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted model %q.\n", args[0])
			return nil
		},
	}
}
