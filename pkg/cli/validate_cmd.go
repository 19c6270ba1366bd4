package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"cubesql/internal/declarative"
)

func newValidateCmd() *cobra.Command {
	var allowUnknownFields bool

	cmd := &cobra.Command{
		Use:   "validate DIR...",
		Short: "Validate model directories offline",
		Long:  "Reads model YAML files and checks that every cube, dimension, indicator and entity set compiles.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			type result struct {
				Dir    string   `json:"dir"`
				Model  string   `json:"model,omitempty"`
				Valid  bool     `json:"valid"`
				Errors []string `json:"errors,omitempty"`
			}
			results := make([]result, 0, len(args))
			failed := false

			for _, dir := range args {
				r := result{Dir: dir}
				b, err := declarative.LoadDirectoryWithOptions(dir, declarative.LoadOptions{
					AllowUnknownFields: allowUnknownFields,
				})
				if err != nil {
					r.Errors = []string{err.Error()}
				} else {
					r.Model = b.Name
					for _, ve := range declarative.Validate(b) {
						r.Errors = append(r.Errors, ve.Error())
					}
				}
				r.Valid = len(r.Errors) == 0
				failed = failed || !r.Valid
				results = append(results, r)
			}

			if getOutputFormat(cmd) == "json" {
				if err := printJSON(out, results); err != nil {
					return err
				}
			} else {
				for _, r := range results {
					if r.Valid {
						fmt.Fprintf(out, "%s: model %q is valid.\n", r.Dir, r.Model)
						continue
					}
					fmt.Fprintf(cmd.ErrOrStderr(), "%s has %d validation error(s):\n", r.Dir, len(r.Errors))
					for _, e := range r.Errors {
						fmt.Fprintf(cmd.ErrOrStderr(), "  - %s\n", e)
					}
				}
			}
			if failed {
				return &exitError{code: 1}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&allowUnknownFields, "allow-unknown-fields", false, "Allow unknown YAML fields in model files")
	return cmd
}
