package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"cubesql/internal/domain"
)

func newEntityCmd(rt *runtime) *cobra.Command {
	var mf modelFlags
	cmd := &cobra.Command{
		Use:   "entity NAME",
		Short: "Describe the dimensions and measures of an entity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context(), rt, mf)
			if err != nil {
				return err
			}
			defer s.close() //nolint:errcheck

			et, err := s.svc.EntityType(cmd.Context(), s.model, args[0])
			if err != nil {
				return err
			}
			return printEntityType(cmd, et)
		},
	}
	mf.register(cmd)
	return cmd
}

func printEntityType(cmd *cobra.Command, et *domain.EntityType) error {
	type measure struct {
		Name       string `json:"name"`
		Caption    string `json:"caption,omitempty"`
		Aggregator string `json:"aggregator,omitempty"`
		Calculated bool   `json:"calculated"`
	}
	type dimension struct {
		Name      string `json:"name"`
		Hierarchy string `json:"hierarchy"`
		Levels    string `json:"levels"`
	}
	var dims []dimension
	for _, name := range et.DimensionNames() {
		d := et.Dimensions[name]
		if !d.Visible {
			continue
		}
		for _, h := range d.Hierarchies {
			levels := make([]string, 0, len(h.Levels))
			for _, l := range h.Levels {
				levels = append(levels, l.Name)
			}
			dims = append(dims, dimension{Name: d.Name, Hierarchy: h.Name, Levels: strings.Join(levels, " > ")})
		}
	}
	var measures []measure
	for _, name := range et.MeasureNames() {
		m := et.Measures[name]
		if !m.Visible {
			continue
		}
		measures = append(measures, measure{Name: m.Name, Caption: m.Caption, Aggregator: m.Aggregator, Calculated: m.IsCalculated()})
	}

	out := cmd.OutOrStdout()
	if getOutputFormat(cmd) == "json" {
		return printJSON(out, map[string]any{
			"name":            et.Name,
			"caption":         et.Caption,
			"semantics":       et.Semantics,
			"dialect":         et.Dialect,
			"default_measure": et.DefaultMeasure,
			"dimensions":      dims,
			"measures":        measures,
		})
	}
	fmt.Fprintf(out, "Entity %s (%s, %s)\n\n", et.Name, et.Semantics, et.Dialect)
	drows := make([][]string, len(dims))
	for i, d := range dims {
		drows[i] = []string{d.Name, d.Hierarchy, d.Levels}
	}
	printTable(out, []string{"dimension", "hierarchy", "levels"}, drows)
	fmt.Fprintln(out)
	mrows := make([][]string, len(measures))
	for i, m := range measures {
		kind := "base"
		if m.Calculated {
			kind = "calculated"
		}
		mrows[i] = []string{m.Name, m.Caption, m.Aggregator, kind}
	}
	printTable(out, []string{"measure", "caption", "aggregator", "kind"}, mrows)
	return nil
}

func newCompileCmd(rt *runtime) *cobra.Command {
	var (
		mf        modelFlags
		queryFile string
	)
	cmd := &cobra.Command{
		Use:   "compile ENTITY",
		Short: "Compile a cube query to SQL",
		Long:  "Compiles a YAML or JSON cube query against an entity and prints the SQL. JSON output adds the output-column schema.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := readQuery(cmd, queryFile)
			if err != nil {
				return err
			}
			s, err := openSession(cmd.Context(), rt, mf)
			if err != nil {
				return err
			}
			defer s.close() //nolint:errcheck

			stmt, err := s.svc.Explain(cmd.Context(), s.model, args[0], q)
			if err != nil {
				return err
			}
			if getOutputFormat(cmd) == "json" {
				return printJSON(cmd.OutOrStdout(), stmt)
			}
			fmt.Fprintln(cmd.OutOrStdout(), stmt.SQL)
			return nil
		},
	}
	mf.register(cmd)
	cmd.Flags().StringVarP(&queryFile, "query", "q", "-", "Query file, or - for stdin")
	return cmd
}

func newRunCmd(rt *runtime) *cobra.Command {
	var (
		mf        modelFlags
		queryFile string
	)
	cmd := &cobra.Command{
		Use:   "run ENTITY",
		Short: "Compile a cube query, run it on the warehouse and print the crosstab",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := readQuery(cmd, queryFile)
			if err != nil {
				return err
			}
			s, err := openSession(cmd.Context(), rt, mf)
			if err != nil {
				return err
			}
			defer s.close() //nolint:errcheck

			exec, err := s.executor()
			if err != nil {
				return err
			}
			result, err := s.svc.Run(cmd.Context(), s.model, args[0], q, exec)
			if err != nil {
				return err
			}
			return printPivot(cmd, result)
		},
	}
	mf.register(cmd)
	cmd.Flags().StringVarP(&queryFile, "query", "q", "-", "Query file, or - for stdin")
	return cmd
}

func newPivotCmd(rt *runtime) *cobra.Command {
	var (
		mf        modelFlags
		queryFile string
		rowsFile  string
	)
	cmd := &cobra.Command{
		Use:   "pivot ENTITY",
		Short: "Reshape rows fetched for a cube query into a crosstab",
		Long:  "Compiles the query to learn its output schema, then pivots a JSON array of result rows read from --rows.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if queryFile == "-" && rowsFile == "-" {
				return fmt.Errorf("--query and --rows cannot both read stdin")
			}
			q, err := readQuery(cmd, queryFile)
			if err != nil {
				return err
			}
			rows, err := readRows(cmd, rowsFile)
			if err != nil {
				return err
			}
			s, err := openSession(cmd.Context(), rt, mf)
			if err != nil {
				return err
			}
			defer s.close() //nolint:errcheck

			result, err := s.svc.Pivot(cmd.Context(), s.model, args[0], q, rows)
			if err != nil {
				return err
			}
			return printPivot(cmd, result)
		},
	}
	mf.register(cmd)
	cmd.Flags().StringVarP(&queryFile, "query", "q", "", "Query file, or - for stdin")
	cmd.Flags().StringVar(&rowsFile, "rows", "-", "JSON array of result rows, or - for stdin")
	_ = cmd.MarkFlagRequired("query")
	return cmd
}

func readRows(cmd *cobra.Command, path string) ([]map[string]any, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path) //nolint:gosec // path is user-provided
	}
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	var rows []map[string]any
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, domain.ErrValidation("parse rows: %s", err.Error())
	}
	return rows, nil
}

func printPivot(cmd *cobra.Command, result *domain.PivotResult) error {
	out := cmd.OutOrStdout()
	if getOutputFormat(cmd) == "json" {
		return printJSON(out, result)
	}

	columns := pivotColumnOrder(result)
	rows := make([][]string, len(result.Data))
	for i, rec := range result.Data {
		row := make([]string, len(columns))
		for j, c := range columns {
			row[j] = cellString(rec[c])
		}
		rows[i] = row
	}
	printTable(out, columns, rows)
	return nil
}

// pivotColumnOrder lists the row-header fields first, then the crosstab
// leaf columns in tree order.
func pivotColumnOrder(result *domain.PivotResult) []string {
	var leaves []string
	var walk func(cols []*domain.PivotColumn)
	walk = func(cols []*domain.PivotColumn) {
		for _, c := range cols {
			if len(c.Columns) == 0 {
				leaves = append(leaves, c.Name)
				continue
			}
			walk(c.Columns)
		}
	}
	walk(result.Columns)

	seen := make(map[string]bool, len(leaves))
	for _, l := range leaves {
		seen[l] = true
	}
	var headers []string
	for _, rec := range result.Data {
		for k := range rec {
			if !seen[k] {
				seen[k] = true
				headers = append(headers, k)
			}
		}
	}
	sort.Strings(headers)
	return append(headers, leaves...)
}

func newMembersCmd(rt *runtime) *cobra.Command {
	var (
		mf      modelFlags
		ref     domain.DimensionRef
		execute bool
	)
	cmd := &cobra.Command{
		Use:   "members ENTITY",
		Short: "Print or run the member enumeration SQL of a hierarchy",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context(), rt, mf)
			if err != nil {
				return err
			}
			defer s.close() //nolint:errcheck

			out := cmd.OutOrStdout()
			if !execute {
				stmts, err := s.svc.MemberStatements(cmd.Context(), s.model, args[0], ref)
				if err != nil {
					return err
				}
				if getOutputFormat(cmd) == "json" {
					return printJSON(out, stmts)
				}
				for _, st := range stmts {
					fmt.Fprintf(out, "-- %s\n%s;\n\n", st.Level, st.SQL)
				}
				return nil
			}

			exec, err := s.executor()
			if err != nil {
				return err
			}
			levels, err := s.svc.Members(cmd.Context(), s.model, args[0], ref, exec)
			if err != nil {
				return err
			}
			if getOutputFormat(cmd) == "json" {
				return printJSON(out, levels)
			}
			var rows [][]string
			for _, l := range levels {
				for _, m := range l.Members {
					rows = append(rows, []string{l.Level, m.Key, m.Caption, m.ParentKey})
				}
			}
			printTable(out, []string{"level", "key", "caption", "parent"}, rows)
			return nil
		},
	}
	mf.register(cmd)
	cmd.Flags().StringVar(&ref.Dimension, "dimension", "", "Dimension name")
	cmd.Flags().StringVar(&ref.Hierarchy, "hierarchy", "", "Hierarchy name (default hierarchy when empty)")
	cmd.Flags().BoolVar(&execute, "execute", false, "Run the statements on the warehouse")
	_ = cmd.MarkFlagRequired("dimension")
	return cmd
}
