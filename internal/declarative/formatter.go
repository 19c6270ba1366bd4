package declarative

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Terminal styles of plan output.
const (
	styleReset   = "\033[0m"
	styleAdd     = "\033[32m"
	styleChange  = "\033[33m"
	styleRemove  = "\033[31m"
	styleSection = "\033[1m"
	styleMuted   = "\033[2m"
)

// sectionTitles heads the plan output of each resource kind.
var sectionTitles = map[ResourceKind]string{
	KindModel:     "Semantic model",
	KindDimension: "Shared dimensions",
	KindCube:      "Cubes",
	KindIndicator: "Indicators",
	KindEntitySet: "Entity overrides",
}

// planPrinter renders a plan as text, with ANSI styles unless plain is set.
type planPrinter struct {
	w     io.Writer
	plain bool
}

func (p planPrinter) style(code, text string) string {
	if p.plain {
		return text
	}
	return code + text + styleReset
}

// FormatText writes a human-readable plan to w, one section per resource
// kind in the order the kinds first appear. If noColor is true, ANSI codes are suppressed.
func FormatText(w io.Writer, plan *Plan, noColor bool) {
	p := planPrinter{w: w, plain: noColor}
	if !plan.HasChanges() {
		fmt.Fprintf(w, "No changes. Model %q is up-to-date.\n", plan.Model)
		return
	}
	if !plan.Exists {
		fmt.Fprintf(w, "Model %q does not exist yet and will be created.\n", plan.Model)
	}

	var kinds []ResourceKind
	byKind := map[ResourceKind][]Action{}
	for _, a := range plan.Actions {
		if _, ok := byKind[a.ResourceKind]; !ok {
			kinds = append(kinds, a.ResourceKind)
		}
		byKind[a.ResourceKind] = append(byKind[a.ResourceKind], a)
	}
	for _, k := range kinds {
		fmt.Fprintf(w, "\n%s\n", p.style(styleSection, sectionTitles[k]))
		for _, a := range byKind[k] {
			p.action(a)
		}
	}

	if len(plan.Errors) > 0 {
		fmt.Fprintf(w, "\n%s\n", p.style(styleSection, "Errors"))
		for _, e := range plan.Errors {
			fmt.Fprintf(w, "  %s %s %q: %s\n", p.style(styleRemove, "!"), e.ResourceKind, e.ResourceName, e.Message)
		}
	}

	s := plan.Summary()
	fmt.Fprintf(w, "\n%s %d to create, %d to update, %d to delete.",
		p.style(styleMuted, "Plan:"), s.Creates, s.Updates, s.Deletes)
	if s.Errors > 0 {
		fmt.Fprintf(w, " %s", p.style(styleRemove, fmt.Sprintf("%d error(s).", s.Errors)))
	}
	fmt.Fprintln(w)
}

func (p planPrinter) action(a Action) {
	source := ""
	if a.FilePath != "" {
		source = " " + p.style(styleMuted, "("+a.FilePath+")")
	}
	switch a.Operation {
	case OpCreate:
		detail := ""
		if a.Detail != "" {
			detail = ": " + a.Detail
		}
		fmt.Fprintf(p.w, "  %s %s %q%s%s\n", p.style(styleAdd, "+"), a.ResourceKind, a.ResourceName, source, detail)
	case OpUpdate:
		fmt.Fprintf(p.w, "  %s %s %q%s\n", p.style(styleChange, "~"), a.ResourceKind, a.ResourceName, source)
		for _, d := range a.Changes {
			p.change(d)
		}
	case OpDelete:
		fmt.Fprintf(p.w, "  %s %s %q\n", p.style(styleRemove, "-"), a.ResourceKind, a.ResourceName)
	}
}

// change prints a scalar field as old -> new, and a list element by name
// with the sign of its change.
func (p planPrinter) change(d FieldDiff) {
	if d.Member == "" {
		fmt.Fprintf(p.w, "      %s: %s -> %s\n", d.Field, valueOrNone(d.OldValue), valueOrNone(d.NewValue))
		return
	}
	sign, code := "~", styleChange
	switch {
	case d.OldValue == "":
		sign, code = "+", styleAdd
	case d.NewValue == "":
		sign, code = "-", styleRemove
	}
	fmt.Fprintf(p.w, "      %s: %s %q\n", d.Field, p.style(code, sign), d.Member)
}

func valueOrNone(v string) string {
	if strings.TrimSpace(v) == "" {
		return "(none)"
	}
	return v
}

// FormatJSON writes the plan as JSON to w. Actions are grouped by resource
// kind under "changes".
func FormatJSON(w io.Writer, plan *Plan) error {
	type change struct {
		Operation string      `json:"operation"`
		Name      string      `json:"name"`
		Path      string      `json:"path,omitempty"`
		Detail    string      `json:"detail,omitempty"`
		Fields    []FieldDiff `json:"fields,omitempty"`
	}
	out := struct {
		Model   string              `json:"model"`
		Exists  bool                `json:"exists"`
		Changes map[string][]change `json:"changes"`
		Errors  []PlanError         `json:"errors,omitempty"`
		Summary PlanSummary         `json:"summary"`
	}{
		Model:   plan.Model,
		Exists:  plan.Exists,
		Changes: map[string][]change{},
		Errors:  plan.Errors,
		Summary: plan.Summary(),
	}
	for _, a := range plan.Actions {
		kind := a.ResourceKind.String()
		out.Changes[kind] = append(out.Changes[kind], change{
			Operation: a.Operation.String(),
			Name:      a.ResourceName,
			Path:      a.FilePath,
			Detail:    a.Detail,
			Fields:    a.Changes,
		})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("write plan: %w", err)
	}
	return nil
}
