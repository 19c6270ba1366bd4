package declarative

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"cubesql/internal/domain"
)

// ignoredFields are assigned by the store and never authored.
var ignoredFields = map[string]bool{"__id__": true, "id": true}

// memberLists are list fields whose elements are diffed by name.
var memberLists = map[string]bool{
	"dimensions":        true,
	"dimensionUsages":   true,
	"measures":          true,
	"calculatedMembers": true,
	"hierarchies":       true,
	"levels":            true,
}

// Diff compares a loaded bundle against the stored model and returns the plan
// that turns actual into desired. actual is nil when the model is not stored yet.
func Diff(desired, actual *Bundle) *Plan {
	plan := &Plan{Model: desired.Name, Exists: actual != nil}
	if actual == nil {
		actual = &Bundle{Name: desired.Name}
		addAction(plan, OpCreate, KindModel, desired.Name, desired.path(KindModel, desired.Name), nil)
		plan.Actions[len(plan.Actions)-1].Detail = modelDetail(desired)
	} else {
		var changes []FieldDiff
		diffField(&changes, "description", actual.Description, desired.Description)
		diffField(&changes, "dialect", actual.Dialect, desired.Dialect)
		diffField(&changes, "catalog", actual.Catalog, desired.Catalog)
		if len(changes) > 0 {
			addAction(plan, OpUpdate, KindModel, desired.Name, desired.path(KindModel, desired.Name), changes)
		}
	}

	diffNamed(plan, desired, KindDimension,
		byName(desired.Schema.Dimensions, func(d domain.Dimension) string { return d.Name }),
		byName(actual.Schema.Dimensions, func(d domain.Dimension) string { return d.Name }))
	diffNamed(plan, desired, KindCube,
		byName(desired.Schema.Cubes, func(c domain.Cube) string { return c.Name }),
		byName(actual.Schema.Cubes, func(c domain.Cube) string { return c.Name }))
	diffNamed(plan, desired, KindIndicator,
		byName(desired.Schema.Indicators, func(i domain.Indicator) string { return i.Code }),
		byName(actual.Schema.Indicators, func(i domain.Indicator) string { return i.Code }))
	diffNamed(plan, desired, KindEntitySet, desired.Schema.EntitySets, actual.Schema.EntitySets)

	plan.SortActions()
	return plan
}

func byName[T any](items []T, name func(T) string) map[string]T {
	out := make(map[string]T, len(items))
	for _, it := range items {
		out[name(it)] = it
	}
	return out
}

func diffNamed[T any](plan *Plan, desired *Bundle, kind ResourceKind, want, have map[string]T) {
	for _, name := range sortedKeys(want) {
		path := desired.path(kind, name)
		old, ok := have[name]
		if !ok {
			addAction(plan, OpCreate, kind, name, path, nil)
			plan.Actions[len(plan.Actions)-1].Detail = describe(want[name])
			continue
		}
		changes, err := diffDocs(old, want[name])
		if err != nil {
			plan.Errors = append(plan.Errors, PlanError{ResourceKind: kind, ResourceName: name, Message: err.Error()})
			continue
		}
		if len(changes) > 0 {
			addAction(plan, OpUpdate, kind, name, path, changes)
		}
	}
	for _, name := range sortedKeys(have) {
		if _, ok := want[name]; !ok {
			addAction(plan, OpDelete, kind, name, "", nil)
		}
	}
}

// diffDocs compares the top-level JSON fields of two resources.
func diffDocs(oldDoc, newDoc any) ([]FieldDiff, error) {
	oldFields, err := fields(oldDoc)
	if err != nil {
		return nil, err
	}
	newFields, err := fields(newDoc)
	if err != nil {
		return nil, err
	}
	keys := make(map[string]bool, len(oldFields)+len(newFields))
	for k := range oldFields {
		keys[k] = true
	}
	for k := range newFields {
		keys[k] = true
	}

	var changes []FieldDiff
	for _, k := range sortedKeys(keys) {
		if ignoredFields[k] {
			continue
		}
		if memberLists[k] && diffMembers(&changes, k, oldFields[k], newFields[k]) {
			continue
		}
		diffField(&changes, k, string(oldFields[k]), string(newFields[k]))
	}
	return changes, nil
}

// diffMembers records one change per added, removed or modified element of
// a named list. It reports false when either side is not a list of objects.
func diffMembers(changes *[]FieldDiff, field string, oldRaw, newRaw json.RawMessage) bool {
	oldMembers, ok := members(oldRaw)
	if !ok {
		return false
	}
	newMembers, ok := members(newRaw)
	if !ok {
		return false
	}
	for _, name := range sortedKeys(newMembers) {
		if oldMembers[name] != newMembers[name] {
			*changes = append(*changes, FieldDiff{Field: field, Member: name, OldValue: oldMembers[name], NewValue: newMembers[name]})
		}
	}
	for _, name := range sortedKeys(oldMembers) {
		if _, ok := newMembers[name]; !ok {
			*changes = append(*changes, FieldDiff{Field: field, Member: name, OldValue: oldMembers[name]})
		}
	}
	return true
}

// members maps each element of a JSON list to its canonical form, keyed by
// its name or, for unnamed elements, by position.
func members(raw json.RawMessage) (map[string]string, bool) {
	out := map[string]string{}
	if len(raw) == 0 {
		return out, true
	}
	var list []map[string]json.RawMessage
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, false
	}
	for i, m := range list {
		for k := range ignoredFields {
			delete(m, k)
		}
		var name string
		if err := json.Unmarshal(m["name"], &name); err != nil || name == "" {
			name = fmt.Sprintf("#%d", i+1)
		}
		data, err := json.Marshal(m)
		if err != nil {
			return nil, false
		}
		out[name] = string(data)
	}
	return out, true
}

func modelDetail(b *Bundle) string {
	parts := []string{"dialect " + b.Dialect}
	if b.Catalog != "" {
		parts = append(parts, "catalog "+b.Catalog)
	}
	return strings.Join(parts, ", ")
}

// describe summarizes a resource about to be created.
func describe(doc any) string {
	switch r := doc.(type) {
	case domain.Cube:
		var fact string
		switch {
		case r.View != nil:
			fact = "view " + r.View.Alias
		case len(r.Tables) > 0:
			fact = "fact " + r.Tables[0].Name
		}
		return joinDetail(fact,
			plural(len(r.Dimensions)+len(r.DimensionUsages), "dimension"),
			plural(len(r.Measures), "measure"),
			plural(len(r.CalculatedMembers), "calculated member"))
	case domain.Dimension:
		levels := 0
		for _, h := range r.Hierarchies {
			levels += len(h.Levels)
		}
		return joinDetail(plural(len(r.Hierarchies), "hierarchy"), plural(levels, "level"))
	case domain.Indicator:
		source := "measure " + r.Measure
		if strings.TrimSpace(r.Formula) != "" {
			source = "formula"
		}
		return joinDetail("on "+r.Entity, source, plural(len(r.Filters), "filter"))
	case domain.EntityOverride:
		return joinDetail(
			plural(len(r.Measures), "measure override"),
			plural(len(r.Dimensions), "dimension override"),
			plural(len(r.CalculatedMembers), "calculated member"))
	}
	return ""
}

func plural(n int, noun string) string {
	switch {
	case n == 0:
		return ""
	case n == 1:
		return "1 " + noun
	case strings.HasSuffix(noun, "y"):
		return fmt.Sprintf("%d %sies", n, strings.TrimSuffix(noun, "y"))
	default:
		return fmt.Sprintf("%d %ss", n, noun)
	}
}

func joinDetail(parts ...string) string {
	return strings.Join(compactStrings(parts), ", ")
}

func compactStrings(values []string) []string {
	out := values[:0:0]
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

func fields(doc any) (map[string]json.RawMessage, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var out map[string]json.RawMessage
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func addAction(plan *Plan, op Operation, kind ResourceKind, name, filePath string, changes []FieldDiff) {
	plan.Actions = append(plan.Actions, Action{
		Operation:    op,
		ResourceKind: kind,
		ResourceName: name,
		FilePath:     filePath,
		Changes:      changes,
	})
}

func diffField(changes *[]FieldDiff, field, oldVal, newVal string) {
	if oldVal != newVal {
		*changes = append(*changes, FieldDiff{Field: field, OldValue: oldVal, NewValue: newVal})
	}
}

func sortedKeys[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
