package declarative

import "sort"

// Action represents a single planned change to a model resource.
type Action struct {
	Operation    Operation
	ResourceKind ResourceKind
	ResourceName string // cube, dimension or entity name, or indicator code
	FilePath     string // source YAML file (empty for deletes)
	Detail       string // summary of the resource a create adds
	Changes      []FieldDiff
}

// FieldDiff describes a single field change within an Update action. Member
// names the element of a list field (a measure, a hierarchy) that changed;
// an empty OldValue marks an added element, an empty NewValue a removed one.
type FieldDiff struct {
	Field    string `json:"field"`
	Member   string `json:"member,omitempty"`
	OldValue string `json:"old_value"`
	NewValue string `json:"new_value"`
}

// Plan is the list of changes that bring a stored model to a bundle.
type Plan struct {
	Model   string
	Exists  bool // false when the model itself will be created
	Actions []Action
	Errors  []PlanError
}

// PlanError represents a problem that blocks applying the plan.
type PlanError struct {
	ResourceKind ResourceKind `json:"resource_type"`
	ResourceName string       `json:"resource_name"`
	Message      string       `json:"message"`
}

// PlanSummary holds counts of planned operations.
type PlanSummary struct {
	Creates int `json:"creates"`
	Updates int `json:"updates"`
	Deletes int `json:"deletes"`
	Errors  int `json:"errors"`
}

// Summary returns counts of creates, updates, deletes, and errors.
func (p *Plan) Summary() PlanSummary {
	var s PlanSummary
	for _, a := range p.Actions {
		switch a.Operation {
		case OpCreate:
			s.Creates++
		case OpUpdate:
			s.Updates++
		case OpDelete:
			s.Deletes++
		}
	}
	s.Errors = len(p.Errors)
	return s
}

// HasChanges returns true if the plan has any actions or errors.
func (p *Plan) HasChanges() bool {
	return len(p.Actions) > 0 || len(p.Errors) > 0
}

// SortActions orders creates and updates by ascending layer, then deletes by
// descending layer, each group by name.
func (p *Plan) SortActions() {
	sort.SliceStable(p.Actions, func(i, j int) bool {
		ai, aj := p.Actions[i], p.Actions[j]
		iDel, jDel := ai.Operation == OpDelete, aj.Operation == OpDelete
		if iDel != jDel {
			return !iDel
		}
		li, lj := ai.ResourceKind.Layer(), aj.ResourceKind.Layer()
		if li != lj {
			if iDel {
				return li > lj
			}
			return li < lj
		}
		if ai.ResourceKind != aj.ResourceKind {
			return ai.ResourceKind < aj.ResourceKind
		}
		return ai.ResourceName < aj.ResourceName
	})
}
