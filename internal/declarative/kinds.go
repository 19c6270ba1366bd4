package declarative

// ResourceKind identifies a type of model resource.
type ResourceKind int

// Resource kinds, ordered by dependency layer: cubes use shared dimensions,
// indicators and entity sets refer to cubes.
const (
	KindModel ResourceKind = iota
	KindDimension
	KindCube
	KindIndicator
	KindEntitySet
)

// String returns the kebab-case name of the kind.
func (k ResourceKind) String() string {
	switch k {
	case KindModel:
		return "model"
	case KindDimension:
		return "dimension"
	case KindCube:
		return "cube"
	case KindIndicator:
		return "indicator"
	case KindEntitySet:
		return "entity-set"
	default:
		return "unknown"
	}
}

// Layer returns the apply order of the kind.
func (k ResourceKind) Layer() int {
	switch k {
	case KindModel:
		return 0
	case KindDimension:
		return 1
	case KindCube:
		return 2
	default:
		return 3
	}
}

// Operation is the planned change of one resource.
type Operation int

// Plan operations.
const (
	OpCreate Operation = iota
	OpUpdate
	OpDelete
)

// String returns the verb of the operation.
func (o Operation) String() string {
	switch o {
	case OpCreate:
		return "create"
	case OpUpdate:
		return "update"
	case OpDelete:
		return "delete"
	default:
		return "unknown"
	}
}
