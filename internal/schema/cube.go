package schema

import (
	"strings"

	"cubesql/internal/dialect"
	"cubesql/internal/domain"
)

// CompileCube compiles a cube whose dimension usages are already resolved
// (see ResolveDimensionUsages) into an entity type.
func CompileCube(cube domain.Cube, d dialect.Dialect) (*domain.EntityType, error) {
	if strings.TrimSpace(cube.Name) == "" {
		return nil, domain.ErrSchemaValidation("cube has no name")
	}
	if len(cube.Tables) == 0 && cube.View == nil {
		return nil, domain.ErrSchemaValidation("cube %q does not have a fact table configured", cube.Name)
	}
	for i, t := range cube.Tables {
		if strings.TrimSpace(t.Name) == "" {
			return nil, domain.ErrSchemaValidation("table %d of cube %q has no name", i, cube.Name)
		}
	}
	if err := ValidateTables(cube.Tables); err != nil {
		return nil, domain.ErrSchemaValidation("cube %q: %s", cube.Name, err.Error())
	}

	et := domain.NewEntityType(cube.Name, domain.EntityCube)
	et.Caption = firstNonEmpty(cube.Caption, cube.Name)
	et.Dialect = d.Name
	c := cube
	et.Cube = &c

	for _, dim := range cube.Dimensions {
		rt, err := CompileDimension(cube.Name, dim, d)
		if err != nil {
			return nil, err
		}
		if _, dup := et.Dimensions[rt.Name]; dup {
			return nil, domain.ErrSchemaValidation("dimension %q is declared twice in cube %q", rt.Plain, cube.Name)
		}
		et.Dimensions[rt.Name] = rt
	}

	for _, m := range cube.Measures {
		if _, dup := et.Measures[m.Name]; dup {
			return nil, domain.ErrSchemaValidation("measure %q is declared twice in cube %q", m.Name, cube.Name)
		}
		et.Measures[m.Name] = BaseMeasure(cube.Name, m)
	}

	for _, cm := range cube.CalculatedMembers {
		rm, err := CalculatedMeasure(cube.Name, cm)
		if err != nil {
			return nil, err
		}
		et.Measures[rm.Name] = rm
	}

	et.DefaultMeasure = cube.DefaultMeasure
	if et.DefaultMeasure == "" && len(cube.Measures) > 0 {
		et.DefaultMeasure = cube.Measures[0].Name
	}
	return et, nil
}

// CompileDimensionEntity exposes a shared dimension as an entity of its own,
// with a row-count measure.
func CompileDimensionEntity(dim domain.Dimension, d dialect.Dialect) (*domain.EntityType, error) {
	rt, err := CompileDimension(dim.Name, dim, d)
	if err != nil {
		return nil, err
	}
	et := domain.NewEntityType(dim.Name, domain.EntityDimension)
	et.Caption = rt.Caption
	et.Dialect = d.Name
	et.Dimensions[rt.Name] = rt
	et.Measures[domain.RowCountMeasure] = &domain.RuntimeMeasure{
		Name:       domain.RowCountMeasure,
		Caption:    "Rows",
		Entity:     dim.Name,
		Column:     "1",
		Aggregator: domain.AggregatorSum,
		Visible:    true,
	}
	et.DefaultMeasure = domain.RowCountMeasure
	return et, nil
}

// BaseMeasure converts an authored measure.
func BaseMeasure(entity string, m domain.Measure) *domain.RuntimeMeasure {
	return &domain.RuntimeMeasure{
		Name:         m.Name,
		Caption:      firstNonEmpty(m.Caption, m.Name),
		Entity:       entity,
		Column:       m.Column,
		Aggregator:   m.Aggregator,
		FormatString: m.FormatString,
		Expression:   m.MeasureExpression,
		Visible:      domain.BoolValue(m.Visible, true),
	}
}

// CalculatedMeasure converts an authored calculated member.
func CalculatedMeasure(entity string, cm domain.CalculatedMember) (*domain.RuntimeMeasure, error) {
	if strings.TrimSpace(cm.Name) == "" {
		return nil, domain.ErrSchemaValidation("calculated member in %q has no name", entity)
	}
	calc, err := cm.Calculation()
	if err != nil {
		return nil, err
	}
	return &domain.RuntimeMeasure{
		Name:         cm.Name,
		Caption:      firstNonEmpty(cm.Caption, cm.Name),
		Entity:       entity,
		Aggregator:   cm.Aggregator,
		FormatString: cm.FormatString,
		Visible:      domain.BoolValue(cm.Visible, true),
		Calculation:  calc,
	}, nil
}
