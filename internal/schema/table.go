package schema

import (
	"strings"

	"cubesql/internal/dialect"
	"cubesql/internal/domain"
)

// Role is the recommended use of a discovered column.
type Role string

// Column roles.
const (
	RoleDimension Role = "dimension"
	RoleMeasure   Role = "measure"
)

var numericTypes = map[string]bool{
	"tinyint": true, "smallint": true, "int": true, "integer": true, "bigint": true, "hugeint": true,
	"utinyint": true, "usmallint": true, "uinteger": true, "ubigint": true, "uhugeint": true,
	"int2": true, "int4": true, "int8": true, "decimal": true, "numeric": true, "number": true,
	"real": true, "float": true, "float4": true, "float8": true, "double": true,
	"double precision": true, "money": true,
}

// DecideRole recommends a role from a raw database type: numeric columns
// are measures, everything else is a dimension.
func DecideRole(dataType string) Role {
	if numericTypes[baseType(dataType)] {
		return RoleMeasure
	}
	return RoleDimension
}

func levelType(dataType string) string {
	t := baseType(dataType)
	switch {
	case numericTypes[t]:
		return domain.LevelTypeNumeric
	case strings.HasPrefix(t, "bool"):
		return domain.LevelTypeBoolean
	case t == "date" || strings.HasPrefix(t, "timestamp") || strings.HasPrefix(t, "datetime"):
		return domain.LevelTypeDate
	default:
		return domain.LevelTypeString
	}
}

func baseType(dataType string) string {
	t := strings.ToLower(strings.TrimSpace(dataType))
	if i := strings.IndexByte(t, '('); i >= 0 {
		t = strings.TrimSpace(t[:i])
	}
	return strings.TrimSuffix(t, " unsigned")
}

// MapTableToCube synthesizes a cube from a discovered table: dimension
// columns become single-level dimensions, numeric columns become summed
// measures, and the first measure is the default.
func MapTableToCube(entity string, table *domain.TableSchema) domain.Cube {
	cube := domain.Cube{
		ID:      domain.NewID(),
		Name:    entity,
		Caption: firstNonEmpty(table.Label, entity),
		Tables:  []domain.Table{{Name: firstNonEmpty(table.Name, entity), Catalog: table.Catalog}},
	}
	for _, col := range table.Columns {
		if DecideRole(col.DataType) == RoleMeasure {
			cube.Measures = append(cube.Measures, domain.Measure{
				Name:       col.Name,
				Caption:    firstNonEmpty(col.Label, col.Name),
				Column:     col.Name,
				Aggregator: domain.AggregatorSum,
			})
			continue
		}
		cube.Dimensions = append(cube.Dimensions, domain.Dimension{
			Name:    col.Name,
			Caption: firstNonEmpty(col.Label, col.Name),
			Hierarchies: []domain.Hierarchy{{
				HasAll: true,
				Levels: []domain.Level{{
					Name:    col.Name,
					Caption: firstNonEmpty(col.Label, col.Name),
					Column:  col.Name,
					Type:    levelType(col.DataType),
				}},
			}},
		})
	}
	if len(cube.Measures) > 0 {
		cube.DefaultMeasure = cube.Measures[0].Name
	}
	return cube
}

// MapTableEntityType builds the entity type of a table that has no cube
// schema of its own.
func MapTableEntityType(entity string, table *domain.TableSchema, d dialect.Dialect) (*domain.EntityType, error) {
	if table == nil || len(table.Columns) == 0 {
		return nil, domain.ErrResolution("no metadata found for entity %q", entity)
	}
	et, err := CompileCube(MapTableToCube(entity, table), d)
	if err != nil {
		return nil, err
	}
	et.Semantics = domain.EntityTable
	et.Catalog = table.Catalog
	return et, nil
}
