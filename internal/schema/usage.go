package schema

import (
	"cubesql/internal/domain"
)

// ResolveDimensionUsages returns a copy of s in which every cube's dimension
// usages are replaced by copies of the shared dimensions they reference,
// renamed and keyed as the usage declares. The input is not modified.
func ResolveDimensionUsages(s *domain.Schema) (*domain.Schema, error) {
	out := *s
	out.Cubes = make([]domain.Cube, len(s.Cubes))
	for i, cube := range s.Cubes {
		if len(cube.DimensionUsages) == 0 {
			out.Cubes[i] = cube
			continue
		}
		dims := make([]domain.Dimension, 0, len(cube.Dimensions)+len(cube.DimensionUsages))
		dims = append(dims, cube.Dimensions...)
		for _, usage := range cube.DimensionUsages {
			shared := s.Dimension(usage.Source)
			if shared == nil {
				return nil, domain.ErrSchemaValidation("cube %q uses dimension %q which is not defined in the schema", cube.Name, usage.Source)
			}
			dim := *shared
			dim.Name = firstNonEmpty(usage.Name, shared.Name)
			dim.Caption = firstNonEmpty(usage.Caption, shared.Caption)
			dim.ForeignKey = firstNonEmpty(usage.ForeignKey, shared.ForeignKey)
			dims = append(dims, dim)
		}
		cube.Dimensions = dims
		cube.DimensionUsages = nil
		out.Cubes[i] = cube
	}
	return &out, nil
}

// EnsureIDs returns a copy of s where every cube and indicator has an ID.
func EnsureIDs(s *domain.Schema) *domain.Schema {
	out := *s
	out.Cubes = append([]domain.Cube(nil), s.Cubes...)
	for i := range out.Cubes {
		if out.Cubes[i].ID == "" {
			out.Cubes[i].ID = domain.NewID()
		}
	}
	out.Indicators = append([]domain.Indicator(nil), s.Indicators...)
	for i := range out.Indicators {
		if out.Indicators[i].ID == "" {
			out.Indicators[i].ID = domain.NewID()
		}
	}
	return &out
}
