package declarative

import (
	"fmt"
	"strings"

	"cubesql/internal/dialect"
	"cubesql/internal/domain"
	"cubesql/internal/schema"
)

// ValidationError represents a single validation problem.
type ValidationError struct {
	Path    string // e.g. "cubes/Sales.yaml" or "indicator[REV_DE]"
	Message string
}

func (e ValidationError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s", e.Path, e.Message)
	}
	return e.Message
}

// Validate checks a loaded bundle: the dialect exists, names are unique,
// dimension usages resolve and every cube, shared dimension, indicator and
// entity override compiles.
func Validate(b *Bundle) []ValidationError {
	var errs []ValidationError

	modelPath := b.path(KindModel, b.Name)
	d, err := dialect.Lookup(b.Dialect)
	if err != nil {
		addErr(&errs, modelPath, "%s", err.Error())
		return errs
	}

	dimNames := make(map[string]bool, len(b.Schema.Dimensions))
	for _, dim := range b.Schema.Dimensions {
		path := b.path(KindDimension, dim.Name)
		if dimNames[dim.Name] {
			addErr(&errs, path, "dimension %q is declared twice", dim.Name)
			continue
		}
		dimNames[dim.Name] = true
		if _, err := schema.CompileDimensionEntity(dim, d); err != nil {
			addErr(&errs, path, "%s", err.Error())
		}
	}

	cubeNames := make(map[string]bool, len(b.Schema.Cubes))
	for _, c := range b.Schema.Cubes {
		if cubeNames[c.Name] {
			addErr(&errs, b.path(KindCube, c.Name), "cube %q is declared twice", c.Name)
		}
		cubeNames[c.Name] = true
		for _, u := range c.DimensionUsages {
			if !dimNames[u.Source] {
				addErr(&errs, b.path(KindCube, c.Name), "dimension usage %q refers to unknown dimension %q", u.Name, u.Source)
			}
		}
	}
	if len(errs) > 0 {
		return errs
	}

	resolved, err := schema.ResolveDimensionUsages(&b.Schema)
	if err != nil {
		addErr(&errs, modelPath, "%s", err.Error())
		return errs
	}

	entities := make(map[string]*domain.EntityType, len(resolved.Cubes))
	for _, c := range resolved.Cubes {
		et, err := schema.CompileCube(c, d)
		if err != nil {
			addErr(&errs, b.path(KindCube, c.Name), "%s", err.Error())
			continue
		}
		entities[c.Name] = et
		if c.View != nil && c.View.Alias != "" {
			entities[c.View.Alias] = et
		}
	}

	validateIndicators(b, entities, &errs)
	validateEntitySets(b, &errs)
	return errs
}

func validateIndicators(b *Bundle, entities map[string]*domain.EntityType, errs *[]ValidationError) {
	codes := make(map[string]bool, len(b.Schema.Indicators))
	for _, ind := range b.Schema.Indicators {
		path := b.path(KindIndicator, ind.Code)
		if codes[ind.Code] {
			addErr(errs, path, "indicator %q is declared twice", ind.Code)
			continue
		}
		codes[ind.Code] = true
		if strings.TrimSpace(ind.Formula) == "" && ind.Measure == "" {
			addErr(errs, path, "indicator needs a formula or a measure")
			continue
		}
		// Indicators on discovered tables are checked at resolution time.
		et, ok := entities[ind.Entity]
		if !ok || ind.Measure == "" || strings.TrimSpace(ind.Formula) != "" {
			continue
		}
		if et.LookupMeasure(ind.Measure, false) == nil && !declaresCalculated(b, ind.Entity, ind.Measure) {
			addErr(errs, path, "measure %q not found in %q", ind.Measure, ind.Entity)
		}
	}
}

func validateEntitySets(b *Bundle, errs *[]ValidationError) {
	for entity, o := range b.Schema.EntitySets {
		for _, cm := range o.CalculatedMembers {
			if _, err := schema.CalculatedMeasure(entity, cm); err != nil {
				addErr(errs, b.path(KindEntitySet, entity), "%s", err.Error())
			}
		}
	}
}

func declaresCalculated(b *Bundle, entity, name string) bool {
	for _, cm := range b.Schema.EntitySets[entity].CalculatedMembers {
		if cm.Name == name {
			return true
		}
	}
	return false
}

// path returns the source file of a resource, or a kind[name] locator.
func (b *Bundle) path(kind ResourceKind, name string) string {
	if p, ok := b.Files[kind.String()+"/"+name]; ok {
		return p
	}
	return fmt.Sprintf("%s[%s]", kind, name)
}

func addErr(errs *[]ValidationError, path, msg string, args ...any) {
	*errs = append(*errs, ValidationError{Path: path, Message: fmt.Sprintf(msg, args...)})
}
