// Package schema compiles authored cubes and dimensions into runtime entity
// types with qualified names, and maps discovered tables onto the same model.
package schema

import (
	"strings"

	"cubesql/internal/dialect"
	"cubesql/internal/domain"
	"cubesql/internal/naming"
)

// CompileDimension validates an authored dimension and returns its runtime
// form with qualified names for the dimension, each hierarchy, each level and
// each level's caption. entity names the owning cube in error messages.
func CompileDimension(entity string, dim domain.Dimension, d dialect.Dialect) (*domain.RuntimeDimension, error) {
	name := naming.CleanDelimiters(dim.Name)
	if name == "" {
		return nil, domain.ErrSchemaValidation("dimension in %q has no name", entity)
	}

	seen := make(map[string]bool, len(dim.Hierarchies))
	for _, h := range dim.Hierarchies {
		if seen[h.Name] {
			return nil, domain.ErrSchemaValidation("hierarchy name %q is duplicated in dimension %q of cube %q", h.Name, name, entity)
		}
		seen[h.Name] = true
	}

	dimUnique := naming.Unique(d, name, "", "")
	rt := &domain.RuntimeDimension{
		Name:             dimUnique,
		Plain:            name,
		Caption:          firstNonEmpty(dim.Caption, name),
		Entity:           entity,
		ForeignKey:       dim.ForeignKey,
		Semantic:         dim.Semantic,
		DefaultHierarchy: dim.DefaultHierarchy,
		MemberCaption:    naming.Intrinsic(d, dimUnique, naming.MemberCaption),
		Visible:          domain.BoolValue(dim.Visible, true),
	}

	for _, h := range dim.Hierarchies {
		hier, err := compileHierarchy(entity, name, dim, h, d)
		if err != nil {
			return nil, err
		}
		rt.Hierarchies = append(rt.Hierarchies, hier)
	}
	return rt, nil
}

func compileHierarchy(entity, dimName string, dim domain.Dimension, h domain.Hierarchy, d dialect.Dialect) (*domain.RuntimeHierarchy, error) {
	label := firstNonEmpty(h.Name, dimName)
	if len(h.Tables) > 0 && !validPrimaryKey(h.PrimaryKey) {
		return nil, domain.ErrSchemaValidation("the primary key %q of hierarchy %q in dimension %q is not valid; set a primary key when dimension tables are defined", h.PrimaryKey, label, dimName)
	}
	if len(h.Tables) > 1 {
		if err := ValidateTables(h.Tables); err != nil {
			return nil, err
		}
		if strings.TrimSpace(h.PrimaryKeyTable) == "" {
			return nil, domain.ErrSchemaValidation("hierarchy %q in dimension %q joins %d tables and must set a primary key table", label, dimName, len(h.Tables))
		}
	}
	if len(h.Levels) == 0 {
		return nil, domain.ErrSchemaValidation("hierarchy %q in dimension %q has no levels", label, dimName)
	}

	hierUnique := naming.Unique(d, dimName, h.Name, "")
	rt := &domain.RuntimeHierarchy{
		Name:             hierUnique,
		Plain:            h.Name,
		Caption:          firstNonEmpty(h.Caption, dim.Caption, label),
		Dimension:        naming.Unique(d, dimName, "", ""),
		Entity:           entity,
		AliasPrefix:      aliasPrefix(dimName, h.Name),
		HasAll:           h.HasAll,
		AllMemberName:    firstNonEmpty(h.AllMemberName, naming.AllMemberName),
		AllMemberCaption: firstNonEmpty(h.AllMemberCaption, naming.AllMemberCaption),
		PrimaryKey:       h.PrimaryKey,
		PrimaryKeyTable:  h.PrimaryKeyTable,
		Tables:           h.Tables,
		MemberCaption:    naming.Unique(d, dimName, h.Name, naming.MemberCaption),
	}

	if h.HasAll {
		caption := naming.AllLevelCaption(h.AllLevelName, h.Name, dimName)
		unique := naming.Unique(d, dimName, h.Name, caption)
		rt.Levels = append(rt.Levels, &domain.RuntimeLevel{
			Level:         domain.Level{Name: caption, Caption: caption},
			UniqueName:    unique,
			MemberCaption: naming.Intrinsic(d, unique, naming.MemberCaption),
			IsAll:         true,
		})
	}

	levelNames := make(map[string]bool, len(h.Levels))
	for _, lvl := range h.Levels {
		if strings.TrimSpace(lvl.Name) == "" {
			return nil, domain.ErrSchemaValidation("hierarchy %q in dimension %q has a level without a name", label, dimName)
		}
		if levelNames[lvl.Name] {
			return nil, domain.ErrSchemaValidation("level name %q is duplicated in hierarchy %q of dimension %q", lvl.Name, label, dimName)
		}
		levelNames[lvl.Name] = true

		lvl.Caption = firstNonEmpty(lvl.Caption, lvl.Name)
		rl := &domain.RuntimeLevel{
			Level:         lvl,
			UniqueName:    naming.Unique(d, dimName, h.Name, lvl.Name),
			MemberCaption: naming.QualifiedName{Dimension: dimName, Hierarchy: h.Name, Level: lvl.Name, Intrinsic: naming.MemberCaption}.String(d),
		}
		for _, p := range lvl.Properties {
			if p.Name == "" {
				continue
			}
			p.Caption = firstNonEmpty(p.Caption, p.Name)
			rl.Props = append(rl.Props, domain.RuntimeLevelProperty{
				UniqueName:    naming.Unique(d, dimName, h.Name, p.Name),
				LevelProperty: p,
			})
		}
		rt.Levels = append(rt.Levels, rl)
	}

	for i, lvl := range rt.Levels {
		lvl.LevelNumber = i
		lvl.Hierarchy = hierUnique
		lvl.Dimension = rt.Dimension
	}
	return rt, nil
}

// ValidateTables checks that every table after the first declares join fields.
func ValidateTables(tables []domain.Table) error {
	if len(tables) < 2 {
		return nil
	}
	var missing []string
	for _, t := range tables[1:] {
		if len(t.Join.ValidFields()) == 0 {
			missing = append(missing, t.Name)
		}
	}
	if len(missing) > 0 {
		return domain.ErrSchemaValidation("tables %s have no join fields configured", strings.Join(missing, ", "))
	}
	return nil
}

// aliasPrefix scopes the table aliases of a hierarchy. Hierarchies named
// after their dimension share the dimension's prefix.
func aliasPrefix(dimension, hierarchy string) string {
	if hierarchy == "" || hierarchy == dimension {
		return dimension
	}
	return dimension + "_" + hierarchy
}

func validPrimaryKey(pk string) bool {
	pk = strings.TrimSpace(pk)
	return pk != "" && !strings.EqualFold(pk, "null")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
