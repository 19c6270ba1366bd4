package semantic

import (
	"context"
	"fmt"
	"strings"

	"github.com/benbjohnson/clock"
	"golang.org/x/sync/errgroup"

	"cubesql/internal/compiler"
	"cubesql/internal/domain"
)

// Service provides semantic model management and query compilation.
type Service struct {
	models   domain.ModelRepository
	registry *Registry
	clock    clock.Clock
}

// NewService creates a new semantic Service.
func NewService(models domain.ModelRepository, registry *Registry, clk clock.Clock) *Service {
	if clk == nil {
		clk = clock.New()
	}
	return &Service{models: models, registry: registry, clock: clk}
}

// CreateSemanticModel stores a semantic model after checking that its schema
// resolves.
func (s *Service) CreateSemanticModel(ctx context.Context, principal string, req domain.CreateSemanticModelRequest) (*domain.SemanticModel, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	m := &domain.SemanticModel{
		Name:        req.Name,
		Description: req.Description,
		Dialect:     strings.ToLower(req.Dialect),
		Catalog:     req.Catalog,
		Schema:      req.Schema,
		CreatedBy:   principal,
	}
	if _, err := s.registry.open(m); err != nil {
		return nil, err
	}
	return s.models.Create(ctx, m)
}

// GetSemanticModel retrieves a semantic model by name.
func (s *Service) GetSemanticModel(ctx context.Context, name string) (*domain.SemanticModel, error) {
	return s.models.GetByName(ctx, name)
}

// ListSemanticModels lists semantic models.
func (s *Service) ListSemanticModels(ctx context.Context, page domain.PageRequest) ([]domain.SemanticModel, int64, error) {
	return s.models.List(ctx, page)
}

// UpdateSemanticModel updates an existing semantic model and refreshes its
// open data source.
func (s *Service) UpdateSemanticModel(ctx context.Context, name string, req domain.UpdateSemanticModelRequest) (*domain.SemanticModel, error) {
	existing, err := s.models.GetByName(ctx, name)
	if err != nil {
		return nil, err
	}
	req.Apply(existing)
	if _, err := s.registry.open(existing); err != nil {
		return nil, err
	}
	updated, err := s.models.Update(ctx, existing)
	if err != nil {
		return nil, err
	}
	if err := s.registry.Refresh(updated); err != nil {
		return nil, fmt.Errorf("refresh data source %q: %w", name, err)
	}
	return updated, nil
}

// DeleteSemanticModel deletes an existing semantic model.
func (s *Service) DeleteSemanticModel(ctx context.Context, name string) error {
	if err := s.models.Delete(ctx, name); err != nil {
		return err
	}
	s.registry.Forget(name)
	return nil
}

// EntityType resolves the merged entity type of entity in model.
func (s *Service) EntityType(ctx context.Context, model, entity string) (*domain.EntityType, error) {
	ds, err := s.registry.DataSource(ctx, model)
	if err != nil {
		return nil, err
	}
	return ds.ResolveEntityType(ctx, entity)
}

// Explain compiles a query without running it.
func (s *Service) Explain(ctx context.Context, model, entity string, q domain.Query) (*domain.Statement, error) {
	ds, et, err := s.resolve(ctx, model, entity)
	if err != nil {
		return nil, err
	}
	return compiler.CompileQuery(et, ds.Dialect(), q, compiler.Options{Clock: s.clock})
}

// Pivot compiles a query and reshapes rows already fetched for it.
func (s *Service) Pivot(ctx context.Context, model, entity string, q domain.Query, rows []map[string]any) (*domain.PivotResult, error) {
	stmt, err := s.Explain(ctx, model, entity, q)
	if err != nil {
		return nil, err
	}
	return compiler.Pivot(stmt, rows), nil
}

// Run compiles a query, executes it and returns the crosstab.
func (s *Service) Run(ctx context.Context, model, entity string, q domain.Query, exec domain.QueryExecutor) (*domain.PivotResult, error) {
	stmt, err := s.Explain(ctx, model, entity, q)
	if err != nil {
		return nil, err
	}
	rows, err := exec.Query(ctx, stmt.SQL)
	if err != nil {
		return nil, fmt.Errorf("execute query on %q: %w", entity, err)
	}
	return compiler.Pivot(stmt, rows), nil
}

// MemberStatements compiles the member enumeration SQL of every level of a
// dimension hierarchy.
func (s *Service) MemberStatements(ctx context.Context, model, entity string, ref domain.DimensionRef) ([]domain.MemberStatement, error) {
	ds, et, err := s.resolve(ctx, model, entity)
	if err != nil {
		return nil, err
	}
	return compiler.DimensionMembers(et, ds.Dialect(), ref, compiler.Options{Clock: s.clock})
}

// Members enumerates the members of every level of a hierarchy, querying
// levels concurrently.
func (s *Service) Members(ctx context.Context, model, entity string, ref domain.DimensionRef, exec domain.QueryExecutor) ([]domain.LevelMembers, error) {
	stmts, err := s.MemberStatements(ctx, model, entity, ref)
	if err != nil {
		return nil, err
	}

	out := make([]domain.LevelMembers, len(stmts))
	g, gctx := errgroup.WithContext(ctx)
	for i, stmt := range stmts {
		g.Go(func() error {
			rows, err := exec.Query(gctx, stmt.SQL)
			if err != nil {
				return fmt.Errorf("enumerate %s: %w", stmt.Level, err)
			}
			members := make([]domain.MemberRow, 0, len(rows))
			for _, row := range rows {
				members = append(members, domain.MemberRow{
					Key:       rowString(row, compiler.MemberKeyAlias),
					Caption:   rowString(row, compiler.MemberCaptionAlias),
					ParentKey: rowString(row, compiler.ParentKeyAlias),
				})
			}
			out[i] = domain.LevelMembers{Level: stmt.Level, Members: members}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// AddCalculatedMeasure registers an ad hoc calculated measure on an entity
// of an open model. It lives until the model is next refreshed from the store.
func (s *Service) AddCalculatedMeasure(ctx context.Context, model, entity string, cm domain.CalculatedMember) error {
	ds, err := s.registry.DataSource(ctx, model)
	if err != nil {
		return err
	}
	return ds.AddCalculatedMeasure(entity, cm)
}

func (s *Service) resolve(ctx context.Context, model, entity string) (*DataSource, *domain.EntityType, error) {
	ds, err := s.registry.DataSource(ctx, model)
	if err != nil {
		return nil, nil, err
	}
	et, err := ds.ResolveEntityType(ctx, entity)
	if err != nil {
		return nil, nil, err
	}
	return ds, et, nil
}

// rowString reads a result column, tolerating drivers that fold aliases.
func rowString(row map[string]any, alias string) string {
	v, ok := row[alias]
	if !ok {
		for k, val := range row {
			if strings.EqualFold(k, alias) {
				v, ok = val, true
				break
			}
		}
	}
	if !ok || v == nil {
		return ""
	}
	if s, isString := v.(string); isString {
		return s
	}
	return fmt.Sprint(v)
}
