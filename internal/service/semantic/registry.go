package semantic

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"

	"cubesql/internal/dialect"
	"cubesql/internal/domain"
)

// Registry keeps one DataSource per stored semantic model, created on first
// use and refreshed when the model changes.
type Registry struct {
	models   domain.ModelRepository
	discover domain.SchemaDiscoverer
	logger   *slog.Logger

	group   singleflight.Group
	mu      sync.RWMutex
	sources map[string]*DataSource
}

// NewRegistry creates a Registry over the model store. discover may be nil,
// in which case only authored entities resolve.
func NewRegistry(models domain.ModelRepository, discover domain.SchemaDiscoverer, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		models:   models,
		discover: discover,
		logger:   logger,
		sources:  map[string]*DataSource{},
	}
}

// DataSource returns the data source of the named model, loading it from the
// store when needed.
func (r *Registry) DataSource(ctx context.Context, model string) (*DataSource, error) {
	r.mu.RLock()
	ds, ok := r.sources[model]
	r.mu.RUnlock()
	if ok {
		return ds, nil
	}

	if r.models == nil {
		return nil, domain.ErrNotFound("semantic model %q not found", model)
	}
	v, err, _ := r.group.Do(model, func() (any, error) {
		m, err := r.models.GetByName(ctx, model)
		if err != nil {
			return nil, err
		}
		ds, err := r.open(m)
		if err != nil {
			return nil, err
		}
		r.mu.Lock()
		r.sources[model] = ds
		r.mu.Unlock()
		return ds, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*DataSource), nil
}

func (r *Registry) open(m *domain.SemanticModel) (*DataSource, error) {
	d, err := dialect.Lookup(m.Dialect)
	if err != nil {
		return nil, err
	}
	schema := m.Schema
	return NewDataSource(DataSourceOptions{
		Name:       m.Name,
		Dialect:    d,
		Catalog:    m.Catalog,
		Schema:     &schema,
		Discoverer: r.discover,
		Logger:     r.logger,
	})
}

// Register adds an already built data source, replacing any open one of the
// same name. Used for models loaded from files rather than the store.
func (r *Registry) Register(ds *DataSource) {
	r.mu.Lock()
	r.sources[ds.Name()] = ds
	r.mu.Unlock()
}

// Refresh pushes the stored state of m into its data source, if one is open.
// Dialect or catalog changes reopen the data source.
func (r *Registry) Refresh(m *domain.SemanticModel) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ds, ok := r.sources[m.Name]
	if !ok {
		return nil
	}
	if ds.Dialect().Name != m.Dialect || ds.catalog != m.Catalog {
		next, err := r.open(m)
		if err != nil {
			return err
		}
		r.sources[m.Name] = next
		return nil
	}
	schema := m.Schema
	return ds.SetSchema(&schema)
}

// Forget drops the data source of a deleted model.
func (r *Registry) Forget(model string) {
	r.mu.Lock()
	delete(r.sources, model)
	r.mu.Unlock()
}

// InvalidateAll drops cached resolutions of every open data source.
func (r *Registry) InvalidateAll() {
	r.mu.RLock()
	sources := make([]*DataSource, 0, len(r.sources))
	for _, ds := range r.sources {
		sources = append(sources, ds)
	}
	r.mu.RUnlock()
	for _, ds := range sources {
		ds.Invalidate()
	}
	r.logger.Debug("invalidated data sources", "count", len(sources))
}
