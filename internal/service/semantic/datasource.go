package semantic

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"cubesql/internal/dialect"
	"cubesql/internal/domain"
	"cubesql/internal/schema"
)

// Resolution is the outcome of resolving one entity type against a schema
// version: either an entity type or a typed error.
type Resolution struct {
	EntityType *domain.EntityType
	Err        error
	Version    uint64
}

// snapshot is an immutable schema version. Mutations build a new snapshot
// and swap it in.
type snapshot struct {
	version uint64
	// authored is the schema as given; resolved has dimension usages expanded.
	authored *domain.Schema
	resolved *domain.Schema
	// runtime holds ad hoc calculated measures per entity.
	runtime map[string][]domain.CalculatedMember
}

// DataSourceOptions configures a DataSource.
type DataSourceOptions struct {
	Name       string
	Dialect    dialect.Dialect
	Catalog    string
	Schema     *domain.Schema
	Discoverer domain.SchemaDiscoverer
	Logger     *slog.Logger
}

// DataSource resolves entity types of one semantic model. Resolutions are
// cached per entity and schema version; concurrent requests for the same
// entity share one computation. Safe for concurrent use.
type DataSource struct {
	name     string
	dialect  dialect.Dialect
	catalog  string
	discover domain.SchemaDiscoverer
	logger   *slog.Logger

	snap  atomic.Pointer[snapshot]
	group singleflight.Group
	// write serializes schema mutations.
	write sync.Mutex

	mu    sync.Mutex
	cache map[string]Resolution
	subs  map[string]map[*subscriber]struct{}
}

// NewDataSource validates the schema and returns a data source over it.
func NewDataSource(opts DataSourceOptions) (*DataSource, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ds := &DataSource{
		name:     opts.Name,
		dialect:  opts.Dialect,
		catalog:  opts.Catalog,
		discover: opts.Discoverer,
		logger:   logger.With("data_source", opts.Name),
		cache:    map[string]Resolution{},
		subs:     map[string]map[*subscriber]struct{}{},
	}
	authored := opts.Schema
	if authored == nil {
		authored = &domain.Schema{}
	}
	snap, err := newSnapshot(1, authored, nil)
	if err != nil {
		return nil, err
	}
	ds.snap.Store(snap)
	return ds, nil
}

func newSnapshot(version uint64, authored *domain.Schema, runtime map[string][]domain.CalculatedMember) (*snapshot, error) {
	authored = schema.EnsureIDs(authored)
	resolved, err := schema.ResolveDimensionUsages(authored)
	if err != nil {
		return nil, err
	}
	return &snapshot{version: version, authored: authored, resolved: resolved, runtime: runtime}, nil
}

// Name returns the data source name.
func (ds *DataSource) Name() string { return ds.name }

// Dialect returns the dialect entity types are compiled for.
func (ds *DataSource) Dialect() dialect.Dialect { return ds.dialect }

// Schema returns the current authored schema. Callers must not modify it.
func (ds *DataSource) Schema() *domain.Schema { return ds.snap.Load().authored }

// ResolveEntityType returns the merged entity type of entity.
func (ds *DataSource) ResolveEntityType(ctx context.Context, entity string) (*domain.EntityType, error) {
	res := ds.resolve(ctx, entity)
	return res.EntityType, res.Err
}

func (ds *DataSource) resolve(ctx context.Context, entity string) Resolution {
	snap := ds.snap.Load()
	ds.mu.Lock()
	if res, ok := ds.cache[entity]; ok && res.Version == snap.version {
		ds.mu.Unlock()
		return res
	}
	ds.mu.Unlock()

	// The build outlives any one caller: coalesced callers share it, and
	// each stops waiting when its own context ends.
	key := entity + "@" + strconv.FormatUint(snap.version, 10)
	ch := ds.group.DoChan(key, func() (any, error) {
		ds.logger.Debug("entity type cache miss", "entity", entity, "version", snap.version)
		et, err := ds.build(context.WithoutCancel(ctx), snap, entity)
		res := Resolution{EntityType: et, Err: err, Version: snap.version}
		ds.mu.Lock()
		if ds.snap.Load().version == snap.version {
			ds.cache[entity] = res
		}
		ds.mu.Unlock()
		return res, nil
	})
	select {
	case r := <-ch:
		return r.Val.(Resolution)
	case <-ctx.Done():
		return Resolution{Err: ctx.Err(), Version: snap.version}
	}
}

// build merges, in order: the runtime type, the authored override, the
// indicators of the entity and the ad hoc calculated measures.
func (ds *DataSource) build(ctx context.Context, snap *snapshot, entity string) (*domain.EntityType, error) {
	et, err := ds.runtimeType(ctx, snap, entity)
	if err != nil {
		return nil, err
	}
	et.Dialect = ds.dialect.Name
	if et.Catalog == "" {
		et.Catalog = ds.catalog
	}

	if o, ok := snap.resolved.EntitySets[entity]; ok {
		if err := ds.applyOverride(et, o); err != nil {
			return nil, err
		}
	}

	indicators := snap.resolved.IndicatorsFor(entity)
	for _, ind := range indicators {
		measures, err := IndicatorMeasures(entity, ind)
		if err != nil {
			return nil, err
		}
		for _, m := range measures {
			et.Measures[m.Name] = m
		}
	}
	et.Indicators = indicators

	for _, cm := range snap.runtime[entity] {
		rm, err := schema.CalculatedMeasure(entity, cm)
		if err != nil {
			return nil, err
		}
		et.Measures[rm.Name] = rm
	}
	return et, nil
}

// runtimeType compiles the cube or shared dimension named entity, falling
// back to discovering a physical table.
func (ds *DataSource) runtimeType(ctx context.Context, snap *snapshot, entity string) (*domain.EntityType, error) {
	s := snap.resolved
	if cube := s.Cube(entity); cube != nil {
		return schema.CompileCube(*cube, ds.dialect)
	}
	if cube := s.ViewCube(entity); cube != nil {
		return schema.CompileCube(*cube, ds.dialect)
	}
	if dim := s.Dimension(entity); dim != nil {
		return schema.CompileDimensionEntity(*dim, ds.dialect)
	}
	if ds.discover == nil {
		return nil, domain.ErrResolution("entity %q not found in data source %q", entity, ds.name)
	}

	ds.logger.Debug("discovering table for entity", "entity", entity, "catalog", ds.catalog)
	table, err := ds.discover.DiscoverTable(ctx, ds.catalog, entity, "")
	if err != nil {
		return nil, err
	}
	return schema.MapTableEntityType(entity, table, ds.dialect)
}

func (ds *DataSource) applyOverride(et *domain.EntityType, o domain.EntityOverride) error {
	if o.Caption != "" {
		et.Caption = o.Caption
	}
	if o.DefaultMeasure != "" {
		et.DefaultMeasure = o.DefaultMeasure
	}
	for name, po := range o.Measures {
		m := et.LookupMeasure(name, ds.dialect.CaseInsensitive)
		if m == nil {
			ds.logger.Debug("override names an unknown measure", "entity", et.Name, "measure", name)
			continue
		}
		cp := *m
		if po.Caption != "" {
			cp.Caption = po.Caption
		}
		if po.FormatString != "" {
			cp.FormatString = po.FormatString
		}
		cp.Visible = domain.BoolValue(po.Visible, cp.Visible)
		et.Measures[cp.Name] = &cp
	}
	for name, po := range o.Dimensions {
		d := et.Dimension(name)
		if d == nil {
			ds.logger.Debug("override names an unknown dimension", "entity", et.Name, "dimension", name)
			continue
		}
		cp := *d
		if po.Caption != "" {
			cp.Caption = po.Caption
		}
		cp.Visible = domain.BoolValue(po.Visible, cp.Visible)
		et.Dimensions[cp.Name] = &cp
	}
	for _, cm := range o.CalculatedMembers {
		rm, err := schema.CalculatedMeasure(et.Name, cm)
		if err != nil {
			return err
		}
		et.Measures[rm.Name] = rm
	}
	return nil
}

// mutate applies fn to a copy of the current snapshot state and publishes
// the result as a new version.
func (ds *DataSource) mutate(op string, fn func(authored domain.Schema, runtime map[string][]domain.CalculatedMember) (*domain.Schema, map[string][]domain.CalculatedMember, error)) error {
	ds.write.Lock()
	cur := ds.snap.Load()
	runtime := make(map[string][]domain.CalculatedMember, len(cur.runtime))
	for k, v := range cur.runtime {
		runtime[k] = v
	}
	authored, runtime, err := fn(*cur.authored, runtime)
	if err != nil {
		ds.write.Unlock()
		return err
	}
	next, err := newSnapshot(cur.version+1, authored, runtime)
	if err != nil {
		ds.write.Unlock()
		return err
	}
	ds.snap.Store(next)
	ds.mu.Lock()
	ds.cache = map[string]Resolution{}
	ds.mu.Unlock()
	ds.write.Unlock()

	ds.logger.Debug("schema updated", "op", op, "version", next.version)
	ds.notify()
	return nil
}

// SetSchema replaces the schema.
func (ds *DataSource) SetSchema(s *domain.Schema) error {
	return ds.mutate("set_schema", func(_ domain.Schema, runtime map[string][]domain.CalculatedMember) (*domain.Schema, map[string][]domain.CalculatedMember, error) {
		if s == nil {
			return &domain.Schema{}, runtime, nil
		}
		return s, runtime, nil
	})
}

// UpdateCube replaces the cube with the same ID, else the same name, else
// appends it.
func (ds *DataSource) UpdateCube(cube domain.Cube) error {
	return ds.mutate("update_cube", func(s domain.Schema, runtime map[string][]domain.CalculatedMember) (*domain.Schema, map[string][]domain.CalculatedMember, error) {
		cubes := append([]domain.Cube(nil), s.Cubes...)
		index := -1
		for i, c := range cubes {
			if (cube.ID != "" && c.ID == cube.ID) || (index < 0 && c.Name == cube.Name) {
				index = i
			}
		}
		if index >= 0 {
			if cube.ID == "" {
				cube.ID = cubes[index].ID
			}
			cubes[index] = cube
		} else {
			cubes = append(cubes, cube)
		}
		s.Cubes = cubes
		return &s, runtime, nil
	})
}

// UpsertIndicator replaces the indicator with the same code or appends it.
func (ds *DataSource) UpsertIndicator(ind domain.Indicator) error {
	if ind.Code == "" {
		return domain.ErrValidation("indicator code is required")
	}
	return ds.mutate("upsert_indicator", func(s domain.Schema, runtime map[string][]domain.CalculatedMember) (*domain.Schema, map[string][]domain.CalculatedMember, error) {
		indicators := append([]domain.Indicator(nil), s.Indicators...)
		replaced := false
		for i, existing := range indicators {
			if existing.Code == ind.Code {
				if ind.ID == "" {
					ind.ID = existing.ID
				}
				indicators[i] = ind
				replaced = true
			}
		}
		if !replaced {
			indicators = append(indicators, ind)
		}
		s.Indicators = indicators
		return &s, runtime, nil
	})
}

// AddCalculatedMeasure registers an ad hoc calculated measure on entity,
// replacing one with the same name.
func (ds *DataSource) AddCalculatedMeasure(entity string, cm domain.CalculatedMember) error {
	if _, err := schema.CalculatedMeasure(entity, cm); err != nil {
		return err
	}
	return ds.mutate("add_calculated_measure", func(s domain.Schema, runtime map[string][]domain.CalculatedMember) (*domain.Schema, map[string][]domain.CalculatedMember, error) {
		measures := append([]domain.CalculatedMember(nil), runtime[entity]...)
		replaced := false
		for i, existing := range measures {
			if existing.Name == cm.Name {
				measures[i] = cm
				replaced = true
			}
		}
		if !replaced {
			measures = append(measures, cm)
		}
		runtime[entity] = measures
		return &s, runtime, nil
	})
}

// Invalidate drops every cached resolution so discovered types are read
// again, and pushes fresh resolutions to subscribers.
func (ds *DataSource) Invalidate() {
	_ = ds.mutate("invalidate", func(s domain.Schema, runtime map[string][]domain.CalculatedMember) (*domain.Schema, map[string][]domain.CalculatedMember, error) {
		return &s, runtime, nil
	})
}
