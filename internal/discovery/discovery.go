// Package discovery introspects warehouse tables and runs compiled SQL
// against them. Adapters exist for DuckDB and SQLite.
package discovery

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	_ "github.com/duckdb/duckdb-go/v2" // registers the "duckdb" driver
	_ "github.com/mattn/go-sqlite3"    // registers the "sqlite3" driver
	"golang.org/x/sync/errgroup"

	"cubesql/internal/domain"
)

// Driver names the database an Adapter talks to.
type Driver string

// Supported drivers.
const (
	DriverDuckDB Driver = "duckdb"
	DriverSQLite Driver = "sqlite3"
)

// maxParallelDiscovery bounds concurrent introspection queries.
const maxParallelDiscovery = 4

// Compile-time checks.
var (
	_ domain.SchemaDiscoverer = (*Adapter)(nil)
	_ domain.QueryExecutor    = (*Adapter)(nil)
)

// Adapter discovers table metadata and executes queries over one database.
type Adapter struct {
	db     *sql.DB
	driver Driver
	logger *slog.Logger
}

// Open opens the database at dsn with driver. An empty DuckDB dsn opens an
// in-memory database.
func Open(driver Driver, dsn string, logger *slog.Logger) (*Adapter, error) {
	switch driver {
	case DriverDuckDB, DriverSQLite:
	default:
		return nil, domain.ErrValidation("unsupported warehouse driver %q", driver)
	}
	db, err := sql.Open(string(driver), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	return New(db, driver, logger), nil
}

// New wraps an open database.
func New(db *sql.DB, driver Driver, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{db: db, driver: driver, logger: logger.With("driver", string(driver))}
}

// DB returns the underlying pool.
func (a *Adapter) DB() *sql.DB { return a.db }

// Close closes the underlying pool.
func (a *Adapter) Close() error { return a.db.Close() }

// DiscoverTable returns the columns of table, or of the result of statement
// when it is non-empty. table may be schema-qualified ("main.orders").
func (a *Adapter) DiscoverTable(ctx context.Context, catalog, table, statement string) (*domain.TableSchema, error) {
	var (
		cols []domain.TableColumn
		err  error
	)
	if strings.TrimSpace(statement) != "" {
		cols, err = a.describeStatement(ctx, statement)
	} else if a.driver == DriverSQLite {
		cols, err = a.sqliteColumns(ctx, table)
	} else {
		cols, err = a.duckdbColumns(ctx, catalog, table)
	}
	if err != nil {
		return nil, fmt.Errorf("discover %q: %w", table, err)
	}
	if len(cols) == 0 {
		return nil, domain.ErrNotFound("table %q not found", table)
	}
	a.logger.Debug("discovered table", "catalog", catalog, "table", table, "columns", len(cols))
	return &domain.TableSchema{Catalog: catalog, Name: table, Columns: cols}, nil
}

// DiscoverTables discovers several tables concurrently. Results are in the
// order of tables.
func (a *Adapter) DiscoverTables(ctx context.Context, catalog string, tables []string) ([]*domain.TableSchema, error) {
	out := make([]*domain.TableSchema, len(tables))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelDiscovery)
	for i, table := range tables {
		g.Go(func() error {
			ts, err := a.DiscoverTable(gctx, catalog, table, "")
			if err != nil {
				return err
			}
			out[i] = ts
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// ListTables lists the tables and views visible in catalog.
func (a *Adapter) ListTables(ctx context.Context, catalog string) ([]string, error) {
	var (
		query string
		args  []any
	)
	if a.driver == DriverSQLite {
		query = "SELECT name FROM sqlite_master WHERE type IN ('table', 'view') AND name NOT LIKE 'sqlite_%' ORDER BY name"
	} else {
		query = "SELECT table_name FROM information_schema.tables WHERE (? = '' OR table_catalog = ?) ORDER BY table_name"
		args = []any{catalog, catalog}
	}
	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan table name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Query runs sql and returns its rows keyed by column name. Byte slices are
// returned as strings.
func (a *Adapter) Query(ctx context.Context, sql string) ([]map[string]any, error) {
	a.logger.Debug("executing query", "sql", sql)
	rows, err := a.db.QueryContext(ctx, sql)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var out []map[string]any
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(map[string]any, len(cols))
		for i, v := range vals {
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			row[cols[i]] = v
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (a *Adapter) duckdbColumns(ctx context.Context, catalog, table string) ([]domain.TableColumn, error) {
	schema, name := splitQualifiedName(table)
	rows, err := a.db.QueryContext(ctx,
		`SELECT column_name, data_type, is_nullable FROM information_schema.columns
		 WHERE (? = '' OR table_catalog = ?) AND (? = '' OR table_schema = ?) AND table_name = ?
		 ORDER BY ordinal_position`,
		catalog, catalog, schema, schema, name)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var cols []domain.TableColumn
	for rows.Next() {
		var colName, dataType, nullable string
		if err := rows.Scan(&colName, &dataType, &nullable); err != nil {
			return nil, fmt.Errorf("scan column info: %w", err)
		}
		cols = append(cols, domain.TableColumn{
			Name:     colName,
			DataType: strings.ToUpper(dataType),
			Nullable: strings.EqualFold(nullable, "YES"),
		})
	}
	return cols, rows.Err()
}

func (a *Adapter) sqliteColumns(ctx context.Context, table string) ([]domain.TableColumn, error) {
	_, name := splitQualifiedName(table)
	rows, err := a.db.QueryContext(ctx, "SELECT name, type, \"notnull\" FROM pragma_table_info(?)", name)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var cols []domain.TableColumn
	for rows.Next() {
		var colName, dataType string
		var notNull int
		if err := rows.Scan(&colName, &dataType, &notNull); err != nil {
			return nil, fmt.Errorf("scan column info: %w", err)
		}
		cols = append(cols, domain.TableColumn{
			Name:     colName,
			DataType: strings.ToUpper(dataType),
			Nullable: notNull == 0,
		})
	}
	return cols, rows.Err()
}

// describeStatement reads the result columns of statement without fetching
// any rows.
func (a *Adapter) describeStatement(ctx context.Context, statement string) ([]domain.TableColumn, error) {
	rows, err := a.db.QueryContext(ctx, "SELECT * FROM ("+statement+") AS described LIMIT 0")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, err
	}
	cols := make([]domain.TableColumn, 0, len(types))
	for _, ct := range types {
		nullable, ok := ct.Nullable()
		cols = append(cols, domain.TableColumn{
			Name:     ct.Name(),
			DataType: strings.ToUpper(ct.DatabaseTypeName()),
			Nullable: nullable || !ok,
		})
	}
	return cols, rows.Err()
}

// splitQualifiedName splits "schema.table"; the schema is empty when absent.
func splitQualifiedName(name string) (schema, table string) {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[:i], name[i+1:]
	}
	return "", name
}
