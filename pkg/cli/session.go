package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"cubesql/internal/app"
	"cubesql/internal/declarative"
	"cubesql/internal/dialect"
	"cubesql/internal/discovery"
	"cubesql/internal/domain"
	"cubesql/internal/service/semantic"
)

// session is an opened model and the services to compile against it.
type session struct {
	svc   *semantic.Service
	exec  domain.QueryExecutor
	model string
	close func() error
}

// modelFlags select a model either from the store or from a directory.
type modelFlags struct {
	model string
	dir   string
}

func (f *modelFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.model, "model", "m", "", "Stored semantic model name")
	cmd.Flags().StringVarP(&f.dir, "dir", "d", "", "Compile from a model directory instead of the store")
	cmd.MarkFlagsMutuallyExclusive("model", "dir")
	cmd.MarkFlagsOneRequired("model", "dir")
}

// openSession opens the model named by f. Directory models never touch the
// model store; the warehouse is opened either way when configured.
func openSession(ctx context.Context, rt *runtime, f modelFlags) (*session, error) {
	if f.dir == "" {
		a, err := app.New(ctx, app.Deps{Cfg: rt.cfg, Logger: rt.logger})
		if err != nil {
			return nil, err
		}
		return &session{svc: a.Service, exec: a.Executor(), model: f.model, close: a.Close}, nil
	}

	b, err := declarative.LoadDirectory(f.dir)
	if err != nil {
		return nil, fmt.Errorf("load model: %w", err)
	}
	if verrs := declarative.Validate(b); len(verrs) > 0 {
		errs := make([]error, len(verrs))
		for i, ve := range verrs {
			errs[i] = ve
		}
		return nil, errors.Join(errs...)
	}
	d, err := dialect.Lookup(b.Dialect)
	if err != nil {
		return nil, err
	}

	s := &session{model: b.Name, close: func() error { return nil }}
	var discover domain.SchemaDiscoverer
	if rt.cfg.DiscoveryEnabled() {
		wh, err := discovery.Open(discovery.Driver(rt.cfg.DiscoveryDriver), rt.cfg.DiscoveryDSN, rt.logger)
		if err != nil {
			return nil, fmt.Errorf("open warehouse: %w", err)
		}
		discover, s.exec, s.close = wh, wh, wh.Close
	}

	schema := b.Schema
	ds, err := semantic.NewDataSource(semantic.DataSourceOptions{
		Name:       b.Name,
		Dialect:    d,
		Catalog:    b.Catalog,
		Schema:     &schema,
		Discoverer: discover,
		Logger:     rt.logger,
	})
	if err != nil {
		_ = s.close()
		return nil, err
	}
	reg := semantic.NewRegistry(nil, discover, rt.logger)
	reg.Register(ds)
	s.svc = semantic.NewService(nil, reg, nil)
	return s, nil
}

func (s *session) executor() (domain.QueryExecutor, error) {
	if s.exec == nil {
		return nil, errors.New("no warehouse configured: set CUBESQL_DISCOVERY_DRIVER and CUBESQL_DISCOVERY_DSN")
	}
	return s.exec, nil
}

// readQuery decodes a YAML or JSON query from path, or stdin for "-".
func readQuery(cmd *cobra.Command, path string) (domain.Query, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path) //nolint:gosec // path is user-provided
	}
	if err != nil {
		return domain.Query{}, fmt.Errorf("read query: %w", err)
	}
	return declarative.DecodeQuery(data)
}
