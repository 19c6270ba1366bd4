package app

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"cubesql/internal/declarative"
)

// maxParallelImports bounds concurrent model directory imports.
const maxParallelImports = 4

// ImportResult is the outcome of importing one model directory.
type ImportResult struct {
	Dir  string
	Plan *declarative.Plan
}

// ImportModels loads, validates and stores each model directory. Directories
// are processed concurrently; the first failure cancels the rest.
func (a *App) ImportModels(ctx context.Context, principal string, dirs []string) ([]ImportResult, error) {
	results := make([]ImportResult, len(dirs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelImports)
	for i, dir := range dirs {
		g.Go(func() error {
			b, err := declarative.LoadDirectory(dir)
			if err != nil {
				return err
			}
			plan, err := declarative.Apply(gctx, a.Service, principal, b)
			if err != nil {
				return fmt.Errorf("import %s: %w", dir, err)
			}
			results[i] = ImportResult{Dir: dir, Plan: plan}
			a.logger.Info("imported model", "model", b.Name, "dir", dir, "changes", len(plan.Actions))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
