package declarative

import (
	"context"
	"errors"
	"fmt"

	"cubesql/internal/domain"
)

// ModelClient is the subset of the semantic service used to apply bundles.
type ModelClient interface {
	GetSemanticModel(ctx context.Context, name string) (*domain.SemanticModel, error)
	CreateSemanticModel(ctx context.Context, principal string, req domain.CreateSemanticModelRequest) (*domain.SemanticModel, error)
	UpdateSemanticModel(ctx context.Context, name string, req domain.UpdateSemanticModelRequest) (*domain.SemanticModel, error)
}

// PlanBundle diffs a bundle against the stored model of the same name.
func PlanBundle(ctx context.Context, client ModelClient, b *Bundle) (*Plan, error) {
	m, err := client.GetSemanticModel(ctx, b.Name)
	var notFound *domain.NotFoundError
	switch {
	case errors.As(err, &notFound):
		return Diff(b, nil), nil
	case err != nil:
		return nil, fmt.Errorf("load model %q: %w", b.Name, err)
	}
	return Diff(b, FromModel(m)), nil
}

// Apply validates a bundle and stores it, creating the model when missing.
// It returns the executed plan; a plan without changes stores nothing.
func Apply(ctx context.Context, client ModelClient, principal string, b *Bundle) (*Plan, error) {
	if errs := Validate(b); len(errs) > 0 {
		joined := make([]error, len(errs))
		for i, e := range errs {
			joined[i] = e
		}
		return nil, domain.ErrSchemaValidation("%s", errors.Join(joined...).Error())
	}
	plan, err := PlanBundle(ctx, client, b)
	if err != nil {
		return nil, err
	}
	if len(plan.Errors) > 0 {
		return plan, fmt.Errorf("plan for %q has %d error(s)", b.Name, len(plan.Errors))
	}
	switch {
	case !plan.Exists:
		_, err = client.CreateSemanticModel(ctx, principal, b.CreateRequest())
	case len(plan.Actions) > 0:
		_, err = client.UpdateSemanticModel(ctx, b.Name, b.UpdateRequest())
	}
	if err != nil {
		return plan, err
	}
	return plan, nil
}
