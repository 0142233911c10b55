package workflow

import (
	"context"
	"fmt"

	"github.com/dukex/agencyflow/pkg/models"
	"github.com/dukex/agencyflow/pkg/template"
)

// Predicate decides which branch a CONDITION step takes.
type Predicate interface {
	Evaluate(ctx context.Context, run *models.WorkflowRun, condition *models.StepCondition) (bool, error)
}

// PredicateFunc adapts a function to Predicate.
type PredicateFunc func(ctx context.Context, run *models.WorkflowRun, condition *models.StepCondition) (bool, error)

func (f PredicateFunc) Evaluate(ctx context.Context, run *models.WorkflowRun, condition *models.StepCondition) (bool, error) {
	return f(ctx, run, condition)
}

// TemplatePredicate renders the condition expression against the run data
// (.context, .run and .steps) and expects "true" or "false".
type TemplatePredicate struct{}

func (TemplatePredicate) Evaluate(_ context.Context, run *models.WorkflowRun, condition *models.StepCondition) (bool, error) {
	result, err := template.EvaluateBool(condition.Expression, template.RunData(run))
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrConditionFailed, err)
	}

	return result, nil
}
