package workflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/dukex/agencyflow/pkg/identity"
	"github.com/dukex/agencyflow/pkg/models"
	"github.com/dukex/agencyflow/pkg/persistence"
)

// ROUND_ROBIN pools are selected by AssigneeValue: "role:<name>",
// "department:<name>", a bare role name, or empty for the whole organization.
const (
	poolRolePrefix       = "role:"
	poolDepartmentPrefix = "department:"
)

// Resolver computes the concrete identity acting on a step.
type Resolver struct {
	directory identity.Directory
	cursor    persistence.RotationCursor
}

func NewResolver(directory identity.Directory, cursor persistence.RotationCursor) *Resolver {
	return &Resolver{directory: directory, cursor: cursor}
}

// ResolveAssignee dispatches on the step's assignee type. Only ROUND_ROBIN has a
// side effect: it advances the rotation cursor of the step.
func (r *Resolver) ResolveAssignee(ctx context.Context, run *models.WorkflowRun, index int) (*models.Identity, error) {
	step := run.Steps[index]

	switch step.AssigneeType {
	case models.AssigneeSpecificUser:
		return r.user(ctx, run, step.AssigneeValue)

	case models.AssigneeByRole:
		members, err := r.directory.MembersWithRole(ctx, run.OrganizationID, step.AssigneeValue)
		if err != nil {
			return nil, err
		}

		return first(members, "role "+step.AssigneeValue)

	case models.AssigneeByDepartment:
		members, err := r.directory.MembersInDepartment(ctx, run.OrganizationID, step.AssigneeValue)
		if err != nil {
			return nil, err
		}

		return first(members, "department "+step.AssigneeValue)

	case models.AssigneeFromTrigger:
		field := step.AssigneeValue
		if field == "" {
			field = models.ContextOwnerField
		}

		ownerID, _ := run.Context[field].(string)
		if ownerID == "" {
			return nil, fmt.Errorf("%w: %q", ErrMissingContextField, field)
		}

		return r.user(ctx, run, ownerID)

	case models.AssigneeRoundRobin:
		return r.roundRobin(ctx, run, step)

	case models.AssigneePreviousActor:
		previous := run.PreviousExecution(index)
		if previous == nil {
			return nil, fmt.Errorf("%w: step %s", ErrNoPreviousStep, step.ID)
		}

		return r.user(ctx, run, previous.ResolvedAssigneeID)
	}

	return nil, fmt.Errorf("%w: unknown assignee type %q", ErrInvalidStep, step.AssigneeType)
}

func (r *Resolver) user(ctx context.Context, run *models.WorkflowRun, id string) (*models.Identity, error) {
	user, err := r.directory.UserByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if user.OrganizationID != run.OrganizationID {
		return nil, fmt.Errorf("%w: %s is not a member of organization %s", ErrUnknownUser, id, run.OrganizationID)
	}

	return user, nil
}

func (r *Resolver) roundRobin(ctx context.Context, run *models.WorkflowRun, step *models.WorkflowStep) (*models.Identity, error) {
	var (
		pool []*models.Identity
		err  error
	)

	switch value := step.AssigneeValue; {
	case value == "":
		pool, err = r.directory.Members(ctx, run.OrganizationID)
	case strings.HasPrefix(value, poolDepartmentPrefix):
		pool, err = r.directory.MembersInDepartment(ctx, run.OrganizationID, strings.TrimPrefix(value, poolDepartmentPrefix))
	default:
		pool, err = r.directory.MembersWithRole(ctx, run.OrganizationID, strings.TrimPrefix(value, poolRolePrefix))
	}

	if err != nil {
		return nil, err
	}

	if len(pool) == 0 {
		return nil, fmt.Errorf("%w: round robin pool %q", ErrEmptyCandidatePool, step.AssigneeValue)
	}

	position, err := r.cursor.Next(ctx, rotationKey(step))
	if err != nil {
		return nil, fmt.Errorf("failed to advance rotation cursor: %w", err)
	}

	return pool[position%int64(len(pool))], nil
}

// rotationKey scopes the cursor to the step, shared by every run of the definition.
func rotationKey(step *models.WorkflowStep) string {
	return "step:" + step.ID
}

// first picks the lowest id; directories return members sorted by id.
func first(members []*models.Identity, pool string) (*models.Identity, error) {
	if len(members) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyCandidatePool, pool)
	}

	return members[0], nil
}
