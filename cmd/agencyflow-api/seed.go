package main

import (
	"context"
	"fmt"
	"os"

	"github.com/dukex/agencyflow/pkg/log"
	"github.com/dukex/agencyflow/pkg/models"
	"github.com/dukex/agencyflow/pkg/workflow"
	cli "github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

// seedFile is the YAML document accepted by the seed command:
//
//	organization_id: org-1
//	created_by: alice
//	definitions:
//	  - name: Campaign launch
//	    trigger_type: MANUAL
//	    active: true
//	    steps:
//	      - name: Brief
//	        step_type: TASK
//	        assignee_type: BY_ROLE
//	        assignee_value: account_manager
type seedFile struct {
	OrganizationID string           `yaml:"organization_id"`
	CreatedBy      string           `yaml:"created_by"`
	Definitions    []seedDefinition `yaml:"definitions"`
}

type seedDefinition struct {
	Name            string         `yaml:"name"`
	Description     string         `yaml:"description"`
	Color           string         `yaml:"color"`
	TriggerType     string         `yaml:"trigger_type"`
	TriggerEntity   string         `yaml:"trigger_entity"`
	TriggerConfig   map[string]any `yaml:"trigger_config"`
	DefaultSLAHours *int           `yaml:"default_sla_hours"`
	Active          bool           `yaml:"active"`
	Steps           []seedStep     `yaml:"steps"`
}

type seedStep struct {
	Name          string         `yaml:"name"`
	Description   string         `yaml:"description"`
	StepType      string         `yaml:"step_type"`
	AssigneeType  string         `yaml:"assignee_type"`
	AssigneeValue string         `yaml:"assignee_value"`
	SLAHours      *int           `yaml:"sla_hours"`
	MaxRevisions  *int           `yaml:"max_revisions"`
	Condition     *seedCondition `yaml:"condition"`
	FormSchema    map[string]any `yaml:"form_schema"`
}

type seedCondition struct {
	Expression string `yaml:"expression"`
	TrueOrder  int    `yaml:"true_order"`
	FalseOrder int    `yaml:"false_order"`
}

func SeedCommand() *cli.Command {
	return &cli.Command{
		Name:  "seed",
		Usage: "Create workflow definitions from a YAML file",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "file",
				Aliases:  []string{"f"},
				Usage:    "YAML file with the definitions to create",
				Required: true,
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"), command.String("log-format"))

			logger := log.WithModule("seed")

			document, err := loadSeedFile(command.String("file"))
			if err != nil {
				return err
			}

			rt, err := newRuntime(ctx, command, logger)
			if err != nil {
				return err
			}
			defer rt.Close(ctx)

			created, err := seed(ctx, rt.definitions, document)
			if err != nil {
				return err
			}

			for _, definition := range created {
				logger.InfoContext(ctx, "Seeded workflow definition",
					"definition_id", definition.ID,
					"name", definition.Name,
					"steps", len(definition.Steps),
					"active", definition.IsActive)
			}

			return nil
		},
	}
}

func loadSeedFile(path string) (*seedFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}

	var document seedFile
	if err := yaml.Unmarshal(data, &document); err != nil {
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}

	return &document, nil
}

// seed creates every definition of document with its steps, activating those
// marked active. It stops at the first failure.
func seed(ctx context.Context, definitions *workflow.Definitions, document *seedFile) ([]*models.WorkflowDefinition, error) {
	created := make([]*models.WorkflowDefinition, 0, len(document.Definitions))

	for _, entry := range document.Definitions {
		definition, err := definitions.CreateDefinition(ctx, workflow.CreateDefinitionInput{
			OrganizationID:  document.OrganizationID,
			Name:            entry.Name,
			Description:     entry.Description,
			Color:           entry.Color,
			TriggerType:     models.TriggerType(entry.TriggerType),
			TriggerEntity:   entry.TriggerEntity,
			TriggerConfig:   entry.TriggerConfig,
			DefaultSLAHours: entry.DefaultSLAHours,
			CreatedBy:       document.CreatedBy,
		})
		if err != nil {
			return created, fmt.Errorf("definition %q: %w", entry.Name, err)
		}

		for _, step := range entry.Steps {
			input := workflow.CreateStepInput{
				DefinitionID:  definition.ID,
				Name:          step.Name,
				Description:   step.Description,
				StepType:      models.StepType(step.StepType),
				AssigneeType:  models.AssigneeType(step.AssigneeType),
				AssigneeValue: step.AssigneeValue,
				SLAHours:      step.SLAHours,
				MaxRevisions:  step.MaxRevisions,
				FormSchema:    step.FormSchema,
			}

			if step.Condition != nil {
				input.Condition = &models.StepCondition{
					Expression: step.Condition.Expression,
					TrueOrder:  step.Condition.TrueOrder,
					FalseOrder: step.Condition.FalseOrder,
				}
			}

			if _, err := definitions.CreateStep(ctx, input); err != nil {
				return created, fmt.Errorf("definition %q step %q: %w", entry.Name, step.Name, err)
			}
		}

		if entry.Active {
			active := true

			_, err = definitions.UpdateDefinition(ctx, definition.ID, workflow.UpdateDefinitionInput{IsActive: &active})
			if err != nil {
				return created, fmt.Errorf("definition %q: %w", entry.Name, err)
			}
		}

		definition, err = definitions.GetDefinition(ctx, definition.ID)
		if err != nil {
			return created, err
		}

		created = append(created, definition)
	}

	return created, nil
}
