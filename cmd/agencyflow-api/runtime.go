package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dukex/agencyflow/pkg/cmd"
	"github.com/dukex/agencyflow/pkg/eventbus"
	"github.com/dukex/agencyflow/pkg/identity"
	"github.com/dukex/agencyflow/pkg/metrics"
	"github.com/dukex/agencyflow/pkg/otelhelper"
	"github.com/dukex/agencyflow/pkg/persistence"
	"github.com/dukex/agencyflow/pkg/workdays"
	"github.com/dukex/agencyflow/pkg/workflow"
	cli "github.com/urfave/cli/v3"
)

const serviceName = "agencyflow-api"

// runtime holds the collaborators shared by every subcommand.
type runtime struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	directory   identity.Directory
	eventBus    eventbus.EventBus
	metrics     *metrics.Metrics
	weekend     workdays.Weekend
	definitions *workflow.Definitions
	engine      *workflow.Engine

	closers []func(ctx context.Context) error
}

func newRuntime(ctx context.Context, command *cli.Command, logger *slog.Logger) (*runtime, error) {
	rt := &runtime{logger: logger, metrics: metrics.New()}

	weekend, err := workdays.ParseWeekend(command.String("weekend"))
	if err != nil {
		return nil, fmt.Errorf("invalid --weekend: %w", err)
	}

	rt.weekend = weekend

	directory, err := loadDirectory(command.String("directory-file"), logger)
	if err != nil {
		return nil, err
	}

	rt.directory = directory

	base, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize persistence: %w", err)
	}

	rt.closers = append(rt.closers, base.Close)

	rt.persistence, err = cmd.WithRedisRotation(ctx, logger, base, command.String("redis-url"))
	if err != nil {
		rt.Close(ctx)

		return nil, fmt.Errorf("failed to initialize rotation cursor: %w", err)
	}

	// the wrapper closes base as well
	rt.closers[len(rt.closers)-1] = rt.persistence.Close

	rt.eventBus, err = cmd.NewEventBus(command.String("event-bus"), command.String("kafka-brokers"), logger)
	if err != nil {
		rt.Close(ctx)

		return nil, err
	}

	rt.closers = append(rt.closers, func(context.Context) error { return rt.eventBus.Close() })

	tracer := otelhelper.NoopTracer()

	if command.Bool("otel-enabled") {
		tracer, err = otelhelper.NewTracer(ctx, serviceName)
		if err != nil {
			rt.Close(ctx)

			return nil, fmt.Errorf("failed to initialize tracer: %w", err)
		}

		rt.closers = append(rt.closers, otelhelper.Shutdown)
	}

	rt.definitions = workflow.NewDefinitions(rt.persistence, logger)
	rt.engine = workflow.NewEngine(rt.persistence, rt.directory, logger,
		workflow.WithPublisher(rt.eventBus),
		workflow.WithTracer(tracer),
		workflow.WithMetrics(rt.metrics),
		workflow.WithWeekend(weekend),
	)

	return rt, nil
}

// Close releases resources in reverse order of acquisition.
func (rt *runtime) Close(ctx context.Context) {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](ctx); err != nil {
			rt.logger.ErrorContext(ctx, "Failed to release resource", "error", err)
		}
	}

	rt.closers = nil
}

func loadDirectory(path string, logger *slog.Logger) (*identity.StaticDirectory, error) {
	if path == "" {
		logger.Warn("No directory file configured, every caller and assignee lookup will fail")

		return identity.NewStaticDirectory(), nil
	}

	directory, err := identity.LoadFile(path)
	if err != nil {
		return nil, err
	}

	return directory, nil
}
