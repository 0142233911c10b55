package main

import (
	"context"

	"github.com/dukex/agencyflow/pkg/dashboard"
	"github.com/dukex/agencyflow/pkg/layout"
	"github.com/dukex/agencyflow/pkg/log"
	"github.com/dukex/agencyflow/pkg/notify"
	"github.com/dukex/agencyflow/pkg/services"
	"github.com/dukex/agencyflow/pkg/web"
	"github.com/go-playground/validator/v10"
	cli "github.com/urfave/cli/v3"
)

func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "Start the HTTP API and the notification subscriber",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:    "blackouts-file",
				Usage:   "YAML file listing leave blackout periods",
				Sources: cli.EnvVars("BLACKOUTS_FILE"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"), command.String("log-format"))

			logger := log.WithModule("api")

			logger.InfoContext(ctx, "Initializing agencyflow API")

			rt, err := newRuntime(ctx, command, logger)
			if err != nil {
				return err
			}
			defer rt.Close(ctx)

			blackouts := services.NewStaticBlackouts()
			if path := command.String("blackouts-file"); path != "" {
				blackouts, err = services.LoadBlackoutsFile(path)
				if err != nil {
					return err
				}
			}

			notifier := notify.NewNotifier(
				rt.eventBus,
				rt.persistence.RunRepository(),
				notify.NewLogDispatcher(log.WithModule("notifications")),
				logger,
			)
			if err := notifier.Start(ctx); err != nil {
				return err
			}

			widgets := layout.DefaultRegistry()

			handlers := web.NewAPIHandlers(
				rt.definitions,
				rt.engine,
				dashboard.NewStore(rt.persistence.DashboardRepository(), widgets, logger),
				widgets,
				services.NewLeave(blackouts, rt.weekend),
				services.NewHealth(rt.persistence),
				rt.directory,
				validator.New(validator.WithRequiredStructEnabled()),
			)

			api := NewAPI(logger, handlers, rt.metrics.Gatherer())

			err = api.Start(command.Int("port"))
			if err != nil {
				logger.ErrorContext(ctx, "Failed to start API server", "error", err)
			}

			return err
		},
	}
}
