package main

import (
	"context"

	"github.com/dukex/agencyflow/pkg/log"
	"github.com/dukex/agencyflow/pkg/workflow"
	cli "github.com/urfave/cli/v3"
)

func SchedulerCommand() *cli.Command {
	return &cli.Command{
		Name:  "scheduler",
		Usage: "Start runs of active SCHEDULED workflow definitions on their cron schedule",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:    "sync-interval",
				Usage:   "How often to reload scheduled definitions",
				Value:   workflow.DefaultSyncInterval,
				Sources: cli.EnvVars("SCHEDULER_SYNC_INTERVAL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"), command.String("log-format"))

			logger := log.WithModule("scheduler")

			logger.InfoContext(ctx, "Initializing agencyflow scheduler")

			rt, err := newRuntime(ctx, command, logger)
			if err != nil {
				return err
			}
			defer rt.Close(ctx)

			scheduler := workflow.NewScheduler(rt.engine, rt.persistence, logger)

			return scheduler.Run(ctx, command.Duration("sync-interval"))
		},
	}
}
