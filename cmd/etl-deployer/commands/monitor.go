package commands

import (
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/meridian-data/etl-deployer/internal/di"
	"github.com/meridian-data/etl-deployer/internal/monitor"
)

// MonitorCommand returns the monitor command that reports pipeline health
func MonitorCommand(logger *zerolog.Logger) *cli.Command {
	return &cli.Command{
		Name:  "monitor",
		Usage: "Show the current state of the deployed pipeline",
		Description: `Reports the trigger function's configuration, the most recent Glue job
runs, recent log events, and the objects produced under the output prefix.

Examples:
  etl-deployer monitor --env dev`,
		Flags: projectFlags(),
		Action: func(c *cli.Context) error {
			container, err := newContainer(c,
				di.ProvideGlueService,
				di.ProvideLambdaService,
				di.ProvideCloudWatchService,
			)
			if err != nil {
				return err
			}

			cfg := loadConfig(c, container)
			mon := di.MustGet[*monitor.Monitor](container)

			ctx := logger.WithContext(c.Context)
			report, err := mon.Snapshot(ctx, cfg)
			if err != nil {
				return err
			}

			mon.Print(report)
			return nil
		},
	}
}
