package commands

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/meridian-data/etl-deployer/internal/di"
	"github.com/meridian-data/etl-deployer/internal/provision"
)

// TeardownCommand returns the teardown command that removes the pipeline
func TeardownCommand(logger *zerolog.Logger) *cli.Command {
	return &cli.Command{
		Name:  "teardown",
		Usage: "Delete the ETL pipeline resources and empty its buckets",
		Description: `Removes every pipeline resource in reverse dependency order: alarm, log
group, Glue job, trigger function, roles, and finally the buckets including
their contents. Resources that are already gone are skipped.

Examples:
  # Tear down dev after confirming
  etl-deployer teardown --env dev

  # Skip the confirmation prompt
  etl-deployer teardown --env dev --force`,
		Flags: append(projectFlags(),
			&cli.BoolFlag{
				Name:    "force",
				Aliases: []string{"f"},
				Usage:   "Skip confirmation prompt",
			},
		),
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
			plan, err := provision.NewPlan(cfg)
			if err != nil {
				return err
			}

			if !c.Bool("force") {
				fmt.Printf("This deletes all resources and data for %s/%s, including bucket contents.\n",
					cfg.ProjectName, cfg.Env)
				fmt.Print("Type the environment name to continue: ")
				reader := bufio.NewReader(os.Stdin)
				answer, _ := reader.ReadString('\n')
				if strings.TrimSpace(answer) != cfg.Env {
					fmt.Println("Aborted.")
					return nil
				}
			}

			applier := di.MustGet[*provision.Applier](container)
			ctx := logger.WithContext(c.Context)
			return applier.Destroy(ctx, plan)
		},
	}
}
