package commands

import (
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/meridian-data/etl-deployer/internal/dao/resourcedao"
	"github.com/meridian-data/etl-deployer/internal/di"
	"github.com/meridian-data/etl-deployer/internal/importer"
	"github.com/meridian-data/etl-deployer/internal/provision"
)

// ImportCommand returns the import command that adopts existing resources
func ImportCommand(logger *zerolog.Logger) *cli.Command {
	return &cli.Command{
		Name:    "import-resources",
		Aliases: []string{"import"},
		Usage:   "Import already-existing pipeline resources into tracked state",
		Description: `Walks the pipeline's declared resource set in dependency order and, for
each resource that exists in the account but is missing from tracked state,
records it. Resources already tracked are skipped; resources absent from the
account are reported and left alone; a resource whose parent is untracked is
blocked without being attempted.

One resource's failure never aborts the run. The command exits non-zero only
when at least one resource failed for an unexpected reason (for example a
permission error), so re-running after fixing credentials converges.

Examples:
  etl-deployer import-resources --env dev
  etl-deployer import-resources --env prod --project sales-pipeline`,
		Flags: projectFlags(),
		Action: func(c *cli.Context) error {
			container, err := newContainer(c,
				di.ProvideGlueService,
				di.ProvideLambdaService,
				di.ProvideCloudWatchService,
				provision.NewResourceLookup,
			)
			if err != nil {
				return err
			}

			cfg := loadConfig(c, container)
			plan, err := provision.NewPlan(cfg)
			if err != nil {
				return err
			}

			dao := di.MustGet[*resourcedao.DAO](container)
			lookup := di.MustGet[*provision.ResourceLookup](container)
			store := importer.NewDAOStore(dao, cfg.ProjectName, cfg.Env)

			ctx := logger.WithContext(c.Context)
			summary, err := importer.New(store, lookup).Run(ctx, provision.ImportCandidates(plan))
			importer.PrintSummary(summary)
			return err
		},
	}
}
