package commands

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/meridian-data/etl-deployer/internal/dao/resourcedao"
	"github.com/meridian-data/etl-deployer/internal/di"
)

// ResourcesCommand returns the resources command that lists tracked state
func ResourcesCommand(logger *zerolog.Logger) *cli.Command {
	return &cli.Command{
		Name:  "resources",
		Usage: "List the pipeline's tracked resources",
		Description: `Prints every Managed Resource Descriptor recorded for the project and
environment, with its external identifier and tracking timestamps.

Examples:
  etl-deployer resources --env dev`,
		Flags: projectFlags(),
		Action: func(c *cli.Context) error {
			container, err := newContainer(c)
			if err != nil {
				return err
			}

			cfg := loadConfig(c, container)
			dao := di.MustGet[*resourcedao.DAO](container)

			ctx := logger.WithContext(c.Context)
			records, err := dao.Query(ctx, cfg.ProjectName, cfg.Env)
			if err != nil {
				return err
			}

			if len(records) == 0 {
				fmt.Printf("No tracked resources for %s/%s\n", cfg.ProjectName, cfg.Env)
				return nil
			}

			for _, r := range records {
				tracked := time.Unix(r.CreatedAt, 0).UTC().Format(time.RFC3339)
				fmt.Printf("%-50s %-40s tracked=%s\n", r.SK, r.ExternalID, tracked)
			}
			fmt.Printf("%d resources\n", len(records))
			return nil
		},
	}
}
