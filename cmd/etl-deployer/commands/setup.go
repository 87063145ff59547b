package commands

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/meridian-data/etl-deployer/internal/di"
	"github.com/meridian-data/etl-deployer/internal/provision"
)

// SetupCommand returns the setup command that provisions the full pipeline
func SetupCommand(logger *zerolog.Logger) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Provision the ETL pipeline resources in AWS",
		Description: `Reconciles the full pipeline against the target account: source and
destination buckets, IAM roles, the trigger function, the Glue job, the S3
event wiring, and (unless disabled) the log group and error alarm.

Setup is idempotent: re-running it against an unchanged configuration makes
no changes. Generated IAM policies are validated against the embedded policy
rules before any resource is touched.

Examples:
  # Provision dev with a freshly packaged artifact
  etl-deployer setup --env dev --artifact dist/trigger.zip --glue-script scripts/glue_etl_job.py

  # Show the resource set without creating anything
  etl-deployer setup --env dev --artifact dist/trigger.zip --dry-run`,
		Flags: append(projectFlags(),
			&cli.StringFlag{
				Name:    "artifact",
				Usage:   "Path to the packaged trigger function archive",
				Value:   "dist/trigger.zip",
				EnvVars: []string{"TRIGGER_ARTIFACT"},
			},
			&cli.StringFlag{
				Name:  "glue-script",
				Usage: "Local path of the Glue ETL script to upload",
			},
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "Show what would be created without creating it",
			},
			&cli.StringFlag{
				Name:    "credentials-secret",
				Usage:   "Secrets Manager secret holding static AWS credentials",
				EnvVars: []string{"CREDENTIALS_SECRET"},
			},
		),
		Action: func(c *cli.Context) error {
			// The AWS config provider reads the secret name from the
			// environment so the Lambda entry points share the same path.
			if secret := c.String("credentials-secret"); secret != "" {
				if err := os.Setenv("CREDENTIALS_SECRET", secret); err != nil {
					return err
				}
			}

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

			applier := di.MustGet[*provision.Applier](container)
			ctx := logger.WithContext(c.Context)
			return applier.Apply(ctx, plan, provision.ApplyOptions{
				ArtifactPath:   c.String("artifact"),
				GlueScriptPath: c.String("glue-script"),
				DryRun:         c.Bool("dry-run"),
			})
		},
	}
}
