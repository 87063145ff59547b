package commands

import (
	"github.com/urfave/cli/v2"

	"github.com/meridian-data/etl-deployer/internal/config"
	"github.com/meridian-data/etl-deployer/internal/di"
)

// projectFlags are shared by every command that addresses one pipeline.
func projectFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "project",
			Aliases: []string{"p"},
			Usage:   "Project name, the first component of every resource name",
			Value:   config.DefaultProjectName,
			EnvVars: []string{"PROJECT_NAME"},
		},
		&cli.StringFlag{
			Name:    "env",
			Aliases: []string{"e"},
			Usage:   "Deployment environment (dev, staging, prod)",
			Value:   "dev",
			EnvVars: []string{"ENV"},
		},
		&cli.StringFlag{
			Name:    "region",
			Usage:   "AWS region",
			EnvVars: []string{"AWS_REGION"},
		},
	}
}

// newContainer builds the DI container for a command invocation. Extra
// providers register the AWS service wrappers the command actually uses.
func newContainer(c *cli.Context, providers ...any) (di.Container, error) {
	return di.New(c.String("env"),
		di.WithProject(c.String("project")),
		di.WithProviders(providers...),
	)
}

// loadConfig resolves the deployment configuration and applies command-line
// overrides on top of it.
func loadConfig(c *cli.Context, container di.Container) *config.Config {
	cfg := di.MustGet[*config.Config](container)
	if region := c.String("region"); region != "" {
		cfg.Region = region
	}
	cfg.ApplyDerivedDefaults()
	return cfg
}
