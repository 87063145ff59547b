package main

import (
	"context"
	"os"

	"github.com/meridian-data/etl-deployer/cmd/etl-deployer/commands"
	"github.com/meridian-data/etl-deployer/internal/di"
	"github.com/urfave/cli/v2"
)

func main() {
	logger := di.ProvideLogger()
	ctx := logger.WithContext(context.Background())

	app := &cli.App{
		Name:  "etl-deployer",
		Usage: "Serverless ETL pipeline deployment toolkit",
		Description: `A unified CLI tool for deploying and operating the S3 -> Lambda -> Glue
ETL pipeline.

This tool provides commands for:
  - Provisioning the pipeline's AWS resources (buckets, roles, function, job)
  - Packaging the trigger function into a deterministic deployment artifact
  - Importing hand-created resources into tracked state
  - Uploading input files and watching pipeline runs`,
		Commands: []*cli.Command{
			commands.SetupCommand(&logger),
			commands.TeardownCommand(&logger),
			commands.PackageCommand(&logger),
			commands.ImportCommand(&logger),
			commands.RunLocalCommand(&logger),
			commands.MonitorCommand(&logger),
			commands.ResourcesCommand(&logger),
		},
	}

	if err := app.RunContext(ctx, os.Args); err != nil {
		logger.Error().Err(err).Msg("Application error")
		os.Exit(1)
	}
}
