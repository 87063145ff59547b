package commands

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/meridian-data/etl-deployer/internal/di"
	"github.com/meridian-data/etl-deployer/internal/services"
)

// RunLocalCommand returns the run-local command that feeds input into the pipeline
func RunLocalCommand(logger *zerolog.Logger) *cli.Command {
	return &cli.Command{
		Name:    "run-local",
		Aliases: []string{"upload"},
		Usage:   "Exercise the pipeline with a local input file",
		Description: `Puts a local CSV or JSON file under the input prefix of the source
bucket. In a deployed pipeline the upload itself triggers the ETL job via
the bucket notification; --simulate skips the upload and invokes the
dispatch path directly, which is useful before the event wiring exists.

Examples:
  etl-deployer run-local --env dev --file data/sales.csv
  etl-deployer run-local --env dev --file data/sales.csv --simulate`,
		Flags: append(projectFlags(),
			&cli.StringFlag{
				Name:     "file",
				Aliases:  []string{"f"},
				Usage:    "Local file to upload",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "key",
				Usage: "Object key override; defaults to the input prefix plus the file name",
			},
			&cli.BoolFlag{
				Name:  "simulate",
				Usage: "Skip the upload and start the Glue job run directly",
			},
		),
		Action: func(c *cli.Context) error {
			container, err := newContainer(c, di.ProvideGlueService)
			if err != nil {
				return err
			}

			cfg := loadConfig(c, container)
			path := c.String("file")

			ext := strings.ToLower(filepath.Ext(path))
			if ext != ".csv" && ext != ".json" {
				return fmt.Errorf("unsupported input file type %q, expected .csv or .json", ext)
			}

			key := c.String("key")
			if key == "" {
				key = services.UploadKey(cfg.InputPrefix, path)
			}

			ctx := logger.WithContext(c.Context)

			if !c.Bool("simulate") {
				s3Service := di.MustGet[*services.S3Service](container)
				if err := s3Service.Upload(ctx, cfg.SourceBucket, key, path); err != nil {
					return err
				}
				fmt.Printf("✓ Uploaded s3://%s/%s\n", cfg.SourceBucket, key)
				return nil
			}

			glueService := di.MustGet[*services.GlueService](container)
			runID, err := glueService.StartJobRun(ctx, cfg.GlueJobName, services.JobParameters{
				SourceBucket:      cfg.SourceBucket,
				SourceKey:         key,
				DestinationBucket: cfg.DestinationBucket,
				OutputPrefix:      cfg.OutputPrefix,
			})
			if err != nil {
				return err
			}
			fmt.Printf("✓ Started job run %s for %s\n", runID, cfg.GlueJobName)
			return nil
		},
	}
}
