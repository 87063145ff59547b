package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/meridian-data/etl-deployer/internal/config"
	"github.com/meridian-data/etl-deployer/internal/di"
	"github.com/meridian-data/etl-deployer/internal/errors"
	"github.com/meridian-data/etl-deployer/internal/services"
)

// JobStarter starts one ETL job run. Satisfied by services.GlueService.
type JobStarter interface {
	StartJobRun(ctx context.Context, jobName string, params services.JobParameters) (string, error)
}

// MetricSink publishes pipeline metrics. Satisfied by services.CloudWatchService.
type MetricSink interface {
	PutPipelineMetric(ctx context.Context, name string, value float64, unit cwtypes.StandardUnit) error
}

// Handler dispatches one Glue job run per qualifying S3 record. It performs
// no downloads, no parsing, and no retries: a failed dispatch is reported and
// left to the platform's event redelivery.
type Handler struct {
	jobs    JobStarter
	metrics MetricSink // optional
	cfg     *config.Config
}

func NewHandler(jobs JobStarter, metrics MetricSink, cfg *config.Config) *Handler {
	return &Handler{
		jobs:    jobs,
		metrics: metrics,
		cfg:     cfg,
	}
}

func (h *Handler) HandleS3Event(ctx context.Context, event events.S3Event) error {
	logger := zerolog.Ctx(ctx)

	// A dispatch with either of these blank would start an unusable job run.
	if h.cfg.GlueJobName == "" {
		return errors.ErrGlueJobNameRequired
	}
	if h.cfg.DestinationBucket == "" {
		return errors.ErrDestinationRequired
	}

	for i := range event.Records {
		if err := h.processS3Record(ctx, &event.Records[i]); err != nil {
			logger.Error().Err(err).Msg("Error processing S3 record")
			return err
		}
	}
	return nil
}

func (h *Handler) processS3Record(ctx context.Context, record *events.S3EventRecord) error {
	logger := zerolog.Ctx(ctx)

	if record.EventSource != "aws:s3" {
		return nil // Silently ignore events from other sources
	}

	bucket := record.S3.Bucket.Name
	rawKey := record.S3.Object.Key
	if bucket == "" || rawKey == "" {
		return fmt.Errorf("%w: missing bucket or object key", errors.ErrInvalidEventRecord)
	}

	// S3 event keys arrive URL-encoded
	key, err := url.QueryUnescape(rawKey)
	if err != nil {
		return fmt.Errorf("%w: undecodable object key %q", errors.ErrInvalidEventRecord, rawKey)
	}

	if !strings.HasPrefix(key, h.cfg.InputPrefix) {
		logger.Debug().Str("key", key).Msg("Object outside input prefix, ignoring")
		return nil
	}

	ext := strings.ToLower(filepath.Ext(key))
	if ext != ".csv" && ext != ".json" {
		logger.Debug().Str("key", key).Msg("Unsupported object extension, ignoring")
		return nil
	}

	runID, err := h.jobs.StartJobRun(ctx, h.cfg.GlueJobName, services.JobParameters{
		SourceBucket:      bucket,
		SourceKey:         key,
		DestinationBucket: h.cfg.DestinationBucket,
		OutputPrefix:      h.cfg.OutputPrefix,
	})
	if err != nil {
		return fmt.Errorf("failed to start job run for s3://%s/%s: %w", bucket, key, err)
	}

	if h.metrics != nil && h.cfg.LogsEnabled {
		if err := h.metrics.PutPipelineMetric(ctx, services.MetricPipelineStarted, 1, cwtypes.StandardUnitCount); err != nil {
			logger.Warn().Err(err).Msg("Failed to publish pipeline metric")
		}
	}

	logger.Info().
		Str("bucket", bucket).
		Str("key", key).
		Str("job", h.cfg.GlueJobName).
		Str("run_id", runID).
		Msg("Dispatched ETL job run")
	return nil
}

func main() {
	logger := di.ProvideLogger().With().Str("lambda", "s3-trigger").Logger()

	env := os.Getenv("ENV")
	if env == "" {
		env = "dev"
	}

	container, err := di.New(env,
		di.WithProviders(
			di.ProvideGlueService,
			di.ProvideCloudWatchService,
		),
	)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to create DI container")
		os.Exit(1)
	}

	cfg := di.MustGet[*config.Config](container)
	glueService := di.MustGet[*services.GlueService](container)
	cloudwatchService := di.MustGet[*services.CloudWatchService](container)
	handler := NewHandler(glueService, cloudwatchService, cfg)

	if os.Getenv("AWS_LAMBDA_RUNTIME_API") != "" {
		wrappedHandler := func(ctx context.Context, event events.S3Event) error {
			ctx = logger.WithContext(ctx)
			return handler.HandleS3Event(ctx, event)
		}
		lambda.Start(wrappedHandler)
		return
	}

	app := &cli.App{
		Name:  "s3-trigger",
		Usage: "Simulate an S3 upload event to dispatch the ETL job",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "bucket",
				Usage:    "S3 bucket name",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "key",
				Usage:    "S3 object key (e.g., input/sales.csv)",
				Required: true,
			},
		},
		Action: func(c *cli.Context) error {
			event := events.S3Event{
				Records: []events.S3EventRecord{
					{
						EventSource: "aws:s3",
						S3: events.S3Entity{
							Bucket: events.S3Bucket{
								Name: c.String("bucket"),
							},
							Object: events.S3Object{
								Key: c.String("key"),
							},
						},
					},
				},
			}

			ctx := logger.WithContext(context.Background())
			return handler.HandleS3Event(ctx, event)
		},
	}

	if err := app.Run(os.Args); err != nil {
		logger.Error().Err(err).Msg("Application error")
		os.Exit(1)
	}
}
