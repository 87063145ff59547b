package di

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/rs/zerolog"

	"github.com/meridian-data/etl-deployer/internal/config"
	"github.com/meridian-data/etl-deployer/internal/services"
)

// ProvideSSMClient provides an SSM client for Parameter Store access
// Returns nil if SSM is disabled (for local development)
func ProvideSSMClient(awsConfig aws.Config) *ssm.Client {
	// Check if SSM should be disabled (local development)
	if os.Getenv("DISABLE_SSM") == "true" {
		return nil
	}

	return ssm.NewFromConfig(awsConfig)
}

// ProvideParameterStore provides a ParameterStore implementation
// Uses SSM Parameter Store in AWS, falls back to environment variables when disabled
func ProvideParameterStore(ctx context.Context, ssmClient *ssm.Client, project Project, env string) services.ParameterStore {
	logger := zerolog.Ctx(ctx)

	if ssmClient == nil || os.Getenv("AWS_LAMBDA_RUNTIME_API") != "" {
		logger.Info().Msg("Using environment variables for configuration")
		return services.NewEnvParameterStore(project.String(), env)
	}

	logger.Info().Msg("Using AWS Systems Manager Parameter Store for configuration")
	return services.NewSSMParameterStore(ssmClient, project.String(), env)
}

// ProvideAppConfig loads deployment configuration from Parameter Store or environment variables
func ProvideAppConfig(ctx context.Context, store services.ParameterStore) (*config.Config, error) {
	logger := zerolog.Ctx(ctx)

	cfg, err := store.GetConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	cfg.ApplyDerivedDefaults()

	logger.Info().
		Str("project", cfg.ProjectName).
		Str("env", cfg.Env).
		Str("source_bucket", cfg.SourceBucket).
		Str("destination_bucket", cfg.DestinationBucket).
		Bool("logs_enabled", cfg.LogsEnabled).
		Msg("Configuration loaded successfully")

	return cfg, nil
}
