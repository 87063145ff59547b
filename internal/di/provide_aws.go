package di

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/glue"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	awslambda "github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/rs/zerolog"

	"github.com/meridian-data/etl-deployer/internal/config"
	"github.com/meridian-data/etl-deployer/internal/services"
)

// ProvideAWSConfig loads the AWS configuration from the default credential
// chain. When CREDENTIALS_SECRET is set, static credentials are fetched from
// Secrets Manager and used instead; the secret itself is read with the
// default chain.
func ProvideAWSConfig(ctx context.Context) (aws.Config, error) {
	logger := zerolog.Ctx(ctx)

	base, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS config: %w", err)
	}

	secretName := os.Getenv("CREDENTIALS_SECRET")
	if secretName == "" {
		return base, nil
	}

	sm := services.NewSecretsManagerService(secretsmanager.NewFromConfig(base))
	creds, err := sm.GetStaticCredentials(ctx, secretName)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load credentials from secret %s: %w", secretName, err)
	}

	logger.Info().
		Str("secret", secretName).
		Msg("Using static credentials from Secrets Manager")

	cfg := base.Copy()
	cfg.Credentials = credentials.NewStaticCredentialsProvider(
		creds.AccessKeyID, creds.SecretAccessKey, creds.SessionToken)
	return cfg, nil
}

func ProvideDynamoDB(config aws.Config) *dynamodb.Client {
	return dynamodb.NewFromConfig(config)
}

func ProvideS3Client(config aws.Config) *s3.Client {
	return s3.NewFromConfig(config)
}

func ProvideIAMClient(config aws.Config) *iam.Client {
	return iam.NewFromConfig(config)
}

func ProvideSTSClient(config aws.Config) *sts.Client {
	return sts.NewFromConfig(config)
}

func ProvideGlueClient(config aws.Config) *glue.Client {
	return glue.NewFromConfig(config)
}

func ProvideLambdaClient(config aws.Config) *awslambda.Client {
	return awslambda.NewFromConfig(config)
}

func ProvideCloudWatchClient(config aws.Config) *cloudwatch.Client {
	return cloudwatch.NewFromConfig(config)
}

func ProvideCloudWatchLogsClient(config aws.Config) *cloudwatchlogs.Client {
	return cloudwatchlogs.NewFromConfig(config)
}

func ProvideSecretsManagerClient(config aws.Config) *secretsmanager.Client {
	return secretsmanager.NewFromConfig(config)
}

// ProvideS3Service wires the S3 wrapper with the configured region, needed
// for bucket location constraints outside us-east-1.
func ProvideS3Service(client *s3.Client, cfg *config.Config) *services.S3Service {
	return services.NewS3Service(client, cfg.Region)
}

// ProvideGlueService constructs the Glue wrapper. Not part of the core set:
// only commands that start or inspect job runs register it.
func ProvideGlueService(client *glue.Client) *services.GlueService {
	return services.NewGlueService(client)
}

func ProvideLambdaService(client *awslambda.Client) *services.LambdaService {
	return services.NewLambdaService(client)
}

func ProvideCloudWatchService(cwClient *cloudwatch.Client, logsClient *cloudwatchlogs.Client) *services.CloudWatchService {
	return services.NewCloudWatchService(cwClient, logsClient)
}
