package services

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/meridian-data/etl-deployer/internal/config"
)

// ParameterStore defines the interface for accessing configuration parameters
type ParameterStore interface {
	// GetParameter retrieves a single parameter by name
	GetParameter(ctx context.Context, name string) (string, error)

	// GetConfig loads all deployment configuration
	GetConfig(ctx context.Context) (*config.Config, error)
}

// SSMParameterStore implements ParameterStore using AWS Systems Manager Parameter Store
type SSMParameterStore struct {
	client  *ssm.Client
	project string
	env     string
	mu      sync.RWMutex
	cache   map[string]string
}

// NewSSMParameterStore creates a new SSM-backed parameter store
func NewSSMParameterStore(client *ssm.Client, project, env string) *SSMParameterStore {
	return &SSMParameterStore{
		client:  client,
		project: project,
		env:     env,
		cache:   make(map[string]string),
	}
}

// GetParameter retrieves a single parameter from SSM Parameter Store
func (s *SSMParameterStore) GetParameter(ctx context.Context, name string) (string, error) {
	s.mu.RLock()
	if value, ok := s.cache[name]; ok {
		s.mu.RUnlock()
		return value, nil
	}
	s.mu.RUnlock()

	result, err := s.client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           &name,
		WithDecryption: boolPtr(true),
	})
	if err != nil {
		return "", fmt.Errorf("failed to get parameter %s: %w", name, err)
	}

	if result.Parameter == nil || result.Parameter.Value == nil {
		return "", fmt.Errorf("parameter %s not found", name)
	}

	value := *result.Parameter.Value

	s.mu.Lock()
	s.cache[name] = value
	s.mu.Unlock()

	return value, nil
}

// GetConfig loads all deployment configuration from Parameter Store.
// Parameters live under /{env}/etl-deployer/; anything not present keeps
// its declared default.
func (s *SSMParameterStore) GetConfig(ctx context.Context) (*config.Config, error) {
	path := fmt.Sprintf("/%s/etl-deployer", s.env)

	// GetParametersByPath caps each page at 10 results, fewer than the
	// number of keys this store maps.
	paginator := ssm.NewGetParametersByPathPaginator(s.client, &ssm.GetParametersByPathInput{
		Path:           &path,
		Recursive:      boolPtr(true),
		WithDecryption: boolPtr(true),
	})

	params := make(map[string]string)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get parameters by path %s: %w", path, err)
		}
		for _, param := range page.Parameters {
			if param.Name != nil && param.Value != nil {
				params[*param.Name] = *param.Value
			}
		}
	}

	s.mu.Lock()
	for k, v := range params {
		s.cache[k] = v
	}
	s.mu.Unlock()

	key := func(name string) string {
		return fmt.Sprintf("/%s/etl-deployer/%s", s.env, name)
	}

	cfg := config.New(s.project, s.env)
	setString(&cfg.Region, params[key("region")])
	setString(&cfg.SourceBucket, params[key("source-bucket")])
	setString(&cfg.DestinationBucket, params[key("destination-bucket")])
	setString(&cfg.InputPrefix, params[key("input-prefix")])
	setString(&cfg.OutputPrefix, params[key("output-prefix")])
	setString(&cfg.GlueJobName, params[key("glue-job-name")])
	setString(&cfg.GlueScriptKey, params[key("glue-script-key")])
	setString(&cfg.LambdaFunctionName, params[key("lambda-function-name")])
	setString(&cfg.LogGroup, params[key("log-group")])
	setString(&cfg.CredentialsSecret, params[key("credentials-secret")])
	setBool(&cfg.LogsEnabled, params[key("logs-enabled")])

	return cfg, nil
}

// EnvParameterStore implements ParameterStore using environment variables.
// This is the fallback for local development and for the Lambda runtime,
// where configuration arrives as function environment variables.
type EnvParameterStore struct {
	project string
	env     string
}

// NewEnvParameterStore creates a new environment variable-backed parameter store
func NewEnvParameterStore(project, env string) *EnvParameterStore {
	return &EnvParameterStore{
		project: project,
		env:     env,
	}
}

// GetParameter retrieves a parameter from environment variables
func (e *EnvParameterStore) GetParameter(ctx context.Context, name string) (string, error) {
	return os.Getenv(name), nil
}

// GetConfig loads all deployment configuration from environment variables.
// The variable names match what the infrastructure definition sets on the
// Trigger Function.
func (e *EnvParameterStore) GetConfig(ctx context.Context) (*config.Config, error) {
	cfg := config.New(e.project, e.env)
	setString(&cfg.Region, os.Getenv("AWS_REGION"))
	setString(&cfg.SourceBucket, os.Getenv("SOURCE_BUCKET"))
	setString(&cfg.DestinationBucket, os.Getenv("DESTINATION_BUCKET"))
	setString(&cfg.InputPrefix, os.Getenv("INPUT_PREFIX"))
	setString(&cfg.OutputPrefix, os.Getenv("OUTPUT_PREFIX"))
	setString(&cfg.GlueJobName, os.Getenv("GLUE_JOB_NAME"))
	setString(&cfg.LambdaFunctionName, os.Getenv("LAMBDA_FUNCTION_NAME"))
	setString(&cfg.LogGroup, os.Getenv("CLOUDWATCH_LOG_GROUP"))
	setString(&cfg.CredentialsSecret, os.Getenv("CREDENTIALS_SECRET"))
	setBool(&cfg.LogsEnabled, os.Getenv("CLOUDWATCH_ENABLED"))
	return cfg, nil
}

func setString(dst *string, value string) {
	if value != "" {
		*dst = value
	}
}

func setBool(dst *bool, value string) {
	if value == "" {
		return
	}
	if parsed, err := strconv.ParseBool(value); err == nil {
		*dst = parsed
	}
}

func boolPtr(b bool) *bool {
	return &b
}
