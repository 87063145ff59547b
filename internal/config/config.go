// Package config holds the deployment configuration for the ETL pipeline.
// A Config is constructed once at process start and passed explicitly to every
// component; nothing below this package reads the process environment directly.
package config

import (
	"fmt"
	"time"

	"github.com/meridian-data/etl-deployer/internal/errors"
)

// Declared defaults. Omitting a value from the parameter store or environment
// yields exactly these values downstream.
const (
	DefaultProjectName      = "etl-pipeline"
	DefaultRegion           = "us-east-1"
	DefaultInputPrefix      = "input/"
	DefaultOutputPrefix     = "processed_data"
	DefaultLogGroup         = "etl-pipeline"
	DefaultGlueScriptKey    = "scripts/glue_etl_job.py"
	DefaultGlueWorkerType   = "G.1X"
	DefaultGlueVersion      = "4.0"
	DefaultGlueWorkers      = 2
	DefaultGlueTimeout      = 60 * time.Minute
	DefaultLambdaTimeout    = 60 * time.Second
	DefaultLambdaMemoryMB   = 256
	DefaultLogRetentionDays = 14
)

// Config holds all deployment configuration values.
type Config struct {
	ProjectName string
	Env         string
	Region      string

	SourceBucket      string
	DestinationBucket string
	InputPrefix       string
	OutputPrefix      string

	GlueJobName     string
	GlueScriptKey   string
	GlueWorkerType  string
	GlueVersion     string
	GlueWorkers     int
	GlueTimeout     time.Duration

	LambdaFunctionName string
	LambdaTimeout      time.Duration
	LambdaMemoryMB     int

	LogGroup         string
	LogsEnabled      bool
	LogRetentionDays int

	// CredentialsSecret optionally names a Secrets Manager secret holding
	// static AWS credentials. Empty means the default credential chain.
	CredentialsSecret string
}

// New returns a Config for the given project and environment with every
// optional field set to its declared default.
func New(project, env string) *Config {
	cfg := &Config{
		ProjectName:      project,
		Env:              env,
		Region:           DefaultRegion,
		InputPrefix:      DefaultInputPrefix,
		OutputPrefix:     DefaultOutputPrefix,
		GlueScriptKey:    DefaultGlueScriptKey,
		GlueWorkerType:   DefaultGlueWorkerType,
		GlueVersion:      DefaultGlueVersion,
		GlueWorkers:      DefaultGlueWorkers,
		GlueTimeout:      DefaultGlueTimeout,
		LambdaTimeout:    DefaultLambdaTimeout,
		LambdaMemoryMB:   DefaultLambdaMemoryMB,
		LogGroup:         DefaultLogGroup,
		LogsEnabled:      true,
		LogRetentionDays: DefaultLogRetentionDays,
	}
	cfg.ApplyDerivedDefaults()
	return cfg
}

// ApplyDerivedDefaults fills in names that are derived from the project name
// and environment when they have not been set explicitly.
func (c *Config) ApplyDerivedDefaults() {
	if c.ProjectName == "" || c.Env == "" {
		return
	}
	if c.SourceBucket == "" {
		c.SourceBucket = c.Name("source")
	}
	if c.DestinationBucket == "" {
		c.DestinationBucket = c.Name("output")
	}
	if c.GlueJobName == "" {
		c.GlueJobName = c.Name("etl-job")
	}
	if c.LambdaFunctionName == "" {
		c.LambdaFunctionName = c.Name("trigger")
	}
}

// Validate checks that required naming inputs are present. It must pass before
// any resource-naming operation or cloud call is attempted.
func (c *Config) Validate() error {
	if c.ProjectName == "" {
		return errors.ErrProjectNameRequired
	}
	if c.Env == "" {
		return errors.ErrEnvironmentRequired
	}
	return nil
}

// Name returns the deterministic resource name for a resource kind.
// Identical inputs always yield identical names.
func (c *Config) Name(kind string) string {
	return fmt.Sprintf("%s-%s-%s", c.ProjectName, kind, c.Env)
}
