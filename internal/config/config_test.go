package config

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/meridian-data/etl-deployer/internal/errors"
)

func TestNew_Defaults(t *testing.T) {
	cfg := New("etl-pipeline", "dev")

	assert.Equal(t, "us-east-1", cfg.Region)
	assert.Equal(t, "input/", cfg.InputPrefix)
	assert.Equal(t, "processed_data", cfg.OutputPrefix)
	assert.Equal(t, "G.1X", cfg.GlueWorkerType)
	assert.Equal(t, 2, cfg.GlueWorkers)
	assert.True(t, cfg.LogsEnabled)
	assert.Equal(t, 14, cfg.LogRetentionDays)
	assert.Empty(t, cfg.CredentialsSecret)
}

func TestNew_DerivedNames(t *testing.T) {
	cfg := New("etl-pipeline", "dev")

	assert.Equal(t, "etl-pipeline-source-dev", cfg.SourceBucket)
	assert.Equal(t, "etl-pipeline-output-dev", cfg.DestinationBucket)
	assert.Equal(t, "etl-pipeline-etl-job-dev", cfg.GlueJobName)
	assert.Equal(t, "etl-pipeline-trigger-dev", cfg.LambdaFunctionName)
}

func TestApplyDerivedDefaults_KeepsExplicitValues(t *testing.T) {
	cfg := New("etl-pipeline", "dev")
	cfg.SourceBucket = "legacy-ingest-bucket"
	cfg.GlueJobName = ""

	cfg.ApplyDerivedDefaults()

	assert.Equal(t, "legacy-ingest-bucket", cfg.SourceBucket)
	assert.Equal(t, "etl-pipeline-etl-job-dev", cfg.GlueJobName)
}

func TestName_Deterministic(t *testing.T) {
	a := New("sales", "prod")
	b := New("sales", "prod")

	assert.Equal(t, a.Name("trigger"), b.Name("trigger"))
	assert.Equal(t, "sales-trigger-prod", a.Name("trigger"))
}

func TestName_DistinctAcrossEnvs(t *testing.T) {
	dev := New("sales", "dev")
	prod := New("sales", "prod")

	assert.NotEqual(t, dev.Name("etl-job"), prod.Name("etl-job"))
	assert.NotEqual(t, dev.SourceBucket, prod.SourceBucket)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		project string
		env     string
		wantErr error
	}{
		{
			name:    "valid",
			project: "etl-pipeline",
			env:     "dev",
		},
		{
			name:    "missing project",
			project: "",
			env:     "dev",
			wantErr: errors.ErrProjectNameRequired,
		},
		{
			name:    "missing env",
			project: "etl-pipeline",
			env:     "",
			wantErr: errors.ErrEnvironmentRequired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{ProjectName: tt.project, Env: tt.env}
			err := cfg.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}
