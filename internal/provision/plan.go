// Package provision declares the pipeline's desired resource set as a pure
// function of configuration, and reconciles it with idempotent apply and
// destroy walks. Resource names never change between runs of the same
// configuration, so re-applying always targets the same logical resources.
package provision

import (
	"encoding/json"
	"fmt"

	"github.com/meridian-data/etl-deployer/internal/config"
	"github.com/meridian-data/etl-deployer/internal/dao/resourcedao"
)

// Resource kinds, used as the first component of logical addresses.
const (
	KindBucket       = "s3-bucket"
	KindRole         = "iam-role"
	KindPolicy       = "iam-policy"
	KindFunction     = "lambda-function"
	KindGlueJob      = "glue-job"
	KindLogGroup     = "log-group"
	KindAlarm        = "cloudwatch-alarm"
	KindNotification = "s3-notification"
)

// Resource is one declared Managed Resource Descriptor.
type Resource struct {
	Kind       string
	Name       string
	ExternalID string

	// Parent names the resource that must exist (and be tracked) first.
	// Policies are scoped to their role; the notification to its function.
	Parent resourcedao.Address
}

// Address returns the resource's logical address.
func (r Resource) Address() resourcedao.Address {
	return resourcedao.NewAddress(r.Kind, r.Name)
}

// Plan is the full declarative target state for one configuration.
// Building a Plan performs no side effects.
type Plan struct {
	Config *config.Config

	SourceBucket      string
	DestinationBucket string

	LambdaRoleName   string
	LambdaRolePolicy string // inline policy document
	GlueRoleName     string
	GlueRolePolicy   string // inline policy document

	FunctionName string
	GlueJobName  string
	GlueScript   string // s3:// location of the ETL job script

	LogGroup  string
	AlarmName string

	// Observability resources (log group, alarm) are only declared when the
	// logs-enabled feature flag is set.
	Observability bool

	NotificationPrefix   string
	NotificationSuffixes []string
}

// NewPlan derives the target state from configuration. The config must have
// passed Validate; names are deterministic functions of project, kind, env.
func NewPlan(cfg *config.Config) (*Plan, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	plan := &Plan{
		Config:               cfg,
		SourceBucket:         cfg.SourceBucket,
		DestinationBucket:    cfg.DestinationBucket,
		LambdaRoleName:       cfg.Name("lambda-role"),
		GlueRoleName:         cfg.Name("glue-role"),
		FunctionName:         cfg.LambdaFunctionName,
		GlueJobName:          cfg.GlueJobName,
		GlueScript:           fmt.Sprintf("s3://%s/%s", cfg.DestinationBucket, cfg.GlueScriptKey),
		LogGroup:             cfg.LogGroup,
		AlarmName:            cfg.Name("trigger-errors"),
		Observability:        cfg.LogsEnabled,
		NotificationPrefix:   cfg.InputPrefix,
		NotificationSuffixes: []string{".csv", ".json"},
	}

	plan.LambdaRolePolicy = lambdaRolePolicy(cfg)
	plan.GlueRolePolicy = glueRolePolicy(cfg)

	return plan, nil
}

// Resources lists every declared resource in apply order: parents strictly
// before children.
func (p *Plan) Resources() []Resource {
	lambdaRole := Resource{Kind: KindRole, Name: p.LambdaRoleName, ExternalID: p.LambdaRoleName}
	glueRole := Resource{Kind: KindRole, Name: p.GlueRoleName, ExternalID: p.GlueRoleName}
	function := Resource{Kind: KindFunction, Name: p.FunctionName, ExternalID: p.FunctionName, Parent: lambdaRole.Address()}

	resources := []Resource{
		{Kind: KindBucket, Name: p.SourceBucket, ExternalID: p.SourceBucket},
		{Kind: KindBucket, Name: p.DestinationBucket, ExternalID: p.DestinationBucket},
		lambdaRole,
		{Kind: KindPolicy, Name: p.LambdaRoleName + "/inline", ExternalID: "inline", Parent: lambdaRole.Address()},
		glueRole,
		{Kind: KindPolicy, Name: p.GlueRoleName + "/inline", ExternalID: "inline", Parent: glueRole.Address()},
		function,
		{Kind: KindGlueJob, Name: p.GlueJobName, ExternalID: p.GlueJobName, Parent: glueRole.Address()},
		{Kind: KindNotification, Name: p.SourceBucket, ExternalID: p.SourceBucket, Parent: function.Address()},
	}

	if p.Observability {
		resources = append(resources,
			Resource{Kind: KindLogGroup, Name: p.LogGroup, ExternalID: p.LogGroup},
			Resource{Kind: KindAlarm, Name: p.AlarmName, ExternalID: p.AlarmName, Parent: function.Address()},
		)
	}

	return resources
}

// FunctionEnvironment returns the environment variables set on the Trigger
// Function. Every value an invocation needs arrives through these.
func (p *Plan) FunctionEnvironment() map[string]string {
	cfg := p.Config
	return map[string]string{
		"PROJECT_NAME":         cfg.ProjectName,
		"ENV":                  cfg.Env,
		"GLUE_JOB_NAME":        p.GlueJobName,
		"SOURCE_BUCKET":        p.SourceBucket,
		"DESTINATION_BUCKET":   p.DestinationBucket,
		"INPUT_PREFIX":         cfg.InputPrefix,
		"OUTPUT_PREFIX":        cfg.OutputPrefix,
		"CLOUDWATCH_LOG_GROUP": p.LogGroup,
		"CLOUDWATCH_ENABLED":   fmt.Sprintf("%t", cfg.LogsEnabled),
	}
}

// LambdaTrustPolicy is the trust policy for the Trigger Function's role.
func LambdaTrustPolicy() string {
	return servicePrincipalTrust("lambda.amazonaws.com")
}

// GlueTrustPolicy is the trust policy for the Glue job's role.
func GlueTrustPolicy() string {
	return servicePrincipalTrust("glue.amazonaws.com")
}

func servicePrincipalTrust(service string) string {
	policy := map[string]interface{}{
		"Version": "2012-10-17",
		"Statement": []map[string]interface{}{
			{
				"Effect": "Allow",
				"Principal": map[string]interface{}{
					"Service": service,
				},
				"Action": "sts:AssumeRole",
			},
		},
	}

	policyJSON, _ := json.Marshal(policy)
	return string(policyJSON)
}

// lambdaRolePolicy grants the Trigger Function exactly what the dispatch-only
// design needs: start the Glue job and write its own logs. It deliberately
// carries no S3 read access.
func lambdaRolePolicy(cfg *config.Config) string {
	policy := map[string]interface{}{
		"Version": "2012-10-17",
		"Statement": []map[string]interface{}{
			{
				"Effect": "Allow",
				"Action": []string{
					"glue:StartJobRun",
					"glue:GetJobRun",
				},
				"Resource": fmt.Sprintf("arn:aws:glue:*:*:job/%s", cfg.GlueJobName),
			},
			{
				"Effect": "Allow",
				"Action": []string{
					"logs:CreateLogGroup",
					"logs:CreateLogStream",
					"logs:PutLogEvents",
				},
				"Resource": "*",
			},
		},
	}

	policyJSON, _ := json.Marshal(policy)
	return string(policyJSON)
}

// glueRolePolicy grants the ETL job read access to the source bucket and
// write access to the destination bucket, plus log delivery.
func glueRolePolicy(cfg *config.Config) string {
	policy := map[string]interface{}{
		"Version": "2012-10-17",
		"Statement": []map[string]interface{}{
			{
				"Effect": "Allow",
				"Action": []string{
					"s3:GetObject",
					"s3:ListBucket",
				},
				"Resource": []string{
					fmt.Sprintf("arn:aws:s3:::%s", cfg.SourceBucket),
					fmt.Sprintf("arn:aws:s3:::%s/*", cfg.SourceBucket),
				},
			},
			{
				"Effect": "Allow",
				"Action": []string{
					"s3:GetObject",
					"s3:PutObject",
					"s3:DeleteObject",
					"s3:ListBucket",
				},
				"Resource": []string{
					fmt.Sprintf("arn:aws:s3:::%s", cfg.DestinationBucket),
					fmt.Sprintf("arn:aws:s3:::%s/*", cfg.DestinationBucket),
				},
			},
			{
				"Effect": "Allow",
				"Action": []string{
					"logs:CreateLogGroup",
					"logs:CreateLogStream",
					"logs:PutLogEvents",
				},
				"Resource": "*",
			},
			{
				"Effect": "Allow",
				"Action": []string{
					"cloudwatch:PutMetricData",
				},
				"Resource": "*",
			},
		},
	}

	policyJSON, _ := json.Marshal(policy)
	return string(policyJSON)
}
