package provision

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/meridian-data/etl-deployer/internal/dao/resourcedao"
	apperrors "github.com/meridian-data/etl-deployer/internal/errors"
	"github.com/meridian-data/etl-deployer/internal/policy"
	"github.com/meridian-data/etl-deployer/internal/services"
)

// ApplyOptions carries the per-run inputs that are not part of the plan.
type ApplyOptions struct {
	// ArtifactPath is the packaged Trigger Function archive.
	ArtifactPath string

	// GlueScriptPath, when set, is a local ETL job script uploaded to the
	// plan's script location before the job is created.
	GlueScriptPath string

	// DryRun prints what would be created without creating anything.
	DryRun bool
}

// Applier reconciles a Plan against the live account. Every step is
// idempotent; re-applying an unchanged plan converges without error.
type Applier struct {
	s3         *services.S3Service
	iam        *services.IAMService
	glue       *services.GlueService
	lambda     *services.LambdaService
	cloudwatch *services.CloudWatchService
	validator  *policy.Validator
	dao        *resourcedao.DAO
}

func NewApplier(
	s3 *services.S3Service,
	iam *services.IAMService,
	glue *services.GlueService,
	lambda *services.LambdaService,
	cloudwatch *services.CloudWatchService,
	validator *policy.Validator,
	dao *resourcedao.DAO,
) *Applier {
	return &Applier{
		s3:         s3,
		iam:        iam,
		glue:       glue,
		lambda:     lambda,
		cloudwatch: cloudwatch,
		validator:  validator,
		dao:        dao,
	}
}

// Apply walks the plan in declaration order: buckets, roles and policies,
// function, job, event wiring, observability. The reconciliation engine's
// ordering guarantee is exactly the parent-before-child order of
// Plan.Resources.
func (a *Applier) Apply(ctx context.Context, plan *Plan, opts ApplyOptions) error {
	logger := zerolog.Ctx(ctx)

	if err := a.validatePolicies(ctx, plan); err != nil {
		return err
	}

	if opts.DryRun {
		fmt.Println("DRY RUN: would reconcile the following resources:")
		for _, r := range plan.Resources() {
			fmt.Printf("  %s\n", r.Address())
		}
		return nil
	}

	cfg := plan.Config

	fmt.Printf("Ensuring source bucket %s...\n", plan.SourceBucket)
	if err := a.s3.EnsureBucket(ctx, plan.SourceBucket); err != nil {
		return err
	}
	a.track(ctx, plan, KindBucket, plan.SourceBucket, plan.SourceBucket)

	fmt.Printf("Ensuring destination bucket %s...\n", plan.DestinationBucket)
	if err := a.s3.EnsureBucket(ctx, plan.DestinationBucket); err != nil {
		return err
	}
	a.track(ctx, plan, KindBucket, plan.DestinationBucket, plan.DestinationBucket)

	fmt.Printf("Ensuring trigger role %s...\n", plan.LambdaRoleName)
	lambdaRoleArn, err := a.iam.EnsureRole(ctx, plan.LambdaRoleName, LambdaTrustPolicy(), "ETL trigger function role")
	if err != nil {
		return err
	}
	if err := a.iam.PutInlinePolicy(ctx, plan.LambdaRoleName, "etl-dispatch", plan.LambdaRolePolicy); err != nil {
		return err
	}
	a.track(ctx, plan, KindRole, plan.LambdaRoleName, lambdaRoleArn)
	a.track(ctx, plan, KindPolicy, plan.LambdaRoleName+"/inline", "etl-dispatch")

	fmt.Printf("Ensuring glue role %s...\n", plan.GlueRoleName)
	glueRoleArn, err := a.iam.EnsureRole(ctx, plan.GlueRoleName, GlueTrustPolicy(), "ETL glue job role")
	if err != nil {
		return err
	}
	if err := a.iam.PutInlinePolicy(ctx, plan.GlueRoleName, "etl-data-access", plan.GlueRolePolicy); err != nil {
		return err
	}
	if err := a.iam.AttachManagedPolicy(ctx, plan.GlueRoleName, "arn:aws:iam::aws:policy/service-role/AWSGlueServiceRole"); err != nil {
		return err
	}
	a.track(ctx, plan, KindRole, plan.GlueRoleName, glueRoleArn)
	a.track(ctx, plan, KindPolicy, plan.GlueRoleName+"/inline", "etl-data-access")

	fmt.Printf("Ensuring trigger function %s...\n", plan.FunctionName)
	if opts.ArtifactPath == "" {
		return fmt.Errorf("%w: no deployment artifact given, run package first", apperrors.ErrMissingRequiredFile)
	}
	functionArn, err := a.lambda.EnsureFunction(ctx, services.FunctionSpec{
		Name:         plan.FunctionName,
		RoleArn:      lambdaRoleArn,
		Handler:      "lambda_handler.lambda_handler",
		Runtime:      "python3.12",
		ArtifactPath: opts.ArtifactPath,
		TimeoutSecs:  int(cfg.LambdaTimeout.Seconds()),
		MemoryMB:     cfg.LambdaMemoryMB,
		Environment:  plan.FunctionEnvironment(),
	})
	if err != nil {
		return err
	}
	a.track(ctx, plan, KindFunction, plan.FunctionName, functionArn)

	if opts.GlueScriptPath != "" {
		fmt.Printf("Uploading glue script to %s...\n", plan.GlueScript)
		if err := a.s3.Upload(ctx, plan.DestinationBucket, cfg.GlueScriptKey, opts.GlueScriptPath); err != nil {
			return err
		}
	}

	fmt.Printf("Ensuring glue job %s...\n", plan.GlueJobName)
	if err := a.glue.EnsureJob(ctx, services.JobSpec{
		Name:        plan.GlueJobName,
		RoleArn:     glueRoleArn,
		ScriptPath:  plan.GlueScript,
		GlueVersion: cfg.GlueVersion,
		WorkerType:  cfg.GlueWorkerType,
		Workers:     cfg.GlueWorkers,
		TimeoutMins: int(cfg.GlueTimeout.Minutes()),
	}); err != nil {
		return err
	}
	a.track(ctx, plan, KindGlueJob, plan.GlueJobName, plan.GlueJobName)

	fmt.Printf("Wiring %s events to %s...\n", plan.SourceBucket, plan.FunctionName)
	bucketArn := fmt.Sprintf("arn:aws:s3:::%s", plan.SourceBucket)
	if err := a.lambda.AllowS3Invoke(ctx, plan.FunctionName, bucketArn); err != nil {
		return err
	}
	if err := a.s3.EnsureNotification(ctx, plan.SourceBucket, functionArn, plan.NotificationPrefix, plan.NotificationSuffixes); err != nil {
		return err
	}
	a.track(ctx, plan, KindNotification, plan.SourceBucket, plan.SourceBucket)

	if plan.Observability {
		fmt.Printf("Ensuring log group %s...\n", plan.LogGroup)
		if err := a.cloudwatch.EnsureLogGroup(ctx, plan.LogGroup, cfg.LogRetentionDays); err != nil {
			return err
		}
		a.track(ctx, plan, KindLogGroup, plan.LogGroup, plan.LogGroup)

		fmt.Printf("Ensuring alarm %s...\n", plan.AlarmName)
		if err := a.cloudwatch.EnsureErrorAlarm(ctx, plan.AlarmName, plan.FunctionName); err != nil {
			return err
		}
		a.track(ctx, plan, KindAlarm, plan.AlarmName, plan.AlarmName)
	}

	logger.Info().
		Str("project", cfg.ProjectName).
		Str("env", cfg.Env).
		Msg("Pipeline resources reconciled")
	fmt.Printf("\n✓ Setup complete for %s/%s\n", cfg.ProjectName, cfg.Env)
	return nil
}

// Destroy removes the plan's resources in reverse declaration order.
// Missing resources are tolerated so a partially torn-down pipeline can be
// destroyed again.
func (a *Applier) Destroy(ctx context.Context, plan *Plan) error {
	cfg := plan.Config

	if plan.Observability {
		fmt.Printf("Deleting alarm %s...\n", plan.AlarmName)
		if err := a.cloudwatch.DeleteAlarm(ctx, plan.AlarmName); err != nil {
			return err
		}
		a.untrack(ctx, plan, KindAlarm, plan.AlarmName)

		fmt.Printf("Deleting log group %s...\n", plan.LogGroup)
		if err := a.cloudwatch.DeleteLogGroup(ctx, plan.LogGroup); err != nil {
			return err
		}
		a.untrack(ctx, plan, KindLogGroup, plan.LogGroup)
	}

	fmt.Printf("Deleting glue job %s...\n", plan.GlueJobName)
	if err := a.glue.DeleteJob(ctx, plan.GlueJobName); err != nil {
		return err
	}
	a.untrack(ctx, plan, KindGlueJob, plan.GlueJobName)

	fmt.Printf("Deleting trigger function %s...\n", plan.FunctionName)
	if err := a.lambda.DeleteFunction(ctx, plan.FunctionName); err != nil {
		return err
	}
	a.untrack(ctx, plan, KindNotification, plan.SourceBucket)
	a.untrack(ctx, plan, KindFunction, plan.FunctionName)

	for _, roleName := range []string{plan.GlueRoleName, plan.LambdaRoleName} {
		fmt.Printf("Deleting role %s...\n", roleName)
		if err := a.iam.DeleteRole(ctx, roleName); err != nil {
			return err
		}
		a.untrack(ctx, plan, KindPolicy, roleName+"/inline")
		a.untrack(ctx, plan, KindRole, roleName)
	}

	for _, bucket := range []string{plan.SourceBucket, plan.DestinationBucket} {
		fmt.Printf("Emptying and deleting bucket %s...\n", bucket)
		if err := a.s3.EmptyAndDeleteBucket(ctx, bucket); err != nil {
			return err
		}
		a.untrack(ctx, plan, KindBucket, bucket)
	}

	fmt.Printf("\n✓ Teardown complete for %s/%s\n", cfg.ProjectName, cfg.Env)
	return nil
}

// validatePolicies rejects the apply before any cloud call when a generated
// policy document violates the embedded rules.
func (a *Applier) validatePolicies(ctx context.Context, plan *Plan) error {
	docs := map[string]string{
		"lambda-role": plan.LambdaRolePolicy,
		"glue-role":   plan.GlueRolePolicy,
	}

	for name, doc := range docs {
		result, err := a.validator.ValidateDocument(ctx, doc)
		if err != nil {
			return fmt.Errorf("failed to validate %s policy: %w", name, err)
		}
		if !result.Allowed {
			return fmt.Errorf("%w: %s policy: %s",
				apperrors.ErrPolicyRejected, name, strings.Join(result.Violations, "; "))
		}
	}
	return nil
}

// track records the resource descriptor; tracked-state writes are best effort
// during apply since the resource itself is already reconciled.
func (a *Applier) track(ctx context.Context, plan *Plan, kind, name, externalID string) {
	logger := zerolog.Ctx(ctx)
	_, err := a.dao.Track(ctx, resourcedao.TrackInput{
		Project:    plan.Config.ProjectName,
		Env:        plan.Config.Env,
		Kind:       kind,
		Name:       name,
		ExternalID: externalID,
	})
	if err != nil {
		logger.Warn().
			Err(err).
			Str("kind", kind).
			Str("name", name).
			Msg("Failed to record resource in tracked state")
	}
}

func (a *Applier) untrack(ctx context.Context, plan *Plan, kind, name string) {
	logger := zerolog.Ctx(ctx)
	addr := resourcedao.NewAddress(kind, name)
	if err := a.dao.Untrack(ctx, plan.Config.ProjectName, plan.Config.Env, addr); err != nil {
		logger.Warn().
			Err(err).
			Str("address", addr.String()).
			Msg("Failed to remove resource from tracked state")
	}
}
