package services

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/glue"
	gluetypes "github.com/aws/aws-sdk-go-v2/service/glue/types"
)

// JobParameters are the arguments passed to the distributed ETL job.
// The key names form the job-start contract with the Glue script.
type JobParameters struct {
	SourceBucket      string
	SourceKey         string
	DestinationBucket string
	OutputPrefix      string
}

// Arguments renders the parameters as Glue job arguments.
func (p JobParameters) Arguments() map[string]string {
	return map[string]string{
		"--source_bucket":      p.SourceBucket,
		"--source_key":         p.SourceKey,
		"--destination_bucket": p.DestinationBucket,
		"--output_prefix":      p.OutputPrefix,
	}
}

// JobSpec declares the Glue job's attributes.
type JobSpec struct {
	Name        string
	RoleArn     string
	ScriptPath  string // s3://bucket/key of the ETL script
	GlueVersion string
	WorkerType  string
	Workers     int
	TimeoutMins int
}

// GlueService wraps the Glue operations for the distributed ETL job.
type GlueService struct {
	client *glue.Client
}

func NewGlueService(client *glue.Client) *GlueService {
	return &GlueService{client: client}
}

// JobExists reports whether the named job exists.
func (s *GlueService) JobExists(ctx context.Context, jobName string) (bool, error) {
	_, err := s.client.GetJob(ctx, &glue.GetJobInput{
		JobName: aws.String(jobName),
	})
	if err != nil {
		if IsNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check glue job %s: %w", jobName, err)
	}
	return true, nil
}

// EnsureJob creates the Glue job, or updates it in place when it already exists.
func (s *GlueService) EnsureJob(ctx context.Context, spec JobSpec) error {
	command := &gluetypes.JobCommand{
		Name:           aws.String("glueetl"),
		ScriptLocation: aws.String(spec.ScriptPath),
		PythonVersion:  aws.String("3"),
	}

	exists, err := s.JobExists(ctx, spec.Name)
	if err != nil {
		return err
	}

	if exists {
		_, err = s.client.UpdateJob(ctx, &glue.UpdateJobInput{
			JobName: aws.String(spec.Name),
			JobUpdate: &gluetypes.JobUpdate{
				Role:            aws.String(spec.RoleArn),
				Command:         command,
				GlueVersion:     aws.String(spec.GlueVersion),
				WorkerType:      gluetypes.WorkerType(spec.WorkerType),
				NumberOfWorkers: aws.Int32(int32(spec.Workers)),
				Timeout:         aws.Int32(int32(spec.TimeoutMins)),
			},
		})
		if err != nil {
			return fmt.Errorf("failed to update glue job %s: %w", spec.Name, err)
		}
		return nil
	}

	_, err = s.client.CreateJob(ctx, &glue.CreateJobInput{
		Name:            aws.String(spec.Name),
		Role:            aws.String(spec.RoleArn),
		Command:         command,
		GlueVersion:     aws.String(spec.GlueVersion),
		WorkerType:      gluetypes.WorkerType(spec.WorkerType),
		NumberOfWorkers: aws.Int32(int32(spec.Workers)),
		Timeout:         aws.Int32(int32(spec.TimeoutMins)),
	})
	if err != nil {
		return fmt.Errorf("failed to create glue job %s: %w", spec.Name, err)
	}
	return nil
}

// StartJobRun issues exactly one job-start call and returns the run ID.
// No retry is performed here; a failed start surfaces to the caller.
func (s *GlueService) StartJobRun(ctx context.Context, jobName string, params JobParameters) (string, error) {
	result, err := s.client.StartJobRun(ctx, &glue.StartJobRunInput{
		JobName:   aws.String(jobName),
		Arguments: params.Arguments(),
	})
	if err != nil {
		return "", fmt.Errorf("failed to start glue job %s: %w", jobName, err)
	}
	return aws.ToString(result.JobRunId), nil
}

// JobRunSummary describes one Glue job run for monitoring.
type JobRunSummary struct {
	ID           string
	State        string
	StartedOn    string
	CompletedOn  string
	ErrorMessage string
	Arguments    map[string]string
}

// RecentJobRuns returns up to max recent runs of the job, newest first.
func (s *GlueService) RecentJobRuns(ctx context.Context, jobName string, max int) ([]JobRunSummary, error) {
	result, err := s.client.GetJobRuns(ctx, &glue.GetJobRunsInput{
		JobName:    aws.String(jobName),
		MaxResults: aws.Int32(int32(max)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get job runs for %s: %w", jobName, err)
	}

	var runs []JobRunSummary
	for _, run := range result.JobRuns {
		summary := JobRunSummary{
			ID:           aws.ToString(run.Id),
			State:        string(run.JobRunState),
			ErrorMessage: aws.ToString(run.ErrorMessage),
			Arguments:    run.Arguments,
		}
		if run.StartedOn != nil {
			summary.StartedOn = run.StartedOn.Format("2006-01-02 15:04:05")
		}
		if run.CompletedOn != nil {
			summary.CompletedOn = run.CompletedOn.Format("2006-01-02 15:04:05")
		}
		runs = append(runs, summary)
	}
	return runs, nil
}

// DeleteJob deletes the job. A missing job is treated as already deleted.
func (s *GlueService) DeleteJob(ctx context.Context, jobName string) error {
	_, err := s.client.DeleteJob(ctx, &glue.DeleteJobInput{
		JobName: aws.String(jobName),
	})
	if err != nil && !IsNotFound(err) {
		return fmt.Errorf("failed to delete glue job %s: %w", jobName, err)
	}
	return nil
}
