// Package monitor reports the live health of a deployed pipeline: trigger
// function state, recent ETL job runs, recent logs, and produced output.
package monitor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/meridian-data/etl-deployer/internal/config"
	"github.com/meridian-data/etl-deployer/internal/services"
)

const (
	defaultLogLookback = time.Hour
	defaultLogLimit    = 20
	defaultRunLimit    = 10
)

// Monitor reads current pipeline state. It never mutates anything.
type Monitor struct {
	s3         *services.S3Service
	glue       *services.GlueService
	lambda     *services.LambdaService
	cloudwatch *services.CloudWatchService
}

func New(
	s3 *services.S3Service,
	glue *services.GlueService,
	lambda *services.LambdaService,
	cloudwatch *services.CloudWatchService,
) *Monitor {
	return &Monitor{
		s3:         s3,
		glue:       glue,
		lambda:     lambda,
		cloudwatch: cloudwatch,
	}
}

// Report is a point-in-time snapshot of pipeline health.
type Report struct {
	FunctionName string
	Function     *services.FunctionInfo
	JobName      string
	JobRuns      []services.JobRunSummary
	LogStream    string
	LogEvents    []services.LogEvent
	Outputs      []services.ObjectSummary
}

// Snapshot gathers the report. Each section degrades independently: a missing
// function or empty log group leaves its section nil rather than failing the
// whole snapshot.
func (m *Monitor) Snapshot(ctx context.Context, cfg *config.Config) (*Report, error) {
	report := &Report{
		FunctionName: cfg.LambdaFunctionName,
		JobName:      cfg.GlueJobName,
	}

	info, err := m.lambda.GetFunctionInfo(ctx, cfg.LambdaFunctionName)
	if err != nil && !services.IsNotFound(err) {
		return nil, err
	}
	report.Function = info

	runs, err := m.glue.RecentJobRuns(ctx, cfg.GlueJobName, defaultRunLimit)
	if err != nil && !services.IsNotFound(err) {
		return nil, err
	}
	report.JobRuns = runs

	if cfg.LogsEnabled {
		stream, events, err := m.cloudwatch.RecentLogEvents(ctx, cfg.LogGroup, defaultLogLookback, defaultLogLimit)
		if err != nil && !services.IsNotFound(err) {
			return nil, err
		}
		report.LogStream = stream
		report.LogEvents = events
	}

	outputs, err := m.s3.ListPrefix(ctx, cfg.DestinationBucket, cfg.OutputPrefix+"/")
	if err != nil && !services.IsNotFound(err) {
		return nil, err
	}
	report.Outputs = outputs

	return report, nil
}

// Print renders the report as the terminal summary the monitor command shows.
func (m *Monitor) Print(report *Report) {
	fmt.Println("=== Trigger Function ===")
	if report.Function == nil {
		fmt.Printf("  %s: not deployed\n", report.FunctionName)
	} else {
		fmt.Printf("  %s\n", report.FunctionName)
		fmt.Printf("    runtime:       %s\n", report.Function.Runtime)
		fmt.Printf("    memory:        %d MB\n", report.Function.MemoryMB)
		fmt.Printf("    timeout:       %ds\n", report.Function.Timeout)
		fmt.Printf("    last modified: %s\n", report.Function.LastModified)
	}

	fmt.Println("\n=== ETL Job Runs ===")
	if len(report.JobRuns) == 0 {
		fmt.Printf("  %s: no runs\n", report.JobName)
	}
	for _, run := range report.JobRuns {
		fmt.Printf("  %-22s %-10s started=%s", run.ID, run.State, run.StartedOn)
		if run.CompletedOn != "" {
			fmt.Printf(" completed=%s", run.CompletedOn)
		}
		fmt.Println()
		if run.ErrorMessage != "" {
			fmt.Printf("    error: %s\n", run.ErrorMessage)
		}
	}

	if report.LogStream != "" || len(report.LogEvents) > 0 {
		fmt.Println("\n=== Recent Logs ===")
		fmt.Printf("  stream: %s\n", report.LogStream)
		for _, event := range report.LogEvents {
			fmt.Printf("  %s  %s\n",
				event.Timestamp.Format(time.RFC3339),
				strings.TrimRight(event.Message, "\n"))
		}
	}

	fmt.Println("\n=== Output Objects ===")
	if len(report.Outputs) == 0 {
		fmt.Println("  none")
		return
	}

	var totalBytes int64
	for _, obj := range report.Outputs {
		totalBytes += obj.Size
		fmt.Printf("  %10d  %s  %s\n", obj.Size, obj.LastModified, obj.Key)
	}
	fmt.Printf("  %d objects, %d bytes total\n", len(report.Outputs), totalBytes)
}
