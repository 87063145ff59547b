package main

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"github.com/meridian-data/etl-deployer/internal/config"
	apperrors "github.com/meridian-data/etl-deployer/internal/errors"
	"github.com/meridian-data/etl-deployer/internal/services"
)

type fakeJobStarter struct {
	calls []services.JobParameters
	err   error
}

func (f *fakeJobStarter) StartJobRun(_ context.Context, _ string, params services.JobParameters) (string, error) {
	f.calls = append(f.calls, params)
	if f.err != nil {
		return "", f.err
	}
	return fmt.Sprintf("jr_%d", len(f.calls)), nil
}

func testConfig() *config.Config {
	return config.New("etl-pipeline", "dev")
}

func s3Record(eventSource, bucket, key string) events.S3EventRecord {
	return events.S3EventRecord{
		EventSource: eventSource,
		S3: events.S3Entity{
			Bucket: events.S3Bucket{Name: bucket},
			Object: events.S3Object{Key: key},
		},
	}
}

func TestHandleS3EventFiltering(t *testing.T) {
	tests := []struct {
		name          string
		record        events.S3EventRecord
		wantDispatch  bool
		wantSourceKey string
	}{
		{
			name:          "csv under input prefix dispatches",
			record:        s3Record("aws:s3", "etl-pipeline-source-dev", "input/sales.csv"),
			wantDispatch:  true,
			wantSourceKey: "input/sales.csv",
		},
		{
			name:          "json under input prefix dispatches",
			record:        s3Record("aws:s3", "etl-pipeline-source-dev", "input/orders.json"),
			wantDispatch:  true,
			wantSourceKey: "input/orders.json",
		},
		{
			name:          "uppercase extension dispatches",
			record:        s3Record("aws:s3", "etl-pipeline-source-dev", "input/SALES.CSV"),
			wantDispatch:  true,
			wantSourceKey: "input/SALES.CSV",
		},
		{
			name:          "url-encoded key is decoded before dispatch",
			record:        s3Record("aws:s3", "etl-pipeline-source-dev", "input/sales+report+2024.csv"),
			wantDispatch:  true,
			wantSourceKey: "input/sales report 2024.csv",
		},
		{
			name:         "key outside input prefix is ignored",
			record:       s3Record("aws:s3", "etl-pipeline-source-dev", "staging/sales.csv"),
			wantDispatch: false,
		},
		{
			name:         "unsupported extension is ignored",
			record:       s3Record("aws:s3", "etl-pipeline-source-dev", "input/sales.parquet"),
			wantDispatch: false,
		},
		{
			name:         "extensionless key is ignored",
			record:       s3Record("aws:s3", "etl-pipeline-source-dev", "input/sales"),
			wantDispatch: false,
		},
		{
			name:         "non-s3 event source is ignored",
			record:       s3Record("aws:sns", "etl-pipeline-source-dev", "input/sales.csv"),
			wantDispatch: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			jobs := &fakeJobStarter{}
			handler := NewHandler(jobs, nil, testConfig())

			err := handler.HandleS3Event(context.Background(), events.S3Event{
				Records: []events.S3EventRecord{tt.record},
			})
			if err != nil {
				t.Fatalf("HandleS3Event() error = %v", err)
			}

			if tt.wantDispatch {
				if len(jobs.calls) != 1 {
					t.Fatalf("dispatched %d job runs, want 1", len(jobs.calls))
				}
				if got := jobs.calls[0].SourceKey; got != tt.wantSourceKey {
					t.Errorf("SourceKey = %q, want %q", got, tt.wantSourceKey)
				}
			} else if len(jobs.calls) != 0 {
				t.Errorf("dispatched %d job runs, want 0", len(jobs.calls))
			}
		})
	}
}

func TestHandleS3EventDispatchesOncePerRecord(t *testing.T) {
	jobs := &fakeJobStarter{}
	handler := NewHandler(jobs, nil, testConfig())

	event := events.S3Event{Records: []events.S3EventRecord{
		s3Record("aws:s3", "etl-pipeline-source-dev", "input/a.csv"),
		s3Record("aws:s3", "etl-pipeline-source-dev", "input/skip.txt"),
		s3Record("aws:s3", "etl-pipeline-source-dev", "input/b.json"),
	}}

	if err := handler.HandleS3Event(context.Background(), event); err != nil {
		t.Fatalf("HandleS3Event() error = %v", err)
	}
	if len(jobs.calls) != 2 {
		t.Fatalf("dispatched %d job runs, want 2", len(jobs.calls))
	}
}

func TestHandleS3EventParameterMapping(t *testing.T) {
	jobs := &fakeJobStarter{}
	cfg := testConfig()
	handler := NewHandler(jobs, nil, cfg)

	event := events.S3Event{Records: []events.S3EventRecord{
		s3Record("aws:s3", "etl-pipeline-source-dev", "input/sales.csv"),
	}}

	if err := handler.HandleS3Event(context.Background(), event); err != nil {
		t.Fatalf("HandleS3Event() error = %v", err)
	}

	params := jobs.calls[0]
	if params.SourceBucket != "etl-pipeline-source-dev" {
		t.Errorf("SourceBucket = %q", params.SourceBucket)
	}
	if params.DestinationBucket != cfg.DestinationBucket {
		t.Errorf("DestinationBucket = %q, want %q", params.DestinationBucket, cfg.DestinationBucket)
	}
	if params.OutputPrefix != cfg.OutputPrefix {
		t.Errorf("OutputPrefix = %q, want %q", params.OutputPrefix, cfg.OutputPrefix)
	}
}

func TestHandleS3EventInvalidRecord(t *testing.T) {
	jobs := &fakeJobStarter{}
	handler := NewHandler(jobs, nil, testConfig())

	event := events.S3Event{Records: []events.S3EventRecord{
		s3Record("aws:s3", "", "input/sales.csv"),
	}}

	err := handler.HandleS3Event(context.Background(), event)
	if !errors.Is(err, apperrors.ErrInvalidEventRecord) {
		t.Fatalf("HandleS3Event() error = %v, want ErrInvalidEventRecord", err)
	}
	if len(jobs.calls) != 0 {
		t.Errorf("dispatched %d job runs, want 0", len(jobs.calls))
	}
}

func TestHandleS3EventRequiresJobConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(cfg *config.Config)
		wantErr error
	}{
		{
			name:    "blank glue job name",
			mutate:  func(cfg *config.Config) { cfg.GlueJobName = "" },
			wantErr: apperrors.ErrGlueJobNameRequired,
		},
		{
			name:    "blank destination bucket",
			mutate:  func(cfg *config.Config) { cfg.DestinationBucket = "" },
			wantErr: apperrors.ErrDestinationRequired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			jobs := &fakeJobStarter{}
			cfg := testConfig()
			tt.mutate(cfg)
			handler := NewHandler(jobs, nil, cfg)

			event := events.S3Event{Records: []events.S3EventRecord{
				s3Record("aws:s3", "etl-pipeline-source-dev", "input/sales.csv"),
			}}

			err := handler.HandleS3Event(context.Background(), event)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("HandleS3Event() error = %v, want %v", err, tt.wantErr)
			}
			if len(jobs.calls) != 0 {
				t.Errorf("dispatched %d job runs, want 0", len(jobs.calls))
			}
		})
	}
}

type fakeMetricSink struct {
	names []string
}

func (f *fakeMetricSink) PutPipelineMetric(_ context.Context, name string, _ float64, _ cwtypes.StandardUnit) error {
	f.names = append(f.names, name)
	return nil
}

func TestHandleS3EventPublishesStartMetric(t *testing.T) {
	jobs := &fakeJobStarter{}
	metrics := &fakeMetricSink{}
	handler := NewHandler(jobs, metrics, testConfig())

	event := events.S3Event{Records: []events.S3EventRecord{
		s3Record("aws:s3", "etl-pipeline-source-dev", "input/a.csv"),
		s3Record("aws:s3", "etl-pipeline-source-dev", "input/skip.txt"),
	}}

	if err := handler.HandleS3Event(context.Background(), event); err != nil {
		t.Fatalf("HandleS3Event() error = %v", err)
	}
	if len(metrics.names) != 1 || metrics.names[0] != services.MetricPipelineStarted {
		t.Errorf("metrics = %v, want one %s", metrics.names, services.MetricPipelineStarted)
	}
}

func TestHandleS3EventMetricsDisabled(t *testing.T) {
	jobs := &fakeJobStarter{}
	metrics := &fakeMetricSink{}
	cfg := testConfig()
	cfg.LogsEnabled = false
	handler := NewHandler(jobs, metrics, cfg)

	event := events.S3Event{Records: []events.S3EventRecord{
		s3Record("aws:s3", "etl-pipeline-source-dev", "input/a.csv"),
	}}

	if err := handler.HandleS3Event(context.Background(), event); err != nil {
		t.Fatalf("HandleS3Event() error = %v", err)
	}
	if len(jobs.calls) != 1 {
		t.Fatalf("dispatched %d job runs, want 1", len(jobs.calls))
	}
	if len(metrics.names) != 0 {
		t.Errorf("metrics = %v, want none when observability is disabled", metrics.names)
	}
}

func TestHandleS3EventDispatchFailure(t *testing.T) {
	jobs := &fakeJobStarter{err: errors.New("ThrottlingException")}
	handler := NewHandler(jobs, nil, testConfig())

	event := events.S3Event{Records: []events.S3EventRecord{
		s3Record("aws:s3", "etl-pipeline-source-dev", "input/sales.csv"),
	}}

	if err := handler.HandleS3Event(context.Background(), event); err == nil {
		t.Fatal("HandleS3Event() = nil, want error")
	}
	// No retry: exactly one attempt per record.
	if len(jobs.calls) != 1 {
		t.Errorf("made %d StartJobRun attempts, want 1", len(jobs.calls))
	}
}
