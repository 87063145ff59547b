package services

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
)

// MetricNamespace is the namespace for custom pipeline metrics.
const MetricNamespace = "ETL/Pipeline"

// Pipeline metric names.
const (
	MetricPipelineStarted   = "PipelineStarted"
	MetricPipelineCompleted = "PipelineCompleted"
	MetricPipelineErrors    = "PipelineErrors"
	MetricPipelineDuration  = "PipelineDuration"
	MetricRecordsProcessed  = "RecordsProcessed"
)

// CloudWatchService manages the pipeline's log group, alarm, and custom metrics.
type CloudWatchService struct {
	cwClient   *cloudwatch.Client
	logsClient *cloudwatchlogs.Client
}

func NewCloudWatchService(cwClient *cloudwatch.Client, logsClient *cloudwatchlogs.Client) *CloudWatchService {
	return &CloudWatchService{
		cwClient:   cwClient,
		logsClient: logsClient,
	}
}

// EnsureLogGroup creates the log group and sets its retention.
// An existing log group is tolerated.
func (s *CloudWatchService) EnsureLogGroup(ctx context.Context, name string, retentionDays int) error {
	_, err := s.logsClient.CreateLogGroup(ctx, &cloudwatchlogs.CreateLogGroupInput{
		LogGroupName: aws.String(name),
	})
	if err != nil && !IsAlreadyExists(err) {
		return fmt.Errorf("failed to create log group %s: %w", name, err)
	}

	_, err = s.logsClient.PutRetentionPolicy(ctx, &cloudwatchlogs.PutRetentionPolicyInput{
		LogGroupName:    aws.String(name),
		RetentionInDays: aws.Int32(int32(retentionDays)),
	})
	if err != nil {
		return fmt.Errorf("failed to set retention on log group %s: %w", name, err)
	}
	return nil
}

// LogGroupExists reports whether the named log group exists.
func (s *CloudWatchService) LogGroupExists(ctx context.Context, name string) (bool, error) {
	result, err := s.logsClient.DescribeLogGroups(ctx, &cloudwatchlogs.DescribeLogGroupsInput{
		LogGroupNamePrefix: aws.String(name),
	})
	if err != nil {
		return false, fmt.Errorf("failed to describe log groups: %w", err)
	}
	for _, group := range result.LogGroups {
		if aws.ToString(group.LogGroupName) == name {
			return true, nil
		}
	}
	return false, nil
}

// DeleteLogGroup deletes the log group. Missing groups are already deleted.
func (s *CloudWatchService) DeleteLogGroup(ctx context.Context, name string) error {
	_, err := s.logsClient.DeleteLogGroup(ctx, &cloudwatchlogs.DeleteLogGroupInput{
		LogGroupName: aws.String(name),
	})
	if err != nil && !IsNotFound(err) {
		return fmt.Errorf("failed to delete log group %s: %w", name, err)
	}
	return nil
}

// EnsureErrorAlarm creates or updates an alarm on the Trigger Function's
// Errors metric. PutMetricAlarm is idempotent.
func (s *CloudWatchService) EnsureErrorAlarm(ctx context.Context, alarmName, functionName string) error {
	_, err := s.cwClient.PutMetricAlarm(ctx, &cloudwatch.PutMetricAlarmInput{
		AlarmName:        aws.String(alarmName),
		AlarmDescription: aws.String(fmt.Sprintf("Errors on ETL trigger function %s", functionName)),
		Namespace:        aws.String("AWS/Lambda"),
		MetricName:       aws.String("Errors"),
		Statistic:        cwtypes.StatisticSum,
		Dimensions: []cwtypes.Dimension{
			{
				Name:  aws.String("FunctionName"),
				Value: aws.String(functionName),
			},
		},
		Period:             aws.Int32(300),
		DatapointsToAlarm:  aws.Int32(1),
		EvaluationPeriods:  aws.Int32(1),
		Threshold:          aws.Float64(1),
		ComparisonOperator: cwtypes.ComparisonOperatorGreaterThanOrEqualToThreshold,
		TreatMissingData:   aws.String("notBreaching"),
	})
	if err != nil {
		return fmt.Errorf("failed to put alarm %s: %w", alarmName, err)
	}
	return nil
}

// AlarmExists reports whether the named alarm exists.
func (s *CloudWatchService) AlarmExists(ctx context.Context, alarmName string) (bool, error) {
	result, err := s.cwClient.DescribeAlarms(ctx, &cloudwatch.DescribeAlarmsInput{
		AlarmNames: []string{alarmName},
	})
	if err != nil {
		return false, fmt.Errorf("failed to describe alarm %s: %w", alarmName, err)
	}
	return len(result.MetricAlarms) > 0, nil
}

// DeleteAlarm deletes the alarm. DeleteAlarms on a missing alarm succeeds.
func (s *CloudWatchService) DeleteAlarm(ctx context.Context, alarmName string) error {
	_, err := s.cwClient.DeleteAlarms(ctx, &cloudwatch.DeleteAlarmsInput{
		AlarmNames: []string{alarmName},
	})
	if err != nil {
		return fmt.Errorf("failed to delete alarm %s: %w", alarmName, err)
	}
	return nil
}

// PutPipelineMetric publishes one custom pipeline metric data point.
func (s *CloudWatchService) PutPipelineMetric(ctx context.Context, name string, value float64, unit cwtypes.StandardUnit) error {
	_, err := s.cwClient.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace: aws.String(MetricNamespace),
		MetricData: []cwtypes.MetricDatum{
			{
				MetricName: aws.String(name),
				Value:      aws.Float64(value),
				Unit:       unit,
				Timestamp:  aws.Time(time.Now().UTC()),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to publish metric %s: %w", name, err)
	}
	return nil
}

// LogEvent is one log line retrieved for the monitor.
type LogEvent struct {
	Timestamp time.Time
	Message   string
}

// RecentLogEvents returns events from the most recently active stream of the
// log group, newest stream first, within the given lookback window.
func (s *CloudWatchService) RecentLogEvents(ctx context.Context, logGroup string, lookback time.Duration, limit int) (string, []LogEvent, error) {
	streams, err := s.logsClient.DescribeLogStreams(ctx, &cloudwatchlogs.DescribeLogStreamsInput{
		LogGroupName: aws.String(logGroup),
		OrderBy:      "LastEventTime",
		Descending:   aws.Bool(true),
		Limit:        aws.Int32(5),
	})
	if err != nil {
		return "", nil, fmt.Errorf("failed to describe log streams for %s: %w", logGroup, err)
	}
	if len(streams.LogStreams) == 0 {
		return "", nil, nil
	}

	streamName := aws.ToString(streams.LogStreams[0].LogStreamName)
	startTime := time.Now().Add(-lookback).UnixMilli()

	result, err := s.logsClient.GetLogEvents(ctx, &cloudwatchlogs.GetLogEventsInput{
		LogGroupName:  aws.String(logGroup),
		LogStreamName: aws.String(streamName),
		StartTime:     aws.Int64(startTime),
		Limit:         aws.Int32(int32(limit)),
	})
	if err != nil {
		return "", nil, fmt.Errorf("failed to get log events from %s: %w", streamName, err)
	}

	var events []LogEvent
	for _, event := range result.Events {
		events = append(events, LogEvent{
			Timestamp: time.UnixMilli(aws.ToInt64(event.Timestamp)),
			Message:   aws.ToString(event.Message),
		})
	}
	return streamName, events, nil
}
