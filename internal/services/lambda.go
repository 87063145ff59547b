package services

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awslambda "github.com/aws/aws-sdk-go-v2/service/lambda"
	lambdatypes "github.com/aws/aws-sdk-go-v2/service/lambda/types"
)

// FunctionSpec declares the Trigger Function's attributes.
type FunctionSpec struct {
	Name         string
	RoleArn      string
	Handler      string
	Runtime      string
	ArtifactPath string // local path of the packaged deployment archive
	TimeoutSecs  int
	MemoryMB     int
	Environment  map[string]string
}

// LambdaService wraps the Lambda operations for the Trigger Function.
type LambdaService struct {
	client *awslambda.Client
}

func NewLambdaService(client *awslambda.Client) *LambdaService {
	return &LambdaService{client: client}
}

// FunctionExists reports whether the named function exists.
func (s *LambdaService) FunctionExists(ctx context.Context, name string) (bool, error) {
	_, err := s.client.GetFunction(ctx, &awslambda.GetFunctionInput{
		FunctionName: aws.String(name),
	})
	if err != nil {
		if IsNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check function %s: %w", name, err)
	}
	return true, nil
}

// EnsureFunction creates the function from the packaged artifact, or updates
// its code and configuration when it already exists. Returns the function ARN.
func (s *LambdaService) EnsureFunction(ctx context.Context, spec FunctionSpec) (string, error) {
	code, err := os.ReadFile(spec.ArtifactPath)
	if err != nil {
		return "", fmt.Errorf("failed to read deployment artifact %s: %w", spec.ArtifactPath, err)
	}

	env := &lambdatypes.Environment{Variables: spec.Environment}

	exists, err := s.FunctionExists(ctx, spec.Name)
	if err != nil {
		return "", err
	}

	if exists {
		_, err = s.client.UpdateFunctionCode(ctx, &awslambda.UpdateFunctionCodeInput{
			FunctionName: aws.String(spec.Name),
			ZipFile:      code,
		})
		if err != nil {
			return "", fmt.Errorf("failed to update function code for %s: %w", spec.Name, err)
		}

		if err := s.waitUpdated(ctx, spec.Name, 2*time.Minute); err != nil {
			return "", err
		}

		result, err := s.client.UpdateFunctionConfiguration(ctx, &awslambda.UpdateFunctionConfigurationInput{
			FunctionName: aws.String(spec.Name),
			Role:         aws.String(spec.RoleArn),
			Handler:      aws.String(spec.Handler),
			Runtime:      lambdatypes.Runtime(spec.Runtime),
			Timeout:      aws.Int32(int32(spec.TimeoutSecs)),
			MemorySize:   aws.Int32(int32(spec.MemoryMB)),
			Environment:  env,
		})
		if err != nil {
			return "", fmt.Errorf("failed to update function configuration for %s: %w", spec.Name, err)
		}
		return aws.ToString(result.FunctionArn), nil
	}

	result, err := s.client.CreateFunction(ctx, &awslambda.CreateFunctionInput{
		FunctionName: aws.String(spec.Name),
		Role:         aws.String(spec.RoleArn),
		Handler:      aws.String(spec.Handler),
		Runtime:      lambdatypes.Runtime(spec.Runtime),
		Code:         &lambdatypes.FunctionCode{ZipFile: code},
		Timeout:      aws.Int32(int32(spec.TimeoutSecs)),
		MemorySize:   aws.Int32(int32(spec.MemoryMB)),
		Environment:  env,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create function %s: %w", spec.Name, err)
	}

	if err := s.waitActive(ctx, spec.Name, 2*time.Minute); err != nil {
		return "", err
	}

	return aws.ToString(result.FunctionArn), nil
}

// AllowS3Invoke grants the source bucket permission to invoke the function.
// The statement ID is fixed, so re-granting is a tolerated conflict.
func (s *LambdaService) AllowS3Invoke(ctx context.Context, functionName, bucketArn string) error {
	_, err := s.client.AddPermission(ctx, &awslambda.AddPermissionInput{
		FunctionName: aws.String(functionName),
		StatementId:  aws.String("etl-deployer-s3-invoke"),
		Action:       aws.String("lambda:InvokeFunction"),
		Principal:    aws.String("s3.amazonaws.com"),
		SourceArn:    aws.String(bucketArn),
	})
	if err != nil {
		if IsAlreadyExists(err) {
			return nil
		}
		return fmt.Errorf("failed to add invoke permission to %s: %w", functionName, err)
	}
	return nil
}

// FunctionInfo describes the deployed function for monitoring.
type FunctionInfo struct {
	Runtime      string
	LastModified string
	Timeout      int32
	MemoryMB     int32
}

// GetFunctionInfo returns the deployed function's configuration.
func (s *LambdaService) GetFunctionInfo(ctx context.Context, name string) (*FunctionInfo, error) {
	result, err := s.client.GetFunction(ctx, &awslambda.GetFunctionInput{
		FunctionName: aws.String(name),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get function %s: %w", name, err)
	}

	cfg := result.Configuration
	return &FunctionInfo{
		Runtime:      string(cfg.Runtime),
		LastModified: aws.ToString(cfg.LastModified),
		Timeout:      aws.ToInt32(cfg.Timeout),
		MemoryMB:     aws.ToInt32(cfg.MemorySize),
	}, nil
}

// DeleteFunction deletes the function. Missing functions are already deleted.
func (s *LambdaService) DeleteFunction(ctx context.Context, name string) error {
	_, err := s.client.DeleteFunction(ctx, &awslambda.DeleteFunctionInput{
		FunctionName: aws.String(name),
	})
	if err != nil && !IsNotFound(err) {
		return fmt.Errorf("failed to delete function %s: %w", name, err)
	}
	return nil
}

func (s *LambdaService) waitActive(ctx context.Context, name string, maxWait time.Duration) error {
	waiter := awslambda.NewFunctionActiveV2Waiter(s.client)
	err := waiter.Wait(ctx, &awslambda.GetFunctionInput{
		FunctionName: aws.String(name),
	}, maxWait)
	if err != nil {
		return fmt.Errorf("function %s did not become active: %w", name, err)
	}
	return nil
}

func (s *LambdaService) waitUpdated(ctx context.Context, name string, maxWait time.Duration) error {
	waiter := awslambda.NewFunctionUpdatedV2Waiter(s.client)
	err := waiter.Wait(ctx, &awslambda.GetFunctionInput{
		FunctionName: aws.String(name),
	}, maxWait)
	if err != nil {
		return fmt.Errorf("function %s update did not complete: %w", name, err)
	}
	return nil
}
