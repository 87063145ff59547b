package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// S3Service wraps the S3 operations needed to provision and operate the
// pipeline's source and destination buckets.
type S3Service struct {
	client *s3.Client
	region string
}

func NewS3Service(client *s3.Client, region string) *S3Service {
	return &S3Service{
		client: client,
		region: region,
	}
}

// EnsureBucket creates the bucket if it does not already exist.
// Owning the bucket already is treated as success.
func (s *S3Service) EnsureBucket(ctx context.Context, bucket string) error {
	input := &s3.CreateBucketInput{
		Bucket: aws.String(bucket),
	}

	// us-east-1 rejects an explicit LocationConstraint
	if s.region != "us-east-1" {
		input.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(s.region),
		}
	}

	_, err := s.client.CreateBucket(ctx, input)
	if err != nil {
		var apiErr smithy.APIError
		if errorsAs(err, &apiErr) {
			switch apiErr.ErrorCode() {
			case "BucketAlreadyOwnedByYou", "BucketAlreadyExists":
				return nil
			}
		}
		return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
	}
	return nil
}

// BucketExists reports whether the bucket exists and is accessible.
func (s *S3Service) BucketExists(ctx context.Context, bucket string) (bool, error) {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(bucket),
	})
	if err != nil {
		if IsNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check bucket %s: %w", bucket, err)
	}
	return true, nil
}

// EnsureNotification wires object-created events on the source bucket to the
// Trigger Function, filtered by the input prefix and the given suffixes.
// One notification configuration is declared per suffix.
func (s *S3Service) EnsureNotification(ctx context.Context, bucket, functionArn, prefix string, suffixes []string) error {
	var configs []types.LambdaFunctionConfiguration
	for _, suffix := range suffixes {
		id := fmt.Sprintf("etl-trigger-%s", strings.TrimPrefix(suffix, "."))
		configs = append(configs, types.LambdaFunctionConfiguration{
			Id:                aws.String(id),
			LambdaFunctionArn: aws.String(functionArn),
			Events:            []types.Event{types.EventS3ObjectCreated},
			Filter: &types.NotificationConfigurationFilter{
				Key: &types.S3KeyFilter{
					FilterRules: []types.FilterRule{
						{Name: types.FilterRuleNamePrefix, Value: aws.String(prefix)},
						{Name: types.FilterRuleNameSuffix, Value: aws.String(suffix)},
					},
				},
			},
		})
	}

	_, err := s.client.PutBucketNotificationConfiguration(ctx, &s3.PutBucketNotificationConfigurationInput{
		Bucket: aws.String(bucket),
		NotificationConfiguration: &types.NotificationConfiguration{
			LambdaFunctionConfigurations: configs,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to configure bucket notification for %s: %w", bucket, err)
	}
	return nil
}

// HasNotification reports whether the bucket has any Lambda notification
// configuration at all.
func (s *S3Service) HasNotification(ctx context.Context, bucket string) (bool, error) {
	result, err := s.client.GetBucketNotificationConfiguration(ctx, &s3.GetBucketNotificationConfigurationInput{
		Bucket: aws.String(bucket),
	})
	if err != nil {
		if IsNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read bucket notification for %s: %w", bucket, err)
	}
	return len(result.LambdaFunctionConfigurations) > 0, nil
}

// Upload puts a local file into the bucket under the given key.
func (s *S3Service) Upload(ctx context.Context, bucket, key, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   f,
	})
	if err != nil {
		return fmt.Errorf("failed to upload s3://%s/%s: %w", bucket, key, err)
	}
	return nil
}

// ObjectSummary describes one listed object.
type ObjectSummary struct {
	Key          string
	Size         int64
	LastModified string
}

// ListPrefix returns every object under the given prefix, paginating as needed.
func (s *S3Service) ListPrefix(ctx context.Context, bucket, prefix string) ([]ObjectSummary, error) {
	var objects []ObjectSummary

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list s3://%s/%s: %w", bucket, prefix, err)
		}
		for _, obj := range page.Contents {
			summary := ObjectSummary{
				Key:  aws.ToString(obj.Key),
				Size: aws.ToInt64(obj.Size),
			}
			if obj.LastModified != nil {
				summary.LastModified = obj.LastModified.Format("2006-01-02 15:04:05")
			}
			objects = append(objects, summary)
		}
	}
	return objects, nil
}

// EmptyAndDeleteBucket removes every object from the bucket and deletes it.
// A missing bucket is treated as already deleted.
func (s *S3Service) EmptyAndDeleteBucket(ctx context.Context, bucket string) error {
	objects, err := s.ListPrefix(ctx, bucket, "")
	if err != nil {
		if IsNotFound(err) {
			return nil
		}
		return err
	}

	for _, obj := range objects {
		_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(obj.Key),
		})
		if err != nil {
			return fmt.Errorf("failed to delete s3://%s/%s: %w", bucket, obj.Key, err)
		}
	}

	_, err = s.client.DeleteBucket(ctx, &s3.DeleteBucketInput{
		Bucket: aws.String(bucket),
	})
	if err != nil {
		if IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("failed to delete bucket %s: %w", bucket, err)
	}
	return nil
}

// UploadKey builds the destination key for a local file under a prefix.
func UploadKey(prefix, path string) string {
	return strings.TrimSuffix(prefix, "/") + "/" + filepath.Base(path)
}
