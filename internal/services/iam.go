package services

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// IAMService provisions the IAM roles and policies for the Trigger Function
// and the Glue job.
type IAMService struct {
	client    *iam.Client
	stsClient *sts.Client
}

func NewIAMService(client *iam.Client, stsClient *sts.Client) *IAMService {
	return &IAMService{
		client:    client,
		stsClient: stsClient,
	}
}

// GetAWSAccountID retrieves the AWS account ID
func (s *IAMService) GetAWSAccountID(ctx context.Context) (string, error) {
	result, err := s.stsClient.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return "", fmt.Errorf("failed to get caller identity: %w", err)
	}

	if result.Account == nil {
		return "", fmt.Errorf("account ID is nil")
	}

	return *result.Account, nil
}

// RoleExists reports whether the named role exists.
func (s *IAMService) RoleExists(ctx context.Context, roleName string) (bool, error) {
	_, err := s.client.GetRole(ctx, &iam.GetRoleInput{
		RoleName: aws.String(roleName),
	})
	if err != nil {
		if IsNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check role %s: %w", roleName, err)
	}
	return true, nil
}

// EnsureRole creates the role with the given trust policy, or updates the
// trust policy when the role already exists. Returns the role ARN.
func (s *IAMService) EnsureRole(ctx context.Context, roleName, trustPolicy, description string) (string, error) {
	_, err := s.client.GetRole(ctx, &iam.GetRoleInput{
		RoleName: aws.String(roleName),
	})
	if err == nil {
		_, err = s.client.UpdateAssumeRolePolicy(ctx, &iam.UpdateAssumeRolePolicyInput{
			RoleName:       aws.String(roleName),
			PolicyDocument: aws.String(trustPolicy),
		})
		if err != nil {
			return "", fmt.Errorf("failed to update trust policy for %s: %w", roleName, err)
		}
	} else {
		_, err = s.client.CreateRole(ctx, &iam.CreateRoleInput{
			RoleName:                 aws.String(roleName),
			AssumeRolePolicyDocument: aws.String(trustPolicy),
			Description:              aws.String(description),
			Tags: []iamtypes.Tag{
				{
					Key:   aws.String("ManagedBy"),
					Value: aws.String("etl-deployer"),
				},
			},
		})
		if err != nil {
			return "", fmt.Errorf("failed to create role %s: %w", roleName, err)
		}

		if err := s.waitForRole(ctx, roleName, 30*time.Second); err != nil {
			return "", err
		}
	}

	accountID, err := s.GetAWSAccountID(ctx)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("arn:aws:iam::%s:role/%s", accountID, roleName), nil
}

// PutInlinePolicy attaches or replaces an inline policy on the role.
// PutRolePolicy is idempotent.
func (s *IAMService) PutInlinePolicy(ctx context.Context, roleName, policyName, policyDocument string) error {
	_, err := s.client.PutRolePolicy(ctx, &iam.PutRolePolicyInput{
		RoleName:       aws.String(roleName),
		PolicyName:     aws.String(policyName),
		PolicyDocument: aws.String(policyDocument),
	})
	if err != nil {
		return fmt.Errorf("failed to attach policy %s to role %s: %w", policyName, roleName, err)
	}
	return nil
}

// InlinePolicyNames lists the inline policy names attached to the role.
// A missing role yields an empty list.
func (s *IAMService) InlinePolicyNames(ctx context.Context, roleName string) ([]string, error) {
	result, err := s.client.ListRolePolicies(ctx, &iam.ListRolePoliciesInput{
		RoleName: aws.String(roleName),
	})
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list inline policies for role %s: %w", roleName, err)
	}
	return result.PolicyNames, nil
}

// AttachManagedPolicy attaches an AWS managed policy to the role.
// An already-attached policy is treated as success.
func (s *IAMService) AttachManagedPolicy(ctx context.Context, roleName, policyArn string) error {
	_, err := s.client.AttachRolePolicy(ctx, &iam.AttachRolePolicyInput{
		RoleName:  aws.String(roleName),
		PolicyArn: aws.String(policyArn),
	})
	if err != nil {
		if IsAlreadyExists(err) {
			return nil
		}
		return fmt.Errorf("failed to attach managed policy %s: %w", policyArn, err)
	}
	return nil
}

// DeleteRole detaches all policies from the role and deletes it.
// A missing role is treated as already deleted.
func (s *IAMService) DeleteRole(ctx context.Context, roleName string) error {
	attached, err := s.client.ListAttachedRolePolicies(ctx, &iam.ListAttachedRolePoliciesInput{
		RoleName: aws.String(roleName),
	})
	if err != nil {
		if IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("failed to list attached policies for %s: %w", roleName, err)
	}
	for _, policy := range attached.AttachedPolicies {
		_, err := s.client.DetachRolePolicy(ctx, &iam.DetachRolePolicyInput{
			RoleName:  aws.String(roleName),
			PolicyArn: policy.PolicyArn,
		})
		if err != nil && !IsNotFound(err) {
			return fmt.Errorf("failed to detach policy from %s: %w", roleName, err)
		}
	}

	inline, err := s.client.ListRolePolicies(ctx, &iam.ListRolePoliciesInput{
		RoleName: aws.String(roleName),
	})
	if err != nil && !IsNotFound(err) {
		return fmt.Errorf("failed to list inline policies for %s: %w", roleName, err)
	}
	if inline != nil {
		for _, policyName := range inline.PolicyNames {
			_, err := s.client.DeleteRolePolicy(ctx, &iam.DeleteRolePolicyInput{
				RoleName:   aws.String(roleName),
				PolicyName: aws.String(policyName),
			})
			if err != nil && !IsNotFound(err) {
				return fmt.Errorf("failed to delete inline policy %s: %w", policyName, err)
			}
		}
	}

	_, err = s.client.DeleteRole(ctx, &iam.DeleteRoleInput{
		RoleName: aws.String(roleName),
	})
	if err != nil {
		if IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("failed to delete role %s: %w", roleName, err)
	}
	return nil
}

// waitForRole waits for a newly created role to propagate across AWS
func (s *IAMService) waitForRole(ctx context.Context, roleName string, maxWait time.Duration) error {
	deadline := time.Now().Add(maxWait)

	for time.Now().Before(deadline) {
		_, err := s.client.GetRole(ctx, &iam.GetRoleInput{
			RoleName: aws.String(roleName),
		})
		if err == nil {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}

	return fmt.Errorf("role %s did not become available within %v", roleName, maxWait)
}
