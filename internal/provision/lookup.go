package provision

import (
	"context"
	"fmt"
	"strings"

	"github.com/savaki/gox/slicex"

	"github.com/meridian-data/etl-deployer/internal/importer"
	"github.com/meridian-data/etl-deployer/internal/services"
)

// ImportCandidates converts the plan's declared resources into import
// candidates, preserving the parent-before-child order.
func ImportCandidates(plan *Plan) []importer.Candidate {
	return slicex.Map(plan.Resources(), func(r Resource) importer.Candidate {
		return importer.Candidate{
			Kind:       r.Kind,
			Name:       r.Name,
			ExternalID: r.ExternalID,
			Parent:     r.Parent,
		}
	})
}

// ResourceLookup answers existence checks for every resource kind the plan
// declares. It implements importer.Lookup.
type ResourceLookup struct {
	s3         *services.S3Service
	iam        *services.IAMService
	glue       *services.GlueService
	lambda     *services.LambdaService
	cloudwatch *services.CloudWatchService
}

func NewResourceLookup(
	s3 *services.S3Service,
	iam *services.IAMService,
	glue *services.GlueService,
	lambda *services.LambdaService,
	cloudwatch *services.CloudWatchService,
) *ResourceLookup {
	return &ResourceLookup{
		s3:         s3,
		iam:        iam,
		glue:       glue,
		lambda:     lambda,
		cloudwatch: cloudwatch,
	}
}

func (l *ResourceLookup) Exists(ctx context.Context, c importer.Candidate) (bool, error) {
	switch c.Kind {
	case KindBucket:
		return l.s3.BucketExists(ctx, c.Name)
	case KindRole:
		return l.iam.RoleExists(ctx, c.Name)
	case KindPolicy:
		roleName := strings.TrimSuffix(c.Name, "/inline")
		names, err := l.iam.InlinePolicyNames(ctx, roleName)
		if err != nil {
			return false, err
		}
		return len(names) > 0, nil
	case KindFunction:
		return l.lambda.FunctionExists(ctx, c.Name)
	case KindGlueJob:
		return l.glue.JobExists(ctx, c.Name)
	case KindNotification:
		return l.s3.HasNotification(ctx, c.Name)
	case KindLogGroup:
		return l.cloudwatch.LogGroupExists(ctx, c.Name)
	case KindAlarm:
		return l.cloudwatch.AlarmExists(ctx, c.Name)
	default:
		return false, fmt.Errorf("unknown resource kind %q", c.Kind)
	}
}
