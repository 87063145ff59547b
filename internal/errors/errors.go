package errors

import "errors"

var (
	ErrProjectNameRequired   = errors.New("project name is required")
	ErrEnvironmentRequired   = errors.New("environment is required")
	ErrMissingRequiredFile   = errors.New("missing required file")
	ErrInvalidEventRecord    = errors.New("invalid S3 event record")
	ErrGlueJobNameRequired   = errors.New("glue job name is not configured")
	ErrDestinationRequired   = errors.New("destination bucket is not configured")
	ErrParentNotTracked      = errors.New("parent resource not present in tracked state")
	ErrUnknownPackageVariant = errors.New("unknown package variant")
	ErrPolicyRejected        = errors.New("policy document rejected by validator")
)
