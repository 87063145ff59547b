package services

import (
	"errors"
	"strings"

	"github.com/aws/smithy-go"
)

// notFoundCodes are the API error codes that mean "the resource does not
// exist yet" across the services this tool touches. Expected absence, not
// failure.
var notFoundCodes = map[string]struct{}{
	"NoSuchEntity":              {},
	"NoSuchBucket":              {},
	"NotFound":                  {},
	"404":                       {},
	"ResourceNotFoundException": {},
	"EntityNotFoundException":   {},
	"NoSuchKey":                 {},
}

// IsNotFound reports whether err represents an expected-absence outcome.
func IsNotFound(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		if _, ok := notFoundCodes[apiErr.ErrorCode()]; ok {
			return true
		}
	}
	// Some SDK waiter/wrapper errors only carry the code in the message.
	msg := err.Error()
	for code := range notFoundCodes {
		if strings.Contains(msg, code) {
			return true
		}
	}
	return false
}

// IsAlreadyExists reports whether err means the resource already exists.
func IsAlreadyExists(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "EntityAlreadyExists", "ResourceAlreadyExistsException",
			"AlreadyExistsException", "ResourceConflictException",
			"BucketAlreadyOwnedByYou":
			return true
		}
	}
	return strings.Contains(err.Error(), "already exists")
}

func errorsAs(err error, target any) bool {
	return errors.As(err, target)
}
