package executor

import (
	"errors"
	"strings"

	"github.com/aws/smithy-go"
)

// Deletion error classification. Transient errors get retried with
// backoff, permanent ones fail immediately, and not-found means the
// resource is already gone so the delete counts as done.

var transientCodes = map[string]bool{
	"Throttling":                      true,
	"ThrottlingException":             true,
	"RequestLimitExceeded":            true,
	"TooManyRequestsException":        true,
	"RequestThrottled":                true,
	"SlowDown":                        true,
	"DependencyViolation":             true,
	"ResourceInUse":                   true,
	"ResourceInUseException":          true,
	"ResourceConflictException":       true,
	"InvalidDBInstanceState":          true,
	"ServiceUnavailable":              true,
	"ServiceUnavailableException":     true,
	"InternalError":                   true,
	"InternalFailure":                 true,
	"InternalServiceError":            true,
	"RequestTimeout":                  true,
	"RequestTimeoutException":         true,
	"IdempotentParameterMismatch":     true,
	"ConcurrentModificationException": true,
}

var permissionCodes = map[string]bool{
	"AccessDenied":          true,
	"AccessDeniedException": true,
	"UnauthorizedOperation": true,
	"UnauthorizedException": true,
	"AuthorizationError":    true,
	"OptInRequired":         true,
}

// IsNotFound reports whether the error means the resource no longer
// exists.
func IsNotFound(err error) bool {
	code, ok := errorCode(err)
	if !ok {
		return false
	}
	if strings.Contains(code, "NotFound") || strings.Contains(code, "NoSuch") {
		return true
	}
	return code == "ResourceMissing"
}

// IsPermissionDenied reports whether the delete was rejected by IAM or
// a resource policy. Retrying cannot help.
func IsPermissionDenied(err error) bool {
	code, ok := errorCode(err)
	return ok && permissionCodes[code]
}

// IsTransient reports whether the error is worth retrying: throttling,
// server-side faults, and ordering problems such as DependencyViolation
// that resolve once upstream resources finish deleting.
func IsTransient(err error) bool {
	code, ok := errorCode(err)
	if !ok {
		return false
	}
	if transientCodes[code] {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorFault() == smithy.FaultServer
	}
	return false
}

func errorCode(err error) (string, bool) {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode(), true
	}
	return "", false
}
