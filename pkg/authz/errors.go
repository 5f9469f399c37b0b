package authz

import (
	"errors"
	"fmt"
)

// ForbiddenError means a permission or hierarchy check failed. Its message
// is safe to surface to the end user as a 403-class response.
type ForbiddenError struct {
	Message string
}

func (e *ForbiddenError) Error() string {
	return e.Message
}

// Forbidden builds a ForbiddenError with a formatted message.
func Forbidden(format string, args ...interface{}) *ForbiddenError {
	return &ForbiddenError{Message: fmt.Sprintf(format, args...)}
}

// IsForbidden reports whether err is a ForbiddenError.
func IsForbidden(err error) bool {
	var fe *ForbiddenError
	return errors.As(err, &fe)
}

// ImmutableRoleError means a mutation was attempted on a system role
// (BASIC or ADMIN). Surfaced distinctly from ForbiddenError so callers can
// explain that system roles cannot be changed.
type ImmutableRoleError struct {
	RoleName string
}

func (e *ImmutableRoleError) Error() string {
	return fmt.Sprintf("system role %q is immutable", e.RoleName)
}

// IsImmutableRole reports whether err is an ImmutableRoleError.
func IsImmutableRole(err error) bool {
	var ie *ImmutableRoleError
	return errors.As(err, &ie)
}

// NotFoundError means a referenced role, organization, or user does not
// exist or is soft-deleted.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// NotFound builds a NotFoundError.
func NotFound(resource string, id interface{}) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: fmt.Sprintf("%v", id)}
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var ne *NotFoundError
	return errors.As(err, &ne)
}

// ResolutionError means the store was unreachable while computing claims.
// It propagates as a hard error and is never cached.
type ResolutionError struct {
	UserID UserID
	Err    error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("failed to resolve claims for user %d: %v", e.UserID, e.Err)
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}

// IsResolutionError reports whether err is a ResolutionError.
func IsResolutionError(err error) bool {
	var re *ResolutionError
	return errors.As(err, &re)
}
