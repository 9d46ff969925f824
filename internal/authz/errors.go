package authz

import (
	"errors"
	"strings"
)

// ErrForbidden marks authorization denials. Handlers match it with errors.Is;
// the concrete *ForbiddenError carries the detail list for the response body.
var ErrForbidden = errors.New("forbidden")

// ForbiddenError is a denial with machine-readable details: the sorted set of
// missing permission keys, or the acceptable options that were not met.
type ForbiddenError struct {
	Message string
	Details []string
}

func (e *ForbiddenError) Error() string {
	if len(e.Details) == 0 {
		return e.Message
	}
	return e.Message + ": " + strings.Join(e.Details, ", ")
}

func (e *ForbiddenError) Is(target error) bool { return target == ErrForbidden }
