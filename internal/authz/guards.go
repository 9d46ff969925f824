package authz

import (
	"sort"

	"github.com/Kaseito-dev/Nuoc-HP/internal/auth"
)

// RequireAll denies unless the principal holds every required key. The
// details list the missing keys, sorted, so clients see exactly what was
// lacking without revealing anything they did not already send.
func RequireAll(p auth.Principal, required ...string) error {
	var missing []string
	for _, key := range required {
		if !p.HasPermission(key) {
			missing = append(missing, key)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)
	return &ForbiddenError{Message: "missing required permissions", Details: missing}
}

// RequireAny denies unless the principal holds at least one of the options.
// The details list every acceptable option, sorted.
func RequireAny(p auth.Principal, options ...string) error {
	for _, key := range options {
		if p.HasPermission(key) {
			return nil
		}
	}
	details := append([]string(nil), options...)
	sort.Strings(details)
	return &ForbiddenError{Message: "requires one of the listed permissions", Details: details}
}

// RequireRole denies unless the principal's role name is one of the given
// roles. Role checks run before permission checks on routes that use both.
func RequireRole(p auth.Principal, roles ...string) error {
	for _, name := range roles {
		if p.RoleName == name {
			return nil
		}
	}
	details := append([]string(nil), roles...)
	sort.Strings(details)
	return &ForbiddenError{Message: "requires one of the listed roles", Details: details}
}
