package authz

import (
	"errors"
	"reflect"
	"testing"

	"github.com/Kaseito-dev/Nuoc-HP/internal/auth"
)

func principalWith(role string, perms ...string) auth.Principal {
	held := map[string]struct{}{}
	for _, k := range perms {
		held[k] = struct{}{}
	}
	return auth.NewPrincipal(&auth.User{ID: "user-1"}, role, held)
}

func TestRequireAll(t *testing.T) {
	p := principalWith("", auth.PermMeterRead, auth.PermMeterCreate)

	if err := RequireAll(p, auth.PermMeterRead); err != nil {
		t.Fatalf("held permission denied: %v", err)
	}
	if err := RequireAll(p, auth.PermMeterRead, auth.PermMeterCreate); err != nil {
		t.Fatalf("held permissions denied: %v", err)
	}

	err := RequireAll(p, auth.PermMeterUpdate, auth.PermMeterDelete, auth.PermMeterRead)
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	var fe *ForbiddenError
	if !errors.As(err, &fe) {
		t.Fatalf("expected *ForbiddenError, got %T", err)
	}
	want := []string{auth.PermMeterDelete, auth.PermMeterUpdate}
	if !reflect.DeepEqual(fe.Details, want) {
		t.Fatalf("details = %v, want sorted missing set %v", fe.Details, want)
	}
}

func TestRequireAny(t *testing.T) {
	p := principalWith("", auth.PermLogRead)

	if err := RequireAny(p, auth.PermLogWrite, auth.PermLogRead); err != nil {
		t.Fatalf("one held option denied: %v", err)
	}

	err := RequireAny(p, auth.PermUserWrite, auth.PermUserRead)
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	var fe *ForbiddenError
	if !errors.As(err, &fe) {
		t.Fatalf("expected *ForbiddenError, got %T", err)
	}
	want := []string{auth.PermUserRead, auth.PermUserWrite}
	if !reflect.DeepEqual(fe.Details, want) {
		t.Fatalf("details = %v, want full option set %v", fe.Details, want)
	}
}

func TestRequireRole(t *testing.T) {
	p := principalWith(auth.RoleBranchManager)

	if err := RequireRole(p, auth.RoleAdmin, auth.RoleBranchManager); err != nil {
		t.Fatalf("matching role denied: %v", err)
	}
	if err := RequireRole(p, auth.RoleAdmin); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}
