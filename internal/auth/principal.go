package auth

// Principal is the authenticated actor for a single request: the stored user
// plus the permission set resolved live from role grants. It is derived per
// request and never shared across requests.
type Principal struct {
	User        *User
	RoleName    string
	Permissions map[string]struct{}
}

// NewPrincipal constructs a principal with the resolved permission set.
func NewPrincipal(user *User, roleName string, perms map[string]struct{}) Principal {
	if perms == nil {
		perms = map[string]struct{}{}
	}
	return Principal{User: user, RoleName: roleName, Permissions: perms}
}

// HasPermission reports whether the principal holds the capability key.
func (p Principal) HasPermission(key string) bool {
	_, ok := p.Permissions[key]
	return ok
}

// PermissionKeys returns the held permission keys in unspecified order.
func (p Principal) PermissionKeys() []string {
	out := make([]string, 0, len(p.Permissions))
	for k := range p.Permissions {
		out = append(out, k)
	}
	return out
}

// SubjectID returns the authenticated user id.
func (p Principal) SubjectID() string {
	if p.User == nil {
		return ""
	}
	return p.User.ID
}
