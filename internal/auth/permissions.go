package auth

// Permission keys follow the stable "resource:action" shape.
const (
	PermBranchRead   = "branch:read"
	PermBranchCreate = "branch:create"
	PermBranchUpdate = "branch:update"
	PermBranchDelete = "branch:delete"

	PermMeterRead   = "meter:read"
	PermMeterCreate = "meter:create"
	PermMeterUpdate = "meter:update"
	PermMeterDelete = "meter:delete"

	PermCompanyRead   = "company:read"
	PermCompanyCreate = "company:create"

	PermUserRead  = "user:read"
	PermUserWrite = "user:write"

	PermLogRead  = "log:read"
	PermLogWrite = "log:write"
)

// Well-known role names used where capability keys are too coarse.
const (
	RoleAdmin          = "admin"
	RoleCompanyManager = "company_manager"
	RoleBranchManager  = "branch_manager"
)

// BuiltinPermissions is the seeded permission catalog.
var BuiltinPermissions = []Permission{
	{Key: PermBranchRead, Description: "View branches"},
	{Key: PermBranchCreate, Description: "Create branches"},
	{Key: PermBranchUpdate, Description: "Update branches"},
	{Key: PermBranchDelete, Description: "Delete branches"},
	{Key: PermMeterRead, Description: "View meters"},
	{Key: PermMeterCreate, Description: "Create meters"},
	{Key: PermMeterUpdate, Description: "Update meters"},
	{Key: PermMeterDelete, Description: "Delete meters"},
	{Key: PermCompanyRead, Description: "View companies"},
	{Key: PermCompanyCreate, Description: "Create companies"},
	{Key: PermUserRead, Description: "View users"},
	{Key: PermUserWrite, Description: "Manage users"},
	{Key: PermLogRead, Description: "View operational logs"},
	{Key: PermLogWrite, Description: "Manage operational logs"},
}
