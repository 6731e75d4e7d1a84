package model

import "time"

// Role names carried in the users.role column and in the access token's
// "role" claim.
const (
	RoleStaff      = "staff"
	RoleSuperAdmin = "superadmin"
)

// ValidRole reports whether r is one of the known roles.
func ValidRole(r string) bool {
	return r == RoleStaff || r == RoleSuperAdmin
}

// User represents an application user record as stored in the
// `users` table. The password hash is never serialized; handlers
// return the remaining fields directly.
//
// Fields:
//  ID           – primary key identifier of the user.
//  Username     – unique login name.
//  PasswordHash – bcrypt hashed password.
//  Role         – staff or superadmin.
//  CreatedAt    – timestamp of creation.
//  UpdatedAt    – timestamp of last update.
type User struct {
	ID           uint64    `json:"id"`         // users.id
	Username     string    `json:"username"`   // users.username
	PasswordHash string    `json:"-"`          // users.password_hash
	Role         string    `json:"role"`       // users.role
	CreatedAt    time.Time `json:"created_at"` // users.created_at
	UpdatedAt    time.Time `json:"updated_at"` // users.updated_at
}

// Identity is the resolved caller of an operation. It is produced by the
// credential service from a verified access token and is the only input
// used for authorization decisions.
type Identity struct {
	UserID   uint64 `json:"user_id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}
