package domain

import "time"

type Role string

const (
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
)

type User struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Identity is the authenticated caller of an operation.
type Identity struct {
	UserID string
	Email  string
	Role   Role
}

func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

// Require fails with ErrForbidden unless the identity holds role. Admins
// pass every role check.
func (i Identity) Require(role Role) error {
	if i.Role == role || i.IsAdmin() {
		return nil
	}
	return Forbidden("%s role required", role)
}

// CanAccess reports whether the identity may read or act on a resource owned
// by ownerID.
func (i Identity) CanAccess(ownerID string) bool {
	return i.UserID == ownerID || i.IsAdmin()
}
