package domain

import "time"

// Role enumerates account permission levels.
type Role string

const (
	RoleStandard   Role = "Standard"
	RoleAdmin      Role = "Admin"
	RoleSuperAdmin Role = "SuperAdmin"
)

// Account is the persisted identity record.
type Account struct {
	ID           int64
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	Role         Role

	RefreshToken          *string
	RefreshTokenExpiresAt *time.Time

	IsActive    bool
	IsDeleted   bool
	LastLoginAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Disabled reports whether the account must be rejected by session operations.
func (a *Account) Disabled() bool {
	return !a.IsActive || a.IsDeleted
}
