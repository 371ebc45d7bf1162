package models

import "time"

type UserRole string

const (
	UserRolePropertyManager UserRole = "PROPERTY_MANAGER"
	UserRoleAdmin           UserRole = "ADMIN"
	UserRoleTenant          UserRole = "TENANT"
)

func (r UserRole) Valid() bool {
	switch r {
	case UserRolePropertyManager, UserRoleAdmin, UserRoleTenant:
		return true
	}
	return false
}

type User struct {
	ID           string
	Email        string
	PasswordHash []byte
	FirstName    string
	LastName     string
	Role         UserRole
	CompanyID    *string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// AuthUser is the part of a user that is safe to put in tokens and responses.
type AuthUser struct {
	ID        string
	Email     string
	FirstName string
	LastName  string
	Role      UserRole
	CompanyID *string
	IsActive  bool
}

func (u User) AuthUser() AuthUser {
	return AuthUser{
		ID:        u.ID,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Role:      u.Role,
		CompanyID: u.CompanyID,
		IsActive:  u.IsActive,
	}
}

// Identity is what the auth middleware attaches to an authenticated request.
type Identity struct {
	ID        string
	Email     string
	Role      UserRole
	CompanyID *string
}

func (u User) Identity() Identity {
	return Identity{
		ID:        u.ID,
		Email:     u.Email,
		Role:      u.Role,
		CompanyID: u.CompanyID,
	}
}
