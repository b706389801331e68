package accounts

import (
	"time"

	"github.com/miniintern/bizboard/internal/authz"
)

// User is the stored credential of a business member.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	Role         authz.Role
	BusinessID   *int64
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Identity projects the credential onto the per-request identity.
func (u *User) Identity() *authz.Identity {
	if u == nil {
		return nil
	}
	var business *int64
	if u.BusinessID != nil {
		id := *u.BusinessID
		business = &id
	}
	return &authz.Identity{
		UserID:     u.ID,
		Username:   u.Username,
		Role:       u.Role,
		BusinessID: business,
		IsActive:   u.IsActive,
	}
}

// NewUser holds the fields persisted at registration.
type NewUser struct {
	Username     string
	PasswordHash string
	Role         authz.Role
	BusinessID   *int64
}

// RegisterInput is the registration payload.
type RegisterInput struct {
	Username   string `json:"username" validate:"required,max=150,username"`
	Password   string `json:"password" validate:"required"`
	Password2  string `json:"password2" validate:"required"`
	Role       string `json:"role" validate:"required"`
	BusinessID *int64 `json:"business" validate:"required"`
}
