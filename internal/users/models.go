package users

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleFarmer   Role = "farmer"
	RoleInvestor Role = "investor"
)

func (r Role) Valid() bool {
	return r == RoleFarmer || r == RoleInvestor
}

// User is a wallet-identified account
type User struct {
	ID            uuid.UUID `json:"id" db:"id"`
	WalletAddress string    `json:"wallet_address" db:"wallet_address"`
	Email         *string   `json:"email,omitempty" db:"email"`
	Role          *Role     `json:"role" db:"role"`
	IsVetted      bool      `json:"is_vetted" db:"is_vetted"`
	ENSName       *string   `json:"ens_name,omitempty" db:"ens_name"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

// HasRole reports whether the user selected r
func (u *User) HasRole(r Role) bool {
	return u.Role != nil && *u.Role == r
}

// RoleString returns the role or "" when unset
func (u *User) RoleString() string {
	if u.Role == nil {
		return ""
	}
	return string(*u.Role)
}

// EmailAddress returns the email or "" when unset
func (u *User) EmailAddress() string {
	if u.Email == nil {
		return ""
	}
	return *u.Email
}

type UpdateProfileRequest struct {
	Email string `json:"email"`
}

type SelectRoleRequest struct {
	Role Role `json:"role" binding:"required"`
}
