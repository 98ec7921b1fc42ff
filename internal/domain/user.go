package domain

import (
	"strings"
	"time"
)

// Role is the privilege level attached to an identity.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// User is the durable identity record shared by every credential type.
//
// VerificationToken and WalletAddress use the empty string for "absent".
type User struct {
	ID                string
	Email             string
	PasswordHash      string
	Role              Role
	Verified          bool
	VerificationToken string
	WalletAddress     string
	LastLogin         *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// IsPlaceholder reports whether the account only exists to hold a wallet,
// i.e. its email lives in the reserved placeholder domain.
func (u *User) IsPlaceholder(placeholderDomain string) bool {
	if u == nil || placeholderDomain == "" {
		return false
	}
	return strings.HasSuffix(strings.ToLower(u.Email), "@"+strings.ToLower(placeholderDomain))
}

// PublicUser is the sanitized view returned to clients.
type PublicUser struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	WalletAddress string `json:"walletAddress,omitempty"`
	Role          Role   `json:"role"`
}

// Public strips credential material from the user.
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:            u.ID,
		Email:         u.Email,
		WalletAddress: u.WalletAddress,
		Role:          u.Role,
	}
}
