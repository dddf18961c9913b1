package auth

import (
	"strings"
	"time"
)

// Role is the closed set of account roles. The role travels inside the
// session token, so authorization decisions never need a database read.
type Role string

const (
	RoleCitizen  Role = "CITIZEN"
	RoleVictim   Role = "VICTIM"
	RoleNGO      Role = "NGO"
	RoleLegalAid Role = "LEGAL_AID"
	RoleAdmin    Role = "ADMIN"
)

// ParseRole normalizes raw input into a known role.
func ParseRole(raw string) (Role, bool) {
	switch Role(strings.ToUpper(strings.TrimSpace(raw))) {
	case RoleCitizen:
		return RoleCitizen, true
	case RoleVictim:
		return RoleVictim, true
	case RoleNGO:
		return RoleNGO, true
	case RoleLegalAid:
		return RoleLegalAid, true
	case RoleAdmin:
		return RoleAdmin, true
	default:
		return "", false
	}
}

// Identity is the account record backing authentication. PasswordHash holds
// an Argon2id PHC string and is never exposed through the HTTP layer or
// written to logs. ResetTokenHash/ResetTokenExpiresAt carry the single live
// password-reset token (digest only, at most one per identity).
type Identity struct {
	ID                  string
	Email               string
	Phone               string
	DisplayName         string
	PasswordHash        string
	Role                Role
	Active              bool
	Verified            bool
	Language            string
	LastLoginAt         *time.Time
	ResetTokenHash      string
	ResetTokenExpiresAt *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}
