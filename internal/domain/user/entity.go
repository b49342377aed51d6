package user

import (
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role represents user role in the system (matches user_role enum)
type Role string

const (
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
)

// User is the subset of a storefront account this service reads
type User struct {
	ID            uuid.UUID      `db:"id"`
	Email         string         `db:"email"`
	FirstName     sql.NullString `db:"first_name"`
	LastName      sql.NullString `db:"last_name"`
	Role          Role           `db:"role"`
	EmailVerified bool           `db:"email_verified"`
	CreatedAt     time.Time      `db:"created_at"`
}

// IsAdmin returns true if user is an admin
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// DisplayName returns "First Last", falling back to the email's local part
func (u *User) DisplayName() string {
	name := strings.TrimSpace(u.FirstName.String + " " + u.LastName.String)
	if name != "" {
		return name
	}
	if at := strings.IndexByte(u.Email, '@'); at > 0 {
		return u.Email[:at]
	}
	return u.Email
}
