// Package users stores accounts and handles signup and credential checks.
package users

import (
	"time"
)

// User is a person who can sign in
type User struct {
	ID           int64      `json:"id"`
	FirstName    string     `json:"first_name"`
	LastName     string     `json:"last_name"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	Logins       int        `json:"logins"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	InactiveAt   *time.Time `json:"inactive_at,omitempty"`
	InactiveByID *int64     `json:"inactive_by_id,omitempty"`
}

// IsActive reports whether the account has not been deactivated
func (u *User) IsActive() bool {
	return u.InactiveAt == nil
}

// SignupRequest creates an account and enrolls it in a university
type SignupRequest struct {
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	Email          string `json:"email"`
	Password       string `json:"password"`
	OrganizationID int64  `json:"university_id"`
}

// UpdateRequest changes profile fields. Nil fields are left unchanged.
type UpdateRequest struct {
	FirstName *string `json:"first_name,omitempty"`
	LastName  *string `json:"last_name,omitempty"`
	Email     *string `json:"email,omitempty"`
	Password  *string `json:"password,omitempty"`
}
