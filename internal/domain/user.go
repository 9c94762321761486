package domain

import (
	"fmt"
	"net/mail"
	"time"
)

// User is an account that may upload documents and chat.
type User struct {
	ID             string
	Email          string
	Username       string
	HashedPassword string
	IsActive       bool
	IsSuperuser    bool
	CreatedAt      time.Time
	UpdatedAt      *time.Time
}

// ValidateUser validates a User instance
func ValidateUser(u *User) error {
	if u == nil {
		return fmt.Errorf("user cannot be nil")
	}

	if u.ID == "" {
		return fmt.Errorf("user ID is required")
	}

	if u.Email == "" {
		return fmt.Errorf("user Email is required")
	}

	if _, err := mail.ParseAddress(u.Email); err != nil {
		return fmt.Errorf("user Email is invalid: %s", u.Email)
	}

	if u.Username == "" {
		return fmt.Errorf("user Username is required")
	}

	if u.HashedPassword == "" {
		return fmt.Errorf("user HashedPassword is required")
	}

	return nil
}
