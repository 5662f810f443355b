package model

import "time"

// Account is a registered chat user
// Passwords are stored only as bcrypt hashes
type Account struct {
	Name         string    `json:"name"`
	PasswordHash string    `json:"password_hash"`
	CreatedAt    time.Time `json:"created_at"`
}
