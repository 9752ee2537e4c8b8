package models

import "time"

// User is an identity record. The username is globally unique and doubles as
// the tenant key for document isolation; it is never mutated after creation.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}
