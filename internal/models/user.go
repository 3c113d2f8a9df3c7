package models

import "time"

type User struct {
	ID           int64     `json:"id" example:"1"`             // User ID
	Username     string    `json:"username" example:"alice"`   // Login name
	PasswordHash string    `json:"-"`                          // argon2id salt$hash
	CreatedAt    time.Time `json:"created_at" db:"created_at"` // Registration time
}
