package domain

import "time"

type User struct {
	ID           string
	Email        string
	Username     string
	PasswordHash string // argon2 encoded
	ProfilePic   string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
