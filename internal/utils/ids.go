package utils

import "github.com/google/uuid"

// NewUserID returns the public identifier stored in User.UserID.
func NewUserID() string {
	return uuid.NewString()
}

// NewTokenID returns a refresh token JTI.
func NewTokenID() string {
	return uuid.NewString()
}
