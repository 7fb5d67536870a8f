package models

import (
	"disposisi/pkg/domain"
)

// User is a directory entry. Records refer to users by Name, so names are
// unique across the directory.
//
// Invariants:
//   - ID, Username and Name are non-empty
//   - Role is one of TU, Coordinator, Staff
//   - PasswordHash is a bcrypt hash or empty (login disabled)
type User struct {
	ID           string      `json:"id" yaml:"id"`
	Username     string      `json:"username" yaml:"username"`
	Name         string      `json:"name" yaml:"name"`
	Role         domain.Role `json:"role" yaml:"role"`
	PasswordHash string      `json:"-" yaml:"password_hash"`
}

// Actor projects the user into the identity carried on requests.
func (u *User) Actor() domain.Actor {
	return domain.Actor{ID: u.ID, Username: u.Username, Name: u.Name, Role: u.Role}
}

// CanLogin reports whether a credential has been provisioned.
func (u *User) CanLogin() bool {
	return u.PasswordHash != ""
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResult is returned on successful authentication.
type LoginResult struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	ExpiresIn   int64        `json:"expires_in"`
	User        domain.Actor `json:"user"`
}

// ActorSummary is the picker projection served to authenticated clients.
type ActorSummary struct {
	ID   string      `json:"id"`
	Name string      `json:"name"`
	Role domain.Role `json:"role"`
}
