// Package model defines the data structures used throughout the application.
// In Go, we use structs to represent our data, and struct tags tell
// encoding/json how each field is named on the wire.
package model

import "time"

// Provider names the external identity provider a user signed in with.
type Provider string

const (
	ProviderGitHub Provider = "github"
	ProviderGoogle Provider = "google"
)

// Valid reports whether p is one of the supported providers.
func (p Provider) Valid() bool {
	return p == ProviderGitHub || p == ProviderGoogle
}

// User represents a registered account.
//
// Accounts are created on first OAuth login and are never hard-deleted.
// (Provider, ProviderID) identifies the external account and is unique;
// Email and Username are unique across all users.
//
// WHY *string FOR FullName/AvatarURL?
// Both are optional on the provider side. A nil pointer is stored as SQL NULL
// and rendered as JSON null, which keeps "unknown" distinct from "empty".
type User struct {
	ID          int64      `json:"id"`
	Email       string     `json:"email"`
	Username    string     `json:"username"`
	FullName    *string    `json:"full_name"`
	AvatarURL   *string    `json:"avatar_url"`
	Provider    Provider   `json:"provider"`
	ProviderID  string     `json:"provider_id"`
	IsActive    bool       `json:"is_active"`
	IsVerified  bool       `json:"is_verified"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	LastLoginAt *time.Time `json:"last_login_at"`
}

// Identity is the normalized profile returned by an OAuth provider after a
// successful code exchange. It is the input to the user directory.
type Identity struct {
	Email      string
	Username   string
	FullName   string
	AvatarURL  string
	Provider   Provider
	ProviderID string
}
