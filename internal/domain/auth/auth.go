// Package auth defines API key records for caller authorization.
package auth

import "time"

// APIKey is a stored credential. Only the bcrypt hash of the full key is
// persisted; the prefix identifies which key was used without revealing it.
type APIKey struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Prefix     string     `json:"prefix"`
	KeyHash    string     `json:"-"`
	CreatedAt  time.Time  `json:"createdAt"`
	LastUsedAt *time.Time `json:"lastUsedAt,omitempty"`
}
