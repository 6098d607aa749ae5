// Package session implements the Session Store (SS) and Store Monitor,
// Replicator, and Migrator (SM): the identity/authorization record store
// backing every CoreAPI call.
package session

import (
	"crypto/rand"
	"encoding/hex"
	"time"
)

// Session is an identity and authorization snapshot with a TTL.
type Session struct {
	ID             string            `json:"id"`
	UserID         string            `json:"userId"`
	Username       string            `json:"username"`
	Roles          []string          `json:"roles"`
	CreatedAt      time.Time         `json:"createdAt"`
	ExpiresAt      time.Time         `json:"expiresAt"`
	LastAccessedAt time.Time         `json:"lastAccessedAt"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// Expired reports whether the session's TTL has elapsed as of now.
func (s *Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// Patch carries the subset of Session fields an Update call may change.
// Nil fields are left untouched.
type Patch struct {
	Roles     *[]string
	Metadata  map[string]string
	ExpiresAt *time.Time
}

// NewID generates an opaque 128-bit session identifier.
func NewID() (string, error) {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(b[:]), nil
}
