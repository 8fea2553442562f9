package models

import (
	"slices"
	"time"
)

// Share access modes.
const (
	AccessAnyone = "anyone"
	AccessUsers  = "users"
)

// Share is a time-limited encrypted copy of a record. Its ciphertext lives
// either inline or in the blob store under BlobKey. Once expired and purged
// only a tombstone is left: PurgedAt is set and the ciphertext is gone.
type Share struct {
	ID               string
	CreatorID        string
	CreatorLabel     string
	Ciphertext       []byte
	Nonce            []byte
	BlobKey          string
	AccessMode       string
	AllowedUsernames []string
	CreatedAt        time.Time
	ExpiresAt        time.Time
	PurgedAt         *time.Time
}

// Expired reports whether the share is past its expiry at now.
func (s *Share) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// HasContent reports whether ciphertext is still held for the share.
func (s *Share) HasContent() bool {
	return s.PurgedAt == nil && (s.Ciphertext != nil || s.BlobKey != "")
}

// Allows reports whether username may read the share. An empty username is
// an anonymous reader.
func (s *Share) Allows(username string) bool {
	switch s.AccessMode {
	case AccessAnyone:
		return true
	case AccessUsers:
		return username != "" && slices.Contains(s.AllowedUsernames, username)
	default:
		return false
	}
}
