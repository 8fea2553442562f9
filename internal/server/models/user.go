// Package models defines server-side data models persisted in the database.
// Every byte slice here is either a salt, a verifier, a hash or ciphertext;
// the server never sees a key.
package models

import "time"

// User is an account of the backing store.
//
// PendingSalt is set between the two halves of a secret change or a
// recovery. PendingRecoveryHash is only set during recovery and is promoted
// to RecoveryTokenHash when the recovery completes. PendingAt is when the
// pending salt of a secret change was issued.
type User struct {
	ID                  string
	UserName            string
	Salt                []byte
	Verifier            []byte
	PendingSalt         []byte
	RecoveryTokenHash   []byte
	PendingRecoveryHash []byte
	PendingAt           *time.Time
	CreatedAt           time.Time
}
