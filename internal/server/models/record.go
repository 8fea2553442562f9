package models

import "time"

// Record is one encrypted vault entry. Domain is the key domain string the
// client sealed it under.
type Record struct {
	ID         string
	OwnerID    string
	Domain     string
	Ciphertext []byte
	Nonce      []byte
	UpdatedAt  time.Time
}
